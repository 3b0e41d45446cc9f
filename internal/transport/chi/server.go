package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/notesearch/internal/domain"
	domindex "github.com/kailas-cloud/notesearch/internal/domain/index"
	domnote "github.com/kailas-cloud/notesearch/internal/domain/note"
	"github.com/kailas-cloud/notesearch/internal/domain/search/mode"
	"github.com/kailas-cloud/notesearch/internal/domain/search/page"
	"github.com/kailas-cloud/notesearch/internal/domain/tenant"
	"github.com/kailas-cloud/notesearch/internal/logger"
	healthuc "github.com/kailas-cloud/notesearch/internal/usecase/health"
	noteuc "github.com/kailas-cloud/notesearch/internal/usecase/note"
)

// Searcher is the search entry point.
type Searcher interface {
	Search(
		ctx context.Context, scope tenant.Scope, freeText string, tags []string, m mode.Mode, pageNum int,
	) (page.Page, error)
}

// Notes handles note writes and lookups.
type Notes interface {
	Create(ctx context.Context, scope tenant.Scope, d noteuc.Draft) (domnote.Note, error)
	Get(ctx context.Context, scope tenant.Scope, id string) (domnote.Note, error)
	Delete(ctx context.Context, scope tenant.Scope, id string) error
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// IndexLister reports managed index states.
type IndexLister interface {
	Statuses() []domindex.Status
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the notes HTTP API.
type Server struct {
	search        Searcher
	notes         Notes
	health        HealthChecker
	indexes       IndexLister
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. indexes may be nil.
func NewServer(search Searcher, notes Notes, health HealthChecker, indexes IndexLister, logger *zap.Logger) *Server {
	s := &Server{
		search:  search,
		notes:   notes,
		health:  health,
		indexes: indexes,
		logger:  logger,
	}
	// order matters: ErrIndexNotReady is also a backend operation failure
	s.errorHandlers = []errorHandler{
		validationHandler,
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, ErrorCodeTimeout),
		sentinelHandler(domain.ErrEmbeddingUnavailable,
			http.StatusServiceUnavailable, ErrorCodeEmbeddingUnavailable),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusServiceUnavailable, ErrorCodeBackendUnavailable),
		sentinelHandler(domain.ErrIndexNotReady, http.StatusBadGateway, ErrorCodeBackendError),
		sentinelHandler(domain.ErrBackendOperation, http.StatusBadGateway, ErrorCodeBackendError),
	}
	return s
}

// Mount registers the API routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/indexes", s.ListIndexes)
		r.Route("/owners/{owner}/collections/{collection}/notes", func(r chi.Router) {
			r.Post("/", s.CreateNote)
			r.Get("/search", s.SearchNotes)
			r.Get("/{id}", s.GetNote)
			r.Delete("/{id}", s.DeleteNote)
		})
	})
}

// SearchNotes handles GET .../notes/search?q=&tags=&mode=&page=.
func (s *Server) SearchNotes(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.scope(w, r)
	if !ok {
		return
	}

	var params struct {
		Q    *string
		Tags []string
		Mode *string
		Page *int
	}
	query := r.URL.Query()
	for _, b := range []struct {
		name    string
		explode bool
		dest    any
	}{
		{"q", true, &params.Q},
		{"tags", false, &params.Tags},
		{"mode", true, &params.Mode},
		{"page", true, &params.Page},
	} {
		if err := runtime.BindQueryParameter("form", b.explode, false, b.name, query, b.dest); err != nil {
			writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid query parameter "+b.name)
			return
		}
	}

	pageNum := 1
	if params.Page != nil {
		pageNum = *params.Page
	}
	var freeText string
	if params.Q != nil {
		freeText = *params.Q
	}
	var m mode.Mode
	if params.Mode != nil {
		m = mode.Mode(*params.Mode)
	}

	ctx := logger.With(r.Context(), zap.String("tenant", scope.String()))
	ctx, stats := domain.NewContextWithStats(ctx)
	res, err := s.search.Search(ctx, scope, freeText, params.Tags, m, pageNum)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setSearchHeaders(w, stats)
	writeJSON(w, http.StatusOK, pageToAPI(&res))
}

// CreateNote handles POST .../notes.
func (s *Server) CreateNote(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.scope(w, r)
	if !ok {
		return
	}

	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	draft := noteuc.Draft{
		Content:      req.Content,
		Tags:         req.Tags,
		Contributor:  req.Contributor,
		GenerateTags: req.GenerateTags,
	}
	if req.CreatedAt != nil {
		draft.CreatedAt = *req.CreatedAt
	}

	n, err := s.notes.Create(r.Context(), scope, draft)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, noteToAPI(&n))
}

// GetNote handles GET .../notes/{id}.
func (s *Server) GetNote(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := s.noteRef(w, r)
	if !ok {
		return
	}
	n, err := s.notes.Get(r.Context(), scope, id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, noteToAPI(&n))
}

// DeleteNote handles DELETE .../notes/{id}.
func (s *Server) DeleteNote(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := s.noteRef(w, r)
	if !ok {
		return
	}
	if err := s.notes.Delete(r.Context(), scope, id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListIndexes handles GET /v1/indexes.
func (s *Server) ListIndexes(w http.ResponseWriter, _ *http.Request) {
	resp := IndexListResponse{Items: []IndexStatusResponse{}}
	if s.indexes != nil {
		for _, st := range s.indexes.Statuses() {
			resp.Items = append(resp.Items, IndexStatusResponse{
				Name:     st.Name,
				Kind:     string(st.Kind),
				State:    string(st.State),
				Progress: st.Progress,
				Error:    st.Err,
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) scope(w http.ResponseWriter, r *http.Request) (tenant.Scope, bool) {
	var owner, collection string
	if err := bindPath(r, "owner", &owner); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid path parameter owner")
		return tenant.Scope{}, false
	}
	if err := bindPath(r, "collection", &collection); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid path parameter collection")
		return tenant.Scope{}, false
	}
	scope, err := tenant.New(owner, collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return tenant.Scope{}, false
	}
	return scope, true
}

func (s *Server) noteRef(w http.ResponseWriter, r *http.Request) (tenant.Scope, string, bool) {
	scope, ok := s.scope(w, r)
	if !ok {
		return tenant.Scope{}, "", false
	}
	var id string
	if err := bindPath(r, "id", &id); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid path parameter id")
		return tenant.Scope{}, "", false
	}
	return scope, id, true
}

func bindPath(r *http.Request, name string, dest *string) error {
	return runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
}

func setSearchHeaders(w http.ResponseWriter, stats *domain.SearchStats) {
	if stats.Strategy != "" {
		w.Header().Set("X-Search-Strategy", stats.Strategy)
	}
	if stats.Embedded {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(stats.EmbeddingTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// validationHandler reports the validation reason, which never carries
// store internals.
func validationHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrInvalidRequest) {
		return false
	}
	writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
	return true
}

// sentinelHandler returns an errorHandler that matches a single sentinel
// error and answers with the sentinel text only.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
