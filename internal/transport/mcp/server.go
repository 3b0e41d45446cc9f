// Package mcp exposes note search as a Model Context Protocol tool.
package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/notesearch/internal/domain"
	"github.com/kailas-cloud/notesearch/internal/domain/search/mode"
	"github.com/kailas-cloud/notesearch/internal/domain/search/page"
	"github.com/kailas-cloud/notesearch/internal/domain/tenant"
	logpkg "github.com/kailas-cloud/notesearch/internal/logger"
	"github.com/kailas-cloud/notesearch/internal/version"
)

// ToolName is the name of the search tool.
const ToolName = "search_notes"

// Searcher is the search entry point.
type Searcher interface {
	Search(
		ctx context.Context, scope tenant.Scope, freeText string, tags []string, m mode.Mode, pageNum int,
	) (page.Page, error)
}

// SearchInput is the tool input schema.
type SearchInput struct {
	Owner      string   `json:"owner" jsonschema:"owner of the notes"`
	Collection string   `json:"collection" jsonschema:"collection (project) of the notes"`
	Query      string   `json:"query,omitempty" jsonschema:"free text to look for"`
	Tags       []string `json:"tags,omitempty" jsonschema:"every returned note carries all of these tags"`
	Mode       string   `json:"mode,omitempty" jsonschema:"auto, lexical or vector (default auto)"`
	Page       int      `json:"page,omitempty" jsonschema:"1-based page number (default 1)"`
}

// SearchHit is one returned note.
type SearchHit struct {
	ID          string   `json:"id"`
	Content     string   `json:"content"`
	Tags        []string `json:"tags"`
	Contributor string   `json:"contributor,omitempty"`
	CreatedAt   string   `json:"created_at"`
	Score       *float64 `json:"score,omitempty"`
}

// SearchOutput is the tool result.
type SearchOutput struct {
	Documents  []SearchHit `json:"documents"`
	TotalCount int         `json:"total_count"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// NewServer creates an MCP server with the search tool registered.
func NewServer(search Searcher, logger *zap.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "notesearch",
		Version: version.Version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name: ToolName,
		Description: "Search notes of one owner and collection by free text, tags or semantic similarity. " +
			"Results are paginated; without a query the newest notes come first.",
	}, NewSearchHandler(search, logger))
	return server
}

// NewSearchHandler returns the search tool handler. Handler errors reach
// the client as tool errors, not protocol errors.
func NewSearchHandler(
	search Searcher, logger *zap.Logger,
) func(context.Context, *mcp.CallToolRequest, SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
		scope, err := tenant.New(in.Owner, in.Collection)
		if err != nil {
			return nil, SearchOutput{}, safeError(err)
		}
		pageNum := in.Page
		if pageNum == 0 {
			pageNum = 1
		}

		log := logger.With(zap.String("tool", ToolName), zap.String("tenant", scope.String()))
		ctx = logpkg.ContextWithLogger(ctx, log)

		res, err := search.Search(ctx, scope, in.Query, in.Tags, mode.Mode(in.Mode), pageNum)
		if err != nil {
			log.Warn("search_notes failed", zap.Error(err))
			return nil, SearchOutput{}, safeError(err)
		}
		return nil, toOutput(&res), nil
	}
}

func toOutput(p *page.Page) SearchOutput {
	docs := make([]SearchHit, len(p.Documents))
	for i := range p.Documents {
		n := &p.Documents[i].Note
		tags := n.Tags()
		if tags == nil {
			tags = []string{}
		}
		docs[i] = SearchHit{
			ID:          n.ID(),
			Content:     n.Content(),
			Tags:        tags,
			Contributor: n.Contributor(),
			CreatedAt:   n.CreatedAt().UTC().Format(time.RFC3339),
			Score:       p.Documents[i].Score,
		}
	}
	return SearchOutput{
		Documents:  docs,
		TotalCount: p.TotalCount,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages,
	}
}

// safeError keeps store diagnostics out of the model's context.
func safeError(err error) error {
	msg := "internal error"
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		msg = err.Error()
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		msg = domain.ErrEmbeddingUnavailable.Error()
	case errors.Is(err, domain.ErrBackendUnavailable):
		msg = domain.ErrBackendUnavailable.Error()
	case errors.Is(err, domain.ErrIndexNotReady):
		msg = domain.ErrIndexNotReady.Error()
	case errors.Is(err, domain.ErrBackendOperation):
		msg = domain.ErrBackendOperation.Error()
	case errors.Is(err, context.DeadlineExceeded):
		msg = "search timed out"
	}
	return errors.New(msg)
}
