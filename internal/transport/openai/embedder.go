// Package openai embeds note text through an OpenAI-compatible
// /embeddings endpoint (OpenAI, Azure-style gateways, Nebius, vLLM).
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/notesearch/internal/domain"
	"github.com/kailas-cloud/notesearch/internal/metrics"
)

// DefaultMaxInputs is the OpenAI per-request input limit.
const DefaultMaxInputs = 2048

// Config holds the provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Dimensions is sent when positive (text-embedding-3-* can shorten vectors).
	Dimensions int
	User       string
	// Provider labels metrics ("openai" unless a compatible endpoint is named).
	Provider string
	// MaxInputs splits large batches; 0 means DefaultMaxInputs.
	MaxInputs int
	Logger    *zap.Logger
}

// Embedder implements domain.Embedder and domain.BatchEmbedder.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	provider   string
	maxInputs  int
	logger     *zap.Logger
}

// NewEmbedder creates the provider. No request is made until first use.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	maxInputs := cfg.MaxInputs
	if maxInputs <= 0 {
		maxInputs = DefaultMaxInputs
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		provider:   provider,
		maxInputs:  maxInputs,
		logger:     logger,
	}
}

// Embed vectorizes one text.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.call(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed vectorizes texts in as few requests as MaxInputs allows. The
// result is aligned with texts and usage is summed over requests.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	var out domain.BatchEmbeddingResult
	for chunk := range slices.Chunk(texts, e.maxInputs) {
		res, err := e.call(ctx, chunk)
		if err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}
	return out, nil
}

// call issues one /embeddings request. The API may return items in any
// order; Index is authoritative.
func (e *Embedder) call(ctx context.Context, input []string) (domain.BatchEmbeddingResult, error) {
	req := openai.EmbeddingRequest{
		Input:          input,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
		Dimensions:     max(e.dimensions, 0),
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		reason, wrapped := classify(err)
		metrics.EmbeddingFailed(e.provider, string(e.model), reason)
		e.logger.Debug("Embedding request failed", zap.String("reason", reason), zap.Error(err))
		return domain.BatchEmbeddingResult{}, wrapped
	}

	vectors := make([][]float32, len(input))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) || len(d.Embedding) == 0 {
			metrics.EmbeddingFailed(e.provider, string(e.model), "malformed_response")
			return domain.BatchEmbeddingResult{}, fmt.Errorf("embedding item %d invalid for %d inputs: %w",
				d.Index, len(input), domain.ErrEmbeddingUnavailable)
		}
		vectors[d.Index] = d.Embedding
	}
	if len(resp.Data) != len(input) || slices.ContainsFunc(vectors, func(v []float32) bool { return v == nil }) {
		metrics.EmbeddingFailed(e.provider, string(e.model), "empty_response")
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embedding response has %d vectors for %d inputs: %w",
			len(resp.Data), len(input), domain.ErrEmbeddingUnavailable)
	}

	metrics.EmbeddingSucceeded(e.provider, string(e.model), time.Since(start),
		resp.Usage.PromptTokens, resp.Usage.TotalTokens)

	return domain.BatchEmbeddingResult{
		Embeddings:   vectors,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck lists models, which costs no tokens.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// classify returns a metrics reason and the error wrapped with
// domain.ErrEmbeddingUnavailable, keeping the provider's message.
func classify(err error) (string, error) {
	status, msg := 0, err.Error()

	var reqErr *openai.RequestError
	var apiErr *openai.APIError
	switch {
	case errors.As(err, &apiErr):
		status, msg = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		status, msg = reqErr.HTTPStatusCode, string(reqErr.Body)
		if d := extractDetail(reqErr.Body); d != "" {
			msg = d
		}
	}

	reason := "api_error"
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		reason = "canceled"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		reason = "unauthorized"
	case status == http.StatusTooManyRequests:
		reason = "rate_limited"
	case status == 0:
		reason = "transport"
	}

	if status == 0 {
		return reason, fmt.Errorf("embedding request failed: %v: %w", err, domain.ErrEmbeddingUnavailable)
	}
	return reason, fmt.Errorf("embedding API error %d: %s: %w", status, msg, domain.ErrEmbeddingUnavailable)
}

// extractDetail reads {"detail": "..."} bodies (Nebius, FastAPI gateways).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	return parsed.Detail
}
