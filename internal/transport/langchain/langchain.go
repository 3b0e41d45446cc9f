// Package langchain adapts langchaingo models: an embedder for
// OpenAI-compatible or Ollama endpoints and an LLM tagger that proposes
// note tags.
package langchain

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/kailas-cloud/notesearch/internal/domain"
)

// Supported backends.
const (
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
)

// Config selects a langchaingo backend.
type Config struct {
	Backend string
	BaseURL string
	APIKey  string
	// Model is the chat model for tagging or the embedding model for embedding.
	Model string
}


func newOpenAI(cfg Config, embedding bool) (*openai.LLM, error) {
	token := cfg.APIKey
	if token == "" {
		token = "none" // local compatible servers ignore it
	}
	opts := []openai.Option{openai.WithToken(token)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if embedding {
		opts = append(opts, openai.WithEmbeddingModel(cfg.Model))
	} else {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w: %w", domain.ErrConfiguration, err)
	}
	return llm, nil
}

func newOllama(cfg Config) (*ollama.LLM, error) {
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w: %w", domain.ErrConfiguration, err)
	}
	return llm, nil
}
