// Package bedrock embeds text with Amazon Titan Text Embeddings v2 on AWS Bedrock.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/kailas-cloud/notesearch/internal/domain"
	"github.com/kailas-cloud/notesearch/internal/metrics"
)

// DefaultModel is Titan Text Embeddings v2.
const DefaultModel = "amazon.titan-embed-text-v2:0"

const provider = "bedrock"

// Invoker is the subset of the Bedrock runtime client the embedder uses.
type Invoker interface {
	InvokeModel(
		ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options),
	) (*bedrockruntime.InvokeModelOutput, error)
}

// Config holds the Bedrock embedder settings.
type Config struct {
	Region     string
	Model      string
	Dimensions int // 256, 512 or 1024
	Logger     *zap.Logger
}

type titanRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
	Normalize  bool   `json:"normalize"`
}

type titanResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// Embedder implements domain.Embedder over InvokeModel. Titan has no batch
// endpoint, so batches go through domain.EmbedAll one text at a time.
type Embedder struct {
	client     Invoker
	model      string
	dimensions int
	logger     *zap.Logger
}

// New loads the default AWS credential chain for the region.
func New(ctx context.Context, cfg Config) (*Embedder, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w: %w", domain.ErrConfiguration, err)
	}
	return NewWithClient(bedrockruntime.NewFromConfig(awsCfg), cfg), nil
}

// NewWithClient creates an embedder over an existing client.
func NewWithClient(client Invoker, cfg Config) *Embedder {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Embedder{client: client, model: model, dimensions: cfg.Dimensions, logger: log}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	body, err := json.Marshal(titanRequest{InputText: text, Dimensions: e.dimensions, Normalize: true})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("marshal titan request: %w", err)
	}

	start := time.Now()
	out, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.model),
		Body:        body,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		e.fail("api_error")
		e.logger.Warn("Bedrock embedding failed", zap.String("model", e.model), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("invoke %s: %w: %w", e.model, domain.ErrEmbeddingUnavailable, err)
	}

	var resp titanResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		e.fail("decode_error")
		return domain.EmbeddingResult{}, fmt.Errorf("decode titan response: %w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if len(resp.Embedding) == 0 {
		e.fail("empty_response")
		return domain.EmbeddingResult{}, fmt.Errorf("titan returned no embedding: %w", domain.ErrEmbeddingUnavailable)
	}

	metrics.EmbeddingSucceeded(provider, e.model, time.Since(start), resp.InputTextTokenCount, resp.InputTextTokenCount)

	return domain.EmbeddingResult{
		Embedding:    resp.Embedding,
		PromptTokens: resp.InputTextTokenCount,
		TotalTokens:  resp.InputTextTokenCount,
	}, nil
}

func (e *Embedder) fail(reason string) {
	metrics.EmbeddingFailed(provider, e.model, reason)
}
