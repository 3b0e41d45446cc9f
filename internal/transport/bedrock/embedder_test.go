package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/notesearch/internal/domain"
)

type invokeFunc func(ctx context.Context, in *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error)

func (f invokeFunc) InvokeModel(
	ctx context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options),
) (*bedrockruntime.InvokeModelOutput, error) {
	return f(ctx, in)
}

func TestEmbed(t *testing.T) {
	var got titanRequest
	var modelID string
	client := invokeFunc(func(_ context.Context, in *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
		modelID = aws.ToString(in.ModelId)
		require.NoError(t, json.Unmarshal(in.Body, &got))
		return &bedrockruntime.InvokeModelOutput{
			Body: []byte(`{"embedding":[0.5,0.25,0.125],"inputTextTokenCount":4}`),
		}, nil
	})

	e := NewWithClient(client, Config{Dimensions: 256})
	res, err := e.Embed(context.Background(), "hello bedrock")
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, modelID)
	assert.Equal(t, titanRequest{InputText: "hello bedrock", Dimensions: 256, Normalize: true}, got)
	assert.Equal(t, []float32{0.5, 0.25, 0.125}, res.Embedding)
	assert.Equal(t, 4, res.TotalTokens)
}

func TestEmbed_Failures(t *testing.T) {
	tests := []struct {
		name string
		out  *bedrockruntime.InvokeModelOutput
		err  error
	}{
		{"api error", nil, errors.New("AccessDeniedException")},
		{"bad body", &bedrockruntime.InvokeModelOutput{Body: []byte("{")}, nil},
		{"empty embedding", &bedrockruntime.InvokeModelOutput{Body: []byte(`{"embedding":[]}`)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := invokeFunc(func(context.Context, *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
				return tt.out, tt.err
			})
			_, err := NewWithClient(client, Config{Model: "custom-model"}).Embed(context.Background(), "x")
			assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
		})
	}
}

func TestEmbedAll_FallsBackToSingleCalls(t *testing.T) {
	calls := 0
	client := invokeFunc(func(context.Context, *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
		calls++
		return &bedrockruntime.InvokeModelOutput{Body: []byte(`{"embedding":[1],"inputTextTokenCount":2}`)}, nil
	})

	res, err := domain.EmbedAll(context.Background(), NewWithClient(client, Config{}), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, res.Embeddings, 3)
	assert.Equal(t, 6, res.TotalTokens)
}
