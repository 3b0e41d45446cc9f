package langchain

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/kailas-cloud/notesearch/internal/domain"
)

type fakeEmbedderClient struct {
	err   error
	short bool
	calls [][]string
}

func (f *fakeEmbedderClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, []float32{float32(len(t))})
	}
	if f.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

type fakeModel struct {
	answer string
	err    error
	prompt string
}

func (f *fakeModel) GenerateContent(
	_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption,
) (*llms.ContentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, m := range messages {
		for _, p := range m.Parts {
			if tp, ok := p.(llms.TextContent); ok {
				f.prompt = tp.Text
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.answer}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestEmbedder(t *testing.T) {
	client := &fakeEmbedderClient{}
	e, err := NewEmbedderWithClient(client, "langchain-ollama", "nomic-embed-text")
	require.NoError(t, err)

	res, err := e.Embed(context.Background(), "four")
	require.NoError(t, err)
	assert.Equal(t, []float32{4}, res.Embedding)

	batch, err := e.BatchEmbed(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, batch.Embeddings)

	empty, err := e.BatchEmbed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, empty.Embeddings)
}

func TestEmbedder_Errors(t *testing.T) {
	e, err := NewEmbedderWithClient(&fakeEmbedderClient{err: errors.New("connection refused")}, "p", "m")
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	e, err = NewEmbedderWithClient(&fakeEmbedderClient{short: true}, "p", "m")
	require.NoError(t, err)
	_, err = e.BatchEmbed(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestNewEmbedder_UnknownBackend(t *testing.T) {
	_, err := NewEmbedder(Config{Backend: "watsonx"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = NewTagger(Config{Backend: "watsonx"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestTagger(t *testing.T) {
	model := &fakeModel{answer: "Hiking, #travel\n- grand canyon, hiking, photos, gear, extra"}
	tags, err := NewTaggerWithModel(model, 4).Tags(context.Background(), "Trip to the canyon")
	require.NoError(t, err)

	assert.Equal(t, []string{"hiking", "travel", "grand-canyon", "photos"}, tags)
	assert.True(t, strings.Contains(model.prompt, "Trip to the canyon"))
	assert.True(t, strings.Contains(model.prompt, "at most 4"))
}

func TestTagger_Error(t *testing.T) {
	_, err := NewTaggerWithModel(&fakeModel{err: errors.New("rate limited")}, 0).Tags(context.Background(), "x")
	assert.Error(t, err)
}

func TestParseTags(t *testing.T) {
	assert.Empty(t, parseTags("  ,\n, ", 5))
	assert.Equal(t, []string{"a", "b"}, parseTags("A, a, b", 5))
	assert.Equal(t, []string{"work"}, parseTags("\"work\".", 5))
}
