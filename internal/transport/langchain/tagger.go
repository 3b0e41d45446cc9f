package langchain

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/kailas-cloud/notesearch/internal/domain"
)

// DefaultMaxTags caps the tags proposed for one note.
const DefaultMaxTags = 5

const tagPrompt = `You label personal notes for later retrieval.
Return at most %d short lowercase topic tags for the note below, comma separated, nothing else.
Use single words or hyphenated phrases.

Note:
%s`

// Tagger implements domain.Tagger with a chat model.
type Tagger struct {
	llm     llms.Model
	maxTags int
}

// NewTagger builds a tagger for cfg.Backend.
func NewTagger(cfg Config) (*Tagger, error) {
	switch cfg.Backend {
	case BackendOpenAI, "":
		llm, err := newOpenAI(cfg, false)
		if err != nil {
			return nil, err
		}
		return NewTaggerWithModel(llm, DefaultMaxTags), nil
	case BackendOllama:
		llm, err := newOllama(cfg)
		if err != nil {
			return nil, err
		}
		return NewTaggerWithModel(llm, DefaultMaxTags), nil
	default:
		return nil, fmt.Errorf("%w: unknown langchain backend %q", domain.ErrConfiguration, cfg.Backend)
	}
}

// NewTaggerWithModel wraps an existing model.
func NewTaggerWithModel(llm llms.Model, maxTags int) *Tagger {
	if maxTags <= 0 {
		maxTags = DefaultMaxTags
	}
	return &Tagger{llm: llm, maxTags: maxTags}
}

// Tags asks the model for topic tags. The answer is parsed leniently:
// separators may be commas or newlines, list markers and '#' are dropped.
func (t *Tagger) Tags(ctx context.Context, content string) ([]string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, t.llm, fmt.Sprintf(tagPrompt, t.maxTags, content),
		llms.WithTemperature(0))
	if err != nil {
		return nil, fmt.Errorf("generate tags: %w", err)
	}
	return parseTags(out, t.maxTags), nil
}

func parseTags(out string, limit int) []string {
	fields := strings.FieldsFunc(out, func(r rune) bool { return r == ',' || r == '\n' })
	tags := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		tag := strings.ToLower(strings.Trim(strings.TrimSpace(f), "-*#.\"'` "))
		tag = strings.Join(strings.Fields(tag), "-")
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
		if len(tags) == limit {
			break
		}
	}
	return tags
}
