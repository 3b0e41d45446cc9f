package search

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/notesearch/internal/domain"
	"github.com/kailas-cloud/notesearch/internal/domain/index"
	"github.com/kailas-cloud/notesearch/internal/domain/search/mode"
	"github.com/kailas-cloud/notesearch/internal/domain/search/plan"
	"github.com/kailas-cloud/notesearch/internal/domain/search/request"
)

// DefaultCandidates is the vector candidate pool size.
const DefaultCandidates = 100

// Planner selects a retrieval strategy and builds its plan.
//
// Priority: vector (explicit, or auto with text, no tags and a ready vector
// index), then lexical (text or tags with a ready lexical index), then the
// filtered timeline scan. Vector ranking never combines with tag filters.
type Planner struct {
	embed      Embedder
	candidates int
}

// NewPlanner creates a planner. embed may be nil when no embedding provider
// is configured; vector plans are then never built.
func NewPlanner(embed Embedder, candidates int) *Planner {
	if candidates <= 0 {
		candidates = DefaultCandidates
	}
	return &Planner{embed: embed, candidates: candidates}
}

// Build returns the plan for req given the current capabilities.
func (p *Planner) Build(ctx context.Context, req *request.Request, caps index.Capabilities) (plan.Plan, error) {
	w := plan.Window{Offset: req.Offset(), Limit: req.PageSize()}

	switch {
	case req.Mode() == mode.Vector:
		if req.HasTags() {
			return nil, domain.Invalid("vector mode cannot be combined with tags")
		}
		if !req.HasText() {
			return nil, domain.Invalid("vector mode requires free text")
		}
		if p.embed == nil {
			return nil, fmt.Errorf("%w: no embedding provider configured", domain.ErrEmbeddingUnavailable)
		}
		vp, err := p.vector(ctx, req, w)
		if err != nil {
			return nil, err
		}
		if !caps.Vector {
			return nil, domain.ErrIndexNotReady
		}
		return vp, nil

	case req.Mode() == mode.Auto && req.HasText() && !req.HasTags() && caps.Vector && p.embed != nil:
		return p.vector(ctx, req, w)

	case (req.HasText() || req.HasTags()) && caps.Lexical:
		lp, err := plan.NewLexical(req.Scope(), req.FreeText(), req.Tags(), w)
		if err != nil {
			return nil, fmt.Errorf("lexical plan: %w", err)
		}
		return lp, nil

	default:
		fp, err := plan.NewFilter(req.Scope(), req.Tags(), req.FreeText(), w)
		if err != nil {
			return nil, fmt.Errorf("filter plan: %w", err)
		}
		return fp, nil
	}
}

func (p *Planner) vector(ctx context.Context, req *request.Request, w plan.Window) (plan.Plan, error) {
	res, err := p.embed.Embed(ctx, req.FreeText())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if len(res.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", domain.ErrEmbeddingUnavailable)
	}
	domain.StatsFromContext(ctx).AddEmbeddingTokens(res.TotalTokens)

	vp, err := plan.NewVector(req.Scope(), res.Embedding, p.candidates, w)
	if err != nil {
		return nil, fmt.Errorf("vector plan: %w", err)
	}
	return vp, nil
}
