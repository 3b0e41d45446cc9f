// Package plan holds the strategy-specific description of one search.
//
// A Plan is one of three variants built by NewFilter, NewLexical or
// NewVector. Each carries only what its strategy needs, and every
// constructor puts the tenant equality conditions first in the pre-filter,
// so no plan can be executed without them.
package plan

import (
	"fmt"

	"github.com/kailas-cloud/notesearch/internal/domain/note"
	"github.com/kailas-cloud/notesearch/internal/domain/search/filter"
	"github.com/kailas-cloud/notesearch/internal/domain/tenant"
)

// Strategy identifies the plan variant.
type Strategy string

// Strategies in planner priority order.
const (
	Vector  Strategy = "vector"
	Lexical Strategy = "lexical"
	Filter  Strategy = "filter"
)

// Stage is one step of the execution pipeline.
type Stage string

// Pipeline stages.
const (
	StageFilter Stage = "filter"
	StageMatch  Stage = "match"
	StageScore  Stage = "score"
	StageSort   Stage = "sort"
)

// Window is the skip/limit pair of the requested page.
type Window struct {
	Offset int
	Limit  int
}

// Plan is implemented only by *FilterPlan, *LexicalPlan and *VectorPlan.
type Plan interface {
	Strategy() Strategy
	Scope() tenant.Scope
	// PreFilter is the tenant equality filter plus any tag containment.
	PreFilter() filter.Expression
	Window() Window
	Stages() []Stage
	sealed()
}

type base struct {
	scope     tenant.Scope
	tags      []string
	preFilter filter.Expression
	window    Window
}

func (b *base) Scope() tenant.Scope          { return b.scope }
func (b *base) PreFilter() filter.Expression { return b.preFilter }
func (b *base) Window() Window               { return b.window }
func (b *base) sealed()                      {}

// Tags returns the required tags, already part of PreFilter.
func (b *base) Tags() []string { return b.tags }

// FilterPlan scans the tenant's notes newest first, keeping notes that carry
// all tags and, when set, contain Text as a case-insensitive substring.
type FilterPlan struct {
	base
	text string
}

// LexicalPlan is a conjunctive relevance match of Text and tags.
type LexicalPlan struct {
	base
	text string
}

// VectorPlan ranks the tenant's embedded notes by similarity to a query
// vector drawn from a candidate pool of Candidates nearest neighbours.
type VectorPlan struct {
	base
	vector     []float32
	candidates int
}

// NewFilter builds a plain filtered-scan plan.
func NewFilter(scope tenant.Scope, tags []string, text string, w Window) (*FilterPlan, error) {
	b, err := newBase(scope, tags, w)
	if err != nil {
		return nil, err
	}
	return &FilterPlan{base: b, text: text}, nil
}

// NewLexical builds a lexical plan. At least one of text or tags is required.
func NewLexical(scope tenant.Scope, text string, tags []string, w Window) (*LexicalPlan, error) {
	if text == "" && len(tags) == 0 {
		return nil, fmt.Errorf("lexical plan needs text or tags")
	}
	b, err := newBase(scope, tags, w)
	if err != nil {
		return nil, err
	}
	return &LexicalPlan{base: b, text: text}, nil
}

// NewVector builds a vector plan. Tag filters are not combinable with vector
// ranking, so only the tenant pre-filter is applied.
func NewVector(scope tenant.Scope, vector []float32, candidates int, w Window) (*VectorPlan, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector plan needs a query vector")
	}
	if candidates <= 0 {
		return nil, fmt.Errorf("vector plan needs a positive candidate pool")
	}
	b, err := newBase(scope, nil, w)
	if err != nil {
		return nil, err
	}
	return &VectorPlan{base: b, vector: vector, candidates: candidates}, nil
}

func newBase(scope tenant.Scope, tags []string, w Window) (base, error) {
	if scope.IsZero() {
		return base{}, fmt.Errorf("plan needs a tenant scope")
	}
	if w.Offset < 0 || w.Limit <= 0 {
		return base{}, fmt.Errorf("invalid page window %+v", w)
	}

	conds := make([]filter.Condition, 0, 2+len(tags))
	owner, err := filter.Match(note.FieldOwner, scope.Owner())
	if err != nil {
		return base{}, err
	}
	coll, err := filter.Match(note.FieldCollection, scope.Collection())
	if err != nil {
		return base{}, err
	}
	conds = append(conds, owner, coll)
	for _, t := range tags {
		c, err := filter.Match(note.FieldTags, t)
		if err != nil {
			return base{}, err
		}
		conds = append(conds, c)
	}

	expr, err := filter.And(conds...)
	if err != nil {
		return base{}, fmt.Errorf("pre-filter: %w", err)
	}
	return base{scope: scope, tags: tags, preFilter: expr, window: w}, nil
}

// Strategy returns Filter.
func (p *FilterPlan) Strategy() Strategy { return Filter }

// Text returns the substring predicate ("" when absent).
func (p *FilterPlan) Text() string { return p.text }

// Stages returns filter, then sort by creation time.
func (p *FilterPlan) Stages() []Stage { return []Stage{StageFilter, StageSort} }

// Strategy returns Lexical.
func (p *LexicalPlan) Strategy() Strategy { return Lexical }

// Text returns the match text ("" for a tags-only plan).
func (p *LexicalPlan) Text() string { return p.text }

// Stages returns the full filter, match, score, sort pipeline.
func (p *LexicalPlan) Stages() []Stage {
	return []Stage{StageFilter, StageMatch, StageScore, StageSort}
}

// Strategy returns Vector.
func (p *VectorPlan) Strategy() Strategy { return Vector }

// Vector returns the query embedding.
func (p *VectorPlan) Vector() []float32 { return p.vector }

// Candidates returns the KNN candidate pool size.
func (p *VectorPlan) Candidates() int { return p.candidates }

// Stages returns filter, score, sort: there is no match clause.
func (p *VectorPlan) Stages() []Stage { return []Stage{StageFilter, StageScore, StageSort} }
