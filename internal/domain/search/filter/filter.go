package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxConditions bounds the number of clauses in one expression.
const MaxConditions = 32

// Expression is a conjunction of conditions. Every condition must hold for a
// document to match; there is no disjunction in the retrieval model.
type Expression struct {
	conditions []Condition
}

// And validates and combines conditions into an Expression.
func And(conditions ...Condition) (Expression, error) {
	if len(conditions) > MaxConditions {
		return Expression{}, fmt.Errorf("too many filter conditions (max %d)", MaxConditions)
	}
	for i, c := range conditions {
		if c.key == "" {
			return Expression{}, fmt.Errorf("condition %d has no key", i)
		}
	}
	out := make([]Condition, len(conditions))
	copy(out, conditions)
	return Expression{conditions: out}, nil
}

// Conditions returns the clauses of the expression.
func (e Expression) Conditions() []Condition { return e.conditions }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.conditions) == 0 }

// Matches evaluates the expression against stored hash fields. Tag fields
// hold separator-joined values; a match condition holds when any of the
// values equals the wanted one.
func (e Expression) Matches(fields map[string]string, separator string) bool {
	for _, c := range e.conditions {
		if !c.matches(fields, separator) {
			return false
		}
	}
	return true
}

// Condition is a single clause: either an exact tag match or a numeric range.
type Condition struct {
	key       string
	match     string
	rangeExpr *Range
}

// Match creates an exact tag match condition.
func Match(key, value string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if value == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: value}, nil
}

// InRange creates a numeric range condition.
func InRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Value returns the exact match value.
func (c Condition) Value() string { return c.match }

// Range returns the numeric range, nil for match conditions.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

func (c Condition) matches(fields map[string]string, separator string) bool {
	raw, ok := fields[c.key]
	if !ok {
		return false
	}
	if c.IsRange() {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return false
		}
		return c.rangeExpr.Contains(v)
	}
	if separator == "" {
		return raw == c.match
	}
	for _, part := range strings.Split(raw, separator) {
		if part == c.match {
			return true
		}
	}
	return false
}

// Range is a numeric interval with optional gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRange validates and creates a Range.
// At least one boundary is required; gt/gte and lt/lte are mutually exclusive.
func NewRange(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Contains reports whether v lies inside the range.
func (r Range) Contains(v float64) bool {
	switch {
	case r.gt != nil && v <= *r.gt:
		return false
	case r.gte != nil && v < *r.gte:
		return false
	case r.lt != nil && v >= *r.lt:
		return false
	case r.lte != nil && v > *r.lte:
		return false
	}
	return true
}
