package redis

import (
	"fmt"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/notesearch/internal/domain/search/filter"
)

// BuildFilter translates a filter.Expression into an FT.SEARCH pre-filter.
// Conditions are space-joined, which RediSearch treats as intersection.
func BuildFilter(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}

	parts := make([]string, 0, len(expr.Conditions()))
	for _, cond := range expr.Conditions() {
		switch {
		case cond.IsMatch():
			parts = append(parts, tagFilter(cond.Key(), cond.Value()))
		case cond.IsRange():
			parts = append(parts, numericFilter(cond.Key(), *cond.Range()))
		}
	}
	return strings.Join(parts, " ")
}

// BuildTextQuery combines the pre-filter with a text clause on field.
func BuildTextQuery(field, text string, expr filter.Expression) string {
	parts := make([]string, 0, 2)
	if f := BuildFilter(expr); f != "" {
		parts = append(parts, f)
	}
	if terms := strings.Fields(text); len(terms) > 0 {
		escaped := make([]string, len(terms))
		for i, t := range terms {
			escaped[i] = EscapeQuery(t)
		}
		parts = append(parts, fmt.Sprintf("@%s:(%s)", field, strings.Join(escaped, " ")))
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " ")
}

// BuildKNNQuery renders a hybrid KNN query with the score aliased to ScoreField.
func BuildKNNQuery(field string, k int, expr filter.Expression) string {
	knnPart := fmt.Sprintf("[KNN %d @%s $BLOB AS %s]", k, field, ScoreField)
	if f := BuildFilter(expr); f != "" {
		return fmt.Sprintf("(%s)=>%s", f, knnPart)
	}
	return "*=>" + knnPart
}

// ScoreField is the alias under which KNN distance is returned.
const ScoreField = "__vector_score"

func tagFilter(key, value string) string {
	return fmt.Sprintf("@%s:{%s}", key, tagEscaper.Replace(value))
}

func numericFilter(key string, r filter.Range) string {
	return fmt.Sprintf("@%s:[%s %s]", key, bound(r.GT(), r.GTE(), "-inf"), bound(r.LT(), r.LTE(), "+inf"))
}

// bound renders one side of a numeric range; "(" marks an exclusive bound.
func bound(exclusive, inclusive *float64, open string) string {
	switch {
	case exclusive != nil:
		return fmt.Sprintf("(%g", *exclusive)
	case inclusive != nil:
		return fmt.Sprintf("%g", *inclusive)
	default:
		return open
	}
}

// escaper prefixes every byte of specials with a backslash.
func escaper(specials string) *strings.Replacer {
	pairs := make([]string, 0, 2*len(specials))
	for _, c := range specials {
		pairs = append(pairs, string(c), `\`+string(c))
	}
	return strings.NewReplacer(pairs...)
}

var (
	tagEscaper   = escaper(`\,.<>{}[]"':;!@#$%^&*()-+=~|/ `)
	queryEscaper = escaper(`\,.'"@{}()|-~*[]!%^$<>=:;+?&#/`)
)

// EscapeQuery escapes RediSearch query syntax in a single term.
func EscapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

// ParseFieldPairs reads a flat [name, value, ...] reply into a map.
func ParseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}
