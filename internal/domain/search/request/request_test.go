package request

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/notesearch/internal/domain"
	"github.com/kailas-cloud/notesearch/internal/domain/search/mode"
	"github.com/kailas-cloud/notesearch/internal/domain/tenant"
)

var scope = tenant.MustNew("t1", "p1")

func TestNew_Defaults(t *testing.T) {
	r, err := New(scope, "  canyon  ", []string{"Travel", "travel"}, "", 3, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.FreeText() != "canyon" || !r.HasText() {
		t.Errorf("FreeText() = %q", r.FreeText())
	}
	if r.Mode() != mode.Auto {
		t.Errorf("Mode() = %q, want auto (default)", r.Mode())
	}
	if len(r.Tags()) != 1 || r.Tags()[0] != "travel" {
		t.Errorf("Tags() = %v", r.Tags())
	}
	if r.Offset() != 20 {
		t.Errorf("Offset() = %d, want 20", r.Offset())
	}
}

func TestNew_BlankTextIsAbsent(t *testing.T) {
	r, err := New(scope, "   ", nil, mode.Auto, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.HasText() || r.HasTags() {
		t.Error("expected no text and no tags")
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		scope    tenant.Scope
		text     string
		m        mode.Mode
		page     int
		pageSize int
	}{
		{"missing scope", tenant.Scope{}, "", mode.Auto, 1, 10},
		{"zero page", scope, "", mode.Auto, 0, 10},
		{"negative page", scope, "", mode.Auto, -1, 10},
		{"zero page size", scope, "", mode.Auto, 1, 0},
		{"page size too big", scope, "", mode.Auto, 1, MaxPageSize + 1},
		{"bad mode", scope, "", "hybrid", 1, 10},
		{"text too long", scope, strings.Repeat("x", MaxQueryLength+1), mode.Auto, 1, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.scope, tt.text, nil, tt.m, tt.page, tt.pageSize)
			if !errors.Is(err, domain.ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}
