package health

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/notesearch/internal/domain/index"
)

// --- Mocks ---

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error { return m.err }

type mockEmbeddingChecker struct {
	err error
}

func (m *mockEmbeddingChecker) HealthCheck(_ context.Context) error { return m.err }

type staticIndexes []index.Status

func (s staticIndexes) Statuses() []index.Status { return s }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	idx := staticIndexes{
		{Name: "notes_text_search", Kind: index.Lexical, State: index.Ready},
		{Name: "notes_vector_index", Kind: index.Vector, State: index.Ready},
	}
	svc := New(&mockDBPinger{}, &mockEmbeddingChecker{}, idx)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, name := range []string{"database", "embedding", "notes_text_search", "notes_vector_index"} {
		if r.Checks[name] != CheckOK {
			t.Errorf("expected %s %q, got %q", name, CheckOK, r.Checks[name])
		}
	}
}

func TestCheck_DBError(t *testing.T) {
	svc := New(&mockDBPinger{err: errors.New("conn refused")}, &mockEmbeddingChecker{}, nil)
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks["database"] != CheckError {
		t.Errorf("expected database %q, got %q", CheckError, r.Checks["database"])
	}
}

func TestCheck_EmbeddingError(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockEmbeddingChecker{err: errors.New("timeout")}, nil)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["embedding"] != CheckError {
		t.Errorf("expected embedding %q, got %q", CheckError, r.Checks["embedding"])
	}
}

func TestCheck_NilEmbedding(t *testing.T) {
	svc := New(&mockDBPinger{}, nil, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["embedding"]; ok {
		t.Error("expected no embedding check when checker is nil")
	}
}

func TestCheck_Indexes(t *testing.T) {
	idx := staticIndexes{
		{Name: "notes_text_search", Kind: index.Lexical, State: index.Unsupported},
		{Name: "notes_vector_index", Kind: index.Vector, State: index.Failed, Err: "index readiness timeout"},
	}
	svc := New(&mockDBPinger{}, nil, idx)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["notes_text_search"] != CheckDisabled {
		t.Errorf("expected lexical %q, got %q", CheckDisabled, r.Checks["notes_text_search"])
	}
	if r.Checks["notes_vector_index"] != CheckError {
		t.Errorf("expected vector %q, got %q", CheckError, r.Checks["notes_vector_index"])
	}
}

func TestCheck_UnsupportedOnlyIsHealthy(t *testing.T) {
	idx := staticIndexes{{Name: "notes_text_search", Kind: index.Lexical, State: index.Unsupported}}
	r := New(&mockDBPinger{}, nil, idx).Check(context.Background())
	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
}

type deadlineChecker struct{ hadDeadline bool }

func (d *deadlineChecker) HealthCheck(ctx context.Context) error {
	_, d.hadDeadline = ctx.Deadline()
	return nil
}

func TestCheck_ChecksAreBounded(t *testing.T) {
	emb := &deadlineChecker{}
	r := New(&mockDBPinger{}, emb, nil).Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if !emb.hadDeadline {
		t.Error("expected the embedding check to run under a deadline")
	}
}
