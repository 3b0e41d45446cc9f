package note

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kailas-cloud/notesearch/internal/db"
	"github.com/kailas-cloud/notesearch/internal/domain"
	domnote "github.com/kailas-cloud/notesearch/internal/domain/note"
	"github.com/kailas-cloud/notesearch/internal/domain/tenant"
)

// store is the consumer interface for notes (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRem(ctx context.Context, key, member string) error
}

// Repo implements usecase/note.Repository.
type Repo struct {
	store store
}

// New creates a note repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Create writes the note hash and adds it to the tenant timeline. If the
// timeline write fails the hash is removed again.
func (r *Repo) Create(ctx context.Context, n *domnote.Note) error {
	key := Key(n.ID())
	if err := r.store.HSet(ctx, key, buildHashFields(n)); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	if err := r.store.ZAdd(ctx, TimelineKey(n.Scope()), Score(n.CreatedAt()), n.ID()); err != nil {
		zerr := fmt.Errorf("zadd timeline %s: %w", n.Scope(), err)
		if delErr := r.store.Del(ctx, key); delErr != nil {
			return errors.Join(zerr, fmt.Errorf("rollback %s: %w", key, delErr))
		}
		return zerr
	}
	return nil
}

// Get returns a note of the given scope. A note of another tenant is
// reported as not found.
func (r *Repo) Get(ctx context.Context, scope tenant.Scope, id string) (domnote.Note, error) {
	m, err := r.store.HGetAll(ctx, Key(id))
	if err != nil {
		return domnote.Note{}, fmt.Errorf("hgetall %s: %w", id, err)
	}
	if len(m) == 0 {
		return domnote.Note{}, domain.ErrNotFound
	}
	n, err := ParseHash(id, m)
	if err != nil {
		return domnote.Note{}, err
	}
	if n.Scope() != scope {
		return domnote.Note{}, domain.ErrNotFound
	}
	return n, nil
}

// Delete removes a note from its timeline and deletes the hash.
func (r *Repo) Delete(ctx context.Context, scope tenant.Scope, id string) error {
	if _, err := r.Get(ctx, scope, id); err != nil {
		return err
	}
	if err := r.store.ZRem(ctx, TimelineKey(scope), id); err != nil {
		return fmt.Errorf("zrem %s: %w", id, err)
	}
	if err := r.store.Del(ctx, Key(id)); err != nil {
		return fmt.Errorf("del %s: %w", id, err)
	}
	return nil
}

// SetEmbedding attaches a vector to an existing note. A note deleted in
// the meantime yields domain.ErrNotFound and nothing is written.
func (r *Repo) SetEmbedding(ctx context.Context, id string, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("set embedding %s: empty vector", id)
	}
	ok, err := r.store.Exists(ctx, Key(id))
	if err != nil {
		return fmt.Errorf("exists %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("set embedding %s: %w", id, domain.ErrNotFound)
	}
	err = r.store.HSet(ctx, Key(id), map[string]string{domnote.FieldEmbedding: db.EncodeVector(vec)})
	if err != nil {
		return fmt.Errorf("hset embedding %s: %w", id, err)
	}
	return nil
}

// MissingEmbeddings returns up to limit notes without an embedding, in key
// order. limit <= 0 returns all of them.
func (r *Repo) MissingEmbeddings(ctx context.Context, limit int) ([]domnote.Note, error) {
	keys, err := r.store.Scan(ctx, notePrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan notes: %w", err)
	}
	sort.Strings(keys)

	var out []domnote.Note
	const chunk = 100
	for start := 0; start < len(keys); start += chunk {
		end := min(start+chunk, len(keys))
		hashes, err := r.store.HGetAllMulti(ctx, keys[start:end])
		if err != nil {
			return nil, fmt.Errorf("load notes: %w", err)
		}
		for i, m := range hashes {
			if len(m) == 0 || m[domnote.FieldEmbedding] != "" {
				continue
			}
			n, err := ParseHash(IDFromKey(keys[start+i]), m)
			if err != nil {
				continue
			}
			out = append(out, n)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}
