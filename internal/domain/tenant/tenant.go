// Package tenant defines the isolation boundary every note and query carries.
package tenant

import (
	"fmt"

	"github.com/kailas-cloud/notesearch/internal/domain"
)

// MaxIDLength bounds owner and collection identifiers.
const MaxIDLength = 128

// Scope is an (owner, collection) pair. It is immutable once constructed.
type Scope struct {
	owner      string
	collection string
}

// New validates both identifiers. Neither may be empty; allowed characters
// are [A-Za-z0-9_-] so they are safe inside keys and TAG filters.
func New(owner, collection string) (Scope, error) {
	if err := validateID("owner", owner); err != nil {
		return Scope{}, err
	}
	if err := validateID("collection", collection); err != nil {
		return Scope{}, err
	}
	return Scope{owner: owner, collection: collection}, nil
}

// Owner returns the owner identity.
func (s Scope) Owner() string { return s.owner }

// Collection returns the collection (project) identifier.
func (s Scope) Collection() string { return s.collection }

// IsZero reports whether the scope was never constructed.
func (s Scope) IsZero() bool { return s.owner == "" || s.collection == "" }

func (s Scope) String() string { return s.owner + "/" + s.collection }

func validateID(what, id string) error {
	if id == "" {
		return domain.Invalid("%s is required", what)
	}
	if len(id) > MaxIDLength {
		return domain.Invalid("%s exceeds %d characters", what, MaxIDLength)
	}
	for _, r := range id {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
		if !ok {
			return domain.Invalid("%s contains invalid character %q", what, r)
		}
	}
	return nil
}

// MustNew is New for fixtures and seed data. Panics on invalid input.
func MustNew(owner, collection string) Scope {
	s, err := New(owner, collection)
	if err != nil {
		panic(fmt.Sprintf("tenant.MustNew(%q, %q): %v", owner, collection, err))
	}
	return s
}
