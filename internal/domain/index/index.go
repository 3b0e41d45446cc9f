// Package index describes managed search indexes and their lifecycle.
package index

import "fmt"

// Kind distinguishes the two managed index types.
type Kind string

// Index kinds.
const (
	Lexical Kind = "lexical"
	Vector  Kind = "vector"
)

// State is the lifecycle position of an index as last observed.
// absent -> creating -> building -> ready; unsupported and failed are terminal
// outcomes of a single ensure call.
type State string

// Index states.
const (
	Absent      State = "absent"
	Creating    State = "creating"
	Building    State = "building"
	Ready       State = "ready"
	Unsupported State = "unsupported"
	Failed      State = "failed"
)

// FieldType is the mapping of a document field inside an index.
type FieldType string

// Field mapping types.
const (
	Text    FieldType = "text"
	Tag     FieldType = "tag"
	Numeric FieldType = "numeric"
	Vec     FieldType = "vector"
)

// Field maps a stored document field into the index.
type Field struct {
	Name     string
	Type     FieldType
	Sortable bool
}

// Descriptor names an index and its field mappings.
type Descriptor struct {
	Name       string
	Kind       Kind
	Fields     []Field
	Dimensions int // vector only
}

// Validate checks that the descriptor can be created.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("index name is required")
	}
	switch d.Kind {
	case Lexical, Vector:
	default:
		return fmt.Errorf("index %s: unknown kind %q", d.Name, d.Kind)
	}
	if len(d.Fields) == 0 {
		return fmt.Errorf("index %s: no fields", d.Name)
	}
	if d.Kind == Vector && d.Dimensions <= 0 {
		return fmt.Errorf("index %s: vector dimensions must be positive", d.Name)
	}
	return nil
}

// Status is a point-in-time view of one index for listings.
type Status struct {
	Name     string
	Kind     Kind
	State    State
	Progress float64
	Err      string
}

// Capabilities are the flags the planner reads.
type Capabilities struct {
	Lexical bool
	Vector  bool
}
