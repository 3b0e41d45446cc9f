package db

import (
	"errors"
	"fmt"
	"regexp"
)

// DistanceMetric used by vector similarity queries.
type DistanceMetric string

const (
	DistanceL2     DistanceMetric = "L2"
	DistanceIP     DistanceMetric = "IP"
	DistanceCosine DistanceMetric = "COSINE"
)

// VectorAlgorithm selects how a VECTOR field is indexed. FLAT is brute force.
type VectorAlgorithm string

const (
	VectorHNSW VectorAlgorithm = "HNSW"
	VectorFlat VectorAlgorithm = "FLAT"
)

// IndexFieldType enumerates the schema field types every driver supports.
type IndexFieldType int

const (
	IndexFieldNumeric IndexFieldType = iota
	IndexFieldTag
	IndexFieldText
	IndexFieldVector
)

var fieldTypeNames = [...]string{"NUMERIC", "TAG", "TEXT", "VECTOR"}

func (t IndexFieldType) String() string {
	if t < 0 || int(t) >= len(fieldTypeNames) {
		return "UNKNOWN"
	}
	return fieldTypeNames[t]
}

// IndexField describes a single field in an FT index schema.
type IndexField struct {
	Name     string
	Type     IndexFieldType
	Sortable bool

	// TAG options
	TagSeparator     string
	TagCaseSensitive bool

	// VECTOR options
	VectorAlgo        VectorAlgorithm
	VectorDim         int
	VectorDistance    DistanceMetric
	VectorM           int // HNSW M: max edges per node
	VectorEFConstruct int // HNSW EF_CONSTRUCTION
}

// IndexDefinition is a complete FT index definition over hash documents.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// Field returns the field with the given name.
func (idx *IndexDefinition) Field(name string) (IndexField, bool) {
	for _, f := range idx.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return IndexField{}, false
}

// HasType reports whether the definition contains a field of type t.
func (idx *IndexDefinition) HasType(t IndexFieldType) bool {
	for _, f := range idx.Fields {
		if f.Type == t {
			return true
		}
	}
	return false
}

// ErrInvalidDefinition wraps every Validate failure.
var ErrInvalidDefinition = errors.New("db: invalid index definition")

// Validate checks that the definition can be sent to FT.CREATE.
func (idx *IndexDefinition) Validate() error {
	switch {
	case idx.Name == "":
		return invalidDef("index name is required")
	case !IsValidIdentifier(idx.Name):
		return invalidDef("index name %q contains invalid characters", idx.Name)
	case len(idx.Prefixes) == 0:
		return invalidDef("at least one key prefix is required")
	case len(idx.Fields) == 0:
		return invalidDef("at least one field is required")
	}

	seen := make(map[string]struct{}, len(idx.Fields))
	for i, f := range idx.Fields {
		if f.Name == "" {
			return invalidDef("field %d has no name", i)
		}
		if _, dup := seen[f.Name]; dup {
			return invalidDef("duplicate field name %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Type == IndexFieldVector && f.VectorDim <= 0 {
			return invalidDef("vector field %q requires a positive DIM", f.Name)
		}
	}
	return nil
}

func invalidDef(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidDefinition}, args...)...)
}

// IndexInfo is the subset of FT.INFO the registry needs to judge readiness.
type IndexInfo struct {
	Name           string
	NumDocs        int
	Indexing       bool
	PercentIndexed float64
}

// Ready reports whether the index has finished its initial scan and is queryable.
func (i *IndexInfo) Ready() bool {
	return !i.Indexing && i.PercentIndexed >= 1
}

var identifierRe = regexp.MustCompile(`^[a-zA-Z0-9_:-]+$`)

// IsValidIdentifier reports whether s is safe to use unquoted as an index
// name: letters, digits, '_', ':' and '-'.
func IsValidIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}
