package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/kailas-cloud/notesearch/internal/db"
)

// ftIndex pairs an index definition with the bleve index holding its
// TEXT, TAG and NUMERIC fields. VECTOR fields are scanned from the hashes.
type ftIndex struct {
	def   db.IndexDefinition
	bleve bleve.Index
}

// CreateIndex builds a bleve index for def and indexes existing hashes
// under its prefixes.
func (s *Store) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}

	bi, err := bleve.NewMemOnly(buildMapping(def))
	if err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	idx := &ftIndex{def: *def, bleve: bi}

	for key, h := range s.hashes {
		if !idx.covers(key) {
			continue
		}
		if err := bi.Index(key, idx.document(h)); err != nil {
			_ = bi.Close()
			return &db.Error{Op: db.OpCreateIndex, Err: fmt.Errorf("backfill %s: %w", key, err)}
		}
	}

	s.indexes[def.Name] = idx
	return nil
}

// DropIndex removes an index. Hashes are kept.
func (s *Store) DropIndex(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[name]
	if !ok {
		return db.ErrIndexNotFound
	}
	delete(s.indexes, name)
	if err := idx.bleve.Close(); err != nil {
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	return nil
}

// IndexInfo reports an existing index as fully built: CreateIndex indexes
// synchronously.
func (s *Store) IndexInfo(_ context.Context, name string) (*db.IndexInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexes[name]
	if !ok {
		return nil, db.ErrIndexNotFound
	}
	n, err := idx.bleve.DocCount()
	if err != nil {
		return nil, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return &db.IndexInfo{Name: name, NumDocs: int(n), PercentIndexed: 1}, nil
}

// SupportsTextSearch returns true.
func (s *Store) SupportsTextSearch(_ context.Context) bool { return true }

// SupportsVectorSearch returns true.
func (s *Store) SupportsVectorSearch(_ context.Context) bool { return true }

func (s *Store) reindexLocked(key string, h map[string]string) error {
	for _, idx := range s.indexes {
		if !idx.covers(key) {
			continue
		}
		if err := idx.bleve.Index(key, idx.document(h)); err != nil {
			return &db.Error{Op: db.OpHSet, Err: err}
		}
	}
	return nil
}

func (s *Store) unindexLocked(key string) error {
	for _, idx := range s.indexes {
		if !idx.covers(key) {
			continue
		}
		if err := idx.bleve.Delete(key); err != nil {
			return &db.Error{Op: db.OpDel, Err: err}
		}
	}
	return nil
}

func (idx *ftIndex) covers(key string) bool {
	for _, p := range idx.def.Prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// document converts a hash to the bleve document for this index. Values that
// do not parse for their field type are left out, as FT indexes skip them.
func (idx *ftIndex) document(h map[string]string) map[string]any {
	doc := make(map[string]any, len(idx.def.Fields))
	for i := range idx.def.Fields {
		f := &idx.def.Fields[i]
		v, ok := h[f.Name]
		if !ok {
			continue
		}
		switch f.Type {
		case db.IndexFieldText:
			doc[f.Name] = v
		case db.IndexFieldTag:
			if tags := splitTags(v, f); len(tags) > 0 {
				doc[f.Name] = tags
			}
		case db.IndexFieldNumeric:
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				doc[f.Name] = n
			}
		case db.IndexFieldVector:
			// scanned from the hash at query time
		}
	}
	return doc
}

func splitTags(v string, f *db.IndexField) []string {
	sep := f.TagSeparator
	if sep == "" {
		sep = ","
	}
	parts := strings.Split(v, sep)
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !f.TagCaseSensitive {
			p = strings.ToLower(p)
		}
		out = append(out, p)
	}
	return out
}

func buildMapping(def *db.IndexDefinition) mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()
	docMapping.Dynamic = false

	for i := range def.Fields {
		f := &def.Fields[i]
		var fm *mapping.FieldMapping
		switch f.Type {
		case db.IndexFieldText:
			fm = bleve.NewTextFieldMapping()
			fm.Analyzer = standard.Name
		case db.IndexFieldTag:
			fm = bleve.NewTextFieldMapping()
			fm.Analyzer = keyword.Name
		case db.IndexFieldNumeric:
			fm = bleve.NewNumericFieldMapping()
		default:
			continue
		}
		fm.Store = false
		fm.IncludeInAll = false
		docMapping.AddFieldMappingsAt(f.Name, fm)
	}

	im := bleve.NewIndexMapping()
	im.DefaultMapping = docMapping
	im.DefaultAnalyzer = standard.Name
	return im
}
