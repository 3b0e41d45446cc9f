package redis

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/notesearch/internal/db"
)

// CreateIndex creates an FT index from the given definition.
// A concurrent or earlier creation of the same index yields db.ErrIndexExists.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := CreateArgs(def, true)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if IsRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return WrapErr(db.OpCreateIndex, err)
	}
	return nil
}

// DropIndex removes an FT index by name. Documents are kept.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if indexMissing(err) {
			return db.ErrIndexNotFound
		}
		return WrapErr(db.OpDropIndex, err)
	}
	return nil
}

// IndexInfo reads build progress from FT.INFO.
// Redis reports `indexing` (0/1) and `percent_indexed` (0..1).
func (s *Store) IndexInfo(ctx context.Context, name string) (*db.IndexInfo, error) {
	pairs, err := s.InfoPairs(ctx, name)
	if err != nil {
		return nil, err
	}

	info := &db.IndexInfo{Name: name, PercentIndexed: 1}
	if v, ok := pairs["num_docs"]; ok {
		info.NumDocs = int(MessageFloat(v))
	}
	if v, ok := pairs["indexing"]; ok {
		info.Indexing = MessageFloat(v) != 0
	}
	if v, ok := pairs["percent_indexed"]; ok {
		info.PercentIndexed = MessageFloat(v)
	}
	return info, nil
}

// InfoPairs runs FT.INFO and returns its top-level key/value pairs.
func (s *Store) InfoPairs(ctx context.Context, name string) (map[string]rueidis.RedisMessage, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	arr, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if indexMissing(err) {
			return nil, db.ErrIndexNotFound
		}
		return nil, WrapErr(db.OpIndexInfo, err)
	}

	pairs := make(map[string]rueidis.RedisMessage, len(arr)/2)
	for kv := range slices.Chunk(arr, 2) {
		if len(kv) < 2 {
			break
		}
		if key, err := kv[0].ToString(); err == nil {
			pairs[key] = kv[1]
		}
	}
	return pairs, nil
}

// indexMissing matches the "no such index" replies of Redis and Valkey
// across versions.
func indexMissing(err error) bool {
	for _, msg := range []string{"unknown index name", "no such index", "not found"} {
		if IsRedisErr(err, msg) {
			return true
		}
	}
	return false
}

// SupportsTextSearch returns true: Redis 8+ supports TEXT fields and BM25 scoring.
func (s *Store) SupportsTextSearch(_ context.Context) bool {
	return true
}

// SupportsVectorSearch returns true: KNN over VECTOR fields is always available.
func (s *Store) SupportsVectorSearch(_ context.Context) bool {
	return true
}

// MessageFloat reads a numeric FT.INFO value that may come back as an
// integer, a double or a numeric string depending on server version.
func MessageFloat(m rueidis.RedisMessage) float64 {
	if i, err := m.AsInt64(); err == nil {
		return float64(i)
	}
	if f, err := m.AsFloat64(); err == nil {
		return f
	}
	if str, err := m.ToString(); err == nil {
		if f, err := strconv.ParseFloat(str, 64); err == nil {
			return f
		}
	}
	return 0
}

// CreateArgs renders FT.CREATE arguments (without the command name).
// When sortable is false SORTABLE flags are dropped for servers that reject them.
func CreateArgs(idx *db.IndexDefinition, sortable bool) ([]string, error) {
	if err := idx.Validate(); err != nil {
		return nil, err
	}

	args := []string{idx.Name, "ON", "HASH", "PREFIX", strconv.Itoa(len(idx.Prefixes))}
	args = append(args, idx.Prefixes...)
	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		fieldArgs, err := fieldArgs(&idx.Fields[i], sortable)
		if err != nil {
			return nil, err
		}
		args = append(args, fieldArgs...)
	}

	return args, nil
}

func fieldArgs(f *db.IndexField, sortable bool) ([]string, error) {
	args := []string{f.Name}

	switch f.Type {
	case db.IndexFieldNumeric:
		args = append(args, "NUMERIC")

	case db.IndexFieldText:
		args = append(args, "TEXT")

	case db.IndexFieldTag:
		args = append(args, "TAG")
		if f.TagSeparator != "" {
			args = append(args, "SEPARATOR", f.TagSeparator)
		}
		if f.TagCaseSensitive {
			args = append(args, "CASESENSITIVE")
		}

	case db.IndexFieldVector:
		return append(args, vectorFieldArgs(f)...), nil

	default:
		return nil, errors.New("unknown field type")
	}

	if sortable && f.Sortable {
		args = append(args, "SORTABLE")
	}
	return args, nil
}

func vectorFieldArgs(f *db.IndexField) []string {
	algo := cmp.Or(f.VectorAlgo, db.VectorFlat)
	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.VectorDim),
		"DISTANCE_METRIC", string(cmp.Or(f.VectorDistance, db.DistanceCosine)),
	}
	if algo == db.VectorHNSW {
		for _, p := range []struct {
			name  string
			value int
		}{{"M", f.VectorM}, {"EF_CONSTRUCTION", f.VectorEFConstruct}} {
			if p.value > 0 {
				attrs = append(attrs, p.name, strconv.Itoa(p.value))
			}
		}
	}
	return append([]string{"VECTOR", string(algo), strconv.Itoa(len(attrs))}, attrs...)
}
