package redis

import (
	"context"
	"fmt"
	"slices"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/notesearch/internal/db"
)

const (
	// multiChunk bounds how many HGETALLs share one DoMulti round-trip.
	multiChunk = 256
	scanCount  = 500
)

// HSet writes fields into the hash at key. An empty map is a no-op.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	fv := s.b().Hset().Key(key).FieldValue()
	for k, v := range fields {
		fv = fv.FieldValue(k, v)
	}
	if err := s.do(ctx, fv.Build()).Error(); err != nil {
		return WrapErr(db.OpHSet, err)
	}
	return nil
}

// HGetAll returns the hash at key, empty when the key does not exist.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.do(ctx, s.b().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil {
		return nil, WrapErr(db.OpHGetAll, err)
	}
	return m, nil
}

// HGetAllMulti loads several hashes, multiChunk keys per round-trip. The
// result is aligned with keys; a missing key yields an empty map.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	out := make([]map[string]string, 0, len(keys))
	for chunk := range slices.Chunk(keys, multiChunk) {
		cmds := make(rueidis.Commands, len(chunk))
		for i, key := range chunk {
			cmds[i] = s.b().Hgetall().Key(key).Build()
		}
		for i, res := range s.client.DoMulti(ctx, cmds...) {
			m, err := res.AsStrMap()
			if err != nil {
				return nil, WrapErr(db.OpHGetAll, fmt.Errorf("key %s: %w", chunk[i], err))
			}
			out = append(out, m)
		}
	}
	return out, nil
}

// Del removes key whatever its type.
func (s *Store) Del(ctx context.Context, key string) error {
	if err := s.do(ctx, s.b().Del().Key(key).Build()).Error(); err != nil {
		return WrapErr(db.OpDel, err)
	}
	return nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.do(ctx, s.b().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, WrapErr(db.OpExists, err)
	}
	return n > 0, nil
}

// Scan walks the keyspace for pattern and returns every matching key once,
// sorted. SCAN may repeat keys across cursor pages.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	seen := make(map[string]struct{})
	var cursor uint64
	for {
		entry, err := s.do(ctx, s.b().Scan().Cursor(cursor).Match(pattern).Count(scanCount).Build()).AsScanEntry()
		if err != nil {
			return nil, WrapErr(db.OpScan, err)
		}
		for _, k := range entry.Elements {
			seen[k] = struct{}{}
		}
		if cursor = entry.Cursor; cursor == 0 {
			break
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}
