package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/notesearch/internal/db"
)

// Get returns the blob at key or db.ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.do(ctx, s.b().Get().Key(key).Build()).AsBytes()
	switch {
	case rueidis.IsRedisNil(err):
		return nil, db.ErrKeyNotFound
	case err != nil:
		return nil, WrapErr(db.OpGet, err)
	}
	return data, nil
}

// SetWithTTL stores value at key. ttl is rounded to whole seconds (EX);
// ttl <= 0 stores without expiration.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var cmd rueidis.Completed
	if secs := int64(ttl / time.Second); secs > 0 {
		cmd = s.b().Set().Key(key).Value(rueidis.BinaryString(value)).ExSeconds(secs).Build()
	} else {
		cmd = s.b().Set().Key(key).Value(rueidis.BinaryString(value)).Build()
	}
	if err := s.do(ctx, cmd).Error(); err != nil {
		return WrapErr(db.OpSet, err)
	}
	return nil
}
