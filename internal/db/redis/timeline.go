package redis

import (
	"context"
	"strconv"

	"github.com/kailas-cloud/notesearch/internal/db"
)

// ZAdd inserts or re-scores a member of a sorted set.
func (s *Store) ZAdd(ctx context.Context, key string, score float64, member string) error {
	cmd := s.b().Zadd().Key(key).ScoreMember().ScoreMember(score, member).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return WrapErr(db.OpZAdd, err)
	}
	return nil
}

// ZRem removes a member from a sorted set.
func (s *Store) ZRem(ctx context.Context, key, member string) error {
	cmd := s.b().Zrem().Key(key).Member(member).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return WrapErr(db.OpZRem, err)
	}
	return nil
}

// ZCard returns the number of members in a sorted set (0 when absent).
func (s *Store) ZCard(ctx context.Context, key string) (int, error) {
	cmd := s.b().Zcard().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, WrapErr(db.OpZCard, err)
	}
	return int(n), nil
}

// ZRevRange returns members from highest to lowest score. Members with equal
// scores come in reverse lexicographical order.
func (s *Store) ZRevRange(ctx context.Context, key string, start, stop int) ([]string, error) {
	cmd := s.b().Arbitrary("ZREVRANGE").Keys(key).Args(strconv.Itoa(start), strconv.Itoa(stop)).Build()
	members, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, WrapErr(db.OpZRevRange, err)
	}
	return members, nil
}
