package redis

import (
	"context"
	"strconv"

	"github.com/main-salman/haqnow-sub003/internal/db"
)

// ZIncrBy increments the score of a sorted-set member.
func (s *Store) ZIncrBy(ctx context.Context, key string, increment float64, member string) error {
	cmd := s.b().Zincrby().Key(key).Increment(increment).Member(member).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpZIncrBy, Err: err}
	}
	return nil
}

// ZTopN returns the n highest-scored members of a sorted set, descending.
func (s *Store) ZTopN(ctx context.Context, key string, n int) ([]db.ScoredMember, error) {
	if n <= 0 {
		return nil, nil
	}
	cmd := s.b().Zrange().Key(key).Min("0").Max(strconv.Itoa(n - 1)).Rev().Withscores().Build()
	scores, err := s.do(ctx, cmd).AsZScores()
	if err != nil {
		return nil, &db.Error{Op: db.OpZRange, Err: err}
	}

	out := make([]db.ScoredMember, len(scores))
	for i, z := range scores {
		out[i] = db.ScoredMember{Member: z.Member, Score: z.Score}
	}
	return out, nil
}
