package analytics

import (
	"context"
	"testing"

	"github.com/main-salman/haqnow-sub003/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn         func(ctx context.Context, key string, fields map[string]string) error
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	getFn          func(ctx context.Context, key string) ([]byte, error)
	incrByFn       func(ctx context.Context, key string, val int64) error
	lpushFn        func(ctx context.Context, key string, values ...string) error
	lrangeFn       func(ctx context.Context, key string, start, stop int64) ([]string, error)
	zincrByFn      func(ctx context.Context, key string, increment float64, member string) error
	ztopNFn        func(ctx context.Context, key string, n int) ([]db.ScoredMember, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return nil, nil
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) IncrBy(ctx context.Context, key string, val int64) error {
	if m.incrByFn != nil {
		return m.incrByFn(ctx, key, val)
	}
	return nil
}

func (m *mockStore) LPush(ctx context.Context, key string, values ...string) error {
	if m.lpushFn != nil {
		return m.lpushFn(ctx, key, values...)
	}
	return nil
}

func (m *mockStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if m.lrangeFn != nil {
		return m.lrangeFn(ctx, key, start, stop)
	}
	return nil, nil
}

func (m *mockStore) ZIncrBy(ctx context.Context, key string, increment float64, member string) error {
	if m.zincrByFn != nil {
		return m.zincrByFn(ctx, key, increment, member)
	}
	return nil
}

func (m *mockStore) ZTopN(ctx context.Context, key string, n int) ([]db.ScoredMember, error) {
	if m.ztopNFn != nil {
		return m.ztopNFn(ctx, key, n)
	}
	return nil, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}
