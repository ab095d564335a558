package chunks

import (
	"context"
	"testing"
	"time"

	"github.com/main-salman/haqnow-sub003/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hgetAllMultiFn  func(ctx context.Context, keys []string) ([]map[string]string, error)
	replaceHashesFn func(ctx context.Context, delKeys []string, items []db.HashSetItem) error
	scanFn          func(ctx context.Context, pattern string) ([]string, error)
	getFn           func(ctx context.Context, key string) ([]byte, error)
	setNXFn         func(ctx context.Context, key string, value []byte) (bool, error)
	createIndexFn   func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn   func(ctx context.Context, name string) (bool, error)
	searchKNNFn     func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return nil, nil
}

func (m *mockStore) ReplaceHashes(ctx context.Context, delKeys []string, items []db.HashSetItem) error {
	if m.replaceHashesFn != nil {
		return m.replaceHashesFn(ctx, delKeys, items)
	}
	return nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	if m.setNXFn != nil {
		return m.setNXFn(ctx, key, value)
	}
	return true, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, 4, time.Millisecond), ms
}

func testVector(dim int) []float32 {
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = float32(i) * 0.1
	}
	return vec
}
