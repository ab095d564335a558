package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/main-salman/haqnow-sub003/internal/db"
	"github.com/main-salman/haqnow-sub003/internal/domain"
)

func TestEmbed_CacheMiss(t *testing.T) {
	in := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, ms := newTestCachedEmbedder(t, in)
	ctx := context.Background()

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, db.ErrKeyNotFound
	}

	var setCalled bool
	ms.setFn = func(_ context.Context, key string, _ []byte) error {
		if !strings.HasPrefix(key, cacheKeyPrefix) {
			t.Errorf("unexpected cache key: %s", key)
		}
		setCalled = true
		return nil
	}

	result, err := ce.Embed(ctx, "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", result.Embedding)
	}
	if result.TotalTokens != 10 {
		t.Fatalf("expected TotalTokens=10, got %d", result.TotalTokens)
	}
	if !setCalled {
		t.Fatal("expected SET to be called for cache put")
	}
}

func TestEmbed_CacheHit(t *testing.T) {
	in := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding: []float32{0.1, 0.2, 0.3},
	}}
	ce, ms := newTestCachedEmbedder(t, in)
	ctx := context.Background()

	cached := vectorToCacheBytes([]float32{0.4, 0.5, 0.6})
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return cached, nil
	}

	result, err := ce.Embed(ctx, "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Embedding[0] != 0.4 {
		t.Fatalf("expected cached vector, got %v", result.Embedding)
	}
	if result.TotalTokens != 0 {
		t.Fatalf("expected TotalTokens=0 on hit, got %d", result.TotalTokens)
	}
}

func TestEmbed_InnerError(t *testing.T) {
	in := &mockEmbedder{err: errors.New("model down")}
	ce, ms := newTestCachedEmbedder(t, in)
	ctx := context.Background()

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, db.ErrKeyNotFound
	}

	if _, err := ce.Embed(ctx, "test text"); err == nil {
		t.Fatal("expected inner error to propagate")
	}
}

func TestEmbed_CorruptCacheFallsThrough(t *testing.T) {
	in := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1}}}
	ce, ms := newTestCachedEmbedder(t, in)
	ctx := context.Background()

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte{0x01, 0x02, 0x03}, nil // not a multiple of 4
	}

	result, err := ce.Embed(ctx, "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Embedding[0] != 0.1 {
		t.Fatalf("expected inner result, got %v", result.Embedding)
	}
}

func TestBatchEmbed_PartialHits(t *testing.T) {
	in := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.9},
		PromptTokens: 5,
		TotalTokens:  5,
	}}
	ce, ms := newTestCachedEmbedder(t, in)
	ctx := context.Background()

	cached := vectorToCacheBytes([]float32{0.4})
	hitKey := ce.cacheKey("cached text")
	ms.getFn = func(_ context.Context, key string) ([]byte, error) {
		if key == hitKey {
			return cached, nil
		}
		return nil, db.ErrKeyNotFound
	}

	result, err := ce.BatchEmbed(ctx, []string{"cached text", "fresh text"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.batchCalls != 1 {
		t.Fatalf("expected 1 inner batch call, got %d", in.batchCalls)
	}
	if len(in.batchTexts) != 1 || in.batchTexts[0] != "fresh text" {
		t.Fatalf("expected only the miss to be embedded, got %v", in.batchTexts)
	}
	if result.Embeddings[0][0] != 0.4 {
		t.Errorf("expected cached vector at position 0, got %v", result.Embeddings[0])
	}
	if result.Embeddings[1][0] != 0.9 {
		t.Errorf("expected fresh vector at position 1, got %v", result.Embeddings[1])
	}
	if result.TotalTokens != 5 {
		t.Errorf("expected tokens only for the miss, got %d", result.TotalTokens)
	}
}

func TestBatchEmbed_AllHits(t *testing.T) {
	in := &mockEmbedder{}
	ce, ms := newTestCachedEmbedder(t, in)
	ctx := context.Background()

	cached := vectorToCacheBytes([]float32{0.4})
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return cached, nil
	}

	result, err := ce.BatchEmbed(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.batchCalls != 0 {
		t.Fatalf("expected no inner batch call, got %d", in.batchCalls)
	}
	if len(result.Embeddings) != 2 || result.TotalTokens != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCacheKey_DependsOnModel(t *testing.T) {
	a := New(&mockEmbedder{}, &mockKVStore{}, "model-a", nil, zap.NewNop())
	b := New(&mockEmbedder{}, &mockKVStore{}, "model-b", nil, zap.NewNop())

	if a.cacheKey("same text") == b.cacheKey("same text") {
		t.Error("expected different models to produce different cache keys")
	}
}
