package retrieval

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/main-salman/haqnow-sub003/internal/domain"
	"github.com/main-salman/haqnow-sub003/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterRAGMetrics()
	os.Exit(m.Run())
}

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return m.result, m.err
}

type mockSearcher struct {
	searchFn func(ctx context.Context, vector []float32, k int, documentID string) ([]domain.Match, error)
}

func (m *mockSearcher) Search(ctx context.Context, vector []float32, k int, documentID string) ([]domain.Match, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, vector, k, documentID)
	}
	return nil, nil
}

func match(docID string, seq int, text string, sim float64) domain.Match {
	return domain.Match{
		Chunk:      domain.Chunk{DocumentID: docID, Seq: seq, Text: text},
		Similarity: sim,
	}
}

func newTestService(se *mockSearcher) *Service {
	emb := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}}
	return New(emb, se, Config{DefaultTopK: 5, MaxTopK: 20, MinSimilarity: 0.35})
}

func TestRetrieve_HappyPath(t *testing.T) {
	se := &mockSearcher{searchFn: func(_ context.Context, vec []float32, k int, docID string) ([]domain.Match, error) {
		if len(vec) != 2 {
			t.Errorf("unexpected vector: %v", vec)
		}
		if k != 5 || docID != "" {
			t.Errorf("unexpected query: k=%d docID=%q", k, docID)
		}
		return []domain.Match{
			match("doc-1", 0, "first", 0.9),
			match("doc-2", 3, "second", 0.5),
		}, nil
	}}
	s := newTestService(se)

	matches, err := s.Retrieve(context.Background(), "question", 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Chunk.Text != "first" {
		t.Errorf("unexpected order: %+v", matches)
	}
}

func TestRetrieve_ClampsTopK(t *testing.T) {
	var gotK int
	se := &mockSearcher{searchFn: func(_ context.Context, _ []float32, k int, _ string) ([]domain.Match, error) {
		gotK = k
		return nil, nil
	}}
	s := newTestService(se)

	if _, err := s.Retrieve(context.Background(), "q", 100, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotK != 20 {
		t.Errorf("expected topK clamped to 20, got %d", gotK)
	}
}

func TestRetrieve_ScopesToDocument(t *testing.T) {
	var gotDoc string
	se := &mockSearcher{searchFn: func(_ context.Context, _ []float32, _ int, docID string) ([]domain.Match, error) {
		gotDoc = docID
		return nil, nil
	}}
	s := newTestService(se)

	if _, err := s.Retrieve(context.Background(), "q", 5, "doc-7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotDoc != "doc-7" {
		t.Errorf("expected document scope passed through, got %q", gotDoc)
	}
}

func TestRetrieve_DropsAdjacentDuplicates(t *testing.T) {
	se := &mockSearcher{searchFn: func(_ context.Context, _ []float32, _ int, _ string) ([]domain.Match, error) {
		return []domain.Match{
			match("doc-1", 0, "same passage", 0.9),
			match("doc-1", 1, "same passage", 0.89),
			match("doc-2", 0, "different", 0.8),
			match("doc-1", 0, "same passage", 0.7), // non-adjacent duplicate stays
		}, nil
	}}
	s := newTestService(se)

	matches, err := s.Retrieve(context.Background(), "q", 5, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches after dedupe, got %d", len(matches))
	}
	if matches[0].Chunk.Seq != 0 || matches[1].Chunk.Text != "different" {
		t.Errorf("unexpected matches: %+v", matches)
	}
}

func TestRetrieve_FiltersWeakMatches(t *testing.T) {
	se := &mockSearcher{searchFn: func(_ context.Context, _ []float32, _ int, _ string) ([]domain.Match, error) {
		return []domain.Match{
			match("doc-1", 0, "strong", 0.8),
			match("doc-2", 0, "weak", 0.2),
		}, nil
	}}
	s := newTestService(se)

	matches, err := s.Retrieve(context.Background(), "q", 5, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].Chunk.Text != "strong" {
		t.Errorf("expected only the strong match, got %+v", matches)
	}
}

func TestRetrieve_EmptyIsValid(t *testing.T) {
	se := &mockSearcher{searchFn: func(_ context.Context, _ []float32, _ int, _ string) ([]domain.Match, error) {
		return []domain.Match{match("doc-1", 0, "weak", 0.1)}, nil
	}}
	s := newTestService(se)

	matches, err := s.Retrieve(context.Background(), "q", 5, "")
	if err != nil {
		t.Fatalf("an empty result must not be an error, got %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %+v", matches)
	}
}

func TestRetrieve_EmbedderDown(t *testing.T) {
	emb := &mockEmbedder{err: domain.ErrModelUnavailable}
	s := New(emb, &mockSearcher{}, Config{DefaultTopK: 5, MaxTopK: 20})

	_, err := s.Retrieve(context.Background(), "q", 5, "")
	if !errors.Is(err, domain.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestRetrieve_StoreDown(t *testing.T) {
	se := &mockSearcher{searchFn: func(_ context.Context, _ []float32, _ int, _ string) ([]domain.Match, error) {
		return nil, domain.ErrStoreUnavailable
	}}
	s := newTestService(se)

	_, err := s.Retrieve(context.Background(), "q", 5, "")
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
