// Package retrieval turns a question into the ranked set of chunks the
// answer will be grounded on.
package retrieval

import (
	"context"
	"fmt"

	"github.com/main-salman/haqnow-sub003/internal/domain"
	"github.com/main-salman/haqnow-sub003/internal/metrics"
)

// Service handles semantic retrieval: embed the question, search the index,
// drop near-duplicate neighbors and weak matches.
type Service struct {
	embedder Embedder
	searcher Searcher

	defaultTopK   int
	maxTopK       int
	minSimilarity float64
}

// Config holds retrieval settings.
type Config struct {
	DefaultTopK   int
	MaxTopK       int
	MinSimilarity float64
}

// New creates a retrieval service.
func New(embedder Embedder, searcher Searcher, cfg Config) *Service {
	return &Service{
		embedder:      embedder,
		searcher:      searcher,
		defaultTopK:   cfg.DefaultTopK,
		maxTopK:       cfg.MaxTopK,
		minSimilarity: cfg.MinSimilarity,
	}
}

// Retrieve returns the chunks most similar to the question, best first.
// documentID, when non-empty, scopes the search to one document. An empty
// result is a valid outcome: it means nothing relevant is indexed.
func (s *Service) Retrieve(ctx context.Context, question string, topK int, documentID string) ([]domain.Match, error) {
	topK = s.clampTopK(topK)

	emb, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	matches, err := s.searcher.Search(ctx, emb.Embedding, topK, documentID)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	matches = dedupeAdjacent(matches)
	matches = s.filterWeak(matches)

	metrics.RetrievedChunks.Observe(float64(len(matches)))
	return matches, nil
}

func (s *Service) clampTopK(topK int) int {
	if topK <= 0 {
		return s.defaultTopK
	}
	if topK > s.maxTopK {
		return s.maxTopK
	}
	return topK
}

// dedupeAdjacent removes consecutive results carrying identical text.
// Overlapping chunks of the same passage retrieve together and would crowd
// distinct sources out of the context window.
func dedupeAdjacent(matches []domain.Match) []domain.Match {
	if len(matches) < 2 {
		return matches
	}
	out := matches[:1]
	for _, m := range matches[1:] {
		prev := out[len(out)-1]
		if m.Chunk.Text == prev.Chunk.Text {
			continue
		}
		out = append(out, m)
	}
	return out
}

// filterWeak drops matches below the similarity threshold.
func (s *Service) filterWeak(matches []domain.Match) []domain.Match {
	if s.minSimilarity <= 0 {
		return matches
	}
	out := matches[:0]
	for _, m := range matches {
		if m.Similarity >= s.minSimilarity {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
