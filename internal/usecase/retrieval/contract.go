package retrieval

import (
	"context"

	"github.com/main-salman/haqnow-sub003/internal/domain"
)

// Embedder vectorizes the question text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Searcher runs KNN queries over the chunk index.
type Searcher interface {
	Search(ctx context.Context, vector []float32, k int, documentID string) ([]domain.Match, error)
}
