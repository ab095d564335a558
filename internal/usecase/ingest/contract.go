package ingest

import (
	"context"

	"github.com/main-salman/haqnow-sub003/internal/domain"
)

// DocumentStore reads document text and owns the status transitions.
type DocumentStore interface {
	Get(ctx context.Context, id string) (domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.ProcessingStatus, lastErr string) error
	ListIDs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
}

// Chunker splits document text into chunks.
type Chunker interface {
	Chunk(documentID, text string) []domain.Chunk
}

// Embedder vectorizes chunk texts in batch.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// ChunkStore persists chunk sets and pins the model identity.
type ChunkStore interface {
	EnsureModelVersion(ctx context.Context, model string) error
	UpsertChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
	DeleteChunks(ctx context.Context, documentID string) error
}
