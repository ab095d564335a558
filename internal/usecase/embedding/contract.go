package embedding

import (
	"context"

	"github.com/main-salman/haqnow-sub003/internal/domain"
)

// Provider is the transport-level embedding backend.
type Provider interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
	HealthCheck(ctx context.Context) error
}
