package analytics

import (
	"context"

	"github.com/main-salman/haqnow-sub003/internal/domain"
)

// Repository persists query records and serves aggregates.
type Repository interface {
	Append(ctx context.Context, rec *domain.QueryRecord) error
	Stats(ctx context.Context, recentLimit, mostCitedLimit int) (domain.QueryStats, error)
}
