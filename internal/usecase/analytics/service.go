// Package analytics records completed questions and reports usage
// aggregates. Recording is fire-and-forget: the answer path never waits on
// the analytics write and never fails because of it.
package analytics

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/main-salman/haqnow-sub003/internal/domain"
)

// writeTimeout bounds the detached analytics write.
const writeTimeout = 5 * time.Second

// Service handles query-record writes and stats reads.
type Service struct {
	repo           Repository
	recentLimit    int
	mostCitedLimit int
	logger         *zap.Logger
}

// New creates an analytics service.
func New(repo Repository, recentLimit, mostCitedLimit int, logger *zap.Logger) *Service {
	return &Service{
		repo:           repo,
		recentLimit:    recentLimit,
		mostCitedLimit: mostCitedLimit,
		logger:         logger,
	}
}

// Record writes the query record in the background, detached from the
// request context so a response already sent is never held up. A failed
// write costs one analytics entry, never an answer.
func (s *Service) Record(rec domain.QueryRecord) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		if err := s.repo.Append(ctx, &rec); err != nil {
			s.logger.Warn("Failed to record query",
				zap.String("query_id", rec.ID),
				zap.Error(err),
			)
		}
	}()
}

// Stats returns the aggregate usage view.
func (s *Service) Stats(ctx context.Context) (domain.QueryStats, error) {
	return s.repo.Stats(ctx, s.recentLimit, s.mostCitedLimit)
}
