// Package embedding owns access to the local embedding model: lazy startup,
// capped concurrency, per-call timeouts, and the unavailable state.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/main-salman/haqnow-sub003/internal/domain"
)

// Service serializes access to the embedding model. The local runtime loads
// the model on first use and thrashes when hammered concurrently, so calls
// pass through a semaphore sized to what the runtime can actually serve.
type Service struct {
	provider Provider
	timeout  time.Duration
	maxBatch int
	sem      chan struct{}
	logger   *zap.Logger

	mu      sync.Mutex
	ready   bool
	lastErr error
}

// Config holds embedding service settings.
type Config struct {
	Timeout       time.Duration
	MaxConcurrent int
	MaxBatchSize  int
}

// New creates an embedding service.
func New(provider Provider, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 64
	}
	return &Service{
		provider: provider,
		timeout:  cfg.Timeout,
		maxBatch: cfg.MaxBatchSize,
		sem:      make(chan struct{}, cfg.MaxConcurrent),
		logger:   logger,
	}
}

// Embed vectorizes one text.
func (s *Service) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := s.ensureReady(ctx); err != nil {
		return domain.EmbeddingResult{}, err
	}

	if err := s.acquire(ctx); err != nil {
		return domain.EmbeddingResult{}, err
	}
	defer s.release()

	ctx, cancel := s.callContext(ctx)
	defer cancel()

	result, err := s.provider.Embed(ctx, text)
	if err != nil {
		// a dimension mismatch is a config problem, not an outage
		if !errors.Is(err, domain.ErrModelMismatch) {
			s.markUnavailable(err)
		}
		return domain.EmbeddingResult{}, s.wrapErr(err)
	}
	return result, nil
}

// BatchEmbed vectorizes texts in input order, splitting oversized batches
// into runtime-sized requests.
func (s *Service) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	if err := s.ensureReady(ctx); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	if err := s.acquire(ctx); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	defer s.release()

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for start := 0; start < len(texts); start += s.maxBatch {
		end := min(start+s.maxBatch, len(texts))

		part, err := s.embedBatch(ctx, texts[start:end])
		if err != nil {
			if !errors.Is(err, domain.ErrModelMismatch) {
				s.markUnavailable(err)
			}
			return domain.BatchEmbeddingResult{}, s.wrapErr(err)
		}

		out.Embeddings = append(out.Embeddings, part.Embeddings...)
		out.PromptTokens += part.PromptTokens
		out.TotalTokens += part.TotalTokens
	}
	return out, nil
}

// HealthCheck probes the model runtime and updates the availability state.
func (s *Service) HealthCheck(ctx context.Context) error {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	if err := s.provider.HealthCheck(ctx); err != nil {
		s.markUnavailable(err)
		return fmt.Errorf("%w: %w", domain.ErrModelUnavailable, err)
	}

	s.mu.Lock()
	s.ready = true
	s.lastErr = nil
	s.mu.Unlock()
	return nil
}

// embedBatch runs one provider call under the per-call timeout.
func (s *Service) embedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	ctx, cancel := s.callContext(ctx)
	defer cancel()
	return s.provider.BatchEmbed(ctx, texts)
}

// ensureReady lazily probes the runtime on first use. A runtime that was
// marked unavailable is re-probed so recovery does not require a restart.
func (s *Service) ensureReady(ctx context.Context) error {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()
	if ready {
		return nil
	}

	if err := s.HealthCheck(ctx); err != nil {
		s.logger.Warn("Embedding model unavailable", zap.Error(err))
		return err
	}
	s.logger.Info("Embedding model ready")
	return nil
}

func (s *Service) markUnavailable(err error) {
	s.mu.Lock()
	s.ready = false
	s.lastErr = err
	s.mu.Unlock()
}

// LastError returns the most recent availability failure, nil when ready.
func (s *Service) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	return s.lastErr
}

func (s *Service) wrapErr(err error) error {
	if errors.Is(err, domain.ErrModelUnavailable) || errors.Is(err, domain.ErrModelMismatch) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrModelUnavailable, err)
}

func (s *Service) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for embedding slot: %w", ctx.Err())
	}
}

func (s *Service) release() {
	<-s.sem
}

func (s *Service) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
