// Package health tracks dependency readiness and gates request handling on
// it, so failures are reported before work is attempted rather than as
// timeouts mid-pipeline.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the readiness of one dependency.
type State string

// Dependency states. Everything starts initializing and moves to ready or
// unavailable after the first probe.
const (
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateUnavailable  State = "unavailable"
	// StateDegraded applies only to the service verdict, never to a single
	// dependency: retrieval works but generation is down.
	StateDegraded State = "degraded"
)

// Component names used in snapshots.
const (
	ComponentStore      = "store"
	ComponentEmbedding  = "embedding"
	ComponentGeneration = "generation"
)

// Check is one dependency's probed state.
type Check struct {
	State State
	Err   string
}

// Snapshot is a point-in-time view of all dependencies plus the service
// verdict derived from them.
type Snapshot struct {
	Status    State
	Checks    map[string]Check
	CheckedAt time.Time
}

// Service probes the store and both models on an interval and serves cached
// snapshots. Answering is possible without the generation model (degraded,
// sources only) but not without the store or the embedding model.
type Service struct {
	store        StorePinger
	embedding    ModelChecker
	generation   ModelChecker
	interval     time.Duration
	probeTimeout time.Duration
	logger       *zap.Logger

	mu       sync.RWMutex
	snapshot Snapshot
}

// New creates a health service. The snapshot starts all-initializing until
// the first probe completes.
func New(
	store StorePinger, embedding, generation ModelChecker,
	interval, probeTimeout time.Duration, logger *zap.Logger,
) *Service {
	return &Service{
		store:        store,
		embedding:    embedding,
		generation:   generation,
		interval:     interval,
		probeTimeout: probeTimeout,
		logger:       logger,
		snapshot: Snapshot{
			Status: StateInitializing,
			Checks: map[string]Check{
				ComponentStore:      {State: StateInitializing},
				ComponentEmbedding:  {State: StateInitializing},
				ComponentGeneration: {State: StateInitializing},
			},
		},
	}
}

// Run probes immediately and then on every interval tick until ctx is done.
func (s *Service) Run(ctx context.Context) {
	s.Refresh(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Refresh probes all dependencies concurrently and replaces the snapshot.
func (s *Service) Refresh(ctx context.Context) Snapshot {
	checks := map[string]Check{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	probe := func(name string, fn func(context.Context) error) {
		defer wg.Done()

		pctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
		defer cancel()

		check := Check{State: StateReady}
		if err := fn(pctx); err != nil {
			check = Check{State: StateUnavailable, Err: err.Error()}
			s.logger.Warn("Dependency probe failed", zap.String("component", name), zap.Error(err))
		}

		mu.Lock()
		checks[name] = check
		mu.Unlock()
	}

	wg.Add(3)
	go probe(ComponentStore, s.store.Ping)
	go probe(ComponentEmbedding, s.embedding.HealthCheck)
	go probe(ComponentGeneration, s.generation.HealthCheck)
	wg.Wait()

	snap := Snapshot{
		Status:    verdict(checks),
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	return snap
}

// Snapshot returns the last probed state without touching any dependency.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// CanRetrieve reports whether question answering can reach retrieval: both
// the store and the embedding model must be up.
func (s *Service) CanRetrieve() bool {
	snap := s.Snapshot()
	return snap.Checks[ComponentStore].State == StateReady &&
		snap.Checks[ComponentEmbedding].State == StateReady
}

// CanGenerate reports whether the generation model is up.
func (s *Service) CanGenerate() bool {
	return s.Snapshot().Checks[ComponentGeneration].State == StateReady
}

// verdict derives the service state: unavailable when retrieval is
// impossible, degraded when only generation is down.
func verdict(checks map[string]Check) State {
	store := checks[ComponentStore].State
	embedding := checks[ComponentEmbedding].State
	generation := checks[ComponentGeneration].State

	if store == StateInitializing || embedding == StateInitializing {
		return StateInitializing
	}
	if store == StateUnavailable || embedding == StateUnavailable {
		return StateUnavailable
	}
	if generation != StateReady {
		return StateDegraded
	}
	return StateReady
}
