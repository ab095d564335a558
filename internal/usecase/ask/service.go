// Package ask is the question-answering entrypoint: it gates on health,
// retrieves grounding, drives generation, and records exactly one query
// record per completed question.
package ask

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/main-salman/haqnow-sub003/internal/domain"
	"github.com/main-salman/haqnow-sub003/internal/metrics"
)

// Service answers questions over the indexed archive.
type Service struct {
	health    Health
	retriever Retriever
	answerer  Answerer
	recorder  Recorder
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// New creates an ask service.
func New(health Health, retriever Retriever, answerer Answerer, recorder Recorder, logger *zap.Logger) *Service {
	return &Service{
		health:    health,
		retriever: retriever,
		answerer:  answerer,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Ask answers one question. documentID, when non-empty, scopes retrieval to
// a single document; topK <= 0 uses the configured default.
//
// The store or the embedding model being down fails fast with
// ErrServiceDegraded. Only the generation model being down produces a
// degraded answer: sources without generated text.
func (s *Service) Ask(ctx context.Context, question string, documentID string, topK int) (domain.Answer, error) {
	start := s.now()

	if !s.health.CanRetrieve() {
		err := fmt.Errorf("retrieval dependencies are down: %w", domain.ErrServiceDegraded)
		s.finish(question, documentID, domain.Answer{}, domain.OutcomeFailed, start)
		return domain.Answer{}, err
	}

	matches, err := s.retriever.Retrieve(ctx, question, topK, documentID)
	if err != nil {
		s.finish(question, documentID, domain.Answer{}, domain.OutcomeFailed, start)
		return domain.Answer{}, fmt.Errorf("retrieve: %w", err)
	}

	var ans domain.Answer
	if len(matches) > 0 && !s.health.CanGenerate() {
		ans = s.answerer.Degraded(matches)
	} else {
		ans, err = s.answerer.Answer(ctx, question, matches)
		if err != nil {
			s.finish(question, documentID, domain.Answer{}, domain.OutcomeFailed, start)
			return domain.Answer{}, err
		}
	}

	s.finish(question, documentID, ans, outcomeOf(ans), start)
	return ans, nil
}

// finish records the single query record for this question and the metrics
// that go with it.
func (s *Service) finish(question, documentID string, ans domain.Answer, outcome domain.QueryOutcome, start time.Time) {
	latency := s.now().Sub(start)

	metrics.QuestionsTotal.WithLabelValues(string(outcome)).Inc()
	metrics.QuestionDuration.Observe(latency.Seconds())

	s.recorder.Record(domain.QueryRecord{
		ID:          s.newID(),
		Question:    question,
		DocumentID:  documentID,
		Answer:      ans.Text,
		CitedDocIDs: citedDocs(ans.Sources),
		Outcome:     outcome,
		Latency:     latency,
		CreatedAt:   start.UTC(),
	})
}

func outcomeOf(ans domain.Answer) domain.QueryOutcome {
	if ans.Grounding == domain.GroundingDegraded {
		return domain.OutcomeDegraded
	}
	return domain.OutcomeAnswered
}

// citedDocs returns the unique cited document IDs in source order.
func citedDocs(sources []domain.Source) []string {
	if len(sources) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(sources))
	ids := make([]string, 0, len(sources))
	for _, src := range sources {
		if seen[src.DocumentID] {
			continue
		}
		seen[src.DocumentID] = true
		ids = append(ids, src.DocumentID)
	}
	return ids
}
