package ask

import (
	"context"

	"github.com/main-salman/haqnow-sub003/internal/domain"
)

// Health gates question handling on dependency readiness.
type Health interface {
	CanRetrieve() bool
	CanGenerate() bool
}

// Retriever finds the chunks a question will be grounded on.
type Retriever interface {
	Retrieve(ctx context.Context, question string, topK int, documentID string) ([]domain.Match, error)
}

// Answerer turns matches into a final answer.
type Answerer interface {
	Answer(ctx context.Context, question string, matches []domain.Match) (domain.Answer, error)
	Degraded(matches []domain.Match) domain.Answer
}

// Recorder persists query records without blocking the caller.
type Recorder interface {
	Record(rec domain.QueryRecord)
}
