package domain

import "time"

// QueryOutcome is the terminal state of one question.
type QueryOutcome string

// Query outcome values.
const (
	OutcomeAnswered QueryOutcome = "answered"
	OutcomeDegraded QueryOutcome = "degraded"
	OutcomeFailed   QueryOutcome = "failed"
)

// QueryRecord is one immutable analytics entry, written exactly once per
// completed question after the answer is produced or the failure is final.
type QueryRecord struct {
	ID          string
	Question    string
	DocumentID  string // optional scoping document
	Answer      string
	CitedDocIDs []string
	Outcome     QueryOutcome
	Latency     time.Duration
	CreatedAt   time.Time
}

// QueryStats is the aggregate view over all recorded questions.
type QueryStats struct {
	TotalQuestions int64
	AvgLatency     time.Duration
	MostCited      []DocumentCitations
	Recent         []QueryRecord
}

// DocumentCitations counts how often a document was cited in answers.
type DocumentCitations struct {
	DocumentID string
	Citations  int64
}
