package domain

import "time"

// ProcessingStatus is the ingestion state of a document.
type ProcessingStatus string

// Processing status values. Transitions are driven only by the ingestion
// orchestrator: unprocessed -> processing -> indexed | failed.
const (
	StatusUnprocessed ProcessingStatus = "unprocessed"
	StatusProcessing  ProcessingStatus = "processing"
	StatusIndexed     ProcessingStatus = "indexed"
	StatusFailed      ProcessingStatus = "failed"
)

// Document is the RAG-side view of an archived document. Text and identity
// come from the external document store; the status fields are owned here.
type Document struct {
	ID        string
	Text      string
	Status    ProcessingStatus
	LastError string
	UpdatedAt time.Time
}

// IsPending reports whether the document still needs (re-)ingestion.
func (d *Document) IsPending() bool {
	return d.Status == StatusUnprocessed || d.Status == StatusFailed
}
