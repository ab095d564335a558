package analytics

import (
	"strconv"
	"strings"
	"time"

	"github.com/main-salman/haqnow-sub003/internal/domain"
)

// citedSeparator joins document IDs in the hash field. IDs never contain
// newlines, unlike commas which are legal in external identifiers.
const citedSeparator = "\n"

func buildHashFields(rec *domain.QueryRecord) map[string]string {
	return map[string]string{
		"question":    rec.Question,
		"document_id": rec.DocumentID,
		"answer":      rec.Answer,
		"cited":       strings.Join(rec.CitedDocIDs, citedSeparator),
		"outcome":     string(rec.Outcome),
		"latency_ms":  strconv.FormatInt(rec.Latency.Milliseconds(), 10),
		"created_at":  strconv.FormatInt(rec.CreatedAt.Unix(), 10),
	}
}

func parseHashFields(id string, m map[string]string) domain.QueryRecord {
	rec := domain.QueryRecord{
		ID:         id,
		Question:   m["question"],
		DocumentID: m["document_id"],
		Answer:     m["answer"],
		Outcome:    domain.QueryOutcome(m["outcome"]),
	}
	if m["cited"] != "" {
		rec.CitedDocIDs = strings.Split(m["cited"], citedSeparator)
	}
	if ms, err := strconv.ParseInt(m["latency_ms"], 10, 64); err == nil {
		rec.Latency = time.Duration(ms) * time.Millisecond
	}
	if ts, err := strconv.ParseInt(m["created_at"], 10, 64); err == nil {
		rec.CreatedAt = time.Unix(ts, 0).UTC()
	}
	return rec
}
