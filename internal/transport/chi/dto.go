package chi

import (
	"time"

	"github.com/main-salman/haqnow-sub003/internal/domain"
	healthuc "github.com/main-salman/haqnow-sub003/internal/usecase/health"
	ingestuc "github.com/main-salman/haqnow-sub003/internal/usecase/ingest"
)

// Error codes returned in ErrorResponse.Code.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeDocumentNotFound  = "document_not_found"
	codeModelMismatch     = "model_mismatch"
	codeModelUnavailable  = "model_unavailable"
	codeStoreUnavailable  = "store_unavailable"
	codeGenerationFailed  = "generation_failed"
	codeServiceDegraded   = "service_degraded"
	codeNoExtractableText = "no_extractable_text"
	codeInternalError     = "internal_error"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question   string `json:"question"`
	DocumentID string `json:"document_id,omitempty"`
	TopK       int    `json:"top_k,omitempty"`
}

// SourceResponse is one citation in an answer.
type SourceResponse struct {
	DocumentID string  `json:"document_id"`
	Seq        int     `json:"seq"`
	Excerpt    string  `json:"excerpt,omitempty"`
	Score      float64 `json:"score"`
}

// AskResponse is the body of a successful POST /ask.
type AskResponse struct {
	Answer    string           `json:"answer"`
	Sources   []SourceResponse `json:"sources"`
	Grounding string           `json:"grounding"`
}

// PutDocumentRequest is the body of PUT /documents/{documentID}.
type PutDocumentRequest struct {
	Text string `json:"text"`
}

// DocumentResponse is the status view of a stored document.
type DocumentResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IngestBatchRequest is the body of POST /ingest. An empty document ID list
// means "every document that still needs ingestion".
type IngestBatchRequest struct {
	DocumentIDs []string `json:"document_ids,omitempty"`
}

// IngestResultResponse is the outcome of ingesting one document.
type IngestResultResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
	Error      string `json:"error,omitempty"`
}

// IngestAcceptedResponse acknowledges a background batch ingestion.
type IngestAcceptedResponse struct {
	Accepted int `json:"accepted"`
}

// ChunkResponse is one indexed chunk, vector omitted.
type ChunkResponse struct {
	Seq       int       `json:"seq"`
	Text      string    `json:"text"`
	CharCount int       `json:"char_count"`
	CreatedAt time.Time `json:"created_at"`
}

// ChunkListResponse is a document's indexed chunk set.
type ChunkListResponse struct {
	DocumentID string          `json:"document_id"`
	Chunks     []ChunkResponse `json:"chunks"`
}

// HealthResponse reports the service verdict and per-dependency checks.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Checks    map[string]CheckStatus `json:"checks"`
	CheckedAt time.Time              `json:"checked_at,omitempty"`
}

// CheckStatus is the state of a single dependency.
type CheckStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// StatsResponse is the body of GET /analytics.
type StatsResponse struct {
	TotalQuestions int64               `json:"total_questions"`
	AvgLatencyMS   int64               `json:"avg_latency_ms"`
	MostCited      []CitationsResponse `json:"most_cited"`
	Recent         []QueryItemResponse `json:"recent"`
}

// CitationsResponse is one entry of the most-cited ranking.
type CitationsResponse struct {
	DocumentID string `json:"document_id"`
	Citations  int64  `json:"citations"`
}

// QueryItemResponse is one recorded question.
type QueryItemResponse struct {
	ID          string    `json:"id"`
	Question    string    `json:"question"`
	DocumentID  string    `json:"document_id,omitempty"`
	Answer      string    `json:"answer,omitempty"`
	CitedDocIDs []string  `json:"cited_doc_ids,omitempty"`
	Outcome     string    `json:"outcome"`
	LatencyMS   int64     `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

func answerToResponse(ans domain.Answer) AskResponse {
	sources := make([]SourceResponse, len(ans.Sources))
	for i, src := range ans.Sources {
		sources[i] = SourceResponse{
			DocumentID: src.DocumentID,
			Seq:        src.Seq,
			Excerpt:    src.Excerpt,
			Score:      src.Score,
		}
	}
	return AskResponse{
		Answer:    ans.Text,
		Sources:   sources,
		Grounding: string(ans.Grounding),
	}
}

func documentToResponse(doc domain.Document) DocumentResponse {
	return DocumentResponse{
		ID:        doc.ID,
		Status:    string(doc.Status),
		LastError: doc.LastError,
		UpdatedAt: doc.UpdatedAt,
	}
}

func ingestResultToResponse(res ingestuc.Result) IngestResultResponse {
	out := IngestResultResponse{
		DocumentID: res.DocumentID,
		Status:     string(res.Status),
		ChunkCount: res.ChunkCount,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

func chunksToResponse(documentID string, chs []domain.Chunk) ChunkListResponse {
	out := ChunkListResponse{DocumentID: documentID, Chunks: make([]ChunkResponse, len(chs))}
	for i, ch := range chs {
		out.Chunks[i] = ChunkResponse{
			Seq:       ch.Seq,
			Text:      ch.Text,
			CharCount: ch.CharCount,
			CreatedAt: ch.CreatedAt,
		}
	}
	return out
}

func snapshotToResponse(snap healthuc.Snapshot) HealthResponse {
	checks := make(map[string]CheckStatus, len(snap.Checks))
	for name, check := range snap.Checks {
		checks[name] = CheckStatus{Status: string(check.State), Error: check.Err}
	}
	return HealthResponse{
		Status:    string(snap.Status),
		Checks:    checks,
		CheckedAt: snap.CheckedAt,
	}
}

func statsToResponse(stats domain.QueryStats) StatsResponse {
	cited := make([]CitationsResponse, len(stats.MostCited))
	for i, c := range stats.MostCited {
		cited[i] = CitationsResponse{DocumentID: c.DocumentID, Citations: c.Citations}
	}
	recent := make([]QueryItemResponse, len(stats.Recent))
	for i, rec := range stats.Recent {
		recent[i] = QueryItemResponse{
			ID:          rec.ID,
			Question:    rec.Question,
			DocumentID:  rec.DocumentID,
			Answer:      rec.Answer,
			CitedDocIDs: rec.CitedDocIDs,
			Outcome:     string(rec.Outcome),
			LatencyMS:   rec.Latency.Milliseconds(),
			CreatedAt:   rec.CreatedAt,
		}
	}
	return StatsResponse{
		TotalQuestions: stats.TotalQuestions,
		AvgLatencyMS:   stats.AvgLatency.Milliseconds(),
		MostCited:      cited,
		Recent:         recent,
	}
}
