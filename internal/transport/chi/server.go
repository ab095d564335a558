// Package chi exposes the RAG engine over HTTP: question answering,
// document intake, ingestion, health, and analytics.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/main-salman/haqnow-sub003/internal/domain"
	healthuc "github.com/main-salman/haqnow-sub003/internal/usecase/health"
	ingestuc "github.com/main-salman/haqnow-sub003/internal/usecase/ingest"
)

// ingestTimeout bounds a detached background batch ingestion.
const ingestTimeout = 30 * time.Minute

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, question, documentID string, topK int) (domain.Answer, error)
}

// Ingester runs the ingestion pipeline.
type Ingester interface {
	IngestDocument(ctx context.Context, documentID string) (ingestuc.Result, error)
	IngestBatch(ctx context.Context, documentIDs []string) []ingestuc.Result
	IngestAll(ctx context.Context) ([]ingestuc.Result, error)
	RemoveDocument(ctx context.Context, documentID string) error
}

// DocumentStore mirrors extracted document text and exposes status.
type DocumentStore interface {
	Put(ctx context.Context, id, text string) error
	Get(ctx context.Context, id string) (domain.Document, error)
}

// ChunkReader serves a document's indexed chunks.
type ChunkReader interface {
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)
}

// HealthReporter serves the cached dependency snapshot.
type HealthReporter interface {
	Snapshot() healthuc.Snapshot
}

// StatsReader serves aggregate usage analytics.
type StatsReader interface {
	Stats(ctx context.Context) (domain.QueryStats, error)
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers for the RAG API.
type Server struct {
	ask           Asker
	ingest        Ingester
	documents     DocumentStore
	chunks        ChunkReader
	health        HealthReporter
	stats         StatsReader
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	ask Asker,
	ingest Ingester,
	documents DocumentStore,
	chunks ChunkReader,
	health HealthReporter,
	stats StatsReader,
	logger *zap.Logger,
) *Server {
	s := &Server{
		ask:       ask,
		ingest:    ingest,
		documents: documents,
		chunks:    chunks,
		health:    health,
		stats:     stats,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrNoExtractableText, http.StatusUnprocessableEntity, codeNoExtractableText),
		sentinelHandler(domain.ErrModelMismatch, http.StatusBadRequest, codeModelMismatch),
		sentinelHandler(domain.ErrServiceDegraded, http.StatusServiceUnavailable, codeServiceDegraded),
		sentinelHandler(domain.ErrModelUnavailable, http.StatusServiceUnavailable, codeModelUnavailable),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusBadGateway, codeStoreUnavailable),
		sentinelHandler(domain.ErrGenerationFailed, http.StatusBadGateway, codeGenerationFailed),
	}
	return s
}

// RegisterRoutes mounts the API on the given router.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/rag", func(r chi.Router) {
		r.Post("/ask", s.Ask)
		r.Post("/ingest", s.IngestBatch)
		r.Post("/ingest/{documentID}", s.IngestDocument)
		r.Put("/documents/{documentID}", s.PutDocument)
		r.Get("/documents/{documentID}", s.GetDocument)
		r.Get("/documents/{documentID}/chunks", s.GetDocumentChunks)
		r.Delete("/documents/{documentID}", s.DeleteDocument)
		r.Get("/health", s.Health)
		r.Get("/analytics", s.Analytics)
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// Ask handles POST /rag/ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Question is required")
		return
	}

	ans, err := s.ask.Ask(r.Context(), req.Question, req.DocumentID, req.TopK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, answerToResponse(ans))
}

// IngestDocument handles POST /rag/ingest/{documentID}.
func (s *Server) IngestDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")

	res, err := s.ingest.IngestDocument(r.Context(), documentID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ingestResultToResponse(res))
}

// IngestBatch handles POST /rag/ingest. The work runs detached from the
// request: per-document outcomes land on document status, not in the
// response. An empty or absent ID list reprocesses every stored document.
func (s *Server) IngestBatch(w http.ResponseWriter, r *http.Request) {
	var req IngestBatchRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
		defer cancel()

		if len(req.DocumentIDs) > 0 {
			s.ingest.IngestBatch(ctx, req.DocumentIDs)
			return
		}
		if _, err := s.ingest.IngestAll(ctx); err != nil {
			s.logger.Error("Batch ingestion failed to start", zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, IngestAcceptedResponse{Accepted: len(req.DocumentIDs)})
}

// PutDocument handles PUT /rag/documents/{documentID}: the upload pipeline
// delivers extracted text here. Storing resets the processing status, so a
// re-upload is picked up by the next ingestion run.
func (s *Server) PutDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")

	var req PutDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := s.documents.Put(r.Context(), documentID, req.Text); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, DocumentResponse{
		ID:     documentID,
		Status: string(domain.StatusUnprocessed),
	})
}

// GetDocument handles GET /rag/documents/{documentID}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")

	doc, err := s.documents.Get(r.Context(), documentID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, documentToResponse(doc))
}

// GetDocumentChunks handles GET /rag/documents/{documentID}/chunks: the
// indexed chunk set as it stands in the store, in sequence order.
func (s *Server) GetDocumentChunks(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")

	if _, err := s.documents.Get(r.Context(), documentID); err != nil {
		s.handleDomainError(w, err)
		return
	}

	chs, err := s.chunks.GetChunks(r.Context(), documentID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chunksToResponse(documentID, chs))
}

// DeleteDocument handles DELETE /rag/documents/{documentID}: removes the
// document and its indexed chunks.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")

	if err := s.ingest.RemoveDocument(r.Context(), documentID); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /rag/health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	snap := s.health.Snapshot()

	httpStatus := http.StatusOK
	if snap.Status == healthuc.StateUnavailable || snap.Status == healthuc.StateInitializing {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, snapshotToResponse(snap))
}

// Analytics handles GET /rag/analytics.
func (s *Server) Analytics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statsToResponse(stats))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrDocumentNotFound,
		domain.ErrNoExtractableText,
		domain.ErrModelMismatch,
		domain.ErrModelUnavailable,
		domain.ErrStoreUnavailable,
		domain.ErrGenerationFailed,
		domain.ErrServiceDegraded,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
