// Package ingest orchestrates document ingestion: chunk, embed, and index,
// with per-document status tracking.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/main-salman/haqnow-sub003/internal/domain"
	"github.com/main-salman/haqnow-sub003/internal/metrics"
)

// Service drives the ingestion pipeline. Re-running ingestion for an
// already indexed document is safe: the chunk set is replaced wholesale.
type Service struct {
	docs     DocumentStore
	chunker  Chunker
	embedder Embedder
	chunks   ChunkStore
	model    string
	workers  int
	logger   *zap.Logger
	now      func() time.Time
}

// Result is the terminal outcome of ingesting one document.
type Result struct {
	DocumentID string
	Status     domain.ProcessingStatus
	ChunkCount int
	Err        error
}

// New creates an ingestion service. workers bounds batch parallelism.
func New(
	docs DocumentStore, chunker Chunker, embedder Embedder, chunks ChunkStore,
	model string, workers int, logger *zap.Logger,
) *Service {
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		docs:     docs,
		chunker:  chunker,
		embedder: embedder,
		chunks:   chunks,
		model:    model,
		workers:  workers,
		logger:   logger,
		now:      time.Now,
	}
}

// IngestDocument runs the full pipeline for one document:
// processing -> chunk -> embed -> replace chunks -> indexed.
// Any failure leaves the document failed with the error recorded; the
// previously indexed chunk set stays searchable untouched.
func (s *Service) IngestDocument(ctx context.Context, documentID string) (Result, error) {
	start := s.now()

	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return Result{DocumentID: documentID, Status: domain.StatusFailed, Err: err}, err
	}

	if err := s.docs.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return Result{DocumentID: documentID, Status: domain.StatusFailed, Err: err}, err
	}

	count, err := s.index(ctx, &doc)
	if err != nil {
		s.fail(ctx, documentID, err)
		metrics.IngestedDocumentsTotal.WithLabelValues(string(domain.StatusFailed)).Inc()
		return Result{DocumentID: documentID, Status: domain.StatusFailed, Err: err}, err
	}

	if err := s.docs.UpdateStatus(ctx, documentID, domain.StatusIndexed, ""); err != nil {
		return Result{DocumentID: documentID, Status: domain.StatusFailed, Err: err}, err
	}

	metrics.IngestedDocumentsTotal.WithLabelValues(string(domain.StatusIndexed)).Inc()
	metrics.IngestDuration.Observe(s.now().Sub(start).Seconds())

	s.logger.Info("Document indexed",
		zap.String("document_id", documentID),
		zap.Int("chunks", count),
	)
	return Result{DocumentID: documentID, Status: domain.StatusIndexed, ChunkCount: count}, nil
}

// index performs the fallible middle of the pipeline and returns the number
// of chunks written.
func (s *Service) index(ctx context.Context, doc *domain.Document) (int, error) {
	chs := s.chunker.Chunk(doc.ID, doc.Text)
	if len(chs) == 0 {
		return 0, fmt.Errorf("document %s: %w", doc.ID, domain.ErrNoExtractableText)
	}

	texts := make([]string, len(chs))
	for i := range chs {
		texts[i] = chs[i].Text
	}

	batch, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(batch.Embeddings) != len(chs) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks: %w",
			len(batch.Embeddings), len(chs), domain.ErrModelUnavailable)
	}

	if err := s.chunks.EnsureModelVersion(ctx, s.model); err != nil {
		return 0, err
	}

	createdAt := s.now().UTC()
	for i := range chs {
		chs[i].Vector = batch.Embeddings[i]
		chs[i].CreatedAt = createdAt
	}

	if err := s.chunks.UpsertChunks(ctx, doc.ID, chs); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	return len(chs), nil
}

// IngestBatch ingests the documents through a bounded worker pool. One
// document failing never aborts the rest; each result carries its own
// terminal status. Results come back in input order.
func (s *Service) IngestBatch(ctx context.Context, documentIDs []string) []Result {
	results := make([]Result, len(documentIDs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, id := range documentIDs {
		i, id := i, id
		g.Go(func() error {
			res, err := s.IngestDocument(ctx, id)
			if err != nil {
				s.logger.Warn("Document ingestion failed",
					zap.String("document_id", id),
					zap.Error(err),
				)
			}
			results[i] = res
			return nil // failures are per-document, never batch-fatal
		})
	}

	_ = g.Wait()
	return results
}

// IngestAll ingests every pending document. Documents already indexed or
// mid-processing are left alone; only unprocessed and failed ones are picked
// up. A document whose status cannot be read is included so the failure gets
// recorded through the normal pipeline.
func (s *Service) IngestAll(ctx context.Context) ([]Result, error) {
	ids, err := s.docs.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	pending := make([]string, 0, len(ids))
	for _, id := range ids {
		doc, err := s.docs.Get(ctx, id)
		if err != nil {
			pending = append(pending, id)
			continue
		}
		if doc.IsPending() {
			pending = append(pending, id)
		}
	}
	return s.IngestBatch(ctx, pending), nil
}

// RemoveDocument drops a document's chunks from the index and the document
// itself from the store.
func (s *Service) RemoveDocument(ctx context.Context, documentID string) error {
	if err := s.docs.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := s.chunks.DeleteChunks(ctx, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// fail records the failure on the document; the status write itself failing
// is only loggable at this point.
func (s *Service) fail(ctx context.Context, documentID string, cause error) {
	if err := s.docs.UpdateStatus(ctx, documentID, domain.StatusFailed, cause.Error()); err != nil {
		s.logger.Error("Failed to record ingestion failure",
			zap.String("document_id", documentID),
			zap.Error(err),
		)
	}
}
