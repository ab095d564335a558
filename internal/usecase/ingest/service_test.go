package ingest

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/main-salman/haqnow-sub003/internal/chunker"
	"github.com/main-salman/haqnow-sub003/internal/domain"
	"github.com/main-salman/haqnow-sub003/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterRAGMetrics()
	os.Exit(m.Run())
}

type mockDocs struct {
	mu       sync.Mutex
	texts    map[string]string
	statuses map[string]domain.ProcessingStatus
	lastErrs map[string]string
	getErr   error
}

func newMockDocs(texts map[string]string) *mockDocs {
	return &mockDocs{
		texts:    texts,
		statuses: make(map[string]domain.ProcessingStatus),
		lastErrs: make(map[string]string),
	}
}

func (m *mockDocs) Get(_ context.Context, id string) (domain.Document, error) {
	if m.getErr != nil {
		return domain.Document{}, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.texts[id]
	if !ok {
		return domain.Document{}, domain.ErrDocumentNotFound
	}
	status, ok := m.statuses[id]
	if !ok {
		status = domain.StatusUnprocessed
	}
	return domain.Document{ID: id, Text: text, Status: status}, nil
}

func (m *mockDocs) UpdateStatus(_ context.Context, id string, status domain.ProcessingStatus, lastErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = status
	m.lastErrs[id] = lastErr
	return nil
}

func (m *mockDocs) ListIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.texts))
	for id := range m.texts {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *mockDocs) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.texts, id)
	return nil
}

func (m *mockDocs) status(id string) domain.ProcessingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[id]
}

func (m *mockDocs) lastErr(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErrs[id]
}

type mockEmbedder struct {
	err      error
	inFlight int32
	maxSeen  int32
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	n := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&m.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&m.maxSeen, seen, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = []float32{0.1, 0.2}
	}
	return domain.BatchEmbeddingResult{Embeddings: embeddings}, nil
}

type mockChunks struct {
	mu        sync.Mutex
	upserts   map[string][]domain.Chunk
	upsertErr error
	modelErr  error
	models    []string
}

func newMockChunks() *mockChunks {
	return &mockChunks{upserts: make(map[string][]domain.Chunk)}
}

func (m *mockChunks) EnsureModelVersion(_ context.Context, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models = append(m.models, model)
	return m.modelErr
}

func (m *mockChunks) UpsertChunks(_ context.Context, documentID string, chs []domain.Chunk) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts[documentID] = chs
	return nil
}

func (m *mockChunks) DeleteChunks(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.upserts, documentID)
	return nil
}

func (m *mockChunks) stored(id string) []domain.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts[id]
}

func newTestService(docs *mockDocs, emb *mockEmbedder, chs *mockChunks, workers int) *Service {
	ck := chunker.New(100, 10, 30)
	return New(docs, ck, emb, chs, "nomic-embed-text", workers, zap.NewNop())
}

func TestIngestDocument_HappyPath(t *testing.T) {
	docs := newMockDocs(map[string]string{
		"doc-1": strings.Repeat("An archived sentence about records. ", 10),
	})
	chs := newMockChunks()
	s := newTestService(docs, &mockEmbedder{}, chs, 1)

	res, err := s.IngestDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.StatusIndexed {
		t.Errorf("unexpected status: %s", res.Status)
	}
	if docs.status("doc-1") != domain.StatusIndexed {
		t.Errorf("expected stored status indexed, got %s", docs.status("doc-1"))
	}

	stored := chs.stored("doc-1")
	if len(stored) == 0 {
		t.Fatal("expected chunks stored")
	}
	if res.ChunkCount != len(stored) {
		t.Errorf("chunk count %d != stored %d", res.ChunkCount, len(stored))
	}
	for i, ch := range stored {
		if len(ch.Vector) == 0 {
			t.Errorf("chunk %d has no vector", i)
		}
		if ch.CreatedAt.IsZero() {
			t.Errorf("chunk %d has no created_at", i)
		}
	}
	if len(chs.models) != 1 || chs.models[0] != "nomic-embed-text" {
		t.Errorf("expected model identity pinned, got %v", chs.models)
	}
}

func TestIngestDocument_EmptyTextFails(t *testing.T) {
	docs := newMockDocs(map[string]string{"doc-5": "   \n  "})
	chs := newMockChunks()
	s := newTestService(docs, &mockEmbedder{}, chs, 1)

	_, err := s.IngestDocument(context.Background(), "doc-5")
	if !errors.Is(err, domain.ErrNoExtractableText) {
		t.Fatalf("expected ErrNoExtractableText, got %v", err)
	}
	if docs.status("doc-5") != domain.StatusFailed {
		t.Errorf("expected status failed, got %s", docs.status("doc-5"))
	}
	if docs.lastErr("doc-5") == "" {
		t.Error("expected failure reason recorded")
	}
	if len(chs.stored("doc-5")) != 0 {
		t.Error("expected no chunks stored for empty document")
	}
}

func TestIngestDocument_NotFound(t *testing.T) {
	docs := newMockDocs(map[string]string{})
	s := newTestService(docs, &mockEmbedder{}, newMockChunks(), 1)

	_, err := s.IngestDocument(context.Background(), "missing")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestIngestDocument_EmbedFailure(t *testing.T) {
	docs := newMockDocs(map[string]string{"doc-1": "Some archived text for the pipeline."})
	chs := newMockChunks()
	emb := &mockEmbedder{err: domain.ErrModelUnavailable}
	s := newTestService(docs, emb, chs, 1)

	_, err := s.IngestDocument(context.Background(), "doc-1")
	if !errors.Is(err, domain.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if docs.status("doc-1") != domain.StatusFailed {
		t.Errorf("expected status failed, got %s", docs.status("doc-1"))
	}
	if len(chs.stored("doc-1")) != 0 {
		t.Error("expected no chunks stored after embed failure")
	}
}

func TestIngestDocument_ModelMismatchAborts(t *testing.T) {
	docs := newMockDocs(map[string]string{"doc-1": "Some archived text for the pipeline."})
	chs := newMockChunks()
	chs.modelErr = domain.ErrModelMismatch
	s := newTestService(docs, &mockEmbedder{}, chs, 1)

	_, err := s.IngestDocument(context.Background(), "doc-1")
	if !errors.Is(err, domain.ErrModelMismatch) {
		t.Fatalf("expected ErrModelMismatch, got %v", err)
	}
	if len(chs.stored("doc-1")) != 0 {
		t.Error("expected no chunks stored on model mismatch")
	}
}

func TestIngestDocument_StoreFailure(t *testing.T) {
	docs := newMockDocs(map[string]string{"doc-1": "Some archived text for the pipeline."})
	chs := newMockChunks()
	chs.upsertErr = domain.ErrStoreUnavailable
	s := newTestService(docs, &mockEmbedder{}, chs, 1)

	_, err := s.IngestDocument(context.Background(), "doc-1")
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if docs.status("doc-1") != domain.StatusFailed {
		t.Errorf("expected status failed, got %s", docs.status("doc-1"))
	}
}

func TestIngestBatch_FailuresDoNotAbort(t *testing.T) {
	texts := make(map[string]string)
	ids := make([]string, 0, 10)
	for _, id := range []string{"d0", "d1", "d2", "d3", "d4", "d5", "d6", "d7", "d8", "d9"} {
		texts[id] = "Archived text for document " + id + " with enough words."
		ids = append(ids, id)
	}
	texts["d5"] = "   " // empty text, must fail

	docs := newMockDocs(texts)
	chs := newMockChunks()
	s := newTestService(docs, &mockEmbedder{}, chs, 4)

	results := s.IngestBatch(context.Background(), ids)
	if len(results) != 10 {
		t.Fatalf("expected 10 results, got %d", len(results))
	}

	indexed, failed := 0, 0
	for _, res := range results {
		switch res.Status {
		case domain.StatusIndexed:
			indexed++
		case domain.StatusFailed:
			failed++
			if res.DocumentID != "d5" {
				t.Errorf("unexpected failed document: %s", res.DocumentID)
			}
			if !errors.Is(res.Err, domain.ErrNoExtractableText) {
				t.Errorf("unexpected failure: %v", res.Err)
			}
		}
	}
	if indexed != 9 || failed != 1 {
		t.Errorf("expected 9 indexed and 1 failed, got %d/%d", indexed, failed)
	}
	if docs.status("d5") != domain.StatusFailed {
		t.Errorf("expected d5 failed, got %s", docs.status("d5"))
	}
	if docs.status("d0") != domain.StatusIndexed {
		t.Errorf("expected d0 indexed, got %s", docs.status("d0"))
	}
}

func TestIngestBatch_BoundedWorkers(t *testing.T) {
	texts := make(map[string]string)
	var ids []string
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		texts[id] = "Archived text for " + id + "."
		ids = append(ids, id)
	}

	docs := newMockDocs(texts)
	emb := &mockEmbedder{}
	s := newTestService(docs, emb, newMockChunks(), 2)

	s.IngestBatch(context.Background(), ids)

	if got := atomic.LoadInt32(&emb.maxSeen); got > 2 {
		t.Errorf("expected at most 2 concurrent embeds, saw %d", got)
	}
}

func TestIngestBatch_ResultsInInputOrder(t *testing.T) {
	docs := newMockDocs(map[string]string{
		"x": "Text for x.", "y": "Text for y.", "z": "Text for z.",
	})
	s := newTestService(docs, &mockEmbedder{}, newMockChunks(), 3)

	results := s.IngestBatch(context.Background(), []string{"z", "x", "y"})
	if results[0].DocumentID != "z" || results[1].DocumentID != "x" || results[2].DocumentID != "y" {
		t.Errorf("expected input order preserved, got %+v", results)
	}
}

func TestIngestDocument_Idempotent(t *testing.T) {
	docs := newMockDocs(map[string]string{"doc-1": "Stable archived text."})
	chs := newMockChunks()
	s := newTestService(docs, &mockEmbedder{}, chs, 1)

	first, err := s.IngestDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.IngestDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ChunkCount != second.ChunkCount {
		t.Errorf("expected identical chunk counts, got %d then %d", first.ChunkCount, second.ChunkCount)
	}

	stored := chs.stored("doc-1")
	if len(stored) != second.ChunkCount {
		t.Errorf("expected chunk set replaced, got %d stored", len(stored))
	}
	for i, ch := range stored {
		if ch.Seq != i {
			t.Errorf("chunk %d has seq %d", i, ch.Seq)
		}
	}
}

func TestIngestAll_OnlyPendingDocuments(t *testing.T) {
	docs := newMockDocs(map[string]string{
		"fresh":  "Never processed archived text.",
		"done":   "Already indexed archived text.",
		"broken": "Previously failed archived text.",
	})
	docs.statuses["done"] = domain.StatusIndexed
	docs.statuses["broken"] = domain.StatusFailed
	chs := newMockChunks()
	s := newTestService(docs, &mockEmbedder{}, chs, 2)

	results, err := s.IngestAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(results), results)
	}
	for _, res := range results {
		if res.DocumentID == "done" {
			t.Errorf("indexed document was reprocessed: %+v", res)
		}
		if res.Status != domain.StatusIndexed {
			t.Errorf("expected %s indexed, got %s", res.DocumentID, res.Status)
		}
	}
	if len(chs.stored("done")) != 0 {
		t.Error("expected indexed document's chunks untouched")
	}
	if docs.status("fresh") != domain.StatusIndexed || docs.status("broken") != domain.StatusIndexed {
		t.Errorf("expected pending documents indexed, got fresh=%s broken=%s",
			docs.status("fresh"), docs.status("broken"))
	}
}

func TestRemoveDocument(t *testing.T) {
	docs := newMockDocs(map[string]string{"doc-1": "Text."})
	chs := newMockChunks()
	chs.upserts["doc-1"] = []domain.Chunk{{DocumentID: "doc-1", Seq: 0}}
	s := newTestService(docs, &mockEmbedder{}, chs, 1)

	if err := s.RemoveDocument(context.Background(), "doc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chs.stored("doc-1")) != 0 {
		t.Error("expected chunks removed")
	}
	if _, err := docs.Get(context.Background(), "doc-1"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Error("expected document removed")
	}
}
