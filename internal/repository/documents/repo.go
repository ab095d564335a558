// Package documents persists the RAG-side view of archived documents: the
// raw text plus the ingestion status owned by the orchestrator.
package documents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/main-salman/haqnow-sub003/internal/db"
	"github.com/main-salman/haqnow-sub003/internal/domain"
)

const docKeyPrefix = domain.KeyPrefix + "doc:"

// store is the consumer interface for document persistence (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements document storage over Redis hashes.
type Repo struct {
	store store
	now   func() time.Time
}

// New creates a document repository.
func New(s store) *Repo {
	return &Repo{store: s, now: time.Now}
}

// Put creates or replaces a document's text and resets its status to
// unprocessed, so the next ingestion run picks it up.
func (r *Repo) Put(ctx context.Context, id, text string) error {
	doc := domain.Document{
		ID:        id,
		Text:      text,
		Status:    domain.StatusUnprocessed,
		UpdatedAt: r.now().UTC(),
	}
	if err := r.store.HSet(ctx, docKey(id), buildHashFields(&doc)); err != nil {
		return storeErr(fmt.Errorf("put document %s: %w", id, err))
	}
	return nil
}

// Get returns a document by ID.
func (r *Repo) Get(ctx context.Context, id string) (domain.Document, error) {
	m, err := r.store.HGetAll(ctx, docKey(id))
	if err != nil {
		return domain.Document{}, storeErr(fmt.Errorf("get document %s: %w", id, err))
	}
	if len(m) == 0 {
		return domain.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrDocumentNotFound)
	}
	return parseHashFields(id, m), nil
}

// Exists reports whether a document is stored.
func (r *Repo) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := r.store.Exists(ctx, docKey(id))
	if err != nil {
		return false, storeErr(fmt.Errorf("exists document %s: %w", id, err))
	}
	return ok, nil
}

// UpdateStatus records an ingestion state transition. lastErr is kept only
// for failed documents and cleared otherwise.
func (r *Repo) UpdateStatus(ctx context.Context, id string, status domain.ProcessingStatus, lastErr string) error {
	ok, err := r.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrDocumentNotFound)
	}

	if status != domain.StatusFailed {
		lastErr = ""
	}
	fields := map[string]string{
		"status":     string(status),
		"last_error": lastErr,
		"updated_at": strconv.FormatInt(r.now().UTC().Unix(), 10),
	}
	if err := r.store.HSet(ctx, docKey(id), fields); err != nil {
		return storeErr(fmt.Errorf("update status %s: %w", id, err))
	}
	return nil
}

// Delete removes a document.
func (r *Repo) Delete(ctx context.Context, id string) error {
	ok, err := r.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrDocumentNotFound)
	}
	if err := r.store.Del(ctx, docKey(id)); err != nil {
		return storeErr(fmt.Errorf("delete document %s: %w", id, err))
	}
	return nil
}

// ListIDs returns all stored document IDs in lexical order.
func (r *Repo) ListIDs(ctx context.Context) ([]string, error) {
	keys, err := r.store.Scan(ctx, docKeyPrefix+"*")
	if err != nil {
		return nil, storeErr(fmt.Errorf("scan documents: %w", err))
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, docKeyPrefix))
	}
	sort.Strings(ids)
	return ids, nil
}

func docKey(id string) string {
	return docKeyPrefix + id
}

func storeErr(err error) error {
	var dbErr *db.Error
	if errors.As(err, &dbErr) {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return err
}

func buildHashFields(doc *domain.Document) map[string]string {
	return map[string]string{
		"text":       doc.Text,
		"status":     string(doc.Status),
		"last_error": doc.LastError,
		"updated_at": strconv.FormatInt(doc.UpdatedAt.Unix(), 10),
	}
}

func parseHashFields(id string, m map[string]string) domain.Document {
	doc := domain.Document{
		ID:        id,
		Text:      m["text"],
		Status:    domain.ProcessingStatus(m["status"]),
		LastError: m["last_error"],
	}
	if ts, err := strconv.ParseInt(m["updated_at"], 10, 64); err == nil {
		doc.UpdatedAt = time.Unix(ts, 0).UTC()
	}
	if doc.Status == "" {
		doc.Status = domain.StatusUnprocessed
	}
	return doc
}
