// Package chunks persists document chunks and their vectors in the store and
// serves KNN similarity queries over them.
package chunks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/main-salman/haqnow-sub003/internal/db"
	"github.com/main-salman/haqnow-sub003/internal/domain"
)

const (
	chunkKeyPrefix = domain.KeyPrefix + "chunk:"
	indexName      = domain.KeyPrefix + "chunks:idx"
	modelMetaKey   = domain.KeyPrefix + "meta:embedding-model"
)

// store is the consumer interface for chunk persistence (ISP).
type store interface {
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	ReplaceHashes(ctx context.Context, delKeys []string, items []db.HashSetItem) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo implements chunk storage over Redis hashes with an FT vector index.
// Store failures are retried once after a short backoff before surfacing
// as ErrStoreUnavailable.
type Repo struct {
	store   store
	dims    int
	backoff time.Duration
}

// New creates a chunk repository. dims is the embedding dimensionality the
// vector index is created with.
func New(s store, dims int, backoff time.Duration) *Repo {
	return &Repo{store: s, dims: dims, backoff: backoff}
}

// EnsureIndex creates the chunk vector index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, indexName)
	if err != nil {
		return r.unavailable("ft.info", err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     indexName,
		Prefixes: []string{chunkKeyPrefix},
		Fields: []db.IndexField{
			{Name: "document_id", Type: db.IndexFieldTag},
			{Name: "seq", Type: db.IndexFieldNumeric},
			{
				Name:           "vector",
				Type:           db.IndexFieldVector,
				VectorAlgo:     db.VectorHNSW,
				VectorDim:      r.dims,
				VectorDistance: db.DistanceCosine,
			},
		},
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return r.unavailable("ft.create", err)
	}
	return nil
}

// EnsureModelVersion pins the embedding model identity on first use and
// fails fast with ErrModelMismatch when the stored identity differs. Mixing
// vectors from different models in one index silently corrupts similarity.
func (r *Repo) EnsureModelVersion(ctx context.Context, model string) error {
	want := fmt.Sprintf("%s/%d", model, r.dims)

	set, err := r.store.SetNX(ctx, modelMetaKey, []byte(want))
	if err != nil {
		return r.unavailable("setnx model meta", err)
	}
	if set {
		return nil
	}

	stored, err := r.store.Get(ctx, modelMetaKey)
	if err != nil {
		return r.unavailable("get model meta", err)
	}
	if string(stored) != want {
		return fmt.Errorf("index built with %q, configured %q: %w",
			string(stored), want, domain.ErrModelMismatch)
	}
	return nil
}

// UpsertChunks replaces all chunks of a document in one transaction: stale
// chunks are deleted and the new set is written atomically, so a concurrent
// search never observes a half-replaced document.
func (r *Repo) UpsertChunks(ctx context.Context, documentID string, chs []domain.Chunk) error {
	for i := range chs {
		if len(chs[i].Vector) != r.dims {
			return fmt.Errorf("chunk %d has %d dims, index has %d: %w",
				chs[i].Seq, len(chs[i].Vector), r.dims, domain.ErrModelMismatch)
		}
	}

	return r.withRetry(func() error {
		old, err := r.store.Scan(ctx, docKeyPattern(documentID))
		if err != nil {
			return fmt.Errorf("scan chunks %s: %w", documentID, err)
		}

		items := make([]db.HashSetItem, 0, len(chs))
		for i := range chs {
			items = append(items, db.HashSetItem{
				Key:    chunkKey(documentID, chs[i].Seq),
				Fields: buildHashFields(&chs[i]),
			})
		}

		if err := r.store.ReplaceHashes(ctx, old, items); err != nil {
			return fmt.Errorf("replace chunks %s: %w", documentID, err)
		}
		return nil
	})
}

// DeleteChunks removes all chunks of a document atomically.
func (r *Repo) DeleteChunks(ctx context.Context, documentID string) error {
	return r.withRetry(func() error {
		old, err := r.store.Scan(ctx, docKeyPattern(documentID))
		if err != nil {
			return fmt.Errorf("scan chunks %s: %w", documentID, err)
		}
		if len(old) == 0 {
			return nil
		}
		if err := r.store.ReplaceHashes(ctx, old, nil); err != nil {
			return fmt.Errorf("delete chunks %s: %w", documentID, err)
		}
		return nil
	})
}

// Search runs a cosine KNN query over the chunk index. documentID, when
// non-empty, restricts results to that document. Results are ordered by
// similarity descending; equal scores are broken by lower sequence index.
func (r *Repo) Search(ctx context.Context, vector []float32, k int, documentID string) ([]domain.Match, error) {
	if len(vector) != r.dims {
		return nil, fmt.Errorf("query vector has %d dims, index has %d: %w",
			len(vector), r.dims, domain.ErrModelMismatch)
	}

	q := &db.KNNQuery{
		IndexName:    indexName,
		Vector:       vector,
		K:            k,
		ReturnFields: []string{"document_id", "seq", "text", "char_count", "created_at", "__vector_score"},
	}
	if documentID != "" {
		q.Filter = db.TagFilter("document_id", documentID)
	}

	var sr *db.SearchResult
	err := r.withRetry(func() error {
		var err error
		sr, err = r.store.SearchKNN(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	matches := make([]domain.Match, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		matches = append(matches, domain.Match{
			Chunk:      parseHashFields(entry.Fields),
			Similarity: entry.Score,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		if matches[i].Chunk.DocumentID != matches[j].Chunk.DocumentID {
			return matches[i].Chunk.DocumentID < matches[j].Chunk.DocumentID
		}
		return matches[i].Chunk.Seq < matches[j].Chunk.Seq
	})

	return matches, nil
}

// GetChunks loads the stored chunks of a document ordered by sequence index.
func (r *Repo) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	var keys []string
	err := r.withRetry(func() error {
		var err error
		keys, err = r.store.Scan(ctx, docKeyPattern(documentID))
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, r.unavailable("hgetall chunks", err)
	}

	chs := make([]domain.Chunk, 0, len(maps))
	for _, m := range maps {
		if len(m) == 0 {
			continue
		}
		chs = append(chs, parseHashFields(m))
	}
	sort.Slice(chs, func(i, j int) bool { return chs[i].Seq < chs[j].Seq })
	return chs, nil
}

// withRetry runs fn and retries once after a backoff when the store fails.
// A second failure is surfaced as ErrStoreUnavailable.
func (r *Repo) withRetry(fn func() error) error {
	err := fn()
	if err == nil || !isStoreFailure(err) {
		return err
	}

	time.Sleep(r.backoff)

	if err = fn(); err != nil {
		if isStoreFailure(err) {
			return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
		}
		return err
	}
	return nil
}

func (r *Repo) unavailable(op string, err error) error {
	if isStoreFailure(err) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isStoreFailure reports whether err indicates the store itself failed, as
// opposed to an expected condition like a missing key.
func isStoreFailure(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}

func chunkKey(documentID string, seq int) string {
	return chunkKeyPrefix + documentID + ":" + strconv.Itoa(seq)
}

func docKeyPattern(documentID string) string {
	return chunkKeyPrefix + documentID + ":*"
}
