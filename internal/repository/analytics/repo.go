// Package analytics persists the append-only query log and its aggregates.
// Records are immutable once written; aggregates are maintained as counters
// so reporting never scans the full log.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/main-salman/haqnow-sub003/internal/db"
	"github.com/main-salman/haqnow-sub003/internal/domain"
)

const (
	recordKeyPrefix = domain.KeyPrefix + "query:"
	recentListKey   = domain.KeyPrefix + "queries:recent"
	citationsKey    = domain.KeyPrefix + "queries:citations"
	totalKey        = domain.KeyPrefix + "queries:total"
	latencySumKey   = domain.KeyPrefix + "queries:latency-ms"
)

// store is the consumer interface for analytics persistence (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	LPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZIncrBy(ctx context.Context, key string, increment float64, member string) error
	ZTopN(ctx context.Context, key string, n int) ([]db.ScoredMember, error)
}

// Repo implements query-record storage.
type Repo struct {
	store store
}

// New creates an analytics repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Append writes one query record and updates the aggregates. The record
// hash is written first so readers of the recent list never see a dangling ID.
func (r *Repo) Append(ctx context.Context, rec *domain.QueryRecord) error {
	if err := r.store.HSet(ctx, recordKey(rec.ID), buildHashFields(rec)); err != nil {
		return storeErr(fmt.Errorf("write query record %s: %w", rec.ID, err))
	}
	if err := r.store.LPush(ctx, recentListKey, rec.ID); err != nil {
		return storeErr(fmt.Errorf("push recent %s: %w", rec.ID, err))
	}
	if err := r.store.IncrBy(ctx, totalKey, 1); err != nil {
		return storeErr(fmt.Errorf("incr total: %w", err))
	}
	if err := r.store.IncrBy(ctx, latencySumKey, rec.Latency.Milliseconds()); err != nil {
		return storeErr(fmt.Errorf("incr latency sum: %w", err))
	}
	for _, docID := range rec.CitedDocIDs {
		if err := r.store.ZIncrBy(ctx, citationsKey, 1, docID); err != nil {
			return storeErr(fmt.Errorf("incr citations %s: %w", docID, err))
		}
	}
	return nil
}

// Stats returns the aggregate view: total question count, average answer
// latency, the most cited documents, and the most recent records.
func (r *Repo) Stats(ctx context.Context, recentLimit, mostCitedLimit int) (domain.QueryStats, error) {
	total, err := r.counter(ctx, totalKey)
	if err != nil {
		return domain.QueryStats{}, err
	}

	stats := domain.QueryStats{TotalQuestions: total}
	if total == 0 {
		return stats, nil
	}

	latencySum, err := r.counter(ctx, latencySumKey)
	if err != nil {
		return domain.QueryStats{}, err
	}
	stats.AvgLatency = time.Duration(latencySum/total) * time.Millisecond

	top, err := r.store.ZTopN(ctx, citationsKey, mostCitedLimit)
	if err != nil {
		return domain.QueryStats{}, storeErr(fmt.Errorf("top cited: %w", err))
	}
	for _, m := range top {
		stats.MostCited = append(stats.MostCited, domain.DocumentCitations{
			DocumentID: m.Member,
			Citations:  int64(m.Score),
		})
	}

	recent, err := r.recent(ctx, recentLimit)
	if err != nil {
		return domain.QueryStats{}, err
	}
	stats.Recent = recent

	return stats, nil
}

// recent loads the newest records, newest first.
func (r *Repo) recent(ctx context.Context, limit int) ([]domain.QueryRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	ids, err := r.store.LRange(ctx, recentListKey, 0, int64(limit-1))
	if err != nil {
		return nil, storeErr(fmt.Errorf("recent ids: %w", err))
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recordKey(id)
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, storeErr(fmt.Errorf("recent records: %w", err))
	}

	recs := make([]domain.QueryRecord, 0, len(maps))
	for i, m := range maps {
		if len(m) == 0 {
			continue
		}
		recs = append(recs, parseHashFields(ids[i], m))
	}
	return recs, nil
}

func (r *Repo) counter(ctx context.Context, key string) (int64, error) {
	raw, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, storeErr(fmt.Errorf("read counter %s: %w", key, err))
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse counter %s: %w", key, err)
	}
	return n, nil
}

func recordKey(id string) string {
	return recordKeyPrefix + id
}

func storeErr(err error) error {
	var dbErr *db.Error
	if errors.As(err, &dbErr) {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return err
}
