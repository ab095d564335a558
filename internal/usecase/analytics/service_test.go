package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/main-salman/haqnow-sub003/internal/domain"
)

type mockRepo struct {
	appended chan domain.QueryRecord
	appendErr error
	statsFn   func(ctx context.Context, recentLimit, mostCitedLimit int) (domain.QueryStats, error)
}

func (m *mockRepo) Append(_ context.Context, rec *domain.QueryRecord) error {
	if m.appended != nil {
		m.appended <- *rec
	}
	return m.appendErr
}

func (m *mockRepo) Stats(ctx context.Context, recentLimit, mostCitedLimit int) (domain.QueryStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, recentLimit, mostCitedLimit)
	}
	return domain.QueryStats{}, nil
}

func TestRecord_WritesInBackground(t *testing.T) {
	repo := &mockRepo{appended: make(chan domain.QueryRecord, 1)}
	s := New(repo, 20, 10, zap.NewNop())

	s.Record(domain.QueryRecord{ID: "q-1", Question: "what"})

	select {
	case rec := <-repo.appended:
		if rec.ID != "q-1" {
			t.Errorf("unexpected record: %+v", rec)
		}
	case <-time.After(time.Second):
		t.Fatal("record was never written")
	}
}

func TestRecord_WriteFailureIsSwallowed(t *testing.T) {
	repo := &mockRepo{appended: make(chan domain.QueryRecord, 1), appendErr: errors.New("store down")}
	s := New(repo, 20, 10, zap.NewNop())

	// must not panic or propagate anywhere
	s.Record(domain.QueryRecord{ID: "q-1"})

	select {
	case <-repo.appended:
	case <-time.After(time.Second):
		t.Fatal("record write was never attempted")
	}
}

func TestStats_PassesLimits(t *testing.T) {
	repo := &mockRepo{statsFn: func(_ context.Context, recent, cited int) (domain.QueryStats, error) {
		if recent != 20 || cited != 10 {
			t.Errorf("unexpected limits: %d %d", recent, cited)
		}
		return domain.QueryStats{TotalQuestions: 7}, nil
	}}
	s := New(repo, 20, 10, zap.NewNop())

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalQuestions != 7 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
