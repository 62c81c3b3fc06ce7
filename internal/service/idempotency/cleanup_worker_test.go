package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
	"github.com/vladislavdragonenkov/petshop/internal/metrics"
	"github.com/vladislavdragonenkov/petshop/internal/storage/memory"
)

func testCleanupMetrics() CleanupOption {
	return WithMetrics(metrics.NewCleanupMetricsWithRegisterer(prometheus.NewRegistry()))
}

func TestCleanupWorker_DeleteExpired_Batches(t *testing.T) {
	t.Parallel()

	repo := &stubCleanupRepo{results: []int{2, 2, 1}}
	worker := NewCleanupWorker(repo, WithBatchSize(2), testCleanupMetrics())

	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 5, deleted)
	assert.Equal(t, 3, repo.calls())
}

func TestCleanupWorker_DeleteExpired_Error(t *testing.T) {
	t.Parallel()

	repo := &stubCleanupRepo{errs: []error{errors.New("boom")}}
	worker := NewCleanupWorker(repo, WithBatchSize(10), testCleanupMetrics())

	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())
	require.Error(t, err)
	assert.Zero(t, deleted)
}

func TestCleanupWorker_DeleteExpired_MemoryRepository(t *testing.T) {
	t.Parallel()

	repo := memory.NewIdempotencyRepository()
	now := time.Now().UTC()
	for _, key := range []string{"a", "b", "c"} {
		_, err := repo.CreateProcessing(key, "hash", now.Add(-time.Minute))
		require.NoError(t, err)
	}
	_, err := repo.CreateProcessing("fresh", "hash", now.Add(time.Hour))
	require.NoError(t, err)

	worker := NewCleanupWorker(repo, WithBatchSize(2), testCleanupMetrics())
	deleted, err := worker.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	_, err = repo.Get("fresh")
	require.NoError(t, err)
	_, err = repo.Get("a")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
}

func TestCleanupWorker_DeleteExpired_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := &stubCleanupRepo{}
	_, err := NewCleanupWorker(repo, testCleanupMetrics()).DeleteExpired(ctx, time.Time{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, repo.calls())
}

func TestCleanupWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &stubCleanupRepo{}
	worker := NewCleanupWorker(repo, WithInterval(5*time.Millisecond), WithBatchSize(10), testCleanupMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
	assert.Positive(t, repo.calls())
}

type stubCleanupRepo struct {
	mu      sync.Mutex
	results []int
	errs    []error
	count   int
}

func (s *stubCleanupRepo) CreateProcessing(string, string, time.Time) (domain.IdempotencyRecord, error) {
	panic("not implemented")
}

func (s *stubCleanupRepo) Get(string) (domain.IdempotencyRecord, error) {
	panic("not implemented")
}

func (s *stubCleanupRepo) MarkDone(string, []byte, int) error {
	panic("not implemented")
}

func (s *stubCleanupRepo) MarkFailed(string, []byte, int) error {
	panic("not implemented")
}

func (s *stubCleanupRepo) DeleteExpired(time.Time, int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return 0, err
	}
	if len(s.results) == 0 {
		return 0, nil
	}
	result := s.results[0]
	s.results = s.results[1:]
	return result, nil
}

func (s *stubCleanupRepo) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

var _ domain.IdempotencyRepository = (*stubCleanupRepo)(nil)
