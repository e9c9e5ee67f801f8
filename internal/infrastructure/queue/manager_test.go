package queue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/cache"
	usecaseErrors "github.com/johnquangdev/meeting-colleague/internal/usecase/errors"
)

func newTestManager(t *testing.T) (*Manager, *clock.Mock) {
	t.Helper()

	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	idem := cache.NewMemoryStore(clk)
	m := NewManager(Options{
		Idempotency:  idem,
		Clock:        clk,
		Registerer:   prometheus.NewRegistry(),
		PollInterval: time.Second,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Close(ctx)
		_ = idem.Close()
	})
	return m, clk
}

func testQueue(attempts int) QueueOptions {
	return QueueOptions{
		Name:          "work",
		Concurrency:   1,
		MaxAttempts:   attempts,
		Backoff:       Backoff{Kind: BackoffFixed, Delay: 10 * time.Second},
		KeepCompleted: 100,
		KeepFailed:    500,
	}
}

// waitStatus advances the mock clock until the job reaches the wanted status
func waitStatus(t *testing.T, m *Manager, clk *clock.Mock, id string, want entities.JobStatus) *entities.Job {
	t.Helper()

	var job *entities.Job
	require.Eventually(t, func() bool {
		clk.Add(time.Second)
		var err error
		job, err = m.Get(context.Background(), id)
		return err == nil && job != nil && job.Status == want
	}, 5*time.Second, 5*time.Millisecond)
	return job
}

func waitDeadLetters(t *testing.T, m *Manager, clk *clock.Mock, n int) []DeadLetter {
	t.Helper()

	var dls []DeadLetter
	require.Eventually(t, func() bool {
		clk.Add(time.Second)
		var err error
		dls, err = m.DeadLetters(context.Background(), 10)
		if err != nil || len(dls) != n {
			return false
		}
		for _, dl := range dls {
			if dl.Status != entities.JobStatusCompleted {
				return false
			}
		}
		return true
	}, 5*time.Second, 5*time.Millisecond)
	return dls
}

func TestEnqueueSameIdempotencyKeyRunsOnce(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestManager(t)

	var runs atomic.Int32
	require.NoError(t, m.Register(testQueue(3), func(ctx context.Context, job *entities.Job) error {
		runs.Add(1)
		return nil
	}))

	first, err := m.Enqueue(ctx, "work", "process", map[string]string{"meetingId": "m-1"}, EnqueueOptions{IdempotencyKey: "process:m-1"})
	require.NoError(t, err)
	second, err := m.Enqueue(ctx, "work", "process", map[string]string{"meetingId": "m-1"}, EnqueueOptions{IdempotencyKey: "process:m-1"})
	require.NoError(t, err)
	assert.Equal(t, "process:m-1", first.ID)
	assert.Equal(t, first.ID, second.ID)

	require.NoError(t, m.Start())
	waitStatus(t, m, clk, "process:m-1", entities.JobStatusCompleted)

	again, err := m.Enqueue(ctx, "work", "process", nil, EnqueueOptions{IdempotencyKey: "process:m-1"})
	require.NoError(t, err)
	assert.Equal(t, entities.JobStatusCompleted, again.Status)

	clk.Add(5 * time.Second)
	assert.Equal(t, int32(1), runs.Load())
}

func TestSharedIdempotencyKeyAcrossJobIDs(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestManager(t)

	var runs atomic.Int32
	require.NoError(t, m.Register(testQueue(3), func(ctx context.Context, job *entities.Job) error {
		runs.Add(1)
		return nil
	}))

	_, err := m.Enqueue(ctx, "work", "notify", nil, EnqueueOptions{JobID: "a", IdempotencyKey: "email:m-1"})
	require.NoError(t, err)
	_, err = m.Enqueue(ctx, "work", "notify", nil, EnqueueOptions{JobID: "b", IdempotencyKey: "email:m-1"})
	require.NoError(t, err)

	require.NoError(t, m.Start())
	waitStatus(t, m, clk, "a", entities.JobStatusCompleted)
	waitStatus(t, m, clk, "b", entities.JobStatusCompleted)

	assert.Equal(t, int32(1), runs.Load())
}

// contendedStore holds the second lock attempt until the first holder releases its lock
type contendedStore struct {
	*cache.MemoryStore

	mu         sync.Mutex
	lockers    int
	contending chan struct{}
	released   chan struct{}
	once       sync.Once
}

func newContendedStore(clk clock.Clock) *contendedStore {
	return &contendedStore{
		MemoryStore: cache.NewMemoryStore(clk),
		contending:  make(chan struct{}),
		released:    make(chan struct{}),
	}
}

func (s *contendedStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if strings.HasPrefix(key, "idem-lock:") {
		s.mu.Lock()
		s.lockers++
		n := s.lockers
		s.mu.Unlock()
		if n == 2 {
			close(s.contending)
			select {
			case <-s.released:
			case <-time.After(2 * time.Second):
			}
		}
	}
	return s.MemoryStore.SetNX(ctx, key, value, ttl)
}

func (s *contendedStore) Delete(ctx context.Context, keys ...string) error {
	err := s.MemoryStore.Delete(ctx, keys...)
	for _, key := range keys {
		if strings.HasPrefix(key, "idem-lock:") {
			s.once.Do(func() { close(s.released) })
		}
	}
	return err
}

func TestIdempotencyKeyCheckedAfterWaitingForLock(t *testing.T) {
	ctx := context.Background()

	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	idem := newContendedStore(clk)
	m := NewManager(Options{
		Idempotency:  idem,
		Clock:        clk,
		Registerer:   prometheus.NewRegistry(),
		PollInterval: time.Second,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Close(ctx)
		_ = idem.Close()
	})

	opts := testQueue(3)
	opts.Concurrency = 2
	var runs atomic.Int32
	require.NoError(t, m.Register(opts, func(ctx context.Context, job *entities.Job) error {
		if runs.Add(1) == 1 {
			// keep the first run going until the other job is waiting on the lock
			select {
			case <-idem.contending:
			case <-time.After(2 * time.Second):
			}
		}
		return nil
	}))

	_, err := m.Enqueue(ctx, "work", "notify", nil, EnqueueOptions{JobID: "a", IdempotencyKey: "email:m-1"})
	require.NoError(t, err)
	_, err = m.Enqueue(ctx, "work", "notify", nil, EnqueueOptions{JobID: "b", IdempotencyKey: "email:m-1"})
	require.NoError(t, err)

	require.NoError(t, m.Start())
	waitStatus(t, m, clk, "a", entities.JobStatusCompleted)
	waitStatus(t, m, clk, "b", entities.JobStatusCompleted)

	assert.Equal(t, int32(1), runs.Load())
}

func TestFailedAttemptIsRetriedAfterBackoff(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestManager(t)

	var runs atomic.Int32
	require.NoError(t, m.Register(testQueue(3), func(ctx context.Context, job *entities.Job) error {
		if runs.Add(1) == 1 {
			return errors.New("provider timeout")
		}
		return nil
	}))
	require.NoError(t, m.Start())

	job, err := m.Enqueue(ctx, "work", "process", nil, EnqueueOptions{})
	require.NoError(t, err)

	done := waitStatus(t, m, clk, job.ID, entities.JobStatusCompleted)
	assert.Equal(t, 2, done.AttemptsMade)
	assert.Equal(t, "provider timeout", done.LastError)
	assert.Equal(t, int32(2), runs.Load())
}

func TestExhaustedJobIsDeadLetteredOnce(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestManager(t)

	var alerts atomic.Int32
	m.OnDeadLetter(func(ctx context.Context, dl DeadLetter) error {
		alerts.Add(1)
		return nil
	})
	require.NoError(t, m.Register(testQueue(3), func(ctx context.Context, job *entities.Job) error {
		return errors.New("smtp unavailable")
	}))
	require.NoError(t, m.Start())

	job, err := m.Enqueue(ctx, "work", "send-email", map[string]string{"to": "alice@example.com"}, EnqueueOptions{JobID: "email-1"})
	require.NoError(t, err)

	dls := waitDeadLetters(t, m, clk, 1)
	dl := dls[0]
	assert.Equal(t, "dlq:email-1:0", dl.ID)
	assert.Equal(t, job.ID, dl.OriginalJobID)
	assert.Equal(t, "work", dl.Queue)
	assert.Equal(t, "send-email", dl.Name)
	assert.Equal(t, 3, dl.RetryCount)
	assert.True(t, dl.CanRetry)
	assert.Equal(t, "smtp unavailable", dl.FailedReason)
	assert.JSONEq(t, `{"to":"alice@example.com"}`, string(dl.Data))

	failed, err := m.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.JobStatusFailed, failed.Status)
	assert.Equal(t, 3, failed.AttemptsMade)

	require.Eventually(t, func() bool {
		clk.Add(time.Second)
		return alerts.Load() == 1
	}, 5*time.Second, 5*time.Millisecond)

	clk.Add(time.Minute)
	dls, err = m.DeadLetters(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, dls, 1)
}

func TestPermanentErrorSkipsRetries(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestManager(t)

	var runs atomic.Int32
	require.NoError(t, m.Register(testQueue(3), func(ctx context.Context, job *entities.Job) error {
		runs.Add(1)
		return backoff.Permanent(errors.New("meeting not found"))
	}))
	require.NoError(t, m.Start())

	_, err := m.Enqueue(ctx, "work", "process", nil, EnqueueOptions{JobID: "job-1"})
	require.NoError(t, err)

	dls := waitDeadLetters(t, m, clk, 1)
	assert.Equal(t, 1, dls[0].RetryCount)
	assert.Equal(t, int32(1), runs.Load())
}

func TestRetryDeadLetterRequeuesOriginal(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestManager(t)

	var healthy atomic.Bool
	require.NoError(t, m.Register(testQueue(2), func(ctx context.Context, job *entities.Job) error {
		if !healthy.Load() {
			return errors.New("webhook returned 503")
		}
		return nil
	}))
	require.NoError(t, m.Start())

	_, err := m.Enqueue(ctx, "work", "sync-task", nil, EnqueueOptions{JobID: "sync-1", IdempotencyKey: "sync:a-1"})
	require.NoError(t, err)
	dls := waitDeadLetters(t, m, clk, 1)

	healthy.Store(true)
	job, err := m.RetryDeadLetter(ctx, dls[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "sync-1", job.ID)
	assert.Equal(t, 1, job.ManualRetries)
	assert.Equal(t, 0, job.AttemptsMade)
	assert.Equal(t, "sync:a-1", job.IdempotencyKey)

	done := waitStatus(t, m, clk, "sync-1", entities.JobStatusCompleted)
	assert.Equal(t, 1, done.AttemptsMade)

	remaining, err := m.DeadLetters(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	_, err = m.RetryDeadLetter(ctx, dls[0].ID)
	assert.ErrorIs(t, err, usecaseErrors.ErrDeadLetterNotFound)
}

func TestRetryDeadLetterRespectsLimit(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestManager(t)

	require.NoError(t, m.Register(testQueue(5), func(ctx context.Context, job *entities.Job) error {
		return errors.New("still broken")
	}))
	require.NoError(t, m.Start())

	_, err := m.Enqueue(ctx, "work", "sync-task", nil, EnqueueOptions{JobID: "sync-2"})
	require.NoError(t, err)

	dls := waitDeadLetters(t, m, clk, 1)
	assert.Equal(t, 5, dls[0].RetryCount)
	assert.False(t, dls[0].CanRetry)

	_, err = m.RetryDeadLetter(ctx, dls[0].ID)
	assert.ErrorIs(t, err, usecaseErrors.ErrRetryLimitReached)

	require.NoError(t, m.DiscardDeadLetter(ctx, dls[0].ID))
	original, err := m.Get(ctx, "sync-2")
	require.NoError(t, err)
	assert.Nil(t, original)
}

func TestDelayedJobWaitsForRunAt(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestManager(t)

	var runs atomic.Int32
	require.NoError(t, m.Register(testQueue(1), func(ctx context.Context, job *entities.Job) error {
		runs.Add(1)
		return nil
	}))
	require.NoError(t, m.Start())

	job, err := m.Enqueue(ctx, "work", "pre-brief", nil, EnqueueOptions{JobID: "prebrief:m-1", Delay: 30 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, entities.JobStatusDelayed, job.Status)

	clk.Add(29 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())

	waitStatus(t, m, clk, job.ID, entities.JobStatusCompleted)
	assert.Equal(t, int32(1), runs.Load())
}

func TestRemovePendingJob(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	require.NoError(t, m.Register(testQueue(1), func(ctx context.Context, job *entities.Job) error { return nil }))

	_, err := m.Enqueue(ctx, "work", "pre-brief", nil, EnqueueOptions{JobID: "prebrief:m-2", Delay: time.Hour})
	require.NoError(t, err)

	removed, err := m.Remove(ctx, "other", "prebrief:m-2")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = m.Remove(ctx, "work", "prebrief:m-2")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = m.Remove(ctx, "work", "prebrief:m-2")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRecoverStalledCountsAnAttempt(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestManager(t)
	require.NoError(t, m.Register(testQueue(3), func(ctx context.Context, job *entities.Job) error { return nil }))

	lockedAt := clk.Now().Add(-10 * time.Minute)
	_, err := m.store.Add(ctx, &entities.Job{
		ID:          "stuck",
		Queue:       "work",
		Name:        "process",
		Payload:     []byte("{}"),
		Status:      entities.JobStatusActive,
		MaxAttempts: 3,
		RunAt:       lockedAt,
		LockedAt:    &lockedAt,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, m.RecoverStalled(ctx))

	job, err := m.Get(ctx, "stuck")
	require.NoError(t, err)
	assert.Equal(t, entities.JobStatusDelayed, job.Status)
	assert.Equal(t, 1, job.AttemptsMade)
	assert.Equal(t, "job stalled", job.LastError)
	assert.Equal(t, clk.Now().Add(10*time.Second), job.RunAt)

	assert.Equal(t, 0, m.RecoverStalled(ctx))
}

func TestEnqueueUnknownQueue(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Enqueue(context.Background(), "missing", "x", nil, EnqueueOptions{})
	assert.ErrorIs(t, err, usecaseErrors.ErrUnknownQueue)
}

func TestBackoffDelayFor(t *testing.T) {
	exp := Backoff{Kind: BackoffExponential, Delay: 5 * time.Second}
	assert.Equal(t, 5*time.Second, exp.DelayFor(1))
	assert.Equal(t, 10*time.Second, exp.DelayFor(2))
	assert.Equal(t, 20*time.Second, exp.DelayFor(3))

	fixed := Backoff{Kind: BackoffFixed, Delay: 30 * time.Second}
	assert.Equal(t, 30*time.Second, fixed.DelayFor(4))

	opts, ok := DefaultQueueOptions(QueueDeadLetter)
	require.True(t, ok)
	assert.Equal(t, KeepAll, opts.KeepCompleted)
}
