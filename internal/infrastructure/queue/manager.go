package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/domain/repositories"
	usecaseErrors "github.com/johnquangdev/meeting-colleague/internal/usecase/errors"
	"github.com/johnquangdev/meeting-colleague/pkg/jobcontext"
)

// Handler processes one attempt of a job
type Handler func(ctx context.Context, job *entities.Job) error

// IdempotencyStore is shared by every producer so keys collide across queues
type IdempotencyStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// Options configures a Manager
type Options struct {
	Store          repositories.JobRepository
	Idempotency    IdempotencyStore
	Clock          clock.Clock
	Logger         *zap.Logger
	Registerer     prometheus.Registerer
	PollInterval   time.Duration
	StallTimeout   time.Duration
	StallInterval  time.Duration
	IdempotencyTTL time.Duration
}

type registeredQueue struct {
	opts    QueueOptions
	handler Handler
	wake    chan struct{}
}

// Manager runs named queues over a shared store
type Manager struct {
	store    repositories.JobRepository
	idem     IdempotencyStore
	clock    clock.Clock
	logger   *zap.Logger
	metrics  *Metrics
	poll     time.Duration
	stall    time.Duration
	stallInt time.Duration
	idemTTL  time.Duration

	mu      sync.RWMutex
	queues  map[string]*registeredQueue
	started bool
	closed  bool

	running sync.Map // job ID -> struct{}, jobs executing in this process

	ctx    context.Context
	cancel context.CancelFunc
	stop   chan struct{}
	wg     sync.WaitGroup

	onDeadLetter func(ctx context.Context, dl DeadLetter) error
}

// NewManager creates a queue manager. Queues must be registered before Start.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.StallTimeout <= 0 {
		opts.StallTimeout = 5 * time.Minute
	}
	if opts.StallInterval <= 0 {
		opts.StallInterval = 30 * time.Second
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:    opts.Store,
		idem:     opts.Idempotency,
		clock:    opts.Clock,
		logger:   opts.Logger,
		metrics:  NewMetrics(opts.Registerer),
		poll:     opts.PollInterval,
		stall:    opts.StallTimeout,
		stallInt: opts.StallInterval,
		idemTTL:  opts.IdempotencyTTL,
		queues:   make(map[string]*registeredQueue),
		ctx:      ctx,
		cancel:   cancel,
		stop:     make(chan struct{}),
	}
}

// Register attaches a handler to a queue
func (m *Manager) Register(opts QueueOptions, handler Handler) error {
	if opts.Name == "" {
		return errors.New("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("queue %s: handler is required", opts.Name)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("queue %s: cannot register after start", opts.Name)
	}
	if _, exists := m.queues[opts.Name]; exists {
		return fmt.Errorf("queue %s: already registered", opts.Name)
	}
	m.queues[opts.Name] = &registeredQueue{
		opts:    opts,
		handler: handler,
		wake:    make(chan struct{}, 1),
	}
	return nil
}

// OnDeadLetter sets a hook invoked by the dead-letter processor, e.g. to alert an operator
func (m *Manager) OnDeadLetter(fn func(ctx context.Context, dl DeadLetter) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDeadLetter = fn
}

func (m *Manager) queue(name string) (*registeredQueue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q, ok := m.queues[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", usecaseErrors.ErrUnknownQueue, name)
	}
	return q, nil
}

// Enqueue adds a job. Re-enqueueing an ID that is still stored returns the stored job unchanged.
func (m *Manager) Enqueue(ctx context.Context, queueName, name string, payload any, opts EnqueueOptions) (*entities.Job, error) {
	q, err := m.queue(queueName)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, usecaseErrors.ErrQueueClosed
	}

	data, err := encodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", queueName, err)
	}

	now := m.clock.Now()
	job := &entities.Job{
		ID:             opts.JobID,
		Queue:          queueName,
		Name:           name,
		Payload:        data,
		IdempotencyKey: opts.IdempotencyKey,
		Status:         entities.JobStatusWaiting,
		MaxAttempts:    q.opts.MaxAttempts,
		RunAt:          now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if job.ID == "" {
		job.ID = opts.IdempotencyKey
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if opts.MaxAttempts > 0 {
		job.MaxAttempts = opts.MaxAttempts
	}
	if opts.Delay > 0 {
		job.Status = entities.JobStatusDelayed
		job.RunAt = now.Add(opts.Delay)
	}

	created, err := m.store.Add(ctx, job)
	if err != nil {
		return nil, &usecaseErrors.EnqueueError{Queue: queueName, Err: err}
	}
	if !created {
		m.metrics.Deduplicated.WithLabelValues(queueName).Inc()
		m.logger.Debug("Job already queued",
			zap.String("queue", queueName),
			zap.String("job_id", job.ID),
		)
		existing, err := m.store.Get(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
		return job, nil
	}

	m.metrics.Enqueued.WithLabelValues(queueName).Inc()
	m.logger.Debug("Job enqueued",
		zap.String("queue", queueName),
		zap.String("job_id", job.ID),
		zap.String("name", name),
		zap.Duration("delay", opts.Delay),
	)
	if opts.Delay <= 0 {
		m.notify(q)
	}
	return job, nil
}

// Remove deletes a job that is not currently running. It reports false when the job does not exist.
func (m *Manager) Remove(ctx context.Context, queueName, jobID string) (bool, error) {
	job, err := m.store.Get(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job == nil || job.Queue != queueName {
		return false, nil
	}
	if job.Status == entities.JobStatusActive {
		return false, fmt.Errorf("%w: %s", entities.ErrJobNotQueued, jobID)
	}
	return m.store.Remove(ctx, jobID)
}

// Get returns a job by ID, or nil
func (m *Manager) Get(ctx context.Context, jobID string) (*entities.Job, error) {
	return m.store.Get(ctx, jobID)
}

// Start launches the workers of every registered queue and the maintenance loop
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return errors.New("queue manager already started")
	}
	if len(m.queues) == 0 {
		return errors.New("no queues registered")
	}
	if _, ok := m.queues[QueueDeadLetter]; !ok {
		opts, _ := DefaultQueueOptions(QueueDeadLetter)
		m.queues[QueueDeadLetter] = &registeredQueue{
			opts:    opts,
			handler: m.processDeadLetter,
			wake:    make(chan struct{}, 1),
		}
	}
	m.started = true

	for _, q := range m.queues {
		m.wg.Add(1)
		go m.runQueue(q)
		m.logger.Info("▶️ Queue started",
			zap.String("queue", q.opts.Name),
			zap.Int("concurrency", q.opts.Concurrency),
			zap.Int("max_attempts", q.opts.MaxAttempts),
		)
	}

	m.wg.Add(1)
	go m.maintain()
	return nil
}

// Close stops claiming new jobs and waits for running ones.
// When ctx expires first, running handlers are cancelled.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stop)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		<-done
		return fmt.Errorf("queue shutdown: %w", ctx.Err())
	}
}

func (m *Manager) notify(q *registeredQueue) {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) runQueue(q *registeredQueue) {
	defer m.wg.Done()

	ticker := m.clock.Ticker(m.poll)
	defer ticker.Stop()

	slots := make(chan struct{}, q.opts.Concurrency)
	for {
		m.dispatch(q, slots)

		select {
		case <-m.stop:
			return
		case <-ticker.C:
		case <-q.wake:
		}
	}
}

// dispatch claims jobs while worker slots are free
func (m *Manager) dispatch(q *registeredQueue, slots chan struct{}) {
	for {
		select {
		case <-m.stop:
			return
		default:
		}

		select {
		case slots <- struct{}{}:
		default:
			return
		}

		job, err := m.store.ClaimNext(m.ctx, q.opts.Name, m.clock.Now())
		if err != nil || job == nil {
			<-slots
			if err != nil && m.ctx.Err() == nil {
				m.logger.Error("Failed to claim job", zap.String("queue", q.opts.Name), zap.Error(err))
			}
			return
		}

		m.running.Store(job.ID, struct{}{})
		m.wg.Add(1)
		go func(job *entities.Job, worker int) {
			defer m.wg.Done()
			defer func() {
				<-slots
				m.notify(q)
			}()
			defer m.running.Delete(job.ID)

			m.process(q, job, worker)
		}(job, len(slots))
	}
}

func (m *Manager) process(q *registeredQueue, job *entities.Job, worker int) {
	ctx := m.ctx
	log := m.logger.With(
		zap.String("queue", q.opts.Name),
		zap.String("job_id", job.ID),
		zap.String("name", job.Name),
	)

	key := job.IdempotencyKey
	if key != "" && m.idem != nil {
		acquired, err := m.idem.SetNX(ctx, lockKey(key), job.ID, m.lockTTL(q))
		if err != nil {
			log.Warn("Idempotency lock failed, running job anyway", zap.Error(err))
		} else if !acquired {
			// The same logical work is running elsewhere; look again later without spending an attempt
			job.ScheduleRetry(m.clock.Now().Add(m.poll), "idempotency key locked", m.clock.Now())
			if err := m.store.Update(ctx, job); err != nil {
				log.Error("Failed to reschedule locked job", zap.Error(err))
			}
			return
		} else {
			defer func() {
				if err := m.idem.Delete(context.WithoutCancel(ctx), lockKey(key)); err != nil {
					log.Warn("Failed to release idempotency lock", zap.Error(err))
				}
			}()
		}

		// checked under the lock so a run that finished while this job waited is seen
		done, err := m.idem.Exists(ctx, doneKey(key))
		if err != nil {
			log.Warn("Idempotency check failed, running job anyway", zap.Error(err))
		}
		if done {
			m.metrics.Deduplicated.WithLabelValues(q.opts.Name).Inc()
			log.Info("⏭️ Skipping job, idempotency key already used", zap.String("idempotency_key", key))
			m.finish(ctx, job, nil, log)
			return
		}
	}

	job.AttemptsMade++
	jobCtx, cancel := jobcontext.JobBegin(ctx, jobcontext.JobMetadata{
		JobID:       job.ID,
		Queue:       job.Queue,
		Name:        job.Name,
		WorkerID:    worker,
		Attempt:     job.AttemptsMade,
		MaxAttempts: job.MaxAttempts,
		StartTime:   m.clock.Now(),
	}, q.opts.Timeout)

	m.metrics.Active.WithLabelValues(q.opts.Name).Inc()
	started := time.Now()
	err := jobcontext.Run(jobCtx, func(ctx context.Context) error {
		return q.handler(ctx, job)
	})
	m.metrics.Duration.WithLabelValues(q.opts.Name).Observe(time.Since(started).Seconds())
	m.metrics.Active.WithLabelValues(q.opts.Name).Dec()
	cancel()

	if err == nil && key != "" && m.idem != nil {
		if setErr := m.idem.Set(ctx, doneKey(key), job.ID, m.idemTTL); setErr != nil {
			log.Warn("Failed to record idempotency key", zap.Error(setErr))
		}
	}
	m.finish(ctx, job, err, log)
}

// finish records the outcome of an attempt: completion, retry or terminal failure
func (m *Manager) finish(ctx context.Context, job *entities.Job, runErr error, log *zap.Logger) {
	ctx = context.WithoutCancel(ctx)
	now := m.clock.Now()
	q, err := m.queue(job.Queue)
	if err != nil {
		log.Error("Finished job of unknown queue", zap.Error(err))
		return
	}

	if runErr == nil {
		job.MarkCompleted(now)
		if err := m.store.Update(ctx, job); err != nil {
			log.Error("Failed to mark job completed", zap.Error(err))
		}
		m.metrics.Completed.WithLabelValues(job.Queue).Inc()
		log.Debug("✅ Job completed", zap.Int("attempts", job.AttemptsMade))
		return
	}

	permanent := jobcontext.IsPermanent(runErr)
	if permanent || job.AttemptsMade >= job.MaxAttempts {
		reason := runErr.Error()
		job.MarkFailed(now, reason)
		if err := m.store.Update(ctx, job); err != nil {
			log.Error("Failed to mark job failed", zap.Error(err))
		}
		m.metrics.Failed.WithLabelValues(job.Queue).Inc()
		log.Error("❌ Job failed",
			zap.Int("attempts", job.AttemptsMade),
			zap.Int("max_attempts", job.MaxAttempts),
			zap.Bool("permanent", permanent),
			zap.Error(runErr),
		)
		if job.Queue != QueueDeadLetter {
			m.deadLetter(ctx, job, reason, now, log)
		}
		return
	}

	delay := q.opts.Backoff.DelayFor(job.AttemptsMade)
	job.ScheduleRetry(now.Add(delay), runErr.Error(), now)
	if err := m.store.Update(ctx, job); err != nil {
		log.Error("Failed to schedule retry", zap.Error(err))
	}
	m.metrics.Retried.WithLabelValues(job.Queue).Inc()
	log.Warn("🔄 Job attempt failed, retrying",
		zap.Int("attempt", job.AttemptsMade),
		zap.Int("max_attempts", job.MaxAttempts),
		zap.Duration("backoff", delay),
		zap.Error(runErr),
	)
}

// maintain runs the stall watchdog and trims finished job records
func (m *Manager) maintain() {
	defer m.wg.Done()

	ticker := m.clock.Ticker(m.stallInt)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.RecoverStalled(m.ctx)
			m.trim(m.ctx)
		}
	}
}

// RecoverStalled treats active jobs whose lock expired, and that are not running here, as failed attempts
func (m *Manager) RecoverStalled(ctx context.Context) int {
	cutoff := m.clock.Now().Add(-m.stall)
	jobs, err := m.store.Stalled(ctx, cutoff)
	if err != nil {
		m.logger.Error("Failed to list stalled jobs", zap.Error(err))
		return 0
	}

	recovered := 0
	for i := range jobs {
		job := &jobs[i]
		if _, local := m.running.Load(job.ID); local {
			continue
		}
		if _, err := m.queue(job.Queue); err != nil {
			continue
		}
		job.AttemptsMade++
		m.metrics.Stalled.WithLabelValues(job.Queue).Inc()
		log := m.logger.With(zap.String("queue", job.Queue), zap.String("job_id", job.ID))
		log.Warn("⚠️ Recovering stalled job", zap.Timep("locked_at", job.LockedAt))
		m.finish(ctx, job, errors.New("job stalled"), log)
		recovered++
	}
	return recovered
}

func (m *Manager) trim(ctx context.Context) {
	m.mu.RLock()
	queues := make([]QueueOptions, 0, len(m.queues))
	for _, q := range m.queues {
		queues = append(queues, q.opts)
	}
	m.mu.RUnlock()

	for _, opts := range queues {
		if opts.KeepCompleted >= 0 {
			if _, err := m.store.Trim(ctx, opts.Name, entities.JobStatusCompleted, opts.KeepCompleted); err != nil {
				m.logger.Warn("Failed to trim completed jobs", zap.String("queue", opts.Name), zap.Error(err))
			}
		}
		if opts.KeepFailed >= 0 {
			if _, err := m.store.Trim(ctx, opts.Name, entities.JobStatusFailed, opts.KeepFailed); err != nil {
				m.logger.Warn("Failed to trim failed jobs", zap.String("queue", opts.Name), zap.Error(err))
			}
		}
	}
}

func (m *Manager) lockTTL(q *registeredQueue) time.Duration {
	timeout := q.opts.Timeout
	if timeout <= 0 {
		timeout = jobcontext.DefaultTimeout
	}
	return timeout + time.Minute
}

func doneKey(key string) string { return "idem:" + key }
func lockKey(key string) string { return "idem-lock:" + key }

func encodePayload(payload any) (datatypes.JSON, error) {
	switch p := payload.(type) {
	case nil:
		return datatypes.JSON("{}"), nil
	case datatypes.JSON:
		return p, nil
	case json.RawMessage:
		return datatypes.JSON(p), nil
	case []byte:
		return datatypes.JSON(p), nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// DecodePayload unmarshals a job payload. A malformed payload is permanent.
func DecodePayload[T any](job *entities.Job) (T, error) {
	var v T
	if err := json.Unmarshal(job.Payload, &v); err != nil {
		return v, backoff.Permanent(fmt.Errorf("decode %s payload of job %s: %w", job.Queue, job.ID, err))
	}
	return v, nil
}
