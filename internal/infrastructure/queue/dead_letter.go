package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	usecaseErrors "github.com/johnquangdev/meeting-colleague/internal/usecase/errors"
)

// DeadLetter is a dead-letter record as stored on the DLQ
type DeadLetter struct {
	ID     string             `json:"id"`
	Status entities.JobStatus `json:"status"`
	entities.DeadLetterJob
}

func deadLetterID(job *entities.Job) string {
	return fmt.Sprintf("dlq:%s:%d", job.ID, job.ManualRetries)
}

// deadLetter parks an exhausted job on the DLQ. The DLQ never retries on its own.
func (m *Manager) deadLetter(ctx context.Context, job *entities.Job, reason string, failedAt time.Time, log *zap.Logger) {
	dl := entities.NewDeadLetterJob(job, reason, failedAt)
	if _, err := m.Enqueue(ctx, QueueDeadLetter, "dead-letter", dl, EnqueueOptions{JobID: deadLetterID(job)}); err != nil {
		log.Error("Failed to move job to dead-letter queue", zap.Error(err))
		return
	}
	m.metrics.DeadLettered.WithLabelValues(job.Queue).Inc()
	log.Error("☠️ Job moved to dead-letter queue",
		zap.Int("retry_count", dl.RetryCount),
		zap.Bool("can_retry", dl.CanRetry),
		zap.String("reason", reason),
	)
}

// processDeadLetter surfaces a dead-lettered job for operator action
func (m *Manager) processDeadLetter(ctx context.Context, job *entities.Job) error {
	dl, err := DecodePayload[entities.DeadLetterJob](job)
	if err != nil {
		return err
	}

	m.mu.RLock()
	hook := m.onDeadLetter
	m.mu.RUnlock()

	m.logger.Warn("📮 Dead-lettered job awaiting operator",
		zap.String("dlq_id", job.ID),
		zap.String("original_queue", dl.Queue),
		zap.String("original_job_id", dl.OriginalJobID),
		zap.String("reason", dl.FailedReason),
	)
	if hook != nil {
		if err := hook(ctx, DeadLetter{ID: job.ID, Status: job.Status, DeadLetterJob: dl}); err != nil {
			m.logger.Warn("Dead-letter alert failed", zap.String("dlq_id", job.ID), zap.Error(err))
		}
	}
	return nil
}

// DeadLetters lists dead-lettered jobs, newest first
func (m *Manager) DeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	jobs, err := m.store.List(ctx, QueueDeadLetter, nil, limit)
	if err != nil {
		return nil, err
	}

	out := make([]DeadLetter, 0, len(jobs))
	for i := range jobs {
		dl, err := DecodePayload[entities.DeadLetterJob](&jobs[i])
		if err != nil {
			m.logger.Warn("Skipping unreadable dead-letter record", zap.String("dlq_id", jobs[i].ID), zap.Error(err))
			continue
		}
		out = append(out, DeadLetter{ID: jobs[i].ID, Status: jobs[i].Status, DeadLetterJob: dl})
	}
	return out, nil
}

func (m *Manager) getDeadLetter(ctx context.Context, id string) (*DeadLetter, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil || job.Queue != QueueDeadLetter {
		return nil, fmt.Errorf("%w: %s", usecaseErrors.ErrDeadLetterNotFound, id)
	}
	dl, err := DecodePayload[entities.DeadLetterJob](job)
	if err != nil {
		return nil, err
	}
	return &DeadLetter{ID: id, Status: job.Status, DeadLetterJob: dl}, nil
}

// RetryDeadLetter re-enqueues the original job on its queue with a fresh attempt budget
func (m *Manager) RetryDeadLetter(ctx context.Context, id string) (*entities.Job, error) {
	dl, err := m.getDeadLetter(ctx, id)
	if err != nil {
		return nil, err
	}
	if !dl.CanRetry {
		return nil, fmt.Errorf("%w: %s", usecaseErrors.ErrRetryLimitReached, id)
	}
	q, err := m.queue(dl.Queue)
	if err != nil {
		return nil, err
	}

	// The failed original still occupies its ID
	if _, err := m.Remove(ctx, dl.Queue, dl.OriginalJobID); err != nil {
		return nil, err
	}

	now := m.clock.Now()
	job := &entities.Job{
		ID:             dl.OriginalJobID,
		Queue:          dl.Queue,
		Name:           dl.Name,
		Payload:        dl.Data,
		IdempotencyKey: dl.IdempotencyKey,
		Status:         entities.JobStatusWaiting,
		MaxAttempts:    q.opts.MaxAttempts,
		ManualRetries:  dl.ManualRetries + 1,
		RunAt:          now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	created, err := m.store.Add(ctx, job)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, fmt.Errorf("job %s is already queued again", job.ID)
	}
	if _, err := m.store.Remove(ctx, id); err != nil {
		return nil, err
	}

	m.metrics.Enqueued.WithLabelValues(job.Queue).Inc()
	m.logger.Info("🔁 Dead-lettered job retried by operator",
		zap.String("dlq_id", id),
		zap.String("queue", job.Queue),
		zap.String("job_id", job.ID),
		zap.Int("manual_retries", job.ManualRetries),
	)
	m.notify(q)
	return job, nil
}

// DiscardDeadLetter drops a dead-lettered job and the failed original
func (m *Manager) DiscardDeadLetter(ctx context.Context, id string) error {
	dl, err := m.getDeadLetter(ctx, id)
	if err != nil {
		return err
	}

	original, err := m.store.Get(ctx, dl.OriginalJobID)
	if err != nil {
		return err
	}
	if original != nil && original.Status == entities.JobStatusFailed {
		if _, err := m.store.Remove(ctx, original.ID); err != nil {
			return err
		}
	}
	if _, err := m.store.Remove(ctx, id); err != nil {
		return err
	}

	m.logger.Info("🗑️ Dead-lettered job discarded", zap.String("dlq_id", id), zap.String("queue", dl.Queue))
	return nil
}
