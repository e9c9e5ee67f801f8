package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
)

var claimableStatuses = []entities.JobStatus{entities.JobStatusWaiting, entities.JobStatusDelayed}

// JobRepository is the durable queue store
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Add inserts a job; an existing job with the same ID wins
func (r *JobRepository) Add(ctx context.Context, job *entities.Job) (bool, error) {
	if job == nil {
		return false, errors.New("job cannot be nil")
	}
	normalizeJobTimes(job)
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(job)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ClaimNext claims the oldest due job. The conditional UPDATE makes the claim atomic across workers.
func (r *JobRepository) ClaimNext(ctx context.Context, queue string, now time.Time) (*entities.Job, error) {
	now = now.UTC()
	db := r.db.WithContext(ctx)

	var candidates []string
	if err := db.Model(&entities.Job{}).
		Where("queue = ? AND status IN ? AND run_at <= ?", queue, claimableStatuses, now).
		Order("run_at ASC, created_at ASC").
		Limit(5).
		Pluck("id", &candidates).Error; err != nil {
		return nil, err
	}

	for _, id := range candidates {
		res := db.Model(&entities.Job{}).
			Where("id = ? AND status IN ?", id, claimableStatuses).
			Updates(map[string]interface{}{
				"status":     entities.JobStatusActive,
				"locked_at":  now,
				"updated_at": now,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			// Another worker won this one
			continue
		}
		return r.Get(ctx, id)
	}
	return nil, nil
}

// Update saves every field of the job
func (r *JobRepository) Update(ctx context.Context, job *entities.Job) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}
	normalizeJobTimes(job)
	return r.db.WithContext(ctx).Save(job).Error
}

// Get retrieves a job by ID
func (r *JobRepository) Get(ctx context.Context, id string) (*entities.Job, error) {
	return first[entities.Job](r.db.WithContext(ctx).Where("id = ?", id))
}

// List returns the newest jobs of a queue, optionally filtered by status
func (r *JobRepository) List(ctx context.Context, queue string, statuses []entities.JobStatus, limit int) ([]entities.Job, error) {
	if limit == 0 {
		limit = 100
	}
	query := r.db.WithContext(ctx).Where("queue = ?", queue)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var jobs []entities.Job
	if err := query.Order("created_at DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// Remove deletes a job by ID
func (r *JobRepository) Remove(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entities.Job{})
	return res.RowsAffected > 0, res.Error
}

// Stalled lists active jobs whose lock is older than lockedBefore
func (r *JobRepository) Stalled(ctx context.Context, lockedBefore time.Time) ([]entities.Job, error) {
	var jobs []entities.Job
	if err := r.db.WithContext(ctx).
		Where("status = ? AND locked_at < ?", entities.JobStatusActive, lockedBefore.UTC()).
		Order("locked_at ASC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// Trim deletes all but the newest keep jobs in the status
func (r *JobRepository) Trim(ctx context.Context, queue string, status entities.JobStatus, keep int) (int64, error) {
	var stale []string
	if err := r.db.WithContext(ctx).
		Model(&entities.Job{}).
		Where("queue = ? AND status = ?", queue, status).
		Order("updated_at DESC").
		Limit(100000).
		Offset(keep).
		Pluck("id", &stale).Error; err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("id IN ?", stale).Delete(&entities.Job{})
	return res.RowsAffected, res.Error
}

func normalizeJobTimes(job *entities.Job) {
	job.RunAt = job.RunAt.UTC()
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	if job.LockedAt != nil {
		t := job.LockedAt.UTC()
		job.LockedAt = &t
	}
	if job.FinishedAt != nil {
		t := job.FinishedAt.UTC()
		job.FinishedAt = &t
	}
}
