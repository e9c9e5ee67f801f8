package repositories

import (
	"context"
	"time"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
)

// JobRepository is the backing store of the job queue runtime
type JobRepository interface {
	// Add inserts the job unless one with the same ID exists; created reports which happened.
	Add(ctx context.Context, job *entities.Job) (created bool, err error)

	// ClaimNext atomically moves the oldest due job of the queue to active.
	// It returns (nil, nil) when nothing is due.
	ClaimNext(ctx context.Context, queue string, now time.Time) (*entities.Job, error)

	Update(ctx context.Context, job *entities.Job) error
	Get(ctx context.Context, id string) (*entities.Job, error)
	List(ctx context.Context, queue string, statuses []entities.JobStatus, limit int) ([]entities.Job, error)
	Remove(ctx context.Context, id string) (bool, error)

	// Stalled lists active jobs locked before the cutoff
	Stalled(ctx context.Context, lockedBefore time.Time) ([]entities.Job, error)

	// Trim keeps the newest keep jobs of the queue in the given status and deletes the rest
	Trim(ctx context.Context, queue string, status entities.JobStatus, keep int) (int64, error)
}
