package entities

import (
	"time"

	"gorm.io/datatypes"
)

// JobStatus represents the status of a queued job
type JobStatus string

const (
	JobStatusWaiting   JobStatus = "waiting"   // Ready to be claimed by a worker
	JobStatusActive    JobStatus = "active"    // Claimed and running
	JobStatusCompleted JobStatus = "completed" // Handler returned successfully
	JobStatusFailed    JobStatus = "failed"    // Attempts exhausted or permanent error
	JobStatusDelayed   JobStatus = "delayed"   // Waiting for RunAt (deferred or backing off)
)

// MaxManualRetries caps how often an operator may revive a dead-lettered job
const MaxManualRetries = 5

// Job is a unit of asynchronous work on a named queue.
// When an idempotency key is given it doubles as the job ID.
type Job struct {
	ID             string         `json:"id" gorm:"type:varchar(255);primaryKey"`
	Queue          string         `json:"queue" gorm:"type:varchar(50);not null;index:idx_jobs_queue_status"`
	Name           string         `json:"name" gorm:"type:varchar(100)"`
	Payload        datatypes.JSON `json:"payload"`
	IdempotencyKey string         `json:"idempotencyKey,omitempty" gorm:"type:varchar(255);index"`
	Status         JobStatus      `json:"status" gorm:"type:varchar(20);not null;index:idx_jobs_queue_status;default:'waiting'"`
	AttemptsMade   int            `json:"attemptsMade" gorm:"not null;default:0"`
	MaxAttempts    int            `json:"maxAttempts" gorm:"not null;default:3"`
	ManualRetries  int            `json:"manualRetries" gorm:"not null;default:0"`
	RunAt          time.Time      `json:"runAt" gorm:"not null;index"`
	LockedAt       *time.Time     `json:"lockedAt,omitempty"`
	LastError      string         `json:"lastError,omitempty" gorm:"type:text"`
	FinishedAt     *time.Time     `json:"finishedAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// IsPending reports whether the job may still run
func (j *Job) IsPending() bool {
	return j.Status == JobStatusWaiting || j.Status == JobStatusDelayed
}

// IsDue reports whether a pending job may be claimed at now
func (j *Job) IsDue(now time.Time) bool {
	return j.IsPending() && !j.RunAt.After(now)
}

// MarkActive marks the job as claimed by a worker
func (j *Job) MarkActive(now time.Time) {
	j.Status = JobStatusActive
	j.LockedAt = &now
	j.UpdatedAt = now
}

// MarkCompleted marks the job as finished successfully
func (j *Job) MarkCompleted(now time.Time) {
	j.Status = JobStatusCompleted
	j.LockedAt = nil
	j.FinishedAt = &now
	j.UpdatedAt = now
}

// MarkFailed marks the job as terminally failed
func (j *Job) MarkFailed(now time.Time, errMsg string) {
	j.Status = JobStatusFailed
	j.LastError = errMsg
	j.LockedAt = nil
	j.FinishedAt = &now
	j.UpdatedAt = now
}

// ScheduleRetry puts the job back to sleep until runAt
func (j *Job) ScheduleRetry(runAt time.Time, errMsg string, now time.Time) {
	j.Status = JobStatusDelayed
	j.LastError = errMsg
	j.LockedAt = nil
	j.RunAt = runAt
	j.UpdatedAt = now
}

// TableName specifies the table name for GORM
func (Job) TableName() string {
	return "jobs"
}

// DeadLetterJob wraps a job that exhausted its retry budget
type DeadLetterJob struct {
	OriginalJobID  string         `json:"originalJobId"`
	Queue          string         `json:"queue"`
	Name           string         `json:"name"`
	Data           datatypes.JSON `json:"data"`
	IdempotencyKey string         `json:"idempotencyKey,omitempty"`
	FailedReason   string         `json:"failedReason"`
	FailedAt       time.Time      `json:"failedAt"`
	RetryCount     int            `json:"retryCount"`
	ManualRetries  int            `json:"manualRetries"`
	CanRetry       bool           `json:"canRetry"`
}

// NewDeadLetterJob builds the DLQ record for an exhausted job
func NewDeadLetterJob(job *Job, reason string, failedAt time.Time) DeadLetterJob {
	return DeadLetterJob{
		OriginalJobID:  job.ID,
		Queue:          job.Queue,
		Name:           job.Name,
		Data:           job.Payload,
		IdempotencyKey: job.IdempotencyKey,
		FailedReason:   reason,
		FailedAt:       failedAt,
		RetryCount:     job.AttemptsMade,
		ManualRetries:  job.ManualRetries,
		CanRetry:       job.AttemptsMade < MaxManualRetries && job.ManualRetries < MaxManualRetries,
	}
}
