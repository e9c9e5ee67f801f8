package jobcontext

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type KeyContext string

var (
	keyJobID        KeyContext = "job_id"
	keyQueue        KeyContext = "queue"
	keyJobName      KeyContext = "job_name"
	keyWorkerID     KeyContext = "worker_id"
	keyAttempt      KeyContext = "attempt"
	keyMaxAttempts  KeyContext = "max_attempts"
	keyJobStartTime KeyContext = "job_start_time"
)

// DefaultTimeout bounds a single job attempt
const DefaultTimeout = 5 * time.Minute

// JobMetadata holds metadata for a job execution
type JobMetadata struct {
	JobID       string
	Queue       string
	Name        string
	WorkerID    int
	Attempt     int // 1-based attempt currently running
	MaxAttempts int
	StartTime   time.Time
}

// JobBegin derives the context a single job attempt runs under.
// A zero timeout falls back to DefaultTimeout.
func JobBegin(parentCtx context.Context, meta JobMetadata, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	// Create context with timeout to prevent infinite hanging
	ctx, cancel := context.WithTimeout(parentCtx, timeout)

	if meta.StartTime.IsZero() {
		meta.StartTime = time.Now()
	}
	ctx = context.WithValue(ctx, keyJobID, meta.JobID)
	ctx = context.WithValue(ctx, keyQueue, meta.Queue)
	ctx = context.WithValue(ctx, keyJobName, meta.Name)
	ctx = context.WithValue(ctx, keyWorkerID, meta.WorkerID)
	ctx = context.WithValue(ctx, keyAttempt, meta.Attempt)
	ctx = context.WithValue(ctx, keyMaxAttempts, meta.MaxAttempts)
	ctx = context.WithValue(ctx, keyJobStartTime, meta.StartTime)

	return ctx, cancel
}

// Run executes one attempt of jobFunc, converting panics into errors.
// Retrying is the caller's business.
func Run(ctx context.Context, jobFunc func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic recovered: %v\n%s", p, debug.Stack())
		}
	}()

	// Check if context was cancelled before execution
	if ctx.Err() != nil {
		return fmt.Errorf("context cancelled before job execution: %w", ctx.Err())
	}

	return jobFunc(ctx)
}

// GetJobID extracts job ID from context
func GetJobID(ctx context.Context) (string, bool) {
	jobID, ok := ctx.Value(keyJobID).(string)
	return jobID, ok
}

// GetQueue extracts the queue name from context
func GetQueue(ctx context.Context) (string, bool) {
	queue, ok := ctx.Value(keyQueue).(string)
	return queue, ok
}

// GetWorkerID extracts worker ID from context
func GetWorkerID(ctx context.Context) int {
	workerID, ok := ctx.Value(keyWorkerID).(int)
	if !ok {
		return -1
	}
	return workerID
}

// GetAttempt extracts the current attempt from context
func GetAttempt(ctx context.Context) int {
	attempt, ok := ctx.Value(keyAttempt).(int)
	if !ok {
		return 0
	}
	return attempt
}

// IsFinalAttempt reports whether a failure of this attempt exhausts the job
func IsFinalAttempt(ctx context.Context) bool {
	maxAttempts, ok := ctx.Value(keyMaxAttempts).(int)
	return ok && GetAttempt(ctx) >= maxAttempts
}

// GetJobMetadata extracts all job metadata from context
func GetJobMetadata(ctx context.Context) *JobMetadata {
	jobID, _ := GetJobID(ctx)
	queue, _ := GetQueue(ctx)
	name, _ := ctx.Value(keyJobName).(string)
	maxAttempts, _ := ctx.Value(keyMaxAttempts).(int)
	startTime, _ := ctx.Value(keyJobStartTime).(time.Time)

	return &JobMetadata{
		JobID:       jobID,
		Queue:       queue,
		Name:        name,
		WorkerID:    GetWorkerID(ctx),
		Attempt:     GetAttempt(ctx),
		MaxAttempts: maxAttempts,
		StartTime:   startTime,
	}
}

// IsPermanent reports whether err was marked non-retryable with backoff.Permanent
func IsPermanent(err error) bool {
	var permanent *backoff.PermanentError
	return errors.As(err, &permanent)
}

// IsRetryableError checks if an error should trigger a retry
// Retryable errors include: network errors, timeouts, deadlocks, rate limits
func IsRetryableError(err error) bool {
	if err == nil || IsPermanent(err) {
		return false
	}

	errStr := strings.ToLower(err.Error())

	// Context errors (timeout, cancelled)
	if strings.Contains(errStr, "context deadline exceeded") ||
		strings.Contains(errStr, "context canceled") {
		return true
	}

	// Network errors
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "network unreachable") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "eof") {
		return true
	}

	// Database deadlock/lock errors (Postgres)
	if strings.Contains(errStr, "deadlock") ||
		strings.Contains(errStr, "40001") || // serialization_failure
		strings.Contains(errStr, "40p01") { // deadlock_detected
		return true
	}

	// API rate limiting
	if strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "status 429") {
		return true
	}

	// Server errors (5xx)
	if strings.Contains(errStr, "status 5") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "bad gateway") {
		return true
	}

	// Temporary failures
	if strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "try again") {
		return true
	}

	return false
}

// CalculateBackoff returns 2^(attempt-1) * baseDelay capped at maxDelay.
// A zero maxDelay means 60 seconds.
func CalculateBackoff(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if maxDelay <= 0 {
		maxDelay = 60 * time.Second
	}
	if attempt > 30 {
		return maxDelay
	}

	backoff := time.Duration(1<<uint(attempt-1)) * baseDelay
	if backoff > maxDelay || backoff <= 0 {
		backoff = maxDelay
	}

	return backoff
}
