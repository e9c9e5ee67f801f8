package queue

import (
	"time"

	"github.com/johnquangdev/meeting-colleague/pkg/jobcontext"
)

// Queue names shared by every producer
const (
	QueueMeetingProcessing = "meeting-processing"
	QueueBriefing          = "briefing"
	QueueNotifications     = "notifications"
	QueueNudges            = "nudges"
	QueueRetention         = "retention"
	QueueDeadLetter        = "dead-letter"
)

// BackoffKind selects how retry delays grow
type BackoffKind string

const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffExponential BackoffKind = "exponential"
)

// Backoff is the retry delay policy of a queue
type Backoff struct {
	Kind  BackoffKind
	Delay time.Duration
	Max   time.Duration // exponential only; zero means one hour
}

// DelayFor returns the wait after the given failed attempt (1-based)
func (b Backoff) DelayFor(attempt int) time.Duration {
	if b.Kind == BackoffExponential {
		ceiling := b.Max
		if ceiling <= 0 {
			ceiling = time.Hour
		}
		return jobcontext.CalculateBackoff(attempt, b.Delay, ceiling)
	}
	return b.Delay
}

// KeepAll disables trimming of finished job records
const KeepAll = -1

// QueueOptions configures one named queue
type QueueOptions struct {
	Name          string
	Concurrency   int
	MaxAttempts   int
	Backoff       Backoff
	KeepCompleted int
	KeepFailed    int
	Timeout       time.Duration // per attempt; zero uses jobcontext.DefaultTimeout
}

// DefaultQueueOptions returns the built-in policy of a queue, or false for unknown names
func DefaultQueueOptions(name string) (QueueOptions, bool) {
	opts, ok := defaultQueues[name]
	return opts, ok
}

// DefaultQueueNames lists the built-in queues
func DefaultQueueNames() []string {
	return []string{
		QueueMeetingProcessing,
		QueueBriefing,
		QueueNotifications,
		QueueNudges,
		QueueRetention,
		QueueDeadLetter,
	}
}

var defaultQueues = map[string]QueueOptions{
	QueueMeetingProcessing: {
		Name:          QueueMeetingProcessing,
		Concurrency:   2,
		MaxAttempts:   3,
		Backoff:       Backoff{Kind: BackoffExponential, Delay: 5 * time.Second},
		KeepCompleted: 100,
		KeepFailed:    500,
		Timeout:       10 * time.Minute,
	},
	QueueBriefing: {
		Name:          QueueBriefing,
		Concurrency:   3,
		MaxAttempts:   3,
		Backoff:       Backoff{Kind: BackoffExponential, Delay: 10 * time.Second},
		KeepCompleted: 100,
		KeepFailed:    500,
	},
	QueueNotifications: {
		Name:          QueueNotifications,
		Concurrency:   10,
		MaxAttempts:   5,
		Backoff:       Backoff{Kind: BackoffFixed, Delay: 30 * time.Second},
		KeepCompleted: 100,
		KeepFailed:    500,
		Timeout:       time.Minute,
	},
	QueueNudges: {
		Name:          QueueNudges,
		Concurrency:   5,
		MaxAttempts:   3,
		Backoff:       Backoff{Kind: BackoffFixed, Delay: time.Minute},
		KeepCompleted: 100,
		KeepFailed:    500,
		Timeout:       time.Minute,
	},
	QueueRetention: {
		Name:          QueueRetention,
		Concurrency:   1,
		MaxAttempts:   3,
		Backoff:       Backoff{Kind: BackoffExponential, Delay: time.Minute},
		KeepCompleted: 100,
		KeepFailed:    500,
	},
	QueueDeadLetter: {
		Name:          QueueDeadLetter,
		Concurrency:   1,
		MaxAttempts:   1,
		Backoff:       Backoff{Kind: BackoffFixed},
		KeepCompleted: KeepAll,
		KeepFailed:    KeepAll,
		Timeout:       time.Minute,
	},
}

// EnqueueOptions tunes a single enqueue
type EnqueueOptions struct {
	// IdempotencyKey deduplicates the work. It becomes the job ID unless JobID is set.
	IdempotencyKey string
	// JobID overrides the job identity, e.g. to replace a pending timer for the same subject.
	JobID       string
	Delay       time.Duration
	MaxAttempts int
}
