package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("resource not found")
)

// Meeting errors
var (
	ErrMeetingNotFound  = errors.New("meeting not found")
	ErrSummaryNotFound  = errors.New("meeting summary not found")
	ErrMeetingCanceled  = errors.New("meeting has been canceled")
	ErrProviderNotReady = errors.New("meeting provider not configured")
	ErrRecordingPending = errors.New("recording not available yet")
	ErrWebhookRejected  = errors.New("webhook signature rejected")
)

// Policy errors
var (
	ErrConsentNotFound = errors.New("consent not recorded for meeting")
	ErrUnknownProfile  = errors.New("unknown consent profile")
	ErrPolicyDenied    = errors.New("operation denied by policy")
)

// Queue errors
var (
	ErrUnknownQueue       = errors.New("unknown queue")
	ErrQueueClosed        = errors.New("queue manager is closed")
	ErrJobNotFound        = errors.New("job not found")
	ErrDeadLetterNotFound = errors.New("dead-letter job not found")
	ErrRetryLimitReached  = errors.New("manual retry limit reached")
)

// Retention errors
var (
	ErrNothingToDelete = errors.New("no meetings found for subject")
	ErrRetentionFailed = errors.New("retention deletion failed")
)

// Integration errors
var (
	ErrProviderFailed = errors.New("meeting provider call failed")
	ErrEnqueueFailed  = errors.New("failed to enqueue job")
)

// ProviderError is a failed call to the meeting provider
type ProviderError struct {
	Provider  string
	Operation string
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s with %s: %v", e.Operation, e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProviderFailed }

// EnqueueError is a job the queue store refused
type EnqueueError struct {
	Queue string
	Err   error
}

func (e *EnqueueError) Error() string {
	return fmt.Sprintf("add job to %s: %v", e.Queue, e.Err)
}

func (e *EnqueueError) Unwrap() error { return e.Err }

func (e *EnqueueError) Is(target error) bool { return target == ErrEnqueueFailed }

// Event bus errors
var (
	ErrInvalidEvent = errors.New("invalid meeting event")
	ErrBusClosed    = errors.New("event bus is closed")
)
