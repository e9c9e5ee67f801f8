package errors

import (
	"fmt"
	"net/http"
	"time"
)

// AppError is the error type surfaced to API callers
type AppError struct {
	Raw       error
	HTTPCode  int
	Code      ErrorCode
	Message   string
	Details   map[string]string
	Timestamp time.Time
}

// Error implements error interface
func (e AppError) Error() string {
	if e.Raw != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code.String(), e.Message, e.Raw)
	}
	return fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
}

// Unwrap exposes the underlying error to errors.Is / errors.As
func (e AppError) Unwrap() error {
	return e.Raw
}

// WithDetail adds a detail to the error
func (e AppError) WithDetail(key, value string) AppError {
	details := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	e.Details = details
	return e
}

// General Errors
func ErrInternal(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_INTERNAL,
		Message:  "Internal server error",
	}
}

func ErrInvalidArgument(message string) AppError {
	return AppError{
		HTTPCode: http.StatusBadRequest,
		Code:     ErrorCode_INVALID_ARGUMENT,
		Message:  message,
	}
}

func ErrInvalidPayload() AppError {
	return AppError{
		HTTPCode: http.StatusBadRequest,
		Code:     ErrorCode_INVALID_PAYLOAD,
		Message:  "Invalid payload",
	}
}

func ErrNotFound(resource string) AppError {
	return AppError{
		HTTPCode: http.StatusNotFound,
		Code:     ErrorCode_NOT_FOUND,
		Message:  fmt.Sprintf("%s not found", resource),
	}
}

// Policy Errors
func ErrPolicyDenied(reason string) AppError {
	return AppError{
		HTTPCode: http.StatusForbidden,
		Code:     ErrorCode_POLICY_DENIED,
		Message:  "Operation denied by consent policy",
	}.WithDetail("reason", reason)
}

func ErrConsentNotFound(meetingID string) AppError {
	return AppError{
		HTTPCode: http.StatusNotFound,
		Code:     ErrorCode_CONSENT_NOT_FOUND,
		Message:  "Consent not recorded",
	}.WithDetail("meeting_id", meetingID)
}

func ErrUnknownProfile(profile string) AppError {
	return AppError{
		HTTPCode: http.StatusBadRequest,
		Code:     ErrorCode_UNKNOWN_PROFILE,
		Message:  "Unknown consent profile",
	}.WithDetail("profile", profile)
}

// Meeting Errors
func ErrMeetingNotFound(meetingID string) AppError {
	return AppError{
		HTTPCode: http.StatusNotFound,
		Code:     ErrorCode_MEETING_NOT_FOUND,
		Message:  "Meeting not found",
	}.WithDetail("meeting_id", meetingID)
}

func ErrSummaryNotFound(meetingID string) AppError {
	return AppError{
		HTTPCode: http.StatusNotFound,
		Code:     ErrorCode_SUMMARY_NOT_FOUND,
		Message:  "Meeting summary not found",
	}.WithDetail("meeting_id", meetingID)
}

func ErrProviderFailed(provider, operation string, err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusBadGateway,
		Code:     ErrorCode_PROVIDER_FAILED,
		Message:  fmt.Sprintf("Provider operation failed: %s", operation),
	}.WithDetail("provider", provider)
}

func ErrProviderNotConfigured(provider string) AppError {
	return AppError{
		HTTPCode: http.StatusServiceUnavailable,
		Code:     ErrorCode_PROVIDER_NOT_READY,
		Message:  "Provider is not configured",
	}.WithDetail("provider", provider)
}

// Queue Errors
func ErrQueueUnknown(queue string) AppError {
	return AppError{
		HTTPCode: http.StatusBadRequest,
		Code:     ErrorCode_QUEUE_UNKNOWN,
		Message:  "Unknown queue",
	}.WithDetail("queue", queue)
}

func ErrJobNotFound(jobID string) AppError {
	return AppError{
		HTTPCode: http.StatusNotFound,
		Code:     ErrorCode_JOB_NOT_FOUND,
		Message:  "Job not found",
	}.WithDetail("job_id", jobID)
}

func ErrDeadLetterNotFound(jobID string) AppError {
	return AppError{
		HTTPCode: http.StatusNotFound,
		Code:     ErrorCode_DEAD_LETTER_NOT_FOUND,
		Message:  "Dead-letter job not found",
	}.WithDetail("job_id", jobID)
}

func ErrRetryLimitReached(jobID string) AppError {
	return AppError{
		HTTPCode: http.StatusConflict,
		Code:     ErrorCode_RETRY_LIMIT_REACHED,
		Message:  "Manual retry limit reached",
	}.WithDetail("job_id", jobID)
}

func ErrEnqueueFailed(queue string, err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_ENQUEUE_FAILED,
		Message:  "Failed to enqueue job",
	}.WithDetail("queue", queue)
}

// Retention Errors
func ErrRetentionFailed(subject string, err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_RETENTION_FAILED,
		Message:  "Retention deletion failed; no data was removed",
	}.WithDetail("subject", subject)
}

func ErrUnauthenticated(message string) AppError {
	return AppError{
		HTTPCode: http.StatusUnauthorized,
		Code:     ErrorCode_UNAUTHENTICATED,
		Message:  message,
	}
}
