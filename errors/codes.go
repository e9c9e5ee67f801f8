package errors

// ErrorCode is the stable machine-readable code returned in error bodies
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// General
const (
	ErrorCode_INTERNAL         ErrorCode = "INTERNAL"
	ErrorCode_INVALID_ARGUMENT ErrorCode = "INVALID_ARGUMENT"
	ErrorCode_INVALID_PAYLOAD  ErrorCode = "INVALID_PAYLOAD"
	ErrorCode_NOT_FOUND        ErrorCode = "NOT_FOUND"
	ErrorCode_UNAUTHENTICATED  ErrorCode = "UNAUTHENTICATED"
)

// Policy / consent
const (
	ErrorCode_POLICY_DENIED     ErrorCode = "POLICY_DENIED"
	ErrorCode_CONSENT_NOT_FOUND ErrorCode = "CONSENT_NOT_FOUND"
	ErrorCode_UNKNOWN_PROFILE   ErrorCode = "UNKNOWN_PROFILE"
)

// Meetings and providers
const (
	ErrorCode_MEETING_NOT_FOUND  ErrorCode = "MEETING_NOT_FOUND"
	ErrorCode_SUMMARY_NOT_FOUND  ErrorCode = "SUMMARY_NOT_FOUND"
	ErrorCode_PROVIDER_FAILED    ErrorCode = "PROVIDER_FAILED"
	ErrorCode_PROVIDER_NOT_READY ErrorCode = "PROVIDER_NOT_CONFIGURED"
)

// Queue
const (
	ErrorCode_QUEUE_UNKNOWN         ErrorCode = "QUEUE_UNKNOWN"
	ErrorCode_JOB_NOT_FOUND         ErrorCode = "JOB_NOT_FOUND"
	ErrorCode_DEAD_LETTER_NOT_FOUND ErrorCode = "DEAD_LETTER_NOT_FOUND"
	ErrorCode_RETRY_LIMIT_REACHED   ErrorCode = "RETRY_LIMIT_REACHED"
	ErrorCode_ENQUEUE_FAILED        ErrorCode = "ENQUEUE_FAILED"
)

// Retention
const (
	ErrorCode_RETENTION_FAILED ErrorCode = "RETENTION_FAILED"
)
