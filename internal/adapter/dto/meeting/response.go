package meeting

import (
	"encoding/json"
	"time"
)

// MeetingResponse is a scheduled meeting
type MeetingResponse struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Agenda         string     `json:"agenda,omitempty"`
	OrganizerEmail string     `json:"organizerEmail"`
	Attendees      []string   `json:"attendees"`
	StartTime      time.Time  `json:"startTime"`
	EndTime        *time.Time `json:"endTime,omitempty"`
	Profile        string     `json:"profile"`
	Provider       string     `json:"provider,omitempty"`
	ExternalID     string     `json:"externalId,omitempty"`
	Status         string     `json:"status"`
	PreBriefAt     *time.Time `json:"preBriefAt,omitempty"`
}

// ConsentResponse is the active consent of a meeting
type ConsentResponse struct {
	MeetingID     string    `json:"meetingId"`
	Profile       string    `json:"profile"`
	Scope         []string  `json:"scope"`
	RetentionDays int       `json:"retentionDays"`
	DataResidency string    `json:"dataResidency"`
	AcceptedAt    time.Time `json:"acceptedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// SegmentResponse acknowledges an ingested segment
type SegmentResponse struct {
	ID        string  `json:"id"`
	MeetingID string  `json:"meetingId"`
	Speaker   string  `json:"speaker"`
	StartTime float64 `json:"startTime"`
}

// SummaryResponse acknowledges a stored summary
type SummaryResponse struct {
	ID        string    `json:"id"`
	MeetingID string    `json:"meetingId"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventsResponse is the replay log of a meeting, oldest first
type EventsResponse struct {
	MeetingID string            `json:"meetingId"`
	Count     int               `json:"count"`
	Events    []json.RawMessage `json:"events"`
}

// WebhookResponse reports how a provider webhook was classified
type WebhookResponse struct {
	Kind       string `json:"kind"`
	ExternalID string `json:"externalId,omitempty"`
}

// DeadLetterResponse is one parked job
type DeadLetterResponse struct {
	ID            string          `json:"id"`
	OriginalJobID string          `json:"originalJobId"`
	Queue         string          `json:"queue"`
	Name          string          `json:"name"`
	Data          json.RawMessage `json:"data,omitempty"`
	FailedReason  string          `json:"failedReason"`
	FailedAt      time.Time       `json:"failedAt"`
	RetryCount    int             `json:"retryCount"`
	ManualRetries int             `json:"manualRetries"`
	CanRetry      bool            `json:"canRetry"`
}

// RetryResponse is the job re-queued from the DLQ
type RetryResponse struct {
	JobID  string `json:"jobId"`
	Queue  string `json:"queue"`
	Status string `json:"status"`
}

// RetentionResponse is the outcome of a data deletion
type RetentionResponse struct {
	Subject   string          `json:"subject"`
	Deleted   map[string]int64 `json:"deleted"`
	Total     int64           `json:"total"`
	AuditHash string          `json:"auditHash"`
	Receipt   json.RawMessage `json:"receipt"`
}
