// Package providers declares the external capabilities the pipeline depends on.
// Implementations live under internal/infrastructure/external.
package providers

import (
	"context"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
)

// TaskProvider creates tasks in an external tracker
type TaskProvider interface {
	Name() string
	// Configured reports whether the provider has the settings it needs
	Configured() bool
	// CreateTask returns the task URL, or "" when the tracker has none
	CreateTask(ctx context.Context, action *entities.ActionItem) (string, error)
}

// Reminder is implemented by task providers that can nudge an action owner
type Reminder interface {
	SendReminder(ctx context.Context, action *entities.ActionItem) error
}

// WebhookKind classifies an inbound meeting provider webhook
type WebhookKind string

const (
	WebhookRecordingReady WebhookKind = "recording_ready"
	WebhookMeetingEnded   WebhookKind = "meeting_ended"
	WebhookIgnored        WebhookKind = "ignored"
)

// WebhookOutcome is what the pipeline needs to know about a provider webhook
type WebhookOutcome struct {
	Kind         WebhookKind
	ExternalID   string
	RecordingURL string
}

// MeetingProvider is a meeting platform the colleague can join
type MeetingProvider interface {
	Name() string
	Configured() bool
	ScheduleMeeting(ctx context.Context, meeting *entities.Meeting) (externalID string, err error)
	CancelMeeting(ctx context.Context, externalID string) error
	// FetchRecording returns "" when no recording is available yet
	FetchRecording(ctx context.Context, externalID string) (string, error)
	FetchTranscript(ctx context.Context, meeting *entities.Meeting) ([]entities.TranscriptSegment, error)
	HandleWebhook(ctx context.Context, body []byte, authHeader string) (*WebhookOutcome, error)
}
