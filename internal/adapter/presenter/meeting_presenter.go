package presenter

import (
	"encoding/json"
	"time"

	"github.com/johnquangdev/meeting-colleague/internal/adapter/dto/meeting"
	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/queue"
)

// ToMeetingResponse converts a meeting entity to its API shape
func ToMeetingResponse(m *entities.Meeting, preBriefAt time.Time) *meeting.MeetingResponse {
	if m == nil {
		return nil
	}

	resp := &meeting.MeetingResponse{
		ID:             m.ID,
		Title:          m.Title,
		Agenda:         m.Agenda,
		OrganizerEmail: m.OrganizerEmail,
		Attendees:      append([]string{}, m.Attendees...),
		StartTime:      m.StartTime,
		Profile:        string(m.Profile),
		Provider:       m.Provider,
		ExternalID:     m.ExternalID,
		Status:         string(m.Status),
	}
	if !m.EndTime.IsZero() {
		end := m.EndTime
		resp.EndTime = &end
	}
	if !preBriefAt.IsZero() {
		resp.PreBriefAt = &preBriefAt
	}
	return resp
}

// ToConsentResponse converts a consent entity to its API shape
func ToConsentResponse(c *entities.Consent) *meeting.ConsentResponse {
	if c == nil {
		return nil
	}

	scope := make([]string, 0, len(c.Scope))
	for _, class := range c.Scope {
		scope = append(scope, string(class))
	}
	return &meeting.ConsentResponse{
		MeetingID:     c.MeetingID,
		Profile:       string(c.Profile),
		Scope:         scope,
		RetentionDays: c.RetentionDays,
		DataResidency: string(c.DataResidency),
		AcceptedAt:    c.AcceptedAt,
		ExpiresAt:     c.AcceptedAt.AddDate(0, 0, c.RetentionDays),
	}
}

func ToSegmentResponse(s entities.TranscriptSegment) *meeting.SegmentResponse {
	return &meeting.SegmentResponse{
		ID:        s.ID,
		MeetingID: s.MeetingID,
		Speaker:   s.Speaker,
		StartTime: s.StartTime,
	}
}

func ToSummaryResponse(s *entities.MeetingSummary) *meeting.SummaryResponse {
	if s == nil {
		return nil
	}
	return &meeting.SummaryResponse{ID: s.ID, MeetingID: s.MeetingID, CreatedAt: s.CreatedAt}
}

// ToEventsResponse encodes every event in its wire envelope
func ToEventsResponse(meetingID string, events []entities.MeetingEvent) (*meeting.EventsResponse, error) {
	out := make([]json.RawMessage, 0, len(events))
	for _, event := range events {
		data, err := entities.EncodeEvent(event)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return &meeting.EventsResponse{MeetingID: meetingID, Count: len(out), Events: out}, nil
}

// ToDeadLetterResponses flattens DLQ entries
func ToDeadLetterResponses(items []queue.DeadLetter) []meeting.DeadLetterResponse {
	out := make([]meeting.DeadLetterResponse, 0, len(items))
	for _, dl := range items {
		out = append(out, meeting.DeadLetterResponse{
			ID:            dl.ID,
			OriginalJobID: dl.OriginalJobID,
			Queue:         dl.Queue,
			Name:          dl.Name,
			Data:          json.RawMessage(dl.Data),
			FailedReason:  dl.FailedReason,
			FailedAt:      dl.FailedAt,
			RetryCount:    dl.RetryCount,
			ManualRetries: dl.ManualRetries,
			CanRetry:      dl.CanRetry,
		})
	}
	return out
}

func ToRetryResponse(job *entities.Job) *meeting.RetryResponse {
	if job == nil {
		return nil
	}
	return &meeting.RetryResponse{JobID: job.ID, Queue: job.Queue, Status: string(job.Status)}
}

// ToRetentionResponse reports per-entity deletion counts with the signed receipt
func ToRetentionResponse(subject string, r *entities.RetentionResult) *meeting.RetentionResponse {
	if r == nil {
		return nil
	}
	return &meeting.RetentionResponse{
		Subject: subject,
		Deleted: map[string]int64{
			"meetings":     r.Counts.Meetings,
			"consents":     r.Counts.Consents,
			"summaries":    r.Counts.Summaries,
			"decisions":    r.Counts.Decisions,
			"actions":      r.Counts.Actions,
			"briefs":       r.Counts.Briefs,
			"stakeholders": r.Counts.Stakeholders,
			"auditEntries": r.Counts.AuditEntries,
		},
		Total:     r.Counts.Total(),
		AuditHash: r.AuditHash,
		Receipt:   json.RawMessage(r.ConsentReceipt),
	}
}
