package meeting

import "time"

// ScheduleMeetingRequest is the body of POST /v1/meetings
type ScheduleMeetingRequest struct {
	ID             string     `json:"id" validate:"omitempty,max=64"`
	Title          string     `json:"title" validate:"required,max=255"`
	Agenda         string     `json:"agenda"`
	OrganizerEmail string     `json:"organizerEmail" validate:"required,email"`
	Attendees      []string   `json:"attendees" validate:"dive,email"`
	StartTime      time.Time  `json:"startTime"`
	EndTime        *time.Time `json:"endTime,omitempty"`
	Profile        string     `json:"profile"`
}

// ConsentRequest is the body of POST /v1/meetings/:id/consent
type ConsentRequest struct {
	Profile string `json:"profile" validate:"required"`
}

// SegmentRequest is one live transcript segment
type SegmentRequest struct {
	ID         string  `json:"id" validate:"omitempty,max=128"`
	Speaker    string  `json:"speaker" validate:"required"`
	Text       string  `json:"text" validate:"required"`
	StartTime  float64 `json:"startTime" validate:"gte=0"`
	EndTime    float64 `json:"endTime" validate:"gte=0"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
	Language   string  `json:"language" validate:"omitempty,max=10"`
	Redacted   bool    `json:"redacted"`
}

// SummaryRequest is the body of POST /v1/meetings/:id/summary
type SummaryRequest struct {
	ExecutiveSummary string   `json:"executiveSummary" validate:"required"`
	KeyPoints        []string `json:"keyPoints"`
	Decisions        []string `json:"decisions"`
	ActionItems      []string `json:"actionItems"`
	OpenQuestions    []string `json:"openQuestions"`
	NextSteps        []string `json:"nextSteps"`
	ModelUsed        string   `json:"modelUsed"`
}
