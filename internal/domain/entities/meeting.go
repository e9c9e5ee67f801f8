package entities

import (
	"time"

	"gorm.io/datatypes"
)

// MeetingStatus tracks a meeting through scheduling
type MeetingStatus string

const (
	MeetingStatusScheduled MeetingStatus = "scheduled"
	MeetingStatusCanceled  MeetingStatus = "canceled"
	MeetingStatusEnded     MeetingStatus = "ended"
)

// Meeting holds the metadata the colleague needs to brief and process a meeting
type Meeting struct {
	ID             string                      `json:"id" gorm:"type:varchar(64);primaryKey"`
	Title          string                      `json:"title" gorm:"type:varchar(255);not null"`
	Agenda         string                      `json:"agenda,omitempty" gorm:"type:text"`
	OrganizerEmail string                      `json:"organizerEmail" gorm:"type:varchar(255);not null;index"`
	Attendees      datatypes.JSONSlice[string] `json:"attendees"`
	StartTime      time.Time                   `json:"startTime" gorm:"not null"`
	EndTime        time.Time                   `json:"endTime"`
	Profile        ConsentProfile              `json:"profile" gorm:"type:varchar(20);not null;default:'bas'"`
	Provider       string                      `json:"provider,omitempty" gorm:"type:varchar(50)"`
	ExternalID     string                      `json:"externalId,omitempty" gorm:"type:varchar(255);index"`
	RecordingURL   string                      `json:"recordingUrl,omitempty" gorm:"type:text"`
	Status         MeetingStatus               `json:"status" gorm:"type:varchar(20);not null;default:'scheduled'"`
	CreatedAt      time.Time                   `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt      time.Time                   `json:"updatedAt" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Meeting) TableName() string {
	return "meetings"
}

// MeetingSummary is the post-meeting summary of a meeting; one per meeting.
type MeetingSummary struct {
	MeetingID        string                      `json:"meetingId" gorm:"type:varchar(64);primaryKey"`
	ID               string                      `json:"id" gorm:"type:varchar(64);not null"`
	ExecutiveSummary string                      `json:"executiveSummary" gorm:"type:text"`
	KeyPoints        datatypes.JSONSlice[string] `json:"keyPoints"`
	Decisions        datatypes.JSONSlice[string] `json:"decisions"`
	ActionItems      datatypes.JSONSlice[string] `json:"actionItems"`
	OpenQuestions    datatypes.JSONSlice[string] `json:"openQuestions,omitempty"`
	NextSteps        datatypes.JSONSlice[string] `json:"nextSteps,omitempty"`
	ModelUsed        string                      `json:"modelUsed,omitempty" gorm:"type:varchar(100)"`
	CreatedAt        time.Time                   `json:"createdAt"`
}

// TableName specifies the table name for GORM
func (MeetingSummary) TableName() string {
	return "meeting_summaries"
}

// Stakeholder is a participant profile attached to a meeting
type Stakeholder struct {
	ID           string                      `json:"id" gorm:"type:varchar(64);primaryKey"`
	MeetingID    string                      `json:"meetingId" gorm:"type:varchar(64);not null;index"`
	Email        string                      `json:"email" gorm:"type:varchar(255)"`
	Name         string                      `json:"name" gorm:"type:varchar(255)"`
	Role         string                      `json:"role,omitempty" gorm:"type:varchar(255)"`
	Organization string                      `json:"organization,omitempty" gorm:"type:varchar(255)"`
	Interests    datatypes.JSONSlice[string] `json:"interests,omitempty"`
	Influence    string                      `json:"influence,omitempty" gorm:"type:varchar(20)"`
	Notes        string                      `json:"notes,omitempty" gorm:"type:text"`
	UpdatedAt    time.Time                   `json:"updatedAt" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Stakeholder) TableName() string {
	return "stakeholders"
}

// AuditEntry is an append-only compliance record
type AuditEntry struct {
	ID        string         `json:"id" gorm:"type:varchar(64);primaryKey"`
	MeetingID string         `json:"meetingId" gorm:"type:varchar(64);index"`
	Action    string         `json:"action" gorm:"type:varchar(100);not null"`
	Actor     string         `json:"actor" gorm:"type:varchar(255)"`
	Detail    datatypes.JSON `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// TableName specifies the table name for GORM
func (AuditEntry) TableName() string {
	return "audit_entries"
}
