package entities

import (
	"time"

	"gorm.io/datatypes"
)

// BriefType distinguishes the briefing sent before and after a meeting
type BriefType string

const (
	BriefTypePre  BriefType = "pre"
	BriefTypePost BriefType = "post"
)

// Brief is keyed by (MeetingID, Type); regenerating overwrites it.
type Brief struct {
	MeetingID       string                      `json:"meetingId" gorm:"type:varchar(64);primaryKey"`
	Type            BriefType                   `json:"type" gorm:"type:varchar(10);primaryKey"`
	GeneratedAt     time.Time                   `json:"generatedAt"`
	Subject         string                      `json:"subject" gorm:"type:varchar(255)"`
	Headline        string                      `json:"headline" gorm:"type:text"`
	KeyPoints       datatypes.JSONSlice[string] `json:"keyPoints"`
	Decisions       datatypes.JSONSlice[string] `json:"decisions,omitempty"`
	Risks           datatypes.JSONSlice[string] `json:"risks,omitempty"`
	NextSteps       datatypes.JSONSlice[string] `json:"nextSteps,omitempty"`
	Content         string                      `json:"content" gorm:"type:text"`
	DeliveryTargets datatypes.JSONSlice[string] `json:"deliveryTargets"`
	Generated       bool                        `json:"generated"` // false when the deterministic fallback produced it
}

// TableName specifies the table name for GORM
func (Brief) TableName() string {
	return "briefs"
}
