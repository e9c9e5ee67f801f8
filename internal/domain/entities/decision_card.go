package entities

import (
	"time"

	"gorm.io/datatypes"
)

// Alternative is one labeled option considered for a decision
type Alternative struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Citation points back at the transcript text a card was built from
type Citation struct {
	SegmentID string  `json:"segmentId"`
	Speaker   string  `json:"speaker"`
	Excerpt   string  `json:"excerpt"`
	StartTime float64 `json:"startTime"`
}

// DecisionCard is a structured record of a detected in-meeting decision.
// The ID is derived from the meeting and segment so re-processing upserts the same row.
type DecisionCard struct {
	ID             string                           `json:"id" gorm:"type:varchar(64);primaryKey"`
	MeetingID      string                           `json:"meetingId" gorm:"type:varchar(64);not null;index"`
	Headline       string                           `json:"headline" gorm:"type:text;not null"`
	Problem        string                           `json:"problem" gorm:"type:text"`
	Alternatives   datatypes.JSONSlice[Alternative] `json:"alternatives"`
	Recommendation string                           `json:"recommendation" gorm:"type:text"`
	Owner          string                           `json:"owner" gorm:"type:varchar(255)"`
	DecidedAt      time.Time                        `json:"decidedAt"`
	Consequences   string                           `json:"consequences" gorm:"type:text"`
	Citations      datatypes.JSONSlice[Citation]    `json:"citations"`
	CreatedAt      time.Time                        `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt      time.Time                        `json:"updatedAt" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (DecisionCard) TableName() string {
	return "decision_cards"
}
