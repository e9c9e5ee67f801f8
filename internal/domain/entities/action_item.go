package entities

import (
	"time"

	"gorm.io/datatypes"
)

// ActionStatus is the lifecycle state of an action item
type ActionStatus string

const (
	ActionStatusOpen ActionStatus = "open"
	ActionStatusDone ActionStatus = "done"
)

// ActionSource records where an action item came from
type ActionSource string

const (
	ActionSourceSpeech ActionSource = "speech"
	ActionSourceManual ActionSource = "manual"
)

// ExternalLink is a task created for the action in an external tracker
type ExternalLink struct {
	Provider string `json:"provider"`
	URL      string `json:"url"`
}

// ActionItem is a follow-up owned by a meeting participant
type ActionItem struct {
	ID            string                            `json:"id" gorm:"type:varchar(64);primaryKey"`
	MeetingID     string                            `json:"meetingId" gorm:"type:varchar(64);not null;index"`
	Title         string                            `json:"title" gorm:"type:varchar(255);not null"`
	Description   string                            `json:"description" gorm:"type:text"`
	Owner         string                            `json:"owner" gorm:"type:varchar(255)"`
	DueDate       *time.Time                        `json:"dueDate,omitempty"`
	Source        ActionSource                      `json:"source" gorm:"type:varchar(20);not null;default:'speech'"`
	Status        ActionStatus                      `json:"status" gorm:"type:varchar(20);not null;default:'open';index"`
	ExternalLinks datatypes.JSONSlice[ExternalLink] `json:"externalLinks"`
	CreatedAt     time.Time                         `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt     time.Time                         `json:"updatedAt" gorm:"autoUpdateTime"`
}

// IsOpen reports whether the action still needs attention
func (a *ActionItem) IsOpen() bool {
	return a.Status != ActionStatusDone
}

// MarkDone closes the action item
func (a *ActionItem) MarkDone() {
	a.Status = ActionStatusDone
	a.UpdatedAt = time.Now()
}

// AddLink records the URL of a task created in an external tracker
func (a *ActionItem) AddLink(provider, url string) {
	if url == "" {
		return
	}
	a.ExternalLinks = append(a.ExternalLinks, ExternalLink{Provider: provider, URL: url})
}

// Link returns the URL of the task created by provider
func (a *ActionItem) Link(provider string) (string, bool) {
	for _, l := range a.ExternalLinks {
		if l.Provider == provider {
			return l.URL, true
		}
	}
	return "", false
}

// TableName specifies the table name for GORM
func (ActionItem) TableName() string {
	return "action_items"
}
