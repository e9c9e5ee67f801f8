package entities

import "time"

// DeletedCounts is the number of rows removed per entity type
type DeletedCounts struct {
	AuditEntries int64 `json:"auditEntries"`
	Decisions    int64 `json:"decisions"`
	Actions      int64 `json:"actions"`
	Briefs       int64 `json:"briefs"`
	Stakeholders int64 `json:"stakeholders"`
	Summaries    int64 `json:"summaries"`
	Consents     int64 `json:"consents"`
	Meetings     int64 `json:"meetings"`
}

// Total sums every entity count
func (c DeletedCounts) Total() int64 {
	return c.AuditEntries + c.Decisions + c.Actions + c.Briefs +
		c.Stakeholders + c.Summaries + c.Consents + c.Meetings
}

// Add accumulates another set of counts
func (c *DeletedCounts) Add(o DeletedCounts) {
	c.AuditEntries += o.AuditEntries
	c.Decisions += o.Decisions
	c.Actions += o.Actions
	c.Briefs += o.Briefs
	c.Stakeholders += o.Stakeholders
	c.Summaries += o.Summaries
	c.Consents += o.Consents
	c.Meetings += o.Meetings
}

// ConsentReceipt describes what was deleted and under which policy
type ConsentReceipt struct {
	ReceiptID     string         `json:"receiptId"`
	MeetingIDs    []string       `json:"meetingIds"`
	Subject       string         `json:"subject"` // organizer email for user deletions, meeting id otherwise
	Profile       ConsentProfile `json:"profile,omitempty"`
	RetentionDays int            `json:"retentionDays,omitempty"`
	DataResidency Region         `json:"dataResidency,omitempty"`
	Deleted       DeletedCounts  `json:"deleted"`
	DeletedAt     time.Time      `json:"deletedAt"`
	AuditHash     string         `json:"auditHash"`
	Signature     string         `json:"signature"`
}

// RetentionResult is returned by a retention execution
type RetentionResult struct {
	MeetingID      string        `json:"meetingId,omitempty"`
	Counts         DeletedCounts `json:"counts"`
	AuditHash      string        `json:"auditHash"`
	ConsentReceipt []byte        `json:"consentReceipt"`
}

// MeetingBundle is a meeting together with every dependent row
type MeetingBundle struct {
	Meeting      Meeting
	Consent      *Consent
	Summary      *MeetingSummary
	Decisions    []DecisionCard
	Actions      []ActionItem
	Briefs       []Brief
	Stakeholders []Stakeholder
	AuditEntries []AuditEntry
}
