package textgen

import (
	"context"
	"time"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
)

// BriefRequest asks for a pre- or post-meeting brief
type BriefRequest struct {
	Variant      entities.BriefType `json:"variant"`
	MeetingID    string             `json:"meetingId"`
	Title        string             `json:"title"`
	Agenda       string             `json:"agenda,omitempty"`
	StartTime    time.Time          `json:"startTime"`
	Attendees    []string           `json:"attendees"`
	Stakeholders []string           `json:"stakeholders,omitempty"`
	OpenActions  int64              `json:"openActions"`
	Summary      *SummaryResult     `json:"summary,omitempty"`
}

// BriefResult is the generated brief
type BriefResult struct {
	Subject   string   `json:"subject"`
	Headline  string   `json:"headline"`
	KeyPoints []string `json:"keyPoints"`
	Decisions []string `json:"decisions,omitempty"`
	Risks     []string `json:"risks,omitempty"`
	NextSteps []string `json:"nextSteps,omitempty"`
	Content   string   `json:"content"`
}

// SummaryRequest asks for a meeting summary from the transcript
type SummaryRequest struct {
	MeetingID  string `json:"meetingId"`
	Title      string `json:"title,omitempty"`
	Transcript string `json:"transcript"`
}

// SummaryResult is the generated meeting summary
type SummaryResult struct {
	ExecutiveSummary string   `json:"executiveSummary"`
	KeyPoints        []string `json:"keyPoints"`
	Decisions        []string `json:"decisions"`
	ActionItems      []string `json:"actionItems"`
	OpenQuestions    []string `json:"openQuestions,omitempty"`
	NextSteps        []string `json:"nextSteps,omitempty"`
	Model            string   `json:"model,omitempty"`
}

// StakeholderRequest asks for profiles of the meeting participants
type StakeholderRequest struct {
	MeetingID  string   `json:"meetingId"`
	Attendees  []string `json:"attendees"`
	Transcript string   `json:"transcript,omitempty"`
}

// StakeholderProfile is one analyzed participant
type StakeholderProfile struct {
	Email        string   `json:"email"`
	Name         string   `json:"name"`
	Role         string   `json:"role,omitempty"`
	Organization string   `json:"organization,omitempty"`
	Interests    []string `json:"interests,omitempty"`
	Influence    string   `json:"influence,omitempty"`
	Notes        string   `json:"notes,omitempty"`
}

type stakeholderResponse struct {
	Stakeholders []StakeholderProfile `json:"stakeholders"`
}

// RegulationRequest asks for regulation changes relevant to a meeting topic
type RegulationRequest struct {
	MeetingID string   `json:"meetingId"`
	Topics    []string `json:"topics"`
	Region    string   `json:"region,omitempty"`
}

type regulationResponse struct {
	Changes []entities.RegulationChange `json:"changes"`
}

// GenerateBrief calls POST /briefings
func (c *Client) GenerateBrief(ctx context.Context, req BriefRequest) (*BriefResult, error) {
	var out BriefResult
	if err := c.post(ctx, "/briefings", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Summarize calls POST /summaries
func (c *Client) Summarize(ctx context.Context, req SummaryRequest) (*SummaryResult, error) {
	var out SummaryResult
	if err := c.post(ctx, "/summaries", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzeStakeholders calls POST /stakeholders/analyze
func (c *Client) AnalyzeStakeholders(ctx context.Context, req StakeholderRequest) ([]StakeholderProfile, error) {
	var out stakeholderResponse
	if err := c.post(ctx, "/stakeholders/analyze", req, &out); err != nil {
		return nil, err
	}
	return out.Stakeholders, nil
}

// RegulationChanges calls POST /regwatch/changes
func (c *Client) RegulationChanges(ctx context.Context, req RegulationRequest) ([]entities.RegulationChange, error) {
	var out regulationResponse
	if err := c.post(ctx, "/regwatch/changes", req, &out); err != nil {
		return nil, err
	}
	return out.Changes, nil
}
