package entities

import (
	"fmt"
	"strings"
)

// TranscriptSegment is a single speaker turn. Segments are never mutated after ingestion.
type TranscriptSegment struct {
	ID         string  `json:"id"`
	MeetingID  string  `json:"meetingId"`
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	StartTime  float64 `json:"startTime"` // seconds from meeting start
	EndTime    float64 `json:"endTime"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language,omitempty"`
	Redacted   bool    `json:"redacted"`
}

// Key returns a stable identity for the segment within its meeting
func (s TranscriptSegment) Key() string {
	if s.ID != "" {
		return s.ID
	}
	return fmt.Sprintf("%s@%.3f", strings.ToLower(strings.TrimSpace(s.Speaker)), s.StartTime)
}

// Chapter represents an auto-generated chapter in a transcript
type Chapter struct {
	Gist     string  `json:"gist"`
	Headline string  `json:"headline"`
	Summary  string  `json:"summary"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
}
