package entities

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the payload carried by a MeetingEvent
type EventType string

const (
	EventSpeechSegment      EventType = "speech.segment"
	EventDecisionFinalized  EventType = "decision.finalized"
	EventCommitment         EventType = "commitment"
	EventActionCreated      EventType = "action.created"
	EventMeetingConsent     EventType = "meeting.consent"
	EventMeetingSummary     EventType = "meeting.summary"
	EventMeetingBrief       EventType = "meeting.brief"
	EventStakeholderProfile EventType = "stakeholder.profile"
	EventRegulationChange   EventType = "regulation.change"
)

// EventPayload is implemented by every value that can travel on the bus.
type EventPayload interface {
	EventType() EventType
}

// MeetingEvent is an immutable fact about a meeting. Type always matches Payload.EventType().
type MeetingEvent struct {
	ID            string
	Type          EventType
	MeetingID     string
	OccurredAt    time.Time
	CorrelationID string
	Payload       EventPayload
}

// NewMeetingEvent builds an event for the given payload
func NewMeetingEvent(meetingID string, payload EventPayload, occurredAt time.Time) MeetingEvent {
	return MeetingEvent{
		ID:         uuid.New().String(),
		Type:       payload.EventType(),
		MeetingID:  meetingID,
		OccurredAt: occurredAt.UTC(),
		Payload:    payload,
	}
}

// WithCorrelation returns a copy of the event carrying the correlation id
func (e MeetingEvent) WithCorrelation(correlationID string) MeetingEvent {
	e.CorrelationID = correlationID
	return e
}

// Commitment is a spoken pledge detected in a transcript segment
type Commitment struct {
	Statement string     `json:"statement"`
	Owner     string     `json:"owner"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
	SegmentID string     `json:"segmentId"`
	SpokenAt  time.Time  `json:"spokenAt"`
}

func (Commitment) EventType() EventType { return EventCommitment }

// RegulationChange is published by the regulation watch integration
type RegulationChange struct {
	Source      string     `json:"source"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	URL         string     `json:"url,omitempty"`
	EffectiveAt *time.Time `json:"effectiveAt,omitempty"`
}

func (RegulationChange) EventType() EventType { return EventRegulationChange }

func (TranscriptSegment) EventType() EventType { return EventSpeechSegment }
func (DecisionCard) EventType() EventType      { return EventDecisionFinalized }
func (ActionItem) EventType() EventType        { return EventActionCreated }
func (Consent) EventType() EventType           { return EventMeetingConsent }
func (MeetingSummary) EventType() EventType    { return EventMeetingSummary }
func (Brief) EventType() EventType             { return EventMeetingBrief }
func (Stakeholder) EventType() EventType       { return EventStakeholderProfile }

type eventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	MeetingID     string          `json:"meetingId"`
	OccurredAt    time.Time       `json:"occurredAt"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EncodeEvent serializes an event into its JSON envelope
func EncodeEvent(e MeetingEvent) ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("event %s has no payload", e.ID)
	}
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
	}
	return json.Marshal(eventEnvelope{
		ID:            e.ID,
		Type:          e.Type,
		MeetingID:     e.MeetingID,
		OccurredAt:    e.OccurredAt,
		CorrelationID: e.CorrelationID,
		Payload:       payload,
	})
}

// DecodeEvent parses a JSON envelope produced by EncodeEvent
func DecodeEvent(data []byte) (MeetingEvent, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return MeetingEvent{}, fmt.Errorf("unmarshal event envelope: %w", err)
	}

	payload, err := decodePayload(env.Type, env.Payload)
	if err != nil {
		return MeetingEvent{}, err
	}

	return MeetingEvent{
		ID:            env.ID,
		Type:          env.Type,
		MeetingID:     env.MeetingID,
		OccurredAt:    env.OccurredAt,
		CorrelationID: env.CorrelationID,
		Payload:       payload,
	}, nil
}

func decodePayload(t EventType, raw json.RawMessage) (EventPayload, error) {
	var (
		payload EventPayload
		err     error
	)
	switch t {
	case EventSpeechSegment:
		payload, err = unmarshalPayload[TranscriptSegment](raw)
	case EventDecisionFinalized:
		payload, err = unmarshalPayload[DecisionCard](raw)
	case EventCommitment:
		payload, err = unmarshalPayload[Commitment](raw)
	case EventActionCreated:
		payload, err = unmarshalPayload[ActionItem](raw)
	case EventMeetingConsent:
		payload, err = unmarshalPayload[Consent](raw)
	case EventMeetingSummary:
		payload, err = unmarshalPayload[MeetingSummary](raw)
	case EventMeetingBrief:
		payload, err = unmarshalPayload[Brief](raw)
	case EventStakeholderProfile:
		payload, err = unmarshalPayload[Stakeholder](raw)
	case EventRegulationChange:
		payload, err = unmarshalPayload[RegulationChange](raw)
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", t, err)
	}
	return payload, nil
}

func unmarshalPayload[T EventPayload](raw json.RawMessage) (EventPayload, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
