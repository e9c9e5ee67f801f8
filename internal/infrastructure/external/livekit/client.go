// Package livekit adapts LiveKit rooms and AssemblyAI transcription to the
// meeting provider the pipeline schedules and processes meetings through.
package livekit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"
	"github.com/livekit/protocol/auth"
	livekit "github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/webhook"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/domain/providers"
	usecaseErrors "github.com/johnquangdev/meeting-colleague/internal/usecase/errors"
	"github.com/johnquangdev/meeting-colleague/pkg/config"
)

// Name is the provider name stored on meetings
const Name = "livekit"

// RoomPrefix prefixes every room created for a meeting
const RoomPrefix = "colleague-"

type roomService interface {
	CreateRoom(ctx context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error)
	DeleteRoom(ctx context.Context, req *livekit.DeleteRoomRequest) (*livekit.DeleteRoomResponse, error)
}

type egressService interface {
	ListEgress(ctx context.Context, req *livekit.ListEgressRequest) (*livekit.ListEgressResponse, error)
}

type transcriber interface {
	TranscribeFromURL(ctx context.Context, audioURL string, params *aai.TranscriptOptionalParams) (aai.Transcript, error)
}

// Options overrides the SDK clients, mainly for tests
type Options struct {
	Rooms       roomService
	Egress      egressService
	Transcriber transcriber
	Logger      *zap.Logger
}

// Provider implements providers.MeetingProvider on LiveKit
type Provider struct {
	rooms       roomService
	egress      egressService
	transcriber transcriber
	keys        auth.KeyProvider
	configured  bool
	logger      *zap.Logger
}

var _ providers.MeetingProvider = (*Provider)(nil)

// NewProvider builds the SDK clients from config. Missing credentials leave the provider unconfigured.
func NewProvider(lk config.LiveKitConfig, asm config.AssemblyAIConfig, opts Options) *Provider {
	p := &Provider{
		rooms:       opts.Rooms,
		egress:      opts.Egress,
		transcriber: opts.Transcriber,
		logger:      opts.Logger,
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}

	p.configured = lk.URL != "" && lk.APIKey != "" && lk.APISecret != ""
	if lk.APIKey != "" {
		p.keys = auth.NewSimpleKeyProvider(lk.APIKey, lk.APISecret)
	}
	if p.configured {
		if p.rooms == nil {
			p.rooms = lksdk.NewRoomServiceClient(lk.URL, lk.APIKey, lk.APISecret)
		}
		if p.egress == nil {
			p.egress = lksdk.NewEgressClient(lk.URL, lk.APIKey, lk.APISecret)
		}
	}
	if p.transcriber == nil && asm.APIKey != "" {
		p.transcriber = aai.NewClient(asm.APIKey).Transcripts
	}
	return p
}

func (p *Provider) Name() string { return Name }

func (p *Provider) Configured() bool {
	return p.configured && p.rooms != nil
}

// RoomName returns the LiveKit room for a meeting
func RoomName(meetingID string) string {
	return RoomPrefix + meetingID
}

type roomMetadata struct {
	MeetingID string    `json:"meetingId"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"startTime"`
}

// ScheduleMeeting creates the room ahead of time; the room name is the external ID
func (p *Provider) ScheduleMeeting(ctx context.Context, meeting *entities.Meeting) (string, error) {
	if !p.Configured() {
		return "", usecaseErrors.ErrProviderNotReady
	}

	metadata, err := json.Marshal(roomMetadata{
		MeetingID: meeting.ID,
		Title:     meeting.Title,
		StartTime: meeting.StartTime.UTC(),
	})
	if err != nil {
		return "", err
	}

	// the room must survive until the start time plus a grace period
	emptyTimeout := time.Until(meeting.StartTime) + 15*time.Minute
	if emptyTimeout < 5*time.Minute {
		emptyTimeout = 5 * time.Minute
	}

	room, err := p.rooms.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:             RoomName(meeting.ID),
		EmptyTimeout:     uint32(emptyTimeout / time.Second),
		DepartureTimeout: 30,
		MaxParticipants:  uint32(len(meeting.Attendees) + 2),
		Metadata:         string(metadata),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create room: %w", err)
	}

	p.logger.Info("🏠 Room created",
		zap.String("meeting_id", meeting.ID),
		zap.String("room", room.Name),
		zap.String("sid", room.Sid),
	)
	return room.Name, nil
}

func (p *Provider) CancelMeeting(ctx context.Context, externalID string) error {
	if !p.Configured() {
		return usecaseErrors.ErrProviderNotReady
	}
	if _, err := p.rooms.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: externalID}); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}

// FetchRecording returns the newest completed egress file of the room
func (p *Provider) FetchRecording(ctx context.Context, externalID string) (string, error) {
	if p.egress == nil {
		return "", usecaseErrors.ErrProviderNotReady
	}

	resp, err := p.egress.ListEgress(ctx, &livekit.ListEgressRequest{RoomName: externalID})
	if err != nil {
		return "", fmt.Errorf("failed to list egress: %w", err)
	}

	var (
		location string
		newest   int64
	)
	for _, info := range resp.GetItems() {
		if info.GetStatus() != livekit.EgressStatus_EGRESS_COMPLETE {
			continue
		}
		if loc := recordingLocation(info); loc != "" && info.GetEndedAt() >= newest {
			location, newest = loc, info.GetEndedAt()
		}
	}
	return location, nil
}

func recordingLocation(info *livekit.EgressInfo) string {
	for _, file := range info.GetFileResults() {
		if file.GetLocation() != "" {
			return file.GetLocation()
		}
	}
	return ""
}

// FetchTranscript transcribes the meeting recording with speaker labels, one segment per utterance
func (p *Provider) FetchTranscript(ctx context.Context, meeting *entities.Meeting) ([]entities.TranscriptSegment, error) {
	if p.transcriber == nil {
		return nil, usecaseErrors.ErrProviderNotReady
	}

	recordingURL := meeting.RecordingURL
	if recordingURL == "" && meeting.ExternalID != "" && p.egress != nil {
		url, err := p.FetchRecording(ctx, meeting.ExternalID)
		if err != nil {
			return nil, err
		}
		recordingURL = url
	}
	if recordingURL == "" {
		return nil, usecaseErrors.ErrRecordingPending
	}

	p.logger.Info("🎙️ Transcribing recording",
		zap.String("meeting_id", meeting.ID),
		zap.String("recording_url", recordingURL),
	)

	transcript, err := p.transcriber.TranscribeFromURL(ctx, recordingURL, &aai.TranscriptOptionalParams{
		SpeakerLabels:     aai.Bool(true),
		LanguageDetection: aai.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to transcribe: %w", err)
	}
	if transcript.Status == aai.TranscriptStatusError {
		reason := "unknown"
		if transcript.Error != nil {
			reason = *transcript.Error
		}
		return nil, fmt.Errorf("transcription failed: %s", reason)
	}

	return toSegments(meeting.ID, transcript), nil
}

func toSegments(meetingID string, transcript aai.Transcript) []entities.TranscriptSegment {
	segments := make([]entities.TranscriptSegment, 0, len(transcript.Utterances))
	for i, utt := range transcript.Utterances {
		segment := entities.TranscriptSegment{
			ID:        fmt.Sprintf("%s-u%04d", meetingID, i),
			MeetingID: meetingID,
		}
		if utt.Text != nil {
			segment.Text = *utt.Text
		}
		if utt.Speaker != nil {
			segment.Speaker = *utt.Speaker
		}
		if utt.Start != nil {
			segment.StartTime = float64(*utt.Start) / 1000.0 // ms to seconds
		}
		if utt.End != nil {
			segment.EndTime = float64(*utt.End) / 1000.0
		}
		if utt.Confidence != nil {
			segment.Confidence = *utt.Confidence
		}
		if segment.Text == "" {
			continue
		}
		segments = append(segments, segment)
	}
	return segments
}

// HandleWebhook verifies a signed LiveKit webhook and classifies it
func (p *Provider) HandleWebhook(ctx context.Context, body []byte, authHeader string) (*providers.WebhookOutcome, error) {
	if p.keys == nil {
		return nil, usecaseErrors.ErrProviderNotReady
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", authHeader)

	event, err := webhook.ReceiveWebhookEvent(req, p.keys)
	if err != nil {
		p.logger.Warn("Webhook signature validation failed", zap.Error(err))
		return nil, errors.Join(usecaseErrors.ErrWebhookRejected, err)
	}

	p.logger.Info("🌐 Webhook received", zap.String("event", event.GetEvent()))

	switch event.GetEvent() {
	case "egress_ended":
		info := event.GetEgressInfo()
		if info == nil || info.GetStatus() != livekit.EgressStatus_EGRESS_COMPLETE {
			break
		}
		location := recordingLocation(info)
		if location == "" {
			break
		}
		return &providers.WebhookOutcome{
			Kind:         providers.WebhookRecordingReady,
			ExternalID:   info.GetRoomName(),
			RecordingURL: location,
		}, nil
	case "room_finished":
		if room := event.GetRoom(); room != nil {
			return &providers.WebhookOutcome{
				Kind:       providers.WebhookMeetingEnded,
				ExternalID: room.GetName(),
			}, nil
		}
	}
	return &providers.WebhookOutcome{Kind: providers.WebhookIgnored}, nil
}
