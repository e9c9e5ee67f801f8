package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-colleague/errors"
	"github.com/johnquangdev/meeting-colleague/internal/adapter/dto/meeting"
	"github.com/johnquangdev/meeting-colleague/internal/adapter/presenter"
	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/usecase/briefing"
	"github.com/johnquangdev/meeting-colleague/internal/usecase/pipeline"
)

const profileKey = "consent_profile"

// MeetingService is the pipeline surface the meeting routes drive
type MeetingService interface {
	ScheduleMeeting(ctx context.Context, req pipeline.ScheduleRequest) (*entities.Meeting, error)
	CancelMeeting(ctx context.Context, meetingID string) (*entities.Meeting, error)
	RecordConsent(ctx context.Context, meetingID string, profile entities.ConsentProfile) (*entities.Consent, error)
	IngestSegment(ctx context.Context, meetingID string, seg entities.TranscriptSegment) (entities.TranscriptSegment, error)
	SubmitSummary(ctx context.Context, summary *entities.MeetingSummary) (*entities.MeetingSummary, error)
}

// EventLog reads the replay log of a meeting
type EventLog interface {
	Events(ctx context.Context, meetingID string) ([]entities.MeetingEvent, error)
}

// Meeting serves /v1/meetings
type Meeting struct {
	service MeetingService
	events  EventLog
	logger  *zap.Logger
}

func NewMeeting(service MeetingService, events EventLog, logger *zap.Logger) *Meeting {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Meeting{service: service, events: events, logger: logger}
}

// bind decodes and validates a request body
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return errors.ErrInvalidPayload()
	}
	if c.Echo().Validator == nil {
		return nil
	}
	if err := c.Validate(req); err != nil {
		return errors.ErrInvalidArgument(err.Error())
	}
	return nil
}

// Schedule handles POST /v1/meetings
func (h *Meeting) Schedule(c echo.Context) error {
	var req meeting.ScheduleMeetingRequest
	if err := bind(c, &req); err != nil {
		return HandleError(h.logger, c, err)
	}

	sr := pipeline.ScheduleRequest{
		ID:             req.ID,
		Title:          req.Title,
		Agenda:         req.Agenda,
		OrganizerEmail: req.OrganizerEmail,
		Attendees:      req.Attendees,
		StartTime:      req.StartTime,
		Profile:        entities.ConsentProfile(strings.ToLower(req.Profile)),
	}
	if req.EndTime != nil {
		sr.EndTime = *req.EndTime
	}

	m, err := h.service.ScheduleMeeting(c.Request().Context(), sr)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleStatus(h.logger, c, http.StatusCreated, presenter.ToMeetingResponse(m, briefing.PreBriefFireAt(m.StartTime)))
}

// Cancel handles DELETE /v1/meetings/:id
func (h *Meeting) Cancel(c echo.Context) error {
	m, err := h.service.CancelMeeting(c.Request().Context(), c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, presenter.ToMeetingResponse(m, time.Time{}))
}

// Consent handles POST /v1/meetings/:id/consent
func (h *Meeting) Consent(c echo.Context) error {
	var req meeting.ConsentRequest
	if err := bind(c, &req); err != nil {
		return HandleError(h.logger, c, err)
	}
	profile := strings.ToLower(strings.TrimSpace(req.Profile))
	c.Set(profileKey, profile)

	consent, err := h.service.RecordConsent(c.Request().Context(), c.Param("id"), entities.ConsentProfile(profile))
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleStatus(h.logger, c, http.StatusCreated, presenter.ToConsentResponse(consent))
}

// Segment handles POST /v1/meetings/:id/segments
func (h *Meeting) Segment(c echo.Context) error {
	var req meeting.SegmentRequest
	if err := bind(c, &req); err != nil {
		return HandleError(h.logger, c, err)
	}
	if req.EndTime > 0 && req.EndTime < req.StartTime {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("endTime must not be before startTime"))
	}

	seg, err := h.service.IngestSegment(c.Request().Context(), c.Param("id"), entities.TranscriptSegment{
		ID:         req.ID,
		Speaker:    req.Speaker,
		Text:       req.Text,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Confidence: req.Confidence,
		Language:   req.Language,
		Redacted:   req.Redacted,
	})
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleStatus(h.logger, c, http.StatusAccepted, presenter.ToSegmentResponse(seg))
}

// Summary handles POST /v1/meetings/:id/summary
func (h *Meeting) Summary(c echo.Context) error {
	var req meeting.SummaryRequest
	if err := bind(c, &req); err != nil {
		return HandleError(h.logger, c, err)
	}

	summary, err := h.service.SubmitSummary(c.Request().Context(), &entities.MeetingSummary{
		MeetingID:        c.Param("id"),
		ExecutiveSummary: req.ExecutiveSummary,
		KeyPoints:        req.KeyPoints,
		Decisions:        req.Decisions,
		ActionItems:      req.ActionItems,
		OpenQuestions:    req.OpenQuestions,
		NextSteps:        req.NextSteps,
		ModelUsed:        req.ModelUsed,
	})
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleStatus(h.logger, c, http.StatusCreated, presenter.ToSummaryResponse(summary))
}

// Events handles GET /v1/meetings/:id/events
func (h *Meeting) Events(c echo.Context) error {
	meetingID := c.Param("id")
	events, err := h.events.Events(c.Request().Context(), meetingID)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	resp, err := presenter.ToEventsResponse(meetingID, events)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, resp)
}
