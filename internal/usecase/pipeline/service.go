// Package pipeline orchestrates a meeting from scheduling through consent,
// transcript processing and the post-meeting summary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/domain/providers"
	"github.com/johnquangdev/meeting-colleague/internal/domain/repositories"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/queue"
	usecaseErrors "github.com/johnquangdev/meeting-colleague/internal/usecase/errors"
	"github.com/johnquangdev/meeting-colleague/internal/usecase/policy"
	"github.com/johnquangdev/meeting-colleague/pkg/textgen"
)

// Publisher is the part of the event bus the pipeline needs
type Publisher interface {
	Publish(ctx context.Context, event entities.MeetingEvent) error
}

// Enqueuer schedules meeting processing
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, name string, payload any, opts queue.EnqueueOptions) (*entities.Job, error)
}

// BriefScheduler owns the pre-brief timer of a meeting
type BriefScheduler interface {
	SchedulePreBrief(ctx context.Context, meeting *entities.Meeting) (time.Time, error)
	CancelPreBrief(ctx context.Context, meetingID string) error
}

// RetentionScheduler owns the deletion timer of a meeting
type RetentionScheduler interface {
	Schedule(ctx context.Context, meetingID string, profile entities.ConsentProfile) (time.Time, error)
}

// Enricher generates the optional text artifacts of a processed meeting
type Enricher interface {
	Summarize(ctx context.Context, req textgen.SummaryRequest) (*textgen.SummaryResult, error)
	AnalyzeStakeholders(ctx context.Context, req textgen.StakeholderRequest) ([]textgen.StakeholderProfile, error)
	RegulationChanges(ctx context.Context, req textgen.RegulationRequest) ([]entities.RegulationChange, error)
}

// Options wires a Service
type Options struct {
	Meetings     repositories.MeetingRepository
	Summaries    repositories.SummaryRepository
	Consents     repositories.ConsentRepository
	Stakeholders repositories.StakeholderRepository
	Provider     providers.MeetingProvider
	Policy       policy.Checker
	Publisher    Publisher
	Jobs         Enqueuer
	Briefs       BriefScheduler
	Retention    RetentionScheduler
	Enricher     Enricher
	Clock        clock.Clock
	Logger       *zap.Logger
	Registerer   prometheus.Registerer
}

// Service is the meeting orchestrator
type Service struct {
	meetings     repositories.MeetingRepository
	summaries    repositories.SummaryRepository
	consents     repositories.ConsentRepository
	stakeholders repositories.StakeholderRepository
	provider     providers.MeetingProvider
	policy       policy.Checker
	publisher    Publisher
	jobs         Enqueuer
	briefs       BriefScheduler
	retention    RetentionScheduler
	enricher     Enricher
	clock        clock.Clock
	logger       *zap.Logger
	metrics      *Metrics
}

// NewService creates the orchestrator
func NewService(opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		meetings:     opts.Meetings,
		summaries:    opts.Summaries,
		consents:     opts.Consents,
		stakeholders: opts.Stakeholders,
		provider:     opts.Provider,
		policy:       opts.Policy,
		publisher:    opts.Publisher,
		jobs:         opts.Jobs,
		briefs:       opts.Briefs,
		retention:    opts.Retention,
		enricher:     opts.Enricher,
		clock:        opts.Clock,
		logger:       opts.Logger,
		metrics:      NewMetrics(opts.Registerer),
	}
}

// ScheduleRequest describes a meeting the colleague should attend
type ScheduleRequest struct {
	ID             string
	Title          string
	Agenda         string
	OrganizerEmail string
	Attendees      []string
	StartTime      time.Time
	EndTime        time.Time
	Profile        entities.ConsentProfile
}

func (r ScheduleRequest) validate() error {
	var errs []error
	if strings.TrimSpace(r.Title) == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if _, err := mail.ParseAddress(r.OrganizerEmail); err != nil {
		errs = append(errs, fmt.Errorf("organizer email %q is invalid", r.OrganizerEmail))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start time is required"))
	}
	if !r.EndTime.IsZero() && !r.EndTime.After(r.StartTime) {
		errs = append(errs, errors.New("end time must be after start time"))
	}
	if r.Profile != "" {
		if _, ok := entities.RetentionConfigFor(r.Profile); !ok {
			errs = append(errs, fmt.Errorf("%w: %q", usecaseErrors.ErrUnknownProfile, r.Profile))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", usecaseErrors.ErrInvalidInput, err)
	}
	return nil
}

func (s *Service) providerReady() bool {
	return s.provider != nil && s.provider.Configured()
}

// ScheduleMeeting stores the meeting, books it with the provider and arms the pre-brief.
// Scheduling a known meeting id reschedules it and replaces its pending pre-brief.
func (s *Service) ScheduleMeeting(ctx context.Context, req ScheduleRequest) (*entities.Meeting, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var existing *entities.Meeting
	if req.ID != "" {
		found, err := s.meetings.GetByID(ctx, req.ID)
		if err != nil {
			return nil, fmt.Errorf("load meeting: %w", err)
		}
		existing = found
	}

	meeting := &entities.Meeting{
		ID:             req.ID,
		Title:          strings.TrimSpace(req.Title),
		Agenda:         req.Agenda,
		OrganizerEmail: strings.ToLower(strings.TrimSpace(req.OrganizerEmail)),
		Attendees:      normalizeAttendees(req.Attendees),
		StartTime:      req.StartTime.UTC(),
		EndTime:        req.EndTime.UTC(),
		Profile:        req.Profile,
		Status:         entities.MeetingStatusScheduled,
	}
	if existing != nil {
		meeting.CreatedAt = existing.CreatedAt
		meeting.RecordingURL = existing.RecordingURL
		if meeting.Profile == "" {
			meeting.Profile = existing.Profile
		}
		if existing.Status != entities.MeetingStatusCanceled {
			meeting.Provider = existing.Provider
			meeting.ExternalID = existing.ExternalID
		}
	}
	if meeting.ID == "" {
		meeting.ID = uuid.New().String()
	}
	if meeting.Profile == "" {
		meeting.Profile = entities.ProfileBas
	}

	log := s.logger.With(zap.String("meeting_id", meeting.ID))

	booked := false
	if meeting.ExternalID == "" && s.providerReady() {
		externalID, err := s.provider.ScheduleMeeting(ctx, meeting)
		if err != nil {
			return nil, &usecaseErrors.ProviderError{Provider: s.provider.Name(), Operation: "schedule", Err: err}
		}
		meeting.Provider = s.provider.Name()
		meeting.ExternalID = externalID
		booked = true
	}

	var err error
	if existing != nil {
		err = s.meetings.Update(ctx, meeting)
	} else {
		err = s.meetings.Create(ctx, meeting)
	}
	if err != nil {
		if booked {
			if cerr := s.provider.CancelMeeting(ctx, meeting.ExternalID); cerr != nil {
				log.Warn("Provider rollback failed", zap.Error(cerr))
			}
		}
		return nil, fmt.Errorf("save meeting: %w", err)
	}

	fireAt, err := s.briefs.SchedulePreBrief(ctx, meeting)
	if err != nil {
		return nil, fmt.Errorf("schedule pre-brief: %w", err)
	}

	msg := "📅 Meeting scheduled"
	if existing != nil {
		msg = "📅 Meeting rescheduled"
	}
	log.Info(msg,
		zap.String("title", meeting.Title),
		zap.Time("start_time", meeting.StartTime),
		zap.String("external_id", meeting.ExternalID),
		zap.Time("pre_brief_at", fireAt),
	)
	return meeting, nil
}

func normalizeAttendees(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, a := range in {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

func (s *Service) requireMeeting(ctx context.Context, meetingID string) (*entities.Meeting, error) {
	meeting, err := s.meetings.GetByID(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if meeting == nil {
		return nil, fmt.Errorf("%w: %s", usecaseErrors.ErrMeetingNotFound, meetingID)
	}
	return meeting, nil
}

// CancelMeeting cancels the provider booking and the pending pre-brief. Canceling twice is a no-op.
func (s *Service) CancelMeeting(ctx context.Context, meetingID string) (*entities.Meeting, error) {
	meeting, err := s.requireMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if meeting.Status == entities.MeetingStatusCanceled {
		return meeting, nil
	}

	log := s.logger.With(zap.String("meeting_id", meetingID))
	if meeting.ExternalID != "" && s.providerReady() {
		if err := s.provider.CancelMeeting(ctx, meeting.ExternalID); err != nil {
			log.Warn("Provider cancel failed", zap.String("external_id", meeting.ExternalID), zap.Error(err))
		}
	}

	meeting.Status = entities.MeetingStatusCanceled
	if err := s.meetings.Update(ctx, meeting); err != nil {
		return nil, fmt.Errorf("update meeting: %w", err)
	}
	if err := s.briefs.CancelPreBrief(ctx, meetingID); err != nil {
		return nil, fmt.Errorf("cancel pre-brief: %w", err)
	}

	log.Info("🛑 Meeting canceled")
	return meeting, nil
}

// RecordConsent stores the consent for a meeting, replacing any earlier one, and arms its retention timer
func (s *Service) RecordConsent(ctx context.Context, meetingID string, profile entities.ConsentProfile) (*entities.Consent, error) {
	meeting, err := s.requireMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	consent, err := policy.BuildConsent(meetingID, profile, now)
	if err != nil {
		return nil, err
	}
	if err := s.consents.SaveConsent(ctx, consent); err != nil {
		return nil, fmt.Errorf("save consent: %w", err)
	}

	if meeting.Profile != consent.Profile {
		meeting.Profile = consent.Profile
		if err := s.meetings.Update(ctx, meeting); err != nil {
			return nil, fmt.Errorf("update meeting: %w", err)
		}
	}

	if err := s.publisher.Publish(ctx, entities.NewMeetingEvent(meetingID, *consent, now)); err != nil {
		return nil, err
	}

	deleteAt, err := s.retention.Schedule(ctx, meetingID, consent.Profile)
	if err != nil {
		return nil, fmt.Errorf("schedule retention: %w", err)
	}

	s.logger.Info("✅ Consent recorded",
		zap.String("meeting_id", meetingID),
		zap.String("profile", string(consent.Profile)),
		zap.Time("delete_at", deleteAt),
	)
	return consent, nil
}

var segmentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("meeting-colleague/segments"))

// IngestSegment publishes a live transcript segment
func (s *Service) IngestSegment(ctx context.Context, meetingID string, seg entities.TranscriptSegment) (entities.TranscriptSegment, error) {
	if strings.TrimSpace(seg.Text) == "" {
		return seg, fmt.Errorf("%w: segment text is required", usecaseErrors.ErrInvalidInput)
	}
	if _, err := s.requireMeeting(ctx, meetingID); err != nil {
		return seg, err
	}
	if err := policy.Require(ctx, s.policy, policy.Request{
		MeetingID: meetingID,
		DataClass: entities.DataClassTranscript,
		Operation: policy.OperationProcess,
	}); err != nil {
		return seg, err
	}

	seg.MeetingID = meetingID
	if seg.ID == "" {
		seg.ID = uuid.NewSHA1(segmentNamespace, []byte(meetingID+"/"+seg.Key())).String()
	}

	if err := s.publisher.Publish(ctx, entities.NewMeetingEvent(meetingID, seg, s.clock.Now())); err != nil {
		return seg, err
	}
	s.metrics.Segments.WithLabelValues("live").Inc()
	return seg, nil
}

// SubmitSummary stores the post-meeting summary and announces it
func (s *Service) SubmitSummary(ctx context.Context, summary *entities.MeetingSummary) (*entities.MeetingSummary, error) {
	if summary == nil || summary.MeetingID == "" {
		return nil, fmt.Errorf("%w: summary needs a meeting id", usecaseErrors.ErrInvalidInput)
	}
	if _, err := s.requireMeeting(ctx, summary.MeetingID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if summary.ID == "" {
		summary.ID = uuid.New().String()
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = now.UTC()
	}

	if err := s.summaries.UpsertSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("upsert summary: %w", err)
	}
	if err := s.publisher.Publish(ctx, entities.NewMeetingEvent(summary.MeetingID, *summary, now)); err != nil {
		return nil, err
	}

	s.logger.Info("📝 Summary stored",
		zap.String("meeting_id", summary.MeetingID),
		zap.String("summary_id", summary.ID),
	)
	return summary, nil
}

// HandleWebhook verifies a provider webhook and acts on it
func (s *Service) HandleWebhook(ctx context.Context, body []byte, authHeader string) (*providers.WebhookOutcome, error) {
	if s.provider == nil {
		return nil, usecaseErrors.ErrProviderNotReady
	}
	outcome, err := s.provider.HandleWebhook(ctx, body, authHeader)
	if err != nil {
		return nil, err
	}

	switch outcome.Kind {
	case providers.WebhookRecordingReady:
		meeting, err := s.meetings.GetByExternalID(ctx, outcome.ExternalID)
		if err != nil {
			return nil, err
		}
		if meeting == nil {
			s.logger.Warn("Recording for unknown meeting", zap.String("external_id", outcome.ExternalID))
			return outcome, nil
		}
		meeting.RecordingURL = outcome.RecordingURL
		if err := s.meetings.Update(ctx, meeting); err != nil {
			return nil, fmt.Errorf("update meeting: %w", err)
		}
		if _, err := s.EnqueueProcessing(ctx, meeting.ID); err != nil {
			return nil, err
		}
	case providers.WebhookMeetingEnded:
		s.logger.Info("🏁 Meeting ended", zap.String("external_id", outcome.ExternalID))
	}
	return outcome, nil
}
