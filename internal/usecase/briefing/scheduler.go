package briefing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/domain/repositories"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/external/notify"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/queue"
	usecaseErrors "github.com/johnquangdev/meeting-colleague/internal/usecase/errors"
	"github.com/johnquangdev/meeting-colleague/pkg/textgen"
)

// PreBriefLead is how long before the start a pre-brief is generated
const PreBriefLead = 30 * time.Minute

// Generator produces brief text
type Generator interface {
	GenerateBrief(ctx context.Context, req textgen.BriefRequest) (*textgen.BriefResult, error)
}

// Publisher is the part of the event bus the scheduler needs
type Publisher interface {
	Publish(ctx context.Context, event entities.MeetingEvent) error
}

// Notifier delivers rendered briefs
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) error
}

// Jobs is the part of the queue runtime used for brief timers
type Jobs interface {
	Enqueue(ctx context.Context, queueName, name string, payload any, opts queue.EnqueueOptions) (*entities.Job, error)
	Remove(ctx context.Context, queueName, jobID string) (bool, error)
}

// Payload is the payload of a briefing job
type Payload struct {
	MeetingID string             `json:"meetingId"`
	Type      entities.BriefType `json:"type"`
	// StartTime is the meeting start (unix seconds) a pre-brief timer was armed for
	StartTime int64 `json:"startTime,omitempty"`
}

// Options wires a Scheduler
type Options struct {
	Meetings     repositories.MeetingRepository
	Summaries    repositories.SummaryRepository
	Briefs       repositories.BriefRepository
	Actions      repositories.ActionRepository
	Stakeholders repositories.StakeholderRepository
	Generator    Generator
	Publisher    Publisher
	Notifier     Notifier
	Jobs         Jobs
	Clock        clock.Clock
	Logger       *zap.Logger
}

// Scheduler runs the pre- and post-brief pipelines
type Scheduler struct {
	meetings     repositories.MeetingRepository
	summaries    repositories.SummaryRepository
	briefs       repositories.BriefRepository
	actions      repositories.ActionRepository
	stakeholders repositories.StakeholderRepository
	generator    Generator
	publisher    Publisher
	notifier     Notifier
	jobs         Jobs
	clock        clock.Clock
	logger       *zap.Logger
}

// NewScheduler creates a briefing scheduler
func NewScheduler(opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Scheduler{
		meetings:     opts.Meetings,
		summaries:    opts.Summaries,
		briefs:       opts.Briefs,
		actions:      opts.Actions,
		stakeholders: opts.Stakeholders,
		generator:    opts.Generator,
		publisher:    opts.Publisher,
		notifier:     opts.Notifier,
		jobs:         opts.Jobs,
		clock:        opts.Clock,
		logger:       opts.Logger,
	}
}

// PreBriefFireAt returns when the pre-brief of a meeting starting at start fires
func PreBriefFireAt(start time.Time) time.Time {
	return start.Add(-PreBriefLead)
}

func preBriefJobID(meetingID string) string { return "prebrief:" + meetingID }

// SchedulePreBrief replaces any pending pre-brief timer of the meeting.
// A fire time in the past runs the brief immediately.
func (s *Scheduler) SchedulePreBrief(ctx context.Context, meeting *entities.Meeting) (time.Time, error) {
	fireAt := PreBriefFireAt(meeting.StartTime)
	jobID := preBriefJobID(meeting.ID)
	log := s.logger.With(zap.String("meeting_id", meeting.ID))

	if _, err := s.jobs.Remove(ctx, queue.QueueBriefing, jobID); err != nil {
		if !errors.Is(err, entities.ErrJobNotQueued) {
			return time.Time{}, fmt.Errorf("cancel pre-brief for %s: %w", meeting.ID, err)
		}
		log.Warn("Pre-brief already running, scheduling the new time after it")
		jobID = fmt.Sprintf("%s:%d", jobID, meeting.StartTime.Unix())
	}

	delay := fireAt.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	_, err := s.jobs.Enqueue(ctx, queue.QueueBriefing, "brief.pre", Payload{
		MeetingID: meeting.ID,
		Type:      entities.BriefTypePre,
		StartTime: meeting.StartTime.Unix(),
	}, queue.EnqueueOptions{
		JobID:          jobID,
		IdempotencyKey: fmt.Sprintf("prebrief:%s:%d", meeting.ID, meeting.StartTime.Unix()),
		Delay:          delay,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule pre-brief for %s: %w", meeting.ID, err)
	}

	log.Info("⏰ Pre-brief scheduled", zap.Time("fire_at", fireAt), zap.Duration("delay", delay))
	return fireAt, nil
}

// CancelPreBrief drops the pending pre-brief timer, if any
func (s *Scheduler) CancelPreBrief(ctx context.Context, meetingID string) error {
	removed, err := s.jobs.Remove(ctx, queue.QueueBriefing, preBriefJobID(meetingID))
	if err != nil {
		return fmt.Errorf("cancel pre-brief for %s: %w", meetingID, err)
	}
	if removed {
		s.logger.Info("Pre-brief canceled", zap.String("meeting_id", meetingID))
	}
	return nil
}

// HandleSummary is the meeting.summary subscriber; it queues the post-brief
func (s *Scheduler) HandleSummary(ctx context.Context, event entities.MeetingEvent) error {
	summary, ok := event.Payload.(entities.MeetingSummary)
	if !ok {
		return fmt.Errorf("briefing: unexpected payload %T", event.Payload)
	}

	_, err := s.jobs.Enqueue(ctx, queue.QueueBriefing, "brief.post", Payload{
		MeetingID: event.MeetingID,
		Type:      entities.BriefTypePost,
	}, queue.EnqueueOptions{
		IdempotencyKey: fmt.Sprintf("postbrief:%s:%s", event.MeetingID, summary.ID),
	})
	if err != nil {
		return fmt.Errorf("queue post-brief for %s: %w", event.MeetingID, err)
	}
	return nil
}

// HandleJob is the briefing queue handler
func (s *Scheduler) HandleJob(ctx context.Context, job *entities.Job) error {
	payload, err := queue.DecodePayload[Payload](job)
	if err != nil {
		return err
	}

	switch payload.Type {
	case entities.BriefTypePre:
		superseded, serr := s.superseded(ctx, payload)
		if serr != nil {
			return serr
		}
		if superseded {
			s.logger.Info("Pre-brief skipped, meeting rescheduled", zap.String("meeting_id", payload.MeetingID))
			return nil
		}
		_, err = s.GeneratePre(ctx, payload.MeetingID)
	case entities.BriefTypePost:
		_, err = s.GeneratePost(ctx, payload.MeetingID)
	default:
		return backoff.Permanent(fmt.Errorf("unknown brief type %q", payload.Type))
	}
	if errors.Is(err, usecaseErrors.ErrMeetingCanceled) {
		s.logger.Info("Pre-brief skipped, meeting canceled", zap.String("meeting_id", payload.MeetingID))
		return nil
	}
	return err
}

// superseded reports whether a pre-brief timer was armed for a start time the meeting no longer has.
// A timer armed while an earlier pre-brief was running keeps a suffixed job id that later
// reschedules cannot remove, so it is checked here when it fires.
func (s *Scheduler) superseded(ctx context.Context, payload Payload) (bool, error) {
	if payload.StartTime == 0 {
		return false, nil
	}
	meeting, err := s.meetings.GetByID(ctx, payload.MeetingID)
	if err != nil {
		return false, fmt.Errorf("load meeting: %w", err)
	}
	return meeting != nil && meeting.StartTime.Unix() != payload.StartTime, nil
}

// GeneratePre builds, stores and publishes the pre-brief of a meeting.
// Missing metadata is a permanent error.
func (s *Scheduler) GeneratePre(ctx context.Context, meetingID string) (*entities.Brief, error) {
	meeting, err := s.requireMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if meeting.Status == entities.MeetingStatusCanceled {
		return nil, fmt.Errorf("%w: %s", usecaseErrors.ErrMeetingCanceled, meetingID)
	}

	// action owners are speaker names, so count by names as well as emails
	owners := participants(meeting)
	var names []string
	if s.stakeholders != nil {
		profiles, err := s.stakeholders.ListByMeeting(ctx, meetingID)
		if err != nil {
			return nil, fmt.Errorf("load stakeholders: %w", err)
		}
		for _, p := range profiles {
			names = append(names, stakeholderLabel(p))
			if p.Name != "" {
				owners = append(owners, p.Name)
			}
		}
	}

	openActions, err := s.actions.CountOpenByOwners(ctx, owners)
	if err != nil {
		return nil, fmt.Errorf("count open actions: %w", err)
	}

	req := textgen.BriefRequest{
		Variant:      entities.BriefTypePre,
		MeetingID:    meeting.ID,
		Title:        meeting.Title,
		Agenda:       meeting.Agenda,
		StartTime:    meeting.StartTime,
		Attendees:    []string(meeting.Attendees),
		Stakeholders: names,
		OpenActions:  openActions,
	}
	return s.produce(ctx, meeting, req, func() *entities.Brief {
		return FallbackPre(meeting, openActions, names)
	})
}

// GeneratePost builds, stores and publishes the post-brief of a meeting.
// Missing metadata or summary is a permanent error.
func (s *Scheduler) GeneratePost(ctx context.Context, meetingID string) (*entities.Brief, error) {
	meeting, err := s.requireMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	summary, err := s.summaries.GetSummary(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("load summary %s: %w", meetingID, err)
	}
	if summary == nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: %s", usecaseErrors.ErrSummaryNotFound, meetingID))
	}

	req := textgen.BriefRequest{
		Variant:   entities.BriefTypePost,
		MeetingID: meeting.ID,
		Title:     meeting.Title,
		Agenda:    meeting.Agenda,
		StartTime: meeting.StartTime,
		Attendees: []string(meeting.Attendees),
		Summary: &textgen.SummaryResult{
			ExecutiveSummary: summary.ExecutiveSummary,
			KeyPoints:        summary.KeyPoints,
			Decisions:        summary.Decisions,
			ActionItems:      summary.ActionItems,
			OpenQuestions:    summary.OpenQuestions,
			NextSteps:        summary.NextSteps,
		},
	}
	return s.produce(ctx, meeting, req, func() *entities.Brief {
		return FallbackPost(meeting, summary)
	})
}

func (s *Scheduler) requireMeeting(ctx context.Context, meetingID string) (*entities.Meeting, error) {
	meeting, err := s.meetings.GetByID(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("load meeting %s: %w", meetingID, err)
	}
	if meeting == nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: %s", usecaseErrors.ErrMeetingNotFound, meetingID))
	}
	return meeting, nil
}

// produce asks the generator and falls back to the deterministic brief on any failure
func (s *Scheduler) produce(ctx context.Context, meeting *entities.Meeting, req textgen.BriefRequest, fallback func() *entities.Brief) (*entities.Brief, error) {
	log := s.logger.With(
		zap.String("meeting_id", meeting.ID),
		zap.String("brief_type", string(req.Variant)),
	)

	var brief *entities.Brief
	if s.generator != nil {
		result, err := s.generator.GenerateBrief(ctx, req)
		if err != nil {
			log.Warn("Brief generation failed, using fallback", zap.Error(err))
		} else {
			brief = fromResult(result)
		}
	}
	if brief == nil {
		brief = fallback()
	}

	brief.MeetingID = meeting.ID
	brief.Type = req.Variant
	brief.GeneratedAt = s.clock.Now().UTC()
	brief.DeliveryTargets = participants(meeting)

	if err := s.briefs.UpsertBrief(ctx, brief); err != nil {
		return nil, fmt.Errorf("store %s brief: %w", brief.Type, err)
	}
	if err := s.publisher.Publish(ctx, entities.NewMeetingEvent(meeting.ID, *brief, brief.GeneratedAt)); err != nil {
		return nil, err
	}
	log.Info("📋 Brief ready",
		zap.Bool("generated", brief.Generated),
		zap.Int("targets", len(brief.DeliveryTargets)),
	)

	s.deliver(ctx, brief, log)
	return brief, nil
}

// deliver emails the brief; failures are logged only
func (s *Scheduler) deliver(ctx context.Context, brief *entities.Brief, log *zap.Logger) {
	if s.notifier == nil || len(brief.DeliveryTargets) == 0 {
		return
	}
	err := s.notifier.Notify(ctx, notify.Message{
		Channel: notify.ChannelEmail,
		To:      []string(brief.DeliveryTargets),
		Subject: brief.Subject,
		Body:    brief.Content,
		Key:     fmt.Sprintf("brief:%s:%s:%d", brief.Type, brief.MeetingID, brief.GeneratedAt.Unix()),
	})
	if err != nil {
		log.Warn("Brief delivery failed", zap.Error(err))
	}
}

func fromResult(r *textgen.BriefResult) *entities.Brief {
	if r == nil || r.Content == "" {
		return nil
	}
	return &entities.Brief{
		Subject:   r.Subject,
		Headline:  r.Headline,
		KeyPoints: r.KeyPoints,
		Decisions: r.Decisions,
		Risks:     r.Risks,
		NextSteps: r.NextSteps,
		Content:   r.Content,
		Generated: true,
	}
}

// participants is the organizer followed by the attendees, deduplicated
func participants(m *entities.Meeting) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range append([]string{m.OrganizerEmail}, m.Attendees...) {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func stakeholderLabel(p entities.Stakeholder) string {
	label := p.Name
	if label == "" {
		label = p.Email
	}
	if p.Role != "" {
		label += " (" + p.Role + ")"
	}
	return label
}
