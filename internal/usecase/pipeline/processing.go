package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/queue"
	usecaseErrors "github.com/johnquangdev/meeting-colleague/internal/usecase/errors"
	"github.com/johnquangdev/meeting-colleague/internal/usecase/policy"
	"github.com/johnquangdev/meeting-colleague/pkg/jobcontext"
	"github.com/johnquangdev/meeting-colleague/pkg/textgen"
)

// JobProcessMeeting is the job name on the meeting-processing queue
const JobProcessMeeting = "meeting.process"

// ProcessPayload is the payload of a meeting-processing job
type ProcessPayload struct {
	MeetingID string `json:"meetingId"`
}

// EnqueueProcessing queues transcript processing once per meeting
func (s *Service) EnqueueProcessing(ctx context.Context, meetingID string) (*entities.Job, error) {
	job, err := s.jobs.Enqueue(ctx, queue.QueueMeetingProcessing, JobProcessMeeting,
		ProcessPayload{MeetingID: meetingID},
		queue.EnqueueOptions{IdempotencyKey: "process:" + meetingID},
	)
	if err != nil {
		return nil, fmt.Errorf("enqueue processing for %s: %w", meetingID, err)
	}
	s.logger.Info("📥 Meeting processing queued",
		zap.String("meeting_id", meetingID),
		zap.String("job_id", job.ID),
	)
	return job, nil
}

// HandleProcessingJob fetches the transcript and replays it onto the bus in order.
// Enrichment through text generation is best-effort.
func (s *Service) HandleProcessingJob(ctx context.Context, job *entities.Job) error {
	payload, err := queue.DecodePayload[ProcessPayload](job)
	if err != nil {
		return backoff.Permanent(err)
	}
	meta := jobcontext.GetJobMetadata(ctx)
	log := s.logger.With(
		zap.String("meeting_id", payload.MeetingID),
		zap.String("job_id", job.ID),
		zap.Int("attempt", meta.Attempt),
		zap.Int("max_attempts", meta.MaxAttempts),
	)

	meeting, err := s.meetings.GetByID(ctx, payload.MeetingID)
	if err != nil {
		return err
	}
	if meeting == nil {
		return backoff.Permanent(fmt.Errorf("%w: %s", usecaseErrors.ErrMeetingNotFound, payload.MeetingID))
	}
	if meeting.Status == entities.MeetingStatusCanceled {
		log.Info("Skipping canceled meeting")
		s.metrics.Processed.WithLabelValues("skipped").Inc()
		return nil
	}

	if err := policy.Require(ctx, s.policy, policy.Request{
		MeetingID: meeting.ID,
		DataClass: entities.DataClassTranscript,
		Operation: policy.OperationProcess,
	}); err != nil {
		s.metrics.Processed.WithLabelValues("denied").Inc()
		if errors.Is(err, usecaseErrors.ErrPolicyDenied) {
			return backoff.Permanent(err)
		}
		return err
	}
	if !s.providerReady() {
		return backoff.Permanent(usecaseErrors.ErrProviderNotReady)
	}

	segments, err := s.provider.FetchTranscript(ctx, meeting)
	if err != nil {
		s.metrics.Processed.WithLabelValues("failed").Inc()
		if jobcontext.IsFinalAttempt(ctx) {
			log.Error("Transcript fetch failed on the last attempt", zap.Error(err))
		} else {
			log.Warn("Transcript fetch failed, will retry", zap.Error(err))
		}
		return fmt.Errorf("fetch transcript: %w", err)
	}

	for _, seg := range segments {
		seg.MeetingID = meeting.ID
		spokenAt := meeting.StartTime.Add(time.Duration(seg.StartTime * float64(time.Second)))
		event := entities.NewMeetingEvent(meeting.ID, seg, spokenAt).WithCorrelation(job.ID)
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.metrics.Processed.WithLabelValues("failed").Inc()
			return fmt.Errorf("publish segment %s: %w", seg.Key(), err)
		}
		s.metrics.Segments.WithLabelValues("transcript").Inc()
	}

	if meeting.Status != entities.MeetingStatusEnded {
		meeting.Status = entities.MeetingStatusEnded
		if err := s.meetings.Update(ctx, meeting); err != nil {
			return fmt.Errorf("update meeting: %w", err)
		}
	}

	log.Info("🎧 Transcript processed", zap.Int("segments", len(segments)))
	s.metrics.Processed.WithLabelValues("completed").Inc()

	s.enrich(ctx, meeting, segments, job.ID, log)
	return nil
}

func (s *Service) enrich(ctx context.Context, meeting *entities.Meeting, segments []entities.TranscriptSegment, correlationID string, log *zap.Logger) {
	if s.enricher == nil {
		return
	}
	transcript := transcriptText(segments)

	if err := s.summarize(ctx, meeting, transcript); err != nil {
		logEnrichError(log, "summary", err)
	}
	if err := s.profileStakeholders(ctx, meeting, transcript, correlationID); err != nil {
		logEnrichError(log, "stakeholders", err)
	}
	if err := s.watchRegulation(ctx, meeting, correlationID); err != nil {
		logEnrichError(log, "regulation", err)
	}
}

func logEnrichError(log *zap.Logger, step string, err error) {
	if errors.Is(err, textgen.ErrNotConfigured) {
		log.Debug("Enrichment skipped", zap.String("step", step))
		return
	}
	log.Warn("Enrichment failed", zap.String("step", step), zap.Error(err))
}

func transcriptText(segments []entities.TranscriptSegment) string {
	var b strings.Builder
	for _, seg := range segments {
		if seg.Redacted {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", seg.Speaker, seg.Text)
	}
	return b.String()
}

// summarize leaves a summary submitted by hand in place
func (s *Service) summarize(ctx context.Context, meeting *entities.Meeting, transcript string) error {
	if transcript == "" {
		return nil
	}
	existing, err := s.summaries.GetSummary(ctx, meeting.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	result, err := s.enricher.Summarize(ctx, textgen.SummaryRequest{
		MeetingID:  meeting.ID,
		Title:      meeting.Title,
		Transcript: transcript,
	})
	if err != nil {
		return err
	}

	_, err = s.SubmitSummary(ctx, &entities.MeetingSummary{
		MeetingID:        meeting.ID,
		ExecutiveSummary: result.ExecutiveSummary,
		KeyPoints:        result.KeyPoints,
		Decisions:        result.Decisions,
		ActionItems:      result.ActionItems,
		OpenQuestions:    result.OpenQuestions,
		NextSteps:        result.NextSteps,
		ModelUsed:        result.Model,
	})
	return err
}

var stakeholderNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("meeting-colleague/stakeholders"))

// StakeholderID is stable per meeting and person
func StakeholderID(meetingID string, p entities.Stakeholder) string {
	who := strings.ToLower(strings.TrimSpace(p.Email))
	if who == "" {
		who = strings.ToLower(strings.TrimSpace(p.Name))
	}
	return uuid.NewSHA1(stakeholderNamespace, []byte(meetingID+"/"+who)).String()
}

func (s *Service) profileStakeholders(ctx context.Context, meeting *entities.Meeting, transcript, correlationID string) error {
	decision, err := s.policy.Check(ctx, policy.Request{
		MeetingID: meeting.ID,
		DataClass: entities.DataClassStakeholder,
		Operation: policy.OperationStore,
	})
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return nil
	}

	profiles, err := s.enricher.AnalyzeStakeholders(ctx, textgen.StakeholderRequest{
		MeetingID:  meeting.ID,
		Attendees:  append([]string{meeting.OrganizerEmail}, meeting.Attendees...),
		Transcript: transcript,
	})
	if err != nil {
		return err
	}

	now := s.clock.Now()
	for _, p := range profiles {
		stakeholder := entities.Stakeholder{
			MeetingID:    meeting.ID,
			Email:        p.Email,
			Name:         p.Name,
			Role:         p.Role,
			Organization: p.Organization,
			Interests:    p.Interests,
			Influence:    p.Influence,
			Notes:        p.Notes,
		}
		if stakeholder.Email == "" && stakeholder.Name == "" {
			continue
		}
		stakeholder.ID = StakeholderID(meeting.ID, stakeholder)
		event := entities.NewMeetingEvent(meeting.ID, stakeholder, now).WithCorrelation(correlationID)
		if err := s.publisher.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) watchRegulation(ctx context.Context, meeting *entities.Meeting, correlationID string) error {
	req := textgen.RegulationRequest{
		MeetingID: meeting.ID,
		Topics:    []string{meeting.Title},
	}
	if cfg, ok := entities.RetentionConfigFor(meeting.Profile); ok {
		req.Region = string(cfg.DataResidency)
	}

	changes, err := s.enricher.RegulationChanges(ctx, req)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	for _, change := range changes {
		event := entities.NewMeetingEvent(meeting.ID, change, now).WithCorrelation(correlationID)
		if err := s.publisher.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
