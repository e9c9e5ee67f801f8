package actions

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/domain/providers"
	"github.com/johnquangdev/meeting-colleague/internal/domain/repositories"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/queue"
	usecaseErrors "github.com/johnquangdev/meeting-colleague/internal/usecase/errors"
	"github.com/johnquangdev/meeting-colleague/internal/usecase/policy"
)

// NudgeDelay is how long after the due date an open action is nudged
const NudgeDelay = 48 * time.Hour

const titleLimit = 60

// Publisher is the part of the event bus the router needs
type Publisher interface {
	Publish(ctx context.Context, event entities.MeetingEvent) error
}

// Enqueuer schedules deferred work on the job queue
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, name string, payload any, opts queue.EnqueueOptions) (*entities.Job, error)
}

// NudgePayload is the payload of a nudge job
type NudgePayload struct {
	ActionID  string `json:"actionId"`
	MeetingID string `json:"meetingId"`
}

// Router turns commitments into stored action items with external tasks and nudges
type Router struct {
	actions   repositories.ActionRepository
	policy    policy.Checker
	providers []providers.TaskProvider
	publisher Publisher
	jobs      Enqueuer
	clock     clock.Clock
	logger    *zap.Logger
}

// Options wires a Router
type Options struct {
	Actions   repositories.ActionRepository
	Policy    policy.Checker
	Providers []providers.TaskProvider
	Publisher Publisher
	Jobs      Enqueuer
	Clock     clock.Clock
	Logger    *zap.Logger
}

// NewRouter creates an action router
func NewRouter(opts Options) *Router {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Router{
		actions:   opts.Actions,
		policy:    opts.Policy,
		providers: opts.Providers,
		publisher: opts.Publisher,
		jobs:      opts.Jobs,
		clock:     opts.Clock,
		logger:    opts.Logger,
	}
}

var actionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("meeting-colleague/action-items"))

// BuildAction maps a commitment to a new open action item
func BuildAction(meetingID string, c entities.Commitment) *entities.ActionItem {
	statement := strings.TrimSpace(c.Statement)
	return &entities.ActionItem{
		ID:          uuid.NewSHA1(actionNamespace, []byte(meetingID+"/"+c.SegmentID+"/"+statement)).String(),
		MeetingID:   meetingID,
		Title:       truncate(statement, titleLimit),
		Description: statement,
		Owner:       c.Owner,
		DueDate:     c.DueDate,
		Source:      entities.ActionSourceSpeech,
		Status:      entities.ActionStatusOpen,
	}
}

// HandleCommitment is the commitment subscriber.
// A policy denial drops the action without failing the publish.
func (r *Router) HandleCommitment(ctx context.Context, event entities.MeetingEvent) error {
	c, ok := event.Payload.(entities.Commitment)
	if !ok {
		return fmt.Errorf("action router: unexpected payload %T", event.Payload)
	}
	action := BuildAction(event.MeetingID, c)
	log := r.logger.With(
		zap.String("meeting_id", action.MeetingID),
		zap.String("action_id", action.ID),
	)

	decision, err := r.policy.Check(ctx, policy.Request{
		MeetingID: action.MeetingID,
		DataClass: entities.DataClassAction,
		Operation: policy.OperationStore,
	})
	if err != nil {
		return err
	}
	if !decision.Allowed {
		log.Warn("Action dropped by policy", zap.String("reason", decision.Reason))
		return nil
	}

	existing, err := r.actions.GetActionItemByID(ctx, action.ID)
	if err != nil {
		return fmt.Errorf("load action %s: %w", action.ID, err)
	}
	if existing != nil {
		log.Debug("Commitment already routed")
		return nil
	}

	r.createTasks(ctx, action, log)

	if err := r.actions.UpsertActionItem(ctx, action); err != nil {
		return fmt.Errorf("store action %s: %w", action.ID, err)
	}

	if err := r.scheduleNudge(ctx, action); err != nil {
		return err
	}

	occurredAt := r.clock.Now()
	if action.DueDate != nil {
		occurredAt = *action.DueDate
	}
	log.Info("📝 Action item created",
		zap.String("owner", action.Owner),
		zap.Int("external_links", len(action.ExternalLinks)),
	)
	out := entities.NewMeetingEvent(action.MeetingID, *action, occurredAt).WithCorrelation(event.ID)
	return r.publisher.Publish(ctx, out)
}

// createTasks calls every active provider; a failing provider only costs its own link
func (r *Router) createTasks(ctx context.Context, action *entities.ActionItem, log *zap.Logger) {
	for _, p := range r.providers {
		url, err := p.CreateTask(ctx, action)
		if err != nil {
			log.Warn("Task provider failed", zap.String("provider", p.Name()), zap.Error(err))
			continue
		}
		action.AddLink(p.Name(), url)
	}
}

func (r *Router) scheduleNudge(ctx context.Context, action *entities.ActionItem) error {
	if action.DueDate == nil || r.jobs == nil {
		return nil
	}

	fireAt := action.DueDate.Add(NudgeDelay)
	delay := fireAt.Sub(r.clock.Now())
	if delay < 0 {
		delay = 0
	}
	_, err := r.jobs.Enqueue(ctx, queue.QueueNudges, "nudge", NudgePayload{
		ActionID:  action.ID,
		MeetingID: action.MeetingID,
	}, queue.EnqueueOptions{
		JobID:          "nudge:" + action.ID,
		IdempotencyKey: fmt.Sprintf("nudge:%s:%d", action.ID, fireAt.Unix()),
		Delay:          delay,
	})
	if err != nil {
		return fmt.Errorf("schedule nudge for %s: %w", action.ID, err)
	}
	r.logger.Debug("⏰ Nudge scheduled", zap.String("action_id", action.ID), zap.Time("fire_at", fireAt))
	return nil
}

// HandleNudge is the nudges queue handler. It re-reads the action and only
// reminds owners of actions that still exist and are open.
func (r *Router) HandleNudge(ctx context.Context, job *entities.Job) error {
	payload, err := queue.DecodePayload[NudgePayload](job)
	if err != nil {
		return err
	}

	action, err := r.actions.GetActionItemByID(ctx, payload.ActionID)
	if err != nil {
		return err
	}
	if action == nil || !action.IsOpen() {
		r.logger.Debug("Nudge skipped, action gone or done", zap.String("action_id", payload.ActionID))
		return nil
	}

	for _, p := range r.providers {
		reminder, ok := p.(providers.Reminder)
		if !ok {
			continue
		}
		if err := reminder.SendReminder(ctx, action); err != nil {
			r.logger.Warn("Reminder failed",
				zap.String("provider", p.Name()),
				zap.String("action_id", action.ID),
				zap.Error(err),
			)
			continue
		}
		r.logger.Info("🔔 Reminder sent",
			zap.String("provider", p.Name()),
			zap.String("action_id", action.ID),
			zap.String("owner", action.Owner),
		)
	}
	return nil
}

// Complete marks an action done; pending nudges then find it closed
func (r *Router) Complete(ctx context.Context, actionID string) (*entities.ActionItem, error) {
	action, err := r.actions.GetActionItemByID(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if action == nil {
		return nil, fmt.Errorf("%w: action %s", usecaseErrors.ErrNotFound, actionID)
	}
	action.MarkDone()
	if err := r.actions.UpsertActionItem(ctx, action); err != nil {
		return nil, err
	}
	return action, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
