package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/queue"
)

// ErrChannelDisabled is returned for a channel with no configured sender
var ErrChannelDisabled = errors.New("notification channel not configured")

// Enqueuer schedules deliveries on the job queue
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, name string, payload any, opts queue.EnqueueOptions) (*entities.Job, error)
}

// Options wires a Dispatcher
type Options struct {
	Jobs          Enqueuer
	Senders       []Sender
	OperatorEmail string
	Logger        *zap.Logger
}

// Dispatcher queues notifications and delivers them from the notifications queue
type Dispatcher struct {
	jobs     Enqueuer
	senders  map[Channel]Sender
	operator string
	logger   *zap.Logger
}

// NewDispatcher keeps the configured senders; the first sender wins per channel
func NewDispatcher(opts Options) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	d := &Dispatcher{
		jobs:     opts.Jobs,
		senders:  make(map[Channel]Sender),
		operator: opts.OperatorEmail,
		logger:   opts.Logger,
	}
	for _, s := range opts.Senders {
		if s == nil || !s.Configured() {
			continue
		}
		if _, taken := d.senders[s.Channel()]; !taken {
			d.senders[s.Channel()] = s
		}
	}
	return d
}

// Enabled reports whether a channel has a sender
func (d *Dispatcher) Enabled(ch Channel) bool {
	_, ok := d.senders[ch]
	return ok
}

// Notify queues a message. A disabled channel is skipped without error.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) error {
	if !d.Enabled(msg.Channel) {
		d.logger.Debug("Notification skipped, channel disabled",
			zap.String("channel", string(msg.Channel)),
			zap.String("key", msg.Key),
		)
		return nil
	}
	if msg.Key == "" {
		return errors.New("notification key is required")
	}

	key := fmt.Sprintf("notify:%s:%s", msg.Channel, msg.Key)
	_, err := d.jobs.Enqueue(ctx, queue.QueueNotifications, "notify."+string(msg.Channel), msg, queue.EnqueueOptions{
		IdempotencyKey: key,
	})
	if err != nil {
		return fmt.Errorf("queue %s notification: %w", msg.Channel, err)
	}
	return nil
}

// HandleJob is the notifications queue handler
func (d *Dispatcher) HandleJob(ctx context.Context, job *entities.Job) error {
	msg, err := queue.DecodePayload[Message](job)
	if err != nil {
		return err
	}

	sender, ok := d.senders[msg.Channel]
	if !ok {
		return backoff.Permanent(fmt.Errorf("%w: %s", ErrChannelDisabled, msg.Channel))
	}
	if err := sender.Send(ctx, msg); err != nil {
		return err
	}

	d.logger.Info("✉️ Notification sent",
		zap.String("channel", string(msg.Channel)),
		zap.String("key", msg.Key),
		zap.Int("recipients", len(msg.Recipients())),
	)
	return nil
}

// AlertDeadLetter tells the operator about a dead-lettered job.
// Failures on the notifications queue itself are only logged.
func (d *Dispatcher) AlertDeadLetter(ctx context.Context, dl queue.DeadLetter) error {
	if dl.Queue == queue.QueueNotifications {
		d.logger.Error("Notification dead-lettered",
			zap.String("dead_letter_id", dl.ID),
			zap.String("reason", dl.FailedReason),
		)
		return nil
	}

	subject := fmt.Sprintf("Job %s on %s failed after %d attempts", dl.OriginalJobID, dl.Queue, dl.RetryCount)
	body := fmt.Sprintf("Reason: %s\nFailed at: %s\nDead letter: %s\nManual retry possible: %t",
		dl.FailedReason, dl.FailedAt.Format("2006-01-02 15:04:05 MST"), dl.ID, dl.CanRetry)

	var errs []error
	if d.operator != "" {
		errs = append(errs, d.Notify(ctx, Message{
			Channel: ChannelEmail,
			To:      []string{d.operator},
			Subject: subject,
			Body:    body,
			Key:     "dlq:" + dl.ID,
		}))
	}
	errs = append(errs, d.Notify(ctx, Message{
		Channel: ChannelChat,
		Subject: subject,
		Body:    body,
		Key:     "dlq:" + dl.ID,
	}))
	return errors.Join(errs...)
}
