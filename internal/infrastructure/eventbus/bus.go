package eventbus

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	usecaseErrors "github.com/johnquangdev/meeting-colleague/internal/usecase/errors"
)

// Handler consumes one event. A returned error aborts delivery to later handlers.
type Handler func(ctx context.Context, event entities.MeetingEvent) error

// Log keeps the recent events of each meeting for replay
type Log interface {
	Append(ctx context.Context, event entities.MeetingEvent) error
	Events(ctx context.Context, meetingID string) ([]entities.MeetingEvent, error)
	Close() error
}

// Mirror forwards published events to an external system
type Mirror interface {
	Mirror(ctx context.Context, event entities.MeetingEvent) error
	Close() error
}

// Subscription identifies a handler registered with Subscribe
type Subscription struct {
	id        uint64
	eventType entities.EventType
}

type subscriber struct {
	id      uint64
	handler Handler
}

// Options configures a Bus
type Options struct {
	Log        Log
	Mirror     Mirror
	Clock      clock.Clock
	Logger     *zap.Logger
	Registerer prometheus.Registerer
}

// Bus is an in-process publish/subscribe bus with a per-meeting replay log
type Bus struct {
	log     Log
	mirror  Mirror
	clock   clock.Clock
	logger  *zap.Logger
	metrics *Metrics

	mu     sync.RWMutex
	subs   map[entities.EventType][]subscriber
	nextID uint64
	closed bool
}

// New creates a bus. Without a Log, a MemoryLog with the default bound is used.
func New(opts Options) *Bus {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Log == nil {
		opts.Log = NewMemoryLog(DefaultReplayLimit)
	}
	return &Bus{
		log:     opts.Log,
		mirror:  opts.Mirror,
		clock:   opts.Clock,
		logger:  opts.Logger,
		metrics: NewMetrics(opts.Registerer),
		subs:    make(map[entities.EventType][]subscriber),
	}
}

// Subscribe registers handler for one event type. Handlers run in subscription order.
func (b *Bus) Subscribe(eventType entities.EventType, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subs[eventType] = append(b.subs[eventType], subscriber{id: b.nextID, handler: handler})
	return Subscription{id: b.nextID, eventType: eventType}
}

// Unsubscribe removes a handler. Removing an unknown subscription is a no-op.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[sub.eventType]
	for i, s := range subs {
		if s.id == sub.id {
			// copy so in-flight publishes keep their snapshot
			next := make([]subscriber, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			b.subs[sub.eventType] = next
			return
		}
	}
}

// Publish appends the event to the replay log, mirrors it, then awaits every
// subscribed handler in order. The first handler error is returned and later
// handlers are not called.
func (b *Bus) Publish(ctx context.Context, event entities.MeetingEvent) error {
	if event.Payload == nil {
		return fmt.Errorf("%w: missing payload", usecaseErrors.ErrInvalidEvent)
	}
	if event.MeetingID == "" {
		return fmt.Errorf("%w: missing meeting id", usecaseErrors.ErrInvalidEvent)
	}
	if event.Type == "" {
		event.Type = event.Payload.EventType()
	}
	if event.Type != event.Payload.EventType() {
		return fmt.Errorf("%w: type %s does not match %s payload", usecaseErrors.ErrInvalidEvent, event.Type, event.Payload.EventType())
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = b.clock.Now().UTC()
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return usecaseErrors.ErrBusClosed
	}
	subs := b.subs[event.Type]
	b.mu.RUnlock()

	log := b.logger.With(
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("meeting_id", event.MeetingID),
	)

	if err := b.log.Append(ctx, event); err != nil {
		b.metrics.LogErrors.Inc()
		log.Warn("Failed to append event to replay log", zap.Error(err))
	}
	if b.mirror != nil {
		if err := b.mirror.Mirror(ctx, event); err != nil {
			b.metrics.MirrorErrors.Inc()
			log.Warn("Failed to mirror event", zap.Error(err))
		}
	}
	b.metrics.Published.WithLabelValues(string(event.Type)).Inc()

	for i, s := range subs {
		if err := s.handler(ctx, event); err != nil {
			b.metrics.HandlerErrors.WithLabelValues(string(event.Type)).Inc()
			log.Debug("Handler failed, aborting delivery",
				zap.Int("handler", i),
				zap.Int("skipped", len(subs)-i-1),
				zap.Error(err),
			)
			return fmt.Errorf("%s handler %d: %w", event.Type, i, err)
		}
	}
	return nil
}

// Events returns the buffered events of a meeting, oldest first
func (b *Bus) Events(ctx context.Context, meetingID string) ([]entities.MeetingEvent, error) {
	return b.log.Events(ctx, meetingID)
}

// Replay re-delivers the buffered events of a meeting to handler, yielding
// between deliveries. It stops at the first handler error or when ctx is done.
func (b *Bus) Replay(ctx context.Context, meetingID string, handler Handler) error {
	events, err := b.log.Events(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("load replay log for %s: %w", meetingID, err)
	}

	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := handler(ctx, event); err != nil {
			return fmt.Errorf("replay %s of %s: %w", event.ID, meetingID, err)
		}
		b.metrics.Replayed.Inc()
		runtime.Gosched()
	}
	return nil
}

// Close drops every subscription and releases the log and mirror
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.subs = make(map[entities.EventType][]subscriber)
	b.mu.Unlock()

	var firstErr error
	if b.mirror != nil {
		if err := b.mirror.Close(); err != nil {
			firstErr = err
		}
	}
	if err := b.log.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
