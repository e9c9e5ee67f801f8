package eventbus

import (
	"context"
	"sync"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
)

// DefaultReplayLimit is the number of events kept per meeting
const DefaultReplayLimit = 500

// MemoryLog keeps the newest events of each meeting in process memory
type MemoryLog struct {
	mu     sync.RWMutex
	limit  int
	events map[string][]entities.MeetingEvent
}

var _ Log = (*MemoryLog)(nil)

// NewMemoryLog creates a log bounded to limit events per meeting
func NewMemoryLog(limit int) *MemoryLog {
	if limit < 1 {
		limit = DefaultReplayLimit
	}
	return &MemoryLog{
		limit:  limit,
		events: make(map[string][]entities.MeetingEvent),
	}
}

func (l *MemoryLog) Append(_ context.Context, event entities.MeetingEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	events := append(l.events[event.MeetingID], event)
	if over := len(events) - l.limit; over > 0 {
		events = append([]entities.MeetingEvent(nil), events[over:]...)
	}
	l.events[event.MeetingID] = events
	return nil
}

func (l *MemoryLog) Events(_ context.Context, meetingID string) ([]entities.MeetingEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	events := l.events[meetingID]
	out := make([]entities.MeetingEvent, len(events))
	copy(out, events)
	return out, nil
}

// Forget drops the buffered events of a meeting
func (l *MemoryLog) Forget(meetingID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.events, meetingID)
}

func (l *MemoryLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = make(map[string][]entities.MeetingEvent)
	return nil
}
