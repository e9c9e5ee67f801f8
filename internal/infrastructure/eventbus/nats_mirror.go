package eventbus

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
)

// NATSMirror publishes every event to <prefix>.<meetingId>.<type>
type NATSMirror struct {
	nc     *nats.Conn
	prefix string
	owned  bool
}

var _ Mirror = (*NATSMirror)(nil)

// NewNATSMirror wraps an existing connection; the caller keeps ownership of it
func NewNATSMirror(nc *nats.Conn, prefix string) *NATSMirror {
	if prefix == "" {
		prefix = "meetings"
	}
	return &NATSMirror{nc: nc, prefix: prefix}
}

// DialNATSMirror connects to url and closes the connection with the mirror
func DialNATSMirror(url, prefix string) (*NATSMirror, error) {
	nc, err := nats.Connect(url, nats.Name("meeting-colleague-bus"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	m := NewNATSMirror(nc, prefix)
	m.owned = true
	return m, nil
}

// Subject returns the subject an event is mirrored to
func (m *NATSMirror) Subject(event entities.MeetingEvent) string {
	// dots separate subject tokens
	id := strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(event.MeetingID)
	return fmt.Sprintf("%s.%s.%s", m.prefix, id, event.Type)
}

func (m *NATSMirror) Mirror(_ context.Context, event entities.MeetingEvent) error {
	data, err := entities.EncodeEvent(event)
	if err != nil {
		return err
	}
	return m.nc.Publish(m.Subject(event), data)
}

func (m *NATSMirror) Close() error {
	if !m.owned {
		return nil
	}
	if err := m.nc.Drain(); err != nil {
		m.nc.Close()
		return err
	}
	return nil
}
