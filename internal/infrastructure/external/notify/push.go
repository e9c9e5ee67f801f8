package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// PushSender publishes each message to <prefix>.<recipient> for the push gateway
type PushSender struct {
	nc     *nats.Conn
	prefix string
}

type pushPayload struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Key     string `json:"key"`
}

// NewPushSender wraps a NATS connection; nc may be nil when push is disabled
func NewPushSender(nc *nats.Conn, prefix string) *PushSender {
	if prefix == "" {
		prefix = "notifications.push"
	}
	return &PushSender{nc: nc, prefix: prefix}
}

func (s *PushSender) Channel() Channel { return ChannelPush }

func (s *PushSender) Configured() bool { return s.nc != nil }

// Subject returns the NATS subject for a recipient
func (s *PushSender) Subject(recipient string) string {
	return s.prefix + "." + strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(recipient)
}

func (s *PushSender) Send(_ context.Context, msg Message) error {
	to := msg.Recipients()
	if len(to) == 0 {
		return errors.New("push: no recipients")
	}

	data, err := json.Marshal(pushPayload{Subject: msg.Subject, Body: msg.Body, Key: msg.Key})
	if err != nil {
		return err
	}
	for _, recipient := range to {
		if err := s.nc.Publish(s.Subject(recipient), data); err != nil {
			return fmt.Errorf("push to %s: %w", recipient, err)
		}
	}
	return s.nc.Flush()
}
