package notify

import (
	"context"
	"strings"
)

// Channel is a delivery medium
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelChat  Channel = "chat"
	ChannelPush  Channel = "push"
)

// Message is a rendered notification
type Message struct {
	Channel Channel  `json:"channel"`
	To      []string `json:"to,omitempty"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	// Key identifies the subject of the message, e.g. "brief:pre:<meetingId>"
	Key string `json:"key"`
}

// Recipients returns To without blanks
func (m Message) Recipients() []string {
	out := make([]string, 0, len(m.To))
	for _, to := range m.To {
		if to = strings.TrimSpace(to); to != "" {
			out = append(out, to)
		}
	}
	return out
}

// Sender delivers messages on one channel
type Sender interface {
	Channel() Channel
	Configured() bool
	Send(ctx context.Context, msg Message) error
}
