package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/johnquangdev/meeting-colleague/pkg/config"
)

// ChatSender posts to an incoming-webhook URL (Slack/Teams style)
type ChatSender struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

type chatPayload struct {
	Text string `json:"text"`
}

// NewChatSender creates a chat sender limited to ChatRatePerMinute posts
func NewChatSender(cfg *config.NotifyConfig) *ChatSender {
	perMinute := 30
	s := &ChatSender{client: &http.Client{Timeout: 10 * time.Second}}
	if cfg != nil {
		s.url = cfg.ChatWebhookURL
		if cfg.ChatRatePerMinute > 0 {
			perMinute = cfg.ChatRatePerMinute
		}
	}
	s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	return s
}

func (s *ChatSender) Channel() Channel { return ChannelChat }

func (s *ChatSender) Configured() bool { return s.url != "" }

func (s *ChatSender) Send(ctx context.Context, msg Message) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("chat rate limit: %w", err)
	}

	text := msg.Body
	if msg.Subject != "" {
		text = "*" + msg.Subject + "*\n" + msg.Body
	}
	body, err := json.Marshal(chatPayload{Text: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("chat webhook returned status %d", resp.StatusCode)
	}
	return nil
}
