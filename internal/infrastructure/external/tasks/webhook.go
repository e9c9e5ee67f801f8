package tasks

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/domain/providers"
	"github.com/johnquangdev/meeting-colleague/pkg/config"
	"github.com/johnquangdev/meeting-colleague/pkg/signing"
)

// SignatureHeader carries the HMAC of the webhook body
const SignatureHeader = "X-Colleague-Signature"

// WebhookProvider posts actions to a generic HTTP endpoint
type WebhookProvider struct {
	url    string
	secret string
	client *http.Client
}

var (
	_ providers.TaskProvider = (*WebhookProvider)(nil)
	_ providers.Reminder     = (*WebhookProvider)(nil)
)

// NewWebhookProvider creates a webhook provider from the tasks config
func NewWebhookProvider(cfg *config.TasksConfig) *WebhookProvider {
	return &WebhookProvider{
		url:    cfg.WebhookURL,
		secret: cfg.WebhookSecret,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *WebhookProvider) Name() string { return "webhook" }

func (p *WebhookProvider) Configured() bool { return p.url != "" }

type webhookPayload struct {
	Event  string               `json:"event"`
	Action *entities.ActionItem `json:"action"`
}

type webhookResponse struct {
	URL string `json:"url"`
}

func (p *WebhookProvider) CreateTask(ctx context.Context, action *entities.ActionItem) (string, error) {
	var resp webhookResponse
	if err := p.send(ctx, webhookPayload{Event: "action.created", Action: action}, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

func (p *WebhookProvider) SendReminder(ctx context.Context, action *entities.ActionItem) error {
	return p.send(ctx, webhookPayload{Event: "action.reminder", Action: action}, nil)
}

func (p *WebhookProvider) send(ctx context.Context, payload webhookPayload, out any) error {
	headers := map[string]string{}
	if p.secret != "" {
		// signature covers the exact bytes postJSON will send
		body, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		headers[SignatureHeader] = signing.Sign(p.secret, body)
	}
	return postJSON(ctx, p.client, p.Name(), p.url, headers, payload, out)
}
