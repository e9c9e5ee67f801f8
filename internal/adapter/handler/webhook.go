package handler

import (
	"context"
	"io"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-colleague/errors"
	"github.com/johnquangdev/meeting-colleague/internal/adapter/dto/meeting"
	"github.com/johnquangdev/meeting-colleague/internal/domain/providers"
)

// maxWebhookBody caps provider webhook bodies at 1 MiB
const maxWebhookBody = 1 << 20

// WebhookService verifies and applies provider webhooks
type WebhookService interface {
	HandleWebhook(ctx context.Context, body []byte, authHeader string) (*providers.WebhookOutcome, error)
}

// Webhook serves POST /v1/webhooks/provider
type Webhook struct {
	service WebhookService
	logger  *zap.Logger
}

func NewWebhook(service WebhookService, logger *zap.Logger) *Webhook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Webhook{service: service, logger: logger}
}

// Provider reads the raw body so the signature can be checked against it
func (h *Webhook) Provider(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if len(body) == 0 {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("empty webhook body"))
	}

	outcome, err := h.service.HandleWebhook(c.Request().Context(), body, c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	h.logger.Info("📨 Provider webhook handled",
		zap.String("kind", string(outcome.Kind)),
		zap.String("external_id", outcome.ExternalID),
	)
	return HandleSuccess(h.logger, c, &meeting.WebhookResponse{
		Kind:       string(outcome.Kind),
		ExternalID: outcome.ExternalID,
	})
}
