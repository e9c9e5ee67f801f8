package handler

import (
	"context"
	"net/http"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-colleague/errors"
	"github.com/johnquangdev/meeting-colleague/internal/adapter/dto/common"
	"github.com/johnquangdev/meeting-colleague/internal/adapter/presenter"
	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/queue"
)

const (
	defaultDLQLimit = 50
	maxDLQLimit     = 500
)

// DeadLetters is the operator view of the DLQ
type DeadLetters interface {
	DeadLetters(ctx context.Context, limit int) ([]queue.DeadLetter, error)
	RetryDeadLetter(ctx context.Context, id string) (*entities.Job, error)
	DiscardDeadLetter(ctx context.Context, id string) error
}

// UserDataDeleter erases everything organized by one user
type UserDataDeleter interface {
	DeleteAllDataForUser(ctx context.Context, email string) (*entities.RetentionResult, error)
}

// Operations serves the DLQ and data-subject routes
type Operations struct {
	dlq       DeadLetters
	retention UserDataDeleter
	logger    *zap.Logger
}

func NewOperations(dlq DeadLetters, retention UserDataDeleter, logger *zap.Logger) *Operations {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Operations{dlq: dlq, retention: retention, logger: logger}
}

// ListDeadLetters handles GET /v1/dlq?limit=
func (h *Operations) ListDeadLetters(c echo.Context) error {
	limit := defaultDLQLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return HandleError(h.logger, c, errors.ErrInvalidArgument("limit must be a positive integer"))
		}
		limit = min(n, maxDLQLimit)
	}

	items, err := h.dlq.DeadLetters(c.Request().Context(), limit)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, common.ListResponse{
		Data:  presenter.ToDeadLetterResponses(items),
		Total: len(items),
	})
}

// RetryDeadLetter handles POST /v1/dlq/:id/retry
func (h *Operations) RetryDeadLetter(c echo.Context) error {
	job, err := h.dlq.RetryDeadLetter(c.Request().Context(), c.Param("id"))
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	h.logger.Info("♻️ Dead letter re-queued",
		zap.String("dlq_id", c.Param("id")),
		zap.String("job_id", job.ID),
	)
	return HandleStatus(h.logger, c, http.StatusAccepted, presenter.ToRetryResponse(job))
}

// DiscardDeadLetter handles DELETE /v1/dlq/:id
func (h *Operations) DiscardDeadLetter(c echo.Context) error {
	if err := h.dlq.DiscardDeadLetter(c.Request().Context(), c.Param("id")); err != nil {
		return HandleError(h.logger, c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteUserData handles DELETE /v1/users/:email/data
func (h *Operations) DeleteUserData(c echo.Context) error {
	email, err := url.PathUnescape(c.Param("email"))
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("email is invalid"))
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("email is invalid"))
	}

	result, err := h.retention.DeleteAllDataForUser(c.Request().Context(), email)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, presenter.ToRetentionResponse(email, result))
}
