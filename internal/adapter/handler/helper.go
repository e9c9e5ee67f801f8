package handler

import (
	stdErrors "errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-colleague/errors"
	usecaseErrors "github.com/johnquangdev/meeting-colleague/internal/usecase/errors"
)

// Response shapes
type success struct {
	Code    interface{} `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type errs struct {
	Code    interface{}       `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Info    string            `json:"info,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// getRequestID tries to read X-Request-ID from the request or the response
func getRequestID(c echo.Context) string {
	if c == nil || c.Request() == nil {
		return ""
	}
	if id := c.Request().Header.Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

// HandleSuccess writes a standardized 200 response using provided logger
func HandleSuccess(logger *zap.Logger, c echo.Context, data interface{}) error {
	return HandleStatus(logger, c, http.StatusOK, data)
}

// HandleStatus writes a standardized success response with an explicit status
func HandleStatus(logger *zap.Logger, c echo.Context, status int, data interface{}) error {
	resp := success{
		Code:    status,
		Message: "success",
		Data:    data,
	}

	if logger != nil {
		logger.Debug("http.response.success",
			zap.String("request_id", getRequestID(c)),
			zap.String("path", c.Path()),
			zap.Int("status", status),
		)
	}

	return c.JSON(status, resp)
}

// HandleError centralizes error handling and logging using provided logger
func HandleError(logger *zap.Logger, c echo.Context, err error) error {
	appErr := toAppError(c, err)

	if logger != nil {
		log := logger.Warn
		if appErr.HTTPCode >= http.StatusInternalServerError {
			log = logger.Error
		}
		log("http.response.error",
			zap.String("request_id", getRequestID(c)),
			zap.String("path", c.Path()),
			zap.Any("app_code", appErr.Code),
			zap.Error(err),
		)
	}

	body := errs{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}
	if appErr.Raw != nil {
		body.Info = appErr.Raw.Error()
	}

	return c.JSON(appErr.HTTPCode, body)
}

// toAppError maps usecase sentinels onto API errors
func toAppError(c echo.Context, err error) errors.AppError {
	var appErr errors.AppError
	if stdErrors.As(err, &appErr) {
		return appErr
	}

	var (
		providerErr *usecaseErrors.ProviderError
		enqueueErr  *usecaseErrors.EnqueueError
	)
	id := c.Param("id")
	switch {
	case stdErrors.Is(err, usecaseErrors.ErrInvalidInput), stdErrors.Is(err, usecaseErrors.ErrInvalidEvent):
		return errors.ErrInvalidArgument(err.Error())
	case stdErrors.Is(err, usecaseErrors.ErrUnknownProfile):
		profile, _ := c.Get(profileKey).(string)
		return errors.ErrUnknownProfile(profile)
	case stdErrors.Is(err, usecaseErrors.ErrMeetingNotFound):
		return errors.ErrMeetingNotFound(id)
	case stdErrors.Is(err, usecaseErrors.ErrSummaryNotFound):
		return errors.ErrSummaryNotFound(id)
	case stdErrors.Is(err, usecaseErrors.ErrConsentNotFound):
		return errors.ErrConsentNotFound(id)
	case stdErrors.Is(err, usecaseErrors.ErrPolicyDenied):
		return errors.ErrPolicyDenied(err.Error())
	case stdErrors.Is(err, usecaseErrors.ErrProviderNotReady):
		return errors.ErrProviderNotConfigured("meeting")
	case stdErrors.Is(err, usecaseErrors.ErrWebhookRejected):
		return errors.ErrUnauthenticated("webhook signature rejected")
	case stdErrors.Is(err, usecaseErrors.ErrDeadLetterNotFound):
		return errors.ErrDeadLetterNotFound(id)
	case stdErrors.Is(err, usecaseErrors.ErrRetryLimitReached):
		return errors.ErrRetryLimitReached(id)
	case stdErrors.Is(err, usecaseErrors.ErrUnknownQueue):
		return errors.ErrQueueUnknown(err.Error())
	case stdErrors.Is(err, usecaseErrors.ErrJobNotFound):
		return errors.ErrJobNotFound(id)
	case stdErrors.As(err, &providerErr):
		return errors.ErrProviderFailed(providerErr.Provider, providerErr.Operation, providerErr.Err)
	case stdErrors.As(err, &enqueueErr):
		return errors.ErrEnqueueFailed(enqueueErr.Queue, enqueueErr.Err)
	case stdErrors.Is(err, usecaseErrors.ErrRetentionFailed):
		return errors.ErrRetentionFailed(retentionSubject(c), err)
	case stdErrors.Is(err, usecaseErrors.ErrNothingToDelete):
		return errors.ErrNotFound("meetings for " + c.Param("email"))
	case stdErrors.Is(err, usecaseErrors.ErrNotFound):
		return errors.ErrNotFound(id)
	default:
		return errors.ErrInternal(err)
	}
}

// retentionSubject names what a deletion targeted: the user email or the meeting id
func retentionSubject(c echo.Context) string {
	if email, err := url.PathUnescape(c.Param("email")); err == nil && email != "" {
		return strings.ToLower(email)
	}
	return c.Param("id")
}
