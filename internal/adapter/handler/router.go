package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/johnquangdev/meeting-colleague/internal/adapter/dto/common"
	"github.com/johnquangdev/meeting-colleague/pkg/config"
	"github.com/johnquangdev/meeting-colleague/pkg/middleware"
)

// HealthCheck reports whether one dependency is reachable
type HealthCheck func(ctx context.Context) error

// Router holds all handlers
type Router struct {
	cfg        *config.Config
	meetings   *Meeting
	webhooks   *Webhook
	operations *Operations
	gatherer   prometheus.Gatherer
	checks     map[string]HealthCheck
}

// NewRouter creates a new router with all handlers
func NewRouter(cfg *config.Config, meetings *Meeting, webhooks *Webhook, operations *Operations, gatherer prometheus.Gatherer, checks map[string]HealthCheck) *Router {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Router{
		cfg:        cfg,
		meetings:   meetings,
		webhooks:   webhooks,
		operations: operations,
		gatherer:   gatherer,
		checks:     checks,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	e.GET("/health", rt.healthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{})))

	v1 := e.Group("/v1")

	// providers authenticate with their own signature
	if rt.webhooks != nil {
		v1.POST("/webhooks/provider", rt.webhooks.Provider)
	}

	protected := v1.Group("", middleware.RequireToken(rt.cfg.Server.APIToken))
	rt.setupMeetingRoutes(protected)
	rt.setupOperationRoutes(protected)
}

// setupMeetingRoutes configures meeting lifecycle routes
func (rt *Router) setupMeetingRoutes(g *echo.Group) {
	meetings := g.Group("/meetings")
	if rt.meetings == nil {
		meetings.Any("*", rt.notImplemented)
		return
	}

	meetings.POST("", rt.meetings.Schedule)
	meetings.DELETE("/:id", rt.meetings.Cancel)
	meetings.POST("/:id/consent", rt.meetings.Consent)
	meetings.POST("/:id/segments", rt.meetings.Segment)
	meetings.POST("/:id/summary", rt.meetings.Summary)
	meetings.GET("/:id/events", rt.meetings.Events)
}

// setupOperationRoutes configures DLQ and data-subject routes
func (rt *Router) setupOperationRoutes(g *echo.Group) {
	if rt.operations == nil {
		g.Any("/dlq*", rt.notImplemented)
		g.Any("/users*", rt.notImplemented)
		return
	}

	dlq := g.Group("/dlq")
	dlq.GET("", rt.operations.ListDeadLetters)
	dlq.POST("/:id/retry", rt.operations.RetryDeadLetter)
	dlq.DELETE("/:id", rt.operations.DiscardDeadLetter)

	g.DELETE("/users/:email/data", rt.operations.DeleteUserData)
}

// notImplemented returns 501 Not Implemented response
func (rt *Router) notImplemented(c echo.Context) error {
	return c.JSON(http.StatusNotImplemented, map[string]interface{}{
		"error":  "This endpoint is not yet implemented",
		"path":   c.Request().URL.Path,
		"method": c.Request().Method,
	})
}

// healthCheck runs every dependency check and answers 503 if any fails
func (rt *Router) healthCheck(c echo.Context) error {
	resp := common.HealthResponse{Status: "ok", Environment: rt.cfg.Server.Environment}
	status := http.StatusOK

	if len(rt.checks) > 0 {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		resp.Checks = make(map[string]string, len(rt.checks))
		for name, check := range rt.checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
	}
	return c.JSON(status, resp)
}
