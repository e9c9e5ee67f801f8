package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-colleague/internal/adapter/handler"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/database"
	pkgvalidator "github.com/johnquangdev/meeting-colleague/pkg/validator"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the job workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app) error {
				if migrate {
					if _, err := database.Migrate(a.db, "postgres", false, a.logger); err != nil {
						return err
					}
				}
				return serve(cmd.Context(), a)
			})
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply pending migrations before serving")
	return cmd
}

func newEcho(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = pkgvalidator.New()

	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			a.logger.Info("request",
				zap.String("request_id", v.RequestID),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("2M"))

	logger := a.logger.Named("http")
	handler.NewRouter(a.cfg,
		handler.NewMeeting(a.pipeline, a.bus, logger),
		handler.NewWebhook(a.pipeline, logger),
		handler.NewOperations(a.jobs, a.retention, logger),
		a.registry,
		a.healthChecks(),
	).Setup(e)
	return e
}

func serve(parent context.Context, a *app) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.jobs.Start(); err != nil {
		return fmt.Errorf("start queues: %w", err)
	}

	e := newEcho(a)
	addr := fmt.Sprintf("%s:%s", a.cfg.Server.Host, a.cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("🚀 Starting server",
			zap.String("addr", addr),
			zap.String("environment", a.cfg.Server.Environment),
		)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("🛑 Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.logger.Info("✅ Server stopped gracefully")
	return nil
}
