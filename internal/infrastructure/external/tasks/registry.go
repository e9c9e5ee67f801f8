package tasks

import (
	"context"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/domain/providers"
	"github.com/johnquangdev/meeting-colleague/pkg/config"
)

// NoopProvider keeps the pipeline running when no tracker is configured
type NoopProvider struct{}

func (NoopProvider) Name() string     { return "noop" }
func (NoopProvider) Configured() bool { return true }

func (NoopProvider) CreateTask(context.Context, *entities.ActionItem) (string, error) {
	return "", nil
}

// Registry is the set of task providers resolved once at startup
type Registry struct {
	active []providers.TaskProvider
}

// NewRegistry keeps the configured providers, falling back to NoopProvider
func NewRegistry(logger *zap.Logger, candidates ...providers.TaskProvider) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	var active []providers.TaskProvider
	for _, p := range candidates {
		if p == nil || !p.Configured() {
			continue
		}
		active = append(active, p)
		logger.Info("🔌 Task provider enabled", zap.String("provider", p.Name()))
	}
	if len(active) == 0 {
		logger.Info("No task provider configured, actions are only stored")
		active = []providers.TaskProvider{NoopProvider{}}
	}
	return &Registry{active: active}
}

// FromConfig builds the registry of every provider this build knows about
func FromConfig(cfg *config.TasksConfig, logger *zap.Logger) *Registry {
	return NewRegistry(logger, NewClickUpProvider(cfg), NewWebhookProvider(cfg))
}

// Active returns the providers in registration order
func (r *Registry) Active() []providers.TaskProvider {
	out := make([]providers.TaskProvider, len(r.active))
	copy(out, r.active)
	return out
}
