package main

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/johnquangdev/meeting-colleague/internal/adapter/handler"
	"github.com/johnquangdev/meeting-colleague/internal/adapter/repository"
	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/domain/repositories"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/cache"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/database"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/eventbus"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/external/livekit"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/external/notify"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/external/tasks"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/queue"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/storage"
	"github.com/johnquangdev/meeting-colleague/internal/usecase/actions"
	"github.com/johnquangdev/meeting-colleague/internal/usecase/briefing"
	"github.com/johnquangdev/meeting-colleague/internal/usecase/extractor"
	"github.com/johnquangdev/meeting-colleague/internal/usecase/pipeline"
	"github.com/johnquangdev/meeting-colleague/internal/usecase/policy"
	"github.com/johnquangdev/meeting-colleague/internal/usecase/retention"
	"github.com/johnquangdev/meeting-colleague/pkg/config"
	"github.com/johnquangdev/meeting-colleague/pkg/textgen"
)

const connectTimeout = 10 * time.Second

// app is the wired object graph shared by every command
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry

	db    *gorm.DB
	redis *redis.Client
	nc    *nats.Conn
	cache cache.Store

	bus        *eventbus.Bus
	jobs       *queue.Manager
	dispatcher *notify.Dispatcher
	pipeline   *pipeline.Service
	retention  *retention.Manager

	closers []func() error
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	ready := false
	defer func() {
		if !ready {
			a.close()
		}
	}()

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	logger.Info("📦 Connecting to database...")
	var err error
	a.db, err = database.NewPostgresDB(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.onClose(func() error { return database.CloseDB(a.db) })

	if err := a.connectRedis(ctx); err != nil {
		return nil, err
	}
	if err := a.connectNATS(); err != nil {
		return nil, err
	}

	clk := clock.New()

	// repositories
	meetings := repository.NewMeetingRepository(a.db)
	summaries := repository.NewSummaryRepository(a.db)
	consents := repository.NewConsentRepository(a.db)
	stakeholders := repository.NewStakeholderRepository(a.db)
	actionRepo := repository.NewActionRepository(a.db)

	var jobStore repositories.JobRepository = queue.NewMemoryStore()
	if cfg.Queue.Backend == "postgres" {
		jobStore = repository.NewJobRepository(a.db)
	}
	a.jobs = queue.NewManager(queue.Options{
		Store:          jobStore,
		Idempotency:    a.cache,
		Clock:          clk,
		Logger:         logger.Named("queue"),
		Registerer:     a.registry,
		PollInterval:   cfg.Queue.PollInterval,
		StallTimeout:   cfg.Queue.StallTimeout,
		StallInterval:  cfg.Queue.StallInterval,
		IdempotencyTTL: cfg.Queue.IdempotencyTTL,
	})

	a.bus, err = a.newBus(clk)
	if err != nil {
		return nil, err
	}
	a.onClose(a.bus.Close)
	a.onClose(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()
		return a.jobs.Close(ctx)
	})

	senders := []notify.Sender{
		notify.NewEmailSender(&cfg.Notify),
		notify.NewChatSender(&cfg.Notify),
	}
	if a.nc != nil {
		senders = append(senders, notify.NewPushSender(a.nc, cfg.Notify.PushSubjectPrefix))
	}
	a.dispatcher = notify.NewDispatcher(notify.Options{
		Jobs:          a.jobs,
		Senders:       senders,
		OperatorEmail: cfg.Notify.OperatorEmail,
		Logger:        logger.Named("notify"),
	})
	a.jobs.OnDeadLetter(a.dispatcher.AlertDeadLetter)

	checker := policy.NewEngine(consents, clk, logger.Named("policy"))
	generator := textgen.NewClient(&cfg.TextGen)

	scheduler := briefing.NewScheduler(briefing.Options{
		Meetings:     meetings,
		Summaries:    summaries,
		Briefs:       repository.NewBriefRepository(a.db),
		Actions:      actionRepo,
		Stakeholders: stakeholders,
		Generator:    generator,
		Publisher:    a.bus,
		Notifier:     a.dispatcher,
		Jobs:         a.jobs,
		Clock:        clk,
		Logger:       logger.Named("briefing"),
	})

	retentionOpts := retention.Options{
		Retention:       repository.NewRetentionRepository(a.db),
		Meetings:        meetings,
		Cache:           a.cache,
		Jobs:            a.jobs,
		Clock:           clk,
		Logger:          logger.Named("retention"),
		ReceiptSecret:   cfg.Retention.ReceiptSecret,
		ReceiptPrefix:   cfg.Retention.ReceiptPrefix,
		RecordingPrefix: cfg.Retention.RecordingPrefix,
	}
	if objects, err := storage.NewMinIOClient(ctx, &cfg.Storage); err != nil {
		logger.Warn("Object storage unavailable, receipts will not be archived", zap.Error(err))
	} else {
		retentionOpts.Objects = objects
	}
	a.retention = retention.NewManager(retentionOpts)

	router := actions.NewRouter(actions.Options{
		Actions:   actionRepo,
		Policy:    checker,
		Providers: tasks.FromConfig(&cfg.Tasks, logger.Named("tasks")).Active(),
		Publisher: a.bus,
		Jobs:      a.jobs,
		Clock:     clk,
		Logger:    logger.Named("actions"),
	})

	a.pipeline = pipeline.NewService(pipeline.Options{
		Meetings:     meetings,
		Summaries:    summaries,
		Consents:     consents,
		Stakeholders: stakeholders,
		Provider:     livekit.NewProvider(cfg.LiveKit, cfg.AssemblyAI, livekit.Options{Logger: logger.Named("livekit")}),
		Policy:       checker,
		Publisher:    a.bus,
		Jobs:         a.jobs,
		Briefs:       scheduler,
		Retention:    a.retention,
		Enricher:     generator,
		Clock:        clk,
		Logger:       logger.Named("pipeline"),
		Registerer:   a.registry,
	})

	for name, fn := range map[string]queue.Handler{
		queue.QueueMeetingProcessing: a.pipeline.HandleProcessingJob,
		queue.QueueBriefing:          scheduler.HandleJob,
		queue.QueueNotifications:     a.dispatcher.HandleJob,
		queue.QueueNudges:            router.HandleNudge,
		queue.QueueRetention:         a.retention.HandleJob,
	} {
		opts, _ := queue.DefaultQueueOptions(name)
		if n, ok := cfg.Queue.Concurrency[name]; ok {
			opts.Concurrency = n
		}
		opts.KeepCompleted = cfg.Queue.KeepCompleted
		opts.KeepFailed = cfg.Queue.KeepFailed
		if err := a.jobs.Register(opts, fn); err != nil {
			return nil, fmt.Errorf("register queue %s: %w", name, err)
		}
	}

	ext := extractor.NewService(repository.NewDecisionRepository(a.db), a.bus, logger.Named("extractor"))
	a.bus.Subscribe(entities.EventSpeechSegment, ext.HandleSegment)
	a.bus.Subscribe(entities.EventCommitment, router.HandleCommitment)
	a.bus.Subscribe(entities.EventMeetingSummary, scheduler.HandleSummary)
	a.bus.Subscribe(entities.EventStakeholderProfile, a.pipeline.HandleStakeholder)
	a.bus.Subscribe(entities.EventRegulationChange, a.pipeline.HandleRegulation)

	ready = true
	return a, nil
}

// connectRedis falls back to the in-process cache unless Redis is required
func (a *app) connectRedis(ctx context.Context) error {
	client, err := cache.NewRedisClient(ctx, a.cfg, a.logger)
	if err != nil {
		if a.cfg.Bus.ReplayBackend == "redis" {
			return err
		}
		a.logger.Warn("Redis unavailable, using in-memory cache", zap.Error(err))
		mem := cache.NewMemoryStore(clock.New())
		a.cache = mem
		a.onClose(mem.Close)
		return nil
	}
	a.redis = client
	a.cache = cache.NewRedisStore(client, "colleague:")
	a.onClose(client.Close)
	return nil
}

func (a *app) connectNATS() error {
	if a.cfg.Notify.NATSURL == "" {
		return nil
	}
	nc, err := nats.Connect(a.cfg.Notify.NATSURL, nats.Name("meeting-colleague"))
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	a.nc = nc
	a.onClose(func() error {
		nc.Close()
		return nil
	})
	a.logger.Info("✅ NATS connected", zap.String("url", a.cfg.Notify.NATSURL))
	return nil
}

func (a *app) newBus(clk clock.Clock) (*eventbus.Bus, error) {
	opts := eventbus.Options{
		Clock:      clk,
		Logger:     a.logger.Named("bus"),
		Registerer: a.registry,
		Log:        eventbus.NewMemoryLog(a.cfg.Bus.ReplayLimit),
	}
	if a.cfg.Bus.ReplayBackend == "redis" {
		opts.Log = eventbus.NewRedisLog(a.redis, a.cfg.Bus.ReplayLimit, a.cfg.Bus.ReplayTTL, a.logger.Named("bus"))
	}
	if a.cfg.Bus.Mirror {
		if a.nc == nil {
			return nil, fmt.Errorf("bus mirror needs a NATS connection")
		}
		opts.Mirror = eventbus.NewNATSMirror(a.nc, a.cfg.Bus.SubjectPrefix)
	}
	return eventbus.New(opts), nil
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// close releases resources in reverse order of acquisition
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

// healthChecks pings the backing services
func (a *app) healthChecks() map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := a.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}
	if a.nc != nil {
		checks["nats"] = func(context.Context) error {
			if !a.nc.IsConnected() {
				return fmt.Errorf("nats status %s", a.nc.Status())
			}
			return nil
		}
	}
	return checks
}
