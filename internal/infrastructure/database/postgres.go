package database

import (
	"embed"
	"fmt"
	"time"

	migrate "github.com/rubenv/sql-migrate"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/pkg/config"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// NewPostgresDB creates a new PostgreSQL database connection using GORM
func NewPostgresDB(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dsn := cfg.GetDatabaseDSN()

	// Configure GORM logger
	gormLogger := logger.Default.LogMode(logger.Warn)
	if cfg.Server.Environment == "production" {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get generic database object to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database object: %w", err)
	}

	// Connection pool settings
	sqlDB.SetMaxOpenConns(cfg.Database.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MinConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("✅ Database connected", zap.String("host", cfg.Database.Host), zap.String("name", cfg.Database.Name))
	return db, nil
}

// migrationSource returns the embedded SQL migrations
func migrationSource() migrate.MigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationFS,
		Root:       "migrations",
	}
}

// Migrate applies (or with down, reverts) the embedded migrations
func Migrate(db *gorm.DB, dialect string, down bool, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}
	sqlDB, err := db.DB()
	if err != nil {
		return 0, fmt.Errorf("failed to get db connection during migrate, error: %v", err)
	}

	direction := migrate.Up
	if down {
		direction = migrate.Down
	}

	n, err := migrate.Exec(sqlDB, dialect, migrationSource(), direction)
	if err != nil {
		return n, fmt.Errorf("failed to apply migration, error: %v", err)
	}

	log.Info("✅ Applied migrations", zap.Int("count", n), zap.Bool("down", down))
	return n, nil
}

// Models lists every persisted entity, in dependency order
func Models() []any {
	return []any{
		&entities.Meeting{},
		&entities.Consent{},
		&entities.MeetingSummary{},
		&entities.DecisionCard{},
		&entities.ActionItem{},
		&entities.Brief{},
		&entities.Stakeholder{},
		&entities.AuditEntry{},
		&entities.Job{},
	}
}

// CloseDB closes the database connection
func CloseDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database object: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
