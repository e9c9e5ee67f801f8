package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Storage    StorageConfig
	LiveKit    LiveKitConfig
	AssemblyAI AssemblyAIConfig
	TextGen    TextGenConfig
	Tasks      TasksConfig
	Notify     NotifyConfig
	Retention  RetentionConfig
	Queue      QueueConfig
	Bus        BusConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	ShutdownTimeout int
	// APIToken guards the /v1 operator routes; empty leaves them open
	APIToken string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UseSSL          bool
}

// LiveKitConfig holds meeting provider credentials
type LiveKitConfig struct {
	URL       string
	APIKey    string
	APISecret string
}

// AssemblyAIConfig holds transcription credentials
type AssemblyAIConfig struct {
	APIKey string
}

// TextGenConfig configures the text-generation backend
type TextGenConfig struct {
	Endpoint      string
	APIKey        string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

// TasksConfig configures the task-tracker providers
type TasksConfig struct {
	ClickUpToken   string
	ClickUpListID  string
	ClickUpBaseURL string
	WebhookURL     string
	WebhookSecret  string
}

// NotifyConfig configures the notification channels
type NotifyConfig struct {
	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPassword      string
	SMTPFrom          string
	ChatWebhookURL    string
	ChatRatePerMinute int
	NATSURL           string
	PushSubjectPrefix string
	OperatorEmail     string
}

// RetentionConfig configures retention receipts
type RetentionConfig struct {
	ReceiptSecret   string
	ReceiptPrefix   string
	RecordingPrefix string
}

// QueueConfig tunes the job queue runtime (QUEUE_*)
type QueueConfig struct {
	Backend        string         `envconfig:"BACKEND" default:"postgres"`
	PollInterval   time.Duration  `envconfig:"POLL_INTERVAL" default:"1s"`
	StallTimeout   time.Duration  `envconfig:"STALL_TIMEOUT" default:"5m"`
	StallInterval  time.Duration  `envconfig:"STALL_INTERVAL" default:"30s"`
	IdempotencyTTL time.Duration  `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
	KeepCompleted  int            `envconfig:"KEEP_COMPLETED" default:"100"`
	KeepFailed     int            `envconfig:"KEEP_FAILED" default:"500"`
	Concurrency    map[string]int `envconfig:"CONCURRENCY"`
}

// BusConfig tunes the event bus (BUS_*)
type BusConfig struct {
	ReplayBackend string        `envconfig:"REPLAY_BACKEND" default:"memory"`
	ReplayLimit   int           `envconfig:"REPLAY_LIMIT" default:"500"`
	ReplayTTL     time.Duration `envconfig:"REPLAY_TTL" default:"168h"`
	Mirror        bool          `envconfig:"MIRROR" default:"false"`
	SubjectPrefix string        `envconfig:"SUBJECT_PREFIX" default:"meetings"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Host:            getEnv("HOST", "0.0.0.0"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			ShutdownTimeout: getEnvAsInt("SHUTDOWN_TIMEOUT", 10),
			APIToken:        getEnv("API_TOKEN", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "meeting_colleague"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Endpoint:        getEnv("STORAGE_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
			BucketName:      getEnv("STORAGE_BUCKET", "meeting-colleague"),
			UseSSL:          getEnvAsBool("STORAGE_USE_SSL", false),
		},
		LiveKit: LiveKitConfig{
			URL:       getEnv("LIVEKIT_URL", ""),
			APIKey:    getEnv("LIVEKIT_API_KEY", ""),
			APISecret: getEnv("LIVEKIT_API_SECRET", ""),
		},
		AssemblyAI: AssemblyAIConfig{
			APIKey: getEnv("ASSEMBLYAI_API_KEY", ""),
		},
		TextGen: TextGenConfig{
			Endpoint:      getEnv("TEXTGEN_ENDPOINT", ""),
			APIKey:        getEnv("TEXTGEN_API_KEY", ""),
			Timeout:       getEnvAsDuration("TEXTGEN_TIMEOUT", "30s"),
			RatePerSecond: getEnvAsFloat("TEXTGEN_RATE_PER_SECOND", 2),
			Burst:         getEnvAsInt("TEXTGEN_BURST", 4),
		},
		Tasks: TasksConfig{
			ClickUpToken:   getEnv("CLICKUP_TOKEN", ""),
			ClickUpListID:  getEnv("CLICKUP_LIST_ID", ""),
			ClickUpBaseURL: getEnv("CLICKUP_BASE_URL", "https://api.clickup.com/api/v2"),
			WebhookURL:     getEnv("TASK_WEBHOOK_URL", ""),
			WebhookSecret:  getEnv("TASK_WEBHOOK_SECRET", ""),
		},
		Notify: NotifyConfig{
			SMTPHost:          getEnv("SMTP_HOST", ""),
			SMTPPort:          getEnvAsInt("SMTP_PORT", 587),
			SMTPUser:          getEnv("SMTP_USER", ""),
			SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
			SMTPFrom:          getEnv("SMTP_FROM", "colleague@localhost"),
			ChatWebhookURL:    getEnv("CHAT_WEBHOOK_URL", ""),
			ChatRatePerMinute: getEnvAsInt("CHAT_RATE_PER_MINUTE", 30),
			NATSURL:           getEnv("NATS_URL", ""),
			PushSubjectPrefix: getEnv("PUSH_SUBJECT_PREFIX", "notifications.push"),
			OperatorEmail:     getEnv("OPERATOR_EMAIL", ""),
		},
		Retention: RetentionConfig{
			ReceiptSecret:   getEnv("RETENTION_RECEIPT_SECRET", ""),
			ReceiptPrefix:   getEnv("RETENTION_RECEIPT_PREFIX", "receipts/"),
			RecordingPrefix: getEnv("RETENTION_RECORDING_PREFIX", "recordings/"),
		},
	}

	if err := envconfig.Process("QUEUE", &config.Queue); err != nil {
		return nil, fmt.Errorf("failed to load queue config: %w", err)
	}
	if err := envconfig.Process("BUS", &config.Bus); err != nil {
		return nil, fmt.Errorf("failed to load bus config: %w", err)
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Bus.ReplayBackend {
	case "memory":
	case "redis":
		if c.Redis.Host == "" {
			return fmt.Errorf("BUS_REPLAY_BACKEND=redis requires REDIS_HOST")
		}
	default:
		return fmt.Errorf("BUS_REPLAY_BACKEND must be memory or redis, got %q", c.Bus.ReplayBackend)
	}
	if c.Bus.ReplayLimit < 1 {
		return fmt.Errorf("BUS_REPLAY_LIMIT must be >= 1")
	}
	if c.Bus.Mirror && c.Notify.NATSURL == "" {
		return fmt.Errorf("BUS_MIRROR requires NATS_URL")
	}

	switch c.Queue.Backend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("QUEUE_BACKEND must be memory or postgres, got %q", c.Queue.Backend)
	}
	for queue, n := range c.Queue.Concurrency {
		if n < 1 {
			return fmt.Errorf("QUEUE_CONCURRENCY for %s must be >= 1", queue)
		}
	}
	if c.Queue.PollInterval <= 0 {
		return fmt.Errorf("QUEUE_POLL_INTERVAL must be positive")
	}

	if (c.LiveKit.APIKey == "") != (c.LiveKit.APISecret == "") {
		return fmt.Errorf("LIVEKIT_API_KEY and LIVEKIT_API_SECRET must be set together")
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}
