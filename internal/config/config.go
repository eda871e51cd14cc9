package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	// Server settings
	ServerPort    int    `env:"SERVER_PORT" envDefault:"3002"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`

	Database   DatabaseConfig
	Auth       AuthConfig
	LLM        LLMConfig
	Storage    StorageConfig
	Automation AutomationConfig
	GitLab     GitLabConfig
	Jira       JiraConfig
	Scheduler  SchedulerConfig
	RateLimit  RateLimitConfig
	Otel       OtelConfig

	// Server timeouts. Chat and automation streams can run for minutes.
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"300s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"300s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// MaxUploadMB caps multipart bodies for Excel imports.
	MaxUploadMB int `env:"MAX_UPLOAD_MB" envDefault:"20"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"testmind"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"testmind"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
	AutoMigrate  bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	// JWTSecret signs and verifies HS256 session tokens.
	JWTSecret string `env:"AUTH_JWT_SECRET" envDefault:""`
	Issuer    string `env:"AUTH_JWT_ISSUER" envDefault:"testmind"`

	// Disabled injects a development user on every request.
	Disabled  bool   `env:"AUTH_DISABLED" envDefault:"false"`
	DevUserID string `env:"AUTH_DEV_USER_ID" envDefault:"00000000-0000-0000-0000-000000000001"`
}

// UsageType names what a model is being resolved for.
type UsageType string

const (
	UsageChat       UsageType = "chat"
	UsageTitle      UsageType = "title"
	UsageAutomation UsageType = "automation"
	UsageArtifact   UsageType = "artifact"
)

// LLMConfig holds language model configuration
type LLMConfig struct {
	// GCP Project ID for Vertex AI
	GCPProjectID string `env:"GCP_PROJECT_ID" envDefault:""`

	// Vertex AI location ("global" required for Gemini 3 models)
	VertexAILocation string `env:"VERTEX_AI_LOCATION" envDefault:"global"`

	// Google API Key for the Gemini API (used when Vertex AI is not configured)
	GoogleAPIKey string `env:"GOOGLE_API_KEY" envDefault:""`

	// Per-usage default models
	ChatModel       string `env:"LLM_CHAT_MODEL" envDefault:"gemini-2.5-flash"`
	TitleModel      string `env:"LLM_TITLE_MODEL" envDefault:"gemini-2.5-flash-lite"`
	AutomationModel string `env:"LLM_AUTOMATION_MODEL" envDefault:"gemini-2.5-pro"`
	ArtifactModel   string `env:"LLM_ARTIFACT_MODEL" envDefault:"gemini-2.5-flash"`

	// StaticFallbackModel is the last resort when both the requested and
	// the usage default model fail to resolve.
	StaticFallbackModel string `env:"LLM_STATIC_FALLBACK_MODEL" envDefault:"gemini-2.0-flash"`

	// AvailableModels restricts which explicit model IDs a client may request.
	// Empty allows any ID.
	AvailableModels []string `env:"LLM_AVAILABLE_MODELS" envSeparator:","`

	// MaxSteps bounds the number of model invocations per chat turn.
	MaxSteps int `env:"LLM_MAX_STEPS" envDefault:"8"`

	MaxOutputTokens int           `env:"LLM_MAX_OUTPUT_TOKENS" envDefault:"8192"`
	Temperature     float64       `env:"LLM_TEMPERATURE" envDefault:"0.2"`
	Timeout         time.Duration `env:"LLM_TIMEOUT" envDefault:"120s"`

	// Disable LLM network calls (for testing)
	NetworkDisabled bool `env:"LLM_NETWORK_DISABLED" envDefault:"false"`
}

// IsEnabled returns true if LLM is configured
func (l *LLMConfig) IsEnabled() bool {
	if l.NetworkDisabled {
		return false
	}
	return l.UseVertexAI() || l.GoogleAPIKey != ""
}

// UseVertexAI returns true if Vertex AI should be used (GCP credentials available)
func (l *LLMConfig) UseVertexAI() bool {
	return l.GCPProjectID != "" && l.VertexAILocation != ""
}

// DefaultModel returns the configured model for a usage type.
func (l *LLMConfig) DefaultModel(usage UsageType) string {
	switch usage {
	case UsageChat:
		return l.ChatModel
	case UsageTitle:
		return l.TitleModel
	case UsageAutomation:
		return l.AutomationModel
	case UsageArtifact:
		return l.ArtifactModel
	default:
		return ""
	}
}

// StepLimit clamps MaxSteps into the 5..10 range.
func (l *LLMConfig) StepLimit() int {
	switch {
	case l.MaxSteps < 5:
		return 5
	case l.MaxSteps > 10:
		return 10
	default:
		return l.MaxSteps
	}
}

// StorageConfig holds storage (MinIO/S3) configuration
type StorageConfig struct {
	Endpoint        string `env:"S3_ENDPOINT" envDefault:""`
	AccessKeyID     string `env:"S3_ACCESS_KEY" envDefault:""`
	SecretAccessKey string `env:"S3_SECRET_KEY" envDefault:""`
	Bucket          string `env:"S3_BUCKET" envDefault:"testmind"`
	UseSSL          bool   `env:"S3_USE_SSL" envDefault:"false"`
	Region          string `env:"S3_REGION" envDefault:"us-east-1"`
}

// IsConfigured returns true if storage is configured
func (s *StorageConfig) IsConfigured() bool {
	return s.Endpoint != "" && s.AccessKeyID != "" && s.SecretAccessKey != ""
}

// AutomationConfig points at the service that executes automation scripts.
type AutomationConfig struct {
	RunnerURL  string        `env:"AUTOMATION_RUNNER_URL" envDefault:"http://localhost:4100"`
	Timeout    time.Duration `env:"AUTOMATION_RUNNER_TIMEOUT" envDefault:"10m"`
	StaleAfter time.Duration `env:"AUTOMATION_RUN_STALE_AFTER" envDefault:"30m"`
}

// GitLabConfig holds GitLab REST v4 credentials.
type GitLabConfig struct {
	BaseURL    string  `env:"GITLAB_BASE_URL" envDefault:"https://gitlab.com"`
	Token      string  `env:"GITLAB_TOKEN" envDefault:""`
	ProjectID  string  `env:"GITLAB_PROJECT_ID" envDefault:""`
	BaseBranch string  `env:"GITLAB_BASE_BRANCH" envDefault:"main"`
	MaxRetries int     `env:"GITLAB_MAX_RETRIES" envDefault:"3"`
	RateLimit  float64 `env:"GITLAB_RATE_LIMIT" envDefault:"5"`
}

func (g *GitLabConfig) IsConfigured() bool {
	return g.BaseURL != "" && g.Token != "" && g.ProjectID != ""
}

// JiraConfig holds Jira REST v3 credentials.
type JiraConfig struct {
	BaseURL    string  `env:"JIRA_BASE_URL" envDefault:""`
	Email      string  `env:"JIRA_EMAIL" envDefault:""`
	APIToken   string  `env:"JIRA_API_TOKEN" envDefault:""`
	ProjectKey string  `env:"JIRA_PROJECT_KEY" envDefault:""`
	IssueType  string  `env:"JIRA_ISSUE_TYPE" envDefault:"Bug"`
	RateLimit  float64 `env:"JIRA_RATE_LIMIT" envDefault:"5"`
}

func (j *JiraConfig) IsConfigured() bool {
	return j.BaseURL != "" && j.Email != "" && j.APIToken != "" && j.ProjectKey != ""
}

// SchedulerConfig controls the periodic maintenance tasks.
type SchedulerConfig struct {
	Enabled            bool          `env:"SCHEDULER_ENABLED" envDefault:"true"`
	StaleRunSweepEvery time.Duration `env:"SCHEDULER_STALE_RUN_INTERVAL" envDefault:"5m"`
}

// RateLimitConfig bounds chat turns per user.
type RateLimitConfig struct {
	ChatPerMinute float64 `env:"CHAT_RATE_PER_MINUTE" envDefault:"30"`
	ChatBurst     int     `env:"CHAT_RATE_BURST" envDefault:"5"`
}

// OtelConfig holds OpenTelemetry configuration.
// Tracing is disabled when ExporterEndpoint is empty.
type OtelConfig struct {
	ExporterEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	ServiceName      string  `env:"OTEL_SERVICE_NAME" envDefault:"testmind-server"`
	SamplingRate     float64 `env:"OTEL_SAMPLING_RATE" envDefault:"1.0"`
}

// Enabled returns true when an OTLP endpoint is configured.
func (c OtelConfig) Enabled() bool {
	return c.ExporterEndpoint != ""
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// NewConfig loads configuration from environment variables
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.ServerPort),
		slog.String("db_host", cfg.Database.Host),
		slog.Bool("llm_enabled", cfg.LLM.IsEnabled()),
		slog.Bool("storage_enabled", cfg.Storage.IsConfigured()),
		slog.Bool("auth_disabled", cfg.Auth.Disabled),
	)

	return cfg, nil
}
