package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/redhat-data-and-ai/hookbot/internal/errors"
	"github.com/redhat-data-and-ai/hookbot/internal/logging"
)

// Config holds application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Messages MessagesConfig `yaml:"messages"`
	Matrix   MatrixConfig   `yaml:"matrix"`
	Database DatabaseConfig `yaml:"database"`
	Tasks    TasksConfig    `yaml:"tasks"`
	GitLab   GitLabConfig   `yaml:"gitlab"`
	LogLevel string         `yaml:"log_level"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        string `yaml:"port"`
	WebhookPath string `yaml:"webhook_path"`
}

// WebhookConfig holds webhook authentication configuration
type WebhookConfig struct {
	Secret string `yaml:"secret"` // shared secret compared against X-Gitlab-Token
}

// MessagesConfig controls how notifications look in the room
type MessagesConfig struct {
	SendAsNotice bool   `yaml:"send_as_notice"`
	TimeFormat   string `yaml:"time_format"` // Go reference-time layout
	HideDetails  bool   `yaml:"hide_details"`
}

// MatrixConfig holds homeserver connection settings
type MatrixConfig struct {
	HomeserverURL         string `yaml:"homeserver_url"`
	UserID                string `yaml:"user_id"`
	AccessToken           string `yaml:"access_token"`
	AutoJoin              bool   `yaml:"autojoin"`
	MaxConcurrentRequests int64  `yaml:"max_concurrent_requests"`
}

// DatabaseConfig selects the message store backend
type DatabaseConfig struct {
	URL          string `yaml:"url"` // empty selects the in-memory store
	CacheMaxCost int64  `yaml:"cache_max_cost"`
}

// TasksConfig bounds background webhook processing
type TasksConfig struct {
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	TaskTimeout     time.Duration `yaml:"task_timeout"`
}

// GitLabConfig is used when registering project hooks
type GitLabConfig struct {
	PublicURL   string `yaml:"public_url"` // externally reachable base URL of this service
	BaseURL     string `yaml:"base_url"`
	Token       string `yaml:"token"`
	InsecureTLS bool   `yaml:"insecure_tls"` // skip certificate verification
	CACertPath  string `yaml:"ca_cert_path"` // PEM bundle for self-signed instances
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "3000",
			WebhookPath: "/webhooks",
		},
		Messages: MessagesConfig{
			SendAsNotice: true,
			TimeFormat:   "Jan 2, 2006 15:04 MST",
		},
		Matrix: MatrixConfig{
			MaxConcurrentRequests: 8,
		},
		Database: DatabaseConfig{
			CacheMaxCost: 10000,
		},
		Tasks: TasksConfig{
			ShutdownTimeout: time.Second,
			TaskTimeout:     5 * time.Minute,
		},
		GitLab: GitLabConfig{
			BaseURL: "https://gitlab.com",
		},
		LogLevel: "info",
	}
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.WebhookPath = getEnv("WEBHOOK_PATH", c.Server.WebhookPath)

	c.Webhook.Secret = getEnv("WEBHOOK_SECRET", c.Webhook.Secret)

	c.Messages.SendAsNotice = getEnvBool("SEND_AS_NOTICE", c.Messages.SendAsNotice)
	c.Messages.TimeFormat = getEnv("TIME_FORMAT", c.Messages.TimeFormat)
	c.Messages.HideDetails = getEnvBool("HIDE_DETAILS", c.Messages.HideDetails)

	c.Matrix.HomeserverURL = strings.TrimRight(getEnv("MATRIX_HOMESERVER_URL", c.Matrix.HomeserverURL), "/")
	c.Matrix.UserID = getEnv("MATRIX_USER_ID", c.Matrix.UserID)
	c.Matrix.AccessToken = getEnv("MATRIX_ACCESS_TOKEN", c.Matrix.AccessToken)
	c.Matrix.AutoJoin = getEnvBool("MATRIX_AUTOJOIN", c.Matrix.AutoJoin)
	c.Matrix.MaxConcurrentRequests = getEnvInt("MATRIX_MAX_CONCURRENT_REQUESTS", c.Matrix.MaxConcurrentRequests)

	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Database.CacheMaxCost = getEnvInt("STORE_CACHE_MAX_COST", c.Database.CacheMaxCost)

	c.Tasks.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.Tasks.ShutdownTimeout)
	c.Tasks.TaskTimeout = getEnvDuration("TASK_TIMEOUT", c.Tasks.TaskTimeout)

	c.GitLab.PublicURL = strings.TrimRight(getEnv("PUBLIC_URL", c.GitLab.PublicURL), "/")
	c.GitLab.BaseURL = strings.TrimRight(getEnv("GITLAB_BASE_URL", c.GitLab.BaseURL), "/")
	c.GitLab.Token = getEnv("GITLAB_TOKEN", c.GitLab.Token)
	c.GitLab.InsecureTLS = getEnvBool("GITLAB_INSECURE_TLS", c.GitLab.InsecureTLS)
	c.GitLab.CACertPath = getEnv("GITLAB_CA_CERT_PATH", c.GitLab.CACertPath)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Validate checks the settings needed to serve webhooks
func (c *Config) Validate() error {
	v := apperrors.NewValidator()
	v.RequiredField("webhook.secret", c.Webhook.Secret)
	v.RequiredField("matrix.homeserver_url", c.Matrix.HomeserverURL)
	v.RequiredField("matrix.access_token", c.Matrix.AccessToken)
	if !strings.HasPrefix(c.Server.WebhookPath, "/") {
		v.AddError("server.webhook_path", "format", "Must start with /", c.Server.WebhookPath)
	}
	if c.Matrix.MaxConcurrentRequests < 1 {
		v.AddError("matrix.max_concurrent_requests", "range", "Must be at least 1", c.Matrix.MaxConcurrentRequests)
	}
	if appErr := v.ToAppErrorWithCode(apperrors.ErrConfigurationError, "Invalid configuration"); appErr != nil {
		return appErr
	}
	return nil
}

// ValidateHookRegistration checks the settings needed by hook add
func (c *Config) ValidateHookRegistration() error {
	v := apperrors.NewValidator()
	v.RequiredField("gitlab.public_url", c.GitLab.PublicURL)
	v.RequiredField("gitlab.base_url", c.GitLab.BaseURL)
	v.RequiredField("gitlab.token", c.GitLab.Token)
	if !c.UsesDatabase() {
		v.AddError("database.url", "required", "Webhook bindings need a database", "")
	}
	if appErr := v.ToAppErrorWithCode(apperrors.ErrConfigurationError, "Invalid hook registration configuration"); appErr != nil {
		return appErr
	}
	return nil
}

// HasWebhookSecret returns true if webhook secret is configured
func (c *Config) HasWebhookSecret() bool {
	return c.Webhook.Secret != ""
}

// UsesDatabase returns true when message identities are persisted in Postgres
func (c *Config) UsesDatabase() bool {
	return c.Database.URL != ""
}

// StoreBackend describes the configured message store
func (c *Config) StoreBackend() string {
	if c.UsesDatabase() {
		return "postgres"
	}
	return "memory"
}

// WebhookURL is the address GitLab should post hooks to
func (c *Config) WebhookURL() string {
	if c.GitLab.PublicURL == "" {
		return ""
	}
	return c.GitLab.PublicURL + c.Server.WebhookPath
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Ignoring invalid boolean %s=%q", key, value)
		return defaultValue
	}
	return b
}

func getEnvInt(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logging.Warn("Ignoring invalid integer %s=%q", key, value)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Ignoring invalid duration %s=%q", key, value)
		return defaultValue
	}
	return d
}
