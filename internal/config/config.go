package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"5000"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Label Express provider
	LabelAPIKey  string        `envconfig:"LABEL_API_KEY"`
	LabelBaseURL string        `envconfig:"LABEL_BASE_URL" default:"https://api.labelexpress.io"`
	LabelTimeout time.Duration `envconfig:"LABEL_TIMEOUT" default:"30s"`
	LabelUseMock bool          `envconfig:"LABEL_USE_MOCK" default:"false"`

	// Persistence
	PostgresDSN    string `envconfig:"POSTGRES_DSN"`
	UseMemoryStore bool   `envconfig:"USE_MEMORY_STORE" default:"false"`

	// Artifacts
	UploadsDir string `envconfig:"UPLOADS_DIR" default:"./uploads"`

	// Auth
	JWTSecret string        `envconfig:"SECRET_KEY"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"0"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"true"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"labelforge"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if !cfg.UseMemoryStore && cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required unless USE_MEMORY_STORE is set")
	}
	return &cfg, nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("label.use_mock", c.LabelUseMock),
		attribute.Bool("store.memory", c.UseMemoryStore),
	}
}
