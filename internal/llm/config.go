package llm

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"visionqa-gateway/internal/httpx"
)

// DefaultAPIVersion is the Azure OpenAI data-plane version used when none
// is configured.
const DefaultAPIVersion = "2024-12-01-preview"

// Config points the client at one Azure OpenAI deployment.
type Config struct {
	Endpoint   string // https://<resource>.openai.azure.com
	APIKey     string
	Deployment string // e.g. gpt-35-turbo
	APIVersion string

	HTTP httpx.Config
}

// Validate checks required fields only.
func (c Config) Validate() error {
	var missing []string
	if c.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if c.APIKey == "" {
		missing = append(missing, "api key")
	}
	if c.Deployment == "" {
		missing = append(missing, "deployment")
	}
	if len(missing) > 0 {
		return fmt.Errorf("llm: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// WithDefaults fills the API version and a completion-sized HTTP timeout.
func (c Config) WithDefaults() Config {
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = 60 * time.Second
	}
	return c
}

type client struct {
	cfg    Config
	http   *httpx.Client
	logger *zap.Logger
}

// NewClient creates a new completion client with the given configuration.
func NewClient(cfg Config, logger *zap.Logger) (Client, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("llm")

	return &client{
		cfg:    cfg,
		http:   httpx.New(cfg.HTTP, logger),
		logger: logger,
	}, nil
}

// Close releases resources held by the client.
func (c *client) Close() error {
	return c.http.Close()
}
