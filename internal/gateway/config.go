package gateway

import (
	"time"

	"github.com/flemzord/chaingate/internal/security"
)

// Defaults for Config.
const (
	defaultBind        = "127.0.0.1:8080"
	defaultMaxBatchOps = 32
)

// Config holds HTTP gateway configuration.
type Config struct {
	Bind            string        `yaml:"bind"`
	Auth            AuthConfig    `yaml:"auth"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RateLimit applies to /mcp and /mcp/batch. Unset limits are off.
	RateLimit security.RateLimitConfig `yaml:"rate_limit"`

	// Payload bounds request bodies.
	Payload security.PayloadLimits `yaml:"payload"`

	// MaxBatchOps caps the operations of one batch.
	MaxBatchOps int `yaml:"max_batch_ops"`

	// MCPStream mounts the MCP streamable HTTP endpoint. Defaults to true.
	MCPStream *bool `yaml:"mcp_stream"`

	// EventBuffer is the per-connection buffer of /ws/events.
	EventBuffer int `yaml:"event_buffer"`
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = defaultBind
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.MaxBatchOps <= 0 {
		c.MaxBatchOps = defaultMaxBatchOps
	}
}

func (c *Config) mcpStream() bool {
	return c.MCPStream == nil || *c.MCPStream
}

// AuthConfig configures authentication for admin endpoints.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`

	// ProtectTools also requires credentials on the tool and agent
	// endpoints. Admin endpoints always require them.
	ProtectTools bool `yaml:"protect_tools"`
}

// IsConfigured returns true if any auth method is configured.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}
