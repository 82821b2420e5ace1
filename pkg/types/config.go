package types

import "time"

// Config is the merged application configuration.
type Config struct {
	Schema       string                 `json:"$schema,omitempty"`
	DefaultAgent string                 `json:"defaultAgent,omitempty"`
	Agent        map[string]AgentConfig `json:"agent,omitempty"`
	Storage      *StorageConfig         `json:"storage,omitempty"`
	Timeout      *TimeoutConfig         `json:"timeout,omitempty"`
	Server       *ServerConfig          `json:"server,omitempty"`
	Log          *LogConfig             `json:"log,omitempty"`
}

// AgentConfig describes one chat agent: where its backend lives and how its
// conversations are stored.
type AgentConfig struct {
	// Endpoint is the backend URL chat requests are posted to.
	Endpoint string `json:"endpoint,omitempty"`
	// Namespace prefixes the agent's storage keys. Defaults to the agent id.
	Namespace string `json:"namespace,omitempty"`
	// Source is reported to the backend in request metadata.
	Source string `json:"source,omitempty"`
	// Welcome seeds every new session.
	Welcome string `json:"welcome,omitempty"`
	// Title is the fallback session title.
	Title   string            `json:"title,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// StorageConfig selects the durable store.
type StorageConfig struct {
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"`
}

// TimeoutConfig holds duration strings such as "30s".
type TimeoutConfig struct {
	Connect   string `json:"connect,omitempty"`
	FirstByte string `json:"firstByte,omitempty"`
}

// ServerConfig configures the local HTTP API.
type ServerConfig struct {
	Port int   `json:"port,omitempty"`
	CORS *bool `json:"cors,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `json:"level,omitempty"`
	Pretty bool   `json:"pretty,omitempty"`
	File   bool   `json:"file,omitempty"`
}

// Default timeouts.
const (
	DefaultConnectTimeout   = 30 * time.Second
	DefaultFirstByteTimeout = 60 * time.Second
)

// ConnectTimeout returns the configured connect timeout.
func (c *Config) ConnectTimeout() time.Duration {
	if c.Timeout == nil {
		return DefaultConnectTimeout
	}
	return parseDuration(c.Timeout.Connect, DefaultConnectTimeout)
}

// FirstByteTimeout returns the configured first-byte timeout.
func (c *Config) FirstByteTimeout() time.Duration {
	if c.Timeout == nil {
		return DefaultFirstByteTimeout
	}
	return parseDuration(c.Timeout.FirstByte, DefaultFirstByteTimeout)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
