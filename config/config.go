package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration. The backend reads
// server, database, auth, push and worker_pool; the CLI reads client.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Client     ClientConfig     `yaml:"client"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queue_size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey       string  `yaml:"vapid_public_key"`
	PrivateKey      string  `yaml:"vapid_private_key"`
	Subject         string  `yaml:"subject"`
	TTL             int     `yaml:"ttl"`
	NearTargetDelta float64 `yaml:"near_target_delta"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	// AllowAnonymous lets unauthenticated clients read and write rows that
	// carry no owner.
	AllowAnonymous bool `yaml:"allow_anonymous"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // "sqlite" or "postgres"
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// AuthConfig holds the token session settings.
type AuthConfig struct {
	TokenTTLMinutes int           `yaml:"token_ttl_minutes"`
	TokenTTL        time.Duration `yaml:"-"`
}

// ClientConfig configures the roastctl state engine.
type ClientConfig struct {
	GatewayURL             string        `yaml:"gateway_url"`
	StatePath              string        `yaml:"state_path"`
	SessionPath            string        `yaml:"session_path"`
	AnonymousWrites        bool          `yaml:"anonymous_writes"`
	RequestTimeoutSeconds  int           `yaml:"request_timeout_seconds"`
	RequestTimeout         time.Duration `yaml:"-"`
	SampleIntervalSeconds  int           `yaml:"sample_interval_seconds"`
	SampleInterval         time.Duration `yaml:"-"`
	ElapsedIntervalSeconds int           `yaml:"elapsed_interval_seconds"`
	ElapsedInterval        time.Duration `yaml:"-"`
	NearTargetDelta        float64       `yaml:"near_target_delta"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "roast.db"
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Auth.TokenTTLMinutes <= 0 {
		cfg.Auth.TokenTTLMinutes = 24 * 60
	}
	cfg.Auth.TokenTTL = time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.Push.NearTargetDelta <= 0 {
		cfg.Push.NearTargetDelta = 5
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 100
	}

	c := &cfg.Client
	if c.GatewayURL == "" {
		c.GatewayURL = "http://localhost:8080"
	}
	if c.StatePath == "" {
		c.StatePath = "roast-state.json"
	}
	if c.SessionPath == "" {
		c.SessionPath = "roast-session.json"
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = 10
	}
	c.RequestTimeout = time.Duration(c.RequestTimeoutSeconds) * time.Second
	if c.SampleIntervalSeconds <= 0 {
		c.SampleIntervalSeconds = 3
	}
	c.SampleInterval = time.Duration(c.SampleIntervalSeconds) * time.Second
	if c.ElapsedIntervalSeconds <= 0 {
		c.ElapsedIntervalSeconds = 1
	}
	c.ElapsedInterval = time.Duration(c.ElapsedIntervalSeconds) * time.Second
	if c.NearTargetDelta <= 0 {
		c.NearTargetDelta = 5
	}
}
