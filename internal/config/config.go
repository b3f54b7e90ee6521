package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds service configuration, read from the environment at process
// start. An empty DatabaseURL selects the in-memory store.
type Config struct {
	ServerAddr  string `env:"SERVER_ADDR" envDefault:"0.0.0.0:8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	IdleTimeoutMinutes    int           `env:"IDLE_TIMEOUT_MINUTES" envDefault:"15"`
	OfflineTimeoutMinutes int           `env:"OFFLINE_TIMEOUT_MINUTES" envDefault:"60"`
	SweepInterval         time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`

	JWTAccessSecret  string        `env:"JWT_ACCESS_SECRET,required"`
	JWTRefreshSecret string        `env:"JWT_REFRESH_SECRET,required"`
	JWTAccessTTL     time.Duration `env:"JWT_ACCESS_TTL" envDefault:"15m"`
	JWTRefreshTTL    time.Duration `env:"JWT_REFRESH_TTL" envDefault:"168h"`

	AuditQueueSize int    `env:"AUDIT_QUEUE_SIZE" envDefault:"256"`
	MigrationsDir  string `env:"MIGRATIONS_DIR" envDefault:"internal/migrations"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IdleTimeout is the inactivity window after which a session goes IDLE.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMinutes) * time.Minute
}

// OfflineTimeout is the inactivity window after which a session goes OFFLINE.
func (c *Config) OfflineTimeout() time.Duration {
	return time.Duration(c.OfflineTimeoutMinutes) * time.Minute
}
