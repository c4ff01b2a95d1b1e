package config

import (
	"time"

	"github.com/filmbot/letterboxd-bot/internal/discord"
	"github.com/filmbot/letterboxd-bot/internal/letterboxd"
	"github.com/filmbot/letterboxd-bot/internal/scheduler"
	"github.com/filmbot/letterboxd-bot/pkg/redis"
)

// Config holds the full runtime configuration for the bot.
type Config struct {
	AppEnv string `mapstructure:"-"`

	Log        Log               `mapstructure:"log"`
	Server     Server            `mapstructure:"server"`
	Sentry     Sentry            `mapstructure:"sentry"`
	Discord    discord.Config    `mapstructure:"discord" validate:"required"`
	Redis      redis.Config      `mapstructure:"redis" validate:"required"`
	Letterboxd letterboxd.Config `mapstructure:"letterboxd"`
	Poller     scheduler.Config  `mapstructure:"poller"`
	Dedup      Dedup             `mapstructure:"dedup"`
}

// Log configures the slog output.
type Log struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"`
	// File enables rotated file output when set.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Server configures the health/metrics HTTP endpoint.
type Server struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Sentry configures optional error forwarding.
type Sentry struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn" validate:"required_if=Enabled true"`
}

// Dedup configures the delivered-item marker cache.
type Dedup struct {
	TTL time.Duration `mapstructure:"ttl"`
}
