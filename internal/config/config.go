// /internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const AppName = "jukebox"

func init() {
	err := godotenv.Load()
	if err != nil {
		log.Debug().Msg("No .env file found, falling back to system environment variables")
	}
}

type Config struct {
	DiscordToken   string   `env:"DISCORD_TOKEN"`
	GuildBlacklist []string `env:"GUILD_BLACKLIST" envSeparator:","`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"datastore"`
	StoragePath   string `env:"STORAGE_PATH" envDefault:"datastore.json"`

	YouTubeProxy   string        `env:"YOUTUBE_PROXY"`
	ResolveTimeout time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"45s"`
	NotifyRate     float64       `env:"NOTIFY_RATE" envDefault:"1"`

	QueuePageSize     int `env:"QUEUE_PAGE_SIZE" envDefault:"10"`
	QueueTextLength   int `env:"QUEUE_TEXT_LENGTH" envDefault:"60"`
	ProgressBarLength int `env:"PROGRESS_BAR_LENGTH" envDefault:"40"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

// New reads the bot configuration from the environment.
func New() (*Config, error) {
	cfg, err := NewOffline()
	if err != nil {
		return nil, err
	}
	if cfg.DiscordToken == "" {
		return nil, errors.New("DISCORD_TOKEN is required")
	}
	return cfg, nil
}

// NewOffline reads the configuration without requiring Discord credentials,
// for tools that only touch storage or the resolver.
func NewOffline() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case "datastore", "sqlite":
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.QueuePageSize <= 0 || c.QueueTextLength <= 0 || c.ProgressBarLength <= 0 {
		return fmt.Errorf("queue page size, text length and progress bar length must be positive")
	}
	if c.NotifyRate <= 0 {
		return fmt.Errorf("NOTIFY_RATE must be positive")
	}
	return nil
}

// IsGuildBlacklisted reports whether the bot should leave the guild.
func (c *Config) IsGuildBlacklisted(guildID string) bool {
	return slices.Contains(c.GuildBlacklist, guildID)
}
