// /internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var ErrMissingToken = errors.New("DISCORD_TOKEN is not set")

// Config is the process configuration, read from the environment (and .env when present).
type Config struct {
	DiscordToken      string `env:"DISCORD_TOKEN"`
	StoragePath       string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	InitSlashCommands bool   `env:"INIT_SLASH_COMMANDS" envDefault:"true"`
	DeveloperID       string `env:"DEVELOPER_ID"`

	// GuildBlacklist guilds are left as soon as the bot sees them.
	GuildBlacklist []string `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`

	RendererURL     string        `env:"RENDERER_URL" envDefault:"ws://127.0.0.1:7070/ws"`
	RendererToken   string        `env:"RENDERER_TOKEN"`
	JoinSettleDelay time.Duration `env:"JOIN_SETTLE_DELAY" envDefault:"500ms"`
	StatusTimeout   time.Duration `env:"STATUS_TIMEOUT" envDefault:"5s"`

	YouTubeAPIKey string `env:"YOUTUBE_API_KEY"`
	YouTubeProxy  string `env:"YOUTUBE_PROXY"`

	// Spotify client credentials. Without them Spotify links fall back to oEmbed metadata.
	SpotifyID     string `env:"SPOTIFY_ID"`
	SpotifySecret string `env:"SPOTIFY_SECRET"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

// Load reads .env (if any) and parses the environment into a Config.
func Load() (*Config, error) {
	// a missing .env is fine, the system environment is used instead
	_ = godotenv.Load()

	return Parse(os.Environ())
}

// Parse builds a Config from KEY=VALUE pairs without touching the process environment.
func Parse(environ []string) (*Config, error) {
	vars := env.ToMap(environ)

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.DiscordToken == "" {
		return nil, ErrMissingToken
	}
	if cfg.JoinSettleDelay < 0 {
		return nil, fmt.Errorf("JOIN_SETTLE_DELAY must not be negative, got %v", cfg.JoinSettleDelay)
	}
	if cfg.StatusTimeout < 0 {
		return nil, fmt.Errorf("STATUS_TIMEOUT must not be negative, got %v", cfg.StatusTimeout)
	}

	return &cfg, nil
}

// IsDeveloper reports whether userID is the configured developer.
func (c *Config) IsDeveloper(userID string) bool {
	return c.DeveloperID != "" && c.DeveloperID == userID
}
