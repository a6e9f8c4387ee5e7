// Package config provides recapbot configuration management.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/games"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/news"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/publisher"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/scheduler"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/writer"
	appconfig "github.com/RobinCoderZhao/hoopsrecap/pkg/config"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/llm"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/notify"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/transfer"
)

// DefaultPath is the config file read when --config is not given.
const DefaultPath = "recapbot.yaml"

// News providers.
const (
	NewsAuto          = "auto"
	NewsEventRegistry = "eventregistry"
	NewsRSS           = "rss"
)

// Config is the main configuration for recapbot.
type Config struct {
	LLM      llm.Config          `yaml:"llm"`
	Writer   writer.Options      `yaml:"writer"`
	Stats    games.StatsConfig   `yaml:"stats"`
	News     NewsConfig          `yaml:"news"`
	SFTP     transfer.SFTPConfig `yaml:"sftp"`
	Blog     publisher.Config    `yaml:"blog"`
	Notify   notify.Config       `yaml:"notify"`
	Studio   StudioConfig        `yaml:"studio"`
	Schedule ScheduleConfig      `yaml:"schedule"`

	DBPath string `yaml:"db_path" env:"RECAPBOT_DB"`
	// OutputDir, when set, writes published files locally instead of over SFTP.
	OutputDir string `yaml:"output_dir" env:"RECAPBOT_OUTPUT_DIR"`
}

// NewsConfig selects and tunes the news lookup.
type NewsConfig struct {
	Provider      string                   `yaml:"provider" env:"NEWS_PROVIDER"`
	Limit         int                      `yaml:"limit" env:"NEWS_LIMIT"`
	EventRegistry news.EventRegistryConfig `yaml:"eventregistry"`
	RSS           news.RSSConfig           `yaml:"rss"`
}

// StudioConfig holds settings for the operator web studio.
type StudioConfig struct {
	Addr         string        `yaml:"addr" env:"STUDIO_ADDR"`
	Username     string        `yaml:"username" env:"STUDIO_USERNAME"`
	PasswordHash string        `yaml:"password_hash" env:"STUDIO_PASSWORD_HASH"`
	JWTSecret    string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	SessionTTL   time.Duration `yaml:"session_ttl" env:"STUDIO_SESSION_TTL"`
}

// ScheduleConfig holds settings for `recapbot schedule`.
type ScheduleConfig struct {
	At       string `yaml:"at" env:"RECAPBOT_SCHEDULE_AT"` // HH:MM
	Timezone string `yaml:"timezone" env:"RECAPBOT_TIMEZONE"`
	Publish  bool   `yaml:"publish" env:"RECAPBOT_SCHEDULE_PUBLISH"`
}

// Default returns a Config with sensible defaults. Secrets are left empty.
func Default() Config {
	return Config{
		LLM: llm.Config{
			Provider:    llm.OpenAI,
			Model:       "gpt-4.1",
			Timeout:     120 * time.Second,
			MaxTokens:   2000,
			Temperature: 0.7,
		},
		Writer: writer.Options{MaxTokens: 2000, Temperature: 0.7},
		Stats: games.StatsConfig{
			BaseURL:           games.DefaultStatsURL,
			Timeout:           30 * time.Second,
			RequestsPerSecond: 0.5,
		},
		News: NewsConfig{
			Provider: NewsAuto,
			Limit:    news.DefaultLimit,
			EventRegistry: news.EventRegistryConfig{
				MinRelevance: 100,
				Timeout:      30 * time.Second,
			},
			RSS: news.RSSConfig{
				MinRelevance: 50,
				Timeout:      20 * time.Second,
			},
		},
		SFTP: transfer.SFTPConfig{
			Host:      "localhost",
			Port:      22,
			RemoteDir: "/blog",
			Timeout:   30 * time.Second,
		},
		Blog: publisher.Config{
			Author:     "NBA Recap Desk",
			CoverImage: true,
		},
		Studio: StudioConfig{
			Addr:       ":8080",
			Username:   "admin",
			SessionTTL: 12 * time.Hour,
		},
		Schedule: ScheduleConfig{
			At:       "09:00",
			Timezone: scheduler.DefaultTimezone,
			Publish:  true,
		},
		DBPath: "recapbot.db",
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := appconfig.LoadOrDefault(path, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late in a run. Missing
// secrets are reported by the stage that needs them.
func (c Config) Validate() error {
	var errs []error
	switch c.LLM.Provider {
	case llm.OpenAI, llm.Gemini, llm.Claude:
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider))
	}
	switch c.News.Provider {
	case NewsAuto, NewsEventRegistry, NewsRSS:
	default:
		errs = append(errs, fmt.Errorf("news.provider %q must be auto, eventregistry or rss", c.News.Provider))
	}
	if c.News.Limit < 1 {
		errs = append(errs, errors.New("news.limit must be at least 1"))
	}
	if c.SFTP.Port < 1 || c.SFTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("sftp.port %d is out of range", c.SFTP.Port))
	}
	if _, err := scheduler.DailySpec(c.Schedule.At); err != nil {
		errs = append(errs, fmt.Errorf("schedule.at: %w", err))
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("schedule.timezone: %w", err))
	}
	return errors.Join(errs...)
}

// StudioEnabled reports whether operator login is configured.
func (c Config) StudioEnabled() bool {
	return c.Studio.PasswordHash != "" && c.Studio.JWTSecret != ""
}
