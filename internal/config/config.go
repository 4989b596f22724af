// Package config loads the radar-loop settings
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultTimeAPIURL is the timeapi.io endpoint returning the current time of a zone
const DefaultTimeAPIURL = "https://timeapi.io/api/Time/current/zone"

// Config holds every setting of the radar-loop commands
type Config struct {
	ListenAddr       string `toml:"listen_addr"`
	DBPath           string `toml:"db_path"`
	TimeZone         string `toml:"time_zone"`
	TimeAPIURL       string `toml:"time_api_url"`
	TimeSyncSeconds  int    `toml:"time_sync_seconds"`
	RefreshSchedule  string `toml:"refresh_schedule"`
	PreloadWorkers   int    `toml:"preload_workers"`
	Preload          bool   `toml:"preload"`
	TelegramBotToken string `toml:"-"`
	OpenAIAPIKey     string `toml:"-"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		ListenAddr:      ":8080",
		DBPath:          "data/radar.db",
		TimeZone:        "Asia/Seoul",
		TimeAPIURL:      DefaultTimeAPIURL,
		TimeSyncSeconds: 10,
		RefreshSchedule: "@every 5m",
		PreloadWorkers:  4,
		Preload:         true,
	}
}

// Load builds the configuration from defaults, the optional TOML file at path,
// a .env file in the working directory and the environment, in that order.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("failed to read .env: %w", err)
	}

	overrideString(&cfg.ListenAddr, "RADAR_LISTEN_ADDR")
	overrideString(&cfg.DBPath, "RADAR_DB_PATH")
	overrideString(&cfg.TimeZone, "RADAR_TIME_ZONE")
	overrideString(&cfg.TimeAPIURL, "RADAR_TIME_API_URL")
	overrideString(&cfg.RefreshSchedule, "RADAR_REFRESH_SCHEDULE")
	overrideString(&cfg.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	overrideString(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	if err := overrideInt(&cfg.TimeSyncSeconds, "RADAR_TIME_SYNC_SECONDS"); err != nil {
		return cfg, err
	}
	if err := overrideInt(&cfg.PreloadWorkers, "RADAR_PRELOAD_WORKERS"); err != nil {
		return cfg, err
	}
	if v := os.Getenv("RADAR_PRELOAD"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid RADAR_PRELOAD %q: %w", v, err)
		}
		cfg.Preload = b
	}

	if _, err := cfg.Location(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Location resolves the configured time zone
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// TimeSyncTimeout is the longest the time service is retried before falling back
func (c Config) TimeSyncTimeout() time.Duration {
	return time.Duration(c.TimeSyncSeconds) * time.Second
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}
