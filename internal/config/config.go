package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Environment string `env:"ENV" env-default:"development"`
	HTTPAddress string `env:"HTTP_ADDRESS" env-default:":8080"`

	StoreDriver string `env:"STORE_DRIVER" env-default:"postgres"`
	DBDSN       string `env:"DB_DSN"`

	// TimeZone is the zone appointment dates and times are written in.
	TimeZone       string `env:"TIME_ZONE" env-default:"UTC"`
	StrictApproval bool   `env:"STRICT_APPROVAL" env-default:"false"`
	// SweepSchedule is a cron expression for expiring stale pending requests. Empty
	// disables the sweep.
	SweepSchedule string `env:"SWEEP_SCHEDULE"`

	// Audit forwarding is disabled while either value is empty.
	TelegramToken       string `env:"TELEGRAM_TOKEN"`
	TelegramAdminChatID int64  `env:"TELEGRAM_ADMIN_CHAT_ID"`

	CORSOrigins []string `env:"CORS_ORIGINS" env-separator:"," env-default:"*"`

	location *time.Location
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	return LoadFile(".env")
}

func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required for store driver %q", c.StoreDriver)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return fmt.Errorf("load TIME_ZONE %q: %w", c.TimeZone, err)
	}
	c.location = loc

	return nil
}

// Location is the loaded TimeZone.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramAdminChatID != 0
}

func (c *Config) SweepEnabled() bool {
	return c.SweepSchedule != ""
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
