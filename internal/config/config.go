package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	ListenAddr    string        `env:"LISTEN_ADDR" envDefault:":8080"`
	PublicBaseURL string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	AdminPassword string        `env:"ADMIN_PASSWORD,required,notEmpty"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"12h"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"file"`
	StorePath   string `env:"STORE_PATH" envDefault:"data/events.json"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	WhatsApp WhatsAppConfig `envPrefix:"WHATSAPP_"`
}

// WhatsAppConfig configures the optional WhatsApp check-in bot
type WhatsAppConfig struct {
	Enabled        bool   `env:"ENABLED" envDefault:"false"`
	DataDir        string `env:"DATA_DIR" envDefault:"data"`
	OrganizerPhone string `env:"ORGANIZER_PHONE"`
	CountryCode    string `env:"COUNTRY_CODE" envDefault:"972"`
}

// Store drivers
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// LoadConfig loads configuration from an optional .env file and the environment
func LoadConfig(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the struct tags cannot express
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverFile, DriverSQLite:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want %s or %s)", c.StoreDriver, DriverFile, DriverSQLite)
	}
	if c.StoreDriver == DriverSQLite && c.StorePath == "" {
		return errors.New("STORE_PATH is required for the sqlite driver")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.WhatsApp.Enabled && c.WhatsApp.DataDir == "" {
		return errors.New("WHATSAPP_DATA_DIR is required when WhatsApp is enabled")
	}
	return nil
}
