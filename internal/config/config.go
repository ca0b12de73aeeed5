package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the process configuration, read from the environment.
type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"liveassist.db"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	Notifiers    []string `env:"NOTIFIERS" envSeparator:"," envDefault:"log"`
	RedisURL     string   `env:"REDIS_URL"`
	RedisStream  string   `env:"REDIS_STREAM" envDefault:"liveassist.events"`
	AMQPURL      string   `env:"AMQP_URL"`
	AMQPExchange string   `env:"AMQP_EXCHANGE" envDefault:"liveassist"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`
	PublicRate   float64       `env:"PUBLIC_RATE" envDefault:"2"`
	PublicBurst  int           `env:"PUBLIC_BURST" envDefault:"10"`
	AgentRate    float64       `env:"AGENT_RATE" envDefault:"10"`
	AgentBurst   int           `env:"AGENT_BURST" envDefault:"40"`

	BootstrapTenant     string `env:"BOOTSTRAP_TENANT"`
	BootstrapSupervisor string `env:"BOOTSTRAP_SUPERVISOR" envDefault:"admin"`
	BootstrapPassword   string `env:"BOOTSTRAP_PASSWORD"`

	TelegramEnabled    bool   `env:"TELEGRAM_ENABLED" envDefault:"false"`
	WhatsAppEnabled    bool   `env:"WHATSAPP_ENABLED" envDefault:"false"`
	WhatsAppDevicesDir string `env:"WHATSAPP_DEVICES_DIR" envDefault:"./devices"`
}

// Load reads .env when present, then parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the configuration from the current environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	for _, n := range c.Notifiers {
		switch strings.TrimSpace(n) {
		case "log", "":
		case "redis":
			if c.RedisURL == "" {
				return fmt.Errorf("REDIS_URL is required for the redis notifier")
			}
		case "amqp":
			if c.AMQPURL == "" {
				return fmt.Errorf("AMQP_URL is required for the amqp notifier")
			}
		default:
			return fmt.Errorf("unknown notifier %q", n)
		}
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	return nil
}

// NotifierEnabled reports whether name is listed in NOTIFIERS.
func (c *Config) NotifierEnabled(name string) bool {
	for _, n := range c.Notifiers {
		if strings.TrimSpace(n) == name {
			return true
		}
	}
	return false
}
