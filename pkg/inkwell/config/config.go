package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DevJWTSecret is the development fallback; Validate rejects it in production
const DevJWTSecret = "inkwell-dev-secret-change-in-production"

// DefaultAdminPassword seeds the first admin in development; Validate rejects
// it elsewhere
const DefaultAdminPassword = "changeme"

// MinJWTSecretLength is the shortest secret accepted outside development
const MinJWTSecretLength = 32

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath   string `env:"INKWELL_DB_PATH" envDefault:"inkwell.db"`
	Port     int    `env:"PORT" envDefault:"8080"`
	Env      string `env:"INKWELL_ENV" envDefault:"development"`
	LogLevel string `env:"INKWELL_LOG_LEVEL" envDefault:"info"`

	// Tokens
	JWTSecret string        `env:"JWT_SECRET" envDefault:"inkwell-dev-secret-change-in-production"`
	TokenTTL  time.Duration `env:"INKWELL_TOKEN_TTL" envDefault:"24h"`

	// Likes ledger: a JSON file unless a Redis URL is configured
	LikesFile   string `env:"INKWELL_LIKES_FILE" envDefault:"data/likes.json"`
	RedisURL    string `env:"INKWELL_REDIS_URL"`
	RedisPrefix string `env:"INKWELL_REDIS_PREFIX" envDefault:"inkwell:"`

	StatsTopN int `env:"INKWELL_STATS_TOP_N" envDefault:"10"`

	// Bootstrap account created when no privileged user exists
	AdminEmail    string `env:"INKWELL_ADMIN_EMAIL" envDefault:"admin@inkwell.local"`
	AdminPassword string `env:"INKWELL_ADMIN_PASSWORD" envDefault:"changeme"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the listen address
func (c Config) ServerAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// UseRedisLikes returns true if the likes ledger should live in Redis
func (c Config) UseRedisLikes() bool {
	return c.RedisURL != ""
}

// Load reads an optional .env file, then parses environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("INKWELL_DB_PATH is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("INKWELL_TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.StatsTopN <= 0 {
		return fmt.Errorf("INKWELL_STATS_TOP_N must be positive, got %d", c.StatsTopN)
	}
	if !c.IsDevelopment() {
		if c.JWTSecret == DevJWTSecret {
			return errors.New("JWT_SECRET is the development default and must not be used outside development")
		}
		if len(c.JWTSecret) < MinJWTSecretLength {
			return fmt.Errorf("JWT_SECRET must be at least %d bytes long, got %d bytes",
				MinJWTSecretLength, len(c.JWTSecret))
		}
		if c.AdminPassword == DefaultAdminPassword {
			return errors.New("INKWELL_ADMIN_PASSWORD is the default and must be set outside development")
		}
	}
	return nil
}
