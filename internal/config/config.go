package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                  int    `env:"PORT" envDefault:"8080"`
	RedisURL              string `env:"REDIS_URL,required"`
	DatabaseURL           string `env:"DATABASE_URL"`
	OrganizerTokenSecret  string `env:"ORGANIZER_TOKEN_SECRET,required"`
	TicketServiceURL      string `env:"TICKET_SERVICE_URL,required"`
	TicketTimeoutMS       int    `env:"TICKET_TIMEOUT_MS" envDefault:"3000"`
	ClaimRateLimitPerMin  int    `env:"CLAIM_RATE_LIMIT_PER_MIN" envDefault:"30"`
	AnalyticsBuffer       int    `env:"ANALYTICS_BUFFER" envDefault:"256"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) TicketTimeout() time.Duration {
	return time.Duration(c.TicketTimeoutMS) * time.Millisecond
}

func (c *Config) Validate(isProduction bool) error {
	if isProduction {
		if err := validateSecret("ORGANIZER_TOKEN_SECRET", c.OrganizerTokenSecret); err != nil {
			return err
		}
		if c.DatabaseURL == "" {
			log.Warn().Msg("DATABASE_URL is empty in production: analytics records will only be logged")
		}
	}
	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
