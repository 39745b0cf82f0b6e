package toolclient

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

const (
	// DefaultTimeout bounds each individual attempt.
	DefaultTimeout = 5 * time.Second
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 2
)

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Config captures the construction-time options of a Client. It is immutable
// after the client is built; per-call endpoint overrides never mutate it.
//
// When BaseURL is empty and no per-call override is supplied, calls are
// served by the in-process mock responder instead of the network.
type Config struct {
	BaseURL    string        `env:"TOOLBRIDGE_AGENT_URL" validate:"omitempty,url"`
	Timeout    time.Duration `env:"TOOLBRIDGE_CALL_TIMEOUT" envDefault:"5s" validate:"gt=0"`
	MaxRetries int           `env:"TOOLBRIDGE_MAX_RETRIES" envDefault:"2" validate:"gte=0"`
}

// DefaultConfig returns a Config with the stock timeout and retry budget and
// no remote endpoint, forcing mock mode.
func DefaultConfig() Config {
	return Config{
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
	}
}

// ConfigFromEnv builds a Config from TOOLBRIDGE_* environment variables,
// falling back to the documented defaults for unset values.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse toolclient env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the config invariants: a positive per-attempt timeout, a
// non-negative retry budget, and a well-formed base URL when one is set.
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid toolclient config: %w", err)
	}
	return nil
}
