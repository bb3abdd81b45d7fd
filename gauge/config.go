package gauge

import (
	"fmt"
	"log/slog"
	"time"
)

// Recommended retry settings for the RG-15.
const (
	DefaultMaxAttempts     = 5
	DefaultCleanTimeout    = 500 * time.Millisecond
	DefaultResponseTimeout = time.Second
)

type Config struct {
	transport Transport
	clock     Clock
	logger    *slog.Logger
	observer  Observer
	policy    RetryPolicy
	// cleanSet keeps an explicit zero clean timeout from being defaulted.
	cleanSet bool
}

func (c *Config) setDefaults() {
	if c.clock == nil {
		c.clock = systemClock{}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.policy.MaxAttempts == 0 {
		c.policy.MaxAttempts = DefaultMaxAttempts
	}
	if c.policy.CleanTimeout == 0 && !c.cleanSet {
		c.policy.CleanTimeout = DefaultCleanTimeout
	}
	if c.policy.ResponseTimeout == 0 {
		c.policy.ResponseTimeout = DefaultResponseTimeout
	}
}

// validate checks retry settings only. A missing transport is reported by
// each operation as ErrTransportMissing.
func (c *Config) validate() error {
	if c.policy.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be > 0 (got %d)", ErrInvalidConfig, c.policy.MaxAttempts)
	}
	if c.policy.CleanTimeout < 0 {
		return fmt.Errorf("%w: clean timeout must be >= 0 (got %s)", ErrInvalidConfig, c.policy.CleanTimeout)
	}
	if c.policy.ResponseTimeout <= 0 {
		return fmt.Errorf("%w: response timeout must be > 0 (got %s)", ErrInvalidConfig, c.policy.ResponseTimeout)
	}
	return nil
}

// ConfigBuilder assembles a Config.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithTransport(t Transport) *ConfigBuilder {
	b.config.transport = t
	return b
}

func (b *ConfigBuilder) WithClock(c Clock) *ConfigBuilder {
	b.config.clock = c
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// WithObserver registers o to be told about every finished operation.
func (b *ConfigBuilder) WithObserver(o Observer) *ConfigBuilder {
	b.config.observer = o
	return b
}

// WithRetryPolicy replaces the whole policy. Zero fields get the defaults.
func (b *ConfigBuilder) WithRetryPolicy(p RetryPolicy) *ConfigBuilder {
	b.config.policy = p
	b.config.cleanSet = false
	return b
}

func (b *ConfigBuilder) WithMaxAttempts(n int) *ConfigBuilder {
	b.config.policy.MaxAttempts = n
	return b
}

// WithCleanTimeout sets how long each clean drains the stream. Zero
// disables the clean.
func (b *ConfigBuilder) WithCleanTimeout(d time.Duration) *ConfigBuilder {
	b.config.policy.CleanTimeout = d
	b.config.cleanSet = true
	return b
}

func (b *ConfigBuilder) WithResponseTimeout(d time.Duration) *ConfigBuilder {
	b.config.policy.ResponseTimeout = d
	return b
}

// WithSkipFirstClean makes every operation skip the stream clean before
// its first attempt.
func (b *ConfigBuilder) WithSkipFirstClean(skip bool) *ConfigBuilder {
	b.config.policy.SkipFirstClean = skip
	return b
}

func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	c.setDefaults()
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
