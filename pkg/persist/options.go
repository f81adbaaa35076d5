package persist

import (
	"log/slog"
	"time"

	"github.com/jdziat/questionnaire-autoanswer/pkg/core"
	"github.com/jdziat/questionnaire-autoanswer/pkg/security"
)

// DefaultWindow is the default coalescing window.
const DefaultWindow = 300 * time.Millisecond

// ResultFunc receives the outcome of every queued answer write. err is nil on
// success and a *core.WriteError otherwise.
type ResultFunc func(w core.AnswerWrite, err error)

// Option configures a Writer.
type Option interface {
	ApplyWriter(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) ApplyWriter(c *Config) { f(c) }

// Config holds writer configuration.
type Config struct {
	Window   time.Duration
	Retry    RetryConfig
	Logger   *slog.Logger
	OnResult ResultFunc
}

// NewConfig returns a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Window: DefaultWindow,
		Retry:  DefaultRetryConfig(),
		Logger: slog.Default(),
	}
}

// WithWindow sets how long writes are collected before a flush.
// Values are clamped to [0, security.MaxCoalesceWindow].
func WithWindow(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		c.Window = security.ClampCoalesceWindow(d)
	})
}

// WithRetry sets the retry configuration for storage writes.
func WithRetry(cfg RetryConfig) Option {
	return optionFunc(func(c *Config) {
		cfg.MaxAttempts = security.ClampWriteAttempts(cfg.MaxAttempts)
		c.Retry = cfg
	})
}

// WithRetryAttempts sets the number of write attempts, keeping the default
// backoff.
func WithRetryAttempts(n int) Option {
	return optionFunc(func(c *Config) {
		c.Retry.MaxAttempts = security.ClampWriteAttempts(n)
	})
}

// DisableRetry makes every write a single attempt.
func DisableRetry() Option {
	return optionFunc(func(c *Config) {
		c.Retry.MaxAttempts = 1
	})
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	})
}

// OnResult registers the callback for queued answer writes.
func OnResult(fn ResultFunc) Option {
	return optionFunc(func(c *Config) {
		c.OnResult = fn
	})
}
