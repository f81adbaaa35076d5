package simrunner

import (
	"log/slog"
	"time"
)

// Option configures a Runner.
type Option interface {
	ApplyRunner(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) ApplyRunner(c *Config) { f(c) }

// Config holds runner configuration.
type Config struct {
	Generator Generator
	Delay     time.Duration
	Buffer    int
	Logger    *slog.Logger
}

// NewConfig returns a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Buffer: 256,
		Logger: slog.Default(),
	}
}

// WithGenerator makes every started job answer its own questions.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *Config) {
		c.Generator = g
	})
}

// WithDelay sets the pause before each generated answer.
func WithDelay(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		c.Delay = d
	})
}

// WithBuffer sets the per-job feed buffer size.
func WithBuffer(n int) Option {
	return optionFunc(func(c *Config) {
		if n > 0 {
			c.Buffer = n
		}
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
