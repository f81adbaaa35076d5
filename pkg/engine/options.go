package engine

import (
	"log/slog"
	"time"

	"github.com/jdziat/questionnaire-autoanswer/pkg/persist"
	"github.com/jdziat/questionnaire-autoanswer/pkg/schedule"
)

// DefaultWatchdogInterval is how often the watchdog looks for stuck jobs
// when no schedule is configured.
const DefaultWatchdogInterval = 30 * time.Second

// Option configures an Engine.
type Option interface {
	ApplyEngine(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) ApplyEngine(c *Config) { f(c) }

// Config holds engine configuration.
type Config struct {
	QuestionnaireID string
	Logger          *slog.Logger
	CoalesceWindow  time.Duration
	WriteRetry      persist.RetryConfig
	JobTimeout      time.Duration
	Watchdog        schedule.Schedule
	EventBuffer     int
	Now             func() time.Time
}

// NewConfig returns a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Logger:         slog.Default(),
		CoalesceWindow: persist.DefaultWindow,
		WriteRetry:     persist.DefaultRetryConfig(),
		Watchdog:       schedule.Every(DefaultWatchdogInterval),
		EventBuffer:    100,
		Now:            time.Now,
	}
}

// WithQuestionnaireID stamps every durable write with the questionnaire ID.
func WithQuestionnaireID(id string) Option {
	return optionFunc(func(c *Config) {
		c.QuestionnaireID = id
	})
}

// WithLogger sets the logger for the engine and its components.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	})
}

// WithCoalesceWindow sets how long accepted answers are collected before
// they are written.
func WithCoalesceWindow(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		c.CoalesceWindow = d
	})
}

// WithWriteRetry sets the retry policy for durable writes.
func WithWriteRetry(cfg persist.RetryConfig) Option {
	return optionFunc(func(c *Config) {
		c.WriteRetry = cfg
	})
}

// WithJobTimeout fails a job that has not reached a terminal state this long
// after the runner accepted it. Zero waits indefinitely.
func WithJobTimeout(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		if d < 0 {
			d = 0
		}
		c.JobTimeout = d
	})
}

// WithWatchdogSchedule sets when RunWatchdog checks for stuck jobs.
func WithWatchdogSchedule(s schedule.Schedule) Option {
	return optionFunc(func(c *Config) {
		if s != nil {
			c.Watchdog = s
		}
	})
}

// WithEventBuffer sets the buffer size of each notice subscription.
func WithEventBuffer(n int) Option {
	return optionFunc(func(c *Config) {
		if n > 0 {
			c.EventBuffer = n
		}
	})
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(c *Config) {
		if now != nil {
			c.Now = now
		}
	})
}
