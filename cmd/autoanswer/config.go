package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jdziat/questionnaire-autoanswer/pkg/core"
	"github.com/jdziat/questionnaire-autoanswer/pkg/simrunner"
)

// Config is the CLI configuration. Values are layered: defaults, then the
// YAML file, then AUTOANSWER_* environment variables, then command flags.
type Config struct {
	Database        string        `yaml:"database"`
	LogLevel        string        `yaml:"log_level"`
	QuestionnaireID string        `yaml:"questionnaire_id"`
	CoalesceWindow  time.Duration `yaml:"coalesce_window"`
	WriteAttempts   int           `yaml:"write_attempts"`
	JobTimeout      time.Duration `yaml:"job_timeout"`
	Watchdog        string        `yaml:"watchdog"`
	AnswerDelay     time.Duration `yaml:"answer_delay"`
}

func defaults() Config {
	return Config{
		Database:        "autoanswer.db",
		LogLevel:        "info",
		QuestionnaireID: "default",
		CoalesceWindow:  300 * time.Millisecond,
		WriteAttempts:   5,
		JobTimeout:      10 * time.Minute,
		Watchdog:        "30s",
		AnswerDelay:     200 * time.Millisecond,
	}
}

// loadConfig reads path over the defaults and applies environment
// overrides. An empty path skips the file.
func loadConfig(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type envVar struct {
	name  string
	apply func(*Config, string) error
}

var envVars = []envVar{
	{"AUTOANSWER_DATABASE", func(c *Config, v string) error { c.Database = v; return nil }},
	{"AUTOANSWER_LOG_LEVEL", func(c *Config, v string) error { c.LogLevel = v; return nil }},
	{"AUTOANSWER_QUESTIONNAIRE_ID", func(c *Config, v string) error { c.QuestionnaireID = v; return nil }},
	{"AUTOANSWER_COALESCE_WINDOW", func(c *Config, v string) error { return parseDuration(&c.CoalesceWindow, v) }},
	{"AUTOANSWER_WRITE_ATTEMPTS", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.WriteAttempts = n
		return nil
	}},
	{"AUTOANSWER_JOB_TIMEOUT", func(c *Config, v string) error { return parseDuration(&c.JobTimeout, v) }},
	{"AUTOANSWER_WATCHDOG", func(c *Config, v string) error { c.Watchdog = v; return nil }},
	{"AUTOANSWER_ANSWER_DELAY", func(c *Config, v string) error { return parseDuration(&c.AnswerDelay, v) }},
}

func applyEnvOverrides(cfg *Config) error {
	var errs []error
	for _, ev := range envVars {
		raw := os.Getenv(ev.name)
		if raw == "" {
			continue
		}
		if err := ev.apply(cfg, raw); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", ev.name, raw, err))
		}
	}
	return errors.Join(errs...)
}

func parseDuration(dst *time.Duration, raw string) error {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// QuestionFile is a questionnaire on disk: the questions plus canned answers
// for the simulated runner.
type QuestionFile struct {
	QuestionnaireID string               `yaml:"questionnaire_id"`
	Questions       []core.QuestionInput `yaml:"questions"`
	Answers         map[string]string    `yaml:"answers"`
	Rules           []simrunner.Rule     `yaml:"rules"`
}

func loadQuestions(path string) (*QuestionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading questions: %w", err)
	}
	var qf QuestionFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing questions %s: %w", path, err)
	}
	if len(qf.Questions) == 0 {
		return nil, fmt.Errorf("questions %s: no questions", path)
	}
	return &qf, nil
}

// generator answers from the per-record table first and falls back to the
// keyword rules.
func (qf *QuestionFile) generator() simrunner.Generator {
	byID := simrunner.ByRecordID(qf.Answers)
	byKeyword := simrunner.Keyword(qf.Rules)
	return func(q core.Question) (*string, []core.SourceRef) {
		if a, sources := byID(q); a != nil {
			return a, sources
		}
		return byKeyword(q)
	}
}
