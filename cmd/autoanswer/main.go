// Command autoanswer drives the answer-generation engine against a local
// SQLite database with a simulated job runner.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/questionnaire-autoanswer/pkg/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once the root command has loaded
// configuration.
type app struct {
	cfg    Config
	logger *slog.Logger
	store  *storage.GormStorage

	configPath string
	format     string
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "autoanswer",
		Short: "Generate answers for security questionnaires",
		Long: `Generate answers for security questionnaires.

Configuration is read from --config (YAML), then AUTOANSWER_* environment
variables, then flags. Answers and the job journal are kept in SQLite.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to YAML config file")
	flags.String("db", "", "path to SQLite database")
	flags.String("log-level", "", "log level (debug|info|warn|error)")
	flags.StringP("questionnaire", "q", "", "questionnaire ID")
	flags.StringVar(&a.format, "format", "text", "output format (text|json)")

	cmd.AddCommand(newRunCommand(a))
	cmd.AddCommand(newEditCommand(a))
	cmd.AddCommand(newAnswersCommand(a))
	cmd.AddCommand(newJobsCommand(a))
	cmd.AddCommand(newPurgeCommand(a))

	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.format != "text" && a.format != "json" {
		return fmt.Errorf("invalid format %q: must be text or json", a.format)
	}

	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(&cfg, cmd); err != nil {
		return err
	}
	a.cfg = cfg

	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logger = newLogger(level)
	slog.SetDefault(a.logger)

	a.store, err = openStorage(cmd.Context(), cfg.Database)
	return err
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(cfg *Config, cmd *cobra.Command) error {
	flags := cmd.Flags()
	for name, dst := range map[string]*string{
		"db":            &cfg.Database,
		"log-level":     &cfg.LogLevel,
		"questionnaire": &cfg.QuestionnaireID,
	} {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	return nil
}

func openStorage(ctx context.Context, path string) (*storage.GormStorage, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	store, err := storage.NewGormStorageWithPool(db, storage.WithPoolConfig(storage.SQLitePoolConfig()))
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return store, nil
}
