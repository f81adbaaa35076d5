package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jdziat/questionnaire-autoanswer/pkg/core"
	"github.com/jdziat/questionnaire-autoanswer/pkg/engine"
	"github.com/jdziat/questionnaire-autoanswer/pkg/persist"
	"github.com/jdziat/questionnaire-autoanswer/pkg/schedule"
	"github.com/jdziat/questionnaire-autoanswer/pkg/simrunner"
	"github.com/jdziat/questionnaire-autoanswer/pkg/storage"
)

// --- run ---

func newRunCommand(a *app) *cobra.Command {
	var singles []int

	cmd := &cobra.Command{
		Use:   "run <questions.yaml>",
		Short: "Generate answers for every unanswered question",
		Long: `Generate answers for every unanswered question in a questionnaire file.

Stored answers are loaded first, so questions answered in an earlier run are
skipped. With --single the listed questions are answered one at a time in the
given order instead of in one batch.

Examples:
  autoanswer run ./vendor-review.yaml
  autoanswer run ./vendor-review.yaml --single 3,1,4 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args[0], singles)
		},
	}

	cmd.Flags().IntSliceVar(&singles, "single", nil, "answer these question indices one at a time")
	return cmd
}

func (a *app) run(cmd *cobra.Command, path string, singles []int) error {
	ctx := cmd.Context()
	qf, err := loadQuestions(path)
	if err != nil {
		return err
	}
	qid := a.questionnaireID(cmd, qf)

	watchdog, err := schedule.Parse(a.cfg.Watchdog)
	if err != nil {
		return fmt.Errorf("watchdog schedule: %w", err)
	}
	inputs, err := a.store.SeedInputs(ctx, qid, qf.Questions)
	if err != nil {
		return fmt.Errorf("loading stored answers: %w", err)
	}

	runner := simrunner.New(
		simrunner.WithGenerator(qf.generator()),
		simrunner.WithDelay(a.cfg.AnswerDelay),
		simrunner.WithLogger(a.logger),
	)
	defer runner.Close()

	eng := a.newEngine(runner, qid, inputs, engine.WithJobTimeout(a.cfg.JobTimeout), engine.WithWatchdogSchedule(watchdog))
	notices := eng.Events()

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error {
		if err := eng.RunWatchdog(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer stop()
		if err := trigger(runCtx, eng, singles); err != nil {
			return err
		}
		return waitIdle(runCtx, eng, notices, cmd.ErrOrStderr())
	})

	runErr := g.Wait()
	if err := eng.Close(context.Background()); err != nil {
		a.logger.Error("failed to flush answers", "error", err)
		runErr = errors.Join(runErr, err)
	}
	if runErr != nil {
		return runErr
	}
	return printRecords(cmd.OutOrStdout(), a.format, eng.Snapshot())
}

func (a *app) newEngine(runner core.JobRunner, qid string, inputs []core.QuestionInput, opts ...engine.Option) *engine.Engine {
	retry := persist.DefaultRetryConfig()
	retry.MaxAttempts = a.cfg.WriteAttempts
	base := []engine.Option{
		engine.WithQuestionnaireID(qid),
		engine.WithLogger(a.logger),
		engine.WithCoalesceWindow(a.cfg.CoalesceWindow),
		engine.WithWriteRetry(retry),
	}
	return engine.New(runner, a.store, inputs, append(base, opts...)...)
}

// questionnaireID prefers the flag, then the question file, then config.
func (a *app) questionnaireID(cmd *cobra.Command, qf *QuestionFile) string {
	if !cmd.Flags().Changed("questionnaire") && qf.QuestionnaireID != "" {
		return qf.QuestionnaireID
	}
	return a.cfg.QuestionnaireID
}

func trigger(ctx context.Context, eng *engine.Engine, singles []int) error {
	if len(singles) == 0 {
		_, err := eng.TriggerBatch(ctx)
		if errors.Is(err, core.ErrNoUnansweredQuestions) {
			return nil
		}
		return err
	}
	var errs []error
	for _, idx := range singles {
		if err := eng.TriggerSingle(ctx, idx); err != nil {
			errs = append(errs, fmt.Errorf("question %d: %w", idx, err))
		}
	}
	return errors.Join(errs...)
}

// waitIdle reports notices until no job is active and nothing is queued.
func waitIdle(ctx context.Context, eng *engine.Engine, notices <-chan core.Event, out io.Writer) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-notices:
			printNotice(out, ev)
		case <-ticker.C:
			if eng.ActiveJob() == nil && len(eng.QueueState()) == 0 {
				return nil
			}
		}
	}
}

// --- edit ---

func newEditCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <questions.yaml> <index> [answer]",
		Short: "Set or clear one answer by hand",
		Long: `Set or clear one answer by hand. Manual answers are never replaced by
generated ones. Omitting the answer clears it.

Examples:
  autoanswer edit ./vendor-review.yaml 3 "Not applicable"
  autoanswer edit ./vendor-review.yaml 3`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[1])
			}
			text := ""
			if len(args) == 3 {
				text = args[2]
			}
			return a.edit(cmd, args[0], idx, text)
		},
	}
}

func (a *app) edit(cmd *cobra.Command, path string, idx int, text string) error {
	ctx := cmd.Context()
	qf, err := loadQuestions(path)
	if err != nil {
		return err
	}
	qid := a.questionnaireID(cmd, qf)
	inputs, err := a.store.SeedInputs(ctx, qid, qf.Questions)
	if err != nil {
		return fmt.Errorf("loading stored answers: %w", err)
	}

	runner := simrunner.New(simrunner.WithLogger(a.logger))
	defer runner.Close()
	eng := a.newEngine(runner, qid, inputs)

	editErr := eng.EditManually(ctx, idx, text)
	if err := eng.Close(context.Background()); err != nil {
		editErr = errors.Join(editErr, err)
	}
	if editErr != nil {
		return editErr
	}

	rec, _ := eng.Record(idx)
	return printRecords(cmd.OutOrStdout(), a.format, []core.QuestionRecord{rec})
}

// --- answers ---

func newAnswersCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "answers",
		Short: "List stored answers of a questionnaire",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rows, err := a.store.GetAnswers(ctx, a.cfg.QuestionnaireID)
			if err != nil {
				return err
			}
			stats, err := a.store.GetAnswerStats(ctx, a.cfg.QuestionnaireID)
			if err != nil {
				return err
			}
			return printAnswers(cmd.OutOrStdout(), a.format, rows, stats)
		},
	}
}

// --- jobs ---

func newJobsCommand(a *app) *cobra.Command {
	var (
		lifecycle string
		kind      string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List the job journal of a questionnaire",
		Long: `List the job journal of a questionnaire, newest first.

Examples:
  autoanswer jobs
  autoanswer jobs --lifecycle failed --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rows, total, err := a.store.SearchJobs(ctx, storage.JobFilter{
				QuestionnaireID: a.cfg.QuestionnaireID,
				Kind:            core.JobKind(kind),
				Lifecycle:       core.Lifecycle(lifecycle),
				Limit:           limit,
			})
			if err != nil {
				return err
			}
			stats, err := a.store.GetJobStats(ctx, a.cfg.QuestionnaireID)
			if err != nil {
				return err
			}
			return printJobs(cmd.OutOrStdout(), a.format, rows, total, stats)
		},
	}

	cmd.Flags().StringVar(&lifecycle, "lifecycle", "", "only jobs in this lifecycle")
	cmd.Flags().StringVar(&kind, "kind", "", "only jobs of this kind (batch|single)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows to show")
	return cmd
}

// --- purge ---

func newPurgeCommand(a *app) *cobra.Command {
	var lifecycles []string

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete finished jobs from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var total int64
			for _, lc := range lifecycles {
				l := core.Lifecycle(strings.TrimSpace(lc))
				if !l.IsTerminal() {
					return fmt.Errorf("refusing to purge %q jobs: not a terminal lifecycle", lc)
				}
				n, err := a.store.PurgeJobs(cmd.Context(), a.cfg.QuestionnaireID, l)
				if err != nil {
					return err
				}
				total += n
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d jobs\n", total)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&lifecycles, "lifecycle",
		[]string{string(core.LifecycleCompleted), string(core.LifecycleFailed), string(core.LifecycleCanceled)},
		"lifecycles to purge")
	return cmd
}
