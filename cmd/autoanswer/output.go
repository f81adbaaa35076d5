package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jdziat/questionnaire-autoanswer/pkg/core"
	"github.com/jdziat/questionnaire-autoanswer/pkg/storage"
)

const maxCellWidth = 60

func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxCellWidth {
		return s
	}
	return string(runes[:maxCellWidth-3]) + "..."
}

func answerText(a *string) string {
	if a == nil {
		return "-"
	}
	return truncate(*a)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type recordView struct {
	Index            int              `json:"index"`
	RecordID         string           `json:"recordId"`
	Question         string           `json:"question"`
	Answer           *string          `json:"answer"`
	Sources          []core.SourceRef `json:"sources,omitempty"`
	Status           string           `json:"status"`
	FailedToGenerate bool             `json:"failedToGenerate,omitempty"`
	Unsaved          bool             `json:"unsaved,omitempty"`
}

func printRecords(w io.Writer, format string, records []core.QuestionRecord) error {
	if format == "json" {
		views := make([]recordView, len(records))
		for i, r := range records {
			views[i] = recordView{
				Index:            r.OriginalIndex,
				RecordID:         r.RecordID,
				Question:         r.QuestionText,
				Answer:           r.Answer,
				Sources:          r.Sources,
				Status:           string(r.RecordStatus),
				FailedToGenerate: r.FailedToGenerate,
				Unsaved:          r.Unsaved,
			}
		}
		return writeJSON(w, views)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tRECORD\tSTATUS\tANSWER")
	for _, r := range records {
		status := string(r.RecordStatus)
		switch {
		case r.FailedToGenerate:
			status += " (no answer)"
		case r.Unsaved:
			status += " (unsaved)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.OriginalIndex, r.RecordID, status, answerText(r.Answer))
	}
	return tw.Flush()
}

func printNotice(w io.Writer, ev core.Event) {
	switch ev := ev.(type) {
	case *core.JobTriggered:
		fmt.Fprintf(w, "started %s job %s (%d questions)\n", ev.Job.Kind, ev.Job.ID, len(ev.Job.TargetIndices))
	case *core.JobFinished:
		if ev.Job.Reason != "" {
			fmt.Fprintf(w, "%s job %s %s: %s\n", ev.Job.Kind, ev.Job.ID, ev.Job.Lifecycle, ev.Job.Reason)
			return
		}
		fmt.Fprintf(w, "%s job %s %s\n", ev.Job.Kind, ev.Job.ID, ev.Job.Lifecycle)
	case *core.Warning:
		msg := ev.Message
		if ev.Reason != "" {
			msg += " (" + truncate(ev.Reason) + ")"
		}
		if ev.Index >= 0 {
			fmt.Fprintf(w, "warning: question %d: %s\n", ev.Index, msg)
			return
		}
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
}

func printAnswers(w io.Writer, format string, rows []core.AnswerRecord, stats *storage.AnswerStats) error {
	if format == "json" {
		return writeJSON(w, map[string]any{"answers": rows, "stats": stats})
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tRECORD\tSTATUS\tUPDATED\tANSWER")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			r.OriginalIndex, r.RecordID, r.Status, r.UpdatedAt.Format(time.DateTime), answerText(r.Answer))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d generated, %d manual, %d cleared\n", stats.Generated, stats.Manual, stats.Untouched)
	return nil
}

func printJobs(w io.Writer, format string, rows []*core.JobRecord, total int64, stats *storage.JobStats) error {
	if format == "json" {
		return writeJSON(w, map[string]any{"jobs": rows, "total": total, "stats": stats})
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tLIFECYCLE\tQUESTIONS\tTRIGGERED\tREASON")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.Kind, r.Lifecycle, r.TargetCount, r.TriggeredAt.Format(time.DateTime), truncate(r.Reason))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nshowing %d of %d; %d completed, %d failed, %d canceled, %d active\n",
		len(rows), total, stats.Completed, stats.Failed, stats.Canceled, stats.Active)
	return nil
}
