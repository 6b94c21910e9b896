package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/resultq/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Queue    string // optional - filter steps to one queue
}

// RunTrace is the trace output for a single run.
type RunTrace struct {
	Run   journal.Run    `json:"run"`
	Steps []journal.Step `json:"steps"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Inspect journaled runs",
		Long: `List the runs in a journal, or show the steps of one run.

Examples:
  resultq trace --db ./runs.db
  resultq trace --db ./runs.db 01926f3e-...
  resultq trace --db ./runs.db 01926f3e-... --queue users --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runTrace(ctx, opts, runID, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the journal database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Queue, "queue", "", "only show steps for this queue")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, runID string, w io.Writer) error {
	// journal.Open would create a missing file.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", opts.Database), err)
	}

	st, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	if runID == "" {
		return listRuns(ctx, opts, st, w)
	}

	run, err := st.ReadRun(ctx, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", runID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	var steps []journal.Step
	if opts.Queue != "" {
		steps, err = st.ReadQueueSteps(ctx, runID, opts.Queue)
	} else {
		steps, err = st.ReadSteps(ctx, runID)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read steps", err)
	}
	if steps == nil {
		steps = []journal.Step{}
	}

	if opts.Format == "json" {
		return writeJSON(w, RunTrace{Run: run, Steps: steps}, nil)
	}

	fmt.Fprintf(w, "Run %s (%s): %s\n", run.ID, run.Scenario, run.Status)
	for _, e := range run.Errors {
		fmt.Fprintf(w, "  ! %s\n", e)
	}
	fmt.Fprintln(w)
	for _, s := range steps {
		fmt.Fprintf(w, "[%d] %-12s %-8s", s.Seq, s.Queue, s.Op)
		if s.Source != "" {
			fmt.Fprintf(w, " source=%s", s.Source)
		}
		if s.Outcome != "" {
			fmt.Fprintf(w, " outcome=%s", s.Outcome)
		}
		if s.Detail != "" && s.Detail != "{}" {
			fmt.Fprintf(w, " %s", s.Detail)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func listRuns(ctx context.Context, opts *TraceOptions, st *journal.Store, w io.Writer) error {
	runs, err := st.ReadRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read runs", err)
	}

	if opts.Format == "json" {
		return writeJSON(w, runs, nil)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-7s  %s\n", r.ID, r.Status, r.Scenario)
	}
	return nil
}
