package cli

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/resultq/internal/harness"
	"github.com/roach88/resultq/internal/journal"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter   string // scenario filter (glob pattern on the file name)
	Database string // optional journal path
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	RunID  string   `json:"run_id,omitempty"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenario files",
		Long: `Run every scenario file (.yaml, .yml, .cue) under a directory.

With --db, each run is journaled under a fresh UUIDv7 run ID and can be
inspected afterwards with "resultq trace".

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  resultq test ./scenarios
  resultq test ./scenarios --filter "chained_*"
  resultq test ./scenarios --db ./runs.db --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd.Context(), opts, args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Database, "db", "", "journal runs to this SQLite database")

	return cmd
}

func runTests(ctx context.Context, opts *TestOptions, dir string, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}

	files, err := findScenarioFiles(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	var st *journal.Store
	if opts.Database != "" {
		st, err = journal.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer st.Close()
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	var ids journal.RunIDGenerator = journal.UUIDv7Generator{}

	for _, file := range files {
		var runID string
		if st != nil {
			runID = ids.Generate()
		}
		sr := runScenarioFile(ctx, file, st, runID, opts.Logger)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		if opts.Format != "json" {
			printScenarioResult(w, sr)
		}
	}

	if opts.Format == "json" {
		var cliErr *CLIError
		if result.Failed > 0 {
			cliErr = &CLIError{Code: "E_TEST_FAILED", Message: fmt.Sprintf("%d scenario(s) failed", result.Failed)}
		}
		if err := writeJSON(w, result, cliErr); err != nil {
			return err
		}
	} else {
		if len(files) == 0 {
			fmt.Fprintln(w, "No scenarios found.")
			return nil
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	if opts.Format != "json" {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
	return nil
}

// findScenarioFiles walks dir for scenario files in lexical order.
func findScenarioFiles(dir, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if !isScenarioExt(ext) {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

func isScenarioExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml", ".cue":
		return true
	}
	return false
}

func runScenarioFile(ctx context.Context, file string, st *journal.Store, runID string, logger *slog.Logger) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file), File: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return sr
	}
	sr.Name = scenario.Name

	result, err := harness.RunWithOptions(ctx, scenario, harness.Options{
		Journal: st,
		RunID:   runID,
		Logger:  logger,
	})
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}

	if st != nil {
		sr.RunID = result.RunID
	}
	sr.Pass = result.Pass
	if !result.Pass {
		sr.Errors = result.Errors
	}
	return sr
}

func printScenarioResult(w io.Writer, sr ScenarioResult) {
	if sr.Pass {
		fmt.Fprintf(w, "✓ %s\n", sr.Name)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", sr.Name)
	for _, e := range sr.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
