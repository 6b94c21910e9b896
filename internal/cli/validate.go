package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/resultq/internal/harness"
)

// FileValidation is the validation result for one scenario file.
type FileValidation struct {
	File     string `json:"file"`
	Scenario string `json:"scenario,omitempty"`
	Valid    bool   `json:"valid"`
	Error    string `json:"error,omitempty"`
}

// ValidationResult holds validation results for every file.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario-file>...",
		Short: "Validate scenario files without running them",
		Long: `Load and validate scenario files.

Checks syntax, unknown fields, queue references and step shape without
executing any query.

Examples:
  resultq validate scenarios/basic.yaml
  resultq validate scenarios/*.yaml scenarios/*.cue --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd.OutOrStdout())
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, files []string, w io.Writer) error {
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("scenario file not found: %s", file), err)
		}
	}

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}
	for _, file := range files {
		fv := FileValidation{File: file, Valid: true}
		scenario, err := harness.LoadScenario(file)
		if err != nil {
			fv.Valid = false
			fv.Error = err.Error()
			result.Valid = false
		} else {
			fv.Scenario = scenario.Name
		}
		result.Files = append(result.Files, fv)
	}

	if opts.Format == "json" {
		var cliErr *CLIError
		if !result.Valid {
			cliErr = &CLIError{Code: "E_INVALID_SCENARIO", Message: "one or more scenario files are invalid"}
		}
		if err := writeJSON(w, result, cliErr); err != nil {
			return err
		}
	} else {
		for _, fv := range result.Files {
			if fv.Valid {
				fmt.Fprintf(w, "✓ %s (%s)\n", fv.File, fv.Scenario)
			} else {
				fmt.Fprintf(w, "✗ %s\n  %s\n", fv.File, fv.Error)
			}
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}
