package journal

import (
	"context"
	"encoding/json"
	"fmt"
)

// Run status values.
const (
	StatusRunning = "running"
	StatusPassed  = "passed"
	StatusFailed  = "failed"
)

// Run is one harness execution of a scenario.
type Run struct {
	ID       string   `json:"id"`
	Scenario string   `json:"scenario"`
	Status   string   `json:"status"`
	Errors   []string `json:"errors"`
}

// Step is one trace event within a run.
type Step struct {
	RunID   string `json:"run_id"`
	Seq     int64  `json:"seq"`
	Queue   string `json:"queue"`
	Op      string `json:"op"`
	Source  string `json:"source,omitempty"`
	Outcome string `json:"outcome,omitempty"`

	// Detail is canonical JSON describing the event payload.
	Detail string `json:"detail"`
}

// BeginRun records a new run in the running state.
// Uses ON CONFLICT(id) DO NOTHING so re-opening a run is harmless.
func (s *Store) BeginRun(ctx context.Context, id, scenario string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, status)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, scenario, StatusRunning)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun marks a run passed or failed and stores its error messages.
func (s *Store) FinishRun(ctx context.Context, id string, pass bool, errs []string) error {
	if errs == nil {
		errs = []string{}
	}
	errsJSON, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	status := StatusFailed
	if pass {
		status = StatusPassed
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, errors = ? WHERE id = ?
	`, status, string(errsJSON), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run: unknown run %q", id)
	}
	return nil
}

// WriteStep inserts a step. Duplicate (run_id, seq) pairs are ignored.
// The run must already exist (foreign key constraint).
func (s *Store) WriteStep(ctx context.Context, step Step) error {
	detail := step.Detail
	if detail == "" {
		detail = "{}"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO steps (run_id, seq, queue, op, source, outcome, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		step.RunID,
		step.Seq,
		step.Queue,
		step.Op,
		step.Source,
		step.Outcome,
		detail,
	)
	if err != nil {
		return fmt.Errorf("write step: %w", err)
	}
	return nil
}
