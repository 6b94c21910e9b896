package journal

import (
	"context"
	"encoding/json"
	"fmt"
)

// ReadRuns returns all runs in insertion order.
// Returns an empty slice (not nil) if the journal is empty.
func (s *Store) ReadRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario, status, errors
		FROM runs
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows (wrapped) if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scenario, status, errors
		FROM runs
		WHERE id = ?
	`, id)
	return scanRun(row)
}

// ReadSteps returns the steps of a run ordered by seq.
// Returns an empty slice (not nil) if the run has no steps.
func (s *Store) ReadSteps(ctx context.Context, runID string) ([]Step, error) {
	return s.readSteps(ctx, `
		SELECT run_id, seq, queue, op, source, outcome, detail
		FROM steps
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
}

// ReadQueueSteps returns the steps of a run that touched one queue.
func (s *Store) ReadQueueSteps(ctx context.Context, runID, queue string) ([]Step, error) {
	return s.readSteps(ctx, `
		SELECT run_id, seq, queue, op, source, outcome, detail
		FROM steps
		WHERE run_id = ? AND queue = ?
		ORDER BY seq ASC
	`, runID, queue)
}

func (s *Store) readSteps(ctx context.Context, query string, args ...any) ([]Step, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []Step{}
	for rows.Next() {
		var st Step
		if err := rows.Scan(&st.RunID, &st.Seq, &st.Queue, &st.Op, &st.Source, &st.Outcome, &st.Detail); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var errsJSON string
	if err := row.Scan(&run.ID, &run.Scenario, &run.Status, &errsJSON); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if err := json.Unmarshal([]byte(errsJSON), &run.Errors); err != nil {
		return Run{}, fmt.Errorf("decode run errors: %w", err)
	}
	return run, nil
}
