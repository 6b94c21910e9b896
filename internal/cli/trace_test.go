package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/resultq/internal/harness"
	"github.com/roach88/resultq/internal/journal"
)

// seedJournal runs the passing scenario into a fresh journal file.
func seedJournal(t *testing.T, runID string) string {
	t.Helper()
	dir := t.TempDir()
	scenarioPath := writeFile(t, dir, "passing.yaml", passingScenario)
	dbPath := filepath.Join(dir, "runs.db")

	scenario, err := harness.LoadScenario(scenarioPath)
	require.NoError(t, err)

	st, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	_, err = harness.RunWithOptions(context.Background(), scenario, harness.Options{Journal: st, RunID: runID})
	require.NoError(t, err)
	return dbPath
}

func TestTraceMissingDatabaseFlag(t *testing.T) {
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db")
}

func TestTraceNonExistentDatabase(t *testing.T) {
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", filepath.Join(t.TempDir(), "missing.db")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "journal not found")
}

func TestTraceListRuns(t *testing.T) {
	dbPath := seedJournal(t, "run-1")

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "run-1")
	assert.Contains(t, buf.String(), "passed")
	assert.Contains(t, buf.String(), "passing")
}

func TestTraceListRunsEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st, err := journal.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No runs recorded.")
}

func TestTraceRun(t *testing.T) {
	dbPath := seedJournal(t, "run-1")

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "run-1"})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "Run run-1 (passing): passed")
	assert.Contains(t, out, "enqueue")
	assert.Contains(t, out, "source=local")
	assert.Contains(t, out, `{"content":1,"shape":"value"}`)
}

func TestTraceRunJSON(t *testing.T) {
	dbPath := seedJournal(t, "run-1")

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "run-1", "--queue", "q"})

	require.NoError(t, cmd.Execute())

	var response struct {
		Status string   `json:"status"`
		Data   RunTrace `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "run-1", response.Data.Run.ID)
	require.Len(t, response.Data.Steps, 2)
	assert.Equal(t, "enqueue", response.Data.Steps[0].Op)
	assert.Equal(t, "consume", response.Data.Steps[1].Op)
}

func TestTraceUnknownRun(t *testing.T) {
	dbPath := seedJournal(t, "run-1")

	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath, "nope"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run not found")
}
