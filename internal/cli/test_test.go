package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/resultq/internal/journal"
)

const passingScenario = `
name: passing
description: "Enqueue and consume one value"
queues:
  - name: q
steps:
  - queue: q
    success: { value: 1 }
  - queue: q
    query: {}
    expect: { value: 1 }
`

const failingScenario = `
name: failing
description: "Expects the wrong value"
queues:
  - name: q
steps:
  - queue: q
    success: { value: 1 }
  - queue: q
    query: {}
    expect: { value: 2 }
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestTestCommandMissingArgs(t *testing.T) {
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"/nonexistent/scenarios"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	require.NoError(t, cmd.Execute())

	var response CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandPassing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "passing.yaml", passingScenario)

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ passing")
	assert.Contains(t, buf.String(), "1 passed, 0 failed, 1 total")
	assert.Contains(t, buf.String(), "All scenarios passed")
}

func TestTestCommandFailing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", passingScenario)
	writeFile(t, dir, "b.yaml", failingScenario)

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ failing")
	assert.Contains(t, buf.String(), "value = 1, expected 2")
	assert.Contains(t, buf.String(), "1 passed, 1 failed, 2 total")
}

func TestTestCommandLoadErrorFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\n")

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "✗ broken.yaml")
	assert.Contains(t, buf.String(), "failed to load scenario")
}

func TestTestCommandJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", failingScenario)

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)

	var response struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "error", response.Status)
	assert.Equal(t, "E_TEST_FAILED", response.Error.Code)
	require.Len(t, response.Data.Scenarios, 1)
	assert.False(t, response.Data.Scenarios[0].Pass)
	assert.Equal(t, 1, response.Data.Failed)
}

func TestTestCommandJournal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "scenarios/a.yaml", passingScenario)
	writeFile(t, dir, "scenarios/b.yaml", failingScenario)
	dbPath := filepath.Join(dir, "runs.db")

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join(dir, "scenarios"), "--db", dbPath})
	require.Error(t, cmd.Execute())

	var response struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	require.Len(t, response.Data.Scenarios, 2)

	st, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	for _, sr := range response.Data.Scenarios {
		id, err := uuid.Parse(sr.RunID)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), id.Version())

		run, err := st.ReadRun(ctx, sr.RunID)
		require.NoError(t, err)
		assert.Equal(t, sr.Name, run.Scenario)
	}

	runs, err := st.ReadRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, journal.StatusPassed, runs[0].Status)
	assert.Equal(t, journal.StatusFailed, runs[1].Status)
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "")
	writeFile(t, dir, "b.yml", "")
	writeFile(t, dir, "c.cue", "")
	writeFile(t, dir, "notes.txt", "")
	writeFile(t, dir, "nested/d.yaml", "")

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yaml"),
		filepath.Join(dir, "b.yml"),
		filepath.Join(dir, "c.cue"),
		filepath.Join(dir, "nested", "d.yaml"),
	}, files)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "chained_a.yaml", "")
	writeFile(t, dir, "chained_b.cue", "")
	writeFile(t, dir, "basic.yaml", "")

	files, err := findScenarioFiles(dir, "chained_*")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = findScenarioFiles(dir, "[")
	assert.Error(t, err)
}
