package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestStore creates a new file-backed journal for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	for _, table := range []string{"runs", "steps"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		assert.NoError(t, err, "table %q missing", table)
	}
}

func TestOpen_PragmasAndVersion(t *testing.T) {
	s := createTestStore(t)

	mode, err := s.pragma("journal_mode")
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)

	fk, err := s.pragma("foreign_keys")
	require.NoError(t, err)
	assert.Equal(t, "1", fk)

	version, err := s.pragma("user_version")
	require.NoError(t, err)
	assert.Equal(t, "1", version)

	var idx string
	err = s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_steps_queue'",
	).Scan(&idx)
	assert.NoError(t, err)
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.BeginRun(ctx, "run-1", "memory"))
	runs, err := s.ReadRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunLifecycle(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BeginRun(ctx, "run-1", "delegation"))
	require.NoError(t, s.BeginRun(ctx, "run-1", "delegation"), "BeginRun should be idempotent")

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, run.Status)
	assert.Empty(t, run.Errors)

	require.NoError(t, s.FinishRun(ctx, "run-1", false, []string{"step 2: mismatch"}))

	run, err = s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, []string{"step 2: mismatch"}, run.Errors)

	require.NoError(t, s.FinishRun(ctx, "run-1", true, nil))
	run, err = s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, run.Status)
	assert.Equal(t, []string{}, run.Errors)
}

func TestFinishRun_UnknownRun(t *testing.T) {
	s := createTestStore(t)
	err := s.FinishRun(context.Background(), "missing", true, nil)
	assert.Error(t, err)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadRun(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestReadRuns_InsertionOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty, err := s.ReadRuns(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.BeginRun(ctx, id, "scenario-"+id))
	}

	runs, err := s.ReadRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "a", runs[1].ID)
	assert.Equal(t, "b", runs[2].ID)
}

func TestWriteStep(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.BeginRun(ctx, "run-1", "steps"))

	steps := []Step{
		{RunID: "run-1", Seq: 2, Queue: "child", Op: "query", Source: "parent"},
		{RunID: "run-1", Seq: 1, Queue: "parent", Op: "enqueue", Outcome: "success", Detail: `{"content":"v"}`},
		{RunID: "run-1", Seq: 3, Queue: "parent", Op: "query", Source: "local", Outcome: "success"},
	}
	for _, st := range steps {
		require.NoError(t, s.WriteStep(ctx, st))
	}
	require.NoError(t, s.WriteStep(ctx, Step{RunID: "run-1", Seq: 1, Queue: "dup", Op: "enqueue"}),
		"duplicate seq should be ignored")

	got, err := s.ReadSteps(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].Seq)
	assert.Equal(t, "parent", got[0].Queue)
	assert.Equal(t, `{"content":"v"}`, got[0].Detail)
	assert.Equal(t, "{}", got[1].Detail)

	parentSteps, err := s.ReadQueueSteps(ctx, "run-1", "parent")
	require.NoError(t, err)
	require.Len(t, parentSteps, 2)
	assert.Equal(t, int64(3), parentSteps[1].Seq)

	none, err := s.ReadSteps(ctx, "other")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestWriteStep_RequiresRun(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteStep(context.Background(), Step{RunID: "missing", Seq: 1, Queue: "q", Op: "query"})
	assert.Error(t, err, "foreign key should reject steps for unknown runs")
}

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}
	a := gen.Generate()
	b := gen.Generate()

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}

func TestOpen_UpgradesOldJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec("DROP INDEX idx_steps_queue")
	require.NoError(t, err)
	_, err = s.db.Exec("PRAGMA user_version = 0")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	version, err := s.pragma("user_version")
	require.NoError(t, err)
	assert.Equal(t, "1", version)

	var idx string
	err = s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_steps_queue'",
	).Scan(&idx)
	assert.NoError(t, err)
}
