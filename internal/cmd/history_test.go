package cmd

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/filebatch/internal/history"
	"github.com/harrison/filebatch/internal/models"
)

func seedHistory(t *testing.T, home string, runs ...history.RunRecord) []string {
	t.Helper()
	store, err := history.NewStore(filepath.Join(home, "history.db"))
	require.NoError(t, err)
	defer store.Close()

	ids := make([]string, 0, len(runs))
	for _, run := range runs {
		id, err := store.RecordRun(context.Background(), run)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestHistoryCommand_Empty(t *testing.T) {
	setupHome(t)

	output, err := executeCommand(t, "history")
	require.NoError(t, err)
	assert.Contains(t, output, "No runs recorded yet")
}

func TestHistoryCommand_ListsNewestFirst(t *testing.T) {
	home := setupHome(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedHistory(t, home,
		history.RunRecord{ID: "aaaa1111-old", Op: "trim", Roots: []string{"/src"}, StartedAt: base, Processed: 4, Succeeded: 4},
		history.RunRecord{ID: "bbbb2222-new", Op: "hash", Roots: []string{"/photos"}, StartedAt: base.Add(time.Hour), Processed: 9, Succeeded: 8, Failed: 1, Cancelled: true},
	)

	output, err := executeCommand(t, "history")
	require.NoError(t, err)

	newer := strings.Index(output, "bbbb2222")
	older := strings.Index(output, "aaaa1111")
	require.NotEqual(t, -1, newer, output)
	require.NotEqual(t, -1, older, output)
	assert.Less(t, newer, older, "newest run first")
	assert.Contains(t, output, "/photos")
	assert.Contains(t, output, "(cancelled)")

	output, err = executeCommand(t, "history", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, output, "bbbb2222")
	assert.NotContains(t, output, "aaaa1111")
}

func TestHistoryCommand_RejectsNegativeLimit(t *testing.T) {
	setupHome(t)

	_, err := executeCommand(t, "history", "--limit", "-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--limit")
}

func TestHistoryShowCommand(t *testing.T) {
	home := setupHome(t)
	ids := seedHistory(t, home, history.RunRecord{
		Op:          "exec",
		Roots:       []string{"/media"},
		StartedAt:   time.Now().Add(-time.Minute),
		Duration:    1500 * time.Millisecond,
		Processed:   3,
		Succeeded:   1,
		Failed:      2,
		BytesBefore: 2048,
		BytesAfter:  1024,
		Failures: []models.FailureDetail{
			{Path: "/media/a.wav", Message: "exit status 1: bad header"},
			{Path: "/media/b.wav", Message: "timeout"},
		},
	})

	output, err := executeCommand(t, "history", "show", ids[0][:8])
	require.NoError(t, err)

	assert.Contains(t, output, ids[0])
	assert.Contains(t, output, "exec")
	assert.Contains(t, output, "1.5s")
	assert.Contains(t, output, "2 failed")
	assert.Contains(t, output, "saved 1.0 kB")
	assert.Contains(t, output, "/media/a.wav: exit status 1: bad header")
	assert.Contains(t, output, "/media/b.wav: timeout")
}

func TestHistoryShowCommand_NotFound(t *testing.T) {
	home := setupHome(t)

	_, err := executeCommand(t, "history", "show", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no runs recorded yet")

	seedHistory(t, home, history.RunRecord{Op: "list", Roots: []string{"/"}, StartedAt: time.Now()})
	_, err = executeCommand(t, "history", "show", "zzzz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run zzzz not found")
}

func TestHistoryCommand_ExplicitDatabase(t *testing.T) {
	setupHome(t)
	dir := t.TempDir()
	seedHistory(t, dir, history.RunRecord{ID: "cccc3333", Op: "pdfpages", Roots: []string{"/papers"}, StartedAt: time.Now()})

	output, err := executeCommand(t, "history", "--db", filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	assert.Contains(t, output, "cccc3333")
}

func TestRunThenHistoryShow(t *testing.T) {
	home := setupHome(t)
	root := createTree(t, map[string]string{"a.txt": "a"})

	_, err := executeCommand(t, "run", "list", root, "--log-dir", t.TempDir())
	require.NoError(t, err)

	runs := recordedRuns(t, home)
	require.Len(t, runs, 1)

	output, err := executeCommand(t, "history", "show", runs[0].ID)
	require.NoError(t, err)
	assert.Contains(t, output, "list")
	assert.Contains(t, output, root)
}
