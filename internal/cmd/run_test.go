package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harrison/filebatch/internal/executor"
	"github.com/harrison/filebatch/internal/history"
)

// executeCommand runs the root command with args and returns its output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	rootCmd := NewRootCommand()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return buf.String(), err
}

// setupHome points FILEBATCH_HOME at a fresh directory and returns it.
func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("FILEBATCH_HOME", home)
	return home
}

// createTree writes files relative to a new temp directory.
func createTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", rel, err)
		}
	}
	return root
}

func recordedRuns(t *testing.T, home string) []*history.RunRecord {
	t.Helper()
	store, err := history.NewStore(filepath.Join(home, "history.db"))
	if err != nil {
		t.Fatalf("Failed to open history: %v", err)
	}
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	return runs
}

func TestRunCommand_List(t *testing.T) {
	home := setupHome(t)
	root := createTree(t, map[string]string{
		"a.txt":             "alpha",
		"sub/b.go":          "package b",
		"sub/deep/c.md":     "# c",
		".git/config":       "pruned",
		"node_modules/x.js": "pruned",
	})

	output, err := executeCommand(t, "run", "list", root, "--log-dir", t.TempDir())
	if err != nil {
		t.Fatalf("run list failed: %v\n%s", err, output)
	}

	for _, want := range []string{"Running list over", "Processed: 3", "Succeeded: 3", "Failed: 0", "Log written to:"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}

	runs := recordedRuns(t, home)
	if len(runs) != 1 {
		t.Fatalf("expected 1 recorded run, got %d", len(runs))
	}
	if runs[0].Op != "list" || runs[0].Processed != 3 {
		t.Errorf("unexpected recorded run: %+v", runs[0])
	}
	if len(runs[0].Roots) != 1 || runs[0].Roots[0] != root {
		t.Errorf("expected roots [%s], got %v", root, runs[0].Roots)
	}
}

func TestRunCommand_Filters(t *testing.T) {
	setupHome(t)
	root := createTree(t, map[string]string{
		"keep.go":            "package keep",
		"skip.txt":           "text",
		".hidden.go":         "package hidden",
		"a/b/too_deep.go":    "package deep",
		"big.go":             strings.Repeat("x", 4096),
		"vendor/vendored.go": "package vendored",
	})

	output, err := executeCommand(t, "run", "list", root,
		"--include", ".go",
		"--exclude-dir", "vendor",
		"--max-depth", "1",
		"--max-size", "1KB",
		"--exclude-hidden",
		"--no-history",
		"--verbose",
		"--log-dir", t.TempDir())
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, output)
	}

	if !strings.Contains(output, "Processed: 1") {
		t.Errorf("expected only keep.go to be processed:\n%s", output)
	}
	if !strings.Contains(output, "keep.go") {
		t.Errorf("verbose output should list keep.go:\n%s", output)
	}
}

func TestRunCommand_DotFilesIncludedByDefault(t *testing.T) {
	setupHome(t)
	root := createTree(t, map[string]string{
		".env":            "KEY=1",
		".config/app.txt": "x",
		"a.txt":           "a",
		".git/HEAD":       "pruned by default exclude dirs",
	})

	output, err := executeCommand(t, "run", "list", root, "--no-history", "--log-dir", t.TempDir())
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Processed: 3") {
		t.Errorf("expected dot-files to be processed and .git pruned:\n%s", output)
	}
}

func TestRunCommand_Trim(t *testing.T) {
	setupHome(t)
	root := createTree(t, map[string]string{
		"dirty.txt": "one  \ntwo\t\n",
		"clean.txt": "clean\n",
	})

	output, err := executeCommand(t, "run", "trim", root, "--no-history", "--log-dir", t.TempDir())
	if err != nil {
		t.Fatalf("run trim failed: %v\n%s", err, output)
	}

	data, err := os.ReadFile(filepath.Join(root, "dirty.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "one\ntwo\n" {
		t.Errorf("dirty.txt not trimmed: %q", data)
	}
	if !strings.Contains(output, "Succeeded: 1") || !strings.Contains(output, "Skipped: 1") {
		t.Errorf("expected 1 success and 1 skip:\n%s", output)
	}
	if !strings.Contains(output, "saved 3 B") {
		t.Errorf("expected byte delta in summary:\n%s", output)
	}
}

func TestRunCommand_DryRunLeavesFilesAlone(t *testing.T) {
	setupHome(t)
	root := createTree(t, map[string]string{"dirty.txt": "line   \n"})

	output, err := executeCommand(t, "run", "trim", root, "--dry-run", "--no-history", "--log-dir", t.TempDir())
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, output)
	}

	data, _ := os.ReadFile(filepath.Join(root, "dirty.txt"))
	if string(data) != "line   \n" {
		t.Errorf("dry run modified the file: %q", data)
	}
	if !strings.Contains(output, "Dry run") {
		t.Errorf("expected dry run notice:\n%s", output)
	}
}

func TestRunCommand_HashReportsDuplicates(t *testing.T) {
	setupHome(t)
	root := createTree(t, map[string]string{
		"a/one.bin":   "same content",
		"b/two.bin":   "same content",
		"c/three.bin": "different",
	})
	manifest := filepath.Join(t.TempDir(), "SUMS")

	output, err := executeCommand(t, "run", "hash", root,
		"--algo", "sha256", "--manifest", manifest, "--no-history", "--log-dir", t.TempDir())
	if err != nil {
		t.Fatalf("run hash failed: %v\n%s", err, output)
	}

	if !strings.Contains(output, "Duplicates: 1 groups") {
		t.Errorf("expected one duplicate group:\n%s", output)
	}

	data, err := os.ReadFile(manifest)
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 3 {
		t.Errorf("expected 3 manifest lines, got %d:\n%s", lines, data)
	}
}

func TestRunCommand_NoHistory(t *testing.T) {
	home := setupHome(t)
	root := createTree(t, map[string]string{"a.txt": "a"})

	if _, err := executeCommand(t, "run", "list", root, "--no-history", "--log-dir", t.TempDir()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(home, "history.db")); !os.IsNotExist(err) {
		t.Errorf("history database should not exist, stat err: %v", err)
	}
}

func TestRunCommand_ConfigFile(t *testing.T) {
	setupHome(t)
	root := createTree(t, map[string]string{"a.txt": "a", "b.md": "b"})

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	config := `workers: 2
max_in_flight: 4
filter:
  include: [".md"]
history:
  enabled: false
`
	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatal(err)
	}

	output, err := executeCommand(t, "run", "list", root, "--config", configPath, "--log-dir", t.TempDir())
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, output)
	}
	if !strings.Contains(output, "workers: 2, in flight: 4") {
		t.Errorf("config pool sizes not applied:\n%s", output)
	}
	if !strings.Contains(output, "Processed: 1") {
		t.Errorf("config include filter not applied:\n%s", output)
	}

	output, err = executeCommand(t, "run", "list", root, "--config", configPath, "--workers", "3", "--max-in-flight", "3", "--log-dir", t.TempDir())
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, output)
	}
	if !strings.Contains(output, "workers: 3, in flight: 3") {
		t.Errorf("flags should override config:\n%s", output)
	}
}

func TestRunCommand_ConfigurationErrors(t *testing.T) {
	setupHome(t)
	root := createTree(t, map[string]string{"a.txt": "a"})

	tests := []struct {
		name           string
		args           []string
		wantErrContain string
	}{
		{
			name:           "unknown operation",
			args:           []string{"run", "shred", root},
			wantErrContain: "unknown operation",
		},
		{
			name:           "zero workers",
			args:           []string{"run", "list", root, "--workers", "0"},
			wantErrContain: "workers must be >= 1",
		},
		{
			name:           "in flight below workers",
			args:           []string{"run", "list", root, "--workers", "4", "--max-in-flight", "2"},
			wantErrContain: "max_in_flight",
		},
		{
			name:           "missing root",
			args:           []string{"run", "list", filepath.Join(root, "nope")},
			wantErrContain: "paths",
		},
		{
			name:           "bad size",
			args:           []string{"run", "list", root, "--min-size", "lots"},
			wantErrContain: "min-size",
		},
		{
			name:           "unknown hash algorithm",
			args:           []string{"run", "hash", root, "--algo", "crc32"},
			wantErrContain: "algo",
		},
		{
			name:           "exec without command",
			args:           []string{"run", "exec", root},
			wantErrContain: "cmd",
		},
		{
			name:           "exec with missing binary",
			args:           []string{"run", "exec", root, "--cmd", "definitely-not-a-real-binary-xyz {}"},
			wantErrContain: "definitely-not-a-real-binary-xyz",
		},
		{
			name:           "missing operation",
			args:           []string{"run"},
			wantErrContain: "requires at least 1 arg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(tt.args, "--log-dir", t.TempDir())
			output, err := executeCommand(t, args...)
			if err == nil {
				t.Fatalf("expected error, got none. Output:\n%s", output)
			}
			if !strings.Contains(err.Error(), tt.wantErrContain) {
				t.Errorf("expected error containing %q, got %v", tt.wantErrContain, err)
			}
			if strings.Contains(output, "Running ") {
				t.Errorf("no files should be processed on configuration errors:\n%s", output)
			}
		})
	}
}

func TestRunCommand_ConfigurationErrorType(t *testing.T) {
	setupHome(t)

	_, err := executeCommand(t, "run", "list", "/definitely/not/here", "--log-dir", t.TempDir())
	var cfgErr *executor.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %T: %v", err, err)
	}
	if cfgErr.Field != "paths" {
		t.Errorf("expected field 'paths', got %q", cfgErr.Field)
	}
}

func TestRunCommand_FailuresDoNotFailTheRun(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	home := setupHome(t)
	root := createTree(t, map[string]string{"a.txt": "a", "b.txt": "b"})

	output, err := executeCommand(t, "run", "exec", root, "--cmd", "false {}", "--log-dir", t.TempDir())
	if err != nil {
		t.Fatalf("per-file failures must not fail the run: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Failed: 2") || !strings.Contains(output, "exit status 1") {
		t.Errorf("expected two failures with exit status:\n%s", output)
	}

	runs := recordedRuns(t, home)
	if len(runs) != 1 || runs[0].Failed != 2 {
		t.Fatalf("expected one run with 2 failures, got %+v", runs)
	}
	if !strings.Contains(output, "Warning: 2 files failed") || !strings.Contains(output, "filebatch history show "+runs[0].ID[:8]) {
		t.Errorf("expected failure notice pointing at history:\n%s", output)
	}
}
