package display

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func init() {
	color.NoColor = true
}

func TestDisplayWarning_TitleOnly(t *testing.T) {
	var buf bytes.Buffer
	Warning{Title: "Configuration Missing"}.Display(&buf)

	if got := buf.String(); got != "Warning: Configuration Missing\n" {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestDisplayWarning_WithMessage(t *testing.T) {
	var buf bytes.Buffer
	w := Warning{
		Title:   "Slow run",
		Message: "Most files hit the task timeout",
	}

	w.Display(&buf)

	if !strings.Contains(buf.String(), "    Most files hit the task timeout\n") {
		t.Errorf("Expected indented message in output, got: %q", buf.String())
	}
}

func TestDisplayWarning_Files(t *testing.T) {
	tests := []struct {
		name   string
		files  []string
		header string
	}{
		{"single file", []string{"a.txt"}, "Affected file:"},
		{"multiple files", []string{"a.txt", "b.txt"}, "Affected files:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Warning{Title: "t", Files: tt.files}.Display(&buf)

			output := buf.String()
			if !strings.Contains(output, tt.header) {
				t.Errorf("Expected %q in output, got: %q", tt.header, output)
			}
			for i, f := range tt.files {
				line := "      " + string(rune('1'+i)) + ". " + f
				if !strings.Contains(output, line) {
					t.Errorf("Expected %q in output, got: %q", line, output)
				}
			}
		})
	}
}

func TestFailedFiles(t *testing.T) {
	var buf bytes.Buffer
	FailedFiles(2, "1f0c2a9e-5b7d-4c1e-9a3f-0d2b6e8f7a11").Display(&buf)

	output := buf.String()
	if !strings.Contains(output, "Warning: 2 files failed") {
		t.Errorf("Expected failure count in title, got: %q", output)
	}
	if !strings.Contains(output, "filebatch history show 1f0c2a9e\n") {
		t.Errorf("Expected history suggestion with short id, got: %q", output)
	}
}

func TestFailedFiles_WithoutHistory(t *testing.T) {
	w := FailedFiles(1, "")
	if w.Title != "1 file failed" {
		t.Errorf("unexpected title %q", w.Title)
	}
	if w.Suggestion != "" {
		t.Errorf("expected no suggestion without a run id, got %q", w.Suggestion)
	}
}

func TestInterrupted(t *testing.T) {
	w := Interrupted(5)
	if w.Title != "Run interrupted" {
		t.Errorf("unexpected title %q", w.Title)
	}
	if !strings.Contains(w.Message, "5 files processed") {
		t.Errorf("unexpected message %q", w.Message)
	}
}
