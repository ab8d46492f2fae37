package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Warning represents a user-facing warning message
type Warning struct {
	Title      string   // Main warning title
	Message    string   // Detailed explanation (optional)
	Files      []string // Related files (optional)
	Suggestion string   // Action to take (optional)
}

// Display shows a formatted warning in yellow
func (w Warning) Display(out io.Writer) {
	var b strings.Builder

	b.WriteString("Warning: ")
	b.WriteString(w.Title)
	b.WriteString("\n")

	if w.Message != "" {
		b.WriteString("    ")
		b.WriteString(w.Message)
		b.WriteString("\n")
	}

	if len(w.Files) > 0 {
		b.WriteString("    ")
		if len(w.Files) == 1 {
			b.WriteString("Affected file:\n")
		} else {
			b.WriteString("Affected files:\n")
		}

		for i, file := range w.Files {
			fmt.Fprintf(&b, "      %d. %s\n", i+1, file)
		}
	}

	if w.Suggestion != "" {
		b.WriteString("    Suggestion:\n")
		b.WriteString("    ")
		b.WriteString(w.Suggestion)
		b.WriteString("\n")
	}

	color.New(color.FgYellow).Fprint(out, b.String())
}

// FailedFiles creates the notice printed when some files failed. With a
// recorded run id it points at the history entry listing them.
func FailedFiles(failed int, runID string) Warning {
	w := Warning{Title: fmt.Sprintf("%d %s failed", failed, plural(failed, "file", "files"))}
	if runID != "" {
		w.Suggestion = "filebatch history show " + shortID(runID)
	}
	return w
}

// Interrupted creates the notice printed when a run was cancelled before
// the walk finished.
func Interrupted(processed int) Warning {
	return Warning{
		Title:   "Run interrupted",
		Message: fmt.Sprintf("%d %s processed before cancellation; remaining files were not visited", processed, plural(processed, "file", "files")),
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
