package logger

import (
	"github.com/fatih/color"
	"github.com/harrison/filebatch/internal/models"
)

// colorScheme defines consistent colors for result statuses.
// Green: success
// Red: failure
// Yellow: skipped
// Cyan: labels and anything unrecognized
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	skip    *color.Color
	label   *color.Color
}

// newColorScheme creates the standard color scheme.
func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		skip:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
	}
}

// forStatus returns the color for a result status.
func (s *colorScheme) forStatus(status string) *color.Color {
	switch status {
	case models.StatusSuccess:
		return s.success
	case models.StatusFailure:
		return s.fail
	case models.StatusSkipped:
		return s.skip
	default:
		return s.label
	}
}
