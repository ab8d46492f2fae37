package logger

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// ratioBar renders the share of processed files that succeeded as
// "[========  ] 8/10 (80%)".
type ratioBar struct {
	done  int
	total int
	width int
	color bool
}

func newRatioBar(done, total, width int, enableColor bool) ratioBar {
	if width < 1 {
		width = 10
	}
	return ratioBar{done: done, total: total, width: width, color: enableColor}
}

// percent is clamped to [0, 100]; an empty run is 0%.
func (b ratioBar) percent() int {
	if b.total <= 0 {
		return 0
	}
	return max(0, min(b.done*100/b.total, 100))
}

func (b ratioBar) String() string {
	perc := b.percent()
	filled := perc * b.width / 100

	text := fmt.Sprintf("[%s%s] %d/%d (%d%%)",
		strings.Repeat("=", filled), strings.Repeat(" ", b.width-filled), b.done, b.total, perc)
	if !b.color {
		return text
	}
	if perc == 100 {
		return color.New(color.FgGreen).Sprint(text)
	}
	return color.New(color.FgCyan).Sprint(text)
}
