package widgets

import (
	"fmt"
	"math"
	"strings"
)

// Fader draws a horizontal level meter for a dB value in [lo, hi]:
// "bass  ██████░░░░ -10 dB"
func Fader(label string, db, lo, hi float64, width int, full, empty rune) string {
	if width <= 0 {
		width = 10
	}
	frac := 0.0
	if hi > lo {
		frac = (db - lo) / (hi - lo)
	}
	frac = clamp01(frac)
	n := int(frac*float64(width) + 0.5)
	bar := strings.Repeat(string(full), n) + strings.Repeat(string(empty), width-n)
	return fmt.Sprintf("%-6s %s %4.0f dB", label, bar, db)
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
