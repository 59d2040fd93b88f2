package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	// Launchpad help widget
	Solid rune // ■ active/has function
	Empty rune // □ inactive/no function

	// Step grid (no cursor)
	StepOff      rune // · bar muted
	StepOn       rune // ● bar plays
	StepPlayhead rune // ▶ playhead over a muted bar

	// Step grid (with cursor)
	CursorOff      rune // ○
	CursorOn       rune // ◉
	CursorPlayhead rune // ▷

	// Mixer fader
	FaderFull  rune // █
	FaderEmpty rune // ░
}

func New(palette *Palette) *Theme {
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			Solid: '■',
			Empty: '□',

			StepOff:      '·',
			StepOn:       '●',
			StepPlayhead: '▶',

			CursorOff:      '○',
			CursorOn:       '◉',
			CursorPlayhead: '▷',

			FaderFull:  '█',
			FaderEmpty: '░',
		},
	}
}

// Default is the embedded synthwave palette
func Default() *Theme {
	return New(Synthwave())
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0  // night
	RoleSurface = 0.1  // dusk
	RoleMuted   = 0.25 // violet
	RoleFG      = 0.45 // orchid
	RoleAccent  = 0.55 // neon pink
	RoleCursor  = 0.65 // coral
	RoleWarning = 0.8  // sunset
	RoleSuccess = 1.0  // glow
)

func (t *Theme) BG() lipgloss.Color      { return t.Color(RoleBG) }
func (t *Theme) Surface() lipgloss.Color { return t.Color(RoleSurface) }
func (t *Theme) FG() lipgloss.Color      { return t.Color(RoleFG) }
func (t *Theme) Accent() lipgloss.Color  { return t.Color(RoleAccent) }
func (t *Theme) Muted() lipgloss.Color   { return t.Color(RoleMuted) }
func (t *Theme) Cursor() lipgloss.Color  { return t.Color(RoleCursor) }
func (t *Theme) Warning() lipgloss.Color { return t.Color(RoleWarning) }
func (t *Theme) Success() lipgloss.Color { return t.Color(RoleSuccess) }

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return Hex(t.Palette.Lookup(norm))
}

// Track styles a grid cell in a track's own colour, dimmed when the bar
// is muted
func (t *Theme) Track(rgb [3]uint8, lit bool) lipgloss.Style {
	if !lit {
		rgb = [3]uint8{rgb[0] / 3, rgb[1] / 3, rgb[2] / 3}
	}
	return lipgloss.NewStyle().Foreground(Hex(RGB(rgb)))
}

// Hex converts an RGB triple to a lipgloss colour
func Hex(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
