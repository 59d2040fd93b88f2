package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-synthwave/midi"
)

// Pads is the light state of a grid controller: GridSize rows of pads,
// plus the top strip (row GridSize) and side strip (col GridSize).
// Row 0 is the bottom.
type Pads [midi.GridSize + 1][midi.GridSize + 1][3]uint8

// PadsFromLEDs builds a frame from a full set of LED updates. Updates
// outside the grid are ignored.
func PadsFromLEDs(leds []midi.LEDUpdate) Pads {
	var p Pads
	for _, l := range leds {
		if l.Row < 0 || l.Row > midi.GridSize || l.Col < 0 || l.Col > midi.GridSize {
			continue
		}
		p[l.Row][l.Col] = l.Color
	}
	return p
}

// RenderPad renders a single colored pad; unlit pads are drawn hollow
func RenderPad(color [3]uint8) string {
	if color == ([3]uint8{}) {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#333333")).Render("□")
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color)))
	return style.Render("■")
}

// RenderPadRow renders a row of colored pads with spacing
func RenderPadRow(colors [][3]uint8) string {
	var out strings.Builder
	for i, c := range colors {
		if i > 0 {
			out.WriteString(" ")
		}
		out.WriteString(RenderPad(c))
	}
	return out.String()
}

// RenderPadGrid draws the controller top-down: the top strip first, then
// rows GridSize-1 to 0. The side strip is drawn when side is set.
func RenderPadGrid(p Pads, side bool) string {
	width := midi.GridSize
	if side {
		width++
	}
	lines := make([]string, 0, midi.GridSize+1)
	for row := midi.GridSize; row >= 0; row-- {
		colors := make([][3]uint8, width)
		for col := range colors {
			colors[col] = p[row][col]
		}
		lines = append(lines, RenderPadRow(colors))
	}
	return strings.Join(lines, "\n")
}

// RenderLegendItem renders a single legend item: "■ Name - description"
func RenderLegendItem(color [3]uint8, name, desc string) string {
	return fmt.Sprintf("  %s %s - %s", RenderPad(color), name, desc)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
