package midi

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var pitchClasses = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

var noteNames = [12]string{"C", "C#", "D", "Eb", "E", "F", "F#", "G", "Ab", "A", "Bb", "B"}

// ParseNote converts scientific pitch notation ("F1", "Ab3", "C#5",
// "C-1") to a MIDI note number. C4 is 60.
func ParseNote(name string) (uint8, error) {
	s := strings.TrimSpace(name)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid note %q", name)
	}

	pc, ok := pitchClasses[strings.ToUpper(s[:1])[0]]
	if !ok {
		return 0, fmt.Errorf("invalid note %q", name)
	}
	s = s[1:]

	for len(s) > 0 && (s[0] == '#' || s[0] == 'b') {
		if s[0] == '#' {
			pc++
		} else {
			pc--
		}
		s = s[1:]
	}

	octave, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid octave in note %q", name)
	}

	n := (octave+1)*12 + pc
	if n < 0 || n > 127 {
		return 0, fmt.Errorf("note %q out of MIDI range", name)
	}
	return uint8(n), nil
}

// MustParseNote is ParseNote for static note tables.
func MustParseNote(name string) uint8 {
	n, err := ParseNote(name)
	if err != nil {
		panic(err)
	}
	return n
}

// NoteName returns the display name of a MIDI note ("Ab1").
func NoteName(n uint8) string {
	return fmt.Sprintf("%s%d", noteNames[n%12], int(n)/12-1)
}

// Frequency returns the equal-tempered frequency of a MIDI note (A4 = 440 Hz).
func Frequency(n uint8) float64 {
	return 440 * math.Pow(2, (float64(n)-69)/12)
}
