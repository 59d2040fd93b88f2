package clock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// PPQ is the transport resolution in ticks per quarter note.
const PPQ = 192

const (
	BeatsPerBar = 4
	TicksPerBar = PPQ * BeatsPerBar
)

// Common subdivisions in ticks
const (
	Measure      int64 = TicksPerBar
	Half         int64 = TicksPerBar / 2
	Quarter      int64 = PPQ
	Eighth       int64 = PPQ / 2
	Sixteenth    int64 = PPQ / 4
	ThirtySecond int64 = PPQ / 8
)

var ErrBadDuration = errors.New("invalid musical duration")

// ParseDuration converts musical notation into ticks.
//
//	"4n"  quarter note        "8t"  eighth-note triplet
//	"8n." dotted eighth       "1m"  one measure
//	"96i" raw ticks
func ParseDuration(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
	}

	dotted := strings.HasSuffix(s, ".")
	body := strings.TrimSuffix(s, ".")
	unit := body[len(body)-1]
	n, err := strconv.Atoi(body[:len(body)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
	}

	var ticks int64
	switch unit {
	case 'n':
		if TicksPerBar%n != 0 {
			return 0, fmt.Errorf("%w: %q does not divide a measure", ErrBadDuration, s)
		}
		ticks = int64(TicksPerBar / n)
	case 't':
		if (TicksPerBar*2)%(n*3) != 0 {
			return 0, fmt.Errorf("%w: %q does not divide a measure", ErrBadDuration, s)
		}
		ticks = int64(TicksPerBar * 2 / (n * 3))
	case 'm':
		ticks = int64(n) * TicksPerBar
	case 'i':
		ticks = int64(n)
	default:
		return 0, fmt.Errorf("%w: unknown unit in %q", ErrBadDuration, s)
	}

	if dotted {
		if ticks%2 != 0 {
			return 0, fmt.Errorf("%w: %q cannot be dotted", ErrBadDuration, s)
		}
		ticks += ticks / 2
	}
	return ticks, nil
}

// MustParseDuration is ParseDuration for package-level tables.
func MustParseDuration(s string) int64 {
	t, err := ParseDuration(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Bar returns the zero-based bar containing tick.
func Bar(tick int64) int64 {
	return tick / TicksPerBar
}

// FormatPosition renders a tick as "bars:beats:sixteenths" like a
// hardware transport display.
func FormatPosition(tick int64) string {
	bars := tick / TicksPerBar
	beats := (tick % TicksPerBar) / PPQ
	sixteenths := (tick % PPQ) / Sixteenth
	return fmt.Sprintf("%d:%d:%d", bars, beats, sixteenths)
}
