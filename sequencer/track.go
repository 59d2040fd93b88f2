package sequencer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownTrack   = errors.New("unknown track")
	ErrStepOutOfRange = errors.New("step out of range")
	ErrUnknownGroup   = errors.New("unknown mix group")
)

// Track identifies one of the seven instrument lanes. The order is the
// display order.
type Track int

const (
	Bass Track = iota
	Pad
	Arp
	Lead
	Kick
	Snare
	Hat
)

const (
	NumTracks = 7
	NumBars   = 8
)

var trackNames = [NumTracks]string{"bass", "pad", "arp", "lead", "kick", "snare", "hat"}

func (t Track) String() string {
	if !t.Valid() {
		return fmt.Sprintf("track(%d)", int(t))
	}
	return trackNames[t]
}

func (t Track) Valid() bool {
	return t >= 0 && t < NumTracks
}

// Melodic tracks walk through a phrase; drum tracks repeat one hit.
func (t Track) Melodic() bool {
	return t >= Bass && t <= Lead
}

// Group returns the mixer group the track belongs to
func (t Track) Group() Group {
	switch t {
	case Bass:
		return GroupBass
	case Lead:
		return GroupLead
	case Pad:
		return GroupPad
	case Arp:
		return GroupArp
	}
	return GroupDrums
}

// ParseTrack accepts a track name in any case; "arpeggio" means arp.
func ParseTrack(s string) (Track, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "arpeggio" {
		return Arp, nil
	}
	for i, n := range trackNames {
		if n == name {
			return Track(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTrack, s)
}

// Group is a mixer channel. Drums share one fader.
type Group int

const (
	GroupBass Group = iota
	GroupLead
	GroupPad
	GroupArp
	GroupDrums
)

const NumGroups = 5

var groupNames = [NumGroups]string{"bass", "lead", "pad", "arp", "drums"}

func (g Group) String() string {
	if g < 0 || g >= NumGroups {
		return fmt.Sprintf("group(%d)", int(g))
	}
	return groupNames[g]
}

func (g Group) Valid() bool {
	return g >= 0 && g < NumGroups
}

func ParseGroup(s string) (Group, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "arpeggio" {
		return GroupArp, nil
	}
	for i, n := range groupNames {
		if n == name {
			return Group(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownGroup, s)
}

// Levels holds one fader value in dB per group
type Levels [NumGroups]float64

// DefaultLevels is the mix the app starts with
var DefaultLevels = Levels{
	GroupBass:  -10,
	GroupLead:  -15,
	GroupPad:   -18,
	GroupArp:   -20,
	GroupDrums: -8,
}

// drumTrim keeps the kit balanced under the shared drum fader
var drumTrim = [NumTracks]float64{Kick: 0, Snare: -2, Hat: -5}

// trackLevel is the level sent to a track's instrument for a group fader value
func trackLevel(t Track, groupDB float64) float64 {
	return groupDB + drumTrim[t]
}
