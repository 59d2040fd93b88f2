package sequencer

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// Pattern is one track's on/off state per bar
type Pattern [NumBars]bool

// PatternSet is every track's pattern. It is replaced as a whole, never
// edited in place once published.
type PatternSet [NumTracks]Pattern

// String renders the pattern as x/. per bar
func (p Pattern) String() string {
	var b strings.Builder
	for _, on := range p {
		if on {
			b.WriteByte('x')
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// Count returns how many bars are on
func (p Pattern) Count() int {
	n := 0
	for _, on := range p {
		if on {
			n++
		}
	}
	return n
}

// ParsePattern reads one pattern from x/. notation ("xx..xx..").
// 'x', 'X' and '1' mean on; '.', '-' and '0' mean off.
func ParsePattern(s string) (Pattern, error) {
	var p Pattern
	s = strings.TrimSpace(s)
	if len(s) != NumBars {
		return p, fmt.Errorf("pattern %q: want %d steps, got %d", s, NumBars, len(s))
	}
	for i := 0; i < NumBars; i++ {
		switch s[i] {
		case 'x', 'X', '1':
			p[i] = true
		case '.', '-', '0':
		default:
			return p, fmt.Errorf("pattern %q: bad step %q", s, s[i])
		}
	}
	return p, nil
}

// Store holds the live pattern set. Writers take a lock and publish a new
// copy; readers load the current pointer and never block, so the audio
// callback always sees a complete, current set.
type Store struct {
	mu      sync.Mutex
	cur     atomic.Pointer[PatternSet]
	presets *Presets
}

// NewStore starts from initial and resolves preset names in presets
func NewStore(initial PatternSet, presets *Presets) *Store {
	s := &Store{presets: presets}
	s.cur.Store(&initial)
	return s
}

// Pattern returns a copy of one track's current pattern. Unknown tracks
// read as all off.
func (s *Store) Pattern(t Track) Pattern {
	if !t.Valid() {
		return Pattern{}
	}
	return s.cur.Load()[t]
}

// Step reports whether track t is on in bar. Safe for the dispatch goroutine.
func (s *Store) Step(t Track, bar int) bool {
	if !t.Valid() || bar < 0 || bar >= NumBars {
		return false
	}
	return s.cur.Load()[t][bar]
}

// Toggle flips exactly one step and publishes the result
func (s *Store) Toggle(t Track, bar int) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownTrack, int(t))
	}
	if bar < 0 || bar >= NumBars {
		return fmt.Errorf("%w: bar %d", ErrStepOutOfRange, bar)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := *s.cur.Load()
	next[t][bar] = !next[t][bar]
	s.cur.Store(&next)
	return nil
}

// Replace swaps in a whole new set at once
func (s *Store) Replace(set PatternSet) {
	s.mu.Lock()
	s.cur.Store(&set)
	s.mu.Unlock()
}

// ApplyPreset replaces the set with a named preset
func (s *Store) ApplyPreset(name string) error {
	set, err := s.presets.Lookup(name)
	if err != nil {
		return err
	}
	s.Replace(set)
	return nil
}

// Snapshot returns one consistent copy of every track
func (s *Store) Snapshot() PatternSet {
	return *s.cur.Load()
}
