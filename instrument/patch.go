package instrument

// Kind is the voice architecture of a patch
type Kind int

const (
	KindMono     Kind = iota // one voice, new notes cut the old one
	KindPoly                 // independent voices per note
	KindMembrane             // pitched drum with a falling pitch sweep
	KindNoise                // filtered noise burst
	KindMetal                // inharmonic FM cymbal
)

func (k Kind) String() string {
	switch k {
	case KindMono:
		return "mono"
	case KindPoly:
		return "poly"
	case KindMembrane:
		return "membrane"
	case KindNoise:
		return "noise"
	case KindMetal:
		return "metal"
	}
	return "unknown"
}

// Waveform of a tonal oscillator
type Waveform int

const (
	Sine Waveform = iota
	Square
	Sawtooth
	Triangle
)

func (w Waveform) String() string {
	switch w {
	case Sine:
		return "sine"
	case Square:
		return "square"
	case Sawtooth:
		return "sawtooth"
	case Triangle:
		return "triangle"
	}
	return "unknown"
}

// Envelope times are in seconds; Sustain is a level in [0,1].
type Envelope struct {
	Attack  float64
	Decay   float64
	Sustain float64
	Release float64
}

// FilterEnvelope sweeps a lowpass cutoff from BaseFrequency up by Octaves
// following the envelope.
type FilterEnvelope struct {
	Envelope
	BaseFrequency float64
	Octaves       float64
}

// Patch describes the timbre of one instrument in a way every backend can
// interpret: the software synth renders it, MIDI maps it to a GM program
// or drum note, OSC forwards the name.
type Patch struct {
	Name string
	Kind Kind
	Wave Waveform
	Env  Envelope

	// Mono only
	Filter *FilterEnvelope

	// Membrane: pitch falls Octaves over PitchDecay seconds.
	// Metal: FM cymbal around Frequency, Octaves wide.
	PitchDecay      float64
	Octaves         float64
	Frequency       float64
	Harmonicity     float64
	ModulationIndex float64
	Resonance       float64

	// MIDI mapping
	Channel  uint8 // 1-16
	Program  uint8 // GM program number (0 = leave as is)
	DrumNote uint8 // note sent for percussive patches
}

// Percussive reports whether the patch ignores pitch content.
func (p Patch) Percussive() bool {
	return p.Kind >= KindMembrane
}
