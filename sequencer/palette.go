package sequencer

import "go-synthwave/instrument"

// Patches returns the sound of every track. Channels follow General MIDI
// so the midi backend lands on sensible programs and the drum channel.
func Patches() [NumTracks]instrument.Patch {
	return [NumTracks]instrument.Patch{
		Bass: {
			Name: "bass", Kind: instrument.KindMono, Wave: instrument.Square,
			Env: instrument.Envelope{Attack: 0.1, Decay: 0.3, Sustain: 0.4, Release: 0.8},
			Filter: &instrument.FilterEnvelope{
				Envelope:      instrument.Envelope{Attack: 0.1, Decay: 0.2, Sustain: 0.5, Release: 0.8},
				BaseFrequency: 200,
				Octaves:       2,
			},
			Channel: 1, Program: 39, // synth bass 1
		},
		Pad: {
			Name: "pad", Kind: instrument.KindPoly, Wave: instrument.Sine,
			Env:     instrument.Envelope{Attack: 0.8, Decay: 1, Sustain: 0.8, Release: 3},
			Channel: 2, Program: 90, // pad 2 (warm)
		},
		Arp: {
			Name: "arp", Kind: instrument.KindPoly, Wave: instrument.Triangle,
			Env:     instrument.Envelope{Attack: 0.01, Decay: 0.1, Sustain: 0.2, Release: 0.4},
			Channel: 3, Program: 81, // lead 1 (square)
		},
		Lead: {
			Name: "lead", Kind: instrument.KindPoly, Wave: instrument.Sawtooth,
			Env:     instrument.Envelope{Attack: 0.02, Decay: 0.3, Sustain: 0.6, Release: 1},
			Channel: 4, Program: 82, // lead 2 (sawtooth)
		},
		Kick: {
			Name: "kick", Kind: instrument.KindMembrane,
			Env:        instrument.Envelope{Attack: 0.001, Decay: 0.4, Sustain: 0.01, Release: 1.4},
			PitchDecay: 0.05, Octaves: 10, Frequency: 32.7,
			Channel: instrument.GMDrumChannel, DrumNote: instrument.GMKick,
		},
		Snare: {
			Name: "snare", Kind: instrument.KindNoise,
			Env:     instrument.Envelope{Attack: 0.001, Decay: 0.2, Sustain: 0, Release: 0.2},
			Channel: instrument.GMDrumChannel, DrumNote: instrument.GMSnare,
		},
		Hat: {
			Name: "hat", Kind: instrument.KindMetal,
			Env:       instrument.Envelope{Attack: 0.001, Decay: 0.1, Sustain: 0, Release: 0.01},
			Frequency: 200, Harmonicity: 5.1, ModulationIndex: 32, Resonance: 4000, Octaves: 1.5,
			Channel: instrument.GMDrumChannel, DrumNote: instrument.GMClosedHat,
		},
	}
}

// RGB colour of each track, used by the grid surface and the TUI
var trackColors = [NumTracks][3]uint8{
	Bass:  {255, 40, 60},  // red
	Pad:   {160, 60, 255}, // purple
	Arp:   {255, 80, 200}, // pink
	Lead:  {255, 220, 40}, // yellow
	Kick:  {40, 110, 255}, // blue
	Snare: {50, 230, 90},  // green
	Hat:   {40, 230, 230}, // cyan
}

func (t Track) Color() [3]uint8 {
	if !t.Valid() {
		return [3]uint8{}
	}
	return trackColors[t]
}
