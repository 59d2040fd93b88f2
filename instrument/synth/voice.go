package synth

import (
	"math"
	"math/rand/v2"

	"go-synthwave/instrument"
)

// Voice generates samples in [-1,1] until it reports done
type Voice interface {
	Sample() (float64, bool)
}

// releaser is implemented by voices that can be cut short by a newer
// note on a mono instrument
type releaser interface {
	Release()
}

// adsr is a linear attack/decay and exponential-ish release envelope,
// gated for a fixed number of samples.
type adsr struct {
	attack, decay, release int // samples
	sustain                float64
	gate                   int

	t        int
	level    float64
	relFrom  float64
	relAt    int
	released bool
}

func newADSR(e instrument.Envelope, gate int, sr float64) *adsr {
	return &adsr{
		attack:  max(1, int(e.Attack*sr)),
		decay:   max(1, int(e.Decay*sr)),
		sustain: e.Sustain,
		release: max(1, int(e.Release*sr)),
		gate:    gate,
	}
}

func (e *adsr) next() (float64, bool) {
	if !e.released && e.t >= e.gate {
		e.Release()
	}
	if e.released {
		k := e.t - e.relAt
		if k >= e.release {
			return 0, true
		}
		x := 1 - float64(k)/float64(e.release)
		e.level = e.relFrom * x * x
	} else {
		switch {
		case e.t < e.attack:
			e.level = float64(e.t) / float64(e.attack)
		case e.t < e.attack+e.decay:
			k := float64(e.t-e.attack) / float64(e.decay)
			e.level = 1 - (1-e.sustain)*k
		default:
			e.level = e.sustain
		}
	}
	e.t++
	return e.level, false
}

// Release starts the release stage from the current level
func (e *adsr) Release() {
	if e.released {
		return
	}
	e.released = true
	e.relFrom = e.level
	e.relAt = e.t
}

func oscillate(w instrument.Waveform, phase float64) float64 {
	switch w {
	case instrument.Square:
		if phase < 0.5 {
			return 1
		}
		return -1
	case instrument.Sawtooth:
		return 2*phase - 1
	case instrument.Triangle:
		if phase < 0.5 {
			return 4*phase - 1
		}
		return 3 - 4*phase
	}
	return math.Sin(2 * math.Pi * phase)
}

// onePole is a one-pole lowpass; highpass output is input minus lowpass
type onePole struct {
	y float64
}

func (f *onePole) lowpass(x, cutoff, sr float64) float64 {
	a := 1 - math.Exp(-2*math.Pi*cutoff/sr)
	f.y += a * (x - f.y)
	return f.y
}

// tone is one oscillator note with an amplitude envelope and an optional
// swept lowpass
type tone struct {
	sr     float64
	freq   float64
	phase  float64
	wave   instrument.Waveform
	env    *adsr
	fenv   *adsr
	fbase  float64
	foct   float64
	filter onePole
}

func newTone(p instrument.Patch, freq float64, gate int, sr float64) *tone {
	v := &tone{sr: sr, freq: freq, wave: p.Wave, env: newADSR(p.Env, gate, sr)}
	if p.Filter != nil {
		v.fenv = newADSR(p.Filter.Envelope, gate, sr)
		v.fbase = p.Filter.BaseFrequency
		v.foct = p.Filter.Octaves
	}
	return v
}

func (v *tone) Sample() (float64, bool) {
	amp, done := v.env.next()
	if done {
		return 0, true
	}
	s := oscillate(v.wave, v.phase)
	v.phase += v.freq / v.sr
	v.phase -= math.Floor(v.phase)
	if v.fenv != nil {
		f, _ := v.fenv.next()
		cutoff := math.Min(v.fbase*math.Pow(2, v.foct*f), v.sr/2.5)
		s = v.filter.lowpass(s, cutoff, v.sr)
	}
	return s * amp, false
}

func (v *tone) Release() {
	v.env.Release()
	if v.fenv != nil {
		v.fenv.Release()
	}
}

// membrane is a sine whose pitch falls from freq*2^octaves to freq over
// pitchDecay seconds
type membrane struct {
	sr, freq, octaves float64
	decay             int
	phase             float64
	t                 int
	env               *adsr
}

func newMembrane(p instrument.Patch, freq float64, gate int, sr float64) *membrane {
	return &membrane{
		sr: sr, freq: freq, octaves: p.Octaves,
		decay: max(1, int(p.PitchDecay*sr)),
		env:   newADSR(p.Env, gate, sr),
	}
}

func (v *membrane) Sample() (float64, bool) {
	amp, done := v.env.next()
	if done {
		return 0, true
	}
	sweep := math.Max(0, 1-float64(v.t)/float64(v.decay))
	f := v.freq * math.Pow(2, v.octaves*sweep)
	v.t++
	s := math.Sin(2 * math.Pi * v.phase)
	v.phase += f / v.sr
	v.phase -= math.Floor(v.phase)
	return s * amp, false
}

// noise is a white noise burst
type noise struct {
	env *adsr
	rng *rand.Rand
}

func newNoise(p instrument.Patch, gate int, sr float64, seed uint64) *noise {
	return &noise{env: newADSR(p.Env, gate, sr), rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (v *noise) Sample() (float64, bool) {
	amp, done := v.env.next()
	if done {
		return 0, true
	}
	return (v.rng.Float64()*2 - 1) * amp, false
}

// metal is a square carrier phase-modulated by a second square at
// freq*harmonicity, highpassed at resonance
type metal struct {
	sr, freq, modFreq, index, resonance float64
	cphase, mphase                      float64
	env                                 *adsr
	lp                                  onePole
}

func newMetal(p instrument.Patch, gate int, sr float64) *metal {
	h := p.Harmonicity
	if h == 0 {
		h = 1
	}
	// Octaves widens the modulator beyond the carrier range
	spread := math.Pow(2, p.Octaves/2)
	return &metal{
		sr: sr, freq: p.Frequency, modFreq: p.Frequency * h * spread,
		index: p.ModulationIndex, resonance: p.Resonance,
		env: newADSR(p.Env, gate, sr),
	}
}

func (v *metal) Sample() (float64, bool) {
	amp, done := v.env.next()
	if done {
		return 0, true
	}
	mod := oscillate(instrument.Square, v.mphase)
	v.mphase += v.modFreq / v.sr
	v.mphase -= math.Floor(v.mphase)

	p := v.cphase + v.index*mod/(2*math.Pi)
	p -= math.Floor(p)
	s := oscillate(instrument.Square, p)
	v.cphase += v.freq / v.sr
	v.cphase -= math.Floor(v.cphase)

	if v.resonance > 0 {
		s -= v.lp.lowpass(s, math.Min(v.resonance, v.sr/2.5), v.sr)
	}
	return s * amp * 0.5, false
}
