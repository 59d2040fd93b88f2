package synth

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"go-synthwave/instrument"
)

func readFrames(t *testing.T, m *mixer, n int) []float32 {
	t.Helper()
	buf := make([]byte, n*4)
	got, err := m.Read(buf)
	if err != nil || got != len(buf) {
		t.Fatalf("read = %d, %v", got, err)
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

func TestEnvelopeFinishesAfterRelease(t *testing.T) {
	env := newADSR(instrument.Envelope{Attack: 0.002, Decay: 0.002, Sustain: 0.5, Release: 0.004}, 10, 1000)
	var peak float64
	n := 0
	for {
		lvl, done := env.next()
		if done {
			break
		}
		peak = math.Max(peak, lvl)
		n++
		if n > 100 {
			t.Fatal("envelope never finished")
		}
	}
	if n != 14 {
		t.Fatalf("envelope ran %d samples, want gate+release = 14", n)
	}
	if peak < 0.5 || peak > 1 {
		t.Fatalf("peak = %v", peak)
	}
}

func TestMixerHonoursDelay(t *testing.T) {
	m := newMixer()
	p := instrument.Patch{Kind: instrument.KindPoly, Wave: instrument.Square, Env: instrument.Envelope{Attack: 0.0001, Sustain: 1, Release: 0.0001}}
	m.schedule(newTone(p, 100, 50, 1000), 8, nil, 1, false)

	out := readFrames(t, m, 8)
	for i, s := range out {
		if s != 0 {
			t.Fatalf("frame %d = %v before voice start", i, s)
		}
	}
	out = readFrames(t, m, 8)
	var energy float64
	for _, s := range out {
		energy += math.Abs(float64(s))
	}
	if energy == 0 {
		t.Fatal("voice silent after start")
	}
	if m.position() != 16 {
		t.Fatalf("position = %d", m.position())
	}
}

func TestMixerDropsFinishedVoices(t *testing.T) {
	m := newMixer()
	p := instrument.Patch{Kind: instrument.KindNoise, Env: instrument.Envelope{Attack: 0.001, Release: 0.001}}
	m.schedule(newNoise(p, 2, 1000, 1), 0, nil, 1, false)
	readFrames(t, m, 16)
	if m.pending() != 0 {
		t.Fatalf("pending = %d", m.pending())
	}
}

func TestMonoVoiceCutsPrevious(t *testing.T) {
	m := newMixer()
	p := instrument.Patch{Kind: instrument.KindMono, Wave: instrument.Sine, Env: instrument.Envelope{Sustain: 1, Release: 0.002}}
	first := newTone(p, 50, 1000, 1000)
	second := newTone(p, 80, 1000, 1000)
	m.schedule(first, 0, nil, 7, true)
	m.schedule(second, 4, nil, 7, true)

	readFrames(t, m, 5)
	if !first.env.released {
		t.Fatal("first voice should be released when the second starts")
	}
	if second.env.released {
		t.Fatal("second voice released early")
	}
	readFrames(t, m, 5)
	if m.pending() != 1 {
		t.Fatalf("pending = %d, want only the new voice", m.pending())
	}
}

func TestLevelAppliesLive(t *testing.T) {
	m := newMixer()
	var g level
	g.set(0)
	p := instrument.Patch{Kind: instrument.KindPoly, Wave: instrument.Square, Env: instrument.Envelope{Sustain: 1, Release: 0.01}}
	m.schedule(newTone(p, 10, 1000, 1000), 0, &g, 1, false)

	for _, s := range readFrames(t, m, 4) {
		if s != 0 {
			t.Fatalf("muted voice produced %v", s)
		}
	}
	g.set(1)
	var energy float64
	for _, s := range readFrames(t, m, 4) {
		energy += math.Abs(float64(s))
	}
	if energy == 0 {
		t.Fatal("raising the level had no effect")
	}
}

func TestInstrumentSchedulesVoices(t *testing.T) {
	b := New()
	now := time.Unix(100, 0)
	b.now = func() time.Time { return now }

	pad, _ := b.Instrument(instrument.Patch{Name: "pad", Kind: instrument.KindPoly, Env: instrument.Envelope{Attack: 0.5, Sustain: 1, Release: 1}})
	pad.Play([]uint8{53, 56, 60}, time.Second, now.Add(10*time.Millisecond))
	if b.mix.pending() != 3 {
		t.Fatalf("chord scheduled %d voices", b.mix.pending())
	}

	kick, _ := b.Instrument(instrument.Patch{Name: "kick", Kind: instrument.KindMembrane, PitchDecay: 0.05, Octaves: 10, Env: instrument.Envelope{Decay: 0.4, Release: 1.4}})
	kick.Play([]uint8{24}, 100*time.Millisecond, now)
	hat, _ := b.Instrument(instrument.Patch{Name: "hat", Kind: instrument.KindMetal, Frequency: 200, Harmonicity: 5.1, ModulationIndex: 32, Resonance: 4000, Octaves: 1.5, Env: instrument.Envelope{Decay: 0.1, Release: 0.01}})
	hat.Hit(10*time.Millisecond, now)
	if b.mix.pending() != 5 {
		t.Fatalf("pending = %d", b.mix.pending())
	}

	if d := b.delayFrames(now.Add(-time.Second)); d != 0 {
		t.Fatalf("past start should play now, got delay %d", d)
	}
	if d := b.delayFrames(now.Add(time.Second)); d != SampleRate {
		t.Fatalf("delay = %d", d)
	}
}
