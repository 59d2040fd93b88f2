// Package synth renders patches in software and plays them through the
// default audio device.
package synth

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go-synthwave/debug"
	"go-synthwave/instrument"
	"go-synthwave/midi"

	"github.com/ebitengine/oto/v3"
)

const (
	SampleRate = 44100
	bufferSize = 20 * time.Millisecond
)

// Backend is the built-in software synth. Only one oto context may exist
// per process, so a Backend that failed to come up keeps its context and
// waits on it again on the next Open.
type Backend struct {
	sampleRate int

	mu     sync.Mutex
	otoCtx *oto.Context
	ready  chan struct{}
	player *oto.Player
	mix    *mixer
	nextID int
	seed   atomic.Uint64
	now    func() time.Time
}

func New() *Backend {
	return &Backend{sampleRate: SampleRate, mix: newMixer(), now: time.Now}
}

func (b *Backend) Name() string { return "synth" }

// Open starts the audio device. It blocks until the device is ready or
// ctx is done.
func (b *Backend) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.player != nil {
		return nil
	}

	if b.otoCtx == nil {
		c, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   b.sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatFloat32LE,
			BufferSize:   bufferSize,
		})
		if err != nil {
			return fmt.Errorf("audio device: %w", err)
		}
		b.otoCtx = c
		b.ready = ready
	}

	select {
	case <-b.ready:
	case <-ctx.Done():
		return fmt.Errorf("audio device: %w", ctx.Err())
	}

	b.player = b.otoCtx.NewPlayer(b.mix)
	b.player.Play()
	debug.Log("backend", "synth running at %d Hz", b.sampleRate)
	return nil
}

func (b *Backend) Instrument(p instrument.Patch) (instrument.Instrument, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	in := &synthInstrument{b: b, patch: p, id: b.nextID}
	in.gain.set(1)
	return in, nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.player == nil {
		return nil
	}
	b.player.Pause()
	err := b.player.Err()
	b.player = nil
	if err != nil {
		return fmt.Errorf("audio player: %w", err)
	}
	return nil
}

// delayFrames converts a wall-clock start to frames from now
func (b *Backend) delayFrames(at time.Time) int64 {
	d := at.Sub(b.now())
	if d <= 0 {
		return 0
	}
	return int64(d.Seconds() * float64(b.sampleRate))
}

func (b *Backend) frames(d time.Duration) int {
	return max(1, int(d.Seconds()*float64(b.sampleRate)))
}

type synthInstrument struct {
	b     *Backend
	patch instrument.Patch
	id    int
	gain  level
}

func (s *synthInstrument) Play(notes []uint8, dur time.Duration, at time.Time) {
	p := s.patch
	sr := float64(s.b.sampleRate)
	gate := s.b.frames(dur)
	delay := s.b.delayFrames(at)

	switch p.Kind {
	case instrument.KindMono:
		if len(notes) == 0 {
			return
		}
		s.b.mix.schedule(newTone(p, midi.Frequency(notes[0]), gate, sr), delay, &s.gain, s.id, true)
	case instrument.KindPoly:
		for _, n := range notes {
			s.b.mix.schedule(newTone(p, midi.Frequency(n), gate, sr), delay, &s.gain, s.id, false)
		}
	case instrument.KindMembrane:
		freq := p.Frequency
		if len(notes) > 0 {
			freq = midi.Frequency(notes[0])
		}
		s.b.mix.schedule(newMembrane(p, freq, gate, sr), delay, &s.gain, s.id, false)
	default:
		s.Hit(dur, at)
	}
}

func (s *synthInstrument) Hit(dur time.Duration, at time.Time) {
	p := s.patch
	sr := float64(s.b.sampleRate)
	gate := s.b.frames(dur)
	delay := s.b.delayFrames(at)

	var v Voice
	switch p.Kind {
	case instrument.KindNoise:
		v = newNoise(p, gate, sr, s.b.seed.Add(1))
	case instrument.KindMetal:
		v = newMetal(p, gate, sr)
	case instrument.KindMembrane:
		v = newMembrane(p, p.Frequency, gate, sr)
	default:
		v = newTone(p, p.Frequency, gate, sr)
	}
	s.b.mix.schedule(v, delay, &s.gain, s.id, p.Kind == instrument.KindMono)
}

func (s *synthInstrument) SetVolume(db float64) {
	s.gain.set(instrument.Gain(db))
}
