package synth

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
)

// level is a live linear gain shared by every voice of one instrument
type level struct {
	bits atomic.Uint64
}

func (l *level) set(g float64) { l.bits.Store(math.Float64bits(g)) }
func (l *level) get() float64  { return math.Float64frombits(l.bits.Load()) }

type voiceState struct {
	start  int64
	v      Voice
	gain   *level
	owner  int // instrument id; 0 = none
	mono   bool
	active bool
}

// mixer sums scheduled voices into a mono float32 stream for oto
type mixer struct {
	mu     sync.Mutex
	voices []*voiceState
	pos    int64 // frames rendered so far
	master float64
}

func newMixer() *mixer {
	return &mixer{master: 0.8}
}

// schedule starts v delay frames after the current render position
func (m *mixer) schedule(v Voice, delay int64, gain *level, owner int, mono bool) {
	if delay < 0 {
		delay = 0
	}
	m.mu.Lock()
	m.voices = append(m.voices, &voiceState{start: m.pos + delay, v: v, gain: gain, owner: owner, mono: mono})
	m.mu.Unlock()
}

func (m *mixer) position() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

func (m *mixer) pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Read implements io.Reader for oto.Player (FormatFloat32LE, one channel)
func (m *mixer) Read(p []byte) (int, error) {
	frames := len(p) / 4
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := 0; i < frames; i++ {
		var sum float64
		live := m.voices[:0]
		for _, vs := range m.voices {
			if m.pos < vs.start {
				live = append(live, vs)
				continue
			}
			if !vs.active {
				vs.active = true
				if vs.mono {
					m.cutOthers(vs)
				}
			}
			s, done := vs.v.Sample()
			if done {
				continue
			}
			g := 1.0
			if vs.gain != nil {
				g = vs.gain.get()
			}
			sum += s * g
			live = append(live, vs)
		}
		for j := len(live); j < len(m.voices); j++ {
			m.voices[j] = nil
		}
		m.voices = live
		m.pos++

		out := float32(math.Tanh(sum * m.master))
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(out))
	}
	return frames * 4, nil
}

// cutOthers releases the other sounding voices of a mono instrument
func (m *mixer) cutOthers(vs *voiceState) {
	for _, o := range m.voices {
		if o == vs || o.owner != vs.owner || !o.active {
			continue
		}
		if r, ok := o.v.(releaser); ok {
			r.Release()
		}
	}
}
