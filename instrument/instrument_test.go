package instrument

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
	gomidi "gitlab.com/gomidi/midi/v2"
)

func TestClampVolume(t *testing.T) {
	cases := map[float64]float64{
		-60:        MinVolume,
		5:          MaxVolume,
		-12.5:      -12.5,
		math.NaN(): MinVolume,
	}
	for in, want := range cases {
		if got := ClampVolume(in); got != want {
			t.Fatalf("ClampVolume(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestGainAndMIDIVolume(t *testing.T) {
	if g := Gain(0); g != 1 {
		t.Fatalf("Gain(0) = %v", g)
	}
	if g := Gain(-20); math.Abs(g-0.1) > 1e-12 {
		t.Fatalf("Gain(-20) = %v", g)
	}
	if g := Gain(math.Inf(-1)); g != 0 {
		t.Fatalf("Gain(-inf) = %v", g)
	}
	if v := MIDIVolume(0); v != 127 {
		t.Fatalf("MIDIVolume(0) = %d", v)
	}
	if v := MIDIVolume(-40); v != 13 {
		t.Fatalf("MIDIVolume(-40) = %d", v)
	}
	if MIDIVolume(-10) <= MIDIVolume(-20) {
		t.Fatalf("MIDI volume should rise with dB")
	}
}

func TestTimedQueueOrder(t *testing.T) {
	q := newTimedQueue[string]()
	base := time.Unix(1000, 0)
	q.push(base.Add(20*time.Millisecond), "c")
	q.push(base, "a")
	q.push(base.Add(10*time.Millisecond), "b1")
	q.push(base.Add(10*time.Millisecond), "b2")

	got, wait := q.due(base.Add(10 * time.Millisecond))
	want := []string{"a", "b1", "b2"}
	if len(got) != len(want) {
		t.Fatalf("due = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("due = %v, want %v", got, want)
		}
	}
	if wait != 10*time.Millisecond {
		t.Fatalf("wait = %v", wait)
	}
	if rest := q.drain(); len(rest) != 1 || rest[0] != "c" {
		t.Fatalf("drain = %v", rest)
	}
	if _, wait := q.due(base); wait >= 0 {
		t.Fatalf("empty queue should report no wait, got %v", wait)
	}
}

func TestTimedQueueRunWakesForEarlierPush(t *testing.T) {
	q := newTimedQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan int, 4)
	go q.run(ctx, func(v int) { got <- v })

	q.push(time.Now().Add(time.Hour), 2)
	q.push(time.Now(), 1)

	select {
	case v := <-got:
		if v != 1 {
			t.Fatalf("first delivered = %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("earlier value not delivered")
	}
	if q.len() != 1 {
		t.Fatalf("pending = %d", q.len())
	}
}

type sentLog struct {
	mu   sync.Mutex
	msgs []gomidi.Message
}

func (s *sentLog) send(m gomidi.Message) error {
	s.mu.Lock()
	s.msgs = append(s.msgs, m)
	s.mu.Unlock()
	return nil
}

func (s *sentLog) snapshot() []gomidi.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]gomidi.Message(nil), s.msgs...)
}

func (s *sentLog) waitFor(t *testing.T, n int) []gomidi.Message {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if msgs := s.snapshot(); len(msgs) >= n {
			return msgs
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected %d messages, got %d", n, len(s.snapshot()))
	return nil
}

func contains(msgs []gomidi.Message, want gomidi.Message) bool {
	for _, m := range msgs {
		if bytes.Equal(m, want) {
			return true
		}
	}
	return false
}

func openMIDI(t *testing.T) (*MIDIBackend, *sentLog) {
	t.Helper()
	log := &sentLog{}
	b := NewMIDIBackend("test")
	b.connect = func(string) (func(gomidi.Message) error, error) { return log.send, nil }
	if err := b.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	return b, log
}

func TestMIDIBackendRequiresOpen(t *testing.T) {
	b := NewMIDIBackend("x")
	if _, err := b.Instrument(Patch{Name: "bass"}); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}

	b.connect = func(string) (func(gomidi.Message) error, error) { return nil, errors.New("no port") }
	if err := b.Open(context.Background()); err == nil {
		t.Fatal("open should fail when the port cannot be reached")
	}
}

func TestMIDIBackendPlaysNotesAndDrums(t *testing.T) {
	b, log := openMIDI(t)
	defer b.Close()

	bass, err := b.Instrument(Patch{Name: "bass", Kind: KindMono, Channel: 1, Program: 39})
	if err != nil {
		t.Fatal(err)
	}
	kick, _ := b.Instrument(Patch{Name: "kick", Kind: KindMembrane, Channel: GMDrumChannel, DrumNote: GMKick})

	past := time.Now().Add(-time.Millisecond)
	bass.Play([]uint8{29}, 0, past)
	kick.Play([]uint8{24}, 0, past)
	bass.SetVolume(0)

	msgs := log.waitFor(t, 6)
	for _, want := range []gomidi.Message{
		gomidi.ProgramChange(0, 38),
		gomidi.NoteOn(0, 29, noteVelocity),
		gomidi.NoteOff(0, 29),
		gomidi.NoteOn(9, GMKick, noteVelocity),
		gomidi.NoteOff(9, GMKick),
		gomidi.ControlChange(0, ccVolume, 127),
	} {
		if !contains(msgs, want) {
			t.Fatalf("missing %v in %v", want, msgs)
		}
	}
	if contains(msgs, gomidi.NoteOn(9, 24, noteVelocity)) {
		t.Fatal("drum patch should ignore the pitch it was given")
	}
}

func TestMIDIBackendCloseReleasesHeldNotes(t *testing.T) {
	b, log := openMIDI(t)
	lead, _ := b.Instrument(Patch{Name: "lead", Kind: KindPoly, Channel: 2})

	lead.Play([]uint8{72}, time.Hour, time.Now().Add(-time.Millisecond))
	log.waitFor(t, 1)

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	msgs := log.snapshot()
	if !contains(msgs, gomidi.NoteOff(1, 72)) {
		t.Fatalf("held note not released: %v", msgs)
	}
	if !contains(msgs, gomidi.ControlChange(1, ccAllNotesOff, 0)) {
		t.Fatalf("channel not silenced: %v", msgs)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

type packetLog struct {
	mu      sync.Mutex
	packets []osc.Packet
}

func (p *packetLog) Send(pk osc.Packet) error {
	p.mu.Lock()
	p.packets = append(p.packets, pk)
	p.mu.Unlock()
	return nil
}

func (p *packetLog) waitFor(t *testing.T, n int) []osc.Packet {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		if len(p.packets) >= n {
			out := append([]osc.Packet(nil), p.packets...)
			p.mu.Unlock()
			return out
		}
		p.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected %d packets", n)
	return nil
}

func TestOSCBackendBundlesTriggers(t *testing.T) {
	b := NewOSCBackend("127.0.0.1", 57120, "/synthwave/")
	log := &packetLog{}
	b.client = log
	if err := b.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	pad, err := b.Instrument(Patch{Name: "pad"})
	if err != nil {
		t.Fatal(err)
	}
	at := time.Now().Add(50 * time.Millisecond)
	pad.Play([]uint8{53, 56, 60}, 2*time.Second, at)
	pad.Hit(time.Second, at)
	pad.SetVolume(-18)

	packets := log.waitFor(t, 3)

	bundle, ok := packets[0].(*osc.Bundle)
	if !ok {
		t.Fatalf("note should be bundled, got %T", packets[0])
	}
	if len(bundle.Messages) != 1 {
		t.Fatalf("bundle has %d messages", len(bundle.Messages))
	}
	msg := bundle.Messages[0]
	if msg.Address != "/synthwave/pad/note" {
		t.Fatalf("address = %q", msg.Address)
	}
	if len(msg.Arguments) != 4 || msg.Arguments[0] != int32(53) || msg.Arguments[3] != float32(2) {
		t.Fatalf("arguments = %v", msg.Arguments)
	}

	hit := packets[1].(*osc.Bundle).Messages[0]
	if hit.Address != "/synthwave/pad/hit" {
		t.Fatalf("hit address = %q", hit.Address)
	}

	vol, ok := packets[2].(*osc.Message)
	if !ok || vol.Address != "/synthwave/pad/volume" || vol.Arguments[0] != float32(-18) {
		t.Fatalf("volume packet = %#v", packets[2])
	}
}

func TestOSCBackendRejectsBadAddress(t *testing.T) {
	b := NewOSCBackend("", 0, "")
	if err := b.Open(context.Background()); err == nil {
		t.Fatal("expected error for empty target")
	}
	if _, err := b.Instrument(Patch{Name: "x"}); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	if err := r.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	hat, _ := r.Instrument(Patch{Name: "hat", Kind: KindMetal})
	notes := []uint8{1, 2}
	hat.Play(notes, time.Second, time.Unix(5, 0))
	notes[0] = 99
	hat.Hit(time.Millisecond, time.Unix(6, 0))
	hat.SetVolume(-5)

	tr := r.Triggers()
	if len(tr) != 2 || tr[0].Notes[0] != 1 || tr[1].Notes != nil {
		t.Fatalf("triggers = %+v", tr)
	}
	if r.Count("hat") != 2 {
		t.Fatalf("count = %d", r.Count("hat"))
	}
	if db, ok := r.Volume("hat"); !ok || db != -5 {
		t.Fatalf("volume = %v %v", db, ok)
	}

	boom := errors.New("boom")
	r.SetOpenErr(boom)
	if err := r.Open(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("open err = %v", err)
	}
	if r.Opens() != 2 {
		t.Fatalf("opens = %d", r.Opens())
	}
}
