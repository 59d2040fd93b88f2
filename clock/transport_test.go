package clock

import (
	"context"
	"sync"
	"testing"
	"time"
)

// manualClock is a wall clock the test moves by hand.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Add(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestParseDuration(t *testing.T) {
	cases := map[string]int64{
		"1m":  768,
		"2m":  1536,
		"1n":  768,
		"2n":  384,
		"4n":  192,
		"8n":  96,
		"16n": 48,
		"32n": 24,
		"8t":  64,
		"4n.": 288,
		"96i": 96,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		if err != nil {
			t.Fatalf("ParseDuration(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseDuration(%q) = %d, want %d", in, got, want)
		}
	}

	for _, bad := range []string{"", "n", "0n", "-4n", "7n", "4x", "abc"} {
		if _, err := ParseDuration(bad); err == nil {
			t.Errorf("ParseDuration(%q) should fail", bad)
		}
	}
}

func TestFormatPosition(t *testing.T) {
	if got := FormatPosition(TicksPerBar*3 + PPQ*2 + Sixteenth); got != "3:2:1" {
		t.Fatalf("FormatPosition = %q, want 3:2:1", got)
	}
}

func TestLoopsFireInTickOrder(t *testing.T) {
	clk := newManualClock()
	tr := New(120, WithNow(clk.Now))

	var got []string
	var ticks []int64
	record := func(name string) func(time.Time) {
		return func(time.Time) {
			got = append(got, name)
			ticks = append(ticks, tr.Position())
		}
	}
	if _, err := tr.Schedule(Quarter, Quarter, record("snare")); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Schedule(Half, 0, record("kick")); err != nil {
		t.Fatal(err)
	}
	if err := tr.Start(); err != nil {
		t.Fatal(err)
	}

	if n := tr.AdvanceTo(Measure); n != 5 {
		t.Fatalf("fired %d callbacks, want 5", n)
	}
	// snare registered first, so it wins the tie at 384
	wantNames := []string{"kick", "snare", "snare", "kick", "snare"}
	wantTicks := []int64{0, 192, 384, 384, 576}
	for i := range wantNames {
		if got[i] != wantNames[i] {
			t.Fatalf("firing %d = %s, want %s (all: %v)", i, got[i], wantNames[i], got)
		}
		if ticks[i] != wantTicks[i] {
			t.Fatalf("firing %d saw position %d, want %d", i, ticks[i], wantTicks[i])
		}
	}
	if tr.Position() != Measure {
		t.Fatalf("position = %d, want %d", tr.Position(), Measure)
	}
}

func TestTieBreakFollowsRegistrationOrder(t *testing.T) {
	tr := New(120, WithNow(newManualClock().Now))
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		if _, err := tr.Schedule(Eighth, 0, func(time.Time) { order = append(order, i) }); err != nil {
			t.Fatal(err)
		}
	}
	tr.Start()
	tr.AdvanceTo(1)
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("order = %v, want [0 1 2]", order)
	}
}

func TestStopCancelsLoopsAndResetsPosition(t *testing.T) {
	tr := New(120, WithNow(newManualClock().Now))
	count := 0
	loop, _ := tr.Schedule(Eighth, 0, func(time.Time) { count++ })
	tr.Start()
	tr.AdvanceTo(Measure * 3)
	if count != 24 {
		t.Fatalf("count = %d, want 24", count)
	}

	if err := tr.Stop(); err != nil {
		t.Fatal(err)
	}
	if tr.Position() != 0 {
		t.Fatalf("position after stop = %d, want 0", tr.Position())
	}
	if !loop.Cancelled() {
		t.Fatal("loop should be cancelled by Stop")
	}
	if tr.Loops() != 0 {
		t.Fatalf("loops after stop = %d, want 0", tr.Loops())
	}
	if n := tr.AdvanceTo(Measure * 4); n != 0 {
		t.Fatalf("stopped transport fired %d", n)
	}
	if err := tr.Stop(); err != ErrStopped {
		t.Fatalf("second Stop = %v, want ErrStopped", err)
	}

	// A restart needs fresh loops
	tr.Start()
	if n := tr.AdvanceTo(Measure); n != 0 {
		t.Fatalf("cancelled loop fired %d times after restart", n)
	}
	if err := tr.Start(); err != ErrRunning {
		t.Fatalf("second Start = %v, want ErrRunning", err)
	}
}

func TestStopInsideCallbackDropsRestOfBatch(t *testing.T) {
	tr := New(120, WithNow(newManualClock().Now))
	count := 0
	tr.Schedule(Sixteenth, 0, func(time.Time) {
		count++
		if count == 3 {
			tr.Stop()
		}
	})
	tr.Start()
	tr.AdvanceTo(Measure)
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
	if tr.Position() != 0 {
		t.Fatalf("position = %d, want 0 after stop", tr.Position())
	}
}

func TestCancelledLoopIsSkipped(t *testing.T) {
	tr := New(120, WithNow(newManualClock().Now))
	a, b := 0, 0
	var loopB *Loop
	tr.Schedule(Quarter, 0, func(time.Time) {
		a++
		if a == 2 {
			loopB.Cancel()
		}
	})
	loopB, _ = tr.Schedule(Quarter, 0, func(time.Time) { b++ })
	tr.Start()
	tr.AdvanceTo(Measure)
	if a != 4 || b != 1 {
		t.Fatalf("a=%d b=%d, want a=4 b=1", a, b)
	}
}

func TestScheduleWhileRunningAligns(t *testing.T) {
	tr := New(120, WithNow(newManualClock().Now))
	tr.Start()
	tr.AdvanceTo(Quarter + 1)

	var first int64 = -1
	tr.Schedule(Half, 0, func(time.Time) {
		if first < 0 {
			first = tr.Position()
		}
	})
	tr.AdvanceTo(Measure)
	if first != Half {
		t.Fatalf("first firing at %d, want %d", first, Half)
	}
}

func TestScheduleRejectsBadSpacing(t *testing.T) {
	tr := New(120)
	if _, err := tr.Schedule(0, 0, func(time.Time) {}); err != ErrLoopSpacing {
		t.Fatalf("zero interval: %v", err)
	}
	if _, err := tr.Schedule(Quarter, -1, func(time.Time) {}); err != ErrLoopSpacing {
		t.Fatalf("negative offset: %v", err)
	}
	if _, err := tr.Schedule(Quarter, 0, nil); err != ErrLoopSpacing {
		t.Fatalf("nil fn: %v", err)
	}
}

func TestFiringTimesFollowTempo(t *testing.T) {
	clk := newManualClock()
	start := clk.Now()
	tr := New(120, WithNow(clk.Now))

	var times []time.Time
	tr.Schedule(Quarter, 0, func(at time.Time) { times = append(times, at) })
	tr.Start()
	tr.AdvanceTo(Measure)

	// 120 BPM: a quarter note every 500ms
	for i, at := range times {
		want := start.Add(time.Duration(i) * 500 * time.Millisecond)
		if !at.Equal(want) {
			t.Fatalf("firing %d at %v, want %v", i, at.Sub(start), want.Sub(start))
		}
	}
}

func TestSetBPMIsPhaseStable(t *testing.T) {
	clk := newManualClock()
	tr := New(120, WithNow(clk.Now))

	var times []time.Time
	var ticks []int64
	tr.Schedule(Quarter, 0, func(at time.Time) {
		times = append(times, at)
		ticks = append(ticks, tr.Position())
	})
	tr.Start()

	// Two beats at 120 BPM, then double the tempo exactly on beat 2
	tr.AdvanceTo(2 * Quarter)
	clk.Add(time.Second)
	before := tr.Position()
	if err := tr.SetBPM(240); err != nil {
		t.Fatal(err)
	}
	if tr.Position() != before {
		t.Fatalf("tempo change moved position %d -> %d", before, tr.Position())
	}
	if got := tr.TickAt(clk.Now()); got != float64(2*Quarter) {
		t.Fatalf("tick at re-anchor = %v, want %d", got, 2*Quarter)
	}

	tr.AdvanceTo(4 * Quarter)
	if len(times) != 4 {
		t.Fatalf("firings = %d, want 4", len(times))
	}
	if d := times[1].Sub(times[0]); d != 500*time.Millisecond {
		t.Fatalf("interval before change = %v, want 500ms", d)
	}
	if d := times[3].Sub(times[2]); d != 250*time.Millisecond {
		t.Fatalf("interval after change = %v, want 250ms", d)
	}
	// Musical positions are unchanged by the tempo change
	for i, tick := range ticks {
		if tick != int64(i)*Quarter {
			t.Fatalf("firing %d at tick %d, want %d", i, tick, int64(i)*Quarter)
		}
	}
	if d := tr.Duration(Quarter); d != 250*time.Millisecond {
		t.Fatalf("Duration(quarter) = %v, want 250ms", d)
	}
	if err := tr.SetBPM(0); err != ErrTempo {
		t.Fatalf("SetBPM(0) = %v, want ErrTempo", err)
	}
}

func TestPackRoundTrip(t *testing.T) {
	gen, tick := unpack(pack(12345, 987654321))
	if gen != 12345 || tick != 987654321 {
		t.Fatalf("unpack = %d,%d", gen, tick)
	}
}

func TestRunDispatchesInRealTime(t *testing.T) {
	tr := New(300, WithInterval(time.Millisecond), WithLookahead(20*time.Millisecond))
	fired := make(chan int64, 64)
	tr.Schedule(Sixteenth, 0, func(time.Time) {
		select {
		case fired <- tr.Position():
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(done)
	}()

	tr.Start()
	select {
	case tick := <-fired:
		if tick != 0 {
			t.Fatalf("first firing at %d, want 0", tick)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher never fired")
	}
	cancel()
	<-done
}

func TestDispatchResyncsAfterStall(t *testing.T) {
	clk := newManualClock()
	tr := New(120, WithNow(clk.Now), WithLookahead(0))
	count := 0
	tr.Schedule(Quarter, 0, func(time.Time) { count++ })
	tr.Start()
	tr.dispatch()
	clk.Add(time.Minute) // 30 bars at 120 BPM
	tr.dispatch()
	if count > 2 {
		t.Fatalf("stall burst fired %d notes", count)
	}
}

func TestAudibleTrailsPlayhead(t *testing.T) {
	clk := newManualClock()
	tr := New(120, WithNow(clk.Now), WithLookahead(100*time.Millisecond))
	tr.Start()

	clk.Add(1950 * time.Millisecond) // 748.8 ticks at 120 BPM
	tr.dispatch()
	if tr.Position() <= TicksPerBar {
		t.Fatalf("playhead %d should already be past the bar line", tr.Position())
	}
	if got := tr.Audible(); got != 748 {
		t.Fatalf("audible = %d, want 748", got)
	}

	// dispatcher stalled: audible stops at the playhead
	clk.Add(time.Second)
	if got := tr.Audible(); got != tr.Position() {
		t.Fatalf("audible %d passed playhead %d", got, tr.Position())
	}

	tr.Stop()
	if tr.Audible() != 0 {
		t.Fatalf("audible after stop = %d", tr.Audible())
	}
}
