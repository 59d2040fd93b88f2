package sequencer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go-synthwave/clock"
	"go-synthwave/debug"
	"go-synthwave/instrument"
)

var (
	ErrAlreadyPlaying = errors.New("already playing")
	ErrNotPlaying     = errors.New("not playing")
)

// Tempo limits in BPM
const (
	DefaultTempo = 110
	MinTempo     = 20
	MaxTempo     = 300
)

// ClampTempo limits bpm to the supported range
func ClampTempo(bpm float64) float64 {
	if math.IsNaN(bpm) {
		return DefaultTempo
	}
	return math.Max(MinTempo, math.Min(MaxTempo, bpm))
}

// Status is a point-in-time view of the transport and mixer
type Status struct {
	Playing  bool
	Ready    bool
	Tempo    float64
	Bar      int   // bar being heard
	Position int64 // tick being heard
	Levels   Levels
}

// Manager owns playback: the clock, the pattern store, one scheduler per
// track and the instrument bindings. Start, Stop and Toggle are
// serialized; pattern edits, tempo and volume changes can come from any
// goroutine at any time.
type Manager struct {
	mu sync.Mutex

	tr      *clock.Transport
	store   *Store
	presets *Presets
	bars    *BarClock
	binds   *Bindings
	backend instrument.Backend
	scheds  [NumTracks]*TrackScheduler

	// Notify listeners (TUI, grid surface) of changes
	updates chan struct{}
}

type managerConfig struct {
	tempo     float64
	levels    Levels
	presets   *Presets
	patches   [NumTracks]instrument.Patch
	clockOpts []clock.Option
	initial   string
}

// Option configures NewManager
type Option func(*managerConfig)

func WithTempo(bpm float64) Option {
	return func(c *managerConfig) { c.tempo = bpm }
}

func WithLevels(l Levels) Option {
	return func(c *managerConfig) { c.levels = l }
}

// WithPresets replaces the preset registry (defaults to the built-ins)
func WithPresets(p *Presets) Option {
	return func(c *managerConfig) { c.presets = p }
}

func WithPatches(p [NumTracks]instrument.Patch) Option {
	return func(c *managerConfig) { c.patches = p }
}

// WithClock passes options through to the transport
func WithClock(opts ...clock.Option) Option {
	return func(c *managerConfig) { c.clockOpts = append(c.clockOpts, opts...) }
}

// WithInitialPreset picks the pattern set loaded at startup
func WithInitialPreset(name string) Option {
	return func(c *managerConfig) { c.initial = name }
}

// NewManager builds a stopped sequencer that will play through backend.
// The backend is not touched until the first Start.
func NewManager(backend instrument.Backend, opts ...Option) (*Manager, error) {
	cfg := managerConfig{
		tempo:   DefaultTempo,
		levels:  DefaultLevels,
		patches: Patches(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.presets == nil {
		cfg.presets = BuiltinPresets()
	}

	initial := cfg.presets.Default()
	if cfg.initial != "" {
		set, err := cfg.presets.Lookup(cfg.initial)
		if err != nil {
			return nil, err
		}
		initial = set
	}

	tr := clock.New(ClampTempo(cfg.tempo), cfg.clockOpts...)
	m := &Manager{
		tr:      tr,
		store:   NewStore(initial, cfg.presets),
		presets: cfg.presets,
		bars:    NewBarClock(tr),
		binds:   NewBindings(cfg.patches, cfg.levels),
		backend: backend,
		updates: make(chan struct{}, 1),
	}
	for t := Track(0); t < NumTracks; t++ {
		m.scheds[t] = NewTrackScheduler(t, tr, m.store, m.bars, m.binds)
	}
	return m, nil
}

// Run drives the clock in real time until ctx is done
func (m *Manager) Run(ctx context.Context) error {
	return m.tr.Run(ctx)
}

// Transport exposes the clock, mainly so tests can step it
func (m *Manager) Transport() *clock.Transport { return m.tr }

// Updates signals that state changed. Sends never block; a pending
// signal covers any number of changes.
func (m *Manager) Updates() <-chan struct{} { return m.updates }

func (m *Manager) notify() {
	select {
	case m.updates <- struct{}{}:
	default:
	}
}

// Start brings the backend up if needed, schedules every track from a
// fresh loop and starts the clock at bar 0. If the backend fails the
// sequencer stays stopped and Start may be called again.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tr.Running() {
		return ErrAlreadyPlaying
	}

	if err := m.binds.Init(ctx, m.backend); err != nil {
		debug.Error("manager", err)
		return err
	}

	for _, s := range m.scheds {
		if err := s.Schedule(); err != nil {
			m.unscheduleAll()
			return err
		}
	}
	if err := m.tr.Start(); err != nil {
		m.unscheduleAll()
		return fmt.Errorf("start clock: %w", err)
	}
	for _, s := range m.scheds {
		s.started()
	}

	debug.Log("manager", "play at %.0f BPM", m.tr.BPM())
	m.notify()
	return nil
}

// Stop halts the clock and cancels every loop without waiting for
// callbacks already under way. The bar returns to 0; phrase cursors keep
// their place.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.tr.Running() {
		return ErrNotPlaying
	}
	if err := m.tr.Stop(); err != nil {
		return fmt.Errorf("stop clock: %w", err)
	}
	m.unscheduleAll()

	debug.Log("manager", "stop")
	m.notify()
	return nil
}

func (m *Manager) unscheduleAll() {
	for _, s := range m.scheds {
		s.Unschedule()
	}
}

// Toggle stops when playing and starts when stopped
func (m *Manager) Toggle(ctx context.Context) error {
	if m.Playing() {
		err := m.Stop()
		if errors.Is(err, ErrNotPlaying) {
			return nil
		}
		return err
	}
	err := m.Start(ctx)
	if errors.Is(err, ErrAlreadyPlaying) {
		return nil
	}
	return err
}

func (m *Manager) Playing() bool {
	return m.tr.Running()
}

// SetTempo changes the tempo in either state without losing phase. The
// applied (clamped) value is returned.
func (m *Manager) SetTempo(bpm float64) float64 {
	bpm = ClampTempo(bpm)
	if err := m.tr.SetBPM(bpm); err != nil {
		debug.Error("manager", err)
		return m.tr.BPM()
	}
	m.notify()
	return bpm
}

func (m *Manager) Tempo() float64 {
	return m.tr.BPM()
}

// SetVolume sets a mixer group level in dB, clamped to -40..0. It works
// before the backend exists; the level is applied when it comes up.
func (m *Manager) SetVolume(g Group, db float64) (float64, error) {
	v, err := m.binds.SetVolume(g, db)
	if err != nil {
		return 0, err
	}
	m.notify()
	return v, nil
}

func (m *Manager) Volume(g Group) float64 {
	if !g.Valid() {
		return 0
	}
	return m.binds.Levels()[g]
}

func (m *Manager) ToggleStep(t Track, bar int) error {
	if err := m.store.Toggle(t, bar); err != nil {
		return err
	}
	m.notify()
	return nil
}

func (m *Manager) ApplyPreset(name string) error {
	if err := m.store.ApplyPreset(name); err != nil {
		return err
	}
	debug.Log("manager", "preset %q", name)
	m.notify()
	return nil
}

func (m *Manager) Presets() []string {
	return m.presets.Names()
}

func (m *Manager) Pattern(t Track) Pattern { return m.store.Pattern(t) }

func (m *Manager) Snapshot() PatternSet { return m.store.Snapshot() }

// CurrentBar is the bar of the step being scheduled, in [0, NumBars).
// It leads the audio by up to the clock lookahead; Status has the bar
// being heard.
func (m *Manager) CurrentBar() int { return m.bars.Current() }

// Cursor returns a track's next phrase index
func (m *Manager) Cursor(t Track) int {
	if !t.Valid() {
		return 0
	}
	return m.scheds[t].Cursor()
}

// SchedulerState returns the lifecycle state of a track's loop
func (m *Manager) SchedulerState(t Track) SchedulerState {
	if !t.Valid() {
		return Unscheduled
	}
	return m.scheds[t].State()
}

func (m *Manager) Status() Status {
	return Status{
		Playing:  m.tr.Running(),
		Ready:    m.binds.Ready(),
		Tempo:    m.tr.BPM(),
		Bar:      m.bars.Heard(),
		Position: m.bars.HeardPosition(),
		Levels:   m.binds.Levels(),
	}
}

// Close stops playback and shuts the backend down
func (m *Manager) Close() error {
	if err := m.Stop(); err != nil && !errors.Is(err, ErrNotPlaying) {
		return err
	}
	return m.binds.Close()
}

// Settle is how long to let release tails ring between Stop and Close
const Settle = 300 * time.Millisecond
