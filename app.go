package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go-synthwave/clock"
	"go-synthwave/config"
	"go-synthwave/debug"
	"go-synthwave/instrument"
	"go-synthwave/instrument/synth"
	"go-synthwave/midi"
	"go-synthwave/sequencer"
)

// newBackend picks the instrument backend named in cfg
func newBackend(cfg *config.Config) (instrument.Backend, error) {
	switch cfg.Backend {
	case config.BackendSynth:
		return synth.New(), nil
	case config.BackendMIDI:
		return instrument.NewMIDIBackend(cfg.MIDI.Port), nil
	case config.BackendOSC:
		return instrument.NewOSCBackend(cfg.OSC.Host, cfg.OSC.Port, cfg.OSC.Prefix), nil
	case config.BackendLog:
		return instrument.LogBackend{}, nil
	}
	return nil, fmt.Errorf("%w %q", config.ErrBackend, cfg.Backend)
}

// managerOptions turns the config into sequencer options: user presets
// appended to the built-ins, mix levels, MIDI channel overrides, tempo
// and clock lookahead.
func managerOptions(cfg *config.Config) ([]sequencer.Option, error) {
	presets, err := loadPresets(cfg)
	if err != nil {
		return nil, err
	}

	levels := sequencer.DefaultLevels
	for name, db := range cfg.Mix {
		g, err := sequencer.ParseGroup(name)
		if err != nil {
			return nil, fmt.Errorf("mix: %w", err)
		}
		levels[g] = db
	}

	patches := sequencer.Patches()
	for name, ch := range cfg.MIDI.Channels {
		t, err := sequencer.ParseTrack(name)
		if err != nil {
			return nil, fmt.Errorf("midi channels: %w", err)
		}
		patches[t].Channel = uint8(ch)
	}

	opts := []sequencer.Option{
		sequencer.WithTempo(cfg.Tempo),
		sequencer.WithLevels(levels),
		sequencer.WithPresets(presets),
		sequencer.WithPatches(patches),
	}
	if cfg.Preset != "" {
		opts = append(opts, sequencer.WithInitialPreset(cfg.Preset))
	}
	if cfg.Lookahead > 0 {
		opts = append(opts, sequencer.WithClock(clock.WithLookahead(cfg.Lookahead)))
	}
	return opts, nil
}

// loadPresets returns the built-in arrangements followed by the user's.
// A user preset with a built-in's name replaces it.
func loadPresets(cfg *config.Config) (*sequencer.Presets, error) {
	presets := sequencer.BuiltinPresets()
	for _, pc := range cfg.Presets {
		p, err := sequencer.PresetDef{Name: pc.Name, Steps: pc.Steps}.Build()
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", pc.Name, err)
		}
		presets.Add(p)
	}
	return presets, nil
}

func newManager(cfg *config.Config) (*sequencer.Manager, error) {
	backend, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}
	opts, err := managerOptions(cfg)
	if err != nil {
		return nil, err
	}
	return sequencer.NewManager(backend, opts...)
}

// shutdown stops playback, lets release tails ring, then closes the
// backend. Held MIDI notes are released by the backend's Close.
func shutdown(m *sequencer.Manager) {
	if err := m.Stop(); err == nil {
		time.Sleep(sequencer.Settle)
	} else if !errors.Is(err, sequencer.ErrNotPlaying) {
		debug.Error("main", err)
	}
	if err := m.Close(); err != nil {
		debug.Error("main", err)
	}
}

// attachSurfaces feeds connect and disconnect events from dm to surf
// until dm closes its event channel. The TUI does this itself.
func attachSurfaces(ctx context.Context, dm *midi.DeviceManager, surf *sequencer.Surface) {
	for ev := range dm.Events() {
		switch ev.Type {
		case midi.DeviceConnected:
			surf.Attach(ctx, ev.Controller)
		case midi.DeviceDisconnected:
			surf.Detach(ev.ID)
		}
	}
}

// ErrConfigExists is returned by writeConfig when it would overwrite
var ErrConfigExists = errors.New("config file exists, use --force to overwrite")

// writeConfig saves cfg to path with an auto-connect entry for each
// surface port
func writeConfig(cfg *config.Config, path string, surfaces []string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s: %w", path, ErrConfigExists)
	}
	for _, port := range surfaces {
		cfg.AddController(config.ControllerConfig{Port: port, AutoConnect: true})
	}
	if err := cfg.SaveFile(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// enableDebug starts the debug log. "-" means stderr, which only headless
// commands get since the TUI owns the terminal; the UI falls back to the
// default file.
func enableDebug(path string, headless bool) error {
	if path == "-" {
		if headless {
			debug.EnableWriter(os.Stderr)
			return nil
		}
		path = ""
	}
	return debug.Enable(path)
}
