package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != BackendSynth || cfg.Tempo != 110 || cfg.OSC.Port != 57120 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if hints := cfg.SurfaceHints(); len(hints) != 1 || hints[0] != "lpx midi" {
		t.Fatalf("hints = %v", hints)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
backend: midi
tempo: 128
lookahead: 150ms
mix:
  drums: -6
midi:
  port: IAC Driver
  channels:
    bass: 2
presets:
  - name: Four
    steps:
      kick: xxxxxxxx
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != BackendMIDI || cfg.Tempo != 128 || cfg.Lookahead != 150*time.Millisecond {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Mix["drums"] != -6 || cfg.MIDI.Port != "IAC Driver" || cfg.MIDI.Channels["bass"] != 2 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.Presets) != 1 || cfg.Presets[0].Steps["kick"] != "xxxxxxxx" {
		t.Fatalf("presets = %+v", cfg.Presets)
	}
	// untouched sections keep their defaults
	if cfg.OSC.Host != "127.0.0.1" {
		t.Fatalf("osc = %+v", cfg.OSC)
	}
}

func TestLoadFileRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"backend.yaml": "backend: cassette\n",
		"channel.yaml": "midi:\n  channels:\n    lead: 17\n",
		"syntax.yaml":  "tempo: [\n",
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		os.WriteFile(path, []byte(body), 0644)
		if _, err := LoadFile(path); err == nil {
			t.Fatalf("%s loaded without error", name)
		}
	}
	path := filepath.Join(dir, "backend.yaml")
	if _, err := LoadFile(path); !errors.Is(err, ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.Backend = BackendOSC
	cfg.Lookahead = 40 * time.Millisecond
	cfg.AddController(ControllerConfig{Port: "lpx midi", AutoConnect: false})
	cfg.AddController(ControllerConfig{Port: "Mini MK3", AutoConnect: true})

	if err := cfg.SaveFile(path); err != nil {
		t.Fatal(err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Backend != BackendOSC || got.Lookahead != 40*time.Millisecond {
		t.Fatalf("loaded %+v", got)
	}
	if len(got.Controllers) != 2 || got.Controllers[0].AutoConnect {
		t.Fatalf("controllers = %+v", got.Controllers)
	}
	if hints := got.SurfaceHints(); len(hints) != 1 || hints[0] != "mini mk3" {
		t.Fatalf("hints = %v", hints)
	}
}
