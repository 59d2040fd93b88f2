package sequencer

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var ErrUnknownPreset = errors.New("unknown preset")

//go:embed presets.yaml
var builtinPresets []byte

// Preset is a named pattern set
type Preset struct {
	Name string
	Set  PatternSet
}

// PresetDef is the on-disk form: track name to x/. string. Missing
// tracks are silent.
type PresetDef struct {
	Name  string            `yaml:"name"`
	Steps map[string]string `yaml:"steps"`
}

// Build validates the definition and turns it into a Preset
func (ps PresetDef) Build() (Preset, error) {
	p := Preset{Name: strings.TrimSpace(ps.Name)}
	if p.Name == "" {
		return p, errors.New("preset without a name")
	}
	for name, steps := range ps.Steps {
		t, err := ParseTrack(name)
		if err != nil {
			return p, fmt.Errorf("preset %q: %w", p.Name, err)
		}
		pat, err := ParsePattern(steps)
		if err != nil {
			return p, fmt.Errorf("preset %q track %s: %w", p.Name, t, err)
		}
		p.Set[t] = pat
	}
	return p, nil
}

// ParsePresets decodes a YAML list of preset definitions
func ParsePresets(data []byte) ([]Preset, error) {
	var defs []PresetDef
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	out := make([]Preset, 0, len(defs))
	for _, s := range defs {
		p, err := s.Build()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Presets is an ordered registry looked up by loose name: case, spaces,
// dashes and underscores are ignored, so "All-On" finds "All On".
type Presets struct {
	mu    sync.RWMutex
	list  []Preset
	index map[string]int
}

// BuiltinPresets returns a fresh registry holding the built-in presets
func BuiltinPresets() *Presets {
	list, err := ParsePresets(builtinPresets)
	if err != nil {
		panic(err)
	}
	p := &Presets{index: make(map[string]int)}
	for _, pr := range list {
		p.Add(pr)
	}
	return p
}

func presetKey(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_', '\t':
			return -1
		}
		return r
	}, strings.ToLower(name))
}

// Add appends a preset, replacing any preset with the same key in place
func (p *Presets) Add(pr Preset) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := presetKey(pr.Name)
	if i, ok := p.index[key]; ok {
		p.list[i] = pr
		return
	}
	p.index[key] = len(p.list)
	p.list = append(p.list, pr)
}

// Lookup returns the pattern set for name
func (p *Presets) Lookup(name string) (PatternSet, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	i, ok := p.index[presetKey(name)]
	if !ok {
		return PatternSet{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return p.list[i].Set, nil
}

// Names lists preset names in registration order
func (p *Presets) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, len(p.list))
	for i, pr := range p.list {
		names[i] = pr.Name
	}
	return names
}

// Default returns the first registered preset's set
func (p *Presets) Default() PatternSet {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.list) == 0 {
		return PatternSet{}
	}
	return p.list[0].Set
}
