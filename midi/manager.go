package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	"go-synthwave/debug"
)

// DeviceEvent is emitted when a surface is plugged in or removed
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// DefaultSurfaceHints match the Launchpad X MIDI port (not its DAW port)
// on macOS and Linux.
var DefaultSurfaceHints = []string{"lpx midi"}

// DeviceManager polls for grid surfaces and opens them as they appear
type DeviceManager struct {
	hints    []string
	pollRate time.Duration

	mu          sync.RWMutex
	controllers map[string]Controller
	events      chan DeviceEvent
}

// NewDeviceManager watches for input ports whose name contains any of
// hints (case-insensitive). Nil hints means DefaultSurfaceHints.
func NewDeviceManager(hints []string) *DeviceManager {
	if len(hints) == 0 {
		hints = DefaultSurfaceHints
	}
	lower := make([]string, len(hints))
	for i, h := range hints {
		lower[i] = strings.ToLower(h)
	}
	return &DeviceManager{
		hints:       lower,
		pollRate:    time.Second,
		controllers: make(map[string]Controller),
		events:      make(chan DeviceEvent, 16),
	}
}

// Events delivers connect and disconnect notifications. It is closed
// when Run returns.
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Surface returns any connected controller, or nil
func (dm *DeviceManager) Surface() Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	for _, c := range dm.controllers {
		return c
	}
	return nil
}

// Run polls until ctx is cancelled, then closes every surface
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()
	defer close(dm.events)
	defer dm.closeAll()

	dm.scan()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

func (dm *DeviceManager) scan() {
	pl, err := ScanPorts()
	if err != nil {
		debug.LogEvery(10, "devices", "scan skipped: %v", err)
		return
	}

	seen := make(map[string]bool)
	for _, pair := range pairSurfaces(pl.InNames(), pl.OutNames(), dm.hints) {
		id := pl.In[pair.in].String()
		seen[id] = true

		dm.mu.RLock()
		_, known := dm.controllers[id]
		dm.mu.RUnlock()
		if known {
			continue
		}

		var lp *Launchpad
		if pair.out >= 0 {
			lp, err = OpenLaunchpad(id, pl.In[pair.in], pl.Out[pair.out])
		} else {
			lp, err = OpenLaunchpad(id, pl.In[pair.in], nil)
		}
		if err != nil {
			debug.Log("devices", "open %s: %v", id, err)
			continue
		}

		dm.mu.Lock()
		dm.controllers[id] = lp
		dm.mu.Unlock()
		debug.Log("devices", "connected %s", id)
		dm.emit(DeviceEvent{Type: DeviceConnected, Controller: lp, ID: id})
	}

	dm.mu.Lock()
	var gone []string
	for id, c := range dm.controllers {
		if !seen[id] {
			c.Close()
			delete(dm.controllers, id)
			gone = append(gone, id)
		}
	}
	dm.mu.Unlock()
	for _, id := range gone {
		debug.Log("devices", "disconnected %s", id)
		dm.emit(DeviceEvent{Type: DeviceDisconnected, ID: id})
	}
}

func (dm *DeviceManager) emit(ev DeviceEvent) {
	select {
	case dm.events <- ev:
	default:
		debug.Log("devices", "event dropped: %s", ev.ID)
	}
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}

type portPair struct {
	in, out int // out is -1 when the surface has no matching output
}

// pairSurfaces finds inputs matching a hint and the output with the same
// name (compared case-insensitively).
func pairSurfaces(ins, outs []string, hints []string) []portPair {
	var pairs []portPair
	for i, name := range ins {
		lname := strings.ToLower(name)
		if !matchesAny(lname, hints) {
			continue
		}
		p := portPair{in: i, out: -1}
		for j, o := range outs {
			if strings.ToLower(o) == lname {
				p.out = j
				break
			}
		}
		pairs = append(pairs, p)
	}
	return pairs
}

func matchesAny(name string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(name, h) {
			return true
		}
	}
	return false
}
