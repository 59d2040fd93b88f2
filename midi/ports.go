package midi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

var (
	ErrPortTimeout = errors.New("midi port scan timed out")
	ErrPortMissing = errors.New("midi port not found")
)

// Port enumeration can hang when the system MIDI service is wedged
const scanTimeout = 3 * time.Second

// PortList is one snapshot of the system's MIDI ports
type PortList struct {
	In  []drivers.In
	Out []drivers.Out
}

// InNames returns the input port names in driver order
func (p PortList) InNames() []string {
	names := make([]string, len(p.In))
	for i, in := range p.In {
		names[i] = in.String()
	}
	return names
}

// OutNames returns the output port names in driver order
func (p PortList) OutNames() []string {
	names := make([]string, len(p.Out))
	for i, out := range p.Out {
		names[i] = out.String()
	}
	return names
}

// ScanPorts lists MIDI ports, giving up after a few seconds
func ScanPorts() (PortList, error) {
	ch := make(chan PortList, 1)
	go func() {
		ch <- PortList{In: gomidi.GetInPorts(), Out: gomidi.GetOutPorts()}
	}()
	select {
	case pl := <-ch:
		return pl, nil
	case <-time.After(scanTimeout):
		return PortList{}, ErrPortTimeout
	}
}

// FindOut returns the output port called name. An exact match wins,
// otherwise the first case-insensitive substring match. An empty name
// picks the first port.
func FindOut(name string) (drivers.Out, error) {
	pl, err := ScanPorts()
	if err != nil {
		return nil, err
	}
	i := matchPort(pl.OutNames(), name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrPortMissing, name)
	}
	return pl.Out[i], nil
}

func matchPort(names []string, want string) int {
	if len(names) == 0 {
		return -1
	}
	if want == "" {
		return 0
	}
	for i, n := range names {
		if n == want {
			return i
		}
	}
	lw := strings.ToLower(want)
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), lw) {
			return i
		}
	}
	return -1
}

// CloseDriver releases the MIDI driver. Call once at exit.
func CloseDriver() {
	gomidi.CloseDriver()
}
