package midi

// ControllerType identifies the kind of control surface
type ControllerType int

const (
	ControllerUnknown ControllerType = iota
	ControllerLaunchpad
)

func (t ControllerType) String() string {
	if t == ControllerLaunchpad {
		return "launchpad"
	}
	return "unknown"
}

// PadEvent is sent when a pad or edge button is pressed. Row 0 is the
// bottom of the grid, row 8 the top button strip, col 8 the side strip.
type PadEvent struct {
	Row, Col int
	Velocity uint8
}

// LEDUpdate sets one pad to an RGB colour in a given light mode
type LEDUpdate struct {
	Row, Col int
	Color    [3]uint8
	Channel  uint8
}

// Controller is a grid surface with lights
type Controller interface {
	ID() string
	Type() ControllerType

	PadEvents() <-chan PadEvent

	SetLEDBatch(updates []LEDUpdate) error
	ClearLEDs() error

	Close() error
}

// Light modes, sent as the MIDI channel of the LED message
const (
	ChannelStatic uint8 = 0
	ChannelFlash  uint8 = 1
	ChannelPulse  uint8 = 2
)

// Grid geometry. The top strip is GridSize and the side strip is column
// GridSize; (GridSize, GridSize) has no pad.
const GridSize = 8
