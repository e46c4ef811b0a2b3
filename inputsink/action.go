package inputsink

import "fmt"

// Action is one emission towards a sink. A batch of actions for one input
// sample ends with Sync.
type Action interface {
	action()
}

type Button uint8

const (
	ButtonPrimary Button = iota + 1
	ButtonSecondary
	// ButtonTouch is the pen tip contact.
	ButtonTouch
	// ButtonStylus is the barrel button of the pen.
	ButtonStylus
)

func (b Button) String() string {
	switch b {
	case ButtonPrimary:
		return "primary"
	case ButtonSecondary:
		return "secondary"
	case ButtonTouch:
		return "touch"
	case ButtonStylus:
		return "stylus"
	default:
		return fmt.Sprintf("button(%d)", uint8(b))
	}
}

// PointerMove is an absolute position in destination space.
type PointerMove struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// PointerDelta is relative motion.
type PointerDelta struct {
	DX int32 `json:"dx"`
	DY int32 `json:"dy"`
}

type ButtonChange struct {
	Button  Button `json:"button"`
	Pressed bool   `json:"pressed"`
}

type ToolPresence struct {
	Present bool `json:"present"`
}

type Pressure struct {
	Value int32 `json:"value"`
}

// Key forwards a key code unchanged. Value follows evdev: 0 up, 1 down,
// 2 repeat.
type Key struct {
	Code  uint16 `json:"code"`
	Value int32  `json:"value"`
}

type Sync struct{}

func (PointerMove) action()  {}
func (PointerDelta) action() {}
func (ButtonChange) action() {}
func (ToolPresence) action() {}
func (Pressure) action()     {}
func (Key) action()          {}
func (Sync) action()         {}

func (a PointerMove) String() string  { return fmt.Sprintf("move(%d,%d)", a.X, a.Y) }
func (a PointerDelta) String() string { return fmt.Sprintf("delta(%d,%d)", a.DX, a.DY) }
func (a ButtonChange) String() string {
	if a.Pressed {
		return a.Button.String() + " down"
	}
	return a.Button.String() + " up"
}
func (a ToolPresence) String() string { return fmt.Sprintf("tool(%t)", a.Present) }
func (a Pressure) String() string     { return fmt.Sprintf("pressure(%d)", a.Value) }
func (a Key) String() string          { return fmt.Sprintf("key(%d,%d)", a.Code, a.Value) }
func (Sync) String() string           { return "sync" }
