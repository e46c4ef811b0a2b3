package inputsink

import (
	"errors"
	"fmt"

	"kafji.net/penbridge/logging"
)

var slog = logging.New("penbridge/inputsink")

var ErrUnknownSink = errors.New("unknown sink")

// Capability is what a sink can represent, decided once when it is opened.
type Capability uint8

const (
	// CapabilityPointer accepts relative motion and buttons only.
	CapabilityPointer Capability = iota + 1
	// CapabilityPen accepts absolute position, pressure and tool presence.
	CapabilityPen
	// CapabilityKeyboard accepts key codes.
	CapabilityKeyboard
)

func (c Capability) String() string {
	switch c {
	case CapabilityPointer:
		return "pointer"
	case CapabilityPen:
		return "pen"
	case CapabilityKeyboard:
		return "keyboard"
	default:
		return fmt.Sprintf("capability(%d)", uint8(c))
	}
}

func ParseCapability(s string) (Capability, error) {
	switch s {
	case "pointer", "mouse", "":
		return CapabilityPointer, nil
	case "pen", "stylus":
		return CapabilityPen, nil
	case "keyboard":
		return CapabilityKeyboard, nil
	}
	return 0, fmt.Errorf("unknown output mode %q", s)
}

// Sink applies batches of actions in order. A batch is terminated by Sync
// and batches never interleave.
type Sink interface {
	Emit(batch []Action) error
	Capability() Capability
	Close() error
}

type Options struct {
	// Kind is "uinput" or "dry-run".
	Kind string
	// Want is the preferred capability; pen falls back to pointer when the
	// pen device cannot be created.
	Want Capability
	Name string

	// Extents of the absolute axes of a pen device.
	Width, Height int32
	MaxPressure   int32
}

// Open creates the sink described by opts. The returned sink reports the
// capability it actually obtained.
func Open(opts Options) (Sink, error) {
	if opts.Name == "" {
		opts.Name = "penbridge"
	}
	switch opts.Kind {
	case "dry-run":
		return NewJSONSink(nil, opts.Want), nil
	case "uinput", "":
		return openDevice(opts)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSink, opts.Kind)
}

func openDevice(opts Options) (Sink, error) {
	switch opts.Want {
	case CapabilityKeyboard:
		return CreateKeyboard(opts.Name + " Keyboard")

	case CapabilityPen:
		pen, err := CreatePen(opts.Name+" Pen", opts.Width, opts.Height, opts.MaxPressure)
		if err == nil {
			return pen, nil
		}
		slog.Warn("failed to create pen device, falling back to pointer", "error", err)
		fallthrough

	default:
		return CreatePointer(opts.Name + " Mouse")
	}
}
