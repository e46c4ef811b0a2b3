//go:build linux

package inputsink

import (
	"fmt"

	"github.com/holoplot/go-evdev"
	"kafji.net/penbridge/inputevent"
)

var virtualID = evdev.InputID{
	BusType: busVirtual,
	Vendor:  0x1234,
	Product: 0x5678,
	Version: 1,
}

// evdevDevice writes batches to a uinput device created through go-evdev.
type evdevDevice struct {
	dev *evdev.InputDevice
	cap Capability
}

// CreatePointer registers a relative pointer with primary, secondary and
// middle buttons.
func CreatePointer(name string) (Sink, error) {
	dev, err := evdev.CreateDevice(name, virtualID, map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: {evdev.BTN_LEFT, evdev.BTN_RIGHT, evdev.BTN_MIDDLE},
		evdev.EV_REL: {evdev.REL_X, evdev.REL_Y, evdev.REL_WHEEL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pointer device: %w", err)
	}
	slog.Info("pointer device created", "name", name)
	return &evdevDevice{dev: dev, cap: CapabilityPointer}, nil
}

// CreateKeyboard registers a keyboard accepting every key code.
func CreateKeyboard(name string) (Sink, error) {
	keys := make([]evdev.EvCode, 0, inputevent.KeyMax)
	for c := inputevent.KeyEsc; c <= inputevent.KeyMax; c++ {
		keys = append(keys, evdev.EvCode(c))
	}
	dev, err := evdev.CreateDevice(name, virtualID, map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: keys,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create keyboard device: %w", err)
	}
	slog.Info("keyboard device created", "name", name)
	return &evdevDevice{dev: dev, cap: CapabilityKeyboard}, nil
}

func (d *evdevDevice) Capability() Capability {
	return d.cap
}

func (d *evdevDevice) Emit(batch []Action) error {
	events, err := translate(batch)
	if err != nil {
		return err
	}
	for _, ev := range events {
		err := d.dev.WriteOne(&evdev.InputEvent{
			Type:  evdev.EvType(ev.Type),
			Code:  evdev.EvCode(ev.Code),
			Value: ev.Value,
		})
		if err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
	}
	return nil
}

func (d *evdevDevice) Close() error {
	return d.dev.Close()
}
