// Package stylus turns decoded tablet records into ordered output batches.
package stylus

import (
	"fmt"

	"kafji.net/penbridge/inputevent"
	"kafji.net/penbridge/inputsink"
	"kafji.net/penbridge/logging"
	"kafji.net/penbridge/mapping"
)

var slog = logging.New("penbridge/stylus")

// Machine holds the live stylus sample and the edge state of the previous
// evaluation. It is owned by a single goroutine.
type Machine struct {
	cfg  mapping.Config
	mode inputsink.Capability
	acc  *mapping.Accumulator

	x, y     int32
	pressure int32
	button   bool

	wasTouching bool
	wasButton   bool

	// held is the pointer button currently pressed, zero when none.
	held inputsink.Button
	// present is true once tool presence has been asserted.
	present bool
}

// New returns a machine for a sink with the given capability. Only pen and
// pointer are accepted.
func New(cfg mapping.Config, mode inputsink.Capability) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if mode != inputsink.CapabilityPen && mode != inputsink.CapabilityPointer {
		return nil, fmt.Errorf("stylus cannot drive a %v sink", mode)
	}
	return &Machine{cfg: cfg, mode: mode, acc: mapping.NewAccumulator()}, nil
}

func (m *Machine) Mode() inputsink.Capability {
	return m.mode
}

// Handle updates the sample with one record and returns the batch for it,
// terminated by Sync. Records the machine does not track return nil.
func (m *Machine) Handle(ev inputevent.RawEvent) []inputsink.Action {
	switch ev.Kind() {
	case inputevent.KindAbsoluteAxis:
		switch ev.Code {
		case inputevent.AbsX:
			m.x = ev.Value
		case inputevent.AbsY:
			m.y = ev.Value
		case inputevent.AbsPressure:
			m.pressure = ev.Value
		default:
			return nil
		}

	case inputevent.KindKey:
		if ev.Code != inputevent.BtnStylus {
			return nil
		}
		m.button = ev.Value != 0

	default:
		return nil
	}

	var batch []inputsink.Action
	if m.mode == inputsink.CapabilityPen {
		batch = m.evaluatePen()
	} else {
		batch = m.evaluatePointer()
	}

	m.wasTouching = m.touching()
	m.wasButton = m.button
	return batch
}

func (m *Machine) touching() bool {
	return m.pressure > 0
}

func (m *Machine) evaluatePen() []inputsink.Action {
	x, y := mapping.Map(m.x, m.y, m.cfg)
	batch := []inputsink.Action{
		inputsink.ToolPresence{Present: true},
		inputsink.PointerMove{X: x, Y: y},
		inputsink.Pressure{Value: m.pressure},
	}
	m.present = true

	if touching := m.touching(); touching != m.wasTouching {
		slog.Trace("touch edge", "touching", touching)
		batch = append(batch, inputsink.ButtonChange{Button: inputsink.ButtonTouch, Pressed: touching})
	}
	if m.button != m.wasButton {
		batch = append(batch, inputsink.ButtonChange{Button: inputsink.ButtonStylus, Pressed: m.button})
	}
	return append(batch, inputsink.Sync{})
}

func (m *Machine) evaluatePointer() []inputsink.Action {
	var batch []inputsink.Action

	dx, dy := m.acc.Advance(m.x, m.y, m.cfg)
	if dx != 0 || dy != 0 {
		batch = append(batch, inputsink.PointerDelta{DX: dx, DY: dy})
	}

	touching := m.touching()
	switch {
	case touching && !m.wasTouching:
		b := m.selected()
		slog.Trace("touch down", "button", b)
		batch = append(batch, inputsink.ButtonChange{Button: b, Pressed: true})
		m.held = b

	case !touching && m.wasTouching:
		if m.held != 0 {
			slog.Trace("touch up", "button", m.held)
			batch = append(batch, inputsink.ButtonChange{Button: m.held, Pressed: false})
			m.held = 0
		}

	case touching && m.button != m.wasButton:
		// switch buttons mid drag, release first
		if b := m.selected(); m.held != 0 && m.held != b {
			batch = append(batch,
				inputsink.ButtonChange{Button: m.held, Pressed: false},
				inputsink.ButtonChange{Button: b, Pressed: true},
			)
			m.held = b
		}
	}

	return append(batch, inputsink.Sync{})
}

func (m *Machine) selected() inputsink.Button {
	if m.button {
		return inputsink.ButtonSecondary
	}
	return inputsink.ButtonPrimary
}

// Flush releases whatever the machine left pressed and withdraws tool
// presence. It returns nil when there is nothing to undo. The sample and the
// accumulator start over, so the machine can serve a new connection.
func (m *Machine) Flush() []inputsink.Action {
	var batch []inputsink.Action

	if m.mode == inputsink.CapabilityPen {
		if m.wasTouching {
			batch = append(batch,
				inputsink.Pressure{Value: 0},
				inputsink.ButtonChange{Button: inputsink.ButtonTouch, Pressed: false},
			)
		}
		if m.wasButton {
			batch = append(batch, inputsink.ButtonChange{Button: inputsink.ButtonStylus, Pressed: false})
		}
		if m.present {
			batch = append(batch, inputsink.ToolPresence{Present: false})
		}
	} else if m.held != 0 {
		batch = append(batch, inputsink.ButtonChange{Button: m.held, Pressed: false})
	}

	m.x, m.y = 0, 0
	m.pressure = 0
	m.button = false
	m.wasTouching = false
	m.wasButton = false
	m.held = 0
	m.present = false
	m.acc.Reset()

	if len(batch) == 0 {
		return nil
	}
	slog.Debug("flushed held state", "actions", len(batch))
	return append(batch, inputsink.Sync{})
}
