package inputsink

import (
	"fmt"

	"kafji.net/penbridge/inputevent"
)

var buttonCodes = map[Button]uint16{
	ButtonPrimary:   inputevent.BtnLeft,
	ButtonSecondary: inputevent.BtnRight,
	ButtonTouch:     inputevent.BtnTouch,
	ButtonStylus:    inputevent.BtnStylus,
}

// translate maps a batch onto evdev records in batch order.
func translate(batch []Action) ([]inputevent.RawEvent, error) {
	events := make([]inputevent.RawEvent, 0, len(batch)+1)
	for _, a := range batch {
		switch v := a.(type) {
		case PointerMove:
			events = append(events,
				inputevent.RawEvent{Type: inputevent.EvAbs, Code: inputevent.AbsX, Value: v.X},
				inputevent.RawEvent{Type: inputevent.EvAbs, Code: inputevent.AbsY, Value: v.Y},
			)

		case PointerDelta:
			if v.DX != 0 {
				events = append(events, inputevent.RawEvent{Type: inputevent.EvRel, Code: inputevent.RelX, Value: v.DX})
			}
			if v.DY != 0 {
				events = append(events, inputevent.RawEvent{Type: inputevent.EvRel, Code: inputevent.RelY, Value: v.DY})
			}

		case ButtonChange:
			code, ok := buttonCodes[v.Button]
			if !ok {
				return nil, fmt.Errorf("unexpected button: %v", v.Button)
			}
			events = append(events, inputevent.RawEvent{Type: inputevent.EvKey, Code: code, Value: boolValue(v.Pressed)})

		case ToolPresence:
			events = append(events, inputevent.RawEvent{Type: inputevent.EvKey, Code: inputevent.BtnToolPen, Value: boolValue(v.Present)})

		case Pressure:
			events = append(events, inputevent.RawEvent{Type: inputevent.EvAbs, Code: inputevent.AbsPressure, Value: v.Value})

		case Key:
			events = append(events, inputevent.RawEvent{Type: inputevent.EvKey, Code: v.Code, Value: v.Value})

		case Sync:
			events = append(events, inputevent.RawEvent{Type: inputevent.EvSyn, Code: inputevent.SynReport})

		default:
			return nil, fmt.Errorf("unexpected action: %T", a)
		}
	}
	return events, nil
}

func boolValue(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
