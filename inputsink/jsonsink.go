package inputsink

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"kafji.net/penbridge/console"
)

// JSONSink prints every batch as one JSON line instead of driving a device.
type JSONSink struct {
	w   io.Writer
	cap Capability
	seq uint64
}

type jsonAction struct {
	Type string `json:"type"`
	Data Action `json:"data,omitempty"`
}

type jsonBatch struct {
	Seq     uint64       `json:"seq"`
	Actions []jsonAction `json:"actions"`
}

// NewJSONSink writes to w, or to the console when w is nil.
func NewJSONSink(w io.Writer, cap Capability) *JSONSink {
	if w == nil {
		w = console.Writer
	}
	if cap == 0 {
		cap = CapabilityPointer
	}
	return &JSONSink{w: w, cap: cap}
}

func (s *JSONSink) Capability() Capability {
	return s.cap
}

func (s *JSONSink) Emit(batch []Action) error {
	s.seq++
	out := jsonBatch{Seq: s.seq, Actions: make([]jsonAction, 0, len(batch))}
	for _, a := range batch {
		name, err := actionName(a)
		if err != nil {
			return err
		}
		ja := jsonAction{Type: name}
		if _, ok := a.(Sync); !ok {
			ja.Data = a
		}
		out.Actions = append(out.Actions, ja)
	}

	b, err := sonic.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}
	b = append(b, '\n')
	if _, err := s.w.Write(b); err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}
	return nil
}

func (s *JSONSink) Close() error {
	return nil
}

func actionName(a Action) (string, error) {
	switch a.(type) {
	case PointerMove:
		return "pointer_move", nil
	case PointerDelta:
		return "pointer_delta", nil
	case ButtonChange:
		return "button", nil
	case ToolPresence:
		return "tool", nil
	case Pressure:
		return "pressure", nil
	case Key:
		return "key", nil
	case Sync:
		return "sync", nil
	}
	return "", fmt.Errorf("unexpected action: %T", a)
}
