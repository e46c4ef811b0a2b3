// Package keyboard forwards the tablet's keyboard key codes unchanged.
package keyboard

import (
	"slices"

	"kafji.net/penbridge/inputevent"
	"kafji.net/penbridge/inputsink"
)

type Handler struct {
	held map[uint16]struct{}
}

func New() *Handler {
	return &Handler{held: map[uint16]struct{}{}}
}

func (h *Handler) Handle(ev inputevent.RawEvent) []inputsink.Action {
	if ev.Kind() != inputevent.KindKey {
		return nil
	}
	if ev.Value == 0 {
		delete(h.held, ev.Code)
	} else {
		h.held[ev.Code] = struct{}{}
	}
	return []inputsink.Action{inputsink.Key{Code: ev.Code, Value: ev.Value}, inputsink.Sync{}}
}

// Flush releases keys still down, lowest code first.
func (h *Handler) Flush() []inputsink.Action {
	if len(h.held) == 0 {
		return nil
	}
	codes := make([]uint16, 0, len(h.held))
	for c := range h.held {
		codes = append(codes, c)
	}
	slices.Sort(codes)

	batch := make([]inputsink.Action, 0, len(codes)+1)
	for _, c := range codes {
		batch = append(batch, inputsink.Key{Code: c, Value: 0})
	}
	clear(h.held)
	return append(batch, inputsink.Sync{})
}
