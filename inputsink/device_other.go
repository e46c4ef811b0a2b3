//go:build !linux

package inputsink

import "errors"

var errNoUinput = errors.New("uinput is only available on linux")

func CreatePen(string, int32, int32, int32) (Sink, error) { return nil, errNoUinput }

func CreatePointer(string) (Sink, error) { return nil, errNoUinput }

func CreateKeyboard(string) (Sink, error) { return nil, errNoUinput }
