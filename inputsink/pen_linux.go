//go:build linux

package inputsink

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
	"kafji.net/penbridge/inputevent"
)

// uinput.h
const (
	uinputPath      = "/dev/uinput"
	uinputNameSize  = 80
	absCount        = 64
	uiDevCreate     = 0x5501
	uiDevDestroy    = 0x5502
	uiSetEvBit      = 0x40045564
	uiSetKeyBit     = 0x40045565
	uiSetAbsBit     = 0x40045567
	busVirtual      = 0x06
	defaultPressure = 4095
)

type inputID struct {
	BusType uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type userDev struct {
	Name       [uinputNameSize]byte
	ID         inputID
	EffectsMax uint32
	AbsMax     [absCount]int32
	AbsMin     [absCount]int32
	AbsFuzz    [absCount]int32
	AbsFlat    [absCount]int32
}

type event struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// penDevice is a uinput tablet with absolute axes in destination space.
type penDevice struct {
	fd int
}

// CreatePen registers a uinput pen whose X/Y axes span width x height.
func CreatePen(name string, width, height, maxPressure int32) (Sink, error) {
	if maxPressure <= 0 {
		maxPressure = defaultPressure
	}

	fd, err := unix.Open(uinputPath, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", uinputPath, err)
	}
	ok := false
	defer func() {
		if !ok {
			_ = unix.Close(fd)
		}
	}()

	bits := []struct {
		req   uint
		codes []uint16
	}{
		{uiSetEvBit, []uint16{inputevent.EvSyn, inputevent.EvKey, inputevent.EvAbs}},
		{uiSetKeyBit, []uint16{inputevent.BtnToolPen, inputevent.BtnTouch, inputevent.BtnStylus, inputevent.BtnLeft, inputevent.BtnRight}},
		{uiSetAbsBit, []uint16{inputevent.AbsX, inputevent.AbsY, inputevent.AbsPressure}},
	}
	for _, b := range bits {
		for _, code := range b.codes {
			if err := unix.IoctlSetInt(fd, b.req, int(code)); err != nil {
				return nil, fmt.Errorf("failed to enable event code %#x: %w", code, err)
			}
		}
	}

	dev := userDev{ID: inputID{BusType: busVirtual, Vendor: 0x1234, Product: 0x5679, Version: 1}}
	copy(dev.Name[:uinputNameSize-1], name)
	dev.AbsMax[inputevent.AbsX] = width - 1
	dev.AbsMax[inputevent.AbsY] = height - 1
	dev.AbsMax[inputevent.AbsPressure] = maxPressure

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.NativeEndian, dev); err != nil {
		return nil, fmt.Errorf("failed to encode device: %w", err)
	}
	if _, err := unix.Write(fd, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to write device: %w", err)
	}
	if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
		return nil, fmt.Errorf("failed to create uinput device: %w", err)
	}

	slog.Info("pen device created", "name", name, "width", width, "height", height)
	ok = true
	return &penDevice{fd: fd}, nil
}

func (p *penDevice) Capability() Capability {
	return CapabilityPen
}

func (p *penDevice) Emit(batch []Action) error {
	events, err := translate(batch)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	tv := unix.NsecToTimeval(time.Now().UnixNano())
	buf := new(bytes.Buffer)
	for _, ev := range events {
		e := event{Time: tv, Type: ev.Type, Code: ev.Code, Value: ev.Value}
		if err := binary.Write(buf, binary.NativeEndian, e); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	if _, err := unix.Write(p.fd, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write events: %w", err)
	}
	return nil
}

func (p *penDevice) Close() error {
	if err := unix.IoctlSetInt(p.fd, uiDevDestroy, 0); err != nil {
		slog.Warn("failed to destroy uinput device", "error", err)
	}
	return unix.Close(p.fd)
}
