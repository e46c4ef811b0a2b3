package stylus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kafji.net/penbridge/inputevent"
	"kafji.net/penbridge/inputsink"
	"kafji.net/penbridge/mapping"
)

func testConfig() mapping.Config {
	return mapping.Config{
		SourceWidth:    15725,
		SourceHeight:   20967,
		DestWidth:      1920,
		DestHeight:     1080,
		Sensitivity:    1,
		UniformScaling: true,
	}
}

func abs(code uint16, value int32) inputevent.RawEvent {
	return inputevent.RawEvent{Type: inputevent.EvAbs, Code: code, Value: value}
}

func stylusButton(down bool) inputevent.RawEvent {
	ev := inputevent.RawEvent{Type: inputevent.EvKey, Code: inputevent.BtnStylus}
	if down {
		ev.Value = 1
	}
	return ev
}

func newMachine(t *testing.T, mode inputsink.Capability) *Machine {
	t.Helper()
	m, err := New(testConfig(), mode)
	require.NoError(t, err)
	return m
}

func press(b inputsink.Button) inputsink.Action {
	return inputsink.ButtonChange{Button: b, Pressed: true}
}

func release(b inputsink.Button) inputsink.Action {
	return inputsink.ButtonChange{Button: b, Pressed: false}
}

func TestNewRejectsBadInput(t *testing.T) {
	cfg := testConfig()
	cfg.Sensitivity = 0
	_, err := New(cfg, inputsink.CapabilityPointer)
	assert.ErrorIs(t, err, mapping.ErrMalformedConfig)

	_, err = New(testConfig(), inputsink.CapabilityKeyboard)
	assert.Error(t, err)
}

func TestPointerTapWithPrimaryButton(t *testing.T) {
	m := newMachine(t, inputsink.CapabilityPointer)

	assert.Equal(t, []inputsink.Action{inputsink.Sync{}}, m.Handle(abs(inputevent.AbsX, 100)))
	assert.Equal(t, []inputsink.Action{
		inputsink.PointerDelta{DX: 0, DY: 10},
		inputsink.Sync{},
	}, m.Handle(abs(inputevent.AbsY, 200)))
	assert.Equal(t, []inputsink.Action{
		press(inputsink.ButtonPrimary),
		inputsink.Sync{},
	}, m.Handle(abs(inputevent.AbsPressure, 50)))
	assert.Equal(t, []inputsink.Action{
		release(inputsink.ButtonPrimary),
		inputsink.Sync{},
	}, m.Handle(abs(inputevent.AbsPressure, 0)))

	assert.Nil(t, m.Flush())
}

func TestPointerTouchDownWithStylusButtonPressesSecondary(t *testing.T) {
	m := newMachine(t, inputsink.CapabilityPointer)

	assert.Equal(t, []inputsink.Action{inputsink.Sync{}}, m.Handle(stylusButton(true)))
	assert.Equal(t, []inputsink.Action{
		press(inputsink.ButtonSecondary),
		inputsink.Sync{},
	}, m.Handle(abs(inputevent.AbsPressure, 10)))
	assert.Equal(t, []inputsink.Action{
		release(inputsink.ButtonSecondary),
		inputsink.Sync{},
	}, m.Handle(abs(inputevent.AbsPressure, 0)))
}

func TestPointerButtonFlipWhileDragging(t *testing.T) {
	m := newMachine(t, inputsink.CapabilityPointer)

	m.Handle(abs(inputevent.AbsPressure, 10))
	assert.Equal(t, []inputsink.Action{
		release(inputsink.ButtonPrimary),
		press(inputsink.ButtonSecondary),
		inputsink.Sync{},
	}, m.Handle(stylusButton(true)))

	// releasing the stylus button while still down flips back
	assert.Equal(t, []inputsink.Action{
		release(inputsink.ButtonSecondary),
		press(inputsink.ButtonPrimary),
		inputsink.Sync{},
	}, m.Handle(stylusButton(false)))

	m.Handle(stylusButton(true))
	assert.Equal(t, []inputsink.Action{
		release(inputsink.ButtonSecondary),
		inputsink.Sync{},
	}, m.Handle(abs(inputevent.AbsPressure, 0)))
}

func TestPointerTouchUpReleasesHeldButtonOnly(t *testing.T) {
	m := newMachine(t, inputsink.CapabilityPointer)

	m.Handle(abs(inputevent.AbsPressure, 10))
	m.Handle(stylusButton(true))
	m.Handle(stylusButton(false))

	batch := m.Handle(abs(inputevent.AbsPressure, 0))
	assert.Equal(t, []inputsink.Action{release(inputsink.ButtonPrimary), inputsink.Sync{}}, batch)
	assert.NotContains(t, batch, release(inputsink.ButtonSecondary))
}

func TestPointerButtonEdgesWhileHoveringEmitNothing(t *testing.T) {
	m := newMachine(t, inputsink.CapabilityPointer)

	assert.Equal(t, []inputsink.Action{inputsink.Sync{}}, m.Handle(stylusButton(true)))
	assert.Equal(t, []inputsink.Action{inputsink.Sync{}}, m.Handle(stylusButton(false)))
	assert.Equal(t, []inputsink.Action{inputsink.Sync{}}, m.Handle(stylusButton(true)))
	assert.Nil(t, m.Flush())
}

func TestPointerMovesWhileHovering(t *testing.T) {
	m := newMachine(t, inputsink.CapabilityPointer)

	m.Handle(abs(inputevent.AbsX, 0))
	batch := m.Handle(abs(inputevent.AbsX, 2000))
	require.Len(t, batch, 2)
	delta, ok := batch[0].(inputsink.PointerDelta)
	require.True(t, ok)
	assert.Equal(t, int32(103), delta.DX)
	assert.Zero(t, delta.DY)
}

func TestPointerFlushReleasesHeldButton(t *testing.T) {
	m := newMachine(t, inputsink.CapabilityPointer)

	m.Handle(stylusButton(true))
	m.Handle(abs(inputevent.AbsPressure, 10))

	assert.Equal(t, []inputsink.Action{release(inputsink.ButtonSecondary), inputsink.Sync{}}, m.Flush())
	assert.Nil(t, m.Flush())
}

func TestPenHoverAssertsPresenceWithoutContact(t *testing.T) {
	m := newMachine(t, inputsink.CapabilityPen)

	assert.Equal(t, []inputsink.Action{
		inputsink.ToolPresence{Present: true},
		inputsink.PointerMove{X: 5, Y: 0},
		inputsink.Pressure{Value: 0},
		inputsink.Sync{},
	}, m.Handle(abs(inputevent.AbsX, 100)))
}

func TestPenTouchEdges(t *testing.T) {
	m := newMachine(t, inputsink.CapabilityPen)

	batch := m.Handle(abs(inputevent.AbsPressure, 30))
	assert.Equal(t, []inputsink.Action{
		inputsink.ToolPresence{Present: true},
		inputsink.PointerMove{X: 0, Y: 0},
		inputsink.Pressure{Value: 30},
		press(inputsink.ButtonTouch),
		inputsink.Sync{},
	}, batch)

	batch = m.Handle(abs(inputevent.AbsPressure, 40))
	assert.NotContains(t, batch, press(inputsink.ButtonTouch))
	assert.Contains(t, batch, inputsink.Pressure{Value: 40})

	batch = m.Handle(abs(inputevent.AbsPressure, 0))
	assert.Contains(t, batch, release(inputsink.ButtonTouch))
}

func TestPenStylusButtonOnlyOnEdges(t *testing.T) {
	m := newMachine(t, inputsink.CapabilityPen)

	assert.Contains(t, m.Handle(stylusButton(true)), press(inputsink.ButtonStylus))
	assert.NotContains(t, m.Handle(abs(inputevent.AbsX, 10)), press(inputsink.ButtonStylus))
	assert.NotContains(t, m.Handle(stylusButton(true)), press(inputsink.ButtonStylus))
	assert.Contains(t, m.Handle(stylusButton(false)), release(inputsink.ButtonStylus))
}

func TestPenFlushWithdrawsPresence(t *testing.T) {
	m := newMachine(t, inputsink.CapabilityPen)

	m.Handle(abs(inputevent.AbsPressure, 30))
	assert.Equal(t, []inputsink.Action{
		inputsink.Pressure{Value: 0},
		release(inputsink.ButtonTouch),
		inputsink.ToolPresence{Present: false},
		inputsink.Sync{},
	}, m.Flush())
	assert.Nil(t, m.Flush())
}

func TestPenFlushBeforeAnySample(t *testing.T) {
	m := newMachine(t, inputsink.CapabilityPen)
	assert.Nil(t, m.Flush())
}

func TestUntrackedRecordsAreIgnored(t *testing.T) {
	for _, mode := range []inputsink.Capability{inputsink.CapabilityPen, inputsink.CapabilityPointer} {
		m := newMachine(t, mode)
		assert.Nil(t, m.Handle(inputevent.RawEvent{Type: inputevent.EvSyn, Code: inputevent.SynReport}))
		assert.Nil(t, m.Handle(abs(0x19, 12)))
		assert.Nil(t, m.Handle(inputevent.RawEvent{Type: inputevent.EvKey, Code: inputevent.BtnTouch, Value: 1}))
		assert.Nil(t, m.Handle(inputevent.RawEvent{Type: 0x15, Code: 0, Value: 1}))
	}
}

func TestFlushStartsSampleOver(t *testing.T) {
	m := newMachine(t, inputsink.CapabilityPointer)
	m.Handle(abs(inputevent.AbsX, 1000))
	m.Handle(abs(inputevent.AbsY, 1000))
	m.Handle(abs(inputevent.AbsX, 5000))
	m.Flush()

	// the first sample after a flush only seeds the accumulator
	assert.Equal(t, []inputsink.Action{inputsink.Sync{}}, m.Handle(abs(inputevent.AbsX, 9000)))

	p := newMachine(t, inputsink.CapabilityPen)
	p.Handle(abs(inputevent.AbsY, 20000))
	p.Flush()
	assert.Equal(t, []inputsink.Action{
		inputsink.ToolPresence{Present: true},
		inputsink.PointerMove{X: 5, Y: 0},
		inputsink.Pressure{Value: 0},
		inputsink.Sync{},
	}, p.Handle(abs(inputevent.AbsX, 100)))
}
