package pump

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kafji.net/penbridge/inputevent"
	"kafji.net/penbridge/inputsink"
	"kafji.net/penbridge/mapping"
	"kafji.net/penbridge/stylus"
)

type recordingSink struct {
	mu      sync.Mutex
	batches [][]inputsink.Action
	err     error
}

func (s *recordingSink) Emit(batch []inputsink.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, batch)
	return nil
}

func (s *recordingSink) Batches() [][]inputsink.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]inputsink.Action(nil), s.batches...)
}

func machine(t *testing.T, mode inputsink.Capability) *stylus.Machine {
	t.Helper()
	m, err := stylus.New(mapping.Config{
		SourceWidth:    15725,
		SourceHeight:   20967,
		DestWidth:      1920,
		DestHeight:     1080,
		Sensitivity:    1,
		UniformScaling: true,
	}, mode)
	require.NoError(t, err)
	return m
}

func stream(events ...inputevent.RawEvent) []byte {
	var b []byte
	for _, ev := range events {
		b = append(b, inputevent.Encode(ev, inputevent.RecordSize)...)
	}
	return b
}

func abs(code uint16, value int32) inputevent.RawEvent {
	return inputevent.RawEvent{Type: inputevent.EvAbs, Code: code, Value: value}
}

var testConfig = Config{WaitTimeout: 10 * time.Millisecond}

func TestRunPointerTap(t *testing.T) {
	src := bytes.NewReader(stream(
		abs(inputevent.AbsX, 100),
		inputevent.RawEvent{Type: inputevent.EvSyn},
		abs(inputevent.AbsY, 200),
		abs(inputevent.AbsPressure, 50),
		abs(inputevent.AbsPressure, 0),
	))
	sink := &recordingSink{}

	err := New(src, machine(t, inputsink.CapabilityPointer), sink, testConfig).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, [][]inputsink.Action{
		{inputsink.Sync{}},
		{inputsink.PointerDelta{DX: 0, DY: 10}, inputsink.Sync{}},
		{inputsink.ButtonChange{Button: inputsink.ButtonPrimary, Pressed: true}, inputsink.Sync{}},
		{inputsink.ButtonChange{Button: inputsink.ButtonPrimary, Pressed: false}, inputsink.Sync{}},
	}, sink.Batches())
}

func TestRunEndOfStreamReleasesHeldButton(t *testing.T) {
	src := bytes.NewReader(stream(
		abs(inputevent.AbsX, 100),
		abs(inputevent.AbsPressure, 50),
	))
	sink := &recordingSink{}

	err := New(src, machine(t, inputsink.CapabilityPointer), sink, testConfig).Run(context.Background())
	require.NoError(t, err)

	batches := sink.Batches()
	require.NotEmpty(t, batches)
	assert.Equal(t, []inputsink.Action{
		inputsink.ButtonChange{Button: inputsink.ButtonPrimary, Pressed: false},
		inputsink.Sync{},
	}, batches[len(batches)-1])
}

func TestRunPenHover(t *testing.T) {
	src := bytes.NewReader(stream(abs(inputevent.AbsX, 100)))
	sink := &recordingSink{}

	err := New(src, machine(t, inputsink.CapabilityPen), sink, testConfig).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, [][]inputsink.Action{
		{
			inputsink.ToolPresence{Present: true},
			inputsink.PointerMove{X: 5, Y: 0},
			inputsink.Pressure{Value: 0},
			inputsink.Sync{},
		},
		{inputsink.ToolPresence{Present: false}, inputsink.Sync{}},
	}, sink.Batches())
}

func TestRunSurvivesWaitTimeouts(t *testing.T) {
	r, w := io.Pipe()
	go func() {
		data := stream(abs(inputevent.AbsX, 100), abs(inputevent.AbsPressure, 50), abs(inputevent.AbsPressure, 0))
		// split a record across writes with pauses longer than the wait
		for _, part := range [][]byte{data[:10], data[10:20], data[20:]} {
			time.Sleep(30 * time.Millisecond)
			_, _ = w.Write(part)
		}
		_ = w.Close()
	}()
	sink := &recordingSink{}

	err := New(r, machine(t, inputsink.CapabilityPointer), sink, testConfig).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, sink.Batches(), 3)
}

type faultyReader struct {
	data []byte
	err  error
}

func (r *faultyReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestRunTransportFault(t *testing.T) {
	cause := errors.New("connection reset")
	src := &faultyReader{data: stream(abs(inputevent.AbsPressure, 50)), err: cause}
	sink := &recordingSink{}

	err := New(src, machine(t, inputsink.CapabilityPointer), sink, testConfig).Run(context.Background())
	assert.ErrorIs(t, err, ErrTransportFault)
	assert.ErrorIs(t, err, cause)

	batches := sink.Batches()
	require.Len(t, batches, 2)
	assert.Equal(t, inputsink.ButtonChange{Button: inputsink.ButtonPrimary, Pressed: false}, batches[1][0])
}

type stalledReader struct {
	reads int
}

func (r *stalledReader) Read([]byte) (int, error) {
	r.reads++
	return 0, nil
}

func TestRunFailsOnReaderWithoutProgress(t *testing.T) {
	src := &stalledReader{}
	sink := &recordingSink{}

	err := New(src, machine(t, inputsink.CapabilityPointer), sink, testConfig).Run(context.Background())
	assert.ErrorIs(t, err, ErrTransportFault)
	assert.ErrorIs(t, err, io.ErrNoProgress)
	assert.Equal(t, maxEmptyReads, src.reads)
}

func TestRunSinkFault(t *testing.T) {
	cause := errors.New("device gone")
	src := bytes.NewReader(stream(abs(inputevent.AbsX, 1)))
	sink := &recordingSink{err: cause}

	err := New(src, machine(t, inputsink.CapabilityPointer), sink, testConfig).Run(context.Background())
	assert.ErrorIs(t, err, ErrSinkFault)
	assert.ErrorIs(t, err, cause)
}

func TestRunCancellationFlushes(t *testing.T) {
	r, w := io.Pipe()
	defer r.Close()
	go func() {
		_, _ = w.Write(stream(abs(inputevent.AbsPressure, 50)))
	}()
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())

	result := make(chan error, 1)
	go func() {
		result <- New(r, machine(t, inputsink.CapabilityPointer), sink, testConfig).Run(ctx)
	}()

	require.Eventually(t, func() bool { return len(sink.Batches()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("pump did not observe cancellation")
	}

	batches := sink.Batches()
	require.Len(t, batches, 2)
	assert.Equal(t, []inputsink.Action{
		inputsink.ButtonChange{Button: inputsink.ButtonPrimary, Pressed: false},
		inputsink.Sync{},
	}, batches[1])
}

func TestRunLargeRecordLayout(t *testing.T) {
	var data []byte
	for _, ev := range []inputevent.RawEvent{abs(inputevent.AbsX, 100), abs(inputevent.AbsPressure, 5)} {
		data = append(data, inputevent.Encode(ev, inputevent.RecordSize64)...)
	}
	sink := &recordingSink{}
	cfg := testConfig
	cfg.RecordSize = inputevent.RecordSize64

	err := New(bytes.NewReader(data), machine(t, inputsink.CapabilityPointer), sink, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, sink.Batches(), 3)
}
