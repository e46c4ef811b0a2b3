// Package recording captures decoded records to a CBOR file and plays them
// back as a raw record stream.
package recording

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"kafji.net/penbridge/inputevent"
	"kafji.net/penbridge/inputsink"
	"kafji.net/penbridge/logging"
	"kafji.net/penbridge/pump"
)

var slog = logging.New("penbridge/recording")

const FormatVersion = 1

var ErrBadHeader = errors.New("not a penbridge recording")

type Header struct {
	Magic   string    `cbor:"1,keyasint"`
	Version int       `cbor:"2,keyasint"`
	Started time.Time `cbor:"3,keyasint"`
}

// Entry is one record with its offset from the start of the capture.
type Entry struct {
	Offset time.Duration       `cbor:"1,keyasint"`
	Event  inputevent.RawEvent `cbor:"2,keyasint"`
}

const magic = "penbridge"

type Writer struct {
	enc   *cbor.Encoder
	start time.Time
	now   func() time.Time
}

// NewWriter writes the header immediately.
func NewWriter(w io.Writer) (*Writer, error) {
	return newWriter(w, time.Now)
}

func newWriter(w io.Writer, now func() time.Time) (*Writer, error) {
	rw := &Writer{enc: cbor.NewEncoder(w), start: now(), now: now}
	h := Header{Magic: magic, Version: FormatVersion, Started: rw.start}
	if err := rw.enc.Encode(&h); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return rw, nil
}

func (w *Writer) Write(ev inputevent.RawEvent) error {
	e := Entry{Offset: w.now().Sub(w.start), Event: ev}
	if err := w.enc.Encode(&e); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	return nil
}

type Reader struct {
	dec    *cbor.Decoder
	Header Header
}

func NewReader(r io.Reader) (*Reader, error) {
	dec := cbor.NewDecoder(r)
	var h Header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadHeader, err)
	}
	if h.Magic != magic {
		return nil, ErrBadHeader
	}
	if h.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported recording version %d", h.Version)
	}
	return &Reader{dec: dec, Header: h}, nil
}

// Next returns io.EOF after the last entry.
func (r *Reader) Next() (Entry, error) {
	var e Entry
	if err := r.dec.Decode(&e); err != nil {
		if errors.Is(err, io.EOF) {
			return Entry{}, io.EOF
		}
		return Entry{}, fmt.Errorf("failed to read entry: %w", err)
	}
	return e, nil
}

// Tee records every record before passing it on.
type Tee struct {
	next pump.Handler
	w    *Writer
	// failed stops recording after the first write error. The session
	// keeps running.
	failed bool
}

func NewTee(next pump.Handler, w *Writer) *Tee {
	return &Tee{next: next, w: w}
}

func (t *Tee) Handle(ev inputevent.RawEvent) []inputsink.Action {
	if !t.failed {
		if err := t.w.Write(ev); err != nil {
			slog.Error("recording stopped", "error", err)
			t.failed = true
		}
	}
	return t.next.Handle(ev)
}

func (t *Tee) Flush() []inputsink.Action {
	return t.next.Flush()
}

// Replay returns the records of a capture as a raw stream of recordSize
// records. With realtime the original pacing is kept.
func Replay(src io.Reader, recordSize int, realtime bool) (io.ReadCloser, error) {
	r, err := NewReader(src)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(replay(r, pw, recordSize, realtime))
	}()
	return pr, nil
}

func replay(r *Reader, w io.Writer, recordSize int, realtime bool) error {
	start := time.Now()
	n := 0
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			slog.Debug("replay finished", "records", n)
			return nil
		}
		if err != nil {
			return err
		}
		if realtime {
			if d := e.Offset - time.Since(start); d > 0 {
				time.Sleep(d)
			}
		}
		if _, err := w.Write(inputevent.Encode(e.Event, recordSize)); err != nil {
			return err
		}
		n++
	}
}
