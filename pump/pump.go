// Package pump drives one bridge session: it reads bytes from a transport,
// decodes records and hands them one at a time to a handler whose output
// batches go to a sink.
package pump

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"kafji.net/penbridge/inputevent"
	"kafji.net/penbridge/inputsink"
	"kafji.net/penbridge/logging"
)

var slog = logging.New("penbridge/pump")

var (
	ErrTransportFault = errors.New("transport fault")
	ErrSinkFault      = errors.New("sink fault")
)

const (
	DefaultWaitTimeout = time.Second
	DefaultChunkSize   = inputevent.RecordSize * 64

	maxEmptyReads = 100
)

// Handler turns records into output batches. Flush returns the batch that
// undoes any state the handler left asserted.
type Handler interface {
	Handle(ev inputevent.RawEvent) []inputsink.Action
	Flush() []inputsink.Action
}

type Emitter interface {
	Emit(batch []inputsink.Action) error
}

type Config struct {
	// ChunkSize is the largest read from the transport.
	ChunkSize int
	// WaitTimeout bounds the wait for the next chunk. An expired wait is
	// not an error, the pump just polls again.
	WaitTimeout time.Duration
	RecordSize  int
	// DumpEvents logs every decoded record at trace level.
	DumpEvents bool
}

func (c Config) withDefaults() Config {
	if c.RecordSize != inputevent.RecordSize64 {
		c.RecordSize = inputevent.RecordSize
	}
	if c.ChunkSize < c.RecordSize {
		c.ChunkSize = c.RecordSize * 64
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = DefaultWaitTimeout
	}
	return c
}

type Pump struct {
	src     io.Reader
	handler Handler
	sink    Emitter
	cfg     Config
	parser  *inputevent.Parser

	records uint64
	batches uint64
}

func New(src io.Reader, handler Handler, sink Emitter, cfg Config) *Pump {
	cfg = cfg.withDefaults()
	return &Pump{
		src:     src,
		handler: handler,
		sink:    sink,
		cfg:     cfg,
		parser:  inputevent.NewParser(cfg.RecordSize),
	}
}

type chunk struct {
	data []byte
	err  error
}

// Run pumps until the transport ends, fails, or ctx is done. Graceful end
// of stream returns nil. On every path the handler is flushed into the sink
// before Run returns. Run does not close src; closing it is how the caller
// unblocks a pending read after Run returns.
func (p *Pump) Run(ctx context.Context) (err error) {
	done := make(chan struct{})
	defer close(done)

	chunks := make(chan chunk)
	go p.read(chunks, done)

	defer func() {
		if ferr := p.flush(); ferr != nil && err == nil {
			err = ferr
		}
		slog.Info("session ended", "records", p.records, "batches", p.batches, "error", err)
	}()

	timer := time.NewTimer(p.cfg.WaitTimeout)
	defer timer.Stop()

	for {
		timer.Reset(p.cfg.WaitTimeout)

		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
			slog.Trace("no data within wait timeout, polling again")

		case c := <-chunks:
			if len(c.data) > 0 {
				if err := p.dispatch(c.data); err != nil {
					return err
				}
			}
			if c.err != nil {
				if errors.Is(c.err, io.EOF) {
					if n := p.parser.Pending(); n > 0 {
						slog.Warn("stream ended inside a record", "pending_bytes", n)
					}
					return nil
				}
				return fmt.Errorf("%w: %w", ErrTransportFault, c.err)
			}
		}
	}
}

func (p *Pump) read(chunks chan<- chunk, done <-chan struct{}) {
	empty := 0
	for {
		buf := make([]byte, p.cfg.ChunkSize)
		n, err := p.src.Read(buf)
		if n == 0 && err == nil {
			// same limit as bufio
			if empty++; empty < maxEmptyReads {
				continue
			}
			err = io.ErrNoProgress
		}
		empty = 0
		select {
		case chunks <- chunk{data: buf[:n], err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (p *Pump) dispatch(data []byte) error {
	for ev := range p.parser.Feed(data) {
		p.records++
		if p.cfg.DumpEvents {
			slog.Trace("record", "event", ev)
		}
		batch := p.handler.Handle(ev)
		if len(batch) == 0 {
			continue
		}
		if err := p.emit(batch); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pump) emit(batch []inputsink.Action) error {
	p.batches++
	if err := p.sink.Emit(batch); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkFault, err)
	}
	return nil
}

func (p *Pump) flush() error {
	batch := p.handler.Flush()
	if len(batch) == 0 {
		return nil
	}
	return p.emit(batch)
}
