package console

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// writer hands log lines to a background goroutine so that the pump never
// blocks on a slow terminal. Lines are dropped when the queue is full.
type writer struct {
	out     io.Writer
	once    sync.Once
	lines   chan []byte
	dropped atomic.Uint64
}

func newWriter(out io.Writer, depth int) *writer {
	return &writer{out: out, lines: make(chan []byte, depth)}
}

func (w *writer) start() {
	go func() {
		for b := range w.lines {
			for len(b) > 0 {
				n, err := w.out.Write(b)
				if err != nil || n == 0 {
					// nowhere left to report this
					break
				}
				b = b[n:]
			}
		}
	}()
}

func (w *writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w.once.Do(w.start)

	b := make([]byte, len(p))
	copy(b, p)
	select {
	case w.lines <- b:
	default:
		w.dropped.Add(1)
	}

	return len(p), nil
}

// Dropped returns how many lines were discarded because the queue was full.
func Dropped() uint64 {
	return stdout.dropped.Load()
}

var stdout = newWriter(os.Stdout, 1<<12)

var Writer io.Writer = stdout
