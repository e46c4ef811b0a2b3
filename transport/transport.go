// Package transport opens the byte stream carrying the tablet's input
// records.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"kafji.net/penbridge/logging"
)

var slog = logging.New("penbridge/transport")

const (
	ConnectTimeout = 5 * time.Second
	PingInterval   = 5 * time.Second
	PingTimeout    = 15 * time.Second
	WriteTimeout   = time.Second
)

var (
	ErrUnsupportedScheme = errors.New("unsupported transport")
	ErrPingTimedOut      = errors.New("ping timed out")
)

type Options struct {
	// Kind is "ssh", "websocket" or "file".
	Kind string
	// Address is user@host[:port] for ssh, a ws:// or wss:// URL for
	// websocket, and a path for file.
	Address string
	// DevicePath is the event device read on the tablet over ssh.
	DevicePath string

	SSH       SSHOptions
	WebSocket WebSocketOptions
}

// Open returns a stream of raw records. Closing it tears the transport down
// and unblocks a pending read.
func Open(ctx context.Context, opts Options) (io.ReadCloser, error) {
	switch opts.Kind {
	case "ssh", "":
		return DialSSH(ctx, opts.Address, opts.DevicePath, opts.SSH)
	case "websocket", "ws":
		return DialWebSocket(ctx, opts.Address, opts.WebSocket)
	case "file":
		return OpenFile(opts.Address)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, opts.Kind)
}

// OpenFile reads records from a local file or fifo, e.g. a raw capture made
// with cat on the tablet.
func OpenFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	slog.Info("reading records from file", "path", path)
	return f, nil
}
