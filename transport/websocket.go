package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type WebSocketOptions struct {
	TLS *tls.Config
	// PingInterval and PongWait default to PingInterval and PingTimeout.
	PingInterval time.Duration
	PongWait     time.Duration
}

// wsStream concatenates the payloads of binary messages. Text messages are
// skipped.
type wsStream struct {
	conn     *websocket.Conn
	pongWait time.Duration
	r        io.Reader

	once sync.Once
	done chan struct{}
}

func DialWebSocket(ctx context.Context, url string, opts WebSocketOptions) (io.ReadCloser, error) {
	if opts.PingInterval <= 0 {
		opts.PingInterval = PingInterval
	}
	if opts.PongWait <= 0 {
		opts.PongWait = PingTimeout
	}

	d := websocket.Dialer{
		HandshakeTimeout: ConnectTimeout,
		TLSClientConfig:  opts.TLS,
		NetDialContext: (&net.Dialer{
			Timeout:   ConnectTimeout,
			KeepAlive: 15 * time.Second,
		}).DialContext,
	}

	conn, _, err := d.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	s := &wsStream{conn: conn, pongWait: opts.PongWait, done: make(chan struct{})}
	_ = conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	go s.pingLoop(opts.PingInterval)

	slog.Info("streaming over websocket", "url", url)
	return s, nil
}

func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.r == nil {
			typ, r, err := s.conn.NextReader()
			if err != nil {
				return 0, s.translate(err)
			}
			_ = s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
			if typ != websocket.BinaryMessage {
				continue
			}
			s.r = r
		}

		n, err := s.r.Read(p)
		if errors.Is(err, io.EOF) {
			s.r = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		if err != nil {
			return n, s.translate(err)
		}
		return n, nil
	}
}

func (s *wsStream) translate(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return io.EOF
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrPingTimedOut, err)
	}
	return err
}

func (s *wsStream) pingLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-t.C:
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(WriteTimeout))
			if err != nil {
				slog.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

func (s *wsStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(WriteTimeout))
		err = s.conn.Close()
	})
	return err
}
