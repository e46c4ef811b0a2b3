// Package session runs the bridge: it opens the sink and the transport,
// pumps records through the handler and restarts when the config changes.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"kafji.net/penbridge/display"
	"kafji.net/penbridge/inputsink"
	"kafji.net/penbridge/logging"
	"kafji.net/penbridge/penbridge/config"
	"kafji.net/penbridge/penbridge/keyboard"
	"kafji.net/penbridge/pump"
	"kafji.net/penbridge/recording"
	"kafji.net/penbridge/stylus"
	"kafji.net/penbridge/transport"
)

var slog = logging.New("penbridge/session")

type Kind int

const (
	KindPen Kind = iota
	KindKeyboard
)

func (k Kind) String() string {
	if k == KindKeyboard {
		return "keyboard"
	}
	return "pen"
}

type Args struct {
	ConfigPath string
	Kind       Kind
	// Watch restarts the session whenever the config file changes.
	Watch bool
	// Replay reads a capture instead of connecting to the tablet.
	Replay   string
	Realtime bool
	// Override is applied to every loaded config, so that command line
	// flags survive reloads.
	Override func(*config.Config)
}

var openSink = inputsink.Open

// Start runs until ctx is done, the stream ends, or a fatal error occurs.
func Start(ctx context.Context, args Args) error {
	cfg, err := load(args, nil)
	if err != nil {
		return err
	}

	var configs <-chan *config.Config
	var watcher *config.Watcher
	if args.Watch {
		watcher = config.Watch(ctx, args.ConfigPath)
		configs = watcher.Configs()
	}

restart:
	logging.SetLogLevel(cfg.LogLevel)

	slog.Info("starting session", "kind", args.Kind, "transport", cfg.Device.Transport, "sink", cfg.Output.Sink)
	runCtx, cancelRun := context.WithCancel(ctx)
	result := make(chan error, 1)
	go func() {
		result <- run(runCtx, cfg, args)
	}()

	for {
		select {
		case <-ctx.Done():
			cancelRun()
			<-result
			return ctx.Err()

		case err := <-result:
			cancelRun()
			return err

		case c, ok := <-configs:
			if !ok {
				slog.Warn("config watcher stopped", "error", watcher.Err())
				configs = nil
				continue
			}
			c, err := load(args, c)
			if err != nil {
				slog.Error("ignoring config change", "error", err)
				continue
			}
			slog.Info("configurations changed, restarting")
			cancelRun()
			<-result
			cfg = c
			goto restart
		}
	}
}

func load(args Args, cfg *config.Config) (*config.Config, error) {
	if cfg == nil {
		var err error
		cfg, err = config.ReadConfig(args.ConfigPath)
		if err != nil {
			return nil, err
		}
	}
	if args.Override != nil {
		args.Override(cfg)
	}
	return cfg, nil
}

// run opens the sink once and keeps pumping until the stream is over, or
// until reconnecting is no longer wanted.
func run(ctx context.Context, cfg *config.Config, args Args) error {
	handler, sink, err := setup(cfg, args.Kind)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			slog.Warn("failed to close sink", "error", err)
		}
	}()

	if cfg.RecordFile != "" {
		f, err := os.Create(cfg.RecordFile)
		if err != nil {
			return fmt.Errorf("failed to create recording: %w", err)
		}
		defer f.Close()
		w, err := recording.NewWriter(f)
		if err != nil {
			return err
		}
		handler = recording.NewTee(handler, w)
		slog.Info("recording session", "path", cfg.RecordFile)
	}

	for {
		err := once(ctx, cfg, args, handler, sink)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !cfg.Device.Reconnect || args.Replay != "" || errors.Is(err, pump.ErrSinkFault) {
			return err
		}
		slog.Warn("session ended, reconnecting", "error", err, "delay", cfg.Device.ReconnectDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Device.ReconnectDelay):
		}
	}
}

func setup(cfg *config.Config, kind Kind) (pump.Handler, inputsink.Sink, error) {
	if kind == KindKeyboard {
		sink, err := openSink(inputsink.Options{Kind: cfg.Output.Sink, Want: inputsink.CapabilityKeyboard})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sink: %w", err)
		}
		return keyboard.New(), sink, nil
	}

	want, err := inputsink.ParseCapability(cfg.Output.Mode)
	if err != nil {
		return nil, nil, err
	}
	w, h := display.Size(cfg.Output.Width, cfg.Output.Height)
	geometry := cfg.MappingConfig(w, h)
	if err := geometry.Validate(); err != nil {
		return nil, nil, err
	}

	sink, err := openSink(inputsink.Options{
		Kind:   cfg.Output.Sink,
		Want:   want,
		Width:  w,
		Height: h,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open sink: %w", err)
	}

	m, err := stylus.New(geometry, sink.Capability())
	if err != nil {
		sink.Close()
		return nil, nil, err
	}
	slog.Info("sink ready", "capability", sink.Capability(), "width", w, "height", h, "flip", geometry.Flip)
	return m, sink, nil
}

func once(ctx context.Context, cfg *config.Config, args Args, handler pump.Handler, sink inputsink.Sink) error {
	src, err := openSource(ctx, cfg, args)
	if err != nil {
		return err
	}
	defer src.Close()

	p := pump.New(src, handler, sink, pump.Config{
		ChunkSize:   cfg.Pump.ChunkSize,
		WaitTimeout: cfg.Pump.WaitTimeout,
		RecordSize:  cfg.Device.RecordSize,
		DumpEvents:  cfg.DumpEvents,
	})
	return p.Run(ctx)
}

func openSource(ctx context.Context, cfg *config.Config, args Args) (io.ReadCloser, error) {
	if args.Replay != "" {
		f, err := os.Open(args.Replay)
		if err != nil {
			return nil, fmt.Errorf("failed to open capture: %w", err)
		}
		r, err := recording.Replay(f, cfg.Device.RecordSize, args.Realtime)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &replaySource{ReadCloser: r, f: f}, nil
	}

	devicePath := cfg.KeyboardDevicePath()
	if args.Kind == KindPen {
		var err error
		devicePath, err = cfg.DevicePath()
		if err != nil {
			return nil, err
		}
	}

	address := cfg.Device.Address
	if cfg.Device.Transport == "websocket" && cfg.WebSocket.URL != "" {
		address = cfg.WebSocket.URL
	}
	tlsCfg, err := transport.LoadClientTLSConfig(cfg.WebSocket.CACert, cfg.WebSocket.ClientCert, cfg.WebSocket.ClientKey)
	if err != nil {
		return nil, err
	}

	return transport.Open(ctx, transport.Options{
		Kind:       cfg.Device.Transport,
		Address:    address,
		DevicePath: devicePath,
		SSH: transport.SSHOptions{
			IdentityFile: cfg.SSH.IdentityFile,
			Password:     cfg.SSH.Password,
			KnownHosts:   cfg.SSH.KnownHosts,
			Prompt:       cfg.SSH.Prompt,
		},
		WebSocket: transport.WebSocketOptions{TLS: tlsCfg},
	})
}

type replaySource struct {
	io.ReadCloser
	f *os.File
}

func (s *replaySource) Close() error {
	s.ReadCloser.Close()
	return s.f.Close()
}
