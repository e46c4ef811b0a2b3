package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"kafji.net/penbridge/logging"
	"kafji.net/penbridge/penbridge/config"
	"kafji.net/penbridge/penbridge/session"
)

var slog = logging.New("penbridge/main")

type Globals struct {
	Config     string `help:"Config file, ./penbridge.toml when unset." type:"path" env:"PENBRIDGE_CONFIG"`
	LogLevel   string `help:"Log level: trace, debug, info, warn or error." env:"PENBRIDGE_LOG_LEVEL"`
	Watch      bool   `help:"Restart when the config file changes."`
	DumpEvents bool   `help:"Log every decoded record at trace level."`

	Host             string  `help:"Tablet address as user@host." env:"PENBRIDGE_HOST"`
	Version          int     `name:"remarkable-version" help:"reMarkable version, 1 or 2."`
	Sensitivity      float64 `short:"s" help:"Relative motion multiplier."`
	NoUniformScaling bool    `help:"Scale relative motion per axis."`
	Flip             bool    `short:"f" help:"Use the tablet's own orientation instead of the rotated default."`
	Mode             string  `help:"Output mode, pointer or pen."`
	Sink             string  `help:"Sink, uinput or dry-run."`
	Record           string  `help:"Write a capture of every record to this file." type:"path"`
}

// apply puts command line flags over cfg.
func (g *Globals) apply(cfg *config.Config) {
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}
	if g.DumpEvents {
		cfg.DumpEvents = true
	}
	if g.Host != "" {
		cfg.Device.Address = g.Host
	}
	if g.Version != 0 {
		cfg.Device.Version = g.Version
	}
	if g.Sensitivity != 0 {
		cfg.Mapping.Sensitivity = g.Sensitivity
	}
	if g.NoUniformScaling {
		cfg.Mapping.UniformScaling = false
	}
	if g.Flip {
		cfg.Mapping.Flip = false
	}
	if g.Mode != "" {
		cfg.Output.Mode = g.Mode
	}
	if g.Sink != "" {
		cfg.Output.Sink = g.Sink
	}
	if g.Record != "" {
		cfg.RecordFile = g.Record
	}
}

func (g *Globals) args(kind session.Kind) session.Args {
	return session.Args{
		ConfigPath: g.Config,
		Kind:       kind,
		Watch:      g.Watch,
		Override:   g.apply,
	}
}

type PenCmd struct{}

func (c *PenCmd) Run(g *Globals, ctx context.Context) error {
	return session.Start(ctx, g.args(session.KindPen))
}

type KeyboardCmd struct{}

func (c *KeyboardCmd) Run(g *Globals, ctx context.Context) error {
	return session.Start(ctx, g.args(session.KindKeyboard))
}

type ReplayCmd struct {
	File     string `arg:"" help:"Capture written with --record." type:"existingfile"`
	Keyboard bool   `help:"Replay through the keyboard path."`
	Realtime bool   `help:"Keep the original pacing."`
}

func (c *ReplayCmd) Run(g *Globals, ctx context.Context) error {
	kind := session.KindPen
	if c.Keyboard {
		kind = session.KindKeyboard
	}
	args := g.args(kind)
	args.Replay = c.File
	args.Realtime = c.Realtime
	return session.Start(ctx, args)
}

type CLI struct {
	Globals

	Pen      PenCmd      `cmd:"" default:"1" help:"Bridge the pen to a local pointer."`
	Keyboard KeyboardCmd `cmd:"" help:"Forward the type folio keyboard."`
	Replay   ReplayCmd   `cmd:"" help:"Play a capture back through the bridge."`
}

func main() {
	var cli CLI
	k := kong.Parse(&cli,
		kong.Name("penbridge"),
		kong.Description("Use a reMarkable tablet as a local pen or mouse."),
		kong.UsageOnError(),
	)

	level := cli.LogLevel
	if level == "" {
		level = "info"
	}
	logging.SetLogLevel(level)
	slog.Info("starting", "command", k.Command(), "GOGC", os.Getenv("GOGC"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	k.BindTo(ctx, (*context.Context)(nil))
	k.Bind(&cli.Globals)

	err := k.Run()
	if errors.Is(err, context.Canceled) {
		slog.Info("stopped")
		err = nil
	}
	k.FatalIfErrorf(err)
}
