package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"kafji.net/penbridge/logging"
	"kafji.net/penbridge/mapping"
)

var slog = logging.New("penbridge/config")

const DefaultPath = "./penbridge.toml"

var ErrUnknownVersion = errors.New("unknown reMarkable version")

type Config struct {
	LogLevel   string `toml:"log_level"`
	RecordFile string `toml:"record_file"`
	DumpEvents bool   `toml:"dump_events"`

	Device    Device    `toml:"device"`
	SSH       SSH       `toml:"ssh"`
	WebSocket WebSocket `toml:"websocket"`
	Output    Output    `toml:"output"`
	Mapping   Mapping   `toml:"mapping"`
	Pump      Pump      `toml:"pump"`
}

type Device struct {
	// Transport is "ssh", "websocket" or "file".
	Transport string `toml:"transport"`
	Address   string `toml:"address"`
	Version   int    `toml:"version"`
	// Path overrides the event device derived from Version.
	Path           string        `toml:"path"`
	KeyboardPath   string        `toml:"keyboard_path"`
	RecordSize     int           `toml:"record_size"`
	Reconnect      bool          `toml:"reconnect"`
	ReconnectDelay time.Duration `toml:"reconnect_delay"`
}

type SSH struct {
	IdentityFile string `toml:"identity_file"`
	Password     string `toml:"password"`
	KnownHosts   string `toml:"known_hosts"`
	Prompt       bool   `toml:"prompt"`
}

type WebSocket struct {
	URL        string `toml:"url"`
	CACert     string `toml:"ca_cert"`
	ClientCert string `toml:"client_cert"`
	ClientKey  string `toml:"client_key"`
}

type Output struct {
	// Sink is "uinput" or "dry-run".
	Sink string `toml:"sink"`
	// Mode is "pointer" or "pen".
	Mode string `toml:"mode"`
	// Width and Height of the destination. Zero means detect.
	Width  int32 `toml:"width"`
	Height int32 `toml:"height"`
}

type Mapping struct {
	Flip           bool    `toml:"flip"`
	Sensitivity    float64 `toml:"sensitivity"`
	UniformScaling bool    `toml:"uniform_scaling"`
	SourceWidth    int32   `toml:"source_width"`
	SourceHeight   int32   `toml:"source_height"`
}

type Pump struct {
	ChunkSize   int           `toml:"chunk_size"`
	WaitTimeout time.Duration `toml:"wait_timeout"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Device: Device{
			Transport:      "ssh",
			Address:        "root@10.11.99.1",
			Version:        2,
			RecordSize:     16,
			ReconnectDelay: 5 * time.Second,
		},
		SSH: SSH{Prompt: true},
		Output: Output{
			Sink: "uinput",
			Mode: "pointer",
		},
		Mapping: Mapping{
			Flip:           true,
			Sensitivity:    1.0,
			UniformScaling: true,
			SourceWidth:    15725,
			SourceHeight:   20967,
		},
		Pump: Pump{WaitTimeout: time.Second},
	}
}

// ReadConfig loads path over the defaults. An empty path means DefaultPath,
// and a missing file at DefaultPath is not an error.
func ReadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	file, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && isDefaultPath(path) {
		slog.Debug("no config file, using defaults", "path", path)
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return readConfig(file)
}

func isDefaultPath(path string) bool {
	p, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	d, err := filepath.Abs(DefaultPath)
	if err != nil {
		return false
	}
	return p == d
}

func readConfigString(s string) (*Config, error) {
	return readConfig([]byte(s))
}

func readConfig(b []byte) (*Config, error) {
	c := Default()
	md, err := toml.NewDecoder(bytes.NewReader(b)).Decode(c)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		slog.Warn("unknown config keys", "keys", keys)
	}
	return c, nil
}

// DevicePath is the pen event device on the tablet.
func (c *Config) DevicePath() (string, error) {
	if c.Device.Path != "" {
		return c.Device.Path, nil
	}
	switch c.Device.Version {
	case 1:
		return "/dev/input/event0", nil
	case 2:
		return "/dev/input/event1", nil
	}
	return "", fmt.Errorf("%w: %d", ErrUnknownVersion, c.Device.Version)
}

func (c *Config) KeyboardDevicePath() string {
	if c.Device.KeyboardPath != "" {
		return c.Device.KeyboardPath
	}
	return "/dev/input/event3"
}

// MappingConfig is the session geometry for a destination of w by h.
func (c *Config) MappingConfig(w, h int32) mapping.Config {
	return mapping.Config{
		SourceWidth:    c.Mapping.SourceWidth,
		SourceHeight:   c.Mapping.SourceHeight,
		DestWidth:      w,
		DestHeight:     h,
		Flip:           c.Mapping.Flip,
		Sensitivity:    c.Mapping.Sensitivity,
		UniformScaling: c.Mapping.UniformScaling,
	}
}
