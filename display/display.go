// Package display finds the size of the local screen.
package display

import (
	"fmt"

	"github.com/BurntSushi/xgbutil"
	"kafji.net/penbridge/logging"
)

var slog = logging.New("penbridge/display")

const (
	FallbackWidth  = 1920
	FallbackHeight = 1080
)

// RootSize returns the size of the default X screen.
func RootSize() (int32, int32, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to connect to X server: %w", err)
	}
	defer xu.Conn().Close()

	screen := xu.Screen()
	return int32(screen.WidthInPixels), int32(screen.HeightInPixels), nil
}

// Size resolves the destination extents. Non-zero w and h are used as is;
// otherwise the root window is queried and on failure the fallback is used.
func Size(w, h int32) (int32, int32) {
	return size(w, h, RootSize)
}

func size(w, h int32, detect func() (int32, int32, error)) (int32, int32) {
	if w > 0 && h > 0 {
		return w, h
	}
	dw, dh, err := detect()
	if err != nil || dw <= 0 || dh <= 0 {
		slog.Warn("failed to detect screen size, using fallback",
			"error", err, "width", FallbackWidth, "height", FallbackHeight)
		return FallbackWidth, FallbackHeight
	}
	slog.Info("detected screen size", "width", dw, "height", dh)
	return dw, dh
}
