// Package mapping converts tablet coordinates into destination coordinates,
// either as clamped absolute positions or as relative deltas.
package mapping

import (
	"errors"
	"fmt"
	"math"
)

var ErrMalformedConfig = errors.New("malformed config")

// Config is the geometry of one session. It is read-only once the session
// starts.
type Config struct {
	SourceWidth  int32
	SourceHeight int32
	DestWidth    int32
	DestHeight   int32

	// Flip rotates the tablet 180 degrees. This is the default orientation.
	Flip bool

	// Sensitivity multiplies relative motion. Must be positive.
	Sensitivity float64

	// UniformScaling uses one scale factor for both axes in relative mode.
	UniformScaling bool
}

func (c Config) Validate() error {
	if c.SourceWidth <= 0 || c.SourceHeight <= 0 {
		return fmt.Errorf("%w: source extents %dx%d", ErrMalformedConfig, c.SourceWidth, c.SourceHeight)
	}
	if c.DestWidth <= 0 || c.DestHeight <= 0 {
		return fmt.Errorf("%w: destination extents %dx%d", ErrMalformedConfig, c.DestWidth, c.DestHeight)
	}
	// written so NaN fails too
	if !(c.Sensitivity > 0) {
		return fmt.Errorf("%w: sensitivity must be positive, got %v", ErrMalformedConfig, c.Sensitivity)
	}
	return nil
}

// Orient applies the orientation flip. Both the absolute and the relative
// path go through here. The result is a float so that inputs far outside
// the source cannot wrap.
func Orient(x, y int32, cfg Config) (float64, float64) {
	fx, fy := float64(x), float64(y)
	if !cfg.Flip {
		return fx, fy
	}
	return float64(cfg.SourceWidth) - fx, float64(cfg.SourceHeight) - fy
}

// Scale returns the single aspect-preserving factor from source to
// destination space.
func Scale(cfg Config) float64 {
	srcAspect := float64(cfg.SourceWidth) / float64(cfg.SourceHeight)
	dstAspect := float64(cfg.DestWidth) / float64(cfg.DestHeight)
	if srcAspect > dstAspect {
		return float64(cfg.DestWidth) / float64(cfg.SourceWidth)
	}
	return float64(cfg.DestHeight) / float64(cfg.SourceHeight)
}

// Map converts a tablet position into a destination position within
// [0, dest-1] on both axes.
func Map(x, y int32, cfg Config) (int32, int32) {
	ox, oy := Orient(x, y, cfg)
	s := Scale(cfg)
	sx := clamp(ox*s, 0, float64(cfg.DestWidth-1))
	sy := clamp(oy*s, 0, float64(cfg.DestHeight-1))
	return int32(sx), int32(sy)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
