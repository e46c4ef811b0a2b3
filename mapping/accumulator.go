package mapping

import "math"

// Accumulator turns absolute samples into relative deltas. The sub-unit
// remainder of each step is carried into the next so that the emitted
// integer deltas never drift from the scaled motion by more than half a unit.
type Accumulator struct {
	lastX, lastY float64
	fracX, fracY float64
	initialized  bool
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Advance returns the delta since the previous call. The first call only
// records the position and returns (0, 0).
func (a *Accumulator) Advance(x, y int32, cfg Config) (dx, dy int32) {
	ox, oy := Orient(x, y, cfg)
	if !a.initialized {
		a.lastX, a.lastY = ox, oy
		a.fracX, a.fracY = 0, 0
		a.initialized = true
		return 0, 0
	}

	rawX := ox - a.lastX
	rawY := oy - a.lastY

	scaleX, scaleY := motionScale(cfg)
	a.fracX += rawX * scaleX
	a.fracY += rawY * scaleY

	rx := math.Round(a.fracX)
	ry := math.Round(a.fracY)
	a.fracX -= rx
	a.fracY -= ry

	a.lastX, a.lastY = ox, oy
	return toInt32(rx), toInt32(ry)
}

// toInt32 saturates instead of wrapping.
func toInt32(v float64) int32 {
	return int32(clamp(v, math.MinInt32, math.MaxInt32))
}

// Remainder exposes the carried fractions.
func (a *Accumulator) Remainder() (float64, float64) {
	return a.fracX, a.fracY
}

func (a *Accumulator) Reset() {
	*a = Accumulator{}
}

func motionScale(cfg Config) (float64, float64) {
	sx := float64(cfg.DestWidth) / float64(cfg.SourceWidth)
	sy := float64(cfg.DestHeight) / float64(cfg.SourceHeight)
	if cfg.UniformScaling {
		s := math.Min(sx, sy) * cfg.Sensitivity
		return s, s
	}
	return sx * cfg.Sensitivity, sy * cfg.Sensitivity
}
