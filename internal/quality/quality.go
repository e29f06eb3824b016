package quality

import "fmt"

const (
	DefaultMinShortSide = 600
	DefaultMaxAspect    = 3.5
)

// Filter decides from dimensions alone whether a source image is worth
// cropping and reviewing.
type Filter struct {
	MinShortSide int
	MaxAspect    float64
}

// Verdict is the outcome of a Check. Reason is "ok" when the image passes.
type Verdict struct {
	OK     bool
	Reason string
}

// New returns a filter with the default thresholds.
func New() Filter {
	return Filter{
		MinShortSide: DefaultMinShortSide,
		MaxAspect:    DefaultMaxAspect,
	}
}

// Check applies the minimum size rule and then the aspect ratio rule.
func (f Filter) Check(width, height int) Verdict {
	short, long := width, height
	if short > long {
		short, long = long, short
	}

	if short <= 0 || short < f.MinShortSide {
		return Verdict{Reason: fmt.Sprintf("too small (%dx%d)", width, height)}
	}

	if f.MaxAspect > 0 {
		aspect := float64(long) / float64(short)
		if aspect > f.MaxAspect {
			return Verdict{Reason: fmt.Sprintf("extreme aspect ratio %.1f:1", aspect)}
		}
	}

	return Verdict{OK: true, Reason: "ok"}
}
