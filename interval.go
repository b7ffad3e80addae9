package rangesearch

import (
	"fmt"
	"math"
)

// Range is a closed distance interval [Lo, Hi]. Hi may be +Inf.
type Range struct {
	Lo, Hi float64
}

// NewRange returns the interval [lo, hi]. It does not validate; see Validate.
func NewRange(lo, hi float64) Range {
	return Range{Lo: lo, Hi: hi}
}

// Contains reports whether lo <= d <= hi.
func (r Range) Contains(d float64) bool {
	return r.Lo <= d && d <= r.Hi
}

// Overlaps reports whether r and o share at least one value.
func (r Range) Overlaps(o Range) bool {
	return o.Hi >= r.Lo && o.Lo <= r.Hi
}

// ContainsRange reports whether o lies entirely inside r.
func (r Range) ContainsRange(o Range) bool {
	return r.Lo <= o.Lo && o.Hi <= r.Hi
}

// Validate rejects NaN bounds, negative bounds, and lo > hi.
// A malformed interval is never swapped.
func (r Range) Validate() error {
	if math.IsNaN(r.Lo) || math.IsNaN(r.Hi) {
		return fmt.Errorf("rangesearch: range bounds must not be NaN, got %v: %w", r, ErrInvalidRange)
	}
	if r.Lo < 0 {
		return fmt.Errorf("rangesearch: range lower bound must be >= 0, got %g: %w", r.Lo, ErrInvalidRange)
	}
	if r.Lo > r.Hi {
		return fmt.Errorf("rangesearch: range lower bound %g exceeds upper bound %g: %w", r.Lo, r.Hi, ErrInvalidRange)
	}
	return nil
}

func (r Range) String() string {
	return fmt.Sprintf("[%g, %g]", r.Lo, r.Hi)
}
