package rangesearch

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Metric computes the distance between two points of equal dimensionality.
// Tree pruning is only sound for true metrics: non-negative, symmetric, and
// satisfying the triangle inequality.
type Metric interface {
	Distance(a, b []float64) float64
}

// DistanceFunc adapts a plain function into a Metric.
// It can be used with naive search and the ball tree, not the KD-tree.
type DistanceFunc func(a, b []float64) float64

func (f DistanceFunc) Distance(a, b []float64) float64 { return f(a, b) }

// EuclideanMetric computes the Euclidean (L2) distance.
type EuclideanMetric struct{}

func (EuclideanMetric) Distance(a, b []float64) float64 { return floats.Distance(a, b, 2) }
func (EuclideanMetric) String() string                  { return "euclidean" }

// ManhattanMetric computes the Manhattan (L1 / city-block) distance.
type ManhattanMetric struct{}

func (ManhattanMetric) Distance(a, b []float64) float64 { return floats.Distance(a, b, 1) }
func (ManhattanMetric) String() string                  { return "manhattan" }

// ChebyshevMetric computes the Chebyshev (L-infinity) distance.
type ChebyshevMetric struct{}

func (ChebyshevMetric) Distance(a, b []float64) float64 {
	return floats.Distance(a, b, math.Inf(1))
}
func (ChebyshevMetric) String() string { return "chebyshev" }

// MinkowskiMetric computes the Minkowski distance parameterized by P.
// P must be >= 1. Panics if P < 1.
type MinkowskiMetric struct {
	P float64
}

func (m MinkowskiMetric) Distance(a, b []float64) float64 {
	if m.P < 1 {
		panic("MinkowskiMetric: P must be >= 1")
	}
	return floats.Distance(a, b, m.P)
}

func (m MinkowskiMetric) String() string { return fmt.Sprintf("minkowski(p=%g)", m.P) }

// metricP returns the Lp exponent of m and whether m belongs to the Lp family.
func metricP(m Metric) (float64, bool) {
	switch v := m.(type) {
	case EuclideanMetric:
		return 2, true
	case ManhattanMetric:
		return 1, true
	case ChebyshevMetric:
		return math.Inf(1), true
	case MinkowskiMetric:
		return v.P, v.P >= 1
	default:
		return 0, false
	}
}

// lpAccumulator folds per-dimension gaps into an Lp norm without allocating.
type lpAccumulator struct {
	p   float64
	sum float64
}

func (a *lpAccumulator) add(gap float64) {
	switch {
	case math.IsInf(a.p, 1):
		if gap > a.sum {
			a.sum = gap
		}
	case a.p == 1:
		a.sum += gap
	case a.p == 2:
		a.sum += gap * gap
	default:
		a.sum += math.Pow(gap, a.p)
	}
}

func (a *lpAccumulator) value() float64 {
	switch {
	case math.IsInf(a.p, 1), a.p == 1:
		return a.sum
	case a.p == 2:
		return math.Sqrt(a.sum)
	default:
		return math.Pow(a.sum, 1/a.p)
	}
}

// ParseMetric resolves a metric name. p is only read for "minkowski".
func ParseMetric(name string, p float64) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "euclidean", "l2":
		return EuclideanMetric{}, nil
	case "manhattan", "l1", "cityblock":
		return ManhattanMetric{}, nil
	case "chebyshev", "linf":
		return ChebyshevMetric{}, nil
	case "minkowski":
		if p < 1 || math.IsNaN(p) {
			return nil, fmt.Errorf("rangesearch: minkowski p must be >= 1, got %g: %w", p, ErrUnsupportedMetric)
		}
		return MinkowskiMetric{P: p}, nil
	default:
		return nil, fmt.Errorf("rangesearch: unknown metric %q: %w", name, ErrUnsupportedMetric)
	}
}

// sameMetric reports whether a and b compute the same distance, so bounds
// built under one are valid under the other. Comparable metrics compare with
// ==. A DistanceFunc compares by function identity; two closures over the
// same literal count as equal.
func sameMetric(a, b Metric) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ta.Kind() == reflect.Func {
		return va.Pointer() == vb.Pointer()
	}
	return false
}

// metricName renders m for logs and String output.
func metricName(m Metric) string {
	if s, ok := m.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", m)
}
