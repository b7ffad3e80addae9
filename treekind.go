package rangesearch

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// TreeKind selects the spatial index built for tree-based search.
type TreeKind string

const (
	TreeAuto TreeKind = "auto"
	TreeKD   TreeKind = "kdtree"
	TreeBall TreeKind = "balltree"
)

// autoKDMaxDims is the dimensionality above which TreeAuto prefers the ball
// tree; box bounds loosen quickly as dimensions grow.
const autoKDMaxDims = 60

// KDTreeValidMetric reports whether the metric supports KD-tree bounds.
// KD-trees require metrics that decompose along coordinate axes:
// Euclidean, Manhattan, Chebyshev, Minkowski.
func KDTreeValidMetric(m Metric) bool {
	_, ok := metricP(m)
	return ok
}

// BallTreeValidMetric reports whether the metric supports ball tree bounds.
// Ball trees work with any metric that satisfies the triangle inequality; the
// caller vouches for that when supplying a DistanceFunc.
func BallTreeValidMetric(m Metric) bool {
	if m == nil {
		return false
	}
	if mk, ok := m.(MinkowskiMetric); ok {
		return mk.P >= 1
	}
	return true
}

// selectTreeKind resolves TreeAuto into a concrete tree based on the metric
// and data dimensionality, and validates that forced choices are compatible
// with the metric.
func selectTreeKind(kind TreeKind, m Metric, dims int) (TreeKind, error) {
	switch kind {
	case TreeAuto, "":
		if KDTreeValidMetric(m) && dims <= autoKDMaxDims {
			return TreeKD, nil
		}
		if BallTreeValidMetric(m) {
			return TreeBall, nil
		}
		return "", fmt.Errorf("rangesearch: metric %T is not supported by any tree: %w", m, ErrUnsupportedMetric)
	case TreeKD:
		if !KDTreeValidMetric(m) {
			return "", fmt.Errorf("rangesearch: metric %T is not supported by the KD-tree: %w", m, ErrUnsupportedMetric)
		}
		return TreeKD, nil
	case TreeBall:
		if !BallTreeValidMetric(m) {
			return "", fmt.Errorf("rangesearch: metric %T is not supported by the ball tree: %w", m, ErrUnsupportedMetric)
		}
		return TreeBall, nil
	default:
		return "", fmt.Errorf("rangesearch: invalid tree kind %q: %w", kind, ErrInvalidConfiguration)
	}
}

// BuildTree builds a tree of the given kind over data, one point per row.
// TreeAuto is resolved with the same rules New uses.
func BuildTree(kind TreeKind, data mat.Matrix, m Metric, leafSize int) (Tree, error) {
	_, dims := data.Dims()
	kind, err := selectTreeKind(kind, m, dims)
	if err != nil {
		return nil, err
	}
	if kind == TreeKD {
		t, err := NewKDTree(data, m, leafSize)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	t, err := NewBallTree(data, m, leafSize)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// treeKindOf reports the kind of a tree built by this package, so a matching
// query tree can be built for a borrowed reference tree.
func treeKindOf(t Tree) (TreeKind, error) {
	switch t.(type) {
	case *KDTree:
		return TreeKD, nil
	case *BallTree:
		return TreeBall, nil
	default:
		return "", fmt.Errorf("rangesearch: cannot build a query tree matching %T: %w", t, ErrIncompatibleTree)
	}
}
