package rangesearch

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// NodeData describes a single node in a spatial tree. IdxStart and IdxEnd
// delimit the node's tree-order positions.
type NodeData struct {
	IdxStart, IdxEnd int
	IsLeaf           bool
	Radius           float64 // ball tree radius; 0 for KD-tree
}

// Score is a rule's verdict on a subtree given its distance bound.
type Score int

const (
	// ScoreRecurse means the bound overlaps the range without deciding it:
	// descend into children or evaluate base cases.
	ScoreRecurse Score = iota
	// ScorePrune means no point in the subtree can be in range.
	ScorePrune
	// ScoreAcceptAll means every point in the subtree is within range.
	ScoreAcceptAll
)

func (s Score) String() string {
	switch s {
	case ScorePrune:
		return "prune"
	case ScoreAcceptAll:
		return "accept-all"
	default:
		return "recurse"
	}
}

// Rule receives the callbacks of a tree traversal. Indices are rows of the
// query and reference trees' Dataset matrices (or of the raw query matrix in
// single-tree mode).
type Rule interface {
	// BaseCase evaluates one query/reference pair.
	BaseCase(queryIndex, referenceIndex int)

	// Accept records a pair whose subtree was scored ScoreAcceptAll.
	Accept(queryIndex, referenceIndex int)

	// Score decides what to do with a subtree whose possible distances
	// from the query point or node lie within bound.
	Score(bound Range) Score
}

// Tree is the capability a spatial index must offer to be searched.
//
// Implementations that physically reorder their input report Rearranges() ==
// true and return the permutation from OldFromNew, where OldFromNew()[i] is the
// caller-visible index of Dataset() row i. Trees must tolerate concurrent
// read-only traversals; nothing in this package mutates a tree while searching.
type Tree interface {
	// Dataset returns the points actually held by the tree, one per row,
	// in tree order.
	Dataset() *mat.Dense

	// Metric returns the metric the tree's bounds were computed with.
	Metric() Metric

	// Rearranges reports whether Dataset is a permutation of the input.
	Rearranges() bool

	// OldFromNew returns the tree-to-caller permutation, or nil when the tree
	// does not rearrange. Callers must not modify it.
	OldFromNew() []int

	// SingleTreeTraverse feeds rule with every reference point of the tree
	// that query could be in range of. queryIndex is passed through to the rule.
	SingleTreeTraverse(queryIndex int, query []float64, rule Rule)

	// DualTreeTraverse descends (queryTree, this tree) node pairs. It returns
	// ErrIncompatibleTree before any rule callback if the trees differ in kind.
	DualTreeTraverse(queryTree Tree, rule Rule) error

	// Close releases the tree's buffers. A closed tree holds no points.
	Close() error
}

// nodeTree is the array-form navigation shared by KDTree and BallTree, used
// by the traversal drivers in traversal.go.
//
// The tree is stored as a complete binary tree in array form:
//   - node i has children at 2*i+1 and 2*i+2
//   - node 0 is the root
type nodeTree interface {
	NodeDataArray() []NodeData
	ChildNodes(node int) (left, right int)

	// pointAt returns the Dataset row held at tree-order position pos.
	pointAt(pos int) int

	// PointBound returns the possible distances between point and any point
	// in node.
	PointBound(node int, point []float64) Range
}

// boundSlack widens every tree bound by a margin relative to the bound's
// magnitude so rounding differences between bound arithmetic and
// Metric.Distance never prune a point that sits exactly on a range boundary.
const boundSlack = 1e-12

func widenBound(lo, hi float64) Range {
	lo -= boundSlack * hi
	if lo < 0 || math.IsNaN(lo) {
		lo = 0
	}
	return Range{Lo: lo, Hi: hi * (1 + boundSlack)}
}
