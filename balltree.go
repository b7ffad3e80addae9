package rangesearch

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// BallTree is a ball tree spatial index. Each node stores a centroid and
// radius defining an enclosing ball for its points. Bounds rely only on the
// triangle inequality, so any true metric works.
//
// The points stay in caller order: Dataset row i is caller point i, and the
// tree walks them through an index array. Rearranges reports false.
//
// The tree is stored as a complete binary tree in array form:
//   - node i has children at 2*i+1 and 2*i+2
type BallTree struct {
	data     *mat.Dense // points in caller order, one per row
	n        int        // number of points
	dims     int        // dimensionality
	leafSize int
	metric   Metric
	idxArray []int      // tree-order position → Dataset row
	nodes    []NodeData // one entry per array slot; Radius is used
	// centroids[node*dims .. (node+1)*dims) = centroid of node
	centroids []float64
	numNodes  int // highest built node index + 1
}

// NewBallTree builds a ball tree from data, one point per row. leafSize
// controls the max points per leaf node.
func NewBallTree(data mat.Matrix, metric Metric, leafSize int) (*BallTree, error) {
	if metric == nil {
		return nil, fmt.Errorf("rangesearch: ball tree needs a metric: %w", ErrUnsupportedMetric)
	}
	n, dims := data.Dims()
	if n == 0 || dims == 0 {
		return nil, fmt.Errorf("rangesearch: cannot build a ball tree: %w", ErrEmptyDataset)
	}
	if leafSize < 1 {
		leafSize = 1
	}

	idxArray := make([]int, n)
	for i := range idxArray {
		idxArray[i] = i
	}

	maxNodes := kdMaxNodes(n, leafSize) // reuse the same upper bound
	t := &BallTree{
		data:      mat.DenseCopyOf(data),
		n:         n,
		dims:      dims,
		leafSize:  leafSize,
		metric:    metric,
		idxArray:  idxArray,
		nodes:     make([]NodeData, maxNodes),
		centroids: make([]float64, maxNodes*dims),
	}
	t.buildNode(0, 0, n)

	return t, nil
}

// buildNode recursively builds the ball tree for points in idxArray[start:end].
func (t *BallTree) buildNode(nodeID, start, end int) {
	for nodeID >= len(t.nodes) {
		t.nodes = append(t.nodes, NodeData{})
		t.centroids = append(t.centroids, make([]float64, t.dims)...)
	}
	if nodeID+1 > t.numNodes {
		t.numNodes = nodeID + 1
	}

	t.computeCentroid(nodeID, start, end)

	// Radius: max distance from centroid to any point in this node.
	centroid := t.centroid(nodeID)
	var radius float64
	for i := start; i < end; i++ {
		d := t.metric.Distance(centroid, t.data.RawRowView(t.idxArray[i]))
		if d > radius {
			radius = d
		}
	}

	count := end - start
	if count <= t.leafSize {
		t.nodes[nodeID] = NodeData{IdxStart: start, IdxEnd: end, IsLeaf: true, Radius: radius}
		return
	}

	t.nodes[nodeID] = NodeData{IdxStart: start, IdxEnd: end, IsLeaf: false, Radius: radius}

	// Split at the median of the dimension with greatest spread.
	splitDim := t.findSpreadDim(start, end)
	t.sortByDim(start, end, splitDim)
	mid := start + count/2

	t.buildNode(2*nodeID+1, start, mid)
	t.buildNode(2*nodeID+2, mid, end)
}

// computeCentroid stores the mean of points idxArray[start:end].
func (t *BallTree) computeCentroid(nodeID, start, end int) {
	c := t.centroid(nodeID)
	for d := range c {
		c[d] = 0
	}
	for i := start; i < end; i++ {
		floats.Add(c, t.data.RawRowView(t.idxArray[i]))
	}
	floats.Scale(1/float64(end-start), c)
}

func (t *BallTree) centroid(node int) []float64 {
	return t.centroids[node*t.dims : (node+1)*t.dims]
}

// findSpreadDim returns the dimension with the greatest spread among
// points in idxArray[start:end].
func (t *BallTree) findSpreadDim(start, end int) int {
	bestDim := 0
	bestSpread := -1.0
	for d := 0; d < t.dims; d++ {
		minVal := math.Inf(1)
		maxVal := math.Inf(-1)
		for i := start; i < end; i++ {
			v := t.data.At(t.idxArray[i], d)
			if v < minVal {
				minVal = v
			}
			if v > maxVal {
				maxVal = v
			}
		}
		spread := maxVal - minVal
		if spread > bestSpread {
			bestSpread = spread
			bestDim = d
		}
	}
	return bestDim
}

// sortByDim sorts idxArray[start:end] by the given dimension.
func (t *BallTree) sortByDim(start, end, dim int) {
	sub := t.idxArray[start:end]
	data := t.data
	sort.Slice(sub, func(i, j int) bool {
		return data.At(sub[i], dim) < data.At(sub[j], dim)
	})
}

// --- Tree interface ---

func (t *BallTree) Dataset() *mat.Dense { return t.data }
func (t *BallTree) Metric() Metric      { return t.metric }
func (t *BallTree) Rearranges() bool    { return false }
func (t *BallTree) OldFromNew() []int   { return nil }

// SingleTreeTraverse visits every leaf whose ball could hold a point in range
// of query.
func (t *BallTree) SingleTreeTraverse(queryIndex int, query []float64, rule Rule) {
	traverseSingle(t, queryIndex, query, rule)
}

// DualTreeTraverse descends (queryTree, t) node pairs. queryTree must be a
// *BallTree of the same dimensionality.
func (t *BallTree) DualTreeTraverse(queryTree Tree, rule Rule) error {
	qt, ok := queryTree.(*BallTree)
	if !ok {
		return fmt.Errorf("rangesearch: ball tree cannot traverse a %T query tree: %w", queryTree, ErrIncompatibleTree)
	}
	if qt.dims != t.dims {
		return &DimensionMismatchError{Expected: t.dims, Actual: qt.dims}
	}
	if !sameMetric(qt.metric, t.metric) {
		return fmt.Errorf("rangesearch: ball tree query tree uses metric %s, reference uses %s: %w", metricName(qt.metric), metricName(t.metric), ErrIncompatibleTree)
	}
	traverseDual(qt, t, func(queryNode, referenceNode int) Range {
		return t.NodePairBound(referenceNode, qt, queryNode)
	}, rule)
	return nil
}

// Close drops the tree's buffers.
func (t *BallTree) Close() error {
	t.data = nil
	t.nodes = nil
	t.centroids = nil
	t.idxArray = nil
	t.numNodes = 0
	return nil
}

// --- node navigation ---

func (t *BallTree) NumPoints() int            { return t.n }
func (t *BallTree) NumFeatures() int          { return t.dims }
func (t *BallTree) NumNodes() int             { return t.numNodes }
func (t *BallTree) IdxArray() []int           { return t.idxArray }
func (t *BallTree) NodeDataArray() []NodeData { return t.nodes[:t.numNodes] }

func (t *BallTree) ChildNodes(node int) (left, right int) {
	return 2*node + 1, 2*node + 2
}

func (t *BallTree) pointAt(pos int) int { return t.idxArray[pos] }

// PointBound returns the range of possible distances between point and any
// point in node: centroid distance minus and plus the radius.
func (t *BallTree) PointBound(node int, point []float64) Range {
	d := t.metric.Distance(point, t.centroid(node))
	r := t.nodes[node].Radius
	return widenBound(d-r, d+r)
}

// NodePairBound returns the range of possible distances between any point in
// t's node and any point in other's otherNode.
func (t *BallTree) NodePairBound(node int, other *BallTree, otherNode int) Range {
	d := t.metric.Distance(t.centroid(node), other.centroid(otherNode))
	r := t.nodes[node].Radius + other.nodes[otherNode].Radius
	return widenBound(d-r, d+r)
}
