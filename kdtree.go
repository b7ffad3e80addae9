package rangesearch

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// KDTree is a KD-tree spatial index over axis-aligned bounding boxes.
// Construction physically reorders the points so that tree position i is
// Dataset row i; OldFromNew maps those rows back to the caller's indices.
//
// The tree is stored as a complete binary tree in array form:
//   - node i has children at 2*i+1 and 2*i+2
//   - node bounds are stored as min/max per dimension per node
type KDTree struct {
	data       *mat.Dense // points in tree order, one per row
	n          int        // number of points
	dims       int        // dimensionality
	leafSize   int
	metric     Metric
	p          float64    // Lp exponent of metric
	oldFromNew []int      // permutation: tree-order position → original index
	nodes      []NodeData // one entry per array slot; unreached slots are zero
	// nodeBoundsMin[node*dims + j] = min value of feature j in node
	nodeBoundsMin []float64
	// nodeBoundsMax[node*dims + j] = max value of feature j in node
	nodeBoundsMax []float64
	numNodes      int // highest built node index + 1
}

// NewKDTree builds a KD-tree from data, one point per row. leafSize controls
// the max points per leaf node. The metric must be an Lp metric.
func NewKDTree(data mat.Matrix, metric Metric, leafSize int) (*KDTree, error) {
	p, ok := metricP(metric)
	if !ok {
		return nil, fmt.Errorf("rangesearch: metric %T is not supported by the KD-tree: %w", metric, ErrUnsupportedMetric)
	}
	n, dims := data.Dims()
	if n == 0 || dims == 0 {
		return nil, fmt.Errorf("rangesearch: cannot build a KD-tree: %w", ErrEmptyDataset)
	}
	if leafSize < 1 {
		leafSize = 1
	}

	idxArray := make([]int, n)
	for i := range idxArray {
		idxArray[i] = i
	}

	maxNodes := kdMaxNodes(n, leafSize)
	t := &KDTree{
		data:          mat.DenseCopyOf(data),
		n:             n,
		dims:          dims,
		leafSize:      leafSize,
		metric:        metric,
		p:             p,
		oldFromNew:    idxArray,
		nodes:         make([]NodeData, maxNodes),
		nodeBoundsMin: make([]float64, maxNodes*dims),
		nodeBoundsMax: make([]float64, maxNodes*dims),
	}
	t.buildNode(0, 0, n)

	// Move every point to its tree position.
	reordered := mat.NewDense(n, dims, nil)
	for pos, old := range t.oldFromNew {
		reordered.SetRow(pos, t.data.RawRowView(old))
	}
	t.data = reordered

	return t, nil
}

// kdMaxNodes returns an upper bound on the number of nodes needed for a
// binary tree with n points and the given leaf size.
func kdMaxNodes(n, leafSize int) int {
	if n == 0 {
		return 1
	}
	// Depth of tree: ceil(log2(ceil(n/leafSize))) + 1.
	// Number of nodes in a complete binary tree of depth d = 2^(d+1) - 1.
	leaves := (n + leafSize - 1) / leafSize
	depth := 0
	v := 1
	for v < leaves {
		v *= 2
		depth++
	}
	return (1 << (depth + 1)) - 1 + 2 // +2 for safety margin
}

// buildNode recursively builds the tree for points in oldFromNew[start:end].
// During construction t.data is still in caller order.
func (t *KDTree) buildNode(nodeID, start, end int) {
	// Grow arrays if needed (shouldn't happen with good upper bound).
	for nodeID >= len(t.nodes) {
		t.nodes = append(t.nodes, NodeData{})
		t.nodeBoundsMin = append(t.nodeBoundsMin, make([]float64, t.dims)...)
		t.nodeBoundsMax = append(t.nodeBoundsMax, make([]float64, t.dims)...)
	}
	if nodeID+1 > t.numNodes {
		t.numNodes = nodeID + 1
	}

	t.computeNodeBounds(nodeID, start, end)

	count := end - start
	if count <= t.leafSize {
		t.nodes[nodeID] = NodeData{IdxStart: start, IdxEnd: end, IsLeaf: true}
		return
	}

	// Find dimension with greatest spread.
	splitDim := 0
	maxSpread := -1.0
	for d := 0; d < t.dims; d++ {
		spread := t.nodeBoundsMax[nodeID*t.dims+d] - t.nodeBoundsMin[nodeID*t.dims+d]
		if spread > maxSpread {
			maxSpread = spread
			splitDim = d
		}
	}

	// Sort by the split dimension and split at the median.
	t.sortByDimension(start, end, splitDim)
	mid := start + count/2

	t.nodes[nodeID] = NodeData{IdxStart: start, IdxEnd: end, IsLeaf: false}

	t.buildNode(2*nodeID+1, start, mid)
	t.buildNode(2*nodeID+2, mid, end)
}

// computeNodeBounds computes min/max per dimension for points oldFromNew[start:end].
func (t *KDTree) computeNodeBounds(nodeID, start, end int) {
	base := nodeID * t.dims
	for d := 0; d < t.dims; d++ {
		t.nodeBoundsMin[base+d] = math.Inf(1)
		t.nodeBoundsMax[base+d] = math.Inf(-1)
	}
	for i := start; i < end; i++ {
		row := t.data.RawRowView(t.oldFromNew[i])
		for d, v := range row {
			if v < t.nodeBoundsMin[base+d] {
				t.nodeBoundsMin[base+d] = v
			}
			if v > t.nodeBoundsMax[base+d] {
				t.nodeBoundsMax[base+d] = v
			}
		}
	}
}

// sortByDimension sorts oldFromNew[start:end] by the given dimension.
func (t *KDTree) sortByDimension(start, end, dim int) {
	sub := t.oldFromNew[start:end]
	data := t.data
	sort.Slice(sub, func(i, j int) bool {
		return data.At(sub[i], dim) < data.At(sub[j], dim)
	})
}

// --- Tree interface ---

func (t *KDTree) Dataset() *mat.Dense { return t.data }
func (t *KDTree) Metric() Metric      { return t.metric }
func (t *KDTree) Rearranges() bool    { return true }
func (t *KDTree) OldFromNew() []int   { return t.oldFromNew }

// SingleTreeTraverse visits every leaf whose box could hold a point in range
// of query.
func (t *KDTree) SingleTreeTraverse(queryIndex int, query []float64, rule Rule) {
	traverseSingle(t, queryIndex, query, rule)
}

// DualTreeTraverse descends (queryTree, t) node pairs. queryTree must be a
// *KDTree of the same dimensionality.
func (t *KDTree) DualTreeTraverse(queryTree Tree, rule Rule) error {
	qt, ok := queryTree.(*KDTree)
	if !ok {
		return fmt.Errorf("rangesearch: KD-tree cannot traverse a %T query tree: %w", queryTree, ErrIncompatibleTree)
	}
	if qt.dims != t.dims {
		return &DimensionMismatchError{Expected: t.dims, Actual: qt.dims}
	}
	if !sameMetric(qt.metric, t.metric) {
		return fmt.Errorf("rangesearch: KD-tree query tree uses metric %s, reference uses %s: %w", metricName(qt.metric), metricName(t.metric), ErrIncompatibleTree)
	}
	traverseDual(qt, t, func(queryNode, referenceNode int) Range {
		return t.NodePairBound(referenceNode, qt, queryNode)
	}, rule)
	return nil
}

// Close drops the tree's buffers.
func (t *KDTree) Close() error {
	t.data = nil
	t.nodes = nil
	t.nodeBoundsMin = nil
	t.nodeBoundsMax = nil
	t.numNodes = 0
	return nil
}

// --- node navigation ---

func (t *KDTree) NumPoints() int            { return t.n }
func (t *KDTree) NumFeatures() int          { return t.dims }
func (t *KDTree) NumNodes() int             { return t.numNodes }
func (t *KDTree) NodeDataArray() []NodeData { return t.nodes[:t.numNodes] }

func (t *KDTree) ChildNodes(node int) (left, right int) {
	return 2*node + 1, 2*node + 2
}

func (t *KDTree) pointAt(pos int) int { return pos }

// PointBound returns the range of possible distances between point and any
// point in node. Per dimension the nearest gap is 0 inside the box and the
// farthest gap is the distance to the opposite face.
func (t *KDTree) PointBound(node int, point []float64) Range {
	base := node * t.dims
	minAcc := lpAccumulator{p: t.p}
	maxAcc := lpAccumulator{p: t.p}
	for j := 0; j < t.dims; j++ {
		lo := t.nodeBoundsMin[base+j]
		hi := t.nodeBoundsMax[base+j]
		var near float64
		if point[j] < lo {
			near = lo - point[j]
		} else if point[j] > hi {
			near = point[j] - hi
		}
		minAcc.add(near)
		maxAcc.add(math.Max(math.Abs(point[j]-lo), math.Abs(hi-point[j])))
	}
	return widenBound(minAcc.value(), maxAcc.value())
}

// NodePairBound returns the range of possible distances between any point in
// t's node and any point in other's otherNode.
func (t *KDTree) NodePairBound(node int, other *KDTree, otherNode int) Range {
	base1 := node * t.dims
	base2 := otherNode * other.dims
	minAcc := lpAccumulator{p: t.p}
	maxAcc := lpAccumulator{p: t.p}
	for j := 0; j < t.dims; j++ {
		min1, max1 := t.nodeBoundsMin[base1+j], t.nodeBoundsMax[base1+j]
		min2, max2 := other.nodeBoundsMin[base2+j], other.nodeBoundsMax[base2+j]
		// Gap between boxes along dimension j: max(d1, d2, 0).
		d1 := min1 - max2
		d2 := min2 - max1
		minAcc.add(math.Max(d1, math.Max(d2, 0)))
		maxAcc.add(math.Max(max1-min2, max2-min1))
	}
	return widenBound(minAcc.value(), maxAcc.value())
}
