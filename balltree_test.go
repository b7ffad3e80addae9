package rangesearch

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestBallTree_Construction_BasicProperties(t *testing.T) {
	data := mat.NewDense(6, 2, []float64{
		0, 0,
		1, 0,
		2, 0,
		0, 3,
		1, 3,
		2, 3,
	})
	tree, err := NewBallTree(data, EuclideanMetric{}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tree.NumPoints() != 6 {
		t.Errorf("NumPoints() = %d, want 6", tree.NumPoints())
	}
	if tree.NumFeatures() != 2 {
		t.Errorf("NumFeatures() = %d, want 2", tree.NumFeatures())
	}
	if tree.Rearranges() {
		t.Error("ball tree should keep caller order")
	}
	if tree.OldFromNew() != nil {
		t.Error("OldFromNew() should be nil for a tree that does not rearrange")
	}
	checkPermutation(t, tree.IdxArray(), 6)

	// Dataset stays in caller order.
	if !mat.Equal(tree.Dataset(), data) {
		t.Error("Dataset() differs from the input matrix")
	}
}

func TestBallTree_Construction_LeavesPartitionPoints(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tree, err := NewBallTree(randomMatrix(rng, 37, 3, 10), EuclideanMetric{}, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	covered := make([]int, 37)
	nodes := tree.NodeDataArray()
	for _, id := range builtNodes(nodes) {
		nd := nodes[id]
		if !nd.IsLeaf {
			continue
		}
		if nd.IdxEnd-nd.IdxStart > 4 {
			t.Errorf("leaf %d holds %d points, want <= 4", id, nd.IdxEnd-nd.IdxStart)
		}
		for p := nd.IdxStart; p < nd.IdxEnd; p++ {
			covered[tree.pointAt(p)]++
		}
	}
	for i, c := range covered {
		if c != 1 {
			t.Errorf("point %d covered by %d leaves, want 1", i, c)
		}
	}
}

func TestBallTree_Construction_RadiusEnclosesPoints(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	data := randomMatrix(rng, 50, 2, 10)
	tree, err := NewBallTree(data, ManhattanMetric{}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	nodes := tree.NodeDataArray()
	for _, id := range builtNodes(nodes) {
		nd := nodes[id]
		c := tree.centroid(id)
		for p := nd.IdxStart; p < nd.IdxEnd; p++ {
			d := ManhattanMetric{}.Distance(c, data.RawRowView(tree.pointAt(p)))
			if d > nd.Radius+floatTol {
				t.Errorf("node %d: point at distance %v outside radius %v", id, d, nd.Radius)
			}
		}
	}
}

func TestBallTree_Construction_CustomMetric(t *testing.T) {
	data := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	custom := DistanceFunc(func(a, b []float64) float64 { return math.Abs(a[0] - b[0]) })
	tree, err := NewBallTree(data, custom, 1)
	if err != nil {
		t.Fatalf("ball tree should accept any metric: %v", err)
	}
	if tree.NumPoints() != 4 {
		t.Errorf("NumPoints() = %d, want 4", tree.NumPoints())
	}
}

func TestBallTree_Construction_EmptyDataset(t *testing.T) {
	if _, err := NewBallTree(&mat.Dense{}, EuclideanMetric{}, 1); !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("expected ErrEmptyDataset, got %v", err)
	}
}

func TestBallTree_PointBound_EnclosesActualDistances(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	data := randomMatrix(rng, 40, 3, 5)
	tree, err := NewBallTree(data, EuclideanMetric{}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	query := []float64{2.5, -1, 7}
	nodes := tree.NodeDataArray()
	for _, id := range builtNodes(nodes) {
		b := tree.PointBound(id, query)
		nd := nodes[id]
		for p := nd.IdxStart; p < nd.IdxEnd; p++ {
			d := EuclideanMetric{}.Distance(query, data.RawRowView(tree.pointAt(p)))
			if d < b.Lo || d > b.Hi {
				t.Errorf("node %d bound %v does not enclose distance %v", id, b, d)
			}
		}
	}
}

func TestBallTree_NodePairBound_EnclosesActualDistances(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	refData := randomMatrix(rng, 25, 2, 10)
	qryData := randomMatrix(rng, 15, 2, 10)
	ref, _ := NewBallTree(refData, EuclideanMetric{}, 3)
	qry, _ := NewBallTree(qryData, EuclideanMetric{}, 3)

	for _, rn := range builtNodes(ref.NodeDataArray()) {
		for _, qn := range builtNodes(qry.NodeDataArray()) {
			b := ref.NodePairBound(rn, qry, qn)
			rd, qd := ref.NodeDataArray()[rn], qry.NodeDataArray()[qn]
			for rp := rd.IdxStart; rp < rd.IdxEnd; rp++ {
				for qp := qd.IdxStart; qp < qd.IdxEnd; qp++ {
					d := EuclideanMetric{}.Distance(refData.RawRowView(ref.pointAt(rp)), qryData.RawRowView(qry.pointAt(qp)))
					if d < b.Lo || d > b.Hi {
						t.Errorf("nodes (%d, %d): bound %v does not enclose distance %v", rn, qn, b, d)
					}
				}
			}
		}
	}
}

func TestBallTree_SingleTreeTraverse_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	data := randomMatrix(rng, 60, 2, 10)
	query := randomMatrix(rng, 12, 2, 10)
	tree, _ := NewBallTree(data, ChebyshevMetric{}, 4)
	r := NewRange(0.5, 2.5)

	res := newResult(12)
	rules := newSearchRules(data, query, r, res.Neighbors, res.Distances, ChebyshevMetric{})
	rec := newRecordingRule(rules)
	for q := 0; q < 12; q++ {
		tree.SingleTreeTraverse(q, query.RawRowView(q), rec)
	}
	for pair, n := range rec.pairs {
		if n != 1 {
			t.Errorf("pair %v evaluated %d times", pair, n)
		}
	}
	checkNeighbors(t, "ball single", res, bruteForceRange(data, query, ChebyshevMetric{}, r, false), data, query, ChebyshevMetric{})
}

func TestBallTree_DualTreeTraverse_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	refData := randomMatrix(rng, 55, 2, 10)
	qryData := randomMatrix(rng, 30, 2, 10)
	ref, _ := NewBallTree(refData, EuclideanMetric{}, 3)
	qry, _ := NewBallTree(qryData, EuclideanMetric{}, 3)
	r := NewRange(1, 4)

	res := newResult(30)
	rules := newSearchRules(refData, qryData, r, res.Neighbors, res.Distances, EuclideanMetric{})
	rec := newRecordingRule(rules)
	if err := ref.DualTreeTraverse(qry, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for pair, n := range rec.pairs {
		if n != 1 {
			t.Errorf("pair %v evaluated %d times", pair, n)
		}
	}
	checkNeighbors(t, "ball dual", res, bruteForceRange(refData, qryData, EuclideanMetric{}, r, false), refData, qryData, EuclideanMetric{})
}

func TestBallTree_DualTreeTraverse_IncompatibleQueryTree(t *testing.T) {
	data := mat.NewDense(3, 1, []float64{0, 1, 2})
	ref, _ := NewBallTree(data, EuclideanMetric{}, 1)
	qry, _ := NewKDTree(data, EuclideanMetric{}, 1)
	if err := ref.DualTreeTraverse(qry, &countingRule{}); !errors.Is(err, ErrIncompatibleTree) {
		t.Errorf("expected ErrIncompatibleTree, got %v", err)
	}
}

func TestBallTree_DualTreeTraverse_DimensionMismatch(t *testing.T) {
	ref, _ := NewBallTree(mat.NewDense(2, 2, []float64{0, 0, 1, 1}), EuclideanMetric{}, 1)
	qry, _ := NewBallTree(mat.NewDense(2, 3, []float64{0, 0, 0, 1, 1, 1}), EuclideanMetric{}, 1)
	err := ref.DualTreeTraverse(qry, &countingRule{})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestBallTree_DualTreeTraverse_MetricMismatch(t *testing.T) {
	data := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	ref, _ := NewBallTree(data, EuclideanMetric{}, 1)
	scaled := DistanceFunc(func(a, b []float64) float64 { return 0.1 * math.Abs(a[0]-b[0]) })
	qry, _ := NewBallTree(data, scaled, 1)

	called := false
	rule := &countingRule{onBaseCase: func() { called = true }}
	if err := ref.DualTreeTraverse(qry, rule); !errors.Is(err, ErrIncompatibleTree) {
		t.Errorf("expected ErrIncompatibleTree, got %v", err)
	}
	if called {
		t.Error("rule was called before the metric mismatch was reported")
	}
}
