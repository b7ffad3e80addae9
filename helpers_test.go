package rangesearch

import (
	"math/rand"
	"sort"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// randomMatrix returns n points of dimensionality dims drawn uniformly from
// [0, scale).
func randomMatrix(rng *rand.Rand, n, dims int, scale float64) *mat.Dense {
	data := make([]float64, n*dims)
	for i := range data {
		data[i] = rng.Float64() * scale
	}
	return mat.NewDense(n, dims, data)
}

// bruteForceRange computes the expected sorted neighbor lists on the
// original, un-permuted coordinates.
func bruteForceRange(reference, query *mat.Dense, m Metric, r Range, self bool) [][]int {
	nq, _ := query.Dims()
	nr, _ := reference.Dims()
	out := make([][]int, nq)
	for q := 0; q < nq; q++ {
		for j := 0; j < nr; j++ {
			if self && q == j {
				continue
			}
			if r.Contains(m.Distance(query.RawRowView(q), reference.RawRowView(j))) {
				out[q] = append(out[q], j)
			}
		}
	}
	return out
}

// sortedNeighbors returns a copy of res.Neighbors with every list sorted.
func sortedNeighbors(res *Result) [][]int {
	out := make([][]int, len(res.Neighbors))
	for i, ns := range res.Neighbors {
		out[i] = append([]int(nil), ns...)
		sort.Ints(out[i])
	}
	return out
}

// checkNeighbors compares a result against expected sorted neighbor lists
// and verifies every reported distance against the metric.
func checkNeighbors(t *testing.T, label string, res *Result, want [][]int, reference, query *mat.Dense, m Metric) {
	t.Helper()
	got := sortedNeighbors(res)
	if len(got) != len(want) {
		t.Fatalf("%s: %d result lists, want %d", label, len(got), len(want))
	}
	mismatches := 0
	for q := range want {
		if !intsEqual(got[q], want[q]) {
			mismatches++
			if mismatches <= 5 {
				t.Errorf("%s: query %d neighbors = %v, want %v", label, q, got[q], want[q])
			}
		}
	}
	if mismatches > 5 {
		t.Errorf("%s: ... and %d more mismatched queries", label, mismatches-5)
	}
	for q, ns := range res.Neighbors {
		if len(ns) != len(res.Distances[q]) {
			t.Fatalf("%s: query %d has %d neighbors but %d distances", label, q, len(ns), len(res.Distances[q]))
		}
		for k, n := range ns {
			d := m.Distance(query.RawRowView(q), reference.RawRowView(n))
			if !almostEqual(d, res.Distances[q][k], floatTol) {
				t.Errorf("%s: query %d neighbor %d distance = %v, want %v", label, q, n, res.Distances[q][k], d)
			}
		}
	}
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// builtNodes returns the indices of array slots that hold a built node.
func builtNodes(nodes []NodeData) []int {
	var out []int
	for i, nd := range nodes {
		if nd.IdxEnd > nd.IdxStart {
			out = append(out, i)
		}
	}
	return out
}

// checkPermutation verifies that perm is a bijection on 0..n-1.
func checkPermutation(t *testing.T, perm []int, n int) {
	t.Helper()
	if len(perm) != n {
		t.Fatalf("permutation length = %d, want %d", len(perm), n)
	}
	seen := make([]bool, n)
	for _, v := range perm {
		if v < 0 || v >= n {
			t.Fatalf("permutation contains out-of-range index %d", v)
		}
		if seen[v] {
			t.Fatalf("permutation contains duplicate index %d", v)
		}
		seen[v] = true
	}
}

// recordingRule collects every pair a traversal hands it, for checking the
// at-most-once guarantee of the drivers.
type recordingRule struct {
	inner *searchRules
	pairs map[[2]int]int
}

func newRecordingRule(inner *searchRules) *recordingRule {
	return &recordingRule{inner: inner, pairs: make(map[[2]int]int)}
}

func (r *recordingRule) BaseCase(q, ref int) {
	r.pairs[[2]int{q, ref}]++
	r.inner.BaseCase(q, ref)
}

func (r *recordingRule) Accept(q, ref int) {
	r.pairs[[2]int{q, ref}]++
	r.inner.Accept(q, ref)
}

func (r *recordingRule) Score(bound Range) Score { return r.inner.Score(bound) }
