package rangesearch

import (
	"sort"

	"github.com/RoaringBitmap/roaring"
)

// Result holds the output of a range search, indexed by query point.
// Neighbors[i] and Distances[i] are parallel lists: Distances[i][k] is the
// distance from query i to reference point Neighbors[i][k]. Lists are
// unordered unless Sort has been called.
type Result struct {
	Neighbors [][]int
	Distances [][]float64

	// Stats describes the traversal that produced the result.
	Stats Stats
}

func newResult(n int) *Result {
	return &Result{
		Neighbors: make([][]int, n),
		Distances: make([][]float64, n),
	}
}

// Len returns the number of query points.
func (r *Result) Len() int { return len(r.Neighbors) }

// NumPairs returns the total number of (query, neighbor) pairs.
func (r *Result) NumPairs() int {
	var total int
	for _, ns := range r.Neighbors {
		total += len(ns)
	}
	return total
}

// Sort orders every neighbor list by neighbor index, keeping distances aligned.
func (r *Result) Sort() {
	for i := range r.Neighbors {
		sort.Sort(neighborList{idx: r.Neighbors[i], dist: r.Distances[i]})
	}
}

type neighborList struct {
	idx  []int
	dist []float64
}

func (l neighborList) Len() int           { return len(l.idx) }
func (l neighborList) Less(i, j int) bool { return l.idx[i] < l.idx[j] }
func (l neighborList) Swap(i, j int) {
	l.idx[i], l.idx[j] = l.idx[j], l.idx[i]
	l.dist[i], l.dist[j] = l.dist[j], l.dist[i]
}

// NeighborSet returns query q's neighbors as a bitmap.
func (r *Result) NeighborSet(q int) *roaring.Bitmap {
	bm := roaring.New()
	for _, n := range r.Neighbors[q] {
		bm.Add(uint32(n))
	}
	return bm
}

// Coverage returns the set of reference points that are a neighbor of at
// least one query.
func (r *Result) Coverage() *roaring.Bitmap {
	bm := roaring.New()
	for q := range r.Neighbors {
		bm.Or(r.NeighborSet(q))
	}
	return bm
}

// SameNeighbors reports whether r and o list the same neighbor set for
// every query, ignoring list order.
func (r *Result) SameNeighbors(o *Result) bool {
	if r.Len() != o.Len() {
		return false
	}
	for q := range r.Neighbors {
		if len(r.Neighbors[q]) != len(o.Neighbors[q]) {
			return false
		}
		if !r.NeighborSet(q).Equals(o.NeighborSet(q)) {
			return false
		}
	}
	return true
}
