package rangesearch

// remapResults translates result buffers from tree-internal order to caller
// order. List i moves to slot queryOldFromNew[i]; each neighbor value j
// becomes referenceOldFromNew[j]. A nil permutation is the identity, and with
// both nil the buffers are returned untouched. The set of (query, neighbor,
// distance) triples is preserved; only their indexing changes.
func remapResults(neighbors [][]int, distances [][]float64, queryOldFromNew, referenceOldFromNew []int) ([][]int, [][]float64) {
	if queryOldFromNew == nil && referenceOldFromNew == nil {
		return neighbors, distances
	}

	outNeighbors := make([][]int, len(neighbors))
	outDistances := make([][]float64, len(distances))
	for i := range neighbors {
		slot := originalIndex(i, queryOldFromNew)
		outDistances[slot] = distances[i]

		if referenceOldFromNew == nil {
			outNeighbors[slot] = neighbors[i]
			continue
		}
		mapped := make([]int, len(neighbors[i]))
		for j, ref := range neighbors[i] {
			mapped[j] = referenceOldFromNew[ref]
		}
		outNeighbors[slot] = mapped
	}
	return outNeighbors, outDistances
}
