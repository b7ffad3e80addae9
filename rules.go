package rangesearch

import "gonum.org/v1/gonum/mat"

// Stats counts the work done by one search.
type Stats struct {
	BaseCases int // pairs whose distance was tested against the range
	Accepted  int // pairs reached through an accept-all subtree
	Scores    int // subtree bounds scored
	Prunes    int // subtrees skipped
}

// searchRules is the traversal rule for range search. It appends every
// in-range (query, reference) pair to per-query output lists, in whatever
// index space the query and reference datasets use.
type searchRules struct {
	referenceSet *mat.Dense
	querySet     *mat.Dense
	r            Range
	neighbors    [][]int
	distances    [][]float64
	metric       Metric

	// sameSet suppresses pairs that denote the same original point. The
	// permutations (nil = identity) translate each side back to caller
	// indices before comparing.
	sameSet             bool
	queryOldFromNew     []int
	referenceOldFromNew []int

	stats Stats
}

func newSearchRules(referenceSet, querySet *mat.Dense, r Range, neighbors [][]int, distances [][]float64, metric Metric) *searchRules {
	return &searchRules{
		referenceSet: referenceSet,
		querySet:     querySet,
		r:            r,
		neighbors:    neighbors,
		distances:    distances,
		metric:       metric,
	}
}

// suppressSelf makes the rule skip pairs whose original indices coincide.
func (sr *searchRules) suppressSelf(queryOldFromNew, referenceOldFromNew []int) {
	sr.sameSet = true
	sr.queryOldFromNew = queryOldFromNew
	sr.referenceOldFromNew = referenceOldFromNew
}

func (sr *searchRules) isSelf(queryIndex, referenceIndex int) bool {
	return sr.sameSet &&
		originalIndex(queryIndex, sr.queryOldFromNew) == originalIndex(referenceIndex, sr.referenceOldFromNew)
}

// BaseCase tests one pair and records it if it falls in range.
func (sr *searchRules) BaseCase(queryIndex, referenceIndex int) {
	sr.stats.BaseCases++
	sr.add(queryIndex, referenceIndex)
}

// Accept records a pair from a subtree whose bound lies inside the range.
// The membership test stays on so rounding in the bound cannot admit a point
// whose computed distance falls outside the range.
func (sr *searchRules) Accept(queryIndex, referenceIndex int) {
	sr.stats.Accepted++
	sr.add(queryIndex, referenceIndex)
}

func (sr *searchRules) add(queryIndex, referenceIndex int) {
	if sr.isSelf(queryIndex, referenceIndex) {
		return
	}
	d := sr.metric.Distance(sr.querySet.RawRowView(queryIndex), sr.referenceSet.RawRowView(referenceIndex))
	if !sr.r.Contains(d) {
		return
	}
	sr.neighbors[queryIndex] = append(sr.neighbors[queryIndex], referenceIndex)
	sr.distances[queryIndex] = append(sr.distances[queryIndex], d)
}

// Score prunes a subtree whose bound misses the range entirely, accepts it
// whole when the bound lies inside the range, and recurses otherwise.
func (sr *searchRules) Score(bound Range) Score {
	sr.stats.Scores++
	if bound.Hi < sr.r.Lo || bound.Lo > sr.r.Hi {
		sr.stats.Prunes++
		return ScorePrune
	}
	if sr.r.ContainsRange(bound) {
		return ScoreAcceptAll
	}
	return ScoreRecurse
}

// originalIndex maps an internal index through oldFromNew; nil is identity.
func originalIndex(i int, oldFromNew []int) int {
	if oldFromNew == nil {
		return i
	}
	return oldFromNew[i]
}
