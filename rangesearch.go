package rangesearch

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// RangeSearch answers range queries against a fixed reference set.
//
// Depending on configuration it compares every pair (naive), traverses a
// reference tree once per query point (single-tree), or traverses a query
// tree and the reference tree together (dual-tree). When New built the
// reference tree, results are reported in caller order even if the tree
// reorders points internally.
//
// A RangeSearch never mutates its reference tree while searching. Concurrent
// searches are safe as long as the tree supports concurrent reads, which the
// KDTree and BallTree in this package do. Close must not run concurrently
// with searches.
type RangeSearch struct {
	referenceTree        Tree
	referenceSet         *mat.Dense
	oldFromNewReferences []int // nil unless the reference tree rearranges
	treeOwner            bool
	naive                bool
	singleMode           bool
	metric               Metric
	kind                 TreeKind
	leafSize             int
	logger               zerolog.Logger
	closed               bool
}

// New indexes reference (one point per row) for range search. Unless
// cfg.Naive is set, a reference tree is built and owned by the RangeSearch;
// Close releases it.
func New(reference mat.Matrix, cfg Config) (*RangeSearch, error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	if reference == nil {
		return nil, fmt.Errorf("rangesearch: reference set is nil: %w", ErrEmptyDataset)
	}
	n, dims := reference.Dims()
	if n == 0 || dims == 0 {
		return nil, fmt.Errorf("rangesearch: reference set has no points: %w", ErrEmptyDataset)
	}

	rs := &RangeSearch{
		naive:      cfg.Naive,
		singleMode: cfg.SingleMode,
		metric:     cfg.Metric,
		leafSize:   cfg.LeafSize,
		logger:     *cfg.Logger,
	}

	// In naive mode no tree is built.
	if rs.naive {
		rs.referenceSet = mat.DenseCopyOf(reference)
		return rs, nil
	}

	kind, err := selectTreeKind(cfg.Tree, cfg.Metric, dims)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	tree, err := BuildTree(kind, reference, cfg.Metric, cfg.LeafSize)
	if err != nil {
		return nil, err
	}
	rs.logger.Debug().
		Str("tree", string(kind)).
		Int("points", n).
		Int("dims", dims).
		Int("leaf_size", cfg.LeafSize).
		Dur("elapsed", time.Since(start)).
		Msg("built reference tree")

	rs.referenceTree = tree
	rs.referenceSet = tree.Dataset()
	rs.kind = kind
	rs.treeOwner = true
	if tree.Rearranges() {
		rs.oldFromNewReferences = tree.OldFromNew()
	}
	return rs, nil
}

// NewWithTree searches a caller-built reference tree. The RangeSearch borrows
// the tree: it never closes it and never remaps reference indices, which stay
// in the tree's own Dataset order. Base cases use the tree's metric.
// cfg.Naive cannot be combined with a tree.
func NewWithTree(tree Tree, cfg Config) (*RangeSearch, error) {
	if tree == nil || tree.Dataset() == nil {
		return nil, fmt.Errorf("rangesearch: reference tree is nil or closed: %w", ErrInvalidConfiguration)
	}
	if cfg.Naive {
		return nil, fmt.Errorf("rangesearch: naive mode cannot use a pre-built tree: %w", ErrInvalidConfiguration)
	}
	cfg.Metric = tree.Metric()
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	rs := &RangeSearch{
		referenceTree: tree,
		referenceSet:  tree.Dataset(),
		singleMode:    cfg.SingleMode,
		metric:        cfg.Metric,
		leafSize:      cfg.LeafSize,
		logger:        *cfg.Logger,
	}
	if kind, err := treeKindOf(tree); err == nil {
		rs.kind = kind
	}
	return rs, nil
}

// Naive reports whether the RangeSearch compares every pair.
func (rs *RangeSearch) Naive() bool { return rs.naive }

// SingleMode reports whether queries traverse the reference tree one at a time.
func (rs *RangeSearch) SingleMode() bool { return rs.singleMode }

// TreeOwner reports whether the reference tree was built (and will be closed)
// by this RangeSearch.
func (rs *RangeSearch) TreeOwner() bool { return rs.treeOwner }

// ReferenceTree returns the reference tree, or nil in naive mode.
func (rs *RangeSearch) ReferenceTree() Tree { return rs.referenceTree }

// ReferenceSet returns the reference points as held by the search, in tree
// order when a tree is in use.
func (rs *RangeSearch) ReferenceSet() *mat.Dense { return rs.referenceSet }

// Search finds, for every row of query, the reference points whose distance
// lies in r. Result slot i belongs to query row i, and neighbor indices refer
// to rows of the reference matrix given to New.
func (rs *RangeSearch) Search(query mat.Matrix, r Range) (*Result, error) {
	if err := rs.checkSearch(r); err != nil {
		return nil, err
	}
	var numQueries, dims int
	if query != nil {
		numQueries, dims = query.Dims()
	}
	if numQueries == 0 {
		return newResult(0), nil
	}
	if _, refDims := rs.referenceSet.Dims(); dims != refDims {
		return nil, &DimensionMismatchError{Expected: refDims, Actual: dims}
	}

	start := time.Now()
	res := newResult(numQueries)
	var queryOldFromNew []int
	var mode string

	switch {
	case rs.naive:
		mode = "naive"
		querySet := mat.DenseCopyOf(query)
		rules := newSearchRules(rs.referenceSet, querySet, r, res.Neighbors, res.Distances, rs.metric)
		naiveTraverse(rules, numQueries, rs.referenceSet.RawMatrix().Rows)
		res.Stats = rules.stats

	case rs.singleMode:
		mode = "single"
		querySet := mat.DenseCopyOf(query)
		rules := newSearchRules(rs.referenceSet, querySet, r, res.Neighbors, res.Distances, rs.metric)
		for i := 0; i < numQueries; i++ {
			rs.referenceTree.SingleTreeTraverse(i, querySet.RawRowView(i), rules)
		}
		res.Stats = rules.stats

	default:
		mode = "dual"
		queryTree, err := rs.buildQueryTree(query)
		if err != nil {
			return nil, err
		}
		defer rs.releaseTree(queryTree)

		if queryTree.Rearranges() {
			queryOldFromNew = queryTree.OldFromNew()
		}
		rules := newSearchRules(rs.referenceSet, queryTree.Dataset(), r, res.Neighbors, res.Distances, rs.metric)
		if err := rs.referenceTree.DualTreeTraverse(queryTree, rules); err != nil {
			return nil, err
		}
		res.Stats = rules.stats
	}

	res.Neighbors, res.Distances = remapResults(res.Neighbors, res.Distances, queryOldFromNew, rs.referencePermutation())
	rs.logSearch(mode, r, res, start)
	return res, nil
}

// SearchTree searches with a caller-built query tree, which must be of the
// same kind as the reference tree and built with the same metric. Only
// dual-tree mode can use a query tree.
// Result slot i belongs to row i of queryTree.Dataset(); neighbor indices are
// remapped to caller order when the reference tree was built by New.
func (rs *RangeSearch) SearchTree(queryTree Tree, r Range) (*Result, error) {
	if rs.naive || rs.singleMode {
		return nil, fmt.Errorf("rangesearch: cannot search with a query tree in naive or single-tree mode: %w", ErrInvalidConfiguration)
	}
	if err := rs.checkSearch(r); err != nil {
		return nil, err
	}
	if queryTree == nil || queryTree.Dataset() == nil {
		return nil, fmt.Errorf("rangesearch: query tree is nil or closed: %w", ErrInvalidConfiguration)
	}
	if !sameMetric(queryTree.Metric(), rs.metric) {
		return nil, fmt.Errorf("rangesearch: query tree metric %s does not match %s: %w",
			metricName(queryTree.Metric()), metricName(rs.metric), ErrIncompatibleTree)
	}
	querySet := queryTree.Dataset()
	numQueries, dims := querySet.Dims()
	if _, refDims := rs.referenceSet.Dims(); dims != refDims {
		return nil, &DimensionMismatchError{Expected: refDims, Actual: dims}
	}

	start := time.Now()
	res := newResult(numQueries)
	rules := newSearchRules(rs.referenceSet, querySet, r, res.Neighbors, res.Distances, rs.metric)
	if err := rs.referenceTree.DualTreeTraverse(queryTree, rules); err != nil {
		return nil, err
	}
	res.Stats = rules.stats

	res.Neighbors, res.Distances = remapResults(res.Neighbors, res.Distances, nil, rs.referencePermutation())
	rs.logSearch("dual-tree-query", r, res, start)
	return res, nil
}

// SearchSelf uses the reference set as the query set. A point never appears
// in its own neighbor list, even when r includes 0. Result slot i belongs to
// reference row i in caller order.
func (rs *RangeSearch) SearchSelf(r Range) (*Result, error) {
	if err := rs.checkSearch(r); err != nil {
		return nil, err
	}

	start := time.Now()
	n := rs.referenceSet.RawMatrix().Rows
	res := newResult(n)
	rules := newSearchRules(rs.referenceSet, rs.referenceSet, r, res.Neighbors, res.Distances, rs.metric)

	// Both sides share one index space, so one permutation serves both.
	var perm []int
	if rs.referenceTree != nil && rs.referenceTree.Rearranges() {
		perm = rs.referenceTree.OldFromNew()
	}
	rules.suppressSelf(perm, perm)

	var mode string
	switch {
	case rs.naive:
		mode = "naive"
		naiveTraverse(rules, n, n)
	case rs.singleMode:
		mode = "single"
		for i := 0; i < n; i++ {
			rs.referenceTree.SingleTreeTraverse(i, rs.referenceSet.RawRowView(i), rules)
		}
	default:
		mode = "dual"
		if err := rs.referenceTree.DualTreeTraverse(rs.referenceTree, rules); err != nil {
			return nil, err
		}
	}
	res.Stats = rules.stats

	refPerm := rs.referencePermutation()
	res.Neighbors, res.Distances = remapResults(res.Neighbors, res.Distances, refPerm, refPerm)
	rs.logSearch("self-"+mode, r, res, start)
	return res, nil
}

// Close releases the reference tree if this RangeSearch built it. Borrowed
// trees are left untouched. Searches after Close return ErrClosed, as do
// searches over a borrowed tree the caller has closed.
func (rs *RangeSearch) Close() error {
	if rs.closed {
		return nil
	}
	rs.closed = true

	var err error
	if rs.treeOwner && rs.referenceTree != nil {
		err = rs.referenceTree.Close()
	}
	rs.referenceTree = nil
	rs.referenceSet = nil
	rs.oldFromNewReferences = nil
	return err
}

func (rs *RangeSearch) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "RangeSearch [%p]\n", rs)
	if rs.treeOwner {
		b.WriteString("  Tree Owner: TRUE\n")
	}
	if rs.naive {
		b.WriteString("  Naive: TRUE\n")
	}
	if rs.singleMode {
		b.WriteString("  Single Mode: TRUE\n")
	}
	if rs.kind != "" {
		fmt.Fprintf(&b, "  Tree: %s\n", rs.kind)
	}
	fmt.Fprintf(&b, "  Metric: %s\n", metricName(rs.metric))
	return b.String()
}

// checkSearch validates state and range before any traversal state exists.
func (rs *RangeSearch) checkSearch(r Range) error {
	if rs.closed {
		return fmt.Errorf("rangesearch: %w", ErrClosed)
	}
	if rs.referenceTree != nil && rs.referenceTree.Dataset() == nil {
		return fmt.Errorf("rangesearch: reference tree was closed: %w", ErrClosed)
	}
	return r.Validate()
}

// referencePermutation returns the permutation neighbor indices must be
// mapped through: only a tree this RangeSearch built and that rearranges.
func (rs *RangeSearch) referencePermutation() []int {
	if !rs.treeOwner {
		return nil
	}
	return rs.oldFromNewReferences
}

// newQueryTree builds the call-scoped query trees of dual-tree searches.
var newQueryTree = BuildTree

// buildQueryTree builds a call-scoped query tree matching the reference tree.
func (rs *RangeSearch) buildQueryTree(query mat.Matrix) (Tree, error) {
	kind := rs.kind
	if kind == "" {
		var err error
		if kind, err = treeKindOf(rs.referenceTree); err != nil {
			return nil, err
		}
	}
	start := time.Now()
	tree, err := newQueryTree(kind, query, rs.metric, rs.leafSize)
	if err != nil {
		return nil, err
	}
	rows, _ := query.Dims()
	rs.logger.Debug().
		Str("tree", string(kind)).
		Int("points", rows).
		Dur("elapsed", time.Since(start)).
		Msg("built query tree")
	return tree, nil
}

func (rs *RangeSearch) releaseTree(t Tree) {
	if err := t.Close(); err != nil {
		rs.logger.Warn().Err(err).Msg("failed to release query tree")
	}
}

func (rs *RangeSearch) logSearch(mode string, r Range, res *Result, start time.Time) {
	rs.logger.Debug().
		Str("mode", mode).
		Stringer("range", r).
		Int("queries", res.Len()).
		Int("pairs", res.NumPairs()).
		Int("base_cases", res.Stats.BaseCases).
		Int("accepted", res.Stats.Accepted).
		Int("prunes", res.Stats.Prunes).
		Dur("elapsed", time.Since(start)).
		Msg("range search complete")
}
