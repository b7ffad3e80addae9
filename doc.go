// Package rangesearch answers range queries over points in a metric space:
// for every query point it reports all reference points whose distance falls
// inside a closed interval [lo, hi].
//
// Exhaustive comparison costs O(n·m). Tree-based search avoids most of that
// work by bounding the distance between a query and a whole subtree and
// skipping subtrees whose bound cannot meet the interval.
//
// Basic usage:
//
//	cfg := rangesearch.DefaultConfig()
//	rs, err := rangesearch.New(reference, cfg) // reference: *mat.Dense, one point per row
//	defer rs.Close()
//	res, err := rs.Search(query, rangesearch.NewRange(0, 2.5))
//	// res.Neighbors[i] are the reference rows within [0, 2.5] of query row i
//	// res.Distances[i][k] is the distance to res.Neighbors[i][k]
//
// SearchSelf uses the reference set as its own query set and never reports
// a point as its own neighbor.
//
// # Search strategies
//
// By default a query tree is built for every Search call and traversed
// together with the reference tree (dual-tree). Set Config fields to choose
// another strategy:
//
//	cfg.Naive = true      // compare every pair, no trees
//	cfg.SingleMode = true // traverse the reference tree once per query point
//
// All strategies return the same neighbor sets. Config.Tree chooses the index:
// the KD-tree reorders its points for locality, the ball tree keeps them in
// caller order. Either way, a Result from Search or SearchSelf on a
// RangeSearch built by New is indexed by the caller's rows. A tree passed to
// NewWithTree keeps its own Dataset order for neighbor indices, and
// SearchTree result slots follow the query tree's Dataset order.
package rangesearch
