package rangesearch

// naiveTraverse evaluates every (query, reference) pair exactly once.
func naiveTraverse(rule Rule, numQueries, numReferences int) {
	for q := 0; q < numQueries; q++ {
		for r := 0; r < numReferences; r++ {
			rule.BaseCase(q, r)
		}
	}
}

// singleTraverser descends one reference tree for one query point.
type singleTraverser struct {
	tree       nodeTree
	rule       Rule
	queryIndex int
	query      []float64
}

// traverseSingle runs a single-tree traversal of t for the given query point.
func traverseSingle(t nodeTree, queryIndex int, query []float64, rule Rule) {
	if len(t.NodeDataArray()) == 0 {
		return
	}
	s := &singleTraverser{tree: t, rule: rule, queryIndex: queryIndex, query: query}
	s.visit(0, t.PointBound(0, query))
}

func (s *singleTraverser) visit(node int, bound Range) {
	switch s.rule.Score(bound) {
	case ScorePrune:
		return
	case ScoreAcceptAll:
		s.acceptAll(node)
		return
	}

	nd := s.tree.NodeDataArray()[node]
	if nd.IsLeaf {
		for pos := nd.IdxStart; pos < nd.IdxEnd; pos++ {
			s.rule.BaseCase(s.queryIndex, s.tree.pointAt(pos))
		}
		return
	}

	// Nearer child first.
	left, right := s.tree.ChildNodes(node)
	leftBound := s.tree.PointBound(left, s.query)
	rightBound := s.tree.PointBound(right, s.query)
	if rightBound.Lo < leftBound.Lo {
		left, right = right, left
		leftBound, rightBound = rightBound, leftBound
	}
	s.visit(left, leftBound)
	s.visit(right, rightBound)
}

func (s *singleTraverser) acceptAll(node int) {
	nd := s.tree.NodeDataArray()[node]
	for pos := nd.IdxStart; pos < nd.IdxEnd; pos++ {
		s.rule.Accept(s.queryIndex, s.tree.pointAt(pos))
	}
}

// dualTraverser descends (query node, reference node) pairs. bound returns
// the possible distances between any point of the query node and any point
// of the reference node.
type dualTraverser struct {
	query     nodeTree
	reference nodeTree
	bound     func(queryNode, referenceNode int) Range
	rule      Rule
}

// traverseDual runs a dual-tree traversal starting at both roots. Every
// (query point, reference point) pair reaches the rule at most once: each
// point lives in exactly one leaf and each recursion step partitions the
// remaining node-pair space.
func traverseDual(query, reference nodeTree, bound func(queryNode, referenceNode int) Range, rule Rule) {
	if len(query.NodeDataArray()) == 0 || len(reference.NodeDataArray()) == 0 {
		return
	}
	d := &dualTraverser{query: query, reference: reference, bound: bound, rule: rule}
	d.visit(0, 0)
}

func (d *dualTraverser) visit(queryNode, referenceNode int) {
	switch d.rule.Score(d.bound(queryNode, referenceNode)) {
	case ScorePrune:
		return
	case ScoreAcceptAll:
		d.acceptAll(queryNode, referenceNode)
		return
	}

	qn := d.query.NodeDataArray()[queryNode]
	rn := d.reference.NodeDataArray()[referenceNode]

	switch {
	case qn.IsLeaf && rn.IsLeaf:
		for qp := qn.IdxStart; qp < qn.IdxEnd; qp++ {
			q := d.query.pointAt(qp)
			for rp := rn.IdxStart; rp < rn.IdxEnd; rp++ {
				d.rule.BaseCase(q, d.reference.pointAt(rp))
			}
		}
	case qn.IsLeaf:
		rl, rr := d.reference.ChildNodes(referenceNode)
		d.visit(queryNode, rl)
		d.visit(queryNode, rr)
	case rn.IsLeaf:
		ql, qr := d.query.ChildNodes(queryNode)
		d.visit(ql, referenceNode)
		d.visit(qr, referenceNode)
	default:
		ql, qr := d.query.ChildNodes(queryNode)
		rl, rr := d.reference.ChildNodes(referenceNode)
		d.visit(ql, rl)
		d.visit(ql, rr)
		d.visit(qr, rl)
		d.visit(qr, rr)
	}
}

func (d *dualTraverser) acceptAll(queryNode, referenceNode int) {
	qn := d.query.NodeDataArray()[queryNode]
	rn := d.reference.NodeDataArray()[referenceNode]
	for qp := qn.IdxStart; qp < qn.IdxEnd; qp++ {
		q := d.query.pointAt(qp)
		for rp := rn.IdxStart; rp < rn.IdxEnd; rp++ {
			d.rule.Accept(q, d.reference.pointAt(rp))
		}
	}
}
