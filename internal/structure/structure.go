package structure

import (
	"sort"

	"ncsdec/internal/cfg"
	"ncsdec/internal/expr"
	"ncsdec/internal/ncs"
)

// Options controls stylistic tie-breaks during structuring.
type Options struct {
	PreferSwitches bool // emit Switch for eligible dispatch chains
}

type sense int

const (
	always sense = iota
	onTrue
	onFalse
)

type nedge struct {
	to    int
	sense sense
}

// node is a reduction-graph vertex. Initially one per basic block; each
// applied rule collapses a recognized subgraph into one node.
type node struct {
	order  int // source order, for deterministic fallback emission
	offset uint32
	region *Region
	cond   *expr.Expr // guards the onTrue/onFalse edges
	succs  []nedge
	dead   bool
}

// Build structures one recovered function into a region tree. The rules
// apply in priority order on every iteration: chain collapse, then
// if/else convergence, then loop collapse. When no rule applies and
// more than one node survives, the residue is emitted as a best-effort
// sequence with jump markers and an unstructured diagnostic.
func Build(fc *expr.FuncCode, opts Options, diags *ncs.Diags) *Region {
	g := newGraph(fc)
	if len(g.nodes) == 0 {
		return &Region{Kind: KindBlock}
	}

	g.rewriteLoopExits(fc.Fn)

	for {
		if g.aliveCount() == 1 {
			break
		}
		if g.ruleSequence() || g.ruleIf() || g.ruleSelfLoop() || g.ruleWhile() {
			continue
		}
		break
	}

	var root *Region
	if g.aliveCount() == 1 {
		root = g.nodes[g.firstAlive()].region
	} else {
		root = g.fallback(fc, diags)
	}

	root = promoteFor(root)
	if opts.PreferSwitches {
		root = promoteSwitch(root)
	}
	return root
}

type graph struct {
	nodes []*node
}

func newGraph(fc *expr.FuncCode) *graph {
	g := &graph{nodes: make([]*node, len(fc.Fn.Blocks))}
	for i, blk := range fc.Fn.Blocks {
		bc := fc.Blocks[i]
		n := &node{
			order:  i,
			region: blockRegion(bc.Stmts, blk.IsTerm),
			cond:   bc.Cond,
		}
		if blk.Start < len(fc.Fn.Insts) {
			n.offset = fc.Fn.Insts[blk.Start].Offset
		}
		for _, e := range blk.Succs {
			n.succs = append(n.succs, nedge{to: e.Block, sense: edgeSense(e.Kind)})
		}
		g.nodes[i] = n
	}
	return g
}

// blockRegion builds a leaf region, folding a terminal block's trailing
// return-cell store into a Return.
func blockRegion(stmts []expr.Stmt, isTerm bool) *Region {
	if !isTerm {
		return &Region{Kind: KindBlock, Stmts: stmts}
	}
	var ret *expr.Expr
	if n := len(stmts); n > 0 && stmts[n-1].Kind == expr.StmtSetReturn {
		ret = stmts[n-1].Value
		stmts = stmts[:n-1]
	}
	return seq(
		&Region{Kind: KindBlock, Stmts: stmts},
		&Region{Kind: KindReturn, Ret: ret},
	)
}

func edgeSense(k cfg.EdgeKind) sense {
	switch k {
	case cfg.BranchTrue:
		return onTrue
	case cfg.BranchFalse:
		return onFalse
	}
	return always
}

func (g *graph) aliveCount() int {
	n := 0
	for _, nd := range g.nodes {
		if !nd.dead {
			n++
		}
	}
	return n
}

func (g *graph) firstAlive() int {
	for i, nd := range g.nodes {
		if !nd.dead {
			return i
		}
	}
	return -1
}

func (g *graph) preds() [][]int {
	p := make([][]int, len(g.nodes))
	for i, nd := range g.nodes {
		if nd.dead {
			continue
		}
		for _, e := range nd.succs {
			p[e.to] = append(p[e.to], i)
		}
	}
	return p
}

// ruleSequence collapses a linear chain link: a has one unconditional
// successor b, and b has no other predecessor.
func (g *graph) ruleSequence() bool {
	preds := g.preds()
	for i, a := range g.nodes {
		if a.dead || a.cond != nil || len(a.succs) != 1 {
			continue
		}
		bi := a.succs[0].to
		if bi == i {
			continue
		}
		// Never absorb the entry node.
		if g.nodes[bi].order == 0 || len(preds[bi]) != 1 {
			continue
		}
		b := g.nodes[bi]
		a.region = seq(a.region, b.region)
		a.cond = b.cond
		a.succs = b.succs
		b.dead = true
		return true
	}
	return false
}

// ruleIf collapses two-way branches whose arms converge (or terminate).
func (g *graph) ruleIf() bool {
	preds := g.preds()
	for _, c := range g.nodes {
		if c.dead || c.cond == nil || len(c.succs) != 2 {
			continue
		}
		var ti, fi int = -1, -1
		for _, e := range c.succs {
			switch e.sense {
			case onTrue:
				ti = e.to
			case onFalse:
				fi = e.to
			}
		}
		if ti < 0 || fi < 0 || ti == fi {
			continue
		}

		if g.tryIfElse(c, ti, fi, preds) {
			return true
		}
		if g.tryIfThen(c, ti, fi, preds, false) {
			return true
		}
		if g.tryIfThen(c, fi, ti, preds, true) {
			return true
		}
	}
	return false
}

// tryIfElse handles: cond → then-arm, else-arm, both single-entry with
// identical continuations (a shared join, or both terminal).
func (g *graph) tryIfElse(c *node, ti, fi int, preds [][]int) bool {
	t, f := g.nodes[ti], g.nodes[fi]
	if !isArm(t, preds[ti]) || !isArm(f, preds[fi]) {
		return false
	}
	tSucc, fSucc := armSucc(t), armSucc(f)
	if tSucc != fSucc {
		return false
	}
	c.region = seq(c.region, &Region{Kind: KindIf, Cond: c.cond, Then: t.region, Else: f.region})
	c.cond = nil
	if tSucc >= 0 {
		c.succs = []nedge{{to: tSucc, sense: always}}
	} else {
		c.succs = nil
	}
	t.dead, f.dead = true, true
	return true
}

// tryIfThen handles a one-armed branch: the arm either rejoins at the
// other successor or terminates. negated selects the false-sense arm.
func (g *graph) tryIfThen(c *node, armIdx, joinIdx int, preds [][]int, negated bool) bool {
	arm := g.nodes[armIdx]
	if !isArm(arm, preds[armIdx]) {
		return false
	}
	if s := armSucc(arm); s != -1 && s != joinIdx {
		return false
	}
	// A terminal arm opposite a path that loops back here is a loop
	// exit, not an if; leave it for the loop rules.
	if armSucc(arm) == -1 && g.reaches(joinIdx, g.indexOf(c)) {
		return false
	}
	cond := c.cond
	if negated {
		cond = negate(cond)
	}
	c.region = seq(c.region, &Region{Kind: KindIf, Cond: cond, Then: arm.region})
	c.cond = nil
	c.succs = []nedge{{to: joinIdx, sense: always}}
	arm.dead = true
	return true
}

// isArm reports whether a node can fold into a branch arm: single
// predecessor, no internal condition, at most one unconditional exit.
func isArm(n *node, preds []int) bool {
	return !n.dead && n.cond == nil && len(preds) == 1 && len(n.succs) <= 1 && n.order != 0
}

// armSucc returns the arm's continuation node, or -1 for terminal arms.
func armSucc(n *node) int {
	if len(n.succs) == 0 {
		return -1
	}
	return n.succs[0].to
}

// ruleSelfLoop collapses a single-node cycle into DoWhile (post-tested)
// or an unconditional loop.
func (g *graph) ruleSelfLoop() bool {
	for i, n := range g.nodes {
		if n.dead {
			continue
		}
		selfAt := -1
		for k, e := range n.succs {
			if e.to == i {
				selfAt = k
			}
		}
		if selfAt < 0 {
			continue
		}

		if n.cond != nil {
			cond := n.cond
			if n.succs[selfAt].sense == onFalse {
				cond = negate(cond)
			}
			n.region = &Region{Kind: KindDoWhile, Body: n.region, Cond: cond}
			n.cond = nil
			var rest []nedge
			for k, e := range n.succs {
				if k != selfAt {
					rest = append(rest, nedge{to: e.to, sense: always})
				}
			}
			n.succs = rest
			return true
		}
		if len(n.succs) == 1 {
			n.region = &Region{Kind: KindWhile, Cond: trueExpr(), Body: n.region}
			n.succs = nil
			return true
		}
	}
	return false
}

// ruleWhile collapses a pre-tested loop: conditional header, one arm a
// single-entry body whose only exit is the back edge.
func (g *graph) ruleWhile() bool {
	preds := g.preds()
	for hi, h := range g.nodes {
		if h.dead || h.cond == nil || len(h.succs) != 2 {
			continue
		}
		for _, e := range h.succs {
			bi := e.to
			if bi == hi {
				continue
			}
			b := g.nodes[bi]
			if b.dead || b.cond != nil || len(preds[bi]) != 1 || len(b.succs) != 1 || b.succs[0].to != hi {
				continue
			}
			exit := otherSucc(h.succs, bi)

			cond := h.cond
			if e.sense == onFalse {
				cond = negate(cond)
			}
			if isEmptyBlock(h.region) {
				h.region = &Region{Kind: KindWhile, Cond: cond, Body: b.region}
			} else {
				// The header runs statements before its test each
				// iteration; lower to an unconditional loop with an
				// explicit exit check.
				h.region = &Region{Kind: KindWhile, Cond: trueExpr(), Body: seq(
					h.region,
					&Region{Kind: KindIf, Cond: negate(cond), Then: &Region{Kind: KindBreak}},
					b.region,
				)}
			}
			h.cond = nil
			if exit >= 0 {
				h.succs = []nedge{{to: exit, sense: always}}
			} else {
				h.succs = nil
			}
			b.dead = true
			return true
		}
	}
	return false
}

// reaches reports whether to is reachable from from over alive nodes.
func (g *graph) reaches(from, to int) bool {
	if from == to {
		return true
	}
	seen := make([]bool, len(g.nodes))
	stack := []int{from}
	seen[from] = true
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range g.nodes[n].succs {
			if e.to == to {
				return true
			}
			if !seen[e.to] && !g.nodes[e.to].dead {
				seen[e.to] = true
				stack = append(stack, e.to)
			}
		}
	}
	return false
}

func otherSucc(succs []nedge, not int) int {
	for _, e := range succs {
		if e.to != not {
			return e.to
		}
	}
	return -1
}

func isEmptyBlock(r *Region) bool {
	return r == nil || (r.Kind == KindBlock && len(r.Stmts) == 0)
}

func trueExpr() *expr.Expr {
	return &expr.Expr{Kind: expr.IntLit, Type: expr.TypeInt, Int: 1}
}

// rewriteLoopExits turns in-loop jumps to a loop's canonical exit into
// Break markers and secondary back edges into Continue markers, so the
// reduction rules see single-exit, single-latch loops.
func (g *graph) rewriteLoopExits(f *cfg.Func) {
	type loop struct {
		header  int
		latch   int
		members map[int]bool
	}

	preds := f.Preds()
	byHeader := make(map[int]*loop)
	var headers []int
	for l := range f.Blocks {
		for _, s := range f.Blocks[l].Succs {
			h := s.Block
			if !f.Dominates(h, l) {
				continue
			}
			lp := byHeader[h]
			if lp == nil {
				lp = &loop{header: h, latch: l, members: map[int]bool{h: true}}
				byHeader[h] = lp
				headers = append(headers, h)
			}
			if l > lp.latch {
				lp.latch = l
			}
			// Natural loop body: blocks reaching the latch without
			// passing the header.
			stack := []int{l}
			for len(stack) > 0 {
				n := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if lp.members[n] {
					continue
				}
				lp.members[n] = true
				for _, p := range preds[n] {
					stack = append(stack, p)
				}
			}
		}
	}
	sort.Ints(headers)

	for _, h := range headers {
		lp := byHeader[h]

		// Canonical exit: the header's out-of-loop successor if it has
		// one, otherwise the latch's.
		exit := -1
		for _, cand := range []int{lp.header, lp.latch} {
			for _, e := range g.nodes[cand].succs {
				if !lp.members[e.to] {
					exit = e.to
					break
				}
			}
			if exit >= 0 {
				break
			}
		}

		for m := range lp.members {
			n := g.nodes[m]
			for k := range n.succs {
				to := n.succs[k].to
				isBreak := exit >= 0 && to == exit && m != lp.header && m != lp.latch
				isContinue := to == lp.header && m != lp.latch && m != lp.header
				if !isBreak && !isContinue {
					continue
				}
				marker := &Region{Kind: KindBreak}
				if isContinue {
					marker = &Region{Kind: KindContinue}
				}
				g.cutEdge(n, k, marker)
				break
			}
		}
	}
}

// cutEdge removes succs[k], materializing the jump as a marker region.
// A conditional node becomes `if (cond) marker;` with its other edge
// left unconditional.
func (g *graph) cutEdge(n *node, k int, marker *Region) {
	if n.cond != nil && len(n.succs) == 2 {
		cond := n.cond
		if n.succs[k].sense == onFalse {
			cond = negate(cond)
		}
		n.region = seq(n.region, &Region{Kind: KindIf, Cond: cond, Then: marker})
		n.cond = nil
		other := n.succs[1-k]
		n.succs = []nedge{{to: other.to, sense: always}}
		return
	}
	n.region = seq(n.region, marker)
	n.succs = append(n.succs[:k], n.succs[k+1:]...)
}

// fallback emits the surviving nodes in source order with jump markers.
// Irreducible graphs are rare but must not crash the pipeline.
func (g *graph) fallback(fc *expr.FuncCode, diags *ncs.Diags) *Region {
	var alive []*node
	for _, n := range g.nodes {
		if !n.dead {
			alive = append(alive, n)
		}
	}
	sort.Slice(alive, func(i, j int) bool { return alive[i].order < alive[j].order })

	diags.Addf(fc.Fn.EntryOffset, ncs.DiagUnstructured,
		"%s: %d region(s) could not be structured; emitting jump markers", fc.Fn.Name, len(alive))

	var kids []*Region
	for i, n := range alive {
		kids = append(kids, &Region{Kind: KindLabel, Label: n.offset}, n.region)
		if n.cond != nil && len(n.succs) == 2 {
			var ti, fi int
			for _, e := range n.succs {
				if e.sense == onTrue {
					ti = e.to
				} else {
					fi = e.to
				}
			}
			kids = append(kids,
				&Region{Kind: KindIf, Cond: n.cond, Then: &Region{Kind: KindGoto, Label: g.nodes[ti].offset}},
				&Region{Kind: KindGoto, Label: g.nodes[fi].offset})
			continue
		}
		if len(n.succs) == 1 {
			next := -1
			if i+1 < len(alive) {
				next = g.indexOf(alive[i+1])
			}
			if n.succs[0].to != next {
				kids = append(kids, &Region{Kind: KindGoto, Label: g.nodes[n.succs[0].to].offset})
			}
		}
	}
	return seq(kids...)
}

func (g *graph) indexOf(n *node) int {
	for i, m := range g.nodes {
		if m == n {
			return i
		}
	}
	return -1
}
