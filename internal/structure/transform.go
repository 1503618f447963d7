package structure

import (
	"ncsdec/internal/expr"
)

// Structural promotion passes. Promotion is all-or-nothing: any
// deviation from the exact pattern falls back to the general construct.

// promoteFor rewrites While loops with an induction pattern into For:
// the body's last statement steps a single local, the loop condition
// references that local, and (when present) the preceding sibling
// statement initializes it.
func promoteFor(r *Region) *Region {
	if r == nil {
		return nil
	}
	walkChildren(r, promoteFor)

	if r.Kind == KindSequence {
		for i, kid := range r.Kids {
			if f := tryFor(kid); f != nil {
				if init := takeInit(r.Kids[:i], f.Step.Target.Slot); init != nil {
					f.Init = init
				}
				r.Kids[i] = f
			}
		}
		return r
	}
	if f := tryFor(r); f != nil {
		return f
	}
	return r
}

// tryFor matches a While whose body ends with `x = x <op> c` for a
// local x named by the condition, detaching the step on success.
func tryFor(r *Region) *Region {
	if r.Kind != KindWhile || isTrueCond(r.Cond) {
		return nil
	}
	slot, step, container := inductionStep(r)
	if slot == nil || !condReferences(r.Cond, slot) {
		return nil
	}
	container.Stmts = container.Stmts[:len(container.Stmts)-1]
	return &Region{Kind: KindFor, Cond: r.Cond, Step: step, Body: r.Body}
}

// inductionStep finds the trailing `x = x <op> c` statement of a While
// body. Returns the stepped slot, a copy of the step statement, and the
// block holding it; the caller detaches it once the loop qualifies.
func inductionStep(w *Region) (*expr.Slot, *expr.Stmt, *Region) {
	stmts, container := trailingStmts(w.Body)
	if len(stmts) == 0 {
		return nil, nil, nil
	}
	last := stmts[len(stmts)-1]
	if last.Kind != expr.StmtAssign || last.Target == nil || last.Target.Kind != expr.LocalRef {
		return nil, nil, nil
	}
	v := last.Value
	if v == nil || v.Kind != expr.Binary || (v.Op != "+" && v.Op != "-") {
		return nil, nil, nil
	}
	slot := last.Target.Slot
	if v.L == nil || v.L.Kind != expr.LocalRef || v.L.Slot != slot {
		return nil, nil, nil
	}
	if v.R == nil || v.R.Kind != expr.IntLit {
		return nil, nil, nil
	}

	step := last
	return slot, &step, container
}

// trailingStmts finds the statement list that ends a region's body.
func trailingStmts(r *Region) ([]expr.Stmt, *Region) {
	switch {
	case r == nil:
		return nil, nil
	case r.Kind == KindBlock:
		return r.Stmts, r
	case r.Kind == KindSequence && len(r.Kids) > 0:
		last := r.Kids[len(r.Kids)-1]
		if last.Kind == KindBlock {
			return last.Stmts, last
		}
	}
	return nil, nil
}

// takeInit removes and returns an `x = <const>` assignment ending the
// preceding sibling statements.
func takeInit(before []*Region, slot *expr.Slot) *expr.Stmt {
	for i := len(before) - 1; i >= 0; i-- {
		if before[i].Kind != KindBlock {
			return nil
		}
		stmts := before[i].Stmts
		if len(stmts) == 0 {
			continue
		}
		last := stmts[len(stmts)-1]
		if last.Kind == expr.StmtAssign && last.Target != nil &&
			last.Target.Kind == expr.LocalRef && last.Target.Slot == slot {
			before[i].Stmts = stmts[:len(stmts)-1]
			init := last
			return &init
		}
		return nil
	}
	return nil
}

func condReferences(e *expr.Expr, slot *expr.Slot) bool {
	if e == nil {
		return false
	}
	if (e.Kind == expr.LocalRef || e.Kind == expr.ParamRef) && e.Slot == slot {
		return true
	}
	if condReferences(e.L, slot) || condReferences(e.R, slot) || condReferences(e.X, slot) {
		return true
	}
	for _, a := range e.Args {
		if condReferences(a, slot) {
			return true
		}
	}
	return false
}

func isTrueCond(e *expr.Expr) bool {
	return e != nil && e.Kind == expr.IntLit && e.Int != 0
}

// promoteSwitch merges an if/else-if chain of equality tests against a
// common selector into a Switch. Requires at least three arms, every
// arm an exact `sel == constant` test; any deviation keeps the chain.
func promoteSwitch(r *Region) *Region {
	if r == nil {
		return nil
	}
	// Top-down: fold the whole chain before descending, or an inner
	// suffix of a long chain would promote on its own first.
	if r.Kind == KindSequence {
		for i, kid := range r.Kids {
			if sw := trySwitch(kid); sw != nil {
				r.Kids[i] = sw
			}
		}
	} else if sw := trySwitch(r); sw != nil {
		r = sw
	}
	walkChildren(r, promoteSwitch)
	return r
}

func trySwitch(r *Region) *Region {
	if r.Kind != KindIf {
		return nil
	}
	var (
		selector *expr.Expr
		cases    []SwitchCase
		cur      = r
	)
	for {
		sel, val, ok := equalityTest(cur.Cond)
		if !ok {
			return nil
		}
		if selector == nil {
			selector = sel
		} else if !sameOperand(selector, sel) {
			return nil
		}
		cases = append(cases, SwitchCase{Value: val, Body: cur.Then})
		if cur.Else == nil {
			break
		}
		if cur.Else.Kind == KindIf {
			cur = cur.Else
			continue
		}
		// Trailing non-test arm becomes the default case.
		if len(cases) < 3 {
			return nil
		}
		return &Region{Kind: KindSwitch, Sel: selector, Cases: cases, Default: cur.Else}
	}
	if len(cases) < 3 {
		return nil
	}
	return &Region{Kind: KindSwitch, Sel: selector, Cases: cases}
}

// equalityTest matches `operand == constant` (either side constant).
func equalityTest(e *expr.Expr) (*expr.Expr, int32, bool) {
	if e == nil || e.Kind != expr.Binary || e.Op != "==" {
		return nil, 0, false
	}
	if e.R != nil && e.R.Kind == expr.IntLit {
		return e.L, e.R.Int, true
	}
	if e.L != nil && e.L.Kind == expr.IntLit {
		return e.R, e.L.Int, true
	}
	return nil, 0, false
}

// sameOperand compares selector expressions structurally: identical
// slots, or identical rendered source for everything else.
func sameOperand(a, b *expr.Expr) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Kind == expr.LocalRef && b.Kind == expr.LocalRef {
		return a.Slot == b.Slot
	}
	return a.String() == b.String()
}

// walkChildren applies f to every child region in place.
func walkChildren(r *Region, f func(*Region) *Region) {
	for i, k := range r.Kids {
		r.Kids[i] = f(k)
	}
	if r.Then != nil {
		r.Then = f(r.Then)
	}
	if r.Else != nil {
		r.Else = f(r.Else)
	}
	if r.Body != nil {
		r.Body = f(r.Body)
	}
	if r.Default != nil {
		r.Default = f(r.Default)
	}
	for i := range r.Cases {
		r.Cases[i].Body = f(r.Cases[i].Body)
	}
}
