package structure

import (
	"testing"

	"ncsdec/internal/expr"
)

func localRef(s *expr.Slot) *expr.Expr {
	return &expr.Expr{Kind: expr.LocalRef, Type: expr.TypeInt, Slot: s}
}

func intLit(v int32) *expr.Expr {
	return &expr.Expr{Kind: expr.IntLit, Type: expr.TypeInt, Int: v}
}

func eq(l, r *expr.Expr) *expr.Expr {
	return &expr.Expr{Kind: expr.Binary, Type: expr.TypeInt, Op: "==", L: l, R: r}
}

func callStmt(name string) expr.Stmt {
	return expr.Stmt{Kind: expr.StmtExpr, Value: &expr.Expr{Kind: expr.Call, Type: expr.TypeVoid, Callee: name}}
}

// chain builds if (sel == vals[0]) ... else if (sel == vals[n-1]) ...
// with an optional trailing else arm.
func chain(sel *expr.Slot, vals []int32, withDefault bool) *Region {
	var root, cur *Region
	for i, v := range vals {
		ifr := &Region{
			Kind: KindIf,
			Cond: eq(localRef(sel), intLit(v)),
			Then: &Region{Kind: KindBlock, Stmts: []expr.Stmt{callStmt("Arm")}},
		}
		if i == 0 {
			root = ifr
		} else {
			cur.Else = ifr
		}
		cur = ifr
	}
	if withDefault {
		cur.Else = &Region{Kind: KindBlock, Stmts: []expr.Stmt{callStmt("Fallback")}}
	}
	return root
}

func TestPromoteSwitchThreeArms(t *testing.T) {
	sel := &expr.Slot{Name: "local0", Type: expr.TypeInt}
	root := promoteSwitch(chain(sel, []int32{1, 2, 3}, false))

	if root.Kind != KindSwitch {
		t.Fatalf("kind = %d, want Switch", root.Kind)
	}
	if len(root.Cases) != 3 {
		t.Fatalf("cases = %d, want 3", len(root.Cases))
	}
	for i, want := range []int32{1, 2, 3} {
		if root.Cases[i].Value != want {
			t.Errorf("case %d value = %d, want %d", i, root.Cases[i].Value, want)
		}
	}
	if root.Default != nil {
		t.Error("no default expected")
	}
	if got := root.Sel.String(); got != "local0" {
		t.Errorf("selector = %q, want local0", got)
	}
}

func TestPromoteSwitchDefaultArm(t *testing.T) {
	sel := &expr.Slot{Name: "local0", Type: expr.TypeInt}
	root := promoteSwitch(chain(sel, []int32{1, 2, 3}, true))

	if root.Kind != KindSwitch {
		t.Fatalf("kind = %d, want Switch", root.Kind)
	}
	if root.Default == nil {
		t.Fatal("want a default arm")
	}
}

func TestPromoteSwitchTooFewArms(t *testing.T) {
	sel := &expr.Slot{Name: "local0", Type: expr.TypeInt}
	root := promoteSwitch(chain(sel, []int32{1, 2}, false))
	if root.Kind != KindIf {
		t.Errorf("kind = %d, want If preserved", root.Kind)
	}
}

func TestPromoteSwitchMixedSelectors(t *testing.T) {
	a := &expr.Slot{Name: "local0", Type: expr.TypeInt}
	b := &expr.Slot{Name: "local1", Type: expr.TypeInt}
	root := chain(a, []int32{1, 2}, false)
	root.Else.Else = &Region{
		Kind: KindIf,
		Cond: eq(localRef(b), intLit(3)),
		Then: &Region{Kind: KindBlock, Stmts: []expr.Stmt{callStmt("Arm")}},
	}
	got := promoteSwitch(root)
	if got.Kind != KindIf {
		t.Errorf("kind = %d, want If preserved for mixed selectors", got.Kind)
	}
}

func TestPromoteSwitchNonEqualityArm(t *testing.T) {
	sel := &expr.Slot{Name: "local0", Type: expr.TypeInt}
	root := chain(sel, []int32{1, 2, 3}, false)
	root.Cond = &expr.Expr{Kind: expr.Binary, Type: expr.TypeInt, Op: "<", L: localRef(sel), R: intLit(1)}
	got := promoteSwitch(root)
	if got.Kind != KindIf {
		t.Errorf("kind = %d, want If preserved for non-equality test", got.Kind)
	}
}

func TestPromoteForStandalone(t *testing.T) {
	x := &expr.Slot{Name: "local0", Type: expr.TypeInt}
	step := expr.Stmt{
		Kind:   expr.StmtAssign,
		Target: localRef(x),
		Value: &expr.Expr{Kind: expr.Binary, Type: expr.TypeInt, Op: "+",
			L: localRef(x), R: intLit(1)},
	}
	w := &Region{
		Kind: KindWhile,
		Cond: &expr.Expr{Kind: expr.Binary, Type: expr.TypeInt, Op: "<", L: localRef(x), R: intLit(10)},
		Body: &Region{Kind: KindBlock, Stmts: []expr.Stmt{callStmt("Body"), step}},
	}
	got := promoteFor(w)
	if got.Kind != KindFor {
		t.Fatalf("kind = %d, want For", got.Kind)
	}
	if got.Step == nil {
		t.Fatal("want a step statement")
	}
	if n := len(got.Body.Stmts); n != 1 {
		t.Errorf("body stmts = %d, want 1 (step removed)", n)
	}
}

func TestPromoteForUnrelatedCounter(t *testing.T) {
	x := &expr.Slot{Name: "local0", Type: expr.TypeInt}
	y := &expr.Slot{Name: "local1", Type: expr.TypeInt}
	step := expr.Stmt{
		Kind:   expr.StmtAssign,
		Target: localRef(y),
		Value: &expr.Expr{Kind: expr.Binary, Type: expr.TypeInt, Op: "+",
			L: localRef(y), R: intLit(1)},
	}
	w := &Region{
		Kind: KindWhile,
		Cond: &expr.Expr{Kind: expr.Binary, Type: expr.TypeInt, Op: "<", L: localRef(x), R: intLit(10)},
		Body: &Region{Kind: KindBlock, Stmts: []expr.Stmt{step}},
	}
	got := promoteFor(w)
	if got.Kind != KindWhile {
		t.Errorf("kind = %d, want While preserved (cond does not use the counter)", got.Kind)
	}
}

func TestNegateInvertsComparisons(t *testing.T) {
	x := &expr.Slot{Name: "local0", Type: expr.TypeInt}
	for _, tc := range []struct{ op, want string }{
		{"<", "local0 >= 1"},
		{">=", "local0 < 1"},
		{"==", "local0 != 1"},
		{"!=", "local0 == 1"},
	} {
		e := &expr.Expr{Kind: expr.Binary, Type: expr.TypeInt, Op: tc.op, L: localRef(x), R: intLit(1)}
		if got := negate(e).String(); got != tc.want {
			t.Errorf("negate(%s) = %q, want %q", tc.op, got, tc.want)
		}
	}
	ref := localRef(x)
	if got := negate(ref).String(); got != "!local0" {
		t.Errorf("negate(ref) = %q, want !local0", got)
	}
	if got := negate(negate(ref)); got != ref {
		t.Error("double negation must cancel")
	}
}
