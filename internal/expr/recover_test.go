package expr_test

import (
	"testing"

	"ncsdec/internal/cfg"
	"ncsdec/internal/expr"
	"ncsdec/internal/ncs"
	"ncsdec/internal/ncs/ncstest"
	"ncsdec/internal/nwscript"
)

func recoverProgram(t *testing.T, b *ncstest.Builder, strict bool) (*expr.Result, *ncs.Diags) {
	t.Helper()
	p := b.Decode(ncs.VariantK1)
	var diags ncs.Diags
	funcs, err := cfg.Partition(p, &diags)
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	table, err := nwscript.TableFor(ncs.VariantK1)
	if err != nil {
		t.Fatalf("TableFor: %v", err)
	}
	return expr.Recover(funcs, nwscript.NewResolver(table, strict), &diags), &diags
}

func TestRecoverLocalAssign(t *testing.T) {
	// int local0; local0 = 5;
	b := ncstest.New().
		RSAddI().
		ConstI(5).
		CpDownSp(-8, 4).
		MovSp(-4).
		Retn()

	rec, _ := recoverProgram(t, b, false)
	fc := rec.Funcs[0]
	if len(fc.Locals) != 1 {
		t.Fatalf("locals = %d, want 1", len(fc.Locals))
	}
	if fc.Locals[0].Type != expr.TypeInt {
		t.Errorf("local type = %s, want int", fc.Locals[0].Type)
	}
	var stmts []expr.Stmt
	for _, bc := range fc.Blocks {
		stmts = append(stmts, bc.Stmts...)
	}
	if len(stmts) != 1 {
		t.Fatalf("stmts = %d, want 1", len(stmts))
	}
	st := stmts[0]
	if st.Kind != expr.StmtAssign || st.Target.Slot != fc.Locals[0] {
		t.Fatalf("stmt = %+v, want assignment to local0", st)
	}
	if st.Value.Kind != expr.IntLit || st.Value.Int != 5 {
		t.Errorf("value = %s, want 5", st.Value)
	}
}

func TestRecoverBinaryExpr(t *testing.T) {
	// local0 = 2 + 3 * 4;
	b := ncstest.New().
		RSAddI().
		ConstI(2).
		ConstI(3).
		ConstI(4).
		Binary(ncs.OpMUL, ncs.TypeIntInt).
		Binary(ncs.OpADD, ncs.TypeIntInt).
		CpDownSp(-8, 4).
		MovSp(-4).
		Retn()

	rec, _ := recoverProgram(t, b, false)
	st := firstStmt(t, rec.Funcs[0])
	if got := st.Value.String(); got != "2 + 3 * 4" {
		t.Errorf("value = %q, want %q", got, "2 + 3 * 4")
	}
}

func TestRecoverPrecedenceParens(t *testing.T) {
	// local0 = (2 + 3) * 4;
	b := ncstest.New().
		RSAddI().
		ConstI(2).
		ConstI(3).
		Binary(ncs.OpADD, ncs.TypeIntInt).
		ConstI(4).
		Binary(ncs.OpMUL, ncs.TypeIntInt).
		CpDownSp(-8, 4).
		MovSp(-4).
		Retn()

	rec, _ := recoverProgram(t, b, false)
	st := firstStmt(t, rec.Funcs[0])
	if got := st.Value.String(); got != "(2 + 3) * 4" {
		t.Errorf("value = %q, want %q", got, "(2 + 3) * 4")
	}
}

func TestRecoverEngineCall(t *testing.T) {
	// SetPartyLeader(1); — routine 13, one int parameter, void return.
	b := ncstest.New().
		ConstI(1).
		Action(13, 1).
		Retn()

	rec, _ := recoverProgram(t, b, false)
	st := firstStmt(t, rec.Funcs[0])
	if st.Kind != expr.StmtExpr {
		t.Fatalf("stmt kind = %d, want StmtExpr", st.Kind)
	}
	if got := st.Value.String(); got != "SetPartyLeader(1)" {
		t.Errorf("call = %q, want SetPartyLeader(1)", got)
	}
}

func TestRecoverEngineCallResultDiscarded(t *testing.T) {
	// Random(6) popped without use must survive as a statement.
	b := ncstest.New().
		ConstI(6).
		Action(0, 1).
		MovSp(-4).
		Retn()

	rec, _ := recoverProgram(t, b, false)
	st := firstStmt(t, rec.Funcs[0])
	if got := st.Value.String(); got != "Random(6)" {
		t.Errorf("stmt = %q, want Random(6)", got)
	}
}

func TestRecoverSubroutineReturn(t *testing.T) {
	// main: int x = sub(); discard.
	// sub stores 42 into the caller-reserved cell.
	b := ncstest.New().
		RSAddI().
		Jsr("sub").
		MovSp(-4).
		Retn().
		Label("sub").
		ConstI(42).
		CpDownSp(-8, 4).
		MovSp(-4).
		Retn()

	rec, _ := recoverProgram(t, b, false)
	if len(rec.Funcs) != 2 {
		t.Fatalf("funcs = %d, want 2", len(rec.Funcs))
	}
	sub := rec.Funcs[1]
	if !sub.HasReturn {
		t.Fatal("sub must be recovered as value-returning")
	}
	if sub.ReturnType != expr.TypeInt {
		t.Errorf("return type = %s, want int", sub.ReturnType)
	}
	ret := firstStmt(t, sub)
	if ret.Kind != expr.StmtSetReturn || ret.Value.Int != 42 {
		t.Errorf("sub stmt = %+v, want return 42", ret)
	}

	main := rec.Funcs[0]
	st := firstStmt(t, main)
	if st.Kind != expr.StmtExpr || st.Value.Kind != expr.Call {
		t.Fatalf("main stmt = %+v, want discarded call", st)
	}
	if len(main.Locals) != 0 {
		t.Errorf("main locals = %d, want 0 (reserve cell dropped)", len(main.Locals))
	}
}

func TestRecoverParameters(t *testing.T) {
	// sub(param1, param2) reads both; main pushes 1 then 2 and the
	// callee cleans its own arguments.
	b := ncstest.New().
		ConstI(2). // pushed first, param2
		ConstI(1). // on top, param1
		Jsr("sub").
		Retn().
		Label("sub").
		CpTopSp(-4, 4). // param1
		CpTopSp(-12, 4). // param2 (below param1 and the copy)
		Binary(ncs.OpADD, ncs.TypeIntInt).
		MovSp(-4).
		MovSp(-8). // argument cleanup
		Retn()

	rec, _ := recoverProgram(t, b, false)
	sub := rec.Funcs[1]
	if len(sub.Params) != 2 {
		t.Fatalf("params = %d, want 2", len(sub.Params))
	}
	if sub.Params[0].Name != "param1" || sub.Params[1].Name != "param2" {
		t.Errorf("param names = %s, %s", sub.Params[0].Name, sub.Params[1].Name)
	}
	if sub.Params[0].Pos <= sub.Params[1].Pos {
		t.Errorf("param1 must sit above param2: %d vs %d", sub.Params[0].Pos, sub.Params[1].Pos)
	}

	main := rec.Funcs[0]
	st := firstStmt(t, main)
	if got := st.Value.String(); got != sub.Fn.Name+"(1, 2)" {
		t.Errorf("call = %q, want %s(1, 2)", got, sub.Fn.Name)
	}
}

func TestRecoverGlobals(t *testing.T) {
	// SAVEBP promotes the current frame's slots to script globals.
	b := ncstest.New().
		RSAddI().
		ConstI(7).
		CpDownSp(-8, 4).
		MovSp(-4).
		SaveBP().
		RestoreBP().
		MovSp(-4).
		Retn()

	rec, _ := recoverProgram(t, b, false)
	if len(rec.Globals.Order) != 1 {
		t.Fatalf("globals = %d, want 1", len(rec.Globals.Order))
	}
	g := rec.Globals.Order[0]
	if g.Name != "GLOB_0" || !g.IsGlobal {
		t.Errorf("global = %+v, want GLOB_0", g)
	}
	if len(rec.Funcs[0].Locals) != 0 {
		t.Errorf("locals = %d, want 0 after promotion", len(rec.Funcs[0].Locals))
	}
	// The earlier assignment now names the global.
	st := firstStmt(t, rec.Funcs[0])
	if st.Target.Slot != g {
		t.Error("assignment must reference the promoted global slot")
	}
}

func TestRecoverTypeConflictWidens(t *testing.T) {
	// An int slot later stored as float must widen and diagnose.
	b := ncstest.New().
		RSAddI().
		ConstF(1.5).
		CpDownSp(-8, 4).
		MovSp(-4).
		Retn()

	rec, diags := recoverProgram(t, b, false)
	_ = rec
	found := false
	for _, d := range diags.Items() {
		if d.Kind == ncs.DiagTypeConflict {
			found = true
		}
	}
	if !found {
		t.Error("want a type-conflict diagnostic")
	}
}

func TestRecoverStackImbalance(t *testing.T) {
	// Popping from an empty stack degrades with a diagnostic, not a panic.
	b := ncstest.New().
		Binary(ncs.OpADD, ncs.TypeIntInt).
		MovSp(-4).
		Retn()

	_, diags := recoverProgram(t, b, false)
	found := false
	for _, d := range diags.Items() {
		if d.Kind == ncs.DiagStackImbalance {
			found = true
		}
	}
	if !found {
		t.Error("want a stack-imbalance diagnostic")
	}
}

func TestRecoverPositiveMovSpDiagnosed(t *testing.T) {
	// No compiler emits a stack-growing MOVSP, but the operand decodes;
	// replay must degrade with a diagnostic instead of crashing.
	b := ncstest.New().
		ConstI(1).
		MovSp(4).
		Retn()

	_, diags := recoverProgram(t, b, false)
	found := false
	for _, d := range diags.Items() {
		if d.Kind == ncs.DiagStackImbalance {
			found = true
		}
	}
	if !found {
		t.Error("want a stack-imbalance diagnostic for a positive MOVSP")
	}
}

func TestRecoverDestructKeepBelowRegion(t *testing.T) {
	// A keep window starting below the destroyed region clamps to the
	// region and diagnoses rather than indexing out of range.
	b := ncstest.New().
		ConstI(1).
		ConstI(2).
		Destruct(8, -4, 8).
		Retn()

	rec, diags := recoverProgram(t, b, false)
	found := false
	for _, d := range diags.Items() {
		if d.Kind == ncs.DiagStackImbalance {
			found = true
		}
	}
	if !found {
		t.Error("want a stack-imbalance diagnostic for a below-region keep window")
	}
	for _, bc := range rec.Funcs[0].Blocks {
		for _, st := range bc.Stmts {
			t.Errorf("unexpected statement %+v from clamped DESTRUCT", st)
		}
	}
}

func TestRecoverDeferredAction(t *testing.T) {
	// DelayCommand(1.0, action body): STORE_STATE captures the body
	// between the skip jump and its RETN.
	b := ncstest.New().
		StoreState(0, 0).
		Jmp("after").
		ConstI(3).
		Action(13, 1). // SetPartyLeader(3) as the deferred body
		Retn().
		Label("after").
		ConstF(1.0).
		Action(7, 2). // DelayCommand(float, action)
		Retn()

	rec, _ := recoverProgram(t, b, false)
	st := firstStmt(t, rec.Funcs[0])
	want := "DelayCommand(1.0, SetPartyLeader(3))"
	if got := st.Value.String(); got != want {
		t.Errorf("call = %q, want %q", got, want)
	}
}

func firstStmt(t *testing.T, fc *expr.FuncCode) expr.Stmt {
	t.Helper()
	for _, bc := range fc.Blocks {
		if len(bc.Stmts) > 0 {
			return bc.Stmts[0]
		}
	}
	t.Fatal("no statements recovered")
	return expr.Stmt{}
}
