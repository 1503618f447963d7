package emit

import (
	"strings"
	"testing"

	"ncsdec/internal/cfg"
	"ncsdec/internal/expr"
	"ncsdec/internal/structure"
)

func fn(name string) *expr.FuncCode {
	return &expr.FuncCode{Fn: &cfg.Func{Name: name}}
}

func local(name string, t expr.Type) *expr.Slot {
	return &expr.Slot{Name: name, Type: t}
}

func ref(s *expr.Slot) *expr.Expr {
	return &expr.Expr{Kind: expr.LocalRef, Type: s.Type, Slot: s}
}

func num(v int32) *expr.Expr {
	return &expr.Expr{Kind: expr.IntLit, Type: expr.TypeInt, Int: v}
}

func assign(s *expr.Slot, v *expr.Expr) expr.Stmt {
	return expr.Stmt{Kind: expr.StmtAssign, Target: ref(s), Value: v}
}

func block(stmts ...expr.Stmt) *structure.Region {
	return &structure.Region{Kind: structure.KindBlock, Stmts: stmts}
}

func TestSignatureVoidNoParams(t *testing.T) {
	if got := Signature(fn("main")); got != "void main()" {
		t.Errorf("Signature = %q, want %q", got, "void main()")
	}
}

func TestSignatureReturnAndParams(t *testing.T) {
	fc := fn("sub_0001d")
	fc.HasReturn = true
	fc.ReturnType = expr.TypeInt
	fc.Params = []*expr.Slot{
		local("param1", expr.TypeInt),
		local("param2", expr.TypeFloat),
	}
	want := "int sub_0001d(int param1, float param2)"
	if got := Signature(fc); got != want {
		t.Errorf("Signature = %q, want %q", got, want)
	}
}

func TestProgramHeaderAndGlobals(t *testing.T) {
	g := expr.NewGlobals()
	g.Slot(-4, 0).Type = expr.TypeInt

	fc := fn("main")
	src := Program(g, []Func{{Code: fc, Region: block()}}, Options{Header: "// decompiled"})

	if !strings.HasPrefix(src, "// decompiled\n\n") {
		t.Errorf("missing header:\n%s", src)
	}
	if !strings.Contains(src, "int GLOB_0;\n") {
		t.Errorf("missing global declaration:\n%s", src)
	}
	if !strings.Contains(src, "void main() {\n}\n") {
		t.Errorf("missing empty main:\n%s", src)
	}
}

func TestProgramHoistsLocalDecls(t *testing.T) {
	x := local("local0", expr.TypeInt)
	fc := fn("main")
	fc.Locals = []*expr.Slot{x}

	src := Program(nil, []Func{{Code: fc, Region: block(assign(x, num(5)))}}, Options{})
	want := "void main() {\n    int local0;\n\n    local0 = 5;\n}\n"
	if src != want {
		t.Errorf("source = %q, want %q", src, want)
	}
}

func TestProgramIfElseIfChain(t *testing.T) {
	x := local("local0", expr.TypeInt)
	r := &structure.Region{
		Kind: structure.KindIf,
		Cond: &expr.Expr{Kind: expr.Binary, Type: expr.TypeInt, Op: "==", L: ref(x), R: num(1)},
		Then: block(assign(x, num(10))),
		Else: &structure.Region{
			Kind: structure.KindIf,
			Cond: &expr.Expr{Kind: expr.Binary, Type: expr.TypeInt, Op: "==", L: ref(x), R: num(2)},
			Then: block(assign(x, num(20))),
			Else: block(assign(x, num(30))),
		},
	}

	src := Program(nil, []Func{{Code: fn("main"), Region: r}}, Options{})
	for _, want := range []string{
		"    if (local0 == 1) {\n",
		"    } else if (local0 == 2) {\n",
		"    } else {\n",
		"        local0 = 30;\n",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("missing %q in:\n%s", want, src)
		}
	}
}

func TestProgramForHeader(t *testing.T) {
	x := local("local0", expr.TypeInt)
	initSt := assign(x, num(0))
	stepSt := assign(x, &expr.Expr{Kind: expr.Binary, Type: expr.TypeInt, Op: "+", L: ref(x), R: num(1)})
	r := &structure.Region{
		Kind: structure.KindFor,
		Cond: &expr.Expr{Kind: expr.Binary, Type: expr.TypeInt, Op: "<", L: ref(x), R: num(10)},
		Init: &initSt,
		Step: &stepSt,
		Body: block(assign(x, num(0))),
	}

	src := Program(nil, []Func{{Code: fn("main"), Region: r}}, Options{})
	want := "for (local0 = 0; local0 < 10; local0 = local0 + 1) {"
	if !strings.Contains(src, want) {
		t.Errorf("missing %q in:\n%s", want, src)
	}
}

func TestProgramSwitch(t *testing.T) {
	x := local("local0", expr.TypeInt)
	r := &structure.Region{
		Kind: structure.KindSwitch,
		Sel:  ref(x),
		Cases: []structure.SwitchCase{
			{Value: 1, Body: block(assign(x, num(10)))},
			{Value: 2, Body: block(assign(x, num(20)))},
		},
		Default: block(assign(x, num(30))),
	}

	src := Program(nil, []Func{{Code: fn("main"), Region: r}}, Options{})
	for _, want := range []string{
		"    switch (local0) {\n",
		"        case 1: {\n",
		"            local0 = 10;\n",
		"            break;\n",
		"        case 2: {\n",
		"        default: {\n",
		"            local0 = 30;\n",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("missing %q in:\n%s", want, src)
		}
	}
}

func TestProgramSuppressesTrailingVoidReturn(t *testing.T) {
	x := local("local0", expr.TypeInt)
	r := &structure.Region{Kind: structure.KindSequence, Kids: []*structure.Region{
		block(assign(x, num(1))),
		{Kind: structure.KindReturn},
	}}

	src := Program(nil, []Func{{Code: fn("main"), Region: r}}, Options{})
	if strings.Contains(src, "return") {
		t.Errorf("trailing bare return must be suppressed:\n%s", src)
	}
}

func TestProgramKeepsValueReturn(t *testing.T) {
	r := &structure.Region{Kind: structure.KindReturn, Ret: num(1)}
	fc := fn("StartingConditional")
	fc.HasReturn = true
	fc.ReturnType = expr.TypeInt

	src := Program(nil, []Func{{Code: fc, Region: r}}, Options{})
	if !strings.Contains(src, "    return 1;\n") {
		t.Errorf("missing value return:\n%s", src)
	}
}

func TestProgramGotoResidue(t *testing.T) {
	r := &structure.Region{Kind: structure.KindSequence, Kids: []*structure.Region{
		{Kind: structure.KindLabel, Label: 0x1d},
		block(assign(local("local0", expr.TypeInt), num(1))),
		{Kind: structure.KindGoto, Label: 0x1d},
	}}

	src := Program(nil, []Func{{Code: fn("main"), Region: r}}, Options{})
	if !strings.Contains(src, "loc_0001d:") || !strings.Contains(src, "goto loc_0001d;") {
		t.Errorf("missing goto residue:\n%s", src)
	}
}

func TestProgramFunctionOrderAndSpacing(t *testing.T) {
	src := Program(nil, []Func{
		{Code: fn("sub_0001d"), Region: block()},
		{Code: fn("main"), Region: block()},
	}, Options{})

	sub := strings.Index(src, "void sub_0001d()")
	main := strings.Index(src, "void main()")
	if sub < 0 || main < 0 || sub > main {
		t.Errorf("functions out of order:\n%s", src)
	}
	if !strings.Contains(src, "}\n\nvoid main()") {
		t.Errorf("missing blank line between functions:\n%s", src)
	}
}
