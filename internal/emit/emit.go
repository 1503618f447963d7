// Package emit serializes recovered functions and their region trees
// into compilable script source.
package emit

import (
	"fmt"
	"strings"

	"ncsdec/internal/expr"
	"ncsdec/internal/structure"
)

// Options controls surface formatting of the emitted source.
type Options struct {
	Indent string // one indentation step; defaults to four spaces
	Header string // comment block placed at the top of the file, verbatim
}

// Func pairs one recovered function with its structured body.
type Func struct {
	Code   *expr.FuncCode
	Region *structure.Region
}

// Program renders the whole script: header comment, global
// declarations, then each function in the order given. Callers are
// expected to order callees first so the source parses without
// prototypes.
func Program(globals *expr.Globals, funcs []Func, opts Options) string {
	w := &writer{indent: opts.Indent}
	if w.indent == "" {
		w.indent = "    "
	}

	if opts.Header != "" {
		w.b.WriteString(opts.Header)
		if !strings.HasSuffix(opts.Header, "\n") {
			w.b.WriteByte('\n')
		}
		w.b.WriteByte('\n')
	}

	if globals != nil && len(globals.Order) > 0 {
		for _, g := range globals.Order {
			w.linef("%s %s;", g.Type, g.Name)
		}
		w.line("")
	}

	for i, f := range funcs {
		if i > 0 {
			w.line("")
		}
		w.function(f)
	}
	return w.b.String()
}

type writer struct {
	b      strings.Builder
	indent string
	depth  int
}

func (w *writer) line(s string) {
	if s == "" {
		w.b.WriteByte('\n')
		return
	}
	for i := 0; i < w.depth; i++ {
		w.b.WriteString(w.indent)
	}
	w.b.WriteString(s)
	w.b.WriteByte('\n')
}

func (w *writer) linef(format string, args ...interface{}) {
	w.line(fmt.Sprintf(format, args...))
}

func (w *writer) function(f Func) {
	w.line(Signature(f.Code) + " {")
	w.depth++
	for _, l := range f.Code.Locals {
		w.linef("%s %s;", l.Type, l.Name)
	}
	if len(f.Code.Locals) > 0 && !emptyRegion(f.Region) {
		w.line("")
	}
	w.region(f.Region, true)
	w.depth--
	w.line("}")
}

// Signature renders a function's declaration line without the brace.
func Signature(fc *expr.FuncCode) string {
	ret := "void"
	if fc.HasReturn {
		ret = fc.ReturnType.String()
	}
	var b strings.Builder
	b.WriteString(ret)
	b.WriteByte(' ')
	b.WriteString(fc.Fn.Name)
	b.WriteByte('(')
	for i, p := range fc.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Type.String())
		b.WriteByte(' ')
		b.WriteString(p.Name)
	}
	b.WriteByte(')')
	return b.String()
}

// region emits one region. topLevel suppresses the redundant bare
// return a void function's terminal block always carries.
func (w *writer) region(r *structure.Region, topLevel bool) {
	if r == nil {
		return
	}
	switch r.Kind {
	case structure.KindBlock:
		for _, st := range r.Stmts {
			w.stmt(st)
		}

	case structure.KindSequence:
		for i, kid := range r.Kids {
			last := topLevel && i == len(r.Kids)-1
			if last && kid.Kind == structure.KindReturn && kid.Ret == nil {
				continue
			}
			w.region(kid, false)
		}

	case structure.KindIf:
		w.ifChain(r)

	case structure.KindWhile:
		w.linef("while (%s) {", r.Cond)
		w.body(r.Body)
		w.line("}")

	case structure.KindDoWhile:
		w.line("do {")
		w.body(r.Body)
		w.linef("} while (%s);", r.Cond)

	case structure.KindFor:
		init := ""
		if r.Init != nil {
			init = stmtText(*r.Init)
		}
		w.linef("for (%s; %s; %s) {", init, r.Cond, stmtText(*r.Step))
		w.body(r.Body)
		w.line("}")

	case structure.KindSwitch:
		w.linef("switch (%s) {", r.Sel)
		w.depth++
		for _, c := range r.Cases {
			w.linef("case %d: {", c.Value)
			w.body(c.Body)
			w.depth++
			w.line("break;")
			w.depth--
			w.line("}")
		}
		if r.Default != nil {
			w.line("default: {")
			w.body(r.Default)
			w.line("}")
		}
		w.depth--
		w.line("}")

	case structure.KindBreak:
		w.line("break;")
	case structure.KindContinue:
		w.line("continue;")

	case structure.KindReturn:
		if topLevel && r.Ret == nil {
			return
		}
		if r.Ret == nil {
			w.line("return;")
		} else {
			w.linef("return %s;", r.Ret)
		}

	case structure.KindGoto:
		w.linef("goto loc_%05x;", r.Label)
	case structure.KindLabel:
		// Outdented one step so targets stand out in the residue.
		w.linef("loc_%05x:", r.Label)
	}
}

// ifChain flattens nested else-if arms onto the same brace line.
func (w *writer) ifChain(r *structure.Region) {
	w.linef("if (%s) {", r.Cond)
	w.body(r.Then)
	cur := r.Else
	for cur != nil && cur.Kind == structure.KindIf {
		w.linef("} else if (%s) {", cur.Cond)
		w.body(cur.Then)
		cur = cur.Else
	}
	if cur != nil {
		w.line("} else {")
		w.body(cur)
	}
	w.line("}")
}

func (w *writer) body(r *structure.Region) {
	w.depth++
	w.region(r, false)
	w.depth--
}

func (w *writer) stmt(st expr.Stmt) {
	w.line(stmtText(st) + ";")
}

// stmtText renders a statement without the trailing semicolon, for
// reuse inside for-headers.
func stmtText(st expr.Stmt) string {
	switch st.Kind {
	case expr.StmtAssign:
		return fmt.Sprintf("%s = %s", st.Target, st.Value)
	case expr.StmtSetReturn:
		return fmt.Sprintf("return %s", st.Value)
	}
	return st.Value.String()
}

func emptyRegion(r *structure.Region) bool {
	if r == nil {
		return true
	}
	if r.Kind == structure.KindBlock && len(r.Stmts) == 0 {
		return true
	}
	if r.Kind == structure.KindReturn && r.Ret == nil {
		return true
	}
	if r.Kind == structure.KindSequence {
		for _, k := range r.Kids {
			if !emptyRegion(k) {
				return false
			}
		}
		return true
	}
	return false
}
