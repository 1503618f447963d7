package expr

import (
	"fmt"
	"sort"

	"ncsdec/internal/cfg"
	"ncsdec/internal/ncs"
	"ncsdec/internal/nwscript"
)

// BlockCode is the recovered content of one basic block.
type BlockCode struct {
	Stmts []Stmt
	Cond  *Expr // condition popped by a terminal JZ/JNZ, nil otherwise
}

// FuncCode is one function's recovered statements, locals and signature.
type FuncCode struct {
	Fn         *cfg.Func
	Blocks     []BlockCode // parallel to Fn.Blocks
	Locals     []*Slot     // declaration order, globals excluded
	Params     []*Slot     // signature order
	HasReturn  bool
	ReturnType Type
}

// Result is the output of expression recovery for a whole script.
type Result struct {
	Funcs   []*FuncCode // original partition order
	Globals *Globals
}

// cell is one 4-byte slot of the simulated operand stack.
type cell struct {
	e    *Expr
	slot *Slot // non-nil if the cell is a declared variable
	used bool  // value has been consumed (suppresses discard statements)
}

// Recover replays every function's stack effects and synthesizes
// expression trees. Functions are processed callees-first so call sites
// know their target's arity and return slot; recursion degrades to a
// diagnostic and an argumentless call.
func Recover(funcs []*cfg.Func, res *nwscript.Resolver, diags *ncs.Diags) *Result {
	r := &Result{Globals: NewGlobals()}
	byEntry := make(map[uint32]*cfg.Func, len(funcs))
	for _, f := range funcs {
		byEntry[f.EntryOffset] = f
	}

	done := make(map[uint32]*FuncCode, len(funcs))
	visiting := make(map[uint32]bool)

	var process func(f *cfg.Func) *FuncCode
	process = func(f *cfg.Func) *FuncCode {
		if fc, ok := done[f.EntryOffset]; ok {
			return fc
		}
		if visiting[f.EntryOffset] {
			return nil // recursion; caller falls back
		}
		visiting[f.EntryOffset] = true
		for _, c := range f.Calls {
			if callee, ok := byEntry[c.Target]; ok && callee != f {
				process(callee)
			}
		}
		sim := &funcSim{
			fn:      f,
			res:     res,
			globals: r.Globals,
			diags:   diags,
			callees: done,
			out:     &FuncCode{Fn: f, Blocks: make([]BlockCode, len(f.Blocks))},
		}
		sim.run()
		delete(visiting, f.EntryOffset)
		done[f.EntryOffset] = sim.out
		return sim.out
	}

	for _, f := range funcs {
		r.Funcs = append(r.Funcs, process(f))
	}
	return r
}

type funcSim struct {
	fn      *cfg.Func
	res     *nwscript.Resolver
	globals *Globals
	diags   *ncs.Diags
	callees map[uint32]*FuncCode
	out     *FuncCode

	params   map[int]*Slot // negative stack position → slot
	minPos   int           // most negative position accessed
	storeNeg map[int]bool  // negative positions written to
}

func (s *funcSim) run() {
	s.params = make(map[int]*Slot)
	s.storeNeg = make(map[int]bool)

	// Entry stacks propagated along edges; entry block starts empty.
	entry := make([][]cell, len(s.fn.Blocks))
	haveEntry := make([]bool, len(s.fn.Blocks))
	if len(s.fn.Blocks) > 0 {
		haveEntry[0] = true
	}

	for _, b := range s.fn.ReversePostorder() {
		blk := &s.fn.Blocks[b]
		stack := cloneStack(entry[b])
		if !haveEntry[b] {
			// No processed predecessor established a depth (irreducible
			// entry); start empty and let resync diagnostics surface it.
			stack = nil
		}
		bc := &s.out.Blocks[b]
		stack = s.replay(blk, bc, stack)

		for _, succ := range blk.Succs {
			if !haveEntry[succ.Block] {
				entry[succ.Block] = cloneStack(stack)
				haveEntry[succ.Block] = true
			} else if len(entry[succ.Block]) != len(stack) {
				s.diags.Addf(s.fn.Insts[blk.End-1].Offset, ncs.DiagStackImbalance,
					"block %d hands %d cell(s) to block %d which expects %d; resynchronizing",
					b, len(stack), succ.Block, len(entry[succ.Block]))
			}
		}
	}

	s.finalize()
}

func cloneStack(st []cell) []cell {
	out := make([]cell, len(st))
	copy(out, st)
	return out
}

// replay simulates one block's instructions, appending recovered
// statements to bc and returning the exit stack.
func (s *funcSim) replay(blk *cfg.Block, bc *BlockCode, stack []cell) []cell {
	for i := blk.Start; i < blk.End; i++ {
		stack = s.step(i, bc, stack)
	}
	return stack
}

func (s *funcSim) step(idx int, bc *BlockCode, stack []cell) []cell {
	in := s.fn.Insts[idx]

	pop := func(n int) []cell {
		if n > len(stack) {
			s.diags.Addf(in.Offset, ncs.DiagStackImbalance,
				"%s needs %d operand(s), stack has %d; padding", in.Op, n, len(stack))
			for len(stack) < n {
				stack = append([]cell{{e: NewPlaceholder()}}, stack...)
			}
		}
		popped := make([]cell, n)
		// Top of stack first.
		for i := 0; i < n; i++ {
			popped[i] = stack[len(stack)-1-i]
		}
		stack = stack[:len(stack)-n]
		return popped
	}

	switch in.Op {
	case ncs.OpNOP, ncs.OpRETN, ncs.OpSAVEBP, ncs.OpRESTOREBP:
		if in.Op == ncs.OpSAVEBP {
			s.adoptGlobals(stack, in.Offset)
		}

	case ncs.OpRSADD:
		slot := &Slot{
			Name:     fmt.Sprintf("local%d", len(s.out.Locals)),
			Type:     typeFromOperand(in.Type),
			Pos:      len(stack),
			FirstDef: in.Offset,
		}
		s.out.Locals = append(s.out.Locals, slot)
		stack = append(stack, cell{e: s.refFor(slot), slot: slot})

	case ncs.OpCONST:
		stack = append(stack, cell{e: constExpr(in)})

	case ncs.OpCPTOPSP:
		n := int(in.Size) / 4
		base := len(stack) + int(in.Int)/4
		for k := 0; k < n; k++ {
			stack = append(stack, s.load(base+k, in.Offset, stack))
		}

	case ncs.OpCPTOPBP:
		n := int(in.Size) / 4
		for k := 0; k < n; k++ {
			g := s.globals.Slot(int(in.Int)/4+k, in.Offset)
			g.observe(TypeUnknown, in.Offset, s.diags)
			stack = append(stack, cell{e: s.refFor(g)})
		}

	case ncs.OpCPDOWNSP:
		n := int(in.Size) / 4
		base := len(stack) + int(in.Int)/4
		for k := 0; k < n; k++ {
			src := len(stack) - n + k
			var v *Expr
			if src >= 0 && src < len(stack) {
				v = stack[src].e
				stack[src].used = true
			} else {
				v = NewPlaceholder()
			}
			stack = s.store(base+k, v, in.Offset, bc, stack)
		}

	case ncs.OpCPDOWNBP:
		n := int(in.Size) / 4
		for k := 0; k < n; k++ {
			src := len(stack) - n + k
			var v *Expr
			if src >= 0 && src < len(stack) {
				v = stack[src].e
				stack[src].used = true
			} else {
				v = NewPlaceholder()
			}
			g := s.globals.Slot(int(in.Int)/4+k, in.Offset)
			g.observe(v.Type, in.Offset, s.diags)
			bc.Stmts = append(bc.Stmts, Stmt{
				Kind: StmtAssign, Target: s.refFor(g), Value: v, Offset: in.Offset,
			})
		}

	case ncs.OpMOVSP:
		n := -int(in.Int) / 4
		if n < 0 {
			s.diags.Addf(in.Offset, ncs.DiagStackImbalance,
				"MOVSP grows the stack by %d byte(s); ignoring", int(in.Int))
			break
		}
		if n > len(stack) {
			n = len(stack) // remainder is caller-owned cleanup (args)
		}
		popped := pop(n)
		for _, c := range popped {
			if c.slot == nil && !c.used && c.e != nil && c.e.Kind == Call {
				bc.Stmts = append(bc.Stmts, Stmt{Kind: StmtExpr, Value: c.e, Offset: in.Offset})
			}
		}

	case ncs.OpINCISP, ncs.OpDECISP:
		pos := len(stack) + int(in.Int)/4
		ref := s.posRef(pos, in.Offset, stack)
		op := "+"
		if in.Op == ncs.OpDECISP {
			op = "-"
		}
		bc.Stmts = append(bc.Stmts, Stmt{
			Kind:   StmtAssign,
			Target: ref,
			Value:  &Expr{Kind: Binary, Type: TypeInt, Op: op, L: ref, R: &Expr{Kind: IntLit, Type: TypeInt, Int: 1}},
			Offset: in.Offset,
		})

	case ncs.OpINCIBP, ncs.OpDECIBP:
		g := s.globals.Slot(int(in.Int)/4, in.Offset)
		g.observe(TypeInt, in.Offset, s.diags)
		ref := s.refFor(g)
		op := "+"
		if in.Op == ncs.OpDECIBP {
			op = "-"
		}
		bc.Stmts = append(bc.Stmts, Stmt{
			Kind:   StmtAssign,
			Target: ref,
			Value:  &Expr{Kind: Binary, Type: TypeInt, Op: op, L: ref, R: &Expr{Kind: IntLit, Type: TypeInt, Int: 1}},
			Offset: in.Offset,
		})

	case ncs.OpJZ, ncs.OpJNZ:
		c := pop(1)[0]
		bc.Cond = c.e

	case ncs.OpJMP:
		// Block terminator; no stack effect.

	case ncs.OpJSR:
		stack = s.call(in, bc, stack)

	case ncs.OpACTION:
		stack = s.action(in, bc, stack)

	case ncs.OpSTORESTATE, ncs.OpSTORESTATEALL:
		stack = append(stack, cell{e: s.deferredAction(idx, stack)})

	case ncs.OpDESTRUCT:
		total := int(in.Size) / 4
		keepStart := int(in.KeepOff) / 4
		keepLen := int(in.KeepLen) / 4
		if keepStart < 0 {
			s.diags.Addf(in.Offset, ncs.DiagStackImbalance,
				"DESTRUCT keeps %d byte(s) below the destroyed region; clamping", -int(in.KeepOff))
			keepLen += keepStart
			keepStart = 0
		}
		region := pop(total)
		// popped[0] is the top; region in stack order is reversed.
		for i, j := 0, len(region)-1; i < j; i, j = i+1, j-1 {
			region[i], region[j] = region[j], region[i]
		}
		for k := keepStart; k < keepStart+keepLen && k < len(region); k++ {
			stack = append(stack, region[k])
		}

	case ncs.OpEQUAL, ncs.OpNEQUAL:
		n := 1
		if in.Type == ncs.TypeStructStruct {
			n = int(in.Size) / 4
			if n < 1 {
				n = 1
			}
		}
		rhs := pop(n)
		lhs := pop(n)
		e := &Expr{Kind: Binary, Type: TypeInt, Op: binaryOps[in.Op], L: lhs[0].e, R: rhs[0].e}
		stack = append(stack, cell{e: e})

	default:
		switch {
		case in.Op.IsBinary():
			r := pop(1)[0]
			l := pop(1)[0]
			lt, rt := pairTypes(in.Type)
			s.observeOperand(l.e, lt, in.Offset)
			s.observeOperand(r.e, rt, in.Offset)
			op := binaryOps[in.Op]
			e := &Expr{Kind: Binary, Op: op, L: l.e, R: r.e}
			e.Type = binaryResultType(op, exprType(l.e, lt), exprType(r.e, rt))
			stack = append(stack, cell{e: e})
		case in.Op.IsUnary():
			x := pop(1)[0]
			t := typeFromOperand(in.Type)
			if in.Op == ncs.OpNOT || in.Op == ncs.OpCOMP {
				t = TypeInt
			}
			s.observeOperand(x.e, t, in.Offset)
			stack = append(stack, cell{e: &Expr{Kind: Unary, Type: t, Op: unaryOps[in.Op], X: x.e}})
		}
	}
	return stack
}

// load reads the cell at an absolute position, reaching into the
// parameter region for negative positions.
func (s *funcSim) load(pos int, off uint32, stack []cell) cell {
	if pos < 0 {
		return cell{e: s.refFor(s.paramSlot(pos, off))}
	}
	if pos >= len(stack) {
		s.diags.Addf(off, ncs.DiagStackImbalance, "load from cell %d beyond stack depth %d", pos, len(stack))
		return cell{e: NewPlaceholder()}
	}
	src := stack[pos]
	if src.slot != nil {
		return cell{e: s.refFor(src.slot)}
	}
	// Duplicating a temporary; both copies count as consumed.
	stack[pos].used = true
	return cell{e: src.e}
}

// store writes a value to an absolute position, synthesizing an
// assignment statement when the destination is a named variable.
func (s *funcSim) store(pos int, v *Expr, off uint32, bc *BlockCode, stack []cell) []cell {
	if pos < 0 {
		slot := s.paramSlot(pos, off)
		s.storeNeg[pos] = true
		slot.observe(v.Type, off, s.diags)
		bc.Stmts = append(bc.Stmts, Stmt{Kind: StmtAssign, Target: s.refFor(slot), Value: v, Offset: off})
		return stack
	}
	if pos >= len(stack) {
		s.diags.Addf(off, ncs.DiagStackImbalance, "store to cell %d beyond stack depth %d", pos, len(stack))
		return stack
	}
	if slot := stack[pos].slot; slot != nil {
		slot.observe(v.Type, off, s.diags)
		bc.Stmts = append(bc.Stmts, Stmt{Kind: StmtAssign, Target: s.refFor(slot), Value: v, Offset: off})
		return stack
	}
	stack[pos].e = v
	return stack
}

// posRef returns a reference expression for an absolute stack position.
func (s *funcSim) posRef(pos int, off uint32, stack []cell) *Expr {
	if pos < 0 {
		return s.refFor(s.paramSlot(pos, off))
	}
	if pos < len(stack) && stack[pos].slot != nil {
		return s.refFor(stack[pos].slot)
	}
	s.diags.Addf(off, ncs.DiagStackImbalance, "in-place update of unnamed cell %d", pos)
	return NewPlaceholder()
}

func (s *funcSim) paramSlot(pos int, off uint32) *Slot {
	if pos < s.minPos {
		s.minPos = pos
	}
	if slot, ok := s.params[pos]; ok {
		return slot
	}
	slot := &Slot{
		Name:     fmt.Sprintf("param%d", -pos),
		Type:     TypeUnknown,
		Pos:      pos,
		FirstDef: off,
		IsParam:  true,
	}
	s.params[pos] = slot
	return slot
}

func (s *funcSim) refFor(slot *Slot) *Expr {
	kind := LocalRef
	if slot.IsGlobal {
		kind = GlobalRef
	} else if slot.IsParam {
		kind = ParamRef
	}
	return &Expr{Kind: kind, Type: slot.Type, Slot: slot}
}

// adoptGlobals re-tags the current stack's slots as the script's global
// frame when SAVEBP establishes the base pointer.
func (s *funcSim) adoptGlobals(stack []cell, off uint32) {
	depth := len(stack)
	for p := range stack {
		slot := stack[p].slot
		if slot == nil || slot.IsGlobal {
			continue
		}
		slot.IsGlobal = true
		slot.Name = fmt.Sprintf("GLOB_%d", len(s.globals.Order))
		s.globals.Adopt(p-depth, slot)
	}
}

// call synthesizes a user-function call at a JSR site.
func (s *funcSim) call(in ncs.Instruction, bc *BlockCode, stack []cell) []cell {
	callee := s.callees[in.Target]
	name := cfg.FuncName(in.Target)
	if callee == nil {
		s.diags.Addf(in.Offset, ncs.DiagSignatureMismatch,
			"recursive or unresolved call to %s; emitting without arguments", name)
		bc.Stmts = append(bc.Stmts, Stmt{Kind: StmtExpr, Value: &Expr{Kind: Call, Type: TypeVoid, Callee: name}, Offset: in.Offset})
		return stack
	}
	name = callee.Fn.Name

	argc := len(callee.Params)
	args := make([]*Expr, 0, argc)
	for i := 0; i < argc; i++ {
		if len(stack) == 0 {
			s.diags.Addf(in.Offset, ncs.DiagStackImbalance, "call to %s missing argument %d", name, i+1)
			args = append(args, NewPlaceholder())
			continue
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		s.observeOperand(top.e, callee.Params[i].Type, in.Offset)
		args = append(args, top.e)
	}

	call := &Expr{Kind: Call, Type: callee.ReturnType, Callee: name, Args: args}
	if callee.HasReturn {
		// The caller reserved the return cell just below the arguments.
		if len(stack) > 0 {
			top := len(stack) - 1
			if slot := stack[top].slot; slot != nil {
				s.dropSlot(slot)
			}
			stack[top] = cell{e: call}
			return stack
		}
		stack = append(stack, cell{e: call})
		return stack
	}
	bc.Stmts = append(bc.Stmts, Stmt{Kind: StmtExpr, Value: call, Offset: in.Offset})
	return stack
}

// action synthesizes an engine routine call at an ACTION site.
func (s *funcSim) action(in ncs.Instruction, bc *BlockCode, stack []cell) []cell {
	rt := s.res.Resolve(int(in.Routine), int(in.Argc), in.Offset, s.diags)

	args := make([]*Expr, 0, in.Argc)
	for i := 0; i < int(in.Argc); i++ {
		if len(stack) == 0 {
			s.diags.Addf(in.Offset, ncs.DiagStackImbalance, "call to %s missing argument %d", rt.Name, i+1)
			args = append(args, NewPlaceholder())
			continue
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if i < len(rt.Params) {
			s.observeOperand(top.e, TypeFromName(rt.Params[i]), in.Offset)
		}
		args = append(args, top.e)
		// Vector parameters occupy three cells pushed as one argument.
		if i < len(rt.Params) && rt.Params[i] == "vector" {
			for k := 0; k < 2 && len(stack) > 0; k++ {
				stack = stack[:len(stack)-1]
			}
		}
	}

	retType := TypeFromName(rt.Returns)
	call := &Expr{Kind: Call, Type: retType, Callee: rt.Name, Args: args}
	if rt.Returns == "void" {
		bc.Stmts = append(bc.Stmts, Stmt{Kind: StmtExpr, Value: call, Offset: in.Offset})
		return stack
	}
	n := 1
	if retType == TypeVector {
		n = 3
	}
	for k := 0; k < n; k++ {
		stack = append(stack, cell{e: call})
	}
	return stack
}

// deferredAction recovers the action argument captured by STORE_STATE:
// the body sits between the following JMP and its RETN, executed later
// with the saved stack. Bodies with internal control flow degrade to a
// placeholder call and a diagnostic.
func (s *funcSim) deferredAction(idx int, stack []cell) *Expr {
	in := s.fn.Insts[idx]
	if idx+2 >= len(s.fn.Insts) || s.fn.Insts[idx+1].Op != ncs.OpJMP {
		s.diags.Addf(in.Offset, ncs.DiagUnstructured, "deferred action without a skip jump")
		return &Expr{Kind: Call, Type: TypeAction, Callee: "NoOpAction"}
	}

	var bc BlockCode
	body := cloneStack(stack)
	for i := idx + 2; i < len(s.fn.Insts); i++ {
		op := s.fn.Insts[i].Op
		if op == ncs.OpRETN {
			break
		}
		if op.IsJump() && op != ncs.OpJSR {
			s.diags.Addf(in.Offset, ncs.DiagUnstructured,
				"deferred action body at 0x%x has control flow; using placeholder", s.fn.Insts[idx+2].Offset)
			return &Expr{Kind: Call, Type: TypeAction, Callee: "NoOpAction"}
		}
		body = s.step(i, &bc, body)
	}

	for _, st := range bc.Stmts {
		if st.Kind == StmtExpr && st.Value != nil && st.Value.Kind == Call {
			e := *st.Value
			e.Type = TypeAction
			return &e
		}
	}
	s.diags.Addf(in.Offset, ncs.DiagUnstructured, "deferred action body yielded no call; using placeholder")
	return &Expr{Kind: Call, Type: TypeAction, Callee: "NoOpAction"}
}

// dropSlot removes a never-used reserved slot (a call's return cell)
// from the declaration list.
func (s *funcSim) dropSlot(slot *Slot) {
	for i, l := range s.out.Locals {
		if l == slot {
			s.out.Locals = append(s.out.Locals[:i], s.out.Locals[i+1:]...)
			return
		}
	}
}

func (s *funcSim) observeOperand(e *Expr, t Type, off uint32) {
	if e == nil || t == TypeUnknown {
		return
	}
	switch e.Kind {
	case LocalRef, GlobalRef, ParamRef:
		e.Slot.observe(t, off, s.diags)
		e.Type = e.Slot.Type
	}
}

// finalize decides the return cell, orders parameters, and rewrites
// return-cell stores into SetReturn statements.
func (s *funcSim) finalize() {
	retPos := 0
	if s.minPos < 0 && s.storeNeg[s.minPos] {
		retPos = s.minPos
	}

	if retPos < 0 {
		s.out.HasReturn = true
		ret := s.params[retPos]
		s.out.ReturnType = ret.Type
		delete(s.params, retPos)
		for b := range s.out.Blocks {
			stmts := s.out.Blocks[b].Stmts
			for i := range stmts {
				if stmts[i].Kind == StmtAssign && stmts[i].Target != nil &&
					stmts[i].Target.Slot == ret {
					stmts[i].Kind = StmtSetReturn
					stmts[i].Target = nil
					if s.out.ReturnType == TypeUnknown && stmts[i].Value != nil {
						s.out.ReturnType = stmts[i].Value.Type
					}
				}
			}
		}
		if s.out.ReturnType == TypeUnknown || s.out.ReturnType == TypeVoid {
			s.out.ReturnType = TypeInt
		}
	} else {
		s.out.ReturnType = TypeVoid
	}

	// Signature order: parameter 1 sits on top of the argument block.
	params := make([]*Slot, 0, len(s.params))
	for _, p := range s.params {
		params = append(params, p)
	}
	sort.Slice(params, func(i, j int) bool { return params[i].Pos > params[j].Pos })
	for i, p := range params {
		p.Name = fmt.Sprintf("param%d", i+1)
	}
	s.out.Params = params

	// Drop globals and unused reserve cells from the local list.
	kept := s.out.Locals[:0]
	for _, l := range s.out.Locals {
		if !l.IsGlobal {
			kept = append(kept, l)
		}
	}
	s.out.Locals = kept
}

func constExpr(in ncs.Instruction) *Expr {
	switch in.Type {
	case ncs.TypeInt:
		return &Expr{Kind: IntLit, Type: TypeInt, Int: in.Int}
	case ncs.TypeFloat:
		return &Expr{Kind: FloatLit, Type: TypeFloat, Float: in.Float}
	case ncs.TypeString:
		return &Expr{Kind: StringLit, Type: TypeString, Str: in.Str}
	case ncs.TypeObject:
		return &Expr{Kind: ObjectLit, Type: TypeObject, Int: in.Int}
	}
	return NewPlaceholder()
}

func exprType(e *Expr, fallback Type) Type {
	if e == nil {
		return fallback
	}
	if e.Type != TypeUnknown {
		return e.Type
	}
	return fallback
}

// pairTypes maps a binary type qualifier to its operand types.
func pairTypes(t ncs.OperandType) (Type, Type) {
	switch t {
	case ncs.TypeIntInt:
		return TypeInt, TypeInt
	case ncs.TypeFloatFloat:
		return TypeFloat, TypeFloat
	case ncs.TypeIntFloat:
		return TypeInt, TypeFloat
	case ncs.TypeFloatInt:
		return TypeFloat, TypeInt
	case ncs.TypeStrStr:
		return TypeString, TypeString
	case ncs.TypeObjObj:
		return TypeObject, TypeObject
	case ncs.TypeVecVec:
		return TypeVector, TypeVector
	case ncs.TypeVecFloat:
		return TypeVector, TypeFloat
	case ncs.TypeFloatVec:
		return TypeFloat, TypeVector
	}
	return TypeUnknown, TypeUnknown
}
