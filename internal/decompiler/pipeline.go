// Package decompiler wires the pipeline stages into a single
// byte-buffer-in, source-text-out entry point.
package decompiler

import (
	"sort"

	"github.com/golang/glog"

	"ncsdec/internal/cfg"
	"ncsdec/internal/emit"
	"ncsdec/internal/expr"
	"ncsdec/internal/ncs"
	"ncsdec/internal/nwscript"
	"ncsdec/internal/repair"
	"ncsdec/internal/structure"
)

// Options is the full configuration surface of one decompilation.
type Options struct {
	Variant          ncs.Variant
	PreferSwitches   bool
	StrictSignatures bool
	Header           string         // verbatim comment block for the output
	Repair           *repair.Config // nil enables the default pass set
}

// Result is the output of one decompilation: the repaired source text
// plus everything intermediate a caller may want to inspect or render.
type Result struct {
	Program *ncs.Program
	Funcs   []emit.Func // emission order: callees first, entry last
	Source  string
	Diags   []ncs.Diag
}

// Decompile runs the whole pipeline over one compiled script.
func Decompile(data []byte, opts Options) (*Result, error) {
	var diags ncs.Diags

	prog, err := ncs.Decode(data, opts.Variant)
	if err != nil {
		return nil, err
	}
	glog.V(1).Infof("decoded %d instruction(s), %d byte(s), variant %s",
		len(prog.Insts), prog.Length, prog.Variant)

	funcs, err := cfg.Partition(prog, &diags)
	if err != nil {
		return nil, err
	}
	glog.V(1).Infof("partitioned into %d function(s)", len(funcs))

	table, err := nwscript.TableFor(opts.Variant)
	if err != nil {
		return nil, err
	}
	res := nwscript.NewResolver(table, opts.StrictSignatures)

	rec := expr.Recover(funcs, res, &diags)
	collapseWrapper(rec)

	ordered := emissionOrder(rec)
	out := make([]emit.Func, 0, len(ordered))
	for _, fc := range ordered {
		region := structure.Build(fc, structure.Options{PreferSwitches: opts.PreferSwitches}, &diags)
		out = append(out, emit.Func{Code: fc, Region: region})
	}
	glog.V(1).Infof("structured %d function(s), %d diagnostic(s) so far", len(out), diags.Len())

	src := emit.Program(rec.Globals, out, emit.Options{Header: opts.Header})

	cfgRepair := opts.Repair
	if cfgRepair == nil {
		def := repair.Default()
		cfgRepair = &def
	}
	src = repair.Process(src, cfgRepair, &diags)
	glog.V(1).Infof("repair applied %d action(s)", len(cfgRepair.Applied))

	return &Result{
		Program: prog,
		Funcs:   out,
		Source:  src,
		Diags:   diags.Items(),
	}, nil
}

// collapseWrapper folds the compiler's conditional-script prologue. A
// script whose entry does nothing but reserve a return cell and call
// one subroutine is really that subroutine; the engine-visible name
// depends on whether the script yields a value.
func collapseWrapper(rec *expr.Result) {
	if len(rec.Funcs) == 0 {
		return
	}
	entry := rec.Funcs[0]

	if callee, ok := wrapperCallee(entry); ok {
		for _, fc := range rec.Funcs[1:] {
			if fc.Fn.Name != callee || len(fc.Params) != 0 {
				continue
			}
			fc.Fn.Name = "main"
			if fc.HasReturn {
				fc.Fn.Name = "StartingConditional"
			}
			rec.Funcs = rec.Funcs[1:]
			return
		}
	}

	if entry.HasReturn {
		entry.Fn.Name = "StartingConditional"
	}
}

// wrapperCallee matches an entry of exactly one statement, an
// argumentless call to another recovered function, with no branching.
func wrapperCallee(entry *expr.FuncCode) (string, bool) {
	var only *expr.Stmt
	for b := range entry.Blocks {
		if entry.Blocks[b].Cond != nil {
			return "", false
		}
		for i := range entry.Blocks[b].Stmts {
			if only != nil {
				return "", false
			}
			only = &entry.Blocks[b].Stmts[i]
		}
	}
	if only == nil || only.Value == nil || only.Value.Kind != expr.Call || len(only.Value.Args) > 0 {
		return "", false
	}
	return only.Value.Callee, true
}

// emissionOrder sorts functions callees-first so the emitted source
// needs no forward declarations; the entry function is always last.
func emissionOrder(rec *expr.Result) []*expr.FuncCode {
	byEntry := make(map[uint32]*expr.FuncCode, len(rec.Funcs))
	for _, fc := range rec.Funcs {
		byEntry[fc.Fn.EntryOffset] = fc
	}

	var (
		ordered []*expr.FuncCode
		state   = make(map[uint32]int) // 0 unseen, 1 visiting, 2 done
		visit   func(fc *expr.FuncCode)
	)
	visit = func(fc *expr.FuncCode) {
		switch state[fc.Fn.EntryOffset] {
		case 1, 2:
			return
		}
		state[fc.Fn.EntryOffset] = 1
		targets := make([]uint32, 0, len(fc.Fn.Calls))
		for _, c := range fc.Fn.Calls {
			targets = append(targets, c.Target)
		}
		sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
		for _, t := range targets {
			if callee, ok := byEntry[t]; ok && callee != fc {
				visit(callee)
			}
		}
		state[fc.Fn.EntryOffset] = 2
		ordered = append(ordered, fc)
	}

	// Subroutines in address order first, the entry's closure last.
	for i := len(rec.Funcs) - 1; i >= 1; i-- {
		visit(rec.Funcs[i])
	}
	if len(rec.Funcs) > 0 {
		visit(rec.Funcs[0])
	}

	// The entry must close the file even if a subroutine pulled it in.
	for i, fc := range ordered {
		if len(rec.Funcs) > 0 && fc == rec.Funcs[0] && i != len(ordered)-1 {
			ordered = append(append(ordered[:i:i], ordered[i+1:]...), fc)
			break
		}
	}
	return ordered
}
