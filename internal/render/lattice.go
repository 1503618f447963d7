package render

import (
	"github.com/zboralski/lattice"
	latrender "github.com/zboralski/lattice/render"

	"ncsdec/internal/cfg"
)

// FuncCFG maps one recovered function to a lattice.FuncCFG. Call sites
// within each block become lattice call annotations, named by the
// callee's canonical entry-offset name or engine routine name.
func FuncCFG(f *cfg.Func, calleeName func(target uint32) string) *lattice.FuncCFG {
	lcfg := &lattice.FuncCFG{Name: f.Name}
	for _, blk := range f.Blocks {
		lb := &lattice.BasicBlock{
			ID:    blk.ID,
			Start: blk.Start,
			End:   blk.End,
			Term:  blk.IsTerm,
		}
		for _, s := range blk.Succs {
			lb.Succs = append(lb.Succs, lattice.Successor{
				BlockID: s.Block,
				Cond:    s.Kind.String(),
			})
		}
		for _, c := range f.Calls {
			if c.InstIndex < blk.Start || c.InstIndex >= blk.End {
				continue
			}
			name := cfg.FuncName(c.Target)
			if calleeName != nil {
				if n := calleeName(c.Target); n != "" {
					name = n
				}
			}
			lb.Calls = append(lb.Calls, lattice.CallSite{
				Offset: c.InstIndex,
				Callee: name,
			})
		}
		lcfg.Blocks = append(lcfg.Blocks, lb)
	}
	return lcfg
}

// CFGGraph bundles every function's CFG into one renderable graph.
func CFGGraph(funcs []*cfg.Func, calleeName func(target uint32) string) *lattice.CFGGraph {
	g := &lattice.CFGGraph{}
	for _, f := range funcs {
		g.Funcs = append(g.Funcs, FuncCFG(f, calleeName))
	}
	return g
}

// CallGraph builds a function-level call graph from JSR sites.
func CallGraph(funcs []*cfg.Func, calleeName func(target uint32) string) *lattice.Graph {
	g := &lattice.Graph{}
	for _, f := range funcs {
		g.Nodes = append(g.Nodes, f.Name)
		for _, c := range f.Calls {
			name := cfg.FuncName(c.Target)
			if calleeName != nil {
				if n := calleeName(c.Target); n != "" {
					name = n
				}
			}
			g.Edges = append(g.Edges, lattice.Edge{Caller: f.Name, Callee: name})
		}
	}
	g.Dedup()
	return g
}

// CallGraphDOT renders the whole script's call graph.
func CallGraphDOT(funcs []*cfg.Func, calleeName func(target uint32) string, title string) string {
	return latrender.DOT(CallGraph(funcs, calleeName), title)
}

// CFGGraphDOT renders every function's basic-block graph in one file.
func CFGGraphDOT(funcs []*cfg.Func, calleeName func(target uint32) string, title string) string {
	return latrender.DOTCFG(CFGGraph(funcs, calleeName), title)
}
