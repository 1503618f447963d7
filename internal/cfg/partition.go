package cfg

import (
	"fmt"
	"sort"

	"ncsdec/internal/ncs"
)

// Partition splits a decoded program into functions and builds each
// function's control-flow graph. A function starts at the first
// instruction and at every JSR target; each function extends to the next
// start. The entry function is named "main"; subroutines are named by
// their entry offset, the only stable identity compiled code gives us.
func Partition(p *ncs.Program, diags *ncs.Diags) ([]*Func, error) {
	if len(p.Insts) == 0 {
		return nil, nil
	}

	startSet := map[int]bool{0: true}
	for _, in := range p.Insts {
		if in.Op != ncs.OpJSR {
			continue
		}
		idx, ok := p.IndexAt(in.Target)
		if !ok {
			return nil, &UnresolvedJumpTargetError{Offset: in.Offset, Target: in.Target}
		}
		startSet[idx] = true
	}

	starts := make([]int, 0, len(startSet))
	for idx := range startSet {
		starts = append(starts, idx)
	}
	sort.Ints(starts)

	funcs := make([]*Func, 0, len(starts))
	for i, start := range starts {
		end := len(p.Insts)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		entry := p.Insts[start].Offset
		name := "main"
		if i > 0 {
			name = FuncName(entry)
		}
		f, err := Build(name, entry, p.Insts[start:end], diags)
		if err != nil {
			return nil, err
		}
		funcs = append(funcs, f)
	}
	return funcs, nil
}

// FuncName is the canonical name for a subroutine entered at offset.
func FuncName(offset uint32) string {
	return fmt.Sprintf("sub_%05x", offset)
}
