// Package cfg builds per-function control-flow graphs from a decoded
// NCS instruction stream.
package cfg

import (
	"fmt"
	"sort"

	"ncsdec/internal/ncs"
)

// EdgeKind classifies a control-flow successor edge.
type EdgeKind int

const (
	Fallthrough EdgeKind = iota
	Jump                 // unconditional JMP
	BranchTrue           // followed when the popped condition is true
	BranchFalse          // followed when the popped condition is false
)

func (k EdgeKind) String() string {
	switch k {
	case Fallthrough:
		return "fall"
	case Jump:
		return "jmp"
	case BranchTrue:
		return "T"
	case BranchFalse:
		return "F"
	}
	return fmt.Sprintf("EdgeKind(%d)", int(k))
}

// Edge is a directed successor edge. Blocks are referenced by index,
// never by pointer.
type Edge struct {
	Block int
	Kind  EdgeKind
}

// Block is an ordered, contiguous run of instructions with a single entry
// and a single exit. Never mutated after construction.
type Block struct {
	ID      int
	Start   int // index into Func.Insts (inclusive)
	End     int // index into Func.Insts (exclusive)
	Succs   []Edge
	IsEntry bool
	IsTerm  bool // ends with RETN
}

// CallSite records a JSR within a block (calls do not end blocks).
type CallSite struct {
	InstIndex int    // index into Func.Insts
	Target    uint32 // absolute byte offset of the callee entry
}

// Func is one subroutine's control-flow graph.
type Func struct {
	Name        string
	EntryOffset uint32
	Insts       []ncs.Instruction
	Blocks      []Block
	Calls       []CallSite

	idom []int // immediate dominators, computed lazily by Dominators
}

// UnresolvedJumpTargetError is the fatal graph-time error: a jump offset
// that does not land on an instruction boundary inside its function.
type UnresolvedJumpTargetError struct {
	Offset uint32 // offset of the jump instruction
	Target uint32
}

func (e *UnresolvedJumpTargetError) Error() string {
	return fmt.Sprintf("cfg: jump at 0x%x targets 0x%x, not an instruction boundary in its function", e.Offset, e.Target)
}

// Build constructs a control-flow graph from one function's instruction
// slice. The algorithm, following the classic three phases:
//  1. Find block leaders: index 0, jump targets, instructions after terminators.
//  2. Partition instructions into blocks by leaders.
//  3. Compute successor edges from each block's last instruction.
//
// Unreachable blocks are pruned and reported through diags.
func Build(name string, entryOffset uint32, insts []ncs.Instruction, diags *ncs.Diags) (*Func, error) {
	f := &Func{Name: name, EntryOffset: entryOffset, Insts: insts}
	if len(insts) == 0 {
		return f, nil
	}

	// Map byte offset → local instruction index for target resolution.
	offToIdx := make(map[uint32]int, len(insts))
	for i, in := range insts {
		offToIdx[in.Offset] = i
	}

	resolve := func(in ncs.Instruction) (int, error) {
		idx, ok := offToIdx[in.Target]
		if !ok {
			return 0, &UnresolvedJumpTargetError{Offset: in.Offset, Target: in.Target}
		}
		return idx, nil
	}

	// Phase 1: leaders.
	leaders := map[int]bool{0: true}
	for i, in := range insts {
		switch in.Op {
		case ncs.OpJMP, ncs.OpJZ, ncs.OpJNZ:
			idx, err := resolve(in)
			if err != nil {
				return nil, err
			}
			leaders[idx] = true
			if i+1 < len(insts) {
				leaders[i+1] = true
			}
		case ncs.OpRETN:
			if i+1 < len(insts) {
				leaders[i+1] = true
			}
		case ncs.OpJSR:
			// Calls return to the next instruction; record, don't split.
			f.Calls = append(f.Calls, CallSite{InstIndex: i, Target: in.Target})
		}
	}

	sorted := make([]int, 0, len(leaders))
	for idx := range leaders {
		sorted = append(sorted, idx)
	}
	sort.Ints(sorted)

	// Phase 2: partition.
	blocks := make([]Block, len(sorted))
	leaderToBlock := make(map[int]int, len(sorted))
	for i, start := range sorted {
		end := len(insts)
		if i+1 < len(sorted) {
			end = sorted[i+1]
		}
		blocks[i] = Block{ID: i, Start: start, End: end, IsEntry: start == 0}
		leaderToBlock[start] = i
	}

	// Phase 3: successors.
	for i := range blocks {
		blk := &blocks[i]
		last := insts[blk.End-1]
		switch last.Op {
		case ncs.OpRETN:
			blk.IsTerm = true
		case ncs.OpJMP:
			idx, _ := resolve(last)
			blk.Succs = append(blk.Succs, Edge{Block: leaderToBlock[idx], Kind: Jump})
		case ncs.OpJZ, ncs.OpJNZ:
			idx, _ := resolve(last)
			taken := Edge{Block: leaderToBlock[idx]}
			fall := Edge{}
			// JZ takes its jump when the condition is zero.
			if last.Op == ncs.OpJZ {
				taken.Kind = BranchFalse
				fall.Kind = BranchTrue
			} else {
				taken.Kind = BranchTrue
				fall.Kind = BranchFalse
			}
			if next, ok := leaderToBlock[blk.End]; ok {
				fall.Block = next
				blk.Succs = append(blk.Succs, taken, fall)
			} else {
				// Branch at end of function with no fallthrough block.
				blk.Succs = append(blk.Succs, taken)
			}
		default:
			if next, ok := leaderToBlock[blk.End]; ok {
				blk.Succs = append(blk.Succs, Edge{Block: next, Kind: Fallthrough})
			}
		}
	}

	f.Blocks = pruneUnreachable(blocks, insts, diags)
	return f, nil
}

// pruneUnreachable drops blocks with no path from the entry, renumbering
// the survivors. Dropped blocks are a diagnostic, not an error.
func pruneUnreachable(blocks []Block, insts []ncs.Instruction, diags *ncs.Diags) []Block {
	if len(blocks) == 0 {
		return blocks
	}
	reachable := make([]bool, len(blocks))
	stack := []int{0}
	reachable[0] = true
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range blocks[b].Succs {
			if !reachable[s.Block] {
				reachable[s.Block] = true
				stack = append(stack, s.Block)
			}
		}
	}

	remap := make([]int, len(blocks))
	kept := blocks[:0:0]
	for i := range blocks {
		if reachable[i] {
			remap[i] = len(kept)
			kept = append(kept, blocks[i])
		} else {
			remap[i] = -1
			if diags != nil {
				diags.Addf(insts[blocks[i].Start].Offset, ncs.DiagUnreachable,
					"dropping unreachable block of %d instruction(s)", blocks[i].End-blocks[i].Start)
			}
		}
	}
	for i := range kept {
		kept[i].ID = i
		for j := range kept[i].Succs {
			kept[i].Succs[j].Block = remap[kept[i].Succs[j].Block]
		}
	}
	return kept
}

// Preds returns the predecessor lists for every block.
func (f *Func) Preds() [][]int {
	preds := make([][]int, len(f.Blocks))
	for i := range f.Blocks {
		for _, s := range f.Blocks[i].Succs {
			preds[s.Block] = append(preds[s.Block], i)
		}
	}
	return preds
}
