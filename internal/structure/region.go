// Package structure classifies control-flow graphs into trees of nested
// structured regions.
package structure

import (
	"ncsdec/internal/expr"
)

// Kind discriminates the closed Region variant set.
type Kind int

const (
	KindBlock    Kind = iota // leaf: ordered statements
	KindSequence             // ordered child regions
	KindIf
	KindWhile
	KindDoWhile
	KindFor
	KindSwitch
	KindBreak
	KindContinue
	KindReturn
	KindGoto  // best-effort residue: jump marker
	KindLabel // best-effort residue: jump target marker
)

// Region is a node of the structured-control-flow tree. Every basic
// block's statements appear in exactly one region; regions form a tree
// even where the underlying graph had cycles.
type Region struct {
	Kind Kind

	Stmts   []expr.Stmt  // Block
	Kids    []*Region    // Sequence
	Cond    *expr.Expr   // If, While, DoWhile, For
	Then    *Region      // If
	Else    *Region      // If (optional)
	Body    *Region      // While, DoWhile, For
	Init    *expr.Stmt   // For (optional)
	Step    *expr.Stmt   // For
	Sel     *expr.Expr   // Switch selector
	Cases   []SwitchCase // Switch
	Default *Region      // Switch (optional)
	Ret     *expr.Expr   // Return (optional)
	Label   uint32       // Goto target / Label offset
}

// SwitchCase is one fallthrough-free arm of a Switch region.
type SwitchCase struct {
	Value int32
	Body  *Region
}

// seq concatenates regions into a Sequence, flattening nested sequences
// and dropping empty blocks. A single survivor is returned unwrapped.
func seq(rs ...*Region) *Region {
	var kids []*Region
	for _, r := range rs {
		if r == nil {
			continue
		}
		switch {
		case r.Kind == KindSequence:
			kids = append(kids, r.Kids...)
		case r.Kind == KindBlock && len(r.Stmts) == 0:
			// drop
		default:
			kids = append(kids, r)
		}
	}
	switch len(kids) {
	case 0:
		return &Region{Kind: KindBlock}
	case 1:
		return kids[0]
	}
	return &Region{Kind: KindSequence, Kids: kids}
}

// negate returns the logical negation of a condition, inverting
// comparison operators in place of wrapping where possible.
func negate(e *expr.Expr) *expr.Expr {
	if e == nil {
		return nil
	}
	if e.Kind == expr.Binary {
		if inv, ok := invertedCompare[e.Op]; ok {
			return &expr.Expr{Kind: expr.Binary, Type: expr.TypeInt, Op: inv, L: e.L, R: e.R}
		}
	}
	if e.Kind == expr.Unary && e.Op == "!" {
		return e.X
	}
	return &expr.Expr{Kind: expr.Unary, Type: expr.TypeInt, Op: "!", X: e}
}

var invertedCompare = map[string]string{
	"==": "!=", "!=": "==",
	"<": ">=", ">=": "<",
	">": "<=", "<=": ">",
}
