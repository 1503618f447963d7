package expr

import (
	"fmt"

	"ncsdec/internal/ncs"
)

// Slot is a stack-relative variable identity with an inferred declared
// type and first-definition site. Lifetime is one decompilation unit.
type Slot struct {
	Name     string
	Type     Type
	Pos      int    // absolute stack cell position (function locals >= 0, params < 0)
	FirstDef uint32 // byte offset of the defining instruction
	IsGlobal bool
	IsParam  bool
}

// observe folds a new type observation into the slot. The first concrete
// observation wins; a later conflicting observation widens the slot to
// the permissive placeholder and records a diagnostic.
func (s *Slot) observe(t Type, off uint32, diags *ncs.Diags) {
	if t == TypeUnknown {
		return
	}
	switch s.Type {
	case TypeUnknown:
		s.Type = t
	case t:
		// consistent
	default:
		diags.Addf(off, ncs.DiagTypeConflict,
			"%s used as %s after being defined as %s; widening", s.Name, t, s.Type)
		s.Type = TypeUnknown
	}
}

// Globals tracks base-pointer-relative slots shared by every function in
// the script. The slot list is emitted as file-scope declarations.
type Globals struct {
	byPos map[int]*Slot
	Order []*Slot
}

func NewGlobals() *Globals {
	return &Globals{byPos: make(map[int]*Slot)}
}

// Adopt registers an existing slot as the global at a BP-relative cell
// position. Used when SAVEBP promotes the initializer's frame to the
// script's global frame.
func (g *Globals) Adopt(pos int, s *Slot) {
	if _, ok := g.byPos[pos]; ok {
		return
	}
	g.byPos[pos] = s
	g.Order = append(g.Order, s)
}

// Slot returns the global slot for a BP-relative cell position, creating
// it on first reference.
func (g *Globals) Slot(pos int, off uint32) *Slot {
	if s, ok := g.byPos[pos]; ok {
		return s
	}
	s := &Slot{
		Name:     fmt.Sprintf("GLOB_%d", len(g.Order)),
		Type:     TypeUnknown,
		Pos:      pos,
		FirstDef: off,
		IsGlobal: true,
	}
	g.byPos[pos] = s
	g.Order = append(g.Order, s)
	return s
}
