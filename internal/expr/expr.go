package expr

import (
	"fmt"

	"ncsdec/internal/ncs"
)

// Kind discriminates the closed Expr variant set.
type Kind int

const (
	IntLit Kind = iota
	FloatLit
	StringLit
	ObjectLit
	LocalRef
	GlobalRef
	ParamRef
	RetValRef // the caller-reserved return cell
	Binary
	Unary
	Call
	Cast
	Placeholder // resynchronization filler; spells as 0
)

// Expr is a recovered expression tree node. Built bottom-up from stack
// effects; never mutated after a statement boundary.
type Expr struct {
	Kind Kind
	Type Type

	Int   int32   // IntLit, ObjectLit
	Float float32 // FloatLit
	Str   string  // StringLit

	Op   string // Binary, Unary: source operator spelling
	L, R *Expr  // Binary
	X    *Expr  // Unary, Cast

	Callee string // Call
	Args   []*Expr

	Slot *Slot // LocalRef, GlobalRef, ParamRef
}

// binaryOps maps binary opcodes to their source spelling and the result
// type rule (comparison and logic ops always yield int).
var binaryOps = map[ncs.Opcode]string{
	ncs.OpLOGAND: "&&", ncs.OpLOGOR: "||",
	ncs.OpINCOR: "|", ncs.OpEXCOR: "^", ncs.OpBOOLAND: "&",
	ncs.OpEQUAL: "==", ncs.OpNEQUAL: "!=",
	ncs.OpGEQ: ">=", ncs.OpGT: ">", ncs.OpLT: "<", ncs.OpLEQ: "<=",
	ncs.OpSHLEFT: "<<", ncs.OpSHRIGHT: ">>", ncs.OpUSHRIGHT: ">>",
	ncs.OpADD: "+", ncs.OpSUB: "-", ncs.OpMUL: "*", ncs.OpDIV: "/",
	ncs.OpMOD: "%",
}

var unaryOps = map[ncs.Opcode]string{
	ncs.OpNEG: "-", ncs.OpCOMP: "~", ncs.OpNOT: "!",
}

// Precedence returns a binding strength for a binary operator, higher
// binds tighter. Mirrors the target language's grammar.
func Precedence(op string) int {
	switch op {
	case "*", "/", "%":
		return 7
	case "+", "-":
		return 6
	case "<<", ">>":
		return 5
	case "<", "<=", ">", ">=":
		return 4
	case "==", "!=":
		return 3
	case "&", "^", "|":
		return 2
	case "&&", "||":
		return 1
	}
	return 0
}

// binaryResultType applies the promotion rules: comparisons and logic
// yield int; int op float widens to float; string + string is string.
func binaryResultType(op string, l, r Type) Type {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=", "&&", "||":
		return TypeInt
	}
	if l == TypeFloat || r == TypeFloat {
		return TypeFloat
	}
	if l == TypeString && r == TypeString {
		return TypeString
	}
	if l == TypeVector || r == TypeVector {
		return TypeVector
	}
	if l == TypeUnknown {
		return r
	}
	return l
}

// NewPlaceholder returns the resynchronization filler expression.
func NewPlaceholder() *Expr {
	return &Expr{Kind: Placeholder, Type: TypeUnknown}
}

// String renders the expression as source text, parenthesizing child
// binary expressions whose operator binds looser than the parent's.
func (e *Expr) String() string {
	if e == nil {
		return "0"
	}
	switch e.Kind {
	case IntLit:
		return fmt.Sprintf("%d", e.Int)
	case FloatLit:
		return FormatFloat(e.Float)
	case StringLit:
		return quoteString(e.Str)
	case ObjectLit:
		switch e.Int {
		case 0:
			return "OBJECT_SELF"
		case 1:
			return "OBJECT_INVALID"
		}
		return fmt.Sprintf("%d", e.Int)
	case LocalRef, GlobalRef, ParamRef:
		return e.Slot.Name
	case RetValRef:
		return "_ret"
	case Binary:
		l := e.L.String()
		r := e.R.String()
		if e.L != nil && e.L.Kind == Binary && Precedence(e.L.Op) < Precedence(e.Op) {
			l = "(" + l + ")"
		}
		// Right child also parenthesized on equal precedence to preserve
		// the recovered grouping for non-associative cases.
		if e.R != nil && e.R.Kind == Binary && Precedence(e.R.Op) <= Precedence(e.Op) {
			r = "(" + r + ")"
		}
		return l + " " + e.Op + " " + r
	case Unary:
		x := e.X.String()
		if e.X != nil && e.X.Kind == Binary {
			x = "(" + x + ")"
		}
		return e.Op + x
	case Call:
		s := e.Callee + "("
		for i, a := range e.Args {
			if i > 0 {
				s += ", "
			}
			s += a.String()
		}
		return s + ")"
	case Cast:
		return "(" + e.Type.String() + ")" + e.X.String()
	case Placeholder:
		return "0"
	}
	return "0"
}

// FormatFloat renders a float literal in source syntax, always with a
// fractional part.
func FormatFloat(f float32) string {
	s := fmt.Sprintf("%g", f)
	hasDot := false
	for _, c := range s {
		if c == '.' || c == 'e' || c == 'E' {
			hasDot = true
			break
		}
	}
	if !hasDot {
		s += ".0"
	}
	return s
}

// quoteString renders a string literal with script escaping rules.
func quoteString(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			out = append(out, '\\', '"')
		case '\\':
			out = append(out, '\\', '\\')
		case '\n':
			out = append(out, '\\', 'n')
		case '\t':
			out = append(out, '\\', 't')
		default:
			out = append(out, c)
		}
	}
	return string(append(out, '"'))
}
