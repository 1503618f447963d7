package expr

// StmtKind discriminates recovered statements within a basic block.
// Declarations are not statements: local slots are hoisted and emitted
// at the top of their function.
type StmtKind int

const (
	StmtAssign    StmtKind = iota // target = value
	StmtExpr                      // expression evaluated for effect (call)
	StmtSetReturn                 // store into the caller-reserved return cell
)

// Stmt is one recovered statement. Regions own ordered statement lists.
type Stmt struct {
	Kind   StmtKind
	Target *Expr // StmtAssign: LocalRef/GlobalRef/ParamRef
	Value  *Expr // StmtAssign, StmtExpr, StmtSetReturn
	Offset uint32
}
