// Package ncs decodes compiled NCS script bytecode into a typed
// instruction stream and carries the pipeline's shared diagnostics types.
package ncs

import "fmt"

// DiagKind classifies a diagnostic message.
type DiagKind string

const (
	DiagStackImbalance    DiagKind = "stack_imbalance"
	DiagSignatureMismatch DiagKind = "signature_mismatch"
	DiagUnstructured      DiagKind = "unstructured"
	DiagUnknownCast       DiagKind = "unknown_cast"
	DiagUnknownSigType    DiagKind = "unknown_sig_type"
	DiagUnreachable       DiagKind = "unreachable"
	DiagTypeConflict      DiagKind = "type_conflict"
	DiagRepair            DiagKind = "repair"
)

// Diag records a non-fatal issue encountered during decompilation.
type Diag struct {
	Offset uint32   `json:"offset"`
	Kind   DiagKind `json:"kind"`
	Msg    string   `json:"msg"`
}

func (d Diag) String() string {
	return fmt.Sprintf("[%s] 0x%x: %s", d.Kind, d.Offset, d.Msg)
}

// Diags accumulates diagnostics across pipeline stages.
type Diags struct {
	items []Diag
}

func (d *Diags) Add(offset uint32, kind DiagKind, msg string) {
	d.items = append(d.items, Diag{Offset: offset, Kind: kind, Msg: msg})
}

func (d *Diags) Addf(offset uint32, kind DiagKind, format string, args ...any) {
	d.items = append(d.items, Diag{Offset: offset, Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

func (d *Diags) Items() []Diag { return d.items }
func (d *Diags) Len() int      { return len(d.items) }

// Variant selects which game release's VM/API configuration to target.
type Variant string

const (
	VariantK1 Variant = "k1" // first game release
	VariantK2 Variant = "k2" // second game release
)

// Known reports whether v names a supported variant.
func (v Variant) Known() bool {
	return v == VariantK1 || v == VariantK2
}
