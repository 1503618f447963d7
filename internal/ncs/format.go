package ncs

import (
	"fmt"
	"strconv"
	"strings"
)

// Mnemonic renders the opcode with its type suffix, e.g. "CONSTI" or "ADDIF".
func (in Instruction) Mnemonic() string {
	suffix := in.Type.String()
	return in.Op.String() + suffix
}

// OperandText renders the instruction's operands for a listing.
func (in Instruction) OperandText() string {
	switch in.Op {
	case OpCPDOWNSP, OpCPTOPSP, OpCPDOWNBP, OpCPTOPBP:
		return fmt.Sprintf("%d, %d", in.Int, in.Size)
	case OpCONST:
		switch in.Type {
		case TypeInt, TypeObject:
			return strconv.FormatInt(int64(in.Int), 10)
		case TypeFloat:
			return formatFloat(in.Float)
		case TypeString:
			return strconv.Quote(in.Str)
		}
	case OpACTION:
		return fmt.Sprintf("%d, %d", in.Routine, in.Argc)
	case OpMOVSP, OpDECISP, OpINCISP, OpDECIBP, OpINCIBP:
		return strconv.FormatInt(int64(in.Int), 10)
	case OpJMP, OpJSR, OpJZ, OpJNZ:
		return fmt.Sprintf("0x%08x", in.Target)
	case OpDESTRUCT:
		return fmt.Sprintf("%d, %d, %d", in.Size, in.KeepOff, in.KeepLen)
	case OpSTORESTATE:
		return fmt.Sprintf("%d, %d", in.BPCells, in.SPCells)
	case OpEQUAL, OpNEQUAL:
		if in.Type == TypeStructStruct {
			return strconv.FormatInt(int64(in.Size), 10)
		}
	}
	return ""
}

// formatFloat renders a float constant the way script source spells it:
// always with a fractional part, never in exponent form for ordinary values.
func formatFloat(f float32) string {
	s := strconv.FormatFloat(float64(f), 'g', -1, 32)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Format renders a slice of instructions as stable listing text.
// Each line: <offset>  <MNEMONIC>  <operands>
func Format(insts []Instruction) string {
	var b strings.Builder
	for _, in := range insts {
		fmt.Fprintf(&b, "0x%08x  %-14s", in.Offset, in.Mnemonic())
		if ops := in.OperandText(); ops != "" {
			b.WriteByte(' ')
			b.WriteString(ops)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
