package ncs

import (
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"
)

// HeaderSize is the fixed byte length of the NCS file header.
const HeaderSize = 13

// Header is the fixed-layout NCS file header: an 8-byte magic, the
// program-size pseudo-opcode 0x42, and the big-endian total file length.
type Header struct {
	Magic  [8]byte `struct:"[8]byte"`
	SizeOp byte    `struct:"byte"`
	Length uint32  `struct:"uint32"`
}

const (
	headerMagic  = "NCS V1.0"
	headerSizeOp = 0x42
)

// MalformedBytecodeError is the fatal decode-time error. It always carries
// the exact byte offset where decoding could not proceed.
type MalformedBytecodeError struct {
	Offset uint32
	Reason string
}

func (e *MalformedBytecodeError) Error() string {
	return fmt.Sprintf("ncs: malformed bytecode at 0x%x: %s", e.Offset, e.Reason)
}

func malformed(offset int, format string, args ...any) error {
	return &MalformedBytecodeError{Offset: uint32(offset), Reason: fmt.Sprintf(format, args...)}
}

// Instruction is one decoded NCS instruction. Immutable once decoded.
type Instruction struct {
	Op     Opcode
	Type   OperandType
	Offset uint32 // byte offset within the file
	Len    uint32 // encoded byte length

	Int     int32   // integer constant, SP/BP-relative offset, or object id
	Float   float32 // float constant
	Str     string  // string constant
	Size    uint16  // copy width in bytes; struct width for EQUAL/NEQUAL TT
	KeepOff int16   // DESTRUCT: offset of the preserved range
	KeepLen uint16  // DESTRUCT: length of the preserved range
	Routine uint16  // ACTION: engine routine index
	Argc    uint8   // ACTION: argument count at the call site
	Target  uint32  // absolute byte offset for JMP/JSR/JZ/JNZ
	BPCells uint32  // STORE_STATE: saved base-pointer region size
	SPCells uint32  // STORE_STATE: saved stack-pointer region size
}

// Program is a decoded instruction stream. The decoder owns the arena;
// later stages borrow instructions by index.
type Program struct {
	Variant Variant
	Length  uint32 // declared total file length from the header
	Insts   []Instruction

	byOffset map[uint32]int
}

// IndexAt resolves a byte offset to an instruction index.
// Returns (0, false) if the offset is not an instruction boundary.
func (p *Program) IndexAt(offset uint32) (int, bool) {
	i, ok := p.byOffset[offset]
	return i, ok
}

// Decode parses a complete NCS byte buffer into a Program in a single
// linear pass. Any structural problem is fatal: partial bytecode cannot be
// made safe to interpret as control flow.
func Decode(data []byte, variant Variant) (*Program, error) {
	if len(data) < HeaderSize {
		return nil, malformed(0, "file too short for header (%d bytes)", len(data))
	}

	var hdr Header
	if err := restruct.Unpack(data[:HeaderSize], binary.BigEndian, &hdr); err != nil {
		return nil, malformed(0, "header: %v", err)
	}
	if string(hdr.Magic[:]) != headerMagic {
		return nil, malformed(0, "bad magic %q", string(hdr.Magic[:]))
	}
	if hdr.SizeOp != headerSizeOp {
		return nil, malformed(8, "bad size opcode 0x%02x", hdr.SizeOp)
	}
	if int(hdr.Length) != len(data) {
		return nil, malformed(9, "declared length %d != buffer length %d", hdr.Length, len(data))
	}

	p := &Program{
		Variant:  variant,
		Length:   hdr.Length,
		byOffset: make(map[uint32]int),
	}

	r := &reader{data: data, pos: HeaderSize}
	for r.Remaining() > 0 {
		start := r.Position()
		inst, err := decodeOne(r)
		if err != nil {
			if me, ok := err.(*MalformedBytecodeError); ok {
				return nil, me
			}
			return nil, malformed(start, "%v", err)
		}
		inst.Offset = uint32(start)
		inst.Len = uint32(r.Position() - start)
		p.byOffset[inst.Offset] = len(p.Insts)
		p.Insts = append(p.Insts, inst)
	}
	return p, nil
}

func decodeOne(r *reader) (Instruction, error) {
	start := r.Position()
	opb, err := r.ReadByte()
	if err != nil {
		return Instruction{}, err
	}
	op := Opcode(opb)
	if !op.Valid() {
		return Instruction{}, malformed(start, "unknown opcode 0x%02x", opb)
	}
	tb, err := r.ReadByte()
	if err != nil {
		return Instruction{}, err
	}
	typ := OperandType(tb)

	inst := Instruction{Op: op, Type: typ}

	switch op {
	case OpCPDOWNSP, OpCPTOPSP, OpCPDOWNBP, OpCPTOPBP:
		if typ != TypeCopy {
			return inst, malformed(start+1, "%s: unexpected type 0x%02x", op, tb)
		}
		if inst.Int, err = r.ReadInt32(); err != nil {
			return inst, err
		}
		if inst.Size, err = r.ReadUint16(); err != nil {
			return inst, err
		}

	case OpRSADD:
		switch typ {
		case TypeInt, TypeFloat, TypeString, TypeObject,
			TypeEffect, TypeEvent, TypeLocation, TypeTalent:
		default:
			return inst, malformed(start+1, "RSADD: unexpected type 0x%02x", tb)
		}

	case OpCONST:
		switch typ {
		case TypeInt, TypeObject:
			inst.Int, err = r.ReadInt32()
		case TypeFloat:
			inst.Float, err = r.ReadFloat32()
		case TypeString:
			inst.Str, err = r.ReadString()
		default:
			return inst, malformed(start+1, "CONST: unexpected type 0x%02x", tb)
		}
		if err != nil {
			return inst, err
		}

	case OpACTION:
		if inst.Routine, err = r.ReadUint16(); err != nil {
			return inst, err
		}
		if inst.Argc, err = r.ReadByte(); err != nil {
			return inst, err
		}

	case OpMOVSP, OpDECISP, OpINCISP, OpDECIBP, OpINCIBP:
		if inst.Int, err = r.ReadInt32(); err != nil {
			return inst, err
		}

	case OpJMP, OpJSR, OpJZ, OpJNZ:
		rel, err := r.ReadInt32()
		if err != nil {
			return inst, err
		}
		target := int64(start) + int64(rel)
		if target < HeaderSize {
			return inst, malformed(start, "%s: target 0x%x before code start", op, target)
		}
		inst.Target = uint32(target)

	case OpDESTRUCT:
		if inst.Size, err = r.ReadUint16(); err != nil {
			return inst, err
		}
		if inst.KeepOff, err = r.ReadInt16(); err != nil {
			return inst, err
		}
		if inst.KeepLen, err = r.ReadUint16(); err != nil {
			return inst, err
		}

	case OpSTORESTATE:
		if inst.BPCells, err = r.ReadUint32(); err != nil {
			return inst, err
		}
		if inst.SPCells, err = r.ReadUint32(); err != nil {
			return inst, err
		}

	case OpEQUAL, OpNEQUAL:
		if !typ.Valid() {
			return inst, malformed(start+1, "%s: unexpected type 0x%02x", op, tb)
		}
		// Struct comparison carries the aggregate width.
		if typ == TypeStructStruct {
			if inst.Size, err = r.ReadUint16(); err != nil {
				return inst, err
			}
		}

	case OpRETN, OpSAVEBP, OpRESTOREBP, OpNOP, OpSTORESTATEALL:
		// No operands.

	default:
		// Remaining arithmetic/logic/unary ops carry only the type byte.
		if !typ.Valid() {
			return inst, malformed(start+1, "%s: unexpected type 0x%02x", op, tb)
		}
	}

	return inst, nil
}
