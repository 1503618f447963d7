// Package ncstest assembles synthetic NCS bytecode for tests.
package ncstest

import (
	"encoding/binary"
	"fmt"
	"math"

	"ncsdec/internal/ncs"
)

// Builder assembles an NCS byte buffer instruction by instruction.
// Jump targets are symbolic labels resolved when Bytes is called.
type Builder struct {
	code   []byte
	labels map[string]int // label → absolute byte offset
	fixups []fixup
}

type fixup struct {
	at    int // offset of the 4-byte relative operand within the file
	from  int // offset of the instruction the displacement is relative to
	label string
}

func New() *Builder {
	return &Builder{labels: make(map[string]int)}
}

// pos returns the absolute file offset of the next instruction.
func (b *Builder) pos() int { return ncs.HeaderSize + len(b.code) }

func (b *Builder) raw(bs ...byte) *Builder {
	b.code = append(b.code, bs...)
	return b
}

func (b *Builder) u16(v uint16) *Builder {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return b.raw(buf[:]...)
}

func (b *Builder) u32(v uint32) *Builder {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return b.raw(buf[:]...)
}

// Label defines a jump target at the current position.
func (b *Builder) Label(name string) *Builder {
	b.labels[name] = b.pos()
	return b
}

func (b *Builder) jump(op ncs.Opcode, label string) *Builder {
	from := b.pos()
	b.raw(byte(op), byte(ncs.TypeNone))
	b.fixups = append(b.fixups, fixup{at: ncs.HeaderSize + len(b.code), from: from, label: label})
	return b.u32(0)
}

func (b *Builder) Jmp(label string) *Builder { return b.jump(ncs.OpJMP, label) }
func (b *Builder) Jsr(label string) *Builder { return b.jump(ncs.OpJSR, label) }
func (b *Builder) Jz(label string) *Builder  { return b.jump(ncs.OpJZ, label) }
func (b *Builder) Jnz(label string) *Builder { return b.jump(ncs.OpJNZ, label) }

func (b *Builder) ConstI(v int32) *Builder {
	return b.raw(byte(ncs.OpCONST), byte(ncs.TypeInt)).u32(uint32(v))
}

func (b *Builder) ConstF(v float32) *Builder {
	return b.raw(byte(ncs.OpCONST), byte(ncs.TypeFloat)).u32(math.Float32bits(v))
}

func (b *Builder) ConstS(s string) *Builder {
	b.raw(byte(ncs.OpCONST), byte(ncs.TypeString)).u16(uint16(len(s)))
	return b.raw([]byte(s)...)
}

func (b *Builder) ConstO(v int32) *Builder {
	return b.raw(byte(ncs.OpCONST), byte(ncs.TypeObject)).u32(uint32(v))
}

func (b *Builder) RSAdd(t ncs.OperandType) *Builder {
	return b.raw(byte(ncs.OpRSADD), byte(t))
}

func (b *Builder) RSAddI() *Builder { return b.RSAdd(ncs.TypeInt) }

// CpTopSp copies size bytes from the SP-relative byte offset to the top.
func (b *Builder) CpTopSp(off int32, size uint16) *Builder {
	return b.raw(byte(ncs.OpCPTOPSP), byte(ncs.TypeCopy)).u32(uint32(off)).u16(size)
}

// CpDownSp copies the top size bytes down to the SP-relative byte offset.
func (b *Builder) CpDownSp(off int32, size uint16) *Builder {
	return b.raw(byte(ncs.OpCPDOWNSP), byte(ncs.TypeCopy)).u32(uint32(off)).u16(size)
}

func (b *Builder) CpTopBp(off int32, size uint16) *Builder {
	return b.raw(byte(ncs.OpCPTOPBP), byte(ncs.TypeCopy)).u32(uint32(off)).u16(size)
}

func (b *Builder) CpDownBp(off int32, size uint16) *Builder {
	return b.raw(byte(ncs.OpCPDOWNBP), byte(ncs.TypeCopy)).u32(uint32(off)).u16(size)
}

func (b *Builder) MovSp(bytes int32) *Builder {
	return b.raw(byte(ncs.OpMOVSP), byte(ncs.TypeNone)).u32(uint32(bytes))
}

func (b *Builder) IncISp(off int32) *Builder {
	return b.raw(byte(ncs.OpINCISP), byte(ncs.TypeInt)).u32(uint32(off))
}

func (b *Builder) DecISp(off int32) *Builder {
	return b.raw(byte(ncs.OpDECISP), byte(ncs.TypeInt)).u32(uint32(off))
}

func (b *Builder) Action(routine uint16, argc byte) *Builder {
	return b.raw(byte(ncs.OpACTION), byte(ncs.TypeNone)).u16(routine).raw(argc)
}

// Binary emits an arithmetic/logic/compare instruction with its type
// qualifier, e.g. Binary(ncs.OpLT, ncs.TypeIntInt).
func (b *Builder) Binary(op ncs.Opcode, t ncs.OperandType) *Builder {
	return b.raw(byte(op), byte(t))
}

func (b *Builder) Unary(op ncs.Opcode, t ncs.OperandType) *Builder {
	return b.raw(byte(op), byte(t))
}

func (b *Builder) Retn() *Builder {
	return b.raw(byte(ncs.OpRETN), byte(ncs.TypeNone))
}

func (b *Builder) SaveBP() *Builder {
	return b.raw(byte(ncs.OpSAVEBP), byte(ncs.TypeNone))
}

func (b *Builder) RestoreBP() *Builder {
	return b.raw(byte(ncs.OpRESTOREBP), byte(ncs.TypeNone))
}

func (b *Builder) Nop() *Builder {
	return b.raw(byte(ncs.OpNOP), byte(ncs.TypeNone))
}

func (b *Builder) StoreState(bp, sp uint32) *Builder {
	return b.raw(byte(ncs.OpSTORESTATE), 0x10).u32(bp).u32(sp)
}

func (b *Builder) Destruct(size uint16, keepOff int16, keepLen uint16) *Builder {
	return b.raw(byte(ncs.OpDESTRUCT), byte(ncs.TypeNone)).u16(size).u16(uint16(keepOff)).u16(keepLen)
}

// Bytes resolves labels and returns the complete file with its header.
func (b *Builder) Bytes() []byte {
	out := make([]byte, 0, ncs.HeaderSize+len(b.code))
	out = append(out, "NCS V1.0"...)
	out = append(out, 0x42)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(ncs.HeaderSize+len(b.code)))
	out = append(out, lenBuf[:]...)
	out = append(out, b.code...)

	for _, f := range b.fixups {
		target, ok := b.labels[f.label]
		if !ok {
			panic(fmt.Sprintf("ncstest: undefined label %q", f.label))
		}
		binary.BigEndian.PutUint32(out[f.at:], uint32(int32(target-f.from)))
	}
	return out
}

// Decode assembles and decodes in one step, panicking on failure; for
// tests that need a Program rather than bytes.
func (b *Builder) Decode(variant ncs.Variant) *ncs.Program {
	p, err := ncs.Decode(b.Bytes(), variant)
	if err != nil {
		panic(fmt.Sprintf("ncstest: decode: %v", err))
	}
	return p
}
