package ncs_test

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"ncsdec/internal/ncs"
	"ncsdec/internal/ncs/ncstest"
)

func TestDecodeHeader(t *testing.T) {
	data := ncstest.New().Retn().Bytes()
	p, err := ncs.Decode(data, ncs.VariantK1)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Length != uint32(len(data)) {
		t.Errorf("Length = %d, want %d", p.Length, len(data))
	}
	if len(p.Insts) != 1 || p.Insts[0].Op != ncs.OpRETN {
		t.Fatalf("insts = %+v, want single RETN", p.Insts)
	}
	if p.Insts[0].Offset != ncs.HeaderSize {
		t.Errorf("first offset = %d, want %d", p.Insts[0].Offset, ncs.HeaderSize)
	}
}

func TestDecodeHeaderErrors(t *testing.T) {
	good := ncstest.New().Retn().Bytes()

	short := good[:5]
	if _, err := ncs.Decode(short, ncs.VariantK1); err == nil {
		t.Error("short buffer: want error")
	}

	badMagic := append([]byte(nil), good...)
	badMagic[0] = 'X'
	if _, err := ncs.Decode(badMagic, ncs.VariantK1); err == nil {
		t.Error("bad magic: want error")
	}

	badSizeOp := append([]byte(nil), good...)
	badSizeOp[8] = 0x41
	if _, err := ncs.Decode(badSizeOp, ncs.VariantK1); err == nil {
		t.Error("bad size opcode: want error")
	}

	badLen := append([]byte(nil), good...)
	binary.BigEndian.PutUint32(badLen[9:], uint32(len(good)+1))
	if _, err := ncs.Decode(badLen, ncs.VariantK1); err == nil {
		t.Error("length mismatch: want error")
	}
}

func TestDecodeOperands(t *testing.T) {
	p := ncstest.New().
		ConstI(-5).
		ConstF(1.5).
		ConstS("hi").
		CpTopSp(-4, 4).
		Binary(ncs.OpADD, ncs.TypeIntInt).
		MovSp(-4).
		Action(13, 1).
		Retn().
		Decode(ncs.VariantK1)

	if len(p.Insts) != 8 {
		t.Fatalf("insts = %d, want 8", len(p.Insts))
	}
	if got := p.Insts[0]; got.Op != ncs.OpCONST || got.Int != -5 {
		t.Errorf("inst 0 = %s %d, want CONSTI -5", got.Op, got.Int)
	}
	if got := p.Insts[1]; got.Float != 1.5 {
		t.Errorf("inst 1 float = %g, want 1.5", got.Float)
	}
	if got := p.Insts[2]; got.Str != "hi" {
		t.Errorf("inst 2 str = %q, want %q", got.Str, "hi")
	}
	if got := p.Insts[3]; got.Int != -4 || got.Size != 4 {
		t.Errorf("inst 3 = off %d size %d, want -4, 4", got.Int, got.Size)
	}
	if got := p.Insts[6]; got.Routine != 13 || got.Argc != 1 {
		t.Errorf("inst 6 = routine %d argc %d, want 13, 1", got.Routine, got.Argc)
	}

	// Offsets must be contiguous and cover the whole buffer.
	next := uint32(ncs.HeaderSize)
	for i, in := range p.Insts {
		if in.Offset != next {
			t.Errorf("inst %d offset = %d, want %d", i, in.Offset, next)
		}
		next += in.Len
	}
	if next != p.Length {
		t.Errorf("decoded bytes end at %d, want %d", next, p.Length)
	}
}

func TestDecodeJumpTargetsAbsolute(t *testing.T) {
	p := ncstest.New().
		Jmp("end").
		Nop().
		Label("end").
		Retn().
		Decode(ncs.VariantK1)

	jmp := p.Insts[0]
	want := p.Insts[2].Offset
	if jmp.Target != want {
		t.Errorf("JMP target = 0x%x, want 0x%x", jmp.Target, want)
	}
	if idx, ok := p.IndexAt(want); !ok || idx != 2 {
		t.Errorf("IndexAt(0x%x) = %d, %v, want 2, true", want, idx, ok)
	}
}

func TestDecodeWindows1252String(t *testing.T) {
	// 0x93 is a left double quotation mark in the legacy code page.
	data := ncstest.New().ConstS("x").Retn().Bytes()
	// Patch the string byte to 0x93.
	idx := strings.IndexByte(string(data[ncs.HeaderSize:]), 'x')
	if idx < 0 {
		t.Fatal("payload byte not found")
	}
	data[ncs.HeaderSize+idx] = 0x93

	p, err := ncs.Decode(data, ncs.VariantK1)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := p.Insts[0].Str; got != "“" {
		t.Errorf("str = %q, want %q", got, "“")
	}
}

func TestDecodeUnknownOpcode(t *testing.T) {
	data := ncstest.New().Retn().Bytes()
	data[ncs.HeaderSize] = 0xEE

	_, err := ncs.Decode(data, ncs.VariantK1)
	var me *ncs.MalformedBytecodeError
	if !errors.As(err, &me) {
		t.Fatalf("err = %v, want MalformedBytecodeError", err)
	}
	if me.Offset != ncs.HeaderSize {
		t.Errorf("error offset = 0x%x, want 0x%x", me.Offset, ncs.HeaderSize)
	}
}

func TestDecodeTruncatedOperand(t *testing.T) {
	// Header declares the real buffer length, but the single CONST has
	// no operand bytes behind it.
	code := []byte{byte(ncs.OpCONST), byte(ncs.TypeInt), 0x00}
	data := append([]byte("NCS V1.0"), 0x42, 0, 0, 0, 0)
	binary.BigEndian.PutUint32(data[9:], uint32(len(data)+len(code)))
	data = append(data, code...)

	if _, err := ncs.Decode(data, ncs.VariantK1); err == nil {
		t.Error("truncated operand: want error")
	}
}

func TestDecodeDeterministic(t *testing.T) {
	data := ncstest.New().
		ConstI(1).ConstI(2).Binary(ncs.OpADD, ncs.TypeIntInt).MovSp(-4).Retn().
		Bytes()

	a, err := ncs.Decode(data, ncs.VariantK1)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	b, err := ncs.Decode(data, ncs.VariantK1)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ncs.Format(a.Insts) != ncs.Format(b.Insts) {
		t.Error("two decodes of the same buffer differ")
	}
}

func TestFormatListing(t *testing.T) {
	p := ncstest.New().ConstI(7).Retn().Decode(ncs.VariantK1)
	got := ncs.Format(p.Insts)
	if !strings.Contains(got, "CONSTI") || !strings.Contains(got, "7") {
		t.Errorf("listing missing CONSTI 7:\n%s", got)
	}
	if !strings.Contains(got, "RETN") {
		t.Errorf("listing missing RETN:\n%s", got)
	}
}
