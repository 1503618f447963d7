package ncs

import "fmt"

// Opcode is an NCS VM instruction opcode.
type Opcode byte

const (
	OpCPDOWNSP       Opcode = 0x01 // copy top cells down the stack
	OpRSADD          Opcode = 0x02 // reserve a typed stack cell (declaration)
	OpCPTOPSP        Opcode = 0x03 // copy cells from within the stack to the top
	OpCONST          Opcode = 0x04 // push a constant
	OpACTION         Opcode = 0x05 // call an engine routine by table index
	OpLOGAND         Opcode = 0x06
	OpLOGOR          Opcode = 0x07
	OpINCOR          Opcode = 0x08 // bitwise or
	OpEXCOR          Opcode = 0x09 // bitwise xor
	OpBOOLAND        Opcode = 0x0A // bitwise and
	OpEQUAL          Opcode = 0x0B
	OpNEQUAL         Opcode = 0x0C
	OpGEQ            Opcode = 0x0D
	OpGT             Opcode = 0x0E
	OpLT             Opcode = 0x0F
	OpLEQ            Opcode = 0x10
	OpSHLEFT         Opcode = 0x11
	OpSHRIGHT        Opcode = 0x12
	OpUSHRIGHT       Opcode = 0x13
	OpADD            Opcode = 0x14
	OpSUB            Opcode = 0x15
	OpMUL            Opcode = 0x16
	OpDIV            Opcode = 0x17
	OpMOD            Opcode = 0x18
	OpNEG            Opcode = 0x19
	OpCOMP           Opcode = 0x1A // bitwise complement
	OpMOVSP          Opcode = 0x1B // adjust stack pointer (pop)
	OpSTORESTATEALL  Opcode = 0x1C // legacy form of STORE_STATE
	OpJMP            Opcode = 0x1D
	OpJSR            Opcode = 0x1E
	OpJZ             Opcode = 0x1F
	OpRETN           Opcode = 0x20
	OpDESTRUCT       Opcode = 0x21 // remove cells, preserving a sub-range
	OpNOT            Opcode = 0x22
	OpDECISP         Opcode = 0x23 // decrement int at SP-relative offset
	OpINCISP         Opcode = 0x24
	OpJNZ            Opcode = 0x25
	OpCPDOWNBP       Opcode = 0x26
	OpCPTOPBP        Opcode = 0x27
	OpDECIBP         Opcode = 0x28
	OpINCIBP         Opcode = 0x29
	OpSAVEBP         Opcode = 0x2A // establish the globals base pointer
	OpRESTOREBP      Opcode = 0x2B
	OpSTORESTATE     Opcode = 0x2C // capture stack state for a deferred action
	OpNOP            Opcode = 0x2D
)

var opcodeNames = map[Opcode]string{
	OpCPDOWNSP: "CPDOWNSP", OpRSADD: "RSADD", OpCPTOPSP: "CPTOPSP",
	OpCONST: "CONST", OpACTION: "ACTION", OpLOGAND: "LOGAND",
	OpLOGOR: "LOGOR", OpINCOR: "INCOR", OpEXCOR: "EXCOR",
	OpBOOLAND: "BOOLAND", OpEQUAL: "EQUAL", OpNEQUAL: "NEQUAL",
	OpGEQ: "GEQ", OpGT: "GT", OpLT: "LT", OpLEQ: "LEQ",
	OpSHLEFT: "SHLEFT", OpSHRIGHT: "SHRIGHT", OpUSHRIGHT: "USHRIGHT",
	OpADD: "ADD", OpSUB: "SUB", OpMUL: "MUL", OpDIV: "DIV",
	OpMOD: "MOD", OpNEG: "NEG", OpCOMP: "COMP", OpMOVSP: "MOVSP",
	OpSTORESTATEALL: "STORE_STATEALL", OpJMP: "JMP", OpJSR: "JSR",
	OpJZ: "JZ", OpRETN: "RETN", OpDESTRUCT: "DESTRUCT", OpNOT: "NOT",
	OpDECISP: "DECISP", OpINCISP: "INCISP", OpJNZ: "JNZ",
	OpCPDOWNBP: "CPDOWNBP", OpCPTOPBP: "CPTOPBP", OpDECIBP: "DECIBP",
	OpINCIBP: "INCIBP", OpSAVEBP: "SAVEBP", OpRESTOREBP: "RESTOREBP",
	OpSTORESTATE: "STORE_STATE", OpNOP: "NOP",
}

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return fmt.Sprintf("OP_%02X", byte(op))
}

// Valid reports whether op is a known opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeNames[op]
	return ok
}

// OperandType is the type-qualifier byte that follows every opcode.
type OperandType byte

const (
	TypeNone         OperandType = 0x00
	TypeCopy         OperandType = 0x01 // stack copy ops (CPDOWNSP etc.)
	TypeInt          OperandType = 0x03
	TypeFloat        OperandType = 0x04
	TypeString       OperandType = 0x05
	TypeObject       OperandType = 0x06
	TypeEffect       OperandType = 0x10
	TypeEvent        OperandType = 0x11
	TypeLocation     OperandType = 0x12
	TypeTalent       OperandType = 0x13
	TypeIntInt       OperandType = 0x20
	TypeFloatFloat   OperandType = 0x21
	TypeObjObj       OperandType = 0x22
	TypeStrStr       OperandType = 0x23
	TypeStructStruct OperandType = 0x24
	TypeIntFloat     OperandType = 0x25
	TypeFloatInt     OperandType = 0x26
	TypeEffEff       OperandType = 0x30
	TypeEvtEvt       OperandType = 0x31
	TypeLocLoc       OperandType = 0x32
	TypeTalTal       OperandType = 0x33
	TypeVecVec       OperandType = 0x3A
	TypeVecFloat     OperandType = 0x3B
	TypeFloatVec     OperandType = 0x3C
)

var operandTypeNames = map[OperandType]string{
	TypeNone: "", TypeCopy: "",
	TypeInt: "I", TypeFloat: "F", TypeString: "S", TypeObject: "O",
	TypeEffect: "E", TypeEvent: "V", TypeLocation: "L", TypeTalent: "T",
	TypeIntInt: "II", TypeFloatFloat: "FF", TypeObjObj: "OO",
	TypeStrStr: "SS", TypeStructStruct: "TT", TypeIntFloat: "IF",
	TypeFloatInt: "FI", TypeEffEff: "EE", TypeEvtEvt: "VV",
	TypeLocLoc: "LL", TypeTalTal: "TT", TypeVecVec: "VV",
	TypeVecFloat: "VF", TypeFloatVec: "FV",
}

func (t OperandType) String() string {
	if s, ok := operandTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("T%02X", byte(t))
}

// Valid reports whether t is a known type qualifier.
func (t OperandType) Valid() bool {
	_, ok := operandTypeNames[t]
	return ok
}

// IsJump reports whether op transfers control to an encoded target.
func (op Opcode) IsJump() bool {
	switch op {
	case OpJMP, OpJSR, OpJZ, OpJNZ:
		return true
	}
	return false
}

// IsConditional reports whether op is a two-way branch.
func (op Opcode) IsConditional() bool {
	return op == OpJZ || op == OpJNZ
}

// IsBinary reports whether op pops two operands and pushes one result.
func (op Opcode) IsBinary() bool {
	switch op {
	case OpLOGAND, OpLOGOR, OpINCOR, OpEXCOR, OpBOOLAND,
		OpEQUAL, OpNEQUAL, OpGEQ, OpGT, OpLT, OpLEQ,
		OpSHLEFT, OpSHRIGHT, OpUSHRIGHT,
		OpADD, OpSUB, OpMUL, OpDIV, OpMOD:
		return true
	}
	return false
}

// IsUnary reports whether op pops one operand and pushes one result.
func (op Opcode) IsUnary() bool {
	switch op {
	case OpNEG, OpCOMP, OpNOT:
		return true
	}
	return false
}
