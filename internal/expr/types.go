// Package expr rebuilds expression trees and local-variable types from
// the stack effects of decoded NCS instructions.
package expr

import "ncsdec/internal/ncs"

// Type is a recovered script-level type.
type Type int

const (
	TypeUnknown Type = iota // permissive placeholder; spells as int
	TypeVoid
	TypeInt
	TypeFloat
	TypeString
	TypeObject
	TypeEffect
	TypeEvent
	TypeLocation
	TypeTalent
	TypeVector
	TypeAction
)

var typeNames = map[Type]string{
	TypeUnknown: "int", TypeVoid: "void", TypeInt: "int",
	TypeFloat: "float", TypeString: "string", TypeObject: "object",
	TypeEffect: "effect", TypeEvent: "event", TypeLocation: "location",
	TypeTalent: "talent", TypeVector: "vector", TypeAction: "action",
}

// String returns the source spelling of the type. Unknown spells as the
// most permissive numeric type so emitted source still parses.
func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "int"
}

// TypeFromName maps a source-level type name to a Type.
// Unrecognized names map to TypeUnknown.
func TypeFromName(name string) Type {
	switch name {
	case "void":
		return TypeVoid
	case "int":
		return TypeInt
	case "float":
		return TypeFloat
	case "string":
		return TypeString
	case "object":
		return TypeObject
	case "effect":
		return TypeEffect
	case "event":
		return TypeEvent
	case "location":
		return TypeLocation
	case "talent":
		return TypeTalent
	case "vector":
		return TypeVector
	case "action":
		return TypeAction
	}
	return TypeUnknown
}

// KnownTypeName reports whether name is in the script type vocabulary.
func KnownTypeName(name string) bool {
	return name != "" && TypeFromName(name) != TypeUnknown || name == "int"
}

// typeFromOperand maps an instruction type qualifier to the script type
// it pushes or reserves.
func typeFromOperand(t ncs.OperandType) Type {
	switch t {
	case ncs.TypeInt:
		return TypeInt
	case ncs.TypeFloat:
		return TypeFloat
	case ncs.TypeString:
		return TypeString
	case ncs.TypeObject:
		return TypeObject
	case ncs.TypeEffect:
		return TypeEffect
	case ncs.TypeEvent:
		return TypeEvent
	case ncs.TypeLocation:
		return TypeLocation
	case ncs.TypeTalent:
		return TypeTalent
	}
	return TypeUnknown
}
