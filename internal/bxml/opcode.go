// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bxml

// Opcode identifies the wire record type. Every record in a binary-XML
// document begins with a one-byte opcode.
type Opcode uint8

const (
	OpCharSize Opcode = 0
	OpStartTag Opcode = 1
	OpEndTag   Opcode = 2
	OpString   Opcode = 3
	OpInt      Opcode = 4
	OpBool     Opcode = 5
	OpLong     Opcode = 6
	OpLongLong Opcode = 7
	OpSizeT    Opcode = 8
	OpFloat    Opcode = 9
	OpDouble   Opcode = 10
	OpData     Opcode = 11
	OpRaw      Opcode = 12
	OpPush     Opcode = 13
	OpPop      Opcode = 14
	OpName     Opcode = 15
)

func (op Opcode) String() string {
	switch op {
	case OpCharSize:
		return "CharSize"
	case OpStartTag:
		return "StartTag"
	case OpEndTag:
		return "EndTag"
	case OpString:
		return "String"
	case OpInt:
		return "Int"
	case OpBool:
		return "Bool"
	case OpLong:
		return "Long"
	case OpLongLong:
		return "LongLong"
	case OpSizeT:
		return "SizeT"
	case OpFloat:
		return "Float"
	case OpDouble:
		return "Double"
	case OpData:
		return "Data"
	case OpRaw:
		return "Raw"
	case OpPush:
		return "Push"
	case OpPop:
		return "Pop"
	case OpName:
		return "Name"
	default:
		return "Unknown"
	}
}

// floatDigitsLiteral and doubleDigitsLiteral are the fixed values the
// serializer writes for the Float/Double opcodes' trailing "digits"
// field. The original producer used this field to record formatting
// precision; nothing in this model reads it back, so every write uses
// the same literal regardless of the value's actual precision.
const (
	floatDigitsLiteral  = 7
	doubleDigitsLiteral = 19
)
