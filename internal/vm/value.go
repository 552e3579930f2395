package vm

import (
	"fmt"
	"math"
)

// Kind tags an operand-stack value. Every slot carries exactly one kind and
// each instruction demands a specific one.
type Kind uint8

const (
	KindUninit Kind = iota
	KindNull
	KindBoolean
	KindChar
	KindByte
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindReference
	KindReturnAddress
)

func (k Kind) String() string {
	switch k {
	case KindUninit:
		return "uninit"
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindChar:
		return "char"
	case KindByte:
		return "byte"
	case KindShort:
		return "short"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindReference:
		return "reference"
	case KindReturnAddress:
		return "return address"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a tagged operand-stack slot. Integral kinds live in bits as a
// sign-extended two's-complement value; Float and Double keep their IEEE-754
// bit pattern there.
type Value struct {
	kind Kind
	bits uint64
}

var (
	// Uninit is the value of a static field before <clinit> runs.
	Uninit = Value{kind: KindUninit}
	// Null is the distinguished null reference.
	Null = Value{kind: KindNull}
	// Ref is the opaque non-null reference placeholder.
	Ref = Value{kind: KindReference}
)

func BooleanValue(b bool) Value {
	var bits uint64
	if b {
		bits = 1
	}
	return Value{kind: KindBoolean, bits: bits}
}

// CharValue carries a 16-bit unsigned codepoint as a signed 16-bit quantity.
func CharValue(c int16) Value {
	return Value{kind: KindChar, bits: uint64(c)}
}

func ByteValue(b int8) Value {
	return Value{kind: KindByte, bits: uint64(b)}
}

func ShortValue(s int16) Value {
	return Value{kind: KindShort, bits: uint64(s)}
}

func IntValue(i int32) Value {
	return Value{kind: KindInt, bits: uint64(i)}
}

func LongValue(l int64) Value {
	return Value{kind: KindLong, bits: uint64(l)}
}

func FloatValue(f float32) Value {
	return Value{kind: KindFloat, bits: uint64(math.Float32bits(f))}
}

func DoubleValue(d float64) Value {
	return Value{kind: KindDouble, bits: math.Float64bits(d)}
}

func ReturnAddressValue(pc int) Value {
	return Value{kind: KindReturnAddress, bits: uint64(pc)}
}

func (v Value) Kind() Kind {
	return v.kind
}

// IsCategory1 reports whether the value occupies a single operand-stack
// slot. Long and Double are the only category-2 kinds.
func (v Value) IsCategory1() bool {
	return v.kind != KindLong && v.kind != KindDouble
}

func (v Value) IsCategory2() bool {
	return v.kind == KindLong || v.kind == KindDouble
}

// The As* accessors are the runtime's only type check: a kind mismatch is a
// fatal interpreter fault.

func (v Value) AsBoolean() bool {
	if v.kind != KindBoolean {
		faultf("expected boolean value, found %s", v.kind)
	}
	return v.bits != 0
}

func (v Value) AsChar() int16 {
	if v.kind != KindChar {
		faultf("expected char value, found %s", v.kind)
	}
	return int16(v.bits)
}

func (v Value) AsByte() int8 {
	if v.kind != KindByte {
		faultf("expected byte value, found %s", v.kind)
	}
	return int8(v.bits)
}

func (v Value) AsShort() int16 {
	if v.kind != KindShort {
		faultf("expected short value, found %s", v.kind)
	}
	return int16(v.bits)
}

func (v Value) AsInt() int32 {
	if v.kind != KindInt {
		faultf("expected int value, found %s", v.kind)
	}
	return int32(v.bits)
}

func (v Value) AsLong() int64 {
	if v.kind != KindLong {
		faultf("expected long value, found %s", v.kind)
	}
	return int64(v.bits)
}

func (v Value) AsFloat() float32 {
	if v.kind != KindFloat {
		faultf("expected float value, found %s", v.kind)
	}
	return math.Float32frombits(uint32(v.bits))
}

func (v Value) AsDouble() float64 {
	if v.kind != KindDouble {
		faultf("expected double value, found %s", v.kind)
	}
	return math.Float64frombits(v.bits)
}

// MatchesType reports whether the value's kind aligns with a declared field
// type. Null is assignable to reference-shaped fields; Uninit matches no
// type. Arrays are references.
func (v Value) MatchesType(ty Type) bool {
	if ty.ArrayDims > 0 {
		return v.kind == KindReference || v.kind == KindNull
	}
	switch ty.Kind {
	case TypeBoolean:
		return v.kind == KindBoolean
	case TypeChar:
		return v.kind == KindChar
	case TypeByte:
		return v.kind == KindByte
	case TypeShort:
		return v.kind == KindShort
	case TypeInt:
		return v.kind == KindInt
	case TypeLong:
		return v.kind == KindLong
	case TypeFloat:
		return v.kind == KindFloat
	case TypeDouble:
		return v.kind == KindDouble
	case TypeReference, TypeClass:
		return v.kind == KindReference || v.kind == KindNull
	}
	return false
}

func (v Value) String() string {
	switch v.kind {
	case KindUninit, KindNull:
		return "null"
	case KindBoolean:
		return fmt.Sprintf("%t", v.bits != 0)
	case KindChar:
		return fmt.Sprintf("%d", int16(v.bits))
	case KindByte:
		return fmt.Sprintf("%d", int8(v.bits))
	case KindShort:
		return fmt.Sprintf("%d", int16(v.bits))
	case KindInt:
		return fmt.Sprintf("%d", int32(v.bits))
	case KindLong:
		return fmt.Sprintf("%d", int64(v.bits))
	case KindFloat:
		return fmt.Sprintf("%g", math.Float32frombits(uint32(v.bits)))
	case KindDouble:
		return fmt.Sprintf("%g", math.Float64frombits(v.bits))
	case KindReference, KindReturnAddress:
		return "@"
	}
	return v.kind.String()
}
