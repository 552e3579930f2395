package vm

import "strings"

// TypeKind is the base kind of a structural descriptor.
type TypeKind uint8

const (
	TypeBoolean TypeKind = iota
	TypeChar
	TypeByte
	TypeShort
	TypeInt
	TypeLong
	TypeFloat
	TypeDouble
	TypeReference
	TypeClass
)

// Type is a structural descriptor: a base kind plus array dimensions.
// ClassName is set only for TypeClass.
type Type struct {
	ArrayDims uint8
	Kind      TypeKind
	ClassName string
}

func BooleanType() Type { return Type{Kind: TypeBoolean} }
func CharType() Type    { return Type{Kind: TypeChar} }
func ByteType() Type    { return Type{Kind: TypeByte} }
func ShortType() Type   { return Type{Kind: TypeShort} }
func IntType() Type     { return Type{Kind: TypeInt} }
func LongType() Type    { return Type{Kind: TypeLong} }
func FloatType() Type   { return Type{Kind: TypeFloat} }
func DoubleType() Type  { return Type{Kind: TypeDouble} }

// ParseType parses a single field descriptor such as "I" or "[[Ljava/lang/String;".
func ParseType(descriptor string) (Type, error) {
	ty, rest, err := consumeType(descriptor)
	if err != nil {
		return Type{}, err
	}
	if rest != "" {
		return Type{}, &BadDescriptorError{Descriptor: descriptor, Reason: "trailing characters"}
	}
	return ty, nil
}

// consumeType reads exactly one type from the front of a descriptor string
// and returns the remainder. Parameter regions are read positionally, one
// type at a time, with no separators.
func consumeType(s string) (Type, string, error) {
	var ty Type
	for len(s) > 0 && s[0] == '[' {
		ty.ArrayDims++
		s = s[1:]
	}
	if len(s) == 0 {
		return Type{}, "", &BadDescriptorError{Descriptor: s, Reason: "empty type"}
	}

	switch s[0] {
	case 'Z':
		ty.Kind = TypeBoolean
	case 'C':
		ty.Kind = TypeChar
	case 'B':
		ty.Kind = TypeByte
	case 'S':
		ty.Kind = TypeShort
	case 'I':
		ty.Kind = TypeInt
	case 'J':
		ty.Kind = TypeLong
	case 'F':
		ty.Kind = TypeFloat
	case 'D':
		ty.Kind = TypeDouble
	case 'L':
		end := strings.IndexByte(s, ';')
		if end < 0 {
			return Type{}, "", &BadDescriptorError{Descriptor: s, Reason: "unterminated class name"}
		}
		ty.Kind = TypeClass
		ty.ClassName = s[1:end]
		return ty, s[end+1:], nil
	default:
		return Type{}, "", &BadDescriptorError{Descriptor: s, Reason: "unknown type character " + s[:1]}
	}
	return ty, s[1:], nil
}

// ParseMethodDescriptor parses "(params)return" into its parameter list and
// optional return type; a "V" return maps to nil.
func ParseMethodDescriptor(descriptor string) ([]Type, *Type, error) {
	if len(descriptor) == 0 || descriptor[0] != '(' {
		return nil, nil, &BadDescriptorError{Descriptor: descriptor, Reason: "missing opening parenthesis"}
	}
	end := strings.IndexByte(descriptor, ')')
	if end < 0 {
		return nil, nil, &BadDescriptorError{Descriptor: descriptor, Reason: "missing closing parenthesis"}
	}

	params := []Type{}
	rest := descriptor[1:end]
	for rest != "" {
		ty, remaining, err := consumeType(rest)
		if err != nil {
			return nil, nil, &BadDescriptorError{Descriptor: descriptor, Reason: "bad parameter type"}
		}
		params = append(params, ty)
		rest = remaining
	}

	ret := descriptor[end+1:]
	if ret == "V" {
		return params, nil, nil
	}
	retTy, err := ParseType(ret)
	if err != nil {
		return nil, nil, &BadDescriptorError{Descriptor: descriptor, Reason: "bad return type"}
	}
	return params, &retTy, nil
}

// Descriptor re-emits the single-letter descriptor encoding. Parsing a
// descriptor and re-emitting it is the identity.
func (t Type) Descriptor() string {
	var sb strings.Builder
	for i := uint8(0); i < t.ArrayDims; i++ {
		sb.WriteByte('[')
	}
	switch t.Kind {
	case TypeBoolean:
		sb.WriteByte('Z')
	case TypeChar:
		sb.WriteByte('C')
	case TypeByte:
		sb.WriteByte('B')
	case TypeShort:
		sb.WriteByte('S')
	case TypeInt:
		sb.WriteByte('I')
	case TypeLong:
		sb.WriteByte('J')
	case TypeFloat:
		sb.WriteByte('F')
	case TypeDouble:
		sb.WriteByte('D')
	case TypeClass:
		sb.WriteByte('L')
		sb.WriteString(t.ClassName)
		sb.WriteByte(';')
	case TypeReference:
		sb.WriteString("Ljava/lang/Object;")
	}
	return sb.String()
}

func (t Type) String() string {
	return t.Descriptor()
}
