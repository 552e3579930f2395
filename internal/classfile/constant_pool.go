package classfile

import (
	"fmt"
	"math"
)

// Constant pool tags defined by the class-file format.
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldRef           = 9
	TagMethodRef          = 10
	TagInterfaceMethodRef = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagInvokeDynamic      = 18
)

var tagNames = map[uint8]string{
	TagUtf8:               "Utf8",
	TagInteger:            "Integer",
	TagFloat:              "Float",
	TagLong:               "Long",
	TagDouble:             "Double",
	TagClass:              "Class",
	TagString:             "String",
	TagFieldRef:           "FieldRef",
	TagMethodRef:          "MethodRef",
	TagInterfaceMethodRef: "InterfaceMethodRef",
	TagNameAndType:        "NameAndType",
	TagMethodHandle:       "MethodHandle",
	TagMethodType:         "MethodType",
	TagInvokeDynamic:      "InvokeDynamic",
}

func TagName(tag uint8) string {
	if name, ok := tagNames[tag]; ok {
		return name
	}
	return fmt.Sprintf("tag(%d)", tag)
}

// Constant is one constant-pool entry. Tag selects which of the remaining
// fields are meaningful. Tag 0 marks the unused slot 0 and the phantom slot
// that follows every Long and Double entry.
type Constant struct {
	Tag uint8

	Utf8   string
	Int    int32
	Float  float32
	Long   int64
	Double float64

	// Symbolic-reference indices back into the pool.
	NameIndex        uint16 // Class, NameAndType
	StringIndex      uint16 // String
	ClassIndex       uint16 // FieldRef, MethodRef, InterfaceMethodRef
	NameAndTypeIndex uint16 // FieldRef, MethodRef, InterfaceMethodRef, InvokeDynamic
	DescriptorIndex  uint16 // NameAndType, MethodType
	RefKind          uint8  // MethodHandle
	RefIndex         uint16 // MethodHandle
	BootstrapIndex   uint16 // InvokeDynamic
}

// ConstantPool is the per-class table of literals and symbolic references.
// Entries are 1-indexed; index 0 is a placeholder, and Long/Double entries
// occupy two slots.
type ConstantPool []Constant

// Entry returns the pool entry at the given 1-based index.
func (cp ConstantPool) Entry(index uint16) (*Constant, error) {
	if index < 1 || int(index) >= len(cp) {
		return nil, &BadConstantError{Index: index, Want: "any", Got: "out of range"}
	}
	return &cp[index], nil
}

func (cp ConstantPool) entryOf(index uint16, tag uint8) (*Constant, error) {
	entry, err := cp.Entry(index)
	if err != nil {
		return nil, &BadConstantError{Index: index, Want: TagName(tag), Got: "out of range"}
	}
	if entry.Tag != tag {
		return nil, &BadConstantError{Index: index, Want: TagName(tag), Got: TagName(entry.Tag)}
	}
	return entry, nil
}

// Utf8At requires entry index to be a Utf8 constant and returns its string.
func (cp ConstantPool) Utf8At(index uint16) (string, error) {
	entry, err := cp.entryOf(index, TagUtf8)
	if err != nil {
		return "", err
	}
	return entry.Utf8, nil
}

// ClassNameAt follows a Class entry to the Utf8 holding its name.
func (cp ConstantPool) ClassNameAt(index uint16) (string, error) {
	entry, err := cp.entryOf(index, TagClass)
	if err != nil {
		return "", err
	}
	return cp.Utf8At(entry.NameIndex)
}

// RefAt requires entry index to be a FieldRef, MethodRef, or
// InterfaceMethodRef and returns it.
func (cp ConstantPool) RefAt(index uint16) (*Constant, error) {
	entry, err := cp.Entry(index)
	if err != nil {
		return nil, err
	}
	switch entry.Tag {
	case TagFieldRef, TagMethodRef, TagInterfaceMethodRef:
		return entry, nil
	}
	return nil, &BadConstantError{Index: index, Want: "FieldRef/MethodRef/InterfaceMethodRef", Got: TagName(entry.Tag)}
}

// NameAndTypeAt resolves a NameAndType entry to its (name, descriptor) pair.
func (cp ConstantPool) NameAndTypeAt(index uint16) (string, string, error) {
	entry, err := cp.entryOf(index, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	name, err := cp.Utf8At(entry.NameIndex)
	if err != nil {
		return "", "", err
	}
	descriptor, err := cp.Utf8At(entry.DescriptorIndex)
	if err != nil {
		return "", "", err
	}
	return name, descriptor, nil
}

// BadConstantError reports a constant-pool entry that is absent or has the
// wrong variant for the lookup that reached it.
type BadConstantError struct {
	Index uint16
	Want  string
	Got   string
}

func (e *BadConstantError) Error() string {
	return fmt.Sprintf("constant pool entry %d: want %s, got %s", e.Index, e.Want, e.Got)
}

func parseConstantPool(bs *ByteStream) (ConstantPool, error) {
	count, err := bs.ReadU2()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("constant pool count is zero")
	}

	pool := make(ConstantPool, count)
	for i := uint16(1); i < count; i++ {
		tag, err := bs.ReadU1()
		if err != nil {
			return nil, err
		}

		entry := Constant{Tag: tag}
		switch tag {
		case TagUtf8:
			entry.Utf8, err = bs.ReadUtf8()
		case TagInteger:
			entry.Int, err = bs.ReadI4()
		case TagFloat:
			var bits uint32
			bits, err = bs.ReadU4()
			entry.Float = math.Float32frombits(bits)
		case TagLong:
			entry.Long, err = bs.ReadI8()
		case TagDouble:
			var bits uint64
			bits, err = bs.ReadU8()
			entry.Double = math.Float64frombits(bits)
		case TagClass:
			entry.NameIndex, err = bs.ReadU2()
		case TagString:
			entry.StringIndex, err = bs.ReadU2()
		case TagFieldRef, TagMethodRef, TagInterfaceMethodRef:
			if entry.ClassIndex, err = bs.ReadU2(); err == nil {
				entry.NameAndTypeIndex, err = bs.ReadU2()
			}
		case TagNameAndType:
			if entry.NameIndex, err = bs.ReadU2(); err == nil {
				entry.DescriptorIndex, err = bs.ReadU2()
			}
		case TagMethodHandle:
			if entry.RefKind, err = bs.ReadU1(); err == nil {
				entry.RefIndex, err = bs.ReadU2()
			}
		case TagMethodType:
			entry.DescriptorIndex, err = bs.ReadU2()
		case TagInvokeDynamic:
			if entry.BootstrapIndex, err = bs.ReadU2(); err == nil {
				entry.NameAndTypeIndex, err = bs.ReadU2()
			}
		default:
			return nil, fmt.Errorf("constant pool entry %d: unknown tag %d", i, tag)
		}
		if err != nil {
			return nil, fmt.Errorf("constant pool entry %d (%s): %w", i, TagName(tag), err)
		}

		pool[i] = entry
		if tag == TagLong || tag == TagDouble {
			// The slot after a Long or Double is unusable.
			i++
		}
	}

	if err := pool.validate(); err != nil {
		return nil, err
	}
	return pool, nil
}

// validate checks that every index used by a Class, String, *Ref,
// NameAndType, or InvokeDynamic entry refers to an entry of the expected
// variant.
func (cp ConstantPool) validate() error {
	for i := 1; i < len(cp); i++ {
		entry := cp[i]
		var err error
		switch entry.Tag {
		case TagClass:
			_, err = cp.Utf8At(entry.NameIndex)
		case TagString:
			_, err = cp.Utf8At(entry.StringIndex)
		case TagFieldRef, TagMethodRef, TagInterfaceMethodRef:
			if _, err = cp.entryOf(entry.ClassIndex, TagClass); err == nil {
				_, err = cp.entryOf(entry.NameAndTypeIndex, TagNameAndType)
			}
		case TagNameAndType:
			if _, err = cp.Utf8At(entry.NameIndex); err == nil {
				_, err = cp.Utf8At(entry.DescriptorIndex)
			}
		case TagInvokeDynamic:
			_, err = cp.entryOf(entry.NameAndTypeIndex, TagNameAndType)
		}
		if err != nil {
			return fmt.Errorf("constant pool entry %d (%s): %w", i, TagName(entry.Tag), err)
		}
	}
	return nil
}
