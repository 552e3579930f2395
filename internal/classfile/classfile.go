package classfile

import "fmt"

// Magic is the four-byte signature every class file begins with.
const Magic = 0xCAFEBABE

// Class access and property flags.
const (
	AccPublic    = 0x0001
	AccStatic    = 0x0008
	AccFinal     = 0x0010
	AccSuper     = 0x0020
	AccNative    = 0x0100
	AccInterface = 0x0200
	AccAbstract  = 0x0400
)

// ClassFile is the parsed form of one on-disk class artifact. It owns the
// constant pool and the field/method tables; the linker keeps it alive for
// the whole run and resolves symbolic references through it.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	Pool         ConstantPool
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []Member
	Methods      []Member
	Attributes   []Attribute
}

// Member is a field or method record. The two share one on-disk layout.
type Member struct {
	AccessFlags     uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []Attribute

	// Code is the parsed Code attribute, nil for methods without bytecode
	// (native methods) and for fields.
	Code *CodeAttribute
}

// Attribute is a raw named attribute. Known attributes are re-parsed from
// Payload by a secondary decode.
type Attribute struct {
	NameIndex uint16
	Payload   []byte
}

// CodeAttribute is the decoded form of a method's Code attribute.
type CodeAttribute struct {
	MaxStack       uint16
	MaxLocals      uint16
	Instructions   []byte
	ExceptionTable []ExceptionEntry
	Attributes     []Attribute
}

// ExceptionEntry is one row of a Code attribute's exception table. Parsed
// but not consulted by the interpreter core.
type ExceptionEntry struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
}

// LineNumberEntry maps a bytecode offset to a source line.
type LineNumberEntry struct {
	StartPC uint16
	Line    uint16
}

// Parse decodes a class file from its raw bytes.
func Parse(data []byte) (*ClassFile, error) {
	bs := NewByteStream(data)

	magic, err := bs.ReadU4()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, fmt.Errorf("bad magic number 0x%08X, want 0x%08X", magic, uint32(Magic))
	}

	cf := &ClassFile{}
	if cf.MinorVersion, err = bs.ReadU2(); err != nil {
		return nil, err
	}
	if cf.MajorVersion, err = bs.ReadU2(); err != nil {
		return nil, err
	}

	if cf.Pool, err = parseConstantPool(bs); err != nil {
		return nil, err
	}

	if cf.AccessFlags, err = bs.ReadU2(); err != nil {
		return nil, err
	}
	if cf.ThisClass, err = bs.ReadU2(); err != nil {
		return nil, err
	}
	if cf.SuperClass, err = bs.ReadU2(); err != nil {
		return nil, err
	}

	interfaceCount, err := bs.ReadU2()
	if err != nil {
		return nil, err
	}
	if cf.Interfaces, err = bs.ReadU2Many(int(interfaceCount)); err != nil {
		return nil, err
	}

	if cf.Fields, err = cf.parseMembers(bs); err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}
	if cf.Methods, err = cf.parseMembers(bs); err != nil {
		return nil, fmt.Errorf("methods: %w", err)
	}
	if cf.Attributes, err = cf.parseAttributes(bs); err != nil {
		return nil, fmt.Errorf("class attributes: %w", err)
	}

	return cf, nil
}

func (cf *ClassFile) parseMembers(bs *ByteStream) ([]Member, error) {
	count, err := bs.ReadU2()
	if err != nil {
		return nil, err
	}

	members := make([]Member, count)
	for i := range members {
		m := &members[i]
		if m.AccessFlags, err = bs.ReadU2(); err != nil {
			return nil, err
		}
		if m.NameIndex, err = bs.ReadU2(); err != nil {
			return nil, err
		}
		if m.DescriptorIndex, err = bs.ReadU2(); err != nil {
			return nil, err
		}
		if m.Attributes, err = cf.parseAttributes(bs); err != nil {
			return nil, err
		}

		for _, attr := range m.Attributes {
			name, err := cf.Pool.Utf8At(attr.NameIndex)
			if err != nil {
				return nil, err
			}
			if name == "Code" {
				if m.Code, err = cf.parseCode(attr.Payload); err != nil {
					return nil, fmt.Errorf("Code attribute: %w", err)
				}
			}
		}
	}
	return members, nil
}

func (cf *ClassFile) parseAttributes(bs *ByteStream) ([]Attribute, error) {
	count, err := bs.ReadU2()
	if err != nil {
		return nil, err
	}

	attrs := make([]Attribute, count)
	for i := range attrs {
		if attrs[i].NameIndex, err = bs.ReadU2(); err != nil {
			return nil, err
		}
		length, err := bs.ReadU4()
		if err != nil {
			return nil, err
		}
		if attrs[i].Payload, err = bs.ReadBytes(int(length)); err != nil {
			return nil, err
		}
	}
	return attrs, nil
}

func (cf *ClassFile) parseCode(payload []byte) (*CodeAttribute, error) {
	bs := NewByteStream(payload)
	code := &CodeAttribute{}

	var err error
	if code.MaxStack, err = bs.ReadU2(); err != nil {
		return nil, err
	}
	if code.MaxLocals, err = bs.ReadU2(); err != nil {
		return nil, err
	}

	codeLength, err := bs.ReadU4()
	if err != nil {
		return nil, err
	}
	if code.Instructions, err = bs.ReadBytes(int(codeLength)); err != nil {
		return nil, err
	}

	exceptionCount, err := bs.ReadU2()
	if err != nil {
		return nil, err
	}
	code.ExceptionTable = make([]ExceptionEntry, exceptionCount)
	for i := range code.ExceptionTable {
		e := &code.ExceptionTable[i]
		if e.StartPC, err = bs.ReadU2(); err != nil {
			return nil, err
		}
		if e.EndPC, err = bs.ReadU2(); err != nil {
			return nil, err
		}
		if e.HandlerPC, err = bs.ReadU2(); err != nil {
			return nil, err
		}
		if e.CatchType, err = bs.ReadU2(); err != nil {
			return nil, err
		}
	}

	if code.Attributes, err = cf.parseAttributes(bs); err != nil {
		return nil, err
	}
	return code, nil
}

// ParseLineNumberTable re-parses a LineNumberTable attribute payload.
func ParseLineNumberTable(payload []byte) ([]LineNumberEntry, error) {
	bs := NewByteStream(payload)
	count, err := bs.ReadU2()
	if err != nil {
		return nil, err
	}
	entries := make([]LineNumberEntry, count)
	for i := range entries {
		if entries[i].StartPC, err = bs.ReadU2(); err != nil {
			return nil, err
		}
		if entries[i].Line, err = bs.ReadU2(); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// ParseConstantValue re-parses a ConstantValue attribute payload into its
// constant-pool index.
func ParseConstantValue(payload []byte) (uint16, error) {
	return NewByteStream(payload).ReadU2()
}

// ParseSourceFile re-parses a SourceFile attribute payload against the pool.
func (cf *ClassFile) ParseSourceFile(payload []byte) (string, error) {
	index, err := NewByteStream(payload).ReadU2()
	if err != nil {
		return "", err
	}
	return cf.Pool.Utf8At(index)
}

// ClassName resolves this_class through the constant pool to the class's
// fully qualified (slash-separated) name.
func (cf *ClassFile) ClassName() (string, error) {
	return cf.Pool.ClassNameAt(cf.ThisClass)
}

// SuperClassName resolves super_class; the root class has none.
func (cf *ClassFile) SuperClassName() (string, error) {
	if cf.SuperClass == 0 {
		return "", nil
	}
	return cf.Pool.ClassNameAt(cf.SuperClass)
}

// Name returns the member's name from the constant pool.
func (m *Member) Name(pool ConstantPool) (string, error) {
	return pool.Utf8At(m.NameIndex)
}

// Descriptor returns the member's descriptor string from the constant pool.
func (m *Member) Descriptor(pool ConstantPool) (string, error) {
	return pool.Utf8At(m.DescriptorIndex)
}

// AttributeName resolves an attribute's name through the pool.
func (cf *ClassFile) AttributeName(attr Attribute) (string, error) {
	return cf.Pool.Utf8At(attr.NameIndex)
}
