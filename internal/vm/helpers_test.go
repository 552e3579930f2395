package vm

import (
	"errors"

	"github.com/mabhi256/jrun/internal/classfile"
)

// Test fixtures fabricate parsed class files directly, the same shape the
// decoder would produce, so interpreter tests can run literal bytecode
// sequences without a compiler.

type poolBuilder struct {
	pool    classfile.ConstantPool
	utf8Idx map[string]uint16
}

func newPoolBuilder() *poolBuilder {
	return &poolBuilder{
		pool:    classfile.ConstantPool{{}}, // slot 0 placeholder
		utf8Idx: make(map[string]uint16),
	}
}

func (b *poolBuilder) add(c classfile.Constant) uint16 {
	b.pool = append(b.pool, c)
	return uint16(len(b.pool) - 1)
}

func (b *poolBuilder) utf8(s string) uint16 {
	if idx, ok := b.utf8Idx[s]; ok {
		return idx
	}
	idx := b.add(classfile.Constant{Tag: classfile.TagUtf8, Utf8: s})
	b.utf8Idx[s] = idx
	return idx
}

func (b *poolBuilder) class(name string) uint16 {
	return b.add(classfile.Constant{Tag: classfile.TagClass, NameIndex: b.utf8(name)})
}

func (b *poolBuilder) nameAndType(name, descriptor string) uint16 {
	return b.add(classfile.Constant{
		Tag:             classfile.TagNameAndType,
		NameIndex:       b.utf8(name),
		DescriptorIndex: b.utf8(descriptor),
	})
}

func (b *poolBuilder) fieldRef(class, name, descriptor string) uint16 {
	return b.add(classfile.Constant{
		Tag:              classfile.TagFieldRef,
		ClassIndex:       b.class(class),
		NameAndTypeIndex: b.nameAndType(name, descriptor),
	})
}

func (b *poolBuilder) methodRef(class, name, descriptor string) uint16 {
	return b.add(classfile.Constant{
		Tag:              classfile.TagMethodRef,
		ClassIndex:       b.class(class),
		NameAndTypeIndex: b.nameAndType(name, descriptor),
	})
}

type methodSpec struct {
	name       string
	descriptor string
	code       []byte // nil marks a native method
	maxStack   uint16
	maxLocals  uint16
}

type fieldSpec struct {
	name       string
	descriptor string
}

// buildClass assembles a parsed class around an already-populated pool.
func buildClass(b *poolBuilder, name string, fields []fieldSpec, methods []methodSpec) *classfile.ClassFile {
	cf := &classfile.ClassFile{
		MajorVersion: 61,
		AccessFlags:  classfile.AccPublic | classfile.AccSuper,
		ThisClass:    b.class(name),
	}

	for _, f := range fields {
		cf.Fields = append(cf.Fields, classfile.Member{
			AccessFlags:     classfile.AccStatic,
			NameIndex:       b.utf8(f.name),
			DescriptorIndex: b.utf8(f.descriptor),
		})
	}

	for _, m := range methods {
		member := classfile.Member{
			AccessFlags:     classfile.AccPublic | classfile.AccStatic,
			NameIndex:       b.utf8(m.name),
			DescriptorIndex: b.utf8(m.descriptor),
		}
		if m.code != nil {
			maxStack := m.maxStack
			if maxStack == 0 {
				maxStack = 8
			}
			maxLocals := m.maxLocals
			if maxLocals == 0 {
				maxLocals = 8
			}
			member.Code = &classfile.CodeAttribute{
				MaxStack:     maxStack,
				MaxLocals:    maxLocals,
				Instructions: m.code,
			}
		}
		cf.Methods = append(cf.Methods, member)
	}

	cf.Pool = b.pool
	return cf
}

// runMain builds a single-class runtime around main's bytecode, runs it,
// and returns the thread and any error.
func runMain(code []byte, descriptor string) (*Thread, error) {
	b := newPoolBuilder()
	cf := buildClass(b, "Test/Main", nil, []methodSpec{
		{name: "main", descriptor: descriptor, code: code},
	})

	rt, err := NewRuntime(cf)
	if err != nil {
		return nil, err
	}
	thread, err := rt.Start("Test/Main")
	if err != nil {
		return nil, err
	}
	return thread, thread.Run()
}

// runForInt runs a main method returning I and yields the result.
func runForInt(code []byte) (int32, *Thread, error) {
	thread, err := runMain(code, "()I")
	if err != nil {
		return 0, thread, err
	}
	result, ok := thread.Result()
	if !ok {
		return 0, thread, errors.New("main returned no value")
	}
	return result.AsInt(), thread, nil
}
