package vm

import (
	"fmt"

	"github.com/mabhi256/jrun/internal/classfile"
)

// Method is a linked method record. Java methods carry their slice of the
// global code pool; native methods dispatch through the natives map.
type Method struct {
	Native    bool
	MaxLocals uint16
	MaxStack  uint16
	CodeIndex int
	CodeSize  int
	Params    []Type
	Return    *Type
}

// Field is a linked static-field cell. Value stays Uninit until <clinit>
// (or a putstatic) stores into it.
type Field struct {
	Type  Type
	Value Value
}

// Class is the linker's resolved view of one class: parsed methods with
// stable code-pool indices and live static-field cells.
type Class struct {
	Methods map[string]*Method
	Fields  map[string]*Field
}

// Runtime owns the class files, the global code region, and the resolved
// per-class records. It is shared between the interpreter and the
// class-initialization trampolines that re-enter it; all mutation happens
// from the single interpreter thread.
type Runtime struct {
	classFiles map[string]*classfile.ClassFile

	// codePool concatenates every linked method's instructions. Program
	// counters index into it; it only ever grows, so code indices are
	// stable once assigned.
	codePool []byte

	classes     map[string]*Class
	initialized map[string]bool
	natives     map[string]NativeFunc
}

// NewRuntime takes ownership of the given parsed class files, keyed by
// their own class names.
func NewRuntime(files ...*classfile.ClassFile) (*Runtime, error) {
	rt := &Runtime{
		classFiles:  make(map[string]*classfile.ClassFile),
		classes:     make(map[string]*Class),
		initialized: make(map[string]bool),
		natives:     builtinNatives(),
	}
	for _, cf := range files {
		name, err := cf.ClassName()
		if err != nil {
			return nil, err
		}
		rt.classFiles[name] = cf
	}
	return rt, nil
}

// Instructions exposes the global code region.
func (rt *Runtime) Instructions() []byte {
	return rt.codePool
}

// ClassFile returns the parsed class file backing a loaded class.
func (rt *Runtime) ClassFile(name string) (*classfile.ClassFile, error) {
	cf, ok := rt.classFiles[name]
	if !ok {
		return nil, &ClassNotFoundError{Class: name}
	}
	return cf, nil
}

// LinkedClasses returns the names of every class linked so far, in no
// particular order.
func (rt *Runtime) LinkedClasses() []string {
	names := make([]string, 0, len(rt.classes))
	for name := range rt.classes {
		names = append(names, name)
	}
	return names
}

// Class returns the linked record for a class, if it has been linked.
func (rt *Runtime) Class(name string) (*Class, bool) {
	c, ok := rt.classes[name]
	return c, ok
}

// LoadClass verifies the class is present in the runtime's set of class
// files. Superclasses are not loaded transitively.
func (rt *Runtime) LoadClass(name string) error {
	if _, ok := rt.classFiles[name]; !ok {
		return &ClassNotFoundError{Class: name}
	}
	return nil
}

// LinkClass translates a loaded class's symbolic method and field tables
// into resolved records, appending each Java method's instructions to the
// global code pool. Code indices are monotone in link order and never
// invalidated.
func (rt *Runtime) LinkClass(name string) error {
	cf, err := rt.ClassFile(name)
	if err != nil {
		return err
	}

	class := &Class{
		Methods: make(map[string]*Method, len(cf.Methods)),
		Fields:  make(map[string]*Field, len(cf.Fields)),
	}

	for i := range cf.Methods {
		m := &cf.Methods[i]
		methodName, err := m.Name(cf.Pool)
		if err != nil {
			return err
		}
		descriptor, err := m.Descriptor(cf.Pool)
		if err != nil {
			return err
		}
		params, ret, err := ParseMethodDescriptor(descriptor)
		if err != nil {
			return err
		}

		method := &Method{Params: params, Return: ret}
		if m.Code != nil {
			method.MaxLocals = m.Code.MaxLocals
			method.MaxStack = m.Code.MaxStack
			method.CodeIndex = len(rt.codePool)
			method.CodeSize = len(m.Code.Instructions)
			rt.codePool = append(rt.codePool, m.Code.Instructions...)
		} else {
			// No Code attribute means a native method.
			method.Native = true
		}
		class.Methods[methodName] = method
	}

	for i := range cf.Fields {
		f := &cf.Fields[i]
		fieldName, err := f.Name(cf.Pool)
		if err != nil {
			return err
		}
		descriptor, err := f.Descriptor(cf.Pool)
		if err != nil {
			return err
		}
		ty, err := ParseType(descriptor)
		if err != nil {
			return err
		}
		class.Fields[fieldName] = &Field{Type: ty, Value: Uninit}
	}

	rt.classes[name] = class
	return nil
}

// GetOrLoadClass is idempotent: a class already linked is returned as-is,
// otherwise it is loaded and linked.
func (rt *Runtime) GetOrLoadClass(name string) (*Class, error) {
	if class, ok := rt.classes[name]; ok {
		return class, nil
	}
	if err := rt.LoadClass(name); err != nil {
		return nil, err
	}
	if err := rt.LinkClass(name); err != nil {
		return nil, err
	}
	return rt.classes[name], nil
}

// refClassName follows a FieldRef/MethodRef/InterfaceMethodRef at cpIndex
// in currentClass's pool to the name of the class it references.
func (rt *Runtime) refClassName(currentClass string, cpIndex uint16) (string, error) {
	cf, err := rt.ClassFile(currentClass)
	if err != nil {
		return "", err
	}
	ref, err := cf.Pool.RefAt(cpIndex)
	if err != nil {
		return "", err
	}
	return cf.Pool.ClassNameAt(ref.ClassIndex)
}

// refNameAndType resolves the member name and descriptor a symbolic
// reference points at.
func (rt *Runtime) refNameAndType(currentClass string, cpIndex uint16) (string, string, error) {
	cf, err := rt.ClassFile(currentClass)
	if err != nil {
		return "", "", err
	}
	ref, err := cf.Pool.RefAt(cpIndex)
	if err != nil {
		return "", "", err
	}
	return cf.Pool.NameAndTypeAt(ref.NameAndTypeIndex)
}

// GetOrLoadClassItem resolves the symbolic reference at cpIndex in
// currentClass's pool and loads+links the class it names, returning that
// class name.
func (rt *Runtime) GetOrLoadClassItem(currentClass string, cpIndex uint16) (string, error) {
	name, err := rt.refClassName(currentClass, cpIndex)
	if err != nil {
		return "", err
	}
	if _, err := rt.GetOrLoadClass(name); err != nil {
		return "", err
	}
	return name, nil
}

// GetMethodByIndex resolves a method reference at cpIndex in currentClass's
// pool to (owner class name, method name, linked record). The owner must
// already be linked.
func (rt *Runtime) GetMethodByIndex(currentClass string, cpIndex uint16) (string, string, *Method, error) {
	className, err := rt.refClassName(currentClass, cpIndex)
	if err != nil {
		return "", "", nil, err
	}
	memberName, _, err := rt.refNameAndType(currentClass, cpIndex)
	if err != nil {
		return "", "", nil, err
	}
	method, err := rt.GetMethodByName(className, memberName)
	if err != nil {
		return "", "", nil, err
	}
	return className, memberName, method, nil
}

// GetMethodByName looks a method up in a linked class.
func (rt *Runtime) GetMethodByName(className, methodName string) (*Method, error) {
	class, ok := rt.classes[className]
	if !ok {
		return nil, &ClassNotFoundError{Class: className}
	}
	method, ok := class.Methods[methodName]
	if !ok {
		return nil, &MethodNotFoundError{Class: className, Method: methodName}
	}
	return method, nil
}

// GetFieldByIndex resolves a field reference at cpIndex in currentClass's
// pool to (owner class name, field name, live cell). The cell is shared:
// stores through it are visible to every later getstatic.
func (rt *Runtime) GetFieldByIndex(currentClass string, cpIndex uint16) (string, string, *Field, error) {
	className, err := rt.refClassName(currentClass, cpIndex)
	if err != nil {
		return "", "", nil, err
	}
	fieldName, _, err := rt.refNameAndType(currentClass, cpIndex)
	if err != nil {
		return "", "", nil, err
	}
	class, ok := rt.classes[className]
	if !ok {
		return "", "", nil, &ClassNotFoundError{Class: className}
	}
	field, ok := class.Fields[fieldName]
	if !ok {
		return "", "", nil, &FieldNotFoundError{Class: className, Field: fieldName}
	}
	return className, fieldName, field, nil
}

// IsInitialized reports whether a class's <clinit> has completed (or was
// absent).
func (rt *Runtime) IsInitialized(name string) bool {
	return rt.initialized[name]
}

// SetInitialized records that a class's static initialization is done.
func (rt *Runtime) SetInitialized(name string) {
	rt.initialized[name] = true
}

// Start loads and links the entry class, locates its main method, and
// returns a thread positioned at its first instruction.
func (rt *Runtime) Start(mainClass string) (*Thread, error) {
	if _, err := rt.GetOrLoadClass(mainClass); err != nil {
		return nil, err
	}

	method, err := rt.GetMethodByName(mainClass, "main")
	if err != nil {
		return nil, err
	}
	if method.Native {
		return nil, fmt.Errorf("main method of %s is native", mainClass)
	}

	thread := NewThread(rt, method.CodeIndex)
	thread.PushFrame(NewMainFrame(mainClass))
	return thread, nil
}
