package vm

import "fmt"

// NativeFunc implements a method with no bytecode. It is invoked with
// exactly as many values as the method descriptor declares parameters, and
// must return a value when the descriptor declares a non-void return.
type NativeFunc func(params []Value) *Value

// RegisterNative binds a callable under a "Package/Class.method" name.
func (rt *Runtime) RegisterNative(name string, fn NativeFunc) {
	rt.natives[name] = fn
}

// InvokeNative dispatches a qualified name through the natives map. A
// missing name is fatal to the run.
func (rt *Runtime) InvokeNative(name string, params []Value) (*Value, error) {
	fn, ok := rt.natives[name]
	if !ok {
		return nil, &NativeNotFoundError{Name: name}
	}
	return fn(params), nil
}

func builtinNatives() map[string]NativeFunc {
	return map[string]NativeFunc{
		"Test/Main.out": func(params []Value) *Value {
			fmt.Println(params[0])
			return nil
		},
	}
}
