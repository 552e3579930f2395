package vm

import (
	"encoding/binary"
	"math"
)

// TraceFunc observes each fetched instruction before it executes.
type TraceFunc func(pc int, op byte, stackDepth int)

// Thread is a single interpreter: an absolute program counter into the
// runtime's code pool, an operand stack, and a call-frame stack. It owns
// both stacks exclusively and shares the runtime with the trampolines that
// re-enter it.
type Thread struct {
	rt *Runtime

	pc     int
	stack  []Value
	frames []Frame
	done   bool

	// Tracer, when set, is called once per fetch.
	Tracer TraceFunc
}

func NewThread(rt *Runtime, pc int) *Thread {
	return &Thread{rt: rt, pc: pc}
}

func (t *Thread) Runtime() *Runtime { return t.rt }
func (t *Thread) PC() int           { return t.pc }
func (t *Thread) Done() bool        { return t.done }

// Stack exposes the operand stack for inspection (debugger, tests).
func (t *Thread) Stack() []Value { return t.stack }

// Frames exposes the call-frame stack for inspection.
func (t *Thread) Frames() []Frame { return t.frames }

func (t *Thread) PushFrame(f Frame) {
	t.frames = append(t.frames, f)
}

// Result returns the value left for the caller by a typed return from the
// bottommost frame, if any.
func (t *Thread) Result() (Value, bool) {
	if !t.done || len(t.stack) == 0 {
		return Value{}, false
	}
	return t.stack[len(t.stack)-1], true
}

// Run interprets instructions until the bottommost frame returns or a
// fault/link error aborts the run.
func (t *Thread) Run() error {
	for !t.done {
		if err := t.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Step fetches, decodes, and executes a single instruction. Fatal faults
// raised during execution are annotated with the opcode and PC.
func (t *Thread) Step() (err error) {
	if t.done {
		return nil
	}

	code := t.rt.Instructions()
	pc := t.pc
	if pc < 0 || pc >= len(code) {
		return &FatalError{PC: pc, Msg: "program counter out of range"}
	}

	// Snapshot the opcode and the widest possible operand encoding; short
	// reads near the end of the pool are zero-padded for decode, but the
	// advance below uses only the bytes the opcode actually consumes.
	var window [1 + MaxOperandBytes]byte
	copy(window[:], code[pc:])
	op := window[0]

	info, ok := Lookup(op)
	if !ok {
		return t.fatalError(pc, op, "unsupported opcode")
	}

	defer func() {
		if r := recover(); r != nil {
			f, isFault := r.(*fault)
			if !isFault {
				panic(r)
			}
			err = t.fatalError(pc, op, f.msg)
		}
	}()

	if t.Tracer != nil {
		t.Tracer(pc, op, len(t.stack))
	}

	operandU8 := func() uint8 { return window[1] }
	operandI8 := func() int8 { return int8(window[1]) }
	operandU16 := func() uint16 { return binary.BigEndian.Uint16(window[1:3]) }
	operandI16 := func() int16 { return int16(binary.BigEndian.Uint16(window[1:3])) }
	operandI32 := func() int32 { return int32(binary.BigEndian.Uint32(window[1:5])) }

	// Branch offsets are relative to the opcode's own address.
	branch := func(offset int) int {
		target := pc + offset
		if target < 0 || target >= len(code) {
			faultf("branch target %d out of range", target)
		}
		return target
	}

	ipOverride := -1

	switch op {
	case OpNop:

	// Constants.
	case OpIconstM1, OpIconst0, OpIconst1, OpIconst2, OpIconst3, OpIconst4, OpIconst5:
		t.push(IntValue(int32(op) - int32(OpIconst0)))
	case OpLconst0:
		t.push(LongValue(0))
	case OpLconst1:
		t.push(LongValue(1))
	case OpFconst0:
		t.push(FloatValue(0))
	case OpFconst1:
		t.push(FloatValue(1))
	case OpFconst2:
		t.push(FloatValue(2))
	case OpDconst0:
		t.push(DoubleValue(0))
	case OpDconst1:
		t.push(DoubleValue(1))
	case OpBipush:
		t.push(IntValue(int32(operandI8())))
	case OpSipush:
		t.push(IntValue(int32(operandI16())))

	// Typed loads.
	case OpIload:
		t.loadLocal(int(operandU8()), KindInt)
	case OpLload:
		t.loadLocal(int(operandU8()), KindLong)
	case OpFload:
		t.loadLocal(int(operandU8()), KindFloat)
	case OpDload:
		t.loadLocal(int(operandU8()), KindDouble)
	case OpAload:
		t.loadLocal(int(operandU8()), KindReference)
	case OpIload0, OpIload1, OpIload2, OpIload3:
		t.loadLocal(int(op-OpIload0), KindInt)
	case OpLload0, OpLload1, OpLload2, OpLload3:
		t.loadLocal(int(op-OpLload0), KindLong)
	case OpFload0, OpFload1, OpFload2, OpFload3:
		t.loadLocal(int(op-OpFload0), KindFloat)
	case OpDload0, OpDload1, OpDload2, OpDload3:
		t.loadLocal(int(op-OpDload0), KindDouble)
	case OpAload0, OpAload1, OpAload2, OpAload3:
		t.loadLocal(int(op-OpAload0), KindReference)

	// Typed stores.
	case OpIstore:
		t.storeLocal(int(operandU8()), KindInt)
	case OpLstore:
		t.storeLocal(int(operandU8()), KindLong)
	case OpFstore:
		t.storeLocal(int(operandU8()), KindFloat)
	case OpDstore:
		t.storeLocal(int(operandU8()), KindDouble)
	case OpAstore:
		t.storeLocal(int(operandU8()), KindReference)
	case OpIstore0, OpIstore1, OpIstore2, OpIstore3:
		t.storeLocal(int(op-OpIstore0), KindInt)
	case OpLstore0, OpLstore1, OpLstore2, OpLstore3:
		t.storeLocal(int(op-OpLstore0), KindLong)
	case OpFstore0, OpFstore1, OpFstore2, OpFstore3:
		t.storeLocal(int(op-OpFstore0), KindFloat)
	case OpDstore0, OpDstore1, OpDstore2, OpDstore3:
		t.storeLocal(int(op-OpDstore0), KindDouble)
	case OpAstore0, OpAstore1, OpAstore2, OpAstore3:
		t.storeLocal(int(op-OpAstore0), KindReference)

	// Integer arithmetic; wrap is a warning, never a fault.
	case OpIadd:
		t.intBinop("addition", addWrap32)
	case OpLadd:
		t.longBinop("addition", addWrap64)
	case OpIsub:
		t.intBinop("subtraction", subWrap32)
	case OpLsub:
		t.longBinop("subtraction", subWrap64)
	case OpImul:
		t.intBinop("multiplication", mulWrap32)
	case OpLmul:
		t.longBinop("multiplication", mulWrap64)
	case OpIdiv:
		t.intBinop("division", divWrap32)
	case OpLdiv:
		t.longBinop("division", divWrap64)
	case OpIrem:
		t.intBinop("remainder", remWrap32)
	case OpLrem:
		t.longBinop("remainder", remWrap64)

	// Bitwise.
	case OpIand:
		right, left := t.pop().AsInt(), t.pop().AsInt()
		t.push(IntValue(left & right))
	case OpLand:
		right, left := t.pop().AsLong(), t.pop().AsLong()
		t.push(LongValue(left & right))
	case OpIor:
		right, left := t.pop().AsInt(), t.pop().AsInt()
		t.push(IntValue(left | right))
	case OpLor:
		right, left := t.pop().AsLong(), t.pop().AsLong()
		t.push(LongValue(left | right))
	case OpIxor:
		right, left := t.pop().AsInt(), t.pop().AsInt()
		t.push(IntValue(left ^ right))
	case OpLxor:
		right, left := t.pop().AsLong(), t.pop().AsLong()
		t.push(LongValue(left ^ right))

	// Shifts mask the count to the operand width.
	case OpIshl:
		s, v := t.pop().AsInt(), t.pop().AsInt()
		warnShift(int64(s), 0x1f, "int left-shift")
		t.push(IntValue(v << uint(s&0x1f)))
	case OpIshr:
		s, v := t.pop().AsInt(), t.pop().AsInt()
		warnShift(int64(s), 0x1f, "int signed right-shift")
		t.push(IntValue(v >> uint(s&0x1f)))
	case OpIushr:
		s, v := t.pop().AsInt(), t.pop().AsInt()
		warnShift(int64(s), 0x1f, "int unsigned right-shift")
		t.push(IntValue(int32(uint32(v) >> uint(s&0x1f))))
	case OpLshl:
		s, v := t.pop().AsLong(), t.pop().AsLong()
		warnShift(s, 0x3f, "long left-shift")
		t.push(LongValue(v << uint(s&0x3f)))
	case OpLshr:
		s, v := t.pop().AsLong(), t.pop().AsLong()
		warnShift(s, 0x3f, "long signed right-shift")
		t.push(LongValue(v >> uint(s&0x3f)))
	case OpLushr:
		s, v := t.pop().AsLong(), t.pop().AsLong()
		warnShift(s, 0x3f, "long unsigned right-shift")
		t.push(LongValue(int64(uint64(v) >> uint(s&0x3f))))

	// Negation.
	case OpIneg:
		t.push(IntValue(-t.pop().AsInt()))
	case OpLneg:
		t.push(LongValue(-t.pop().AsLong()))
	case OpFneg:
		t.push(FloatValue(-t.pop().AsFloat()))
	case OpDneg:
		t.push(DoubleValue(-t.pop().AsDouble()))

	// Increment.
	case OpIinc:
		index := int(operandU8())
		delta := int32(int8(window[2]))
		frame := t.topFrame()
		if index >= len(frame.Locals) {
			faultf("local variable %d out of range", index)
		}
		result, wrapped := addWrap32(frame.Locals[index].AsInt(), delta)
		if wrapped {
			Warnf("int increment overflowed")
		}
		frame.Locals[index] = IntValue(result)

	// Floating-point arithmetic.
	case OpFadd:
		right, left := t.pop().AsFloat(), t.pop().AsFloat()
		t.push(FloatValue(left + right))
	case OpDadd:
		right, left := t.pop().AsDouble(), t.pop().AsDouble()
		t.push(DoubleValue(left + right))
	case OpFsub:
		right, left := t.pop().AsFloat(), t.pop().AsFloat()
		t.push(FloatValue(left - right))
	case OpDsub:
		right, left := t.pop().AsDouble(), t.pop().AsDouble()
		t.push(DoubleValue(left - right))
	case OpFmul:
		right, left := t.pop().AsFloat(), t.pop().AsFloat()
		t.push(FloatValue(left * right))
	case OpDmul:
		right, left := t.pop().AsDouble(), t.pop().AsDouble()
		t.push(DoubleValue(left * right))
	case OpFdiv:
		right, left := t.pop().AsFloat(), t.pop().AsFloat()
		t.push(FloatValue(left / right))
	case OpDdiv:
		right, left := t.pop().AsDouble(), t.pop().AsDouble()
		t.push(DoubleValue(left / right))
	case OpFrem:
		right, left := t.pop().AsFloat(), t.pop().AsFloat()
		t.push(FloatValue(float32(math.Mod(float64(left), float64(right)))))
	case OpDrem:
		right, left := t.pop().AsDouble(), t.pop().AsDouble()
		t.push(DoubleValue(math.Mod(left, right)))

	// Numeric conversions.
	case OpI2b:
		t.push(ByteValue(int8(t.pop().AsInt())))
	case OpI2c:
		t.push(CharValue(int16(t.pop().AsInt())))
	case OpI2s:
		t.push(ShortValue(int16(t.pop().AsInt())))
	case OpI2l:
		t.push(LongValue(int64(t.pop().AsInt())))
	case OpI2f:
		t.push(FloatValue(float32(t.pop().AsInt())))
	case OpI2d:
		t.push(DoubleValue(float64(t.pop().AsInt())))
	case OpL2i:
		t.push(IntValue(int32(t.pop().AsLong())))
	case OpL2f:
		t.push(FloatValue(float32(t.pop().AsLong())))
	case OpL2d:
		t.push(DoubleValue(float64(t.pop().AsLong())))
	case OpF2i:
		t.push(IntValue(truncToInt32(float64(t.pop().AsFloat()))))
	case OpF2l:
		t.push(LongValue(truncToInt64(float64(t.pop().AsFloat()))))
	case OpF2d:
		t.push(DoubleValue(float64(t.pop().AsFloat())))
	case OpD2i:
		t.push(IntValue(truncToInt32(t.pop().AsDouble())))
	case OpD2l:
		t.push(LongValue(truncToInt64(t.pop().AsDouble())))
	case OpD2f:
		t.push(FloatValue(float32(t.pop().AsDouble())))

	// Stack manipulation.
	case OpPop:
		if !t.pop().IsCategory1() {
			faultf("pop requires a category-1 value")
		}
	case OpPop2:
		if t.pop().IsCategory1() {
			if !t.pop().IsCategory1() {
				faultf("pop2 requires two category-1 values or one category-2 value")
			}
		}
	case OpSwap:
		v1 := t.pop()
		v2 := t.pop()
		if !v1.IsCategory1() || !v2.IsCategory1() {
			faultf("swap requires two category-1 values")
		}
		t.push(v1)
		t.push(v2)
	case OpDup:
		v := t.pop()
		if !v.IsCategory1() {
			faultf("dup requires a category-1 value")
		}
		t.push(v)
		t.push(v)
	case OpDupX1:
		v1 := t.pop()
		v2 := t.pop()
		if !v1.IsCategory1() || !v2.IsCategory1() {
			faultf("dup_x1 requires two category-1 values")
		}
		t.push(v1)
		t.push(v2)
		t.push(v1)
	case OpDupX2:
		v1 := t.pop()
		if !v1.IsCategory1() {
			faultf("dup_x2 requires a category-1 value on top")
		}
		v2 := t.pop()
		if v2.IsCategory2() {
			t.push(v1)
			t.push(v2)
			t.push(v1)
		} else {
			v3 := t.pop()
			if !v3.IsCategory1() {
				faultf("dup_x2 form 1 requires three category-1 values")
			}
			t.push(v1)
			t.push(v3)
			t.push(v2)
			t.push(v1)
		}
	case OpDup2:
		v1 := t.pop()
		if v1.IsCategory2() {
			t.push(v1)
			t.push(v1)
		} else {
			v2 := t.pop()
			if !v2.IsCategory1() {
				faultf("dup2 form 1 requires two category-1 values")
			}
			t.push(v2)
			t.push(v1)
			t.push(v2)
			t.push(v1)
		}
	case OpDup2X1:
		v1 := t.pop()
		if v1.IsCategory2() {
			v2 := t.pop()
			if !v2.IsCategory1() {
				faultf("dup2_x1 form 2 requires a category-1 value beneath")
			}
			t.push(v1)
			t.push(v2)
			t.push(v1)
		} else {
			v2 := t.pop()
			v3 := t.pop()
			if !v2.IsCategory1() || !v3.IsCategory1() {
				faultf("dup2_x1 form 1 requires three category-1 values")
			}
			t.push(v2)
			t.push(v1)
			t.push(v3)
			t.push(v2)
			t.push(v1)
		}
	case OpDup2X2:
		v1 := t.pop()
		if v1.IsCategory2() {
			v2 := t.pop()
			if v2.IsCategory2() {
				t.push(v1)
				t.push(v2)
				t.push(v1)
			} else {
				v3 := t.pop()
				if !v3.IsCategory1() {
					faultf("dup2_x2 form 2 requires category-1 values beneath")
				}
				t.push(v1)
				t.push(v3)
				t.push(v2)
				t.push(v1)
			}
		} else {
			v2 := t.pop()
			if !v2.IsCategory1() {
				faultf("dup2_x2: category-2 value beneath a category-1 top")
			}
			v3 := t.pop()
			if v3.IsCategory2() {
				t.push(v2)
				t.push(v1)
				t.push(v3)
				t.push(v2)
				t.push(v1)
			} else {
				v4 := t.pop()
				if !v4.IsCategory1() {
					faultf("dup2_x2 form 1 requires four category-1 values")
				}
				t.push(v2)
				t.push(v1)
				t.push(v4)
				t.push(v3)
				t.push(v2)
				t.push(v1)
			}
		}

	// Unconditional branches.
	case OpGoto:
		ipOverride = branch(int(operandI16()))
	case OpGotoW:
		ipOverride = branch(int(operandI32()))

	// Comparisons.
	case OpLcmp:
		right, left := t.pop().AsLong(), t.pop().AsLong()
		t.push(IntValue(compareOrdered(left, right)))
	case OpFcmpl, OpFcmpg:
		right, left := t.pop().AsFloat(), t.pop().AsFloat()
		t.push(IntValue(compareFloat(float64(left), float64(right), op == OpFcmpg)))
	case OpDcmpl, OpDcmpg:
		right, left := t.pop().AsDouble(), t.pop().AsDouble()
		t.push(IntValue(compareFloat(left, right, op == OpDcmpg)))

	// Conditional branches.
	case OpIfIcmpeq, OpIfIcmpne, OpIfIcmplt, OpIfIcmpge, OpIfIcmpgt, OpIfIcmple:
		right, left := t.pop().AsInt(), t.pop().AsInt()
		if intPredicate(op-OpIfIcmpeq, left, right) {
			ipOverride = branch(int(operandI16()))
		}
	case OpIfeq, OpIfne, OpIflt, OpIfge, OpIfgt, OpIfle:
		left := t.pop().AsInt()
		if intPredicate(op-OpIfeq, left, 0) {
			ipOverride = branch(int(operandI16()))
		}
	case OpIfnull:
		if t.pop().Kind() == KindNull {
			ipOverride = branch(int(operandI16()))
		}
	case OpIfnonnull:
		if t.pop().Kind() == KindReference {
			ipOverride = branch(int(operandI16()))
		}

	// Returns.
	case OpReturn:
		if t.topFrame().IsClinit() {
			t.rt.SetInitialized(t.topFrame().ClassName)
		}
		if len(t.frames) == 1 {
			t.frames = t.frames[:0]
			t.stack = t.stack[:0]
			t.done = true
			return nil
		}
		ipOverride = t.popFrame()
	case OpIreturn, OpLreturn, OpFreturn, OpDreturn, OpAreturn:
		v := t.pop()
		checkReturnKind(op, v)
		if len(t.frames) == 1 {
			t.stack = t.stack[:t.topFrame().BasePointer]
			t.frames = t.frames[:0]
			t.push(v)
			t.done = true
			return nil
		}
		ipOverride = t.popFrame()
		t.push(v)

	// Statics.
	case OpGetstatic, OpPutstatic:
		index := operandU16()
		className, lerr := t.rt.GetOrLoadClassItem(t.topFrame().ClassName, index)
		if lerr != nil {
			return lerr
		}
		if t.needsInit(className) {
			clinitPC, pushed, ierr := t.initializeClass(pc, className)
			if ierr != nil {
				return ierr
			}
			if pushed {
				// Re-execute this instruction once <clinit> returns.
				ipOverride = clinitPC
				break
			}
		}
		_, fieldName, field, lerr := t.rt.GetFieldByIndex(t.topFrame().ClassName, index)
		if lerr != nil {
			return lerr
		}
		if op == OpGetstatic {
			t.push(field.Value)
		} else {
			v := t.pop()
			if !v.MatchesType(field.Type) {
				faultf("%s value does not match type %s of field %s.%s",
					v.Kind(), field.Type, className, fieldName)
			}
			field.Value = v
		}

	// Invocations.
	case OpInvokestatic, OpInvokespecial:
		index := operandU16()
		className, lerr := t.rt.GetOrLoadClassItem(t.topFrame().ClassName, index)
		if lerr != nil {
			return lerr
		}
		if t.needsInit(className) {
			clinitPC, pushed, ierr := t.initializeClass(pc, className)
			if ierr != nil {
				return ierr
			}
			if pushed {
				ipOverride = clinitPC
				break
			}
		}
		_, methodName, method, lerr := t.rt.GetMethodByIndex(t.topFrame().ClassName, index)
		if lerr != nil {
			return lerr
		}

		paramLen := len(method.Params)
		if len(t.stack) < paramLen {
			faultf("operand stack underflow: %s.%s needs %d arguments, have %d",
				className, methodName, paramLen, len(t.stack))
		}
		params := t.stack[len(t.stack)-paramLen:]

		if method.Native {
			args := append([]Value(nil), params...)
			t.stack = t.stack[:len(t.stack)-paramLen]
			result, nerr := t.rt.InvokeNative(className+"."+methodName, args)
			if nerr != nil {
				return nerr
			}
			if method.Return != nil {
				if result == nil {
					faultf("native %s.%s returned no value", className, methodName)
				}
				t.push(*result)
			}
		} else {
			frame := NewFrame(len(t.stack)-paramLen, pc+1+info.Operands, className)
			frame.Locals = append(frame.Locals, params...)
			t.stack = t.stack[:len(t.stack)-paramLen]
			t.frames = append(t.frames, frame)
			ipOverride = method.CodeIndex
		}

	default:
		return t.fatalError(pc, op, "unsupported opcode")
	}

	if ipOverride >= 0 {
		t.pc = ipOverride
	} else {
		t.pc = pc + 1 + info.Operands
	}
	return nil
}

// needsInit reports whether referencing a class must first run its
// initializer. A class whose <clinit> frame is already on this thread's
// stack counts as in progress, so instructions executed by the initializer
// itself (and circular initializers) do not re-enter the trampoline.
func (t *Thread) needsInit(className string) bool {
	if t.rt.IsInitialized(className) {
		return false
	}
	for i := range t.frames {
		if t.frames[i].IsClinit() && t.frames[i].ClassName == className {
			return false
		}
	}
	return true
}

// initializeClass runs the <clinit> trampoline for a class that is not yet
// initialized. If the class has a Java <clinit>, a CLINIT frame is pushed
// whose return PC is the triggering instruction's own address, and its code
// index is returned; the triggering instruction re-runs after the frame
// returns and then sees the initialized flag. Classes without <clinit> are
// marked initialized immediately.
func (t *Thread) initializeClass(pc int, className string) (int, bool, error) {
	class, err := t.rt.GetOrLoadClass(className)
	if err != nil {
		return 0, false, err
	}

	method, ok := class.Methods["<clinit>"]
	if !ok {
		t.rt.SetInitialized(className)
		return 0, false, nil
	}
	if method.Native {
		if _, err := t.rt.InvokeNative(className+".<clinit>", nil); err != nil {
			return 0, false, err
		}
		t.rt.SetInitialized(className)
		return 0, false, nil
	}

	t.frames = append(t.frames, NewClinitFrame(len(t.stack), pc, className))
	return method.CodeIndex, true, nil
}

// popFrame discards the current frame, truncates the operand stack back to
// the frame's base, and returns the PC to resume the caller at.
func (t *Thread) popFrame() int {
	frame := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]
	t.stack = t.stack[:frame.BasePointer]
	return frame.ReturnPC
}

func (t *Thread) push(v Value) {
	t.stack = append(t.stack, v)
}

func (t *Thread) pop() Value {
	if len(t.stack) == 0 {
		faultf("operand stack underflow")
	}
	v := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	return v
}

func (t *Thread) topFrame() *Frame {
	if len(t.frames) == 0 {
		faultf("no active frame")
	}
	return &t.frames[len(t.frames)-1]
}

// loadLocal pushes a copy of a local, asserting its kind matches the
// instruction's type. Reference loads accept null.
func (t *Thread) loadLocal(index int, kind Kind) {
	frame := t.topFrame()
	if index >= len(frame.Locals) {
		faultf("local variable %d out of range (%d locals)", index, len(frame.Locals))
	}
	v := frame.Locals[index]
	checkLocalKind(v, kind)
	t.push(v)
}

// storeLocal pops a value into a local, growing the locals table with Null
// slots if the index is past the end.
func (t *Thread) storeLocal(index int, kind Kind) {
	v := t.pop()
	checkLocalKind(v, kind)
	frame := t.topFrame()
	for index >= len(frame.Locals) {
		frame.Locals = append(frame.Locals, Null)
	}
	frame.Locals[index] = v
}

func checkLocalKind(v Value, kind Kind) {
	if kind == KindReference {
		if v.Kind() != KindReference && v.Kind() != KindNull {
			faultf("expected reference value, found %s", v.Kind())
		}
		return
	}
	if v.Kind() != kind {
		faultf("expected %s value, found %s", kind, v.Kind())
	}
}

func checkReturnKind(op byte, v Value) {
	switch op {
	case OpIreturn:
		v.AsInt()
	case OpLreturn:
		v.AsLong()
	case OpFreturn:
		v.AsFloat()
	case OpDreturn:
		v.AsDouble()
	case OpAreturn:
		if v.Kind() != KindReference && v.Kind() != KindNull {
			faultf("expected reference value, found %s", v.Kind())
		}
	}
}

func (t *Thread) intBinop(name string, fn func(a, b int32) (int32, bool)) {
	right := t.pop().AsInt()
	left := t.pop().AsInt()
	result, wrapped := fn(left, right)
	if wrapped {
		Warnf("int %s overflowed", name)
	}
	t.push(IntValue(result))
}

func (t *Thread) longBinop(name string, fn func(a, b int64) (int64, bool)) {
	right := t.pop().AsLong()
	left := t.pop().AsLong()
	result, wrapped := fn(left, right)
	if wrapped {
		Warnf("long %s overflowed", name)
	}
	t.push(LongValue(result))
}

func (t *Thread) fatalError(pc int, op byte, msg string) *FatalError {
	var kinds []Kind
	for i := len(t.stack) - 1; i >= 0 && len(kinds) < 3; i-- {
		kinds = append(kinds, t.stack[i].Kind())
	}
	return &FatalError{PC: pc, Opcode: op, Mnemonic: Mnemonic(op), Msg: msg, TopKinds: kinds}
}

func warnShift(count int64, mask int64, name string) {
	if count&^mask != 0 {
		Warnf("%s count %d exceeds the operand width; masked to %d", name, count, count&mask)
	}
}

// intPredicate evaluates an if_icmp<op>/if<op> condition; sel is the opcode
// offset from the eq member of its family (eq, ne, lt, ge, gt, le).
func intPredicate(sel byte, left, right int32) bool {
	switch sel {
	case 0:
		return left == right
	case 1:
		return left != right
	case 2:
		return left < right
	case 3:
		return left >= right
	case 4:
		return left > right
	default:
		return left <= right
	}
}

func compareOrdered(left, right int64) int32 {
	switch {
	case left > right:
		return 1
	case left < right:
		return -1
	}
	return 0
}

// compareFloat pushes the fcmp/dcmp result; NaN yields +1 for the g
// variants and -1 for the l variants.
func compareFloat(left, right float64, nanIsPositive bool) int32 {
	switch {
	case left > right:
		return 1
	case left < right:
		return -1
	case left == right:
		return 0
	}
	if nanIsPositive {
		return 1
	}
	return -1
}

// truncToInt32 converts FP to int with saturation; NaN maps to zero.
func truncToInt32(f float64) int32 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}

func truncToInt64(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

// Wrapping arithmetic with overflow reporting. The results are always the
// two's-complement wrap; the boolean only drives a warning.

func addWrap32(a, b int32) (int32, bool) {
	r := a + b
	return r, (b > 0 && r < a) || (b < 0 && r > a)
}

func subWrap32(a, b int32) (int32, bool) {
	r := a - b
	return r, (b < 0 && r < a) || (b > 0 && r > a)
}

func mulWrap32(a, b int32) (int32, bool) {
	wide := int64(a) * int64(b)
	return int32(wide), int64(int32(wide)) != wide
}

func divWrap32(a, b int32) (int32, bool) {
	if b == 0 {
		faultf("division by zero")
	}
	return a / b, a == math.MinInt32 && b == -1
}

func remWrap32(a, b int32) (int32, bool) {
	if b == 0 {
		faultf("division by zero")
	}
	return a % b, false
}

func addWrap64(a, b int64) (int64, bool) {
	r := a + b
	return r, (b > 0 && r < a) || (b < 0 && r > a)
}

func subWrap64(a, b int64) (int64, bool) {
	r := a - b
	return r, (b < 0 && r < a) || (b > 0 && r > a)
}

func mulWrap64(a, b int64) (int64, bool) {
	r := a * b
	return r, a != 0 && (r/a != b || (a == -1 && b == math.MinInt64))
}

func divWrap64(a, b int64) (int64, bool) {
	if b == 0 {
		faultf("division by zero")
	}
	return a / b, a == math.MinInt64 && b == -1
}

func remWrap64(a, b int64) (int64, bool) {
	if b == 0 {
		faultf("division by zero")
	}
	return a % b, false
}
