package vm

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func captureWarnings(t *testing.T) *[]string {
	t.Helper()
	previous := Warnf
	var messages []string
	Warnf = func(format string, args ...any) {
		messages = append(messages, fmt.Sprintf(format, args...))
	}
	t.Cleanup(func() { Warnf = previous })
	return &messages
}

func TestAddReturnsSum(t *testing.T) {
	got, _, err := runForInt([]byte{OpIconst3, OpIconst4, OpIadd, OpIreturn})
	if err != nil {
		t.Fatal(err)
	}
	if got != 7 {
		t.Errorf("result = %d, want 7", got)
	}
}

func TestShiftLeft(t *testing.T) {
	got, _, err := runForInt([]byte{OpIconstM1, OpIconst2, OpIshl, OpIreturn})
	if err != nil {
		t.Fatal(err)
	}
	if got != -4 {
		t.Errorf("result = %d, want -4", got)
	}
}

func TestConditionalBranchTaken(t *testing.T) {
	// 5 > 3, so the branch skips the zero return.
	code := []byte{
		OpIconst5,
		OpIconst3,
		OpIfIcmpgt, 0x00, 0x05, // -> pc 7
		OpIconst0,
		OpIreturn,
		OpIconst1, // pc 7
		OpIreturn,
	}
	got, _, err := runForInt(code)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("result = %d, want 1", got)
	}
}

func TestGotoForward(t *testing.T) {
	code := []byte{
		OpGoto, 0x00, 0x04, // -> pc 4
		OpIconst0, // skipped
		OpIconst1, // pc 4
		OpIreturn,
	}
	got, _, err := runForInt(code)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("result = %d, want 1", got)
	}
}

func TestLoopSumsWithIincAndBackwardGoto(t *testing.T) {
	// sum = 0; for i = 1; i <= 5; i++ { sum += i }; return sum
	code := []byte{
		OpIconst1, OpIstore0, // i = 1
		OpIconst0, OpIstore1, // sum = 0
		OpIload0,               // pc 4: loop head
		OpBipush, 5,            // pc 5
		OpIfIcmpgt, 0x00, 0x0d, // pc 7 -> pc 20
		OpIload1,
		OpIload0,
		OpIadd,
		OpIstore1,
		OpIinc, 0, 1, // pc 14
		OpGoto, 0xff, 0xf3, // pc 17: -13 -> pc 4
		OpIload1, // pc 20
		OpIreturn,
	}
	got, _, err := runForInt(code)
	if err != nil {
		t.Fatal(err)
	}
	if got != 15 {
		t.Errorf("result = %d, want 15", got)
	}
}

func TestLongCompareAndArithmetic(t *testing.T) {
	got, _, err := runForInt([]byte{OpLconst1, OpLconst0, OpLcmp, OpIreturn})
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("lcmp result = %d, want 1", got)
	}

	got, _, err = runForInt([]byte{OpLconst1, OpLconst1, OpLadd, OpL2i, OpIreturn})
	if err != nil {
		t.Fatal(err)
	}
	if got != 2 {
		t.Errorf("ladd result = %d, want 2", got)
	}
}

// 0.0/0.0 is NaN; fcmpg pushes 1 on NaN, fcmpl pushes -1.
func TestFloatCompareNaN(t *testing.T) {
	nanCmp := func(cmp byte) int32 {
		got, _, err := runForInt([]byte{OpFconst0, OpFconst0, OpFdiv, OpFconst0, cmp, OpIreturn})
		if err != nil {
			t.Fatal(err)
		}
		return got
	}

	if got := nanCmp(OpFcmpg); got != 1 {
		t.Errorf("fcmpg with NaN = %d, want 1", got)
	}
	if got := nanCmp(OpFcmpl); got != -1 {
		t.Errorf("fcmpl with NaN = %d, want -1", got)
	}
}

func TestDupAndSwap(t *testing.T) {
	got, _, err := runForInt([]byte{OpIconst2, OpDup, OpIadd, OpIreturn})
	if err != nil {
		t.Fatal(err)
	}
	if got != 4 {
		t.Errorf("dup result = %d, want 4", got)
	}

	got, _, err = runForInt([]byte{OpIconst1, OpIconst2, OpSwap, OpIsub, OpIreturn})
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("swap result = %d, want 1", got)
	}
}

func TestDup2DuplicatesLong(t *testing.T) {
	got, _, err := runForInt([]byte{OpLconst1, OpDup2, OpLadd, OpL2i, OpIreturn})
	if err != nil {
		t.Fatal(err)
	}
	if got != 2 {
		t.Errorf("dup2 result = %d, want 2", got)
	}
}

func TestPopRejectsCategory2(t *testing.T) {
	_, err := runMain([]byte{OpLconst0, OpPop, OpReturn}, "()V")
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError, got %v", err)
	}
	if !strings.Contains(fatal.Msg, "category-1") {
		t.Errorf("unexpected message: %s", fatal.Msg)
	}
}

func TestStackUnderflowIsFatal(t *testing.T) {
	_, err := runMain([]byte{OpIadd, OpReturn}, "()V")
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError, got %v", err)
	}
	if !strings.Contains(fatal.Msg, "underflow") {
		t.Errorf("unexpected message: %s", fatal.Msg)
	}
}

func TestUnsupportedOpcodeIsFatal(t *testing.T) {
	_, err := runMain([]byte{0xca}, "()V") // breakpoint: outside the subset
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError, got %v", err)
	}
	if !strings.Contains(fatal.Msg, "unsupported opcode") {
		t.Errorf("unexpected message: %s", fatal.Msg)
	}
}

func TestCrossKindPopIsFatal(t *testing.T) {
	_, err := runMain([]byte{OpFconst1, OpFconst2, OpIreturn}, "()I")
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError, got %v", err)
	}
	if len(fatal.TopKinds) == 0 {
		t.Error("diagnostic should include top-of-stack kinds")
	}
}

// Scenario: ldiv with divisor 0L aborts with a diagnostic naming the PC.
func TestLongDivisionByZero(t *testing.T) {
	_, err := runMain([]byte{OpLconst1, OpLconst0, OpLdiv, OpReturn}, "()V")
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError, got %v", err)
	}
	if !strings.Contains(fatal.Msg, "division by zero") {
		t.Errorf("unexpected message: %s", fatal.Msg)
	}
	if fatal.PC != 2 {
		t.Errorf("diagnostic PC = %d, want 2", fatal.PC)
	}
	if fatal.Mnemonic != "ldiv" {
		t.Errorf("diagnostic mnemonic = %q, want ldiv", fatal.Mnemonic)
	}
}

func TestIntDivisionByZero(t *testing.T) {
	_, err := runMain([]byte{OpIconst1, OpIconst0, OpIdiv, OpReturn}, "()V")
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError, got %v", err)
	}
	if !strings.Contains(fatal.Msg, "division by zero") {
		t.Errorf("unexpected message: %s", fatal.Msg)
	}
}

// Property: integer addition wraps and reports.
func TestIntegerWrapWarns(t *testing.T) {
	warnings := captureWarnings(t)

	// iconst_m1; iconst_1; iushr leaves INT_MAX; adding 1 wraps to INT_MIN.
	code := []byte{OpIconstM1, OpIconst1, OpIushr, OpIconst1, OpIadd, OpIreturn}
	got, _, err := runForInt(code)
	if err != nil {
		t.Fatal(err)
	}
	if got != -2147483648 {
		t.Errorf("result = %d, want INT_MIN", got)
	}

	if len(*warnings) == 0 || !strings.Contains((*warnings)[0], "addition") {
		t.Errorf("expected an addition-overflow warning, got %v", *warnings)
	}
}

// Property: v ishl s == v ishl (s & 0x1F), with a warning for oversized
// counts.
func TestShiftMasking(t *testing.T) {
	warnings := captureWarnings(t)

	shift := func(v, s int16) int32 {
		t.Helper()
		code := []byte{
			OpSipush, byte(uint16(v) >> 8), byte(v),
			OpSipush, byte(uint16(s) >> 8), byte(s),
			OpIshl, OpIreturn,
		}
		got, _, err := runForInt(code)
		if err != nil {
			t.Fatal(err)
		}
		return got
	}

	pairs := []struct{ v, s int16 }{{1, 1}, {1, 33}, {-1, 2}, {-1, 34}, {123, 40}, {7, 95}}
	for _, p := range pairs {
		if got, want := shift(p.v, p.s), shift(p.v, p.s&0x1f); got != want {
			t.Errorf("%d ishl %d = %d, want %d", p.v, p.s, got, want)
		}
	}

	if len(*warnings) == 0 {
		t.Error("expected oversized-shift warnings")
	}
}

func TestUnsignedShiftRight(t *testing.T) {
	got, _, err := runForInt([]byte{OpIconstM1, OpIconst1, OpIushr, OpIreturn})
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x7fffffff {
		t.Errorf("iushr result = %d, want %d", got, 0x7fffffff)
	}
}

func TestNarrowingConversionStoresTypedValue(t *testing.T) {
	b := newPoolBuilder()
	fieldIdx := b.fieldRef("Test/Main", "b", "B")
	cf := buildClass(b, "Test/Main",
		[]fieldSpec{{name: "b", descriptor: "B"}},
		[]methodSpec{{
			name:       "main",
			descriptor: "()V",
			code: []byte{
				OpSipush, 0x01, 0x2c, // 300
				OpI2b,
				OpPutstatic, byte(fieldIdx >> 8), byte(fieldIdx),
				OpReturn,
			},
		}},
	)

	rt, err := NewRuntime(cf)
	if err != nil {
		t.Fatal(err)
	}
	thread, err := rt.Start("Test/Main")
	if err != nil {
		t.Fatal(err)
	}
	if err := thread.Run(); err != nil {
		t.Fatal(err)
	}

	class, _ := rt.Class("Test/Main")
	if got := class.Fields["b"].Value.AsByte(); got != 44 {
		t.Errorf("stored byte = %d, want 44 (300 truncated)", got)
	}
}

// Invoking a Java method pushes a frame whose locals are the popped
// arguments; its return grows the caller's stack by the return arity.
func TestInvokeStaticJavaMethod(t *testing.T) {
	b := newPoolBuilder()
	addIdx := b.methodRef("Test/Main", "add", "(II)I")
	cf := buildClass(b, "Test/Main", nil, []methodSpec{
		{
			name:       "main",
			descriptor: "()I",
			code: []byte{
				OpIconst2,
				OpIconst3,
				OpInvokestatic, byte(addIdx >> 8), byte(addIdx),
				OpIreturn,
			},
		},
		{
			name:       "add",
			descriptor: "(II)I",
			code:       []byte{OpIload0, OpIload1, OpIadd, OpIreturn},
		},
	})

	rt, err := NewRuntime(cf)
	if err != nil {
		t.Fatal(err)
	}
	thread, err := rt.Start("Test/Main")
	if err != nil {
		t.Fatal(err)
	}
	if err := thread.Run(); err != nil {
		t.Fatal(err)
	}

	result, ok := thread.Result()
	if !ok {
		t.Fatal("no result")
	}
	if got := result.AsInt(); got != 5 {
		t.Errorf("result = %d, want 5", got)
	}
}

// Scenario: a native (I)V invocation consumes its argument and pushes
// nothing; the native receives exactly the declared parameters.
func TestInvokeStaticNative(t *testing.T) {
	b := newPoolBuilder()
	outIdx := b.methodRef("Test/Main", "out", "(I)V")
	cf := buildClass(b, "Test/Main", nil, []methodSpec{
		{
			name:       "main",
			descriptor: "()V",
			code: []byte{
				OpBipush, 7,
				OpInvokestatic, byte(outIdx >> 8), byte(outIdx),
				OpReturn,
			},
		},
		{name: "out", descriptor: "(I)V"}, // native
	})

	rt, err := NewRuntime(cf)
	if err != nil {
		t.Fatal(err)
	}

	var received []Value
	rt.RegisterNative("Test/Main.out", func(params []Value) *Value {
		received = append([]Value(nil), params...)
		return nil
	})

	thread, err := rt.Start("Test/Main")
	if err != nil {
		t.Fatal(err)
	}
	if err := thread.Run(); err != nil {
		t.Fatal(err)
	}

	if len(received) != 1 || received[0].AsInt() != 7 {
		t.Errorf("native received %v, want [Int(7)]", received)
	}
	if len(thread.Stack()) != 0 {
		t.Errorf("operand stack depth = %d after void native, want 0", len(thread.Stack()))
	}
}

// Scenario: a <clinit> that stores 42 runs exactly once, before the first
// static read, triggered by the read itself.
func TestClinitTrampoline(t *testing.T) {
	b := newPoolBuilder()
	fieldIdx := b.fieldRef("Test/Main", "X", "I")
	tickIdx := b.methodRef("Test/Main", "tick", "()V")
	cf := buildClass(b, "Test/Main",
		[]fieldSpec{{name: "X", descriptor: "I"}},
		[]methodSpec{
			{
				name:       "main",
				descriptor: "()I",
				code: []byte{
					OpGetstatic, byte(fieldIdx >> 8), byte(fieldIdx),
					OpGetstatic, byte(fieldIdx >> 8), byte(fieldIdx),
					OpIadd,
					OpIreturn,
				},
			},
			{
				name:       "<clinit>",
				descriptor: "()V",
				code: []byte{
					OpInvokestatic, byte(tickIdx >> 8), byte(tickIdx),
					OpBipush, 42,
					OpPutstatic, byte(fieldIdx >> 8), byte(fieldIdx),
					OpReturn,
				},
			},
			{name: "tick", descriptor: "()V"}, // native
		},
	)

	rt, err := NewRuntime(cf)
	if err != nil {
		t.Fatal(err)
	}

	clinitRuns := 0
	rt.RegisterNative("Test/Main.tick", func(params []Value) *Value {
		clinitRuns++
		return nil
	})

	thread, err := rt.Start("Test/Main")
	if err != nil {
		t.Fatal(err)
	}
	if err := thread.Run(); err != nil {
		t.Fatal(err)
	}

	result, ok := thread.Result()
	if !ok {
		t.Fatal("no result")
	}
	if got := result.AsInt(); got != 84 {
		t.Errorf("result = %d, want 84", got)
	}
	if clinitRuns != 1 {
		t.Errorf("<clinit> ran %d times, want 1", clinitRuns)
	}
	if !rt.IsInitialized("Test/Main") {
		t.Error("class not marked initialized")
	}
}

// A class without <clinit> is marked initialized on first reference.
func TestStaticAccessWithoutClinit(t *testing.T) {
	b := newPoolBuilder()
	fieldIdx := b.fieldRef("Test/Main", "X", "I")
	cf := buildClass(b, "Test/Main",
		[]fieldSpec{{name: "X", descriptor: "I"}},
		[]methodSpec{{
			name:       "main",
			descriptor: "()V",
			code: []byte{
				OpIconst5,
				OpPutstatic, byte(fieldIdx >> 8), byte(fieldIdx),
				OpReturn,
			},
		}},
	)

	rt, err := NewRuntime(cf)
	if err != nil {
		t.Fatal(err)
	}
	thread, err := rt.Start("Test/Main")
	if err != nil {
		t.Fatal(err)
	}
	if err := thread.Run(); err != nil {
		t.Fatal(err)
	}

	if !rt.IsInitialized("Test/Main") {
		t.Error("class not marked initialized")
	}
	class, _ := rt.Class("Test/Main")
	if got := class.Fields["X"].Value.AsInt(); got != 5 {
		t.Errorf("X = %d, want 5", got)
	}
}

func TestPutstaticTypeMismatchIsFatal(t *testing.T) {
	b := newPoolBuilder()
	fieldIdx := b.fieldRef("Test/Main", "X", "I")
	cf := buildClass(b, "Test/Main",
		[]fieldSpec{{name: "X", descriptor: "I"}},
		[]methodSpec{{
			name:       "main",
			descriptor: "()V",
			code: []byte{
				OpLconst0,
				OpPutstatic, byte(fieldIdx >> 8), byte(fieldIdx),
				OpReturn,
			},
		}},
	)

	rt, err := NewRuntime(cf)
	if err != nil {
		t.Fatal(err)
	}
	thread, err := rt.Start("Test/Main")
	if err != nil {
		t.Fatal(err)
	}

	err = thread.Run()
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError, got %v", err)
	}
	if !strings.Contains(fatal.Msg, "does not match") {
		t.Errorf("unexpected message: %s", fatal.Msg)
	}
}

func TestNullBranches(t *testing.T) {
	// aload a null local and branch on it.
	code := []byte{
		OpIconst0, OpIstore1, // force locals to grow; local 0 set below
		OpAload0,
		OpIfnull, 0x00, 0x05, // pc 3 -> pc 8
		OpIconst0,
		OpIreturn,
		OpIconst1, // pc 8
		OpIreturn,
	}

	b := newPoolBuilder()
	cf := buildClass(b, "Test/Main", nil, []methodSpec{
		{name: "main", descriptor: "()I", code: code},
	})
	rt, err := NewRuntime(cf)
	if err != nil {
		t.Fatal(err)
	}
	thread, err := rt.Start("Test/Main")
	if err != nil {
		t.Fatal(err)
	}
	// Seed local 0 with null, as a reference parameter would.
	thread.Frames()[0].Locals = append(thread.Frames()[0].Locals, Null)

	if err := thread.Run(); err != nil {
		t.Fatal(err)
	}
	result, _ := thread.Result()
	if got := result.AsInt(); got != 1 {
		t.Errorf("ifnull on null = %d, want branch to 1", got)
	}
}

func TestProgramCounterOutOfRangeIsFatal(t *testing.T) {
	// goto past the end of the code pool.
	_, err := runMain([]byte{OpGoto, 0x00, 0x7f, OpReturn}, "()V")
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError, got %v", err)
	}
	if !strings.Contains(fatal.Msg, "out of range") {
		t.Errorf("unexpected message: %s", fatal.Msg)
	}
}
