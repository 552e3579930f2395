package disasm

import (
	"strings"
	"testing"

	"github.com/mabhi256/jrun/internal/vm"
)

func TestDecodeWalksOperands(t *testing.T) {
	code := []byte{
		vm.OpIconst3,
		vm.OpBipush, 42,
		vm.OpSipush, 0x01, 0x2c,
		vm.OpGoto, 0x00, 0x04,
		vm.OpIreturn,
	}

	lines := Decode(code, 100)
	if len(lines) != 5 {
		t.Fatalf("decoded %d lines, want 5", len(lines))
	}

	wantPCs := []int{100, 101, 103, 106, 109}
	wantMnemonics := []string{"iconst_3", "bipush", "sipush", "goto", "ireturn"}
	for i, line := range lines {
		if line.PC != wantPCs[i] {
			t.Errorf("line %d pc = %d, want %d", i, line.PC, wantPCs[i])
		}
		if line.Mnemonic != wantMnemonics[i] {
			t.Errorf("line %d mnemonic = %q, want %q", i, line.Mnemonic, wantMnemonics[i])
		}
	}

	if len(lines[1].Operands) != 1 || lines[1].Operands[0] != 42 {
		t.Errorf("bipush operands = %v", lines[1].Operands)
	}
}

func TestDecodeUnknownOpcodeDegrades(t *testing.T) {
	lines := Decode([]byte{0xca, vm.OpReturn}, 0)
	if len(lines) != 2 {
		t.Fatalf("decoded %d lines, want 2", len(lines))
	}
	if lines[0].Known {
		t.Error("0xca should not decode as a known opcode")
	}
	if lines[1].Mnemonic != "return" {
		t.Errorf("decoding did not resynchronize: %q", lines[1].Mnemonic)
	}
}

func TestDecodeTruncatedOperands(t *testing.T) {
	// sipush with only one operand byte left.
	lines := Decode([]byte{vm.OpSipush, 0x01}, 0)
	if len(lines) != 1 {
		t.Fatalf("decoded %d lines, want 1", len(lines))
	}
	if len(lines[0].Operands) != 1 {
		t.Errorf("operands = %v", lines[0].Operands)
	}
}

func TestRenderIncludesMnemonics(t *testing.T) {
	out := Render(Decode([]byte{vm.OpIconst0, vm.OpIreturn}, 0))
	for _, want := range []string{"iconst_0", "ireturn"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered listing missing %q:\n%s", want, out)
		}
	}
}
