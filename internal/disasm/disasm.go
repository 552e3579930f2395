// Package disasm renders the linked code pool as a human-readable listing.
package disasm

import (
	"fmt"
	"strings"

	"github.com/mabhi256/jrun/internal/vm"
	"github.com/mabhi256/jrun/utils"
)

// Line is one decoded instruction.
type Line struct {
	PC       int
	Opcode   byte
	Mnemonic string
	Operands []byte
	// Known reports whether the opcode belongs to the supported subset;
	// unknown bytes decode as single-byte lines.
	Known bool
}

// Decode walks a code region from the given base PC and returns one line
// per instruction. Operands of unknown opcodes are not decoded, so a bad
// region degrades to byte-per-line output instead of failing.
func Decode(code []byte, basePC int) []Line {
	var lines []Line
	for pc := 0; pc < len(code); {
		op := code[pc]
		line := Line{PC: basePC + pc, Opcode: op}

		info, ok := vm.Lookup(op)
		if !ok {
			line.Mnemonic = fmt.Sprintf("0x%02x", op)
			lines = append(lines, line)
			pc++
			continue
		}

		line.Known = true
		line.Mnemonic = info.Mnemonic
		end := pc + 1 + info.Operands
		if end > len(code) {
			end = len(code)
		}
		line.Operands = code[pc+1 : end]
		lines = append(lines, line)
		pc = end
	}
	return lines
}

// Render formats a listing with lipgloss styling: PC gutter, mnemonic, and
// hex operands.
func Render(lines []Line) string {
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(RenderLine(line, false))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// RenderLine formats a single instruction; current highlights the line the
// program counter sits on.
func RenderLine(line Line, current bool) string {
	gutter := utils.MutedStyle.Render(fmt.Sprintf("%6d", line.PC))

	mnemonic := line.Mnemonic
	if line.Known {
		mnemonic = utils.MnemonicStyle.Render(fmt.Sprintf("%-14s", mnemonic))
	} else {
		mnemonic = utils.CriticalStyle.Render(fmt.Sprintf("%-14s", mnemonic))
	}

	operands := ""
	if len(line.Operands) > 0 {
		parts := make([]string, len(line.Operands))
		for i, b := range line.Operands {
			parts[i] = fmt.Sprintf("0x%02x", b)
		}
		operands = utils.OperandStyle.Render(strings.Join(parts, " "))
	}

	marker := "  "
	if current {
		marker = utils.GoodStyle.Render("➤ ")
	}

	return fmt.Sprintf("%s%s  %s %s", marker, gutter, mnemonic, operands)
}

// RenderMethod renders one linked method's slice of the code pool under a
// styled heading.
func RenderMethod(className, methodName string, method *vm.Method, pool []byte) string {
	heading := utils.TitleStyle.Render(fmt.Sprintf("%s.%s", className, methodName))
	if method.Native {
		return heading + utils.MutedStyle.Render("  (native)") + "\n"
	}

	code := pool[method.CodeIndex : method.CodeIndex+method.CodeSize]
	listing := Render(Decode(code, method.CodeIndex))
	return heading + "\n" + listing
}
