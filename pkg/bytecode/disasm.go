package bytecode

import (
	"fmt"
	"io"
	"strings"
)

// Disassemble returns a human-readable bytecode listing for the chunk.
func (c *Chunk) Disassemble() string {
	return c.DisassembleWithName("")
}

// DisassembleWithName returns a human-readable bytecode listing with a name header.
func (c *Chunk) DisassembleWithName(name string) string {
	var sb strings.Builder
	c.WriteDisassembly(&sb, name)
	return sb.String()
}

// WriteDisassembly writes the listing for the whole chunk to w.
func (c *Chunk) WriteDisassembly(w io.Writer, name string) {
	if name != "" {
		fmt.Fprintf(w, "== %s ==\n", name)
	}
	if len(c.Constants) > 0 {
		fmt.Fprintf(w, "; Constants (%d):\n", len(c.Constants))
		for i, v := range c.Constants {
			fmt.Fprintf(w, ";   [%3d] %s\n", i, FormatNumber(v))
		}
	}
	for offset := 0; offset < len(c.Code); {
		text, next := c.DisassembleInstruction(offset)
		fmt.Fprintln(w, text)
		offset = next
	}
}

// DisassembleInstruction formats the instruction at offset as
// "OFFSET LINE MNEMONIC [operand] ['value']" and returns the offset of the
// next instruction. The line column shows "|" when the line is unchanged
// from the previous byte.
func (c *Chunk) DisassembleInstruction(offset int) (string, int) {
	if offset < 0 || offset >= len(c.Code) {
		return "<end of code>", len(c.Code)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%04d ", offset)
	if offset > 0 && c.Line(offset) == c.Line(offset-1) {
		sb.WriteString("   | ")
	} else {
		fmt.Fprintf(&sb, "%4d ", c.Line(offset))
	}

	op, err := Decode(c.Code[offset])
	if err != nil {
		fmt.Fprintf(&sb, "Unknown opcode %d", c.Code[offset])
		return sb.String(), offset + 1
	}

	switch op {
	case OpConstant:
		if offset+1 >= len(c.Code) {
			fmt.Fprintf(&sb, "%s <truncated>", op)
			return sb.String(), len(c.Code)
		}
		idx := int(c.Code[offset+1])
		value := "<invalid>"
		if idx < len(c.Constants) {
			value = FormatNumber(c.Constants[idx])
		}
		fmt.Fprintf(&sb, "%-10s %3d '%s'", op, idx, value)
	default:
		sb.WriteString(op.String())
	}
	return sb.String(), offset + op.InstructionLen()
}

// DisassembleToLines returns the disassembly as a slice of lines.
func (c *Chunk) DisassembleToLines() []string {
	var lines []string
	for offset := 0; offset < len(c.Code); {
		text, next := c.DisassembleInstruction(offset)
		lines = append(lines, text)
		offset = next
	}
	return lines
}

// InstructionCount returns the number of instructions in the chunk.
// Note: This iterates through all code, so it's O(n).
func (c *Chunk) InstructionCount() int {
	count := 0
	for offset := 0; offset < len(c.Code); {
		op := Opcode(c.Code[offset])
		if op.Valid() {
			offset += op.InstructionLen()
		} else {
			offset++
		}
		count++
	}
	return count
}
