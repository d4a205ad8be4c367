package bytecode

import (
	"strings"
	"testing"
)

func TestDisassembleEmpty(t *testing.T) {
	c := NewChunk()

	if out := c.Disassemble(); out != "" {
		t.Errorf("Disassemble() of empty chunk = %q, want empty", out)
	}
	if out := c.DisassembleWithName("empty"); out != "== empty ==\n" {
		t.Errorf("DisassembleWithName() = %q", out)
	}
}

func TestDisassembleInstructionFormat(t *testing.T) {
	c := NewChunk()
	idx, _ := c.AddConstant(1.2)
	c.WriteOp(OpConstant, 123)
	c.Write(byte(idx), 123)
	c.WriteOp(OpNegate, 123)
	c.WriteOp(OpReturn, 124)

	lines := c.DisassembleToLines()
	want := []string{
		"0000  123 CONSTANT     0 '1.2'",
		"0002    | NEGATE",
		"0003  124 RETURN",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), strings.Join(lines, "\n"))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestDisassembleUnknownOpcode(t *testing.T) {
	c := &Chunk{Code: []byte{0x42, byte(OpReturn)}, Lines: []int{1, 1}}

	text, next := c.DisassembleInstruction(0)
	if !strings.Contains(text, "Unknown opcode 66") {
		t.Errorf("text = %q, want Unknown opcode 66", text)
	}
	if next != 1 {
		t.Errorf("next = %d, want 1", next)
	}
	if c.InstructionCount() != 2 {
		t.Errorf("InstructionCount() = %d, want 2", c.InstructionCount())
	}
}

func TestDisassembleTruncatedConstant(t *testing.T) {
	c := &Chunk{Code: []byte{byte(OpConstant)}, Lines: []int{1}}

	text, next := c.DisassembleInstruction(0)
	if !strings.Contains(text, "<truncated>") {
		t.Errorf("text = %q, want <truncated>", text)
	}
	if next != 1 {
		t.Errorf("next = %d, want 1", next)
	}
}

func TestDisassembleWithConstants(t *testing.T) {
	c := NewChunk()
	idx, _ := c.AddConstant(42)
	c.WriteOp(OpConstant, 1)
	c.Write(byte(idx), 1)
	c.WriteOp(OpReturn, 1)

	out := c.DisassembleWithName("answer")
	for _, want := range []string{"== answer ==", "; Constants (1):", "[  0] 42", "CONSTANT", "'42'", "RETURN"} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly missing %q:\n%s", want, out)
		}
	}
}
