package bytecode

import (
	"errors"
	"fmt"
	"math"
)

// BytecodeVersion is the current bytecode format version.
// Increment when making incompatible changes to the format.
const BytecodeVersion uint16 = 1

// MaxConstants is the constant pool capacity. CONSTANT carries a one-byte
// index, so a chunk can address at most 256 literals.
const MaxConstants = math.MaxUint8 + 1

// ErrTooManyConstants is returned by AddConstant when the pool is full.
var ErrTooManyConstants = errors.New("too many constants in one chunk")

// Chunk is a compiled unit of bytecode: instruction bytes, the numeric
// constant pool, and a source line for every code byte.
//
// Lines is parallel to Code: len(Lines) == len(Code) after every Write.
type Chunk struct {
	Code      []byte
	Constants []float64
	Lines     []int
}

// NewChunk creates a new empty chunk.
func NewChunk() *Chunk {
	return &Chunk{
		Code:      make([]byte, 0, 64),
		Constants: make([]float64, 0, 8),
		Lines:     make([]int, 0, 64),
	}
}

// Write appends a single byte tagged with its source line.
func (c *Chunk) Write(b byte, line int) int {
	offset := len(c.Code)
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
	return offset
}

// WriteOp appends an opcode byte tagged with its source line.
func (c *Chunk) WriteOp(op Opcode, line int) int {
	return c.Write(byte(op), line)
}

// AddConstant adds a numeric constant to the pool and returns its index.
// If an identical value already exists, returns the existing index.
func (c *Chunk) AddConstant(value float64) (int, error) {
	bits := math.Float64bits(value)
	for i, v := range c.Constants {
		if math.Float64bits(v) == bits {
			return i, nil
		}
	}
	if len(c.Constants) >= MaxConstants {
		return 0, ErrTooManyConstants
	}
	c.Constants = append(c.Constants, value)
	return len(c.Constants) - 1, nil
}

// Line returns the source line recorded for the byte at offset, or 0 when
// the offset is out of range.
func (c *Chunk) Line(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return 0
	}
	return c.Lines[offset]
}

// Len returns the length of the code section.
func (c *Chunk) Len() int {
	return len(c.Code)
}

// ConstantCount returns the number of constants in the pool.
func (c *Chunk) ConstantCount() int {
	return len(c.Constants)
}

// Validate checks that the chunk is well formed: the line table matches the
// code, every opcode decodes, no instruction is cut short, and every
// constant operand addresses the pool.
func (c *Chunk) Validate() error {
	if len(c.Lines) != len(c.Code) {
		return fmt.Errorf("line table has %d entries for %d code bytes", len(c.Lines), len(c.Code))
	}
	if len(c.Constants) > MaxConstants {
		return fmt.Errorf("constant pool holds %d entries, limit is %d", len(c.Constants), MaxConstants)
	}
	for offset := 0; offset < len(c.Code); {
		op, err := Decode(c.Code[offset])
		if err != nil {
			return fmt.Errorf("offset %04d: %w", offset, err)
		}
		next := offset + op.InstructionLen()
		if next > len(c.Code) {
			return fmt.Errorf("offset %04d: %s truncated", offset, op)
		}
		if op == OpConstant {
			if idx := int(c.Code[offset+1]); idx >= len(c.Constants) {
				return fmt.Errorf("offset %04d: constant index %d out of range (pool size %d)", offset, idx, len(c.Constants))
			}
		}
		offset = next
	}
	return nil
}
