package bytecode

import (
	"errors"
	"fmt"
)

// Opcode represents a bytecode instruction.
type Opcode byte

const (
	OpConstant Opcode = iota // Push constant from pool: OpConstant <index:u8>
	OpAdd                    // Pop two, push sum
	OpSubtract               // Pop two, push difference (a - b where b is TOS)
	OpMultiply               // Pop two, push product
	OpDivide                 // Pop two, push quotient
	OpModulo                 // Pop two, push floating-point remainder
	OpNegate                 // Negate top of stack
	OpReturn                 // Pop result and stop

	opcodeCount
)

// ErrInvalidOpcode is returned by Decode for bytes outside the instruction set.
var ErrInvalidOpcode = errors.New("invalid opcode")

// OpcodeInfo provides metadata about each opcode for decoding, tracing and validation.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // How many values popped from stack
	StackPush  int    // How many values pushed to stack
	OperandLen int    // Number of operand bytes following the opcode
}

var opcodeInfoTable = [opcodeCount]OpcodeInfo{
	OpConstant: {"CONSTANT", 0, 1, 1},
	OpAdd:      {"ADD", 2, 1, 0},
	OpSubtract: {"SUBTRACT", 2, 1, 0},
	OpMultiply: {"MULTIPLY", 2, 1, 0},
	OpDivide:   {"DIVIDE", 2, 1, 0},
	OpModulo:   {"MODULO", 2, 1, 0},
	OpNegate:   {"NEGATE", 1, 1, 0},
	OpReturn:   {"RETURN", 1, 0, 0},
}

// Decode converts a raw code byte into an Opcode.
func Decode(b byte) (Opcode, error) {
	if b >= byte(opcodeCount) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidOpcode, b)
	}
	return Opcode(b), nil
}

// Valid reports whether op is part of the instruction set.
func (op Opcode) Valid() bool {
	return op < opcodeCount
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns an OpcodeInfo named "UNKNOWN(n)" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if !op.Valid() {
		return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(%d)", byte(op))}
	}
	return opcodeInfoTable[op]
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsBinary returns true for the two-operand arithmetic opcodes.
func (op Opcode) IsBinary() bool {
	return op >= OpAdd && op <= OpModulo
}

// AllOpcodes returns every defined opcode in encoding order.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, 0, opcodeCount)
	for op := Opcode(0); op < opcodeCount; op++ {
		ops = append(ops, op)
	}
	return ops
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return int(opcodeCount)
}
