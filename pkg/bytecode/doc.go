// Package bytecode defines the compiled form of an ember expression and the
// tools that inspect it.
//
// A Chunk holds three parallel pieces of data:
//
//   - Code: opcode and operand bytes. Every opcode is one byte; only
//     CONSTANT carries an operand (a one-byte constant pool index).
//   - Constants: the numeric literal pool, at most MaxConstants entries.
//   - Lines: the source line of every code byte, so len(Lines) == len(Code).
//
// There is no length field in the instruction stream. Decoders use
// Opcode.OperandLen to step from one instruction to the next, and Decode
// rejects bytes outside the instruction set instead of trusting the stream.
//
// # Instruction set
//
//	CONSTANT <idx>  push Constants[idx]
//	ADD SUBTRACT MULTIPLY DIVIDE MODULO
//	                pop right, pop left, push left op right
//	NEGATE          pop one, push its negation
//	RETURN          pop the result and stop
//
// # Serialization
//
// Chunks can be written to disk with MarshalChunk: the "EMBC" magic followed
// by canonical CBOR. UnmarshalChunk validates the chunk before returning it.
package bytecode
