// Package vm executes compiled expression chunks.
//
// This package contains:
//   - A stack machine over IEEE-754 doubles
//   - Runtime faults for malformed chunks
//   - Instruction tracing
package vm
