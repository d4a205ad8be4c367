package vm

import (
	"errors"
	"fmt"
)

// ErrAlreadyRun is returned when Run is called on a VM that has already run.
var ErrAlreadyRun = errors.New("vm: already run")

// FaultKind classifies a runtime fault.
type FaultKind int

const (
	FaultStackUnderflow FaultKind = iota // pop from an empty stack
	FaultInvalidOpcode                   // byte is not an opcode
	FaultTruncated                       // operand missing at end of code
	FaultBadConstant                     // constant index outside the pool
	FaultNoReturn                        // code ended without RETURN
)

var faultNames = [...]string{
	FaultStackUnderflow: "stack underflow",
	FaultInvalidOpcode:  "invalid opcode",
	FaultTruncated:      "truncated instruction",
	FaultBadConstant:    "bad constant",
	FaultNoReturn:       "no return",
}

func (k FaultKind) String() string {
	if k >= 0 && int(k) < len(faultNames) {
		return faultNames[k]
	}
	return fmt.Sprintf("FaultKind(%d)", int(k))
}

// RuntimeError is a fatal fault raised while executing a chunk.
type RuntimeError struct {
	Kind    FaultKind
	Offset  int // offset of the faulting instruction
	Line    int // source line of the faulting instruction, 0 if unknown
	Message string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s\n[line %d] in script", e.Message, e.Line)
}

// IsRuntimeError reports whether err is a *RuntimeError and returns it.
func IsRuntimeError(err error) (*RuntimeError, bool) {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
