package vm

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/ember/pkg/bytecode"
)

var log = commonlog.GetLogger("ember.vm")

// DefaultStackCapacity is the initial operand stack size. The stack grows
// past it when needed.
const DefaultStackCapacity = 256

// ---------------------------------------------------------------------------
// InterpretResult
// ---------------------------------------------------------------------------

// InterpretResult is the coarse outcome of interpreting a program.
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	// InterpretCompileError is produced by the pipeline, never by the VM.
	InterpretCompileError
	InterpretRuntimeError
)

func (r InterpretResult) String() string {
	switch r {
	case InterpretOK:
		return "ok"
	case InterpretCompileError:
		return "compile error"
	case InterpretRuntimeError:
		return "runtime error"
	default:
		return fmt.Sprintf("InterpretResult(%d)", int(r))
	}
}

// ---------------------------------------------------------------------------
// VM
// ---------------------------------------------------------------------------

// Option configures a VM.
type Option func(*VM)

// WithTrace writes the stack and the disassembled instruction to w before
// each instruction executes.
func WithTrace(w io.Writer) Option {
	return func(vm *VM) { vm.trace = w }
}

// WithStackCapacity sets the initial operand stack capacity.
func WithStackCapacity(n int) Option {
	return func(vm *VM) {
		if n > 0 {
			vm.stack = make([]float64, 0, n)
		}
	}
}

// VM executes one chunk. It is not safe for concurrent use.
type VM struct {
	chunk *bytecode.Chunk
	ip    int       // offset of the next byte to read
	stack []float64 // operand stack; top is the last element
	trace io.Writer

	ran    bool
	result float64
	err    error
}

// New creates a VM for chunk.
func New(chunk *bytecode.Chunk, opts ...Option) *VM {
	vm := &VM{
		chunk: chunk,
		stack: make([]float64, 0, DefaultStackCapacity),
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// Run executes the chunk from offset 0 until RETURN and returns the value it
// popped. A VM runs at most once; later calls return ErrAlreadyRun.
func (vm *VM) Run() (float64, error) {
	if vm.ran {
		return 0, ErrAlreadyRun
	}
	vm.ran = true
	if vm.chunk == nil {
		vm.chunk = bytecode.NewChunk()
	}

	vm.result, vm.err = vm.run()
	if vm.err != nil {
		log.Errorf("%s", vm.err)
	} else {
		log.Debugf("result %s", bytecode.FormatNumber(vm.result))
	}
	return vm.result, vm.err
}

// Interpret runs the chunk and reports only the outcome class. The value
// and fault are available from Result and Err afterwards.
func (vm *VM) Interpret() InterpretResult {
	if _, err := vm.Run(); err != nil {
		return InterpretRuntimeError
	}
	return InterpretOK
}

// Result returns the value produced by a successful run.
func (vm *VM) Result() float64 {
	return vm.result
}

// Err returns the fault that stopped the run, or nil.
func (vm *VM) Err() error {
	return vm.err
}

// StackDepth returns the number of values on the operand stack.
func (vm *VM) StackDepth() int {
	return len(vm.stack)
}

// ---------------------------------------------------------------------------
// Dispatch loop
// ---------------------------------------------------------------------------

func (vm *VM) run() (float64, error) {
	code := vm.chunk.Code
	constants := vm.chunk.Constants

	for {
		if vm.ip >= len(code) {
			return 0, vm.fault(FaultNoReturn, vm.ip, "Reached end of code without RETURN.")
		}
		if vm.trace != nil {
			vm.traceInstruction()
		}

		offset := vm.ip
		op, err := bytecode.Decode(code[offset])
		if err != nil {
			return 0, vm.fault(FaultInvalidOpcode, offset, fmt.Sprintf("Unknown opcode %d", code[offset]))
		}
		vm.ip++

		switch op {
		case bytecode.OpConstant:
			if vm.ip >= len(code) {
				return 0, vm.fault(FaultTruncated, offset, "Truncated CONSTANT instruction.")
			}
			idx := int(code[vm.ip])
			vm.ip++
			if idx >= len(constants) {
				return 0, vm.fault(FaultBadConstant, offset,
					fmt.Sprintf("Constant index %d out of range (pool size %d).", idx, len(constants)))
			}
			vm.push(constants[idx])

		case bytecode.OpAdd:
			if err := vm.binary(offset, func(a, b float64) float64 { return a + b }); err != nil {
				return 0, err
			}

		case bytecode.OpSubtract:
			if err := vm.binary(offset, func(a, b float64) float64 { return a - b }); err != nil {
				return 0, err
			}

		case bytecode.OpMultiply:
			if err := vm.binary(offset, func(a, b float64) float64 { return a * b }); err != nil {
				return 0, err
			}

		case bytecode.OpDivide:
			if err := vm.binary(offset, func(a, b float64) float64 { return a / b }); err != nil {
				return 0, err
			}

		case bytecode.OpModulo:
			if err := vm.binary(offset, math.Mod); err != nil {
				return 0, err
			}

		case bytecode.OpNegate:
			v, err := vm.pop(offset)
			if err != nil {
				return 0, err
			}
			vm.push(-v)

		case bytecode.OpReturn:
			return vm.pop(offset)
		}
	}
}

// binary pops the right operand, then the left, and pushes fn(left, right).
func (vm *VM) binary(offset int, fn func(a, b float64) float64) error {
	b, err := vm.pop(offset)
	if err != nil {
		return err
	}
	a, err := vm.pop(offset)
	if err != nil {
		return err
	}
	vm.push(fn(a, b))
	return nil
}

// ---------------------------------------------------------------------------
// Stack operations
// ---------------------------------------------------------------------------

func (vm *VM) push(v float64) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop(offset int) (float64, error) {
	n := len(vm.stack)
	if n == 0 {
		return 0, vm.fault(FaultStackUnderflow, offset, "Stack underflow.")
	}
	v := vm.stack[n-1]
	vm.stack = vm.stack[:n-1]
	return v, nil
}

func (vm *VM) fault(kind FaultKind, offset int, message string) *RuntimeError {
	return &RuntimeError{
		Kind:    kind,
		Offset:  offset,
		Line:    vm.chunk.Line(offset),
		Message: message,
	}
}

// ---------------------------------------------------------------------------
// Tracing
// ---------------------------------------------------------------------------

func (vm *VM) traceInstruction() {
	var sb strings.Builder
	sb.WriteString("          ")
	for _, v := range vm.stack {
		fmt.Fprintf(&sb, "[ %s ]", bytecode.FormatNumber(v))
	}
	sb.WriteByte('\n')
	text, _ := vm.chunk.DisassembleInstruction(vm.ip)
	sb.WriteString(text)
	sb.WriteByte('\n')
	io.WriteString(vm.trace, sb.String())
}
