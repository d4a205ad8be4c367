// Package pipeline compiles source and runs it on a fresh VM, reporting the
// outcome as a single Result.
package pipeline

import (
	"io"

	"github.com/chazu/ember/compiler"
	"github.com/chazu/ember/pkg/bytecode"
	"github.com/chazu/ember/vm"
)

// Options controls optional output produced along the way.
type Options struct {
	// Disassembly receives a listing of the chunk after a successful compile.
	Disassembly io.Writer
	// Trace receives the per-instruction execution trace.
	Trace io.Writer
}

// Result is the outcome of compiling and/or running one program.
type Result struct {
	Status      vm.InterpretResult
	Value       float64
	Chunk       *bytecode.Chunk
	Diagnostics []*compiler.Diagnostic
	Fault       *vm.RuntimeError

	err error
}

// OK reports whether the program ran to completion.
func (r *Result) OK() bool {
	return r.Status == vm.InterpretOK
}

// Display renders the value the way the CLI prints it.
func (r *Result) Display() string {
	return bytecode.FormatNumber(r.Value)
}

// Err returns the compile or runtime error, or nil on success.
func (r *Result) Err() error {
	return r.err
}

// Compile compiles source without running it. On success Status is
// InterpretOK and Chunk is set.
func Compile(source string, opts Options) *Result {
	var copts []compiler.Option
	if opts.Disassembly != nil {
		copts = append(copts, compiler.WithDisassembly(opts.Disassembly))
	}
	chunk, err := compiler.Compile(source, copts...)
	if err != nil {
		return &Result{
			Status:      vm.InterpretCompileError,
			Diagnostics: compiler.Diagnostics(err),
			err:         err,
		}
	}
	return &Result{Status: vm.InterpretOK, Chunk: chunk}
}

// Interpret compiles source and, if that succeeds, runs it.
func Interpret(source string, opts Options) *Result {
	res := Compile(source, opts)
	if !res.OK() {
		return res
	}
	return Execute(res.Chunk, opts)
}

// Execute runs an already compiled chunk.
func Execute(chunk *bytecode.Chunk, opts Options) *Result {
	var vopts []vm.Option
	if opts.Trace != nil {
		vopts = append(vopts, vm.WithTrace(opts.Trace))
	}
	machine := vm.New(chunk, vopts...)
	res := &Result{Chunk: chunk}
	res.Status = machine.Interpret()
	res.Value = machine.Result()
	if err := machine.Err(); err != nil {
		res.err = err
		res.Fault, _ = vm.IsRuntimeError(err)
	}
	return res
}
