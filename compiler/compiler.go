package compiler

import (
	"errors"
	"io"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/tliron/commonlog"

	"github.com/chazu/ember/pkg/bytecode"
)

var log = commonlog.GetLogger("ember.compiler")

// MaxNestingDepth bounds how deeply prefix operators and parentheses may
// nest. Deeper input gets a capacity diagnostic instead of exhausting the
// goroutine stack.
const MaxNestingDepth = 1024

// Option configures a Compiler.
type Option func(*Compiler)

// WithDisassembly writes a listing of the finished chunk to w after a
// successful compile.
func WithDisassembly(w io.Writer) Option {
	return func(c *Compiler) { c.listing = w }
}

// Compiler is a single-pass compiler: it parses an expression by precedence
// climbing and emits bytecode as it goes, without building a tree.
//
// One Compiler compiles one source unit.
type Compiler struct {
	scanner *Scanner
	chunk   *bytecode.Chunk

	current  Token
	previous Token

	hadError  bool
	panicMode bool
	errs      *multierror.Error

	depth    int
	compiled bool
	listing  io.Writer
}

// New creates a compiler that emits into chunk.
func New(source string, chunk *bytecode.Chunk, opts ...Option) *Compiler {
	c := &Compiler{
		scanner: NewScanner(source),
		chunk:   chunk,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile compiles source into a fresh chunk. On failure the chunk is
// discarded and the error carries every *Diagnostic (see Diagnostics).
func Compile(source string, opts ...Option) (*bytecode.Chunk, error) {
	chunk := bytecode.NewChunk()
	c := New(source, chunk, opts...)
	if !c.Compile() {
		return nil, c.Err()
	}
	return chunk, nil
}

// Compile runs the compiler. It returns true when the chunk is safe to
// execute; false means at least one diagnostic was reported and the chunk
// must be discarded. Calling Compile again returns the first outcome.
func (c *Compiler) Compile() bool {
	if c.compiled {
		return !c.hadError
	}
	c.compiled = true

	c.advance()
	c.expression()
	c.consume(TokenEOF, "Expect end of expression.")
	c.endCompiler()

	if c.hadError {
		log.Debugf("compile failed with %d diagnostic(s)", len(c.errs.Errors))
	}
	return !c.hadError
}

// HadError reports whether any diagnostic was recorded.
func (c *Compiler) HadError() bool {
	return c.hadError
}

// Diagnostics returns the recorded diagnostics in detection order.
func (c *Compiler) Diagnostics() []*Diagnostic {
	return Diagnostics(c.Err())
}

// Err returns the accumulated diagnostics as one error, or nil.
func (c *Compiler) Err() error {
	return c.errs.ErrorOrNil()
}

// Chunk returns the chunk being compiled into.
func (c *Compiler) Chunk() *bytecode.Chunk {
	return c.chunk
}

// ---------------------------------------------------------------------------
// Token stream
// ---------------------------------------------------------------------------

// advance shifts current into previous and reads the next non-error token.
// Error tokens are reported on the way; after the first one panic mode
// swallows the rest.
func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.scanner.ScanToken()
		if c.current.Type != TokenError {
			break
		}
		c.errorAtCurrent(c.current.Message)
	}
}

func (c *Compiler) consume(t TokenType, message string) {
	if c.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (c *Compiler) expression() {
	c.parsePrecedence(PrecAssignment)
}

// parsePrecedence parses an expression whose operators bind at least as
// tightly as min.
func (c *Compiler) parsePrecedence(min Precedence) {
	if c.depth >= MaxNestingDepth {
		c.report(c.current, KindCapacity, "Expression nests too deeply.")
		c.skipToEnd()
		return
	}
	c.depth++
	defer func() { c.depth-- }()

	c.advance()
	prefix := ruleFor(c.previous.Type).Prefix
	if prefix == nil {
		c.error("Expect expression.")
		return
	}
	prefix(c)

	for min <= ruleFor(c.current.Type).Precedence {
		c.advance()
		infix := ruleFor(c.previous.Type).Infix
		if infix == nil {
			return
		}
		infix(c)
	}
}

// skipToEnd discards the rest of the input so every pending level unwinds
// without parsing further.
func (c *Compiler) skipToEnd() {
	for c.current.Type != TokenEOF {
		c.advance()
	}
}

func (c *Compiler) number() {
	value, err := strconv.ParseFloat(c.previous.Lexeme, 64)
	// Out-of-range literals round to ±Inf, like any other float overflow.
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		c.error("Invalid number literal.")
		return
	}
	c.emitConstant(value)
}

func (c *Compiler) grouping() {
	c.expression()
	c.consume(TokenRightParen, "Expect ')' after expression.")
}

func (c *Compiler) unary() {
	operator := c.previous.Type

	// Compile the operand.
	c.parsePrecedence(PrecUnary)

	switch operator {
	case TokenMinus:
		c.emitOp(bytecode.OpNegate)
	}
}

func (c *Compiler) binary() {
	operator := c.previous.Type
	rule := ruleFor(operator)

	// Compile the right operand one level tighter: left-associative.
	c.parsePrecedence(rule.Precedence.Next())

	switch operator {
	case TokenPlus:
		c.emitOp(bytecode.OpAdd)
	case TokenMinus:
		c.emitOp(bytecode.OpSubtract)
	case TokenStar:
		c.emitOp(bytecode.OpMultiply)
	case TokenSlash:
		c.emitOp(bytecode.OpDivide)
	case TokenPercent:
		c.emitOp(bytecode.OpModulo)
	}
}

// ---------------------------------------------------------------------------
// Code generation
// ---------------------------------------------------------------------------

// emitByte writes b tagged with the line of the token just consumed.
func (c *Compiler) emitByte(b byte) {
	c.chunk.Write(b, c.previous.Line)
}

func (c *Compiler) emitOp(op bytecode.Opcode) {
	c.emitByte(byte(op))
}

func (c *Compiler) emitConstant(value float64) {
	idx := c.makeConstant(value)
	c.emitOp(bytecode.OpConstant)
	c.emitByte(idx)
}

// makeConstant adds value to the pool. When the pool is full it reports a
// capacity diagnostic and returns index 0 so compilation can carry on.
func (c *Compiler) makeConstant(value float64) byte {
	idx, err := c.chunk.AddConstant(value)
	if err != nil {
		c.report(c.previous, KindCapacity, "Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

func (c *Compiler) endCompiler() {
	c.emitOp(bytecode.OpReturn)
	if c.listing != nil && !c.hadError {
		c.chunk.WriteDisassembly(c.listing, "code")
	}
}

// ---------------------------------------------------------------------------
// Error reporting
// ---------------------------------------------------------------------------

func (c *Compiler) error(message string) {
	c.errorAt(c.previous, message)
}

func (c *Compiler) errorAtCurrent(message string) {
	c.errorAt(c.current, message)
}

func (c *Compiler) errorAt(tok Token, message string) {
	kind := KindSyntax
	if tok.Type == TokenError {
		kind = KindLexical
	}
	c.report(tok, kind, message)
}

// report records a diagnostic unless panic mode is already latched. There
// is no statement boundary to resynchronize at, so panic mode stays set for
// the rest of the expression.
func (c *Compiler) report(tok Token, kind Kind, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true

	d := &Diagnostic{
		Kind:    kind,
		Line:    tok.Line,
		Column:  tok.Column,
		Length:  tok.End - tok.Start,
		AtEnd:   tok.Type == TokenEOF,
		Message: message,
	}
	if kind != KindLexical && !d.AtEnd {
		d.Lexeme = tok.Lexeme
	}
	log.Debugf("%s", d)

	c.errs = multierror.Append(c.errs, d)
	c.errs.ErrorFormat = formatDiagnostics
}
