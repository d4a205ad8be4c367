package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Kind classifies a compile diagnostic.
type Kind int

const (
	KindLexical  Kind = iota // unexpected character, unterminated string
	KindSyntax               // unexpected token
	KindCapacity             // constant pool overflow, nesting too deep
)

func (k Kind) String() string {
	switch k {
	case KindLexical:
		return "lexical"
	case KindSyntax:
		return "syntax"
	case KindCapacity:
		return "capacity"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Diagnostic is a single compile error with its source location.
type Diagnostic struct {
	Kind    Kind
	Line    int
	Column  int
	Length  int    // length of the offending token in runes
	Lexeme  string // offending token text; empty for lexical errors and at end
	AtEnd   bool   // reported at end of input
	Message string
}

// Error renders the diagnostic as
//
//	<line>: Error at '<lexeme>'
//	 <message>
func (d *Diagnostic) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d: Error", d.Line)
	switch {
	case d.AtEnd:
		sb.WriteString(" at end")
	case d.Kind != KindLexical:
		fmt.Fprintf(&sb, " at '%s'", d.Lexeme)
	}
	fmt.Fprintf(&sb, "\n %s", d.Message)
	return sb.String()
}

// Diagnostics extracts every *Diagnostic carried by err.
func Diagnostics(err error) []*Diagnostic {
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		var out []*Diagnostic
		for _, e := range merr.Errors {
			out = append(out, Diagnostics(e)...)
		}
		return out
	}
	var d *Diagnostic
	if errors.As(err, &d) {
		return []*Diagnostic{d}
	}
	return nil
}

// formatDiagnostics joins diagnostics one after another, as they are printed
// to the diagnostic stream.
func formatDiagnostics(errs []error) string {
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "\n")
}
