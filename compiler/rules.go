package compiler

import "fmt"

// Precedence is an operator's binding power, lowest first.
type Precedence uint8

const (
	PrecNone       Precedence = iota
	PrecAssignment            // =
	PrecOr                    // or
	PrecAnd                   // and
	PrecEquality              // == !=
	PrecComparison            // < > <= >=
	PrecTerm                  // + -
	PrecFactor                // * / %
	PrecUnary                 // - !
	PrecCall                  // . ()
	PrecPrimary
)

var precedenceNames = [...]string{
	PrecNone:       "none",
	PrecAssignment: "assignment",
	PrecOr:         "or",
	PrecAnd:        "and",
	PrecEquality:   "equality",
	PrecComparison: "comparison",
	PrecTerm:       "term",
	PrecFactor:     "factor",
	PrecUnary:      "unary",
	PrecCall:       "call",
	PrecPrimary:    "primary",
}

func (p Precedence) String() string {
	if int(p) < len(precedenceNames) {
		return precedenceNames[p]
	}
	return fmt.Sprintf("Precedence(%d)", uint8(p))
}

// Next returns the next higher binding power, saturating at PrecPrimary.
// Binary operators parse their right operand at Next() of their own
// precedence, which makes them left-associative.
func (p Precedence) Next() Precedence {
	if p >= PrecPrimary {
		return PrecPrimary
	}
	return p + 1
}

// parseFn is a prefix or infix handler.
type parseFn func(c *Compiler)

// ParseRule describes how a token takes part in an expression.
type ParseRule struct {
	Prefix     parseFn
	Infix      parseFn
	Precedence Precedence
}

// rules is indexed by TokenType. It is filled once by init and never
// written afterwards.
var rules [tokenTypeCount]ParseRule

func init() {
	table := map[TokenType]ParseRule{
		TokenLeftParen: {Prefix: (*Compiler).grouping},
		TokenMinus:     {Prefix: (*Compiler).unary, Infix: (*Compiler).binary, Precedence: PrecTerm},
		TokenPlus:      {Infix: (*Compiler).binary, Precedence: PrecTerm},
		TokenSlash:     {Infix: (*Compiler).binary, Precedence: PrecFactor},
		TokenStar:      {Infix: (*Compiler).binary, Precedence: PrecFactor},
		TokenPercent:   {Infix: (*Compiler).binary, Precedence: PrecFactor},
		TokenNumber:    {Prefix: (*Compiler).number},
	}
	for t, rule := range table {
		rules[t] = rule
	}
}

// ruleFor returns the parse rule for t. Unknown types get the empty rule.
func ruleFor(t TokenType) ParseRule {
	if t < 0 || t >= tokenTypeCount {
		return ParseRule{}
	}
	return rules[t]
}
