package compiler

// ---------------------------------------------------------------------------
// Scanner: produces one token per call
// ---------------------------------------------------------------------------

// sentinel terminates every source buffer.
const sentinel rune = 0

// Scanner converts source text into tokens on demand.
type Scanner struct {
	src       []rune
	start     int // first rune of the token being scanned
	current   int // next rune to read
	line      int // current line (1-based)
	lineStart int // rune offset of the current line start
	startLine int
	startCol  int
}

// NewScanner creates a scanner over source. The text is decoded into runes
// and terminated with a NUL sentinel.
func NewScanner(source string) *Scanner {
	src := []rune(source)
	if len(src) == 0 || src[len(src)-1] != sentinel {
		src = append(src, sentinel)
	}
	return &Scanner{src: src, line: 1}
}

// ScanAll scans source through the end-of-input token, which is included.
func ScanAll(source string) []Token {
	s := NewScanner(source)
	var tokens []Token
	for {
		tok := s.ScanToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}

// ScanToken returns the next token. Once the input is exhausted it keeps
// returning TokenEOF.
func (s *Scanner) ScanToken() Token {
	s.skipWhitespace()
	s.start = s.current
	s.startLine = s.line
	s.startCol = s.current - s.lineStart + 1

	if s.isAtEnd() {
		return s.makeToken(TokenEOF)
	}

	c := s.advance()
	switch {
	case isAlpha(c):
		return s.identifier()
	case isDigit(c):
		return s.number()
	}

	switch c {
	case '(':
		return s.makeToken(TokenLeftParen)
	case ')':
		return s.makeToken(TokenRightParen)
	case '{':
		return s.makeToken(TokenLeftBrace)
	case '}':
		return s.makeToken(TokenRightBrace)
	case ';':
		return s.makeToken(TokenSemicolon)
	case ',':
		return s.makeToken(TokenComma)
	case '.':
		return s.makeToken(TokenDot)
	case '-':
		return s.makeToken(TokenMinus)
	case '+':
		return s.makeToken(TokenPlus)
	case '/':
		return s.makeToken(TokenSlash)
	case '*':
		return s.makeToken(TokenStar)
	case '%':
		return s.makeToken(TokenPercent)
	case '!':
		return s.makeToken(s.either('=', TokenBangEqual, TokenBang))
	case '=':
		return s.makeToken(s.either('=', TokenEqualEqual, TokenEqual))
	case '<':
		return s.makeToken(s.either('=', TokenLessEqual, TokenLess))
	case '>':
		return s.makeToken(s.either('=', TokenGreaterEqual, TokenGreater))
	case '"':
		return s.string()
	}

	return s.errorToken("Unexpected character.")
}

// skipWhitespace consumes whitespace and line comments until the next
// character starts a token. Every iteration consumes at least one rune.
func (s *Scanner) skipWhitespace() {
	for {
		switch s.peek() {
		case ' ', '\r', '\t':
			s.advance()
		case '\n':
			s.advance()
			s.newline()
		case '/':
			if s.peekNext() != '/' {
				return
			}
			for s.peek() != '\n' && !s.isAtEnd() {
				s.advance()
			}
		default:
			return
		}
	}
}

func (s *Scanner) string() Token {
	for s.peek() != '"' && !s.isAtEnd() {
		if s.advance() == '\n' {
			s.newline()
		}
	}
	if s.isAtEnd() {
		return s.errorToken("Unterminated string.")
	}
	s.advance() // closing quote
	return s.makeToken(TokenString)
}

func (s *Scanner) number() Token {
	for isDigit(s.peek()) {
		s.advance()
	}
	// A fractional part needs at least one digit after the dot.
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.advance()
		for isDigit(s.peek()) {
			s.advance()
		}
	}
	return s.makeToken(TokenNumber)
}

func (s *Scanner) identifier() Token {
	for isAlpha(s.peek()) || isDigit(s.peek()) {
		s.advance()
	}
	return s.makeToken(LookupIdent(string(s.src[s.start:s.current])))
}

// isAtEnd reports whether the cursor sits on the sentinel or past the buffer.
func (s *Scanner) isAtEnd() bool {
	return s.current >= len(s.src) || s.src[s.current] == sentinel
}

func (s *Scanner) advance() rune {
	if s.current >= len(s.src) {
		return sentinel
	}
	c := s.src[s.current]
	s.current++
	return c
}

func (s *Scanner) peek() rune {
	if s.current >= len(s.src) {
		return sentinel
	}
	return s.src[s.current]
}

func (s *Scanner) peekNext() rune {
	if s.isAtEnd() || s.current+1 >= len(s.src) {
		return sentinel
	}
	return s.src[s.current+1]
}

// either consumes expected and returns matched, or returns otherwise.
func (s *Scanner) either(expected rune, matched, otherwise TokenType) TokenType {
	if s.isAtEnd() || s.src[s.current] != expected {
		return otherwise
	}
	s.current++
	return matched
}

func (s *Scanner) newline() {
	s.line++
	s.lineStart = s.current
}

func (s *Scanner) makeToken(t TokenType) Token {
	return Token{
		Type:   t,
		Lexeme: string(s.src[s.start:s.current]),
		Start:  s.start,
		End:    s.current,
		Line:   s.startLine,
		Column: s.startCol,
	}
}

func (s *Scanner) errorToken(message string) Token {
	return Token{
		Type:    TokenError,
		Start:   s.start,
		End:     s.current,
		Line:    s.startLine,
		Column:  s.startCol,
		Message: message,
	}
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

func isAlpha(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}
