// lexer.go — scanner for the command language: field names, $N instruction
// params, .tmp vars, @N cell refs, :symbols, signed/unsigned integers,
// quoted symbol text, and the handful of operators scripts use.
package hpvm

import (
	"fmt"
	"strconv"
)

// TokenType represents the kind of token.
type TokenType int

const (
	// Special
	EOF TokenType = iota
	ILLEGAL
	NEWLINE

	// Punctuation
	LROUND  // "("
	RROUND  // ")"
	LSQUARE // "["
	RSQUARE // "]"
	COMMA   // ","
	SLASH   // "/" in functors

	// Operators
	ARROW  // "<-"
	DEREF  // ".*"
	ADDROF // ".&"
	EQ     // "="
	NEQ    // "!="

	// Literals & identifiers
	ID
	TMPVAR // .name
	PARAM  // $1
	ATREF  // @7
	SYMBOL // :x  :'hello world'
	UINT   // 42
	SINT   // +1  -3
	QUOTED // 'text' (symbol text in functor position)

	// Keywords
	IF
	ELSE
	END
	NEXT
	TODO
	FAIL
	JUMP
)

// Token is a lexical token with optional literal value.
type Token struct {
	Type    TokenType
	Lexeme  string      // raw text slice
	Literal interface{} // parsed value for literals
	Line    int
	Col     int
}

// keywords map
var keywords = map[string]TokenType{
	"if":   IF,
	"else": ELSE,
	"end":  END,
	"next": NEXT,
	"todo": TODO,
	"fail": FAIL,
	"jump": JUMP,
}

// Lexer scans command-language source into tokens. Newlines are significant
// (they terminate statements) and are emitted as NEWLINE tokens.
type Lexer struct {
	src    string
	start  int // start index of current token
	cur    int // current index
	line   int // 1-based
	col    int // 0-based column within line
	tokens []Token

	// precise token start position
	tokStartLine int
	tokStartCol  int
}

// NewLexer creates a new lexer for the given source.
func NewLexer(src string) *Lexer {
	return &Lexer{
		src:  src,
		line: 1,
		col:  0,
	}
}

func (l *Lexer) isAtEnd() bool { return l.cur >= len(l.src) }

func (l *Lexer) peek() (byte, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	return l.src[l.cur], true
}

func (l *Lexer) advance() (byte, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	ch := l.src[l.cur]
	l.cur++
	if ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	return ch, true
}

func (l *Lexer) addToken(tt TokenType, lit interface{}) Token {
	lex := l.src[l.start:l.cur]
	tok := Token{
		Type:    tt,
		Lexeme:  lex,
		Literal: lit,
		Line:    l.tokStartLine,
		Col:     l.tokStartCol,
	}
	l.tokens = append(l.tokens, tok)
	l.start = l.cur
	return tok
}

func (l *Lexer) skipBlanks() {
	for !l.isAtEnd() {
		ch, _ := l.peek()
		switch ch {
		case ' ', '\r', '\t':
			l.advance()
			l.start = l.cur
		default:
			return
		}
	}
}

// helpers

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isAlpha(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' }
func isAlphaNum(b byte) bool {
	return isAlpha(b) || isDigit(b)
}

func (l *Lexer) err(msg string) error {
	return &LexError{Line: l.line, Col: l.col, Msg: msg}
}

// ----- scanners -----

// scanIdentifier parses [A-Za-z_][A-Za-z0-9_]* (first char already known).
func (l *Lexer) scanIdentifier() string {
	for {
		b, ok := l.peek()
		if !ok || !isAlphaNum(b) {
			break
		}
		l.advance()
	}
	return l.src[l.start:l.cur]
}

// scanDigits consumes a digit run and parses it.
func (l *Lexer) scanDigits() (int, error) {
	ds := l.cur
	for {
		b, ok := l.peek()
		if !ok || !isDigit(b) {
			break
		}
		l.advance()
	}
	if l.cur == ds {
		return 0, l.err("expected digits")
	}
	n, convErr := strconv.Atoi(l.src[ds:l.cur])
	if convErr != nil {
		return 0, l.err("invalid integer literal")
	}
	return n, nil
}

// scanQuoted parses '…' symbol text. Escapes: \' and \\ only.
func (l *Lexer) scanQuoted() (string, error) {
	var out []byte
	for !l.isAtEnd() {
		ch, _ := l.advance()
		switch ch {
		case '\'':
			return string(out), nil
		case '\\':
			esc, ok := l.advance()
			if !ok {
				return "", l.err("unfinished escape sequence")
			}
			switch esc {
			case '\'', '\\':
				out = append(out, esc)
			default:
				return "", l.err(fmt.Sprintf("invalid escape sequence: \\%c", esc))
			}
		case '\n':
			return "", l.err("quoted symbol was not terminated")
		default:
			out = append(out, ch)
		}
	}
	return "", l.err("quoted symbol was not terminated")
}

func (l *Lexer) ignoreUntilNewline() {
	for {
		b, ok := l.peek()
		if !ok || b == '\n' {
			return
		}
		l.advance()
	}
}

// ----- main scanner -----

func (l *Lexer) scanToken() (Token, error) {
	for {
		l.skipBlanks()
		l.tokStartLine = l.line
		l.tokStartCol = l.col
		l.start = l.cur

		if l.isAtEnd() {
			return l.addToken(EOF, nil), nil
		}

		ch, _ := l.advance()

		switch ch {
		case '\n':
			return l.addToken(NEWLINE, nil), nil
		case '(':
			return l.addToken(LROUND, "("), nil
		case ')':
			return l.addToken(RROUND, ")"), nil
		case '[':
			return l.addToken(LSQUARE, "["), nil
		case ']':
			return l.addToken(RSQUARE, "]"), nil
		case ',':
			return l.addToken(COMMA, ","), nil
		case '/':
			return l.addToken(SLASH, "/"), nil
		case '=':
			return l.addToken(EQ, "="), nil
		case '#':
			l.ignoreUntilNewline()
			l.start = l.cur
			continue
		}

		// Two-char operators
		switch ch {
		case '<':
			if b, ok := l.peek(); ok && b == '-' {
				l.advance()
				return l.addToken(ARROW, "<-"), nil
			}
			return Token{}, l.err("expected `-` after `<`")
		case '!':
			if b, ok := l.peek(); ok && b == '=' {
				l.advance()
				return l.addToken(NEQ, "!="), nil
			}
			return Token{}, l.err("expected `=` after `!`")
		case '.':
			b, ok := l.peek()
			switch {
			case ok && b == '*':
				l.advance()
				return l.addToken(DEREF, ".*"), nil
			case ok && b == '&':
				l.advance()
				return l.addToken(ADDROF, ".&"), nil
			case ok && isAlpha(b):
				l.advance()
				name := l.scanIdentifier()
				return l.addToken(TMPVAR, name[1:]), nil
			}
			return Token{}, l.err("expected `*`, `&` or a name after `.`")
		}

		// Sigil-prefixed literals
		switch ch {
		case '$':
			n, err := l.scanDigits()
			if err != nil {
				return Token{}, l.err("expected parameter number after `$`")
			}
			return l.addToken(PARAM, n), nil
		case '@':
			n, err := l.scanDigits()
			if err != nil {
				return Token{}, l.err("expected cell address after `@`")
			}
			return l.addToken(ATREF, n), nil
		case ':':
			b, ok := l.peek()
			switch {
			case ok && isAlpha(b):
				l.advance()
				name := l.scanIdentifier()
				return l.addToken(SYMBOL, name[1:]), nil
			case ok && b == '\'':
				l.advance()
				text, err := l.scanQuoted()
				if err != nil {
					return Token{}, err
				}
				return l.addToken(SYMBOL, text), nil
			}
			return Token{}, l.err("expected a symbol name after `:`")
		case '+', '-':
			n, err := l.scanDigits()
			if err != nil {
				return Token{}, l.err(fmt.Sprintf("expected digits after `%c`", ch))
			}
			if ch == '-' {
				n = -n
			}
			return l.addToken(SINT, int32(n)), nil
		}

		// Quoted symbol text (functor position)
		if ch == '\'' {
			text, err := l.scanQuoted()
			if err != nil {
				return Token{}, err
			}
			return l.addToken(QUOTED, text), nil
		}

		// Unsigned integers
		if isDigit(ch) {
			l.cur-- // rewind; scanDigits reads the whole run
			l.col--
			n, err := l.scanDigits()
			if err != nil {
				return Token{}, err
			}
			return l.addToken(UINT, n), nil
		}

		// Identifiers / keywords
		if isAlpha(ch) {
			lex := l.scanIdentifier()
			if tt, ok := keywords[lex]; ok {
				return l.addToken(tt, lex), nil
			}
			return l.addToken(ID, lex), nil
		}

		return Token{}, l.err(fmt.Sprintf("unexpected character: %q", ch))
	}
}

// Scan tokenizes the entire source and returns tokens (EOF included).
func (l *Lexer) Scan() ([]Token, error) {
	for {
		tok, err := l.scanToken()
		if err != nil {
			return nil, err
		}
		if tok.Type == EOF {
			return l.tokens, nil
		}
	}
}
