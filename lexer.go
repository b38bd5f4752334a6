package ejs

import (
	"strconv"
	"strings"
)

// The lexer. Scans a rune cursor over the source, producing one
// token at a time for the recursive-descent parser in parser.go.

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokKeyword
	tokInt
	tokFloat
	tokString
	tokTemplateLiteral
	tokRegex
	tokPunct
)

type token struct {
	kind  tokenKind
	text  string   // identifier/keyword/punctuator text, or the decoded string contents
	ival  int64
	fval  float64
	parts []string // template-literal: alternating raw segments and `${expr}` source slices
	isExpr []bool
	at    Location
	start int // rune offset of the token's first rune, used to slice out source spans (see tokenize.go, call.go)
}

var keywords = map[string]bool{
	"var": true, "let": true, "const": true, "function": true, "return": true,
	"if": true, "else": true, "for": true, "while": true, "do": true,
	"break": true, "continue": true, "true": true, "false": true, "null": true,
	"undefined": true, "new": true, "delete": true, "typeof": true, "instanceof": true,
	"in": true, "of": true, "this": true, "throw": true, "try": true, "catch": true,
	"finally": true, "switch": true, "case": true, "default": true, "void": true,
	"class": true, "extends": true, "super": true, "static": true, "yield": true,
}

// lexer turns source text into tokens, tracking line starts for
// Location reporting (errors.go's locationAt).
type lexer struct {
	input     []rune
	cursor    int
	lineStart []int // rune-cursor offsets, ascending, index0 == line1

	tok     token
	peeked  *token
}

func newLexer(src string) *lexer {
	l := &lexer{input: []rune(src)}
	l.lineStart = []int{0}
	for i, r := range l.input {
		if r == '\n' {
			l.lineStart = append(l.lineStart, i+1)
		}
	}
	return l
}

func (l *lexer) locationAt(cursor int) Location {
	lo, hi := 0, len(l.lineStart)-1
	line := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		if l.lineStart[mid] <= cursor {
			line = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return Location{Line: line + 1, Column: cursor - l.lineStart[line] + 1}
}

// sourceSpan returns the source text between two rune offsets captured
// from token.start values, clamped to the input bounds.
func (l *lexer) sourceSpan(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(l.input) {
		end = len(l.input)
	}
	if end < start {
		return ""
	}
	return string(l.input[start:end])
}

func (l *lexer) peekRune() rune {
	if l.cursor >= len(l.input) {
		return 0
	}
	return l.input[l.cursor]
}

func (l *lexer) peekRuneAt(off int) rune {
	i := l.cursor + off
	if i >= len(l.input) {
		return 0
	}
	return l.input[i]
}

func (l *lexer) advance() rune {
	r := l.peekRune()
	l.cursor++
	return r
}

func (l *lexer) skipSpaceAndComments() {
	for {
		r := l.peekRune()
		switch {
		case r == ' ' || r == '\t' || r == '\r' || r == '\n':
			l.advance()
		case r == '/' && l.peekRuneAt(1) == '/':
			for l.peekRune() != '\n' && l.peekRune() != 0 {
				l.advance()
			}
		case r == '/' && l.peekRuneAt(1) == '*':
			l.advance()
			l.advance()
			for !(l.peekRune() == '*' && l.peekRuneAt(1) == '/') && l.peekRune() != 0 {
				l.advance()
			}
			l.advance()
			l.advance()
		default:
			return
		}
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool { return isIdentStart(r) || (r >= '0' && r <= '9') }

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// next scans and returns the next token, consuming it.
func (l *lexer) next() token {
	if l.peeked != nil {
		t := *l.peeked
		l.peeked = nil
		l.tok = t
		return t
	}
	t := l.scan()
	l.tok = t
	return t
}

// peek looks at the next token without consuming it (used by the
// parser for one-token lookahead decisions — arrow functions, `in`
// vs for-in, etc.).
func (l *lexer) peek() token {
	if l.peeked == nil {
		t := l.scan()
		l.peeked = &t
	}
	return *l.peeked
}

// scan skips leading whitespace/comments, records the resulting token's
// start offset, and dispatches to the per-kind scanner. Every returned
// token carries that offset so callers can slice out the exact source
// span a run of tokens came from (captureSource, tokenize.go's tokenise).
func (l *lexer) scan() token {
	l.skipSpaceAndComments()
	start := l.cursor
	t := l.scanOne()
	t.start = start
	return t
}

func (l *lexer) scanOne() token {
	at := l.locationAt(l.cursor)
	r := l.peekRune()
	if r == 0 {
		return token{kind: tokEOF, at: at}
	}

	switch {
	case isIdentStart(r):
		start := l.cursor
		for isIdentPart(l.peekRune()) {
			l.advance()
		}
		text := string(l.input[start:l.cursor])
		if keywords[text] {
			return token{kind: tokKeyword, text: text, at: at}
		}
		return token{kind: tokIdent, text: text, at: at}

	case isDigit(r) || (r == '.' && isDigit(l.peekRuneAt(1))):
		return l.scanNumber(at)

	case r == '"' || r == '\'':
		return l.scanString(r, at)

	case r == '`':
		return l.scanTemplateLiteral(at)

	case r == '/' && l.regexAllowedHere():
		return l.scanRegex(at)

	default:
		return l.scanPunct(at)
	}
}

func (l *lexer) scanNumber(at Location) token {
	start := l.cursor
	isFloat := false
	if l.peekRune() == '0' && (l.peekRuneAt(1) == 'x' || l.peekRuneAt(1) == 'X') {
		l.advance()
		l.advance()
		for isHex(l.peekRune()) {
			l.advance()
		}
		text := string(l.input[start:l.cursor])
		n, _ := strconv.ParseInt(text[2:], 16, 64)
		return token{kind: tokInt, text: text, ival: n, at: at}
	}
	for isDigit(l.peekRune()) {
		l.advance()
	}
	if l.peekRune() == '.' && isDigit(l.peekRuneAt(1)) {
		isFloat = true
		l.advance()
		for isDigit(l.peekRune()) {
			l.advance()
		}
	}
	if l.peekRune() == 'e' || l.peekRune() == 'E' {
		isFloat = true
		l.advance()
		if l.peekRune() == '+' || l.peekRune() == '-' {
			l.advance()
		}
		for isDigit(l.peekRune()) {
			l.advance()
		}
	}
	text := string(l.input[start:l.cursor])
	if isFloat {
		f, _ := strconv.ParseFloat(text, 64)
		return token{kind: tokFloat, text: text, fval: f, at: at}
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		f, _ := strconv.ParseFloat(text, 64)
		return token{kind: tokFloat, text: text, fval: f, at: at}
	}
	return token{kind: tokInt, text: text, ival: n, at: at}
}

func isHex(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func (l *lexer) scanString(quote rune, at Location) token {
	l.advance()
	var b strings.Builder
	for {
		r := l.peekRune()
		if r == 0 || r == quote {
			l.advance()
			break
		}
		if r == '\\' {
			l.advance()
			b.WriteRune(decodeEscape(l))
			continue
		}
		b.WriteRune(r)
		l.advance()
	}
	return token{kind: tokString, text: b.String(), at: at}
}

func decodeEscape(l *lexer) rune {
	r := l.advance()
	switch r {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '\\', '\'', '"', '`':
		return r
	default:
		return r
	}
}

// scanTemplateLiteral produces alternating raw/expression segments;
// the parser re-parses each expression segment as a full expression.
func (l *lexer) scanTemplateLiteral(at Location) token {
	l.advance() // opening backtick
	var parts []string
	var isExpr []bool
	var raw strings.Builder
	for {
		r := l.peekRune()
		if r == 0 || r == '`' {
			l.advance()
			parts = append(parts, raw.String())
			isExpr = append(isExpr, false)
			break
		}
		if r == '$' && l.peekRuneAt(1) == '{' {
			parts = append(parts, raw.String())
			isExpr = append(isExpr, false)
			raw.Reset()
			l.advance()
			l.advance()
			depth := 1
			var expr strings.Builder
			for depth > 0 {
				c := l.peekRune()
				if c == 0 {
					break
				}
				if c == '{' {
					depth++
				}
				if c == '}' {
					depth--
					if depth == 0 {
						l.advance()
						break
					}
				}
				expr.WriteRune(c)
				l.advance()
			}
			parts = append(parts, expr.String())
			isExpr = append(isExpr, true)
			continue
		}
		if r == '\\' {
			l.advance()
			raw.WriteRune(decodeEscape(l))
			continue
		}
		raw.WriteRune(r)
		l.advance()
	}
	return token{kind: tokTemplateLiteral, parts: parts, isExpr: isExpr, at: at}
}

// regexAllowedHere reports whether a `/` at the cursor should be
// scanned as the start of a regex literal rather than a division
// operator — true unless the previous token was something a value
// could follow (identifier, number, string, `)`, `]`, or a keyword
// like `this`/`true`/`false`/`null`).
func (l *lexer) regexAllowedHere() bool {
	switch l.tok.kind {
	case tokIdent, tokInt, tokFloat, tokString, tokTemplateLiteral, tokRegex:
		return false
	case tokPunct:
		return l.tok.text != ")" && l.tok.text != "]"
	case tokKeyword:
		switch l.tok.text {
		case "this", "true", "false", "null", "undefined", "super":
			return false
		}
		return true
	default:
		return true
	}
}

func (l *lexer) scanRegex(at Location) token {
	start := l.cursor
	l.advance() // opening /
	inClass := false
	for {
		r := l.peekRune()
		if r == 0 {
			break
		}
		if r == '\\' {
			l.advance()
			l.advance()
			continue
		}
		if r == '[' {
			inClass = true
		} else if r == ']' {
			inClass = false
		} else if r == '/' && !inClass {
			l.advance()
			break
		}
		l.advance()
	}
	for isIdentPart(l.peekRune()) { // flags
		l.advance()
	}
	return token{kind: tokRegex, text: string(l.input[start:l.cursor]), at: at}
}

var punctuators = []string{
	">>>=", "===", "!==", "**=", "<<=", ">>=", ">>>", "...",
	"=>", "==", "!=", "<=", ">=", "&&", "||", "??", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<", ">>", "**",
	"?.",
	"{", "}", "(", ")", "[", "]", ";", ",", ".", "?", ":",
	"+", "-", "*", "/", "%", "<", ">", "=", "!", "&", "|", "^", "~",
}

func (l *lexer) scanPunct(at Location) token {
	rest := l.input[l.cursor:]
	for _, p := range punctuators {
		pr := []rune(p)
		if len(rest) >= len(pr) && string(rest[:len(pr)]) == p {
			l.cursor += len(pr)
			return token{kind: tokPunct, text: p, at: at}
		}
	}
	r := l.advance()
	return token{kind: tokPunct, text: string(r), at: at}
}
