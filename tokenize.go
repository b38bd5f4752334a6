package ejs

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
)

// The compact pre-tokenised byte format: a lexed program cached as a
// byte stream so re-execution (or a saved "compiled" blob) skips
// re-scanning. Each token is one opcode byte, ints narrow to the
// smallest of RAW_INT0/8/16/32 and short strings inline as
// RAW_STRING8/16 instead of going through a constant pool.
//
// call.go's functionNode stores a function body exactly this way: the
// pre-tokenised bytes of its statement list, re-lexed and re-parsed
// fresh on every call via decodeTokens+printTokenisedString, rather
// than a permanently retained AST.

const (
	opEOF byte = iota
	opIdent
	opKeyword
	opRawInt8     // 1-byte payload
	opRawInt16    // 2-byte payload
	opRawInt32    // 4-byte payload
	opFloat64
	opRawString8  // 1-byte length prefix
	opRawString16 // 2-byte length prefix
	opPunct
	opString   // tokString: decoded contents via appendString
	opRegex    // tokRegex: verbatim literal text (delimiters+flags included)
	opTemplate // tokTemplateLiteral: part count, then per-part [isExpr][appendString]
	opRawInt0  // base of the inline 0..63 range — kept last so it never aliases a named opcode
)

const rawInt0Max = 63

// tokenise lexes a full source string into its token stream — the
// input side of both encodeTokens and printTokenisedString.
func tokenise(src string) []token {
	l := newLexer(src)
	var toks []token
	for {
		t := l.next()
		toks = append(toks, t)
		if t.kind == tokEOF {
			break
		}
	}
	return toks
}

// encodeTokens serialises a full token stream for caching.
func encodeTokens(toks []token) []byte {
	var code []byte
	for _, t := range toks {
		switch t.kind {
		case tokEOF:
			code = append(code, opEOF)
		case tokIdent:
			code = append(code, opIdent)
			code = appendString(code, t.text)
		case tokKeyword:
			code = append(code, opKeyword)
			code = appendString(code, t.text)
		case tokInt:
			code = appendInt(code, t.ival)
		case tokFloat:
			code = append(code, opFloat64)
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(t.fval))
			code = append(code, buf[:]...)
		case tokString:
			code = append(code, opString)
			code = appendString(code, t.text)
		case tokRegex:
			code = append(code, opRegex)
			code = appendString(code, t.text)
		case tokTemplateLiteral:
			code = append(code, opTemplate)
			code = append(code, byte(len(t.parts)))
			for i, part := range t.parts {
				if t.isExpr[i] {
					code = append(code, 1)
				} else {
					code = append(code, 0)
				}
				code = appendString(code, part)
			}
		case tokPunct:
			code = append(code, opPunct)
			code = appendString(code, t.text)
		}
	}
	code = append(code, opEOF)
	return code
}

func appendInt(code []byte, n int64) []byte {
	switch {
	case n >= 0 && n <= rawInt0Max:
		return append(code, opRawInt0+byte(n))
	case n >= -128 && n <= 127:
		return append(code, opRawInt8, byte(int8(n)))
	case n >= -32768 && n <= 32767:
		code = append(code, opRawInt16)
		return binary.LittleEndian.AppendUint16(code, uint16(int16(n)))
	default:
		code = append(code, opRawInt32)
		return binary.LittleEndian.AppendUint32(code, uint32(int32(n)))
	}
}

// appendString inlines a string's bytes directly into the stream
// (RAW_STRING8/16); nothing round-trips through a separate constant
// table.
func appendString(code []byte, s string) []byte {
	b := []byte(s)
	if len(b) < 256 {
		code = append(code, opRawString8, byte(len(b)))
	} else {
		code = append(code, opRawString16)
		code = binary.LittleEndian.AppendUint16(code, uint16(len(b)))
	}
	return append(code, b...)
}

// decodeTokens reverses encodeTokens — a pure function of the byte
// stream — used both by an embedding host replaying a persisted
// encodeTokens result and by call.go re-deriving a function's body
// on every invocation.
func decodeTokens(code []byte) []token {
	var toks []token
	i := 0
	readString := func() string {
		op := code[i]
		i++
		var n int
		if op == opRawString8 {
			n = int(code[i])
			i++
		} else {
			n = int(binary.LittleEndian.Uint16(code[i : i+2]))
			i += 2
		}
		s := string(code[i : i+n])
		i += n
		return s
	}
	for i < len(code) {
		op := code[i]
		switch {
		case op == opEOF:
			toks = append(toks, token{kind: tokEOF})
			i++
			return toks
		case op == opIdent:
			i++
			toks = append(toks, token{kind: tokIdent, text: readString()})
		case op == opKeyword:
			i++
			toks = append(toks, token{kind: tokKeyword, text: readString()})
		case op == opFloat64:
			i++
			bits := binary.LittleEndian.Uint64(code[i : i+8])
			i += 8
			toks = append(toks, token{kind: tokFloat, fval: math.Float64frombits(bits)})
		case op == opString:
			i++
			toks = append(toks, token{kind: tokString, text: readString()})
		case op == opRegex:
			i++
			toks = append(toks, token{kind: tokRegex, text: readString()})
		case op == opTemplate:
			i++
			n := int(code[i])
			i++
			parts := make([]string, 0, n)
			isExpr := make([]bool, 0, n)
			for k := 0; k < n; k++ {
				isExpr = append(isExpr, code[i] == 1)
				i++
				parts = append(parts, readString())
			}
			toks = append(toks, token{kind: tokTemplateLiteral, parts: parts, isExpr: isExpr})
		case op == opPunct:
			i++
			toks = append(toks, token{kind: tokPunct, text: readString()})
		case op >= opRawInt0:
			toks = append(toks, token{kind: tokInt, ival: int64(op - opRawInt0)})
			i++
		case op == opRawInt8:
			toks = append(toks, token{kind: tokInt, ival: int64(int8(code[i+1]))})
			i += 2
		case op == opRawInt16:
			v := int16(binary.LittleEndian.Uint16(code[i+1 : i+3]))
			toks = append(toks, token{kind: tokInt, ival: int64(v)})
			i += 3
		case op == opRawInt32:
			v := int32(binary.LittleEndian.Uint32(code[i+1 : i+5]))
			toks = append(toks, token{kind: tokInt, ival: int64(v)})
			i += 5
		default:
			i++
		}
	}
	return toks
}

// printTokenisedString renders a decoded token stream back into
// valid, re-lexable JS source text, inserting a space wherever two
// adjacent tokens would
// otherwise run together and parse as one.
func printTokenisedString(toks []token) string {
	var b strings.Builder
	prev := ""
	for _, t := range toks {
		if t.kind == tokEOF {
			break
		}
		cur := renderToken(t)
		if cur == "" {
			continue
		}
		if prev != "" && needsSeparator(prev[len(prev)-1], cur[0]) {
			b.WriteByte(' ')
		}
		b.WriteString(cur)
		prev = cur
	}
	return b.String()
}

func needsSeparator(last, first byte) bool {
	if isWordByte(last) && isWordByte(first) {
		return true // "var"+"x" must not become "varx"
	}
	if isPunctByte(last) && isPunctByte(first) {
		return true // "+"+"+" must not become "++"
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' || b == '$' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func isPunctByte(b byte) bool {
	return !isWordByte(b) && b != '"' && b != '\'' && b != '`'
}

func renderToken(t token) string {
	switch t.kind {
	case tokIdent, tokKeyword, tokPunct:
		return t.text
	case tokInt:
		return strconv.FormatInt(t.ival, 10)
	case tokFloat:
		return strconv.FormatFloat(t.fval, 'g', -1, 64)
	case tokString:
		return quoteJSString(t.text)
	case tokRegex:
		return t.text
	case tokTemplateLiteral:
		var b strings.Builder
		b.WriteByte('`')
		for i, part := range t.parts {
			if t.isExpr[i] {
				b.WriteString("${")
				b.WriteString(part)
				b.WriteByte('}')
			} else {
				b.WriteString(escapeTemplateRaw(part))
			}
		}
		b.WriteByte('`')
		return b.String()
	default:
		return ""
	}
}

// quoteJSString re-escapes a string literal's decoded contents into a
// double-quoted source form; it need not match the input's quote
// style, only evaluate to the same value.
func quoteJSString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func escapeTemplateRaw(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '`':
			b.WriteString("\\`")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
