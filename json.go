package ejs

import (
	"strconv"
	"strings"
)

// JSON.stringify and JSON.parse, sharing the engine's iterator
// façade: the encoder dispatches recursively on each cell's own
// variant and walks containers and strings through the same
// Iterator/stringIter machinery the evaluator uses; the parser is a
// plain recursive-descent pass building engine cells directly.

func (e *Engine) installJSON() {
	j := e.newObject()
	e.setOwn(e.root, "JSON", j)

	e.setOwn(j, "stringify", e.newNativeFunction(nf("stringify", 3, func(e *Engine, this ref, args []ref) (ref, error) {
		if len(args) == 0 || e.isUndefined(args[0]) {
			return e.newUndefined(), nil
		}
		indent := ""
		if len(args) > 2 {
			switch {
			case e.isNumeric(args[2]):
				n := int(e.toInt32(args[2]))
				if n > 10 {
					n = 10
				}
				if n > 0 {
					indent = strings.Repeat(" ", n)
				}
			case e.isString(args[2]):
				indent = e.stringValue(args[2])
			}
		}
		w := newJSONWriter(indent)
		if !w.encode(e, args[0]) {
			return e.newUndefined(), nil
		}
		return e.newString(w.output.String()), nil
	})))

	e.setOwn(j, "parse", e.newNativeFunction(nf("parse", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		src := e.toStringDeep(arg(args, 0, e))
		p := &jsonParser{e: e, src: src}
		p.skipSpace()
		v, err := p.parseValue()
		if err != nil {
			return refNull, err
		}
		p.skipSpace()
		if p.pos != len(p.src) {
			return refNull, e.throwSyntaxError("JSON.parse: unexpected trailing data at offset %d", p.pos)
		}
		return v, nil
	})))
}

// jsonWriter is a strings.Builder plus a nesting depth; indentation
// is pushed/popped once per structural nesting level.
type jsonWriter struct {
	output *strings.Builder
	indent string
	depth  int
}

func newJSONWriter(indent string) *jsonWriter {
	return &jsonWriter{output: &strings.Builder{}, indent: indent}
}

func (w *jsonWriter) pretty() bool { return w.indent != "" }

func (w *jsonWriter) newline() {
	if !w.pretty() {
		return
	}
	w.output.WriteByte('\n')
	for i := 0; i < w.depth; i++ {
		w.output.WriteString(w.indent)
	}
}

// encode writes v's JSON text into w, skipping undefined/function
// values per JSON.stringify's "property is omitted" rule. Returns
// false when v itself is one of those (the top-level "no output"
// case, handled by the caller).
func (w *jsonWriter) encode(e *Engine, v ref) bool {
	switch {
	case e.isUndefined(v) || e.isFunction(v):
		return false
	case e.isNull(v):
		w.output.WriteString("null")
	case e.isBoolean(v):
		if e.toBool(v) {
			w.output.WriteString("true")
		} else {
			w.output.WriteString("false")
		}
	case e.isNumeric(v):
		n := e.toNumber(v)
		if isNaNFloat(n) || isInfFloat(n) {
			w.output.WriteString("null")
		} else {
			w.output.WriteString(strconv.FormatFloat(n, 'g', -1, 64))
		}
	case e.isString(v):
		w.encodeStringRef(e, v)
	case e.isArray(v):
		w.encodeArray(e, v)
	case e.isObject(v):
		w.encodeObject(e, v)
	default:
		return false
	}
	return true
}

func (w *jsonWriter) encodeArray(e *Engine, arr ref) {
	length := e.arrayLength(arr)
	if length == 0 {
		w.output.WriteString("[]")
		return
	}
	w.output.WriteByte('[')
	w.depth++
	it := e.newArrayFullIterator(arr)
	first := true
	for it.hasElement() {
		if !first {
			w.output.WriteByte(',')
		}
		first = false
		w.newline()
		el := it.getValue()
		if !w.encode(e, el) {
			w.output.WriteString("null")
		}
		it.next()
	}
	w.depth--
	w.newline()
	w.output.WriteByte(']')
}

func (w *jsonWriter) encodeObject(e *Engine, obj ref) {
	it := e.newObjectIterator(obj)
	w.output.WriteByte('{')
	w.depth++
	first := true
	for it.hasElement() {
		key := it.getKey()
		val := it.getValue()
		sub := newJSONWriter(w.indent)
		sub.depth = w.depth
		if sub.encode(e, val) {
			if !first {
				w.output.WriteByte(',')
			}
			first = false
			w.newline()
			w.encodeString(e.toStringDeep(key))
			w.output.WriteByte(':')
			if w.pretty() {
				w.output.WriteByte(' ')
			}
			w.output.WriteString(sub.output.String())
		}
		it.next()
	}
	w.depth--
	if !first {
		w.newline()
	}
	w.output.WriteByte('}')
}

func (w *jsonWriter) encodeString(s string) {
	w.output.WriteByte('"')
	for i := 0; i < len(s); i++ {
		w.encodeByte(s[i])
	}
	w.output.WriteByte('"')
}

// encodeStringRef walks a string cell's bytes through its stringIter
// rather than materialising the whole value first: chained, flat and
// native strings all look the same to the caller.
func (w *jsonWriter) encodeStringRef(e *Engine, r ref) {
	w.output.WriteByte('"')
	it := e.newStringIter(r)
	for it.hasChar() {
		w.encodeByte(it.getAndNext())
	}
	w.output.WriteByte('"')
}

func (w *jsonWriter) encodeByte(c byte) {
	switch c {
	case '"':
		w.output.WriteString(`\"`)
	case '\\':
		w.output.WriteString(`\\`)
	case '\n':
		w.output.WriteString(`\n`)
	case '\r':
		w.output.WriteString(`\r`)
	case '\t':
		w.output.WriteString(`\t`)
	default:
		if c < 0x20 {
			w.output.WriteString("\\u00")
			w.output.WriteByte(hexDigit(c >> 4))
			w.output.WriteByte(hexDigit(c & 0xf))
		} else {
			w.output.WriteByte(c)
		}
	}
}

func hexDigit(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'a' + n - 10
}

func isNaNFloat(f float64) bool { return f != f }
func isInfFloat(f float64) bool { return f > 1.7e308 || f < -1.7e308 }

// jsonParser is a straight recursive-descent parser over the source
// bytes, one parse* method per grammar production, building engine
// cells as it goes.
type jsonParser struct {
	e   *Engine
	src string
	pos int
}

func (p *jsonParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *jsonParser) errf(format string, args ...any) error {
	args = append([]any{p.pos}, args...)
	return p.e.throwSyntaxError("JSON.parse: "+format+" (at offset %d)", args...)
}

func (p *jsonParser) parseValue() (ref, error) {
	if p.pos >= len(p.src) {
		return refNull, p.errf("unexpected end of input")
	}
	switch c := p.src[p.pos]; {
	case c == '{':
		return p.parseObject()
	case c == '[':
		return p.parseArray()
	case c == '"':
		s, err := p.parseStringLiteral()
		if err != nil {
			return refNull, err
		}
		return p.e.newString(s), nil
	case c == 't':
		return p.parseLiteral("true", p.e.newBool(true))
	case c == 'f':
		return p.parseLiteral("false", p.e.newBool(false))
	case c == 'n':
		return p.parseLiteral("null", p.e.newNull())
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	default:
		return refNull, p.errf("unexpected character %q", c)
	}
}

func (p *jsonParser) parseLiteral(lit string, v ref) (ref, error) {
	if p.pos+len(lit) > len(p.src) || p.src[p.pos:p.pos+len(lit)] != lit {
		return refNull, p.errf("invalid literal, expected %q", lit)
	}
	p.pos += len(lit)
	return v, nil
}

func (p *jsonParser) parseNumber() (ref, error) {
	start := p.pos
	if p.src[p.pos] == '-' {
		p.pos++
	}
	for p.pos < len(p.src) && isASCIIDigit(p.src[p.pos]) {
		p.pos++
	}
	if p.pos < len(p.src) && p.src[p.pos] == '.' {
		p.pos++
		for p.pos < len(p.src) && isASCIIDigit(p.src[p.pos]) {
			p.pos++
		}
	}
	if p.pos < len(p.src) && (p.src[p.pos] == 'e' || p.src[p.pos] == 'E') {
		p.pos++
		if p.pos < len(p.src) && (p.src[p.pos] == '+' || p.src[p.pos] == '-') {
			p.pos++
		}
		for p.pos < len(p.src) && isASCIIDigit(p.src[p.pos]) {
			p.pos++
		}
	}
	text := p.src[start:p.pos]
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return refNull, p.errf("invalid number literal %q", text)
	}
	return p.e.newFloat(n), nil
}

func isASCIIDigit(c byte) bool { return c >= '0' && c <= '9' }

func (p *jsonParser) parseStringLiteral() (string, error) {
	if p.src[p.pos] != '"' {
		return "", p.errf("expected string")
	}
	p.pos++
	var b strings.Builder
	for {
		if p.pos >= len(p.src) {
			return "", p.errf("unterminated string")
		}
		c := p.src[p.pos]
		if c == '"' {
			p.pos++
			return b.String(), nil
		}
		if c == '\\' {
			p.pos++
			if p.pos >= len(p.src) {
				return "", p.errf("unterminated escape")
			}
			switch p.src[p.pos] {
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			case '/':
				b.WriteByte('/')
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case 'u':
				if p.pos+4 >= len(p.src) {
					return "", p.errf("truncated \\u escape")
				}
				n, err := strconv.ParseUint(p.src[p.pos+1:p.pos+5], 16, 32)
				if err != nil {
					return "", p.errf("invalid \\u escape")
				}
				b.WriteRune(rune(n))
				p.pos += 4
			default:
				return "", p.errf("invalid escape %q", p.src[p.pos])
			}
			p.pos++
			continue
		}
		b.WriteByte(c)
		p.pos++
	}
}

func (p *jsonParser) parseArray() (ref, error) {
	p.pos++ // '['
	arr := p.e.newArray()
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == ']' {
		p.pos++
		return arr, nil
	}
	idx := int32(0)
	for {
		p.skipSpace()
		v, err := p.parseValue()
		if err != nil {
			return refNull, err
		}
		p.e.arraySet(arr, idx, v)
		idx++
		p.skipSpace()
		if p.pos >= len(p.src) {
			return refNull, p.errf("unterminated array")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return arr, nil
		default:
			return refNull, p.errf("expected ',' or ']'")
		}
	}
}

func (p *jsonParser) parseObject() (ref, error) {
	p.pos++ // '{'
	obj := p.e.newObject()
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '}' {
		p.pos++
		return obj, nil
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != '"' {
			return refNull, p.errf("expected object key string")
		}
		key, err := p.parseStringLiteral()
		if err != nil {
			return refNull, err
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != ':' {
			return refNull, p.errf("expected ':' after object key")
		}
		p.pos++
		p.skipSpace()
		v, err := p.parseValue()
		if err != nil {
			return refNull, err
		}
		p.e.setOwn(obj, key, v)
		p.skipSpace()
		if p.pos >= len(p.src) {
			return refNull, p.errf("unterminated object")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return obj, nil
		default:
			return refNull, p.errf("expected ',' or '}'")
		}
	}
}
