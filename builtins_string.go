package ejs

import (
	"math"
	"strings"

	"github.com/dlclark/regexp2"
)

// installStringPrototype wires String.prototype, the method table
// for string values. Every method here indexes bytes, not runes —
// string indexing is byte-oriented throughout the engine.
func (e *Engine) installStringPrototype() {
	proto := e.newObject()

	e.setOwn(proto, "charAt", e.newNativeFunction(nf("charAt", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		s := e.toStringDeep(this)
		i := int(e.toInt32(arg(args, 0, e)))
		if i < 0 || i >= len(s) {
			return e.newString(""), nil
		}
		return e.newString(s[i : i+1]), nil
	})))
	e.setOwn(proto, "charCodeAt", e.newNativeFunction(nf("charCodeAt", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		s := e.toStringDeep(this)
		i := int(e.toInt32(arg(args, 0, e)))
		if i < 0 || i >= len(s) {
			return e.newFloat(math.NaN()), nil
		}
		return e.newInt(int32(s[i])), nil
	})))
	e.setOwn(proto, "at", e.newNativeFunction(nf("at", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		s := e.toStringDeep(this)
		i := int(e.toInt32(arg(args, 0, e)))
		if i < 0 {
			i += len(s)
		}
		if i < 0 || i >= len(s) {
			return e.newUndefined(), nil
		}
		return e.newString(s[i : i+1]), nil
	})))
	e.setOwn(proto, "indexOf", e.newNativeFunction(nf("indexOf", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		s := e.toStringDeep(this)
		sub := e.toStringDeep(arg(args, 0, e))
		from := 0
		if len(args) > 1 {
			from = int(e.toInt32(args[1]))
			if from < 0 {
				from = 0
			}
			if from > len(s) {
				from = len(s)
			}
		}
		idx := strings.Index(s[from:], sub)
		if idx < 0 {
			return e.newInt(-1), nil
		}
		return e.newInt(int32(idx + from)), nil
	})))
	e.setOwn(proto, "lastIndexOf", e.newNativeFunction(nf("lastIndexOf", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		s := e.toStringDeep(this)
		sub := e.toStringDeep(arg(args, 0, e))
		return e.newInt(int32(strings.LastIndex(s, sub))), nil
	})))
	e.setOwn(proto, "includes", e.newNativeFunction(nf("includes", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		return e.newBool(strings.Contains(e.toStringDeep(this), e.toStringDeep(arg(args, 0, e)))), nil
	})))
	e.setOwn(proto, "startsWith", e.newNativeFunction(nf("startsWith", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		return e.newBool(strings.HasPrefix(e.toStringDeep(this), e.toStringDeep(arg(args, 0, e)))), nil
	})))
	e.setOwn(proto, "endsWith", e.newNativeFunction(nf("endsWith", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		return e.newBool(strings.HasSuffix(e.toStringDeep(this), e.toStringDeep(arg(args, 0, e)))), nil
	})))
	e.setOwn(proto, "slice", e.newNativeFunction(nf("slice", 2, func(e *Engine, this ref, args []ref) (ref, error) {
		s := e.toStringDeep(this)
		start, end := sliceBounds(e, args, int32(len(s)))
		return e.newString(s[start:end]), nil
	})))
	e.setOwn(proto, "substring", e.newNativeFunction(nf("substring", 2, func(e *Engine, this ref, args []ref) (ref, error) {
		s := e.toStringDeep(this)
		n := int32(len(s))
		start, end := clampIndex(e, args, 0, n), n
		if len(args) > 1 && !e.isUndefined(args[1]) {
			end = clampIndex(e, args, 1, n)
		}
		if start > end {
			start, end = end, start
		}
		return e.newString(s[start:end]), nil
	})))
	e.setOwn(proto, "substr", e.newNativeFunction(nf("substr", 2, func(e *Engine, this ref, args []ref) (ref, error) {
		s := e.toStringDeep(this)
		n := int32(len(s))
		start := int32(0)
		if len(args) > 0 {
			start = e.toInt32(args[0])
			if start < 0 {
				start += n
				if start < 0 {
					start = 0
				}
			}
		}
		length := n - start
		if len(args) > 1 && !e.isUndefined(args[1]) {
			length = e.toInt32(args[1])
		}
		if start > n {
			start = n
		}
		end := start + length
		if end > n {
			end = n
		}
		if end < start {
			end = start
		}
		return e.newString(s[start:end]), nil
	})))
	e.setOwn(proto, "toUpperCase", e.newNativeFunction(nf("toUpperCase", 0, func(e *Engine, this ref, args []ref) (ref, error) {
		return e.newString(strings.ToUpper(e.toStringDeep(this))), nil
	})))
	e.setOwn(proto, "toLowerCase", e.newNativeFunction(nf("toLowerCase", 0, func(e *Engine, this ref, args []ref) (ref, error) {
		return e.newString(strings.ToLower(e.toStringDeep(this))), nil
	})))
	e.setOwn(proto, "trim", e.newNativeFunction(nf("trim", 0, func(e *Engine, this ref, args []ref) (ref, error) {
		return e.newString(trimSpace(e.toStringDeep(this))), nil
	})))
	e.setOwn(proto, "trimStart", e.newNativeFunction(nf("trimStart", 0, func(e *Engine, this ref, args []ref) (ref, error) {
		return e.newString(strings.TrimLeft(e.toStringDeep(this), " \t\n\r")), nil
	})))
	e.setOwn(proto, "trimEnd", e.newNativeFunction(nf("trimEnd", 0, func(e *Engine, this ref, args []ref) (ref, error) {
		return e.newString(strings.TrimRight(e.toStringDeep(this), " \t\n\r")), nil
	})))
	e.setOwn(proto, "concat", e.newNativeFunction(nf("concat", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		out := e.toStringDeep(this)
		for _, a := range args {
			out += e.toStringDeep(a)
		}
		return e.newString(out), nil
	})))
	e.setOwn(proto, "repeat", e.newNativeFunction(nf("repeat", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		n := int(e.toInt32(arg(args, 0, e)))
		if n < 0 {
			return refNull, e.throwRangeError("invalid count value")
		}
		return e.newString(strings.Repeat(e.toStringDeep(this), n)), nil
	})))
	e.setOwn(proto, "padStart", e.newNativeFunction(nf("padStart", 2, func(e *Engine, this ref, args []ref) (ref, error) {
		return e.newString(padString(e.toStringDeep(this), args, e, true)), nil
	})))
	e.setOwn(proto, "padEnd", e.newNativeFunction(nf("padEnd", 2, func(e *Engine, this ref, args []ref) (ref, error) {
		return e.newString(padString(e.toStringDeep(this), args, e, false)), nil
	})))
	e.setOwn(proto, "split", e.newNativeFunction(nf("split", 2, func(e *Engine, this ref, args []ref) (ref, error) {
		s := e.toStringDeep(this)
		out := e.newArray()
		if len(args) == 0 || e.isUndefined(args[0]) {
			e.arraySet(out, 0, e.newString(s))
			return out, nil
		}
		if e.isRegExp(args[0]) {
			parts := e.splitByRegExp(e.regexps[args[0]], s)
			for i, p := range parts {
				e.arraySet(out, int32(i), e.newString(p))
			}
			return out, nil
		}
		sep := e.toStringDeep(args[0])
		var parts []string
		if sep == "" {
			for i := 0; i < len(s); i++ {
				parts = append(parts, s[i:i+1])
			}
		} else {
			parts = strings.Split(s, sep)
		}
		for i, p := range parts {
			e.arraySet(out, int32(i), e.newString(p))
		}
		return out, nil
	})))
	e.setOwn(proto, "replace", e.newNativeFunction(nf("replace", 2, func(e *Engine, this ref, args []ref) (ref, error) {
		return e.stringReplace(this, args, false)
	})))
	e.setOwn(proto, "replaceAll", e.newNativeFunction(nf("replaceAll", 2, func(e *Engine, this ref, args []ref) (ref, error) {
		return e.stringReplace(this, args, true)
	})))
	e.setOwn(proto, "match", e.newNativeFunction(nf("match", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		s := e.toStringDeep(this)
		target := arg(args, 0, e)
		var ent *regexpEntry
		if e.isRegExp(target) {
			ent = e.regexps[target]
		} else {
			re, err := e.newRegExp(e.toStringDeep(target), "")
			if err != nil {
				return refNull, err
			}
			ent = e.regexps[re]
		}
		if !ent.global {
			m, err := ent.re.FindStringMatch(s)
			if err != nil || m == nil {
				return e.newNull(), nil
			}
			return e.matchToArray(m, s), nil
		}
		out := e.newArray()
		i := int32(0)
		m, err := ent.re.FindStringMatch(s)
		for err == nil && m != nil {
			e.arraySet(out, i, e.newString(m.String()))
			i++
			m, err = ent.re.FindNextMatch(m)
		}
		if i == 0 {
			return e.newNull(), nil
		}
		return out, nil
	})))
	e.setOwn(proto, "toString", e.newNativeFunction(nf("toString", 0, func(e *Engine, this ref, args []ref) (ref, error) {
		return e.newString(e.toStringDeep(this)), nil
	})))

	// String-as-constructor (static methods) on the global "String"
	// installed by installGlobalFunctions.
	if ctor, ok := e.resolveVar("String"); ok {
		e.setOwn(ctor, "prototype", proto)
		e.setOwn(ctor, "fromCharCode", e.newNativeFunction(nf("fromCharCode", 1, func(e *Engine, this ref, args []ref) (ref, error) {
			b := make([]byte, len(args))
			for i, a := range args {
				b[i] = byte(e.toInt32(a))
			}
			return e.newString(string(b)), nil
		})))
	}
	e.stringProto = proto
}

func clampIndex(e *Engine, args []ref, i int, n int32) int32 {
	if i >= len(args) || e.isUndefined(args[i]) {
		return 0
	}
	v := e.toInt32(args[i])
	if v < 0 {
		return 0
	}
	if v > n {
		return n
	}
	return v
}

func padString(s string, args []ref, e *Engine, start bool) string {
	target := int(e.toInt32(arg(args, 0, e)))
	pad := " "
	if len(args) > 1 && !e.isUndefined(args[1]) {
		pad = e.toStringDeep(args[1])
	}
	if pad == "" || len(s) >= target {
		return s
	}
	need := target - len(s)
	var b strings.Builder
	for b.Len() < need {
		b.WriteString(pad)
	}
	fill := b.String()[:need]
	if start {
		return fill + s
	}
	return s + fill
}

func (e *Engine) splitByRegExp(ent *regexpEntry, s string) []string {
	var parts []string
	last := 0
	m, err := ent.re.FindStringMatch(s)
	for err == nil && m != nil {
		parts = append(parts, s[last:m.Index])
		last = m.Index + m.Length
		m, err = ent.re.FindNextMatch(m)
	}
	parts = append(parts, s[last:])
	return parts
}

// stringReplace backs both replace() and replaceAll(): a string
// pattern replaces at most one occurrence unless global was forced
// (replaceAll on a string, or a /g-flagged RegExp); a RegExp pattern
// honors its own global flag, and a function replacement is invoked
// with (match, ...groups, offset, string) per ECMAScript.
func (e *Engine) stringReplace(this ref, args []ref, forceAll bool) (ref, error) {
	s := e.toStringDeep(this)
	pattern := arg(args, 0, e)
	repl := arg(args, 1, e)

	replaceOne := func(matched string, idx int) (string, error) {
		if e.isFunction(repl) {
			r, err := e.callValue(repl, e.newUndefined(), []ref{e.newString(matched), e.newInt(int32(idx)), e.newString(s)})
			if err != nil {
				return "", err
			}
			return e.toStringDeep(r), nil
		}
		return e.toStringDeep(repl), nil
	}

	if e.isRegExp(pattern) {
		ent := e.regexps[pattern]
		all := forceAll || ent.global
		var b strings.Builder
		last := 0
		m, err := ent.re.FindStringMatch(s)
		for err == nil && m != nil {
			if ierr := e.interruptCheck(); ierr != nil {
				return refNull, ierr
			}
			b.WriteString(s[last:m.Index])
			var out string
			if e.isFunction(repl) {
				callArgs := []ref{e.newString(m.String())}
				for _, g := range m.Groups()[1:] {
					if len(g.Captures) == 0 {
						callArgs = append(callArgs, e.newUndefined())
					} else {
						callArgs = append(callArgs, e.newString(g.String()))
					}
				}
				callArgs = append(callArgs, e.newInt(int32(m.Index)), e.newString(s))
				r, cerr := e.callValue(repl, e.newUndefined(), callArgs)
				if cerr != nil {
					return refNull, cerr
				}
				out = e.toStringDeep(r)
			} else {
				out = expandRegexpTemplate(e.toStringDeep(repl), m)
			}
			b.WriteString(out)
			last = m.Index + m.Length
			if !all {
				break
			}
			m, err = ent.re.FindNextMatch(m)
		}
		b.WriteString(s[last:])
		return e.newString(b.String()), nil
	}

	sub := e.toStringDeep(pattern)
	if sub == "" {
		return e.newString(s), nil
	}
	if !forceAll {
		idx := strings.Index(s, sub)
		if idx < 0 {
			return e.newString(s), nil
		}
		out, err := replaceOne(sub, idx)
		if err != nil {
			return refNull, err
		}
		return e.newString(s[:idx] + out + s[idx+len(sub):]), nil
	}
	var b strings.Builder
	rest := s
	offset := 0
	for {
		if ierr := e.interruptCheck(); ierr != nil {
			return refNull, ierr
		}
		idx := strings.Index(rest, sub)
		if idx < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:idx])
		out, err := replaceOne(sub, offset+idx)
		if err != nil {
			return refNull, err
		}
		b.WriteString(out)
		rest = rest[idx+len(sub):]
		offset += idx + len(sub)
	}
	return e.newString(b.String()), nil
}

// expandRegexpTemplate resolves $1, $2, $&, $$ in a non-function
// replacement string against one regexp2 match.
func expandRegexpTemplate(tmpl string, m *regexp2.Match) string {
	var b strings.Builder
	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] != '$' || i+1 >= len(tmpl) {
			b.WriteByte(tmpl[i])
			continue
		}
		next := tmpl[i+1]
		switch {
		case next == '$':
			b.WriteByte('$')
			i++
		case next == '&':
			b.WriteString(m.String())
			i++
		case next >= '0' && next <= '9':
			n := int(next - '0')
			groups := m.Groups()
			if n < len(groups) {
				b.WriteString(groups[n].String())
			}
			i++
		default:
			b.WriteByte('$')
		}
	}
	return b.String()
}
