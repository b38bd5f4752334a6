package ejs

import (
	"github.com/dlclark/regexp2"
)

// RegExp support, deliberately scoped to a small backtracking
// matcher: github.com/dlclark/regexp2 is a backtracking engine
// (unlike stdlib regexp's RE2 automaton), which is how JS regexes
// actually behave. A RegExp value is a plain object carrying the
// compiled *regexp2.Regexp in a side table keyed by cell ref, the
// same "small cells, side table for the expensive bit" pattern
// call.go uses for function bodies.

func (e *Engine) installRegExpSupport() {
	ctor := nf("RegExp", 2, func(e *Engine, this ref, args []ref) (ref, error) {
		pattern := ""
		flags := ""
		if len(args) > 0 {
			if e.isRegExp(args[0]) {
				pattern = e.regexps[args[0]].source
				flags = e.regexps[args[0]].flags
			} else {
				pattern = e.toStringDeep(args[0])
			}
		}
		if len(args) > 1 && !e.isUndefined(args[1]) {
			flags = e.toStringDeep(args[1])
		}
		return e.newRegExp(pattern, flags)
	})
	e.setOwn(e.root, "RegExp", e.newNativeFunction(ctor))
}

// regexpEntry is the side-table payload for a RegExp value cell,
// keeping the compiled matcher (and its source, for `.toString()`/
// re-flagging) off the fixed-size cell the way call.go keeps function
// bodies off it.
type regexpEntry struct {
	re        *regexp2.Regexp
	source    string
	flags     string
	global    bool
	ignoreC   bool
	lastMatch *regexp2.Match // global-flag exec() iteration state
}

func regexp2Options(flags string) regexp2.RegexOptions {
	opts := regexp2.None
	for _, f := range flags {
		switch f {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			opts |= regexp2.Singleline
		}
	}
	return opts
}

// newRegExp compiles `pattern` under `flags` and wraps it in a plain
// object exposing `source`/`flags`/`global`/`lastIndex`, the minimal
// RegExp shape the evaluator's replace/match/split/test/exec paths need.
func (e *Engine) newRegExp(pattern, flags string) (ref, error) {
	re, err := regexp2.Compile(pattern, regexp2Options(flags))
	if err != nil {
		return refNull, e.throwSyntaxError("invalid regular expression: %s", err)
	}
	obj := e.newObject()
	e.regexps[obj] = &regexpEntry{
		re:      re,
		source:  pattern,
		flags:   flags,
		global:  containsByte(flags, 'g'),
		ignoreC: containsByte(flags, 'i'),
	}
	e.setOwn(obj, "source", e.newString(pattern))
	e.setOwn(obj, "flags", e.newString(flags))
	e.setOwn(obj, "global", e.newBool(containsByte(flags, 'g')))
	e.setOwn(obj, "ignoreCase", e.newBool(containsByte(flags, 'i')))
	e.setOwn(obj, "lastIndex", e.newInt(0))
	e.setOwn(obj, "test", e.newNativeFunction(nf("test", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		s := e.toStringDeep(arg(args, 0, e))
		m, err := e.regexps[this].re.FindStringMatch(s)
		if err != nil {
			return e.newBool(false), nil
		}
		return e.newBool(m != nil), nil
	})))
	e.setOwn(obj, "exec", e.newNativeFunction(nf("exec", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		s := e.toStringDeep(arg(args, 0, e))
		ent := e.regexps[this]
		m, err := e.nextRegExpMatch(ent, s)
		if err != nil || m == nil {
			ent.lastMatch = nil
			if ent.global {
				e.setOwn(this, "lastIndex", e.newInt(0))
			}
			return e.newNull(), nil
		}
		ent.lastMatch = m
		if ent.global {
			e.setOwn(this, "lastIndex", e.newInt(int32(m.Index+m.Length)))
		}
		return e.matchToArray(m, s), nil
	})))
	return obj, nil
}

// nextRegExpMatch advances a (possibly global) regexp's match state:
// the first call on a fresh regexpEntry starts from the beginning of
// `s`; subsequent calls on a global regexp resume after the previous
// match via regexp2.FindNextMatch, matching JS `exec`'s lastIndex-
// driven iteration without depending on a start-offset search API.
func (e *Engine) nextRegExpMatch(ent *regexpEntry, s string) (*regexp2.Match, error) {
	if ent.global && ent.lastMatch != nil {
		return ent.re.FindNextMatch(ent.lastMatch)
	}
	return ent.re.FindStringMatch(s)
}

func (e *Engine) isRegExp(r ref) bool {
	_, ok := e.regexps[r]
	return ok
}

// findPropValue is a convenience wrapper used by builtins that only
// want a property's value, not the name cell findProperty returns.
func (e *Engine) findPropValue(obj ref, key string) ref {
	if n := e.findProperty(obj, key); n != refNull {
		return e.pool.get(n).firstChild
	}
	return e.newUndefined()
}

func (e *Engine) matchToArray(m *regexp2.Match, s string) ref {
	out := e.newArray()
	e.arraySet(out, 0, e.newString(m.String()))
	for i, g := range m.Groups() {
		if i == 0 {
			continue
		}
		if len(g.Captures) == 0 {
			e.arraySet(out, int32(i), e.newUndefined())
		} else {
			e.arraySet(out, int32(i), e.newString(g.String()))
		}
	}
	e.setOwn(out, "index", e.newInt(int32(m.Index)))
	e.setOwn(out, "input", e.newString(s))
	return out
}

func containsByte(s string, b byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return true
		}
	}
	return false
}
