package ejs

import (
	"math"
	"strconv"
)

// installGlobalFunctions wires the handful of free functions every
// JS environment exposes at the top level (parseInt, parseFloat,
// isNaN, isFinite, String/Number/Boolean/Array used as conversion
// functions rather than constructors).
func (e *Engine) installGlobalFunctions() {
	g := e.root
	e.setOwn(g, "NaN", e.newFloat(math.NaN()))
	e.setOwn(g, "Infinity", e.newFloat(math.Inf(1)))
	e.setOwn(g, "undefined", e.newUndefined())

	e.setOwn(g, "parseInt", e.newNativeFunction(nf("parseInt", 1, builtinParseInt)))
	e.setOwn(g, "parseFloat", e.newNativeFunction(nf("parseFloat", 1, builtinParseFloat)))
	e.setOwn(g, "isNaN", e.newNativeFunction(nf("isNaN", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		return e.newBool(math.IsNaN(e.toNumber(arg(args, 0, e)))), nil
	})))
	e.setOwn(g, "isFinite", e.newNativeFunction(nf("isFinite", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		n := e.toNumber(arg(args, 0, e))
		return e.newBool(!math.IsNaN(n) && !math.IsInf(n, 0)), nil
	})))
	e.setOwn(g, "String", e.newNativeFunction(nf("String", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		if len(args) == 0 {
			return e.newString(""), nil
		}
		return e.newString(e.toStringDeep(args[0])), nil
	})))
	e.setOwn(g, "Number", e.newNativeFunction(nf("Number", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		if len(args) == 0 {
			return e.newInt(0), nil
		}
		return e.newNumber(e.toNumber(args[0])), nil
	})))
	e.setOwn(g, "Boolean", e.newNativeFunction(nf("Boolean", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		return e.newBool(e.toBool(arg(args, 0, e))), nil
	})))
	e.setOwn(g, "Array", e.newNativeFunction(nf("Array", 0, func(e *Engine, this ref, args []ref) (ref, error) {
		arr := e.newArray()
		if len(args) == 1 && e.isNumeric(args[0]) {
			e.setArrayLength(arr, e.toInt32(args[0]))
			return arr, nil
		}
		for i, a := range args {
			e.arraySet(arr, int32(i), a)
		}
		return arr, nil
	})))
	e.setOwn(g, "Object", e.newNativeFunction(nf("Object", 0, func(e *Engine, this ref, args []ref) (ref, error) {
		if len(args) > 0 && (e.isObject(args[0]) || e.isArray(args[0])) {
			return args[0], nil
		}
		return e.newObject(), nil
	})))
	date := e.newObject()
	e.setOwn(g, "Date", date)
	e.setOwn(date, "now", e.newNativeFunction(nf("now", 0, func(e *Engine, this ref, args []ref) (ref, error) {
		return e.newFromLongInteger(e.microseconds() / 1000), nil
	})))

	e.setOwn(g, "Error", e.newErrorConstructor("Error"))
	e.setOwn(g, "TypeError", e.newErrorConstructor("TypeError"))
	e.setOwn(g, "RangeError", e.newErrorConstructor("RangeError"))
	e.setOwn(g, "SyntaxError", e.newErrorConstructor("SyntaxError"))
	e.setOwn(g, "ReferenceError", e.newErrorConstructor("ReferenceError"))
}

func (e *Engine) newErrorConstructor(kind string) ref {
	spec := nf(kind, 0, func(e *Engine, this ref, args []ref) (ref, error) {
		msg := ""
		if len(args) > 0 {
			msg = e.toStringDeep(args[0])
		}
		obj := this
		if !e.isObject(obj) {
			obj = e.newObject()
		}
		e.setOwn(obj, "name", e.newString(kind))
		e.setOwn(obj, "message", e.newString(msg))
		return obj, nil
	})
	ctor := e.newNativeFunction(spec)
	proto := e.newObject()
	e.setOwn(proto, "name", e.newString(kind))
	e.setOwn(ctor, "prototype", proto)
	return ctor
}

func builtinParseInt(e *Engine, this ref, args []ref) (ref, error) {
	s := trimSpace(e.toStringDeep(arg(args, 0, e)))
	radix := 10
	if len(args) > 1 && !e.isUndefined(args[1]) {
		radix = int(e.toInt32(args[1]))
		if radix == 0 {
			radix = 10
		}
	}
	neg := false
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	if radix == 16 && len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	end := 0
	for end < len(s) && digitValue(s[end]) < radix {
		end++
	}
	if end == 0 {
		return e.newFloat(math.NaN()), nil
	}
	n, err := strconv.ParseInt(s[:end], radix, 64)
	if err != nil {
		return e.newFloat(math.NaN()), nil
	}
	if neg {
		n = -n
	}
	return e.newFromLongInteger(n), nil
}

func digitValue(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'z':
		return int(b-'a') + 10
	case b >= 'A' && b <= 'Z':
		return int(b-'A') + 10
	default:
		return 99
	}
}

func builtinParseFloat(e *Engine, this ref, args []ref) (ref, error) {
	s := trimSpace(e.toStringDeep(arg(args, 0, e)))
	end := len(s)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(isDigit(rune(c)) || c == '.' || c == '+' || c == '-' || c == 'e' || c == 'E') {
			end = i
			break
		}
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return e.newFloat(math.NaN()), nil
	}
	return e.newFloat(f), nil
}

func trimSpace(s string) string {
	i, j := 0, len(s)
	for i < j && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	for j > i && (s[j-1] == ' ' || s[j-1] == '\t' || s[j-1] == '\n' || s[j-1] == '\r') {
		j--
	}
	return s[i:j]
}
