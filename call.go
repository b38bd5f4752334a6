package ejs

// Function calls. A JS function cell's body is re-derived from saved
// pre-tokenised bytes on every invocation (see functionNode below);
// a native function cell's nativeFn field points at a Go closure
// instead. Dispatch always goes through callValue so both kinds
// share one call-stack-depth guard and one activation-scope
// lifecycle — a table of thunks, one per built-in, rather than a
// switch over a packed marshalling descriptor.

// argType names a native function's expected argument shape. No
// built-in fills in nativeSpec.args, and calls neither check nor
// coerce arguments against it.
type argType int

const (
	argAny argType = iota
	argString
	argNumber
	argBoolean
	argInteger
	argObject
)

// nativeSpec is what a vNativeFunction cell's nativeFn field points
// to: the Go closure implementing the builtin, plus its name and
// minArgs, which becomes the function's `length` property. Arity is
// not checked: a native closure receives however many arguments the
// call supplied.
type nativeSpec struct {
	name    string
	args    []argType
	minArgs int
	fn      func(e *Engine, this ref, args []ref) (ref, error)
}

// functionNode is what a vFunction cell's body actually stores,
// reached via the engine's function table keyed by cell ref (cells
// stay small and fixed-shape; the expensive part lives in a side
// table). code is the body's pre-tokenised bytes (tokenize.go),
// never a parsed statement list: callValue re-derives the AST fresh
// on every invocation and lets it go out of scope when the call
// returns, so no unbounded tree outlives a single call. gc.go's
// sweep deletes a function's entry here the moment its cell is
// collected, so the table stays bounded by live functions, not by
// how many times they've been called.
type functionNode struct {
	name       string
	params     []string
	code       []byte
	closure    ref // captured scope at definition time
	isArrow    bool
	thisValue  ref // arrow functions capture `this` lexically
	superClass ref // parent constructor for class methods/constructors; refNull otherwise
}

// bodyStmts re-lexes and re-parses a function's saved pre-tokenised
// body on demand. The returned statement list belongs to this call
// alone: it is built fresh every time and discarded when the caller's
// stack frame returns, never stored back onto fn.
func (e *Engine) bodyStmts(code []byte) ([]stmt, error) {
	src := printTokenisedString(decodeTokens(code))
	savedLex := e.lex
	p := e.newParser(src)
	body, err := p.parseProgram()
	e.lex = savedLex
	if err != nil {
		return nil, err
	}
	return body, nil
}

// scopeKey/thisKey/superKey are the hidden function properties naming
// the captured closure scope, (for arrows) the lexical `this`, and
// (for class members) the parent constructor — the name edges that
// make all three reachable to gc.go's mark walk for as long as the
// function cell itself is live.
const (
	scopeKey = "\xffsco"
	thisKey  = "\xffths"
	superKey = "\xffsup"
)

func (e *Engine) newFunction(tmpl *functionNode) ref {
	r, err := e.pool.alloc(vFunction)
	if err != nil {
		return refNull
	}
	// each instantiation owns its captured scope: the parser's template
	// node is shared by every execution of the same declaration, so the
	// closure/thisValue fields must be frozen per function cell
	fn := *tmpl
	e.functions[r] = &fn
	proto := e.newObject()
	e.setOwn(r, "prototype", proto)
	e.setOwn(r, "name", e.newString(fn.name))
	e.setOwn(r, "length", e.newInt(int32(len(fn.params))))
	if fn.closure != refNull {
		e.setOwn(r, scopeKey, fn.closure)
	}
	if fn.isArrow && fn.thisValue != refNull {
		e.setOwn(r, thisKey, fn.thisValue)
	}
	if fn.superClass != refNull {
		e.setOwn(r, superKey, fn.superClass)
	}
	return r
}

func (e *Engine) newNativeFunction(spec *nativeSpec) ref {
	r, err := e.pool.alloc(vNativeFunction)
	if err != nil {
		return refNull
	}
	e.pool.get(r).nativeFn = spec
	e.setOwn(r, "name", e.newString(spec.name))
	e.setOwn(r, "length", e.newInt(int32(spec.minArgs)))
	return r
}

// callValue invokes a JS value as a function (the common path for
// `f(...)`, method calls, and callback invocation from builtins like
// Array#forEach), returning the thrown error unwrapped so callers can
// propagate it through ordinary Go error returns.
func (e *Engine) callValue(fnRef, this ref, args []ref) (ref, error) {
	c := e.pool.get(fnRef)
	if c == nil || !(c.variant == vFunction || c.variant == vNativeFunction) {
		return refNull, e.throwTypeError("value is not a function")
	}

	e.callDepth++
	if e.callDepth > e.maxCallDepth {
		e.callDepth--
		return refNull, e.throwRangeError("maximum call stack size exceeded")
	}
	defer func() { e.callDepth-- }()

	if c.variant == vNativeFunction {
		e.callStack = append(e.callStack, c.nativeFn.name)
		defer func() { e.callStack = e.callStack[:len(e.callStack)-1] }()
		return c.nativeFn.fn(e, this, args)
	}

	fn, ok := e.functions[fnRef]
	if !ok {
		return refNull, e.throwInternalError("function body missing for %v", fnRef)
	}

	frame := fn.name
	if frame == "" {
		frame = "<anonymous>"
	}
	e.callStack = append(e.callStack, frame)
	defer func() { e.callStack = e.callStack[:len(e.callStack)-1] }()

	savedThis := e.thisVar
	if fn.isArrow {
		e.thisVar = fn.thisValue
	} else {
		e.thisVar = this
	}
	defer func() { e.thisVar = savedThis }()

	savedSuper := e.currentSuper
	e.currentSuper = fn.superClass
	defer func() { e.currentSuper = savedSuper }()

	e.scopes = append(e.scopes, e.newScopeFor(fn, args))
	defer e.popScope()

	body, err := e.bodyStmts(fn.code)
	if err != nil {
		return refNull, err
	}
	flag, ret, err := e.execBlock(body)
	if err != nil {
		return refNull, err
	}
	if flag.is(execReturn) {
		return ret, nil
	}
	return e.newUndefined(), nil
}

// newScopeFor builds the activation object: parameters bound by
// position (extras become undefined, surplus actual args land in
// `arguments`), parented to the function's closure scope rather than
// the caller's — the mechanism that makes closures work.
func (e *Engine) newScopeFor(fn *functionNode, args []ref) ref {
	s := e.newObject()
	e.setOwn(s, protoKey, fn.closure)
	for i, name := range fn.params {
		var v ref
		if i < len(args) {
			v = args[i]
		} else {
			v = e.newUndefined()
		}
		e.setOwn(s, name, v)
	}
	argObj := e.newArray()
	for i, a := range args {
		e.arraySet(argObj, int32(i), a)
	}
	e.setOwn(s, "arguments", argObj)
	return s
}

// Describe renders a value for host-side display (the REPL, log
// lines), the exported counterpart to toStringDeep for embedders who
// only have a ref handed back from Exec/EjsExecf and no other package-
// internal way to stringify it.
func (e *Engine) Describe(r ref) string { return e.toStringDeep(r) }

// toStringDeep implements ECMAScript ToString for every value kind,
// including objects/arrays (which delegate to a user-visible
// `toString` method when present, else a built-in default) — the
// evaluator-aware counterpart to value.go's scalar-only toString.
func (e *Engine) toStringDeep(r ref) string {
	if e.isString(r) || e.isNumeric(r) || e.isBoolean(r) || e.isNullish(r) {
		return e.toString(r)
	}
	if e.isArray(r) {
		it := e.newArrayFullIterator(r)
		var parts []string
		for it.hasElement() {
			v := it.getValue()
			if e.isNullish(v) {
				parts = append(parts, "")
			} else {
				parts = append(parts, e.toStringDeep(v))
			}
			it.next()
		}
		return joinStrings(parts, ",")
	}
	if e.isFunction(r) {
		return "function () { [native code] }"
	}
	if e.isObject(r) {
		if n := e.findProperty(r, "toString"); n != refNull {
			fn := e.pool.get(n).firstChild
			if e.isFunction(fn) {
				if ret, err := e.callValue(fn, r, nil); err == nil {
					return e.toStringDeep(ret)
				}
			}
		}
		return "[object Object]"
	}
	return "undefined"
}

func joinStrings(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}
