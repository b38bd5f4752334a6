package ejs

import "sort"

// Built-in symbol tables. A built-in object can be described by a
// sorted []builtinEntry, installed with installTable and searched with
// lookupBuiltin (sort.Search); console is the one object built this
// way. The other built-ins (global, Math, JSON, Array.prototype,
// String.prototype, …) attach each function with setOwn directly, and
// JS code reaches every built-in through ordinary property lookup, not
// through lookupBuiltin.

type builtinEntry struct {
	name string
	fn   *nativeSpec
}

// installTable attaches each entry of a table to `obj` as a
// native-function-valued property, in table order. It does not check
// that the table is sorted by name; lookupBuiltin relies on that.
func (e *Engine) installTable(obj ref, table []builtinEntry) {
	for _, ent := range table {
		e.setOwn(obj, ent.name, e.newNativeFunction(ent.fn))
	}
}

// lookupBuiltin binary-searches a sorted table by name, for callers
// that want to resolve a built-in without going through the
// property-cell machinery.
func lookupBuiltin(table []builtinEntry, name string) (*nativeSpec, bool) {
	i := sort.Search(len(table), func(i int) bool { return table[i].name >= name })
	if i < len(table) && table[i].name == name {
		return table[i].fn, true
	}
	return nil, false
}

func nf(name string, minArgs int, fn func(e *Engine, this ref, args []ref) (ref, error)) *nativeSpec {
	return &nativeSpec{name: name, minArgs: minArgs, fn: fn}
}

func arg(args []ref, i int, e *Engine) ref {
	if i < len(args) {
		return args[i]
	}
	return e.newUndefined()
}

// installBuiltins wires every built-in object onto the engine's
// global, called once from NewEngine.
func (e *Engine) installBuiltins() {
	e.installGlobalFunctions()
	e.installMath()
	e.installJSON()
	e.installObjectPrototype()
	e.installArrayPrototype()
	e.installStringPrototype()
	e.installConsole()
	e.installRegExpSupport()
	e.installArrayBufferSupport()
}
