package ejs

// installConsole wires the `console` global onto the engine's print
// hook — the host's single print callback is the only I/O sink the
// engine requires, and every console level funnels through it.

// consoleTable is kept sorted by name for lookupBuiltin's binary
// search; every level shares the one print-hook-backed implementation.
var consoleTable = []builtinEntry{
	{"error", consoleLogSpec},
	{"info", consoleLogSpec},
	{"log", consoleLogSpec},
	{"warn", consoleLogSpec},
}

var consoleLogSpec = nf("log", 0, func(e *Engine, this ref, args []ref) (ref, error) {
	e.print(joinStrings(mapToStringDeep(e, args), " "))
	e.print("\n")
	return e.newUndefined(), nil
})

func (e *Engine) installConsole() {
	c := e.newObject()
	e.setOwn(e.root, "console", c)
	e.installTable(c, consoleTable)

	e.setOwn(e.root, "print", e.newNativeFunction(nf("print", 0, func(e *Engine, this ref, args []ref) (ref, error) {
		e.print(joinStrings(mapToStringDeep(e, args), " "))
		e.print("\n")
		return e.newUndefined(), nil
	})))
}

func mapToStringDeep(e *Engine, args []ref) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = e.toStringDeep(a)
	}
	return out
}
