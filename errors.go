package ejs

import (
	"fmt"
	"strings"
)

// Exceptions. Errors surface through the same ref-based value model
// as everything else: a thrown value is just a cell, and ThrownValue
// wraps it as a Go error so it can travel up through ordinary error
// returns until the evaluator's try/catch machinery (or the
// embedding API) intercepts it. Positions are line/column Locations
// computed from a cursor offset, reported in the error's Error() text.

// errorKind distinguishes what went wrong, not a JS type hierarchy.
type errorKind int

const (
	errString errorKind = iota
	errError
	errSyntaxError
	errTypeError
	errReferenceError
	errRangeError
	errInternalError
	errInterrupted
)

func (k errorKind) String() string {
	switch k {
	case errSyntaxError:
		return "SyntaxError"
	case errTypeError:
		return "TypeError"
	case errReferenceError:
		return "ReferenceError"
	case errRangeError:
		return "RangeError"
	case errInternalError:
		return "InternalError"
	case errInterrupted:
		return "Interrupted"
	case errError:
		return "Error"
	default:
		return "Error"
	}
}

// Location is a 1-based line/column pair, computed lazily from a
// lexer cursor offset.
type Location struct {
	Line   int
	Column int
}

func (l Location) String() string { return fmt.Sprintf("%d:%d", l.Line, l.Column) }

// ThrownValue is the Go error type every evaluator function returns
// when JS-visible `throw` (or an internal invariant failure that JS
// code should be able to catch) unwinds the call stack. It carries
// the actual thrown ref so catch clauses can bind it.
type ThrownValue struct {
	Kind      errorKind
	Message   string
	Value     ref // the JS-visible thrown value (an Error object, a string, …)
	File      string // source name for file:line:col annotations; "" when no source is active
	Where     Location
	CallTrace []string
}

// Error renders the thrown value the way an uncaught exception
// prints: the value's own text (a thrown plain value carries no kind
// prefix; engine-raised errors keep their TypeError/RangeError/…
// label), the source position, then one "    at name" line per active
// call frame, innermost first.
func (t *ThrownValue) Error() string {
	var b strings.Builder
	if t.Kind == errString {
		b.WriteString(t.Message)
	} else {
		fmt.Fprintf(&b, "%s: %s", t.Kind, t.Message)
	}
	if t.Where.Line != 0 {
		if t.File == "" {
			fmt.Fprintf(&b, " (at %s)", t.Where)
		} else {
			fmt.Fprintf(&b, " (at %s:%s)", t.File, t.Where)
		}
	}
	for _, frame := range t.CallTrace {
		b.WriteString("\n    at ")
		b.WriteString(frame)
	}
	return b.String()
}

// locationAt converts a byte cursor into a Location using the current
// lexer's line-start table (see lexer.go newLexer/recordLine).
func (e *Engine) locationAt(cursor int) Location {
	if e.lex == nil {
		return Location{}
	}
	return e.lex.locationAt(cursor)
}

// exceptKey is the hiddenRoot property carrying the pending thrown
// value between the throw point and the catch boundary (or the host's
// catch-exception call) — the name edge is what keeps the value alive
// across the unwinding frames' temp releases.
const exceptKey = "\xffexc"

// throwValue raises a JS-visible exception carrying an arbitrary
// value (used by the `throw` statement itself). Message holds the
// value's rendered text so the uncaught-exception output shows what
// was thrown, not just an error kind.
func (e *Engine) throwValue(v ref) error {
	e.setOwn(e.hiddenRoot, exceptKey, v)
	return &ThrownValue{
		Kind:      errString,
		Message:   e.describeThrown(v),
		Value:     v,
		File:      e.sourceName(),
		Where:     e.currentLocation(),
		CallTrace: e.captureTrace(),
	}
}

// describeThrown renders a thrown value for display: an Error-shaped
// object (own name+message) prints "Name: message", anything else
// goes through ordinary ToString.
func (e *Engine) describeThrown(v ref) string {
	if e.isObject(v) {
		nameN, msgN := e.findOwn(v, "name"), e.findOwn(v, "message")
		if nameN != refNull && msgN != refNull {
			return e.toStringDeep(e.pool.get(nameN).firstChild) + ": " + e.toStringDeep(e.pool.get(msgN).firstChild)
		}
	}
	return e.toStringDeep(v)
}

// captureTrace snapshots the active call stack, innermost frame
// first, at the moment a value is thrown.
func (e *Engine) captureTrace() []string {
	if len(e.callStack) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.callStack))
	for i := len(e.callStack) - 1; i >= 0; i-- {
		out = append(out, e.callStack[i])
	}
	return out
}

func (e *Engine) throwKind(kind errorKind, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	loc := e.currentLocation()
	errObj := e.newErrorObject(kind, msg)
	e.setOwn(e.hiddenRoot, exceptKey, errObj)
	return &ThrownValue{Kind: kind, Message: msg, Value: errObj, File: e.sourceName(), Where: loc, CallTrace: e.captureTrace()}
}

// throwInterrupted is the host-cancellation unwind signal. It carries
// no JS value and try/catch does not intercept it (execTry checks the
// kind), so control returns to the embedding.
func (e *Engine) throwInterrupted() error {
	return &ThrownValue{Kind: errInterrupted, Message: "execution interrupted", CallTrace: e.captureTrace()}
}

// clearPendingException drops the hiddenRoot anchor once a catch
// clause has bound (or discarded) the thrown value.
func (e *Engine) clearPendingException() {
	e.deleteOwn(e.hiddenRoot, exceptKey)
}

// sourceName is the "vm.source_name" config setting used to annotate
// stack traces with a filename, the way an embedding host would pass
// a real script path in to EjsExec.
func (e *Engine) sourceName() string {
	return e.cfg.GetString("vm.source_name")
}

func (e *Engine) throwTypeError(format string, args ...any) error {
	return e.throwKind(errTypeError, format, args...)
}

func (e *Engine) throwSyntaxError(format string, args ...any) error {
	return e.throwKind(errSyntaxError, format, args...)
}

func (e *Engine) throwReferenceError(format string, args ...any) error {
	return e.throwKind(errReferenceError, format, args...)
}

func (e *Engine) throwRangeError(format string, args ...any) error {
	return e.throwKind(errRangeError, format, args...)
}

func (e *Engine) throwInternalError(format string, args ...any) error {
	return e.throwKind(errInternalError, format, args...)
}

// currentLocation reports the lexer cursor's position at the moment
// of the call, or the zero Location if no source is being lexed
// (errors raised from Go-side host calls outside an Exec).
func (e *Engine) currentLocation() Location {
	if e.lex == nil {
		return Location{}
	}
	return e.lex.locationAt(e.lex.cursor)
}

// newErrorObject builds a plain JS object with `name`/`message`
// properties, the minimal shape the evaluator's catch bindings and
// `String(err)` coercion expect — errors are plain objects, not a
// distinguished native type.
func (e *Engine) newErrorObject(kind errorKind, message string) ref {
	obj := e.newObject()
	e.setOwn(obj, "name", e.newString(kind.String()))
	e.setOwn(obj, "message", e.newString(message))
	return obj
}

// exceptionHere is the embedding-API-facing accessor: it returns the
// last uncaught exception's JS value plus a human-readable
// rendering.
func (e *Engine) exceptionHere() (ref, string) {
	if e.lastException == nil {
		return refNull, ""
	}
	return e.lastException.Value, e.lastException.Error()
}

func (e *Engine) clearException() {
	e.lastException = nil
	e.clearPendingException()
}

func asThrown(err error) (*ThrownValue, bool) {
	t, ok := err.(*ThrownValue)
	return t, ok
}

// isInterruptError reports whether err is the host-cancellation
// unwind, which try/catch must let pass through.
func isInterruptError(err error) bool {
	t, ok := asThrown(err)
	return ok && t.Kind == errInterrupted
}

