package ejs

import "sync"

// The host-facing embedding API: an instance registry plus one
// active-handle variable, guarded by a mutex since the registry
// itself (unlike the single-threaded interpreter it indexes) may be
// touched from multiple goroutines in cmd/ejs's server mode.

// InstanceHandle is the opaque per-instance handle hosts pass back in.
type InstanceHandle int32

var (
	instanceMu    sync.Mutex
	instances     = map[InstanceHandle]*Engine{}
	nextHandle    InstanceHandle
	activeHandle  InstanceHandle
	activeIsUnset = true
)

// EjsCreate is a one-time global init hook. There is no process-wide
// pool to size up front (each Engine owns its own pool), so this
// only seeds a Config with the requested size for future instances.
func EjsCreate(varCount int) *Config {
	cfg := NewConfig()
	cfg.SetInt("vm.pool_size", varCount)
	return cfg
}

// EjsDestroy is a one-time global teardown; with no process-global
// pool to free, it is a no-op kept for symmetry with EjsCreate.
func EjsDestroy() {}

// EjsCreateInstance allocates a fresh interpreter instance and
// registers it under a new handle.
func EjsCreateInstance(varCount int) InstanceHandle {
	cfg := NewConfig()
	cfg.SetInt("vm.pool_size", varCount)
	e := NewEngine(cfg)
	instanceMu.Lock()
	defer instanceMu.Unlock()
	nextHandle++
	h := nextHandle
	instances[h] = e
	return h
}

// EjsDestroyInstance destroys an instance, clearing its exception and
// dropping it from the registry. Destroying the active instance
// unsets activeHandle.
func EjsDestroyInstance(h InstanceHandle) {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if e, ok := instances[h]; ok {
		e.clearException()
	}
	delete(instances, h)
	if activeHandle == h {
		activeIsUnset = true
	}
}

// EjsSetInstance / EjsUnsetInstance swap the active-instance pointer
// (process-global; the interpreter is single-threaded).
func EjsSetInstance(h InstanceHandle) {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	activeHandle = h
	activeIsUnset = false
}

func EjsUnsetInstance() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	activeIsUnset = true
}

// EjsGetActiveInstance returns the currently active instance, or nil
// if none is set.
func EjsGetActiveInstance() *Engine {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if activeIsUnset {
		return nil
	}
	return instances[activeHandle]
}

func instanceByHandle(h InstanceHandle) *Engine {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	return instances[h]
}

// EjsExec parses and runs source in instance h. isStatic is the
// caller's promise that the source bytes outlive the call (a
// zero-copy opportunity for native-string buffers); no fast path
// reachable from here needs it, so it is accepted and otherwise
// unused.
func EjsExec(h InstanceHandle, source string, isStatic bool) (ref, error) {
	e := instanceByHandle(h)
	if e == nil {
		return refNull, errInvalidHandle(h)
	}
	return e.Exec(source)
}

// EjsExecTokenised runs a program from its pre-tokenised byte form
// (tokenize.go's encodeTokens output) instead of raw source text — the
// host-facing counterpart to EjsExec for a host that cached an earlier
// tokenise+encodeTokens pass and wants to skip re-scanning the text
// form.
func EjsExecTokenised(h InstanceHandle, code []byte) (ref, error) {
	e := instanceByHandle(h)
	if e == nil {
		return refNull, errInvalidHandle(h)
	}
	return e.Exec(printTokenisedString(decodeTokens(code)))
}

// EjsExecf calls an already-evaluated function value with an
// explicit `this` and argument list.
func EjsExecf(h InstanceHandle, fn, this ref, args []ref) (ref, error) {
	e := instanceByHandle(h)
	if e == nil {
		return refNull, errInvalidHandle(h)
	}
	return e.callValue(fn, this, args)
}

// EjsCatchException consumes the instance's latched exception,
// returning its JS value (refNull if none), locked for the caller.
func EjsCatchException(h InstanceHandle) ref {
	e := instanceByHandle(h)
	if e == nil {
		return refNull
	}
	v, _ := e.exceptionHere()
	if v != refNull {
		// the hiddenRoot anchor goes away with clearException; the
		// returned handle carries its own lock, released via Unlock
		e.anchor(v)
	}
	e.clearException()
	return v
}

func EjsClearException(h InstanceHandle) {
	if e := instanceByHandle(h); e != nil {
		e.clearException()
	}
}

func errInvalidHandle(h InstanceHandle) error {
	return &ThrownValue{Kind: errInternalError, Message: "invalid instance handle"}
}
