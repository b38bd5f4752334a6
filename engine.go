package ejs

import "sync/atomic"

// Every piece of mutable interpreter state — the cell pool, the
// global object, the active scope chain, the lexer currently feeding
// the parser, the last uncaught exception — lives on *Engine instead
// of in package-level variables, so multiple instances can coexist
// under the embedding API (EjsCreateInstance et al.).

// execFlag is the execute-flags bitmask threaded through every
// statement-evaluation call: a table of control outcomes, not a
// single success bool.
type execFlag uint16

const (
	execNormal      execFlag = 0
	execBreak       execFlag = 1 << iota
	execContinue
	execReturn
	execInterrupted
	execException
	execError
	execForInit
	execInLoop
	execInSwitch
	execCtrlC
	execCtrlCWait
)

func (f execFlag) is(bit execFlag) bool { return f&bit != 0 }

// Engine is the top-level interpreter instance. One Engine owns
// exactly one cell pool and one global object; host code creates as
// many as it needs (see embedding.go).
type Engine struct {
	pool *pool

	root       ref // global object, permanently locked
	hiddenRoot ref // holds engine-internal bookkeeping invisible to JS (module cache, etc.)
	thisVar    ref

	scopes []ref // scope chain, innermost last; scopes[0] is root

	cfg *Config

	lex *lexer // the lexer currently feeding the parser, nil between Exec calls

	lastException *ThrownValue
	callDepth     int
	maxCallDepth  int
	callStack     []string // function names, outermost first, for thrown-value traces

	currentSuper ref // superclass constructor of the class method currently executing

	// interrupted is the host's cancellation request; the evaluator
	// polls it at every statement, loop iteration and long-running
	// builtin and unwinds cooperatively when set. Atomic because the
	// host typically flips it from another goroutine (a signal
	// handler, a watchdog timer).
	interrupted atomic.Bool

	functions map[ref]*functionNode // vFunction cell -> pre-tokenised body (side table, reclaimed by gc.go sweep, see call.go)

	arrayProto  ref // every newArray() gets this as its __proto__
	stringProto ref // String.prototype, consulted directly by evalMember (strings aren't containers)

	regexps map[ref]*regexpEntry // RegExp value -> compiled matcher, see builtins_regexp.go

	// host hooks (embedding API)
	printHook        func(string)
	microsecondsHook func() int64
}

// NewEngine allocates a fresh interpreter instance with its own cell
// pool, global object and default configuration — what
// EjsCreateInstance wraps for handle-based hosts.
func NewEngine(cfg *Config) *Engine {
	if cfg == nil {
		cfg = NewConfig()
	}
	e := &Engine{cfg: cfg, maxCallDepth: cfg.GetInt("vm.max_call_depth"), functions: map[ref]*functionNode{}, regexps: map[ref]*regexpEntry{}}
	e.pool = newPool(cfg.GetInt("vm.pool_size"))
	e.installGC()

	root, err := e.pool.alloc(vRoot)
	if err != nil {
		panic("ejs: out of cells initializing engine root")
	}
	e.root = root
	e.pool.get(root).incLock() // permanently locked: never collected

	hidden, _ := e.pool.alloc(vObject)
	e.hiddenRoot = hidden
	e.pool.get(hidden).incLock()

	e.thisVar = root
	e.scopes = []ref{root}

	e.installBuiltins()
	// Built-ins are all linked under root (or a constructor reachable
	// from it) by now; drop their construction-time locks so only root
	// and hiddenRoot remain permanently pinned.
	e.releaseTemps(0)
	return e
}

// tempMark opens a temp-root frame: every cell allocated after the
// mark is treated as a stack-anchored temporary until the matching
// releaseTemps — the lock-count discipline amortised to statement
// and iteration granularity instead of per-handle unlocks.
func (e *Engine) tempMark() int { return len(e.pool.trace) }

// releaseTemps closes the frame opened at mark: each temporary's
// allocation lock is dropped, and anything that ended up with neither
// a lock nor a name edge is reclaimed on the spot. Cells listed in
// keeps survive with one lock and are handed to the enclosing frame —
// the way a statement's result value or a function's return value
// outlives the frame that built it.
func (e *Engine) releaseTemps(mark int, keeps ...ref) {
	for _, k := range keeps {
		if k != refNull {
			e.pool.get(k).incLock()
		}
	}
	t := e.pool.trace
	for _, r := range t[mark:] {
		e.unlockTemp(r)
	}
	e.pool.trace = t[:mark]
	for _, k := range keeps {
		if k != refNull {
			e.pool.trace = append(e.pool.trace, k)
		}
	}
}

func (e *Engine) unlockTemp(r ref) {
	c := e.pool.get(r)
	if c == nil || c.variant == vUnused {
		return
	}
	if c.decLock() && c.refs == 0 && c.variant.isRefEligible() {
		e.reclaim(r)
	}
}

// anchor pins a value into the current temp frame — used when a cell
// that already exists (an array element being popped, a consumed
// exception) must outlive the structure that owned it.
func (e *Engine) anchor(r ref) ref {
	if r != refNull {
		e.pool.get(r).incLock()
		e.pool.trace = append(e.pool.trace, r)
	}
	return r
}

// Unlock releases one lock on a ref previously handed to the host by
// Exec/EjsExec/EjsCatchException, reclaiming it if nothing else keeps
// it alive.
func (e *Engine) Unlock(r ref) { e.unlockTemp(r) }

// pushScope/popScope bracket a lexical scope: every block, function
// call and catch clause pushes a fresh scope object and is
// responsible for popping it, usually via `defer e.popScope()`.
func (e *Engine) pushScope() ref {
	s := e.newObject()
	e.setOwn(s, protoKey, e.scopes[len(e.scopes)-1])
	e.scopes = append(e.scopes, s)
	return s
}

func (e *Engine) popScope() {
	e.scopes = e.scopes[:len(e.scopes)-1]
}

func (e *Engine) currentScope() ref { return e.scopes[len(e.scopes)-1] }

// resolveVar looks a name up the scope chain (which is itself a
// __proto__ chain of plain objects, so findProperty does the walk).
func (e *Engine) resolveVar(name string) (ref, bool) {
	n := e.findProperty(e.currentScope(), name)
	if n == refNull {
		return refNull, false
	}
	return e.pool.get(n).firstChild, true
}

func (e *Engine) declareVar(name string, value ref) {
	e.setOwn(e.currentScope(), name, value)
}

func (e *Engine) assignVar(name string, value ref) bool {
	n := e.findProperty(e.currentScope(), name)
	if n == refNull {
		return false
	}
	e.replaceNameValue(n, value)
	return true
}

// SetPrintHook installs the host's console-output callback.
func (e *Engine) SetPrintHook(fn func(string)) { e.printHook = fn }

// SetMicrosecondsHook installs the host's monotonic clock source;
// Date.now reads it. With no hook
// installed the clock reads zero — the engine itself never needs wall
// time.
func (e *Engine) SetMicrosecondsHook(fn func() int64) { e.microsecondsHook = fn }

func (e *Engine) microseconds() int64 {
	if e.microsecondsHook != nil {
		return e.microsecondsHook()
	}
	return 0
}

// Interrupt asks the running script to stop. The evaluator notices at
// its next checkpoint (statement boundary, loop iteration, sort
// comparison, regexp-replace match, GC mark step) and unwinds back to
// the Exec caller; try/catch does not intercept the unwind. Safe to
// call from any goroutine.
func (e *Engine) Interrupt() { e.interrupted.Store(true) }

// ClearInterrupt withdraws a pending interrupt that has not yet been
// observed. The flag is also consumed automatically when the unwind
// surfaces from Exec.
func (e *Engine) ClearInterrupt() { e.interrupted.Store(false) }

// Interrupted reports whether an interrupt request is still pending.
func (e *Engine) Interrupted() bool { return e.interrupted.Load() }

// interruptCheck is the evaluator-side checkpoint poll.
func (e *Engine) interruptCheck() error {
	if e.interrupted.Load() {
		return e.throwInterrupted()
	}
	return nil
}

// OutOfMemory reports the latched allocation-failure flag: the pool
// was exhausted even after GC and the pressure callback. It stays
// set until the host tears the instance down.
func (e *Engine) OutOfMemory() bool { return e.pool.oom }

// MemoryUsage and MemoryTotal expose the pool's cell accounting to
// hosts that want to monitor it (cmd/ejs's `serve` metrics gauges).
func (e *Engine) MemoryUsage() int { return e.pool.memoryUsage() }
func (e *Engine) MemoryTotal() int { return e.pool.memoryTotal() }

// IsFull reports whether the pool has no free cells left, surfaced
// so a host can react before the next allocation forces a GC pass.
func (e *Engine) IsFull() bool { return e.pool.isFull() }

func (e *Engine) print(s string) {
	if e.printHook != nil {
		e.printHook(s)
		return
	}
}
