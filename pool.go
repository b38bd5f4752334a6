package ejs

import "fmt"

// ref is a 14-bit index into a pool's cell array. 0 always means "no
// reference" — the pool never hands out index 0 to a caller.
type ref uint16

const refNull ref = 0

// maxCells is the largest pool capacity a 14-bit ref can address.
const maxCells = 1<<14 - 1

// variant is the tag that says which fields of a cell are meaningful.
type variant uint8

const (
	vUnused variant = iota

	// containers: own a firstChild..lastChild name list
	vRoot
	vObject
	vArray
	vFunction
	vNativeFunction
	vFunctionReturn // transient activation record for a function call
	vArrayBuffer
	vGetSet

	// scalars
	vInteger
	vFloat
	vBoolean
	vNull
	vUndefined

	// string content
	vString     // chained head (or sole) cell
	vStringExt  // chained continuation cell
	vFlatString     // head of a contiguous multi-cell run
	vFlatStringBody // a non-head segment of a flat-string run; never independently marked
	vNativeString

	// name: the only variant that carries a ref-count edge
	vName
)

func (v variant) String() string {
	switch v {
	case vUnused:
		return "unused"
	case vRoot:
		return "root"
	case vObject:
		return "object"
	case vArray:
		return "array"
	case vFunction:
		return "function"
	case vNativeFunction:
		return "nativeFunction"
	case vFunctionReturn:
		return "activation"
	case vArrayBuffer:
		return "arrayBuffer"
	case vGetSet:
		return "getset"
	case vInteger:
		return "integer"
	case vFloat:
		return "float"
	case vBoolean:
		return "boolean"
	case vNull:
		return "null"
	case vUndefined:
		return "undefined"
	case vString:
		return "string"
	case vStringExt:
		return "stringExt"
	case vFlatString:
		return "flatString"
	case vFlatStringBody:
		return "flatStringBody"
	case vNativeString:
		return "nativeString"
	case vName:
		return "name"
	default:
		return fmt.Sprintf("variant(%d)", uint8(v))
	}
}

// isContainer reports whether a cell of this variant owns a
// firstChild/lastChild name list.
func (v variant) isContainer() bool {
	switch v {
	case vRoot, vObject, vArray, vFunction, vNativeFunction, vFunctionReturn, vArrayBuffer, vGetSet:
		return true
	}
	return false
}

// isRefEligible reports whether a cell of this variant may be the
// target of a name's ref-counted edge: only reachability via a name
// edge or a lock keeps a cell alive.
// String-chain continuations and flat-string bodies are interior
// nodes reached only via their head/parent, never directly named.
func (v variant) isRefEligible() bool {
	switch v {
	case vUnused, vStringExt, vFlatStringBody, vName:
		return false
	}
	return true
}

const maxLock = 15  // 4-bit saturating lock counter
const maxRefs = 255 // 8-bit saturating ref counter

// cellFlag packs the small per-cell booleans: CONSTANT, NATIVE, the
// GC white/black mark and a re-entry guard. The lock counter lives in
// its own field rather than stolen bits, since Go affords it.
type cellFlag uint8

const (
	flagConstant cellFlag = 1 << iota
	flagNative
	flagGCWhite // set = not yet proven reachable this collection
	flagRecursing
)

// elemType describes an array-buffer view's element shape.
type elemType uint8

const (
	elemNone elemType = iota
	elemInt8
	elemUint8
	elemUint8Clamped
	elemInt16
	elemUint16
	elemInt32
	elemUint32
	elemFloat32
	elemFloat64
)

func (t elemType) size() int {
	switch t {
	case elemInt8, elemUint8, elemUint8Clamped:
		return 1
	case elemInt16, elemUint16:
		return 2
	case elemInt32, elemUint32, elemFloat32:
		return 4
	case elemFloat64:
		return 8
	}
	return 0
}

// stringCellBytes is how many content bytes a chained string head/ext
// cell, or one segment of a flat string run, carries inline.
const stringCellBytes = 8

// cell is the sole heap primitive. Every variant uses a subset of
// these fields; which subset is determined entirely by `variant`. Go
// has no tagged unions, so the fields simply sit side by side.
type cell struct {
	variant variant
	flags   cellFlag
	lock    uint8 // saturating, max 15 (maxLock)
	refs    uint8 // saturating, max 255 (maxRefs) — name edges pointing at this cell; never set on vName cells

	firstChild  ref // container: head of name list / name: value ref / string: next ext or next flat segment is implicit by index
	lastChild   ref // container: tail of name list
	nextSibling ref // name-list linkage
	prevSibling ref

	iVal int32   // integer payload, array length, flat-string total length, …
	fVal float64 // float payload

	data   [stringCellBytes]byte // chained string bytes
	length uint8                 // bytes valid in `data` for this cell

	native string // zero-copy host bytes: NATIVE_STRING content, function source, pre-tokenised code

	isIntKey bool
	intKey   int32
	strKey   string // name-cell key

	bufElem   elemType // ARRAY_BUFFER view payload
	bufOffset int32
	bufLength int32

	nativeFn *nativeSpec // NATIVE_FUNCTION payload
}

func (c *cell) lockCount() int { return int(c.lock) }

func (c *cell) incLock() {
	if c.lock < maxLock {
		c.lock++
	}
}

// decLock reports whether the lock count reached zero.
func (c *cell) decLock() bool {
	if c.lock == maxLock {
		// saturated: stays pinned until the next full GC sweep
		return false
	}
	if c.lock > 0 {
		c.lock--
	}
	return c.lock == 0
}

func (c *cell) incRefs() {
	if c.refs < maxRefs {
		c.refs++
	}
}

func (c *cell) decRefs() {
	if c.refs == maxRefs {
		return // saturated
	}
	if c.refs > 0 {
		c.refs--
	}
}

var (
	errMemoryBusy  = fmt.Errorf("MEMORY_BUSY")
	errOutOfMemory = fmt.Errorf("out of memory")
)

// pool owns the fixed-capacity cell arena and its free list. One pool
// backs exactly one Engine.
type pool struct {
	cells      []cell
	freeHead   ref // singly-linked through firstChild
	used       int
	oom        bool
	memoryBusy bool

	// trace records every cell handed out by alloc, in order. The
	// evaluator brackets each statement (and each loop iteration) with
	// a tempMark/releaseTemps pair over this slice, which turns alloc's
	// "caller owns one lock" contract into stack-root anchoring without
	// threading an explicit unlock through every construction site.
	trace []ref

	// freeMoreMemory is the host memory-pressure callback consulted
	// once, after one GC pass, when the free list is exhausted.
	freeMoreMemory func() bool

	gc func(p *pool) int // installed by the Engine that owns this pool
}

func newPool(capacity int) *pool {
	if capacity < 1 {
		capacity = 1
	}
	if capacity > maxCells {
		capacity = maxCells
	}
	// index 0 is reserved as refNull, so the backing slice has one
	// extra unusable slot at the front.
	p := &pool{cells: make([]cell, capacity+1)}
	p.rebuildFreeList(1, capacity)
	return p
}

// rebuildFreeList threads every UNUSED cell in [lo, hi] onto the free
// list in ascending order. Later calls to free push onto the head, so
// the order holds only until the next free.
func (p *pool) rebuildFreeList(lo, hi int) {
	p.freeHead = refNull
	var tail ref
	for i := hi; i >= lo; i-- {
		r := ref(i)
		if p.cells[i].variant != vUnused {
			continue
		}
		p.cells[i].firstChild = p.freeHead
		p.freeHead = r
		if tail == refNull {
			tail = r
		}
	}
}

func (p *pool) capacity() int { return len(p.cells) - 1 }

func (p *pool) memoryUsage() int { return p.used }
func (p *pool) memoryTotal() int { return p.capacity() }
func (p *pool) isFull() bool     { return p.used >= p.capacity() }

func (p *pool) get(r ref) *cell {
	if r == refNull {
		return nil
	}
	return &p.cells[r]
}

// alloc draws one cell from the free list, triggering GC and then the
// host pressure callback on exhaustion.
func (p *pool) alloc(v variant) (ref, error) {
	if p.memoryBusy {
		return refNull, errMemoryBusy
	}
	r := p.popFree()
	if r == refNull {
		if p.gc != nil {
			p.gc(p)
			r = p.popFree()
		}
		if r == refNull && p.freeMoreMemory != nil && p.freeMoreMemory() {
			r = p.popFree()
		}
		if r == refNull {
			p.oom = true
			return refNull, errOutOfMemory
		}
	}
	c := &p.cells[r]
	*c = cell{}
	c.variant = v
	c.lock = 1
	p.used++
	p.trace = append(p.trace, r)
	return r, nil
}

func (p *pool) popFree() ref {
	r := p.freeHead
	if r == refNull {
		return refNull
	}
	p.freeHead = p.cells[r].firstChild
	return r
}

// free returns a single cell to the free list. Callers are
// responsible for having already unreffed/unlinked whatever it
// pointed at (gc.go and container.go do this for the structural
// cases; free itself only ever touches one cell).
func (p *pool) free(r ref) {
	if r == refNull || p.cells[r].variant == vUnused {
		return
	}
	p.cells[r] = cell{variant: vUnused, firstChild: p.freeHead}
	p.freeHead = r
	p.used--
}

// allocFlatRun collects the free list into a set and scans the pool
// for `n` consecutive free indices, so the list's order does not
// matter. It does not
// retry through GC itself — callers go through newFlatStringOfLength,
// which does the GC-then-retry dance once.
func (p *pool) allocFlatRun(n int) (ref, bool) {
	if n <= 0 {
		return refNull, false
	}
	free := map[ref]bool{}
	for r := p.freeHead; r != refNull; r = p.cells[r].firstChild {
		free[r] = true
	}
	for start := 1; start+n-1 <= p.capacity(); start++ {
		ok := true
		for i := 0; i < n; i++ {
			if !free[ref(start+i)] {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		// splice every cell in [start, start+n) out of the free list
		p.removeFromFreeList(ref(start), n)
		for i := 0; i < n; i++ {
			p.cells[start+i] = cell{}
			if i == 0 {
				p.cells[start+i].variant = vFlatString
				p.cells[start+i].lock = 1
			} else {
				p.cells[start+i].variant = vFlatStringBody
			}
			p.used++
		}
		p.trace = append(p.trace, ref(start))
		return ref(start), true
	}
	return refNull, false
}

func (p *pool) removeFromFreeList(start ref, n int) {
	inRange := func(r ref) bool { return r >= start && int(r) < int(start)+n }
	var head ref
	var prev *ref = &head
	for r := p.freeHead; r != refNull; {
		next := p.cells[r].firstChild
		if !inRange(r) {
			*prev = r
			prev = &p.cells[r].firstChild
		}
		r = next
	}
	*prev = refNull
	p.freeHead = head
}
