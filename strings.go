package ejs

// Strings. Every string value is one of three concrete
// representations behind the uniform byte-iteration interface of
// stringIter: chained (small cells linked head→ext→ext…), flat (one
// contiguous multi-cell run, for long strings), and native (a Go
// string living outside the pool, used for literals and saved
// function bodies).

// newStringChained builds a chained string, splitting s across as
// many head+extension cells as needed.
func (e *Engine) newStringChained(s string) ref {
	b := []byte(s)
	if len(b) == 0 {
		r, _ := e.pool.alloc(vString)
		return r
	}
	if len(b) > stringCellBytes*4 {
		// long enough that a contiguous flat run beats a cell chain
		if r, ok := e.newFlatStringOfLength(len(b)); ok {
			e.writeFlatString(r, b)
			return r
		}
	}
	head, _ := e.pool.alloc(vString)
	c := e.pool.get(head)
	n := copy(c.data[:], b)
	c.length = uint8(n)
	b = b[n:]

	prev := head
	for len(b) > 0 {
		ext, err := e.pool.alloc(vStringExt)
		if err != nil {
			break
		}
		ec := e.pool.get(ext)
		n := copy(ec.data[:], b)
		ec.length = uint8(n)
		b = b[n:]
		e.pool.get(prev).firstChild = ext
		prev = ext
	}
	return head
}

// newFlatStringOfLength scans the free list for a contiguous run big
// enough to hold n bytes (one header-bearing cell plus as many body
// cells as needed), triggering one GC pass on failure before giving
// up.
func (e *Engine) newFlatStringOfLength(n int) (ref, bool) {
	need := 1 + (n+stringCellBytes-1)/stringCellBytes
	r, ok := e.pool.allocFlatRun(need)
	if !ok {
		if e.pool.gc != nil {
			e.pool.gc(e.pool)
		}
		r, ok = e.pool.allocFlatRun(need)
		if !ok {
			return refNull, false
		}
	}
	e.pool.get(r).iVal = int32(n)
	return r, true
}

func (e *Engine) writeFlatString(head ref, b []byte) {
	c := e.pool.get(head)
	c.iVal = int32(len(b))
	for i, by := range b {
		idx := int(head) + 1 + i/stringCellBytes
		e.pool.cells[idx].data[i%stringCellBytes] = by
	}
}

func (e *Engine) flatStringLen(head ref) int {
	return int(e.pool.get(head).iVal)
}

func (e *Engine) flatStringByte(head ref, i int) byte {
	idx := int(head) + 1 + i/stringCellBytes
	return e.pool.cells[idx].data[i%stringCellBytes]
}

// flatStringCellCount returns how many cells (head + body) a flat
// string run occupies, used by gc.go to free/skip the block.
func (e *Engine) flatStringCellCount(head ref) int {
	n := e.flatStringLen(head)
	return 1 + (n+stringCellBytes-1)/stringCellBytes
}

// stringValue materialises a string cell's full content as a Go
// string, for use by the host boundary and by operators that don't
// need incremental iteration.
func (e *Engine) stringValue(r ref) string {
	c := e.pool.get(r)
	if c == nil {
		return ""
	}
	switch c.variant {
	case vNativeString:
		return c.native
	case vFlatString:
		n := e.flatStringLen(r)
		buf := make([]byte, n)
		for i := 0; i < n; i++ {
			buf[i] = e.flatStringByte(r, i)
		}
		return string(buf)
	case vString:
		var buf []byte
		cur := r
		for cur != refNull {
			cc := e.pool.get(cur)
			buf = append(buf, cc.data[:cc.length]...)
			cur = cc.firstChild
		}
		return string(buf)
	default:
		return ""
	}
}

func (e *Engine) stringLen(r ref) int {
	c := e.pool.get(r)
	if c == nil {
		return 0
	}
	switch c.variant {
	case vNativeString:
		return len(c.native)
	case vFlatString:
		return e.flatStringLen(r)
	case vString:
		n := 0
		cur := r
		for cur != refNull {
			cc := e.pool.get(cur)
			n += int(cc.length)
			cur = cc.firstChild
		}
		return n
	default:
		return 0
	}
}

// freeStringChain releases every extension cell of a chained string.
// Called by the GC sweep and by explicit unref of a string value.
func (e *Engine) freeStringChain(head ref) {
	cur := e.pool.get(head).firstChild
	for cur != refNull {
		next := e.pool.get(cur).firstChild
		e.pool.free(cur)
		cur = next
	}
}

// --- string iterator (stringIter) ---

// stringIter is the byte-iteration façade over all three string
// representations: current cell / byte-index-in-cell /
// byte-index-in-string. It knows
// how to step across chained, flat and native backings uniformly.
type stringIter struct {
	e        *Engine
	head     ref
	variant  variant
	pos      int // byte offset from the start of the string
	length   int
	curCell  ref // chained only: the cell `pos` currently falls in
	curStart int // chained only: byte offset where curCell begins
}

func (e *Engine) newStringIter(r ref) *stringIter {
	c := e.pool.get(r)
	if c == nil {
		return &stringIter{e: e}
	}
	it := &stringIter{e: e, head: r, variant: c.variant, length: e.stringLen(r)}
	if c.variant == vString {
		it.curCell = r
		it.curStart = 0
	}
	return it
}

func (it *stringIter) hasChar() bool { return it.pos < it.length }

func (it *stringIter) get() byte {
	if it.pos >= it.length {
		return 0
	}
	switch it.variant {
	case vNativeString:
		return it.e.pool.get(it.head).native[it.pos]
	case vFlatString:
		return it.e.flatStringByte(it.head, it.pos)
	case vString:
		cc := it.e.pool.get(it.curCell)
		return cc.data[it.pos-it.curStart]
	}
	return 0
}

func (it *stringIter) next() {
	if it.variant == vString && it.curCell != refNull {
		cc := it.e.pool.get(it.curCell)
		if it.pos-it.curStart+1 >= int(cc.length) && cc.firstChild != refNull {
			it.curStart += int(cc.length)
			it.curCell = cc.firstChild
		}
	}
	it.pos++
}

func (it *stringIter) getAndNext() byte {
	b := it.get()
	it.next()
	return b
}

func (it *stringIter) gotoEnd() { it.goTo(it.length) }

func (it *stringIter) goTo(idx int) {
	it.pos = idx
	if it.variant != vString {
		return
	}
	it.curCell = it.head
	it.curStart = 0
	for {
		cc := it.e.pool.get(it.curCell)
		if idx < it.curStart+int(cc.length) || cc.firstChild == refNull {
			return
		}
		it.curStart += int(cc.length)
		it.curCell = cc.firstChild
	}
}

func (it *stringIter) clone() *stringIter {
	cp := *it
	return &cp
}

// append adds one byte to the end of a chained string's backing
// cells, allocating a new extension once the current tail is full.
// Flat and native strings are immutable through this path; callers
// needing to mutate one build a fresh chained string instead.
func (e *Engine) stringAppendByte(head ref, b byte) {
	c := e.pool.get(head)
	if c.variant != vString {
		return
	}
	tail := head
	for e.pool.get(tail).firstChild != refNull {
		tail = e.pool.get(tail).firstChild
	}
	tc := e.pool.get(tail)
	if int(tc.length) < stringCellBytes {
		tc.data[tc.length] = b
		tc.length++
		return
	}
	ext, err := e.pool.alloc(vStringExt)
	if err != nil {
		return
	}
	ec := e.pool.get(ext)
	ec.data[0] = b
	ec.length = 1
	tc.firstChild = ext
}
