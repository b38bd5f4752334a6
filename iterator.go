package ejs

// Unified iterators: one tagged type over the five backing stores
// (string, object child list, array-buffer, full array, defined
// array) so the evaluator and the built-ins program against a single
// method set.

type iterKind uint8

const (
	iterString iterKind = iota
	iterObjectChild
	iterArrayBuffer
	iterArrayFull // every index 0..length-1, holes surface as undefined
	iterArrayDefined
)

// Iterator is the façade every consumer (for-in, Array#forEach,
// JSON.stringify, array-buffer element access…) programs against.
type Iterator struct {
	e    *Engine
	kind iterKind

	// string backing
	str *stringIter

	// object/array backing
	container ref
	cur       ref // current name cell (object/defined-array) or refNull
	idx       int32
	length    int32

	// array-buffer backing
	abView ref
}

func (e *Engine) newObjectIterator(obj ref) *Iterator {
	it := &Iterator{e: e, kind: iterObjectChild, container: obj}
	if c := e.pool.get(obj); c != nil {
		it.cur = c.firstChild
	}
	it.skipHiddenNames()
	return it
}

// skipHiddenNames advances past names JS iteration must not surface:
// __proto__ and the engine's \xff-prefixed internals (captured scopes,
// the pending-exception slot). The defined-array iterator skips every
// name that is not an index, __proto__ included.
func (it *Iterator) skipHiddenNames() {
	if it.kind != iterObjectChild && it.kind != iterArrayDefined {
		return
	}
	for it.cur != refNull {
		nc := it.e.pool.get(it.cur)
		if nc.isIntKey || (it.kind == iterObjectChild && nc.strKey != protoKey && (nc.strKey == "" || nc.strKey[0] != 0xff)) {
			return
		}
		it.cur = nc.nextSibling
	}
}

func (e *Engine) newArrayFullIterator(arr ref) *Iterator {
	return &Iterator{e: e, kind: iterArrayFull, container: arr, idx: 0, length: e.arrayLength(arr)}
}

func (e *Engine) newArrayDefinedIterator(arr ref) *Iterator {
	it := &Iterator{e: e, kind: iterArrayDefined, container: arr, cur: e.pool.get(arr).firstChild}
	it.skipHiddenNames()
	return it
}

func (e *Engine) newStringIterator(s ref) *Iterator {
	return &Iterator{e: e, kind: iterString, str: e.newStringIter(s)}
}

func (e *Engine) newArrayBufferIterator(view ref) *Iterator {
	vc := e.pool.get(view)
	return &Iterator{e: e, kind: iterArrayBuffer, abView: view, idx: 0, length: vc.bufLength}
}

// hasElement reports whether the iterator has more elements.
func (it *Iterator) hasElement() bool {
	switch it.kind {
	case iterString:
		return it.str.hasChar()
	case iterObjectChild, iterArrayDefined:
		return it.cur != refNull
	case iterArrayFull, iterArrayBuffer:
		return it.idx < it.length
	}
	return false
}

// next advances the iterator by one element.
func (it *Iterator) next() {
	switch it.kind {
	case iterString:
		it.str.next()
	case iterObjectChild, iterArrayDefined:
		if it.cur != refNull {
			it.cur = it.e.pool.get(it.cur).nextSibling
		}
		it.skipHiddenNames()
	case iterArrayFull, iterArrayBuffer:
		it.idx++
	}
}

// getKey returns the current element's key: a property name for
// object/array iteration, a numeric index for array/array-buffer
// iteration, and the byte offset for string iteration.
func (it *Iterator) getKey() ref {
	switch it.kind {
	case iterObjectChild:
		nc := it.e.pool.get(it.cur)
		if nc.isIntKey {
			return it.e.newInt(nc.intKey)
		}
		return it.e.newString(nc.strKey)
	case iterArrayDefined:
		return it.e.newInt(it.e.pool.get(it.cur).intKey)
	case iterArrayFull, iterArrayBuffer:
		return it.e.newInt(it.idx)
	case iterString:
		return it.e.newInt(int32(it.str.pos))
	}
	return it.e.newUndefined()
}

// getValue returns the current element's value, anchored in the
// current temp frame so it outlives any mutation of the container the
// consumer performs before the frame closes.
func (it *Iterator) getValue() ref {
	switch it.kind {
	case iterObjectChild, iterArrayDefined:
		return it.e.anchor(it.e.pool.get(it.cur).firstChild)
	case iterArrayFull:
		v := it.e.arrayGet(it.container, it.idx) // anchored by arrayGet
		if v == refNull {
			return it.e.newUndefined()
		}
		return v
	case iterArrayBuffer:
		return it.e.arrayBufferGet(it.abView, int(it.idx))
	case iterString:
		return it.e.newInt(int32(it.str.get()))
	}
	return it.e.newUndefined()
}

func (it *Iterator) getIntegerValue() int32 { return it.e.toInt32(it.getValue()) }
func (it *Iterator) getFloatValue() float64 { return it.e.toNumber(it.getValue()) }

// setValue mutates the current element in place — the one mutation
// that is always safe mid-iteration.
func (it *Iterator) setValue(v ref) {
	switch it.kind {
	case iterObjectChild, iterArrayDefined:
		it.e.replaceNameValue(it.cur, v)
	case iterArrayFull:
		it.e.arraySet(it.container, it.idx, v)
	case iterArrayBuffer:
		it.e.arrayBufferSet(it.abView, int(it.idx), v)
	}
}

func (it *Iterator) clone() *Iterator {
	cp := *it
	if it.str != nil {
		cp.str = it.str.clone()
	}
	return &cp
}
