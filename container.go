package ejs

// Containers. Object, array, function and getter/setter
// cells all share the same doubly-linked name-list layout: a
// container's firstChild/lastChild bracket a chain of vName cells
// threaded through nextSibling/prevSibling. Arrays keep that chain
// sorted by integer index; objects keep insertion order.

// protoKey is the hidden property name used for the prototype chain.
const protoKey = "__proto__"

// findOwn looks up a name cell by string key in container `obj`'s own
// child list, without walking the prototype chain.
func (e *Engine) findOwn(obj ref, key string) ref {
	oc := e.pool.get(obj)
	if oc == nil {
		return refNull
	}
	for n := oc.firstChild; n != refNull; {
		nc := e.pool.get(n)
		if !nc.isIntKey && nc.strKey == key {
			return n
		}
		n = nc.nextSibling
	}
	return refNull
}

// findOwnIndex looks up a name cell by integer key (array elements).
func (e *Engine) findOwnIndex(obj ref, idx int32) ref {
	oc := e.pool.get(obj)
	if oc == nil {
		return refNull
	}
	for n := oc.firstChild; n != refNull; {
		nc := e.pool.get(n)
		if nc.isIntKey && nc.intKey == idx {
			return n
		}
		n = nc.nextSibling
	}
	return refNull
}

// findProperty walks own properties then the __proto__ chain.
func (e *Engine) findProperty(obj ref, key string) ref {
	seen := map[ref]bool{}
	cur := obj
	for cur != refNull && !seen[cur] {
		seen[cur] = true
		if n := e.findOwn(cur, key); n != refNull {
			return n
		}
		protoName := e.findOwn(cur, protoKey)
		if protoName == refNull {
			return refNull
		}
		cur = e.pool.get(protoName).firstChild
	}
	return refNull
}

// linkName appends a name cell to the end of a container's child
// list. It leaves ref counts alone; the value's count is bumped by
// whoever binds the name to it.
func (e *Engine) linkName(obj, name ref) {
	oc := e.pool.get(obj)
	nc := e.pool.get(name)
	nc.prevSibling = oc.lastChild
	nc.nextSibling = refNull
	if oc.lastChild != refNull {
		e.pool.get(oc.lastChild).nextSibling = name
	} else {
		oc.firstChild = name
	}
	oc.lastChild = name
}

// linkNameBefore inserts `name` immediately before `before` in the
// child list (used by the sorted-array-index insertion walk).
func (e *Engine) linkNameBefore(obj, name, before ref) {
	oc := e.pool.get(obj)
	nc := e.pool.get(name)
	bc := e.pool.get(before)
	nc.nextSibling = before
	nc.prevSibling = bc.prevSibling
	if bc.prevSibling != refNull {
		e.pool.get(bc.prevSibling).nextSibling = name
	} else {
		oc.firstChild = name
	}
	bc.prevSibling = name
}

func (e *Engine) unlinkName(obj, name ref) {
	oc := e.pool.get(obj)
	nc := e.pool.get(name)
	if nc.prevSibling != refNull {
		e.pool.get(nc.prevSibling).nextSibling = nc.nextSibling
	} else {
		oc.firstChild = nc.nextSibling
	}
	if nc.nextSibling != refNull {
		e.pool.get(nc.nextSibling).prevSibling = nc.prevSibling
	} else {
		oc.lastChild = nc.prevSibling
	}
	nc.nextSibling = refNull
	nc.prevSibling = refNull
}

// newName allocates a name cell pointing at `value`, ref-counting
// the value; ref counts only ever change by gaining or losing a
// named-child edge.
func (e *Engine) newName(value ref) ref {
	n, err := e.pool.alloc(vName)
	if err != nil {
		return refNull
	}
	nc := e.pool.get(n)
	nc.firstChild = value
	if value != refNull {
		e.pool.get(value).incRefs()
	}
	return n
}

// setOwn creates-or-replaces a string-keyed own property on `obj`.
// A refNull obj or a failed name allocation (pool exhausted) degrades
// to a no-op; the surrounding operation surfaces the memory error.
func (e *Engine) setOwn(obj ref, key string, value ref) {
	if e.pool.get(obj) == nil {
		return
	}
	if n := e.findOwn(obj, key); n != refNull {
		e.replaceNameValue(n, value)
		return
	}
	n := e.newName(value)
	if n == refNull {
		return
	}
	nc := e.pool.get(n)
	nc.strKey = key
	e.linkName(obj, n)
}

// deleteOwn removes a string-keyed own property, unreffing its value.
func (e *Engine) deleteOwn(obj ref, key string) bool {
	n := e.findOwn(obj, key)
	if n == refNull {
		return false
	}
	e.unlinkName(obj, n)
	e.unrefValue(e.pool.get(n).firstChild)
	e.pool.free(n)
	return true
}

// accGetKey/accSetKey are the hidden names a vGetSet cell stores its
// getter and setter functions under.
const (
	accGetKey = "\xffget"
	accSetKey = "\xffset"
)

// accessor returns a vGetSet cell's getter or setter function, or
// refNull when that half of the pair was never declared.
func (e *Engine) accessor(gs ref, key string) ref {
	if n := e.findOwn(gs, key); n != refNull {
		return e.pool.get(n).firstChild
	}
	return refNull
}

// setProperty is the JS assignment path for named properties: an
// accessor pair anywhere on the prototype chain intercepts the write
// (a pair with no setter swallows it); otherwise the own property is
// created or replaced. Internal name rebinding (scope variables,
// iterators) goes through replaceNameValue/setOwn directly and never
// fires accessors.
func (e *Engine) setProperty(obj ref, key string, v ref) error {
	if n := e.findProperty(obj, key); n != refNull {
		if cur := e.pool.get(n).firstChild; e.isGetSet(cur) {
			if s := e.accessor(cur, accSetKey); s != refNull {
				_, err := e.callValue(s, obj, []ref{v})
				return err
			}
			return nil
		}
	}
	e.setOwn(obj, key, v)
	return nil
}

// replaceNameValue overwrites a name's value slot, unreffing the old
// value and reffing the new one.
func (e *Engine) replaceNameValue(name, value ref) {
	nc := e.pool.get(name)
	old := nc.firstChild
	if old == value {
		return
	}
	if value != refNull {
		e.pool.get(value).incRefs()
	}
	nc.firstChild = value
	if old != refNull {
		e.unrefValue(old)
	}
}

// unrefValue drops one ref edge from `v` and frees it (recursively,
// for containers) when both refs and lock hit zero. This is the
// non-GC fast path for prompt reclamation; gc.go's mark/sweep is the
// fallback for cycles.
func (e *Engine) unrefValue(v ref) {
	if v == refNull {
		return
	}
	c := e.pool.get(v)
	if !c.variant.isRefEligible() {
		return
	}
	c.decRefs()
	if c.refs != 0 || c.lock != 0 {
		return
	}
	e.reclaim(v)
}

// reclaim frees a cell and, for containers and string heads, the
// structure it owns. Side-table entries (function bodies, compiled
// regexps) go with their cell so a reused slot can't inherit them.
func (e *Engine) reclaim(v ref) {
	c := e.pool.get(v)
	switch c.variant {
	case vFunction:
		delete(e.functions, v)
	case vObject:
		delete(e.regexps, v)
	}
	switch {
	case c.variant.isContainer():
		for n := c.firstChild; n != refNull; {
			nc := e.pool.get(n)
			next := nc.nextSibling
			e.unrefValue(nc.firstChild)
			e.pool.free(n)
			n = next
		}
		e.pool.free(v)
	case c.variant == vString:
		e.freeStringChain(v)
		e.pool.free(v)
	case c.variant == vFlatString:
		n := e.flatStringCellCount(v)
		for i := 0; i < n; i++ {
			e.pool.free(ref(int(v) + i))
		}
	default:
		e.pool.free(v)
	}
}

// --- arrays ---

// arrayLength returns the logical length recorded on the array cell,
// authoritative over the largest integer-index child.
func (e *Engine) arrayLength(arr ref) int32 {
	return e.pool.get(arr).iVal
}

func (e *Engine) setArrayLength(arr ref, n int32) {
	ac := e.pool.get(arr)
	if n < ac.iVal {
		// truncate: drop every element whose index >= n
		for c := ac.firstChild; c != refNull; {
			nc := e.pool.get(c)
			next := nc.nextSibling
			if nc.isIntKey && nc.intKey >= n {
				e.unlinkName(arr, c)
				e.unrefValue(nc.firstChild)
				e.pool.free(c)
			}
			c = next
		}
	}
	ac.iVal = n
}

// arraySet writes arr[idx] = value, inserting a sorted-by-index name
// cell if the index is new; the insertion walk runs from lastChild
// backwards since appends dominate.
func (e *Engine) arraySet(arr ref, idx int32, value ref) {
	if e.pool.get(arr) == nil {
		return
	}
	if n := e.findOwnIndex(arr, idx); n != refNull {
		e.replaceNameValue(n, value)
	} else {
		n := e.newName(value)
		if n == refNull {
			return
		}
		nc := e.pool.get(n)
		nc.isIntKey = true
		nc.intKey = idx

		ac := e.pool.get(arr)
		before := refNull
		for c := ac.lastChild; c != refNull; {
			cc := e.pool.get(c)
			if cc.isIntKey && cc.intKey > idx {
				before = c
				c = cc.prevSibling
				continue
			}
			break
		}
		if before == refNull {
			e.linkName(arr, n)
		} else {
			e.linkNameBefore(arr, n, before)
		}
	}
	ac := e.pool.get(arr)
	if idx+1 > ac.iVal {
		ac.iVal = idx + 1
	}
}

// arrayGet returns arr[idx], anchored in the current temp frame: most
// callers (sort, reverse, splice, shift) go on to overwrite the very
// slots they read from, and the anchor is what keeps a value alive
// between being read out and being written back.
func (e *Engine) arrayGet(arr ref, idx int32) ref {
	n := e.findOwnIndex(arr, idx)
	if n == refNull {
		return refNull
	}
	return e.anchor(e.pool.get(n).firstChild)
}

// arrayPush appends to the end, growing the logical length by one.
func (e *Engine) arrayPush(arr ref, value ref) int32 {
	idx := e.arrayLength(arr)
	e.arraySet(arr, idx, value)
	return idx + 1
}

func (e *Engine) arrayPop(arr ref) ref {
	n := e.arrayLength(arr)
	if n == 0 {
		return e.newUndefined()
	}
	v := e.arrayGet(arr, n-1) // anchored: the name edge dropped below may be its last owner
	if nm := e.findOwnIndex(arr, n-1); nm != refNull {
		e.unlinkName(arr, nm)
		e.unrefValue(e.pool.get(nm).firstChild)
		e.pool.free(nm)
	}
	e.setArrayLength(arr, n-1)
	if v == refNull {
		return e.newUndefined()
	}
	return v
}
