package ejs

// installArrayPrototype builds the shared prototype object every
// newArray() cell inherits __proto__ from, the way a real engine's
// Array.prototype works — method lookup goes through the normal
// findProperty chain walk, not a special case in the evaluator.
func (e *Engine) installArrayPrototype() {
	proto := e.newObject()
	e.arrayProto = proto

	e.setOwn(proto, "push", e.newNativeFunction(nf("push", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		var n int32
		for _, a := range args {
			n = e.arrayPush(this, a)
		}
		return e.newInt(n), nil
	})))
	e.setOwn(proto, "pop", e.newNativeFunction(nf("pop", 0, func(e *Engine, this ref, args []ref) (ref, error) {
		return e.arrayPop(this), nil
	})))
	e.setOwn(proto, "shift", e.newNativeFunction(nf("shift", 0, func(e *Engine, this ref, args []ref) (ref, error) {
		n := e.arrayLength(this)
		if n == 0 {
			return e.newUndefined(), nil
		}
		first := e.arrayGet(this, 0)
		for i := int32(1); i < n; i++ {
			e.arraySet(this, i-1, e.arrayGet(this, i))
		}
		e.arrayPop(this)
		if first == refNull {
			return e.newUndefined(), nil
		}
		return first, nil
	})))
	e.setOwn(proto, "unshift", e.newNativeFunction(nf("unshift", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		n := e.arrayLength(this)
		shift := int32(len(args))
		for i := n - 1; i >= 0; i-- {
			e.arraySet(this, i+shift, e.arrayGet(this, i))
		}
		for i, a := range args {
			e.arraySet(this, int32(i), a)
		}
		return e.newInt(n + shift), nil
	})))
	e.setOwn(proto, "slice", e.newNativeFunction(nf("slice", 2, func(e *Engine, this ref, args []ref) (ref, error) {
		n := e.arrayLength(this)
		start, end := sliceBounds(e, args, n)
		out := e.newArray()
		j := int32(0)
		for i := start; i < end; i++ {
			v := e.arrayGet(this, i)
			if v == refNull {
				v = e.newUndefined()
			}
			e.arraySet(out, j, v)
			j++
		}
		return out, nil
	})))
	e.setOwn(proto, "splice", e.newNativeFunction(nf("splice", 2, builtinArraySplice)))
	e.setOwn(proto, "indexOf", e.newNativeFunction(nf("indexOf", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		target := arg(args, 0, e)
		n := e.arrayLength(this)
		for i := int32(0); i < n; i++ {
			v := e.arrayGet(this, i)
			if v != refNull && e.strictEquals(v, target) {
				return e.newInt(i), nil
			}
		}
		return e.newInt(-1), nil
	})))
	e.setOwn(proto, "includes", e.newNativeFunction(nf("includes", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		target := arg(args, 0, e)
		n := e.arrayLength(this)
		for i := int32(0); i < n; i++ {
			v := e.arrayGet(this, i)
			if v != refNull && e.strictEquals(v, target) {
				return e.newBool(true), nil
			}
		}
		return e.newBool(false), nil
	})))
	e.setOwn(proto, "join", e.newNativeFunction(nf("join", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		sep := ","
		if len(args) > 0 && !e.isUndefined(args[0]) {
			sep = e.toStringDeep(args[0])
		}
		n := e.arrayLength(this)
		out := ""
		for i := int32(0); i < n; i++ {
			if i > 0 {
				out += sep
			}
			v := e.arrayGet(this, i)
			if v != refNull && !e.isNullish(v) {
				out += e.toStringDeep(v)
			}
		}
		return e.newString(out), nil
	})))
	e.setOwn(proto, "concat", e.newNativeFunction(nf("concat", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		out := e.newArray()
		j := int32(0)
		appendAll := func(v ref) {
			if e.isArray(v) {
				n := e.arrayLength(v)
				for i := int32(0); i < n; i++ {
					e.arraySet(out, j, e.arrayGet(v, i))
					j++
				}
			} else {
				e.arraySet(out, j, v)
				j++
			}
		}
		appendAll(this)
		for _, a := range args {
			appendAll(a)
		}
		return out, nil
	})))
	e.setOwn(proto, "reverse", e.newNativeFunction(nf("reverse", 0, func(e *Engine, this ref, args []ref) (ref, error) {
		n := e.arrayLength(this)
		for i, j := int32(0), n-1; i < j; i, j = i+1, j-1 {
			vi, vj := e.arrayGet(this, i), e.arrayGet(this, j)
			e.arraySet(this, i, vj)
			e.arraySet(this, j, vi)
		}
		return this, nil
	})))
	e.setOwn(proto, "forEach", e.newNativeFunction(nf("forEach", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		cb := arg(args, 0, e)
		n := e.arrayLength(this)
		for i := int32(0); i < n; i++ {
			v := e.arrayGet(this, i)
			if _, err := e.callValue(cb, e.newUndefined(), []ref{v, e.newInt(i), this}); err != nil {
				return refNull, err
			}
		}
		return e.newUndefined(), nil
	})))
	e.setOwn(proto, "map", e.newNativeFunction(nf("map", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		cb := arg(args, 0, e)
		n := e.arrayLength(this)
		out := e.newArray()
		for i := int32(0); i < n; i++ {
			v := e.arrayGet(this, i)
			r, err := e.callValue(cb, e.newUndefined(), []ref{v, e.newInt(i), this})
			if err != nil {
				return refNull, err
			}
			e.arraySet(out, i, r)
		}
		return out, nil
	})))
	e.setOwn(proto, "filter", e.newNativeFunction(nf("filter", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		cb := arg(args, 0, e)
		n := e.arrayLength(this)
		out := e.newArray()
		j := int32(0)
		for i := int32(0); i < n; i++ {
			v := e.arrayGet(this, i)
			r, err := e.callValue(cb, e.newUndefined(), []ref{v, e.newInt(i), this})
			if err != nil {
				return refNull, err
			}
			if e.toBool(r) {
				e.arraySet(out, j, v)
				j++
			}
		}
		return out, nil
	})))
	e.setOwn(proto, "reduce", e.newNativeFunction(nf("reduce", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		cb := arg(args, 0, e)
		n := e.arrayLength(this)
		i := int32(0)
		var acc ref
		if len(args) > 1 {
			acc = args[1]
		} else {
			if n == 0 {
				return refNull, e.throwTypeError("reduce of empty array with no initial value")
			}
			acc = e.arrayGet(this, 0)
			i = 1
		}
		for ; i < n; i++ {
			v := e.arrayGet(this, i)
			r, err := e.callValue(cb, e.newUndefined(), []ref{acc, v, e.newInt(i), this})
			if err != nil {
				return refNull, err
			}
			acc = r
		}
		return acc, nil
	})))
	e.setOwn(proto, "find", e.newNativeFunction(nf("find", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		cb := arg(args, 0, e)
		n := e.arrayLength(this)
		for i := int32(0); i < n; i++ {
			v := e.arrayGet(this, i)
			r, err := e.callValue(cb, e.newUndefined(), []ref{v, e.newInt(i), this})
			if err != nil {
				return refNull, err
			}
			if e.toBool(r) {
				return v, nil
			}
		}
		return e.newUndefined(), nil
	})))
	e.setOwn(proto, "some", e.newNativeFunction(nf("some", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		cb := arg(args, 0, e)
		n := e.arrayLength(this)
		for i := int32(0); i < n; i++ {
			r, err := e.callValue(cb, e.newUndefined(), []ref{e.arrayGet(this, i), e.newInt(i), this})
			if err != nil {
				return refNull, err
			}
			if e.toBool(r) {
				return e.newBool(true), nil
			}
		}
		return e.newBool(false), nil
	})))
	e.setOwn(proto, "every", e.newNativeFunction(nf("every", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		cb := arg(args, 0, e)
		n := e.arrayLength(this)
		for i := int32(0); i < n; i++ {
			r, err := e.callValue(cb, e.newUndefined(), []ref{e.arrayGet(this, i), e.newInt(i), this})
			if err != nil {
				return refNull, err
			}
			if !e.toBool(r) {
				return e.newBool(false), nil
			}
		}
		return e.newBool(true), nil
	})))
	e.setOwn(proto, "sort", e.newNativeFunction(nf("sort", 1, builtinArraySort)))

	// hang the prototype off the global Array constructor so it is both
	// JS-visible as Array.prototype and reachable from the GC root
	if ctor, ok := e.resolveVar("Array"); ok {
		e.setOwn(ctor, "prototype", proto)
		e.setOwn(ctor, "isArray", e.newNativeFunction(nf("isArray", 1, func(e *Engine, this ref, args []ref) (ref, error) {
			return e.newBool(e.isArray(arg(args, 0, e))), nil
		})))
	}
}

func sliceBounds(e *Engine, args []ref, n int32) (int32, int32) {
	start, end := int32(0), n
	if len(args) > 0 && !e.isUndefined(args[0]) {
		start = normalizeIndex(e.toInt32(args[0]), n)
	}
	if len(args) > 1 && !e.isUndefined(args[1]) {
		end = normalizeIndex(e.toInt32(args[1]), n)
	}
	if end < start {
		end = start
	}
	return start, end
}

func normalizeIndex(i, n int32) int32 {
	if i < 0 {
		i += n
	}
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

func builtinArraySplice(e *Engine, this ref, args []ref) (ref, error) {
	n := e.arrayLength(this)
	start := int32(0)
	if len(args) > 0 {
		start = normalizeIndex(e.toInt32(args[0]), n)
	}
	deleteCount := n - start
	if len(args) > 1 {
		deleteCount = e.toInt32(args[1])
		if deleteCount < 0 {
			deleteCount = 0
		}
		if start+deleteCount > n {
			deleteCount = n - start
		}
	}
	removed := e.newArray()
	for i := int32(0); i < deleteCount; i++ {
		e.arraySet(removed, i, e.arrayGet(this, start+i))
	}
	var inserts []ref
	if len(args) > 2 {
		inserts = args[2:]
	}
	tail := make([]ref, 0, n-start-deleteCount)
	for i := start + deleteCount; i < n; i++ {
		tail = append(tail, e.arrayGet(this, i))
	}
	idx := start
	for _, v := range inserts {
		e.arraySet(this, idx, v)
		idx++
	}
	for _, v := range tail {
		e.arraySet(this, idx, v)
		idx++
	}
	e.setArrayLength(this, idx)
	return removed, nil
}

func builtinArraySort(e *Engine, this ref, args []ref) (ref, error) {
	n := int(e.arrayLength(this))
	vals := make([]ref, n)
	for i := 0; i < n; i++ {
		vals[i] = e.arrayGet(this, int32(i))
	}
	var cb ref
	hasCb := len(args) > 0 && e.isFunction(args[0])
	if hasCb {
		cb = args[0]
	}
	var sortErr error
	insertionSort(vals, func(a, b ref) bool {
		if sortErr != nil {
			return false
		}
		if err := e.interruptCheck(); err != nil {
			sortErr = err
			return false
		}
		if hasCb {
			r, err := e.callValue(cb, e.newUndefined(), []ref{a, b})
			if err != nil {
				sortErr = err
				return false
			}
			return e.toNumber(r) < 0
		}
		return e.toStringDeep(a) < e.toStringDeep(b)
	})
	if sortErr != nil {
		return refNull, sortErr
	}
	for i, v := range vals {
		e.arraySet(this, int32(i), v)
	}
	return this, nil
}

// insertionSort keeps sort() free of extra dependencies and stable,
// adequate for the array sizes an embedded-class host realistically
// sorts.
func insertionSort(vals []ref, less func(a, b ref) bool) {
	for i := 1; i < len(vals); i++ {
		for j := i; j > 0 && less(vals[j], vals[j-1]); j-- {
			vals[j], vals[j-1] = vals[j-1], vals[j]
		}
	}
}
