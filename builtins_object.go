package ejs

// installObjectPrototype wires the handful of Object methods the
// evaluator's toStringDeep/property machinery doesn't already cover:
// the statics (Object.keys/values/entries/assign/freeze) used heavily
// by idiomatic JS, attached directly to the Object constructor since
// this engine does not model a separate Object.prototype chain walk
// for them.
func (e *Engine) installObjectPrototype() {
	ctor, ok := e.resolveVar("Object")
	if !ok {
		return
	}

	e.setOwn(ctor, "keys", e.newNativeFunction(nf("keys", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		obj := arg(args, 0, e)
		out := e.newArray()
		it := e.newObjectIterator(obj)
		i := int32(0)
		for it.hasElement() {
			e.arraySet(out, i, it.getKey())
			i++
			it.next()
		}
		return out, nil
	})))
	e.setOwn(ctor, "values", e.newNativeFunction(nf("values", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		obj := arg(args, 0, e)
		out := e.newArray()
		it := e.newObjectIterator(obj)
		i := int32(0)
		for it.hasElement() {
			e.arraySet(out, i, it.getValue())
			i++
			it.next()
		}
		return out, nil
	})))
	e.setOwn(ctor, "entries", e.newNativeFunction(nf("entries", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		obj := arg(args, 0, e)
		out := e.newArray()
		it := e.newObjectIterator(obj)
		i := int32(0)
		for it.hasElement() {
			pair := e.newArray()
			e.arraySet(pair, 0, it.getKey())
			e.arraySet(pair, 1, it.getValue())
			e.arraySet(out, i, pair)
			i++
			it.next()
		}
		return out, nil
	})))
	e.setOwn(ctor, "assign", e.newNativeFunction(nf("assign", 2, func(e *Engine, this ref, args []ref) (ref, error) {
		if len(args) == 0 {
			return e.newObject(), nil
		}
		target := args[0]
		for _, src := range args[1:] {
			it := e.newObjectIterator(src)
			for it.hasElement() {
				e.setOwn(target, e.toStringDeep(it.getKey()), it.getValue())
				it.next()
			}
		}
		return target, nil
	})))
	e.setOwn(ctor, "freeze", e.newNativeFunction(nf("freeze", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		obj := arg(args, 0, e)
		if c := e.pool.get(obj); c != nil {
			c.flags |= flagConstant
		}
		return obj, nil
	})))
	e.setOwn(ctor, "getPrototypeOf", e.newNativeFunction(nf("getPrototypeOf", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		obj := arg(args, 0, e)
		if n := e.findOwn(obj, protoKey); n != refNull {
			return e.pool.get(n).firstChild, nil
		}
		return e.newNull(), nil
	})))
	e.setOwn(ctor, "create", e.newNativeFunction(nf("create", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		obj := e.newObject()
		if len(args) > 0 && !e.isNull(args[0]) {
			e.setOwn(obj, protoKey, args[0])
		}
		return obj, nil
	})))
}
