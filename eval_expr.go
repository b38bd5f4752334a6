package ejs

// Expression evaluation. Split from eval.go purely for file size;
// same evaluator, same execFlag-threading conventions.

func (e *Engine) evalExpr(x expr) (ref, error) {
	switch n := x.(type) {
	case *numberLit:
		if n.isInt {
			return e.newFromLongInteger(n.i), nil
		}
		return e.newFloat(n.f), nil

	case *stringLit:
		return e.newString(n.v), nil

	case *templateLit:
		out := ""
		for i, part := range n.parts {
			if n.exprs[i] != nil {
				v, err := e.evalExpr(n.exprs[i])
				if err != nil {
					return refNull, err
				}
				out += e.toStringDeep(v)
			} else {
				out += part
			}
		}
		return e.newString(out), nil

	case *boolLit:
		return e.newBool(n.v), nil

	case *nullLit:
		return e.newNull(), nil

	case *undefinedLit:
		return e.newUndefined(), nil

	case *thisExpr:
		return e.thisVar, nil

	case *identExpr:
		if v, ok := e.resolveVar(n.name); ok {
			// anchored so the value survives even if a later
			// sub-expression reassigns the variable and drops the name
			// edge that was keeping it alive
			return e.anchor(v), nil
		}
		return refNull, e.throwReferenceError("%s is not defined", n.name)

	case *arrayLit:
		arr := e.newArray()
		idx := int32(0)
		for _, el := range n.elems {
			if el == nil {
				idx++
				continue
			}
			if sp, ok := el.(*spreadExpr); ok {
				v, err := e.evalExpr(sp.x)
				if err != nil {
					return refNull, err
				}
				it := e.newArrayFullIterator(v)
				for it.hasElement() {
					e.arraySet(arr, idx, it.getValue())
					idx++
					it.next()
				}
				continue
			}
			v, err := e.evalExpr(el)
			if err != nil {
				return refNull, err
			}
			e.arraySet(arr, idx, v)
			idx++
		}
		return arr, nil

	case *objectLit:
		obj := e.newObject()
		for i, keyExpr := range n.keys {
			var key string
			if n.computed[i] {
				kv, err := e.evalExpr(keyExpr)
				if err != nil {
					return refNull, err
				}
				key = e.toStringDeep(kv)
			} else {
				switch k := keyExpr.(type) {
				case *identExpr:
					key = k.name
				case *stringLit:
					key = k.v
				}
			}
			v, err := e.evalExpr(n.values[i])
			if err != nil {
				return refNull, err
			}
			if n.kinds[i] != propPlain {
				e.defineAccessor(obj, key, v, n.kinds[i] == propGetter)
				continue
			}
			e.setOwn(obj, key, v)
		}
		return obj, nil

	case *funcExpr:
		n.fn.closure = e.currentScope()
		return e.newFunction(n.fn), nil

	case *arrowExpr:
		n.fn.closure = e.currentScope()
		n.fn.thisValue = e.thisVar
		return e.newFunction(n.fn), nil

	case *regexLit:
		return e.newRegExp(n.pattern, n.flags)

	case *classExpr:
		return e.evalClass(n.def)

	case *superExpr:
		// bare `super` evaluates to the superclass prototype, the
		// receiver super.method lookups resolve against
		if e.currentSuper == refNull {
			return refNull, e.throwSyntaxError("'super' outside a derived class method")
		}
		if pn := e.findOwn(e.currentSuper, "prototype"); pn != refNull {
			return e.anchor(e.pool.get(pn).firstChild), nil
		}
		return e.newUndefined(), nil

	case *unaryExpr:
		return e.evalUnary(n)

	case *binaryExpr:
		return e.evalBinary(n)

	case *logicalExpr:
		l, err := e.evalExpr(n.l)
		if err != nil {
			return refNull, err
		}
		switch n.op {
		case "&&":
			if !e.toBool(l) {
				return l, nil
			}
		case "||":
			if e.toBool(l) {
				return l, nil
			}
		case "??":
			if !e.isNullish(l) {
				return l, nil
			}
		}
		return e.evalExpr(n.r)

	case *condExpr:
		c, err := e.evalExpr(n.cond)
		if err != nil {
			return refNull, err
		}
		if e.toBool(c) {
			return e.evalExpr(n.then)
		}
		return e.evalExpr(n.els)

	case *assignExpr:
		return e.evalAssign(n)

	case *callExpr:
		return e.evalCall(n)

	case *newExpr:
		return e.evalNew(n)

	case *memberExpr:
		_, v, err := e.evalMember(n)
		return v, err

	case *sequenceExpr:
		var v ref
		for _, se := range n.exprs {
			var err error
			v, err = e.evalExpr(se)
			if err != nil {
				return refNull, err
			}
		}
		return v, nil

	case *spreadExpr:
		return e.evalExpr(n.x)

	default:
		return e.newUndefined(), nil
	}
}

// defineAccessor attaches one half of a getter/setter pair to obj's
// `key` property, reusing the existing vGetSet cell when the other
// half was already declared.
func (e *Engine) defineAccessor(obj ref, key string, fnRef ref, isGetter bool) {
	gs := refNull
	if nm := e.findOwn(obj, key); nm != refNull {
		if cur := e.pool.get(nm).firstChild; e.isGetSet(cur) {
			gs = cur
		}
	}
	if gs == refNull {
		gs = e.newGetSet()
		e.setOwn(obj, key, gs)
	}
	if isGetter {
		e.setOwn(gs, accGetKey, fnRef)
	} else {
		e.setOwn(gs, accSetKey, fnRef)
	}
}

// evalClass builds a class's constructor function, wiring its
// prototype chain and methods: instance methods on the prototype,
// static methods on the constructor itself, and (for derived classes)
// prototype and constructor both chained to the parent so instanceof
// and static inheritance work through the ordinary __proto__ walk.
func (e *Engine) evalClass(def *classDef) (ref, error) {
	var superCtor ref
	if def.superExpr != nil {
		v, err := e.evalExpr(def.superExpr)
		if err != nil {
			return refNull, err
		}
		if !e.isFunction(v) {
			return refNull, e.throwTypeError("class extends value is not a constructor")
		}
		superCtor = v
	}

	ctorNode := def.ctor
	if ctorNode == nil {
		src := ""
		if superCtor != refNull {
			src = "super(...arguments);"
		}
		ctorNode = &functionNode{name: def.name, code: encodeTokens(tokenise(src))}
	}
	ctorNode.closure = e.currentScope()
	ctorNode.superClass = superCtor
	ctor := e.newFunction(ctorNode)

	protoName := e.findOwn(ctor, "prototype")
	if protoName == refNull {
		return refNull, e.throwInternalError("class constructor has no prototype")
	}
	proto := e.pool.get(protoName).firstChild
	if superCtor != refNull {
		if spn := e.findOwn(superCtor, "prototype"); spn != refNull {
			e.setOwn(proto, protoKey, e.pool.get(spn).firstChild)
		}
		e.setOwn(ctor, protoKey, superCtor)
	}

	for _, m := range def.methods {
		m.fn.closure = e.currentScope()
		m.fn.superClass = superCtor
		fnRef := e.newFunction(m.fn)
		if m.static {
			e.setOwn(ctor, m.name, fnRef)
		} else {
			e.setOwn(proto, m.name, fnRef)
		}
	}
	return ctor, nil
}

func (e *Engine) evalUnary(n *unaryExpr) (ref, error) {
	if n.op == "delete" {
		if m, ok := n.x.(*memberExpr); ok {
			obj, err := e.evalExpr(m.object)
			if err != nil {
				return refNull, err
			}
			key, err := e.memberKey(m)
			if err != nil {
				return refNull, err
			}
			return e.newBool(e.deleteOwn(obj, key)), nil
		}
		return e.newBool(true), nil
	}
	if n.op == "typeof" {
		if id, ok := n.x.(*identExpr); ok {
			if v, found := e.resolveVar(id.name); found {
				return e.newString(e.typeOf(v)), nil
			}
			return e.newString("undefined"), nil
		}
		v, err := e.evalExpr(n.x)
		if err != nil {
			return refNull, err
		}
		return e.newString(e.typeOf(v)), nil
	}
	if n.op == "void" {
		if _, err := e.evalExpr(n.x); err != nil {
			return refNull, err
		}
		return e.newUndefined(), nil
	}
	if n.op == "++" || n.op == "--" {
		old, err := e.evalExpr(n.x)
		if err != nil {
			return refNull, err
		}
		delta := float64(1)
		if n.op == "--" {
			delta = -1
		}
		newVal := e.newNumber(e.toNumber(old) + delta)
		if err := e.assignTo(n.x, newVal); err != nil {
			return refNull, err
		}
		if n.prefix {
			return newVal, nil
		}
		return old, nil
	}
	v, err := e.evalExpr(n.x)
	if err != nil {
		return refNull, err
	}
	switch n.op {
	case "!":
		return e.newBool(!e.toBool(v)), nil
	case "-":
		return e.newNumber(-e.toNumber(v)), nil
	case "+":
		return e.newNumber(e.toNumber(v)), nil
	case "~":
		return e.newInt(^e.toInt32(v)), nil
	}
	return e.newUndefined(), nil
}

func (e *Engine) evalBinary(n *binaryExpr) (ref, error) {
	if n.op == "instanceof" {
		l, err := e.evalExpr(n.l)
		if err != nil {
			return refNull, err
		}
		r, err := e.evalExpr(n.r)
		if err != nil {
			return refNull, err
		}
		return e.newBool(e.isInstanceOf(l, r)), nil
	}
	if n.op == "in" {
		l, err := e.evalExpr(n.l)
		if err != nil {
			return refNull, err
		}
		r, err := e.evalExpr(n.r)
		if err != nil {
			return refNull, err
		}
		key := e.toStringDeep(l)
		return e.newBool(e.findProperty(r, key) != refNull), nil
	}
	l, err := e.evalExpr(n.l)
	if err != nil {
		return refNull, err
	}
	r, err := e.evalExpr(n.r)
	if err != nil {
		return refNull, err
	}
	return e.mathsOp(l, r, n.op), nil
}

func (e *Engine) isInstanceOf(v, ctor ref) bool {
	if !e.isFunction(ctor) {
		return false
	}
	protoName := e.findOwn(ctor, "prototype")
	if protoName == refNull {
		return false
	}
	proto := e.pool.get(protoName).firstChild
	cur := v
	seen := map[ref]bool{}
	for {
		pn := e.findOwn(cur, protoKey)
		if pn == refNull || seen[cur] {
			return false
		}
		seen[cur] = true
		cur = e.pool.get(pn).firstChild
		if cur == proto {
			return true
		}
	}
}

func (e *Engine) memberKey(m *memberExpr) (string, error) {
	if !m.computed {
		return m.property.(*identExpr).name, nil
	}
	v, err := e.evalExpr(m.property)
	if err != nil {
		return "", err
	}
	return e.toStringDeep(v), nil
}

// evalMember returns (object, value, error) — callers that need the
// receiver (method calls) use the object too.
func (e *Engine) evalMember(m *memberExpr) (ref, ref, error) {
	obj, err := e.evalExpr(m.object)
	if err != nil {
		return refNull, refNull, err
	}
	if m.optional && e.isNullish(obj) {
		return obj, e.newUndefined(), nil
	}
	if (e.isArray(obj) || e.isString(obj) || e.isArrayBuffer(obj)) && m.computed {
		if idx, ok := e.memberArrayIndex(m.property); ok {
			return obj, e.indexedGet(obj, idx), nil
		}
		iv, err := e.evalExpr(m.property)
		if err != nil {
			return refNull, refNull, err
		}
		if idx, ok := e.toArrayIndex(iv); ok {
			return obj, e.indexedGet(obj, idx), nil
		}
		// fall through to named lookup ("length", methods) with the
		// already-evaluated key
		return e.memberByName(obj, e.toStringDeep(iv))
	}
	key, err := e.memberKey(m)
	if err != nil {
		return refNull, refNull, err
	}
	return e.memberByName(obj, key)
}

// indexedGet reads obj[idx] for the three indexable kinds: array
// element, string byte (as a one-character string), or typed-array
// element. Out-of-range reads surface as undefined.
func (e *Engine) indexedGet(obj ref, idx int32) ref {
	switch {
	case e.isArray(obj):
		v := e.arrayGet(obj, idx)
		if v == refNull {
			return e.newUndefined()
		}
		return v
	case e.isString(obj):
		s := e.stringValue(obj)
		if idx < 0 || int(idx) >= len(s) {
			return e.newUndefined()
		}
		return e.newString(s[idx : idx+1])
	case e.isArrayBuffer(obj):
		c := e.pool.get(obj)
		if idx < 0 || idx >= c.bufLength {
			return e.newUndefined()
		}
		return e.arrayBufferGet(obj, int(idx))
	}
	return e.newUndefined()
}

// indexedSet writes obj[idx] = v for array elements and typed-array
// elements (string bytes are immutable through indexing, as in JS).
func (e *Engine) indexedSet(obj ref, idx int32, v ref) {
	switch {
	case e.isArray(obj):
		e.arraySet(obj, idx, v)
	case e.isArrayBuffer(obj):
		e.arrayBufferSet(obj, int(idx), v)
	}
}

// memberByName resolves a non-index property on an already-evaluated
// receiver: length, prototype methods, own properties.
func (e *Engine) memberByName(obj ref, key string) (ref, ref, error) {
	if key == "length" {
		switch {
		case e.isArray(obj):
			return obj, e.newInt(e.arrayLength(obj)), nil
		case e.isString(obj):
			return obj, e.newInt(int32(e.stringLen(obj))), nil
		case e.isArrayBuffer(obj):
			return obj, e.newInt(e.pool.get(obj).bufLength), nil
		}
	}
	// Strings are scalar cells, not containers — they have no own
	// name list to walk, so method lookup goes straight to the shared
	// String.prototype table instead of findProperty(obj, key).
	if e.isString(obj) {
		n := e.findProperty(e.stringProto, key)
		if n == refNull {
			return obj, e.newUndefined(), nil
		}
		return obj, e.anchor(e.pool.get(n).firstChild), nil
	}
	n := e.findProperty(obj, key)
	if n == refNull {
		return obj, e.newUndefined(), nil
	}
	v := e.pool.get(n).firstChild
	if e.isGetSet(v) {
		// accessor property: reading it runs the getter with the
		// receiver as `this`
		if g := e.accessor(v, accGetKey); g != refNull {
			rv, err := e.callValue(g, obj, nil)
			return obj, rv, err
		}
		return obj, e.newUndefined(), nil
	}
	return obj, e.anchor(v), nil
}

func (e *Engine) memberArrayIndex(propExpr expr) (int32, bool) {
	lit, ok := propExpr.(*numberLit)
	if !ok {
		return 0, false
	}
	if lit.isInt {
		return int32(lit.i), true
	}
	return 0, false
}

func (e *Engine) evalAssign(n *assignExpr) (ref, error) {
	if n.op == "=" {
		v, err := e.evalExpr(n.value)
		if err != nil {
			return refNull, err
		}
		if err := e.assignTo(n.target, v); err != nil {
			return refNull, err
		}
		return v, nil
	}
	old, err := e.evalExpr(n.target)
	if err != nil {
		return refNull, err
	}
	rhs, err := e.evalExpr(n.value)
	if err != nil {
		return refNull, err
	}
	op := n.op[:len(n.op)-1]
	result := e.mathsOp(old, rhs, op)
	if err := e.assignTo(n.target, result); err != nil {
		return refNull, err
	}
	return result, nil
}

func (e *Engine) assignTo(target expr, v ref) error {
	switch t := target.(type) {
	case *identExpr:
		if !e.assignVar(t.name, v) {
			e.setOwn(e.scopes[0], t.name, v) // implicit global, matches sloppy-mode JS
		}
		return nil
	case *memberExpr:
		obj, err := e.evalExpr(t.object)
		if err != nil {
			return err
		}
		if (e.isArray(obj) || e.isArrayBuffer(obj)) && t.computed {
			if idx, ok := e.memberArrayIndex(t.property); ok {
				e.indexedSet(obj, idx, v)
				return nil
			}
			iv, err := e.evalExpr(t.property)
			if err != nil {
				return err
			}
			if idx, ok := e.toArrayIndex(iv); ok {
				e.indexedSet(obj, idx, v)
				return nil
			}
		}
		key, err := e.memberKey(t)
		if err != nil {
			return err
		}
		return e.setProperty(obj, key, v)
	default:
		return e.throwReferenceError("invalid assignment target")
	}
}

func (e *Engine) evalCall(n *callExpr) (ref, error) {
	// super(...) invokes the parent constructor on the current `this`
	if _, isSuper := n.callee.(*superExpr); isSuper {
		if e.currentSuper == refNull {
			return refNull, e.throwSyntaxError("'super' call outside a derived class constructor")
		}
		args, err := e.evalArgs(n.args)
		if err != nil {
			return refNull, err
		}
		return e.callValue(e.currentSuper, e.thisVar, args)
	}
	var this ref
	var fnRef ref
	if m, ok := n.callee.(*memberExpr); ok {
		obj, v, err := e.evalMember(m)
		if err != nil {
			return refNull, err
		}
		this = obj
		fnRef = v
		if _, isSuper := m.object.(*superExpr); isSuper {
			// super.m() resolves on the parent prototype but runs with
			// the current receiver
			this = e.thisVar
		}
	} else {
		v, err := e.evalExpr(n.callee)
		if err != nil {
			return refNull, err
		}
		this = e.newUndefined()
		fnRef = v
	}
	args, err := e.evalArgs(n.args)
	if err != nil {
		return refNull, err
	}
	return e.callValue(fnRef, this, args)
}

func (e *Engine) evalArgs(argExprs []expr) ([]ref, error) {
	var args []ref
	for _, a := range argExprs {
		if sp, ok := a.(*spreadExpr); ok {
			v, err := e.evalExpr(sp.x)
			if err != nil {
				return nil, err
			}
			it := e.newArrayFullIterator(v)
			for it.hasElement() {
				args = append(args, it.getValue())
				it.next()
			}
			continue
		}
		v, err := e.evalExpr(a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

// evalNew constructs an object whose __proto__ is the callee's
// `prototype` property, invokes the constructor with that object as
// `this`, and returns the constructor's explicit return value only if
// it returned an object (ECMAScript's `[[Construct]]` rule).
func (e *Engine) evalNew(n *newExpr) (ref, error) {
	ctor, err := e.evalExpr(n.callee)
	if err != nil {
		return refNull, err
	}
	if !e.isFunction(ctor) {
		return refNull, e.throwTypeError("not a constructor")
	}
	args, err := e.evalArgs(n.args)
	if err != nil {
		return refNull, err
	}
	obj := e.newObject()
	if protoName := e.findOwn(ctor, "prototype"); protoName != refNull {
		e.setOwn(obj, protoKey, e.pool.get(protoName).firstChild)
	}
	ret, err := e.callValue(ctor, obj, args)
	if err != nil {
		return refNull, err
	}
	if e.isObject(ret) || e.isArray(ret) || e.isArrayBuffer(ret) {
		return ret, nil
	}
	return obj, nil
}
