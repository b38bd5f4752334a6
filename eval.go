package ejs

// The tree-walking evaluator. Each exec* function returns an
// execute-flags bitmask instead of a single success bool, plus
// whatever value that flag carries (a function's return value; a
// thrown value travels through the `error` return instead since Go
// already gives us a clean unwind channel for that).

// ctrl is the per-statement outcome: which control-flow flag fired,
// the value it carries (for execReturn), and the label it targets
// (for labeled break/continue).
type ctrl struct {
	flag  execFlag
	value ref
	label string
}

var normalCtrl = ctrl{flag: execNormal}

// execBlock runs a statement list as one lexical block, returning as
// soon as a control-flow statement fires.
func (e *Engine) execBlock(body []stmt) (execFlag, ref, error) {
	c, err := e.execStmts(body)
	return c.flag, c.value, err
}

// execStmts runs each statement inside its own temp-root frame, so a
// statement's intermediates are reclaimed the moment it completes and
// only its result value (threaded through ctrl.value — Exec's
// "last-statement value" and return's carrier) survives into the
// enclosing frame.
func (e *Engine) execStmts(body []stmt) (ctrl, error) {
	last := refNull
	for _, s := range body {
		if err := e.interruptCheck(); err != nil {
			return ctrl{flag: execInterrupted}, err
		}
		mark := e.tempMark()
		c, err := e.execStmt(s)
		if err != nil {
			e.releaseTemps(mark)
			return ctrl{flag: execException}, err
		}
		e.releaseTemps(mark, c.value)
		if c.flag != execNormal {
			return c, nil
		}
		last = c.value
	}
	return ctrl{flag: execNormal, value: last}, nil
}

func (e *Engine) execStmt(s stmt) (ctrl, error) {
	switch n := s.(type) {
	case *emptyStmt:
		return normalCtrl, nil

	case *exprStmt:
		v, err := e.evalExpr(n.x)
		if err != nil {
			return ctrl{}, err
		}
		return ctrl{flag: execNormal, value: v}, nil

	case *varDeclStmt:
		for i, name := range n.names {
			var v ref
			if n.inits[i] != nil {
				var err error
				v, err = e.evalExpr(n.inits[i])
				if err != nil {
					return ctrl{}, err
				}
			} else {
				v = e.newUndefined()
			}
			e.declareVar(name, v)
		}
		return normalCtrl, nil

	case *funcDeclStmt:
		n.fn.closure = e.currentScope()
		fnRef := e.newFunction(n.fn)
		e.declareVar(n.fn.name, fnRef)
		return normalCtrl, nil

	case *classDeclStmt:
		ctor, err := e.evalClass(n.def)
		if err != nil {
			return ctrl{}, err
		}
		e.declareVar(n.def.name, ctor)
		return normalCtrl, nil

	case *blockStmt:
		e.pushScope()
		defer e.popScope()
		c, err := e.execStmts(n.body)
		return c, err

	case *ifStmt:
		cond, err := e.evalExpr(n.cond)
		if err != nil {
			return ctrl{}, err
		}
		if e.toBool(cond) {
			return e.execStmt(n.then)
		}
		if n.els != nil {
			return e.execStmt(n.els)
		}
		return normalCtrl, nil

	case *whileStmt:
		// each iteration gets its own temp frame so a long-running loop
		// reclaims its intermediates as it goes instead of pinning them
		// until the whole statement finishes
		for {
			if err := e.interruptCheck(); err != nil {
				return ctrl{flag: execInterrupted}, err
			}
			mark := e.tempMark()
			cond, err := e.evalExpr(n.cond)
			if err != nil {
				e.releaseTemps(mark)
				return ctrl{}, err
			}
			if !e.toBool(cond) {
				e.releaseTemps(mark)
				break
			}
			c, err := e.execStmt(n.body)
			if err != nil {
				e.releaseTemps(mark)
				return ctrl{}, err
			}
			if c.flag.is(execBreak) {
				e.releaseTemps(mark)
				if c.label != "" {
					return c, nil
				}
				break
			}
			if c.flag.is(execReturn) || c.flag.is(execException) {
				e.releaseTemps(mark, c.value)
				return c, nil
			}
			// execContinue (labeled or not) just falls through to the next iteration
			e.releaseTemps(mark)
		}
		return normalCtrl, nil

	case *doWhileStmt:
		for {
			if err := e.interruptCheck(); err != nil {
				return ctrl{flag: execInterrupted}, err
			}
			mark := e.tempMark()
			c, err := e.execStmt(n.body)
			if err != nil {
				e.releaseTemps(mark)
				return ctrl{}, err
			}
			if c.flag.is(execBreak) {
				e.releaseTemps(mark)
				if c.label != "" {
					return c, nil
				}
				break
			}
			if c.flag.is(execReturn) || c.flag.is(execException) {
				e.releaseTemps(mark, c.value)
				return c, nil
			}
			cond, err := e.evalExpr(n.cond)
			if err != nil {
				e.releaseTemps(mark)
				return ctrl{}, err
			}
			stop := !e.toBool(cond)
			e.releaseTemps(mark)
			if stop {
				break
			}
		}
		return normalCtrl, nil

	case *forStmt:
		e.pushScope()
		defer e.popScope()
		if n.init != nil {
			if _, err := e.execStmt(n.init); err != nil {
				return ctrl{}, err
			}
		}
		for {
			if err := e.interruptCheck(); err != nil {
				return ctrl{flag: execInterrupted}, err
			}
			mark := e.tempMark()
			if n.cond != nil {
				cond, err := e.evalExpr(n.cond)
				if err != nil {
					e.releaseTemps(mark)
					return ctrl{}, err
				}
				if !e.toBool(cond) {
					e.releaseTemps(mark)
					break
				}
			}
			c, err := e.execStmt(n.body)
			if err != nil {
				e.releaseTemps(mark)
				return ctrl{}, err
			}
			if c.flag.is(execBreak) {
				e.releaseTemps(mark)
				if c.label != "" {
					return c, nil
				}
				break
			}
			if c.flag.is(execReturn) || c.flag.is(execException) {
				e.releaseTemps(mark, c.value)
				return c, nil
			}
			if n.post != nil {
				if _, err := e.evalExpr(n.post); err != nil {
					e.releaseTemps(mark)
					return ctrl{}, err
				}
			}
			e.releaseTemps(mark)
		}
		return normalCtrl, nil

	case *forInStmt:
		return e.execForIn(n)

	case *breakStmt:
		return ctrl{flag: execBreak, label: n.label}, nil

	case *continueStmt:
		return ctrl{flag: execContinue, label: n.label}, nil

	case *returnStmt:
		var v ref
		if n.x != nil {
			var err error
			v, err = e.evalExpr(n.x)
			if err != nil {
				return ctrl{}, err
			}
		} else {
			v = e.newUndefined()
		}
		return ctrl{flag: execReturn, value: v}, nil

	case *throwStmt:
		v, err := e.evalExpr(n.x)
		if err != nil {
			return ctrl{}, err
		}
		return ctrl{flag: execException}, e.throwValue(v)

	case *tryStmt:
		return e.execTry(n)

	case *switchStmt:
		return e.execSwitch(n)

	case *labeledStmt:
		c, err := e.execStmt(n.body)
		if err != nil {
			return c, err
		}
		if (c.flag.is(execBreak) || c.flag.is(execContinue)) && c.label == n.label {
			return normalCtrl, nil
		}
		return c, nil

	default:
		return normalCtrl, nil
	}
}

func (e *Engine) execForIn(n *forInStmt) (ctrl, error) {
	obj, err := e.evalExpr(n.object)
	if err != nil {
		return ctrl{}, err
	}
	e.pushScope()
	defer e.popScope()

	var it *Iterator
	if n.isOf {
		if e.isArray(obj) {
			it = e.newArrayFullIterator(obj)
		} else if e.isString(obj) {
			it = e.newStringIterator(obj)
		} else if e.isArrayBuffer(obj) {
			it = e.newArrayBufferIterator(obj)
		} else {
			return ctrl{}, e.throwTypeError("value is not iterable")
		}
	} else {
		it = e.newObjectIterator(obj)
	}

	for it.hasElement() {
		if err := e.interruptCheck(); err != nil {
			return ctrl{flag: execInterrupted}, err
		}
		mark := e.tempMark()
		var bound ref
		if n.isOf {
			bound = it.getValue()
		} else {
			bound = it.getKey()
		}
		if n.declKind != "" {
			e.declareVar(n.name, bound)
		} else {
			e.assignVar(n.name, bound)
		}
		c, err := e.execStmt(n.body)
		if err != nil {
			e.releaseTemps(mark)
			return ctrl{}, err
		}
		if c.flag.is(execBreak) {
			e.releaseTemps(mark)
			if c.label != "" {
				return c, nil
			}
			break
		}
		if c.flag.is(execReturn) || c.flag.is(execException) {
			e.releaseTemps(mark, c.value)
			return c, nil
		}
		e.releaseTemps(mark)
		it.next()
	}
	return normalCtrl, nil
}

func (e *Engine) execTry(n *tryStmt) (ctrl, error) {
	c, err := e.execStmt(n.block)
	if err != nil && n.catchBlock != nil && !isInterruptError(err) {
		e.pushScope()
		if n.catchParam != "" {
			if thrown, ok := asThrown(err); ok && thrown.Value != refNull {
				e.declareVar(n.catchParam, thrown.Value)
			} else {
				e.declareVar(n.catchParam, e.newString(err.Error()))
			}
		}
		// catch boundary: the pending-exception slot on hiddenRoot is
		// cleared now that the value is bound (or discarded)
		e.clearPendingException()
		c, err = e.execStmts(n.catchBlock.body)
		e.popScope()
	}
	if n.finallyBlock != nil {
		fc, ferr := e.execStmt(n.finallyBlock)
		if ferr != nil {
			return fc, ferr
		}
		if fc.flag != execNormal {
			return fc, nil
		}
	}
	return c, err
}

func (e *Engine) execSwitch(n *switchStmt) (ctrl, error) {
	tag, err := e.evalExpr(n.tag)
	if err != nil {
		return ctrl{}, err
	}
	e.pushScope()
	defer e.popScope()

	matched := -1
	for i, c := range n.cases {
		if c.isDefault {
			continue
		}
		v, err := e.evalExpr(c.expr)
		if err != nil {
			return ctrl{}, err
		}
		if e.strictEquals(tag, v) {
			matched = i
			break
		}
	}
	if matched == -1 {
		for i, c := range n.cases {
			if c.isDefault {
				matched = i
				break
			}
		}
	}
	if matched == -1 {
		return normalCtrl, nil
	}
	for i := matched; i < len(n.cases); i++ {
		cc, err := e.execStmts(n.cases[i].body)
		if err != nil {
			return ctrl{}, err
		}
		if cc.flag.is(execBreak) && cc.label == "" {
			return normalCtrl, nil
		}
		if cc.flag != execNormal {
			return cc, nil
		}
	}
	return normalCtrl, nil
}

// Exec parses and runs a top-level program, the host-facing entry
// point (EjsExec wraps this). The returned ref carries one
// lock per the embedding contract; the host releases it with Unlock.
func (e *Engine) Exec(src string) (ref, error) {
	mark := e.tempMark()
	p := e.newParser(src)
	prog, err := p.parseProgram()
	e.lex = nil
	if err != nil {
		e.recordException(err)
		e.releaseTemps(mark)
		return refNull, err
	}
	_, v, err := e.execBlock(prog)
	if err != nil {
		if isInterruptError(err) {
			e.interrupted.Store(false)
		} else {
			e.recordException(err)
		}
		e.releaseTemps(mark)
		return refNull, err
	}
	if v == refNull {
		v = e.newUndefined()
	}
	e.releaseTemps(mark, v)
	return v, nil
}

func (e *Engine) recordException(err error) {
	if t, ok := asThrown(err); ok {
		e.lastException = t
	}
}
