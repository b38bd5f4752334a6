package ejs

// Garbage collector. Mark is a DFS from every locked cell plus the
// interpreter root that clears each reached cell's "white" mark;
// sweep is one linear pool pass freeing whatever is still white and
// re-threading the free list. Flat-string bodies are recognised by
// variant and skipped over, never independently marked.

const gcStackHeadroomCells = 256 // default for the vm.stack_headroom config entry; gcMark does not read it

// installGC wires the pool's alloc-time GC hook to this engine's
// collector.
func (e *Engine) installGC() {
	e.pool.gc = func(p *pool) int { return e.gcCollect() }
}

// gcCollect runs one mark+sweep pass and returns the number of cells
// reclaimed. It is idempotent and safe to call at any point between
// top-level statements (unlike Defragment, which is not and is
// therefore a separate, more restricted entry point).
func (e *Engine) gcCollect() int {
	if e.pool.memoryBusy {
		return 0
	}
	e.pool.memoryBusy = true
	defer func() { e.pool.memoryBusy = false }()

	if !e.gcMark() {
		// mark aborted (host interrupt or runaway traversal): sweeping
		// now would free cells the walk never reached, so report
		// "tried, could not complete" instead
		return 0
	}
	return e.gcSweep()
}

// gcMark sets every live, ref-eligible cell's flagGCWhite bit to zero
// by DFS from the roots: every cell with a nonzero lock count, plus
// the interpreter root and hiddenRoot. Returns false when the walk
// could not finish; the caller must not sweep in that case.
func (e *Engine) gcMark() bool {
	for i := 1; i < len(e.pool.cells); i++ {
		c := &e.pool.cells[i]
		if c.variant != vUnused {
			c.flags |= flagGCWhite
		}
	}
	var stack []ref
	push := func(r ref) {
		if r == refNull {
			return
		}
		stack = append(stack, r)
	}
	for i := 1; i < len(e.pool.cells); i++ {
		c := &e.pool.cells[i]
		// a saturated lock counter no longer tracks real owners; such a
		// cell is pinned against prompt free but still reclaimable here
		// when nothing reaches it
		if c.variant != vUnused && c.lockCount() > 0 && c.lockCount() < maxLock {
			push(ref(i))
		}
	}
	push(e.root)
	push(e.hiddenRoot)

	depth := 0
	for len(stack) > 0 {
		depth++
		if depth > 4_000_000 {
			// runaway-traversal guard: caps the number of mark steps
			return false
		}
		if depth&1023 == 0 && e.interrupted.Load() {
			return false
		}
		r := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		c := e.pool.get(r)
		if c == nil || c.flags&flagGCWhite == 0 {
			continue // already black
		}
		c.flags &^= flagGCWhite

		switch {
		case c.variant.isContainer():
			for n := c.firstChild; n != refNull; {
				nc := e.pool.get(n)
				push(n)
				push(nc.firstChild) // name's value
				n = nc.nextSibling
			}
		case c.variant == vName:
			push(c.firstChild)
		case c.variant == vString:
			for ext := c.firstChild; ext != refNull; {
				ec := e.pool.get(ext)
				ec.flags &^= flagGCWhite
				ext = ec.firstChild
			}
		case c.variant == vFlatString:
			n := e.flatStringCellCount(r)
			for i := 1; i < n; i++ {
				e.pool.cells[int(r)+i].flags &^= flagGCWhite
			}
		}
	}
	return true
}

// gcSweep frees every still-white cell, rebuilding the free list in
// ascending order so future flat-string runs still find contiguous
// space.
func (e *Engine) gcSweep() int {
	reclaimed := 0
	i := 1
	for i < len(e.pool.cells) {
		c := &e.pool.cells[i]
		if c.variant == vUnused {
			i++
			continue
		}
		if c.flags&flagGCWhite == 0 {
			i++
			continue
		}
		switch c.variant {
		case vFlatString:
			n := e.flatStringCellCount(ref(i))
			for k := 0; k < n; k++ {
				e.pool.cells[i+k] = cell{variant: vUnused}
				e.pool.used--
				reclaimed++
			}
			i += n
			continue
		case vName:
			// name cells own a ref edge to their value; the value's
			// own white-ness already determined its fate independently
			// during mark, so sweeping the name only needs to clear
			// its own slot.
		case vObject:
			// a swept object may be a RegExp value; its compiled
			// matcher lives in the same kind of side table as function
			// bodies and is dropped with the cell
			delete(e.regexps, ref(i))
		case vFunction:
			// drop the side-table entry alongside the cell so a
			// collected function's pre-tokenised body doesn't outlive
			// it — e.functions stays bounded by live functions, not by
			// how many have ever been defined.
			delete(e.functions, ref(i))
		}
		e.pool.cells[i] = cell{variant: vUnused}
		e.pool.used--
		reclaimed++
		i++
	}
	e.pool.rebuildFreeList(1, e.pool.capacity())
	return reclaimed
}

// Defragment runs a GC pass, then (only when every movable cell's
// lock count is zero) compacts the pool by walking low-to-high and
// relocating cells into the lowest free slot, rewriting every
// incoming reference. It must never be invoked while JS is executing
// — nothing on that path exposes it; it exists for host-initiated
// idle compaction between top-level Exec calls only.
func (e *Engine) Defragment() bool {
	e.gcCollect()
	for i := 1; i < len(e.pool.cells); i++ {
		r := ref(i)
		if r == e.root || r == e.hiddenRoot {
			continue // permanently pinned, remapped explicitly below
		}
		if e.pool.cells[i].variant != vUnused && e.pool.cells[i].lockCount() > 0 {
			return false
		}
	}

	mapping := make([]ref, len(e.pool.cells))
	for i := range mapping {
		mapping[i] = ref(i)
	}
	newCells := make([]cell, len(e.pool.cells))
	write := 1
	for read := 1; read < len(e.pool.cells); read++ {
		if e.pool.cells[read].variant == vUnused {
			continue
		}
		newCells[write] = e.pool.cells[read]
		mapping[read] = ref(write)
		write++
	}
	for i := write; i < len(newCells); i++ {
		newCells[i] = cell{variant: vUnused}
	}
	remap := func(r ref) ref {
		if r == refNull {
			return refNull
		}
		return mapping[r]
	}
	for i := 1; i < write; i++ {
		c := &newCells[i]
		c.firstChild = remap(c.firstChild)
		c.lastChild = remap(c.lastChild)
		c.nextSibling = remap(c.nextSibling)
		c.prevSibling = remap(c.prevSibling)
	}
	e.pool.cells = newCells
	e.pool.rebuildFreeList(write, e.pool.capacity())
	e.root = remap(e.root)
	e.hiddenRoot = remap(e.hiddenRoot)
	e.thisVar = remap(e.thisVar)
	e.arrayProto = remap(e.arrayProto)
	e.stringProto = remap(e.stringProto)
	for i := range e.scopes {
		e.scopes[i] = remap(e.scopes[i])
	}
	for i := range e.pool.trace {
		e.pool.trace[i] = remap(e.pool.trace[i])
	}

	// vFunction cells move like any other cell; re-key the side table
	// under the post-compaction ref so callValue's e.functions[fnRef]
	// lookup still finds them, and remap each node's captured refs.
	remapped := make(map[ref]*functionNode, len(e.functions))
	for old, fn := range e.functions {
		fn.closure = remap(fn.closure)
		fn.thisValue = remap(fn.thisValue)
		fn.superClass = remap(fn.superClass)
		remapped[remap(old)] = fn
	}
	e.functions = remapped
	e.currentSuper = remap(e.currentSuper)

	remappedRe := make(map[ref]*regexpEntry, len(e.regexps))
	for old, ent := range e.regexps {
		remappedRe[remap(old)] = ent
	}
	e.regexps = remappedRe
	return true
}
