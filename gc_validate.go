package ejs

import mapset "github.com/deckarep/golang-set/v2"

// Invariant validator used by tests (see gc_test.go /
// properties_test.go): walks the whole pool checking cell
// conservation (every referenced cell is actually allocated) and
// dangling edges (every edge target is either refNull or a live
// cell). golang-set gives the validator a cheap way to track
// visited/seen sets without reinventing one.

// ValidationReport summarises one validateHeap pass.
type ValidationReport struct {
	DanglingEdges   int
	DoubleFreed     int
	OrphanedLive    int // live, ref-eligible cells with refs==0 and lock==0 that survived a reclaim
	TotalLive       int
}

// validateHeap is the GC invariant checker, exercised by tests through
// deckarep/golang-set/v2's Set for the live/seen bookkeeping.
func (e *Engine) validateHeap() ValidationReport {
	var report ValidationReport

	live := mapset.NewThreadUnsafeSet[ref]()
	for i := 1; i < len(e.pool.cells); i++ {
		if e.pool.cells[i].variant != vUnused {
			live.Add(ref(i))
		}
	}
	report.TotalLive = live.Cardinality()

	checkEdge := func(r ref) {
		if r == refNull {
			return
		}
		if !live.Contains(r) {
			report.DanglingEdges++
		}
	}

	free := mapset.NewThreadUnsafeSet[ref]()
	for f := e.pool.freeHead; f != refNull; f = e.pool.cells[f].nextSibling {
		if free.Contains(f) {
			break // cycle guard, should never trip on a healthy free list
		}
		free.Add(f)
	}
	inter := live.Intersect(free)
	report.DoubleFreed = inter.Cardinality()

	for i := 1; i < len(e.pool.cells); i++ {
		c := &e.pool.cells[i]
		if c.variant == vUnused {
			continue
		}
		checkEdge(c.firstChild)
		checkEdge(c.lastChild)
		checkEdge(c.nextSibling)
		checkEdge(c.prevSibling)
		if c.variant.isRefEligible() && c.refs == 0 && c.lock == 0 {
			report.OrphanedLive++
		}
	}
	return report
}

// OK reports whether the heap passed every invariant check.
func (r ValidationReport) OK() bool {
	return r.DanglingEdges == 0 && r.DoubleFreed == 0 && r.OrphanedLive == 0
}
