package ejs

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// TestValidateHeapCleanAfterGC exercises the golang-set-backed invariant
// checker itself: a live object graph plus unreachable garbage should
// validate clean once gcCollect has run, with no dangling edges, no
// double-freed cells, and no ref-eligible orphans.
func TestValidateHeapCleanAfterGC(t *testing.T) {
	e := NewEngine(nil)

	mark := e.tempMark()
	root := e.newObject()
	e.setOwn(root, "a", e.newInt(1))
	child := e.newObject()
	e.setOwn(child, "b", e.newString("hi"))
	e.setOwn(root, "child", child)

	garbage := e.newObject()
	e.setOwn(garbage, "junk", e.newInt(2)) // unreachable from root, collectible
	e.releaseTemps(mark, root)

	e.gcCollect()

	report := e.validateHeap()
	require.True(t, report.OK(), "%+v", report)
	require.Zero(t, report.DanglingEdges)
	require.Zero(t, report.DoubleFreed)
	require.Zero(t, report.OrphanedLive)

	e.Unlock(root)
	e.gcCollect()
	require.True(t, e.validateHeap().OK())
}

// TestHeapShapeRestoredAfterCollection builds a cyclic object graph —
// the case prompt ref-counted reclamation can never take back — drops
// every anchor, collects, and diffs a full per-cell heap snapshot
// against the pre-allocation state.
func TestHeapShapeRestoredAfterCollection(t *testing.T) {
	e := NewEngine(nil)
	snapshot := func() map[ref]string {
		m := map[ref]string{}
		for i := 1; i < len(e.pool.cells); i++ {
			if e.pool.cells[i].variant != vUnused {
				m[ref(i)] = e.pool.cells[i].variant.String()
			}
		}
		return m
	}
	before := snapshot()

	mark := e.tempMark()
	obj := e.newObject()
	e.setOwn(obj, "label", e.newString("reachable only from the cycle"))
	other := e.newObject()
	e.setOwn(obj, "peer", other)
	e.setOwn(other, "back", obj) // obj <-> other keeps both refs nonzero forever
	e.releaseTemps(mark)

	e.gcCollect()
	require.Empty(t, cmp.Diff(before, snapshot()))
}
