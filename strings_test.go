package ejs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestStringIterGotoEnd exercises the chained-string iterator's
// goto(idx)/gotoEnd primitives directly:
// after gotoEnd, hasChar must be false, and a subsequent
// goto back to 0 must re-walk the chain from the head.
func TestStringIterGotoEnd(t *testing.T) {
	e := NewEngine(nil)
	long := make([]byte, stringCellBytes*3+2) // spans head + three extensions
	for i := range long {
		long[i] = byte('a' + i%26)
	}
	r := e.newStringChained(string(long))

	it := e.newStringIter(r)
	it.gotoEnd()
	require.False(t, it.hasChar())

	it.goTo(0)
	require.True(t, it.hasChar())
	var out []byte
	for it.hasChar() {
		out = append(out, it.getAndNext())
	}
	require.Equal(t, long, out)
}

// TestStringAppendByte exercises the chained string's incremental
// byte-append primitive — mutate in place up to capacity, then
// allocate a new extension — across a head-cell-sized run that
// forces at least one extension allocation.
func TestStringAppendByte(t *testing.T) {
	e := NewEngine(nil)
	r := e.newStringChained("")
	for i := 0; i < stringCellBytes+3; i++ {
		e.stringAppendByte(r, byte('a'+i%26))
	}
	require.Equal(t, stringCellBytes+3, e.stringLen(r))
	got := e.stringValue(r)
	require.Len(t, got, stringCellBytes+3)
	require.Equal(t, byte('a'), got[0])
}

// TestNewNativeString exercises the zero-copy native-string
// representation (bytes living outside the pool), confirming it
// round-trips through the same stringValue/stringLen/stringIter
// façade as the chained and flat representations.
func TestNewNativeString(t *testing.T) {
	e := NewEngine(nil)
	r := e.newNativeString("hello native")
	require.True(t, e.isString(r))
	require.Equal(t, "hello native", e.stringValue(r))
	require.Equal(t, len("hello native"), e.stringLen(r))

	it := e.newStringIter(r)
	var out []byte
	for it.hasChar() {
		out = append(out, it.getAndNext())
	}
	require.Equal(t, "hello native", string(out))
}

// TestIteratorTypedAccessors exercises the Iterator's typed
// convenience accessors (getIntegerValue, getFloatValue), confirming
// they agree with the untyped getValue()+coercion path.
func TestIteratorTypedAccessors(t *testing.T) {
	e := NewEngine(nil)
	arr := e.newArray()
	e.arraySet(arr, 0, e.newInt(7))
	e.arraySet(arr, 1, e.newFloat(2.5))

	it := e.newArrayFullIterator(arr)
	require.Equal(t, int32(7), it.getIntegerValue())
	require.Equal(t, float64(7), it.getFloatValue())
	it.next()
	require.Equal(t, float64(2.5), it.getFloatValue())
}

// TestNewArrayBufferFromString exercises the from-string
// array-buffer constructor, confirming the resulting view reads back
// the exact bytes it was built from.
func TestNewArrayBufferFromString(t *testing.T) {
	e := NewEngine(nil)
	view := e.newArrayBufferFromString("abcd")
	require.True(t, e.isArrayBuffer(view))
	require.Equal(t, 4, e.arrayBufferByteLength(view))
	for i, want := range []byte("abcd") {
		got := e.arrayBufferGet(view, i)
		require.Equal(t, int32(want), e.toInt32(got))
	}
}
