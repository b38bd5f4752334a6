package ejs

import (
	"encoding/binary"
	"math"
)

// Array-buffer views. A view is a vArrayBuffer cell whose payload
// packs {elemType, byteOffset, length}; a hidden name child points
// at the backing string (any string representation serves as the
// byte store), and encoding/binary handles the endian work.

// newArrayBuffer allocates a zero-filled backing store of n bytes and
// wraps it in a raw (untyped, elemUint8) view.
func (e *Engine) newArrayBuffer(n int) ref {
	backing := e.newString(string(make([]byte, n)))
	return e.newArrayBufferView(backing, elemUint8, 0, n)
}

func (e *Engine) newArrayBufferFromString(s string) ref {
	backing := e.newString(s)
	return e.newArrayBufferView(backing, elemUint8, 0, len(s))
}

// bufKey is the hidden name under which a view's backing string hangs
// in its child list — a real name edge, so the shared container
// mark/reclaim machinery keeps a backing alive exactly as long as some
// view references it (several views may share one backing).
const bufKey = "\xffbuf"

func (e *Engine) newArrayBufferView(backing ref, t elemType, byteOffset, byteLength int) ref {
	r, err := e.pool.alloc(vArrayBuffer)
	if err != nil {
		return refNull
	}
	c := e.pool.get(r)
	c.bufElem = t
	c.bufOffset = int32(byteOffset)
	elemSize := t.size()
	if elemSize == 0 {
		elemSize = 1
	}
	c.bufLength = int32(byteLength / elemSize)
	e.setOwn(r, bufKey, backing)
	return r
}

func (e *Engine) arrayBufferBacking(view ref) ref {
	if n := e.findOwn(view, bufKey); n != refNull {
		return e.pool.get(n).firstChild
	}
	return refNull
}

func (e *Engine) arrayBufferByteLength(view ref) int {
	c := e.pool.get(view)
	return int(c.bufLength) * c.bufElem.size()
}

func (e *Engine) readBufByte(view ref, byteIdx int) byte {
	c := e.pool.get(view)
	backing := e.arrayBufferBacking(view)
	it := e.newStringIter(backing)
	it.goTo(int(c.bufOffset) + byteIdx)
	return it.get()
}

func (e *Engine) writeBufByte(view ref, byteIdx int, b byte) {
	c := e.pool.get(view)
	backing := e.arrayBufferBacking(view)
	bc := e.pool.get(backing)
	if bc == nil {
		return
	}
	switch bc.variant {
	case vString:
		// walk to the cell holding this byte and overwrite in place
		target := int(c.bufOffset) + byteIdx
		cur := backing
		base := 0
		for cur != refNull {
			cc := e.pool.get(cur)
			if target < base+int(cc.length) {
				cc.data[target-base] = b
				return
			}
			base += int(cc.length)
			cur = cc.firstChild
		}
	case vFlatString:
		idx := int(backing) + 1 + (int(c.bufOffset)+byteIdx)/stringCellBytes
		e.pool.cells[idx].data[(int(c.bufOffset)+byteIdx)%stringCellBytes] = b
	}
}

// arrayBufferGet implements indexed read, reinterpreting the backing
// bytes per the view's element type (host-native endian for typed
// arrays).
func (e *Engine) arrayBufferGet(view ref, index int) ref {
	c := e.pool.get(view)
	size := c.bufElem.size()
	buf := make([]byte, size)
	for i := 0; i < size; i++ {
		buf[i] = e.readBufByte(view, index*size+i)
	}
	return e.decodeElem(c.bufElem, buf, false)
}

// dataViewGet supports DataView's per-call endian choice.
func (e *Engine) dataViewGet(view ref, t elemType, byteOffset int, littleEndian bool) ref {
	size := t.size()
	buf := make([]byte, size)
	for i := 0; i < size; i++ {
		buf[i] = e.readBufByte(view, byteOffset+i)
	}
	return e.decodeElem(t, buf, !littleEndian)
}

func (e *Engine) decodeElem(t elemType, buf []byte, bigEndian bool) ref {
	if bigEndian {
		reverse(buf)
	}
	switch t {
	case elemInt8:
		return e.newInt(int32(int8(buf[0])))
	case elemUint8, elemUint8Clamped:
		return e.newInt(int32(buf[0]))
	case elemInt16:
		return e.newInt(int32(int16(binary.LittleEndian.Uint16(buf))))
	case elemUint16:
		return e.newInt(int32(binary.LittleEndian.Uint16(buf)))
	case elemInt32:
		return e.newFromLongInteger(int64(int32(binary.LittleEndian.Uint32(buf))))
	case elemUint32:
		return e.newFromLongInteger(int64(binary.LittleEndian.Uint32(buf)))
	case elemFloat32:
		return e.newFloat(float64(math.Float32frombits(binary.LittleEndian.Uint32(buf))))
	case elemFloat64:
		return e.newFloat(math.Float64frombits(binary.LittleEndian.Uint64(buf)))
	}
	return e.newUndefined()
}

// arrayBufferSet implements element set() with clamp/truncate/float
// encoding.
func (e *Engine) arrayBufferSet(view ref, index int, v ref) {
	c := e.pool.get(view)
	buf := e.encodeElem(c.bufElem, v, false)
	for i, b := range buf {
		e.writeBufByte(view, index*c.bufElem.size()+i, b)
	}
}

func (e *Engine) dataViewSet(view ref, t elemType, byteOffset int, v ref, littleEndian bool) {
	buf := e.encodeElem(t, v, !littleEndian)
	for i, b := range buf {
		e.writeBufByte(view, byteOffset+i, b)
	}
}

func (e *Engine) encodeElem(t elemType, v ref, bigEndian bool) []byte {
	buf := make([]byte, t.size())
	switch t {
	case elemInt8:
		buf[0] = byte(int8(e.toInt32(v)))
	case elemUint8:
		buf[0] = byte(e.toInt32(v))
	case elemUint8Clamped:
		n := e.toNumber(v)
		if n < 0 {
			n = 0
		} else if n > 255 {
			n = 255
		}
		buf[0] = byte(int32(n + 0.5))
	case elemInt16:
		binary.LittleEndian.PutUint16(buf, uint16(e.toInt32(v)))
	case elemUint16:
		binary.LittleEndian.PutUint16(buf, uint16(e.toInt32(v)))
	case elemInt32:
		binary.LittleEndian.PutUint32(buf, uint32(e.toInt32(v)))
	case elemUint32:
		binary.LittleEndian.PutUint32(buf, e.toUint32(v))
	case elemFloat32:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(e.toNumber(v))))
	case elemFloat64:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(e.toNumber(v)))
	}
	if bigEndian {
		reverse(buf)
	}
	return buf
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
