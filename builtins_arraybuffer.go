package ejs

// The global constructors that make the element-level work in
// arraybuffer.go reachable from script: `new ArrayBuffer(n)`, the
// nine typed-array constructors, and `DataView`. Each is a native
// constructor function the same shape as builtins_regexp.go's
// `RegExp`: evalNew supplies `this` as a fresh object, and the
// constructor's return value (here always a vArrayBuffer cell, never
// `this`) replaces it per `[[Construct]]`.

type typedArrayKind struct {
	name string
	elem elemType
}

var typedArrayKinds = []typedArrayKind{
	{"Int8Array", elemInt8},
	{"Uint8Array", elemUint8},
	{"Uint8ClampedArray", elemUint8Clamped},
	{"Int16Array", elemInt16},
	{"Uint16Array", elemUint16},
	{"Int32Array", elemInt32},
	{"Uint32Array", elemUint32},
	{"Float32Array", elemFloat32},
	{"Float64Array", elemFloat64},
}

func (e *Engine) installArrayBufferSupport() {
	e.setOwn(e.root, "ArrayBuffer", e.newNativeFunction(nf("ArrayBuffer", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		n := 0
		if len(args) > 0 {
			n = int(e.toInt32(args[0]))
		}
		if n < 0 {
			return refNull, e.throwRangeError("invalid array buffer length")
		}
		return e.newArrayBuffer(n), nil
	})))

	for _, k := range typedArrayKinds {
		kind := k // capture for the closure below
		e.setOwn(e.root, kind.name, e.newNativeFunction(nf(kind.name, 1, func(e *Engine, this ref, args []ref) (ref, error) {
			return e.newTypedArray(kind.elem, args)
		})))
	}

	e.setOwn(e.root, "DataView", e.newNativeFunction(nf("DataView", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		if len(args) == 0 || !e.isArrayBuffer(args[0]) {
			return refNull, e.throwTypeError("DataView requires an ArrayBuffer")
		}
		buf := args[0]
		byteOffset := 0
		if len(args) > 1 {
			byteOffset = int(e.toInt32(args[1]))
		}
		byteLength := e.arrayBufferByteLength(buf) - byteOffset
		if len(args) > 2 {
			byteLength = int(e.toInt32(args[2]))
		}
		view := e.newArrayBufferView(e.arrayBufferBacking(buf), elemUint8, byteOffset, byteLength)
		e.installDataViewMethods(view)
		return view, nil
	})))
}

// newTypedArray supports the three constructor forms: a length, an
// existing ArrayBuffer (with optional
// byteOffset/length), or an array-like to copy element values from.
func (e *Engine) newTypedArray(t elemType, args []ref) (ref, error) {
	if len(args) == 0 {
		return e.newArrayBufferView(e.newString(""), t, 0, 0), nil
	}
	arg0 := args[0]
	switch {
	case e.isArrayBuffer(arg0):
		byteOffset := 0
		if len(args) > 1 {
			byteOffset = int(e.toInt32(args[1]))
		}
		byteLength := e.arrayBufferByteLength(arg0) - byteOffset
		if len(args) > 2 {
			byteLength = int(e.toInt32(args[2])) * t.size()
		}
		return e.newArrayBufferView(e.arrayBufferBacking(arg0), t, byteOffset, byteLength), nil
	case e.isNumeric(arg0):
		n := int(e.toInt32(arg0))
		if n < 0 {
			return refNull, e.throwRangeError("invalid typed array length")
		}
		backing := e.newString(string(make([]byte, n*t.size())))
		return e.newArrayBufferView(backing, t, 0, n*t.size()), nil
	case e.isArray(arg0):
		length := e.arrayLength(arg0)
		view := e.newArrayBufferView(e.newString(string(make([]byte, int(length)*t.size()))), t, 0, int(length)*t.size())
		for i := int32(0); i < length; i++ {
			e.arrayBufferSet(view, int(i), e.arrayGet(arg0, i))
		}
		return view, nil
	default:
		return refNull, e.throwTypeError("invalid typed array source")
	}
}

// installDataViewMethods wires getInt8/getUint8/.../setFloat64 onto a
// freshly-built DataView cell, each delegating to dataViewGet/Set's
// shared encode/decode logic with an explicit little-endian flag.
func (e *Engine) installDataViewMethods(view ref) {
	type dvMethod struct {
		name string
		elem elemType
	}
	methods := []dvMethod{
		{"Int8", elemInt8}, {"Uint8", elemUint8},
		{"Int16", elemInt16}, {"Uint16", elemUint16},
		{"Int32", elemInt32}, {"Uint32", elemUint32},
		{"Float32", elemFloat32}, {"Float64", elemFloat64},
	}
	for _, m := range methods {
		elem := m.elem
		e.setOwn(view, "get"+m.name, e.newNativeFunction(nf("get"+m.name, 1, func(e *Engine, this ref, args []ref) (ref, error) {
			byteOffset := int(e.toInt32(arg(args, 0, e)))
			littleEndian := len(args) > 1 && e.toBool(args[1])
			return e.dataViewGet(view, elem, byteOffset, littleEndian), nil
		})))
		e.setOwn(view, "set"+m.name, e.newNativeFunction(nf("set"+m.name, 2, func(e *Engine, this ref, args []ref) (ref, error) {
			byteOffset := int(e.toInt32(arg(args, 0, e)))
			littleEndian := len(args) > 2 && e.toBool(args[2])
			e.dataViewSet(view, elem, byteOffset, arg(args, 1, e), littleEndian)
			return e.newUndefined(), nil
		})))
	}
	e.setOwn(view, "byteLength", e.newInt(int32(e.arrayBufferByteLength(view))))
}
