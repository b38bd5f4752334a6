package ejs

import (
	"math"
	"math/rand"
)

// installMath wires the Math object, one native closure per entry.
func (e *Engine) installMath() {
	m := e.newObject()
	e.setOwn(e.root, "Math", m)
	e.setOwn(m, "PI", e.newFloat(math.Pi))
	e.setOwn(m, "E", e.newFloat(math.E))
	e.setOwn(m, "LN2", e.newFloat(math.Ln2))
	e.setOwn(m, "LN10", e.newFloat(math.Log(10)))

	unary := func(name string, fn func(float64) float64) {
		e.setOwn(m, name, e.newNativeFunction(nf(name, 1, func(e *Engine, this ref, args []ref) (ref, error) {
			return e.newFloat(fn(e.toNumber(arg(args, 0, e)))), nil
		})))
	}
	unary("abs", math.Abs)
	unary("floor", math.Floor)
	unary("ceil", math.Ceil)
	unary("sqrt", math.Sqrt)
	unary("cbrt", math.Cbrt)
	unary("sin", math.Sin)
	unary("cos", math.Cos)
	unary("tan", math.Tan)
	unary("atan", math.Atan)
	unary("asin", math.Asin)
	unary("acos", math.Acos)
	unary("log", math.Log)
	unary("log2", math.Log2)
	unary("log10", math.Log10)
	unary("exp", math.Exp)
	unary("trunc", math.Trunc)
	unary("sign", func(f float64) float64 {
		switch {
		case f > 0:
			return 1
		case f < 0:
			return -1
		default:
			return f
		}
	})

	e.setOwn(m, "round", e.newNativeFunction(nf("round", 1, func(e *Engine, this ref, args []ref) (ref, error) {
		return e.newFloat(math.Floor(e.toNumber(arg(args, 0, e)) + 0.5)), nil
	})))
	e.setOwn(m, "pow", e.newNativeFunction(nf("pow", 2, func(e *Engine, this ref, args []ref) (ref, error) {
		return e.newNumber(math.Pow(e.toNumber(arg(args, 0, e)), e.toNumber(arg(args, 1, e)))), nil
	})))
	e.setOwn(m, "atan2", e.newNativeFunction(nf("atan2", 2, func(e *Engine, this ref, args []ref) (ref, error) {
		return e.newFloat(math.Atan2(e.toNumber(arg(args, 0, e)), e.toNumber(arg(args, 1, e)))), nil
	})))
	e.setOwn(m, "hypot", e.newNativeFunction(nf("hypot", 2, func(e *Engine, this ref, args []ref) (ref, error) {
		return e.newFloat(math.Hypot(e.toNumber(arg(args, 0, e)), e.toNumber(arg(args, 1, e)))), nil
	})))
	e.setOwn(m, "max", e.newNativeFunction(nf("max", 2, func(e *Engine, this ref, args []ref) (ref, error) {
		best := math.Inf(-1)
		for _, a := range args {
			n := e.toNumber(a)
			if math.IsNaN(n) {
				return e.newFloat(math.NaN()), nil
			}
			if n > best {
				best = n
			}
		}
		return e.newNumber(best), nil
	})))
	e.setOwn(m, "min", e.newNativeFunction(nf("min", 2, func(e *Engine, this ref, args []ref) (ref, error) {
		best := math.Inf(1)
		for _, a := range args {
			n := e.toNumber(a)
			if math.IsNaN(n) {
				return e.newFloat(math.NaN()), nil
			}
			if n < best {
				best = n
			}
		}
		return e.newNumber(best), nil
	})))
	e.setOwn(m, "random", e.newNativeFunction(nf("random", 0, func(e *Engine, this ref, args []ref) (ref, error) {
		return e.newFloat(rand.Float64()), nil
	})))
}
