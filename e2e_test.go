package ejs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// runAndCapture runs src on a fresh engine and returns everything
// sent through the print hook.
func runAndCapture(t *testing.T, src string) string {
	t.Helper()
	e := NewEngine(nil)
	var out strings.Builder
	e.SetPrintHook(func(s string) { out.WriteString(s) })
	_, err := e.Exec(src)
	require.NoError(t, err)
	return out.String()
}

func TestEndToEndConsoleScenarios(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"arithmetic precedence", `print(1+2*3)`, "7\n"},
		{"function call", `var f = function(x){ return x*x; }; print(f(5))`, "25\n"},
		{"array sort with comparator", `var a = [3,1,4,1,5,9,2,6]; a.sort(function(x,y){return x-y;}); print(a.join(','))`, "1,1,2,3,4,5,6,9\n"},
		{"JSON.stringify", `print(JSON.stringify({a:1,b:[true,null,"x"]}))`, `{"a":1,"b":[true,null,"x"]}` + "\n"},
		{"try/catch error message", `try { throw new Error("oops"); } catch(e) { print(e.message); }`, "oops\n"},
		{"string concat loop", `var s=""; for (var i=0;i<5;i++) s+=i; print(s)`, "01234\n"},
		{"typeof reflection", `print(typeof 1, typeof "s", typeof [], typeof null)`, "number string object object\n"},
		{"regex replace", `print("abc123def".replace(/[0-9]+/g, "#"))`, "abc#def\n"},
		{"computed array index", `var a=[1,2,3]; var t=0; for (var i=0;i<a.length;i++) t+=a[i]; print(t)`, "6\n"},
		{"string index", `var s="hello"; print(s[1])`, "e\n"},
		{"typed array elements", `var u = new Uint8Array(3); u[0]=65; u[1]=256+66; print(u[0], u[1], u.length)`, "65 66 3\n"},
		{"independent closures", `function mk(){ var n=0; return function(){ n++; return n; }; } var c1=mk(), c2=mk(); c1(); c1(); print(c1(), c2())`, "3 1\n"},
		{"for-in insertion order", `var o={b:1,a:2}; var ks=""; for (var k in o) ks+=k; print(ks)`, "ba\n"},
		{"class with inheritance", `class Animal { constructor(name){ this.name = name; } speak(){ return this.name + " makes a sound"; } } class Dog extends Animal { speak(){ return this.name + " barks"; } } var d = new Dog("Rex"); print(d.speak(), d instanceof Dog, d instanceof Animal)`, "Rex barks true true\n"},
		{"static and instance methods", `class Counter { constructor(){ this.n = 0; } bump(){ this.n++; return this.n; } static label(){ return "counter"; } } var c = new Counter(); c.bump(); print(c.bump(), Counter.label())`, "2 counter\n"},
		{"super method call", `class A { who(){ return "A"; } } class B extends A { who(){ return super.who() + "B"; } } print(new B().who())`, "AB\n"},
		{"derived default constructor", `class Base { constructor(x){ this.x = x; } } class Child extends Base {} print(new Child(7).x)`, "7\n"},
		{"getter and setter", `var o = { _x: 1, get x(){ return this._x; }, set x(v){ this._x = v + 1; } }; o.x = 5; print(o.x)`, "6\n"},
		{"getter only ignores writes", `var o = { get x(){ return 42; } }; o.x = 9; print(o.x)`, "42\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := runAndCapture(t, tc.src)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestUncaughtExceptionReturnsThrownValue(t *testing.T) {
	e := NewEngine(nil)
	_, err := e.Exec(`throw "boom";`)
	require.Error(t, err)
	thrown, ok := asThrown(err)
	require.True(t, ok)
	require.Equal(t, "boom", e.stringValue(thrown.Value))
	// the rendered error carries the thrown value's own text
	require.Contains(t, err.Error(), "boom")
}

// TestUncaughtExceptionRendersValueAndTrace: an uncaught throw prints
// the thrown value's text plus one frame per active call, innermost
// first.
func TestUncaughtExceptionRendersValueAndTrace(t *testing.T) {
	e := NewEngine(nil)
	_, err := e.Exec(`function inner(){ throw new Error("oops"); } function outer(){ inner(); } outer();`)
	require.Error(t, err)
	thrown, ok := asThrown(err)
	require.True(t, ok)
	require.Equal(t, []string{"inner", "outer"}, thrown.CallTrace)
	require.Contains(t, err.Error(), "Error: oops")
	require.Contains(t, err.Error(), "at inner")
	require.Contains(t, err.Error(), "at outer")
}

// TestInterruptUnwindsRunawayLoop: a host interrupt raised mid-script
// (here from inside the print hook) unwinds the infinite loop back to
// Exec and is consumed once surfaced.
func TestInterruptUnwindsRunawayLoop(t *testing.T) {
	e := NewEngine(nil)
	n := 0
	e.SetPrintHook(func(string) {
		n++
		if n > 20 {
			e.Interrupt()
		}
	})
	_, err := e.Exec(`while (true) print(1)`)
	require.Error(t, err)
	require.True(t, isInterruptError(err))
	require.False(t, e.Interrupted())
}

// TestInterruptSkipsCatch: try/catch must not swallow the
// cancellation unwind.
func TestInterruptSkipsCatch(t *testing.T) {
	e := NewEngine(nil)
	var out strings.Builder
	n := 0
	e.SetPrintHook(func(s string) {
		out.WriteString(s)
		n++
		if n > 10 {
			e.Interrupt()
		}
	})
	_, err := e.Exec(`try { while (true) print(1) } catch (err) { print("caught") }`)
	require.Error(t, err)
	require.True(t, isInterruptError(err))
	require.NotContains(t, out.String(), "caught")
}
