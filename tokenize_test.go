package ejs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTokeniserEncodeDecodeRoundTrips:
// decodeTokens(encodeTokens(tokenise(s))) recovers every token's
// kind and value, across every kind the lexer produces — including
// strings, regexes, and template literals, none of which the wire
// format is allowed to silently collapse or drop.
func TestTokeniserEncodeDecodeRoundTrips(t *testing.T) {
	srcs := []string{
		`var f = function(x){ return x*x; }; print(f(5));`,
		`for (var i=0;i<5;i++) s+=i;`,
		`var a = [3,1,4,1,5,9,2,6];`,
		`"abc123def".replace(/[0-9]+/g, "#")`,
		"var s = `hello ${name}, total ${1+2}`;",
		`var esc = "line1\nline2\ttab\"quote";`,
	}
	for _, src := range srcs {
		toks := tokenise(src)
		code := encodeTokens(toks)
		decoded := decodeTokens(code)
		require.Equal(t, len(toks), len(decoded), "token count for %q", src)
		for i, want := range toks {
			got := decoded[i]
			require.Equal(t, want.kind, got.kind, "token %d of %q", i, src)
			switch want.kind {
			case tokIdent, tokKeyword, tokPunct, tokString, tokRegex:
				require.Equal(t, want.text, got.text)
			case tokInt:
				require.Equal(t, want.ival, got.ival)
			case tokFloat:
				require.Equal(t, want.fval, got.fval)
			case tokTemplateLiteral:
				require.Equal(t, want.parts, got.parts)
				require.Equal(t, want.isExpr, got.isExpr)
			}
		}
	}
}

// TestPrintTokenisedStringEvalAgreesWithSource:
// eval(printTokenisedString(tokenise(s))) ≡ eval(s).
// printTokenisedString need not reproduce s byte-for-byte (quoting
// style, whitespace), only evaluate the same way.
func TestPrintTokenisedStringEvalAgreesWithSource(t *testing.T) {
	srcs := []string{
		`print(1+2*3)`,
		`var f = function(x){ return x*x; }; print(f(5))`,
		`var a = [3,1,4,1,5,9,2,6]; a.sort(function(x,y){return x-y;}); print(a.join(','))`,
		`print("abc123def".replace(/[0-9]+/g, "#"))`,
		"var name = 'world'; print(`hello ${name}, sum ${1+2}`)",
		`print("line1\nline2\ttab\"quote")`,
	}
	for _, src := range srcs {
		reconstructed := printTokenisedString(tokenise(src))
		want := runAndCapture(t, src)
		got := runAndCapture(t, reconstructed)
		require.Equal(t, want, got, "source:\n%s\nreconstructed:\n%s", src, reconstructed)
	}
}

// TestFunctionBodyReExecutesFromCachedBytes exercises call.go's actual
// wiring: a function invoked repeatedly re-derives its body from the
// same saved bytes every time and keeps producing correct results.
func TestFunctionBodyReExecutesFromCachedBytes(t *testing.T) {
	out := runAndCapture(t, `function square(x){ return x*x; } for (var i=0;i<5;i++){ print(square(i)); }`)
	require.Equal(t, "0\n1\n4\n9\n16\n", out)
}

// TestFunctionBodyStoredAsTokenisedBytesNotAST confirms the function
// table holds pre-tokenised bytes, not a parsed statement list, and
// that re-deriving the body twice yields two independent statement
// lists rather than handing back one cached tree.
func TestFunctionBodyStoredAsTokenisedBytesNotAST(t *testing.T) {
	e := NewEngine(nil)
	_, err := e.Exec(`function square(x){ return x*x; }`)
	require.NoError(t, err)

	var fn *functionNode
	for _, f := range e.functions {
		if f.name == "square" {
			fn = f
		}
	}
	require.NotNil(t, fn)
	require.NotEmpty(t, fn.code)

	body1, err := e.bodyStmts(fn.code)
	require.NoError(t, err)
	body2, err := e.bodyStmts(fn.code)
	require.NoError(t, err)
	require.NotEmpty(t, body1)
	require.NotEmpty(t, body2)
	require.NotSame(t, body1[0], body2[0])
}
