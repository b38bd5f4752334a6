package ejs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLookupBuiltinBinarySearch exercises the sorted-table lookup
// path directly against the console table it serves.
func TestLookupBuiltinBinarySearch(t *testing.T) {
	for _, name := range []string{"error", "info", "log", "warn"} {
		fn, ok := lookupBuiltin(consoleTable, name)
		require.True(t, ok, name)
		require.NotNil(t, fn)
	}
	_, ok := lookupBuiltin(consoleTable, "trace")
	require.False(t, ok)
	_, ok = lookupBuiltin(consoleTable, "")
	require.False(t, ok)
}

// TestConsoleLevelsShareThePrintSink confirms every console level
// funnels through the one host print callback.
func TestConsoleLevelsShareThePrintSink(t *testing.T) {
	out := runAndCapture(t, `console.log("a"); console.info("b"); console.warn("c"); console.error("d");`)
	require.Equal(t, "a\nb\nc\nd\n", out)
}
