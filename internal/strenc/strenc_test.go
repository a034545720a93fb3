package strenc

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/luamixer/internal/entropy"
	"github.com/whit3rabbit/luamixer/internal/naming"
)

func newTestEncoder(t *testing.T, seed int64) *Encoder {
	t.Helper()
	src := entropy.NewSource(seed)
	return New(src, naming.NewAllocator(src), Options{})
}

// decodeExpr reverses any of the three encoded forms back to the original
// string content.
func decodeExpr(t *testing.T, expr string) string {
	t.Helper()
	expr = strings.TrimSpace(expr)

	if strings.HasPrefix(expr, `"`) {
		require.True(t, strings.HasSuffix(expr, `"`), "expr: %s", expr)
		content := expr[1 : len(expr)-1]
		var b strings.Builder
		for len(content) > 0 {
			require.Equal(t, byte('\\'), content[0], "expr: %s", expr)
			n, err := strconv.Atoi(content[1:4])
			require.NoError(t, err, "expr: %s", expr)
			b.WriteByte(byte(n))
			content = content[4:]
		}
		return b.String()
	}

	open := strings.Index(expr, "(")
	require.Greater(t, open, 0, "expr: %s", expr)
	require.True(t, strings.HasSuffix(expr, ")"))
	var b strings.Builder
	for _, arg := range strings.Split(expr[open+1:len(expr)-1], ",") {
		n, err := strconv.ParseUint(strings.ToLower(arg), 0, 16)
		require.NoError(t, err, "arg %q in %s", arg, expr)
		b.WriteByte(byte(n))
	}
	return b.String()
}

func TestEncodedLiteralsDecodeToOriginal(t *testing.T) {
	inputs := []string{"hello world", "PlayerAdded", "local fake = 1", "abc"}
	for seed := int64(1); seed <= 10; seed++ {
		e := newTestEncoder(t, seed)
		for _, want := range inputs {
			out, count := e.Apply(`local m = "` + want + `"`)
			require.Equal(t, 1, count, "seed %d input %q", seed, want)
			assert.NotContains(t, out, `"`+want+`"`)

			rhs := out[strings.Index(out, "= ")+2:]
			assert.Equal(t, want, decodeExpr(t, rhs), "seed %d output %s", seed, out)
		}
	}
}

func TestShortAndPatternStringsStay(t *testing.T) {
	e := newTestEncoder(t, 2)
	for _, src := range []string{
		`local a = "ab"`,
		`local p = "%d+"`,
		`local q = "^start"`,
		`local c = "(group)"`,
	} {
		out, count := e.Apply(src)
		assert.Equal(t, 0, count, src)
		assert.Equal(t, src, out)
	}
}

func TestEscapedStringsNotReencoded(t *testing.T) {
	e := newTestEncoder(t, 3)
	src := `local s = "line\nbreak"`
	out, count := e.Apply(src)
	assert.Equal(t, 0, count, "re-encoding escapes would double-escape")
	assert.Equal(t, src, out)
}

func TestLongBracketStringsStay(t *testing.T) {
	e := newTestEncoder(t, 4)
	src := "local blob = [[keep this whole block]]"
	out, count := e.Apply(src)
	assert.Equal(t, 0, count)
	assert.Equal(t, src, out)
}

func TestCallSugarKeepsLiteralForm(t *testing.T) {
	// `print "msg"` accepts only a literal argument, so the encoded form
	// must still be a quoted string there.
	for seed := int64(1); seed <= 20; seed++ {
		e := newTestEncoder(t, seed)
		out, count := e.Apply(`print "hello there"`)
		require.Equal(t, 1, count)
		rest := strings.TrimPrefix(out, "print ")
		require.NotEqual(t, out, rest)
		assert.True(t, strings.HasPrefix(rest, `"`), "output: %s", out)
		assert.Equal(t, "hello there", decodeExpr(t, rest))
	}
}

func TestCommentsUntouched(t *testing.T) {
	e := newTestEncoder(t, 5)
	src := "-- says \"hello world\" here\nlocal n = 1"
	out, count := e.Apply(src)
	assert.Equal(t, 0, count)
	assert.Equal(t, src, out)
}

func TestPreludeOnlyWhenHelperUsed(t *testing.T) {
	e := newTestEncoder(t, 6)
	_, count := e.Apply(`local a = "ab"`)
	require.Equal(t, 0, count)
	assert.Empty(t, e.Prelude(), "no decoder needed when nothing used it")
}

func TestPreludeDefinesDecoder(t *testing.T) {
	// Drive until some seed picks the helper method at least once.
	for seed := int64(1); seed <= 20; seed++ {
		e := newTestEncoder(t, seed)
		out, count := e.Apply(`local a = "hello world"`)
		require.Equal(t, 1, count)
		if !e.scUsed {
			continue
		}
		prelude := e.Prelude()
		assert.Contains(t, prelude, "local "+e.scName+" = function(...)")
		assert.Contains(t, prelude, `string["\099\104\097\114"]`)
		assert.Contains(t, prelude, `table["\099\111\110\099\097\116"]`)
		assert.Contains(t, out, e.scName+"(")
		return
	}
	t.Fatal("no seed selected the decoder helper in 20 tries")
}

func TestDeterministicEncoding(t *testing.T) {
	src := `local a = "hello"
local b = "world of parts"
print("both encoded")`
	a := newTestEncoder(t, 42)
	b := newTestEncoder(t, 42)
	outA, cA := a.Apply(src)
	outB, cB := b.Apply(src)
	assert.Equal(t, outA, outB)
	assert.Equal(t, cA, cB)
}
