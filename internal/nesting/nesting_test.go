package nesting

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/luamixer/internal/entropy"
	"github.com/whit3rabbit/luamixer/internal/naming"
)

// callRe matches one table-function call layer. Index accesses (`T.I[1]`)
// and hex constants never match, so the hit count is the call-layer count.
var callRe = regexp.MustCompile(`\.[A-Za-z_][A-Za-z0-9_]*\(`)

func newTestNester(t *testing.T, seed int64, opts Options) *Nester {
	t.Helper()
	src := entropy.NewSource(seed)
	return New(src, naming.NewAllocator(src), opts)
}

func TestIdentityLawOnWrappedExpressions(t *testing.T) {
	n := newTestNester(t, 42, StandardOptions())
	ev := NewEvaluator(n)

	values := []int64{0, 1, 2, 7, 42, 255, 1000, 65535, 1 << 20, 1<<32 - 1,
		1 << 33, -1, -42, -65536}
	for _, val := range values {
		for trial := 0; trial < 25; trial++ {
			expr := n.Wrap(n.FormatNumber(val), val)
			got, err := ev.Eval(expr)
			require.NoError(t, err, "expr for %d: %s", val, expr)
			assert.Equal(t, val, got, "identity broken: %s", expr)
		}
	}
}

func TestUltraProfileIdentityLaw(t *testing.T) {
	n := newTestNester(t, 7, UltraOptions())
	ev := NewEvaluator(n)

	for trial := 0; trial < 100; trial++ {
		val := int64(trial * 977)
		expr := n.Wrap(n.FormatNumber(val), val)
		got, err := ev.Eval(expr)
		require.NoError(t, err)
		assert.Equal(t, val, got)
	}
}

func TestWrapDepthBounds(t *testing.T) {
	opts := StandardOptions()
	n := newTestNester(t, 3, opts)

	for i := 0; i < 40; i++ {
		expr := n.Wrap("5", 5)
		calls := len(callRe.FindAllString(expr, -1))
		assert.GreaterOrEqual(t, calls, opts.MinDepth)
		assert.LessOrEqual(t, calls, opts.MaxDepth)
	}
}

func TestEveryLayerIsACall(t *testing.T) {
	opts := StandardOptions()
	opts.ArithmeticMix = 0.9 // decorations must not displace call layers
	n := newTestNester(t, 5, opts)

	for i := 0; i < 50; i++ {
		expr := n.WrapDepth("10", 10, 5)
		assert.Len(t, callRe.FindAllString(expr, -1), 5,
			"five layers means five calls: %s", expr)
	}
}

func TestNoAdjacentPairRepetition(t *testing.T) {
	opts := StandardOptions()
	opts.ArithmeticMix = 0.001
	n := newTestNester(t, 9, opts)

	for i := 0; i < 60; i++ {
		expr := n.WrapDepth("1", 1, 6)
		// Call layers nest left to right: T1.F1(T2.F2(...)). Neither the
		// table nor the function key may repeat between adjacent layers.
		var pairs []string
		rest := expr
		for {
			dot := strings.Index(rest, ".")
			paren := strings.Index(rest, "(")
			if dot < 0 || paren < 0 || dot > paren {
				break
			}
			pairs = append(pairs, rest[:paren])
			rest = rest[paren+1:]
		}
		for j := 1; j < len(pairs); j++ {
			prev := strings.SplitN(pairs[j-1], ".", 2)
			cur := strings.SplitN(pairs[j], ".", 2)
			require.Len(t, prev, 2)
			require.Len(t, cur, 2)
			assert.NotEqual(t, prev[0], cur[0], "adjacent table repeat in %s", expr)
			assert.NotEqual(t, prev[1], cur[1], "adjacent function repeat in %s", expr)
		}
	}
}

func TestBit32VariantsRespectDomain(t *testing.T) {
	// Force tables until at least one DomainU32 function exists, then make
	// sure negative values never route through it.
	n := newTestNester(t, 11, UltraOptions())
	hasU32 := false
	for _, tbl := range n.Tables() {
		for _, f := range tbl.Funcs {
			if f.Domain == DomainU32 {
				hasU32 = true
			}
		}
	}
	if !hasU32 {
		t.Skip("seed produced no bit32 variants")
	}

	ev := NewEvaluator(n)
	for trial := 0; trial < 200; trial++ {
		expr := n.Wrap("-12345", -12345)
		got, err := ev.Eval(expr)
		require.NoError(t, err, "negative value routed through a u32-only function: %s", expr)
		assert.Equal(t, int64(-12345), got)
	}
}

func TestIndexArrayNeutralSlot(t *testing.T) {
	n := newTestNester(t, 13, StandardOptions())
	for _, tbl := range n.Tables() {
		require.Len(t, tbl.Index, 16)
		assert.Equal(t, int64(0), tbl.Index[0], "Lua slot 1 must be neutral")
		seen := map[int64]bool{}
		for _, v := range tbl.Index {
			assert.False(t, seen[v])
			seen[v] = true
		}
	}
}

func TestPreludeShape(t *testing.T) {
	n := newTestNester(t, 17, StandardOptions())
	prelude := n.Prelude()

	for _, tbl := range n.Tables() {
		assert.Contains(t, prelude, "local "+tbl.Name+" = {")
		for _, f := range tbl.Funcs {
			assert.Contains(t, prelude, f.Key+" = function(")
		}
		assert.Contains(t, prelude, tbl.IndexKey+" = {0, ")
	}
}

func TestApplyToLiterals(t *testing.T) {
	opts := StandardOptions()
	n := newTestNester(t, 19, opts)
	ev := NewEvaluator(n)

	src := `local health = 100
local name = "keep 42 inside"
-- keep 7 here too
local t = {damage = 250, speed = 16}`

	out, count := n.ApplyToLiterals(src)
	assert.Equal(t, 3, count, "100, 250, 16 wrapped; string and comment untouched")
	assert.Contains(t, out, `"keep 42 inside"`)
	assert.Contains(t, out, "-- keep 7 here too")

	// Spot-check: the first declaration's right-hand side still equals 100.
	first := strings.Split(out, "\n")[0]
	_, rhs, ok := SplitAssignment(first)
	require.True(t, ok)
	got, err := ev.Eval(rhs)
	require.NoError(t, err, "rhs: %s", rhs)
	assert.Equal(t, int64(100), got)
}

func TestApplyToLiteralsWrapsEveryEligible(t *testing.T) {
	n := newTestNester(t, 42, StandardOptions())

	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteString("lvl = 10\n")
	}
	_, count := n.ApplyToLiterals(b.String())
	assert.Equal(t, 10, count, "no eligible literal may be skipped")
}

func TestApplyToLiteralsThreshold(t *testing.T) {
	opts := StandardOptions()
	n := newTestNester(t, 23, opts)

	out, count := n.ApplyToLiterals("local a = 1\nlocal b = 0")
	assert.Equal(t, 0, count, "literals below the threshold stay put")
	assert.Equal(t, "local a = 1\nlocal b = 0", out)
}

func TestApplyToLiteralsSkipsFieldAccess(t *testing.T) {
	opts := StandardOptions()
	n := newTestNester(t, 29, opts)

	// Floats and exponent literals are never integer-wrapped.
	out, count := n.ApplyToLiterals("local f = 3.25 + 1e9")
	assert.Equal(t, 0, count)
	assert.Equal(t, "local f = 3.25 + 1e9", out)
}

func TestFormatNumberRoundTrips(t *testing.T) {
	n := newTestNester(t, 31, StandardOptions())
	for _, val := range []int64{0, 2, 255, 4096, 123456789, -77} {
		for i := 0; i < 20; i++ {
			text := n.FormatNumber(val)
			got, ok := parseIntLiteral(text)
			require.True(t, ok, "text: %s", text)
			assert.Equal(t, val, got)
		}
	}
}

func TestDeterministicOutput(t *testing.T) {
	a := newTestNester(t, 42, StandardOptions())
	b := newTestNester(t, 42, StandardOptions())

	assert.Equal(t, a.Prelude(), b.Prelude())
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Wrap("9", 9), b.Wrap("9", 9))
	}

	outA, cA := a.ApplyToLiterals("local x = 500")
	outB, cB := b.ApplyToLiterals("local x = 500")
	assert.Equal(t, outA, outB)
	assert.Equal(t, cA, cB)
}

func TestWrappedLiteralsAreAtomic(t *testing.T) {
	opts := StandardOptions()
	opts.ArithmeticMix = 0.9 // stress the mixer layers
	n := newTestNester(t, 41, opts)
	ev := NewEvaluator(n)

	cases := []struct {
		src  string
		want int64
	}{
		{"v = -100", -100},
		{"p = 2 * 300", 600},
		{"q = 7 - 50", -43},
	}
	for _, tc := range cases {
		for trial := 0; trial < 20; trial++ {
			out, count := n.ApplyToLiterals(tc.src)
			require.Greater(t, count, 0, tc.src)
			_, rhs, ok := SplitAssignment(out)
			require.True(t, ok)
			got, err := ev.Eval(rhs)
			require.NoError(t, err, "rhs: %s", rhs)
			assert.Equal(t, tc.want, got, "precedence broke in: %s", rhs)
		}
	}
}

func TestHugeLiteralsLeftAlone(t *testing.T) {
	opts := StandardOptions()
	n := newTestNester(t, 37, opts)

	src := "local big = 0xFFFFFFFFFFFFFF" // above 2^53, not float64-exact
	out, count := n.ApplyToLiterals(src)
	assert.Equal(t, 0, count)
	assert.Equal(t, src, out)
}
