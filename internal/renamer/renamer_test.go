package renamer

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/luamixer/internal/entropy"
	"github.com/whit3rabbit/luamixer/internal/naming"
	"github.com/whit3rabbit/luamixer/internal/scanner"
)

func newTestRenamer(t *testing.T, seed int64) *Renamer {
	t.Helper()
	src := entropy.NewSource(seed)
	return New(src, naming.NewAllocator(src), Options{})
}

var identRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// findRenamed returns the generated name a declaration was mapped to by
// locating the identifier following the given prefix in out.
func nameAfter(t *testing.T, out, prefix string) string {
	t.Helper()
	i := strings.Index(out, prefix)
	require.GreaterOrEqual(t, i, 0, "prefix %q not in output:\n%s", prefix, out)
	m := identRe.FindString(out[i+len(prefix):])
	require.NotEmpty(t, m)
	return m
}

func TestLocalRenameConsistent(t *testing.T) {
	r := newTestRenamer(t, 1)
	out, stats := r.Rename("local count = 1\ncount = count + 1\nreturn count")

	assert.NotContains(t, out, "count")
	assert.Equal(t, 1, stats.VariablesRenamed)
	assert.Equal(t, 5, stats.PassesCompleted)

	name := nameAfter(t, out, "local ")
	require.Len(t, name, 31, "locals use the full policy")
	assert.Equal(t, 4, strings.Count(out, name), "declaration plus every reference share one name")
}

func TestShadowingGetsDistinctNames(t *testing.T) {
	r := newTestRenamer(t, 2)
	src := `local x = 1
do
	local x = 2
	print(x)
end
print(x)`
	out, stats := r.Rename(src)
	assert.Equal(t, 2, stats.VariablesRenamed)

	outer := nameAfter(t, out, "local ")
	inner := nameAfter(t, out, "\tlocal ")
	assert.NotEqual(t, outer, inner)

	// The do-block print uses the inner name, the trailing print the outer.
	lines := strings.Split(out, "\n")
	assert.Contains(t, lines[3], inner)
	assert.NotContains(t, lines[3], outer)
	assert.Contains(t, lines[5], outer)
}

func TestInitializerResolvesOutward(t *testing.T) {
	r := newTestRenamer(t, 3)
	src := `local v = 1
do
	local v = v
	return v
end`
	out, _ := r.Rename(src)

	outer := nameAfter(t, out, "local ")
	inner := nameAfter(t, out, "\tlocal ")
	require.NotEqual(t, outer, inner)
	assert.Contains(t, out, "local "+inner+" = "+outer,
		"`local v = v` must read the outer binding")
	assert.Contains(t, out, "return "+inner)
}

func TestParamsUseShortPolicy(t *testing.T) {
	r := newTestRenamer(t, 4)
	out, stats := r.Rename("local function add(first, second)\n\treturn first + second\nend")

	assert.NotContains(t, out, "first")
	assert.NotContains(t, out, "second")
	assert.Equal(t, 3, stats.VariablesRenamed) // add + two params

	p := nameAfter(t, out, "(")
	assert.Len(t, p, 10, "params use the short policy")
}

func TestLocalFunctionRecursion(t *testing.T) {
	r := newTestRenamer(t, 5)
	out, _ := r.Rename(`local function fact(n)
	if n <= 1 then return 1 end
	return n * fact(n - 1)
end
return fact(5)`)

	assert.NotContains(t, out, "fact")
	fn := nameAfter(t, out, "local function ")
	assert.Equal(t, 3, strings.Count(out, fn), "declaration, recursive call, outer call")
}

func TestNumericForLoopVariable(t *testing.T) {
	r := newTestRenamer(t, 6)
	out, _ := r.Rename(`local i = 99
for i = 1, 10 do
	print(i)
end
print(i)`)

	outer := nameAfter(t, out, "local ")
	loop := nameAfter(t, out, "for ")
	assert.NotEqual(t, outer, loop)
	assert.Contains(t, out, "print("+loop+")")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "print("+outer+")"))
}

func TestGenericForVariables(t *testing.T) {
	r := newTestRenamer(t, 7)
	out, _ := r.Rename(`local t = {}
for k, v in pairs(t) do
	print(k, v)
end`)

	assert.NotContains(t, out, " k,")
	assert.Contains(t, out, "pairs(", "iterator global untouched by renaming")
	tbl := nameAfter(t, out, "local ")
	assert.Contains(t, out, "pairs("+tbl+")")
}

func TestForRangeResolvesOutward(t *testing.T) {
	r := newTestRenamer(t, 8)
	out, _ := r.Rename(`local n = 5
for n = 1, n do
	print(n)
end`)

	outer := nameAfter(t, out, "local ")
	loop := nameAfter(t, out, "for ")
	require.NotEqual(t, outer, loop)
	assert.Contains(t, out, "for "+loop+" = 1, "+outer+" do",
		"range expression reads the outer binding")
	assert.Contains(t, out, "print("+loop+")")
}

func TestRepeatUntilSeesLoopLocals(t *testing.T) {
	r := newTestRenamer(t, 9)
	out, _ := r.Rename(`repeat
	local done = step()
until done
print("after")`)

	assert.NotContains(t, out, "done")
	name := nameAfter(t, out, "local ")
	assert.Contains(t, out, "until "+name,
		"until-condition resolves in the repeat body's scope")
}

func TestFieldAndMethodNamesUntouched(t *testing.T) {
	r := newTestRenamer(t, 10)
	out, _ := r.Rename(`local player = getPlayer()
player.Health = 100
player:Destroy()
local h = player.Health`)

	assert.Contains(t, out, ".Health")
	assert.Contains(t, out, ":Destroy()")
	assert.NotContains(t, out, "player")
}

func TestTableConstructorKeysUntouched(t *testing.T) {
	r := newTestRenamer(t, 11)
	out, _ := r.Rename(`local speed = 16
local cfg = {speed = speed, limit = 100}`)

	name := nameAfter(t, out, "local ")
	assert.Contains(t, out, "{speed = "+name,
		"key stays, value renames")
	assert.Contains(t, out, "limit = 100")
}

func TestBracketKeysAreReferences(t *testing.T) {
	r := newTestRenamer(t, 12)
	out, _ := r.Rename(`local key = "hp"
local t = {[key] = 1}`)

	name := nameAfter(t, out, "local ")
	assert.Contains(t, out, "{["+name+"] = 1}")
}

func TestStringsAndCommentsUntouched(t *testing.T) {
	r := newTestRenamer(t, 13)
	out, _ := r.Rename(`local secret = 1
-- secret lives here
local s = "secret" .. [[secret]]
return secret`)

	assert.Contains(t, out, "-- secret lives here")
	assert.Contains(t, out, `"secret"`)
	assert.Contains(t, out, "[[secret]]")
	assert.NotContains(t, out, "return secret")
}

func TestGlobalsPassThrough(t *testing.T) {
	r := newTestRenamer(t, 14)
	out, _ := r.Rename(`print(math.floor(1.5))
game.Workspace.Part:Destroy()`)

	assert.Contains(t, out, "print(")
	assert.Contains(t, out, "math.floor")
	assert.Contains(t, out, "game.Workspace")
}

func TestSharedCallSites(t *testing.T) {
	// Scenario: one declaration, several call sites, one name everywhere.
	r := newTestRenamer(t, 42)
	out, _ := r.Rename(`local function foo(a, b)
	return a + b
end
local x = foo(1, 2)
local y = foo(x, 3)
return foo(x, y)`)

	assert.NotContains(t, out, "foo")
	fn := nameAfter(t, out, "local function ")
	assert.Equal(t, 4, strings.Count(out, fn))
	assert.False(t, naming.IsProtected(fn))
}

func TestAnonymousFunctionParams(t *testing.T) {
	r := newTestRenamer(t, 15)
	out, _ := r.Rename(`local cb = function(evt, ...)
	return evt, ...
end`)

	assert.NotContains(t, out, "evt")
	assert.Contains(t, out, "...")
}

func TestLuauAnnotationsSkipped(t *testing.T) {
	r := newTestRenamer(t, 16)
	out, stats := r.Rename(`local hp: number = 100
local function f(x: number, y: string): number
	return x
end`)

	assert.Contains(t, out, ": number")
	assert.Contains(t, out, ": string")
	assert.NotContains(t, out, "local hp")
	assert.Equal(t, 0, stats.CoverageGaps)
}

func TestDeterministicAcrossSessions(t *testing.T) {
	src := `local a = 1
local function go(n)
	for i = 1, n do a = a + i end
	return a
end
return go(3)`
	a := newTestRenamer(t, 42)
	b := newTestRenamer(t, 42)
	outA, _ := a.Rename(src)
	outB, _ := b.Rename(src)
	assert.Equal(t, outA, outB)
}

func TestFixupPassIsIdempotent(t *testing.T) {
	// Once every binding is renamed, re-running analysis and fixup over the
	// output must change nothing: generated names key to allocations that do
	// not exist, so every token passes through verbatim.
	src := `local total = 0
local function add(amount)
	total = total + amount
	return total
end
for i = 1, 3 do
	add(i)
end
return total`
	r := newTestRenamer(t, 19)
	out, _ := r.Rename(src)

	again := analyze(scanner.Scan(out)).rewrite(r.alloc)
	assert.Equal(t, out, again)

	// And again, to rule out drift from the rewrite itself.
	assert.Equal(t, out, analyze(scanner.Scan(again)).rewrite(r.alloc))
}

func TestMalformedHeaderCountsGap(t *testing.T) {
	r := newTestRenamer(t, 17)
	_, stats := r.Rename("local function\nreturn 1")
	assert.Greater(t, stats.CoverageGaps, 0)
}

func TestMultipleAssignment(t *testing.T) {
	r := newTestRenamer(t, 18)
	out, stats := r.Rename(`local a, b = 1, 2
a, b = b, a
return a + b`)

	assert.Equal(t, 2, stats.VariablesRenamed)
	assert.NotContains(t, out, " a,")
	assert.NotContains(t, out, " b\n")
}
