package renamer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/luamixer/internal/entropy"
	"github.com/whit3rabbit/luamixer/internal/naming"
)

func newTestAliasGen(t *testing.T, seed int64) *AliasGenerator {
	t.Helper()
	return NewAliasGenerator(naming.NewAllocator(entropy.NewSource(seed)))
}

func TestAliasLibraryMembers(t *testing.T) {
	g := newTestAliasGen(t, 1)
	prelude, out, count := g.Apply("local a = math.floor(1.5) + math.floor(2.5)\nlocal b = string.sub(s, 1)")

	assert.Equal(t, 2, count, "math.floor and string.sub, deduplicated")
	assert.Contains(t, prelude, "= math.floor")
	assert.Contains(t, prelude, "= string.sub")
	assert.NotContains(t, out, "math.floor")
	assert.NotContains(t, out, "string.sub")

	// Both floor uses share one alias.
	aliasLine := strings.SplitN(prelude, "\n", 2)[0]
	alias := strings.Fields(aliasLine)[1]
	assert.Equal(t, 2, strings.Count(out, alias))
}

func TestAliasStandaloneGlobals(t *testing.T) {
	g := newTestAliasGen(t, 2)
	prelude, out, count := g.Apply(`print("a")
print("b")
local t = type(x)`)

	assert.Equal(t, 2, count)
	assert.Contains(t, prelude, "= print")
	assert.Contains(t, prelude, "= type")
	assert.NotContains(t, out, "print(")
	assert.NotContains(t, out, "type(")
}

func TestAliasSkipsAssignmentTargets(t *testing.T) {
	g := newTestAliasGen(t, 3)
	prelude, out, count := g.Apply(`math.randomseed = seedFn
print = silent
print("still aliasable elsewhere?")`)

	assert.Contains(t, out, "math.randomseed = seedFn",
		"writing through an alias would miss the real global")
	assert.Contains(t, out, "print = silent")
	// The call after reassignment still refers to the (replaced) global, so
	// it is aliased; the alias reads the global at prelude time, which is
	// why the prelude must precede the body, not the reassignment. One
	// alias expected.
	assert.Equal(t, 1, count)
	assert.Contains(t, prelude, "= print")
}

func TestAliasSkipsFieldsAndKeys(t *testing.T) {
	g := newTestAliasGen(t, 4)
	_, out, count := g.Apply(`local t = {print = 1, math = 2}
obj.print("x")
local deep = game.math`)

	assert.Equal(t, 0, count)
	assert.Contains(t, out, "{print = 1, math = 2}")
	assert.Contains(t, out, "obj.print")
	assert.Contains(t, out, "game.math")
}

func TestAliasSkipsDeepPaths(t *testing.T) {
	g := newTestAliasGen(t, 5)
	_, out, count := g.Apply("local x = math.huge.nope")
	assert.Equal(t, 0, count)
	assert.Contains(t, out, "math.huge.nope")
}

func TestNoAliasesNoPrelude(t *testing.T) {
	g := newTestAliasGen(t, 6)
	prelude, out, count := g.Apply("local x = 1")
	assert.Empty(t, prelude)
	assert.Equal(t, 0, count)
	assert.Equal(t, "local x = 1", out)
}

func TestAliasNamesNeverProtected(t *testing.T) {
	g := newTestAliasGen(t, 7)
	prelude, _, count := g.Apply("print(math.floor(table.insert(os.time(string.rep(tostring(1))))))")
	require.Greater(t, count, 3)
	for _, line := range strings.Split(prelude, "\n") {
		fields := strings.Fields(line)
		require.GreaterOrEqual(t, len(fields), 4)
		assert.False(t, naming.IsProtected(fields[1]), "alias %q is protected", fields[1])
	}
}

func TestAliasDeterminism(t *testing.T) {
	src := "print(math.floor(pairs(t)))"
	a := newTestAliasGen(t, 42)
	b := newTestAliasGen(t, 42)
	pa, oa, _ := a.Apply(src)
	pb, ob, _ := b.Apply(src)
	assert.Equal(t, pa, pb)
	assert.Equal(t, oa, ob)
}
