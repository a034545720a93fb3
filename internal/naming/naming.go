// Package naming allocates obfuscated identifiers. All categories share a
// single collision space owned by one Allocator per session; the allocator
// guarantees that no generated name is ever emitted twice and that no
// generated name collides with a keyword, a protected global, or any
// identifier reserved from the input.
package naming

import (
	"fmt"
	"strings"

	"github.com/whit3rabbit/luamixer/internal/entropy"
)

// Policy selects the shape of generated names.
type Policy string

const (
	// PolicyFull emits 31-character confusable names built from
	// {l, I, O, 0, 1, _}, first character from {l, I, O, _}.
	PolicyFull Policy = "full"
	// PolicyShort emits 10-character names from the same alphabet.
	PolicyShort Policy = "short"
	// PolicyCompact draws from a curated pool of 1-3 character names and
	// falls back to numeric suffixes when the pool is exhausted.
	PolicyCompact Policy = "compact"
)

const (
	fullLength  = 31
	shortLength = 10
	// Attempts before a regeneration round is considered stuck. The
	// confusable alphabet has 6^30 combinations at full length, so in
	// practice only the compact pool ever reaches the fallback.
	maxRegenAttempts = 50
)

var (
	firstChars = []string{"l", "I", "O", "_"}
	bodyChars  = []string{"l", "I", "O", "0", "1", "_"}
)

// compactPool is the curated short-alias pool, ordered. The allocator
// shuffles it per session so two seeds hand out different pools.
var compactPool = []string{
	"sC", "sp", "sK", "sO", "sr", "sl", "a0", "sE", "sW", "sX",
	"LL", "VL", "F4", "IL", "AL", "pL", "hL", "JL", "m4", "g4",
	"N", "Y", "U", "B", "D", "z", "W", "R", "P", "S",
	"_I", "Il", "lO", "O0", "l1", "I0", "_l", "_O",
}

// Allocator hands out collision-free names. One per session; not safe for
// concurrent use.
type Allocator struct {
	src *entropy.Source

	memo map[string]string // originalKey -> generated name
	used map[string]bool   // every name the output may contain

	pool    []string // session-shuffled compact pool
	poolIdx int
	compact int // counter for numeric-suffix fallback
}

// NewAllocator creates an Allocator drawing from src.
func NewAllocator(src *entropy.Source) *Allocator {
	return &Allocator{
		src:  src,
		memo: make(map[string]string),
		used: make(map[string]bool),
		pool: src.Shuffle(compactPool),
	}
}

// Reserve marks name as occupied so it is never emitted as a generated
// name. Every identifier found in the input must be reserved before the
// first allocation; that is what makes re-running a rename pass over
// already-renamed output a no-op instead of a corruption.
func (a *Allocator) Reserve(name string) {
	if name != "" {
		a.used[name] = true
	}
}

// IsUsed reports whether name is already taken (reserved or generated).
func (a *Allocator) IsUsed(name string) bool {
	return a.used[name]
}

// Lookup returns the memoized name for originalKey, if one was allocated.
func (a *Allocator) Lookup(originalKey string) (string, bool) {
	n, ok := a.memo[originalKey]
	return n, ok
}

// Allocated returns how many distinct names have been handed out.
func (a *Allocator) Allocated() int {
	return len(a.memo)
}

// Allocate returns the obfuscated name for originalKey under policy.
// Repeated calls with the same key return the same name regardless of
// policy, so every reference to one declaration renames consistently.
// originalKey is a scope-qualified key, not the bare identifier: two
// distinct declarations of `x` in different scopes get different keys and
// therefore different names.
func (a *Allocator) Allocate(originalKey string, policy Policy) string {
	if name, ok := a.memo[originalKey]; ok {
		return name
	}
	name := a.fresh(policy)
	a.memo[originalKey] = name
	return name
}

// Fresh returns a new name under policy without memoization. Used for
// synthesized identifiers (identity tables, handler locals, temporaries)
// that have no original counterpart.
func (a *Allocator) Fresh(policy Policy) string {
	return a.fresh(policy)
}

// FreshFor returns a fresh name shaped for the identifier category.
// Aliases get a mixed-length draw weighted toward the short shapes, so
// alias preludes vary in texture instead of marching in uniform columns.
func (a *Allocator) FreshFor(cat NameCategory) string {
	switch cat {
	case CategoryAlias:
		switch a.src.WeightedChoice([]string{"compact", "short", "full"}, []int{5, 3, 2}) {
		case "compact":
			return a.fresh(PolicyCompact)
		case "short":
			return a.fresh(PolicyShort)
		default:
			return a.fresh(PolicyFull)
		}
	case CategoryTable:
		return a.fresh(PolicyCompact)
	case CategoryParam, CategoryLoopVar, CategoryHandler:
		return a.fresh(PolicyShort)
	default:
		return a.fresh(PolicyFull)
	}
}

func (a *Allocator) fresh(policy Policy) string {
	var name string
	switch policy {
	case PolicyFull:
		name = a.generateConfusable(fullLength)
	case PolicyShort:
		name = a.generateConfusable(shortLength)
	case PolicyCompact:
		name = a.generateCompact()
	default:
		panic(fmt.Sprintf("naming: unknown policy %q", policy))
	}
	if a.used[name] {
		// fresh() already checked availability before returning; a hit
		// here means the bookkeeping is broken, not that we were unlucky.
		panic(fmt.Sprintf("naming: duplicate name emitted: %s", name))
	}
	a.used[name] = true
	return name
}

func (a *Allocator) generateConfusable(length int) string {
	for attempt := 0; ; attempt++ {
		var b strings.Builder
		b.Grow(length)
		b.WriteString(a.src.Choice(firstChars))
		for i := 1; i < length; i++ {
			b.WriteString(a.src.Choice(bodyChars))
		}
		name := b.String()
		if a.available(name) {
			return name
		}
		if attempt >= maxRegenAttempts {
			// Grow instead of giving up; still collision-checked.
			length++
			attempt = 0
		}
	}
}

func (a *Allocator) generateCompact() string {
	for a.poolIdx < len(a.pool) {
		name := a.pool[a.poolIdx]
		a.poolIdx++
		if a.available(name) {
			return name
		}
	}
	// Pool exhausted: deterministic numeric-suffix fallback.
	for attempt := 0; attempt <= maxRegenAttempts*1000; attempt++ {
		a.compact++
		name := fmt.Sprintf("%s%d", a.src.Choice([]string{"s", "a", "v", "L"}), a.compact)
		if a.available(name) {
			return name
		}
	}
	panic("naming: compact namespace exhausted")
}

// available reports whether name can be emitted: unused, not a keyword,
// not a protected global.
func (a *Allocator) available(name string) bool {
	return !a.used[name] && !IsProtected(name)
}
