package nesting

import (
	"fmt"
	"strings"

	"github.com/whit3rabbit/luamixer/internal/entropy"
	"github.com/whit3rabbit/luamixer/internal/naming"
)

// Domain restricts which values an identity function may be applied to.
// bit32 round-trips are only identity for unsigned 32-bit values, so
// variants built on them carry DomainU32 and are skipped for anything else.
type Domain int

const (
	// DomainAll holds for every integer a float64 represents exactly.
	DomainAll Domain = iota
	// DomainU32 holds only for values in [0, 2^32).
	DomainU32
)

// funcKeys and indexKeys are the field-name pools for identity tables.
// They live in table namespaces, never in variable scope, so they do not
// go through the name allocator.
var funcKeys = []string{
	"LL", "VL", "F4", "IL", "AL", "pL", "hL", "JL", "m4", "g4",
	"N", "Y", "U", "B", "D", "z", "W", "R", "P", "S",
}

var indexKeys = []string{"I", "l", "L", "_I", "Il", "i", "_"}

// variantSpec is one identity-closure shape: how its Lua body renders and
// the equivalent Go computation used to verify the identity law in tests.
type variantSpec struct {
	domain Domain
	render func(param string, k int64) string
	apply  func(x, k int64) int64
}

// Keys stay below 2^20 so every intermediate fits a float64 exactly even
// when added to large script constants.
const maxKey = 1 << 20

var variants = []variantSpec{
	{
		domain: DomainAll,
		render: func(p string, k int64) string { return fmt.Sprintf("return %s", p) },
		apply:  func(x, _ int64) int64 { return x },
	},
	{
		domain: DomainAll,
		render: func(p string, k int64) string { return fmt.Sprintf("return %s + 0x%X - 0x%X", p, k, k) },
		apply:  func(x, k int64) int64 { return x + k - k },
	},
	{
		domain: DomainAll,
		render: func(p string, k int64) string { return fmt.Sprintf("return (%s - 0x%X) + 0x%X", p, k, k) },
		apply:  func(x, k int64) int64 { return x - k + k },
	},
	{
		domain: DomainAll,
		render: func(p string, _ int64) string { return fmt.Sprintf("return %s * 1", p) },
		apply:  func(x, _ int64) int64 { return x * 1 },
	},
	{
		domain: DomainAll,
		render: func(p string, _ int64) string { return fmt.Sprintf("return %s - 0", p) },
		apply:  func(x, _ int64) int64 { return x },
	},
	{
		domain: DomainU32,
		render: func(p string, k int64) string {
			return fmt.Sprintf("return bit32.bxor(bit32.bxor(%s, 0x%X), 0x%X)", p, k, k)
		},
		apply: func(x, k int64) int64 { return int64(uint32(x) ^ uint32(k) ^ uint32(k)) },
	},
	{
		domain: DomainU32,
		render: func(p string, _ int64) string { return fmt.Sprintf("return bit32.band(%s, 0xFFFFFFFF)", p) },
		apply:  func(x, _ int64) int64 { return int64(uint32(x)) },
	},
	{
		domain: DomainU32,
		render: func(p string, k int64) string {
			r := k%31 + 1
			return fmt.Sprintf("return bit32.rrotate(bit32.lrotate(%s, %d), %d)", p, r, r)
		},
		apply: func(x, k int64) int64 {
			r := uint(k%31 + 1)
			v := uint32(x)
			v = v<<r | v>>(32-r)
			v = v>>r | v<<(32-r)
			return int64(v)
		},
	},
}

// IdentityFunc is one keyed identity closure inside a table.
type IdentityFunc struct {
	Key     string
	Domain  Domain
	variant variantSpec
	k       int64
	param   string
}

// Apply computes the function's value in Go. For in-domain inputs the
// result always equals the input.
func (f *IdentityFunc) Apply(x int64) int64 {
	return f.variant.apply(x, f.k)
}

// IdentityTable is one generated table of identity closures plus an index
// array whose first Lua slot is the neutral element 0.
type IdentityTable struct {
	Name     string
	IndexKey string
	Index    []int64
	Funcs    []*IdentityFunc
}

// Func returns the identity function stored under key, or nil.
func (t *IdentityTable) Func(key string) *IdentityFunc {
	for _, f := range t.Funcs {
		if f.Key == key {
			return f
		}
	}
	return nil
}

// render emits the table as a Lua local declaration.
func (t *IdentityTable) render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "local %s = {\n", t.Name)
	for _, f := range t.Funcs {
		fmt.Fprintf(&b, "\t%s = function(%s) %s end,\n", f.Key, f.param, f.variant.render(f.param, f.k))
	}
	fmt.Fprintf(&b, "\t%s = {", t.IndexKey)
	for i, v := range t.Index {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d", v)
	}
	b.WriteString("},\n}")
	return b.String()
}

// newIdentityTable builds one table with n identity closures drawn from the
// variant catalog.
func newIdentityTable(src *entropy.Source, alloc *naming.Allocator, n int) *IdentityTable {
	t := &IdentityTable{
		Name:     alloc.FreshFor(naming.CategoryTable),
		IndexKey: src.Choice(indexKeys),
	}

	keys := src.Sample(funcKeys, n)
	for i, key := range keys {
		v := variants[src.IntRange(0, len(variants)-1)]
		if i == 0 {
			// Every table keeps at least one unrestricted function so any
			// value can always be routed somewhere.
			for v.domain != DomainAll {
				v = variants[src.IntRange(0, len(variants)-1)]
			}
		}
		t.Funcs = append(t.Funcs, &IdentityFunc{
			Key:     key,
			Domain:  v.domain,
			variant: v,
			k:       int64(src.IntRange(0x100, maxKey)),
			param:   src.Choice([]string{"v", "x", "n", "q", "w"}),
		})
	}

	// Index array: a permutation of 0..15 with the neutral 0 pinned to the
	// first slot so T.I[1] is always a usable zero.
	perm := src.ShuffleInts([]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15})
	for i, v := range perm {
		if v == 0 && i != 0 {
			perm[0], perm[i] = perm[i], perm[0]
			break
		}
	}
	for _, v := range perm {
		t.Index = append(t.Index, int64(v))
	}
	return t
}
