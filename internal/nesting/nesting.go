// Package nesting buries numeric literals under layers of calls through
// generated identity tables. Every layer preserves the wrapped value, so
// the transformation is semantics-neutral by construction; package tests
// verify the identity law by evaluating emitted expressions.
package nesting

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/whit3rabbit/luamixer/internal/entropy"
	"github.com/whit3rabbit/luamixer/internal/naming"
	"github.com/whit3rabbit/luamixer/internal/scanner"
)

// Options tunes one Nester. Zero values are replaced by the standard
// profile.
type Options struct {
	TableCount    int     // identity tables to generate
	FuncsPerTable int     // closures per table
	MinDepth      int     // wrap layers, lower bound
	MaxDepth      int     // wrap layers, upper bound
	MinLiteral    int64   // smallest absolute literal worth wrapping
	ArithmeticMix float64 // probability a call layer gets an arithmetic decoration
}

// StandardOptions is the default profile (3-5 layers, 3 tables).
func StandardOptions() Options {
	return Options{
		TableCount:    3,
		FuncsPerTable: 5,
		MinDepth:      3,
		MaxDepth:      5,
		MinLiteral:    2,
		ArithmeticMix: 0.4,
	}
}

// UltraOptions is the aggressive profile (5-8 layers, 4 tables).
func UltraOptions() Options {
	o := StandardOptions()
	o.TableCount = 4
	o.FuncsPerTable = 6
	o.MinDepth = 5
	o.MaxDepth = 8
	return o
}

func (o *Options) normalize() {
	std := StandardOptions()
	if o.TableCount <= 0 {
		o.TableCount = std.TableCount
	}
	if o.FuncsPerTable <= 0 {
		o.FuncsPerTable = std.FuncsPerTable
	}
	if o.MinDepth <= 0 {
		o.MinDepth = std.MinDepth
	}
	if o.MaxDepth < o.MinDepth {
		o.MaxDepth = o.MinDepth
	}
	if o.MinLiteral <= 0 {
		o.MinLiteral = std.MinLiteral
	}
	if o.ArithmeticMix <= 0 {
		o.ArithmeticMix = std.ArithmeticMix
	}
}

// Nester owns a set of identity tables and wraps literals through them.
// One per session.
type Nester struct {
	src    *entropy.Source
	opts   Options
	tables []*IdentityTable

	// last (table, func) pair emitted, so adjacent layers never repeat.
	prevTable string
	prevFunc  string
}

// New creates a Nester with freshly generated identity tables. Table names
// come from alloc so they can never collide with renamed identifiers.
func New(src *entropy.Source, alloc *naming.Allocator, opts Options) *Nester {
	opts.normalize()
	n := &Nester{src: src, opts: opts}
	for i := 0; i < opts.TableCount; i++ {
		n.tables = append(n.tables, newIdentityTable(src, alloc, opts.FuncsPerTable))
	}
	return n
}

// Tables exposes the generated tables, primarily for evaluation in tests.
func (n *Nester) Tables() []*IdentityTable {
	return n.tables
}

// Prelude returns the Lua declarations for every identity table. It must
// precede any wrapped expression in the output.
func (n *Nester) Prelude() string {
	var b strings.Builder
	for i, t := range n.tables {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t.render())
	}
	return b.String()
}

// Wrap buries expr, whose runtime value is val, under between MinDepth and
// MaxDepth identity layers. The same (table, function) pair is never used
// on two adjacent layers.
func (n *Nester) Wrap(expr string, val int64) string {
	depth := n.src.IntRange(n.opts.MinDepth, n.opts.MaxDepth)
	return n.WrapDepth(expr, val, depth)
}

// WrapDepth is Wrap with an explicit layer count. Every layer is a call
// through an identity table; with probability ArithmeticMix a layer also
// picks up a cancelling arithmetic decoration around the call, so the call
// count always equals depth.
func (n *Nester) WrapDepth(expr string, val int64, depth int) string {
	out := expr
	for i := 0; i < depth; i++ {
		out = n.callLayer(out, val)
		if n.src.Bool(n.opts.ArithmeticMix) {
			out = n.arithmeticLayer(out)
		}
	}
	return out
}

// callLayer emits T.F(inner) using a function whose domain admits val.
func (n *Nester) callLayer(inner string, val int64) string {
	table, fn := n.pickFunc(val)
	n.prevTable, n.prevFunc = table.Name, fn.Key
	return fmt.Sprintf("%s.%s(%s)", table.Name, fn.Key, inner)
}

// arithmeticLayer emits a keyed mixer or a neutral index-slot addition.
// Both cancel exactly: (k + x) - k, (x - k) + k, x + T.I[1]. The result is
// always fully parenthesized so every layer is atomic: wrapped text can be
// substituted after a unary minus or into a product without reassociating.
func (n *Nester) arithmeticLayer(inner string) string {
	switch n.src.IntRange(0, 2) {
	case 0:
		k := n.formatKey(int64(n.src.IntRange(0x10, maxKey)))
		return fmt.Sprintf("((%s + (%s)) - %s)", k, inner, k)
	case 1:
		k := n.formatKey(int64(n.src.IntRange(0x10, maxKey)))
		return fmt.Sprintf("(((%s) - %s) + %s)", inner, k, k)
	default:
		t := n.tables[n.src.IntRange(0, len(n.tables)-1)]
		if n.src.Bool(0.5) {
			return fmt.Sprintf("((%s) + %s.%s[1])", inner, t.Name, t.IndexKey)
		}
		return fmt.Sprintf("((%s) - %s.%s[1])", inner, t.Name, t.IndexKey)
	}
}

// pickFunc selects a (table, function) pair valid for val. Neither the
// table nor the function key may repeat the previous call layer's pick.
func (n *Nester) pickFunc(val int64) (*IdentityTable, *IdentityFunc) {
	u32 := val >= 0 && val < 1<<32
	for attempt := 0; ; attempt++ {
		t := n.tables[n.src.IntRange(0, len(n.tables)-1)]
		f := t.Funcs[n.src.IntRange(0, len(t.Funcs)-1)]
		if f.Domain == DomainU32 && !u32 {
			continue
		}
		if t.Name == n.prevTable || f.Key == n.prevFunc {
			// The in-domain pool can be too small to avoid both elements;
			// after enough tries, repeating beats spinning forever.
			if attempt < 24 {
				continue
			}
		}
		return t, f
	}
}

// ApplyToLiterals rewrites every integer literal at or above MinLiteral
// through Wrap and returns the transformed source and the number of
// literals wrapped. Strings and comments are untouchable by construction
// of the token stream.
func (n *Nester) ApplyToLiterals(code string) (string, int) {
	toks := scanner.Scan(code)
	wrapped := 0
	for i := range toks {
		if toks[i].Kind != scanner.KindNumber {
			continue
		}
		val, ok := parseIntLiteral(toks[i].Text)
		if !ok {
			continue
		}
		if abs64(val) < n.opts.MinLiteral {
			continue
		}
		if !wrappable(toks, i) {
			continue
		}
		toks[i].Text = n.Wrap(n.FormatNumber(val), val)
		wrapped++
	}
	return scanner.Join(toks), wrapped
}

// wrappable rejects positions where replacing the literal with a call
// expression would change the parse: directly after `.` or `:`, or with a
// `.` following.
func wrappable(toks []scanner.Token, idx int) bool {
	if p := scanner.PrevSignificant(toks, idx); p >= 0 {
		if toks[p].Kind == scanner.KindOp && (toks[p].Text == "." || toks[p].Text == ":") {
			return false
		}
	}
	if nx := scanner.NextSignificant(toks, idx); nx >= 0 {
		if toks[nx].Kind == scanner.KindOp && toks[nx].Text == "." {
			return false
		}
	}
	return true
}

// FormatNumber renders val in a randomly chosen radix. Negative values
// stay decimal; hex occasionally carries Luau digit separators.
func (n *Nester) FormatNumber(val int64) string {
	if val < 0 {
		return strconv.FormatInt(val, 10)
	}
	switch n.src.IntRange(0, 3) {
	case 0:
		return strconv.FormatInt(val, 10)
	case 1:
		return "0x" + strings.ToUpper(strconv.FormatInt(val, 16))
	case 2:
		return "0x" + strconv.FormatInt(val, 16)
	default:
		if val <= 0xFF {
			return "0b" + strconv.FormatInt(val, 2)
		}
		return "0x" + strings.ToUpper(strconv.FormatInt(val, 16))
	}
}

func (n *Nester) formatKey(k int64) string {
	if n.src.Bool(0.5) {
		return "0x" + strings.ToUpper(strconv.FormatInt(k, 16))
	}
	return "0x" + strconv.FormatInt(k, 16)
}

// parseIntLiteral parses a Lua integer literal (decimal, hex or binary,
// Luau underscores allowed). Floats and exponent forms are left alone.
func parseIntLiteral(text string) (int64, bool) {
	t := strings.ReplaceAll(text, "_", "")
	neg := strings.HasPrefix(t, "-")
	if neg {
		t = t[1:]
	}
	if strings.ContainsAny(t, ".eE") && !strings.HasPrefix(t, "0x") && !strings.HasPrefix(t, "0X") {
		return 0, false
	}
	var (
		v   uint64
		err error
	)
	switch {
	case strings.HasPrefix(t, "0x") || strings.HasPrefix(t, "0X"):
		v, err = strconv.ParseUint(t[2:], 16, 64)
	case strings.HasPrefix(t, "0b") || strings.HasPrefix(t, "0B"):
		v, err = strconv.ParseUint(t[2:], 2, 64)
	default:
		v, err = strconv.ParseUint(t, 10, 64)
	}
	if err != nil || v > math.MaxInt64 {
		return 0, false
	}
	// Values a float64 cannot hold exactly must stay literal: wrapping
	// arithmetic around them would not be identity in Lua.
	if v >= 1<<53 {
		return 0, false
	}
	if neg {
		return -int64(v), true
	}
	return int64(v), true
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
