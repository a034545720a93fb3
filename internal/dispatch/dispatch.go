// Package dispatch synthesizes the opcode-handler scaffold: one local
// handler per opcode drawn from a class of metamorphic variants, a shuffled
// dispatch table with mixed-radix indices, and an optional scatter pass
// that spreads the definitions across nested do-blocks behind opaque
// predicates. Handler behavior is identical across variants; only the
// surface differs.
package dispatch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/whit3rabbit/luamixer/internal/entropy"
	"github.com/whit3rabbit/luamixer/internal/naming"
)

// opcode ids mirror the abstract VM catalog.
const (
	opLoadNil = 2
	opLoadB   = 3
	opLoadN   = 4
	opLoadK   = 5
	opMove    = 6

	opCall   = 21
	opReturn = 22

	opJumpIfEq    = 27
	opJumpIfLe    = 28
	opJumpIfLt    = 29
	opJumpIfNotEq = 30
	opJumpIfNotLe = 31
	opJumpIfNotLt = 32

	opAdd  = 33
	opSub  = 34
	opMul  = 35
	opDiv  = 36
	opMod  = 37
	opPow  = 38
	opAddK = 39
	opSubK = 40
	opMulK = 41
	opDivK = 42
	opModK = 43
	opPowK = 44

	opConcat = 49

	opIDiv  = 81
	opIDivK = 82
)

type opcodeSpec struct {
	id   int
	kind string // binop, binopk, jump, jumpnot, load, move, call, ret, concat
	op   string // operator symbol or comparison
}

// catalog order is fixed; it is part of the entropy-call contract.
var catalog = []opcodeSpec{
	{opLoadNil, "loadnil", ""},
	{opLoadB, "loadb", ""},
	{opLoadN, "loadn", ""},
	{opLoadK, "loadk", ""},
	{opMove, "move", ""},
	{opCall, "call", ""},
	{opReturn, "ret", ""},
	{opJumpIfEq, "jump", "=="},
	{opJumpIfLe, "jump", "<="},
	{opJumpIfLt, "jump", "<"},
	{opJumpIfNotEq, "jumpnot", "=="},
	{opJumpIfNotLe, "jumpnot", "<="},
	{opJumpIfNotLt, "jumpnot", "<"},
	{opAdd, "binop", "+"},
	{opSub, "binop", "-"},
	{opMul, "binop", "*"},
	{opDiv, "binop", "/"},
	{opMod, "binop", "%"},
	{opPow, "binop", "^"},
	{opAddK, "binopk", "+"},
	{opSubK, "binopk", "-"},
	{opMulK, "binopk", "*"},
	{opDivK, "binopk", "/"},
	{opModK, "binopk", "%"},
	{opPowK, "binopk", "^"},
	{opConcat, "concat", ".."},
	{opIDiv, "binop", "//"},
	{opIDivK, "binopk", "//"},
}

// Options tunes a Generator.
type Options struct {
	// Metamorphic selects handler variants per opcode via entropy; when
	// false every handler uses the direct form.
	Metamorphic bool
	// ScatterDepth nests handler definitions in do-blocks this deep.
	// Zero disables scattering.
	ScatterDepth int
}

// Handler is one synthesized opcode handler.
type Handler struct {
	Opcode  int
	Name    string
	Variant int
	// Definition is `NAME = function(...) ... end`, assignment form so
	// hoisted declarations stay valid under scattering.
	Definition string
}

// Result is a generated dispatch scaffold.
type Result struct {
	Handlers []Handler
	TableVar string
	// Code is the complete chunk: hoisted handler locals, definitions
	// (scattered when configured) and the dispatch table.
	Code string
}

// Generator synthesizes dispatch scaffolds. One per session.
type Generator struct {
	src   *entropy.Source
	alloc *naming.Allocator
	opts  Options
	preds predicateGen
}

// New creates a Generator drawing names from alloc so handler and table
// identifiers never collide with renamed script variables.
func New(src *entropy.Source, alloc *naming.Allocator, opts Options) *Generator {
	return &Generator{src: src, alloc: alloc, opts: opts, preds: predicateGen{src: src}}
}

// paramPool supplies handler parameter names. Parameters are
// function-scoped, so reuse across handlers is harmless.
var paramPool = []string{"sK", "iN", "pC", "vR", "tP", "qA", "mX", "dL"}

// Generate synthesizes every handler in the catalog plus the dispatch
// table and assembles the chunk.
func (g *Generator) Generate() *Result {
	res := &Result{TableVar: g.alloc.FreshFor(naming.CategoryTable)}

	for _, spec := range catalog {
		variant := 0
		if g.opts.Metamorphic {
			variant = g.src.IntRange(0, 2)
		}
		name := g.alloc.FreshFor(naming.CategoryHandler)
		params := g.src.Sample(paramPool, 3)
		body := renderHandler(spec, variant, params[0], params[1], params[2])
		res.Handlers = append(res.Handlers, Handler{
			Opcode:  spec.id,
			Name:    name,
			Variant: variant,
			Definition: fmt.Sprintf("%s = function(%s, %s, %s)\n%s\nend",
				name, params[0], params[1], params[2], body),
		})
	}

	res.Code = g.assemble(res)
	return res
}

// renderHandler emits the handler body for spec under the given variant.
// stack holds registers, inst the decoded instruction fields (A, B, C, D,
// K), pc the program counter.
func renderHandler(spec opcodeSpec, variant int, stack, inst, pc string) string {
	a := inst + ".A"
	b := inst + ".B"
	c := inst + ".C"
	d := inst + ".D"
	k := inst + ".K"
	reg := func(f string) string { return stack + "[" + f + "]" }

	switch spec.kind {
	case "binop":
		switch variant {
		case 1:
			return fmt.Sprintf("\tlocal L = %s\n\tlocal R = %s\n\t%s = L %s R", reg(b), reg(c), reg(a), spec.op)
		case 2:
			return fmt.Sprintf("\t%s = ((%s) %s (%s))", reg(a), reg(b), spec.op, reg(c))
		default:
			return fmt.Sprintf("\t%s = %s %s %s", reg(a), reg(b), spec.op, reg(c))
		}
	case "binopk":
		switch variant {
		case 1:
			return fmt.Sprintf("\tlocal L = %s\n\tlocal R = %s\n\t%s = L %s R", reg(b), k, reg(a), spec.op)
		case 2:
			return fmt.Sprintf("\t%s = ((%s) %s (%s))", reg(a), reg(b), spec.op, k)
		default:
			return fmt.Sprintf("\t%s = %s %s %s", reg(a), reg(b), spec.op, k)
		}
	case "jump":
		switch variant {
		case 1:
			return fmt.Sprintf("\tlocal L = %s\n\tlocal R = %s\n\tif L %s R then\n\t\treturn %s + %s\n\tend\n\treturn %s + 1",
				reg(a), reg(b), spec.op, pc, d, pc)
		case 2:
			return fmt.Sprintf("\tif ((%s) %s (%s)) == true then\n\t\treturn %s + %s\n\tend\n\treturn %s + 1",
				reg(a), spec.op, reg(b), pc, d, pc)
		default:
			return fmt.Sprintf("\tif %s %s %s then\n\t\treturn %s + %s\n\tend\n\treturn %s + 1",
				reg(a), spec.op, reg(b), pc, d, pc)
		}
	case "jumpnot":
		switch variant {
		case 1:
			return fmt.Sprintf("\tlocal L = %s\n\tlocal R = %s\n\tif not (L %s R) then\n\t\treturn %s + %s\n\tend\n\treturn %s + 1",
				reg(a), reg(b), spec.op, pc, d, pc)
		case 2:
			return fmt.Sprintf("\tif ((%s) %s (%s)) ~= true then\n\t\treturn %s + %s\n\tend\n\treturn %s + 1",
				reg(a), spec.op, reg(b), pc, d, pc)
		default:
			return fmt.Sprintf("\tif not (%s %s %s) then\n\t\treturn %s + %s\n\tend\n\treturn %s + 1",
				reg(a), spec.op, reg(b), pc, d, pc)
		}
	case "loadnil":
		switch variant {
		case 1:
			return fmt.Sprintf("\tlocal dst = %s\n\t%s[dst] = nil", a, stack)
		case 2:
			return fmt.Sprintf("\t%s[(%s)] = nil", stack, a)
		default:
			return fmt.Sprintf("\t%s = nil", reg(a))
		}
	case "loadb":
		switch variant {
		case 1:
			return fmt.Sprintf("\tlocal v = %s\n\t%s = v ~= 0", b, reg(a))
		case 2:
			return fmt.Sprintf("\t%s = ((%s) ~= (0))", reg(a), b)
		default:
			return fmt.Sprintf("\t%s = %s ~= 0", reg(a), b)
		}
	case "loadn":
		switch variant {
		case 1:
			return fmt.Sprintf("\tlocal v = %s\n\t%s = v", d, reg(a))
		case 2:
			return fmt.Sprintf("\t%s = ((%s) + 0)", reg(a), d)
		default:
			return fmt.Sprintf("\t%s = %s", reg(a), d)
		}
	case "loadk":
		switch variant {
		case 1:
			return fmt.Sprintf("\tlocal v = %s\n\t%s = v", k, reg(a))
		case 2:
			return fmt.Sprintf("\t%s = (%s)", reg(a), k)
		default:
			return fmt.Sprintf("\t%s = %s", reg(a), k)
		}
	case "move":
		switch variant {
		case 1:
			return fmt.Sprintf("\tlocal v = %s\n\t%s = v", reg(b), reg(a))
		case 2:
			return fmt.Sprintf("\t%s = (%s)", reg(a), reg(b))
		default:
			return fmt.Sprintf("\t%s = %s", reg(a), reg(b))
		}
	case "call":
		switch variant {
		case 1:
			return fmt.Sprintf("\tlocal fn = %s\n\treturn fn(table.unpack(%s, %s + 1, %s + %s))",
				reg(a), stack, a, a, b)
		case 2:
			return fmt.Sprintf("\treturn (%s)(table.unpack(%s, %s + 1, %s + %s))", reg(a), stack, a, a, b)
		default:
			return fmt.Sprintf("\treturn %s(table.unpack(%s, %s + 1, %s + %s))", reg(a), stack, a, a, b)
		}
	case "ret":
		switch variant {
		case 1:
			return fmt.Sprintf("\tlocal base = %s\n\treturn table.unpack(%s, base, base + %s)", a, stack, b)
		case 2:
			return fmt.Sprintf("\treturn table.unpack(%s, (%s), (%s) + (%s))", stack, a, a, b)
		default:
			return fmt.Sprintf("\treturn table.unpack(%s, %s, %s + %s)", stack, a, a, b)
		}
	case "concat":
		switch variant {
		case 1:
			return fmt.Sprintf("\tlocal L = %s\n\tlocal R = %s\n\t%s = L .. R", reg(b), reg(c), reg(a))
		case 2:
			return fmt.Sprintf("\t%s = ((%s) .. (%s))", reg(a), reg(b), reg(c))
		default:
			return fmt.Sprintf("\t%s = %s .. %s", reg(a), reg(b), reg(c))
		}
	default:
		panic(fmt.Sprintf("dispatch: unknown opcode kind %q", spec.kind))
	}
}

// assemble lays out the chunk: hoisted declarations, definitions (possibly
// scattered), then the shuffled dispatch table.
func (g *Generator) assemble(res *Result) string {
	var b strings.Builder

	names := make([]string, len(res.Handlers))
	for i, h := range res.Handlers {
		names[i] = h.Name
	}
	// Handler locals are declared before any scatter block so the table
	// always binds the same functions regardless of block layout.
	b.WriteString("local " + strings.Join(names, ", ") + "\n")

	if g.opts.ScatterDepth > 0 {
		g.writeScattered(&b, res.Handlers, g.opts.ScatterDepth)
	} else {
		for _, h := range res.Handlers {
			b.WriteString(h.Definition)
			b.WriteByte('\n')
		}
	}

	b.WriteString(g.renderTable(res))
	return b.String()
}

// writeScattered distributes handler definitions over nested do-blocks,
// interleaving filler guarded by known-false predicates.
func (g *Generator) writeScattered(b *strings.Builder, handlers []Handler, depth int) {
	perm := g.src.ShuffleInts(indexRange(len(handlers)))
	chunks := splitChunks(perm, depth)

	for level, chunk := range chunks {
		indent := strings.Repeat("\t", level)
		b.WriteString(indent + "do\n")
		inner := indent + "\t"
		for _, hi := range chunk {
			b.WriteString(indentLines(handlers[hi].Definition, inner))
			b.WriteByte('\n')
			if g.src.Bool(0.35) {
				g.writeFiller(b, inner, handlers)
			}
		}
	}
	for level := len(chunks) - 1; level >= 0; level-- {
		b.WriteString(strings.Repeat("\t", level) + "end\n")
	}
}

// writeFiller emits an unreachable block guarded by a predicate proven
// false at generation time.
func (g *Generator) writeFiller(b *strings.Builder, indent string, handlers []Handler) {
	pred := g.preds.KnownFalse()
	victim := handlers[g.src.IntRange(0, len(handlers)-1)].Name
	switch g.src.IntRange(0, 1) {
	case 0:
		fmt.Fprintf(b, "%sif %s then\n%s\t%s = nil\n%send\n", indent, pred.Text, indent, victim, indent)
	default:
		fmt.Fprintf(b, "%sif %s then\n%s\t%s = %s\n%send\n",
			indent, pred.Text, indent, victim, strconv.Itoa(g.src.IntRange(0, 0xFFFF)), indent)
	}
}

// renderTable emits the dispatch table with shuffled entries and
// mixed-radix opcode indices.
func (g *Generator) renderTable(res *Result) string {
	order := g.src.ShuffleInts(indexRange(len(res.Handlers)))

	var b strings.Builder
	fmt.Fprintf(&b, "local %s = {\n", res.TableVar)
	for _, i := range order {
		h := res.Handlers[i]
		fmt.Fprintf(&b, "\t[%s] = %s,\n", g.formatIndex(h.Opcode), h.Name)
	}
	b.WriteString("}")
	return b.String()
}

func (g *Generator) formatIndex(op int) string {
	switch g.src.IntRange(0, 2) {
	case 0:
		return strconv.Itoa(op)
	case 1:
		return "0x" + strings.ToUpper(strconv.FormatInt(int64(op), 16))
	default:
		return "0b" + strconv.FormatInt(int64(op), 2)
	}
}

func indexRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// splitChunks divides indices into up to depth consecutive chunks, each
// non-empty.
func splitChunks(indices []int, depth int) [][]int {
	if depth > len(indices) {
		depth = len(indices)
	}
	if depth < 1 {
		depth = 1
	}
	size := (len(indices) + depth - 1) / depth
	var chunks [][]int
	for start := 0; start < len(indices); start += size {
		end := start + size
		if end > len(indices) {
			end = len(indices)
		}
		chunks = append(chunks, indices[start:end])
	}
	return chunks
}

func indentLines(s, indent string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = indent + lines[i]
	}
	return strings.Join(lines, "\n")
}
