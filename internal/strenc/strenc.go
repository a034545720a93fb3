// Package strenc rewrites plain string literals into runtime-decoded forms:
// a shared byte-decoder helper call, decimal escape sequences, or an inline
// string.char call. The decoded value is byte-identical to the original, so
// program behavior never changes.
package strenc

import (
	"fmt"
	"strings"

	"github.com/whit3rabbit/luamixer/internal/entropy"
	"github.com/whit3rabbit/luamixer/internal/naming"
	"github.com/whit3rabbit/luamixer/internal/scanner"
)

// Options tunes an Encoder.
type Options struct {
	// MinLength is the shortest string content that gets encoded; 3 when
	// zero. Very short strings cost more in decoder calls than they hide.
	MinLength int
}

// Encoder rewrites string literals for one session. The helper names are
// drawn up front so the entropy call order does not depend on which methods
// the draw later selects.
type Encoder struct {
	src  *entropy.Source
	opts Options

	scName   string
	charName string
	accName  string
	keyName  string
	valName  string

	scUsed bool
}

// New creates an Encoder drawing names from the session allocator.
func New(src *entropy.Source, alloc *naming.Allocator, opts Options) *Encoder {
	if opts.MinLength <= 0 {
		opts.MinLength = 3
	}
	return &Encoder{
		src:      src,
		opts:     opts,
		scName:   alloc.FreshFor(naming.CategoryFunction),
		charName: alloc.FreshFor(naming.CategoryLocal),
		accName:  alloc.FreshFor(naming.CategoryParam),
		keyName:  alloc.FreshFor(naming.CategoryParam),
		valName:  alloc.FreshFor(naming.CategoryParam),
	}
}

// Apply rewrites eligible string literals in code, returning the rewritten
// code and how many literals were encoded. Eligible means: a short-quoted
// string with no escape sequences, at least MinLength characters, and no
// pattern metacharacters (patterns keep their meaning only verbatim). Long
// bracket strings pass through.
func (e *Encoder) Apply(code string) (string, int) {
	toks := scanner.Scan(code)
	count := 0

	for i := range toks {
		t := toks[i]
		if t.Kind != scanner.KindString {
			continue
		}
		text := t.Text
		if len(text) < 2 || (text[0] != '"' && text[0] != '\'') {
			continue
		}
		if text[len(text)-1] != text[0] {
			// Unterminated; leave for the validator to report.
			continue
		}
		content := text[1 : len(text)-1]
		if strings.Contains(content, "\\") {
			// Already escape-encoded; re-encoding would double-escape.
			continue
		}
		if len(content) < e.opts.MinLength || patternLike(content) {
			continue
		}

		method := e.src.Choice([]string{"sc", "escape", "inline"})
		if isCallSugar(toks, i) {
			// `f "arg"` sugar only accepts a literal; a call expression in
			// that slot would not parse.
			method = "escape"
		}

		switch method {
		case "sc":
			toks[i].Text = e.scName + "(" + e.hexBytes(content) + ")"
			e.scUsed = true
		case "inline":
			toks[i].Text = "string.char(" + e.hexBytes(content) + ")"
		default:
			toks[i].Text = "\"" + decimalEscape(content) + "\""
		}
		count++
	}
	return scanner.Join(toks), count
}

// Prelude returns the decoder helper definitions, or "" when no rewritten
// literal needs them. `string.char` and `table.concat` are reached through
// escaped member keys so neither name appears in the output.
func (e *Encoder) Prelude() string {
	if !e.scUsed {
		return ""
	}
	var b strings.Builder
	b.WriteString("local " + e.charName + " = string[\"" + decimalEscape("char") + "\"]\n")
	b.WriteString("local " + e.scName + " = function(...)\n")
	b.WriteString("\tlocal " + e.accName + " = {}\n")
	b.WriteString("\tfor " + e.keyName + ", " + e.valName + " in ipairs({...}) do\n")
	b.WriteString("\t\t" + e.accName + "[#" + e.accName + " + 1] = " + e.charName + "(" + e.valName + ")\n")
	b.WriteString("\tend\n")
	b.WriteString("\treturn table[\"" + decimalEscape("concat") + "\"](" + e.accName + ")\n")
	b.WriteString("end")
	return b.String()
}

// hexBytes renders content as comma-separated hex byte arguments, varying
// the hex spelling per byte.
func (e *Encoder) hexBytes(content string) string {
	parts := make([]string, len(content))
	for i := 0; i < len(content); i++ {
		b := content[i]
		switch e.src.IntRange(0, 2) {
		case 0:
			parts[i] = fmt.Sprintf("0x%02X", b)
		case 1:
			parts[i] = fmt.Sprintf("0x%02x", b)
		default:
			parts[i] = fmt.Sprintf("0X%02X", b)
		}
	}
	return strings.Join(parts, ",")
}

// decimalEscape renders every byte of s as a `\ddd` decimal escape.
func decimalEscape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		fmt.Fprintf(&b, "\\%03d", s[i])
	}
	return b.String()
}

// patternLike reports whether content contains Lua pattern metacharacters.
// string.find and friends consume such strings structurally, so they must
// stay verbatim.
func patternLike(content string) bool {
	return strings.ContainsAny(content, "%^$*+?[]()")
}

// isCallSugar reports whether the string at i sits in the `f "arg"` call
// shorthand position, where only a literal is valid.
func isCallSugar(toks []scanner.Token, i int) bool {
	p := scanner.PrevSignificant(toks, i)
	if p < 0 {
		return false
	}
	pt := toks[p]
	if pt.Kind == scanner.KindIdent && !naming.IsKeyword(pt.Text) {
		return true
	}
	if pt.Kind == scanner.KindOp && (pt.Text == ")" || pt.Text == "]") {
		return true
	}
	return false
}
