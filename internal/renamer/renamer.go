// Package renamer rewrites every user identifier to an allocator-generated
// name while preserving resolution: each reference renames to exactly the
// declaration it referred to before. It works over the masked token stream
// with a best-effort scope tracker; constructs the tracker cannot shape are
// skipped and counted as coverage gaps instead of failing the run.
package renamer

import (
	"sort"

	"github.com/whit3rabbit/luamixer/internal/entropy"
	"github.com/whit3rabbit/luamixer/internal/naming"
	"github.com/whit3rabbit/luamixer/internal/scanner"
)

// Options tunes a Renamer.
type Options struct {
	// LocalPolicy names local variables; PolicyFull when empty.
	LocalPolicy naming.Policy
	// ParamPolicy names function parameters; PolicyShort when empty.
	ParamPolicy naming.Policy
}

// Stats reports what one Rename call did.
type Stats struct {
	VariablesRenamed int
	PassesCompleted  int
	CoverageGaps     int
}

// Renamer renames identifiers scope-aware. One per session.
type Renamer struct {
	src   *entropy.Source
	alloc *naming.Allocator
	opts  Options
}

// New creates a Renamer sharing the session allocator, so generated names
// can never collide with identity-table or handler names.
func New(src *entropy.Source, alloc *naming.Allocator, opts Options) *Renamer {
	if opts.LocalPolicy == "" {
		opts.LocalPolicy = naming.PolicyFull
	}
	if opts.ParamPolicy == "" {
		opts.ParamPolicy = naming.PolicyShort
	}
	return &Renamer{src: src, alloc: alloc, opts: opts}
}

// Rename runs the full pass sequence over code: analysis, four category
// passes in fixed order (locals, params, loop variables, local function
// names), then reference fixup. Every identifier appearing in the input is
// reserved first, so no generated name can shadow or capture input text.
func (r *Renamer) Rename(code string) (string, Stats) {
	toks := scanner.Scan(code)

	for _, t := range toks {
		if t.Kind == scanner.KindIdent {
			r.alloc.Reserve(t.Text)
		}
	}

	a := analyze(toks)

	passes := 0
	for _, cat := range []naming.NameCategory{naming.CategoryLocal, naming.CategoryParam, naming.CategoryLoopVar, naming.CategoryFunction} {
		for _, d := range a.decls {
			if d.category == cat {
				r.alloc.Allocate(d.key, r.policyFor(cat))
			}
		}
		passes++
	}

	out := a.rewrite(r.alloc)
	passes++ // fixup

	renamed := map[string]bool{}
	for _, d := range a.decls {
		renamed[d.key] = true
	}

	return out, Stats{
		VariablesRenamed: len(renamed),
		PassesCompleted:  passes,
		CoverageGaps:     a.gaps,
	}
}

func (r *Renamer) policyFor(cat naming.NameCategory) naming.Policy {
	switch cat {
	case naming.CategoryParam, naming.CategoryLoopVar:
		return r.opts.ParamPolicy
	default:
		return r.opts.LocalPolicy
	}
}

// declSite is one declaring identifier token.
type declSite struct {
	tokIdx   int
	key      string
	category naming.NameCategory
}

// bindEvent activates a binding at a token index. Activation is positional
// so `local x = x` resolves its right-hand side in the outer environment.
type bindEvent struct {
	at    int
	scope *Scope
	name  string
	key   string
}

type analysis struct {
	toks    []scanner.Token
	scopeAt []*Scope
	decls   []declSite
	declTok map[int]string // declaring token index -> allocation key
	events  []bindEvent
	gaps    int
}

// exprContinuers mark tokens after which an `if` is an expression, not a
// statement (Luau if-expressions).
var exprContinuers = map[string]bool{
	"=": true, "(": true, ",": true, "[": true, "{": true,
	"+": true, "-": true, "*": true, "/": true, "//": true, "%": true,
	"^": true, "..": true, "==": true, "~=": true, "<": true, "<=": true,
	">": true, ">=": true, "return": true, "and": true, "or": true,
	"not": true, "#": true,
}

// stmtKeywords start a statement; seeing one at top nesting level ends a
// trailing expression (used for until-conditions and local RHS bounds).
var stmtKeywords = map[string]bool{
	"local": true, "if": true, "while": true, "for": true, "repeat": true,
	"return": true, "break": true, "continue": true, "do": true,
	"end": true, "until": true, "else": true, "elseif": true, "goto": true,
}

// analyze walks the token stream once, building the scope tree, the
// declaration list and the binding activation schedule.
func analyze(toks []scanner.Token) *analysis {
	a := &analysis{
		toks:    toks,
		scopeAt: make([]*Scope, len(toks)),
		declTok: make(map[int]string),
	}
	arena := &scopeArena{}
	root := arena.new(nil)
	stack := []*Scope{root}

	push := func() *Scope {
		s := arena.new(stack[len(stack)-1])
		stack = append(stack, s)
		return s
	}
	pop := func() {
		if len(stack) <= 1 {
			a.gaps++
			return
		}
		stack = stack[:len(stack)-1]
	}

	forPending := false
	untilPending := 0
	ifExpr := 0

	for i := 0; i < len(toks); i++ {
		if untilPending > 0 && startsStatement(toks, i) {
			pop()
			untilPending--
		}
		a.scopeAt[i] = stack[len(stack)-1]

		t := toks[i]
		if t.Kind != scanner.KindIdent {
			continue
		}
		switch t.Text {
		case "local":
			a.handleLocal(toks, i, stack[len(stack)-1])
		case "function":
			a.handleFunction(toks, i, push())
		case "for":
			forPending = true
			a.handleFor(toks, i, push())
		case "do":
			if forPending {
				forPending = false
			} else {
				push()
			}
		case "if":
			if isExprContext(toks, i) {
				ifExpr++
			}
		case "then":
			if ifExpr == 0 {
				push()
			}
		case "elseif":
			if ifExpr == 0 {
				pop()
			}
		case "else":
			if ifExpr > 0 {
				ifExpr--
			} else {
				pop()
				push()
			}
		case "end":
			pop()
		case "repeat":
			push()
		case "until":
			untilPending++
		}
	}

	sort.SliceStable(a.events, func(x, y int) bool { return a.events[x].at < a.events[y].at })
	return a
}

// isExprContext reports whether the token at i continues an expression.
func isExprContext(toks []scanner.Token, i int) bool {
	p := scanner.PrevSignificant(toks, i)
	if p < 0 {
		return false
	}
	return exprContinuers[toks[p].Text]
}

// startsStatement reports whether token i plausibly begins a new statement:
// a statement keyword, or an identifier directly after a token that ends an
// expression (two primaries cannot be adjacent in one expression).
func startsStatement(toks []scanner.Token, i int) bool {
	t := toks[i]
	if t.Kind != scanner.KindIdent {
		return false
	}
	if stmtKeywords[t.Text] || t.Text == "function" {
		// `function` and `if` also occur in expressions.
		if t.Text == "function" || t.Text == "if" {
			return !isExprContext(toks, i)
		}
		return true
	}
	p := scanner.PrevSignificant(toks, i)
	if p < 0 {
		return true
	}
	prev := toks[p]
	switch prev.Kind {
	case scanner.KindNumber, scanner.KindString:
		return true
	case scanner.KindIdent:
		return !exprContinuers[prev.Text] && prev.Text != "goto" &&
			prev.Text != "local" && prev.Text != "function" && prev.Text != "until" &&
			prev.Text != "in" && prev.Text != "then" && prev.Text != "do" &&
			prev.Text != "else" && prev.Text != "repeat" && prev.Text != "end"
	case scanner.KindOp:
		return prev.Text == ")" || prev.Text == "]" || prev.Text == "}" || prev.Text == ";"
	}
	return false
}

// handleLocal shapes `local a, b = ...` and `local function f`.
func (a *analysis) handleLocal(toks []scanner.Token, i int, scope *Scope) {
	j := scanner.NextSignificant(toks, i)
	if j < 0 {
		a.gaps++
		return
	}
	if toks[j].Text == "function" {
		// `local function f` binds f immediately: the sugar declares the
		// local before the function value is built, so recursion works.
		nameIdx := scanner.NextSignificant(toks, j)
		if nameIdx < 0 || toks[nameIdx].Kind != scanner.KindIdent || naming.IsKeyword(toks[nameIdx].Text) {
			a.gaps++
			return
		}
		key := declKey(scope, toks[nameIdx].Text)
		a.addDecl(nameIdx, key, naming.CategoryFunction)
		a.events = append(a.events, bindEvent{at: nameIdx, scope: scope, name: toks[nameIdx].Text, key: key})
		return
	}

	var names []int
	for {
		if toks[j].Kind != scanner.KindIdent || naming.IsKeyword(toks[j].Text) {
			a.gaps++
			break
		}
		names = append(names, j)
		k := scanner.NextSignificant(toks, j)
		if k < 0 {
			break
		}
		if toks[k].Text == ":" {
			k = skipAnnotation(toks, k)
			if k < 0 {
				break
			}
		}
		if k >= 0 && toks[k].Text == "," {
			j = scanner.NextSignificant(toks, k)
			if j < 0 {
				a.gaps++
				break
			}
			continue
		}
		break
	}
	if len(names) == 0 {
		return
	}

	// Bindings activate after the whole statement so the initializer
	// resolves against the outer environment.
	last := names[len(names)-1]
	activation := statementEnd(toks, last)
	for _, nameIdx := range names {
		key := declKey(scope, toks[nameIdx].Text)
		a.addDecl(nameIdx, key, naming.CategoryLocal)
		a.events = append(a.events, bindEvent{at: activation, scope: scope, name: toks[nameIdx].Text, key: key})
	}
}

// handleFunction binds parameters into the freshly pushed scope. The
// function name (when present) is left to reference fixup: it resolves in
// the enclosing environment like any other assignment target.
func (a *analysis) handleFunction(toks []scanner.Token, i int, scope *Scope) {
	j := scanner.NextSignificant(toks, i)
	// Skip `name`, `a.b`, `a:c` and generic parameter lists.
	for j >= 0 {
		t := toks[j]
		if t.Kind == scanner.KindIdent && !naming.IsKeyword(t.Text) {
			j = scanner.NextSignificant(toks, j)
			continue
		}
		if t.Kind == scanner.KindOp && (t.Text == "." || t.Text == ":") {
			j = scanner.NextSignificant(toks, j)
			continue
		}
		if t.Kind == scanner.KindOp && t.Text == "<" {
			j = skipBalanced(toks, j, "<", ">")
			continue
		}
		break
	}
	if j < 0 || toks[j].Text != "(" {
		a.gaps++
		return
	}

	j = scanner.NextSignificant(toks, j)
	for j >= 0 && toks[j].Text != ")" {
		t := toks[j]
		switch {
		case t.Kind == scanner.KindIdent && !naming.IsKeyword(t.Text):
			key := declKey(scope, t.Text)
			a.addDecl(j, key, naming.CategoryParam)
			a.events = append(a.events, bindEvent{at: j, scope: scope, name: t.Text, key: key})
			j = scanner.NextSignificant(toks, j)
		case t.Text == "...":
			j = scanner.NextSignificant(toks, j)
		case t.Text == ":":
			j = skipParamAnnotation(toks, j)
		case t.Text == ",":
			j = scanner.NextSignificant(toks, j)
		default:
			a.gaps++
			return
		}
	}
}

// handleFor binds loop variables into the for scope, activating them at the
// loop's `do` so the range or iterator expressions resolve outside.
func (a *analysis) handleFor(toks []scanner.Token, i int, scope *Scope) {
	var names []int
	j := scanner.NextSignificant(toks, i)
	for j >= 0 {
		t := toks[j]
		if t.Kind == scanner.KindIdent && !naming.IsKeyword(t.Text) {
			names = append(names, j)
			j = scanner.NextSignificant(toks, j)
			continue
		}
		if t.Text == ":" {
			j = skipAnnotation(toks, j)
			continue
		}
		if t.Text == "," {
			j = scanner.NextSignificant(toks, j)
			continue
		}
		break
	}
	if len(names) == 0 || j < 0 || (toks[j].Text != "=" && toks[j].Text != "in") {
		a.gaps++
		return
	}

	activation := findLoopDo(toks, j)
	if activation < 0 {
		a.gaps++
		activation = j
	}
	for _, nameIdx := range names {
		key := declKey(scope, toks[nameIdx].Text)
		a.addDecl(nameIdx, key, naming.CategoryLoopVar)
		a.events = append(a.events, bindEvent{at: activation, scope: scope, name: toks[nameIdx].Text, key: key})
	}
}

func (a *analysis) addDecl(tokIdx int, key string, cat naming.NameCategory) {
	a.decls = append(a.decls, declSite{tokIdx: tokIdx, key: key, category: cat})
	a.declTok[tokIdx] = key
}

func declKey(scope *Scope, name string) string {
	return itoa(scope.id) + ":" + name
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// statementEnd finds the first token index after the statement containing
// tokens up to lastIdent, skipping nested blocks in the initializer.
func statementEnd(toks []scanner.Token, lastIdent int) int {
	depth := 0     // parens, brackets, braces
	blocks := 0    // open block constructs inside the initializer
	pendingDo := 0 // `do` tokens that belong to an already-counted for/while
	for i := lastIdent + 1; i < len(toks); i++ {
		t := toks[i]
		if t.Kind == scanner.KindOp {
			switch t.Text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
			}
			continue
		}
		if t.Kind != scanner.KindIdent {
			continue
		}
		switch t.Text {
		case "function":
			blocks++
		case "while", "for":
			if depth == 0 && blocks == 0 {
				return i
			}
			blocks++
			pendingDo++
		case "repeat":
			if depth == 0 && blocks == 0 {
				return i
			}
			blocks++
		case "do":
			if pendingDo > 0 {
				pendingDo--
				continue
			}
			if depth == 0 && blocks == 0 {
				return i
			}
			blocks++
		case "if":
			if !isExprContext(toks, i) {
				if depth == 0 && blocks == 0 {
					return i
				}
				blocks++
			}
		case "until":
			// An `until` at level zero closes the enclosing repeat, so the
			// statement is over.
			if blocks == 0 && depth == 0 {
				return i
			}
			blocks--
		case "end":
			if blocks == 0 && depth == 0 {
				return i
			}
			blocks--
		default:
			if depth == 0 && blocks == 0 && startsStatement(toks, i) {
				return i
			}
		}
	}
	return len(toks)
}

// findLoopDo locates the `do` that opens the loop body, skipping blocks
// nested inside iterator expressions.
func findLoopDo(toks []scanner.Token, from int) int {
	blocks := 0
	pendingDo := 0
	for i := from; i < len(toks); i++ {
		t := toks[i]
		if t.Kind != scanner.KindIdent {
			continue
		}
		switch t.Text {
		case "function", "repeat":
			blocks++
		case "if":
			if !isExprContext(toks, i) {
				blocks++
			}
		case "while", "for":
			blocks++
			pendingDo++
		case "do":
			switch {
			case pendingDo > 0:
				pendingDo--
			case blocks == 0:
				return i
			default:
				blocks++
			}
		case "end", "until":
			blocks--
			if blocks < 0 {
				return -1
			}
		}
	}
	return -1
}

// skipAnnotation consumes a Luau type annotation starting at the `:` token
// and returns the index of the first significant token after the type, or
// -1 at end of input.
func skipAnnotation(toks []scanner.Token, colon int) int {
	depth := 0
	prevPrimary := false
	i := scanner.NextSignificant(toks, colon)
	for i >= 0 {
		t := toks[i]
		switch {
		case t.Kind == scanner.KindOp && (t.Text == "(" || t.Text == "{" || t.Text == "<" || t.Text == "["):
			depth++
			prevPrimary = false
		case t.Kind == scanner.KindOp && (t.Text == ")" || t.Text == "}" || t.Text == ">" || t.Text == "]"):
			if depth == 0 {
				return i
			}
			depth--
			prevPrimary = true
		case depth == 0 && t.Kind == scanner.KindOp && (t.Text == "," || t.Text == "="):
			return i
		case t.Kind == scanner.KindOp && (t.Text == "." || t.Text == "->" || t.Text == "?"):
			prevPrimary = false
		case t.Kind == scanner.KindIdent:
			if depth == 0 && (stmtKeywords[t.Text] || t.Text == "function" || prevPrimary) {
				return i
			}
			prevPrimary = true
		default:
			prevPrimary = false
		}
		i = scanner.NextSignificant(toks, i)
	}
	return -1
}

// skipParamAnnotation consumes a type annotation inside a parameter list,
// returning the index of the separating `,` or closing `)`.
func skipParamAnnotation(toks []scanner.Token, colon int) int {
	depth := 0
	i := scanner.NextSignificant(toks, colon)
	for i >= 0 {
		t := toks[i]
		if t.Kind == scanner.KindOp {
			switch t.Text {
			case "(", "{", "<", "[":
				depth++
			case ")", "}", ">", "]":
				if depth == 0 {
					return i
				}
				depth--
			case ",":
				if depth == 0 {
					return i
				}
			}
		}
		i = scanner.NextSignificant(toks, i)
	}
	return -1
}

// skipBalanced consumes from an opener token to just past its closer.
func skipBalanced(toks []scanner.Token, i int, open, close string) int {
	depth := 0
	for ; i < len(toks); i++ {
		switch toks[i].Text {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return scanner.NextSignificant(toks, i)
			}
		}
	}
	return -1
}

// rewrite applies the allocation map: declaration sites directly, every
// other identifier through positional scope resolution. Field and method
// names, table-constructor keys, goto labels and type positions pass
// through untouched.
func (a *analysis) rewrite(alloc *naming.Allocator) string {
	out := make([]scanner.Token, len(a.toks))
	copy(out, a.toks)

	evIdx := 0
	curly := 0
	for i := range out {
		for evIdx < len(a.events) && a.events[evIdx].at <= i {
			ev := a.events[evIdx]
			ev.scope.bind(ev.name, ev.key)
			evIdx++
		}

		t := out[i]
		if t.Kind == scanner.KindOp {
			switch t.Text {
			case "{":
				curly++
			case "}":
				curly--
			}
			continue
		}
		if t.Kind != scanner.KindIdent || naming.IsKeyword(t.Text) {
			continue
		}

		if key, ok := a.declTok[i]; ok {
			if name, found := alloc.Lookup(key); found {
				out[i].Text = name
			}
			continue
		}

		if skipReference(a.toks, i, curly) {
			continue
		}
		if key, ok := a.scopeAt[i].resolve(t.Text); ok {
			if name, found := alloc.Lookup(key); found {
				out[i].Text = name
			}
		}
	}
	return scanner.Join(out)
}

// skipReference filters identifier positions that are names, not variable
// references.
func skipReference(toks []scanner.Token, i, curly int) bool {
	if p := scanner.PrevSignificant(toks, i); p >= 0 {
		pt := toks[p]
		if pt.Kind == scanner.KindOp && (pt.Text == "." || pt.Text == ":" || pt.Text == "::") {
			return true
		}
		if pt.Kind == scanner.KindIdent && pt.Text == "goto" {
			return true
		}
		// Table-constructor key: `{ key = v }` / `, key = v`.
		if curly > 0 && pt.Kind == scanner.KindOp && (pt.Text == "{" || pt.Text == "," || pt.Text == ";") {
			if nx := scanner.NextSignificant(toks, i); nx >= 0 && toks[nx].Text == "=" {
				return true
			}
		}
	}
	return false
}
