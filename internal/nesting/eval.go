package nesting

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/whit3rabbit/luamixer/internal/scanner"
)

// Evaluator computes the value of expressions emitted by a Nester: integer
// literals in any radix, + - * arithmetic, parentheses, identity-table
// calls and index-array lookups. It exists so tests can check the identity
// law on real output text instead of trusting the generator.
type Evaluator struct {
	tables map[string]*IdentityTable
}

// NewEvaluator builds an Evaluator over the Nester's tables.
func NewEvaluator(n *Nester) *Evaluator {
	e := &Evaluator{tables: make(map[string]*IdentityTable)}
	for _, t := range n.Tables() {
		e.tables[t.Name] = t
	}
	return e
}

// Eval evaluates expr and returns its value.
func (e *Evaluator) Eval(expr string) (int64, error) {
	toks := significant(scanner.Scan(expr))
	p := &parser{ev: e, toks: toks}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.toks) {
		return 0, fmt.Errorf("trailing input at token %d: %q", p.pos, p.toks[p.pos].Text)
	}
	return v, nil
}

func significant(toks []scanner.Token) []scanner.Token {
	out := toks[:0]
	for _, t := range toks {
		if t.Kind != scanner.KindSpace && t.Kind != scanner.KindComment {
			out = append(out, t)
		}
	}
	return out
}

type parser struct {
	ev   *Evaluator
	toks []scanner.Token
	pos  int
}

func (p *parser) peek() (scanner.Token, bool) {
	if p.pos < len(p.toks) {
		return p.toks[p.pos], true
	}
	return scanner.Token{}, false
}

func (p *parser) accept(text string) bool {
	if t, ok := p.peek(); ok && t.Kind == scanner.KindOp && t.Text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(text string) error {
	if !p.accept(text) {
		got := "end of input"
		if t, ok := p.peek(); ok {
			got = strconv.Quote(t.Text)
		}
		return fmt.Errorf("expected %q, got %s", text, got)
	}
	return nil
}

// expr := term (('+' | '-') term)*
func (p *parser) parseExpr() (int64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case p.accept("+"):
			r, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v += r
		case p.accept("-"):
			r, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v -= r
		default:
			return v, nil
		}
	}
}

// term := factor ('*' factor)*
func (p *parser) parseTerm() (int64, error) {
	v, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for p.accept("*") {
		r, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		v *= r
	}
	return v, nil
}

// factor := number | '-' factor | '(' expr ')' | table '.' key call-or-index
func (p *parser) parseFactor() (int64, error) {
	t, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("unexpected end of expression")
	}
	switch {
	case t.Kind == scanner.KindNumber:
		p.pos++
		v, ok := parseIntLiteral(t.Text)
		if !ok {
			return 0, fmt.Errorf("unsupported literal %q", t.Text)
		}
		return v, nil

	case t.Kind == scanner.KindOp && t.Text == "-":
		p.pos++
		v, err := p.parseFactor()
		return -v, err

	case t.Kind == scanner.KindOp && t.Text == "(":
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		return v, p.expect(")")

	case t.Kind == scanner.KindIdent:
		return p.parseTableAccess(t.Text)

	default:
		return 0, fmt.Errorf("unexpected token %q", t.Text)
	}
}

func (p *parser) parseTableAccess(name string) (int64, error) {
	table, ok := p.ev.tables[name]
	if !ok {
		return 0, fmt.Errorf("unknown table %q", name)
	}
	p.pos++
	if err := p.expect("."); err != nil {
		return 0, err
	}
	keyTok, ok := p.peek()
	if !ok || keyTok.Kind != scanner.KindIdent {
		return 0, fmt.Errorf("expected field after %s.", name)
	}
	p.pos++

	switch {
	case p.accept("("):
		fn := table.Func(keyTok.Text)
		if fn == nil {
			return 0, fmt.Errorf("table %s has no function %q", name, keyTok.Text)
		}
		arg, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if err := p.expect(")"); err != nil {
			return 0, err
		}
		if fn.Domain == DomainU32 && (arg < 0 || arg >= 1<<32) {
			return 0, fmt.Errorf("%s.%s applied outside its domain: %d", name, keyTok.Text, arg)
		}
		return fn.Apply(arg), nil

	case p.accept("["):
		if keyTok.Text != table.IndexKey {
			return 0, fmt.Errorf("table %s has no index array %q", name, keyTok.Text)
		}
		idx, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if err := p.expect("]"); err != nil {
			return 0, err
		}
		// Lua arrays are 1-based.
		if idx < 1 || int(idx) > len(table.Index) {
			return 0, fmt.Errorf("index %d out of range for %s.%s", idx, name, keyTok.Text)
		}
		return table.Index[idx-1], nil

	default:
		return 0, fmt.Errorf("expected call or index after %s.%s", name, keyTok.Text)
	}
}

// SplitAssignment splits a `<target> = <expr>` statement so table-driven
// tests can evaluate the right-hand side of wrapped assignments.
func SplitAssignment(stmt string) (string, string, bool) {
	i := strings.Index(stmt, "=")
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(stmt[:i]), strings.TrimSpace(stmt[i+1:]), true
}
