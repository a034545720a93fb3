package dispatch

import (
	"fmt"

	"github.com/whit3rabbit/luamixer/internal/entropy"
)

// Predicate is an emitted comparison whose boolean value is known at
// generation time. The truth is computed in Go over the drawn constants and
// carried alongside the text, so a consumer can only guard unreachable
// filler with predicates proven false, never merely assumed false.
type Predicate struct {
	Text  string
	Value bool
}

// predicateGen draws opaque predicates from a small shape catalog.
type predicateGen struct {
	src *entropy.Source
}

// KnownFalse returns a predicate whose text evaluates to false.
func (p *predicateGen) KnownFalse() Predicate {
	for {
		pred := p.draw()
		if !pred.Value {
			return pred
		}
	}
}

// KnownTrue returns a predicate whose text evaluates to true.
func (p *predicateGen) KnownTrue() Predicate {
	for {
		pred := p.draw()
		if pred.Value {
			return pred
		}
	}
}

func (p *predicateGen) draw() Predicate {
	switch p.src.IntRange(0, 2) {
	case 0:
		// Congruence: (a % m) == r, usually off by one from the truth.
		a := p.src.IntRange(100, 9999)
		m := p.src.IntRange(3, 17)
		r := p.src.IntRange(0, m-1)
		return Predicate{
			Text:  fmt.Sprintf("(%d %% %d) == %d", a, m, r),
			Value: a%m == r,
		}
	case 1:
		// Product bound: (a * b) < c.
		a := p.src.IntRange(7, 99)
		b := p.src.IntRange(7, 99)
		c := p.src.IntRange(10, 9999)
		return Predicate{
			Text:  fmt.Sprintf("(%d * %d) < %d", a, b, c),
			Value: a*b < c,
		}
	default:
		// Sum/difference ordering: (a - b) > (a + c).
		a := p.src.IntRange(1, 999)
		b := p.src.IntRange(1, 999)
		c := p.src.IntRange(0, 999)
		return Predicate{
			Text:  fmt.Sprintf("(%d - %d) > (%d + %d)", a, b, a, c),
			Value: a-b > a+c,
		}
	}
}
