package license

import (
	"strings"
)

// Expression is a parsed SPDX-style license expression: a boolean
// combination of license symbols joined by AND/OR, with an optional
// WITH exception clause attached to a single symbol. Precedence, from
// tightest to loosest, is WITH > AND > OR.
type Expression interface {
	String() string
	canon() Expression
}

// Symbol is a single license identifier, optionally suffixed with "+"
// (meaning "this version or any later version").
type Symbol struct {
	ID   string // canonical SPDX identifier
	Plus bool
}

func (s Symbol) String() string {
	if s.Plus {
		return s.ID + "+"
	}
	return s.ID
}

func (s Symbol) canon() Expression { return s }

// With attaches an exception identifier to a license symbol, e.g.
// "GPL-2.0-only WITH Classpath-exception-2.0".
type With struct {
	Symbol    Symbol
	Exception string
}

func (w With) String() string    { return w.Symbol.String() + " WITH " + w.Exception }
func (w With) canon() Expression { return w }

// And is an n-ary conjunction.
type And struct{ Terms []Expression }

func (a And) String() string { return joinTerms(a.Terms, " AND ") }

func (a And) canon() Expression {
	return And{Terms: canonList(a.Terms, func(e Expression) bool {
		_, ok := e.(Or)
		return ok
	})}
}

// Or is an n-ary disjunction.
type Or struct{ Terms []Expression }

func (o Or) String() string { return joinTerms(o.Terms, " OR ") }

func (o Or) canon() Expression {
	return Or{Terms: canonList(o.Terms, func(e Expression) bool {
		_, ok := e.(And)
		return ok
	})}
}

// Paren wraps a sub-expression that keeps explicit parentheses. The
// parser produces one for every parenthesized group in the input, and
// canonicalization adds one around an AND nested in an OR (or the
// reverse), which would re-associate without them.
type Paren struct{ Inner Expression }

func (p Paren) String() string { return "(" + p.Inner.String() + ")" }
func (p Paren) canon() Expression {
	inner := p.Inner.canon()
	if _, ok := inner.(Symbol); ok {
		return inner
	}
	if _, ok := inner.(With); ok {
		return inner
	}
	return Paren{Inner: inner}
}

func joinTerms(terms []Expression, sep string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, sep)
}

// canonList canonicalizes each term in place, wrapping any term that
// would be ambiguous when mixed with the parent
// conjunction/disjunction in parentheses. Terms keep their written
// order: "MIT OR Apache-2.0" normalizes with MIT still first.
func canonList(terms []Expression, needsParen func(Expression) bool) []Expression {
	out := make([]Expression, len(terms))
	for i, t := range terms {
		c := t.canon()
		if needsParen(c) {
			c = Paren{Inner: c}
		}
		out[i] = c
	}
	return out
}

// Canon returns the canonical normal form of e: aliases resolved to
// their SPDX identifier by the tokenizer, redundant outermost
// parentheses removed, and term order preserved as written.
func Canon(e Expression) Expression {
	c := e.canon()
	if p, ok := c.(Paren); ok {
		return p.Inner
	}
	return c
}
