// internal/expr/expr.go
//
// Restricted arithmetic evaluator for numeric puzzle answers.
//
// Grammar (whitespace ignored between tokens):
//   expr   := term   (('+' | '-') term)*
//   term   := factor (('*' | '/') factor)*
//   factor := ('+' | '-') factor | number | '(' expr ')'
//   number := [0-9]+
//
// Any character outside digits, + - * / ( ) and whitespace is rejected before
// parsing. Arithmetic is exact (big.Rat), so 1/3*3 evaluates to 1.

package expr

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrMalformed is returned for input that is not a well-formed expression
// over the allowed alphabet, including division by zero.
var ErrMalformed = errors.New("malformed expression")

// maxDepth bounds parenthesis/unary nesting.
const maxDepth = 64

// Eval parses and evaluates s.
func Eval(s string) (*big.Rat, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty input", ErrMalformed)
	}
	for i, r := range s {
		if !allowed(r) {
			return nil, fmt.Errorf("%w: unexpected %q at %d", ErrMalformed, r, i)
		}
	}
	p := &parser{src: s}
	v, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, fmt.Errorf("%w: trailing %q", ErrMalformed, p.src[p.pos:])
	}
	return v, nil
}

// Equals evaluates s and reports whether the result equals want exactly.
func Equals(s string, want *big.Rat) (bool, error) {
	v, err := Eval(s)
	if err != nil {
		return false, err
	}
	return v.Cmp(want) == 0, nil
}

func allowed(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case strings.ContainsRune("+-*/()", r):
		return true
	case r == ' ' || r == '\t' || r == '\n' || r == '\r':
		return true
	}
	return false
}

type parser struct {
	src string
	pos int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

// peek returns the next non-space byte, or 0 at end of input.
func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) expr(depth int) (*big.Rat, error) {
	left, err := p.term(depth)
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.term(depth)
		if err != nil {
			return nil, err
		}
		if op == '+' {
			left = new(big.Rat).Add(left, right)
		} else {
			left = new(big.Rat).Sub(left, right)
		}
	}
}

func (p *parser) term(depth int) (*big.Rat, error) {
	left, err := p.factor(depth)
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.factor(depth)
		if err != nil {
			return nil, err
		}
		if op == '*' {
			left = new(big.Rat).Mul(left, right)
			continue
		}
		if right.Sign() == 0 {
			return nil, fmt.Errorf("%w: division by zero", ErrMalformed)
		}
		left = new(big.Rat).Quo(left, right)
	}
}

func (p *parser) factor(depth int) (*big.Rat, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: nesting too deep", ErrMalformed)
	}
	switch c := p.peek(); {
	case c == '+':
		p.pos++
		return p.factor(depth + 1)
	case c == '-':
		p.pos++
		v, err := p.factor(depth + 1)
		if err != nil {
			return nil, err
		}
		return new(big.Rat).Neg(v), nil
	case c == '(':
		p.pos++
		v, err := p.expr(depth + 1)
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, fmt.Errorf("%w: missing ')'", ErrMalformed)
		}
		p.pos++
		return v, nil
	case c >= '0' && c <= '9':
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		v, ok := new(big.Rat).SetString(p.src[start:p.pos])
		if !ok {
			return nil, fmt.Errorf("%w: bad number %q", ErrMalformed, p.src[start:p.pos])
		}
		return v, nil
	case c == 0:
		return nil, fmt.Errorf("%w: unexpected end of input", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: unexpected %q", ErrMalformed, c)
	}
}
