package main

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/grafana/tabular/pkg/engine/planner/logical"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenIdent
	tokenInt
	tokenComma
	tokenLParen
	tokenRParen
	tokenOp
)

type token struct {
	typ   tokenType
	value string
	pos   int
}

func (t token) String() string {
	if t.typ == tokenEOF {
		return "end of input"
	}
	return strconv.Quote(t.value)
}

// twoCharOps are operators made of two characters. They are matched before
// single character operators.
var twoCharOps = []string{"==", "!=", "<>", ">=", "<=", "&&", "||"}

const oneCharOps = "+-*/%=<>"

func lex(input string) ([]token, error) {
	var tokens []token
	for i := 0; i < len(input); {
		c := rune(input[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == ',':
			tokens = append(tokens, token{typ: tokenComma, value: ",", pos: i})
			i++
		case c == '(':
			tokens = append(tokens, token{typ: tokenLParen, value: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{typ: tokenRParen, value: ")", pos: i})
			i++
		case unicode.IsDigit(c):
			j := i
			for j < len(input) && unicode.IsDigit(rune(input[j])) {
				j++
			}
			tokens = append(tokens, token{typ: tokenInt, value: input[i:j], pos: i})
			i = j
		case c == '_' || unicode.IsLetter(c):
			j := i
			for j < len(input) && (input[j] == '_' || unicode.IsLetter(rune(input[j])) || unicode.IsDigit(rune(input[j]))) {
				j++
			}
			tokens = append(tokens, token{typ: tokenIdent, value: input[i:j], pos: i})
			i = j
		default:
			op := ""
			for _, candidate := range twoCharOps {
				if strings.HasPrefix(input[i:], candidate) {
					op = candidate
					break
				}
			}
			if op == "" && strings.ContainsRune(oneCharOps, c) {
				op = string(c)
			}
			if op == "" {
				return nil, fmt.Errorf("unexpected character %q at position %d", c, i)
			}
			tokens = append(tokens, token{typ: tokenOp, value: op, pos: i})
			i += len(op)
		}
	}
	return append(tokens, token{typ: tokenEOF, pos: len(input)}), nil
}

// parser is a recursive descent parser for query expressions. From lowest
// to highest precedence:
//
//	or      = and { ("or" | "||") and }
//	and     = cmp { ("and" | "&&") cmp }
//	cmp     = add [ ("=" | "==" | "!=" | "<>" | ">" | ">=" | "<" | "<=") add ]
//	add     = mul { ("+" | "-") mul }
//	mul     = unary { ("*" | "/" | "%") unary }
//	unary   = "-" unary | primary
//	primary = int | ident | aggfn "(" or ")" | "(" or ")"
//
// A top-level expression may be followed by "as" and a name.
type parser struct {
	tokens []token
	pos    int
}

// parseExprs parses a comma separated list of expressions.
func parseExprs(input string) ([]logical.Expr, error) {
	p, err := newParser(input)
	if err != nil {
		return nil, err
	}

	var exprs []logical.Expr
	for {
		expr, err := p.parseNamed()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)

		if p.peek().typ != tokenComma {
			break
		}
		p.next()
	}
	if err := p.expect(tokenEOF); err != nil {
		return nil, err
	}
	return exprs, nil
}

// parseExpr parses a single expression.
func parseExpr(input string) (logical.Expr, error) {
	p, err := newParser(input)
	if err != nil {
		return nil, err
	}
	expr, err := p.parseNamed()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokenEOF); err != nil {
		return nil, err
	}
	return expr, nil
}

func newParser(input string) (*parser, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	return &parser{tokens: tokens}, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.typ != tokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(typ tokenType) error {
	if t := p.peek(); t.typ != typ {
		return p.unexpected(t)
	}
	p.next()
	return nil
}

func (p *parser) unexpected(t token) error {
	return fmt.Errorf("unexpected %s at position %d", t, t.pos)
}

// keyword reports whether the next token is the given case-insensitive
// keyword, consuming it if so.
func (p *parser) keyword(word string) bool {
	if t := p.peek(); t.typ == tokenIdent && strings.EqualFold(t.value, word) {
		p.next()
		return true
	}
	return false
}

// operator consumes the next token if it is one of ops.
func (p *parser) operator(ops ...string) (string, bool) {
	t := p.peek()
	if t.typ != tokenOp {
		return "", false
	}
	for _, op := range ops {
		if t.value == op {
			p.next()
			return op, true
		}
	}
	return "", false
}

func (p *parser) parseNamed() (logical.Expr, error) {
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.keyword("as") {
		return expr, nil
	}
	t := p.next()
	if t.typ != tokenIdent {
		return nil, p.unexpected(t)
	}
	return logical.As(expr, t.value), nil
}

func (p *parser) parseOr() (logical.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.operator("||"); !ok && !p.keyword("or") {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = logical.Or(left, right)
	}
}

func (p *parser) parseAnd() (logical.Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.operator("&&"); !ok && !p.keyword("and") {
			return left, nil
		}
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = logical.And(left, right)
	}
}

var comparisons = map[string]func(l, r logical.Expr) *logical.BinOp{
	"=":  logical.Eq,
	"==": logical.Eq,
	"!=": logical.Neq,
	"<>": logical.Neq,
	">":  logical.Gt,
	">=": logical.Gte,
	"<":  logical.Lt,
	"<=": logical.Lte,
}

func (p *parser) parseComparison() (logical.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	op, ok := p.operator("=", "==", "!=", "<>", ">", ">=", "<", "<=")
	if !ok {
		return left, nil
	}
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return comparisons[op](left, right), nil
}

func (p *parser) parseAdditive() (logical.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.operator("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		if op == "+" {
			left = logical.Add(left, right)
		} else {
			left = logical.Sub(left, right)
		}
	}
}

func (p *parser) parseMultiplicative() (logical.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.operator("*", "/", "%")
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		switch op {
		case "*":
			left = logical.Mul(left, right)
		case "/":
			left = logical.Div(left, right)
		default:
			left = logical.Mod(left, right)
		}
	}
}

func (p *parser) parseUnary() (logical.Expr, error) {
	if _, ok := p.operator("-"); !ok {
		return p.parsePrimary()
	}
	expr, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if lit, ok := expr.(*logical.Literal); ok {
		return logical.Lit(-lit.Value), nil
	}
	return logical.Sub(logical.Lit(0), expr), nil
}

var aggregations = map[string]func(logical.Expr) *logical.AggregateExpr{
	"sum":   logical.Sum,
	"min":   logical.Min,
	"max":   logical.Max,
	"avg":   logical.Avg,
	"count": logical.Count,
}

func (p *parser) parsePrimary() (logical.Expr, error) {
	t := p.next()
	switch t.typ {
	case tokenInt:
		v, err := strconv.ParseInt(t.value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %s at position %d: %w", t, t.pos, err)
		}
		return logical.Lit(v), nil

	case tokenIdent:
		if p.peek().typ != tokenLParen {
			return logical.Col(t.value), nil
		}
		fn, ok := aggregations[strings.ToLower(t.value)]
		if !ok {
			return nil, fmt.Errorf("unknown function %s at position %d", t, t.pos)
		}
		p.next()
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokenRParen); err != nil {
			return nil, err
		}
		return fn(arg), nil

	case tokenLParen:
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokenRParen); err != nil {
			return nil, err
		}
		return expr, nil

	default:
		return nil, p.unexpected(t)
	}
}
