package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grafana/tabular/pkg/engine/planner/logical"
)

func TestParseExpr(t *testing.T) {
	for _, tt := range []struct {
		input  string
		expect string
	}{
		{input: "42", expect: "42"},
		{input: "a", expect: "#a"},
		{input: "-5", expect: "-5"},
		{input: "-a", expect: "0 - #a"},
		{input: "a + b * 2", expect: "#a + (#b * 2)"},
		{input: "(a + b) * 2", expect: "(#a + #b) * 2"},
		{input: "a - b - c", expect: "(#a - #b) - #c"},
		{input: "a / b % 3", expect: "(#a / #b) % 3"},
		{input: "a > 1 and b <= 2 or ok", expect: "((#a > 1) AND (#b <= 2)) OR #ok"},
		{input: "a == 1 || a <> 2 && b != 3", expect: "(#a = 1) OR ((#a != 2) AND (#b != 3))"},
		{input: "a >= b + 1", expect: "#a >= (#b + 1)"},
		{input: "sum(a)", expect: "SUM(#a)"},
		{input: "COUNT(a + 1)", expect: "COUNT(#a + 1)"},
		{input: "avg(a) as mean", expect: "AVG(#a) AS mean"},
		{input: "a_1 AS x", expect: "#a_1 AS x"},
	} {
		t.Run(tt.input, func(t *testing.T) {
			expr, err := parseExpr(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.expect, expr.String())
		})
	}
}

func TestParseExpr_Errors(t *testing.T) {
	for _, tt := range []struct {
		input  string
		expect string
	}{
		{input: "", expect: "unexpected end of input at position 0"},
		{input: "a +", expect: "unexpected end of input at position 3"},
		{input: "(a", expect: "unexpected end of input"},
		{input: "a b", expect: `unexpected "b" at position 2`},
		{input: "a # b", expect: "unexpected character '#' at position 2"},
		{input: "median(a)", expect: `unknown function "median"`},
		{input: "a as 1", expect: `unexpected "1"`},
		{input: "a, b", expect: `unexpected ","`},
		{input: "99999999999999999999", expect: "invalid integer"},
	} {
		t.Run(tt.input, func(t *testing.T) {
			_, err := parseExpr(tt.input)
			require.ErrorContains(t, err, tt.expect)
		})
	}
}

func TestParseExprs(t *testing.T) {
	exprs, err := parseExprs("a, b + 1 as c, sum(b)")
	require.NoError(t, err)

	require.Len(t, exprs, 3)
	require.Equal(t, logical.Col("a"), exprs[0])
	require.Equal(t, logical.As(logical.Add(logical.Col("b"), logical.Lit(1)), "c"), exprs[1])
	require.Equal(t, logical.Sum(logical.Col("b")), exprs[2])

	_, err = parseExprs("a,")
	require.ErrorContains(t, err, "unexpected end of input")
}
