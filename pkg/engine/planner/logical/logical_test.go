package logical

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grafana/tabular/pkg/engine/internal/errors"
	"github.com/grafana/tabular/pkg/engine/internal/types"
	"github.com/grafana/tabular/pkg/engine/schema"
	"github.com/grafana/tabular/pkg/engine/source"
)

func testScan(t *testing.T, projection ...string) *Scan {
	t.Helper()

	s := schema.MustNew(
		schema.Field{Name: "a", Type: schema.Int},
		schema.Field{Name: "b", Type: schema.Int},
		schema.Field{Name: "ok", Type: schema.Bool},
	)
	src, err := source.NewMemory("users", s, 0)
	require.NoError(t, err)
	return NewScan(src, projection...)
}

func TestScan_Schema(t *testing.T) {
	s, err := testScan(t).Schema()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "ok"}, s.FieldNames())

	s, err = testScan(t, "ok", "a").Schema()
	require.NoError(t, err)
	require.Equal(t, "ok:bool,a:int", s.String())

	_, err = testScan(t, "nope").Schema()
	require.ErrorIs(t, err, errors.ErrFieldNotFound)
}

func TestExpr_ToField(t *testing.T) {
	scan := testScan(t)

	for _, tt := range []struct {
		expr   Expr
		expect schema.Field
	}{
		{expr: Col("a"), expect: schema.Field{Name: "a", Type: schema.Int}},
		{expr: Col("ok"), expect: schema.Field{Name: "ok", Type: schema.Bool}},
		{expr: Lit(42), expect: schema.Field{Name: "42", Type: schema.Int}},
		{expr: Add(Col("a"), Col("b")), expect: schema.Field{Name: "a + b", Type: schema.Int}},
		{expr: Mul(Add(Col("a"), Lit(1)), Col("b")), expect: schema.Field{Name: "(a + 1) * b", Type: schema.Int}},
		// Math operations propagate the type of their left operand.
		{expr: Add(Col("ok"), Col("a")), expect: schema.Field{Name: "ok + a", Type: schema.Bool}},
		{expr: Gt(Col("a"), Lit(3)), expect: schema.Field{Name: "a > 3", Type: schema.Bool}},
		{expr: And(Col("ok"), Col("ok")), expect: schema.Field{Name: "ok AND ok", Type: schema.Bool}},
		{expr: Sum(Col("a")), expect: schema.Field{Name: "SUM(a)", Type: schema.Int}},
		{expr: Max(Col("ok")), expect: schema.Field{Name: "MAX(ok)", Type: schema.Bool}},
		{expr: Count(Col("ok")), expect: schema.Field{Name: "COUNT(ok)", Type: schema.Int}},
		{expr: As(Avg(Col("b")), "avg_b"), expect: schema.Field{Name: "avg_b", Type: schema.Int}},
	} {
		t.Run(tt.expr.String(), func(t *testing.T) {
			f, err := tt.expr.ToField(scan)
			require.NoError(t, err)
			require.Equal(t, tt.expect, f)
		})
	}

	t.Run("unknown column", func(t *testing.T) {
		_, err := Add(Col("a"), Col("c")).ToField(scan)
		require.ErrorIs(t, err, errors.ErrFieldNotFound)
	})

	t.Run("invalid operation", func(t *testing.T) {
		_, err := (&BinOp{Left: Col("a"), Right: Col("b")}).ToField(scan)
		require.ErrorIs(t, err, errors.ErrUnsupportedExpr)

		_, err = (&AggregateExpr{Expr: Col("a")}).ToField(scan)
		require.ErrorIs(t, err, errors.ErrUnsupportedExpr)
	})
}

func TestExpr_String(t *testing.T) {
	require.Equal(t, "#a", Col("a").String())
	require.Equal(t, "#a + (#b * 2)", Add(Col("a"), Mul(Col("b"), Lit(2))).String())
	require.Equal(t, "(#a >= 1) AND (#b != 2)", And(Gte(Col("a"), Lit(1)), Neq(Col("b"), Lit(2))).String())
	require.Equal(t, "COUNT(#a)", Count(Col("a")).String())
	require.Equal(t, "SUM(#a) AS total", As(Sum(Col("a")), "total").String())
	require.Equal(t, "#a % 3", Mod(Col("a"), Lit(3)).String())
}

func TestPlan_Schema(t *testing.T) {
	t.Run("projection", func(t *testing.T) {
		p := NewBuilder(testScan(t)).Project(Col("b"), Sub(Col("a"), Col("b")), Lt(Col("a"), Lit(0))).Plan()
		s, err := p.Schema()
		require.NoError(t, err)
		require.Equal(t, "b:int,a - b:int,a < 0:bool", s.String())
	})

	t.Run("projection of duplicate names", func(t *testing.T) {
		p := NewBuilder(testScan(t)).Project(Col("a"), Col("a")).Plan()
		_, err := p.Schema()
		require.ErrorIs(t, err, errors.ErrDuplicateField)

		p = NewBuilder(testScan(t)).Project(Col("a"), As(Col("a"), "a2")).Plan()
		_, err = p.Schema()
		require.NoError(t, err)
	})

	t.Run("selection keeps the input schema", func(t *testing.T) {
		scan := testScan(t, "b", "a")
		p := NewBuilder(scan).Select(Gt(Col("a"), Lit(1))).Plan()

		want, err := scan.Schema()
		require.NoError(t, err)
		got, err := p.Schema()
		require.NoError(t, err)
		require.True(t, want.Equal(got))
	})

	t.Run("aggregate lists grouping fields first", func(t *testing.T) {
		p := NewBuilder(testScan(t)).Aggregate(
			[]Expr{Col("ok"), Col("a")},
			[]Expr{Count(Col("b")), Min(Col("b")), As(Sum(Col("b")), "total")},
		).Plan()

		s, err := p.Schema()
		require.NoError(t, err)
		require.Equal(t, []string{"ok", "a", "COUNT(b)", "MIN(b)", "total"}, s.FieldNames())
	})

	t.Run("unresolved column", func(t *testing.T) {
		p := NewBuilder(testScan(t, "a")).Project(Col("b")).Plan()
		_, err := p.Schema()
		require.ErrorIs(t, err, errors.ErrFieldNotFound)
	})
}

func TestFormat(t *testing.T) {
	p := NewBuilder(testScan(t, "a", "b")).
		Select(Gt(Col("a"), Lit(10))).
		Aggregate([]Expr{Col("a")}, []Expr{Sum(Col("b"))}).
		Project(Col("a"), Mul(Col("SUM(b)"), Lit(2))).
		Plan()

	expect := "Projection: #a, #SUM(b) * 2\n" +
		"\tAggregate: groupExprs=[#a], aggregateExprs=[SUM(#b)]\n" +
		"\t\tSelection: #a > 10\n" +
		"\t\t\tScan: users; projection=[a, b]\n"
	require.Equal(t, expect, Format(p))
	require.Equal(t, PlanTypeProjection, p.Type())
	require.Equal(t, "Aggregate", p.Children()[0].Type().String())
}

func TestBinaryOp_Families(t *testing.T) {
	for _, op := range []types.BinaryOp{types.BinaryOpAdd, types.BinaryOpSub, types.BinaryOpMul, types.BinaryOpDiv, types.BinaryOpMod} {
		require.True(t, op.IsMath(), op.String())
		require.False(t, op.IsBoolean(), op.String())
	}
	for _, op := range []types.BinaryOp{types.BinaryOpEq, types.BinaryOpNeq, types.BinaryOpGt, types.BinaryOpGte, types.BinaryOpLt, types.BinaryOpLte} {
		require.True(t, op.IsComparison(), op.String())
		require.True(t, op.IsBoolean(), op.String())
	}
	require.True(t, types.BinaryOpAnd.IsLogical())
	require.False(t, types.BinaryOpInvalid.IsMath() || types.BinaryOpInvalid.IsBoolean())
	require.Equal(t, "BinaryOp(99)", types.BinaryOp(99).String())
}
