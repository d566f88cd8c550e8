package physical

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/grafana/tabular/pkg/engine/internal/errors"
	"github.com/grafana/tabular/pkg/engine/internal/types"
	"github.com/grafana/tabular/pkg/engine/planner/logical"
	"github.com/grafana/tabular/pkg/engine/schema"
	"github.com/grafana/tabular/pkg/engine/source"
)

var testSchema = schema.MustNew(
	schema.Field{Name: "a", Type: schema.Int},
	schema.Field{Name: "b", Type: schema.Int},
	schema.Field{Name: "ok", Type: schema.Bool},
)

func testSource(t *testing.T) source.Source {
	t.Helper()
	src, err := source.NewMemory("users", testSchema, 0)
	require.NoError(t, err)
	return src
}

func TestPlanner_Scan(t *testing.T) {
	src := testSource(t)
	node, err := NewPlanner(nil).Build(logical.NewScan(src, "ok", "a"))
	require.NoError(t, err)

	scan, ok := node.(*Scan)
	require.True(t, ok)
	require.Same(t, src, scan.Source)
	require.Equal(t, []string{"ok", "a"}, scan.Projection)
	require.Equal(t, "ok:bool,a:int", scan.Schema().String())
	require.Empty(t, scan.Children())

	t.Run("empty projection scans all fields", func(t *testing.T) {
		node, err := NewPlanner(nil).Build(logical.NewScan(src))
		require.NoError(t, err)
		require.True(t, node.(*Scan).Schema().Equal(testSchema))
	})
}

func TestPlanner_Projection(t *testing.T) {
	lp := logical.NewBuilder(logical.NewScan(testSource(t), "b", "a")).
		Project(logical.Col("a"), logical.Add(logical.Col("a"), logical.Lit(1)), logical.Gt(logical.Col("b"), logical.Col("a"))).
		Plan()

	node, err := NewPlanner(nil).Build(lp)
	require.NoError(t, err)

	proj, ok := node.(*Projection)
	require.True(t, ok)
	require.Equal(t, "a:int,a + 1:int,b > a:bool", proj.Schema().String())

	// Columns resolve against the scan's projection, not the source schema.
	expect := []Expression{
		&ColumnExpr{Index: 1, Name: "a"},
		&BinaryExpr{Left: &ColumnExpr{Index: 1, Name: "a"}, Right: NewLiteral(1), Op: types.BinaryOpAdd},
		&BinaryExpr{Left: &ColumnExpr{Index: 0, Name: "b"}, Right: &ColumnExpr{Index: 1, Name: "a"}, Op: types.BinaryOpGt},
	}
	if diff := cmp.Diff(expect, proj.Columns); diff != "" {
		t.Fatalf("unexpected columns (-want +got):\n%s", diff)
	}

	logicalSchema, err := lp.Schema()
	require.NoError(t, err)
	require.True(t, logicalSchema.Equal(proj.Schema()))
}

func TestPlanner_Selection(t *testing.T) {
	lp := logical.NewBuilder(logical.NewScan(testSource(t))).
		Select(logical.And(logical.Col("ok"), logical.Lt(logical.Col("b"), logical.Lit(5)))).
		Plan()

	node, err := NewPlanner(nil).Build(lp)
	require.NoError(t, err)

	sel, ok := node.(*Selection)
	require.True(t, ok)
	require.True(t, sel.Schema().Equal(testSchema))
	require.Equal(t, "AND(#2(ok), LT(#1(b), 5))", sel.Predicate.String())
}

func TestPlanner_Aggregate(t *testing.T) {
	lp := logical.NewBuilder(logical.NewScan(testSource(t))).
		Aggregate(
			[]logical.Expr{logical.Col("ok")},
			[]logical.Expr{logical.Sum(logical.Col("a")), logical.As(logical.Count(logical.Col("b")), "n")},
		).
		Plan()

	node, err := NewPlanner(nil).Build(lp)
	require.NoError(t, err)

	agg, ok := node.(*Aggregate)
	require.True(t, ok)
	require.Equal(t, "ok:bool,SUM(a):int,n:int", agg.Schema().String())

	expect := []*AggregateExpr{
		{Op: types.AggregationTypeSum, Expr: &ColumnExpr{Index: 0, Name: "a"}},
		{Op: types.AggregationTypeCount, Expr: &ColumnExpr{Index: 1, Name: "b"}},
	}
	if diff := cmp.Diff(expect, agg.Aggregations); diff != "" {
		t.Fatalf("unexpected aggregations (-want +got):\n%s", diff)
	}
	require.Equal(t, []Expression{&ColumnExpr{Index: 2, Name: "ok"}}, agg.GroupBy)
}

type unknownPlan struct{ logical.Plan }

type unknownExpr struct{ logical.Expr }

func TestPlanner_Errors(t *testing.T) {
	scan := logical.NewScan(testSource(t))

	for _, tt := range []struct {
		name   string
		plan   logical.Plan
		expect error
	}{
		{
			name:   "unknown plan",
			plan:   unknownPlan{scan},
			expect: errors.ErrUnsupportedPlan,
		},
		{
			name:   "nil plan",
			plan:   nil,
			expect: errors.ErrUnsupportedPlan,
		},
		{
			name:   "unknown expression",
			plan:   logical.NewBuilder(scan).Project(unknownExpr{logical.Col("a")}).Plan(),
			expect: errors.ErrUnsupportedExpr,
		},
		{
			name:   "unresolved column in projection",
			plan:   logical.NewBuilder(scan).Project(logical.Add(logical.Col("a"), logical.Col("c"))).Plan(),
			expect: errors.ErrUnresolvedColumn,
		},
		{
			name:   "unresolved column in selection",
			plan:   logical.NewBuilder(scan).Select(logical.Eq(logical.Col("A"), logical.Lit(1))).Plan(),
			expect: errors.ErrUnresolvedColumn,
		},
		{
			name:   "unresolved column below projection",
			plan:   logical.NewBuilder(scan).Project(logical.Col("a")).Select(logical.Gt(logical.Col("b"), logical.Lit(0))).Plan(),
			expect: errors.ErrUnresolvedColumn,
		},
		{
			name:   "unknown scan field",
			plan:   logical.NewScan(testSource(t), "c"),
			expect: errors.ErrFieldNotFound,
		},
		{
			name:   "aggregation outside of aggregate",
			plan:   logical.NewBuilder(scan).Project(logical.Sum(logical.Col("a"))).Plan(),
			expect: errors.ErrUnsupportedExpr,
		},
		{
			name:   "nested aggregation",
			plan:   logical.NewBuilder(scan).Aggregate(nil, []logical.Expr{logical.Sum(logical.Count(logical.Col("a")))}).Plan(),
			expect: errors.ErrUnsupportedExpr,
		},
		{
			name:   "plain expression in aggregation list",
			plan:   logical.NewBuilder(scan).Aggregate(nil, []logical.Expr{logical.Col("a")}).Plan(),
			expect: errors.ErrUnsupportedExpr,
		},
		{
			name:   "invalid binary operation",
			plan:   logical.NewBuilder(scan).Select(&logical.BinOp{Left: logical.Col("a"), Right: logical.Lit(1)}).Plan(),
			expect: errors.ErrUnsupportedExpr,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlanner(nil).Build(tt.plan)
			require.ErrorIs(t, err, tt.expect)
		})
	}
}

func TestPrintAsTree(t *testing.T) {
	lp := logical.NewBuilder(logical.NewScan(testSource(t), "a", "b")).
		Select(logical.Gt(logical.Col("a"), logical.Lit(1))).
		Aggregate([]logical.Expr{logical.Col("a")}, []logical.Expr{logical.Max(logical.Col("b"))}).
		Project(logical.Col("MAX(b)")).
		Plan()

	node, err := NewPlanner(nil).Build(lp)
	require.NoError(t, err)

	expect := `
Projection
│   └── column[0] expr=#1(MAX(b)) type=ColumnExpression
└── Aggregate group_by=(#0(a))
    │   └── aggregation[0] expr=MAX(#1(b)) type=AggregateExpression
    └── Selection
        │   └── predicate expr=GT(#0(a), 1) type=BinaryExpression
        └── Scan source=users projection=(a, b)
`
	require.Equal(t, expect, "\n"+PrintAsTree(node))
	require.Equal(t, "Aggregate: groupExprs=[#0(a)], aggregateExprs=[MAX(#1(b))]", node.Children()[0].(*Aggregate).String())
}
