package executor

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/grafana/tabular/pkg/engine/internal/arrowtest"
	"github.com/grafana/tabular/pkg/engine/internal/errors"
	"github.com/grafana/tabular/pkg/engine/planner/logical"
)

func TestProjection(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	src := memorySource(t, alloc, 2, arrowtest.Rows{
		{"a": 1, "b": 10, "ok": true},
		{"a": -2, "b": 20, "ok": false},
		{"a": 3, "b": -30, "ok": true},
	})
	defer src.Release()

	lp := logical.NewBuilder(logical.NewScan(src)).
		Project(
			logical.Col("ok"),
			logical.As(logical.Mul(logical.Col("a"), logical.Lit(2)), "double"),
			logical.Gt(logical.Col("b"), logical.Col("a")),
		).
		Plan()

	batches := collect(t, run(t, alloc, lp))
	require.Equal(t, []arrowtest.Rows{
		{
			{"ok": true, "double": int64(2), "b > a": true},
			{"ok": false, "double": int64(-4), "b > a": true},
		},
		{
			{"ok": true, "double": int64(6), "b > a": false},
		},
	}, batches)
}

func TestProjection_ColumnOrder(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	src := memorySource(t, alloc, 0, arrowtest.Rows{{"a": 1, "b": 2, "ok": true}})
	defer src.Release()

	lp := logical.NewBuilder(logical.NewScan(src)).Project(logical.Col("b"), logical.Col("a"), logical.Lit(7)).Plan()
	p := run(t, alloc, lp)
	defer p.Close()

	rec, err := p.Read(t.Context())
	require.NoError(t, err)
	defer rec.Release()

	require.EqualValues(t, 1, rec.NumRows())
	require.Equal(t, []string{"b", "a", "7"}, []string{rec.ColumnName(0), rec.ColumnName(1), rec.ColumnName(2)})
	require.Equal(t, []int64{2}, arrowtest.Int64s(rec.Column(0)))
	require.Equal(t, []int64{1}, arrowtest.Int64s(rec.Column(1)))
	require.Equal(t, []int64{7}, arrowtest.Int64s(rec.Column(2)))
}

func TestProjection_EvaluationError(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	src := memorySource(t, alloc, 1, arrowtest.Rows{
		{"a": 4, "b": 2, "ok": true},
		{"a": 4, "b": 0, "ok": true},
	})
	defer src.Release()

	lp := logical.NewBuilder(logical.NewScan(src)).Project(logical.Col("a"), logical.Div(logical.Col("a"), logical.Col("b"))).Plan()
	p := run(t, alloc, lp)
	defer p.Close()

	rec, err := p.Read(t.Context())
	require.NoError(t, err)
	require.Equal(t, []int64{2}, arrowtest.Int64s(rec.Column(1)))
	rec.Release()

	_, err = p.Read(t.Context())
	require.ErrorIs(t, err, errors.ErrDivisionByZero)
}
