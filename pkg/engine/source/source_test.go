package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/grafana/tabular/pkg/engine/internal/arrowtest"
	enginerrors "github.com/grafana/tabular/pkg/engine/internal/errors"
	"github.com/grafana/tabular/pkg/engine/schema"
)

var abSchema = schema.MustNew(
	schema.Field{Name: "a", Type: schema.Int},
	schema.Field{Name: "b", Type: schema.Int},
)

func writeCSV(t *testing.T, header string, rows int) string {
	t.Helper()

	var sb strings.Builder
	sb.WriteString(header + "\n")
	for i := range rows {
		fmt.Fprintf(&sb, "%d,%d\n", i, i+1)
	}

	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

// readAll drains r and returns the row count of every batch.
func readAll(t *testing.T, r RecordReader, fn func(rec arrow.Record)) []int64 {
	t.Helper()

	var sizes []int64
	for {
		rec, err := r.Read(t.Context())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, rec.NumRows())
		if fn != nil {
			fn(rec)
		}
		rec.Release()
	}
	return sizes
}

func TestCSV_Batching(t *testing.T) {
	for _, tt := range []struct {
		rows, batchSize int
		expect          []int64
	}{
		{rows: 10, batchSize: 3, expect: []int64{3, 3, 3, 1}},
		{rows: 9, batchSize: 3, expect: []int64{3, 3, 3}},
		{rows: 2, batchSize: 5, expect: []int64{2}},
		{rows: 1000, batchSize: 1000, expect: []int64{1000}},
		{rows: 0, batchSize: 4, expect: nil},
	} {
		t.Run(fmt.Sprintf("rows=%d,batch=%d", tt.rows, tt.batchSize), func(t *testing.T) {
			alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
			defer alloc.AssertSize(t, 0)

			src := NewCSV(writeCSV(t, "a,b", tt.rows), abSchema, WithBatchSize(tt.batchSize), WithAllocator(alloc))
			r, err := src.Load(t.Context(), nil)
			require.NoError(t, err)
			defer r.Close()

			require.Equal(t, tt.expect, readAll(t, r, nil))
		})
	}
}

func TestCSV_Projection(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	src := NewCSV(writeCSV(t, "a,b", 5), abSchema, WithAllocator(alloc))
	require.Equal(t, "a:int,b:int", src.Schema().String())

	r, err := src.Load(t.Context(), []string{"b", "a"})
	require.NoError(t, err)
	defer r.Close()

	readAll(t, r, func(rec arrow.Record) {
		require.EqualValues(t, 2, rec.NumCols())
		require.Equal(t, "b", rec.ColumnName(0))
		require.Equal(t, "a", rec.ColumnName(1))
		require.Equal(t, []int64{1, 2, 3, 4, 5}, arrowtest.Int64s(rec.Column(0)))
		require.Equal(t, []int64{0, 1, 2, 3, 4}, arrowtest.Int64s(rec.Column(1)))
	})

	_, err = src.Load(t.Context(), []string{"c"})
	require.ErrorIs(t, err, enginerrors.ErrFieldNotFound)
}

func TestCSV_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		src := NewCSV(filepath.Join(t.TempDir(), "missing.csv"), abSchema)
		_, err := src.Load(t.Context(), nil)
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("header does not match schema", func(t *testing.T) {
		src := NewCSV(writeCSV(t, "b,a", 3), abSchema)
		r, err := src.Load(t.Context(), nil)
		require.NoError(t, err)
		defer r.Close()

		_, err = r.Read(t.Context())
		require.ErrorIs(t, err, enginerrors.ErrSchemaMismatch)
	})

	t.Run("header only, not matching schema", func(t *testing.T) {
		r, err := NewCSV(writeCSV(t, "x,y", 0), abSchema).Load(t.Context(), nil)
		require.NoError(t, err)
		defer r.Close()

		_, err = r.Read(t.Context())
		require.ErrorIs(t, err, enginerrors.ErrSchemaMismatch)
		require.ErrorContains(t, err, "header of ")
	})

	t.Run("header only", func(t *testing.T) {
		r, err := NewCSV(writeCSV(t, "a,b", 0), abSchema).Load(t.Context(), nil)
		require.NoError(t, err)
		defer r.Close()

		_, err = r.Read(t.Context())
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("unparsable value", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.csv")
		require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\nx,3\n"), 0o644))

		r, err := NewCSV(path, abSchema).Load(t.Context(), nil)
		require.NoError(t, err)
		defer r.Close()

		_, err = r.Read(t.Context())
		require.Error(t, err)
	})

	t.Run("canceled context", func(t *testing.T) {
		r, err := NewCSV(writeCSV(t, "a,b", 3), abSchema).Load(t.Context(), nil)
		require.NoError(t, err)
		defer r.Close()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		_, err = r.Read(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestCSV_CloseEarly(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	r, err := NewCSV(writeCSV(t, "a,b", 10), abSchema, WithBatchSize(2), WithAllocator(alloc)).Load(t.Context(), nil)
	require.NoError(t, err)

	rec, err := r.Read(t.Context())
	require.NoError(t, err)
	rec.Release()

	require.NoError(t, r.Close())
	require.NoError(t, r.Close(), "closing twice must be safe")

	_, err = r.Read(t.Context())
	require.ErrorIs(t, err, io.EOF)
}

func TestMemory_Batching(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	rows := make(arrowtest.Rows, 0, 7)
	for i := range 7 {
		rows = append(rows, map[string]any{"a": i, "b": i * 10})
	}
	rec := arrowtest.Record(alloc, abSchema, rows)
	defer rec.Release()

	src, err := NewMemory("mem", abSchema, 3, rec)
	require.NoError(t, err)
	defer src.Release()

	r, err := src.Load(t.Context(), []string{"b"})
	require.NoError(t, err)
	defer r.Close()

	var values []int64
	sizes := readAll(t, r, func(rec arrow.Record) {
		require.EqualValues(t, 1, rec.NumCols())
		values = append(values, arrowtest.Int64s(rec.Column(0))...)
	})
	require.Equal(t, []int64{3, 3, 1}, sizes)
	require.Equal(t, []int64{0, 10, 20, 30, 40, 50, 60}, values)
}

func TestMemory_SchemaMismatch(t *testing.T) {
	other := schema.MustNew(schema.Field{Name: "a", Type: schema.Bool})
	rec := arrowtest.Record(memory.DefaultAllocator, other, arrowtest.Rows{{"a": true}})
	defer rec.Release()

	_, err := NewMemory("mem", abSchema, 0, rec)
	require.ErrorIs(t, err, enginerrors.ErrSchemaMismatch)
	require.ErrorContains(t, err, "record 0 has schema a:bool, expected a:int,b:int")

	t.Run("unsupported column type", func(t *testing.T) {
		sb := array.NewStringBuilder(memory.DefaultAllocator)
		defer sb.Release()
		sb.Append("x")
		col := sb.NewArray()
		defer col.Release()

		as := arrow.NewSchema([]arrow.Field{{Name: "a", Type: arrow.BinaryTypes.String}}, nil)
		rec := array.NewRecord(as, []arrow.Array{col}, 1)
		defer rec.Release()

		_, err := NewMemory("mem", abSchema, 0, rec)
		require.ErrorIs(t, err, enginerrors.ErrSchemaMismatch)
		require.ErrorContains(t, err, "record 0: ")
	})
}

func TestGenerator(t *testing.T) {
	gen := NewGenerator("gen", abSchema, 25, 10, func(i int) []any {
		return []any{int64(i), int64(i + 1)}
	})

	r, err := gen.Load(t.Context(), []string{"b"})
	require.NoError(t, err)
	defer r.Close()

	var last int64
	sizes := readAll(t, r, func(rec arrow.Record) {
		values := arrowtest.Int64s(rec.Column(0))
		last = values[len(values)-1]
	})
	require.Equal(t, []int64{10, 10, 5}, sizes)
	require.EqualValues(t, 25, last)

	bad := NewGenerator("bad", abSchema, 1, 1, func(int) []any { return []any{true, int64(1)} })
	r, err = bad.Load(t.Context(), nil)
	require.NoError(t, err)
	_, err = r.Read(t.Context())
	require.ErrorIs(t, err, enginerrors.ErrSchemaMismatch)
}
