// Package arrowtest provides helpers to build and inspect Arrow records in
// tests using plain Go values.
package arrowtest

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/grafana/tabular/pkg/engine/schema"
)

// Rows is a set of rows, each mapping a column name to an int64 or bool value.
type Rows []map[string]any

// Record builds a record with schema s out of rows. It panics when a value
// does not match the type of its field, as it is only meant for tests.
func Record(mem memory.Allocator, s schema.Schema, rows Rows) arrow.Record {
	rb := array.NewRecordBuilder(mem, s.Arrow())
	defer rb.Release()

	for _, row := range rows {
		for i, f := range s.Fields() {
			switch f.Type {
			case schema.Int:
				rb.Field(i).(*array.Int64Builder).Append(toInt64(row[f.Name]))
			case schema.Bool:
				rb.Field(i).(*array.BooleanBuilder).Append(row[f.Name].(bool))
			default:
				panic(fmt.Sprintf("arrowtest: unsupported type %s", f.Type))
			}
		}
	}
	return rb.NewRecord()
}

func toInt64(v any) int64 {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	default:
		panic(fmt.Sprintf("arrowtest: unsupported int value %T", v))
	}
}

// RecordRows converts a record back into rows. Int columns are returned as
// int64 values.
func RecordRows(rec arrow.Record) (Rows, error) {
	rows := make(Rows, rec.NumRows())
	for i := range rows {
		rows[i] = make(map[string]any, rec.NumCols())
	}

	for j, col := range rec.Columns() {
		name := rec.ColumnName(j)
		for i := range rows {
			switch col := col.(type) {
			case *array.Int64:
				rows[i][name] = col.Value(i)
			case *array.Boolean:
				rows[i][name] = col.Value(i)
			default:
				return nil, fmt.Errorf("unsupported column type %s", col.DataType())
			}
		}
	}
	return rows, nil
}

// Int64s returns the values of an int64 column.
func Int64s(col arrow.Array) []int64 {
	return col.(*array.Int64).Int64Values()
}

// Bools returns the values of a boolean column.
func Bools(col arrow.Array) []bool {
	arr := col.(*array.Boolean)
	out := make([]bool, arr.Len())
	for i := range out {
		out[i] = arr.Value(i)
	}
	return out
}

// Int64Array builds an int64 array out of values.
func Int64Array(mem memory.Allocator, values ...int64) *array.Int64 {
	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewInt64Array()
}

// BoolArray builds a boolean array out of values.
func BoolArray(mem memory.Allocator, values ...bool) *array.Boolean {
	b := array.NewBooleanBuilder(mem)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewBooleanArray()
}
