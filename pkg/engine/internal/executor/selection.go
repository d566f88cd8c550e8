package executor

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/grafana/tabular/pkg/engine/internal/errors"
	"github.com/grafana/tabular/pkg/engine/planner/physical"
)

// NewSelectionPipeline returns a pipeline keeping the rows of each input
// batch for which the predicate of sel holds. Every input batch produces
// exactly one output batch, which may have no rows.
func NewSelectionPipeline(input Pipeline, sel *physical.Selection, evaluator *expressionEvaluator, mem memory.Allocator) *GenericPipeline {
	return newGenericPipeline(func(ctx context.Context, inputs []Pipeline) (arrow.Record, error) {
		if len(inputs) != 1 {
			return nil, fmt.Errorf("expected 1 input, got %d", len(inputs))
		}
		rec, err := inputs[0].Read(ctx)
		if err != nil {
			return nil, err
		}
		defer rec.Release()

		vec, err := evaluator.eval(sel.Predicate, rec)
		if err != nil {
			return nil, fmt.Errorf("evaluating predicate %s: %w", sel.Predicate, err)
		}
		defer vec.Release()

		include, err := truthFunc(vec.ToArray())
		if err != nil {
			return nil, fmt.Errorf("evaluating predicate %s: %w", sel.Predicate, err)
		}
		return filterBatch(mem, rec, include)
	}, input)
}

// truthFunc returns a function reporting whether row i of a predicate
// column holds. Null rows never hold.
func truthFunc(arr arrow.Array) (func(int) (bool, error), error) {
	switch arr := arr.(type) {
	case *array.Boolean:
		return func(i int) (bool, error) {
			return arr.IsValid(i) && arr.Value(i), nil
		}, nil
	case *array.Int64:
		return func(i int) (bool, error) {
			if arr.IsNull(i) {
				return false, nil
			}
			return intTruth(arr.Value(i))
		}, nil
	default:
		return nil, fmt.Errorf("%w: predicate must be bool, got %s", errors.ErrType, arr.DataType())
	}
}

// filterBatch copies the rows of rec for which include returns true into a
// new batch, keeping their order.
func filterBatch(mem memory.Allocator, rec arrow.Record, include func(int) (bool, error)) (arrow.Record, error) {
	fields := rec.Schema().Fields()

	builders := make([]array.Builder, len(fields))
	defer func() {
		for _, b := range builders {
			if b != nil {
				b.Release()
			}
		}
	}()

	additions := make([]func(int), len(fields))

	for i, field := range fields {
		switch field.Type.ID() {
		case arrow.BOOL:
			builder := array.NewBooleanBuilder(mem)
			builders[i] = builder
			src := rec.Column(i).(*array.Boolean)
			additions[i] = func(offset int) {
				if src.IsNull(offset) {
					builder.AppendNull()
					return
				}
				builder.Append(src.Value(offset))
			}

		case arrow.INT64:
			builder := array.NewInt64Builder(mem)
			builders[i] = builder
			src := rec.Column(i).(*array.Int64)
			additions[i] = func(offset int) {
				if src.IsNull(offset) {
					builder.AppendNull()
					return
				}
				builder.Append(src.Value(offset))
			}

		default:
			return nil, fmt.Errorf("%w: unsupported column type %s in selection", errors.ErrType, field.Type.Name())
		}
	}

	var rows int64
	for i := range int(rec.NumRows()) {
		ok, err := include(i)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for _, add := range additions {
			add(i)
		}
		rows++
	}

	arrays := make([]arrow.Array, len(builders))
	for i, b := range builders {
		arrays[i] = b.NewArray()
	}
	defer func() {
		for _, a := range arrays {
			a.Release()
		}
	}()

	return array.NewRecord(rec.Schema(), arrays, rows), nil
}
