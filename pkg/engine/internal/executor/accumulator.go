package executor

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/grafana/tabular/pkg/engine/internal/errors"
	"github.com/grafana/tabular/pkg/engine/internal/types"
	"github.com/grafana/tabular/pkg/engine/schema"
)

// accumulator folds the values of one group into a single value.
type accumulator interface {
	// Accumulate adds row i of arr to the accumulated value.
	Accumulate(arr arrow.Array, i int) error
	// Finalize appends the accumulated value to b.
	Finalize(b array.Builder) error
}

// newAccumulator returns an empty accumulator of kind op for values of type
// dt. It returns an error wrapping [errors.ErrType] if op cannot aggregate
// values of type dt.
func newAccumulator(op types.AggregationType, dt schema.DataType) (accumulator, error) {
	switch op {
	case types.AggregationTypeSum:
		if dt == schema.Int {
			return &sumAccumulator{}, nil
		}
	case types.AggregationTypeMin, types.AggregationTypeMax:
		if dt == schema.Int || dt == schema.Bool {
			return &minMaxAccumulator{dt: dt, max: op == types.AggregationTypeMax}, nil
		}
	case types.AggregationTypeAvg:
		if dt == schema.Int {
			return &avgAccumulator{}, nil
		}
	case types.AggregationTypeCount:
		return &countAccumulator{}, nil
	default:
		return nil, fmt.Errorf("%w: aggregation %s", errors.ErrUnsupportedExpr, op)
	}
	return nil, fmt.Errorf("%w: %s does not accept %s values", errors.ErrType, op, dt)
}

func int64Value(arr arrow.Array, i int) (int64, error) {
	ints, ok := arr.(*array.Int64)
	if !ok {
		return 0, fmt.Errorf("%w: expected int column, got %s", errors.ErrType, arr.DataType())
	}
	return ints.Value(i), nil
}

func appendInt64(b array.Builder, v int64) error {
	ib, ok := b.(*array.Int64Builder)
	if !ok {
		return fmt.Errorf("%w: expected int builder, got %T", errors.ErrInvariant, b)
	}
	ib.Append(v)
	return nil
}

type sumAccumulator struct {
	sum int64
}

func (a *sumAccumulator) Accumulate(arr arrow.Array, i int) error {
	v, err := int64Value(arr, i)
	if err != nil {
		return err
	}
	a.sum += v
	return nil
}

func (a *sumAccumulator) Finalize(b array.Builder) error { return appendInt64(b, a.sum) }

// minMaxAccumulator keeps the smallest or largest value seen. Booleans
// order false before true.
type minMaxAccumulator struct {
	dt  schema.DataType
	max bool

	seen  bool
	value int64
}

func (a *minMaxAccumulator) Accumulate(arr arrow.Array, i int) error {
	var v int64
	switch arr := arr.(type) {
	case *array.Int64:
		v = arr.Value(i)
	case *array.Boolean:
		if arr.Value(i) {
			v = 1
		}
	default:
		return fmt.Errorf("%w: cannot compare %s values", errors.ErrType, arr.DataType())
	}

	switch {
	case !a.seen:
		a.value, a.seen = v, true
	case a.max && v > a.value:
		a.value = v
	case !a.max && v < a.value:
		a.value = v
	}
	return nil
}

func (a *minMaxAccumulator) Finalize(b array.Builder) error {
	if !a.seen {
		b.AppendNull()
		return nil
	}
	if a.dt == schema.Bool {
		bb, ok := b.(*array.BooleanBuilder)
		if !ok {
			return fmt.Errorf("%w: expected bool builder, got %T", errors.ErrInvariant, b)
		}
		bb.Append(a.value == 1)
		return nil
	}
	return appendInt64(b, a.value)
}

type avgAccumulator struct {
	total int64
	count int64
}

func (a *avgAccumulator) Accumulate(arr arrow.Array, i int) error {
	v, err := int64Value(arr, i)
	if err != nil {
		return err
	}
	a.total += v
	a.count++
	return nil
}

// Finalize appends the truncated mean.
func (a *avgAccumulator) Finalize(b array.Builder) error {
	if a.count == 0 {
		b.AppendNull()
		return nil
	}
	return appendInt64(b, a.total/a.count)
}

type countAccumulator struct {
	count int64
}

func (a *countAccumulator) Accumulate(_ arrow.Array, _ int) error {
	a.count++
	return nil
}

func (a *countAccumulator) Finalize(b array.Builder) error { return appendInt64(b, a.count) }
