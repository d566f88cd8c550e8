package executor

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/grafana/tabular/pkg/engine/internal/errors"
	"github.com/grafana/tabular/pkg/engine/planner/physical"
	"github.com/grafana/tabular/pkg/engine/schema"
)

type expressionEvaluator struct {
	mem memory.Allocator
}

func newExpressionEvaluator(mem memory.Allocator) expressionEvaluator {
	return expressionEvaluator{mem: mem}
}

// eval evaluates expr against every row of input. The caller must release
// the returned vector.
func (e expressionEvaluator) eval(expr physical.Expression, input arrow.Record) (ColumnVector, error) {
	switch expr := expr.(type) {
	case *physical.LiteralExpr:
		return &Scalar{
			mem:   e.mem,
			value: expr.Value,
			rows:  input.NumRows(),
		}, nil

	case *physical.ColumnExpr:
		if expr.Index < 0 || int64(expr.Index) >= input.NumCols() {
			return nil, fmt.Errorf("%w: column %s out of range for batch with %d columns", errors.ErrInvariant, expr, input.NumCols())
		}
		arr := input.Column(expr.Index)
		dt := schema.FromArrowType(arr.DataType())
		if dt == schema.Invalid {
			return nil, fmt.Errorf("%w: column %s has unsupported type %s", errors.ErrType, expr, arr.DataType())
		}
		arr.Retain()
		return &Array{array: arr, dt: dt}, nil

	case *physical.BinaryExpr:
		lhs, err := e.eval(expr.Left, input)
		if err != nil {
			return nil, err
		}
		defer lhs.Release()

		rhs, err := e.eval(expr.Right, input)
		if err != nil {
			return nil, err
		}
		defer rhs.Release()

		if lhs.Len() != rhs.Len() {
			return nil, fmt.Errorf("%w: operands of %s have %d and %d rows", errors.ErrInvariant, expr.Op, lhs.Len(), rhs.Len())
		}
		// Functions only accept operands of the same type.
		if lhs.Type() != rhs.Type() {
			return nil, fmt.Errorf("%w: %v(%v,%v)", errors.ErrTypeMismatch, expr.Op, lhs.Type(), rhs.Type())
		}

		fn, err := binaryFunctions.GetForSignature(expr.Op, lhs.Type())
		if err != nil {
			return nil, fmt.Errorf("failed to lookup binary function for signature %v(%v,%v): %w", expr.Op, lhs.Type(), rhs.Type(), err)
		}
		return fn.Evaluate(e.mem, lhs, rhs)

	case *physical.AggregateExpr:
		return nil, fmt.Errorf("%w: aggregation %s cannot be evaluated row by row", errors.ErrUnsupportedExpr, expr)
	}

	return nil, fmt.Errorf("%w: %v", errors.ErrUnsupportedExpr, expr)
}

// ColumnVector represents columnar values from evaluated expressions.
type ColumnVector interface {
	// ToArray returns the Arrow array representation of the column vector.
	// The array is owned by the vector: callers must retain it if they keep
	// it past the call to Release.
	ToArray() arrow.Array
	// Type returns the data type of the column vector.
	Type() schema.DataType
	// Len returns the length of the vector
	Len() int64
	// Release decreases the reference count by 1 on underlying Arrow array
	Release()
}

// Scalar represents a single integer repeated any number of times.
type Scalar struct {
	mem   memory.Allocator
	value int64
	rows  int64

	arr arrow.Array // built on the first call to ToArray
}

var _ ColumnVector = (*Scalar)(nil)

// ToArray implements ColumnVector.
func (v *Scalar) ToArray() arrow.Array {
	if v.arr != nil {
		return v.arr
	}

	builder := array.NewInt64Builder(v.mem)
	defer builder.Release()

	builder.Reserve(int(v.rows))
	for range v.rows {
		builder.Append(v.value)
	}
	v.arr = builder.NewArray()
	return v.arr
}

// Type implements ColumnVector.
func (v *Scalar) Type() schema.DataType { return schema.Int }

// Len implements ColumnVector.
func (v *Scalar) Len() int64 { return v.rows }

// Release implements ColumnVector.
func (v *Scalar) Release() {
	if v.arr != nil {
		v.arr.Release()
		v.arr = nil
	}
}

// Array represents a column of data, stored as an [arrow.Array].
type Array struct {
	array arrow.Array
	dt    schema.DataType
}

var _ ColumnVector = (*Array)(nil)

// ToArray implements ColumnVector.
func (a *Array) ToArray() arrow.Array { return a.array }

// Type implements ColumnVector.
func (a *Array) Type() schema.DataType { return a.dt }

// Len implements ColumnVector.
func (a *Array) Len() int64 { return int64(a.array.Len()) }

// Release implements ColumnVector.
func (a *Array) Release() { a.array.Release() }
