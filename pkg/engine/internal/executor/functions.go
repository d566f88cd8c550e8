package executor

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/grafana/tabular/pkg/engine/internal/errors"
	"github.com/grafana/tabular/pkg/engine/internal/types"
	"github.com/grafana/tabular/pkg/engine/schema"
)

// BinaryFunction computes a column from two columns of the same length.
type BinaryFunction interface {
	Evaluate(mem memory.Allocator, lhs, rhs ColumnVector) (ColumnVector, error)
}

type binaryFunctionRegistry struct {
	reg map[types.BinaryOp]map[schema.DataType]BinaryFunction
}

func (r *binaryFunctionRegistry) register(op types.BinaryOp, dt schema.DataType, f BinaryFunction) {
	if r.reg == nil {
		r.reg = make(map[types.BinaryOp]map[schema.DataType]BinaryFunction)
	}
	if _, ok := r.reg[op]; !ok {
		r.reg[op] = make(map[schema.DataType]BinaryFunction)
	}
	if _, ok := r.reg[op][dt]; ok {
		panic(fmt.Sprintf("duplicate binary function %s(%s,%s)", op, dt, dt))
	}
	r.reg[op][dt] = f
}

// GetForSignature returns the function implementing op for two operands of
// type dt.
func (r *binaryFunctionRegistry) GetForSignature(op types.BinaryOp, dt schema.DataType) (BinaryFunction, error) {
	f, ok := r.reg[op][dt]
	if !ok {
		return nil, fmt.Errorf("%w: no function %s(%s,%s)", errors.ErrType, op, dt, dt)
	}
	return f, nil
}

var binaryFunctions = &binaryFunctionRegistry{}

func init() {
	// Math functions
	binaryFunctions.register(types.BinaryOpAdd, schema.Int, intMath(func(a, b int64) (int64, error) { return a + b, nil }))
	binaryFunctions.register(types.BinaryOpSub, schema.Int, intMath(func(a, b int64) (int64, error) { return a - b, nil }))
	binaryFunctions.register(types.BinaryOpMul, schema.Int, intMath(func(a, b int64) (int64, error) { return a * b, nil }))
	binaryFunctions.register(types.BinaryOpDiv, schema.Int, intMath(func(a, b int64) (int64, error) {
		if b == 0 {
			return 0, fmt.Errorf("%w: %d / 0", errors.ErrDivisionByZero, a)
		}
		return a / b, nil
	}))
	binaryFunctions.register(types.BinaryOpMod, schema.Int, intMath(func(a, b int64) (int64, error) {
		if b == 0 {
			return 0, fmt.Errorf("%w: %d %% 0", errors.ErrDivisionByZero, a)
		}
		return a % b, nil
	}))

	// Comparison functions
	binaryFunctions.register(types.BinaryOpEq, schema.Int, intCompare(func(a, b int64) bool { return a == b }))
	binaryFunctions.register(types.BinaryOpNeq, schema.Int, intCompare(func(a, b int64) bool { return a != b }))
	binaryFunctions.register(types.BinaryOpGt, schema.Int, intCompare(func(a, b int64) bool { return a > b }))
	binaryFunctions.register(types.BinaryOpGte, schema.Int, intCompare(func(a, b int64) bool { return a >= b }))
	binaryFunctions.register(types.BinaryOpLt, schema.Int, intCompare(func(a, b int64) bool { return a < b }))
	binaryFunctions.register(types.BinaryOpLte, schema.Int, intCompare(func(a, b int64) bool { return a <= b }))

	// Logical functions
	binaryFunctions.register(types.BinaryOpAnd, schema.Bool, boolLogic(func(a, b bool) bool { return a && b }))
	binaryFunctions.register(types.BinaryOpOr, schema.Bool, boolLogic(func(a, b bool) bool { return a || b }))
	binaryFunctions.register(types.BinaryOpAnd, schema.Int, intLogic(func(a, b bool) bool { return a && b }))
	binaryFunctions.register(types.BinaryOpOr, schema.Int, intLogic(func(a, b bool) bool { return a || b }))
}

// builder is the subset of the Arrow builders of type O used by binaryLoop.
type builder[O any] interface {
	Append(O)
	AppendNull()
	Reserve(int)
	NewArray() arrow.Array
	Release()
}

type valueArray[T any] interface {
	arrow.Array
	Value(i int) T
}

// binaryLoop applies fn to each pair of rows of lhs and rhs and appends the
// results to b. A null on either side produces a null.
func binaryLoop[L, R, O any](lhs, rhs arrow.Array, b builder[O], fn func(L, R) (O, error)) error {
	left, ok := lhs.(valueArray[L])
	if !ok {
		return fmt.Errorf("%w: unexpected left operand %T", errors.ErrInvariant, lhs)
	}
	right, ok := rhs.(valueArray[R])
	if !ok {
		return fmt.Errorf("%w: unexpected right operand %T", errors.ErrInvariant, rhs)
	}

	b.Reserve(left.Len())
	for i := range left.Len() {
		if left.IsNull(i) || right.IsNull(i) {
			b.AppendNull()
			continue
		}
		res, err := fn(left.Value(i), right.Value(i))
		if err != nil {
			return err
		}
		b.Append(res)
	}
	return nil
}

type binaryFunc[L, R, O any] struct {
	out        schema.DataType
	newBuilder func(memory.Allocator) builder[O]
	eval       func(L, R) (O, error)
}

// Evaluate implements BinaryFunction.
func (f *binaryFunc[L, R, O]) Evaluate(mem memory.Allocator, lhs, rhs ColumnVector) (ColumnVector, error) {
	b := f.newBuilder(mem)
	defer b.Release()

	if err := binaryLoop(lhs.ToArray(), rhs.ToArray(), b, f.eval); err != nil {
		return nil, err
	}
	return &Array{array: b.NewArray(), dt: f.out}, nil
}

func newInt64Builder(mem memory.Allocator) builder[int64] { return array.NewInt64Builder(mem) }

func newBooleanBuilder(mem memory.Allocator) builder[bool] { return array.NewBooleanBuilder(mem) }

func intMath(fn func(a, b int64) (int64, error)) BinaryFunction {
	return &binaryFunc[int64, int64, int64]{out: schema.Int, newBuilder: newInt64Builder, eval: fn}
}

func intCompare(fn func(a, b int64) bool) BinaryFunction {
	return &binaryFunc[int64, int64, bool]{
		out:        schema.Bool,
		newBuilder: newBooleanBuilder,
		eval:       func(a, b int64) (bool, error) { return fn(a, b), nil },
	}
}

func boolLogic(fn func(a, b bool) bool) BinaryFunction {
	return &binaryFunc[bool, bool, bool]{
		out:        schema.Bool,
		newBuilder: newBooleanBuilder,
		eval:       func(a, b bool) (bool, error) { return fn(a, b), nil },
	}
}

// intLogic treats integer operands as truth values. Only 0 and 1 are valid.
func intLogic(fn func(a, b bool) bool) BinaryFunction {
	return &binaryFunc[int64, int64, bool]{
		out:        schema.Bool,
		newBuilder: newBooleanBuilder,
		eval: func(a, b int64) (bool, error) {
			l, err := intTruth(a)
			if err != nil {
				return false, err
			}
			r, err := intTruth(b)
			if err != nil {
				return false, err
			}
			return fn(l, r), nil
		},
	}
}

func intTruth(v int64) (bool, error) {
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: %d is not a truth value", errors.ErrType, v)
	}
}
