package physical

import (
	"fmt"
	"strconv"

	"github.com/grafana/tabular/pkg/engine/internal/types"
)

// ExpressionType represents the type of expression in the physical plan.
type ExpressionType uint32

const (
	_ ExpressionType = iota // zero-value is an invalid type

	ExprTypeColumn
	ExprTypeLiteral
	ExprTypeBinary
	ExprTypeAggregate
)

// String returns the string representation of the [ExpressionType].
func (t ExpressionType) String() string {
	switch t {
	case ExprTypeColumn:
		return "ColumnExpression"
	case ExprTypeLiteral:
		return "LiteralExpression"
	case ExprTypeBinary:
		return "BinaryExpression"
	case ExprTypeAggregate:
		return "AggregateExpression"
	default:
		return fmt.Sprintf("ExpressionType(%d)", t)
	}
}

// Expression is the common interface for all expressions in a physical plan.
// Unlike logical expressions, physical expressions are bound to the
// positions of the columns of their input.
type Expression interface {
	fmt.Stringer
	Type() ExpressionType
	isExpr()
}

var (
	_ Expression = (*ColumnExpr)(nil)
	_ Expression = (*LiteralExpr)(nil)
	_ Expression = (*BinaryExpr)(nil)
	_ Expression = (*AggregateExpr)(nil)
)

// ColumnExpr references the column at position Index of the input batch.
// Name is kept for display only.
type ColumnExpr struct {
	Index int
	Name  string
}

func (*ColumnExpr) isExpr() {}

// Type implements [Expression].
func (*ColumnExpr) Type() ExpressionType { return ExprTypeColumn }

func (e *ColumnExpr) String() string {
	return fmt.Sprintf("#%d(%s)", e.Index, e.Name)
}

// LiteralExpr is a constant integer broadcast to every row of the input.
type LiteralExpr struct {
	Value int64
}

// NewLiteral returns a literal expression of v.
func NewLiteral(v int64) *LiteralExpr {
	return &LiteralExpr{Value: v}
}

func (*LiteralExpr) isExpr() {}

// Type implements [Expression].
func (*LiteralExpr) Type() ExpressionType { return ExprTypeLiteral }

func (e *LiteralExpr) String() string {
	return strconv.FormatInt(e.Value, 10)
}

// BinaryExpr applies Op to the rows of Left and Right.
type BinaryExpr struct {
	Left, Right Expression
	Op          types.BinaryOp
}

func (*BinaryExpr) isExpr() {}

// Type implements [Expression].
func (*BinaryExpr) Type() ExpressionType { return ExprTypeBinary }

func (e *BinaryExpr) String() string {
	return fmt.Sprintf("%s(%s, %s)", e.Op, e.Left, e.Right)
}

// AggregateExpr describes an aggregation of the values of Expr. It cannot be
// evaluated on a batch; the aggregate operator creates one accumulator of
// kind Op per group and feeds it the values of Expr.
type AggregateExpr struct {
	Op   types.AggregationType
	Expr Expression
}

func (*AggregateExpr) isExpr() {}

// Type implements [Expression].
func (*AggregateExpr) Type() ExpressionType { return ExprTypeAggregate }

func (e *AggregateExpr) String() string {
	return fmt.Sprintf("%s(%s)", e.Op, e.Expr)
}
