package logical

import (
	"fmt"
	"strconv"

	"github.com/grafana/tabular/pkg/engine/internal/errors"
	"github.com/grafana/tabular/pkg/engine/internal/types"
	"github.com/grafana/tabular/pkg/engine/schema"
)

// Expr is an expression of the logical plan. An Expr is bound to a schema
// late: its output field is only known relative to the plan it is applied to.
type Expr interface {
	fmt.Stringer

	// ToField returns the field produced by evaluating the expression
	// against the rows of input.
	ToField(input Plan) (schema.Field, error)
}

var (
	_ Expr = (*ColumnRef)(nil)
	_ Expr = (*Literal)(nil)
	_ Expr = (*BinOp)(nil)
	_ Expr = (*AggregateExpr)(nil)
	_ Expr = (*Alias)(nil)
)

// ColumnRef references a column of the input plan by name.
type ColumnRef struct {
	Name string
}

// String returns the column name prefixed with #.
func (c *ColumnRef) String() string { return "#" + c.Name }

// ToField returns the field of the input schema named c.Name.
func (c *ColumnRef) ToField(input Plan) (schema.Field, error) {
	s, err := input.Schema()
	if err != nil {
		return schema.Field{}, err
	}
	dt, err := s.DataType(c.Name)
	if err != nil {
		return schema.Field{}, err
	}
	return schema.Field{Name: c.Name, Type: dt}, nil
}

// Literal is a constant integer.
type Literal struct {
	Value int64
}

func (l *Literal) String() string { return strconv.FormatInt(l.Value, 10) }

// ToField returns an int field named after the literal's value.
func (l *Literal) ToField(Plan) (schema.Field, error) {
	return schema.Field{Name: l.String(), Type: schema.Int}, nil
}

// BinOp applies a binary operation to two expressions. Math operations take
// the type of their left operand, boolean operations always produce a bool.
type BinOp struct {
	Left, Right Expr
	Op          types.BinaryOp
}

func (b *BinOp) String() string {
	return fmt.Sprintf("%s %s %s", operand(b.Left), b.Op.Symbol(), operand(b.Right))
}

// operand wraps nested binary operations in parentheses.
func operand(e Expr) string {
	if _, ok := e.(*BinOp); ok {
		return "(" + e.String() + ")"
	}
	return e.String()
}

// ToField implements [Expr].
func (b *BinOp) ToField(input Plan) (schema.Field, error) {
	left, err := b.Left.ToField(input)
	if err != nil {
		return schema.Field{}, err
	}
	if _, err := b.Right.ToField(input); err != nil {
		return schema.Field{}, err
	}

	name := fieldName(b)
	switch {
	case b.Op.IsMath():
		return schema.Field{Name: name, Type: left.Type}, nil
	case b.Op.IsBoolean():
		return schema.Field{Name: name, Type: schema.Bool}, nil
	default:
		return schema.Field{}, fmt.Errorf("%w: binary operation %s", errors.ErrUnsupportedExpr, b.Op)
	}
}

// AggregateExpr aggregates the values of Expr within a group. It is only
// valid as one of the aggregations of an [Aggregate] plan.
type AggregateExpr struct {
	Op   types.AggregationType
	Expr Expr
}

func (a *AggregateExpr) String() string {
	return fmt.Sprintf("%s(%s)", a.Op, a.Expr)
}

// ToField returns a field of the type of the aggregated expression, except
// for COUNT which always produces an int.
func (a *AggregateExpr) ToField(input Plan) (schema.Field, error) {
	inner, err := a.Expr.ToField(input)
	if err != nil {
		return schema.Field{}, err
	}

	name := fieldName(a)
	switch a.Op {
	case types.AggregationTypeCount:
		return schema.Field{Name: name, Type: schema.Int}, nil
	case types.AggregationTypeSum, types.AggregationTypeMin, types.AggregationTypeMax, types.AggregationTypeAvg:
		return schema.Field{Name: name, Type: inner.Type}, nil
	default:
		return schema.Field{}, fmt.Errorf("%w: aggregation %s", errors.ErrUnsupportedExpr, a.Op)
	}
}

// Alias renames the output field of Expr.
type Alias struct {
	Expr Expr
	Name string
}

func (a *Alias) String() string {
	return fmt.Sprintf("%s AS %s", a.Expr, a.Name)
}

// ToField returns the field of the aliased expression, renamed.
func (a *Alias) ToField(input Plan) (schema.Field, error) {
	f, err := a.Expr.ToField(input)
	if err != nil {
		return schema.Field{}, err
	}
	f.Name = a.Name
	return f, nil
}

// fieldName returns the name of the output field of e, which is its string
// form without column markers.
func fieldName(e Expr) string {
	switch e := e.(type) {
	case *ColumnRef:
		return e.Name
	case *Alias:
		return e.Name
	case *BinOp:
		return fmt.Sprintf("%s %s %s", operandName(e.Left), e.Op.Symbol(), operandName(e.Right))
	case *AggregateExpr:
		return fmt.Sprintf("%s(%s)", e.Op, fieldName(e.Expr))
	default:
		return e.String()
	}
}

func operandName(e Expr) string {
	if _, ok := e.(*BinOp); ok {
		return "(" + fieldName(e) + ")"
	}
	return fieldName(e)
}

// Col returns a reference to the column name.
func Col(name string) *ColumnRef { return &ColumnRef{Name: name} }

// Lit returns an integer literal.
func Lit(v int64) *Literal { return &Literal{Value: v} }

// As renames the output of e.
func As(e Expr, name string) *Alias { return &Alias{Expr: e, Name: name} }

func newBinOp(op types.BinaryOp) func(l, r Expr) *BinOp {
	return func(l, r Expr) *BinOp { return &BinOp{Left: l, Right: r, Op: op} }
}

// Constructors for binary operations.
var (
	Add = newBinOp(types.BinaryOpAdd)
	Sub = newBinOp(types.BinaryOpSub)
	Mul = newBinOp(types.BinaryOpMul)
	Div = newBinOp(types.BinaryOpDiv)
	Mod = newBinOp(types.BinaryOpMod)

	Eq  = newBinOp(types.BinaryOpEq)
	Neq = newBinOp(types.BinaryOpNeq)
	Gt  = newBinOp(types.BinaryOpGt)
	Gte = newBinOp(types.BinaryOpGte)
	Lt  = newBinOp(types.BinaryOpLt)
	Lte = newBinOp(types.BinaryOpLte)
	And = newBinOp(types.BinaryOpAnd)
	Or  = newBinOp(types.BinaryOpOr)
)

func newAggregateExpr(op types.AggregationType) func(e Expr) *AggregateExpr {
	return func(e Expr) *AggregateExpr { return &AggregateExpr{Op: op, Expr: e} }
}

// Constructors for aggregations.
var (
	Sum   = newAggregateExpr(types.AggregationTypeSum)
	Min   = newAggregateExpr(types.AggregationTypeMin)
	Max   = newAggregateExpr(types.AggregationTypeMax)
	Avg   = newAggregateExpr(types.AggregationTypeAvg)
	Count = newAggregateExpr(types.AggregationTypeCount)
)
