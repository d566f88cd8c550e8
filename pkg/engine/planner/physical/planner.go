package physical

import (
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/grafana/tabular/pkg/engine/internal/errors"
	"github.com/grafana/tabular/pkg/engine/planner/logical"
)

// Planner creates an executable physical plan from a logical plan.
//
// Lowering is a single recursive pass over the logical tree: every logical
// node becomes exactly one physical node, and column references are resolved
// to positions against the schema of the logical input of the expression.
type Planner struct {
	logger log.Logger
}

// NewPlanner creates a new planner. A nil logger discards all log messages.
func NewPlanner(logger log.Logger) *Planner {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Planner{logger: logger}
}

// Build converts a given logical plan into a physical plan and returns an
// error if the conversion fails. No part of a plan that fails to build is
// ever executed.
func (p *Planner) Build(lp logical.Plan) (Node, error) {
	if lp == nil {
		return nil, fmt.Errorf("%w: nil plan", errors.ErrUnsupportedPlan)
	}
	return p.process(lp)
}

// Convert a [logical.Plan] into a [Node].
func (p *Planner) process(lp logical.Plan) (Node, error) {
	var (
		node Node
		err  error
	)
	switch lp := lp.(type) {
	case *logical.Scan:
		node, err = p.processScan(lp)
	case *logical.Projection:
		node, err = p.processProjection(lp)
	case *logical.Selection:
		node, err = p.processSelection(lp)
	case *logical.Aggregate:
		node, err = p.processAggregate(lp)
	default:
		return nil, fmt.Errorf("%w: %T", errors.ErrUnsupportedPlan, lp)
	}
	if err != nil {
		return nil, err
	}

	level.Debug(p.logger).Log("msg", "lowered plan node", "type", node.Type(), "schema", node.Schema())
	return node, nil
}

// Convert [logical.Scan] into a [Scan] node over the same source.
func (p *Planner) processScan(lp *logical.Scan) (Node, error) {
	return NewScan(lp.Source(), lp.Projection())
}

// Convert [logical.Projection] into a [Projection] node.
func (p *Planner) processProjection(lp *logical.Projection) (Node, error) {
	input, err := p.process(lp.Child())
	if err != nil {
		return nil, err
	}

	cols := make([]Expression, len(lp.Exprs()))
	for i, expr := range lp.Exprs() {
		if cols[i], err = p.convertExpr(expr, lp.Child()); err != nil {
			return nil, err
		}
	}

	// The output schema is derived from the logical side only.
	s, err := lp.Schema()
	if err != nil {
		return nil, fmt.Errorf("projection schema: %w", err)
	}
	return NewProjection(input, s, cols), nil
}

// Convert [logical.Selection] into a [Selection] node.
func (p *Planner) processSelection(lp *logical.Selection) (Node, error) {
	input, err := p.process(lp.Child())
	if err != nil {
		return nil, err
	}
	predicate, err := p.convertExpr(lp.Predicate(), lp.Child())
	if err != nil {
		return nil, err
	}
	return &Selection{Input: input, Predicate: predicate}, nil
}

// Convert [logical.Aggregate] into an [Aggregate] node.
func (p *Planner) processAggregate(lp *logical.Aggregate) (Node, error) {
	input, err := p.process(lp.Child())
	if err != nil {
		return nil, err
	}

	groupBy := make([]Expression, len(lp.GroupBy()))
	for i, expr := range lp.GroupBy() {
		if groupBy[i], err = p.convertExpr(expr, lp.Child()); err != nil {
			return nil, err
		}
	}

	aggregations := make([]*AggregateExpr, len(lp.Aggregations()))
	for i, expr := range lp.Aggregations() {
		if aggregations[i], err = p.convertAggregate(expr, lp.Child()); err != nil {
			return nil, err
		}
	}

	s, err := lp.Schema()
	if err != nil {
		return nil, fmt.Errorf("aggregate schema: %w", err)
	}
	return NewAggregate(input, s, groupBy, aggregations), nil
}

// convertAggregate converts one entry of the aggregation list of an
// aggregate. This is the only place where a [logical.AggregateExpr] can be
// lowered.
func (p *Planner) convertAggregate(expr logical.Expr, input logical.Plan) (*AggregateExpr, error) {
	switch expr := expr.(type) {
	case *logical.Alias:
		return p.convertAggregate(expr.Expr, input)
	case *logical.AggregateExpr:
		inner, err := p.convertExpr(expr.Expr, input)
		if err != nil {
			return nil, err
		}
		return &AggregateExpr{Op: expr.Op, Expr: inner}, nil
	default:
		return nil, fmt.Errorf("%w: %s is not an aggregation", errors.ErrUnsupportedExpr, expr)
	}
}

// Convert a [logical.Expr] into an [Expression], resolving column names
// against the schema of input.
func (p *Planner) convertExpr(expr logical.Expr, input logical.Plan) (Expression, error) {
	switch expr := expr.(type) {
	case *logical.ColumnRef:
		s, err := input.Schema()
		if err != nil {
			return nil, err
		}
		idx := s.Index(expr.Name)
		if idx < 0 {
			return nil, fmt.Errorf("%w: no column named %s", errors.ErrUnresolvedColumn, expr.Name)
		}
		return &ColumnExpr{Index: idx, Name: expr.Name}, nil
	case *logical.Literal:
		return NewLiteral(expr.Value), nil
	case *logical.BinOp:
		if !expr.Op.IsMath() && !expr.Op.IsBoolean() {
			return nil, fmt.Errorf("%w: binary operation %s", errors.ErrUnsupportedExpr, expr.Op)
		}
		left, err := p.convertExpr(expr.Left, input)
		if err != nil {
			return nil, err
		}
		right, err := p.convertExpr(expr.Right, input)
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Left: left, Right: right, Op: expr.Op}, nil
	case *logical.Alias:
		return p.convertExpr(expr.Expr, input)
	case *logical.AggregateExpr:
		return nil, fmt.Errorf("%w: aggregation %s outside of an aggregate", errors.ErrUnsupportedExpr, expr)
	default:
		return nil, fmt.Errorf("%w: %T", errors.ErrUnsupportedExpr, expr)
	}
}
