// Package logical describes queries as trees of relational operators,
// independent of how they are executed.
package logical

import (
	"fmt"
	"strings"

	"github.com/grafana/tabular/pkg/engine/schema"
	"github.com/grafana/tabular/pkg/engine/source"
)

// PlanType denotes the kind of a [Plan] node.
type PlanType int

// Recognized values of [PlanType].
const (
	PlanTypeInvalid PlanType = iota

	PlanTypeScan
	PlanTypeProjection
	PlanTypeSelection
	PlanTypeAggregate
)

func (t PlanType) String() string {
	switch t {
	case PlanTypeScan:
		return "Scan"
	case PlanTypeProjection:
		return "Projection"
	case PlanTypeSelection:
		return "Selection"
	case PlanTypeAggregate:
		return "Aggregate"
	default:
		return fmt.Sprintf("PlanType(%d)", t)
	}
}

// Plan is a node of a logical plan tree. Nodes are immutable; the schema of a
// node is derived from its children and expressions every time it is
// requested.
type Plan interface {
	fmt.Stringer

	// Type returns the kind of the node.
	Type() PlanType
	// Schema returns the schema of the rows produced by the node.
	Schema() (schema.Schema, error)
	// Children returns the inputs of the node.
	Children() []Plan
}

var (
	_ Plan = (*Scan)(nil)
	_ Plan = (*Projection)(nil)
	_ Plan = (*Selection)(nil)
	_ Plan = (*Aggregate)(nil)
)

// Scan reads rows from a source.
type Scan struct {
	source     source.Source
	projection []string
}

// NewScan creates a Scan of the given fields of src. An empty projection
// scans all fields.
func NewScan(src source.Source, projection ...string) *Scan {
	return &Scan{source: src, projection: projection}
}

// Source returns the scanned source.
func (s *Scan) Source() source.Source { return s.source }

// Projection returns the names of the scanned fields.
func (s *Scan) Projection() []string { return s.projection }

// Type implements [Plan].
func (s *Scan) Type() PlanType { return PlanTypeScan }

// Schema returns the source schema restricted to the projection. An empty
// projection scans every field.
func (s *Scan) Schema() (schema.Schema, error) {
	if len(s.projection) == 0 {
		return s.source.Schema(), nil
	}
	return s.source.Schema().Select(s.projection...)
}

// Children implements [Plan]. A Scan has no children.
func (s *Scan) Children() []Plan { return nil }

func (s *Scan) String() string {
	return fmt.Sprintf("Scan: %s; projection=[%s]", s.source.Name(), strings.Join(s.projection, ", "))
}

// Projection computes one output column per expression.
type Projection struct {
	input Plan
	exprs []Expr
}

func newProjection(input Plan, exprs []Expr) *Projection {
	return &Projection{input: input, exprs: exprs}
}

// Child returns the input plan.
func (p *Projection) Child() Plan { return p.input }

// Exprs returns the projected expressions.
func (p *Projection) Exprs() []Expr { return p.exprs }

// Type implements [Plan].
func (p *Projection) Type() PlanType { return PlanTypeProjection }

// Schema returns the fields of the projected expressions, in order.
func (p *Projection) Schema() (schema.Schema, error) {
	return fieldsOf(p.input, p.exprs)
}

// Children implements [Plan].
func (p *Projection) Children() []Plan { return []Plan{p.input} }

func (p *Projection) String() string {
	return "Projection: " + joinExprs(p.exprs)
}

// Selection keeps the rows of its input for which the predicate holds.
type Selection struct {
	input     Plan
	predicate Expr
}

func newSelection(input Plan, predicate Expr) *Selection {
	return &Selection{input: input, predicate: predicate}
}

// Child returns the input plan.
func (s *Selection) Child() Plan { return s.input }

// Predicate returns the filtering expression.
func (s *Selection) Predicate() Expr { return s.predicate }

// Type implements [Plan].
func (s *Selection) Type() PlanType { return PlanTypeSelection }

// Schema returns the schema of the input; selection only removes rows.
func (s *Selection) Schema() (schema.Schema, error) { return s.input.Schema() }

// Children implements [Plan].
func (s *Selection) Children() []Plan { return []Plan{s.input} }

func (s *Selection) String() string {
	return "Selection: " + s.predicate.String()
}

// Aggregate groups the rows of its input by the values of the grouping
// expressions and computes the aggregations for each group.
type Aggregate struct {
	input        Plan
	groupBy      []Expr
	aggregations []Expr
}

func newAggregate(input Plan, groupBy, aggregations []Expr) *Aggregate {
	return &Aggregate{input: input, groupBy: groupBy, aggregations: aggregations}
}

// Child returns the input plan.
func (a *Aggregate) Child() Plan { return a.input }

// GroupBy returns the grouping expressions.
func (a *Aggregate) GroupBy() []Expr { return a.groupBy }

// Aggregations returns the aggregation expressions. Each of them is an
// [AggregateExpr], possibly wrapped in an [Alias].
func (a *Aggregate) Aggregations() []Expr { return a.aggregations }

// Type implements [Plan].
func (a *Aggregate) Type() PlanType { return PlanTypeAggregate }

// Schema returns the grouping fields followed by the aggregation fields.
func (a *Aggregate) Schema() (schema.Schema, error) {
	exprs := make([]Expr, 0, len(a.groupBy)+len(a.aggregations))
	exprs = append(exprs, a.groupBy...)
	exprs = append(exprs, a.aggregations...)
	return fieldsOf(a.input, exprs)
}

// Children implements [Plan].
func (a *Aggregate) Children() []Plan { return []Plan{a.input} }

func (a *Aggregate) String() string {
	return fmt.Sprintf("Aggregate: groupExprs=[%s], aggregateExprs=[%s]", joinExprs(a.groupBy), joinExprs(a.aggregations))
}

func fieldsOf(input Plan, exprs []Expr) (schema.Schema, error) {
	fields := make([]schema.Field, len(exprs))
	for i, expr := range exprs {
		f, err := expr.ToField(input)
		if err != nil {
			return schema.Schema{}, err
		}
		fields[i] = f
	}
	return schema.New(fields...)
}

func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// Format renders p as an indented tree, one node per line, children indented
// by one tab below their parent.
func Format(p Plan) string {
	var sb strings.Builder
	format(&sb, p, 0)
	return sb.String()
}

func format(sb *strings.Builder, p Plan, depth int) {
	sb.WriteString(strings.Repeat("\t", depth))
	sb.WriteString(p.String())
	sb.WriteByte('\n')
	for _, child := range p.Children() {
		format(sb, child, depth+1)
	}
}
