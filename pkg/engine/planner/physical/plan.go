// Package physical lowers logical plans into executable plans whose column
// references are resolved to positions.
package physical

import (
	"fmt"
	"strings"

	"github.com/grafana/tabular/pkg/engine/schema"
	"github.com/grafana/tabular/pkg/engine/source"
)

// NodeType denotes the kind of a physical plan [Node].
type NodeType uint32

const (
	NodeTypeScan NodeType = iota + 1
	NodeTypeProjection
	NodeTypeSelection
	NodeTypeAggregate
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeScan:
		return "Scan"
	case NodeTypeProjection:
		return "Projection"
	case NodeTypeSelection:
		return "Selection"
	case NodeTypeAggregate:
		return "Aggregate"
	default:
		return fmt.Sprintf("NodeType(%d)", t)
	}
}

// Node is an operator of a physical plan. Nodes are immutable once built by
// the [Planner] and can be executed any number of times.
type Node interface {
	// Type returns the kind of the node.
	Type() NodeType
	// Schema returns the schema of the batches produced by the node.
	Schema() schema.Schema
	// Children returns the inputs of the node.
	Children() []Node
	isNode()
}

var (
	_ Node = (*Scan)(nil)
	_ Node = (*Projection)(nil)
	_ Node = (*Selection)(nil)
	_ Node = (*Aggregate)(nil)
)

// Scan reads the projected fields of a source.
type Scan struct {
	Source     source.Source
	Projection []string

	schema schema.Schema
}

// NewScan returns a Scan of the projected fields of src.
func NewScan(src source.Source, projection []string) (*Scan, error) {
	s := src.Schema()
	if len(projection) > 0 {
		var err error
		if s, err = s.Select(projection...); err != nil {
			return nil, err
		}
	}
	return &Scan{Source: src, Projection: projection, schema: s}, nil
}

func (*Scan) isNode() {}

// Type implements [Node].
func (*Scan) Type() NodeType { return NodeTypeScan }

// Schema implements [Node].
func (s *Scan) Schema() schema.Schema { return s.schema }

// Children implements [Node].
func (*Scan) Children() []Node { return nil }

// Projection evaluates one expression per output column.
type Projection struct {
	Input   Node
	Columns []Expression

	schema schema.Schema
}

// NewProjection returns a Projection producing batches of schema s, one
// column per expression of cols.
func NewProjection(input Node, s schema.Schema, cols []Expression) *Projection {
	return &Projection{Input: input, Columns: cols, schema: s}
}

func (*Projection) isNode() {}

// Type implements [Node].
func (*Projection) Type() NodeType { return NodeTypeProjection }

// Schema implements [Node].
func (p *Projection) Schema() schema.Schema { return p.schema }

// Children implements [Node].
func (p *Projection) Children() []Node { return []Node{p.Input} }

// Selection keeps the rows of each input batch for which Predicate is true.
type Selection struct {
	Input     Node
	Predicate Expression
}

func (*Selection) isNode() {}

// Type implements [Node].
func (*Selection) Type() NodeType { return NodeTypeSelection }

// Schema implements [Node].
func (s *Selection) Schema() schema.Schema { return s.Input.Schema() }

// Children implements [Node].
func (s *Selection) Children() []Node { return []Node{s.Input} }

// Aggregate groups all rows of its input by the values of GroupBy and
// computes Aggregations for each group. Its schema lists the grouping
// columns followed by the aggregation columns.
type Aggregate struct {
	Input        Node
	GroupBy      []Expression
	Aggregations []*AggregateExpr

	schema schema.Schema
}

// NewAggregate returns an Aggregate producing a batch of schema s.
func NewAggregate(input Node, s schema.Schema, groupBy []Expression, aggregations []*AggregateExpr) *Aggregate {
	return &Aggregate{Input: input, GroupBy: groupBy, Aggregations: aggregations, schema: s}
}

func (*Aggregate) isNode() {}

// Type implements [Node].
func (*Aggregate) Type() NodeType { return NodeTypeAggregate }

// Schema implements [Node].
func (a *Aggregate) Schema() schema.Schema { return a.schema }

// Children implements [Node].
func (a *Aggregate) Children() []Node { return []Node{a.Input} }

func joinExpressions[E Expression](exprs []E) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
