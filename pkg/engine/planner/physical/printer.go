package physical

import (
	"fmt"
	"strings"

	"github.com/grafana/tabular/pkg/engine/planner/internal/tree"
)

// BuildTree converts a physical plan node and its children into a tree
// structure that can be used for visualization and debugging purposes.
func BuildTree(n Node) *tree.Node {
	root := tree.NewNode(n.Type().String(), "")
	fillTree(root, n)
	return root
}

// fillTree adds the properties and expressions of n to treeNode, and one
// child per input of n.
func fillTree(treeNode *tree.Node, n Node) {
	switch node := n.(type) {
	case *Scan:
		treeNode.Properties = []tree.Property{
			tree.NewProperty("source", false, node.Source.Name()),
			tree.NewProperty("projection", true, toAnySlice(node.Schema().FieldNames())...),
		}
	case *Projection:
		for i, col := range node.Columns {
			treeNode.AddComment(fmt.Sprintf("column[%d]", i), "", exprProperties(col)...)
		}
	case *Selection:
		treeNode.AddComment("predicate", "", exprProperties(node.Predicate)...)
	case *Aggregate:
		treeNode.Properties = []tree.Property{
			tree.NewProperty("group_by", true, toAnySlice(node.GroupBy)...),
		}
		for i, agg := range node.Aggregations {
			treeNode.AddComment(fmt.Sprintf("aggregation[%d]", i), "", exprProperties(agg)...)
		}
	}

	for _, child := range n.Children() {
		fillTree(treeNode.AddChild(child.Type().String(), ""), child)
	}
}

func exprProperties(e Expression) []tree.Property {
	return []tree.Property{
		tree.NewProperty("expr", false, e.String()),
		tree.NewProperty("type", false, e.Type()),
	}
}

func toAnySlice[T any](s []T) []any {
	ret := make([]any, len(s))
	for i := range s {
		ret[i] = s[i]
	}
	return ret
}

// PrintAsTree converts a physical plan into a human-readable tree
// representation.
func PrintAsTree(n Node) string {
	sb := &strings.Builder{}
	tree.NewPrinter(sb).Print(BuildTree(n))
	return sb.String()
}

// String returns a one-line description of the node.
func (s *Scan) String() string {
	return fmt.Sprintf("Scan: %s; projection=[%s]", s.Source.Name(), strings.Join(s.schema.FieldNames(), ", "))
}

func (p *Projection) String() string {
	return "Projection: " + joinExpressions(p.Columns)
}

func (s *Selection) String() string {
	return "Selection: " + s.Predicate.String()
}

func (a *Aggregate) String() string {
	return fmt.Sprintf("Aggregate: groupExprs=[%s], aggregateExprs=[%s]", joinExpressions(a.GroupBy), joinExpressions(a.Aggregations))
}
