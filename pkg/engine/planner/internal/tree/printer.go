package tree

import (
	"fmt"
	"io"
	"strings"
)

const (
	branch   = "├── "
	last     = "└── "
	pipe     = "│   "
	indent   = "    "
	listSep  = ", "
	valueSep = "="
)

// Printer writes trees using box-drawing characters:
//
//	Projection columns=(#0(a), ADD(#0(a), 1))
//	└── Scan source=users
type Printer struct {
	w io.Writer
}

// NewPrinter returns a printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Print writes root and all of its descendants.
func (p *Printer) Print(root *Node) {
	p.printNode(root)
	p.printComments(root, "")
	p.printChildren(root.Children, "")
}

func (p *Printer) printNode(n *Node) {
	var sb strings.Builder
	sb.WriteString(n.Name)
	if n.ID != "" {
		sb.WriteString(" ")
		sb.WriteString(n.ID)
	}
	for _, prop := range n.Properties {
		sb.WriteString(" ")
		sb.WriteString(prop.Key)
		sb.WriteString(valueSep)
		sb.WriteString(formatValues(prop))
	}
	fmt.Fprintln(p.w, sb.String())
}

func formatValues(prop Property) string {
	parts := make([]string, len(prop.Values))
	for i, v := range prop.Values {
		parts[i] = fmt.Sprint(v)
	}
	if prop.IsMultiValue {
		return "(" + strings.Join(parts, listSep) + ")"
	}
	return strings.Join(parts, listSep)
}

// printComments writes the comments of n. Comments are drawn one level
// deeper than the children of n, so that a node with children keeps its
// vertical line next to them.
func (p *Printer) printComments(n *Node, prefix string) {
	if len(n.Comments) == 0 {
		return
	}
	commentPrefix := prefix + indent
	if len(n.Children) > 0 {
		commentPrefix = prefix + pipe
	}
	p.printList(n.Comments, commentPrefix)
}

func (p *Printer) printChildren(children []*Node, prefix string) {
	p.printList(children, prefix)
}

func (p *Printer) printList(nodes []*Node, prefix string) {
	for i, n := range nodes {
		connector, next := branch, pipe
		if i == len(nodes)-1 {
			connector, next = last, indent
		}

		fmt.Fprint(p.w, prefix+connector)
		p.printNode(n)
		p.printComments(n, prefix+next)
		p.printChildren(n.Children, prefix+next)
	}
}
