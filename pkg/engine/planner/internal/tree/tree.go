// Package tree renders plan trees as indented text for debugging.
package tree

// Property is a key-value pair attached to a [Node]. A single-value property
// prints as `key=value`, a multi-value property as `key=(value1, value2)`.
type Property struct {
	Key          string
	Values       []any
	IsMultiValue bool
}

// NewProperty creates a property. Set multi to print the values as a list,
// even if there is only one of them.
func NewProperty(key string, multi bool, values ...any) Property {
	return Property{
		Key:          key,
		Values:       values,
		IsMultiValue: multi,
	}
}

// Node is an element of a printable tree.
type Node struct {
	// Name is printed first, followed by ID if it is not empty.
	Name string
	ID   string

	Properties []Property

	// Children are the inputs of the node.
	Children []*Node
	// Comments are printed between the node and its children, one level
	// deeper. Plans use them for the expressions of a node.
	Comments []*Node
}

// NewNode creates a node with the given name, identifier and properties.
func NewNode(name, id string, properties ...Property) *Node {
	return &Node{
		Name:       name,
		ID:         id,
		Properties: properties,
	}
}

// AddChild creates a node and appends it to the children of n.
func (n *Node) AddChild(name, id string, properties ...Property) *Node {
	child := NewNode(name, id, properties...)
	n.Children = append(n.Children, child)
	return child
}

// AddComment creates a node and appends it to the comments of n.
func (n *Node) AddComment(name, id string, properties ...Property) *Node {
	comment := NewNode(name, id, properties...)
	n.Comments = append(n.Comments, comment)
	return comment
}
