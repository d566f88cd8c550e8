package logical

// Builder composes a logical plan bottom-up, starting from a leaf node.
type Builder struct {
	val Plan
}

// NewBuilder creates a new Builder with a starting plan node.
func NewBuilder(val Plan) *Builder {
	return &Builder{val: val}
}

// Project applies a [Projection] to the plan.
func (b *Builder) Project(exprs ...Expr) *Builder {
	return &Builder{val: newProjection(b.val, exprs)}
}

// Select applies a [Selection] to the plan.
func (b *Builder) Select(predicate Expr) *Builder {
	return &Builder{val: newSelection(b.val, predicate)}
}

// Aggregate applies an [Aggregate] to the plan.
func (b *Builder) Aggregate(groupBy []Expr, aggregations []Expr) *Builder {
	return &Builder{val: newAggregate(b.val, groupBy, aggregations)}
}

// Plan returns the plan built so far.
func (b *Builder) Plan() Plan {
	return b.val
}
