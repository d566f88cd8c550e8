package executor

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/grafana/tabular/pkg/engine/internal/errors"
	"github.com/grafana/tabular/pkg/engine/planner/physical"
)

var tracer = otel.Tracer("pkg/engine/internal/executor")

type Config struct {
	// Allocator is used for every array built while executing a plan.
	// Defaults to [memory.DefaultAllocator].
	Allocator memory.Allocator
}

// Run builds the pipeline tree for a physical plan. No source is opened and
// no batch is produced until the returned pipeline is read.
func Run(ctx context.Context, cfg Config, plan physical.Node, logger log.Logger) Pipeline {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	mem := cfg.Allocator
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	c := &Context{
		mem:       mem,
		logger:    logger,
		evaluator: newExpressionEvaluator(mem),
	}
	if plan == nil {
		return errorPipeline(ctx, fmt.Errorf("%w: plan is nil", errors.ErrUnsupportedPlan))
	}
	return c.execute(ctx, plan)
}

// Context is the execution context
type Context struct {
	mem       memory.Allocator
	logger    log.Logger
	evaluator expressionEvaluator
}

func (c *Context) execute(ctx context.Context, node physical.Node) Pipeline {
	children := node.Children()
	inputs := make([]Pipeline, 0, len(children))
	for _, child := range children {
		inputs = append(inputs, c.execute(ctx, child))
	}

	switch n := node.(type) {
	case *physical.Scan:
		return newLazyPipeline(func(ctx context.Context) Pipeline {
			return tracePipeline("physical.Scan", c.executeScan(ctx, n))
		})
	case *physical.Projection:
		return tracePipeline("physical.Projection", c.executeProjection(ctx, n, inputs))
	case *physical.Selection:
		return tracePipeline("physical.Selection", c.executeSelection(ctx, n, inputs))
	case *physical.Aggregate:
		return tracePipeline("physical.Aggregate", c.executeAggregate(ctx, n, inputs))
	default:
		return errorPipeline(ctx, fmt.Errorf("%w: invalid node type %T", errors.ErrUnsupportedPlan, node))
	}
}

func (c *Context) executeScan(ctx context.Context, node *physical.Scan) Pipeline {
	ctx, span := tracer.Start(ctx, "Context.executeScan", trace.WithAttributes(
		attribute.String("source", node.Source.Name()),
		attribute.StringSlice("projection", node.Projection),
	))
	defer span.End()

	reader, err := node.Source.Load(ctx, node.Projection)
	if err != nil {
		return errorPipeline(ctx, fmt.Errorf("loading source %s: %w", node.Source.Name(), err))
	}
	level.Debug(c.logger).Log("msg", "opened source", "source", node.Source.Name(), "schema", node.Schema())
	return newScanPipeline(reader, c.logger)
}

func (c *Context) executeProjection(ctx context.Context, node *physical.Projection, inputs []Pipeline) Pipeline {
	_, span := tracer.Start(ctx, "Context.executeProjection", trace.WithAttributes(
		attribute.Int("num_columns", len(node.Columns)),
	))
	defer span.End()

	if len(inputs) != 1 {
		return errorPipeline(ctx, fmt.Errorf("%w: projection expects exactly one input, got %d", errors.ErrInvariant, len(inputs)))
	}
	return NewProjectPipeline(inputs[0], node, &c.evaluator)
}

func (c *Context) executeSelection(ctx context.Context, node *physical.Selection, inputs []Pipeline) Pipeline {
	_, span := tracer.Start(ctx, "Context.executeSelection", trace.WithAttributes(
		attribute.Stringer("predicate", node.Predicate),
	))
	defer span.End()

	if len(inputs) != 1 {
		return errorPipeline(ctx, fmt.Errorf("%w: selection expects exactly one input, got %d", errors.ErrInvariant, len(inputs)))
	}
	return NewSelectionPipeline(inputs[0], node, &c.evaluator, c.mem)
}

func (c *Context) executeAggregate(ctx context.Context, node *physical.Aggregate, inputs []Pipeline) Pipeline {
	_, span := tracer.Start(ctx, "Context.executeAggregate", trace.WithAttributes(
		attribute.Int("num_group_by", len(node.GroupBy)),
		attribute.Int("num_aggregations", len(node.Aggregations)),
	))
	defer span.End()

	if len(inputs) != 1 {
		return errorPipeline(ctx, fmt.Errorf("%w: aggregate expects exactly one input, got %d", errors.ErrInvariant, len(inputs)))
	}
	pipeline, err := newAggregatePipeline(inputs[0], node, &c.evaluator, c.mem, c.logger)
	if err != nil {
		inputs[0].Close()
		return errorPipeline(ctx, err)
	}
	return pipeline
}
