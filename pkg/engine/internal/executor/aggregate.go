package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/grafana/tabular/pkg/engine/batch"
	"github.com/grafana/tabular/pkg/engine/internal/types"
	"github.com/grafana/tabular/pkg/engine/planner/physical"
)

// aggregatePipeline is a pipeline that groups all rows of its input and
// aggregates each group.
//
// It drains its input on the first call to Read and emits a single batch
// with one row per group.
type aggregatePipeline struct {
	input     Pipeline
	exhausted bool

	node      *physical.Aggregate
	ops       []types.AggregationType
	evaluator *expressionEvaluator
	mem       memory.Allocator
	logger    log.Logger
}

var _ Pipeline = (*aggregatePipeline)(nil)

// newAggregatePipeline returns a blocking pipeline for node. It returns an
// error if an aggregation cannot be computed over the values it is applied
// to.
func newAggregatePipeline(input Pipeline, node *physical.Aggregate, evaluator *expressionEvaluator, mem memory.Allocator, logger log.Logger) (*aggregatePipeline, error) {
	ops := make([]types.AggregationType, len(node.Aggregations))
	offset := len(node.GroupBy)
	for i, agg := range node.Aggregations {
		// All aggregations but COUNT produce values of their input type.
		if _, err := newAccumulator(agg.Op, node.Schema().Field(offset+i).Type); err != nil {
			return nil, fmt.Errorf("aggregation %s: %w", agg, err)
		}
		ops[i] = agg.Op
	}

	return &aggregatePipeline{
		input:     input,
		node:      node,
		ops:       ops,
		evaluator: evaluator,
		mem:       mem,
		logger:    logger,
	}, nil
}

// Read implements Pipeline.
func (p *aggregatePipeline) Read(ctx context.Context) (arrow.Record, error) {
	if p.exhausted {
		return nil, EOF
	}
	p.exhausted = true
	return p.read(ctx)
}

func (p *aggregatePipeline) read(ctx context.Context) (arrow.Record, error) {
	agg := newAggregator(p.ops, 0)

	var batches, rows int64
	for {
		rec, err := p.input.Read(ctx)
		if errors.Is(err, EOF) {
			break
		} else if err != nil {
			return nil, err
		}

		err = p.aggregateBatch(agg, rec)
		batches++
		rows += rec.NumRows()
		rec.Release()
		if err != nil {
			return nil, err
		}
	}

	level.Debug(p.logger).Log("msg", "aggregated input", "batches", batches, "rows", rows, "groups", agg.Len())
	if agg.Len() == 0 {
		return batch.Empty(p.mem, p.node.Schema()), nil
	}
	return agg.BuildRecord(p.mem, p.node.Schema())
}

func (p *aggregatePipeline) aggregateBatch(agg *aggregator, rec arrow.Record) error {
	var vecs []ColumnVector
	defer func() {
		for _, vec := range vecs {
			vec.Release()
		}
	}()

	// extract all the columns that are used for grouping
	keys := make([]ColumnVector, 0, len(p.node.GroupBy))
	for _, expr := range p.node.GroupBy {
		vec, err := p.evaluator.eval(expr, rec)
		if err != nil {
			return fmt.Errorf("evaluating group %s: %w", expr, err)
		}
		vecs = append(vecs, vec)
		keys = append(keys, vec)
	}

	// extract the inputs of each aggregation
	values := make([]ColumnVector, 0, len(p.node.Aggregations))
	for _, expr := range p.node.Aggregations {
		vec, err := p.evaluator.eval(expr.Expr, rec)
		if err != nil {
			return fmt.Errorf("evaluating aggregation %s: %w", expr, err)
		}
		vecs = append(vecs, vec)
		values = append(values, vec)
	}

	key := make([]any, len(keys))
	for row := range int(rec.NumRows()) {
		// reset for each row
		clear(key)
		for col, vec := range keys {
			key[col] = valueAt(vec.ToArray(), row)
		}
		if err := agg.Add(key, values, row); err != nil {
			return err
		}
	}
	return nil
}

// valueAt returns row i of arr as an int64 or bool, or nil for a null.
func valueAt(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}
	switch arr := arr.(type) {
	case *array.Int64:
		return arr.Value(i)
	case *array.Boolean:
		return arr.Value(i)
	}
	return nil
}

// Close implements Pipeline.
func (p *aggregatePipeline) Close() {
	p.input.Close()
}
