package executor

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/grafana/tabular/pkg/engine/batch"
	"github.com/grafana/tabular/pkg/engine/planner/physical"
)

// NewProjectPipeline returns a pipeline producing one output batch per input
// batch, with one column per expression of proj.
func NewProjectPipeline(input Pipeline, proj *physical.Projection, evaluator *expressionEvaluator) *GenericPipeline {
	return newGenericPipeline(func(ctx context.Context, inputs []Pipeline) (arrow.Record, error) {
		if len(inputs) != 1 {
			return nil, fmt.Errorf("expected 1 input, got %d", len(inputs))
		}
		rec, err := inputs[0].Read(ctx)
		if err != nil {
			return nil, err
		}
		defer rec.Release()

		vecs := make([]ColumnVector, 0, len(proj.Columns))
		defer func() {
			for _, vec := range vecs {
				vec.Release()
			}
		}()

		cols := make([]arrow.Array, 0, len(proj.Columns))
		for i, expr := range proj.Columns {
			vec, err := evaluator.eval(expr, rec)
			if err != nil {
				return nil, fmt.Errorf("evaluating column %d (%s): %w", i, expr, err)
			}
			vecs = append(vecs, vec)
			cols = append(cols, vec.ToArray())
		}

		return batch.New(proj.Schema(), cols)
	}, input)
}
