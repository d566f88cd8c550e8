package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Pipeline is a lazy, forward-only sequence of batches. Pipelines form a
// tree mirroring the physical plan: reading from a pipeline reads as many
// batches from its inputs as it needs to produce the next batch.
type Pipeline interface {
	// Read returns the next batch of the pipeline. The caller owns the
	// returned record and must release it. Read returns EOF once the
	// pipeline is exhausted, and any other error aborts the pipeline.
	Read(context.Context) (arrow.Record, error)
	// Close releases the resources held by the pipeline, closing its
	// inputs as well. Reading from a closed pipeline is undefined.
	Close()
}

// EOF is returned by [Pipeline.Read] when the pipeline is exhausted.
var EOF = errors.New("pipeline exhausted") //nolint:revive,staticcheck

type readFunc func(context.Context, []Pipeline) (arrow.Record, error)

// GenericPipeline is a [Pipeline] whose batches are produced by a read
// function over its inputs.
type GenericPipeline struct {
	inputs []Pipeline
	read   readFunc
}

func newGenericPipeline(read readFunc, inputs ...Pipeline) *GenericPipeline {
	return &GenericPipeline{inputs: inputs, read: read}
}

var _ Pipeline = (*GenericPipeline)(nil)

func (p *GenericPipeline) Read(ctx context.Context) (arrow.Record, error) {
	if p.read == nil {
		return nil, EOF
	}
	return p.read(ctx, p.inputs)
}

// Close closes every input of the pipeline.
func (p *GenericPipeline) Close() {
	for _, input := range p.inputs {
		input.Close()
	}
}

// errorPipeline returns a pipeline failing every Read with err. The error is
// also recorded on the span of ctx.
func errorPipeline(ctx context.Context, err error) Pipeline {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	return newGenericPipeline(func(context.Context, []Pipeline) (arrow.Record, error) {
		return nil, fmt.Errorf("failed to execute pipeline: %w", err)
	})
}

// tracedPipeline opens a span for every Read of the pipeline it wraps. The
// span of the final Read carries the totals of the pipeline.
type tracedPipeline struct {
	name  string
	inner Pipeline

	batches, rows int64
}

var _ Pipeline = (*tracedPipeline)(nil)

func tracePipeline(name string, inner Pipeline) *tracedPipeline {
	return &tracedPipeline{name: name, inner: inner}
}

func (p *tracedPipeline) Read(ctx context.Context) (arrow.Record, error) {
	ctx, span := tracer.Start(ctx, p.name+".Read")
	defer span.End()

	rec, err := p.inner.Read(ctx)
	if err == nil {
		p.batches++
		p.rows += rec.NumRows()
		span.SetAttributes(attribute.Int64("rows", rec.NumRows()))
		span.SetStatus(codes.Ok, "")
		return rec, nil
	}

	span.SetAttributes(
		attribute.Int64("total_batches", p.batches),
		attribute.Int64("total_rows", p.rows),
	)
	if errors.Is(err, EOF) {
		span.SetStatus(codes.Ok, "")
	} else {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return nil, err
}

func (p *tracedPipeline) Close() { p.inner.Close() }

// lazyPipeline builds its pipeline on the first Read, so that the context of
// that Read is the one used to open sources.
type lazyPipeline struct {
	build func(ctx context.Context) Pipeline
	built Pipeline
}

var _ Pipeline = (*lazyPipeline)(nil)

func newLazyPipeline(build func(ctx context.Context) Pipeline) *lazyPipeline {
	return &lazyPipeline{build: build}
}

func (lp *lazyPipeline) Read(ctx context.Context) (arrow.Record, error) {
	if lp.built == nil {
		lp.built = lp.build(ctx)
	}
	return lp.built.Read(ctx)
}

// Close closes the built pipeline, if any. A pipeline closed before its
// first Read never opens its source.
func (lp *lazyPipeline) Close() {
	if lp.built != nil {
		lp.built.Close()
		lp.built = nil
	}
}
