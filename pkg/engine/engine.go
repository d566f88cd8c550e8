// Package engine runs tabular queries: it lowers logical plans built with
// [logical.Builder] into physical plans and executes them as pull-based
// pipelines of Arrow record batches.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/grafana/dskit/flagext"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/grafana/tabular/pkg/engine/internal/executor"
	"github.com/grafana/tabular/pkg/engine/planner/logical"
	"github.com/grafana/tabular/pkg/engine/planner/physical"
	"github.com/grafana/tabular/pkg/engine/schema"
	"github.com/grafana/tabular/pkg/engine/source"
)

// ErrPlanningFailed is returned when a logical plan cannot be lowered into
// a physical plan. It wraps the planner error describing the cause.
var ErrPlanningFailed = errors.New("query planning failed")

// EOF is returned by [Pipeline.Read] when a query has no more results.
var EOF = executor.EOF //nolint:revive,staticcheck

// Pipeline is the result of a query: a sequence of batches read one at a
// time. Callers must release every batch they read and close the pipeline
// once done.
type Pipeline = executor.Pipeline

var tracer = otel.Tracer("pkg/engine")

// Params holds parameters for constructing a new [Engine].
type Params struct {
	Logger     log.Logger            // Logger for optional log messages.
	Registerer prometheus.Registerer // Registerer for optional metrics.

	Config    Config           // Config for the Engine. Defaults apply if empty.
	Allocator memory.Allocator // Allocator for all batches; defaults to memory.DefaultAllocator.
}

// validate validates p and applies defaults.
func (p *Params) validate() error {
	if p.Logger == nil {
		p.Logger = log.NewNopLogger()
	}
	if p.Registerer == nil {
		p.Registerer = prometheus.NewRegistry()
	}
	if p.Allocator == nil {
		p.Allocator = memory.DefaultAllocator
	}
	if p.Config == (Config{}) {
		flagext.DefaultValues(&p.Config)
	}
	return p.Config.Validate()
}

// Engine plans and executes queries.
type Engine struct {
	logger  log.Logger
	metrics *metrics
	cfg     Config
	mem     memory.Allocator
	planner *physical.Planner
}

// New creates a new Engine.
func New(params Params) (*Engine, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	return &Engine{
		logger:  params.Logger,
		metrics: newMetrics(params.Registerer),
		cfg:     params.Config,
		mem:     params.Allocator,
		planner: physical.NewPlanner(params.Logger),
	}, nil
}

// CSV returns a builder for a query over the CSV file at path, whose header
// names the fields of s in order. The file is not opened until the query is
// executed.
func (e *Engine) CSV(path string, s schema.Schema) *logical.Builder {
	src := source.NewCSV(path, s,
		source.WithBatchSize(e.cfg.BatchSize),
		source.WithComma(e.cfg.CSV.CommaRune()),
		source.WithAllocator(e.mem),
	)
	return logical.NewBuilder(logical.NewScan(src))
}

// Plan lowers a logical plan into a physical plan. Errors wrap
// [ErrPlanningFailed].
func (e *Engine) Plan(plan logical.Plan) (physical.Node, error) {
	node, err := e.planner.Build(plan)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlanningFailed, err)
	}
	return node, nil
}

// Execute plans the given query and returns the pipeline producing its
// results. Planning errors are returned immediately; evaluation errors are
// returned by [Pipeline.Read].
func (e *Engine) Execute(ctx context.Context, plan logical.Plan) (Pipeline, error) {
	queryID := uuid.NewString()
	logger := log.With(e.logger, "query_id", queryID)

	ctx, span := tracer.Start(ctx, "Engine.Execute", trace.WithAttributes(attribute.String("query_id", queryID)))
	defer span.End()

	start := time.Now()
	node, err := e.Plan(plan)
	if err != nil {
		level.Warn(logger).Log("msg", "failed to create physical plan", "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.metrics.queries.WithLabelValues(statusFailure).Inc()
		return nil, err
	}

	level.Debug(logger).Log(
		"msg", "finished physical planning",
		"plan", physical.PrintAsTree(node),
		"duration", time.Since(start).String(),
	)
	span.AddEvent("finished physical planning", trace.WithAttributes(attribute.String("schema", node.Schema().String())))

	pipeline := executor.Run(ctx, executor.Config{Allocator: e.mem}, node, logger)
	return &queryPipeline{inner: pipeline, metrics: e.metrics, logger: logger}, nil
}

// Collect executes the given query and reads all of its results. The caller
// must release the returned batches. On error, no batch is returned.
func (e *Engine) Collect(ctx context.Context, plan logical.Plan) ([]arrow.Record, error) {
	pipeline, err := e.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	defer pipeline.Close()

	var out []arrow.Record
	for {
		rec, err := pipeline.Read(ctx)
		if errors.Is(err, EOF) {
			return out, nil
		} else if err != nil {
			for _, r := range out {
				r.Release()
			}
			return nil, err
		}
		out = append(out, rec)
	}
}

// queryPipeline records the metrics of a query as its results are read.
type queryPipeline struct {
	inner   Pipeline
	metrics *metrics
	logger  log.Logger

	start   time.Time
	batches int
	rows    int64
	done    bool
}

var _ Pipeline = (*queryPipeline)(nil)

func (p *queryPipeline) Read(ctx context.Context) (arrow.Record, error) {
	if p.start.IsZero() {
		p.start = time.Now()
	}

	rec, err := p.inner.Read(ctx)
	switch {
	case err == nil:
		p.batches++
		p.rows += rec.NumRows()
		p.metrics.batches.Inc()
		p.metrics.rows.Add(float64(rec.NumRows()))
	case errors.Is(err, EOF):
		p.finish(statusSuccess, nil)
	default:
		p.finish(statusFailure, err)
	}
	return rec, err
}

func (p *queryPipeline) finish(status string, err error) {
	if p.done {
		return
	}
	p.done = true

	var duration time.Duration
	if !p.start.IsZero() {
		duration = time.Since(p.start)
	}
	p.metrics.queries.WithLabelValues(status).Inc()
	p.metrics.queryDuration.Observe(duration.Seconds())

	if err != nil {
		level.Warn(p.logger).Log("msg", "error during execution", "err", err)
		return
	}
	if status == statusCanceled {
		level.Info(p.logger).Log("msg", "query closed before completion", "batches", p.batches, "rows", p.rows, "duration", duration.String())
		return
	}
	level.Info(p.logger).Log(
		"msg", "finished query execution",
		"batches", p.batches,
		"rows", p.rows,
		"duration", duration.String(),
	)
}

// Close implements Pipeline. A query closed before it was exhausted is
// recorded as canceled.
func (p *queryPipeline) Close() {
	p.finish(statusCanceled, nil)
	p.inner.Close()
}
