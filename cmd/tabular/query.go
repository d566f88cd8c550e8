package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/grafana/dskit/multierror"

	"github.com/grafana/tabular/pkg/engine"
	"github.com/grafana/tabular/pkg/engine/batch"
	"github.com/grafana/tabular/pkg/engine/planner/logical"
	"github.com/grafana/tabular/pkg/engine/planner/physical"
	"github.com/grafana/tabular/pkg/engine/schema"
)

// query describes a query over a single file. The parts are applied in the
// order where, then group-by and aggregations, then select.
type query struct {
	schema  schema.Schema
	where   logical.Expr
	groupBy []logical.Expr
	aggs    []logical.Expr
	selects []logical.Expr
}

// plan builds the logical plan of q on top of b.
func (q *query) plan(b *logical.Builder) logical.Plan {
	if q.where != nil {
		b = b.Select(q.where)
	}
	if len(q.groupBy) > 0 || len(q.aggs) > 0 {
		b = b.Aggregate(q.groupBy, q.aggs)
	}
	if len(q.selects) > 0 {
		b = b.Project(q.selects...)
	}
	return b.Plan()
}

// summary describes the results of a query.
type summary struct {
	batches  int
	rows     int64
	duration time.Duration
}

func (s summary) print(w io.Writer) {
	bold := color.New(color.Bold)
	bold.Fprint(w, "Result: ")
	fmt.Fprintf(w, "%s rows in %s batches (%s)\n",
		humanize.Comma(s.rows),
		humanize.Comma(int64(s.batches)),
		s.duration.Round(time.Microsecond),
	)
}

// runQuery executes plan and writes its results to out as CSV.
func runQuery(ctx context.Context, e *engine.Engine, cfg engine.Config, plan logical.Plan, out io.Writer) (summary, error) {
	start := time.Now()

	pipeline, err := e.Execute(ctx, plan)
	if err != nil {
		return summary{}, err
	}
	defer pipeline.Close()

	var (
		s      summary
		writer *batch.Writer
	)
	for {
		rec, err := pipeline.Read(ctx)
		if errors.Is(err, engine.EOF) {
			break
		} else if err != nil {
			return s, err
		}

		if writer == nil {
			writer = batch.NewWriter(out, rec.Schema(), cfg.CSV.Header, cfg.CSV.CommaRune())
		}
		s.batches++
		s.rows += rec.NumRows()
		err = writer.Write(rec)
		rec.Release()
		if err != nil {
			return s, err
		}
	}

	s.duration = time.Since(start)
	if writer == nil {
		return s, nil
	}
	return s, writer.Flush()
}

// explain writes the physical plan of plan to out.
func explain(e *engine.Engine, plan logical.Plan, out io.Writer) error {
	node, err := e.Plan(plan)
	if err != nil {
		return err
	}
	color.New(color.Bold).Fprintln(out, "Logical plan:")
	fmt.Fprintln(out, logical.Format(plan))
	color.New(color.Bold).Fprintln(out, "Physical plan:")
	fmt.Fprint(out, physical.PrintAsTree(node))
	return nil
}

// queryCommand runs a query over each of a set of CSV files.
type queryCommand struct {
	globals *globals

	schema  *string
	files   *[]string
	selects *string
	where   *string
	groupBy *string
	aggs    *string
	explain *bool
}

func (cmd *queryCommand) parse() (*query, error) {
	s, err := schema.Parse(*cmd.schema)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	q := &query{schema: s}

	if *cmd.where != "" {
		if q.where, err = parseExpr(*cmd.where); err != nil {
			return nil, fmt.Errorf("invalid where expression: %w", err)
		}
	}
	if *cmd.groupBy != "" {
		if q.groupBy, err = parseExprs(*cmd.groupBy); err != nil {
			return nil, fmt.Errorf("invalid group-by expressions: %w", err)
		}
	}
	if *cmd.aggs != "" {
		if q.aggs, err = parseExprs(*cmd.aggs); err != nil {
			return nil, fmt.Errorf("invalid aggregations: %w", err)
		}
	}
	if *cmd.selects != "" {
		if q.selects, err = parseExprs(*cmd.selects); err != nil {
			return nil, fmt.Errorf("invalid select expressions: %w", err)
		}
	}
	return q, nil
}

func (cmd *queryCommand) run(_ *kingpin.ParseContext) error {
	q, err := cmd.parse()
	if err != nil {
		exitWithErr(err)
	}
	e, cfg, err := cmd.globals.newEngine()
	if err != nil {
		exitWithErr(err)
	}

	if err := cmd.runFiles(context.Background(), e, cfg, q, os.Stdout, os.Stderr); err != nil {
		exitWithErr(err)
	}
	return nil
}

// runFiles runs q over every file. A failing file does not stop the
// remaining ones; all failures are returned together.
func (cmd *queryCommand) runFiles(ctx context.Context, e *engine.Engine, cfg engine.Config, q *query, out, info io.Writer) error {
	errs := multierror.New()
	for _, path := range *cmd.files {
		plan := q.plan(e.CSV(path, q.schema))

		if *cmd.explain {
			if err := explain(e, plan, out); err != nil {
				errs.Add(fmt.Errorf("%s: %w", path, err))
			}
			continue
		}

		s, err := runQuery(ctx, e, cfg, plan, out)
		if err != nil {
			errs.Add(fmt.Errorf("%s: %w", path, err))
			continue
		}
		color.New(color.FgCyan).Fprintf(info, "%s ", path)
		s.print(info)
	}
	return errs.Err()
}

func addQueryCommand(app *kingpin.Application, g *globals) {
	cmd := &queryCommand{globals: g}
	clause := app.Command("query", "Run a query over CSV files.").Action(cmd.run)
	cmd.schema = clause.Flag("schema", "Schema of the files, e.g. a:int,b:bool.").Required().String()
	cmd.files = clause.Flag("file", "CSV file to query. May be repeated.").Required().ExistingFiles()
	cmd.selects = clause.Flag("select", "Comma separated expressions to output.").String()
	cmd.where = clause.Flag("where", "Predicate rows must satisfy.").String()
	cmd.groupBy = clause.Flag("group-by", "Comma separated expressions to group rows by.").String()
	cmd.aggs = clause.Flag("agg", "Comma separated aggregations, e.g. sum(b),count(b).").String()
	cmd.explain = clause.Flag("explain", "Print the query plan instead of running it.").Bool()
}
