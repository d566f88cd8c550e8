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

	"github.com/grafana/tabular/pkg/engine"
	"github.com/grafana/tabular/pkg/engine/planner/logical"
	"github.com/grafana/tabular/pkg/engine/schema"
	"github.com/grafana/tabular/pkg/engine/source"
)

var benchSchema = schema.MustNew(
	schema.Field{Name: "a", Type: schema.Int},
	schema.Field{Name: "b", Type: schema.Int},
)

// benchPlan projects the arithmetic operators over a generated source where
// a=i and b=i+1.
func benchPlan(rows, batchSize int) logical.Plan {
	src := source.NewGenerator("bench", benchSchema, rows, batchSize, func(i int) []any {
		return []any{int64(i), int64(i + 1)}
	})

	a, b := logical.Col("a"), logical.Col("b")
	return logical.NewBuilder(logical.NewScan(src)).
		Project(a, b, logical.Add(a, b), logical.Sub(a, b), logical.Mul(a, b), logical.Div(a, b), logical.Mod(a, b)).
		Plan()
}

// benchCommand measures the throughput of a projection over generated rows.
type benchCommand struct {
	globals *globals
	rows    *int
}

func (cmd *benchCommand) run(_ *kingpin.ParseContext) error {
	e, cfg, err := cmd.globals.newEngine()
	if err != nil {
		exitWithErr(err)
	}
	s, err := bench(context.Background(), e, benchPlan(*cmd.rows, cfg.BatchSize))
	if err != nil {
		exitWithErr(err)
	}
	printBench(os.Stdout, s)
	return nil
}

// bench drains the results of plan, discarding them.
func bench(ctx context.Context, e *engine.Engine, plan logical.Plan) (summary, error) {
	start := time.Now()

	pipeline, err := e.Execute(ctx, plan)
	if err != nil {
		return summary{}, err
	}
	defer pipeline.Close()

	var s summary
	for {
		rec, err := pipeline.Read(ctx)
		if errors.Is(err, engine.EOF) {
			break
		} else if err != nil {
			return s, err
		}
		s.batches++
		s.rows += rec.NumRows()
		rec.Release()
	}
	s.duration = time.Since(start)
	return s, nil
}

func printBench(w io.Writer, s summary) {
	s.print(w)

	var perSecond float64
	if s.duration > 0 {
		perSecond = float64(s.rows) / s.duration.Seconds()
	}
	color.New(color.Bold).Fprint(w, "Throughput: ")
	fmt.Fprintf(w, "%s rows/s\n", humanize.CommafWithDigits(perSecond, 0))
}

func addBenchCommand(app *kingpin.Application, g *globals) {
	cmd := &benchCommand{globals: g}
	clause := app.Command("bench", "Measure the throughput of an arithmetic projection over generated rows.").Action(cmd.run)
	cmd.rows = clause.Flag("rows", "Number of rows to generate.").Default("1000000").Int()
}
