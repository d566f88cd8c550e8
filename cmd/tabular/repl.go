package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"

	"github.com/grafana/tabular/pkg/engine"
	"github.com/grafana/tabular/pkg/engine/schema"
)

const replHelp = `Commands:
  schema a:int,b:bool       set the schema of loaded files
  load <file>               query the given CSV file
  where <expr>              keep rows matching expr
  group <exprs> agg <aggs>  group rows and aggregate them
  agg <aggs>                aggregate all rows
  select <exprs>            output the given expressions
  explain                   print the plan instead of running it
  help                      print this message
  quit                      exit

Clauses accumulate until a line ends with ';', which runs the query.
`

// repl reads commands line by line and runs the queries they build.
type repl struct {
	engine *engine.Engine
	cfg    engine.Config
	out    io.Writer
	info   io.Writer

	schema  schema.Schema
	file    string
	pending query
	explain bool
}

func newRepl(e *engine.Engine, cfg engine.Config, out, info io.Writer) *repl {
	return &repl{engine: e, cfg: cfg, out: out, info: info}
}

// run reads commands from in until it is exhausted or a quit command is
// read. Errors are printed and do not stop the loop.
func (r *repl) run(ctx context.Context, in io.Reader, prompt bool) error {
	reader := bufio.NewReader(in)
	for {
		if prompt {
			fmt.Fprint(r.info, r.prompt())
		}
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}

		quit, cmdErr := r.handle(ctx, line)
		if cmdErr != nil {
			color.New(color.FgRed).Fprintln(r.info, "error:", cmdErr)
		}
		if quit || errors.Is(err, io.EOF) {
			return nil
		}
	}
}

// prompt returns the prompt for the next line: a continuation prompt while
// a query is being built.
func (r *repl) prompt() string {
	if r.building() {
		return "      .. "
	}
	return "tabular> "
}

func (r *repl) building() bool {
	q := r.pending
	return r.explain || q.where != nil || len(q.groupBy) > 0 || len(q.aggs) > 0 || len(q.selects) > 0
}

// handle processes a single line. It reports whether the loop should stop.
func (r *repl) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	execute := strings.HasSuffix(line, ";")
	line = strings.TrimSpace(strings.TrimSuffix(line, ";"))

	if line != "" {
		word, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		var err error
		switch strings.ToLower(word) {
		case "quit", "exit":
			return true, nil
		case "help":
			fmt.Fprint(r.info, replHelp)
		case "schema":
			r.schema, err = schema.Parse(rest)
		case "load":
			err = r.load(rest)
		case "where":
			r.pending.where, err = parseExpr(rest)
		case "group":
			err = r.group(rest)
		case "agg":
			r.pending.aggs, err = parseExprs(rest)
		case "select":
			r.pending.selects, err = parseExprs(rest)
		case "explain":
			r.explain = true
		default:
			err = fmt.Errorf("unknown command %q, type help for a list of commands", word)
		}
		if err != nil {
			r.reset()
			return false, err
		}
	}

	if !execute {
		return false, nil
	}
	defer r.reset()
	return false, r.execute(ctx)
}

func (r *repl) load(path string) error {
	if path == "" {
		return errors.New("load requires a file")
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}
	r.file = path
	return nil
}

func (r *repl) group(rest string) error {
	keys, aggs, found := cutKeyword(rest, "agg")
	if !found {
		return errors.New("group requires aggregations, e.g. group a agg sum(b)")
	}

	var err error
	if r.pending.groupBy, err = parseExprs(keys); err != nil {
		return err
	}
	r.pending.aggs, err = parseExprs(aggs)
	return err
}

// cutKeyword splits s around the first occurrence of the case-insensitive
// word.
func cutKeyword(s, word string) (before, after string, found bool) {
	fields := strings.Fields(s)
	for i, f := range fields {
		if strings.EqualFold(f, word) {
			return strings.Join(fields[:i], " "), strings.Join(fields[i+1:], " "), true
		}
	}
	return s, "", false
}

func (r *repl) execute(ctx context.Context) error {
	if r.file == "" {
		return errors.New("no file loaded, use load <file>")
	}
	if r.schema.Len() == 0 {
		return errors.New("no schema set, use schema a:int,...")
	}

	q := r.pending
	q.schema = r.schema
	plan := q.plan(r.engine.CSV(r.file, r.schema))

	if r.explain {
		return explain(r.engine, plan, r.out)
	}
	s, err := runQuery(ctx, r.engine, r.cfg, plan, r.out)
	if err != nil {
		return err
	}
	s.print(r.info)
	return nil
}

// reset discards the clauses of the pending query. The schema and the
// loaded file are kept.
func (r *repl) reset() {
	r.pending = query{}
	r.explain = false
}

func addReplCommand(app *kingpin.Application, g *globals) {
	app.Command("repl", "Start an interactive query shell.").Action(func(_ *kingpin.ParseContext) error {
		e, cfg, err := g.newEngine()
		if err != nil {
			exitWithErr(err)
		}
		fmt.Fprintln(os.Stderr, "Type help for a list of commands.")
		return newRepl(e, cfg, os.Stdout, os.Stderr).run(context.Background(), os.Stdin, true)
	})
}
