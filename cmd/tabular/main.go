// Command tabular runs queries over CSV files with the tabular engine.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/flagext"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/tabular/pkg/engine"
)

// globals holds the flags shared by every command.
type globals struct {
	logLevel   string
	configFile string

	batchSize         int
	batchSizeSet      bool
	comma             string
	commaSet          bool
	header, headerSet bool
}

// config loads the engine configuration. Flags given on the command line
// take precedence over the config file, which takes precedence over the
// defaults.
func (g *globals) config() (engine.Config, error) {
	var cfg engine.Config
	flagext.DefaultValues(&cfg)
	if g.configFile != "" {
		if err := engine.LoadConfig(g.configFile, &cfg); err != nil {
			return cfg, err
		}
	}
	if g.batchSizeSet {
		cfg.BatchSize = g.batchSize
	}
	if g.commaSet {
		cfg.CSV.Comma = g.comma
	}
	if g.headerSet {
		cfg.CSV.Header = g.header
	}
	return cfg, cfg.Validate()
}

// newEngine builds an engine from the global flags.
func (g *globals) newEngine() (*engine.Engine, engine.Config, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, cfg, err
	}
	e, err := engine.New(engine.Params{
		Logger:     newLogger(g.logLevel),
		Registerer: prometheus.NewRegistry(),
		Config:     cfg,
	})
	return e, cfg, err
}

func newLogger(lvl string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	var opt level.Option
	switch lvl {
	case "debug":
		opt = level.AllowDebug()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		opt = level.AllowInfo()
	}
	return level.NewFilter(logger, opt)
}

func exitWithErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}

func main() {
	app := kingpin.New("tabular", "A columnar query engine for CSV files.")
	app.HelpFlag.Short('h')

	g := &globals{}
	app.Flag("log.level", "Only log messages with the given severity or above.").Default("warn").EnumVar(&g.logLevel, "debug", "info", "warn", "error")
	app.Flag("config.file", "YAML file to load the engine configuration from.").ExistingFileVar(&g.configFile)
	app.Flag("batch-size", "Maximum number of rows per batch read from a source.").IsSetByUser(&g.batchSizeSet).IntVar(&g.batchSize)
	app.Flag("comma", "Field delimiter of CSV input and output.").IsSetByUser(&g.commaSet).StringVar(&g.comma)
	app.Flag("header", "Write a header line before query results.").IsSetByUser(&g.headerSet).BoolVar(&g.header)

	addQueryCommand(app, g)
	addReplCommand(app, g)
	addBenchCommand(app, g)

	if _, err := app.Parse(os.Args[1:]); err != nil {
		exitWithErr(err)
	}
}
