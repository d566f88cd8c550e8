package engine

import (
	"flag"
	"os"
	"unicode/utf8"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/grafana/tabular/pkg/engine/source"
)

// Config is the configuration block for the engine.
type Config struct {
	// BatchSize is the maximum number of rows per batch read from a source.
	BatchSize int `yaml:"batch_size"`

	CSV CSVConfig `yaml:"csv"`
}

// RegisterFlags registers the flags for the engine settings.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix("engine.", f)
}

// RegisterFlagsWithPrefix registers the flags for the engine settings with a prefix.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.IntVar(&cfg.BatchSize, prefix+"batch-size", source.DefaultBatchSize, "Maximum number of rows per batch read from a source.")
	cfg.CSV.RegisterFlagsWithPrefix(prefix+"csv.", f)
}

// Validate validates the engine settings.
func (cfg *Config) Validate() error {
	if cfg.BatchSize <= 0 {
		return errors.Errorf("invalid batch size: must be greater than 0, got %d", cfg.BatchSize)
	}
	if err := cfg.CSV.Validate(); err != nil {
		return errors.Wrap(err, "invalid csv config")
	}
	return nil
}

// CSVConfig configures how CSV files are read and query results written.
type CSVConfig struct {
	// Comma is the field delimiter. It must be a single character.
	Comma string `yaml:"comma"`
	// Header writes a line naming the output columns before query results.
	Header bool `yaml:"header"`
}

// RegisterFlagsWithPrefix registers the flags for the CSV settings with a prefix.
func (cfg *CSVConfig) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Comma, prefix+"comma", ",", "Field delimiter of CSV input and output.")
	f.BoolVar(&cfg.Header, prefix+"header", false, "Write a header line before query results.")
}

// Validate validates the CSV settings.
func (cfg *CSVConfig) Validate() error {
	if utf8.RuneCountInString(cfg.Comma) != 1 {
		return errors.Errorf("comma must be a single character, got %q", cfg.Comma)
	}
	switch r := cfg.CommaRune(); r {
	case '\r', '\n', '"', utf8.RuneError:
		return errors.Errorf("invalid comma %q", r)
	}
	return nil
}

// CommaRune returns the field delimiter.
func (cfg *CSVConfig) CommaRune() rune {
	r, _ := utf8.DecodeRuneInString(cfg.Comma)
	return r
}

// LoadConfig reads a YAML configuration file on top of the values already
// set in cfg.
func LoadConfig(path string, cfg *Config) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading config file")
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return errors.Wrapf(err, "parsing config file %s", path)
	}
	return cfg.Validate()
}
