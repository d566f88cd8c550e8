package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/grafana/tabular/pkg/engine/internal/errors"
	"github.com/grafana/tabular/pkg/engine/schema"
)

// CSV is a source reading a comma separated file. The first line of the file
// is a header naming the fields of the schema, in schema order.
type CSV struct {
	path   string
	schema schema.Schema

	batchSize int
	comma     rune
	mem       memory.Allocator
}

var _ Source = (*CSV)(nil)

// CSVOption configures a [CSV] source.
type CSVOption func(*CSV)

// WithBatchSize sets the maximum number of rows per batch.
func WithBatchSize(n int) CSVOption {
	return func(c *CSV) { c.batchSize = n }
}

// WithComma sets the field delimiter.
func WithComma(r rune) CSVOption {
	return func(c *CSV) { c.comma = r }
}

// WithAllocator sets the allocator used for the batches read from the file.
func WithAllocator(mem memory.Allocator) CSVOption {
	return func(c *CSV) { c.mem = mem }
}

// NewCSV returns a source reading the file at path with schema s.
func NewCSV(path string, s schema.Schema, opts ...CSVOption) *CSV {
	c := &CSV{
		path:      path,
		schema:    s,
		batchSize: DefaultBatchSize,
		comma:     ',',
		mem:       memory.DefaultAllocator,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.batchSize <= 0 {
		c.batchSize = DefaultBatchSize
	}
	return c
}

// Name implements [Source].
func (c *CSV) Name() string { return c.path }

// Schema implements [Source].
func (c *CSV) Schema() schema.Schema { return c.schema }

// Load implements [Source]. The file is opened immediately and closed once
// the returned reader is exhausted, fails, or is closed.
func (c *CSV) Load(_ context.Context, names []string) (RecordReader, error) {
	proj, err := newProjection(c.schema, names)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("opening csv source: %w", err)
	}

	r := csv.NewReader(f, c.schema.Arrow(),
		csv.WithHeader(true),
		csv.WithChunk(c.batchSize),
		csv.WithComma(c.comma),
		csv.WithAllocator(c.mem),
	)
	return &csvReader{
		name:       c.path,
		file:       f,
		reader:     r,
		projection: proj,
		expected:   c.schema.FieldNames(),
	}, nil
}

type csvReader struct {
	name       string
	file       *os.File
	reader     *csv.Reader
	projection projection

	expected      []string
	headerChecked bool
	closed        bool
}

func (r *csvReader) Read(ctx context.Context) (arrow.Record, error) {
	if r.closed {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	more := r.reader.Next()
	// Parse failures are reported after Next returned a record with nulls.
	if err := r.reader.Err(); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("reading %s: %w", r.name, err)
	}
	// The header has been read once Next returns, even for a file without
	// data rows.
	if err := r.checkHeaderOnce(); err != nil {
		_ = r.Close()
		return nil, err
	}
	if !more {
		_ = r.Close()
		return nil, io.EOF
	}

	return r.projection.apply(r.reader.Record()), nil
}

func (r *csvReader) checkHeaderOnce() error {
	if r.headerChecked {
		return nil
	}
	r.headerChecked = true
	return r.checkHeader(r.reader.Schema())
}

func (r *csvReader) checkHeader(header *arrow.Schema) error {
	got := make([]string, header.NumFields())
	for i, f := range header.Fields() {
		got[i] = f.Name
	}
	if !slices.Equal(got, r.expected) {
		return fmt.Errorf("%w: header of %s is %v, expected %v", errors.ErrSchemaMismatch, r.name, got, r.expected)
	}
	return nil
}

func (r *csvReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.reader.Release()
	return r.file.Close()
}
