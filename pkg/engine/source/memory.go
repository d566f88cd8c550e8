package source

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/grafana/tabular/pkg/engine/batch"
	"github.com/grafana/tabular/pkg/engine/internal/errors"
	"github.com/grafana/tabular/pkg/engine/schema"
)

// Memory is a source over records held in memory. Records are cut into
// batches of at most batchSize rows; a batch never spans two records.
type Memory struct {
	name      string
	schema    schema.Schema
	batchSize int64
	records   []arrow.Record
}

var _ Source = (*Memory)(nil)

// NewMemory returns a source over records, which must all have schema s.
// The source retains the records until [Memory.Release] is called. A
// batchSize of zero or less emits each record as a single batch.
func NewMemory(name string, s schema.Schema, batchSize int, records ...arrow.Record) (*Memory, error) {
	for i, rec := range records {
		got, err := batch.Schema(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if !got.Equal(s) {
			return nil, fmt.Errorf("%w: record %d has schema %s, expected %s", errors.ErrSchemaMismatch, i, got, s)
		}
	}
	for _, rec := range records {
		rec.Retain()
	}
	return &Memory{
		name:      name,
		schema:    s,
		batchSize: int64(batchSize),
		records:   records,
	}, nil
}

// Name implements [Source].
func (m *Memory) Name() string { return m.name }

// Schema implements [Source].
func (m *Memory) Schema() schema.Schema { return m.schema }

// Load implements [Source].
func (m *Memory) Load(_ context.Context, names []string) (RecordReader, error) {
	proj, err := newProjection(m.schema, names)
	if err != nil {
		return nil, err
	}
	return &memoryReader{source: m, projection: proj}, nil
}

// Release releases the records held by the source.
func (m *Memory) Release() {
	for _, rec := range m.records {
		rec.Release()
	}
	m.records = nil
}

type memoryReader struct {
	source     *Memory
	projection projection

	record int   // index of the current record
	offset int64 // offset of the next row in the current record
}

func (r *memoryReader) Read(ctx context.Context) (arrow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for r.record < len(r.source.records) {
		rec := r.source.records[r.record]
		if r.offset >= rec.NumRows() {
			r.record++
			r.offset = 0
			continue
		}

		end := rec.NumRows()
		if r.source.batchSize > 0 {
			end = min(r.offset+r.source.batchSize, rec.NumRows())
		}
		slice := rec.NewSlice(r.offset, end)
		r.offset = end

		out := r.projection.apply(slice)
		slice.Release()
		return out, nil
	}
	return nil, io.EOF
}

func (r *memoryReader) Close() error {
	r.record = len(r.source.records)
	return nil
}

// RowFunc returns the values of row i of a generated source. Values are
// int64 or bool, in schema order.
type RowFunc func(i int) []any

// Generator is a source synthesizing rows with a [RowFunc].
type Generator struct {
	name      string
	schema    schema.Schema
	rows      int
	batchSize int
	fn        RowFunc
	mem       memory.Allocator
}

var _ Source = (*Generator)(nil)

// NewGenerator returns a source producing rows values of schema s in batches
// of batchSize rows.
func NewGenerator(name string, s schema.Schema, rows, batchSize int, fn RowFunc) *Generator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Generator{
		name:      name,
		schema:    s,
		rows:      rows,
		batchSize: batchSize,
		fn:        fn,
		mem:       memory.DefaultAllocator,
	}
}

// Name implements [Source].
func (g *Generator) Name() string { return g.name }

// Schema implements [Source].
func (g *Generator) Schema() schema.Schema { return g.schema }

// Load implements [Source].
func (g *Generator) Load(_ context.Context, names []string) (RecordReader, error) {
	proj, err := newProjection(g.schema, names)
	if err != nil {
		return nil, err
	}
	return &generatorReader{gen: g, projection: proj}, nil
}

type generatorReader struct {
	gen        *Generator
	projection projection
	next       int
}

func (r *generatorReader) Read(ctx context.Context) (arrow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.next >= r.gen.rows {
		return nil, io.EOF
	}

	rb := array.NewRecordBuilder(r.gen.mem, r.gen.schema.Arrow())
	defer rb.Release()

	end := min(r.next+r.gen.batchSize, r.gen.rows)
	for i := r.next; i < end; i++ {
		values := r.gen.fn(i)
		if len(values) != r.gen.schema.Len() {
			return nil, fmt.Errorf("%w: row %d has %d values, expected %d", errors.ErrSchemaMismatch, i, len(values), r.gen.schema.Len())
		}
		for j, v := range values {
			switch b := rb.Field(j).(type) {
			case *array.Int64Builder:
				iv, ok := v.(int64)
				if !ok {
					return nil, fmt.Errorf("%w: row %d column %d: expected int64, got %T", errors.ErrSchemaMismatch, i, j, v)
				}
				b.Append(iv)
			case *array.BooleanBuilder:
				bv, ok := v.(bool)
				if !ok {
					return nil, fmt.Errorf("%w: row %d column %d: expected bool, got %T", errors.ErrSchemaMismatch, i, j, v)
				}
				b.Append(bv)
			}
		}
	}
	r.next = end

	rec := rb.NewRecord()
	defer rec.Release()
	return r.projection.apply(rec), nil
}

func (r *generatorReader) Close() error {
	r.next = r.gen.rows
	return nil
}
