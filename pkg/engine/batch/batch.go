// Package batch builds and renders the row batches exchanged between
// operators. A batch is an [arrow.Record] whose columns are int64 or boolean
// arrays, one per field of a [schema.Schema].
package batch

import (
	"bytes"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/grafana/tabular/pkg/engine/internal/errors"
	"github.com/grafana/tabular/pkg/engine/schema"
)

// New creates a batch with the given schema and columns. Every column must
// match the type of its field and all columns must have the same length,
// which becomes the row count of the batch.
//
// The returned record holds its own reference to each column; callers keep
// ownership of the references they passed in.
func New(s schema.Schema, cols []arrow.Array) (arrow.Record, error) {
	if len(cols) != s.Len() {
		return nil, fmt.Errorf("%w: schema has %d fields, got %d columns", errors.ErrSchemaMismatch, s.Len(), len(cols))
	}

	var rows int
	for i, col := range cols {
		field := s.Field(i)
		if got := schema.FromArrowType(col.DataType()); got != field.Type {
			return nil, fmt.Errorf("%w: column %d (%s) has type %s, expected %s", errors.ErrSchemaMismatch, i, field.Name, got, field.Type)
		}
		if i == 0 {
			rows = col.Len()
			continue
		}
		if col.Len() != rows {
			return nil, fmt.Errorf("%w: column %d (%s) has %d rows, expected %d", errors.ErrSchemaMismatch, i, field.Name, col.Len(), rows)
		}
	}

	return array.NewRecord(s.Arrow(), cols, int64(rows)), nil
}

// Empty returns a batch with the given schema and no rows.
func Empty(mem memory.Allocator, s schema.Schema) arrow.Record {
	rb := array.NewRecordBuilder(mem, s.Arrow())
	defer rb.Release()
	return rb.NewRecord()
}

// Schema returns the schema of a batch.
func Schema(rec arrow.Record) (schema.Schema, error) {
	return schema.FromArrow(rec.Schema())
}

// Write renders rec as comma separated values to w: one line per row,
// columns in schema order, no header.
func Write(w io.Writer, rec arrow.Record) error {
	bw := NewWriter(w, rec.Schema(), false, ',')
	if err := bw.Write(rec); err != nil {
		return err
	}
	return bw.Flush()
}

// Writer renders a sequence of batches sharing one schema.
type Writer struct {
	w *csv.Writer
}

// NewWriter returns a writer for batches of schema s. If header is true, a
// line with the field names is written before the first batch.
func NewWriter(w io.Writer, s *arrow.Schema, header bool, comma rune) *Writer {
	return &Writer{w: csv.NewWriter(w, s, csv.WithHeader(header), csv.WithComma(comma))}
}

// Write renders the rows of rec.
func (w *Writer) Write(rec arrow.Record) error {
	if err := w.w.Write(rec); err != nil {
		return fmt.Errorf("writing batch: %w", err)
	}
	return nil
}

// Flush writes any buffered output.
func (w *Writer) Flush() error { return w.w.Flush() }

// Format returns the text rendering of rec produced by [Write], without the
// trailing newline. It is meant for inspection and is not parsed back.
func Format(rec arrow.Record) string {
	var buf bytes.Buffer
	if err := Write(&buf, rec); err != nil {
		return fmt.Sprintf("<invalid batch: %v>", err)
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
}
