// Package source provides the row sources scanned by the engine. A source
// knows its schema and produces a lazy, finite sequence of batches for a
// requested projection of its fields.
package source

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/grafana/tabular/pkg/engine/schema"
)

// DefaultBatchSize is the number of rows per batch used when a source is not
// configured otherwise.
const DefaultBatchSize = 1000

// Source is a table that can be scanned.
type Source interface {
	// Name identifies the source in plans and log messages.
	Name() string
	// Schema returns the full schema of the source.
	Schema() schema.Schema
	// Load opens the source for reading the projected fields, in the order
	// of projection. An empty projection reads all fields.
	Load(ctx context.Context, projection []string) (RecordReader, error)
}

// RecordReader is a forward-only sequence of batches.
type RecordReader interface {
	// Read returns the next batch, which is owned by the caller. Read
	// returns io.EOF once the sequence is exhausted.
	Read(ctx context.Context) (arrow.Record, error)
	// Close releases all resources held by the reader. It is safe to call
	// Close multiple times and before the sequence is exhausted.
	Close() error
}

// projection binds a list of field names to positions of a full schema.
type projection struct {
	schema  schema.Schema
	indices []int
}

func newProjection(full schema.Schema, names []string) (projection, error) {
	if len(names) == 0 {
		names = full.FieldNames()
	}
	projected, err := full.Select(names...)
	if err != nil {
		return projection{}, fmt.Errorf("invalid projection: %w", err)
	}
	indices := make([]int, projected.Len())
	for i, name := range projected.FieldNames() {
		indices[i] = full.Index(name)
	}
	return projection{schema: projected, indices: indices}, nil
}

// apply returns a new record holding the projected columns of rec. The
// caller keeps ownership of rec.
func (p projection) apply(rec arrow.Record) arrow.Record {
	cols := make([]arrow.Array, len(p.indices))
	for i, idx := range p.indices {
		cols[i] = rec.Column(idx)
	}
	return array.NewRecord(p.schema.Arrow(), cols, rec.NumRows())
}
