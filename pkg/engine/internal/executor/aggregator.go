package executor

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/cespare/xxhash/v2"
	"github.com/dolthub/swiss"

	"github.com/grafana/tabular/pkg/engine/internal/errors"
	"github.com/grafana/tabular/pkg/engine/internal/types"
	"github.com/grafana/tabular/pkg/engine/schema"
)

type groupState struct {
	key          []any // grouping values, int64 or bool
	accumulators []accumulator
	next         *groupState // next group with the same digest
}

// aggregator is used to aggregate values by a set of grouping keys.
type aggregator struct {
	ops    []types.AggregationType
	groups *swiss.Map[uint64, *groupState] // groups by digest of their key
	order  []*groupState                   // groups in order of first appearance
	digest *xxhash.Digest                  // used to compute key for each group
	buf    [8]byte
}

// newAggregator creates a new aggregator computing one value per operation
// for every group.
func newAggregator(ops []types.AggregationType, groupsSizeHint int) *aggregator {
	if groupsSizeHint <= 0 {
		groupsSizeHint = 64
	}
	return &aggregator{
		ops:    ops,
		groups: swiss.NewMap[uint64, *groupState](uint32(groupsSizeHint)),
		digest: xxhash.New(),
	}
}

// Add adds row i of values to the group identified by key. It expects one
// value column per operation, in the order of the operations.
func (a *aggregator) Add(key []any, values []ColumnVector, i int) error {
	state, err := a.lookup(key, values)
	if err != nil {
		return err
	}
	for j, acc := range state.accumulators {
		arr := values[j].ToArray()
		if arr.IsNull(i) && a.ops[j] != types.AggregationTypeCount {
			continue
		}
		if err := acc.Accumulate(arr, i); err != nil {
			return fmt.Errorf("%s: %w", a.ops[j], err)
		}
	}
	return nil
}

func (a *aggregator) lookup(key []any, values []ColumnVector) (*groupState, error) {
	digest := a.hash(key)

	head, ok := a.groups.Get(digest)
	for state := head; ok && state != nil; state = state.next {
		if slices.Equal(state.key, key) {
			return state, nil
		}
	}

	// create a new slice since key is reused by the calling code
	state := &groupState{
		key:          slices.Clone(key),
		accumulators: make([]accumulator, len(a.ops)),
		next:         head,
	}
	for j, op := range a.ops {
		acc, err := newAccumulator(op, values[j].Type())
		if err != nil {
			return nil, err
		}
		state.accumulators[j] = acc
	}

	// TODO: add limits on number of groups
	a.groups.Put(digest, state)
	a.order = append(a.order, state)
	return state, nil
}

func (a *aggregator) hash(key []any) uint64 {
	a.digest.Reset()
	for i, val := range key {
		if i > 0 {
			_, _ = a.digest.Write([]byte{0}) // separator
		}
		switch val := val.(type) {
		case nil:
			_, _ = a.digest.Write([]byte{3})
		case int64:
			binary.LittleEndian.PutUint64(a.buf[:], uint64(val))
			_, _ = a.digest.Write(a.buf[:])
		case bool:
			if val {
				_, _ = a.digest.Write([]byte{1})
			} else {
				_, _ = a.digest.Write([]byte{2})
			}
		}
	}
	return a.digest.Sum64()
}

// Len returns the number of groups.
func (a *aggregator) Len() int { return len(a.order) }

// BuildRecord returns a batch of schema s holding one row per group, in
// order of first appearance: the grouping values followed by the
// aggregated values.
func (a *aggregator) BuildRecord(mem memory.Allocator, s schema.Schema) (arrow.Record, error) {
	rb := array.NewRecordBuilder(mem, s.Arrow())
	defer rb.Release()

	for _, state := range a.order {
		for col, val := range state.key {
			if err := appendValue(rb.Field(col), val); err != nil {
				return nil, err
			}
		}
		offset := len(state.key)
		for j, acc := range state.accumulators {
			if err := acc.Finalize(rb.Field(offset + j)); err != nil {
				return nil, err
			}
		}
	}

	return rb.NewRecord(), nil
}

func appendValue(b array.Builder, val any) error {
	if val == nil {
		b.AppendNull()
		return nil
	}
	switch b := b.(type) {
	case *array.Int64Builder:
		v, ok := val.(int64)
		if !ok {
			return fmt.Errorf("%w: cannot append %T to int column", errors.ErrInvariant, val)
		}
		b.Append(v)
	case *array.BooleanBuilder:
		v, ok := val.(bool)
		if !ok {
			return fmt.Errorf("%w: cannot append %T to bool column", errors.ErrInvariant, val)
		}
		b.Append(v)
	default:
		return fmt.Errorf("%w: unsupported builder %T", errors.ErrInvariant, b)
	}
	return nil
}
