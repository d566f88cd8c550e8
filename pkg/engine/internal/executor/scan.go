package executor

import (
	"context"
	"errors"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/grafana/tabular/pkg/engine/source"
)

// scanPipeline forwards the batches of a source reader.
type scanPipeline struct {
	reader source.RecordReader
	logger log.Logger
	closed bool
}

var _ Pipeline = (*scanPipeline)(nil)

func newScanPipeline(reader source.RecordReader, logger log.Logger) *scanPipeline {
	return &scanPipeline{reader: reader, logger: logger}
}

// Read implements Pipeline.
func (s *scanPipeline) Read(ctx context.Context) (arrow.Record, error) {
	if s.closed {
		return nil, EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, err := s.reader.Read(ctx)
	if errors.Is(err, io.EOF) {
		return nil, EOF
	}
	return rec, err
}

// Close implements Pipeline.
func (s *scanPipeline) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if err := s.reader.Close(); err != nil {
		level.Warn(s.logger).Log("msg", "failed to close source reader", "err", err)
	}
}
