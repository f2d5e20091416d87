package ingest

import (
	"context"

	"github.com/theoremus-urban-solutions/routemap/tracking"
)

// Record is one observation for one entity
type Record struct {
	Fields tracking.KeyFields `json:"fields"`
	Point  tracking.Point     `json:"point"`
}

// BatchResult counts the outcome of a batch
type BatchResult struct {
	Accepted int `json:"accepted"`
	Stale    int `json:"stale"`
	Rejected int `json:"rejected"`
}

// Add sums two results
func (r BatchResult) Add(o BatchResult) BatchResult {
	return BatchResult{
		Accepted: r.Accepted + o.Accepted,
		Stale:    r.Stale + o.Stale,
		Rejected: r.Rejected + o.Rejected,
	}
}

// Sink accepts batches of records
type Sink interface {
	AddDataPoints(records []Record) BatchResult
}

// SinkFunc adapts a function to Sink
type SinkFunc func(records []Record) BatchResult

func (f SinkFunc) AddDataPoints(records []Record) BatchResult { return f(records) }

// Tee forwards every batch to all sinks and reports the first sink's result
func Tee(primary Sink, others ...Sink) Sink {
	if len(others) == 0 {
		return primary
	}
	return SinkFunc(func(records []Record) BatchResult {
		res := primary.AddDataPoints(records)
		for _, s := range others {
			s.AddDataPoints(records)
		}
		return res
	})
}

// Source delivers records to sink until ctx is done or the source fails
type Source interface {
	Name() string
	Run(ctx context.Context, sink Sink) error
}
