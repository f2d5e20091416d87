package history

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/routemap/ingest"
)

// DefaultBatchSize is the number of records handed to the sink at once during replay
const DefaultBatchSize = 500

// Replay is an ingest.Source that feeds a stored time range to a sink once
type Replay struct {
	store     *Store
	from, to  float64
	batchSize int
}

// NewReplay creates a source for records with from <= ts <= to
func NewReplay(store *Store, from, to float64, batchSize int) *Replay {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Replay{store: store, from: from, to: to, batchSize: batchSize}
}

func (r *Replay) Name() string { return fmt.Sprintf("history:%v-%v", r.from, r.to) }

// Run sends the range in timestamp order and returns when done
func (r *Replay) Run(ctx context.Context, sink ingest.Sink) error {
	records, err := r.store.Query(ctx, r.from, r.to)
	if err != nil {
		return err
	}
	var total ingest.BatchResult
	for start := 0; start < len(records); start += r.batchSize {
		if err := ctx.Err(); err != nil {
			return nil
		}
		end := min(start+r.batchSize, len(records))
		total = total.Add(sink.AddDataPoints(records[start:end]))
	}
	r.store.log.Info("replay done",
		zap.Int("records", len(records)),
		zap.Int("accepted", total.Accepted),
		zap.Int("stale", total.Stale),
		zap.Int("rejected", total.Rejected))
	return nil
}

// Recorder is an ingest.Sink that archives every batch under a source name
type Recorder struct {
	store   *Store
	source  string
	timeout time.Duration
}

func NewRecorder(store *Store, source string) *Recorder {
	return &Recorder{store: store, source: source, timeout: 10 * time.Second}
}

func (r *Recorder) AddDataPoints(records []ingest.Record) ingest.BatchResult {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	n, err := r.store.Append(ctx, r.source, records)
	if err != nil {
		r.store.log.Error("append failed", zap.String("source", r.source), zap.Error(err))
		return ingest.BatchResult{Rejected: len(records)}
	}
	return ingest.BatchResult{Accepted: n, Rejected: len(records) - n}
}
