package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchResult_Add(t *testing.T) {
	got := BatchResult{Accepted: 1, Stale: 2}.Add(BatchResult{Accepted: 3, Rejected: 4})
	assert.Equal(t, BatchResult{Accepted: 4, Stale: 2, Rejected: 4}, got)
}

func TestTee(t *testing.T) {
	var seen [][]Record
	primary := SinkFunc(func(records []Record) BatchResult {
		return BatchResult{Accepted: len(records)}
	})
	other := SinkFunc(func(records []Record) BatchResult {
		seen = append(seen, records)
		return BatchResult{Rejected: len(records)}
	})

	batch := []Record{{}, {}}
	res := Tee(primary, other).AddDataPoints(batch)
	assert.Equal(t, BatchResult{Accepted: 2}, res)
	assert.Len(t, seen, 1)
	assert.Len(t, seen[0], 2)
}
