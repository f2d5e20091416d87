package redissrc

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/routemap/ingest"
	"github.com/theoremus-urban-solutions/routemap/tracking"
)

type sink struct {
	mu      sync.Mutex
	records []ingest.Record
}

func (s *sink) AddDataPoints(records []ingest.Record) ingest.BatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return ingest.BatchResult{Accepted: len(records)}
}

func (s *sink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func TestHandle(t *testing.T) {
	src := New(nil, "vehicles")
	assert.Equal(t, "redis:vehicles", src.Name())

	out := &sink{}
	src.handle(`{"group__id":"A","point__ts__":"1","point__lat__":"2","point__lon__":"3"}`, out)
	src.handle(`{`, out)
	assert.Equal(t, 1, out.len())
	assert.Equal(t, tracking.KeyFields{"id": "A"}, out.records[0].Fields)
}

func TestRun_Integration(t *testing.T) {
	addr := os.Getenv("ROUTEMAP_REDIS_ADDR")
	if addr == "" {
		t.Skip("ROUTEMAP_REDIS_ADDR not set; skipping integration test")
	}
	client := NewClient(addr)
	defer client.Close()

	channel := fmt.Sprintf("routemap_test_%d", time.Now().UnixNano())
	src := New(client, channel)
	out := &sink{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, out) }()

	records := []ingest.Record{{Fields: tracking.KeyFields{"id": "A"}, Point: tracking.Point{TS: 1, Lat: 2, Lon: 3}}}
	require.Eventually(t, func() bool {
		require.NoError(t, Publish(context.Background(), client, channel, records))
		return out.len() > 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
