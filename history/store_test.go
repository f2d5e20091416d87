package history

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/routemap/ingest"
	"github.com/theoremus-urban-solutions/routemap/tracking"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func rec(id string, ts, lat, lon float64) ingest.Record {
	return ingest.Record{
		Fields: tracking.KeyFields{"id": id},
		Point:  tracking.Point{TS: ts, Lat: lat, Lon: lon},
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "")
	assert.Error(t, err)
}

func TestStore_AppendQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	withRaw := rec("A", 20, 2, 2)
	withRaw.Point.Raw = map[string]any{"speed": 12.5}

	n, err := s.Append(ctx, "test", []ingest.Record{
		rec("A", 10, 1, 1),
		rec("B", 15, 5, 5),
		withRaw,
		rec("C", math.NaN(), 0, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := s.Query(ctx, 12, 30)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].Fields["id"])
	assert.Equal(t, 20.0, got[1].Point.TS)
	assert.Equal(t, map[string]any{"speed": 12.5}, got[1].Point.Raw)
	assert.Nil(t, got[0].Point.Raw)

	from, to, ok, err := s.Bounds(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10.0, from)
	assert.Equal(t, 20.0, to)

	removed, err := s.Prune(ctx, 15)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestStore_EmptyBounds(t *testing.T) {
	s := openTestStore(t)
	_, _, ok, err := s.Bounds(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_MigrateVersion(t *testing.T) {
	s := openTestStore(t)
	v, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)

	// applying again is a no-op
	require.NoError(t, s.MigrateUp())
}

func TestOpen_WithoutMigrations(t *testing.T) {
	s, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "bare.db"), WithoutMigrations())
	require.NoError(t, err)
	defer s.Close()

	v, _, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)

	require.NoError(t, s.MigrateUp())
	require.NoError(t, s.MigrateDown())
	v, _, err = s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)
}

func TestDialect_Rebind(t *testing.T) {
	q := "SELECT * FROM positions WHERE ts >= ? AND ts <= ?"
	assert.Equal(t, q, dialects[DriverSQLite].rebind(q))
	assert.Equal(t, "SELECT * FROM positions WHERE ts >= $1 AND ts <= $2", dialects[DriverPostgres].rebind(q))
}

type batchSink struct {
	batches [][]ingest.Record
}

func (b *batchSink) AddDataPoints(records []ingest.Record) ingest.BatchResult {
	b.batches = append(b.batches, records)
	return ingest.BatchResult{Accepted: len(records)}
}

func TestReplayAndRecorder(t *testing.T) {
	s := openTestStore(t)

	recorder := NewRecorder(s, "feed")
	res := recorder.AddDataPoints([]ingest.Record{rec("A", 1, 0, 0), rec("A", 2, 1, 1), rec("B", 3, 2, 2), rec("X", math.Inf(1), 0, 0)})
	assert.Equal(t, ingest.BatchResult{Accepted: 3, Rejected: 1}, res)

	sink := &batchSink{}
	replay := NewReplay(s, 0, 10, 2)
	require.NoError(t, replay.Run(context.Background(), sink))
	require.Len(t, sink.batches, 2)
	assert.Len(t, sink.batches[0], 2)
	assert.Equal(t, 3.0, sink.batches[1][0].Point.TS)
}
