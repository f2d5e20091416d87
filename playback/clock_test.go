package playback

import (
	"math"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/routemap/ingest"
	"github.com/theoremus-urban-solutions/routemap/internal/timeutil"
	"github.com/theoremus-urban-solutions/routemap/mapsurface"
	"github.com/theoremus-urban-solutions/routemap/tracking"
)

func newTestClock(t *testing.T, opts ...Option) (*Clock, *mapsurface.Recorder, *timeutil.MockClock) {
	t.Helper()
	rec := mapsurface.NewRecorder()
	mc := timeutil.NewMockClock(time.Unix(0, 0))
	base := []Option{
		WithClock(mc),
		WithRegistryOptions(tracking.WithColorPicker(tracking.CycleColors(nil))),
	}
	c, err := New(rec, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, rec, mc
}

func record(id string, ts, lat, lon float64) ingest.Record {
	return ingest.Record{
		Fields: tracking.KeyFields{"id": id},
		Point:  tracking.Point{TS: ts, Lat: lat, Lon: lon},
	}
}

func currentTime(c *Clock) float64 {
	t, _ := c.CurrentTime()
	return t
}

func TestNew_MissingSurface(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, tracking.ErrMissingMapSurface)
}

func TestNew_InvalidRate(t *testing.T) {
	_, err := New(mapsurface.NewRecorder(), WithSpeed(0))
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestClock_Defaults(t *testing.T) {
	c, _, _ := newTestClock(t)
	s := c.Status()
	assert.Equal(t, Idle, s.State)
	assert.Equal(t, DefaultSpeed, s.Speed)
	assert.Equal(t, DefaultRefreshRate, s.RefreshRate)
	assert.True(t, s.Realtime)
	require.NotNil(t, s.TimeWindow)
	assert.Equal(t, DefaultTimeWindow, *s.TimeWindow)
	assert.Nil(t, s.CurrentTime)
	assert.True(t, s.ShowAllObjects)
}

func TestClock_PlayWithoutBoundsIsNoop(t *testing.T) {
	c, _, mc := newTestClock(t, WithRealtime(false))
	c.Play()
	assert.False(t, c.Playing())
	assert.Equal(t, 0, mc.ActiveTickers())
	_, ok := c.CurrentTime()
	assert.False(t, ok)
}

func TestClock_HistoricalPlayback(t *testing.T) {
	c, rec, mc := newTestClock(t, WithRealtime(false), WithSpeed(50), WithRefreshRate(10), WithTimeWindow(0))
	res := c.AddDataPoints([]ingest.Record{record("A", 0, 0, 0), record("A", 100, 10, 10)})
	assert.Equal(t, ingest.BatchResult{Accepted: 2}, res)
	assert.Equal(t, Ready, c.State())

	c.Play()
	require.True(t, c.Playing())
	assert.Equal(t, 0.0, currentTime(c), "playback starts at the begin time")

	for i := 1; i <= 21; i++ {
		mc.Advance(100 * time.Millisecond)
		want := 5.0 * float64(i)
		require.Eventually(t, func() bool { return currentTime(c) == want },
			time.Second, time.Millisecond, "tick %d", i)

		if want == 50 {
			scene := rec.Snapshot()
			require.Len(t, scene.Markers, 1)
			assert.InDelta(t, 5.0, scene.Markers[0].Position.Lat, 1e-9)
		}
	}

	require.Eventually(t, func() bool { return !c.Playing() }, time.Second, time.Millisecond)
	assert.Equal(t, 105.0, currentTime(c), "the overshooting tick is kept")
	assert.Equal(t, Ready, c.State())
	assert.Equal(t, 0, mc.ActiveTickers())

	mc.Advance(100 * time.Millisecond)
	assert.Equal(t, 105.0, currentTime(c))
}

func TestClock_StaleTickIgnored(t *testing.T) {
	c, _, _ := newTestClock(t, WithRealtime(false), WithTimeWindow(0))
	c.AddDataPoints([]ingest.Record{record("A", 0, 0, 0), record("A", 100, 1, 1)})
	c.Play()

	c.mu.Lock()
	stale := c.timer
	c.mu.Unlock()
	require.NotNil(t, stale)

	c.Pause()
	c.tick(stale)
	assert.Equal(t, 0.0, currentTime(c), "a tick from a paused timer must not advance time")

	c.Play()
	c.tick(stale)
	assert.Equal(t, 0.0, currentTime(c), "a tick from a previous session must not advance time")
}

func TestClock_PlayPauseIdempotent(t *testing.T) {
	c, _, mc := newTestClock(t, WithRealtime(false))
	c.AddDataPoints([]ingest.Record{record("A", 0, 0, 0), record("A", 100, 1, 1)})

	c.Play()
	c.Play()
	assert.Equal(t, 1, mc.ActiveTickers(), "play while playing starts nothing new")

	c.Pause()
	c.Pause()
	assert.False(t, c.Playing())
	assert.Equal(t, 0, mc.ActiveTickers())
}

func TestClock_RealtimePlayJumpsToEnd(t *testing.T) {
	c, rec, mc := newTestClock(t)
	c.AddDataPoints([]ingest.Record{record("A", 10, 1, 1), record("A", 20, 2, 2)})

	c.Play()
	assert.Equal(t, 20.0, currentTime(c))
	assert.False(t, c.Playing(), "real-time mode never starts a timer")
	assert.Equal(t, 0, mc.ActiveTickers())

	scene := rec.Snapshot()
	require.Len(t, scene.Markers, 1)
	assert.Equal(t, mapsurface.LatLon{Lat: 2, Lon: 2}, scene.Markers[0].Position)
}

func TestClock_RealtimeDropsStalePoints(t *testing.T) {
	c, _, _ := newTestClock(t)
	c.AddDataPoints([]ingest.Record{record("A", 10, 1, 1), record("A", 20, 2, 2)})
	c.Play()

	res := c.AddDataPoints([]ingest.Record{
		record("B", 15, 1, 1),
		record("B", 20, 1, 1),
		record("B", 25, 1, 1),
	})
	assert.Equal(t, ingest.BatchResult{Accepted: 1, Stale: 2}, res)
	end, _ := c.EndTime()
	assert.Equal(t, 25.0, end)
}

func TestClock_HistoricalRouteWaitsForTrackStart(t *testing.T) {
	c, rec, _ := newTestClock(t, WithRealtime(false), WithTimeWindow(0))
	c.AddDataPoints([]ingest.Record{
		record("A", 0, 0, 0), record("A", 100, 1, 1),
		record("B", 50, 2, 2), record("B", 100, 3, 3),
	})
	c.Play()
	require.Equal(t, 0.0, currentTime(c))

	routes := func() []string {
		var titles []string
		for _, p := range rec.Snapshot().Polylines {
			titles = append(titles, p.Title)
		}
		sort.Strings(titles)
		return titles
	}
	if diff := cmp.Diff([]string{"id: A"}, routes()); diff != "" {
		t.Errorf("routes before B starts (-want +got):\n%s", diff)
	}
	for _, tv := range c.Tracks() {
		assert.Equal(t, tv.Position != nil, tv.RouteVisible, tv.Title)
	}

	c.SetCurrentTime(60)
	if diff := cmp.Diff([]string{"id: A", "id: B"}, routes()); diff != "" {
		t.Errorf("routes after B starts (-want +got):\n%s", diff)
	}
}

func TestClock_RepeatedSamplesAreStale(t *testing.T) {
	c, rec, _ := newTestClock(t, WithRealtime(false))
	batch := []ingest.Record{record("A", 10, 1, 1), record("A", 20, 2, 2)}
	require.Equal(t, ingest.BatchResult{Accepted: 2}, c.AddDataPoints(batch))

	res := c.AddDataPoints(append(batch[1:], record("A", 20, 2, 3)))
	assert.Equal(t, ingest.BatchResult{Accepted: 1, Stale: 1}, res)

	tv := c.Tracks()
	require.Len(t, tv, 1)
	assert.Equal(t, 3, tv[0].Points)
	c.Play()
	require.Len(t, rec.Snapshot().Polylines, 1)
	assert.Len(t, rec.Snapshot().Polylines[0].Path, 3)
}

func TestClock_RejectedPointsDoNotStopBatch(t *testing.T) {
	c, _, _ := newTestClock(t, WithRealtime(false))
	res := c.AddDataPoints([]ingest.Record{
		record("A", 10, 1, 1),
		record("A", 5, 1, 1),
		record("B", math.NaN(), 1, 1),
		record("C", 30, 1, 1),
	})
	assert.Equal(t, ingest.BatchResult{Accepted: 2, Rejected: 2}, res)

	begin, _ := c.BeginTime()
	end, _ := c.EndTime()
	assert.Equal(t, 10.0, begin, "rejected points do not widen the bounds")
	assert.Equal(t, 30.0, end)
	assert.Len(t, c.Tracks(), 2)
}

func TestClock_WindowClampsBegin(t *testing.T) {
	c, _, _ := newTestClock(t, WithTimeWindow(60))
	c.AddDataPoints([]ingest.Record{record("A", 0, 0, 0), record("A", 100, 1, 1)})
	begin, _ := c.BeginTime()
	assert.Equal(t, 40.0, begin)
}

func TestClock_RealtimeWindowEviction(t *testing.T) {
	c, _, _ := newTestClock(t, WithTimeWindow(60))
	c.AddDataPoints([]ingest.Record{record("A", 0, 0, 0), record("A", 30, 1, 1), record("A", 65, 2, 2)})
	c.Play()

	tracks := c.Tracks()
	require.Len(t, tracks, 1)
	assert.Equal(t, 2, tracks[0].Points)
}

func TestClock_ClearsFullyEvictedTracks(t *testing.T) {
	c, _, _ := newTestClock(t, WithTimeWindow(60))
	var removed int
	c.Subscribe(func(e tracking.Event) {
		if e.Type == tracking.TrackRemoved {
			removed++
		}
	})
	c.AddDataPoints([]ingest.Record{record("A", 0, 0, 0), record("B", 1000, 1, 1)})
	c.Play()

	tracks := c.Tracks()
	require.Len(t, tracks, 1)
	assert.Equal(t, "id: B", tracks[0].Title)
	assert.Equal(t, 1, removed)
}

func TestClock_AddDataWidensUnconditionally(t *testing.T) {
	c, _, _ := newTestClock(t)
	c.AddDataPoints([]ingest.Record{record("A", 10, 1, 1), record("A", 20, 2, 2)})
	c.Play()

	_, err := c.AddData(tracking.KeyFields{"id": "B"}, tracking.Point{TS: 5, Lat: 1, Lon: 1})
	require.NoError(t, err)
	begin, _ := c.BeginTime()
	assert.Equal(t, 5.0, begin)
}

func TestClock_RemoveAllObjects(t *testing.T) {
	c, rec, _ := newTestClock(t, WithRealtime(false))
	c.AddDataPoints([]ingest.Record{record("A", 0, 0, 0), record("A", 100, 1, 1)})
	c.Play()
	c.SetCurrentTime(50)

	c.RemoveAllObjects()
	s := c.Status()
	assert.Equal(t, Idle, s.State)
	assert.Nil(t, s.CurrentTime)
	assert.Nil(t, s.BeginTime)
	assert.Nil(t, s.EndTime)
	assert.Equal(t, 0, s.Tracks)
	assert.Empty(t, rec.Snapshot().Markers)
	assert.Empty(t, rec.Snapshot().Polylines)
}

func TestClock_SetRealtimePauses(t *testing.T) {
	c, _, _ := newTestClock(t, WithRealtime(false))
	c.AddDataPoints([]ingest.Record{record("A", 0, 0, 0), record("A", 100, 1, 1)})
	c.Play()
	require.True(t, c.Playing())

	c.SetRealtime(true)
	assert.False(t, c.Playing())
	assert.True(t, c.Realtime())
}

func TestClock_RateChangesRestartPlayback(t *testing.T) {
	c, _, mc := newTestClock(t, WithRealtime(false))
	c.AddDataPoints([]ingest.Record{record("A", 0, 0, 0), record("A", 100, 1, 1)})

	require.NoError(t, c.SetSpeed(20))
	assert.False(t, c.Playing(), "changing speed does not start playback")

	c.Play()
	require.NoError(t, c.SetRefreshRate(4))
	assert.True(t, c.Playing())
	assert.Equal(t, 1, mc.ActiveTickers())
	assert.Equal(t, 4.0, c.RefreshRate())

	mc.Advance(250 * time.Millisecond)
	require.Eventually(t, func() bool { return currentTime(c) == 5 }, time.Second, time.Millisecond)

	assert.ErrorIs(t, c.SetSpeed(-1), ErrInvalidRate)
	assert.ErrorIs(t, c.SetRefreshRate(0), ErrInvalidRate)
	assert.Equal(t, 20.0, c.Speed())
}

func TestClock_TimeWindowSetters(t *testing.T) {
	c, _, _ := newTestClock(t)
	c.SetTimeWindow(120)
	w, ok := c.TimeWindow()
	assert.True(t, ok)
	assert.Equal(t, 120.0, w)

	c.ClearTimeWindow()
	_, ok = c.TimeWindow()
	assert.False(t, ok)
}

func TestClock_TrackOperations(t *testing.T) {
	c, rec, _ := newTestClock(t)
	c.AddDataPoints([]ingest.Record{record("A", 10, 1, 1), record("B", 10, 2, 2)})
	c.Play()
	require.Len(t, rec.Snapshot().Markers, 2)

	id := c.Tracks()[0].ID
	require.NoError(t, c.ShowObject(id, false))
	assert.Len(t, rec.Snapshot().Markers, 1)
	assert.False(t, c.Status().ShowAllObjects)

	require.NoError(t, c.ToggleObject(id))
	assert.Len(t, rec.Snapshot().Markers, 2, "showing a track places it at the current time")

	require.NoError(t, c.ToggleRoute(id))
	view, err := c.Track(id)
	require.NoError(t, err)
	assert.False(t, view.RouteVisible)

	require.NoError(t, c.Highlight(id))
	view, _ = c.Track(id)
	assert.True(t, view.Visible)
	assert.True(t, view.RouteVisible)

	assert.ErrorIs(t, c.Highlight("nope"), ErrUnknownTrack)
	assert.ErrorIs(t, c.ShowRoute("nope", true), ErrUnknownTrack)
}

func TestClock_ShowAllObjectsReplacesMarkers(t *testing.T) {
	c, rec, _ := newTestClock(t)
	c.AddDataPoints([]ingest.Record{record("A", 10, 1, 1), record("B", 10, 2, 2)})
	c.Play()

	c.SetShowAllObjects(false)
	assert.Empty(t, rec.Snapshot().Markers)
	c.SetShowAllObjects(true)
	assert.Len(t, rec.Snapshot().Markers, 2)

	c.SetShowAllRoutes(false)
	c.SetAutoHideRoutes(false)
	s := c.Status()
	assert.False(t, s.ShowAllRoutes)
	assert.False(t, s.AutoHideRoutes)
}

func TestClock_AutoZoom(t *testing.T) {
	c, rec, _ := newTestClock(t)
	c.AddDataPoints([]ingest.Record{
		record("A", 10, 1, 1),
		record("A", 20, 2, 3),
		record("B", 20, 50, 50),
	})
	c.Play()

	views := c.Tracks()
	require.NoError(t, c.ShowObject(views[1].ID, false))
	require.NoError(t, c.ShowRoute(views[1].ID, false))

	c.AutoZoom()
	scene := rec.Snapshot()
	require.NotNil(t, scene.Viewport)
	assert.Equal(t, mapsurface.Bounds{South: 1, West: 1, North: 2, East: 3}, *scene.Viewport)
}
