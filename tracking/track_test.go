package tracking

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/routemap/mapsurface"
)

func newTestTrack(t *testing.T, opts TrackOptions, points ...Point) (*Track, *mapsurface.Recorder) {
	t.Helper()
	rec := mapsurface.NewRecorder()
	tr, err := NewTrack(KeyFields{"vehicle": "A"}, rec, opts)
	require.NoError(t, err)
	for _, p := range points {
		require.NoError(t, tr.Add(p))
	}
	return tr, rec
}

func pt(ts, lat, lon float64) Point {
	return Point{TS: ts, Lat: lat, Lon: lon, Raw: map[string]any{"ts": ts}}
}

func TestNewTrack_MissingSurface(t *testing.T) {
	_, err := NewTrack(KeyFields{"id": 1}, nil, DefaultTrackOptions())
	assert.ErrorIs(t, err, ErrMissingMapSurface)
}

func TestTrack_AddValidation(t *testing.T) {
	tests := []struct {
		name    string
		point   Point
		wantErr error
	}{
		{"valid", pt(30, 1, 1), nil},
		{"equal timestamp", pt(20, 1, 1), nil},
		{"nan ts", Point{TS: math.NaN(), Lat: 1, Lon: 1}, ErrInvalidPoint},
		{"inf lat", Point{TS: 30, Lat: math.Inf(1), Lon: 1}, ErrInvalidPoint},
		{"nan lon", Point{TS: 30, Lat: 1, Lon: math.NaN()}, ErrInvalidPoint},
		{"out of order", pt(10, 1, 1), ErrOutOfOrderPoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, _ := newTestTrack(t, DefaultTrackOptions(), pt(20, 0, 0))
			err := tr.Add(tt.point)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, 2, tr.Len())
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			assert.Equal(t, 1, tr.Len(), "rejected point must leave the track unchanged")
		})
	}
}

func TestTrack_HistoricalInterpolation(t *testing.T) {
	tr, rec := newTestTrack(t, DefaultTrackOptions(), pt(10, 1, 1), pt(20, 3, 3))

	tr.CalculatePos(15, false, 0)
	pos, ok := tr.Position()
	require.True(t, ok)
	assert.InDelta(t, 2.0, pos.Lat, 1e-9)
	assert.InDelta(t, 2.0, pos.Lon, 1e-9)
	raw, ok := tr.LastRaw()
	require.True(t, ok)
	assert.Equal(t, 10.0, raw["ts"], "payload comes from the earlier bracketing point")
	require.Len(t, rec.Snapshot().Markers, 1)

	for _, q := range []float64{5, 20, 25} {
		tr.CalculatePos(q, false, 0)
		_, ok := tr.Position()
		assert.False(t, ok, "q=%v should be unresolved", q)
		assert.Empty(t, rec.Snapshot().Markers, "q=%v should clear the marker", q)
	}
}

func TestTrack_InterpolationProperty(t *testing.T) {
	points := []Point{pt(0, 0, 0), pt(10, 10, -10), pt(10, 12, -12), pt(40, 42, -42), pt(100, 0, 0)}
	tr, _ := newTestTrack(t, DefaultTrackOptions(), points...)

	for q := 0.5; q < 100; q += 3.7 {
		tr.CalculatePos(q, false, 0)
		pos, ok := tr.Position()
		require.True(t, ok, "q=%v", q)

		var p0, p1 Point
		for i := 1; i < len(points); i++ {
			if points[i].TS > q {
				p0, p1 = points[i-1], points[i]
				break
			}
		}
		f := (q - p0.TS) / (p1.TS - p0.TS)
		assert.InDelta(t, p0.Lat+(p1.Lat-p0.Lat)*f, pos.Lat, 1e-9, "q=%v", q)
		assert.InDelta(t, p0.Lon+(p1.Lon-p0.Lon)*f, pos.Lon, 1e-9, "q=%v", q)
	}
}

func TestTrack_DistanceKM(t *testing.T) {
	tr, _ := newTestTrack(t, DefaultTrackOptions())
	assert.Equal(t, 0.0, tr.DistanceKM())

	require.NoError(t, tr.Add(pt(0, 0, 0)))
	require.NoError(t, tr.Add(pt(10, 1, 0)))
	require.NoError(t, tr.Add(pt(20, 2, 0)))
	assert.InDelta(t, 222.39, tr.DistanceKM(), 0.01)
}

func TestTrack_ZeroCoordinateResolves(t *testing.T) {
	tr, rec := newTestTrack(t, DefaultTrackOptions(), pt(0, 0, 0), pt(10, 0, 0))
	tr.CalculatePos(5, false, 0)
	pos, ok := tr.Position()
	require.True(t, ok)
	assert.Equal(t, mapsurface.LatLon{}, pos)
	assert.Len(t, rec.Snapshot().Markers, 1)
}

func TestTrack_RealtimeUsesLastPoint(t *testing.T) {
	tr, rec := newTestTrack(t, DefaultTrackOptions(), pt(10, 1, 1), pt(20, 3, 4))
	tr.CalculatePos(5, true, 0)

	pos, ok := tr.Position()
	require.True(t, ok)
	assert.Equal(t, mapsurface.LatLon{Lat: 3, Lon: 4}, pos)

	require.NoError(t, tr.Add(pt(30, 5, 6)))
	tr.CalculatePos(30, true, 0)
	scene := rec.Snapshot()
	require.Len(t, scene.Markers, 1, "marker is moved, not recreated")
	assert.Equal(t, mapsurface.LatLon{Lat: 5, Lon: 6}, scene.Markers[0].Position)
}

func TestTrack_WindowEviction(t *testing.T) {
	t.Run("drops points older than the window", func(t *testing.T) {
		tr, _ := newTestTrack(t, DefaultTrackOptions(), pt(0, 0, 0), pt(30, 1, 1), pt(65, 2, 2))
		tr.CalculatePos(65, true, 60)
		got := []float64{}
		for _, p := range tr.Points() {
			got = append(got, p.TS)
		}
		if diff := cmp.Diff([]float64{30, 65}, got); diff != "" {
			t.Errorf("points mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("keeps a lone point within tolerance", func(t *testing.T) {
		tr, _ := newTestTrack(t, DefaultTrackOptions(), pt(0, 0, 0))
		tr.CalculatePos(200, true, 60)
		assert.Equal(t, 1, tr.Len())
		_, ok := tr.Position()
		assert.True(t, ok)
	})

	t.Run("drops a lone point past tolerance", func(t *testing.T) {
		tr, rec := newTestTrack(t, DefaultTrackOptions(), pt(0, 0, 0))
		tr.CalculatePos(301, true, 60)
		assert.True(t, tr.IsEmpty())
		assert.Empty(t, rec.Snapshot().Markers)
	})

	t.Run("custom tolerance", func(t *testing.T) {
		opts := DefaultTrackOptions()
		opts.RetentionTolerance = 100
		tr, _ := newTestTrack(t, opts, pt(0, 0, 0))
		tr.CalculatePos(150, true, 60)
		assert.True(t, tr.IsEmpty())
	})

	t.Run("eviction trims the polyline head", func(t *testing.T) {
		opts := DefaultTrackOptions()
		opts.RouteVisible = true
		opts.AutoHideRoute = false
		tr, rec := newTestTrack(t, opts, pt(0, 0, 0), pt(30, 1, 1), pt(65, 2, 2))
		tr.CalculatePos(65, true, 60)
		scene := rec.Snapshot()
		require.Len(t, scene.Polylines, 1)
		if diff := cmp.Diff(tr.LatLons(), scene.Polylines[0].Path); diff != "" {
			t.Errorf("polyline out of sync (-track +polyline):\n%s", diff)
		}
	})

	t.Run("eviction applies in historical mode", func(t *testing.T) {
		tr, _ := newTestTrack(t, DefaultTrackOptions(), pt(0, 0, 0), pt(30, 1, 1), pt(65, 2, 2))
		tr.CalculatePos(64, false, 60)
		assert.Equal(t, 2, tr.Len())
	})
}

func TestTrack_HiddenClearsMarker(t *testing.T) {
	tr, rec := newTestTrack(t, DefaultTrackOptions(), pt(10, 1, 1))
	tr.CalculatePos(10, true, 0)
	require.Len(t, rec.Snapshot().Markers, 1)

	tr.ShowObject(false)
	assert.Empty(t, rec.Snapshot().Markers)
	_, ok := tr.LastRaw()
	assert.False(t, ok)
	assert.Equal(t, "Not visible", tr.Summary())

	tr.CalculatePos(10, true, 0)
	assert.Empty(t, rec.Snapshot().Markers, "hidden tracks never draw")
}

func TestTrack_RouteLifecycle(t *testing.T) {
	opts := DefaultTrackOptions()
	opts.AutoHideRoute = false
	tr, rec := newTestTrack(t, opts)

	tr.ShowRoute(true)
	assert.Empty(t, rec.Snapshot().Polylines, "no path, no polyline")

	require.NoError(t, tr.Add(pt(1, 1, 1)))
	require.Len(t, rec.Snapshot().Polylines, 1, "first point creates the polyline lazily")

	require.NoError(t, tr.Add(pt(2, 2, 2)))
	scene := rec.Snapshot()
	want := []mapsurface.LatLon{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}
	if diff := cmp.Diff(want, scene.Polylines[0].Path); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}

	tr.ShowRoute(false)
	assert.Empty(t, rec.Snapshot().Polylines)

	tr.ShowRoute(true)
	scene = rec.Snapshot()
	require.Len(t, scene.Polylines, 1)
	if diff := cmp.Diff(want, scene.Polylines[0].Path); diff != "" {
		t.Errorf("rebuilt path mismatch (-want +got):\n%s", diff)
	}
}

func TestTrack_AutoHideRoute(t *testing.T) {
	tr, rec := newTestTrack(t, DefaultTrackOptions(), pt(10, 1, 1), pt(20, 2, 2))
	assert.False(t, tr.RouteVisible())

	tr.CalculatePos(15, false, 0)
	assert.True(t, tr.RouteVisible(), "route appears with the entity")
	assert.Len(t, rec.Snapshot().Polylines, 1)

	tr.CalculatePos(25, false, 0)
	assert.False(t, tr.RouteVisible(), "route hides when the entity disappears")
	assert.Empty(t, rec.Snapshot().Polylines)

	tr.SetAutoHideRoute(false)
	tr.ShowRoute(true)
	tr.CalculatePos(25, false, 0)
	assert.True(t, tr.RouteVisible(), "without auto-hide the route is user controlled")

	tr.SetAutoHideRoute(true)
	assert.False(t, tr.RouteVisible(), "enabling auto-hide syncs immediately")
}

func TestTrack_AutoHideRouteWithoutPosition(t *testing.T) {
	opts := DefaultTrackOptions()
	opts.RouteVisible = true
	tr, rec := newTestTrack(t, opts, pt(10, 1, 1), pt(20, 2, 2))
	require.Len(t, rec.Snapshot().Polylines, 1)

	tr.CalculatePos(5, false, 0)
	_, ok := tr.LastRaw()
	assert.False(t, ok)
	assert.False(t, tr.RouteVisible(), "no position before the first sample, so no route")
	assert.Empty(t, rec.Snapshot().Polylines)

	tr.CalculatePos(15, false, 0)
	assert.True(t, tr.RouteVisible())
	assert.Len(t, rec.Snapshot().Polylines, 1)
}

func TestTrack_Repeats(t *testing.T) {
	tr, _ := newTestTrack(t, DefaultTrackOptions())
	assert.False(t, tr.Repeats(pt(10, 1, 1)), "empty track repeats nothing")

	require.NoError(t, tr.Add(pt(10, 1, 1)))
	assert.True(t, tr.Repeats(pt(10, 1, 1)))
	assert.False(t, tr.Repeats(pt(10, 1, 2)), "moved at the same instant")
	assert.False(t, tr.Repeats(pt(11, 1, 1)))
}

func TestTrack_HighlightOrdering(t *testing.T) {
	opts := DefaultTrackOptions()
	opts.Visible = false
	tr, rec := newTestTrack(t, opts, pt(10, 1, 1), pt(20, 2, 2))

	tr.Highlight()
	assert.True(t, tr.Visible())
	assert.True(t, tr.RouteVisible())

	tr.CalculatePos(15, false, 0)
	rec.ResetOps()
	tr.Highlight()

	kinds := []mapsurface.OpKind{}
	for _, op := range rec.Ops() {
		kinds = append(kinds, op.Kind)
	}
	want := []mapsurface.OpKind{mapsurface.OpZoomToPolyline, mapsurface.OpHighlightMarker, mapsurface.OpHighlightPolyline}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("highlight order mismatch (-want +got):\n%s", diff)
	}
}

func TestTrack_Toggles(t *testing.T) {
	tr, _ := newTestTrack(t, DefaultTrackOptions(), pt(1, 1, 1))
	tr.ToggleObject()
	assert.False(t, tr.Visible())
	tr.ToggleObject()
	assert.True(t, tr.Visible())
	tr.ToggleRoute()
	assert.True(t, tr.RouteVisible())
}
