package tracking

import (
	"fmt"
	"math"
	"sort"

	"github.com/theoremus-urban-solutions/routemap/mapsurface"
	"github.com/theoremus-urban-solutions/routemap/utils"
)

// DefaultRetentionTolerance keeps a lone point alive this many seconds past the window
const DefaultRetentionTolerance = 300.0

// Flag identifies a per-track visibility flag
type Flag int

const (
	FlagObject Flag = iota
	FlagRoute
)

func (f Flag) String() string {
	if f == FlagRoute {
		return "route"
	}
	return "object"
}

// TrackOptions holds the initial state of a track
type TrackOptions struct {
	Title              string
	Color              string
	Visible            bool
	RouteVisible       bool
	AutoHideRoute      bool
	RetentionTolerance float64
}

// DefaultTrackOptions matches a freshly created standalone track
func DefaultTrackOptions() TrackOptions {
	return TrackOptions{
		Visible:            true,
		AutoHideRoute:      true,
		RetentionTolerance: DefaultRetentionTolerance,
	}
}

// Track is the point history and rendered state of one entity
type Track struct {
	key    EntityKey
	fields KeyFields
	title  string
	color  string

	points []Point

	visible       bool
	routeVisible  bool
	autoHideRoute bool
	retention     float64

	surface  mapsurface.Surface
	marker   mapsurface.Marker
	polyline mapsurface.Polyline

	// current is the point driving the rendered position; nil when unresolved
	current  *Point
	position mapsurface.LatLon

	onFlagOff func(t *Track, f Flag)
}

// NewTrack creates a track for fields drawing on surface
func NewTrack(fields KeyFields, surface mapsurface.Surface, opts TrackOptions) (*Track, error) {
	if surface == nil {
		return nil, ErrMissingMapSurface
	}
	title := opts.Title
	if title == "" {
		title = Title(fields)
	}
	retention := opts.RetentionTolerance
	if retention <= 0 {
		retention = DefaultRetentionTolerance
	}
	return &Track{
		key:           NewEntityKey(fields),
		fields:        fields,
		title:         title,
		color:         opts.Color,
		visible:       opts.Visible,
		routeVisible:  opts.RouteVisible,
		autoHideRoute: opts.AutoHideRoute,
		retention:     retention,
		surface:       surface,
	}, nil
}

func (t *Track) Key() EntityKey      { return t.key }
func (t *Track) ID() string          { return t.key.ID() }
func (t *Track) Fields() KeyFields   { return t.fields }
func (t *Track) Title() string       { return t.title }
func (t *Track) Color() string       { return t.color }
func (t *Track) Len() int            { return len(t.points) }
func (t *Track) IsEmpty() bool       { return len(t.points) == 0 }
func (t *Track) Visible() bool       { return t.visible }
func (t *Track) RouteVisible() bool  { return t.routeVisible }
func (t *Track) AutoHideRoute() bool { return t.autoHideRoute }

// Points returns a copy of the point history
func (t *Track) Points() []Point {
	return append([]Point(nil), t.points...)
}

// LatLons returns the point history as coordinates
func (t *Track) LatLons() []mapsurface.LatLon {
	out := make([]mapsurface.LatLon, len(t.points))
	for i, p := range t.points {
		out[i] = p.LatLon()
	}
	return out
}

// DistanceKM is the great-circle length of the retained path
func (t *Track) DistanceKM() float64 {
	var km float64
	for i := 1; i < len(t.points); i++ {
		a, b := t.points[i-1], t.points[i]
		km += utils.HaversineKM(a.Lat, a.Lon, b.Lat, b.Lon)
	}
	return km
}

// LastRaw returns the raw payload of the point behind the current position.
// ok is false when the position is unresolved.
func (t *Track) LastRaw() (raw map[string]any, ok bool) {
	if t.current == nil {
		return nil, false
	}
	return t.current.Raw, true
}

// Current returns the point behind the current position
func (t *Track) Current() (Point, bool) {
	if t.current == nil {
		return Point{}, false
	}
	return *t.current, true
}

// Position returns the last resolved position
func (t *Track) Position() (pos mapsurface.LatLon, ok bool) {
	if t.current == nil {
		return mapsurface.LatLon{}, false
	}
	return t.position, true
}

// LastTS returns the timestamp of the newest point
func (t *Track) LastTS() (float64, bool) {
	if len(t.points) == 0 {
		return 0, false
	}
	return t.points[len(t.points)-1].TS, true
}

// Repeats reports whether p is the same sample as the newest point:
// equal timestamp and unchanged coordinates.
func (t *Track) Repeats(p Point) bool {
	n := len(t.points)
	if n == 0 {
		return false
	}
	last := t.points[n-1]
	return last.TS == p.TS && last.Lat == p.Lat && last.Lon == p.Lon
}

// Summary is the list-display text for the track's current payload
func (t *Track) Summary() string {
	raw, ok := t.LastRaw()
	if !ok {
		return "Not visible"
	}
	return FormatFields(raw)
}

// Add appends p. Points must arrive in non-decreasing ts order.
func (t *Track) Add(p Point) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if n := len(t.points); n > 0 && p.TS < t.points[n-1].TS {
		return fmt.Errorf("%w: ts %v before %v for %s", ErrOutOfOrderPoint, p.TS, t.points[n-1].TS, t.title)
	}
	t.points = append(t.points, p)
	if !t.routeVisible {
		return nil
	}
	if t.polyline != nil {
		t.polyline.AddPoint(p.LatLon())
	} else {
		t.drawRoute()
	}
	return nil
}

// CalculatePos resolves and renders the position at q. window <= 0 disables eviction.
func (t *Track) CalculatePos(q float64, realtime bool, window float64) {
	if !t.visible {
		t.clearPos()
		return
	}
	if window > 0 {
		t.evict(q, window)
	}

	var (
		pos     mapsurface.LatLon
		current *Point
	)
	if realtime {
		if n := len(t.points); n > 0 {
			current = &t.points[n-1]
			pos = current.LatLon()
		}
	} else {
		i := sort.Search(len(t.points), func(i int) bool { return t.points[i].TS > q })
		if i > 0 && i < len(t.points) {
			p0, p1 := t.points[i-1], t.points[i]
			f := (q - p0.TS) / (p1.TS - p0.TS)
			pos = mapsurface.LatLon{
				Lat: p0.Lat + (p1.Lat-p0.Lat)*f,
				Lon: p0.Lon + (p1.Lon-p0.Lon)*f,
			}
			current = &t.points[i-1]
		}
	}

	if current == nil {
		t.clearPos()
		return
	}
	// copy so later eviction does not alias the backing array
	cp := *current
	t.current = &cp
	t.position = pos
	if t.marker == nil {
		t.marker = t.surface.AddMarker(mapsurface.MarkerOptions{Position: pos, Title: t.title, Color: t.color})
	} else {
		t.marker.Move(pos)
	}
	t.syncRouteVisibility()
}

func (t *Track) evict(q, window float64) {
	for len(t.points) > 0 && t.points[0].TS < q-window {
		if len(t.points) == 1 && math.Abs(q-t.points[0].TS) <= t.retention {
			break
		}
		t.points = t.points[1:]
		if t.polyline != nil {
			t.polyline.RemovePoint(0)
		}
	}
	if len(t.points) == 0 {
		t.points = nil
		t.removeRoute()
	}
}

// clearPos removes the marker and forgets the current payload
func (t *Track) clearPos() {
	if t.marker != nil {
		t.marker.Remove()
		t.marker = nil
	}
	t.current = nil
	t.syncRouteVisibility()
}

// syncRouteVisibility makes the route follow position presence while auto-hide is on.
// It runs after every position computation, so a track that starts route-visible
// without a position loses its route on the first unresolved computation.
func (t *Track) syncRouteVisibility() {
	if !t.autoHideRoute {
		return
	}
	t.ShowRoute(t.current != nil)
}

// ShowObject sets marker visibility. Hiding clears the marker and payload.
func (t *Track) ShowObject(v bool) {
	if t.visible == v {
		return
	}
	t.visible = v
	if !v {
		t.clearPos()
		t.notifyOff(FlagObject)
	}
}

// ShowRoute sets route visibility, drawing the polyline from all points or removing it
func (t *Track) ShowRoute(v bool) {
	if t.routeVisible == v {
		return
	}
	t.routeVisible = v
	if v {
		t.drawRoute()
		return
	}
	t.removeRoute()
	t.notifyOff(FlagRoute)
}

// SetAutoHideRoute toggles route auto-linkage to position presence
func (t *Track) SetAutoHideRoute(v bool) {
	t.autoHideRoute = v
	t.syncRouteVisibility()
}

func (t *Track) ToggleObject() { t.ShowObject(!t.visible) }
func (t *Track) ToggleRoute()  { t.ShowRoute(!t.routeVisible) }

// Highlight forces the track visible, frames its route, then animates both handles
func (t *Track) Highlight() {
	t.ShowObject(true)
	t.ShowRoute(true)
	if t.polyline != nil {
		t.polyline.ZoomTo()
	}
	if t.marker != nil {
		t.marker.Highlight()
	}
	if t.polyline != nil {
		t.polyline.Highlight()
	}
}

func (t *Track) drawRoute() {
	if t.polyline != nil {
		t.polyline.Remove()
		t.polyline = nil
	}
	if len(t.points) == 0 {
		return
	}
	t.polyline = t.surface.AddPolyline(mapsurface.PolylineOptions{
		Path:  t.LatLons(),
		Title: t.title,
		Color: t.color,
	})
}

func (t *Track) removeRoute() {
	if t.polyline != nil {
		t.polyline.Remove()
		t.polyline = nil
	}
}

func (t *Track) notifyOff(f Flag) {
	if t.onFlagOff != nil {
		t.onFlagOff(t, f)
	}
}

// teardown drops all rendering and detaches the registry hook
func (t *Track) teardown() {
	t.onFlagOff = nil
	t.clearPos()
	t.ShowRoute(false)
}
