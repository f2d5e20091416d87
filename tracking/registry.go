package tracking

import (
	"cmp"
	"slices"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/routemap/mapsurface"
)

// EventType identifies a registry notification
type EventType int

const (
	TrackAdded EventType = iota
	TrackRemoved
	RegistryReset
)

func (e EventType) String() string {
	switch e {
	case TrackAdded:
		return "added"
	case TrackRemoved:
		return "removed"
	default:
		return "reset"
	}
}

// Event is delivered to registry subscribers. Track is nil for RegistryReset.
type Event struct {
	Type  EventType
	Track *Track
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithColorPicker sets how new tracks get their colour
func WithColorPicker(p ColorPicker) RegistryOption {
	return func(r *Registry) { r.colors = p }
}

// WithRetentionTolerance sets the lone-point grace period in seconds
func WithRetentionTolerance(seconds float64) RegistryOption {
	return func(r *Registry) { r.retention = seconds }
}

// WithLogger sets the registry logger
func WithLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// Registry maps entity keys to tracks
type Registry struct {
	surface   mapsurface.Surface
	tracks    map[EntityKey]*Track
	colors    ColorPicker
	retention float64
	log       *zap.Logger
	listeners []func(Event)

	showAllObjects bool
	showAllRoutes  bool
	autoHideRoutes bool
}

// NewRegistry creates an empty registry drawing on surface
func NewRegistry(surface mapsurface.Surface, opts ...RegistryOption) (*Registry, error) {
	if surface == nil {
		return nil, ErrMissingMapSurface
	}
	r := &Registry{
		surface:        surface,
		tracks:         map[EntityKey]*Track{},
		retention:      DefaultRetentionTolerance,
		log:            zap.NewNop(),
		showAllObjects: true,
		showAllRoutes:  true,
		autoHideRoutes: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.colors == nil {
		r.colors = RandomColors(0, nil)
	}
	r.log = r.log.Named("registry")
	return r, nil
}

// Subscribe registers fn for add, remove and reset notifications
func (r *Registry) Subscribe(fn func(Event)) {
	r.listeners = append(r.listeners, fn)
}

func (r *Registry) emit(e Event) {
	for _, fn := range r.listeners {
		fn(e)
	}
}

// AddData routes p to the track for fields, creating the track on first sighting.
// An invalid point never creates a track.
func (r *Registry) AddData(fields KeyFields, p Point) (*Track, error) {
	key := NewEntityKey(fields)
	t, ok := r.tracks[key]
	if !ok {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		var err error
		t, err = NewTrack(fields, r.surface, TrackOptions{
			Color:              r.colors(),
			Visible:            r.showAllObjects,
			RouteVisible:       r.showAllRoutes,
			AutoHideRoute:      r.autoHideRoutes,
			RetentionTolerance: r.retention,
		})
		if err != nil {
			return nil, err
		}
		t.onFlagOff = r.trackFlagOff
		r.tracks[key] = t
		r.log.Debug("track added", zap.String("title", t.Title()), zap.String("id", t.ID()))
		r.emit(Event{Type: TrackAdded, Track: t})
	}
	if err := t.Add(p); err != nil {
		return t, err
	}
	return t, nil
}

// trackFlagOff disables the matching aggregate flag without touching other tracks
func (r *Registry) trackFlagOff(_ *Track, f Flag) {
	switch f {
	case FlagObject:
		if r.showAllObjects {
			r.setShowAllObjects(false, true)
		}
	case FlagRoute:
		if r.showAllRoutes {
			r.setShowAllRoutes(false, true)
		}
	}
}

// Get returns the track for key
func (r *Registry) Get(key EntityKey) (*Track, bool) {
	t, ok := r.tracks[key]
	return t, ok
}

// Lookup returns the track whose ID is id
func (r *Registry) Lookup(id string) (*Track, bool) {
	return lo.Find(lo.Values(r.tracks), func(t *Track) bool { return t.ID() == id })
}

// Len returns the number of tracks
func (r *Registry) Len() int { return len(r.tracks) }

// Tracks returns all tracks ordered by title
func (r *Registry) Tracks() []*Track {
	out := lo.Values(r.tracks)
	slices.SortFunc(out, func(a, b *Track) int {
		if c := cmp.Compare(a.Title(), b.Title()); c != 0 {
			return c
		}
		return cmp.Compare(a.Key(), b.Key())
	})
	return out
}

// Each calls fn for every track in no particular order
func (r *Registry) Each(fn func(*Track)) {
	for _, t := range r.tracks {
		fn(t)
	}
}

// ClearEmptyObjects tears down and drops tracks without points. It returns the number removed.
func (r *Registry) ClearEmptyObjects() int {
	removed := 0
	for key, t := range r.tracks {
		if !t.IsEmpty() {
			continue
		}
		t.teardown()
		delete(r.tracks, key)
		removed++
		r.log.Debug("track removed", zap.String("title", t.Title()))
		r.emit(Event{Type: TrackRemoved, Track: t})
	}
	return removed
}

// Reset tears down every track and empties the registry
func (r *Registry) Reset() {
	for key, t := range r.tracks {
		t.teardown()
		delete(r.tracks, key)
		r.emit(Event{Type: TrackRemoved, Track: t})
	}
	r.emit(Event{Type: RegistryReset})
}

func (r *Registry) ShowAllObjects() bool { return r.showAllObjects }
func (r *Registry) ShowAllRoutes() bool  { return r.showAllRoutes }
func (r *Registry) AutoHideRoutes() bool { return r.autoHideRoutes }

// SetShowAllObjects sets the flag and applies it to every track
func (r *Registry) SetShowAllObjects(v bool) { r.setShowAllObjects(v, false) }

// SetShowAllRoutes sets the flag and applies it to every track
func (r *Registry) SetShowAllRoutes(v bool) { r.setShowAllRoutes(v, false) }

// SetAutoHideRoutes sets the flag and applies it to every track
func (r *Registry) SetAutoHideRoutes(v bool) {
	r.autoHideRoutes = v
	for _, t := range r.tracks {
		t.SetAutoHideRoute(v)
	}
}

func (r *Registry) setShowAllObjects(v, silent bool) {
	r.showAllObjects = v
	if silent {
		return
	}
	for _, t := range r.tracks {
		t.ShowObject(v)
	}
}

func (r *Registry) setShowAllRoutes(v, silent bool) {
	r.showAllRoutes = v
	if silent {
		return
	}
	for _, t := range r.tracks {
		t.ShowRoute(v)
	}
}
