package playback

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/routemap/ingest"
	"github.com/theoremus-urban-solutions/routemap/internal/timeutil"
	"github.com/theoremus-urban-solutions/routemap/mapsurface"
	"github.com/theoremus-urban-solutions/routemap/tracking"
	"github.com/theoremus-urban-solutions/routemap/utils"
)

const (
	DefaultRefreshRate = 2.0
	DefaultSpeed       = 10.0
	DefaultTimeWindow  = 1800.0
)

var (
	// ErrInvalidRate is returned for a non-positive or non-finite speed or refresh rate
	ErrInvalidRate = errors.New("rate must be a positive number")
	// ErrUnknownTrack is returned when a track id is not in the registry
	ErrUnknownTrack = errors.New("unknown track")
)

// State is the playback state machine
type State int

const (
	Idle State = iota
	Ready
	Playing
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// instant is an optional point in time
type instant struct {
	t  float64
	ok bool
}

func (i instant) ptr() *float64 {
	if !i.ok {
		return nil
	}
	v := i.t
	return &v
}

// playTimer is the handle of one play session
type playTimer struct {
	ticker timeutil.Ticker
	done   chan struct{}
}

// Option configures a Clock
type Option func(*Clock)

// WithClock replaces the wall clock, used by tests to drive ticks
func WithClock(c timeutil.Clock) Option {
	return func(pc *Clock) { pc.clock = c }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(pc *Clock) { pc.log = l }
}

// WithSpeed sets the initial playback speed in seconds of data per second
func WithSpeed(v float64) Option {
	return func(pc *Clock) { pc.speed = v }
}

// WithRefreshRate sets the initial ticks per second
func WithRefreshRate(v float64) Option {
	return func(pc *Clock) { pc.refreshRate = v }
}

// WithRealtime sets the initial mode
func WithRealtime(v bool) Option {
	return func(pc *Clock) { pc.realtime = v }
}

// WithTimeWindow sets the initial window in seconds; 0 disables it
func WithTimeWindow(seconds float64) Option {
	return func(pc *Clock) { pc.window = seconds }
}

// WithRegistryOptions passes options to the track registry
func WithRegistryOptions(opts ...tracking.RegistryOption) Option {
	return func(pc *Clock) { pc.registryOpts = append(pc.registryOpts, opts...) }
}

// Clock drives the current time of one map view
type Clock struct {
	mu sync.Mutex

	registry     *tracking.Registry
	registryOpts []tracking.RegistryOption
	surface      mapsurface.Surface
	clock        timeutil.Clock
	log          *zap.Logger

	current instant
	begin   instant
	end     instant

	refreshRate float64
	speed       float64
	realtime    bool
	window      float64

	timer *playTimer
}

// New creates a clock and its track registry on surface
func New(surface mapsurface.Surface, opts ...Option) (*Clock, error) {
	c := &Clock{
		surface:     surface,
		clock:       timeutil.RealClock{},
		log:         zap.NewNop(),
		refreshRate: DefaultRefreshRate,
		speed:       DefaultSpeed,
		realtime:    true,
		window:      DefaultTimeWindow,
	}
	for _, opt := range opts {
		opt(c)
	}
	if !validRate(c.speed) || !validRate(c.refreshRate) {
		return nil, fmt.Errorf("%w: speed=%v refreshRate=%v", ErrInvalidRate, c.speed, c.refreshRate)
	}
	c.log = c.log.Named("clock")
	registry, err := tracking.NewRegistry(surface, append(c.registryOpts, tracking.WithLogger(c.log))...)
	if err != nil {
		return nil, err
	}
	c.registry = registry
	return c, nil
}

func validRate(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Close stops playback
func (c *Clock) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pauseLocked()
}

// Subscribe forwards registry notifications. fn runs with the clock locked and must not call back into it.
func (c *Clock) Subscribe(fn func(tracking.Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry.Subscribe(fn)
}

// State reports the playback state
func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Clock) stateLocked() State {
	switch {
	case c.timer != nil:
		return Playing
	case c.begin.ok && c.end.ok:
		return Ready
	default:
		return Idle
	}
}

// Playing reports whether a timer is active
func (c *Clock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

func (c *Clock) CurrentTime() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.t, c.current.ok
}

func (c *Clock) BeginTime() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.begin.t, c.begin.ok
}

func (c *Clock) EndTime() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.end.t, c.end.ok
}

// SetCurrentTime moves the view to t and recomputes every visible track
func (c *Clock) SetCurrentTime(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setCurrentTime(t)
}

func (c *Clock) setCurrentTime(t float64) {
	c.current = instant{t: t, ok: true}
	c.registry.Each(func(tr *tracking.Track) {
		if tr.Visible() {
			tr.CalculatePos(t, c.realtime, c.window)
		}
	})
	if n := c.registry.ClearEmptyObjects(); n > 0 {
		c.log.Debug("cleared empty tracks", zap.Int("count", n), zap.Float64("time", t))
	}
}

func (c *Clock) widen(ts float64) {
	if !c.begin.ok || ts < c.begin.t {
		c.begin = instant{t: ts, ok: true}
	}
	if !c.end.ok || ts > c.end.t {
		c.end = instant{t: ts, ok: true}
	}
}

// AddDataPoints ingests a batch. In real-time mode points at or before the
// current time are dropped as stale. A repeat of a track's newest sample, as
// re-polling an unchanged feed produces, is stale in either mode. Rejected
// points do not stop the batch.
func (c *Clock) AddDataPoints(records []ingest.Record) ingest.BatchResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	var res ingest.BatchResult
	for _, rec := range records {
		if c.realtime && c.current.ok && rec.Point.TS <= c.current.t {
			res.Stale++
			continue
		}
		if tr, ok := c.registry.Get(tracking.NewEntityKey(rec.Fields)); ok && tr.Repeats(rec.Point) {
			res.Stale++
			continue
		}
		if _, err := c.registry.AddData(rec.Fields, rec.Point); err != nil {
			res.Rejected++
			c.log.Debug("point rejected", zap.Error(err))
			continue
		}
		res.Accepted++
		c.widen(rec.Point.TS)
	}
	if c.window > 0 && c.end.ok {
		c.begin.t = math.Max(c.end.t-c.window, c.begin.t)
	}
	if res.Rejected > 0 || res.Stale > 0 {
		c.log.Info("batch ingested with drops",
			zap.Int("accepted", res.Accepted), zap.Int("stale", res.Stale), zap.Int("rejected", res.Rejected))
	}
	return res
}

// AddData ingests one point, widening the time bounds unconditionally
func (c *Clock) AddData(fields tracking.KeyFields, p tracking.Point) (*tracking.Track, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.registry.AddData(fields, p)
	if err != nil {
		return t, err
	}
	c.widen(p.TS)
	return t, nil
}

// RemoveAllObjects pauses, drops every track and forgets the time bounds
func (c *Clock) RemoveAllObjects() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pauseLocked()
	c.registry.Reset()
	c.current, c.begin, c.end = instant{}, instant{}, instant{}
}

// Play starts playback. Real-time mode jumps to the end time instead of ticking.
func (c *Clock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playLocked()
}

func (c *Clock) playLocked() {
	if !c.begin.ok || !c.end.ok || c.timer != nil {
		return
	}
	if c.realtime {
		c.setCurrentTime(c.end.t)
		return
	}
	if !c.current.ok {
		c.setCurrentTime(c.begin.t)
	}
	interval := time.Duration(float64(time.Second) / c.refreshRate)
	pt := &playTimer{ticker: c.clock.NewTicker(interval), done: make(chan struct{})}
	c.timer = pt
	c.log.Debug("playback started", zap.Duration("interval", interval), zap.Float64("speed", c.speed))
	go c.run(pt)
}

func (c *Clock) run(pt *playTimer) {
	for {
		select {
		case <-pt.done:
			return
		case <-pt.ticker.C():
			c.tick(pt)
		}
	}
}

func (c *Clock) tick(pt *playTimer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != pt {
		return
	}
	c.setCurrentTime(c.current.t + c.speed/c.refreshRate)
	if c.current.t > c.end.t {
		c.log.Debug("end of data reached", zap.Float64("time", c.current.t))
		c.pauseLocked()
	}
}

// Pause stops the ticker; calling it when paused does nothing
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pauseLocked()
}

func (c *Clock) pauseLocked() {
	if c.timer == nil {
		return
	}
	c.timer.ticker.Stop()
	close(c.timer.done)
	c.timer = nil
}

func (c *Clock) Realtime() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.realtime
}

// SetRealtime switches mode; entering real-time mode pauses playback
func (c *Clock) SetRealtime(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v {
		c.pauseLocked()
	}
	c.realtime = v
}

func (c *Clock) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// SetSpeed changes the speed, restarting the ticker when playing
func (c *Clock) SetSpeed(v float64) error {
	if !validRate(v) {
		return fmt.Errorf("%w: speed=%v", ErrInvalidRate, v)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.restart(func() { c.speed = v })
	return nil
}

func (c *Clock) RefreshRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshRate
}

// SetRefreshRate changes ticks per second, restarting the ticker when playing
func (c *Clock) SetRefreshRate(v float64) error {
	if !validRate(v) {
		return fmt.Errorf("%w: refreshRate=%v", ErrInvalidRate, v)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.restart(func() { c.refreshRate = v })
	return nil
}

func (c *Clock) restart(set func()) {
	wasPlaying := c.timer != nil
	c.pauseLocked()
	set()
	if wasPlaying {
		c.playLocked()
	}
}

// TimeWindow returns the window in seconds; ok is false when unset
func (c *Clock) TimeWindow() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window, c.window > 0
}

// SetTimeWindow sets the window in seconds; a non-positive value clears it
func (c *Clock) SetTimeWindow(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.window = math.Max(seconds, 0)
}

// ClearTimeWindow disables eviction
func (c *Clock) ClearTimeWindow() { c.SetTimeWindow(0) }

// AutoZoom fits the map to every track that is visible or shows its route
func (c *Clock) AutoZoom() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoZoomLocked()
}

func (c *Clock) autoZoomLocked() {
	var points []mapsurface.LatLon
	c.registry.Each(func(t *tracking.Track) {
		if t.Visible() || t.RouteVisible() {
			points = append(points, t.LatLons()...)
		}
	})
	if len(points) == 0 {
		return
	}
	c.surface.FitBounds(points)
}

func (c *Clock) lookup(id string) (*tracking.Track, error) {
	t, ok := c.registry.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTrack, id)
	}
	return t, nil
}

// refresh recomputes one track at the current time after it was shown
func (c *Clock) refresh(t *tracking.Track) {
	if c.current.ok && t.Visible() {
		t.CalculatePos(c.current.t, c.realtime, c.window)
	}
}

// ShowObject sets a track's marker visibility; showing places it immediately
func (c *Clock) ShowObject(id string, v bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.lookup(id)
	if err != nil {
		return err
	}
	t.ShowObject(v)
	c.refresh(t)
	return nil
}

// ShowRoute sets a track's route visibility
func (c *Clock) ShowRoute(id string, v bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.lookup(id)
	if err != nil {
		return err
	}
	t.ShowRoute(v)
	return nil
}

// ToggleObject flips a track's marker visibility
func (c *Clock) ToggleObject(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.lookup(id)
	if err != nil {
		return err
	}
	t.ToggleObject()
	c.refresh(t)
	return nil
}

// ToggleRoute flips a track's route visibility
func (c *Clock) ToggleRoute(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.lookup(id)
	if err != nil {
		return err
	}
	t.ToggleRoute()
	return nil
}

// Highlight shows a track, frames its route and animates it
func (c *Clock) Highlight(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.lookup(id)
	if err != nil {
		return err
	}
	t.ShowObject(true)
	c.refresh(t)
	t.Highlight()
	return nil
}

func (c *Clock) SetShowAllObjects(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry.SetShowAllObjects(v)
	if v {
		c.registry.Each(c.refresh)
	}
}

func (c *Clock) SetShowAllRoutes(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry.SetShowAllRoutes(v)
}

func (c *Clock) SetAutoHideRoutes(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry.SetAutoHideRoutes(v)
}

// TrackView is a read-only copy of a track for display
type TrackView struct {
	ID            string             `json:"id"`
	Title         string             `json:"title"`
	Color         string             `json:"color"`
	Fields        tracking.KeyFields `json:"fields"`
	Summary       string             `json:"summary"`
	Visible       bool               `json:"visible"`
	RouteVisible  bool               `json:"routeVisible"`
	AutoHideRoute bool               `json:"autoHideRoute"`
	Points        int                `json:"points"`
	DistanceKM    float64            `json:"distanceKm"`
	Distance      string             `json:"distance"`
	Position      *mapsurface.LatLon `json:"position,omitempty"`
	RecordedAt    *float64           `json:"recordedAt,omitempty"`
	Raw           map[string]any     `json:"raw,omitempty"`
}

func newTrackView(t *tracking.Track) TrackView {
	v := TrackView{
		ID:            t.ID(),
		Title:         t.Title(),
		Color:         t.Color(),
		Fields:        t.Fields(),
		Summary:       t.Summary(),
		Visible:       t.Visible(),
		RouteVisible:  t.RouteVisible(),
		AutoHideRoute: t.AutoHideRoute(),
		Points:        t.Len(),
		DistanceKM:    t.DistanceKM(),
		Distance:      utils.PresentableDistance(t.DistanceKM()),
	}
	if pos, ok := t.Position(); ok {
		v.Position = &pos
	}
	if cur, ok := t.Current(); ok {
		ts := cur.TS
		v.RecordedAt = &ts
		v.Raw = cur.Raw
	}
	return v
}

// Tracks lists every track ordered by title
func (c *Clock) Tracks() []TrackView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lo.Map(c.registry.Tracks(), func(t *tracking.Track, _ int) TrackView {
		return newTrackView(t)
	})
}

// Track returns one track by id
func (c *Clock) Track(id string) (TrackView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.lookup(id)
	if err != nil {
		return TrackView{}, err
	}
	return newTrackView(t), nil
}

// Status is a snapshot of the clock for display
type Status struct {
	State          State    `json:"state"`
	CurrentTime    *float64 `json:"currentTime,omitempty"`
	BeginTime      *float64 `json:"beginTime,omitempty"`
	EndTime        *float64 `json:"endTime,omitempty"`
	Speed          float64  `json:"speed"`
	RefreshRate    float64  `json:"refreshRate"`
	Realtime       bool     `json:"realtime"`
	TimeWindow     *float64 `json:"timeWindow,omitempty"`
	Tracks         int      `json:"tracks"`
	ShowAllObjects bool     `json:"showAllObjects"`
	ShowAllRoutes  bool     `json:"showAllRoutes"`
	AutoHideRoutes bool     `json:"autoHideRoutes"`
}

// Status returns a consistent snapshot of the clock
func (c *Clock) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{
		State:          c.stateLocked(),
		CurrentTime:    c.current.ptr(),
		BeginTime:      c.begin.ptr(),
		EndTime:        c.end.ptr(),
		Speed:          c.speed,
		RefreshRate:    c.refreshRate,
		Realtime:       c.realtime,
		Tracks:         c.registry.Len(),
		ShowAllObjects: c.registry.ShowAllObjects(),
		ShowAllRoutes:  c.registry.ShowAllRoutes(),
		AutoHideRoutes: c.registry.AutoHideRoutes(),
	}
	if c.window > 0 {
		w := c.window
		s.TimeWindow = &w
	}
	return s
}
