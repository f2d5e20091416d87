package routemap

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/routemap/config"
	"github.com/theoremus-urban-solutions/routemap/ingest"
	"github.com/theoremus-urban-solutions/routemap/internal/timeutil"
	"github.com/theoremus-urban-solutions/routemap/mapsurface"
	"github.com/theoremus-urban-solutions/routemap/playback"
	"github.com/theoremus-urban-solutions/routemap/siri"
	"github.com/theoremus-urban-solutions/routemap/tracking"
	"github.com/theoremus-urban-solutions/routemap/utils"
)

// ViewOption configures a View
type ViewOption func(*viewOptions)

type viewOptions struct {
	log     *zap.Logger
	surface mapsurface.Renderer
	clock   timeutil.Clock
}

func WithLogger(l *zap.Logger) ViewOption { return func(o *viewOptions) { o.log = l } }

// WithSurface overrides the backend chosen by the map config
func WithSurface(s mapsurface.Renderer) ViewOption { return func(o *viewOptions) { o.surface = s } }

// WithClock replaces the wall clock driving playback ticks
func WithClock(c timeutil.Clock) ViewOption { return func(o *viewOptions) { o.clock = c } }

// View is a playback clock bound to a map backend
type View struct {
	clock     *playback.Clock
	surface   mapsurface.Renderer
	log       *zap.Logger
	codespace string
	valid     time.Duration

	// mu keeps the first-batch check and the batch itself together
	mu sync.Mutex
}

// NewView builds the map backend and the clock from cfg
func NewView(cfg config.AppConfig, opts ...ViewOption) (*View, error) {
	o := viewOptions{log: zap.NewNop(), clock: timeutil.RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.surface == nil {
		s, err := NewSurface(cfg.Map)
		if err != nil {
			return nil, err
		}
		o.surface = s
	}

	window, err := windowSeconds(cfg.Playback.TimeWindow)
	if err != nil {
		return nil, err
	}
	clockOpts := []playback.Option{
		playback.WithClock(o.clock),
		playback.WithLogger(o.log),
		playback.WithRealtime(cfg.Playback.Realtime),
		playback.WithTimeWindow(window),
		playback.WithRegistryOptions(tracking.WithRetentionTolerance(cfg.Playback.RetentionTolerance)),
	}
	if cfg.Playback.Speed > 0 {
		clockOpts = append(clockOpts, playback.WithSpeed(cfg.Playback.Speed))
	}
	if cfg.Playback.RefreshRate > 0 {
		clockOpts = append(clockOpts, playback.WithRefreshRate(cfg.Playback.RefreshRate))
	}
	clock, err := playback.New(o.surface, clockOpts...)
	if err != nil {
		return nil, err
	}

	v := &View{
		clock:     clock,
		surface:   o.surface,
		log:       o.log.Named("view"),
		codespace: cfg.Server.Codespace,
		valid:     time.Duration(cfg.GTFSRT.ReadIntervalMS) * time.Millisecond,
	}
	clock.Subscribe(v.onEvent)
	return v, nil
}

func windowSeconds(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	secs, err := utils.ParseTimeWindow(s)
	if err != nil {
		return 0, fmt.Errorf("playback time window: %w", err)
	}
	return secs, nil
}

func (v *View) Clock() *playback.Clock       { return v.clock }
func (v *View) Surface() mapsurface.Renderer { return v.surface }
func (v *View) Close()                       { v.clock.Close() }

// onEvent runs with the clock locked
func (v *View) onEvent(e tracking.Event) {
	if e.Track == nil {
		v.log.Debug("tracks cleared")
		return
	}
	v.log.Debug("track "+e.Type.String(), zap.String("id", e.Track.ID()), zap.String("title", e.Track.Title()))
}

// AddDataPoints renders a batch. The first batch after startup or a reset
// turns every object and route on and frames the map; every batch resumes playback.
func (v *View) AddDataPoints(records []ingest.Record) ingest.BatchResult {
	v.mu.Lock()
	defer v.mu.Unlock()

	_, hasData := v.clock.CurrentTime()
	if !hasData {
		v.clock.SetShowAllObjects(true)
		v.clock.SetShowAllRoutes(true)
	}
	res := v.clock.AddDataPoints(records)
	if !hasData {
		v.clock.AutoZoom()
	}
	v.clock.Play()
	return res
}

// ApplyPlayback updates the clock from a reloaded playback section
func (v *View) ApplyPlayback(cfg config.PlaybackConfig) error {
	window, err := windowSeconds(cfg.TimeWindow)
	if err != nil {
		return err
	}
	if cfg.Speed > 0 {
		if err := v.clock.SetSpeed(cfg.Speed); err != nil {
			return err
		}
	}
	if cfg.RefreshRate > 0 {
		if err := v.clock.SetRefreshRate(cfg.RefreshRate); err != nil {
			return err
		}
	}
	v.clock.SetTimeWindow(window)
	if v.clock.Realtime() != cfg.Realtime {
		v.clock.SetRealtime(cfg.Realtime)
	}
	v.log.Info("playback settings applied",
		zap.Float64("speed", cfg.Speed),
		zap.Float64("refreshRate", cfg.RefreshRate),
		zap.Bool("realtime", cfg.Realtime),
		zap.Float64("window", window))
	return nil
}

// VehicleMonitoring exports the resolved positions at the current time
func (v *View) VehicleMonitoring(lineRef, vehicleRef string) *siri.SiriResponse {
	at, ok := v.clock.CurrentTime()
	if !ok {
		at = utils.EpochFromTime(time.Now())
	}
	vm := BuildVehicleMonitoring(v.clock.Tracks(), at, v.codespace, v.valid)
	return WrapVehicleMonitoring(vm, lineRef, vehicleRef, at, v.codespace)
}
