package mapsurface

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// OpKind names a recorded surface operation
type OpKind string

const (
	OpAddMarker         OpKind = "marker.add"
	OpMoveMarker        OpKind = "marker.move"
	OpRemoveMarker      OpKind = "marker.remove"
	OpHighlightMarker   OpKind = "marker.highlight"
	OpAddPolyline       OpKind = "polyline.add"
	OpAddPolylinePoint  OpKind = "polyline.addPoint"
	OpRemovePolylinePt  OpKind = "polyline.removePoint"
	OpRemovePolyline    OpKind = "polyline.remove"
	OpHighlightPolyline OpKind = "polyline.highlight"
	OpZoomToPolyline    OpKind = "polyline.zoomTo"
	OpFitBounds         OpKind = "surface.fitBounds"
)

// Op is one entry of the recorder's operation log
type Op struct {
	Kind     OpKind  `json:"kind"`
	Handle   string  `json:"handle,omitempty"`
	Position *LatLon `json:"position,omitempty"`
	Index    int     `json:"index,omitempty"`
	Count    int     `json:"count,omitempty"`
}

// MarkerState is the current state of a live marker
type MarkerState struct {
	ID         string `json:"id"`
	Position   LatLon `json:"position"`
	Title      string `json:"title"`
	Color      string `json:"color"`
	Highlights int    `json:"highlights"`
	seq        int
}

// PolylineState is the current state of a live polyline
type PolylineState struct {
	ID         string   `json:"id"`
	Path       []LatLon `json:"path"`
	Title      string   `json:"title"`
	Color      string   `json:"color"`
	Highlights int      `json:"highlights"`
	seq        int
}

// Scene is a copy of everything currently drawn
type Scene struct {
	Markers   []MarkerState   `json:"markers"`
	Polylines []PolylineState `json:"polylines"`
	Viewport  *Bounds         `json:"viewport,omitempty"`
}

// Points returns every coordinate in the scene
func (s Scene) Points() []LatLon {
	var out []LatLon
	for _, m := range s.Markers {
		out = append(out, m.Position)
	}
	for _, p := range s.Polylines {
		out = append(out, p.Path...)
	}
	return out
}

// RecorderOption configures a Recorder
type RecorderOption func(*Recorder)

// WithOpLimit keeps at most n operations in the log (0 keeps all)
func WithOpLimit(n int) RecorderOption {
	return func(r *Recorder) { r.opLimit = n }
}

// Recorder is an in-memory Surface
type Recorder struct {
	mu        sync.Mutex
	seq       int
	markers   map[string]*MarkerState
	polylines map[string]*PolylineState
	viewport  *Bounds
	ops       []Op
	opLimit   int
}

// NewRecorder creates an empty Recorder
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{
		markers:   map[string]*MarkerState{},
		polylines: map[string]*PolylineState{},
		opLimit:   10000,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) record(op Op) {
	r.ops = append(r.ops, op)
	if r.opLimit > 0 && len(r.ops) > r.opLimit {
		r.ops = append([]Op(nil), r.ops[len(r.ops)-r.opLimit:]...)
	}
}

// AddMarker implements Surface
func (r *Recorder) AddMarker(opts MarkerOptions) Marker {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	m := &MarkerState{
		ID:       uuid.NewString(),
		Position: opts.Position,
		Title:    opts.Title,
		Color:    opts.Color,
		seq:      r.seq,
	}
	r.markers[m.ID] = m
	pos := opts.Position
	r.record(Op{Kind: OpAddMarker, Handle: m.ID, Position: &pos})
	return &recordedMarker{r: r, id: m.ID}
}

// AddPolyline implements Surface
func (r *Recorder) AddPolyline(opts PolylineOptions) Polyline {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	p := &PolylineState{
		ID:    uuid.NewString(),
		Path:  append([]LatLon(nil), opts.Path...),
		Title: opts.Title,
		Color: opts.Color,
		seq:   r.seq,
	}
	r.polylines[p.ID] = p
	r.record(Op{Kind: OpAddPolyline, Handle: p.ID, Count: len(p.Path)})
	return &recordedPolyline{r: r, id: p.ID}
}

// FitBounds implements Surface
func (r *Recorder) FitBounds(points []LatLon) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(Op{Kind: OpFitBounds, Count: len(points)})
	if b, ok := BoundsOf(points); ok {
		r.viewport = &b
	}
}

// Snapshot returns a copy of the current scene in creation order
func (r *Recorder) Snapshot() Scene {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s Scene
	for _, m := range r.markers {
		s.Markers = append(s.Markers, *m)
	}
	for _, p := range r.polylines {
		cp := *p
		cp.Path = append([]LatLon(nil), p.Path...)
		s.Polylines = append(s.Polylines, cp)
	}
	sort.Slice(s.Markers, func(i, j int) bool { return s.Markers[i].seq < s.Markers[j].seq })
	sort.Slice(s.Polylines, func(i, j int) bool { return s.Polylines[i].seq < s.Polylines[j].seq })
	if r.viewport != nil {
		vp := *r.viewport
		s.Viewport = &vp
	}
	return s
}

// Ops returns a copy of the operation log
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Op(nil), r.ops...)
}

// ResetOps clears the operation log
func (r *Recorder) ResetOps() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
}

type recordedMarker struct {
	r  *Recorder
	id string
}

func (m *recordedMarker) Move(pos LatLon) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	st, ok := m.r.markers[m.id]
	if !ok {
		return
	}
	st.Position = pos
	m.r.record(Op{Kind: OpMoveMarker, Handle: m.id, Position: &pos})
}

func (m *recordedMarker) Remove() {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	if _, ok := m.r.markers[m.id]; !ok {
		return
	}
	delete(m.r.markers, m.id)
	m.r.record(Op{Kind: OpRemoveMarker, Handle: m.id})
}

func (m *recordedMarker) Highlight() {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	st, ok := m.r.markers[m.id]
	if !ok {
		return
	}
	st.Highlights++
	m.r.record(Op{Kind: OpHighlightMarker, Handle: m.id})
}

type recordedPolyline struct {
	r  *Recorder
	id string
}

func (p *recordedPolyline) AddPoint(pos LatLon) {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	st, ok := p.r.polylines[p.id]
	if !ok {
		return
	}
	st.Path = append(st.Path, pos)
	p.r.record(Op{Kind: OpAddPolylinePoint, Handle: p.id, Position: &pos})
}

func (p *recordedPolyline) RemovePoint(index int) {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	st, ok := p.r.polylines[p.id]
	if !ok || index < 0 || index >= len(st.Path) {
		return
	}
	st.Path = append(st.Path[:index], st.Path[index+1:]...)
	p.r.record(Op{Kind: OpRemovePolylinePt, Handle: p.id, Index: index})
}

func (p *recordedPolyline) Remove() {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	if _, ok := p.r.polylines[p.id]; !ok {
		return
	}
	delete(p.r.polylines, p.id)
	p.r.record(Op{Kind: OpRemovePolyline, Handle: p.id})
}

func (p *recordedPolyline) Highlight() {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	st, ok := p.r.polylines[p.id]
	if !ok {
		return
	}
	st.Highlights++
	p.r.record(Op{Kind: OpHighlightPolyline, Handle: p.id})
}

func (p *recordedPolyline) ZoomTo() {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	st, ok := p.r.polylines[p.id]
	if !ok {
		return
	}
	p.r.record(Op{Kind: OpZoomToPolyline, Handle: p.id})
	if b, ok := BoundsOf(st.Path); ok {
		p.r.viewport = &b
	}
}

// Render writes the current scene as JSON
func (r *Recorder) Render(_ context.Context, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Snapshot())
}

func (r *Recorder) ContentType() string { return "application/json" }
