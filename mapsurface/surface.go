package mapsurface

import (
	"context"
	"io"

	"gonum.org/v1/gonum/floats"
)

// LatLon is a WGS84 coordinate
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// MarkerOptions describes a new marker
type MarkerOptions struct {
	Position LatLon
	Title    string
	Color    string
}

// PolylineOptions describes a new polyline; Path is ordered oldest to newest
type PolylineOptions struct {
	Path  []LatLon
	Title string
	Color string
}

// Surface is the map backend consumed by the tracking engine
type Surface interface {
	AddMarker(opts MarkerOptions) Marker
	AddPolyline(opts PolylineOptions) Polyline
	FitBounds(points []LatLon)
}

// Marker is a handle to a rendered marker
type Marker interface {
	Move(pos LatLon)
	Remove()
	Highlight()
}

// Polyline is a handle to a rendered route trail
type Polyline interface {
	AddPoint(pos LatLon)
	RemovePoint(index int)
	Remove()
	Highlight()
	ZoomTo()
}

// Renderer is a Surface that can write a snapshot of its scene
type Renderer interface {
	Surface
	Render(ctx context.Context, w io.Writer) error
	ContentType() string
}

// Bounds is a lat/lon bounding box
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Center returns the midpoint of the box
func (b Bounds) Center() LatLon {
	return LatLon{Lat: (b.South + b.North) / 2, Lon: (b.West + b.East) / 2}
}

// BoundsOf returns the bounding box of points. ok is false for an empty input.
func BoundsOf(points []LatLon) (b Bounds, ok bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}
	lats := make([]float64, len(points))
	lons := make([]float64, len(points))
	for i, p := range points {
		lats[i] = p.Lat
		lons[i] = p.Lon
	}
	return Bounds{
		South: floats.Min(lats),
		West:  floats.Min(lons),
		North: floats.Max(lats),
		East:  floats.Max(lons),
	}, true
}
