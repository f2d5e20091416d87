// Package plot renders the map scene to a PNG image with gonum/plot.
package plot

import (
	"context"
	"fmt"
	"io"

	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/theoremus-urban-solutions/routemap/mapsurface"
)

// Map is a recording surface that renders to PNG
type Map struct {
	*mapsurface.Recorder
	title         string
	width, height vg.Length
}

// New creates a map whose images are width x height pixels
func New(title string, width, height int) *Map {
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 768
	}
	return &Map{
		Recorder: mapsurface.NewRecorder(),
		title:    title,
		width:    pixels(width),
		height:   pixels(height),
	}
}

// pixels converts a pixel count to a length at the PNG default of 96 dpi
func pixels(n int) vg.Length {
	return vg.Length(n) * vg.Inch / 96
}

func (m *Map) ContentType() string { return "image/png" }

// Render draws routes as lines and markers as circles
func (m *Map) Render(_ context.Context, w io.Writer) error {
	scene := m.Snapshot()

	p := gplot.New()
	p.Title.Text = m.title
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"
	p.Add(plotter.NewGrid())

	for _, pl := range scene.Polylines {
		if len(pl.Path) == 0 {
			continue
		}
		line, err := plotter.NewLine(toXYs(pl.Path))
		if err != nil {
			return fmt.Errorf("route %s: %w", pl.Title, err)
		}
		c, err := mapsurface.ParseHexColor(mapsurface.ColorOrDefault(pl.Color))
		if err != nil {
			return err
		}
		line.LineStyle.Color = c
		line.LineStyle.Width = vg.Points(1.5)
		p.Add(line)
	}

	for _, mk := range scene.Markers {
		sc, err := plotter.NewScatter(toXYs([]mapsurface.LatLon{mk.Position}))
		if err != nil {
			return fmt.Errorf("marker %s: %w", mk.Title, err)
		}
		c, err := mapsurface.ParseHexColor(mapsurface.ColorOrDefault(mk.Color))
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = c
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(4)
		if mk.Highlights > 0 {
			sc.GlyphStyle.Radius = vg.Points(6)
		}
		p.Add(sc)
	}

	if vp := scene.Viewport; vp != nil {
		p.X.Min, p.X.Max = vp.West, vp.East
		p.Y.Min, p.Y.Max = vp.South, vp.North
	}

	wt, err := p.WriterTo(m.width, m.height, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

func toXYs(path []mapsurface.LatLon) plotter.XYs {
	xys := make(plotter.XYs, len(path))
	for i, p := range path {
		xys[i] = plotter.XY{X: p.Lon, Y: p.Lat}
	}
	return xys
}
