// Package echarts renders the map scene as an interactive HTML scatter chart.
//
// Longitude is plotted on the X axis and latitude on the Y axis. Every route
// is a series of small dots in the track color and the live markers form one
// series of large symbols, so the snapshot needs no tile server.
package echarts

import (
	"context"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/theoremus-urban-solutions/routemap/mapsurface"
)

// Map is a recording surface that renders to HTML
type Map struct {
	*mapsurface.Recorder
	title      string
	width      string
	height     string
	assetsHost string
}

type Option func(*Map)

// WithSize sets the canvas size in pixels
func WithSize(width, height int) Option {
	return func(m *Map) {
		if width > 0 {
			m.width = fmt.Sprintf("%dpx", width)
		}
		if height > 0 {
			m.height = fmt.Sprintf("%dpx", height)
		}
	}
}

// WithAssetsHost serves the echarts javascript from host instead of the public CDN
func WithAssetsHost(host string) Option { return func(m *Map) { m.assetsHost = host } }

func New(title string, opts ...Option) *Map {
	if title == "" {
		title = "routemap"
	}
	m := &Map{
		Recorder: mapsurface.NewRecorder(),
		title:    title,
		width:    "1024px",
		height:   "768px",
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Map) ContentType() string { return "text/html; charset=utf-8" }

// Render writes the scene as a standalone HTML page
func (m *Map) Render(_ context.Context, w io.Writer) error {
	scene := m.Snapshot()

	init := opts.Initialization{PageTitle: m.title, Width: m.width, Height: m.height}
	if m.assetsHost != "" {
		init.AssetsHost = m.assetsHost
	}
	xAxis := opts.XAxis{Name: "Longitude", NameLocation: "middle", NameGap: 25, Scale: opts.Bool(true)}
	yAxis := opts.YAxis{Name: "Latitude", NameLocation: "middle", NameGap: 40, Scale: opts.Bool(true)}
	if vp := viewport(scene); vp != nil {
		xAxis.Min, xAxis.Max = vp.West, vp.East
		yAxis.Min, yAxis.Max = vp.South, vp.North
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(init),
		charts.WithTitleOpts(opts.Title{
			Title:    m.title,
			Subtitle: fmt.Sprintf("objects=%d routes=%d", len(scene.Markers), len(scene.Polylines)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(len(scene.Polylines) > 0)}),
		charts.WithXAxisOpts(xAxis),
		charts.WithYAxisOpts(yAxis),
	)

	for _, pl := range scene.Polylines {
		data := make([]opts.ScatterData, 0, len(pl.Path))
		for _, p := range pl.Path {
			data = append(data, opts.ScatterData{Value: []interface{}{p.Lon, p.Lat}})
		}
		scatter.AddSeries(pl.Title, data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: mapsurface.ColorOrDefault(pl.Color)}),
		)
	}

	if len(scene.Markers) > 0 {
		data := make([]opts.ScatterData, 0, len(scene.Markers))
		for _, mk := range scene.Markers {
			size := 12
			if mk.Highlights > 0 {
				size = 18
			}
			data = append(data, opts.ScatterData{
				Name:       mk.Title,
				Value:      []interface{}{mk.Position.Lon, mk.Position.Lat},
				SymbolSize: size,
			})
		}
		scatter.AddSeries("objects", data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#d62728"}),
		)
	}

	return scatter.Render(w)
}

// viewport is the last fitted box, else the bounds of everything drawn
func viewport(scene mapsurface.Scene) *mapsurface.Bounds {
	if scene.Viewport != nil {
		return scene.Viewport
	}
	if b, ok := mapsurface.BoundsOf(scene.Points()); ok {
		return &b
	}
	return nil
}
