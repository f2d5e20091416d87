// Package staticmap renders the map scene as a Google Static Maps image.
package staticmap

import (
	"context"
	"fmt"
	"image/png"
	"io"
	"strings"

	"googlemaps.github.io/maps"

	"github.com/theoremus-urban-solutions/routemap/mapsurface"
)

// maxPathPoints keeps request URLs under the Static Maps length limit
const maxPathPoints = 100

// Map is a recording surface that renders through the Static Maps API
type Map struct {
	*mapsurface.Recorder
	client        *maps.Client
	width, height int
}

// New creates a map using apiKey. Images are clamped to the 640x640 API maximum.
func New(apiKey string, width, height int) (*Map, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &Map{
		Recorder: mapsurface.NewRecorder(),
		client:   client,
		width:    clamp(width),
		height:   clamp(height),
	}, nil
}

func clamp(n int) int {
	if n <= 0 || n > 640 {
		return 640
	}
	return n
}

func (m *Map) ContentType() string { return "image/png" }

// Render fetches the image for the current scene and writes it as PNG
func (m *Map) Render(ctx context.Context, w io.Writer) error {
	req := m.Request()
	if len(req.Markers) == 0 && len(req.Paths) == 0 && len(req.Visible) == 0 {
		return fmt.Errorf("nothing to render")
	}
	img, err := m.client.StaticMap(ctx, req)
	if err != nil {
		return fmt.Errorf("maps api error: %w", err)
	}
	return png.Encode(w, img)
}

// Request builds the Static Maps request for the current scene
func (m *Map) Request() *maps.StaticMapRequest {
	scene := m.Snapshot()
	req := &maps.StaticMapRequest{
		Size:    fmt.Sprintf("%dx%d", m.width, m.height),
		Format:  maps.PNG32,
		MapType: maps.RoadMap,
	}
	for _, pl := range scene.Polylines {
		if len(pl.Path) < 2 {
			continue
		}
		req.Paths = append(req.Paths, maps.Path{
			Weight:   3,
			Color:    hexColor(pl.Color),
			Location: toLatLngs(downsample(pl.Path, maxPathPoints)),
		})
	}
	for _, mk := range scene.Markers {
		size := string(maps.Small)
		if mk.Highlights > 0 {
			size = string(maps.Mid)
		}
		req.Markers = append(req.Markers, maps.Marker{
			Color:    hexColor(mk.Color),
			Size:     size,
			Location: toLatLngs([]mapsurface.LatLon{mk.Position}),
		})
	}
	if vp := scene.Viewport; vp != nil {
		req.Visible = []maps.LatLng{
			{Lat: vp.South, Lng: vp.West},
			{Lat: vp.North, Lng: vp.East},
		}
	}
	return req
}

// hexColor converts "#rrggbb" to the 0xrrggbb form the API expects
func hexColor(c string) string {
	return "0x" + strings.TrimPrefix(mapsurface.ColorOrDefault(c), "#")
}

func toLatLngs(path []mapsurface.LatLon) []maps.LatLng {
	out := make([]maps.LatLng, len(path))
	for i, p := range path {
		out[i] = maps.LatLng{Lat: p.Lat, Lng: p.Lon}
	}
	return out
}

// downsample keeps at most n points, always including the first and last
func downsample(path []mapsurface.LatLon, n int) []mapsurface.LatLon {
	if len(path) <= n || n < 2 {
		return path
	}
	out := make([]mapsurface.LatLon, 0, n)
	step := float64(len(path)-1) / float64(n-1)
	for i := 0; i < n; i++ {
		out = append(out, path[int(float64(i)*step+0.5)])
	}
	return out
}
