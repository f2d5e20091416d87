package echarts

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/routemap/mapsurface"
)

func TestMap_Render(t *testing.T) {
	m := New("Vehicles", WithSize(640, 480))
	m.AddPolyline(mapsurface.PolylineOptions{
		Path:  []mapsurface.LatLon{{Lat: 52.1, Lon: 4.1}, {Lat: 52.2, Lon: 4.2}},
		Title: "route: 7",
		Color: "#2ca02c",
	})
	m.AddMarker(mapsurface.MarkerOptions{Position: mapsurface.LatLon{Lat: 52.15, Lon: 4.15}, Title: "bus 1"})

	var buf bytes.Buffer
	require.NoError(t, m.Render(context.Background(), &buf))
	out := buf.String()

	assert.True(t, strings.HasPrefix(m.ContentType(), "text/html"))
	assert.Contains(t, out, "<title>Vehicles</title>")
	assert.Contains(t, out, "route: 7")
	assert.Contains(t, out, "bus 1")
	assert.Contains(t, out, "640px")
}

func TestMap_RenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New("").Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), "routemap")
}
