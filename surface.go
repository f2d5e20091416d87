package routemap

import (
	"errors"
	"fmt"

	"github.com/theoremus-urban-solutions/routemap/config"
	"github.com/theoremus-urban-solutions/routemap/mapsurface"
	"github.com/theoremus-urban-solutions/routemap/mapsurface/echarts"
	"github.com/theoremus-urban-solutions/routemap/mapsurface/plot"
	"github.com/theoremus-urban-solutions/routemap/mapsurface/staticmap"
)

// Map backends accepted by NewSurface
const (
	BackendRecorder  = "recorder"
	BackendECharts   = "echarts"
	BackendPlot      = "plot"
	BackendStaticMap = "staticmap"
)

var ErrUnsupportedMapType = errors.New("unsupported map type")

// NewSurface builds the map backend named by cfg.Backend
func NewSurface(cfg config.MapConfig) (mapsurface.Renderer, error) {
	switch cfg.Backend {
	case "", BackendRecorder:
		return mapsurface.NewRecorder(), nil
	case BackendECharts:
		return echarts.New(cfg.Title, echarts.WithSize(cfg.Width, cfg.Height)), nil
	case BackendPlot:
		return plot.New(cfg.Title, cfg.Width, cfg.Height), nil
	case BackendStaticMap:
		return staticmap.New(cfg.APIKey, cfg.Width, cfg.Height)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMapType, cfg.Backend)
	}
}
