package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/routemap/ingest"
	"github.com/theoremus-urban-solutions/routemap/mapsurface"
	"github.com/theoremus-urban-solutions/routemap/playback"
	"github.com/theoremus-urban-solutions/routemap/siri"
)

// VehicleMonitoringFunc builds the SIRI export filtered by line and vehicle
type VehicleMonitoringFunc func(lineRef, vehicleRef string) *siri.SiriResponse

// Deps are the collaborators the handlers call into
type Deps struct {
	Clock             *playback.Clock
	Sink              ingest.Sink
	Renderer          mapsurface.Renderer
	VehicleMonitoring VehicleMonitoringFunc
	CORSOrigins       []string
	Logger            *zap.Logger
}

type Server struct {
	deps    Deps
	log     *zap.Logger
	started time.Time
	router  *gin.Engine
}

// NewServer builds the router. Sink defaults to the clock itself.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Sink == nil {
		deps.Sink = deps.Clock
	}
	s := &Server{deps: deps, log: deps.Logger.Named("api"), started: time.Now()}
	s.router = s.routes()
	return s
}

// Handler returns the router wrapped with CORS
func (s *Server) Handler() http.Handler {
	return newCORS(s.deps.CORSOrigins).Handler(s.router)
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/state", s.handleState)

	api.POST("/play", s.handlePlay)
	api.POST("/pause", s.handlePause)
	api.PUT("/time", s.handleSetTime)
	api.PUT("/speed", s.handleSetSpeed)
	api.PUT("/refresh-rate", s.handleSetRefreshRate)
	api.PUT("/realtime", s.handleSetRealtime)
	api.PUT("/time-window", s.handleSetTimeWindow)
	api.DELETE("/time-window", s.handleClearTimeWindow)
	api.POST("/autozoom", s.handleAutoZoom)

	api.POST("/data", s.handleAddData)
	api.GET("/tracks", s.handleListTracks)
	api.DELETE("/tracks", s.handleRemoveAll)
	api.GET("/tracks/:id", s.handleGetTrack)
	api.PUT("/tracks/:id/object", s.handleShowObject)
	api.PUT("/tracks/:id/route", s.handleShowRoute)
	api.POST("/tracks/:id/toggle-object", s.handleToggleObject)
	api.POST("/tracks/:id/toggle-route", s.handleToggleRoute)
	api.POST("/tracks/:id/highlight", s.handleHighlight)

	api.PUT("/show-all/objects", s.handleShowAllObjects)
	api.PUT("/show-all/routes", s.handleShowAllRoutes)
	api.PUT("/auto-hide-routes", s.handleAutoHideRoutes)

	api.GET("/map", s.handleMap)
	api.GET("/siri/vehicle-monitoring.json", s.handleVehicleMonitoringJSON)
	api.GET("/siri/vehicle-monitoring.xml", s.handleVehicleMonitoringXML)
	return r
}

func newCORS(origins []string) *cors.Cors {
	opts := cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowedHeaders: []string{"*"},
	}
	if len(origins) == 0 {
		opts.AllowOriginFunc = func(string) bool { return true }
	} else {
		opts.AllowedOrigins = origins
	}
	return cors.New(opts)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}
