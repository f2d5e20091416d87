package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/routemap/formatter"
	"github.com/theoremus-urban-solutions/routemap/ingest"
	"github.com/theoremus-urban-solutions/routemap/playback"
	"github.com/theoremus-urban-solutions/routemap/utils"
)

// maxDataBody bounds POST /api/data payloads
const maxDataBody = 8 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status        string   `json:"status"`
	State         string   `json:"state"`
	Tracks        int      `json:"tracks"`
	LatestEpoch   *float64 `json:"latest_epoch,omitempty"`
	UptimeSeconds int64    `json:"uptime_seconds"`
}

type valueRequest struct {
	Value *float64 `json:"value" binding:"required"`
}

type timeRequest struct {
	Time *float64 `json:"time" binding:"required"`
}

type flagRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type visibleRequest struct {
	Visible *bool `json:"visible" binding:"required"`
}

// windowRequest sets the window either as "rt-30m" or in seconds
type windowRequest struct {
	Window  string   `json:"window"`
	Seconds *float64 `json:"seconds"`
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Error: msg})
}

func writeClockError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, playback.ErrUnknownTrack):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, playback.ErrInvalidRate):
		writeError(c, http.StatusBadRequest, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeState(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Clock.Status())
}

func (s *Server) handleHealth(c *gin.Context) {
	st := s.deps.Clock.Status()
	c.JSON(http.StatusOK, healthResponse{
		Status:        "ok",
		State:         st.State.String(),
		Tracks:        st.Tracks,
		LatestEpoch:   st.EndTime,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleState(c *gin.Context) { s.writeState(c) }

func (s *Server) handlePlay(c *gin.Context) {
	s.deps.Clock.Play()
	s.writeState(c)
}

func (s *Server) handlePause(c *gin.Context) {
	s.deps.Clock.Pause()
	s.writeState(c)
}

func (s *Server) handleSetTime(c *gin.Context) {
	var req timeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	s.deps.Clock.SetCurrentTime(*req.Time)
	s.writeState(c)
}

func (s *Server) handleSetSpeed(c *gin.Context) {
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Clock.SetSpeed(*req.Value); err != nil {
		writeClockError(c, err)
		return
	}
	s.writeState(c)
}

func (s *Server) handleSetRefreshRate(c *gin.Context) {
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Clock.SetRefreshRate(*req.Value); err != nil {
		writeClockError(c, err)
		return
	}
	s.writeState(c)
}

func (s *Server) handleSetRealtime(c *gin.Context) {
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	s.deps.Clock.SetRealtime(*req.Enabled)
	s.writeState(c)
}

func (s *Server) handleSetTimeWindow(c *gin.Context) {
	var req windowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	switch {
	case req.Seconds != nil:
		s.deps.Clock.SetTimeWindow(*req.Seconds)
	case req.Window != "":
		secs, err := utils.ParseTimeWindow(req.Window)
		if err != nil {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		s.deps.Clock.SetTimeWindow(secs)
	default:
		writeError(c, http.StatusBadRequest, "window or seconds is required")
		return
	}
	s.writeState(c)
}

func (s *Server) handleClearTimeWindow(c *gin.Context) {
	s.deps.Clock.ClearTimeWindow()
	s.writeState(c)
}

func (s *Server) handleAutoZoom(c *gin.Context) {
	s.deps.Clock.AutoZoom()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAddData(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDataBody))
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	records, err := ingest.DecodeJSON(body)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	res := s.deps.Sink.AddDataPoints(records)
	s.log.Debug("data received", zap.Int("records", len(records)), zap.Int("accepted", res.Accepted))
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleListTracks(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Clock.Tracks())
}

func (s *Server) handleRemoveAll(c *gin.Context) {
	s.deps.Clock.RemoveAllObjects()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetTrack(c *gin.Context) {
	v, err := s.deps.Clock.Track(c.Param("id"))
	if err != nil {
		writeClockError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// trackAction runs op on the track named in the path and replies with its new view
func (s *Server) trackAction(c *gin.Context, op func(id string) error) {
	id := c.Param("id")
	if err := op(id); err != nil {
		writeClockError(c, err)
		return
	}
	v, err := s.deps.Clock.Track(id)
	if err != nil {
		writeClockError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) handleShowObject(c *gin.Context) {
	var req visibleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	s.trackAction(c, func(id string) error { return s.deps.Clock.ShowObject(id, *req.Visible) })
}

func (s *Server) handleShowRoute(c *gin.Context) {
	var req visibleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	s.trackAction(c, func(id string) error { return s.deps.Clock.ShowRoute(id, *req.Visible) })
}

func (s *Server) handleToggleObject(c *gin.Context) { s.trackAction(c, s.deps.Clock.ToggleObject) }
func (s *Server) handleToggleRoute(c *gin.Context)  { s.trackAction(c, s.deps.Clock.ToggleRoute) }
func (s *Server) handleHighlight(c *gin.Context)    { s.trackAction(c, s.deps.Clock.Highlight) }

func (s *Server) bindFlag(c *gin.Context, set func(bool)) {
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	set(*req.Enabled)
	s.writeState(c)
}

func (s *Server) handleShowAllObjects(c *gin.Context) { s.bindFlag(c, s.deps.Clock.SetShowAllObjects) }
func (s *Server) handleShowAllRoutes(c *gin.Context)  { s.bindFlag(c, s.deps.Clock.SetShowAllRoutes) }
func (s *Server) handleAutoHideRoutes(c *gin.Context) { s.bindFlag(c, s.deps.Clock.SetAutoHideRoutes) }

func (s *Server) handleMap(c *gin.Context) {
	if s.deps.Renderer == nil {
		writeError(c, http.StatusNotImplemented, "map backend cannot render snapshots")
		return
	}
	var buf bytes.Buffer
	if err := s.deps.Renderer.Render(c.Request.Context(), &buf); err != nil {
		s.log.Warn("map render failed", zap.Error(err))
		writeError(c, http.StatusBadGateway, err.Error())
		return
	}
	c.Data(http.StatusOK, s.deps.Renderer.ContentType(), buf.Bytes())
}

func (s *Server) handleVehicleMonitoringJSON(c *gin.Context) {
	if s.deps.VehicleMonitoring == nil {
		writeError(c, http.StatusNotImplemented, "vehicle monitoring export disabled")
		return
	}
	res := s.deps.VehicleMonitoring(c.Query("LineRef"), c.Query("VehicleRef"))
	c.Data(http.StatusOK, "application/json", responseBuilder(c).BuildJSON(res))
}

func (s *Server) handleVehicleMonitoringXML(c *gin.Context) {
	if s.deps.VehicleMonitoring == nil {
		writeError(c, http.StatusNotImplemented, "vehicle monitoring export disabled")
		return
	}
	res := s.deps.VehicleMonitoring(c.Query("LineRef"), c.Query("VehicleRef"))
	c.Data(http.StatusOK, "application/xml", responseBuilder(c, formatter.WithXMLHeader()).BuildXML(res))
}

// responseBuilder honours ?pretty on the export endpoints
func responseBuilder(c *gin.Context, opts ...formatter.BuilderOption) *formatter.ResponseBuilder {
	if c.Query("pretty") != "" {
		opts = append(opts, formatter.WithIndent("  "))
	}
	return formatter.NewResponseBuilder(opts...)
}
