package routemap

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/theoremus-urban-solutions/routemap/formatter"
	"github.com/theoremus-urban-solutions/routemap/gtfsrt"
	"github.com/theoremus-urban-solutions/routemap/playback"
	"github.com/theoremus-urban-solutions/routemap/siri"
	"github.com/theoremus-urban-solutions/routemap/utils"
)

// Raw payload keys read into the journey
const (
	rawTripID  = "trip_id"
	rawLabel   = "label"
	rawBearing = "bearing"
	rawSpeed   = "speed"
)

// BuildVehicleMonitoring turns every track with a resolved position into a
// vehicle activity. at is the view's current time; valid sets ValidUntil.
func BuildVehicleMonitoring(tracks []playback.TrackView, at float64, codespace string, valid time.Duration) siri.VehicleMonitoring {
	vm := siri.VehicleMonitoring{
		ResponseTimestamp: utils.Iso8601FromEpoch(at),
		ValidUntil:        utils.ValidUntilFrom(at, valid),
		VehicleActivity:   []siri.VehicleActivityEntry{},
	}
	for _, tv := range tracks {
		if tv.Position == nil {
			continue
		}
		recordedAt := at
		if tv.RecordedAt != nil {
			recordedAt = *tv.RecordedAt
		}
		vm.VehicleActivity = append(vm.VehicleActivity, siri.VehicleActivityEntry{
			RecordedAtTime:          utils.Iso8601FromEpoch(recordedAt),
			ValidUntilTime:          utils.ValidUntilFrom(at, valid),
			MonitoredVehicleJourney: buildMVJ(tv, recordedAt, codespace),
		})
	}
	return vm
}

func buildMVJ(tv playback.TrackView, recordedAt float64, codespace string) siri.MonitoredVehicleJourney {
	if codespace == "" {
		codespace = "UNKNOWN"
	}
	mvj := siri.MonitoredVehicleJourney{
		LineRef:         fieldString(tv.Fields, gtfsrt.FieldRouteID),
		Monitored:       true,
		DataSource:      codespace,
		VehicleLocation: &siri.VehicleLocation{Latitude: tv.Position.Lat, Longitude: tv.Position.Lon},
		VehicleRef:      fieldString(tv.Fields, gtfsrt.FieldVehicleID),
	}
	if mvj.VehicleRef == "" {
		mvj.VehicleRef = tv.Title
	}
	if tripID := fieldString(tv.Raw, rawTripID); tripID != "" {
		mvj.FramedVehicleJourneyRef = &siri.FramedVehicleJourneyRef{
			DataFrameRef:           utils.TimeFromEpoch(recordedAt).Format(time.DateOnly),
			DatedVehicleJourneyRef: tripID,
		}
	}
	mvj.PublishedLineName = fieldString(tv.Raw, rawLabel)
	if b, ok := rawFloat(tv.Raw, rawBearing); ok {
		mvj.Bearing = &b
	}
	if s, ok := rawFloat(tv.Raw, rawSpeed); ok {
		// m/s to km/h
		kmh := int(math.Round(s * 3.6))
		mvj.Velocity = &kmh
	}
	return mvj
}

// WrapVehicleMonitoring filters vm and wraps it in a service delivery
func WrapVehicleMonitoring(vm siri.VehicleMonitoring, lineRef, vehicleRef string, at float64, codespace string) *siri.SiriResponse {
	if lineRef != "" || vehicleRef != "" {
		vm = formatter.FilterVehicleMonitoring(vm, lineRef, vehicleRef)
	}
	return formatter.WrapVehicleMonitoringResponse(vm, at, codespace)
}

func fieldString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func rawFloat(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, !math.IsNaN(v)
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
