package gtfsrt

import (
	"fmt"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/theoremus-urban-solutions/routemap/ingest"
	"github.com/theoremus-urban-solutions/routemap/tracking"
)

// Key field names used for vehicle tracks
const (
	FieldRouteID   = "route_id"
	FieldVehicleID = "vehicle_id"
)

// ParseFeed unmarshals a protobuf FeedMessage
func ParseFeed(data []byte) (*gtfsrtpb.FeedMessage, error) {
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(data, &fm); err != nil {
		return nil, fmt.Errorf("decode feed message: %w", err)
	}
	return &fm, nil
}

// DecodeVehiclePositions converts every vehicle entity of a VehiclePositions feed into a record.
// Entities without a position or a vehicle id are skipped. The vehicle timestamp is used
// when present, otherwise the feed header timestamp.
func DecodeVehiclePositions(data []byte) ([]ingest.Record, error) {
	fm, err := ParseFeed(data)
	if err != nil {
		return nil, err
	}
	return VehicleRecords(fm), nil
}

// VehicleRecords extracts records from an already parsed feed
func VehicleRecords(fm *gtfsrtpb.FeedMessage) []ingest.Record {
	headerTS := fm.GetHeader().GetTimestamp()

	var out []ingest.Record
	for _, e := range fm.GetEntity() {
		if e.GetIsDeleted() {
			continue
		}
		vp := e.GetVehicle()
		if vp == nil || vp.GetPosition() == nil {
			continue
		}
		vehicleID := vp.GetVehicle().GetId()
		if vehicleID == "" {
			vehicleID = e.GetId()
		}
		if vehicleID == "" {
			continue
		}
		ts := vp.GetTimestamp()
		if ts == 0 {
			ts = headerTS
		}
		if ts == 0 {
			continue
		}

		pos := vp.GetPosition()
		raw := map[string]any{}
		if tripID := vp.GetTrip().GetTripId(); tripID != "" {
			raw["trip_id"] = tripID
		}
		if label := vp.GetVehicle().GetLabel(); label != "" {
			raw["label"] = label
		}
		if pos.Bearing != nil {
			raw["bearing"] = float64(pos.GetBearing())
		}
		if pos.Speed != nil {
			raw["speed"] = float64(pos.GetSpeed())
		}
		if len(raw) == 0 {
			raw = nil
		}

		out = append(out, ingest.Record{
			Fields: tracking.KeyFields{
				FieldRouteID:   vp.GetTrip().GetRouteId(),
				FieldVehicleID: vehicleID,
			},
			Point: tracking.Point{
				TS:  float64(ts),
				Lat: float64(pos.GetLatitude()),
				Lon: float64(pos.GetLongitude()),
				Raw: raw,
			},
		})
	}
	return out
}
