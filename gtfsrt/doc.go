// Package gtfsrt turns GTFS-Realtime VehiclePositions feeds into ingest records.
//
// DecodeVehiclePositions parses one protobuf FeedMessage. Each vehicle entity
// becomes a record keyed by route_id and vehicle_id. Poller fetches a feed URL
// on a fixed interval and forwards the decoded records to an ingest.Sink.
package gtfsrt
