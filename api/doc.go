// Package api exposes the playback engine over HTTP.
//
// The control surface mirrors the interactive controls of the map view:
// play and pause, time, speed, refresh rate, real-time mode and the sliding
// window, per-track toggles and the show-all flags. It also accepts data
// points, serves the current track list, a rendered map snapshot and a SIRI
// VehicleMonitoring export of the positions at the current time.
package api
