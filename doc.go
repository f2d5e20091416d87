// Package routemap wires the playback engine into a running map view.
//
// A View owns the playback clock, the map backend selected by configuration
// and the SIRI export of the current positions. It is the sink every ingestion
// source feeds: the first batch turns every track and route on and frames the
// map, and each batch restarts playback.
package routemap
