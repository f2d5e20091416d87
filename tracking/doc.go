// Package tracking keeps the per-vehicle position history behind the map replay.
//
// A Track owns one entity's ordered points, resolves its position at a query time
// (latest point in real-time mode, linear interpolation in historical mode), evicts
// points that fell out of the time window and keeps its marker and route polyline
// on a mapsurface.Surface consistent with that data.
//
// A Registry maps entity keys to tracks, creates tracks on first sighting and owns
// the "show all" policy flags that new tracks inherit.
//
// Neither type is safe for concurrent use; the playback clock serialises access.
package tracking
