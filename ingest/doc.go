// Package ingest turns upstream feed records into tracking points.
//
// Every source produces Records (entity key fields plus one point) and hands
// them in batches to a Sink, normally the playback clock. Sources never assume
// ordering across entities; per-entity ordering is enforced by the tracks.
//
// Flat search rows use the group__ / point__ naming convention:
//
//	group__vehicle=12 group__route=7 point__ts__=1700000000 point__lat__=52.1 point__lon__=4.3 speed=12
//
// becomes key fields {vehicle, route}, the point, and raw {speed}.
package ingest
