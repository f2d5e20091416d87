// Package mapsurface defines the drawing capability the playback engine renders into.
//
// A Surface creates markers and polylines and can fit its viewport to a set of
// coordinates. Handles returned by a Surface apply their operations in call order.
//
// Recorder is an in-memory Surface that keeps the current scene and an operation
// log. It backs the headless server and the snapshot renderers in the echarts,
// plot and staticmap sub-packages.
package mapsurface
