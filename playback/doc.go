// Package playback drives the replay of tracked entities over time.
//
// A Clock owns the current, begin and end time of the view, the playback speed
// and refresh rate, the real-time flag and the sliding time window. Setting the
// current time recomputes every visible track's position and drops tracks whose
// history was fully evicted.
//
// In historical mode Play starts a ticker that advances the current time by
// speed/refreshRate seconds every 1/refreshRate seconds and pauses once the end
// time is passed. In real-time mode Play jumps straight to the end time.
//
// All methods are safe for concurrent use. Ticks, data arrival and control calls
// are serialised on one mutex, and a tick that fires after Pause is ignored
// because it no longer belongs to the active timer.
package playback
