// Package utils provides small shared helpers for routemap.
//
// It contains:
//   - Time formatting for epoch-second timestamps
//   - Search time-range parsing ("rt-30m" windows, real-time detection)
package utils
