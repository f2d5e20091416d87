package utils

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	windowPattern   = regexp.MustCompile(`^rt-(\d+)(mon|m|h|d|w|q|y|s)?$`)
	realtimePattern = regexp.MustCompile(`^rt(now)?$`)
)

// unit lengths in seconds; a year counts 356 days to match existing dashboards
var windowUnits = map[string]float64{
	"":    1,
	"s":   1,
	"m":   60,
	"h":   3600,
	"d":   86400,
	"w":   7 * 86400,
	"mon": 31 * 86400,
	"q":   356.0 / 4 * 86400,
	"y":   356 * 86400,
}

// ParseTimeWindow converts a relative real-time range like "rt-30m" into seconds
func ParseTimeWindow(earliest string) (float64, error) {
	m := windowPattern.FindStringSubmatch(earliest)
	if m == nil {
		return 0, fmt.Errorf("unsupported time window %q", earliest)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("unsupported time window %q: %w", earliest, err)
	}
	return float64(n) * windowUnits[m[2]], nil
}

// IsRealtime reports whether latest denotes a real-time range ("rt" or "rtnow")
func IsRealtime(latest string) bool {
	return realtimePattern.MatchString(latest)
}
