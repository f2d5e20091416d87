package utils

import (
	"math"
	"time"
)

// TimeFromEpoch converts fractional epoch seconds to a UTC time
func TimeFromEpoch(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

// EpochFromTime converts a time to fractional epoch seconds
func EpochFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Iso8601Now returns the current time in ISO8601 format
func Iso8601Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Iso8601FromEpoch formats fractional epoch seconds as ISO8601
func Iso8601FromEpoch(sec float64) string {
	return TimeFromEpoch(sec).Format(time.RFC3339)
}

// ValidUntilFrom adds a validity period to an epoch and formats it
func ValidUntilFrom(baseEpoch float64, valid time.Duration) string {
	if baseEpoch <= 0 || valid <= 0 {
		return ""
	}
	return TimeFromEpoch(baseEpoch).Add(valid).Format(time.RFC3339)
}
