package tracking

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/theoremus-urban-solutions/routemap/mapsurface"
)

// Point is one timestamped observation. TS is in epoch seconds.
type Point struct {
	TS  float64        `json:"ts"`
	Lat float64        `json:"lat"`
	Lon float64        `json:"lon"`
	Raw map[string]any `json:"raw,omitempty"`
}

// Validate rejects points with non-finite coordinates or timestamp
func (p Point) Validate() error {
	for _, v := range []float64{p.TS, p.Lat, p.Lon} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: ts=%v lat=%v lon=%v", ErrInvalidPoint, p.TS, p.Lat, p.Lon)
		}
	}
	return nil
}

// LatLon returns the point's coordinate
func (p Point) LatLon() mapsurface.LatLon {
	return mapsurface.LatLon{Lat: p.Lat, Lon: p.Lon}
}

// KeyFields are the identifying fields of an entity, e.g. route and vehicle id
type KeyFields map[string]any

// EntityKey is the stable serialization of KeyFields
type EntityKey string

var keyNamespace = uuid.MustParse("6f1c8a52-3d4e-5b7a-9c0d-2e1f4a6b8c9d")

// NewEntityKey serializes fields with sorted keys so equal fields give equal keys
func NewEntityKey(fields KeyFields) EntityKey {
	if len(fields) == 0 {
		return EntityKey("{}")
	}
	b, err := json.Marshal(map[string]any(fields))
	if err != nil {
		// fmt prints maps with sorted keys as well
		return EntityKey(fmt.Sprintf("%v", map[string]any(fields)))
	}
	return EntityKey(b)
}

// ID is a URL-safe identifier derived from the key
func (k EntityKey) ID() string {
	return uuid.NewSHA1(keyNamespace, []byte(k)).String()
}

// Title builds "k: v, k2: v2" from fields, skipping names starting with "_".
// It returns "unknown" when nothing is left.
func Title(fields KeyFields) string {
	s := FormatFields(fields)
	if s == "" {
		return "unknown"
	}
	return s
}

// FormatFields renders a map as "k: v, k2: v2" in key order, skipping "_" names
func FormatFields(fields map[string]any) string {
	keys := lo.Filter(lo.Keys(fields), func(k string, _ int) bool {
		return !strings.HasPrefix(k, "_")
	})
	sort.Strings(keys)
	parts := lo.Map(keys, func(k string, _ int) string {
		return fmt.Sprintf("%s: %v", k, fields[k])
	})
	return strings.Join(parts, ", ")
}
