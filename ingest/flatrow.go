package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/theoremus-urban-solutions/routemap/tracking"
)

const (
	groupPrefix = "group__"
	fieldTS     = "point__ts__"
	fieldLat    = "point__lat__"
	fieldLon    = "point__lon__"
)

// FromFlatRow splits a flat row into key fields, point and raw payload.
// Missing or unparsable coordinates become NaN and are rejected by the tracks.
func FromFlatRow(row map[string]any) Record {
	rec := Record{
		Fields: tracking.KeyFields{},
		Point: tracking.Point{
			TS:  toFloat(row[fieldTS]),
			Lat: toFloat(row[fieldLat]),
			Lon: toFloat(row[fieldLon]),
		},
	}
	raw := map[string]any{}
	for k, v := range row {
		switch {
		case k == fieldTS || k == fieldLat || k == fieldLon:
		case strings.HasPrefix(k, groupPrefix):
			rec.Fields[strings.TrimPrefix(k, groupPrefix)] = v
		default:
			raw[k] = v
		}
	}
	if len(raw) > 0 {
		rec.Point.Raw = raw
	}
	return rec
}

// FromFlatRows converts a result set
func FromFlatRows(rows []map[string]any) []Record {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromFlatRow(row))
	}
	return out
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// wireRecord is the structured JSON form; "obj" is accepted as an alias of "fields"
type wireRecord struct {
	Fields tracking.KeyFields `json:"fields"`
	Obj    tracking.KeyFields `json:"obj"`
	Point  *struct {
		TS  any            `json:"ts"`
		Lat any            `json:"lat"`
		Lon any            `json:"lon"`
		Raw map[string]any `json:"raw"`
	} `json:"point"`
}

// DecodeJSON decodes a message holding one record or an array of records.
// Each element is either structured ({"fields":..., "point":...}) or a flat row.
func DecodeJSON(data []byte) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	var elems []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &elems); err != nil {
			return nil, fmt.Errorf("decode record array: %w", err)
		}
	} else {
		elems = []json.RawMessage{data}
	}

	out := make([]Record, 0, len(elems))
	for i, elem := range elems {
		rec, err := decodeElement(elem)
		if err != nil {
			return nil, fmt.Errorf("decode record %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeElement(elem json.RawMessage) (Record, error) {
	var w wireRecord
	if err := json.Unmarshal(elem, &w); err != nil {
		return Record{}, err
	}
	if w.Point == nil {
		var row map[string]any
		if err := json.Unmarshal(elem, &row); err != nil {
			return Record{}, err
		}
		return FromFlatRow(row), nil
	}
	fields := w.Fields
	if fields == nil {
		fields = w.Obj
	}
	return Record{
		Fields: fields,
		Point: tracking.Point{
			TS:  toFloat(w.Point.TS),
			Lat: toFloat(w.Point.Lat),
			Lon: toFloat(w.Point.Lon),
			Raw: w.Point.Raw,
		},
	}, nil
}

// EncodeJSON is the inverse of DecodeJSON for structured records
func EncodeJSON(records []Record) ([]byte, error) {
	return json.Marshal(records)
}
