// Package formatter wraps Vehicle Monitoring deliveries in a SIRI envelope and
// serializes them.
//
// JSON goes through encoding/json. XML is written element by element so the
// output follows the SIRI schema order and omits empty optional elements.
package formatter
