// Package siri holds the Vehicle Monitoring subset of the SIRI data model
// (CEN/TS 15531) used to export the playback view.
//
// A delivery lists one VehicleActivity per resolved track at the clock's
// current time. Field names follow the SIRI element names so the same structs
// encode to JSON and, through formatter, to XML.
package siri
