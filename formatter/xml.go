package formatter

import (
	"strconv"
	"strings"

	"github.com/theoremus-urban-solutions/routemap/siri"
)

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"'", "&apos;",
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// BuildXML serializes a SIRI response to XML. Indentation is not applied.
func (rb *ResponseBuilder) BuildXML(res *siri.SiriResponse) []byte {
	if res == nil {
		res = &siri.SiriResponse{}
	}
	var b strings.Builder
	if rb.header {
		b.WriteString(xmlHeader)
	}
	b.WriteString("<Siri xmlns=\"http://www.siri.org.uk/siri\" version=\"2.0\">")
	sd := res.Siri.ServiceDelivery
	b.WriteString("<ServiceDelivery>")
	writeTag(&b, "ResponseTimestamp", sd.ResponseTimestamp)
	writeTag(&b, "ProducerRef", sd.ProducerRef)
	for _, vm := range sd.VehicleMonitoringDelivery {
		writeVehicleMonitoringXML(&b, vm)
	}
	b.WriteString("</ServiceDelivery>")
	b.WriteString("</Siri>")
	return []byte(b.String())
}

func writeVehicleMonitoringXML(b *strings.Builder, vm siri.VehicleMonitoring) {
	b.WriteString("<VehicleMonitoringDelivery>")
	writeTag(b, "ResponseTimestamp", vm.ResponseTimestamp)
	writeTag(b, "ValidUntil", vm.ValidUntil)
	for _, va := range vm.VehicleActivity {
		b.WriteString("<VehicleActivity>")
		writeTag(b, "RecordedAtTime", va.RecordedAtTime)
		writeTag(b, "ValidUntilTime", va.ValidUntilTime)
		writeMVJXML(b, va.MonitoredVehicleJourney)
		b.WriteString("</VehicleActivity>")
	}
	b.WriteString("</VehicleMonitoringDelivery>")
}

func writeMVJXML(b *strings.Builder, mvj siri.MonitoredVehicleJourney) {
	b.WriteString("<MonitoredVehicleJourney>")
	writeTag(b, "LineRef", mvj.LineRef)
	writeTag(b, "DirectionRef", mvj.DirectionRef)
	if fr := mvj.FramedVehicleJourneyRef; fr != nil {
		b.WriteString("<FramedVehicleJourneyRef>")
		writeTag(b, "DataFrameRef", fr.DataFrameRef)
		writeTag(b, "DatedVehicleJourneyRef", fr.DatedVehicleJourneyRef)
		b.WriteString("</FramedVehicleJourneyRef>")
	}
	writeTag(b, "PublishedLineName", mvj.PublishedLineName)
	b.WriteString("<Monitored>")
	b.WriteString(strconv.FormatBool(mvj.Monitored))
	b.WriteString("</Monitored>")
	// DataSource (SIRI-VM: required)
	writeTag(b, "DataSource", mvj.DataSource)
	if loc := mvj.VehicleLocation; loc != nil {
		b.WriteString("<VehicleLocation>")
		b.WriteString("<Latitude>")
		b.WriteString(strconv.FormatFloat(loc.Latitude, 'f', 6, 64))
		b.WriteString("</Latitude>")
		b.WriteString("<Longitude>")
		b.WriteString(strconv.FormatFloat(loc.Longitude, 'f', 6, 64))
		b.WriteString("</Longitude>")
		b.WriteString("</VehicleLocation>")
	}
	if mvj.Bearing != nil {
		b.WriteString("<Bearing>")
		b.WriteString(strconv.FormatFloat(*mvj.Bearing, 'f', 2, 64))
		b.WriteString("</Bearing>")
	}
	if mvj.Velocity != nil {
		b.WriteString("<Velocity>")
		b.WriteString(strconv.Itoa(*mvj.Velocity))
		b.WriteString("</Velocity>")
	}
	writeTag(b, "VehicleRef", mvj.VehicleRef)
	b.WriteString("<IsCompleteStopSequence>")
	b.WriteString(strconv.FormatBool(mvj.IsCompleteStopSequence))
	b.WriteString("</IsCompleteStopSequence>")
	b.WriteString("</MonitoredVehicleJourney>")
}

// writeTag writes <name>value</name>, skipping empty values
func writeTag(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	b.WriteString("<")
	b.WriteString(name)
	b.WriteString(">")
	b.WriteString(xmlEscape(value))
	b.WriteString("</")
	b.WriteString(name)
	b.WriteString(">")
}

func xmlEscape(s string) string {
	return xmlReplacer.Replace(s)
}
