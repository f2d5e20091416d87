package formatter

import (
	"strings"

	"github.com/theoremus-urban-solutions/routemap/siri"
	"github.com/theoremus-urban-solutions/routemap/utils"
)

// BuildServiceDelivery creates a standardized ServiceDelivery wrapper
// with ResponseTimestamp and ProducerRef (codespace)
func BuildServiceDelivery(timestamp float64, codespace string) siri.ServiceDelivery {
	if codespace == "" {
		codespace = "UNKNOWN"
	}

	return siri.ServiceDelivery{
		ResponseTimestamp: utils.Iso8601FromEpoch(timestamp),
		ProducerRef:       codespace,
	}
}

// WrapVehicleMonitoringResponse wraps a VM delivery in a complete SIRI response
func WrapVehicleMonitoringResponse(vm siri.VehicleMonitoring, timestamp float64, codespace string) *siri.SiriResponse {
	sd := BuildServiceDelivery(timestamp, codespace)
	sd.VehicleMonitoringDelivery = []siri.VehicleMonitoring{vm}

	return &siri.SiriResponse{
		Siri: siri.SiriServiceDelivery{
			ServiceDelivery: sd,
		},
	}
}

// FilterVehicleMonitoring keeps activities matching lineRef and vehicleRef.
// Matching is case-insensitive; LineRef is a substring match, VehicleRef exact.
func FilterVehicleMonitoring(vm siri.VehicleMonitoring, lineRef, vehicleRef string) siri.VehicleMonitoring {
	lineRef = strings.ToLower(strings.TrimSpace(lineRef))
	vehicleRef = strings.ToLower(strings.TrimSpace(vehicleRef))

	filtered := siri.VehicleMonitoring{
		ResponseTimestamp: vm.ResponseTimestamp,
		ValidUntil:        vm.ValidUntil,
		VehicleActivity:   []siri.VehicleActivityEntry{},
	}
	for _, va := range vm.VehicleActivity {
		mvj := va.MonitoredVehicleJourney
		if lineRef != "" && !strings.Contains(strings.ToLower(mvj.LineRef), lineRef) {
			continue
		}
		if vehicleRef != "" && strings.ToLower(mvj.VehicleRef) != vehicleRef {
			continue
		}
		filtered.VehicleActivity = append(filtered.VehicleActivity, va)
	}
	return filtered
}
