package engine

import (
	"strconv"

	"github.com/clinicdesk/devicelink/internal/device"
	"github.com/clinicdesk/devicelink/internal/session"
)

// unknownPatientRef is the placeholder key component for messages carrying no
// patient reference at all. A session under this key is still aggregated
// normally; attribution is resolved by the review surface, not the engine.
const unknownPatientRef = "unknown"

// ResolveKey maps a message to its session grouping key.
//
// Returns ok=false for device types the classifier marks standalone: their
// messages are already self-contained units and become pending files instead
// of session parameters.
//
// Otherwise the key combines the device type with the best available patient
// reference: the string identifier if present, else the numeric id, else the
// "unknown" placeholder. Deterministic and side-effect free: identical inputs
// always yield identical keys.
func ResolveKey(c *device.Classifier, msg *device.InboundMessage) (key session.Key, ok bool) {
	if c.Standalone(msg.DeviceType) {
		return "", false
	}

	ref := msg.PatientIdentifier
	if ref == "" && msg.PatientID != nil {
		ref = strconv.FormatInt(*msg.PatientID, 10)
	}
	if ref == "" {
		ref = unknownPatientRef
	}
	return session.Key(msg.DeviceType + "|" + ref), true
}
