// Package device describes inbound instrument traffic and the classifier
// that decides which device types are grouped into sessions.
package device

import (
	"fmt"
	"time"
)

// ConnectionMethod identifies how an instrument is attached to the host.
type ConnectionMethod string

const (
	// ConnectionSerial is a direct serial-port integration.
	ConnectionSerial ConnectionMethod = "serial"
	// ConnectionFile is a watched-directory integration.
	ConnectionFile ConnectionMethod = "file"
)

// InboundMessage is one decoded unit of instrument data, as handed over by
// the transport layer. Messages are immutable once constructed: the engine
// copies what it keeps and never writes back into a message.
//
// Exactly one of two shapes is populated in practice:
//   - parameter messages carry ParameterCode/ParameterValue (grouped devices)
//   - file messages carry FileName/FileBytes (standalone devices)
//
// The transport layer owns protocol decoding; by the time a message reaches
// this package it is already structured data.
type InboundMessage struct {
	DeviceType        string           `json:"device_type"`
	DeviceName        string           `json:"device_name"`
	ConnectionMethod  ConnectionMethod `json:"connection_method"`
	PatientID         *int64           `json:"patient_id,omitempty"`
	PatientIdentifier string           `json:"patient_identifier,omitempty"`
	ParameterCode     string           `json:"parameter_code,omitempty"`
	ParameterValue    string           `json:"parameter_value,omitempty"`
	ParameterUnit     string           `json:"parameter_unit,omitempty"`
	RawPayload        []byte           `json:"raw_payload,omitempty"`
	FileName          string           `json:"file_name,omitempty"`
	FileBytes         []byte           `json:"file_bytes,omitempty"`
	MimeType          string           `json:"mime_type,omitempty"`
	ReceivedAt        time.Time        `json:"received_at"`
}

// Validate checks the fields every message must carry regardless of shape.
// Shape-specific requirements (file messages need FileName/FileBytes) are
// enforced at the ingest boundary, where the classification is known.
func (m *InboundMessage) Validate() error {
	if m.DeviceType == "" {
		return fmt.Errorf("device_type is required")
	}
	switch m.ConnectionMethod {
	case "", ConnectionSerial, ConnectionFile:
	default:
		return fmt.Errorf("unknown connection_method %q", m.ConnectionMethod)
	}
	return nil
}

// PatientLabel returns the best available human-facing patient reference:
// the string identifier if present, else the numeric id, else "Unknown".
func (m *InboundMessage) PatientLabel() string {
	if m.PatientIdentifier != "" {
		return m.PatientIdentifier
	}
	if m.PatientID != nil {
		return fmt.Sprintf("%d", *m.PatientID)
	}
	return "Unknown"
}
