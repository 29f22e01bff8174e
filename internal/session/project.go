package session

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/clinicdesk/devicelink/internal/device"
)

// PayloadMimeType is the media type of generated session payloads.
const PayloadMimeType = "application/json"

// GroupedResult is the externally visible projection of either a PendingFile
// (verbatim) or a DeviceSession (flattened). It carries enough information
// (PayloadBytes, MimeType, FileName, PatientID) to be handed directly to a
// "create attachment for patient" operation.
type GroupedResult struct {
	ID                string                  `json:"id"`
	DeviceType        string                  `json:"device_type"`
	DeviceName        string                  `json:"device_name"`
	ConnectionMethod  device.ConnectionMethod `json:"connection_method"`
	PatientID         *int64                  `json:"patient_id,omitempty"`
	PatientIdentifier string                  `json:"patient_identifier,omitempty"`
	SessionStart      time.Time               `json:"session_start"`
	LastActivity      time.Time               `json:"last_activity"`
	ParameterCount    int                     `json:"parameter_count"`
	SessionInProgress bool                    `json:"session_in_progress"`
	Results           map[string]string       `json:"results,omitempty"`
	FileName          string                  `json:"file_name"`
	PayloadBytes      []byte                  `json:"payload_bytes"`
	MimeType          string                  `json:"mime_type"`
}

// Flatten builds the last-write-wins mapping from parameter code to value.
// Iteration is in arrival order, so a resent reading under the same code
// replaces the earlier one.
func Flatten(params []Parameter) map[string]string {
	results := make(map[string]string, len(params))
	for _, p := range params {
		results[p.Code] = p.Value
	}
	return results
}

// Project converts a session snapshot into its GroupedResult. Pure and
// idempotent: it performs no mutation and the same snapshot always yields
// the same result, byte for byte.
func Project(s *DeviceSession) (GroupedResult, error) {
	payload, err := MarshalCanonical(payloadDocument(s))
	if err != nil {
		return GroupedResult{}, fmt.Errorf("serialize session %s: %w", s.ID, err)
	}

	return GroupedResult{
		ID:                s.ID,
		DeviceType:        s.DeviceType,
		DeviceName:        s.DeviceName,
		ConnectionMethod:  s.ConnectionMethod,
		PatientID:         s.PatientID,
		PatientIdentifier: s.PatientIdentifier,
		SessionStart:      s.SessionStart,
		LastActivity:      s.LastActivity,
		ParameterCount:    len(s.Parameters),
		SessionInProgress: !s.Complete,
		Results:           Flatten(s.Parameters),
		FileName:          ResultFileName(s.DeviceName, s.PatientLabel()),
		PayloadBytes:      payload,
		MimeType:          PayloadMimeType,
	}, nil
}

// FromPendingFile projects an ungrouped file as-is. Like Project, the result
// is a point-in-time copy: writing through it never reaches engine state.
func FromPendingFile(f *PendingFile) GroupedResult {
	var pid *int64
	if f.PatientID != nil {
		v := *f.PatientID
		pid = &v
	}
	return GroupedResult{
		ID:                f.ID,
		DeviceType:        f.DeviceType,
		DeviceName:        f.DeviceName,
		ConnectionMethod:  f.ConnectionMethod,
		PatientID:         pid,
		PatientIdentifier: f.PatientIdentifier,
		SessionStart:      f.ReceivedAt,
		LastActivity:      f.ReceivedAt,
		SessionInProgress: false,
		FileName:          f.FileName,
		PayloadBytes:      f.FileBytes,
		MimeType:          f.MimeType,
	}
}

// payloadDocument builds the persistable canonical document for a session.
// It carries the full ordered parameter list, not the flattened map: the
// flattened view is for display, this one is for storage.
//
// Timestamps are RFC 3339 UTC with nanoseconds. patientId is omitted when
// absent (canonical JSON forbids null); patientIdentifier is always present.
func payloadDocument(s *DeviceSession) map[string]any {
	params := make([]any, len(s.Parameters))
	for i, p := range s.Parameters {
		entry := map[string]any{
			"code":       p.Code,
			"value":      p.Value,
			"receivedAt": canonicalTime(p.ReceivedAt),
		}
		if p.Unit != "" {
			entry["unit"] = p.Unit
		}
		if len(p.RawPayload) > 0 {
			entry["rawPayload"] = base64.StdEncoding.EncodeToString(p.RawPayload)
		}
		params[i] = entry
	}

	doc := map[string]any{
		"sessionId":         s.ID,
		"deviceType":        s.DeviceType,
		"deviceName":        s.DeviceName,
		"patientIdentifier": s.PatientIdentifier,
		"sessionStart":      canonicalTime(s.SessionStart),
		"sessionEnd":        canonicalTime(s.LastActivity),
		"parameterCount":    len(s.Parameters),
		"parameters":        params,
	}
	if s.PatientID != nil {
		doc["patientId"] = *s.PatientID
	}
	return doc
}

func canonicalTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ResultFileName generates the human-readable name for a session payload:
// device name, a fixed "session" label, and the best available patient label.
// Spaces are flattened so the name survives naive path handling downstream.
func ResultFileName(deviceName, patientLabel string) string {
	dev := strings.ReplaceAll(strings.TrimSpace(deviceName), " ", "-")
	if dev == "" {
		dev = "device"
	}
	patient := strings.ReplaceAll(strings.TrimSpace(patientLabel), " ", "-")
	if patient == "" {
		patient = "Unknown"
	}
	return fmt.Sprintf("%s_session_%s.json", dev, patient)
}
