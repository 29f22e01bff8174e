// Package session defines the pure data model of the aggregation domain:
// sessions, pending files, and their canonical projections. Nothing here is
// concurrent or stateful; the engine owns all mutation.
package session

import (
	"fmt"
	"time"

	"github.com/clinicdesk/devicelink/internal/device"
)

// Key is the deterministic grouping identifier for a session: device type
// plus the best available patient reference. Keys are opaque to consumers;
// only equality matters.
type Key string

// Parameter is one accumulated instrument reading inside a session.
// Parameters are ordered by arrival; Seq is the engine's logical arrival
// stamp and is strictly increasing across the whole engine lifetime.
type Parameter struct {
	Code       string    `json:"code"`
	Value      string    `json:"value"`
	Unit       string    `json:"unit,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
	RawPayload []byte    `json:"raw_payload,omitempty"`
	Seq        int64     `json:"seq"`
}

// DeviceSession is an accumulating group of parameter messages sharing a key.
//
// Identity is first-writer-wins: the key and device fields are fixed at
// creation. PatientID/PatientIdentifier may be backfilled by later messages
// if absent, never overwritten once set.
//
// Lifecycle is a single forward transition: Accumulating -> Complete.
// A completed session is never reopened; a late message under the same key
// starts a fresh session.
type DeviceSession struct {
	ID                string
	Key               Key
	DeviceType        string
	DeviceName        string
	ConnectionMethod  device.ConnectionMethod
	PatientID         *int64
	PatientIdentifier string
	SessionStart      time.Time
	LastActivity      time.Time
	Parameters        []Parameter
	Complete          bool
}

// Snapshot returns a deep copy safe to use outside the engine's lock.
func (s *DeviceSession) Snapshot() *DeviceSession {
	cp := *s
	if s.PatientID != nil {
		v := *s.PatientID
		cp.PatientID = &v
	}
	cp.Parameters = make([]Parameter, len(s.Parameters))
	copy(cp.Parameters, s.Parameters)
	return &cp
}

// PatientLabel returns the identifier if present, else the numeric id,
// else "Unknown".
func (s *DeviceSession) PatientLabel() string {
	if s.PatientIdentifier != "" {
		return s.PatientIdentifier
	}
	if s.PatientID != nil {
		return fmt.Sprintf("%d", *s.PatientID)
	}
	return "Unknown"
}

// FileIdentity is the duplicate-detection key for standalone files.
// Byte length stands in for a content hash: cheap, and false negatives
// (distinct files with identical name and size) are accepted.
type FileIdentity struct {
	DeviceName string
	FileName   string
	ByteLength int
}

// PendingFile is a single ungrouped inbound message retained verbatim for
// devices that do not require session grouping.
type PendingFile struct {
	ID                string
	DeviceType        string
	DeviceName        string
	ConnectionMethod  device.ConnectionMethod
	PatientID         *int64
	PatientIdentifier string
	FileName          string
	FileBytes         []byte
	MimeType          string
	ReceivedAt        time.Time
	Seq               int64
}

// Identity returns the duplicate-detection key for this file.
func (f *PendingFile) Identity() FileIdentity {
	return FileIdentity{
		DeviceName: f.DeviceName,
		FileName:   f.FileName,
		ByteLength: len(f.FileBytes),
	}
}
