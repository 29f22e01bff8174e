// Package journal provides an optional SQLite-backed record of engine
// traffic: every ingest outcome and every session finalization. The journal
// exists for audit and replay; it is not the medical-record store, which
// lives with the downstream import collaborator.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/clinicdesk/devicelink/internal/device"
	"github.com/clinicdesk/devicelink/internal/engine"
	"github.com/clinicdesk/devicelink/internal/session"
)

//go:embed schema.sql
var schemaSQL string

// Journal is a durable log of engine traffic.
// Uses SQLite with WAL mode; a single writer connection avoids SQLITE_BUSY.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens a journal database at the given path.
// Idempotent: pragmas and schema are applied on every open.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	return &Journal{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// RecordIngest appends one ingest outcome with the full message, serialized
// as JSON so the capture can be replayed later.
func (j *Journal) RecordIngest(msg device.InboundMessage, outcome engine.Outcome) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("record ingest: %w", err)
	}
	_, err = j.db.Exec(`
		INSERT INTO ingest_log (recorded_at, outcome, message)
		VALUES (?, ?, ?)
	`, j.now().UTC().Format(time.RFC3339Nano), outcome.String(), string(data))
	if err != nil {
		return fmt.Errorf("record ingest: %w", err)
	}
	return nil
}

// RecordFinalized stores a finalized session's projection. Idempotent on
// session id: a session finalizes exactly once, so a conflicting insert is
// a replayed duplicate and is silently ignored.
func (j *Journal) RecordFinalized(result session.GroupedResult, reason string) error {
	_, err := j.db.Exec(`
		INSERT INTO finalizations
		(session_id, device_type, device_name, patient_label, reason,
		 parameter_count, completed_at, file_name, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING
	`,
		result.ID,
		result.DeviceType,
		result.DeviceName,
		patientLabel(&result),
		reason,
		result.ParameterCount,
		result.LastActivity.UTC().Format(time.RFC3339Nano),
		result.FileName,
		result.PayloadBytes,
	)
	if err != nil {
		return fmt.Errorf("record finalization: %w", err)
	}
	return nil
}

// IngestRecord is one replayed row of the ingest log.
type IngestRecord struct {
	Seq        int64                 `json:"seq"`
	RecordedAt time.Time             `json:"recorded_at"`
	Outcome    string                `json:"outcome"`
	Message    device.InboundMessage `json:"message"`
}

// IngestLog returns all recorded ingests in arrival order.
func (j *Journal) IngestLog(ctx context.Context) ([]IngestRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, recorded_at, outcome, message
		FROM ingest_log
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("read ingest log: %w", err)
	}
	defer rows.Close()

	var records []IngestRecord
	for rows.Next() {
		var rec IngestRecord
		var recordedAt, message string
		if err := rows.Scan(&rec.Seq, &recordedAt, &rec.Outcome, &message); err != nil {
			return nil, fmt.Errorf("scan ingest row: %w", err)
		}
		rec.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parse ingest timestamp: %w", err)
		}
		if err := json.Unmarshal([]byte(message), &rec.Message); err != nil {
			return nil, fmt.Errorf("decode ingest message seq=%d: %w", rec.Seq, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// FinalizationRecord is one stored session finalization.
type FinalizationRecord struct {
	SessionID      string    `json:"session_id"`
	DeviceType     string    `json:"device_type"`
	DeviceName     string    `json:"device_name"`
	PatientLabel   string    `json:"patient_label"`
	Reason         string    `json:"reason"`
	ParameterCount int       `json:"parameter_count"`
	CompletedAt    time.Time `json:"completed_at"`
	FileName       string    `json:"file_name"`
	Payload        []byte    `json:"payload"`
}

// Finalizations returns all recorded finalizations in completion order.
func (j *Journal) Finalizations(ctx context.Context) ([]FinalizationRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT session_id, device_type, device_name, patient_label, reason,
		       parameter_count, completed_at, file_name, payload
		FROM finalizations
		ORDER BY completed_at, session_id
	`)
	if err != nil {
		return nil, fmt.Errorf("read finalizations: %w", err)
	}
	defer rows.Close()

	var records []FinalizationRecord
	for rows.Next() {
		var rec FinalizationRecord
		var completedAt string
		if err := rows.Scan(
			&rec.SessionID, &rec.DeviceType, &rec.DeviceName, &rec.PatientLabel,
			&rec.Reason, &rec.ParameterCount, &completedAt, &rec.FileName, &rec.Payload,
		); err != nil {
			return nil, fmt.Errorf("scan finalization row: %w", err)
		}
		rec.CompletedAt, err = time.Parse(time.RFC3339Nano, completedAt)
		if err != nil {
			return nil, fmt.Errorf("parse finalization timestamp: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func patientLabel(r *session.GroupedResult) string {
	if r.PatientIdentifier != "" {
		return r.PatientIdentifier
	}
	if r.PatientID != nil {
		return fmt.Sprintf("%d", *r.PatientID)
	}
	return "Unknown"
}

// Interface check.
var _ engine.Recorder = (*Journal)(nil)
