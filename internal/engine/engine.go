package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/clinicdesk/devicelink/internal/device"
	"github.com/clinicdesk/devicelink/internal/session"
)

// Outcome is the result of an Ingest call.
type Outcome int

const (
	// OutcomeAccepted means the message was added to engine state.
	OutcomeAccepted Outcome = iota + 1
	// OutcomeSkipped means the message was a duplicate re-delivery.
	OutcomeSkipped
)

// String returns the journal/log representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Finalization reasons passed to the Recorder.
const (
	FinalizeTimeout = "timeout"
	FinalizeFlush   = "flush"
)

// DefaultInactivityWindow is the period of silence after which a session is
// finalized. Instruments emit no end-of-transmission marker; inactivity is
// the sole completion signal.
const DefaultInactivityWindow = 30 * time.Second

// Recorder receives accepted traffic and finalizations for durable
// journaling. The engine invokes the recorder outside its internal lock, so
// a slow write delays only its own caller, never other engine operations.
type Recorder interface {
	RecordIngest(msg device.InboundMessage, outcome Outcome) error
	RecordFinalized(result session.GroupedResult, reason string) error
}

// Engine owns all mutable aggregation state for one import workflow.
//
// Construction marks the start of a workflow; ClearAll tears it down. The
// engine is safe for concurrent use from any number of transport goroutines.
type Engine struct {
	classifier *device.Classifier
	window     time.Duration
	now        func() time.Time
	timers     TimerFactory
	ids        IDGenerator
	clock      *Clock
	recorder   Recorder

	mu       sync.Mutex
	pending  []*session.PendingFile
	sessions []*session.DeviceSession             // arena: every session, arrival order
	active   map[session.Key]*session.DeviceSession // index: accumulating session per key
	armed    map[session.Key]Timer

	reviewOpen       bool
	reviewSignal     chan struct{}
	suggestedPatient *int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithInactivityWindow overrides the session inactivity window.
func WithInactivityWindow(d time.Duration) Option {
	return func(e *Engine) { e.window = d }
}

// WithNow substitutes the wall-clock source. Tests use a fake clock so
// session timestamps are deterministic.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTimerFactory substitutes the timer implementation. Tests use manually
// fired timers so finalization does not depend on real elapsed time.
func WithTimerFactory(f TimerFactory) Option {
	return func(e *Engine) { e.timers = f }
}

// WithIDGenerator substitutes session/pending-file id generation.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithRecorder attaches a journal recorder. Recorder failures are logged and
// never affect ingest outcomes.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// New creates an engine with empty state. A nil classifier groups every
// device type.
func New(classifier *device.Classifier, opts ...Option) *Engine {
	e := &Engine{
		classifier:   classifier,
		window:       DefaultInactivityWindow,
		now:          time.Now,
		timers:       WallTimers{},
		ids:          UUIDv7Generator{},
		clock:        NewClock(),
		active:       make(map[session.Key]*session.DeviceSession),
		armed:        make(map[session.Key]Timer),
		reviewSignal: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ingest processes one decoded transport event.
//
// Standalone messages are deduplicated on (deviceName, fileName, byteLength)
// and stored verbatim as pending files. Grouped messages create or extend
// the accumulating session for their key and re-arm its inactivity timer
// with the full window.
//
// Returns an IngestError for malformed messages; state is untouched in that
// case. All other inputs degrade to OutcomeSkipped rather than an error.
func (e *Engine) Ingest(msg device.InboundMessage) (Outcome, error) {
	if err := msg.Validate(); err != nil {
		return 0, malformed("", err.Error())
	}

	key, grouped := ResolveKey(e.classifier, &msg)
	if !grouped {
		if msg.FileName == "" {
			return 0, malformed("file_name", "standalone message requires a file name")
		}
		if len(msg.FileBytes) == 0 {
			return 0, malformed("file_bytes", "standalone message requires file content")
		}
	}

	e.mu.Lock()
	var outcome Outcome
	if grouped {
		outcome = e.ingestGroupedLocked(key, &msg)
	} else {
		outcome = e.ingestStandaloneLocked(&msg)
	}
	e.mu.Unlock()

	e.recordIngest(msg, outcome)
	return outcome, nil
}

func (e *Engine) ingestStandaloneLocked(msg *device.InboundMessage) Outcome {
	identity := session.FileIdentity{
		DeviceName: msg.DeviceName,
		FileName:   msg.FileName,
		ByteLength: len(msg.FileBytes),
	}
	if IsDuplicateFile(e.pending, identity) {
		slog.Debug("duplicate file skipped",
			"device_name", msg.DeviceName,
			"file_name", msg.FileName,
			"byte_length", identity.ByteLength,
		)
		return OutcomeSkipped
	}

	wasEmpty := e.emptyLocked()
	f := &session.PendingFile{
		ID:                e.ids.Generate(),
		DeviceType:        msg.DeviceType,
		DeviceName:        msg.DeviceName,
		ConnectionMethod:  msg.ConnectionMethod,
		PatientID:         copyPatientID(msg.PatientID),
		PatientIdentifier: msg.PatientIdentifier,
		FileName:          msg.FileName,
		FileBytes:         msg.FileBytes,
		MimeType:          msg.MimeType,
		ReceivedAt:        e.receivedAt(msg),
		Seq:               e.clock.Next(),
	}
	e.pending = append(e.pending, f)

	slog.Info("pending file accepted",
		"id", f.ID,
		"device_name", f.DeviceName,
		"file_name", f.FileName,
	)

	e.noteAcceptedLocked(msg, wasEmpty)
	return OutcomeAccepted
}

func (e *Engine) ingestGroupedLocked(key session.Key, msg *device.InboundMessage) Outcome {
	wasEmpty := e.emptyLocked()
	now := e.now()

	s := e.active[key]
	if s == nil || s.Complete {
		// A complete session is a closed batch: a late message under the
		// same key starts a fresh session rather than reopening it.
		s = &session.DeviceSession{
			ID:                e.ids.Generate(),
			Key:               key,
			DeviceType:        msg.DeviceType,
			DeviceName:        msg.DeviceName,
			ConnectionMethod:  msg.ConnectionMethod,
			PatientID:         copyPatientID(msg.PatientID),
			PatientIdentifier: msg.PatientIdentifier,
			SessionStart:      now,
			LastActivity:      now,
		}
		e.sessions = append(e.sessions, s)
		e.active[key] = s

		slog.Info("session started",
			"id", s.ID,
			"key", string(key),
			"device_type", s.DeviceType,
			"device_name", s.DeviceName,
		)
	} else {
		s.LastActivity = now
		// Identity is first-writer-wins; patient attribution may only be
		// backfilled, never overwritten.
		if s.PatientID == nil && msg.PatientID != nil {
			s.PatientID = copyPatientID(msg.PatientID)
		}
		if s.PatientIdentifier == "" && msg.PatientIdentifier != "" {
			s.PatientIdentifier = msg.PatientIdentifier
		}
	}

	s.Parameters = append(s.Parameters, session.Parameter{
		Code:       msg.ParameterCode,
		Value:      msg.ParameterValue,
		Unit:       msg.ParameterUnit,
		ReceivedAt: e.receivedAt(msg),
		RawPayload: msg.RawPayload,
		Seq:        e.clock.Next(),
	})

	e.armLocked(key, s.ID)
	e.noteAcceptedLocked(msg, wasEmpty)
	return OutcomeAccepted
}

// armLocked (re)arms the inactivity timer for key. Any existing timer is
// cancelled first: the window measures inactivity, not total session age.
func (e *Engine) armLocked(key session.Key, sessionID string) {
	if t, ok := e.armed[key]; ok {
		t.Stop()
	}
	e.armed[key] = e.timers.AfterFunc(e.window, func() {
		e.sessionTimeout(key, sessionID)
	})
}

// sessionTimeout runs when a key's inactivity timer elapses. The fire is
// validated under the lock: a timer racing with a cancel, clear, or key
// re-use is a no-op.
func (e *Engine) sessionTimeout(key session.Key, sessionID string) {
	e.mu.Lock()
	s := e.active[key]
	if s == nil || s.ID != sessionID || s.Complete {
		e.mu.Unlock()
		slog.Debug("stale timer fire ignored", "key", string(key), "session_id", sessionID)
		return
	}
	fin := e.finalizeLocked(key, s, FinalizeTimeout)
	e.mu.Unlock()

	e.recordFinalized(fin)
}

// finalization is a completed session's journal record, captured under the
// lock and written by the caller after releasing it.
type finalization struct {
	result session.GroupedResult
	reason string
}

// finalizeLocked moves a session to its terminal Complete state. The single
// forward transition: there is no way back to accumulating. Returns the
// journal record for the caller to write once the lock is released, or nil
// when no recorder is attached.
func (e *Engine) finalizeLocked(key session.Key, s *session.DeviceSession, reason string) *finalization {
	s.Complete = true
	delete(e.active, key)
	if t, ok := e.armed[key]; ok {
		t.Stop()
		delete(e.armed, key)
	}

	slog.Info("session finalized",
		"id", s.ID,
		"key", string(key),
		"reason", reason,
		"parameter_count", len(s.Parameters),
	)

	if e.recorder == nil {
		return nil
	}
	result, err := session.Project(s.Snapshot())
	if err != nil {
		slog.Error("serialize finalized session", "id", s.ID, "error", err)
		return nil
	}
	return &finalization{result: result, reason: reason}
}

// Flush force-completes the accumulating session for key, short-circuiting
// its timer. Returns false if no accumulating session exists for the key.
func (e *Engine) Flush(key session.Key) bool {
	e.mu.Lock()
	s := e.active[key]
	if s == nil || s.Complete {
		e.mu.Unlock()
		return false
	}
	fin := e.finalizeLocked(key, s, FinalizeFlush)
	e.mu.Unlock()

	e.recordFinalized(fin)
	return true
}

// FlushAll force-completes every accumulating session. Returns the number of
// sessions finalized.
func (e *Engine) FlushAll() int {
	e.mu.Lock()
	n := 0
	var fins []*finalization
	for key, s := range e.active {
		if fin := e.finalizeLocked(key, s, FinalizeFlush); fin != nil {
			fins = append(fins, fin)
		}
		n++
	}
	e.mu.Unlock()

	for _, fin := range fins {
		e.recordFinalized(fin)
	}
	return n
}

// Remove discards a pending file by id, from the review UI. Sessions are not
// individually removable, only clearable in bulk.
func (e *Engine) Remove(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, f := range e.pending {
		if f.ID == id {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			slog.Info("pending file removed", "id", id, "file_name", f.FileName)
			return true
		}
	}
	return false
}

// ClearAll cancels every outstanding timer and empties all state; called when
// the user abandons or completes the import workflow. Timers are cancelled
// before state is dropped so a stale fire cannot touch a removed session.
func (e *Engine) ClearAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for key, t := range e.armed {
		t.Stop()
		delete(e.armed, key)
	}
	e.pending = nil
	e.sessions = nil
	e.active = make(map[session.Key]*session.DeviceSession)
	e.reviewOpen = false
	e.suggestedPatient = nil

	// Drop any unconsumed review signal so it cannot leak into the next
	// workflow's empty-to-non-empty transition.
	select {
	case <-e.reviewSignal:
	default:
	}

	slog.Info("engine state cleared")
}

// Project returns a point-in-time snapshot combining all pending files
// (as-is) with every session, flattened. Safe to call at any time; the
// returned slice shares no mutable state with the engine.
func (e *Engine) Project() []session.GroupedResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]session.GroupedResult, 0, len(e.pending)+len(e.sessions))
	for _, f := range e.pending {
		out = append(out, session.FromPendingFile(f))
	}
	for _, s := range e.sessions {
		result, err := session.Project(s.Snapshot())
		if err != nil {
			slog.Error("project session", "id", s.ID, "error", err)
			continue
		}
		out = append(out, result)
	}
	return out
}

// ReviewSignal returns the edge-triggered review-surface channel. One value
// is delivered per empty-to-non-empty transition; signals coalesce if the
// consumer is slow.
func (e *Engine) ReviewSignal() <-chan struct{} {
	return e.reviewSignal
}

// ReviewOpen reports whether the review surface has been signalled for the
// current workflow.
func (e *Engine) ReviewOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reviewOpen
}

// SuggestedPatient returns the patient id captured from the first accepted
// message that carried one, if any.
func (e *Engine) SuggestedPatient() (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.suggestedPatient == nil {
		return 0, false
	}
	return *e.suggestedPatient, true
}

// noteAcceptedLocked applies the per-accept side effects: the one-shot
// review-surface edge trigger and the set-once suggested patient.
func (e *Engine) noteAcceptedLocked(msg *device.InboundMessage, wasEmpty bool) {
	if wasEmpty && !e.reviewOpen {
		e.reviewOpen = true
		select {
		case e.reviewSignal <- struct{}{}:
		default:
		}
	}
	if e.suggestedPatient == nil && msg.PatientID != nil {
		e.suggestedPatient = copyPatientID(msg.PatientID)
	}
}

func (e *Engine) emptyLocked() bool {
	return len(e.pending) == 0 && len(e.sessions) == 0
}

// recordIngest and recordFinalized run outside the engine lock: journal I/O
// must never stall a concurrent Ingest or Project.
func (e *Engine) recordIngest(msg device.InboundMessage, outcome Outcome) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordIngest(msg, outcome); err != nil {
		slog.Warn("journal ingest failed", "device_type", msg.DeviceType, "error", err)
	}
}

func (e *Engine) recordFinalized(fin *finalization) {
	if fin == nil {
		return
	}
	if err := e.recorder.RecordFinalized(fin.result, fin.reason); err != nil {
		slog.Warn("journal finalization failed", "id", fin.result.ID, "error", err)
	}
}

// receivedAt prefers the transport's receive timestamp, falling back to the
// engine clock for callers that did not stamp the message.
func (e *Engine) receivedAt(msg *device.InboundMessage) time.Time {
	if msg.ReceivedAt.IsZero() {
		return e.now()
	}
	return msg.ReceivedAt
}

func copyPatientID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
