// Package engine implements the device-data session aggregation engine.
//
// The engine receives decoded instrument messages, correlates them into
// patient-attributable sessions by a derived key, finalizes sessions after a
// window of inactivity, and serves point-in-time projections to the review
// surface.
//
// ARCHITECTURE:
//
// Single owner of mutable state:
// All mutations (Ingest, Remove, Flush, ClearAll, timer firing) serialize
// through one mutex. Ingest and timer firing both read-modify-write the
// session index and must never interleave. Project acquires the same mutex
// and returns deep copies, never a live view.
//
// Arena + index registry:
// Every session ever created lives in an arrival-ordered arena for the
// lifetime of the engine state; a separate index maps each session key to
// its single accumulating session. Completion removes the index entry but
// never the arena entry: clearing is an explicit external action.
//
// Timers:
// One cancellable timer per active key, re-armed with the full inactivity
// window on every ingest, so the timer measures inactivity rather than total
// session age. A fire is validated against the current index entry and the
// session id it was armed for; firing against a cleared, replaced, or
// already-complete session is a no-op.
//
// The engine performs no I/O itself. An optional Recorder receives accepted
// traffic and finalizations for journaling.
package engine
