package journal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clinicdesk/devicelink/internal/device"
	"github.com/clinicdesk/devicelink/internal/engine"
)

// Ingestor is the sink side of a replay: anything that accepts inbound
// messages. Satisfied by *engine.Engine.
type Ingestor interface {
	Ingest(msg device.InboundMessage) (engine.Outcome, error)
}

// ReplayStats summarizes a replay run.
type ReplayStats struct {
	Messages  int `json:"messages"`
	Accepted  int `json:"accepted"`
	Skipped   int `json:"skipped"`
	Malformed int `json:"malformed"`
}

// Replay re-feeds every recorded ingest, in original arrival order, into dst.
//
// Malformed messages are counted and skipped rather than aborting the run:
// a capture may predate a validation rule, and replay exists to reconstruct
// state, not to re-litigate old traffic.
func Replay(ctx context.Context, j *Journal, dst Ingestor) (ReplayStats, error) {
	records, err := j.IngestLog(ctx)
	if err != nil {
		return ReplayStats{}, fmt.Errorf("replay: %w", err)
	}

	var stats ReplayStats
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Messages++

		outcome, err := dst.Ingest(rec.Message)
		if err != nil {
			if engine.IsMalformed(err) {
				stats.Malformed++
				slog.Warn("replay: malformed message skipped", "seq", rec.Seq, "error", err)
				continue
			}
			return stats, fmt.Errorf("replay seq=%d: %w", rec.Seq, err)
		}
		switch outcome {
		case engine.OutcomeAccepted:
			stats.Accepted++
		case engine.OutcomeSkipped:
			stats.Skipped++
		}
	}
	return stats, nil
}
