package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinicdesk/devicelink/internal/device"
	"github.com/clinicdesk/devicelink/internal/engine"
	"github.com/clinicdesk/devicelink/internal/journal"
	"github.com/clinicdesk/devicelink/internal/session"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Config  string
	Journal string
	Window  time.Duration
}

// ReplaySummary is the json-format output of a replay run.
type ReplaySummary struct {
	Messages  int                     `json:"messages"`
	Accepted  int                     `json:"accepted"`
	Skipped   int                     `json:"skipped"`
	Malformed int                     `json:"malformed"`
	Results   []session.GroupedResult `json:"results"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <messages.ndjson>",
		Short: "Feed a recorded message capture through a fresh engine",
		Long: `Replay an NDJSON capture of inbound instrument messages through a fresh
aggregation engine, flush every open session, and print the resulting
grouped projection.

Each input line is one JSON-encoded inbound message, as produced by the
transport layer or by "devicelink journal".

Examples:
  devicelink replay capture.ndjson
  devicelink replay capture.ndjson --config devices.yaml --format json
  devicelink replay capture.ndjson --journal ./ingest.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "device classifier YAML (default: everything grouped)")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "record the replay to this journal database (or DEVICELINK_JOURNAL)")
	cmd.Flags().DurationVar(&opts.Window, "window", engine.DefaultInactivityWindow, "session inactivity window")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command, path string) error {
	var classifier *device.Classifier
	if opts.Config != "" {
		var err error
		classifier, err = device.LoadClassifier(opts.Config)
		if err != nil {
			return err
		}
	}

	engineOpts := []engine.Option{engine.WithInactivityWindow(opts.Window)}

	journalPath := opts.Journal
	if journalPath == "" {
		journalPath = os.Getenv("DEVICELINK_JOURNAL")
	}
	if journalPath != "" {
		j, err := journal.Open(journalPath)
		if err != nil {
			return err
		}
		defer j.Close()
		engineOpts = append(engineOpts, engine.WithRecorder(j))
	}

	eng := engine.New(classifier, engineOpts...)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	stats, err := feedCapture(eng, f)
	if err != nil {
		return err
	}

	// The capture is finite; flush instead of waiting out the window.
	eng.FlushAll()

	summary := ReplaySummary{
		Messages:  stats.Messages,
		Accepted:  stats.Accepted,
		Skipped:   stats.Skipped,
		Malformed: stats.Malformed,
		Results:   eng.Project(),
	}
	return writeReplaySummary(cmd.OutOrStdout(), opts.Format, summary)
}

// feedCapture ingests one NDJSON message per line. Malformed messages and
// undecodable lines are counted, warned about, and skipped.
func feedCapture(eng *engine.Engine, r io.Reader) (journal.ReplayStats, error) {
	var stats journal.ReplayStats

	scanner := bufio.NewScanner(r)
	// File payloads can be large; a default 64K line limit is not enough.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		stats.Messages++

		var msg device.InboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			stats.Malformed++
			fmt.Fprintf(os.Stderr, "line %d: undecodable message: %v\n", line, err)
			continue
		}

		outcome, err := eng.Ingest(msg)
		if err != nil {
			if engine.IsMalformed(err) {
				stats.Malformed++
				fmt.Fprintf(os.Stderr, "line %d: %v\n", line, err)
				continue
			}
			return stats, err
		}
		switch outcome {
		case engine.OutcomeAccepted:
			stats.Accepted++
		case engine.OutcomeSkipped:
			stats.Skipped++
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read capture: %w", err)
	}
	return stats, nil
}

func writeReplaySummary(w io.Writer, format string, summary ReplaySummary) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Fprintf(w, "messages: %d  accepted: %d  skipped: %d  malformed: %d\n",
		summary.Messages, summary.Accepted, summary.Skipped, summary.Malformed)
	fmt.Fprintf(w, "results: %d\n", len(summary.Results))
	for _, res := range summary.Results {
		kind := "file"
		if res.ParameterCount > 0 || res.Results != nil {
			kind = "session"
		}
		fmt.Fprintf(w, "  [%s] %s  device=%s  patient=%s  parameters=%d  file=%s\n",
			kind, res.ID, res.DeviceName, patientLabel(&res), res.ParameterCount, res.FileName)
	}
	return nil
}

func patientLabel(res *session.GroupedResult) string {
	if res.PatientIdentifier != "" {
		return res.PatientIdentifier
	}
	if res.PatientID != nil {
		return fmt.Sprintf("%d", *res.PatientID)
	}
	return "Unknown"
}
