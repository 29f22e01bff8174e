package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/clinicdesk/devicelink/internal/journal"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database string
}

// JournalDump is the json-format output of the journal command.
type JournalDump struct {
	Ingests       []journal.IngestRecord       `json:"ingests"`
	Finalizations []journal.FinalizationRecord `json:"finalizations"`
}

// NewJournalCommand creates the journal inspection command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect an ingest journal database",
		Long: `Dump the contents of an ingest journal: every recorded message with its
outcome, and every finalized session.

Examples:
  devicelink journal --db ./ingest.db
  devicelink journal --db ./ingest.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to journal database (or DEVICELINK_JOURNAL)")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	path := opts.Database
	if path == "" {
		path = os.Getenv("DEVICELINK_JOURNAL")
	}
	if path == "" {
		return fmt.Errorf("no journal database: pass --db or set DEVICELINK_JOURNAL")
	}

	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	ctx := context.Background()
	ingests, err := j.IngestLog(ctx)
	if err != nil {
		return err
	}
	finals, err := j.Finalizations(ctx)
	if err != nil {
		return err
	}

	return writeJournalDump(cmd.OutOrStdout(), opts.Format, JournalDump{
		Ingests:       ingests,
		Finalizations: finals,
	})
}

func writeJournalDump(w io.Writer, format string, dump JournalDump) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(dump)
	}

	fmt.Fprintf(w, "ingests: %d\n", len(dump.Ingests))
	for _, rec := range dump.Ingests {
		fmt.Fprintf(w, "  #%d %s  %s  device=%s  code=%s  file=%s\n",
			rec.Seq, rec.RecordedAt.Format("15:04:05.000"), rec.Outcome,
			rec.Message.DeviceName, rec.Message.ParameterCode, rec.Message.FileName)
	}
	fmt.Fprintf(w, "finalizations: %d\n", len(dump.Finalizations))
	for _, rec := range dump.Finalizations {
		fmt.Fprintf(w, "  %s  device=%s  patient=%s  reason=%s  parameters=%d  file=%s\n",
			rec.SessionID, rec.DeviceName, rec.PatientLabel, rec.Reason,
			rec.ParameterCount, rec.FileName)
	}
	return nil
}
