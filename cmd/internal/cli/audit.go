package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"listinggen/cmd/internal/app"
	"listinggen/cmd/internal/audit"

	"github.com/spf13/cobra"
)

func newAuditCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recent audit events",
		Long:  "Reads the newest events from the audit database named by LISTINGGEN_DATABASE_URL.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := app.LoadConfig()
			if cfg.DatabaseURL == "" {
				return errors.New("LISTINGGEN_DATABASE_URL is not set")
			}

			log := slog.New(slog.NewTextHandler(io.Discard, nil))
			sink, closeSink, err := app.OpenAudit(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeSink()

			lister, ok := sink.(audit.Lister)
			if !ok {
				return fmt.Errorf("audit backend %T cannot list events", sink)
			}
			events, err := lister.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(events)
			}
			return writeEvents(cmd.OutOrStdout(), events)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Max events")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print events as JSON")
	return cmd
}

func writeEvents(w io.Writer, events []audit.Event) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tEVENT\tSESSION\tPLAN\tOUTCOME\tKEY")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.At.UTC().Format(time.RFC3339), e.Name, e.SessionID, dash(e.Plan), dash(e.Outcome), dash(e.KeyFingerprint))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
