package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/petrijr/fluxbuf/internal/config"
	"github.com/petrijr/fluxbuf/internal/persistence"
	"github.com/petrijr/fluxbuf/pkg/api"
)

// eventsCmd lists the recorded history of a session
var eventsCmd = &cobra.Command{
	Use:   "events <run> <session>",
	Short: "List the buffer history of a session",
	Long: `List the buffer events recorded for a session of one run, oldest first.

"fluxbuf demo" prints its run id first and each session as
<index>v<generation>. Session ids restart with every run, so both are
needed. Only the sqlite and redis backends keep history across processes.

Examples:
  FLUXBUF_EVENTS_BACKEND=sqlite FLUXBUF_EVENTS_SQLITE_DSN=file:fluxbuf.db fluxbuf events 6f1c0d9e-8a4b-4d55-9a53-2b3e4f5a6b7c 0v1`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := api.ParseEntity(args[1])
		if err != nil {
			return err
		}
		return listEvents(cmd.Context(), cfg, args[0], session, cmd.OutOrStdout())
	},
}

func listEvents(ctx context.Context, c *config.Config, run string, session api.Entity, out io.Writer) error {
	store, closeStore, err := persistence.Open(ctx, c.PersistenceOptions())
	if err != nil {
		return err
	}
	defer closeStore()

	events, err := store.ListEvents(ctx, run, session)
	if err != nil {
		return fmt.Errorf("list events for session %s of run %s: %w", session, run, err)
	}
	if len(events) == 0 {
		fmt.Fprintf(out, "no events for session %s of run %s\n", session, run)
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AT\tTYPE\tBUFFER\tACCESSOR\tDETAIL")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			ev.At.Format(time.RFC3339Nano), ev.Type, ev.Buffer, ev.Accessor, ev.Detail)
	}
	return tw.Flush()
}
