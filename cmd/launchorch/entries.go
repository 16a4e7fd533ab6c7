package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/aescanero/launchorch/pkg/ports"
	"github.com/spf13/cobra"
)

func newEntriesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "entries",
		Short: "List launch entries with their last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			// Listing never touches the OS
			cfg.Simulate = true

			logger, err := initLogger("error", false)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			eng, err := newEngine(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
				defer cancel()
				eng.shutdown(ctx)
			}()

			return printEntries(cmd.Context(), eng.store, cmd.OutOrStdout())
		},
	}
}

// printEntries writes a table of entries and their last run
func printEntries(ctx context.Context, store ports.EntryStore, out io.Writer) error {
	entries, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tIDENTIFIER\tPRIORITY\tAFFINITY\tVALIDATION\tLAST RUN")
	for _, e := range entries {
		last := "-"
		rec, err := store.LastRun(ctx, e.Name)
		if err != nil {
			return fmt.Errorf("failed to read last run of %s: %w", e.Name, err)
		}
		if rec != nil {
			last = fmt.Sprintf("%s %s", rec.Outcome, rec.FinishedAt.Format("2006-01-02 15:04"))
			if rec.ErrorKind != "" {
				last += " (" + string(rec.ErrorKind) + ")"
			}
		}
		validation := "-"
		if e.ValidationID != "" {
			validation = e.ValidationID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", e.Name, e.Identifier, e.Priority, e.Affinity, validation, last)
	}
	return w.Flush()
}
