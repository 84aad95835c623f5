package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openExistingStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := store.GetStats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "database:         %s\n", a.dbPath)
			fmt.Fprintf(out, "chunks:           %d\n", stats.Chunks)
			fmt.Fprintf(out, "locations:        %d\n", stats.Locations)
			fmt.Fprintf(out, "embeddings:       %d\n", stats.Embeddings)
			fmt.Fprintf(out, "edges:            %d\n", stats.Edges)
			fmt.Fprintf(out, "history events:   %d\n", stats.HistoryEvents)
			fmt.Fprintf(out, "modules:          %d\n", stats.Modules)
			fmt.Fprintf(out, "external symbols: %d\n", stats.ExternalSymbols)
			fmt.Fprintf(out, "size:             %.2f MiB\n", float64(stats.DatabaseBytes)/(1<<20))
			return nil
		},
	}
}
