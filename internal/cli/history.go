package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/codemate/pkg/types"
)

func newHistoryCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <hash-or-path>",
		Short: "Show every location a piece of code has appeared in",
		Long: `Show every recorded location of a chunk, newest first. The target is
either a 64-hex content hash or a repo-relative file path. Because
chunks are stored by content, a chunk's history follows the code
across renames, branches, and copy-pasted duplicates.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]

			store, err := a.openExistingStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var locations []types.ChunkLocation
			if types.IsHexHash(target) {
				hash, err := types.ParseContentHash(target)
				if err != nil {
					return usageErrorf("invalid content hash: %v", err)
				}
				locations, err = store.GetLocations(cmd.Context(), hash)
				if err != nil {
					return err
				}
			} else {
				locations, err = store.LocationsForFile(cmd.Context(), target)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if len(locations) == 0 {
				fmt.Fprintln(out, "no history recorded")
				return nil
			}
			if limit > 0 && len(locations) > limit {
				locations = locations[:limit]
			}

			for _, loc := range locations {
				commit := loc.CommitHash
				if len(commit) > 8 {
					commit = commit[:8]
				}
				fmt.Fprintf(out, "%s  %s:%d-%d  %s  %s  %s  [%s]\n",
					loc.AuthoredAt.Format("2006-01-02"),
					loc.FilePath, loc.StartLine, loc.EndLine,
					commit, loc.Branch, loc.Author, loc.Hash.Short())
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum locations to show (0 = all)")
	return cmd
}
