package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/codemate/internal/indexer"
)

func newIndexCommand(a *app) *cobra.Command {
	var (
		gitMode    bool
		branch     string
		maxCommits int
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "index <path>",
		Short: "Index a directory tree or git history",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return usageErrorf("cannot read %s: %v", path, err)
			}
			if !info.IsDir() {
				return usageErrorf("%s is not a directory", path)
			}

			if err := os.MkdirAll(filepath.Dir(a.dbPath), 0755); err != nil {
				return fmt.Errorf("create database directory: %w", err)
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			emb, err := a.newEmbedder()
			if err != nil {
				return err
			}
			defer func() { _ = emb.Close() }()

			a.logf("indexing %s into %s (embedding model %s)", path, a.dbPath, emb.ModelID())

			idx := indexer.New(store, emb)
			stats, err := idx.Index(cmd.Context(), path, &indexer.Config{
				Git:        gitMode,
				Branch:     branch,
				MaxCommits: maxCommits,
				Workers:    workers,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "indexed %d files in %v\n", stats.FilesIndexed, stats.Duration.Round(1e6))
			fmt.Fprintf(out, "  chunks: %d new, %d reused\n", stats.ChunksStored, stats.ChunksReused)
			fmt.Fprintf(out, "  edges: %d, embeddings: %d, symbols linked: %d\n",
				stats.EdgesStored, stats.Embedded, stats.SymbolsLinked)
			if stats.EdgesRemoved > 0 {
				fmt.Fprintf(out, "  edges retired: %d\n", stats.EdgesRemoved)
			}
			if gitMode {
				fmt.Fprintf(out, "  commits walked: %d\n", stats.CommitsWalked)
			}
			if stats.FilesFailed > 0 {
				fmt.Fprintf(out, "  failed: %d files\n", stats.FilesFailed)
				for _, msg := range stats.Errors {
					a.logf("  %s", msg)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&gitMode, "git", false, "walk git history instead of the working tree")
	cmd.Flags().StringVar(&branch, "branch", "", "branch to walk (default: current branch)")
	cmd.Flags().IntVar(&maxCommits, "max-commits", 0, "stop after this many commits (0 = unlimited)")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent file workers (0 = CPU count)")
	return cmd
}
