package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/codemate/internal/query"
	"github.com/dshills/codemate/internal/searcher"
)

func newSearchCommand(a *app) *cobra.Command {
	var (
		limit     int
		mode      string
		branch    string
		threshold float64
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed code",
		Long: `Search indexed code with hybrid vector + keyword retrieval.

Queries mix free text with key:value filters:

  codemate search "parse manifest lang:rust after:2024-01-01"
  codemate search "connection pool author:alice@example.com path:internal/**"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.Join(args, " ")

			parsed, err := query.Parse(raw)
			if err != nil {
				return usageErrorf("%v", err)
			}
			if limit == 0 {
				limit = parsed.Limit
			}

			store, err := a.openExistingStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if parsed.MatchesNone {
				fmt.Fprintln(cmd.OutOrStdout(), "no results")
				return nil
			}

			emb, err := a.newEmbedder()
			if err != nil {
				return err
			}
			defer func() { _ = emb.Close() }()

			resp, err := searcher.New(store, emb).Search(cmd.Context(), searcher.Request{
				Query:           parsed.Text,
				Limit:           limit,
				Mode:            searcher.SearchMode(mode),
				Filters:         &parsed.Filters,
				PreferredBranch: branch,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if resp.Degraded {
				a.logf("warning: one retrieval side failed, results may be partial")
			}

			shown := 0
			for _, r := range resp.Results {
				if threshold > 0 && r.Score < threshold {
					continue
				}
				shown++
				where := "(no location)"
				if r.Location != nil {
					where = fmt.Sprintf("%s:%d-%d", r.Location.FilePath, r.Location.StartLine, r.Location.EndLine)
				}
				symbol := ""
				if r.Chunk != nil {
					symbol = r.Chunk.SymbolName
				}
				fmt.Fprintf(out, "%2d. %-30s %s  [%s]  score=%.4f\n", r.Rank, symbol, where, r.Hash.Short(), r.Score)
				if a.verbose && r.Chunk != nil {
					for _, line := range strings.Split(strings.TrimRight(r.Chunk.Content, "\n"), "\n") {
						fmt.Fprintf(out, "      %s\n", line)
					}
				}
			}
			if shown == 0 {
				fmt.Fprintln(out, "no results")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (default 10, or the query's limit: term)")
	cmd.Flags().StringVar(&mode, "mode", string(searcher.SearchModeHybrid), "search mode: hybrid, vector, or keyword")
	cmd.Flags().StringVar(&branch, "branch", "", "preferred branch for result locations")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum score to display")
	return cmd
}
