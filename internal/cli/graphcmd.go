package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/codemate/internal/graph"
	"github.com/dshills/codemate/internal/storage"
	"github.com/dshills/codemate/pkg/types"
)

func newGraphCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Query the code graph",
	}
	cmd.AddCommand(
		newGraphTraversalCommand(a, "callers", "Show what calls a symbol or chunk",
			func(e *graph.Engine) traversalFn { return e.Callers }),
		newGraphTraversalCommand(a, "callees", "Show what a symbol or chunk calls",
			func(e *graph.Engine) traversalFn { return e.Callees }),
		newGraphFileCommand(a, "deps", "Show what a file imports",
			func(e *graph.Engine) fileTraversalFn { return e.Deps }),
		newGraphFileCommand(a, "rdeps", "Show what imports a file",
			func(e *graph.Engine) fileTraversalFn { return e.Rdeps }),
		newGraphTreeCommand(a),
		newGraphModulesCommand(a),
	)
	return cmd
}

type traversalFn = func(ctx context.Context, target string, depth int) ([]*graph.Node, error)
type fileTraversalFn = func(ctx context.Context, filePath string, depth int) (*graph.Node, error)

func newGraphTraversalCommand(a *app, name, short string, pick func(*graph.Engine) traversalFn) *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   name + " <symbol-or-hash>",
		Short: short,
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openExistingStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			nodes, err := pick(graph.New(store))(cmd.Context(), args[0], depth)
			if err != nil {
				return err
			}
			if len(nodes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no edges recorded")
				return nil
			}
			graph.Render(cmd.OutOrStdout(), nodes)
			return nil
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 0, "traversal depth (default 3, max 10)")
	return cmd
}

func newGraphFileCommand(a *app, name, short string, pick func(*graph.Engine) fileTraversalFn) *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   name + " <file>",
		Short: short,
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openExistingStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			node, err := pick(graph.New(store))(cmd.Context(), args[0], depth)
			if err != nil {
				return err
			}
			graph.Render(cmd.OutOrStdout(), []*graph.Node{node})
			return nil
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 0, "traversal depth (default 3, max 10)")
	return cmd
}

func newGraphTreeCommand(a *app) *cobra.Command {
	var (
		depth int
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "tree [root]",
		Short: "Render the call tree under a root, or the whole forest with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) == 1 {
				root = args[0]
			}
			if root == "" && !all {
				return usageErrorf("tree requires a root symbol, or --all for the full forest")
			}

			store, err := a.openExistingStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			nodes, err := graph.New(store).Tree(cmd.Context(), root, depth)
			if err != nil {
				return err
			}
			if len(nodes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no call edges recorded")
				return nil
			}
			graph.Render(cmd.OutOrStdout(), nodes)
			return nil
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 0, "traversal depth (default 3, max 10)")
	cmd.Flags().BoolVar(&all, "all", false, "render every call-tree root")
	return cmd
}

func newGraphModulesCommand(a *app) *cobra.Command {
	var (
		level string
		lang  string
	)
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "Show cross-module dependencies with edge counts",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if level != "module" && level != "crate" {
				return usageErrorf("invalid --level %q: must be module or crate", level)
			}
			store, err := a.openExistingStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			edges, err := graph.New(store).Modules(cmd.Context())
			if err != nil {
				return err
			}
			edges = rollUpEdges(edges, level, lang)
			out := cmd.OutOrStdout()
			if len(edges) == 0 {
				fmt.Fprintln(out, "no cross-module edges recorded")
				return nil
			}
			printModuleEdges(out, edges)
			return nil
		},
	}
	cmd.Flags().StringVar(&level, "level", "module", "aggregation level: module or crate")
	cmd.Flags().StringVar(&lang, "lang", "", "only count edges from chunks in this language")
	return cmd
}

// rollUpEdges aggregates per-language roll-up rows by (source, target,
// kind), optionally keeping one source language only. At the crate
// level module IDs collapse to their first path segment and edges that
// become internal to one crate are dropped.
func rollUpEdges(edges []storage.ModuleEdge, level, lang string) []storage.ModuleEdge {
	type key struct {
		source, target string
		kind           types.EdgeKind
	}
	merged := make(map[key]*storage.ModuleEdge)
	var order []key
	for _, e := range edges {
		if lang != "" && e.Language != lang {
			continue
		}
		if level == "crate" {
			e.SourceModule = crateOf(e.SourceModule)
			e.TargetModule = crateOf(e.TargetModule)
			if e.SourceModule == e.TargetModule {
				continue
			}
		}
		k := key{e.SourceModule, e.TargetModule, e.Kind}
		if row, ok := merged[k]; ok {
			row.Weight += e.Weight
			continue
		}
		row := e
		row.Language = ""
		merged[k] = &row
		order = append(order, k)
	}
	out := make([]storage.ModuleEdge, 0, len(order))
	for _, k := range order {
		out = append(out, *merged[k])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		if out[i].SourceModule != out[j].SourceModule {
			return out[i].SourceModule < out[j].SourceModule
		}
		return out[i].TargetModule < out[j].TargetModule
	})
	return out
}

// crateOf truncates a module ID to its top path segment.
func crateOf(id string) string {
	if idx := strings.Index(id, "::"); idx >= 0 {
		return id[:idx]
	}
	return id
}

func printModuleEdges(out io.Writer, edges []storage.ModuleEdge) {
	for _, e := range edges {
		fmt.Fprintf(out, "%-30s -> %-30s %-10s x%d\n", e.SourceModule, e.TargetModule, e.Kind, e.Weight)
	}
}
