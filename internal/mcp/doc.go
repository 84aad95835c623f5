// Package mcp exposes the index to editor assistants over the Model
// Context Protocol on stdio.
//
// # Tools
//
//   - search_code: hybrid search with the full query DSL
//     (lang:, author:, file:, path:, after:, before:, in:, type:)
//   - graph_callers: reverse call tree for a symbol or content hash
//   - code_history: every location a piece of code has appeared in
//   - index_stats: chunk, location, edge, and embedding counts
//
// The server is read-only: indexing runs through the CLI, and an
// assistant queries whatever index the `serve` command was pointed at.
//
// # Usage
//
//	srv, err := mcp.NewServer(".codemate/index.db")
//	if err != nil {
//	    return err
//	}
//	return srv.Serve(ctx)
//
// Tool results are JSON text except graph_callers, which returns the
// same rendered tree as the CLI.
package mcp
