// Package cli wires the command surface: index, search, stats,
// history, graph, and serve.
//
// Every command reads the index named by the global --database flag
// (default .codemate/index.db). Read commands fail rather than create
// an empty database. Exit codes are 0 on success, 1 on runtime
// failure, 2 on a usage error.
package cli
