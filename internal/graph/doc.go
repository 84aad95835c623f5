// Package graph answers structural questions over the code graph:
// who calls a symbol, what a file imports, how modules depend on each
// other, and what the edge set looked like at an earlier commit.
//
// Call edges start life with a bare symbol: target recorded by the
// chunker. Resolution runs after ingest and rewrites each target to a
// concrete chunk node, preferring a chunk in the same file, then the
// same module, then anywhere in the repo. Targets that never resolve
// are recorded in the external-symbol table.
//
// Traversals use a visited set; a node reached twice is reported as a
// back-reference and not expanded again, so cycles terminate.
package graph
