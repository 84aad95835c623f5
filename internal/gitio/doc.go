// Package gitio wraps go-git with the repository operations the
// indexer needs: branch listing, bounded topological commit walks,
// first-parent diffs, blob access, and line-range blame.
//
// Blame picks the author who wrote the most lines of a range as its
// primary author, and degrades to the commit author when blame cannot
// be computed (shallow clones, binary content).
package gitio
