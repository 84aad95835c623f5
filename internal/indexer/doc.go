// Package indexer runs the ingest pipeline: discover work, chunk it,
// and commit the results.
//
// # Basic Usage
//
//	idx := indexer.New(store, emb)
//
//	stats, err := idx.Index(ctx, "/path/to/repo", &indexer.Config{
//	    Git:        true,
//	    MaxCommits: 500,
//	})
//
//	fmt.Printf("indexed %d files in %v\n", stats.FilesIndexed, stats.Duration)
//
// # Two ingest modes
//
// Directory mode walks the working tree and indexes every regular file
// under a pseudo "workdir" commit. Git mode walks commit history for
// one branch, oldest first, diffing each commit against its first
// parent and indexing only added or modified paths.
//
// # Unit of work
//
// One (commit, path) pair is one unit. A unit's chunks, locations, and
// edges commit in a single transaction, so readers never observe half
// a file. Units run on a worker pool sized to the CPU count.
//
// # Deduplication
//
// Git mode checks the blob hash before chunking. A blob already in the
// index gets new locations fanned out from its existing ones; the
// content is never parsed or embedded twice.
//
// # Embedding queue
//
// Freshly created chunks feed a bounded queue (depth 1,024) drained by
// a background worker in batches of 32. Indexing blocks on a full
// queue, which caps memory when the embedding provider is slow.
// Embedding failures are recorded in the run stats and do not fail the
// run; affected chunks remain reachable through keyword search.
//
// # Incremental resume
//
// Git mode records the last indexed commit per (repo, branch) and on
// the next run walks only commits newer than it. State advances after
// every commit, so an interrupted run resumes where it stopped.
package indexer
