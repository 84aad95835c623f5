// Package searcher implements hybrid code search combining vector
// similarity and keyword matching.
//
// Three modes:
//   - Hybrid: vector + BM25 fused with Reciprocal Rank Fusion (default)
//   - Vector: pure semantic search over embeddings
//   - Keyword: BM25 full-text search only, works without a model
//
// # Basic Usage
//
//	s := searcher.New(store, emb)
//
//	resp, err := s.Search(ctx, searcher.Request{
//	    Query: "user authentication logic",
//	    Limit: 10,
//	    Mode:  searcher.SearchModeHybrid,
//	})
//
//	for _, r := range resp.Results {
//	    fmt.Printf("[%d] %s %s (%.3f)\n",
//	        r.Rank, r.Hash.Short(), r.Chunk.SymbolName, r.Score)
//	}
//
// # Hybrid Fusion
//
// Both sub-queries run in parallel, each under its own 5 second
// deadline. If one side fails the other carries the query alone and
// the response is marked Degraded; only a double failure errors.
// Rankings fuse by weighted RRF with small bonuses for the top three
// positions of each list, and ties break on the content hash so the
// same index always yields the same order.
//
// An optional Reranker callback rescores candidates after fusion. The
// blend is position-aware: fused order is trusted most near the top,
// the reranker most in the tail.
//
// # Results
//
// Each result is hydrated with its chunk and a best location: the
// preferred branch if given, else main or master, else the most recent
// occurrence. Responses are cached in an LRU keyed by the full request.
package searcher
