// Package embedder generates vector embeddings for code chunks.
//
// Providers: Jina AI and OpenAI over HTTP (same wire shape, one
// implementation), plus a deterministic mock for tests and offline
// indexing. All providers batch, retry with exponential backoff, and
// share an LRU cache keyed by the SHA-256 of the embedded text.
//
// # Basic Usage
//
//	// Auto-detects provider from environment, falls back to mock.
//	emb, err := embedder.NewFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	vec, err := emb.GenerateEmbedding(ctx, chunk.Content)
//
// # Model Identity
//
// Every vector is stored tagged with ModelID. Vectors from different
// models or dimensions are never compared; switching providers means
// re-embedding, and the storage layer skips mismatched vectors during
// search rather than producing garbage similarities.
package embedder
