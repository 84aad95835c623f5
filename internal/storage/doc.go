// Package storage provides SQLite-based persistence for indexed code data.
//
// The storage layer manages:
//   - Content-addressed chunks keyed by SHA-256 content hash
//   - Chunk locations, the (file, commit) occurrences of each chunk
//   - Vector embeddings and the FTS5 full-text index
//   - The code graph and its append-only edge history
//   - Detected modules, external symbols, and incremental index state
//
// # Database Schema
//
// Tables:
//   - chunks: deduplicated chunk store, content_hash is the primary key
//   - chunks_fts: FTS5 index over symbol names, docstrings, and content
//   - embeddings: one vector per chunk per model generation
//   - locations: chunk occurrences, UNIQUE(content_hash, file_path, commit_hash)
//   - graph_edges: current graph, UNIQUE(source, target, kind)
//   - edge_history: append-only created/deleted lifecycle log
//   - external_symbols: call targets that never resolved to a chunk
//   - modules, index_state, meta, schema_version
//
// The same content appearing in ten files at five commits is one chunk
// row and up to fifty location rows. Moving code is a location change,
// not a new chunk.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage(".codemate/index.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	created, err := store.StoreChunk(ctx, &chunk)
//	err = store.AddLocation(ctx, &loc)
//
// # Transactions
//
// One unit of work per (commit, file) pair keeps a crash from leaving
// half-ingested files behind:
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	tx.StoreChunk(ctx, &chunk)
//	tx.AddLocation(ctx, &loc)
//	tx.UpsertEdge(ctx, &edge, commit, authoredAt)
//
//	return tx.Commit()
//
// # Vector Search Builds
//
// Two build modes select the SQLite driver:
//   - sqlite_vec (cgo): mattn/go-sqlite3 with the sqlite-vec extension,
//     distance computed in SQL
//   - purego (default): modernc.org/sqlite, cosine similarity computed
//     in Go over the stored blobs
//
// Both paths return identical results; only the execution strategy
// differs.
package storage
