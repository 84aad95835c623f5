// Package types provides shared type definitions for the CodeMate engine.
//
// This package defines domain types used across multiple components of
// CodeMate, including content hashes, chunks, chunk locations, fully
// qualified names, graph edges, modules, and search results.
//
// # Core Types
//
// ContentHash is the SHA-256 digest of a chunk's normalized content and is
// the primary identity of a chunk everywhere in the system:
//
//	hash := types.HashContent(source)
//	fmt.Println(hash.Short()) // first 8 hex characters for display
//
// Chunk represents a semantic code section produced by the chunking
// pipeline:
//
//	chunk := types.NewChunk(content, types.LanguageGo, types.KindFunction, "ParseFile")
//
// ChunkLocation records one occurrence of a chunk at a (file, commit)
// coordinate. A chunk is stored once; its locations fan out.
//
// FQN is a language-prefixed fully qualified symbol name using the source
// language's native path separators, e.g.
// "rust:codemate_core::chunk::Chunk::new" or "python:codemate.indexer.walk".
// Parsing and formatting round-trip:
//
//	fqn, _ := types.ParseFQN("go:storage.SQLiteStorage.StoreChunk")
//	fqn.String() // identical to the input
//
// Edge and EdgeHistoryEvent describe the code graph and its append-only
// change history. Module describes a detected project module (Cargo crate,
// Go module, npm package, ...).
//
// # Validation
//
// Domain types implement validation methods to ensure data integrity:
//
//	if err := chunk.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package types
