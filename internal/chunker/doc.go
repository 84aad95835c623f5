// Package chunker divides source files into semantic chunks for embedding
// and search.
//
// The pipeline is parse, extract, size policy, normalize, hash. Chunks
// are created at natural code boundaries (functions, methods, types,
// classes, traits) to preserve semantic meaning. Files in a language
// without a registered grammar still produce one whole-file chunk so
// everything remains searchable.
//
// # Basic Usage
//
//	c := chunker.New()
//	result, err := c.ChunkFile(ctx, "src/indexer.rs", content, moduleID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, chunk := range result.Chunks {
//	    fmt.Printf("%s %s lines %d-%d\n",
//	        chunk.Hash.Short(), chunk.SymbolName, chunk.StartLine, chunk.EndLine)
//	}
//
// # Chunk Sizing
//
// A definition larger than types.MaxChunkLines lines or
// types.MaxChunkBytes bytes is split into line windows with
// types.ChunkOverlap lines of overlap between consecutive windows, so
// context at window boundaries is not lost.
//
// # Content Hashing
//
// Chunk content is LF-normalized before hashing, so the same logical
// content hashes identically on every platform. The hash is the chunk's
// identity: re-indexing unchanged code is a no-op, and code moved
// between files adds a location rather than a new chunk.
//
// # Pending Edges
//
// Alongside chunks, ChunkFile emits graph edges: CONTAINS (file to
// chunk), CALLS (chunk to unresolved symbol), IMPORTS (file to import
// path), and EXTENDS/IMPLEMENTS for class heritage. CALLS targets are
// symbol nodes that the graph layer later resolves to concrete chunks.
package chunker
