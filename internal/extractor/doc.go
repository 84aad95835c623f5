// Package extractor walks tree-sitter syntax trees and pulls out the
// raw material for chunking: definitions (with signatures and leading
// doc comments), call sites, and import statements.
//
// One extractor exists per supported language (Go, Rust, Python,
// TypeScript/JavaScript, Java), all implementing the same interface.
// Files in an unsupported language are not handled here; the chunker
// falls back to a whole-file chunk for those.
//
// # Failure Semantics
//
// Extraction is defensive. Syntax errors produce ERROR nodes that the
// walk simply skips past, and a panic while processing one definition
// is recovered and recorded as a parse error for that definition only.
// A single malformed construct never loses the rest of the file.
package extractor
