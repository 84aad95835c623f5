package types

import (
	"strings"
)

// Chunk size policy. Oversized definitions are split into overlapping
// windows before hashing.
const (
	MaxChunkLines = 100
	MaxChunkBytes = 8 * 1024
	ChunkOverlap  = 10
)

// ChunkKind classifies the syntactic construct a chunk was extracted from.
type ChunkKind string

const (
	KindFunction   ChunkKind = "function"
	KindMethod     ChunkKind = "method"
	KindClass      ChunkKind = "class"
	KindStruct     ChunkKind = "struct"
	KindEnum       ChunkKind = "enum"
	KindTrait      ChunkKind = "trait"
	KindInterface  ChunkKind = "interface"
	KindImpl       ChunkKind = "impl"
	KindModule     ChunkKind = "module"
	KindConstant   ChunkKind = "constant"
	KindTypeAlias  ChunkKind = "type_alias"
	KindBlock      ChunkKind = "block"
	KindFileHeader ChunkKind = "file_header"
)

// Chunk represents a semantically meaningful code section. Content is
// LF-normalized UTF-8 and the hash is derived from it, so equal content
// means equal identity wherever the chunk appears.
type Chunk struct {
	// Identity
	Hash    ContentHash
	Content string

	// Classification
	Language   Language
	Kind       ChunkKind
	SymbolName string
	Signature  string
	Docstring  string

	// Span within the source file the chunk was first extracted from.
	// Line numbers are 1-based and inclusive.
	StartLine int
	EndLine   int
	StartByte int
	EndByte   int

	// ModuleID is the owning module's identifier ("root" for the
	// repository root module).
	ModuleID string
}

// NewChunk normalizes content, computes the hash, and fills in the
// identity fields. Span and module fields are set by the caller.
func NewChunk(content string, lang Language, kind ChunkKind, symbolName string) Chunk {
	normalized := NormalizeContent(content)
	return Chunk{
		Hash:       HashContent([]byte(normalized)),
		Content:    normalized,
		Language:   lang,
		Kind:       kind,
		SymbolName: symbolName,
	}
}

// LineCount returns the number of lines in the chunk content.
func (c *Chunk) LineCount() int {
	if c.Content == "" {
		return 0
	}
	return strings.Count(c.Content, "\n") + 1
}

// Oversized reports whether the chunk exceeds the size policy and must
// be split into overlapping windows.
func (c *Chunk) Oversized() bool {
	return c.LineCount() > MaxChunkLines || len(c.Content) > MaxChunkBytes
}

// Validate performs comprehensive validation of the chunk
func (c *Chunk) Validate() error {
	if c.Content == "" {
		return ErrEmptyContent
	}
	if c.Hash != HashContent([]byte(c.Content)) {
		return ErrHashMismatch
	}
	if c.StartLine < 0 || c.EndLine < 0 {
		return ErrInvalidSpan
	}
	if c.StartLine > 0 && c.EndLine > 0 && c.StartLine > c.EndLine {
		return ErrInvalidSpan
	}
	return nil
}
