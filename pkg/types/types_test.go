package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashContentNormalizesLineEndings(t *testing.T) {
	lf := HashContent([]byte("fn main() {\n}\n"))
	crlf := HashContent([]byte("fn main() {\r\n}\r\n"))
	cr := HashContent([]byte("fn main() {\r}\r"))

	assert.Equal(t, lf, crlf)
	assert.Equal(t, lf, cr)
}

func TestContentHashRoundTrip(t *testing.T) {
	h := HashContent([]byte("hello"))

	parsed, err := ParseContentHash(h.Hex())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
	assert.Len(t, h.Hex(), 64)
	assert.Len(t, h.Short(), ShortHashLen)
	assert.True(t, strings.HasPrefix(h.Hex(), h.Short()))
}

func TestParseContentHashInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"too short", "abcd"},
		{"bad chars", strings.Repeat("zz", 32)},
		{"too long", strings.Repeat("ab", 33)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseContentHash(tt.input)
			assert.ErrorIs(t, err, ErrInvalidHash)
		})
	}
}

func TestIsHexHash(t *testing.T) {
	h := HashContent([]byte("x"))
	assert.True(t, IsHexHash(h.Hex()))
	assert.False(t, IsHexHash("src/main.rs"))
	assert.False(t, IsHexHash(h.Short()))
}

func TestContentHashCompare(t *testing.T) {
	a := ContentHash{0x01}
	b := ContentHash{0x02}

	assert.Negative(t, a.Compare(b))
	assert.Positive(t, b.Compare(a))
	assert.Zero(t, a.Compare(a))
}

func TestLanguageFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Language
	}{
		{"src/main.rs", LanguageRust},
		{"pkg/indexer.go", LanguageGo},
		{"app/models.py", LanguagePython},
		{"web/index.tsx", LanguageTypeScript},
		{"web/legacy.js", LanguageJavaScript},
		{"src/Main.java", LanguageJava},
		{"infra/main.tf", LanguageHCL},
		{"README.md", LanguageMarkdown},
		{"Makefile", LanguageUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, LanguageFromPath(tt.path))
		})
	}
}

func TestNewChunk(t *testing.T) {
	chunk := NewChunk("fn main() {\r\n}\r\n", LanguageRust, KindFunction, "main")

	assert.Equal(t, "fn main() {\n}\n", chunk.Content)
	assert.Equal(t, HashContent([]byte(chunk.Content)), chunk.Hash)
	assert.NoError(t, chunk.Validate())
	assert.Equal(t, 3, chunk.LineCount())
	assert.False(t, chunk.Oversized())
}

func TestChunkOversized(t *testing.T) {
	lines := strings.Repeat("line\n", MaxChunkLines+1)
	chunk := NewChunk(lines, LanguageGo, KindBlock, "")
	assert.True(t, chunk.Oversized())

	big := strings.Repeat("x", MaxChunkBytes+1)
	chunk = NewChunk(big, LanguageGo, KindBlock, "")
	assert.True(t, chunk.Oversized())
}

func TestChunkValidate(t *testing.T) {
	chunk := NewChunk("package main", LanguageGo, KindFileHeader, "")
	chunk.StartLine = 5
	chunk.EndLine = 2
	assert.ErrorIs(t, chunk.Validate(), ErrInvalidSpan)

	chunk = Chunk{Content: "x"}
	assert.ErrorIs(t, chunk.Validate(), ErrHashMismatch)

	chunk = Chunk{}
	assert.ErrorIs(t, chunk.Validate(), ErrEmptyContent)
}

func TestFQNRoundTrip(t *testing.T) {
	tests := []string{
		"rust:codemate_core::chunk::Chunk::new",
		"python:codemate.indexer.walk",
		"typescript:src/utils#formatDate",
		"go:storage.SQLiteStorage.StoreChunk",
		"java:com.example.Indexer#walk",
	}

	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			fqn, err := ParseFQN(s)
			require.NoError(t, err)
			assert.Equal(t, s, fqn.String())
		})
	}
}

func TestParseFQNInvalid(t *testing.T) {
	for _, s := range []string{"", "nolang", "klingon:foo::bar", ":path", "rust:"} {
		_, err := ParseFQN(s)
		assert.ErrorIs(t, err, ErrInvalidFQN, "input %q", s)
	}
}

func TestFQNShortNameAndParent(t *testing.T) {
	tests := []struct {
		fqn    string
		short  string
		parent string
	}{
		{"rust:crate::chunk::Chunk::new", "new", "rust:crate::chunk::Chunk"},
		{"python:codemate.indexer.walk", "walk", "python:codemate.indexer"},
		{"typescript:src/utils#formatDate", "formatDate", "typescript:src/utils"},
		{"java:com.example.Indexer#walk", "walk", "java:com.example.Indexer"},
	}

	for _, tt := range tests {
		t.Run(tt.fqn, func(t *testing.T) {
			fqn, err := ParseFQN(tt.fqn)
			require.NoError(t, err)
			assert.Equal(t, tt.short, fqn.ShortName())

			parent, ok := fqn.Parent()
			require.True(t, ok)
			assert.Equal(t, tt.parent, parent.String())
		})
	}

	fqn, err := ParseFQN("go:main")
	require.NoError(t, err)
	assert.Equal(t, "main", fqn.ShortName())
	_, ok := fqn.Parent()
	assert.False(t, ok)
}

func TestNodeIDs(t *testing.T) {
	h := HashContent([]byte("body"))

	prefix, value := SplitNodeID(ChunkNodeID(h))
	assert.Equal(t, "chunk", prefix)
	assert.Equal(t, h.Hex(), value)

	got, ok := ChunkHashFromNodeID(ChunkNodeID(h))
	require.True(t, ok)
	assert.Equal(t, h, got)

	_, ok = ChunkHashFromNodeID(FileNodeID("src/main.rs"))
	assert.False(t, ok)
}

func TestEdgeValidate(t *testing.T) {
	h := HashContent([]byte("body"))
	edge := Edge{Source: ChunkNodeID(h), Target: SymbolNodeID("walk"), Kind: EdgeCalls}
	assert.NoError(t, edge.Validate())

	edge.Kind = EdgeKind("LINKS")
	assert.ErrorIs(t, edge.Validate(), ErrInvalidEdge)

	edge = Edge{Kind: EdgeCalls}
	assert.ErrorIs(t, edge.Validate(), ErrInvalidEdge)
}

func TestModuleIDForPath(t *testing.T) {
	assert.Equal(t, "root", ModuleIDForPath(""))
	assert.Equal(t, "root", ModuleIDForPath("."))
	assert.Equal(t, "crates::core", ModuleIDForPath("crates/core"))
	assert.Equal(t, "a::b::c", ModuleIDForPath("/a/b/c/"))
}

func TestShortCommit(t *testing.T) {
	assert.Equal(t, "abc1234", ShortCommit("abc1234def5678"))
	assert.Equal(t, "abc", ShortCommit("abc"))
}
