package chunker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/codemate/internal/extractor"
	"github.com/dshills/codemate/internal/parser"
	"github.com/dshills/codemate/pkg/types"
)

// Chunker runs the chunking pipeline: parse, extract, apply the size
// policy, normalize, hash.
type Chunker struct {
	parser *parser.Parser
}

// New creates a new Chunker instance
func New() *Chunker {
	return &Chunker{parser: parser.New()}
}

// Result is the output of chunking one file.
type Result struct {
	Chunks []types.Chunk

	// Edges are pending graph edges. CALLS and EXTENDS/IMPLEMENTS
	// targets are symbol nodes awaiting resolution; CONTAINS and
	// IMPORTS edges are final.
	Edges []types.Edge

	Errors []types.ParseError
}

// ChunkFile chunks a single file. Unsupported languages produce one
// whole-file chunk so every file remains searchable. The file path is
// repo-relative and used for CONTAINS edges and error attribution.
func (c *Chunker) ChunkFile(ctx context.Context, filePath string, src []byte, moduleID string) (*Result, error) {
	if len(src) == 0 {
		return &Result{}, nil
	}

	lang := parser.DetectLanguage(filePath, src)
	if !parser.Supported(lang) {
		return c.wholeFile(filePath, src, lang, moduleID), nil
	}

	extract, err := extractor.ExtractFile(ctx, c.parser, filePath, lang, src)
	if err != nil {
		if errors.Is(err, parser.ErrNoGrammar) {
			return c.wholeFile(filePath, src, lang, moduleID), nil
		}
		return nil, fmt.Errorf("chunk %s: %w", filePath, err)
	}

	result := &Result{Errors: extract.Errors}
	if len(extract.Definitions) == 0 {
		whole := c.wholeFile(filePath, src, lang, moduleID)
		result.Chunks = whole.Chunks
		result.Edges = append(result.Edges, whole.Edges...)
	}

	for i := range extract.Definitions {
		c.addDefinition(result, filePath, moduleID, &extract.Definitions[i], lang)
	}

	fileNode := types.FileNodeID(filePath)
	for _, imp := range extract.Imports {
		result.Edges = append(result.Edges, types.Edge{
			Source: fileNode,
			Target: types.ExternalNodeID(imp.Path),
			Kind:   types.EdgeImports,
			Line:   imp.Line,
		})
	}
	return result, nil
}

// addDefinition converts one extracted definition into chunks plus its
// pending edges, splitting oversized definitions into windows.
func (c *Chunker) addDefinition(result *Result, filePath, moduleID string, def *extractor.Definition, lang types.Language) {
	chunk := types.NewChunk(def.Content, lang, def.Kind, def.Name)
	chunk.Signature = def.Signature
	chunk.Docstring = def.Docstring
	chunk.StartLine = def.StartLine
	chunk.EndLine = def.EndLine
	chunk.StartByte = def.StartByte
	chunk.EndByte = def.EndByte
	chunk.ModuleID = moduleID

	chunks := []types.Chunk{chunk}
	if chunk.Oversized() {
		chunks = splitOversized(chunk)
	}

	fileNode := types.FileNodeID(filePath)
	for i := range chunks {
		result.Chunks = append(result.Chunks, chunks[i])
		chunkNode := types.ChunkNodeID(chunks[i].Hash)

		result.Edges = append(result.Edges, types.Edge{
			Source: fileNode,
			Target: chunkNode,
			Kind:   types.EdgeContains,
		})
		for _, call := range def.Calls {
			if call.Line < chunks[i].StartLine || call.Line > chunks[i].EndLine {
				continue
			}
			result.Edges = append(result.Edges, types.Edge{
				Source: chunkNode,
				Target: types.SymbolNodeID(call.Target),
				Kind:   types.EdgeCalls,
				Line:   call.Line,
			})
		}
		if i > 0 {
			continue
		}
		for _, base := range def.Extends {
			result.Edges = append(result.Edges, types.Edge{
				Source: chunkNode,
				Target: types.SymbolNodeID(base),
				Kind:   types.EdgeExtends,
			})
		}
		for _, iface := range def.Implements {
			result.Edges = append(result.Edges, types.Edge{
				Source: chunkNode,
				Target: types.SymbolNodeID(iface),
				Kind:   types.EdgeImplements,
			})
		}
	}
}

// wholeFile produces the fallback single chunk for a file, still
// subject to the size policy.
func (c *Chunker) wholeFile(filePath string, src []byte, lang types.Language, moduleID string) *Result {
	chunk := types.NewChunk(string(src), lang, types.KindFileHeader, filePath)
	chunk.StartLine = 1
	chunk.EndLine = chunk.LineCount()
	chunk.StartByte = 0
	chunk.EndByte = len(chunk.Content)
	chunk.ModuleID = moduleID

	chunks := []types.Chunk{chunk}
	if chunk.Oversized() {
		chunks = splitOversized(chunk)
	}

	result := &Result{Chunks: chunks}
	fileNode := types.FileNodeID(filePath)
	for i := range chunks {
		result.Edges = append(result.Edges, types.Edge{
			Source: fileNode,
			Target: types.ChunkNodeID(chunks[i].Hash),
			Kind:   types.EdgeContains,
		})
	}
	return result
}

// splitOversized cuts a chunk into line windows of at most
// types.MaxChunkLines lines and types.MaxChunkBytes bytes, with
// types.ChunkOverlap lines of overlap between consecutive windows.
// Windows inherit the parent's symbol name; the stored byte spans keep
// each window's occurrence distinct.
func splitOversized(chunk types.Chunk) []types.Chunk {
	lines := strings.Split(chunk.Content, "\n")

	// offsets[i] is the byte offset of lines[i] within the content.
	offsets := make([]int, len(lines)+1)
	for i, line := range lines {
		offsets[i+1] = offsets[i] + len(line) + 1
	}
	offsets[len(lines)] = len(chunk.Content)

	var out []types.Chunk
	for start := 0; start < len(lines); {
		end := start + types.MaxChunkLines
		if end > len(lines) {
			end = len(lines)
		}
		// Long lines can blow the byte cap before the line cap.
		for end-start > 1 && offsets[end]-offsets[start] > types.MaxChunkBytes {
			end--
		}

		content := strings.Join(lines[start:end], "\n")
		window := types.NewChunk(content, chunk.Language, types.KindBlock, chunk.SymbolName)
		window.Signature = chunk.Signature
		window.Docstring = chunk.Docstring
		window.StartLine = chunk.StartLine + start
		window.EndLine = chunk.StartLine + end - 1
		window.StartByte = chunk.StartByte + offsets[start]
		window.EndByte = window.StartByte + len(content)
		window.ModuleID = chunk.ModuleID
		out = append(out, window)

		if end == len(lines) {
			break
		}
		next := end - types.ChunkOverlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return out
}
