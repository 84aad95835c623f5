package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dshills/codemate/internal/storage"
	"github.com/dshills/codemate/pkg/types"
)

// Errors returned by graph operations.
var (
	ErrUnknownTarget = errors.New("target not found in graph")
	ErrInvalidDepth  = errors.New("depth must be positive")
)

// DefaultDepth bounds traversals when the caller does not specify one.
const DefaultDepth = 3

// MaxDepth is the hard ceiling on traversal depth.
const MaxDepth = 10

// Callers/callees follow CALLS and deps/rdeps follow IMPORTS.
// SIMILAR_TO edges are derived data and never traversed.
var callKinds = []types.EdgeKind{types.EdgeCalls}
var importKinds = []types.EdgeKind{types.EdgeImports}

// commonSymbols are short names so ubiquitous that rooting a call
// forest at them produces noise instead of structure.
var commonSymbols = map[string]bool{
	"main": true, "new": true, "init": true, "default": true,
	"len": true, "get": true, "set": true, "next": true,
	"clone": true, "from": true, "into": true, "drop": true,
	"string": true, "format": true, "print": true, "println": true,
	"write": true, "read": true, "close": true, "error": true,
}

// Node is one vertex of a rendered traversal. BackRef marks a node
// already expanded elsewhere in the same traversal; its Children are
// always empty.
type Node struct {
	ID       string
	Label    string
	Kind     types.EdgeKind
	Line     int
	Depth    int
	BackRef  bool
	Children []*Node
}

// ResolutionStats summarizes one symbol-resolution pass.
type ResolutionStats struct {
	Scanned  int
	Resolved int
	External int
}

// Engine runs resolution and traversal queries against stored edges.
type Engine struct {
	store storage.Storage
}

// New returns an Engine backed by the given store.
func New(store storage.Storage) *Engine {
	return &Engine{store: store}
}

// ResolveSymbols rewrites pending CALLS edges whose target is still a
// bare symbol node to the chunk that defines the symbol. Candidates in
// the same file win over candidates in the same module, which win over
// anything else in the repo; remaining ties go to the lowest content
// hash. Targets with no candidate are recorded as external symbols and
// the unresolved edge is kept.
//
// The whole pass is one transaction so readers never observe an edge
// mid-replacement.
func (e *Engine) ResolveSymbols(ctx context.Context, commitHash string, at time.Time) (ResolutionStats, error) {
	var stats ResolutionStats

	pending, err := e.store.UnresolvedCallEdges(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to scan unresolved edges: %w", err)
	}
	if len(pending) == 0 {
		return stats, nil
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return stats, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, edge := range pending {
		stats.Scanned++
		_, name := types.SplitNodeID(edge.Target)

		source, ok := e.sourceContext(ctx, tx, edge.Source)
		if !ok {
			continue
		}

		candidates, err := tx.ChunksBySymbol(ctx, name)
		if err != nil {
			return stats, err
		}
		target := pickCandidate(candidates, source)
		if target == nil {
			external := types.NewFQN(source.language, name)
			if err := tx.UpsertExternalSymbol(ctx, external.String(), commitHash); err != nil {
				return stats, err
			}
			stats.External++
			continue
		}

		resolved := types.Edge{
			Source:     edge.Source,
			Target:     types.ChunkNodeID(target.Hash),
			Kind:       edge.Kind,
			Line:       edge.Line,
			Properties: edge.Properties,
		}
		if err := tx.RemoveEdge(ctx, edge.Source, edge.Target, edge.Kind, commitHash, at); err != nil {
			return stats, err
		}
		if _, err := tx.UpsertEdge(ctx, &resolved, commitHash, at); err != nil {
			return stats, err
		}
		stats.Resolved++
	}

	if err := tx.Commit(); err != nil {
		return stats, err
	}
	return stats, nil
}

// sourceCtx carries the calling chunk's placement for candidate ranking.
type sourceCtx struct {
	language types.Language
	moduleID string
	files    map[string]bool
}

func (e *Engine) sourceContext(ctx context.Context, store storage.Storage, sourceNode string) (sourceCtx, bool) {
	hash, ok := types.ChunkHashFromNodeID(sourceNode)
	if !ok {
		return sourceCtx{}, false
	}
	chunk, err := store.GetChunk(ctx, hash)
	if err != nil {
		return sourceCtx{}, false
	}
	sc := sourceCtx{language: chunk.Language, moduleID: chunk.ModuleID, files: make(map[string]bool)}
	locs, err := store.GetLocations(ctx, hash)
	if err == nil {
		for _, loc := range locs {
			sc.files[loc.FilePath] = true
		}
	}
	return sc, true
}

// pickCandidate ranks occurrences: shared file, then shared module,
// then the first candidate in hash order.
func pickCandidate(candidates []storage.SymbolOccurrence, source sourceCtx) *storage.SymbolOccurrence {
	if len(candidates) == 0 {
		return nil
	}
	for i := range candidates {
		for _, f := range candidates[i].Files {
			if source.files[f] {
				return &candidates[i]
			}
		}
	}
	for i := range candidates {
		if candidates[i].ModuleID != "" && candidates[i].ModuleID == source.moduleID {
			return &candidates[i]
		}
	}
	return &candidates[0]
}

// Callers returns the reverse call tree for a target, which may be a
// full content hash or a symbol name.
func (e *Engine) Callers(ctx context.Context, target string, depth int) ([]*Node, error) {
	return e.callTraversal(ctx, target, depth, false)
}

// Callees returns the forward call tree for a target.
func (e *Engine) Callees(ctx context.Context, target string, depth int) ([]*Node, error) {
	return e.callTraversal(ctx, target, depth, true)
}

func (e *Engine) callTraversal(ctx context.Context, target string, depth int, outgoing bool) ([]*Node, error) {
	depth, err := clampDepth(depth)
	if err != nil {
		return nil, err
	}
	roots, err := e.resolveTargetNodes(ctx, target)
	if err != nil {
		return nil, err
	}

	var nodes []*Node
	for _, id := range roots {
		visited := map[string]bool{}
		node, err := e.expand(ctx, id, 0, depth, outgoing, callKinds, visited)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// Deps returns the files a file imports, transitively to depth.
func (e *Engine) Deps(ctx context.Context, filePath string, depth int) (*Node, error) {
	return e.fileTraversal(ctx, filePath, depth, true)
}

// Rdeps returns the files that import a file, transitively to depth.
func (e *Engine) Rdeps(ctx context.Context, filePath string, depth int) (*Node, error) {
	return e.fileTraversal(ctx, filePath, depth, false)
}

func (e *Engine) fileTraversal(ctx context.Context, filePath string, depth int, outgoing bool) (*Node, error) {
	depth, err := clampDepth(depth)
	if err != nil {
		return nil, err
	}
	visited := map[string]bool{}
	return e.expand(ctx, types.FileNodeID(filePath), 0, depth, outgoing, importKinds, visited)
}

// Tree renders the call tree under one root, or the whole forest when
// root is empty. Forest roots are nodes that make calls but are never
// called; common symbol names and rootless leaves are skipped.
func (e *Engine) Tree(ctx context.Context, root string, depth int) ([]*Node, error) {
	if root != "" {
		return e.Callees(ctx, root, depth)
	}
	depth, err := clampDepth(depth)
	if err != nil {
		return nil, err
	}

	sources, err := e.store.CallSourceNodes(ctx)
	if err != nil {
		return nil, err
	}
	targets, err := e.store.CallTargetNodes(ctx)
	if err != nil {
		return nil, err
	}

	var roots []string
	for id := range sources {
		if targets[id] {
			continue
		}
		if prefix, value := types.SplitNodeID(id); prefix == "symbol" && commonSymbols[strings.ToLower(value)] {
			continue
		}
		roots = append(roots, id)
	}
	sort.Strings(roots)

	var forest []*Node
	for _, id := range roots {
		visited := map[string]bool{}
		node, err := e.expand(ctx, id, 0, depth, true, callKinds, visited)
		if err != nil {
			return nil, err
		}
		if len(node.Children) == 0 {
			continue
		}
		forest = append(forest, node)
	}
	return forest, nil
}

// Modules returns the cross-module roll-up of CALLS and IMPORTS edges.
func (e *Engine) Modules(ctx context.Context) ([]storage.ModuleEdge, error) {
	return e.store.ModuleEdges(ctx)
}

// EdgeCreatedAt returns the earliest recorded creation of an edge.
func (e *Engine) EdgeCreatedAt(ctx context.Context, source, target string, kind types.EdgeKind) (time.Time, error) {
	return e.store.EdgeCreatedAt(ctx, source, target, kind)
}

// EdgesAt folds edge history at a commit and keeps edges touching the
// given node. An empty node returns the full edge set at that commit.
func (e *Engine) EdgesAt(ctx context.Context, node, commitHash string) ([]types.Edge, error) {
	edges, err := e.store.EdgesAtCommit(ctx, commitHash, nil)
	if err != nil {
		return nil, err
	}
	if node == "" {
		return edges, nil
	}
	var touching []types.Edge
	for _, edge := range edges {
		if edge.Source == node || edge.Target == node {
			touching = append(touching, edge)
		}
	}
	return touching, nil
}

// expand builds the subtree under a node. The visited set spans one
// traversal; a node seen twice becomes a back-reference leaf.
func (e *Engine) expand(ctx context.Context, id string, depth, maxDepth int, outgoing bool, kinds []types.EdgeKind, visited map[string]bool) (*Node, error) {
	node := &Node{ID: id, Label: e.label(ctx, id), Depth: depth}
	if visited[id] {
		node.BackRef = true
		return node, nil
	}
	visited[id] = true
	if depth >= maxDepth {
		return node, nil
	}

	var edges []types.Edge
	var err error
	if outgoing {
		edges, err = e.store.OutgoingEdges(ctx, id, kinds)
	} else {
		edges, err = e.store.IncomingEdges(ctx, id, kinds)
	}
	if err != nil {
		return nil, err
	}

	for _, edge := range edges {
		next := edge.Target
		if !outgoing {
			next = edge.Source
		}
		child, err := e.expand(ctx, next, depth+1, maxDepth, outgoing, kinds, visited)
		if err != nil {
			return nil, err
		}
		child.Kind = edge.Kind
		child.Line = edge.Line
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// resolveTargetNodes maps a user-facing target to graph node IDs. A
// 64-hex string is a content hash; anything else is a symbol name,
// matching both defining chunks and still-unresolved symbol nodes.
func (e *Engine) resolveTargetNodes(ctx context.Context, target string) ([]string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, ErrUnknownTarget
	}
	if types.IsHexHash(target) {
		hash, err := types.ParseContentHash(target)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, target)
		}
		ok, err := e.store.HasChunk(ctx, hash)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, target)
		}
		return []string{types.ChunkNodeID(hash)}, nil
	}

	occurrences, err := e.store.ChunksBySymbol(ctx, target)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, occ := range occurrences {
		ids = append(ids, types.ChunkNodeID(occ.Hash))
	}
	if len(ids) == 0 {
		symbolID := types.SymbolNodeID(target)
		in, err := e.store.IncomingEdges(ctx, symbolID, nil)
		if err != nil {
			return nil, err
		}
		if len(in) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, target)
		}
		ids = append(ids, symbolID)
	}
	return ids, nil
}

// label produces the display name for a node. Chunk nodes show the
// symbol name and a short hash; other prefixes show their value.
func (e *Engine) label(ctx context.Context, id string) string {
	prefix, value := types.SplitNodeID(id)
	if prefix != "chunk" {
		return value
	}
	hash, ok := types.ChunkHashFromNodeID(id)
	if !ok {
		return value
	}
	chunk, err := e.store.GetChunk(ctx, hash)
	if err != nil || chunk.SymbolName == "" {
		return hash.Short()
	}
	return chunk.SymbolName + " [" + hash.Short() + "]"
}

func clampDepth(depth int) (int, error) {
	if depth == 0 {
		return DefaultDepth, nil
	}
	if depth < 0 {
		return 0, ErrInvalidDepth
	}
	if depth > MaxDepth {
		return MaxDepth, nil
	}
	return depth, nil
}

// Render writes a traversal as an indented text tree.
func Render(w io.Writer, nodes []*Node) {
	for _, n := range nodes {
		renderNode(w, n, "")
	}
}

func renderNode(w io.Writer, n *Node, indent string) {
	suffix := ""
	if n.BackRef {
		suffix = " (see above)"
	}
	if n.Depth == 0 {
		fmt.Fprintf(w, "%s%s\n", n.Label, suffix)
	} else {
		fmt.Fprintf(w, "%s└─ %s%s\n", indent, n.Label, suffix)
	}
	for _, c := range n.Children {
		renderNode(w, c, indent+"   ")
	}
}
