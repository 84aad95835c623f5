package types

import (
	"strings"
	"time"
)

// EdgeKind classifies a relationship in the code graph.
type EdgeKind string

const (
	EdgeCalls      EdgeKind = "CALLS"
	EdgeImports    EdgeKind = "IMPORTS"
	EdgeExtends    EdgeKind = "EXTENDS"
	EdgeImplements EdgeKind = "IMPLEMENTS"
	EdgeReferences EdgeKind = "REFERENCES"
	EdgeContains   EdgeKind = "CONTAINS"
	EdgeAuthored   EdgeKind = "AUTHORED"
	EdgeModified   EdgeKind = "MODIFIED"
	EdgeSimilarTo  EdgeKind = "SIMILAR_TO"
)

// ValidEdgeKind reports whether k is a recognized edge kind.
func ValidEdgeKind(k EdgeKind) bool {
	switch k {
	case EdgeCalls, EdgeImports, EdgeExtends, EdgeImplements, EdgeReferences,
		EdgeContains, EdgeAuthored, EdgeModified, EdgeSimilarTo:
		return true
	}
	return false
}

// Graph node identifiers are prefixed strings so heterogeneous node
// types share one namespace.
func ChunkNodeID(h ContentHash) string { return "chunk:" + h.Hex() }
func FileNodeID(path string) string    { return "file:" + path }
func SymbolNodeID(name string) string  { return "symbol:" + name }
func FQNNodeID(f FQN) string           { return "fqn:" + f.String() }
func ModuleNodeID(id string) string    { return "module:" + id }
func ExternalNodeID(name string) string {
	return "external:" + name
}
func CommitNodeID(hash string) string { return "commit:" + hash }
func AuthorNodeID(name string) string { return "author:" + name }

// SplitNodeID splits a node identifier into its type prefix and value.
func SplitNodeID(id string) (prefix, value string) {
	idx := strings.Index(id, ":")
	if idx < 0 {
		return "", id
	}
	return id[:idx], id[idx+1:]
}

// ChunkHashFromNodeID extracts the content hash from a "chunk:" node ID.
func ChunkHashFromNodeID(id string) (ContentHash, bool) {
	prefix, value := SplitNodeID(id)
	if prefix != "chunk" {
		return ContentHash{}, false
	}
	h, err := ParseContentHash(value)
	if err != nil {
		return ContentHash{}, false
	}
	return h, true
}

// Edge is one relationship between two graph nodes. The triple
// (Source, Target, Kind) is unique; storing it again updates
// Properties in place without creating a duplicate.
type Edge struct {
	Source     string
	Target     string
	Kind       EdgeKind
	Line       int
	Properties map[string]string
}

// Validate checks edge integrity.
func (e *Edge) Validate() error {
	if e.Source == "" || e.Target == "" {
		return ErrInvalidEdge
	}
	if !ValidEdgeKind(e.Kind) {
		return ErrInvalidEdge
	}
	return nil
}

// EdgeEvent is the lifecycle event recorded in edge history.
type EdgeEvent string

const (
	EdgeCreated EdgeEvent = "created"
	EdgeDeleted EdgeEvent = "deleted"
)

// EdgeHistoryEvent is one append-only history record. Events are never
// updated or removed; the current graph is the fold of its history.
type EdgeHistoryEvent struct {
	Source     string
	Target     string
	Kind       EdgeKind
	Event      EdgeEvent
	CommitHash string
	OccurredAt time.Time
}
