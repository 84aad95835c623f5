package storage

import (
	"context"
	"time"

	"github.com/dshills/codemate/pkg/types"
)

// Storage defines the interface for persisting and querying indexed code data
type Storage interface {
	// Chunk operations
	StoreChunk(ctx context.Context, chunk *types.Chunk) (created bool, err error)
	GetChunk(ctx context.Context, hash types.ContentHash) (*types.Chunk, error)
	HasChunk(ctx context.Context, hash types.ContentHash) (bool, error)

	// Location operations
	AddLocation(ctx context.Context, loc *types.ChunkLocation) error
	GetLocations(ctx context.Context, hash types.ContentHash) ([]types.ChunkLocation, error)
	LocationsForFile(ctx context.Context, filePath string) ([]types.ChunkLocation, error)
	LocationsForBlob(ctx context.Context, blobHash string) ([]types.ChunkLocation, error)
	BlobIndexed(ctx context.Context, blobHash string) (bool, error)
	ChunkHashesForFile(ctx context.Context, repo, filePath string) ([]types.ContentHash, error)
	ChunkLocatedElsewhere(ctx context.Context, hash types.ContentHash, repo, filePath string) (bool, error)
	BestLocation(ctx context.Context, hash types.ContentHash, preferredBranch string) (*types.ChunkLocation, error)
	DeleteBranchLocations(ctx context.Context, repoPath, branch string) error

	// Module operations
	UpsertModule(ctx context.Context, module *types.Module) error
	GetModule(ctx context.Context, id string) (*types.Module, error)
	ListModules(ctx context.Context) ([]*types.Module, error)

	// Embedding operations
	StoreEmbedding(ctx context.Context, hash types.ContentHash, vector []float32, model string) error
	GetEmbedding(ctx context.Context, hash types.ContentHash) (*Embedding, error)
	ChunksMissingEmbedding(ctx context.Context, model string, limit int) ([]types.ContentHash, error)

	// Search operations
	SearchVector(ctx context.Context, vector []float32, model string, limit int, filters *Filters) ([]VectorResult, error)
	SearchText(ctx context.Context, query string, limit int, filters *Filters) ([]TextResult, error)

	// Graph operations
	UpsertEdge(ctx context.Context, edge *types.Edge, commitHash string, at time.Time) (created bool, err error)
	RemoveEdge(ctx context.Context, source, target string, kind types.EdgeKind, commitHash string, at time.Time) error
	RemoveEdgesFrom(ctx context.Context, source, commitHash string, at time.Time) (int, error)
	OutgoingEdges(ctx context.Context, source string, kinds []types.EdgeKind) ([]types.Edge, error)
	IncomingEdges(ctx context.Context, target string, kinds []types.EdgeKind) ([]types.Edge, error)
	EdgeHistory(ctx context.Context, node string) ([]types.EdgeHistoryEvent, error)
	EdgesAtTime(ctx context.Context, at time.Time, kinds []types.EdgeKind) ([]types.Edge, error)
	EdgesAtCommit(ctx context.Context, commitHash string, kinds []types.EdgeKind) ([]types.Edge, error)
	UpsertExternalSymbol(ctx context.Context, name, firstSeenCommit string) error
	ListExternalSymbols(ctx context.Context) ([]ExternalSymbol, error)
	ModuleEdges(ctx context.Context) ([]ModuleEdge, error)
	CallTargetNodes(ctx context.Context) (map[string]bool, error)
	CallSourceNodes(ctx context.Context) (map[string]bool, error)
	UnresolvedCallEdges(ctx context.Context) ([]types.Edge, error)
	EdgeCreatedAt(ctx context.Context, source, target string, kind types.EdgeKind) (time.Time, error)

	// Symbol resolution support
	ChunksBySymbol(ctx context.Context, symbolName string) ([]SymbolOccurrence, error)

	// Metadata operations
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error

	// Index state operations
	GetIndexState(ctx context.Context, repoPath, branch string) (*types.IndexState, error)
	SetIndexState(ctx context.Context, state *types.IndexState) error

	// Status operations
	GetStats(ctx context.Context) (*Stats, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Embedding represents a stored vector for a chunk
type Embedding struct {
	Hash      types.ContentHash
	Vector    []float32
	Dimension int
	Model     string
	CreatedAt time.Time
}

// Filters narrows search to chunks matching every populated field.
// Values within one field are a union; separate fields intersect.
type Filters struct {
	Languages []string
	Kinds     []string
	Modules   []string
	Authors   []string
	FileGlobs []string
	PathGlobs []string
	Branch    string
	After     *time.Time
	Before    *time.Time
}

// Empty reports whether no filter field is populated.
func (f *Filters) Empty() bool {
	if f == nil {
		return true
	}
	return len(f.Languages) == 0 && len(f.Kinds) == 0 && len(f.Modules) == 0 &&
		len(f.Authors) == 0 && len(f.FileGlobs) == 0 && len(f.PathGlobs) == 0 &&
		f.Branch == "" && f.After == nil && f.Before == nil
}

// VectorResult represents a result from vector similarity search
type VectorResult struct {
	Hash            types.ContentHash
	SimilarityScore float64
}

// TextResult represents a result from full-text search
type TextResult struct {
	Hash      types.ContentHash
	BM25Score float64
}

// SymbolOccurrence is a chunk carrying a given symbol name, with the
// files it has been observed in. Used for call-target resolution.
type SymbolOccurrence struct {
	Hash     types.ContentHash
	Language types.Language
	ModuleID string
	Files    []string
}

// ExternalSymbol is a call target that never resolved to an indexed chunk
type ExternalSymbol struct {
	Name            string
	FirstSeenCommit string
	RefCount        int
}

// ModuleEdge is one row of the cross-module roll-up view. Language is
// the source chunks' language, so roll-ups can be narrowed per language.
type ModuleEdge struct {
	SourceModule string
	TargetModule string
	Kind         types.EdgeKind
	Language     string
	Weight       int
}

// Stats contains index statistics for the stats command
type Stats struct {
	Chunks          int
	Locations       int
	Embeddings      int
	Edges           int
	HistoryEvents   int
	Modules         int
	ExternalSymbols int
	DatabaseBytes   int64
}
