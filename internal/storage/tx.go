package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dshills/codemate/pkg/types"
)

// sqliteTx wraps a SQL transaction. It satisfies the full Storage
// interface by routing every operation through the transaction's
// querier, so a unit of work commits or rolls back atomically.
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) StoreChunk(ctx context.Context, chunk *types.Chunk) (bool, error) {
	return t.storage.storeChunkWithQuerier(ctx, t.tx, chunk)
}

func (t *sqliteTx) GetChunk(ctx context.Context, hash types.ContentHash) (*types.Chunk, error) {
	return t.storage.getChunkWithQuerier(ctx, t.tx, hash)
}

func (t *sqliteTx) HasChunk(ctx context.Context, hash types.ContentHash) (bool, error) {
	return t.storage.hasChunkWithQuerier(ctx, t.tx, hash)
}

func (t *sqliteTx) AddLocation(ctx context.Context, loc *types.ChunkLocation) error {
	return t.storage.addLocationWithQuerier(ctx, t.tx, loc)
}

func (t *sqliteTx) GetLocations(ctx context.Context, hash types.ContentHash) ([]types.ChunkLocation, error) {
	return t.storage.queryLocations(ctx, t.tx,
		"WHERE content_hash = ? ORDER BY authored_at DESC, id DESC", hash.Hex())
}

func (t *sqliteTx) LocationsForFile(ctx context.Context, filePath string) ([]types.ChunkLocation, error) {
	return t.storage.queryLocations(ctx, t.tx,
		"WHERE file_path = ? ORDER BY authored_at DESC, id DESC", filePath)
}

func (t *sqliteTx) LocationsForBlob(ctx context.Context, blobHash string) ([]types.ChunkLocation, error) {
	return t.storage.queryLocations(ctx, t.tx, "WHERE blob_hash = ? ORDER BY id", blobHash)
}

func (t *sqliteTx) BlobIndexed(ctx context.Context, blobHash string) (bool, error) {
	return t.storage.blobIndexedWithQuerier(ctx, t.tx, blobHash)
}

func (t *sqliteTx) ChunkHashesForFile(ctx context.Context, repo, filePath string) ([]types.ContentHash, error) {
	return t.storage.chunkHashesForFileWithQuerier(ctx, t.tx, repo, filePath)
}

func (t *sqliteTx) ChunkLocatedElsewhere(ctx context.Context, hash types.ContentHash, repo, filePath string) (bool, error) {
	return t.storage.chunkLocatedElsewhereWithQuerier(ctx, t.tx, hash, repo, filePath)
}

func (t *sqliteTx) BestLocation(ctx context.Context, hash types.ContentHash, preferredBranch string) (*types.ChunkLocation, error) {
	return t.storage.bestLocationWithQuerier(ctx, t.tx, hash, preferredBranch)
}

func (t *sqliteTx) DeleteBranchLocations(ctx context.Context, repoPath, branch string) error {
	return t.storage.deleteBranchLocationsWithQuerier(ctx, t.tx, repoPath, branch)
}

func (t *sqliteTx) UpsertModule(ctx context.Context, module *types.Module) error {
	return t.storage.upsertModuleWithQuerier(ctx, t.tx, module)
}

func (t *sqliteTx) GetModule(ctx context.Context, id string) (*types.Module, error) {
	return t.storage.getModuleWithQuerier(ctx, t.tx, id)
}

func (t *sqliteTx) ListModules(ctx context.Context) ([]*types.Module, error) {
	return t.storage.listModulesWithQuerier(ctx, t.tx)
}

func (t *sqliteTx) StoreEmbedding(ctx context.Context, hash types.ContentHash, vector []float32, model string) error {
	return t.storage.storeEmbeddingWithQuerier(ctx, t.tx, hash, vector, model)
}

func (t *sqliteTx) GetEmbedding(ctx context.Context, hash types.ContentHash) (*Embedding, error) {
	return t.storage.getEmbeddingWithQuerier(ctx, t.tx, hash)
}

func (t *sqliteTx) ChunksMissingEmbedding(ctx context.Context, model string, limit int) ([]types.ContentHash, error) {
	return t.storage.chunksMissingEmbeddingWithQuerier(ctx, t.tx, model, limit)
}

func (t *sqliteTx) SearchVector(ctx context.Context, vector []float32, model string, limit int, filters *Filters) ([]VectorResult, error) {
	return t.storage.searchVectorWithQuerier(ctx, t.tx, vector, model, limit, filters)
}

func (t *sqliteTx) SearchText(ctx context.Context, query string, limit int, filters *Filters) ([]TextResult, error) {
	return t.storage.searchTextWithQuerier(ctx, t.tx, query, limit, filters)
}

func (t *sqliteTx) UpsertEdge(ctx context.Context, edge *types.Edge, commitHash string, at time.Time) (bool, error) {
	return t.storage.upsertEdgeWithQuerier(ctx, t.tx, edge, commitHash, at)
}

func (t *sqliteTx) RemoveEdge(ctx context.Context, source, target string, kind types.EdgeKind, commitHash string, at time.Time) error {
	return t.storage.removeEdgeWithQuerier(ctx, t.tx, source, target, kind, commitHash, at)
}

func (t *sqliteTx) RemoveEdgesFrom(ctx context.Context, source, commitHash string, at time.Time) (int, error) {
	return t.storage.removeEdgesFromWithQuerier(ctx, t.tx, source, commitHash, at)
}

func (t *sqliteTx) OutgoingEdges(ctx context.Context, source string, kinds []types.EdgeKind) ([]types.Edge, error) {
	return t.storage.outgoingEdgesWithQuerier(ctx, t.tx, source, kinds)
}

func (t *sqliteTx) IncomingEdges(ctx context.Context, target string, kinds []types.EdgeKind) ([]types.Edge, error) {
	return t.storage.incomingEdgesWithQuerier(ctx, t.tx, target, kinds)
}

func (t *sqliteTx) EdgeHistory(ctx context.Context, node string) ([]types.EdgeHistoryEvent, error) {
	return t.storage.edgeHistoryWithQuerier(ctx, t.tx, node)
}

func (t *sqliteTx) EdgesAtTime(ctx context.Context, at time.Time, kinds []types.EdgeKind) ([]types.Edge, error) {
	return t.storage.edgesAtTimeWithQuerier(ctx, t.tx, at, kinds)
}

func (t *sqliteTx) EdgesAtCommit(ctx context.Context, commitHash string, kinds []types.EdgeKind) ([]types.Edge, error) {
	return t.storage.edgesAtCommitWithQuerier(ctx, t.tx, commitHash, kinds)
}

func (t *sqliteTx) UpsertExternalSymbol(ctx context.Context, name, firstSeenCommit string) error {
	return t.storage.upsertExternalSymbolWithQuerier(ctx, t.tx, name, firstSeenCommit)
}

func (t *sqliteTx) ListExternalSymbols(ctx context.Context) ([]ExternalSymbol, error) {
	return t.storage.listExternalSymbolsWithQuerier(ctx, t.tx)
}

func (t *sqliteTx) ModuleEdges(ctx context.Context) ([]ModuleEdge, error) {
	return t.storage.moduleEdgesWithQuerier(ctx, t.tx)
}

func (t *sqliteTx) CallTargetNodes(ctx context.Context) (map[string]bool, error) {
	return t.storage.callTargetNodesWithQuerier(ctx, t.tx)
}

func (t *sqliteTx) CallSourceNodes(ctx context.Context) (map[string]bool, error) {
	return t.storage.callSourceNodesWithQuerier(ctx, t.tx)
}

func (t *sqliteTx) UnresolvedCallEdges(ctx context.Context) ([]types.Edge, error) {
	return t.storage.unresolvedCallEdgesWithQuerier(ctx, t.tx)
}

func (t *sqliteTx) EdgeCreatedAt(ctx context.Context, source, target string, kind types.EdgeKind) (time.Time, error) {
	return t.storage.edgeCreatedAtWithQuerier(ctx, t.tx, source, target, kind)
}

func (t *sqliteTx) ChunksBySymbol(ctx context.Context, symbolName string) ([]SymbolOccurrence, error) {
	return t.storage.chunksBySymbolWithQuerier(ctx, t.tx, symbolName)
}

func (t *sqliteTx) GetMeta(ctx context.Context, key string) (string, error) {
	return t.storage.getMetaWithQuerier(ctx, t.tx, key)
}

func (t *sqliteTx) SetMeta(ctx context.Context, key, value string) error {
	return t.storage.setMetaWithQuerier(ctx, t.tx, key, value)
}

func (t *sqliteTx) GetIndexState(ctx context.Context, repoPath, branch string) (*types.IndexState, error) {
	return t.storage.getIndexStateWithQuerier(ctx, t.tx, repoPath, branch)
}

func (t *sqliteTx) SetIndexState(ctx context.Context, state *types.IndexState) error {
	return t.storage.setIndexStateWithQuerier(ctx, t.tx, state)
}

func (t *sqliteTx) GetStats(ctx context.Context) (*Stats, error) {
	return t.storage.getStatsWithQuerier(ctx, t.tx)
}

// Close is invalid inside a transaction.
func (t *sqliteTx) Close() error {
	return errors.New("cannot close storage from within a transaction")
}

// BeginTx is invalid inside a transaction; SQLite has no nesting.
func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, errors.New("nested transactions are not supported")
}
