package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/codemate/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// MetaEmbeddingModel is the meta key recording which embedding model
// produced the stored vectors.
const MetaEmbeddingModel = "embedding_model"

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance. The parent
// directory is created when missing so the default .codemate/index.db
// path works on first run.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dbPath != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Chunk operations

// storeChunkWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) storeChunkWithQuerier(ctx context.Context, q querier, chunk *types.Chunk) (bool, error) {
	if err := chunk.Validate(); err != nil {
		return false, err
	}
	query := `
		INSERT INTO chunks (content_hash, content, language, kind, symbol_name, signature,
		                    docstring, start_line, end_line, start_byte, end_byte, module_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO NOTHING
	`
	result, err := q.ExecContext(ctx, query,
		chunk.Hash.Hex(), chunk.Content, string(chunk.Language), string(chunk.Kind),
		chunk.SymbolName, chunk.Signature, chunk.Docstring,
		chunk.StartLine, chunk.EndLine, chunk.StartByte, chunk.EndByte, chunk.ModuleID)
	if err != nil {
		return false, fmt.Errorf("failed to store chunk: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStorage) StoreChunk(ctx context.Context, chunk *types.Chunk) (bool, error) {
	return s.storeChunkWithQuerier(ctx, s.querier(), chunk)
}

const chunkColumns = `content_hash, content, language, kind, symbol_name, signature,
       docstring, start_line, end_line, start_byte, end_byte, module_id`

func scanChunk(row interface{ Scan(...interface{}) error }) (*types.Chunk, error) {
	var chunk types.Chunk
	var hashHex string
	var symbolName, signature, docstring, moduleID sql.NullString
	err := row.Scan(&hashHex, &chunk.Content, &chunk.Language, &chunk.Kind,
		&symbolName, &signature, &docstring,
		&chunk.StartLine, &chunk.EndLine, &chunk.StartByte, &chunk.EndByte, &moduleID)
	if err != nil {
		return nil, err
	}
	hash, err := types.ParseContentHash(hashHex)
	if err != nil {
		return nil, err
	}
	chunk.Hash = hash
	chunk.SymbolName = symbolName.String
	chunk.Signature = signature.String
	chunk.Docstring = docstring.String
	chunk.ModuleID = moduleID.String
	return &chunk, nil
}

// getChunkWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getChunkWithQuerier(ctx context.Context, q querier, hash types.ContentHash) (*types.Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE content_hash = ?`
	chunk, err := scanChunk(q.QueryRowContext(ctx, query, hash.Hex()))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

func (s *SQLiteStorage) GetChunk(ctx context.Context, hash types.ContentHash) (*types.Chunk, error) {
	return s.getChunkWithQuerier(ctx, s.querier(), hash)
}

func (s *SQLiteStorage) hasChunkWithQuerier(ctx context.Context, q querier, hash types.ContentHash) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM chunks WHERE content_hash = ?", hash.Hex()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStorage) HasChunk(ctx context.Context, hash types.ContentHash) (bool, error) {
	return s.hasChunkWithQuerier(ctx, s.querier(), hash)
}

// Location operations

// addLocationWithQuerier inserts a location; the unique key makes
// repeated ingest of the same occurrence a no-op. start_byte is part of
// the key so identical definitions in one file stay distinct rows.
func (s *SQLiteStorage) addLocationWithQuerier(ctx context.Context, q querier, loc *types.ChunkLocation) error {
	query := `
		INSERT INTO locations (content_hash, repo, file_path, commit_hash, branch, blob_hash,
		                       start_line, end_line, start_byte, end_byte, author, authored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash, repo, file_path, commit_hash, start_byte) DO UPDATE SET
			branch = excluded.branch,
			blob_hash = excluded.blob_hash,
			author = excluded.author,
			authored_at = excluded.authored_at
	`
	_, err := q.ExecContext(ctx, query,
		loc.Hash.Hex(), loc.Repo, loc.FilePath, loc.CommitHash, loc.Branch, loc.BlobHash,
		loc.StartLine, loc.EndLine, loc.StartByte, loc.EndByte,
		loc.Author, nullTime(loc.AuthoredAt))
	if err != nil {
		return fmt.Errorf("failed to add location: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) AddLocation(ctx context.Context, loc *types.ChunkLocation) error {
	return s.addLocationWithQuerier(ctx, s.querier(), loc)
}

const locationColumns = `content_hash, repo, file_path, commit_hash, branch, blob_hash,
       start_line, end_line, start_byte, end_byte, author, authored_at`

func scanLocations(rows *sql.Rows) ([]types.ChunkLocation, error) {
	var locs []types.ChunkLocation
	for rows.Next() {
		var loc types.ChunkLocation
		var hashHex string
		var branch, blobHash, author sql.NullString
		var authoredAt sql.NullTime
		err := rows.Scan(&hashHex, &loc.Repo, &loc.FilePath, &loc.CommitHash, &branch, &blobHash,
			&loc.StartLine, &loc.EndLine, &loc.StartByte, &loc.EndByte,
			&author, &authoredAt)
		if err != nil {
			return nil, err
		}
		hash, err := types.ParseContentHash(hashHex)
		if err != nil {
			return nil, err
		}
		loc.Hash = hash
		loc.Branch = branch.String
		loc.BlobHash = blobHash.String
		loc.Author = author.String
		if authoredAt.Valid {
			loc.AuthoredAt = authoredAt.Time
		}
		locs = append(locs, loc)
	}
	return locs, rows.Err()
}

func (s *SQLiteStorage) queryLocations(ctx context.Context, q querier, where string, args ...interface{}) ([]types.ChunkLocation, error) {
	query := `SELECT ` + locationColumns + ` FROM locations ` + where
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanLocations(rows)
}

func (s *SQLiteStorage) GetLocations(ctx context.Context, hash types.ContentHash) ([]types.ChunkLocation, error) {
	return s.queryLocations(ctx, s.querier(),
		"WHERE content_hash = ? ORDER BY authored_at DESC, id DESC", hash.Hex())
}

func (s *SQLiteStorage) LocationsForFile(ctx context.Context, filePath string) ([]types.ChunkLocation, error) {
	return s.queryLocations(ctx, s.querier(),
		"WHERE file_path = ? ORDER BY authored_at DESC, id DESC", filePath)
}

func (s *SQLiteStorage) LocationsForBlob(ctx context.Context, blobHash string) ([]types.ChunkLocation, error) {
	return s.queryLocations(ctx, s.querier(),
		"WHERE blob_hash = ? ORDER BY id", blobHash)
}

func (s *SQLiteStorage) blobIndexedWithQuerier(ctx context.Context, q querier, blobHash string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM locations WHERE blob_hash = ? LIMIT 1", blobHash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStorage) BlobIndexed(ctx context.Context, blobHash string) (bool, error) {
	return s.blobIndexedWithQuerier(ctx, s.querier(), blobHash)
}

// chunkHashesForFileWithQuerier lists every distinct chunk hash ever
// located at a path. Used to diff a file's chunk set across re-indexes.
func (s *SQLiteStorage) chunkHashesForFileWithQuerier(ctx context.Context, q querier, repo, filePath string) ([]types.ContentHash, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT DISTINCT content_hash FROM locations WHERE repo = ? AND file_path = ?", repo, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to query file chunk hashes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hashes []types.ContentHash
	for rows.Next() {
		var hex string
		if err := rows.Scan(&hex); err != nil {
			return nil, err
		}
		hash, err := types.ParseContentHash(hex)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	return hashes, rows.Err()
}

func (s *SQLiteStorage) ChunkHashesForFile(ctx context.Context, repo, filePath string) ([]types.ContentHash, error) {
	return s.chunkHashesForFileWithQuerier(ctx, s.querier(), repo, filePath)
}

// chunkLocatedElsewhereWithQuerier reports whether a chunk has a
// location outside the given file, so shared definitions keep their
// edges when one occurrence disappears.
func (s *SQLiteStorage) chunkLocatedElsewhereWithQuerier(ctx context.Context, q querier, hash types.ContentHash, repo, filePath string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `
		SELECT 1 FROM locations
		WHERE content_hash = ? AND NOT (repo = ? AND file_path = ?)
		LIMIT 1`, hash.Hex(), repo, filePath).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStorage) ChunkLocatedElsewhere(ctx context.Context, hash types.ContentHash, repo, filePath string) (bool, error) {
	return s.chunkLocatedElsewhereWithQuerier(ctx, s.querier(), hash, repo, filePath)
}

// bestLocationWithQuerier picks the preferred branch first, then
// main/master, then the most recent location of any branch.
func (s *SQLiteStorage) bestLocationWithQuerier(ctx context.Context, q querier, hash types.ContentHash, preferredBranch string) (*types.ChunkLocation, error) {
	query := `SELECT ` + locationColumns + `
		FROM locations
		WHERE content_hash = ?
		ORDER BY
			CASE
				WHEN branch = ? THEN 0
				WHEN branch IN ('main', 'master') THEN 1
				ELSE 2
			END,
			authored_at DESC, id DESC
		LIMIT 1`
	rows, err := q.QueryContext(ctx, query, hash.Hex(), preferredBranch)
	if err != nil {
		return nil, fmt.Errorf("failed to query best location: %w", err)
	}
	defer func() { _ = rows.Close() }()

	locs, err := scanLocations(rows)
	if err != nil {
		return nil, err
	}
	if len(locs) == 0 {
		return nil, ErrNotFound
	}
	return &locs[0], nil
}

func (s *SQLiteStorage) BestLocation(ctx context.Context, hash types.ContentHash, preferredBranch string) (*types.ChunkLocation, error) {
	return s.bestLocationWithQuerier(ctx, s.querier(), hash, preferredBranch)
}

func (s *SQLiteStorage) deleteBranchLocationsWithQuerier(ctx context.Context, q querier, repoPath, branch string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM locations WHERE repo = ? AND branch = ?", repoPath, branch); err != nil {
		return fmt.Errorf("failed to delete branch locations: %w", err)
	}
	if _, err := q.ExecContext(ctx, "DELETE FROM index_state WHERE repo_path = ? AND branch = ?", repoPath, branch); err != nil {
		return fmt.Errorf("failed to delete branch index state: %w", err)
	}
	return nil
}

// DeleteBranchLocations removes a deleted branch's locations and index
// state. Chunks stay; orphaned chunks are harmless and may be
// re-referenced later.
func (s *SQLiteStorage) DeleteBranchLocations(ctx context.Context, repoPath, branch string) error {
	return s.deleteBranchLocationsWithQuerier(ctx, s.querier(), repoPath, branch)
}

// Module operations

func (s *SQLiteStorage) upsertModuleWithQuerier(ctx context.Context, q querier, module *types.Module) error {
	query := `
		INSERT INTO modules (id, name, path, type, parent_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			path = excluded.path,
			type = excluded.type,
			parent_id = excluded.parent_id
	`
	_, err := q.ExecContext(ctx, query,
		module.ID, module.Name, module.Path, string(module.Type), nullString(module.ParentID))
	if err != nil {
		return fmt.Errorf("failed to upsert module: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertModule(ctx context.Context, module *types.Module) error {
	return s.upsertModuleWithQuerier(ctx, s.querier(), module)
}

func (s *SQLiteStorage) getModuleWithQuerier(ctx context.Context, q querier, id string) (*types.Module, error) {
	var module types.Module
	var parentID sql.NullString
	err := q.QueryRowContext(ctx,
		"SELECT id, name, path, type, parent_id FROM modules WHERE id = ?", id).Scan(
		&module.ID, &module.Name, &module.Path, &module.Type, &parentID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	module.ParentID = parentID.String
	return &module, nil
}

func (s *SQLiteStorage) GetModule(ctx context.Context, id string) (*types.Module, error) {
	return s.getModuleWithQuerier(ctx, s.querier(), id)
}

func (s *SQLiteStorage) listModulesWithQuerier(ctx context.Context, q querier) ([]*types.Module, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, name, path, type, parent_id FROM modules ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var modules []*types.Module
	for rows.Next() {
		var module types.Module
		var parentID sql.NullString
		if err := rows.Scan(&module.ID, &module.Name, &module.Path, &module.Type, &parentID); err != nil {
			return nil, err
		}
		module.ParentID = parentID.String
		modules = append(modules, &module)
	}
	return modules, rows.Err()
}

func (s *SQLiteStorage) ListModules(ctx context.Context) ([]*types.Module, error) {
	return s.listModulesWithQuerier(ctx, s.querier())
}

// Embedding operations

func (s *SQLiteStorage) storeEmbeddingWithQuerier(ctx context.Context, q querier, hash types.ContentHash, vector []float32, model string) error {
	query := `
		INSERT INTO embeddings (content_hash, vector, dimension, model)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			model = excluded.model
	`
	_, err := q.ExecContext(ctx, query, hash.Hex(), serializeVector(vector), len(vector), model)
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) StoreEmbedding(ctx context.Context, hash types.ContentHash, vector []float32, model string) error {
	return s.storeEmbeddingWithQuerier(ctx, s.querier(), hash, vector, model)
}

func (s *SQLiteStorage) getEmbeddingWithQuerier(ctx context.Context, q querier, hash types.ContentHash) (*Embedding, error) {
	var blob []byte
	emb := Embedding{Hash: hash}
	err := q.QueryRowContext(ctx,
		"SELECT vector, dimension, model, created_at FROM embeddings WHERE content_hash = ?",
		hash.Hex()).Scan(&blob, &emb.Dimension, &emb.Model, &emb.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	emb.Vector = deserializeVector(blob)
	return &emb, nil
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, hash types.ContentHash) (*Embedding, error) {
	return s.getEmbeddingWithQuerier(ctx, s.querier(), hash)
}

func (s *SQLiteStorage) chunksMissingEmbeddingWithQuerier(ctx context.Context, q querier, model string, limit int) ([]types.ContentHash, error) {
	query := `
		SELECT c.content_hash
		FROM chunks c
		LEFT JOIN embeddings e ON c.content_hash = e.content_hash AND e.model = ?
		WHERE e.content_hash IS NULL
		ORDER BY c.created_at
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, model, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query missing embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hashes []types.ContentHash
	for rows.Next() {
		var hex string
		if err := rows.Scan(&hex); err != nil {
			return nil, err
		}
		hash, err := types.ParseContentHash(hex)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	return hashes, rows.Err()
}

func (s *SQLiteStorage) ChunksMissingEmbedding(ctx context.Context, model string, limit int) ([]types.ContentHash, error) {
	return s.chunksMissingEmbeddingWithQuerier(ctx, s.querier(), model, limit)
}

// Metadata operations

func (s *SQLiteStorage) getMetaWithQuerier(ctx context.Context, q querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

func (s *SQLiteStorage) GetMeta(ctx context.Context, key string) (string, error) {
	return s.getMetaWithQuerier(ctx, s.querier(), key)
}

func (s *SQLiteStorage) setMetaWithQuerier(ctx context.Context, q querier, key, value string) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("failed to set meta %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) SetMeta(ctx context.Context, key, value string) error {
	return s.setMetaWithQuerier(ctx, s.querier(), key, value)
}

// Index state operations

func (s *SQLiteStorage) getIndexStateWithQuerier(ctx context.Context, q querier, repoPath, branch string) (*types.IndexState, error) {
	var state types.IndexState
	err := q.QueryRowContext(ctx,
		"SELECT repo_path, branch, last_commit_hash, indexed_at FROM index_state WHERE repo_path = ? AND branch = ?",
		repoPath, branch).Scan(&state.RepoPath, &state.Branch, &state.LastCommitHash, &state.IndexedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *SQLiteStorage) GetIndexState(ctx context.Context, repoPath, branch string) (*types.IndexState, error) {
	return s.getIndexStateWithQuerier(ctx, s.querier(), repoPath, branch)
}

func (s *SQLiteStorage) setIndexStateWithQuerier(ctx context.Context, q querier, state *types.IndexState) error {
	query := `
		INSERT INTO index_state (repo_path, branch, last_commit_hash, indexed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(repo_path, branch) DO UPDATE SET
			last_commit_hash = excluded.last_commit_hash,
			indexed_at = excluded.indexed_at
	`
	_, err := q.ExecContext(ctx, query, state.RepoPath, state.Branch, state.LastCommitHash, state.IndexedAt)
	if err != nil {
		return fmt.Errorf("failed to set index state: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) SetIndexState(ctx context.Context, state *types.IndexState) error {
	return s.setIndexStateWithQuerier(ctx, s.querier(), state)
}

// Status operations

func (s *SQLiteStorage) getStatsWithQuerier(ctx context.Context, q querier) (*Stats, error) {
	stats := &Stats{}
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM chunks", &stats.Chunks},
		{"SELECT COUNT(*) FROM locations", &stats.Locations},
		{"SELECT COUNT(*) FROM embeddings", &stats.Embeddings},
		{"SELECT COUNT(*) FROM graph_edges", &stats.Edges},
		{"SELECT COUNT(*) FROM edge_history", &stats.HistoryEvents},
		{"SELECT COUNT(*) FROM modules", &stats.Modules},
		{"SELECT COUNT(*) FROM external_symbols", &stats.ExternalSymbols},
	}
	for _, c := range counts {
		if err := q.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to collect stats: %w", err)
		}
	}

	var pageCount, pageSize int64
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, err
	}
	if err := q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, err
	}
	stats.DatabaseBytes = pageCount * pageSize
	return stats, nil
}

func (s *SQLiteStorage) GetStats(ctx context.Context) (*Stats, error) {
	return s.getStatsWithQuerier(ctx, s.querier())
}

// helpers

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
