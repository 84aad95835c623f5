package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.0.0"
)

// ErrSchemaTooNew is returned when the database was written by a newer
// release than this binary understands.
var ErrSchemaTooNew = errors.New("database schema is newer than this version")

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Engine metadata (embedding model id, index format details)
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Modules detected from project marker files
CREATE TABLE IF NOT EXISTS modules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    path TEXT NOT NULL,
    type TEXT NOT NULL,
    parent_id TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_modules_parent ON modules(parent_id);

-- Content-addressed chunk store. One row per unique content hash.
CREATE TABLE IF NOT EXISTS chunks (
    content_hash TEXT PRIMARY KEY,
    content TEXT NOT NULL,
    language TEXT NOT NULL,
    kind TEXT NOT NULL,
    symbol_name TEXT,
    signature TEXT,
    docstring TEXT,
    start_line INTEGER,
    end_line INTEGER,
    start_byte INTEGER,
    end_byte INTEGER,
    module_id TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_chunks_language ON chunks(language);
CREATE INDEX IF NOT EXISTS idx_chunks_kind ON chunks(kind);
CREATE INDEX IF NOT EXISTS idx_chunks_symbol ON chunks(symbol_name);
CREATE INDEX IF NOT EXISTS idx_chunks_module ON chunks(module_id);

-- Full-text search over chunks
CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
    symbol_name, signature, docstring, content,
    content_hash UNINDEXED,
    tokenize='porter unicode61'
);

-- Triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
    INSERT INTO chunks_fts(symbol_name, signature, docstring, content, content_hash)
    VALUES (new.symbol_name, new.signature, new.docstring, new.content, new.content_hash);
END;

CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
    DELETE FROM chunks_fts WHERE content_hash = old.content_hash;
END;

-- Embeddings, one per chunk per model generation
CREATE TABLE IF NOT EXISTS embeddings (
    content_hash TEXT PRIMARY KEY,
    vector BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    model TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (content_hash) REFERENCES chunks(content_hash) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_embeddings_model ON embeddings(model);

-- Chunk occurrences. A chunk is stored once; its locations fan out.
-- start_byte is part of the key so identical definitions repeated in
-- one file at one commit keep distinct rows.
CREATE TABLE IF NOT EXISTS locations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    content_hash TEXT NOT NULL,
    repo TEXT NOT NULL DEFAULT '',
    file_path TEXT NOT NULL,
    commit_hash TEXT NOT NULL,
    branch TEXT,
    blob_hash TEXT,
    start_line INTEGER,
    end_line INTEGER,
    start_byte INTEGER NOT NULL DEFAULT 0,
    end_byte INTEGER,
    author TEXT,
    authored_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (content_hash) REFERENCES chunks(content_hash) ON DELETE CASCADE,
    UNIQUE(content_hash, repo, file_path, commit_hash, start_byte)
);

CREATE INDEX IF NOT EXISTS idx_locations_hash ON locations(content_hash);
CREATE INDEX IF NOT EXISTS idx_locations_file ON locations(file_path);
CREATE INDEX IF NOT EXISTS idx_locations_repo ON locations(repo);
CREATE INDEX IF NOT EXISTS idx_locations_commit ON locations(commit_hash);
CREATE INDEX IF NOT EXISTS idx_locations_blob ON locations(blob_hash);
CREATE INDEX IF NOT EXISTS idx_locations_author ON locations(author);
CREATE INDEX IF NOT EXISTS idx_locations_branch ON locations(branch);
CREATE INDEX IF NOT EXISTS idx_locations_authored ON locations(authored_at);

-- Current code graph. The (source, target, kind) triple is unique;
-- re-storing an edge updates properties in place.
CREATE TABLE IF NOT EXISTS graph_edges (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source TEXT NOT NULL,
    target TEXT NOT NULL,
    kind TEXT NOT NULL,
    line INTEGER,
    properties TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(source, target, kind)
);

CREATE INDEX IF NOT EXISTS idx_edges_source ON graph_edges(source);
CREATE INDEX IF NOT EXISTS idx_edges_target ON graph_edges(target);
CREATE INDEX IF NOT EXISTS idx_edges_kind ON graph_edges(kind);

-- Append-only edge lifecycle history. Rows are never updated or
-- deleted; the current graph is the fold of this log.
CREATE TABLE IF NOT EXISTS edge_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source TEXT NOT NULL,
    target TEXT NOT NULL,
    kind TEXT NOT NULL,
    event TEXT NOT NULL CHECK(event IN ('created', 'deleted')),
    commit_hash TEXT,
    occurred_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_triple ON edge_history(source, target, kind);
CREATE INDEX IF NOT EXISTS idx_history_commit ON edge_history(commit_hash);
CREATE INDEX IF NOT EXISTS idx_history_time ON edge_history(occurred_at);

-- Call targets that never resolved to an indexed chunk
CREATE TABLE IF NOT EXISTS external_symbols (
    name TEXT PRIMARY KEY,
    first_seen_commit TEXT,
    ref_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Incremental ingest position per (repo, branch)
CREATE TABLE IF NOT EXISTS index_state (
    repo_path TEXT NOT NULL,
    branch TEXT NOT NULL,
    last_commit_hash TEXT NOT NULL,
    indexed_at TIMESTAMP NOT NULL,
    PRIMARY KEY (repo_path, branch)
);

-- Cross-module call roll-up. Self-edges are excluded; the source
-- chunk's language is carried so roll-ups can be narrowed per language.
CREATE VIEW IF NOT EXISTS module_edges AS
SELECT
    cs.module_id AS source_module,
    ct.module_id AS target_module,
    e.kind AS kind,
    cs.language AS language,
    COUNT(*) AS weight
FROM graph_edges e
JOIN chunks cs ON e.source = 'chunk:' || cs.content_hash
JOIN chunks ct ON e.target = 'chunk:' || ct.content_hash
WHERE cs.module_id != ct.module_id
GROUP BY cs.module_id, ct.module_id, e.kind, cs.language;
`

const migrationV1Down = `
DROP VIEW IF EXISTS module_edges;

DROP TRIGGER IF EXISTS chunks_ad;
DROP TRIGGER IF EXISTS chunks_ai;

DROP TABLE IF EXISTS index_state;
DROP TABLE IF EXISTS external_symbols;
DROP TABLE IF EXISTS edge_history;
DROP TABLE IF EXISTS graph_edges;
DROP TABLE IF EXISTS locations;
DROP TABLE IF EXISTS embeddings;
DROP TABLE IF EXISTS chunks_fts;
DROP TABLE IF EXISTS chunks;
DROP TABLE IF EXISTS modules;
DROP TABLE IF EXISTS meta;
DROP TABLE IF EXISTS schema_version;
`

// ApplyMigrations runs all pending migrations
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	// Check if schema_version table exists
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)

	// Parse current version (default to 0.0.0 if no migrations applied or table doesn't exist)
	var currentVersion *semver.Version
	if err == sql.ErrNoRows {
		currentVersion = semver.MustParse("0.0.0")
	} else if err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	} else {
		var currentVersionStr string
		err = db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&currentVersionStr)
		if err == sql.ErrNoRows || currentVersionStr == "" {
			currentVersion = semver.MustParse("0.0.0")
		} else if err != nil {
			return fmt.Errorf("failed to read schema_version: %w", err)
		} else {
			currentVersion, err = semver.NewVersion(currentVersionStr)
			if err != nil {
				return fmt.Errorf("invalid current schema version %s: %w", currentVersionStr, err)
			}
		}
	}

	// Refuse databases written by a newer release
	supported := semver.MustParse(CurrentSchemaVersion)
	if currentVersion.GreaterThan(supported) {
		return fmt.Errorf("%w: database %s, supported %s", ErrSchemaTooNew, currentVersion, supported)
	}

	// Run migrations in order
	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		// Skip if already applied
		if !currentVersion.LessThan(migrationVersion) {
			continue
		}

		_, err = db.ExecContext(ctx, migration.Up)
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		_, err = db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version)
		if err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		currentVersion = migrationVersion
	}

	return nil
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	var currentVersion string
	err := db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("no migrations to rollback: %w", err)
	}

	var migration *Migration
	for i := range AllMigrations {
		if AllMigrations[i].Version == currentVersion {
			migration = &AllMigrations[i]
			break
		}
	}

	if migration == nil {
		return fmt.Errorf("migration %s not found", currentVersion)
	}

	_, err = db.ExecContext(ctx, migration.Down)
	if err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", currentVersion, err)
	}

	_, err = db.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", currentVersion)
	if err != nil {
		return fmt.Errorf("failed to remove migration record %s: %w", currentVersion, err)
	}

	return nil
}
