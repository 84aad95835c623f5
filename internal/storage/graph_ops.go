package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/codemate/pkg/types"
)

// Graph operations. The graph_edges table is the current graph;
// edge_history is its append-only lifecycle log. Every create and
// delete writes a history event in the same statement batch, so the
// two can never drift apart within a transaction.

// upsertEdgeWithQuerier inserts an edge or refreshes its properties.
// A history 'created' event is appended only when the triple is new;
// re-storing an existing edge updates properties silently.
func (s *SQLiteStorage) upsertEdgeWithQuerier(ctx context.Context, q querier, edge *types.Edge, commitHash string, at time.Time) (bool, error) {
	if err := edge.Validate(); err != nil {
		return false, err
	}

	props, err := marshalProperties(edge.Properties)
	if err != nil {
		return false, err
	}

	query := `
		INSERT INTO graph_edges (source, target, kind, line, properties)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source, target, kind) DO UPDATE SET
			line = excluded.line,
			properties = excluded.properties
	`
	var exists int
	err = q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM graph_edges WHERE source = ? AND target = ? AND kind = ?",
		edge.Source, edge.Target, string(edge.Kind)).Scan(&exists)
	if err != nil {
		return false, err
	}

	if _, err := q.ExecContext(ctx, query, edge.Source, edge.Target, string(edge.Kind), edge.Line, props); err != nil {
		return false, fmt.Errorf("failed to upsert edge: %w", err)
	}

	if exists > 0 {
		return false, nil
	}

	if err := s.appendHistory(ctx, q, edge.Source, edge.Target, edge.Kind, types.EdgeCreated, commitHash, at); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStorage) UpsertEdge(ctx context.Context, edge *types.Edge, commitHash string, at time.Time) (bool, error) {
	return s.upsertEdgeWithQuerier(ctx, s.querier(), edge, commitHash, at)
}

// removeEdgeWithQuerier deletes an edge from the current graph and
// appends a 'deleted' event. Removing a missing edge is a no-op.
func (s *SQLiteStorage) removeEdgeWithQuerier(ctx context.Context, q querier, source, target string, kind types.EdgeKind, commitHash string, at time.Time) error {
	result, err := q.ExecContext(ctx,
		"DELETE FROM graph_edges WHERE source = ? AND target = ? AND kind = ?",
		source, target, string(kind))
	if err != nil {
		return fmt.Errorf("failed to remove edge: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	return s.appendHistory(ctx, q, source, target, kind, types.EdgeDeleted, commitHash, at)
}

func (s *SQLiteStorage) RemoveEdge(ctx context.Context, source, target string, kind types.EdgeKind, commitHash string, at time.Time) error {
	return s.removeEdgeWithQuerier(ctx, s.querier(), source, target, kind, commitHash, at)
}

// removeEdgesFromWithQuerier deletes every edge sourced at a node and
// appends one 'deleted' event per edge. Used when a chunk disappears
// from the tree so its calls and imports leave the current graph.
func (s *SQLiteStorage) removeEdgesFromWithQuerier(ctx context.Context, q querier, source, commitHash string, at time.Time) (int, error) {
	edges, err := s.outgoingEdgesWithQuerier(ctx, q, source, nil)
	if err != nil {
		return 0, err
	}
	for _, edge := range edges {
		if err := s.removeEdgeWithQuerier(ctx, q, edge.Source, edge.Target, edge.Kind, commitHash, at); err != nil {
			return 0, err
		}
	}
	return len(edges), nil
}

func (s *SQLiteStorage) RemoveEdgesFrom(ctx context.Context, source, commitHash string, at time.Time) (int, error) {
	return s.removeEdgesFromWithQuerier(ctx, s.querier(), source, commitHash, at)
}

func (s *SQLiteStorage) appendHistory(ctx context.Context, q querier, source, target string, kind types.EdgeKind, event types.EdgeEvent, commitHash string, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	_, err := q.ExecContext(ctx,
		"INSERT INTO edge_history (source, target, kind, event, commit_hash, occurred_at) VALUES (?, ?, ?, ?, ?, ?)",
		source, target, string(kind), string(event), nullString(commitHash), at.UTC())
	if err != nil {
		return fmt.Errorf("failed to append edge history: %w", err)
	}
	return nil
}

func kindsClause(kinds []types.EdgeKind, args []interface{}) (string, []interface{}) {
	if len(kinds) == 0 {
		return "", args
	}
	placeholders := make([]string, len(kinds))
	for i, k := range kinds {
		placeholders[i] = "?"
		args = append(args, string(k))
	}
	return " AND kind IN (" + strings.Join(placeholders, ",") + ")", args
}

func scanEdges(rows *sql.Rows) ([]types.Edge, error) {
	var edges []types.Edge
	for rows.Next() {
		var edge types.Edge
		var line sql.NullInt64
		var props sql.NullString
		if err := rows.Scan(&edge.Source, &edge.Target, &edge.Kind, &line, &props); err != nil {
			return nil, err
		}
		edge.Line = int(line.Int64)
		if props.Valid && props.String != "" {
			if err := json.Unmarshal([]byte(props.String), &edge.Properties); err != nil {
				return nil, fmt.Errorf("corrupt edge properties: %w", err)
			}
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

func (s *SQLiteStorage) outgoingEdgesWithQuerier(ctx context.Context, q querier, source string, kinds []types.EdgeKind) ([]types.Edge, error) {
	args := []interface{}{source}
	clause, args := kindsClause(kinds, args)
	rows, err := q.QueryContext(ctx,
		"SELECT source, target, kind, line, properties FROM graph_edges WHERE source = ?"+clause+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outgoing edges: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEdges(rows)
}

func (s *SQLiteStorage) OutgoingEdges(ctx context.Context, source string, kinds []types.EdgeKind) ([]types.Edge, error) {
	return s.outgoingEdgesWithQuerier(ctx, s.querier(), source, kinds)
}

func (s *SQLiteStorage) incomingEdgesWithQuerier(ctx context.Context, q querier, target string, kinds []types.EdgeKind) ([]types.Edge, error) {
	args := []interface{}{target}
	clause, args := kindsClause(kinds, args)
	rows, err := q.QueryContext(ctx,
		"SELECT source, target, kind, line, properties FROM graph_edges WHERE target = ?"+clause+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query incoming edges: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEdges(rows)
}

func (s *SQLiteStorage) IncomingEdges(ctx context.Context, target string, kinds []types.EdgeKind) ([]types.Edge, error) {
	return s.incomingEdgesWithQuerier(ctx, s.querier(), target, kinds)
}

func (s *SQLiteStorage) edgeHistoryWithQuerier(ctx context.Context, q querier, node string) ([]types.EdgeHistoryEvent, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT source, target, kind, event, commit_hash, occurred_at
		FROM edge_history
		WHERE source = ? OR target = ?
		ORDER BY occurred_at, id`, node, node)
	if err != nil {
		return nil, fmt.Errorf("failed to query edge history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []types.EdgeHistoryEvent
	for rows.Next() {
		var ev types.EdgeHistoryEvent
		var commit sql.NullString
		if err := rows.Scan(&ev.Source, &ev.Target, &ev.Kind, &ev.Event, &commit, &ev.OccurredAt); err != nil {
			return nil, err
		}
		ev.CommitHash = commit.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *SQLiteStorage) EdgeHistory(ctx context.Context, node string) ([]types.EdgeHistoryEvent, error) {
	return s.edgeHistoryWithQuerier(ctx, s.querier(), node)
}

// edgesAtTimeWithQuerier folds the history log: for each triple the
// latest event at or before the bound wins, and only 'created' winners
// are part of the graph at that point.
func (s *SQLiteStorage) edgesAtTimeWithQuerier(ctx context.Context, q querier, at time.Time, kinds []types.EdgeKind) ([]types.Edge, error) {
	args := []interface{}{at.UTC()}
	clause, args := kindsClause(kinds, args)
	query := `
		SELECT source, target, kind, NULL, NULL FROM (
			SELECT source, target, kind, event,
			       ROW_NUMBER() OVER (
			           PARTITION BY source, target, kind
			           ORDER BY occurred_at DESC, id DESC
			       ) AS rn
			FROM edge_history
			WHERE occurred_at <= ?` + clause + `
		)
		WHERE rn = 1 AND event = 'created'
		ORDER BY source, target, kind
	`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fold edge history: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEdges(rows)
}

func (s *SQLiteStorage) EdgesAtTime(ctx context.Context, at time.Time, kinds []types.EdgeKind) ([]types.Edge, error) {
	return s.edgesAtTimeWithQuerier(ctx, s.querier(), at, kinds)
}

// edgesAtCommitWithQuerier resolves a commit to its recorded history
// time, then folds at that bound. The newest row is selected with ORDER
// BY rather than MAX(): aggregates lose column affinity, so drivers
// would hand the timestamp back as a bare string.
func (s *SQLiteStorage) edgesAtCommitWithQuerier(ctx context.Context, q querier, commitHash string, kinds []types.EdgeKind) ([]types.Edge, error) {
	var at time.Time
	err := q.QueryRowContext(ctx, `
		SELECT occurred_at FROM edge_history
		WHERE commit_hash = ?
		ORDER BY occurred_at DESC, id DESC
		LIMIT 1`, commitHash).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: commit %s has no recorded history", ErrNotFound, commitHash)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve commit time: %w", err)
	}
	return s.edgesAtTimeWithQuerier(ctx, q, at, kinds)
}

func (s *SQLiteStorage) EdgesAtCommit(ctx context.Context, commitHash string, kinds []types.EdgeKind) ([]types.Edge, error) {
	return s.edgesAtCommitWithQuerier(ctx, s.querier(), commitHash, kinds)
}

// External symbols

func (s *SQLiteStorage) upsertExternalSymbolWithQuerier(ctx context.Context, q querier, name, firstSeenCommit string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO external_symbols (name, first_seen_commit, ref_count)
		VALUES (?, ?, 1)
		ON CONFLICT(name) DO UPDATE SET ref_count = ref_count + 1`,
		name, nullString(firstSeenCommit))
	if err != nil {
		return fmt.Errorf("failed to upsert external symbol: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertExternalSymbol(ctx context.Context, name, firstSeenCommit string) error {
	return s.upsertExternalSymbolWithQuerier(ctx, s.querier(), name, firstSeenCommit)
}

func (s *SQLiteStorage) listExternalSymbolsWithQuerier(ctx context.Context, q querier) ([]ExternalSymbol, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT name, first_seen_commit, ref_count FROM external_symbols ORDER BY ref_count DESC, name")
	if err != nil {
		return nil, fmt.Errorf("failed to list external symbols: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var symbols []ExternalSymbol
	for rows.Next() {
		var sym ExternalSymbol
		var commit sql.NullString
		if err := rows.Scan(&sym.Name, &commit, &sym.RefCount); err != nil {
			return nil, err
		}
		sym.FirstSeenCommit = commit.String
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func (s *SQLiteStorage) ListExternalSymbols(ctx context.Context) ([]ExternalSymbol, error) {
	return s.listExternalSymbolsWithQuerier(ctx, s.querier())
}

// Module roll-up

func (s *SQLiteStorage) moduleEdgesWithQuerier(ctx context.Context, q querier) ([]ModuleEdge, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT source_module, target_module, kind, language, weight FROM module_edges ORDER BY weight DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query module edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var edges []ModuleEdge
	for rows.Next() {
		var edge ModuleEdge
		if err := rows.Scan(&edge.SourceModule, &edge.TargetModule, &edge.Kind, &edge.Language, &edge.Weight); err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

func (s *SQLiteStorage) ModuleEdges(ctx context.Context) ([]ModuleEdge, error) {
	return s.moduleEdgesWithQuerier(ctx, s.querier())
}

// callTargetNodesWithQuerier returns the set of nodes that appear as a
// CALLS target. Chunks absent from this set are call-tree roots.
func (s *SQLiteStorage) callTargetNodesWithQuerier(ctx context.Context, q querier) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT DISTINCT target FROM graph_edges WHERE kind = ?", string(types.EdgeCalls))
	if err != nil {
		return nil, fmt.Errorf("failed to query call targets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	targets := make(map[string]bool)
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, err
		}
		targets[target] = true
	}
	return targets, rows.Err()
}

func (s *SQLiteStorage) CallTargetNodes(ctx context.Context) (map[string]bool, error) {
	return s.callTargetNodesWithQuerier(ctx, s.querier())
}

// callSourceNodesWithQuerier returns the set of nodes with an outgoing
// CALLS edge. Sources that are not also targets are call-tree roots.
func (s *SQLiteStorage) callSourceNodesWithQuerier(ctx context.Context, q querier) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT DISTINCT source FROM graph_edges WHERE kind = ?", string(types.EdgeCalls))
	if err != nil {
		return nil, fmt.Errorf("failed to query call sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sources := make(map[string]bool)
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return nil, err
		}
		sources[source] = true
	}
	return sources, rows.Err()
}

func (s *SQLiteStorage) CallSourceNodes(ctx context.Context) (map[string]bool, error) {
	return s.callSourceNodesWithQuerier(ctx, s.querier())
}

// unresolvedCallEdgesWithQuerier lists CALLS edges whose target is
// still a bare symbol: node, pending resolution to a chunk.
func (s *SQLiteStorage) unresolvedCallEdgesWithQuerier(ctx context.Context, q querier) ([]types.Edge, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT source, target, kind, line, properties
		FROM graph_edges
		WHERE kind = ? AND target LIKE 'symbol:%'
		ORDER BY id`, string(types.EdgeCalls))
	if err != nil {
		return nil, fmt.Errorf("failed to query unresolved edges: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEdges(rows)
}

func (s *SQLiteStorage) UnresolvedCallEdges(ctx context.Context) ([]types.Edge, error) {
	return s.unresolvedCallEdgesWithQuerier(ctx, s.querier())
}

// edgeCreatedAtWithQuerier returns the earliest 'created' event for an
// edge triple. Ordered selection instead of MIN() keeps the timestamp's
// column affinity intact across drivers.
func (s *SQLiteStorage) edgeCreatedAtWithQuerier(ctx context.Context, q querier, source, target string, kind types.EdgeKind) (time.Time, error) {
	var at time.Time
	err := q.QueryRowContext(ctx, `
		SELECT occurred_at FROM edge_history
		WHERE source = ? AND target = ? AND kind = ? AND event = 'created'
		ORDER BY occurred_at ASC, id ASC
		LIMIT 1`,
		source, target, string(kind)).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query edge creation: %w", err)
	}
	return at, nil
}

func (s *SQLiteStorage) EdgeCreatedAt(ctx context.Context, source, target string, kind types.EdgeKind) (time.Time, error) {
	return s.edgeCreatedAtWithQuerier(ctx, s.querier(), source, target, kind)
}

// chunksBySymbolWithQuerier finds chunks by symbol name together with
// every file they appear in.
func (s *SQLiteStorage) chunksBySymbolWithQuerier(ctx context.Context, q querier, symbolName string) ([]SymbolOccurrence, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT c.content_hash, c.language, c.module_id, l.file_path
		FROM chunks c
		LEFT JOIN locations l ON c.content_hash = l.content_hash
		WHERE c.symbol_name = ?
		ORDER BY c.content_hash, l.file_path`, symbolName)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks by symbol: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var occurrences []SymbolOccurrence
	for rows.Next() {
		var hex string
		var lang string
		var moduleID, filePath sql.NullString
		if err := rows.Scan(&hex, &lang, &moduleID, &filePath); err != nil {
			return nil, err
		}
		hash, err := types.ParseContentHash(hex)
		if err != nil {
			return nil, err
		}
		if n := len(occurrences); n > 0 && occurrences[n-1].Hash == hash {
			if filePath.Valid {
				occurrences[n-1].Files = append(occurrences[n-1].Files, filePath.String)
			}
			continue
		}
		occ := SymbolOccurrence{Hash: hash, Language: types.Language(lang), ModuleID: moduleID.String}
		if filePath.Valid {
			occ.Files = append(occ.Files, filePath.String)
		}
		occurrences = append(occurrences, occ)
	}
	return occurrences, rows.Err()
}

func (s *SQLiteStorage) ChunksBySymbol(ctx context.Context, symbolName string) ([]SymbolOccurrence, error) {
	return s.chunksBySymbolWithQuerier(ctx, s.querier(), symbolName)
}

func marshalProperties(props map[string]string) (interface{}, error) {
	if len(props) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal edge properties: %w", err)
	}
	return string(raw), nil
}
