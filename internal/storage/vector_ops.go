package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dshills/codemate/pkg/types"
)

// hashSet restricts a search to a pre-resolved set of chunk hashes.
// A nil set means unrestricted; an empty non-nil set matches nothing.
type hashSet map[string]bool

// resolveFilterSet evaluates Filters to the set of matching chunk
// hashes. SQL handles exact-match fields; glob fields are evaluated in
// Go with doublestar, which supports ** unlike SQLite's GLOB.
func (s *SQLiteStorage) resolveFilterSet(ctx context.Context, q querier, filters *Filters) (hashSet, error) {
	if filters.Empty() {
		return nil, nil
	}

	query := `
		SELECT DISTINCT c.content_hash, l.file_path
		FROM chunks c
		LEFT JOIN locations l ON c.content_hash = l.content_hash
		WHERE 1=1
	`
	var args []interface{}

	addIn := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = "?"
			args = append(args, v)
		}
		query += " AND " + column + " IN (" + strings.Join(placeholders, ",") + ")"
	}

	addIn("c.language", filters.Languages)
	addIn("c.kind", filters.Kinds)
	addIn("c.module_id", filters.Modules)

	// Authors match by substring: locations store "Name <email>", and
	// queries usually carry just the name or the address.
	if len(filters.Authors) > 0 {
		preds := make([]string, len(filters.Authors))
		for i, author := range filters.Authors {
			preds[i] = "l.author LIKE '%' || ? || '%'"
			args = append(args, author)
		}
		query += " AND (" + strings.Join(preds, " OR ") + ")"
	}

	if filters.Branch != "" {
		query += " AND l.branch = ?"
		args = append(args, filters.Branch)
	}
	if filters.After != nil {
		query += " AND l.authored_at >= ?"
		args = append(args, filters.After.UTC())
	}
	if filters.Before != nil {
		query += " AND l.authored_at <= ?"
		args = append(args, filters.Before.UTC())
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve filters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	set := make(hashSet)
	for rows.Next() {
		var hash string
		var filePath sql.NullString
		if err := rows.Scan(&hash, &filePath); err != nil {
			return nil, err
		}
		if !matchGlobs(filters, filePath.String) {
			continue
		}
		set[hash] = true
	}
	return set, rows.Err()
}

// matchGlobs applies file and path glob filters to one location path.
// Globs within a field are a union.
func matchGlobs(filters *Filters, filePath string) bool {
	if len(filters.FileGlobs) == 0 && len(filters.PathGlobs) == 0 {
		return true
	}
	if filePath == "" {
		return false
	}
	if len(filters.FileGlobs) > 0 && !anyGlobMatch(filters.FileGlobs, filePath) {
		return false
	}
	if len(filters.PathGlobs) > 0 {
		dir := filePath
		if idx := strings.LastIndex(filePath, "/"); idx >= 0 {
			dir = filePath[:idx]
		}
		if !anyGlobMatch(filters.PathGlobs, dir) && !anyGlobMatch(filters.PathGlobs, filePath) {
			return false
		}
	}
	return true
}

func anyGlobMatch(globs []string, path string) bool {
	for _, g := range globs {
		if ok, err := doublestar.Match(g, path); err == nil && ok {
			return true
		}
		// A bare name also matches as a suffix segment, so file:main.rs
		// works without writing **/main.rs.
		if !strings.ContainsAny(g, "/*?[{") && strings.HasSuffix(path, "/"+g) {
			return true
		}
		if g == path {
			return true
		}
	}
	return false
}

// searchVector performs vector similarity search using cosine similarity
func (s *SQLiteStorage) searchVectorWithQuerier(ctx context.Context, q querier, vector []float32, model string, limit int, filters *Filters) ([]VectorResult, error) {
	set, err := s.resolveFilterSet(ctx, q, filters)
	if err != nil {
		return nil, err
	}
	if set != nil && len(set) == 0 {
		return []VectorResult{}, nil
	}

	// Use optimized SQL-based search when sqlite-vec is available
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, q, vector, model, limit, set)
	}
	// Fall back to Go-based computation for purego builds
	return searchVectorFallback(ctx, q, vector, model, limit, set)
}

func (s *SQLiteStorage) SearchVector(ctx context.Context, vector []float32, model string, limit int, filters *Filters) ([]VectorResult, error) {
	return s.searchVectorWithQuerier(ctx, s.querier(), vector, model, limit, filters)
}

// searchVectorOptimized uses the sqlite-vec extension so distance is
// computed at the database layer.
func searchVectorOptimized(ctx context.Context, q querier, vector []float32, model string, limit int, set hashSet) ([]VectorResult, error) {
	if limit <= 0 {
		return []VectorResult{}, nil
	}
	blob := serializeVector(vector)

	// vec_distance_cosine returns distance (lower is better); convert
	// to similarity for the caller.
	query := `
		SELECT content_hash, 1.0 - vec_distance_cosine(vector, ?) AS similarity
		FROM embeddings
		WHERE model = ? AND dimension = ?
		ORDER BY similarity DESC
	`
	rows, err := q.QueryContext(ctx, query, blob, model, len(vector))
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0, limit)
	for rows.Next() {
		var hex string
		var similarity float64
		if err := rows.Scan(&hex, &similarity); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if set != nil && !set[hex] {
			continue
		}
		hash, err := types.ParseContentHash(hex)
		if err != nil {
			return nil, err
		}
		results = append(results, VectorResult{Hash: hash, SimilarityScore: similarity})
		if len(results) == limit {
			break
		}
	}
	return results, rows.Err()
}

// searchVectorFallback scans candidate embeddings and computes cosine
// similarity in Go. Used when sqlite-vec is not available (purego
// builds). Vectors from a different model or dimension are skipped.
func searchVectorFallback(ctx context.Context, q querier, vector []float32, model string, limit int, set hashSet) ([]VectorResult, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT content_hash, vector FROM embeddings WHERE model = ? AND dimension = ?",
		model, len(vector))
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []candidate
	for rows.Next() {
		var hex string
		var blob []byte
		if err := rows.Scan(&hex, &blob); err != nil {
			return nil, err
		}
		if set != nil && !set[hex] {
			continue
		}
		stored := deserializeVector(blob)
		if len(stored) != len(vector) {
			continue // Dimension mismatch, skip
		}
		candidates = append(candidates, candidate{hash: hex, score: cosineSimilarity(vector, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortCandidates(candidates)
	return buildVectorResults(candidates, limit)
}

// searchText performs BM25 full-text search using FTS5
func (s *SQLiteStorage) searchTextWithQuerier(ctx context.Context, q querier, query string, limit int, filters *Filters) ([]TextResult, error) {
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, fmt.Errorf("empty search query")
	}

	set, err := s.resolveFilterSet(ctx, q, filters)
	if err != nil {
		return nil, err
	}
	if set != nil && len(set) == 0 {
		return []TextResult{}, nil
	}

	sqlQuery := `
		SELECT content_hash, bm25(chunks_fts) AS score
		FROM chunks_fts
		WHERE chunks_fts MATCH ?
		ORDER BY score
	`
	rows, err := q.QueryContext(ctx, sqlQuery, sanitized)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]TextResult, 0, limit)
	for rows.Next() {
		var hex string
		var score float64
		if err := rows.Scan(&hex, &score); err != nil {
			return nil, err
		}
		if set != nil && !set[hex] {
			continue
		}
		hash, err := types.ParseContentHash(hex)
		if err != nil {
			return nil, err
		}
		// Convert BM25 score (negative, lower is better) to a positive
		// normalized score.
		normalized := 1.0 / (1.0 + math.Abs(score)/50.0)
		results = append(results, TextResult{Hash: hash, BM25Score: normalized})
		if limit > 0 && len(results) == limit {
			break
		}
	}
	return results, rows.Err()
}

func (s *SQLiteStorage) SearchText(ctx context.Context, query string, limit int, filters *Filters) ([]TextResult, error) {
	return s.searchTextWithQuerier(ctx, s.querier(), query, limit, filters)
}

// Helper functions

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// candidate represents a chunk with its similarity score
type candidate struct {
	hash  string
	score float64
}

// sortCandidates orders by score descending, then hash ascending so
// equal scores are deterministic.
func sortCandidates(candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].hash < candidates[j].hash
	})
}

// buildVectorResults creates VectorResult slice from sorted candidates
func buildVectorResults(candidates []candidate, limit int) ([]VectorResult, error) {
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}
	results := make([]VectorResult, 0, limit)
	for _, c := range candidates[:limit] {
		hash, err := types.ParseContentHash(c.hash)
		if err != nil {
			return nil, err
		}
		results = append(results, VectorResult{Hash: hash, SimilarityScore: c.score})
	}
	return results, nil
}

// FTS5 operator pattern for escaping Boolean operators
var ftsOperatorPattern = regexp.MustCompile(`\b(AND|OR|NOT|NEAR)\b`)

// sanitizeFTSQuery sanitizes a search query for FTS5 to prevent
// injection through query syntax. Each term is double-quoted and
// Boolean operators lose their meaning.
func sanitizeFTSQuery(query string) string {
	query = ftsOperatorPattern.ReplaceAllStringFunc(query, strings.ToLower)
	fields := strings.FieldsFunc(query, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '"', '(', ')', '*', ':', '^':
			return true
		}
		return false
	})
	if len(fields) == 0 {
		return ""
	}
	for i, f := range fields {
		fields[i] = `"` + f + `"`
	}
	return strings.Join(fields, " ")
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
