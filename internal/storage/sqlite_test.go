package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codemate/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testChunk(t *testing.T, content string) types.Chunk {
	t.Helper()
	chunk := types.NewChunk(content, types.LanguageGo, types.KindFunction, "testFn")
	chunk.StartLine = 1
	chunk.EndLine = chunk.LineCount()
	chunk.ModuleID = types.RootModuleID
	return chunk
}

func TestStoreChunkDeduplicates(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	chunk := testChunk(t, "func testFn() {\n\treturn\n}\n")

	created, err := store.StoreChunk(ctx, &chunk)
	require.NoError(t, err)
	assert.True(t, created)

	// Same content stored again is a no-op, not an error.
	created, err = store.StoreChunk(ctx, &chunk)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := store.GetChunk(ctx, chunk.Hash)
	require.NoError(t, err)
	assert.Equal(t, chunk.Content, got.Content)
	assert.Equal(t, chunk.SymbolName, got.SymbolName)
	assert.Equal(t, chunk.Hash, got.Hash)

	has, err := store.HasChunk(ctx, chunk.Hash)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestGetChunkNotFound(t *testing.T) {
	store := setupTestDB(t)

	missing := types.HashContent([]byte("never stored"))
	_, err := store.GetChunk(context.Background(), missing)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreChunkRejectsInvalid(t *testing.T) {
	store := setupTestDB(t)

	bad := types.Chunk{Content: "x"} // hash not computed
	_, err := store.StoreChunk(context.Background(), &bad)
	assert.ErrorIs(t, err, types.ErrHashMismatch)
}

func TestLocationFanOut(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	chunk := testChunk(t, "func shared() {}\n")
	_, err := store.StoreChunk(ctx, &chunk)
	require.NoError(t, err)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	locA := types.ChunkLocation{
		Hash:       chunk.Hash,
		FilePath:   "src/a.go",
		CommitHash: "commit-1",
		Branch:     "main",
		BlobHash:   "blob-a",
		StartLine:  1,
		EndLine:    1,
		Author:     "Alice <alice@example.com>",
		AuthoredAt: base,
	}
	locB := locA
	locB.FilePath = "src/b.go"
	locB.BlobHash = "blob-b"
	locB.AuthoredAt = base.Add(time.Hour)

	require.NoError(t, store.AddLocation(ctx, &locA))
	require.NoError(t, store.AddLocation(ctx, &locB))

	// Re-adding the same triple must not create a second row.
	require.NoError(t, store.AddLocation(ctx, &locA))

	locs, err := store.GetLocations(ctx, chunk.Hash)
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, "src/b.go", locs[0].FilePath) // newest first

	byFile, err := store.LocationsForFile(ctx, "src/a.go")
	require.NoError(t, err)
	require.Len(t, byFile, 1)
	assert.Equal(t, chunk.Hash, byFile[0].Hash)

	byBlob, err := store.LocationsForBlob(ctx, "blob-b")
	require.NoError(t, err)
	require.Len(t, byBlob, 1)

	indexed, err := store.BlobIndexed(ctx, "blob-a")
	require.NoError(t, err)
	assert.True(t, indexed)

	indexed, err = store.BlobIndexed(ctx, "blob-missing")
	require.NoError(t, err)
	assert.False(t, indexed)
}

func TestBestLocationBranchPreference(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	chunk := testChunk(t, "func pick() {}\n")
	_, err := store.StoreChunk(ctx, &chunk)
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	add := func(file, commit, branch string, at time.Time) {
		loc := types.ChunkLocation{
			Hash: chunk.Hash, FilePath: file, CommitHash: commit,
			Branch: branch, StartLine: 1, EndLine: 1, AuthoredAt: at,
		}
		require.NoError(t, store.AddLocation(ctx, &loc))
	}
	add("feature.go", "c1", "feature/x", base.Add(2*time.Hour))
	add("main.go", "c2", "main", base.Add(time.Hour))
	add("old.go", "c3", "develop", base)

	// Preferred branch wins even when another location is newer.
	best, err := store.BestLocation(ctx, chunk.Hash, "develop")
	require.NoError(t, err)
	assert.Equal(t, "old.go", best.FilePath)

	// Without a preferred match, main/master beats other branches.
	best, err = store.BestLocation(ctx, chunk.Hash, "release/1.0")
	require.NoError(t, err)
	assert.Equal(t, "main.go", best.FilePath)

	_, err = store.BestLocation(ctx, types.HashContent([]byte("gone")), "main")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteBranchLocations(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	chunk := testChunk(t, "func cascade() {}\n")
	_, err := store.StoreChunk(ctx, &chunk)
	require.NoError(t, err)

	loc := types.ChunkLocation{
		Hash: chunk.Hash, Repo: "/repo", FilePath: "f.go", CommitHash: "c1",
		Branch: "feature/gone", StartLine: 1, EndLine: 1,
	}
	require.NoError(t, store.AddLocation(ctx, &loc))

	// The same branch name in another repository must survive.
	other := loc
	other.Repo = "/other"
	require.NoError(t, store.AddLocation(ctx, &other))

	require.NoError(t, store.SetIndexState(ctx, &types.IndexState{
		RepoPath: "/repo", Branch: "feature/gone",
		LastCommitHash: "c1", IndexedAt: time.Now().UTC(),
	}))

	require.NoError(t, store.DeleteBranchLocations(ctx, "/repo", "feature/gone"))

	locs, err := store.GetLocations(ctx, chunk.Hash)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "/other", locs[0].Repo)

	_, err = store.GetIndexState(ctx, "/repo", "feature/gone")
	assert.ErrorIs(t, err, ErrNotFound)

	// The chunk itself survives branch deletion.
	has, err := store.HasChunk(ctx, chunk.Hash)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestRepeatedDefinitionKeepsDistinctLocations(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	chunk := testChunk(t, "func twice() {}\n")
	_, err := store.StoreChunk(ctx, &chunk)
	require.NoError(t, err)

	first := types.ChunkLocation{
		Hash: chunk.Hash, Repo: "/repo", FilePath: "dup.go", CommitHash: "c1",
		Branch: "main", StartLine: 3, EndLine: 3, StartByte: 40, EndByte: 56,
	}
	second := first
	second.StartLine, second.EndLine = 9, 9
	second.StartByte, second.EndByte = 120, 136

	require.NoError(t, store.AddLocation(ctx, &first))
	require.NoError(t, store.AddLocation(ctx, &second))
	// Re-adding an occurrence is still a no-op.
	require.NoError(t, store.AddLocation(ctx, &second))

	locs, err := store.GetLocations(ctx, chunk.Hash)
	require.NoError(t, err)
	assert.Len(t, locs, 2)
}

func TestChunkHashesForFileAndElsewhere(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	a := testChunk(t, "func keep() {}\n")
	b := testChunk(t, "func gone() {}\n")
	for _, c := range []*types.Chunk{&a, &b} {
		_, err := store.StoreChunk(ctx, c)
		require.NoError(t, err)
	}
	add := func(hash types.ContentHash, repo, file string) {
		loc := types.ChunkLocation{Hash: hash, Repo: repo, FilePath: file, CommitHash: "c1", StartLine: 1, EndLine: 1}
		require.NoError(t, store.AddLocation(ctx, &loc))
	}
	add(a.Hash, "/repo", "x.go")
	add(b.Hash, "/repo", "x.go")
	add(a.Hash, "/repo", "y.go")

	hashes, err := store.ChunkHashesForFile(ctx, "/repo", "x.go")
	require.NoError(t, err)
	assert.Len(t, hashes, 2)

	elsewhere, err := store.ChunkLocatedElsewhere(ctx, a.Hash, "/repo", "x.go")
	require.NoError(t, err)
	assert.True(t, elsewhere)

	elsewhere, err = store.ChunkLocatedElsewhere(ctx, b.Hash, "/repo", "x.go")
	require.NoError(t, err)
	assert.False(t, elsewhere)
}

func TestModuleUpsert(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	root := types.Module{ID: types.RootModuleID, Name: "root", Path: ".", Type: types.ProjectWorkspace}
	child := types.Module{ID: "root::core", Name: "core", Path: "core", Type: types.ProjectCrate, ParentID: types.RootModuleID}

	require.NoError(t, store.UpsertModule(ctx, &root))
	require.NoError(t, store.UpsertModule(ctx, &child))

	// Upsert updates in place.
	child.Name = "core-lib"
	require.NoError(t, store.UpsertModule(ctx, &child))

	got, err := store.GetModule(ctx, "root::core")
	require.NoError(t, err)
	assert.Equal(t, "core-lib", got.Name)
	assert.Equal(t, types.RootModuleID, got.ParentID)

	all, err := store.ListModules(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = store.GetModule(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEmbeddingLifecycle(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	a := testChunk(t, "func a() {}\n")
	b := testChunk(t, "func b() {}\n")
	for _, c := range []*types.Chunk{&a, &b} {
		_, err := store.StoreChunk(ctx, c)
		require.NoError(t, err)
	}

	missing, err := store.ChunksMissingEmbedding(ctx, "mock-v1", 10)
	require.NoError(t, err)
	assert.Len(t, missing, 2)

	vec := []float32{0.1, 0.2, 0.3}
	require.NoError(t, store.StoreEmbedding(ctx, a.Hash, vec, "mock-v1"))

	emb, err := store.GetEmbedding(ctx, a.Hash)
	require.NoError(t, err)
	assert.Equal(t, vec, emb.Vector)
	assert.Equal(t, 3, emb.Dimension)
	assert.Equal(t, "mock-v1", emb.Model)

	missing, err = store.ChunksMissingEmbedding(ctx, "mock-v1", 10)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, b.Hash, missing[0])

	// A different model sees every chunk as missing.
	missing, err = store.ChunksMissingEmbedding(ctx, "other-model", 10)
	require.NoError(t, err)
	assert.Len(t, missing, 2)

	_, err = store.GetEmbedding(ctx, b.Hash)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEdgeUpsertAndHistory(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	edge := types.Edge{
		Source: "symbol:caller",
		Target: "symbol:callee",
		Kind:   types.EdgeCalls,
		Line:   42,
	}

	created, err := store.UpsertEdge(ctx, &edge, "commit-1", t0)
	require.NoError(t, err)
	assert.True(t, created)

	// Re-storing the same triple updates silently, no new history event.
	edge.Line = 50
	created, err = store.UpsertEdge(ctx, &edge, "commit-2", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, created)

	out, err := store.OutgoingEdges(ctx, "symbol:caller", nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 50, out[0].Line)

	in, err := store.IncomingEdges(ctx, "symbol:callee", []types.EdgeKind{types.EdgeCalls})
	require.NoError(t, err)
	assert.Len(t, in, 1)

	history, err := store.EdgeHistory(ctx, "symbol:caller")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, types.EdgeCreated, history[0].Event)
	assert.Equal(t, "commit-1", history[0].CommitHash)

	// Removal appends a deleted event; removing again is a no-op.
	require.NoError(t, store.RemoveEdge(ctx, edge.Source, edge.Target, edge.Kind, "commit-3", t0.Add(2*time.Hour)))
	require.NoError(t, store.RemoveEdge(ctx, edge.Source, edge.Target, edge.Kind, "commit-3", t0.Add(3*time.Hour)))

	history, err = store.EdgeHistory(ctx, "symbol:caller")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, types.EdgeDeleted, history[1].Event)

	out, err = store.OutgoingEdges(ctx, "symbol:caller", nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRemoveEdgesFrom(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, target := range []string{"symbol:x", "symbol:y"} {
		edge := types.Edge{Source: "chunk:stale", Target: target, Kind: types.EdgeCalls}
		_, err := store.UpsertEdge(ctx, &edge, "c1", t0)
		require.NoError(t, err)
	}

	removed, err := store.RemoveEdgesFrom(ctx, "chunk:stale", "c2", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	out, err := store.OutgoingEdges(ctx, "chunk:stale", nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	history, err := store.EdgeHistory(ctx, "chunk:stale")
	require.NoError(t, err)
	var deleted int
	for _, h := range history {
		if h.Event == types.EdgeDeleted {
			deleted++
			assert.Equal(t, "c2", h.CommitHash)
		}
	}
	assert.Equal(t, 2, deleted)

	// A source with no edges removes nothing.
	removed, err = store.RemoveEdgesFrom(ctx, "chunk:stale", "c3", t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestEdgeProperties(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	edge := types.Edge{
		Source:     "file:src/main.rs",
		Target:     "external:serde",
		Kind:       types.EdgeImports,
		Properties: map[string]string{"alias": "sd"},
	}
	_, err := store.UpsertEdge(ctx, &edge, "c1", time.Now())
	require.NoError(t, err)

	out, err := store.OutgoingEdges(ctx, "file:src/main.rs", nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "sd", out[0].Properties["alias"])
}

func TestEdgesAtTimeFold(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ab := types.Edge{Source: "symbol:a", Target: "symbol:b", Kind: types.EdgeCalls}
	ac := types.Edge{Source: "symbol:a", Target: "symbol:c", Kind: types.EdgeCalls}

	_, err := store.UpsertEdge(ctx, &ab, "c1", t0)
	require.NoError(t, err)
	_, err = store.UpsertEdge(ctx, &ac, "c2", t0.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, store.RemoveEdge(ctx, ab.Source, ab.Target, ab.Kind, "c3", t0.Add(2*time.Hour)))

	// Before anything existed.
	edges, err := store.EdgesAtTime(ctx, t0.Add(-time.Minute), nil)
	require.NoError(t, err)
	assert.Empty(t, edges)

	// After c1: only a->b.
	edges, err = store.EdgesAtTime(ctx, t0.Add(time.Minute), nil)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "symbol:b", edges[0].Target)

	// After c2: both edges.
	edges, err = store.EdgesAtTime(ctx, t0.Add(90*time.Minute), nil)
	require.NoError(t, err)
	assert.Len(t, edges, 2)

	// After c3: the deletion folds a->b out.
	edges, err = store.EdgesAtTime(ctx, t0.Add(3*time.Hour), nil)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "symbol:c", edges[0].Target)

	// Commit-addressed queries resolve through recorded history.
	edges, err = store.EdgesAtCommit(ctx, "c2", nil)
	require.NoError(t, err)
	assert.Len(t, edges, 2)

	_, err = store.EdgesAtCommit(ctx, "unknown-commit", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExternalSymbolRefCount(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertExternalSymbol(ctx, "println", "c1"))
	require.NoError(t, store.UpsertExternalSymbol(ctx, "println", "c2"))
	require.NoError(t, store.UpsertExternalSymbol(ctx, "format", "c1"))

	symbols, err := store.ListExternalSymbols(ctx)
	require.NoError(t, err)
	require.Len(t, symbols, 2)
	assert.Equal(t, "println", symbols[0].Name)
	assert.Equal(t, 2, symbols[0].RefCount)
	assert.Equal(t, "c1", symbols[0].FirstSeenCommit)
}

func TestModuleEdgesRollUp(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	a := testChunk(t, "func fromCore() {}\n")
	a.ModuleID = "root::core"
	b := testChunk(t, "func fromAPI() {}\n")
	b.ModuleID = "root::api"
	for _, c := range []*types.Chunk{&a, &b} {
		_, err := store.StoreChunk(ctx, c)
		require.NoError(t, err)
	}

	edge := types.Edge{
		Source: types.ChunkNodeID(a.Hash),
		Target: types.ChunkNodeID(b.Hash),
		Kind:   types.EdgeCalls,
	}
	_, err := store.UpsertEdge(ctx, &edge, "c1", time.Now())
	require.NoError(t, err)

	rolled, err := store.ModuleEdges(ctx)
	require.NoError(t, err)
	require.Len(t, rolled, 1)
	assert.Equal(t, "root::core", rolled[0].SourceModule)
	assert.Equal(t, "root::api", rolled[0].TargetModule)
	assert.Equal(t, 1, rolled[0].Weight)
}

func TestCallTargetNodes(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	edge := types.Edge{Source: "symbol:root", Target: "symbol:leaf", Kind: types.EdgeCalls}
	_, err := store.UpsertEdge(ctx, &edge, "c1", time.Now())
	require.NoError(t, err)

	targets, err := store.CallTargetNodes(ctx)
	require.NoError(t, err)
	assert.True(t, targets["symbol:leaf"])
	assert.False(t, targets["symbol:root"])
}

func TestMetaRoundTrip(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	_, err := store.GetMeta(ctx, MetaEmbeddingModel)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SetMeta(ctx, MetaEmbeddingModel, "mock-v1"))
	require.NoError(t, store.SetMeta(ctx, MetaEmbeddingModel, "mock-v2"))

	value, err := store.GetMeta(ctx, MetaEmbeddingModel)
	require.NoError(t, err)
	assert.Equal(t, "mock-v2", value)
}

func TestIndexStateRoundTrip(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	state := types.IndexState{
		RepoPath:       "/repo",
		Branch:         "main",
		LastCommitHash: "abc123",
		IndexedAt:      time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SetIndexState(ctx, &state))

	state.LastCommitHash = "def456"
	require.NoError(t, store.SetIndexState(ctx, &state))

	got, err := store.GetIndexState(ctx, "/repo", "main")
	require.NoError(t, err)
	assert.Equal(t, "def456", got.LastCommitHash)

	_, err = store.GetIndexState(ctx, "/repo", "other")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetStats(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	chunk := testChunk(t, "func counted() {}\n")
	_, err := store.StoreChunk(ctx, &chunk)
	require.NoError(t, err)

	loc := types.ChunkLocation{Hash: chunk.Hash, FilePath: "f.go", CommitHash: "c1", StartLine: 1, EndLine: 1}
	require.NoError(t, store.AddLocation(ctx, &loc))

	edge := types.Edge{Source: "symbol:a", Target: "symbol:b", Kind: types.EdgeCalls}
	_, err = store.UpsertEdge(ctx, &edge, "c1", time.Now())
	require.NoError(t, err)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Chunks)
	assert.Equal(t, 1, stats.Locations)
	assert.Equal(t, 1, stats.Edges)
	assert.Equal(t, 1, stats.HistoryEvents)
	assert.Positive(t, stats.DatabaseBytes)
}

func TestTransactionCommitAndRollback(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	committed := testChunk(t, "func committed() {}\n")
	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.StoreChunk(ctx, &committed)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	has, err := store.HasChunk(ctx, committed.Hash)
	require.NoError(t, err)
	assert.True(t, has)

	rolled := testChunk(t, "func rolledBack() {}\n")
	tx, err = store.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.StoreChunk(ctx, &rolled)
	require.NoError(t, err)

	edge := types.Edge{Source: "symbol:x", Target: "symbol:y", Kind: types.EdgeCalls}
	_, err = tx.UpsertEdge(ctx, &edge, "c1", time.Now())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	has, err = store.HasChunk(ctx, rolled.Hash)
	require.NoError(t, err)
	assert.False(t, has)

	// The rollback covers the history event too.
	history, err := store.EdgeHistory(ctx, "symbol:x")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSchemaVersionRecorded(t *testing.T) {
	store := setupTestDB(t)

	var version string
	err := store.db.QueryRow("SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}
