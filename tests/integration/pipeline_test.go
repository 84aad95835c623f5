//go:build integration

// Package integration exercises the full pipeline end to end: index a
// fixture tree, then search it, walk its call graph, and read chunk
// history through the same storage the CLI uses.
package integration

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codemate/internal/embedder"
	"github.com/dshills/codemate/internal/graph"
	"github.com/dshills/codemate/internal/indexer"
	"github.com/dshills/codemate/internal/query"
	"github.com/dshills/codemate/internal/searcher"
	"github.com/dshills/codemate/internal/storage"
	"github.com/dshills/codemate/pkg/types"
)

func fixturesDir(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(thisFile), "..", "testdata", "fixtures")
}

// indexFixtures builds a fresh index over the fixture tree.
func indexFixtures(t *testing.T) (*storage.SQLiteStorage, *indexer.Stats) {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, err := embedder.NewMockProvider(nil)
	require.NoError(t, err)

	stats, err := indexer.New(store, emb).Index(ctx, fixturesDir(t), nil)
	require.NoError(t, err)
	return store, stats
}

func TestPipelineIndexesAllLanguages(t *testing.T) {
	store, stats := indexFixtures(t)
	ctx := context.Background()

	assert.Equal(t, 3, stats.FilesIndexed)
	assert.Positive(t, stats.ChunksStored)
	assert.Equal(t, stats.ChunksStored, stats.Embedded)

	dbStats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.ChunksStored, dbStats.Chunks)
	assert.Positive(t, dbStats.Edges)
}

func TestPipelineHybridSearchWithDSL(t *testing.T) {
	store, _ := indexFixtures(t)
	ctx := context.Background()

	emb, err := embedder.NewMockProvider(nil)
	require.NoError(t, err)
	s := searcher.New(store, emb)

	parsed, err := query.Parse("AuthenticateUser token lang:go")
	require.NoError(t, err)
	require.False(t, parsed.MatchesNone)

	resp, err := s.Search(ctx, searcher.Request{
		Query:   parsed.Text,
		Filters: &parsed.Filters,
		Limit:   parsed.Limit,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	top := resp.Results[0]
	require.NotNil(t, top.Chunk)
	assert.Equal(t, types.LanguageGo, top.Chunk.Language)
	assert.Contains(t, top.Chunk.Content, "AuthenticateUser")
	require.NotNil(t, top.Location)
	assert.Equal(t, "auth.go", top.Location.FilePath)

	// The language filter must exclude the python and rust fixtures.
	for _, r := range resp.Results {
		if r.Chunk != nil {
			assert.Equal(t, types.LanguageGo, r.Chunk.Language)
		}
	}
}

func TestPipelineCallGraph(t *testing.T) {
	store, stats := indexFixtures(t)
	ctx := context.Background()

	// AuthenticateUser calls validateToken and lookupAccount; both are
	// defined in the same file, so resolution links them.
	assert.Positive(t, stats.SymbolsLinked)

	e := graph.New(store)
	nodes, err := e.Callees(ctx, "AuthenticateUser", 3)
	require.NoError(t, err)
	require.NotEmpty(t, nodes)

	var children []string
	for _, child := range nodes[0].Children {
		children = append(children, child.Label)
	}
	assert.True(t, containsLabel(children, "validateToken") || containsLabel(children, "lookupAccount"),
		"expected a resolved callee, got %v", children)

	callers, err := e.Callers(ctx, "validateToken", 3)
	require.NoError(t, err)
	require.NotEmpty(t, callers)
	require.NotEmpty(t, callers[0].Children)
	assert.Contains(t, callers[0].Children[0].Label, "AuthenticateUser")
}

func containsLabel(labels []string, want string) bool {
	for _, l := range labels {
		if len(l) >= len(want) && l[:len(want)] == want {
			return true
		}
	}
	return false
}

func TestPipelineHistoryFollowsContent(t *testing.T) {
	store, _ := indexFixtures(t)
	ctx := context.Background()

	locs, err := store.LocationsForFile(ctx, "auth.go")
	require.NoError(t, err)
	require.NotEmpty(t, locs)

	// Every location for a chunk shares its content hash; re-fetching
	// by hash returns the same file.
	byHash, err := store.GetLocations(ctx, locs[0].Hash)
	require.NoError(t, err)
	require.NotEmpty(t, byHash)
	assert.Equal(t, "auth.go", byHash[0].FilePath)
}

func TestPipelineReindexIsIdempotent(t *testing.T) {
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, err := embedder.NewMockProvider(nil)
	require.NoError(t, err)

	first, err := indexer.New(store, emb).Index(ctx, fixturesDir(t), nil)
	require.NoError(t, err)

	second, err := indexer.New(store, emb).Index(ctx, fixturesDir(t), nil)
	require.NoError(t, err)

	// Identical content dedups entirely on the second pass.
	assert.Zero(t, second.ChunksStored)
	assert.Equal(t, first.FilesIndexed, second.FilesIndexed)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ChunksStored, stats.Chunks)
}
