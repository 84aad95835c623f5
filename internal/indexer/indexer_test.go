package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codemate/internal/embedder"
	"github.com/dshills/codemate/internal/storage"
	"github.com/dshills/codemate/pkg/types"
)

func setupIndexer(t *testing.T) (*Indexer, *storage.SQLiteStorage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, err := embedder.NewMockProvider(nil)
	require.NoError(t, err)
	return New(store, emb), store
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		full := filepath.Join(dir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

const goSource = `package demo

func Fetch(url string) string {
	return decode(url)
}

func decode(s string) string {
	return s
}
`

func TestIndexDirectory(t *testing.T) {
	idx, store := setupIndexer(t)
	ctx := context.Background()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"fetch.go":  goSource,
		"README.md": "# demo\n",
	})

	stats, err := idx.Index(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Positive(t, stats.ChunksStored)
	assert.Empty(t, stats.Errors)

	dbStats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.ChunksStored, dbStats.Chunks)
	assert.Positive(t, dbStats.Edges)

	// The root module is always recorded.
	mod, err := store.GetModule(ctx, types.RootModuleID)
	require.NoError(t, err)
	assert.Equal(t, types.RootModuleID, mod.ID)

	// Directory scans record locations under the workdir pseudo commit.
	locs, err := store.LocationsForFile(ctx, "fetch.go")
	require.NoError(t, err)
	require.NotEmpty(t, locs)
	assert.Equal(t, "workdir", locs[0].CommitHash)

	results, err := store.SearchText(ctx, "Fetch", 10, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestIndexDirectoryEmbedsChunks(t *testing.T) {
	idx, store := setupIndexer(t)
	ctx := context.Background()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"fetch.go": goSource})

	stats, err := idx.Index(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, stats.ChunksStored, stats.Embedded)

	missing, err := store.ChunksMissingEmbedding(ctx, embedder.MockModelID, 100)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestIndexDirectoryWithoutEmbedder(t *testing.T) {
	_, store := setupIndexer(t)
	idx := New(store, nil)
	ctx := context.Background()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"fetch.go": goSource})

	stats, err := idx.Index(ctx, dir, nil)
	require.NoError(t, err)
	assert.Positive(t, stats.ChunksStored)
	assert.Zero(t, stats.Embedded)
}

func TestIndexDirectoryDeduplicatesContent(t *testing.T) {
	idx, store := setupIndexer(t)
	ctx := context.Background()

	dir := t.TempDir()
	content := "# shared\n\nidentical in both trees\n"
	writeFiles(t, dir, map[string]string{
		"docs/a.md": content,
		"copy/b.md": content,
	})

	stats, err := idx.Index(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Equal(t, 1, stats.ChunksStored)
	assert.Equal(t, 1, stats.ChunksReused)

	hash := types.HashContent([]byte(types.NormalizeContent(content)))
	locs, err := store.GetLocations(ctx, hash)
	require.NoError(t, err)
	assert.Len(t, locs, 2)
}

func TestIndexResolvesLocalCalls(t *testing.T) {
	idx, store := setupIndexer(t)
	ctx := context.Background()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"fetch.go": goSource})

	stats, err := idx.Index(ctx, dir, nil)
	require.NoError(t, err)
	assert.Positive(t, stats.SymbolsLinked)

	pending, err := store.UnresolvedCallEdges(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReindexDropsStaleCallEdges(t *testing.T) {
	idx, store := setupIndexer(t)
	ctx := context.Background()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"app.go": "package demo\n\nfunc run() {\n\thelper()\n}\n\nfunc helper() {}\n",
	})
	_, err := idx.Index(ctx, dir, nil)
	require.NoError(t, err)

	occ, err := store.ChunksBySymbol(ctx, "helper")
	require.NoError(t, err)
	require.Len(t, occ, 1)
	helperNode := types.ChunkNodeID(occ[0].Hash)

	in, err := store.IncomingEdges(ctx, helperNode, []types.EdgeKind{types.EdgeCalls})
	require.NoError(t, err)
	require.Len(t, in, 1)

	// Rewrite run without the call and index again.
	writeFiles(t, dir, map[string]string{
		"app.go": "package demo\n\nfunc run() {\n}\n\nfunc helper() {}\n",
	})
	stats, err := idx.Index(ctx, dir, nil)
	require.NoError(t, err)
	assert.Positive(t, stats.EdgesRemoved)

	// The current graph no longer answers run as a caller of helper.
	in, err = store.IncomingEdges(ctx, helperNode, []types.EdgeKind{types.EdgeCalls})
	require.NoError(t, err)
	assert.Empty(t, in)

	// The removal is recorded, not erased.
	history, err := store.EdgeHistory(ctx, helperNode)
	require.NoError(t, err)
	var deleted int
	for _, h := range history {
		if h.Event == types.EdgeDeleted {
			deleted++
		}
	}
	assert.Positive(t, deleted)
}

func TestIndexSkipsHiddenAndVendor(t *testing.T) {
	idx, _ := setupIndexer(t)
	ctx := context.Background()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"main.go":             "package main\n",
		"vendor/dep/dep.go":   "package dep\n",
		".hidden/secret.go":   "package secret\n",
		"node_modules/x/x.js": "module.exports = 1\n",
	})

	stats, err := idx.Index(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
}

func TestIndexRejectsConcurrentRuns(t *testing.T) {
	idx, _ := setupIndexer(t)
	require.True(t, idx.lock.TryAcquire())

	_, err := idx.Index(context.Background(), t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrIndexInProgress)

	idx.lock.Release()
	_, err = idx.Index(context.Background(), t.TempDir(), nil)
	assert.NoError(t, err)
}

// gitFixture drives a real repository through go-git.
type gitFixture struct {
	t    *testing.T
	dir  string
	wt   *git.Worktree
	when time.Time
}

func initGitFixture(t *testing.T) *gitFixture {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return &gitFixture{t: t, dir: dir, wt: wt, when: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *gitFixture) commit(author, email, message string, files map[string]string) string {
	f.t.Helper()
	for path, content := range files {
		full := filepath.Join(f.dir, path)
		require.NoError(f.t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(f.t, os.WriteFile(full, []byte(content), 0o644))
		_, err := f.wt.Add(path)
		require.NoError(f.t, err)
	}
	f.when = f.when.Add(time.Hour)
	hash, err := f.wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: author, Email: email, When: f.when},
	})
	require.NoError(f.t, err)
	return hash.String()
}

func TestIndexGitHistory(t *testing.T) {
	idx, store := setupIndexer(t)
	ctx := context.Background()

	f := initGitFixture(t)
	f.commit("Alice", "alice@example.com", "add fetch", map[string]string{"fetch.go": goSource})
	second := f.commit("Bob", "bob@example.com", "add notes", map[string]string{"notes.md": "# notes\n"})

	stats, err := idx.Index(ctx, f.dir, &Config{Git: true})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.CommitsWalked)
	assert.Equal(t, 2, stats.FilesIndexed)

	// Locations carry the real commit hash and the blame author.
	locs, err := store.LocationsForFile(ctx, "notes.md")
	require.NoError(t, err)
	require.NotEmpty(t, locs)
	assert.Equal(t, second, locs[0].CommitHash)
	assert.Equal(t, "Bob <bob@example.com>", locs[0].Author)

	state, err := store.GetIndexState(ctx, f.dir, "master")
	require.NoError(t, err)
	assert.Equal(t, second, state.LastCommitHash)
}

func TestIndexGitIncrementalResume(t *testing.T) {
	idx, _ := setupIndexer(t)
	ctx := context.Background()

	f := initGitFixture(t)
	f.commit("Alice", "alice@example.com", "one", map[string]string{"a.md": "# a\n"})

	first, err := idx.Index(ctx, f.dir, &Config{Git: true})
	require.NoError(t, err)
	assert.Equal(t, 1, first.CommitsWalked)

	// Nothing new: the walk stops at the recorded state immediately.
	again, err := idx.Index(ctx, f.dir, &Config{Git: true})
	require.NoError(t, err)
	assert.Zero(t, again.CommitsWalked)

	f.commit("Alice", "alice@example.com", "two", map[string]string{"b.md": "# b\n"})
	resumed, err := idx.Index(ctx, f.dir, &Config{Git: true})
	require.NoError(t, err)
	assert.Equal(t, 1, resumed.CommitsWalked)
}

func TestIndexGitReusesBlobAcrossPaths(t *testing.T) {
	idx, store := setupIndexer(t)
	ctx := context.Background()

	f := initGitFixture(t)
	content := "# shared document\n"
	f.commit("Alice", "alice@example.com", "add original", map[string]string{"docs/a.md": content})
	f.commit("Alice", "alice@example.com", "copy it", map[string]string{"mirror/b.md": content})

	stats, err := idx.Index(ctx, f.dir, &Config{Git: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Positive(t, stats.ChunksReused)

	hash := types.HashContent([]byte(types.NormalizeContent(content)))
	locs, err := store.GetLocations(ctx, hash)
	require.NoError(t, err)
	assert.Len(t, locs, 2)
}

func TestIndexGitDeletedFileLeavesTombstone(t *testing.T) {
	idx, store := setupIndexer(t)
	ctx := context.Background()

	f := initGitFixture(t)
	f.commit("Alice", "alice@example.com", "add", map[string]string{"gone.md": "# temporary\n"})
	_, err := f.wt.Remove("gone.md")
	require.NoError(t, err)
	f.when = f.when.Add(time.Hour)
	_, err = f.wt.Commit("remove", &git.CommitOptions{
		Author: &object.Signature{Name: "Alice", Email: "alice@example.com", When: f.when},
	})
	require.NoError(t, err)

	_, err = idx.Index(ctx, f.dir, &Config{Git: true})
	require.NoError(t, err)

	// The old location survives as the tombstone; no new one appears.
	locs, err := store.LocationsForFile(ctx, "gone.md")
	require.NoError(t, err)
	assert.Len(t, locs, 1)
}

func TestPruneBranch(t *testing.T) {
	idx, store := setupIndexer(t)
	ctx := context.Background()

	f := initGitFixture(t)
	f.commit("Alice", "alice@example.com", "init", map[string]string{"a.md": "# a\n"})

	_, err := idx.Index(ctx, f.dir, &Config{Git: true, Branch: "master"})
	require.NoError(t, err)

	require.NoError(t, idx.PruneBranch(ctx, f.dir, "master"))
	locs, err := store.LocationsForFile(ctx, "a.md")
	require.NoError(t, err)
	assert.Empty(t, locs)
}
