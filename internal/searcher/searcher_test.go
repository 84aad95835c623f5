package searcher

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codemate/internal/embedder"
	"github.com/dshills/codemate/internal/storage"
	"github.com/dshills/codemate/pkg/types"
)

func setupSearcher(t *testing.T) (*Searcher, *storage.SQLiteStorage, embedder.Embedder) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, err := embedder.NewMockProvider(nil)
	require.NoError(t, err)
	return New(store, emb), store, emb
}

// indexChunk stores a chunk, its location, and its embedding.
func indexChunk(t *testing.T, store *storage.SQLiteStorage, emb embedder.Embedder, content, symbol, file string) types.Chunk {
	t.Helper()
	ctx := context.Background()

	chunk := types.NewChunk(content, types.LanguageGo, types.KindFunction, symbol)
	chunk.StartLine = 1
	chunk.EndLine = chunk.LineCount()
	_, err := store.StoreChunk(ctx, &chunk)
	require.NoError(t, err)

	loc := types.ChunkLocation{
		Hash: chunk.Hash, FilePath: file, CommitHash: "c1", Branch: "main",
		StartLine: 1, EndLine: chunk.EndLine,
		AuthoredAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.AddLocation(ctx, &loc))

	vec, err := emb.GenerateEmbedding(ctx, chunk.Content)
	require.NoError(t, err)
	require.NoError(t, store.StoreEmbedding(ctx, chunk.Hash, vec, emb.ModelID()))
	return chunk
}

func TestHybridSearch(t *testing.T) {
	s, store, emb := setupSearcher(t)
	ctx := context.Background()

	auth := indexChunk(t, store, emb,
		"func authenticateUser(token string) (*User, error) {\n\treturn verify(token)\n}\n",
		"authenticateUser", "auth/auth.go")
	indexChunk(t, store, emb,
		"func renderTemplate(w io.Writer, name string) error {\n\treturn tmpl.Execute(w, name)\n}\n",
		"renderTemplate", "web/render.go")

	resp, err := s.Search(ctx, Request{Query: "authenticateUser token", Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	top := resp.Results[0]
	assert.Equal(t, auth.Hash, top.Hash)
	assert.Equal(t, 1, top.Rank)
	assert.Positive(t, top.Score)
	require.NotNil(t, top.Chunk)
	assert.Equal(t, "authenticateUser", top.Chunk.SymbolName)
	require.NotNil(t, top.Location)
	assert.Equal(t, "auth/auth.go", top.Location.FilePath)
	assert.Equal(t, SearchModeHybrid, resp.SearchMode)
	assert.False(t, resp.Degraded)
}

func TestKeywordSearchWithoutEmbeddings(t *testing.T) {
	s, store, _ := setupSearcher(t)
	ctx := context.Background()

	chunk := types.NewChunk("fn parse_manifest() {}\n", types.LanguageRust, types.KindFunction, "parse_manifest")
	chunk.StartLine = 1
	chunk.EndLine = 1
	_, err := store.StoreChunk(ctx, &chunk)
	require.NoError(t, err)

	resp, err := s.Search(ctx, Request{Query: "parse_manifest", Mode: SearchModeKeyword})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, chunk.Hash, resp.Results[0].Hash)
	// No locations indexed: hydration degrades to a nil location.
	assert.Nil(t, resp.Results[0].Location)
}

// failingEmbedder always errors, simulating a dead provider.
type failingEmbedder struct{}

func (failingEmbedder) GenerateEmbedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("provider down")
}
func (failingEmbedder) GenerateBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("provider down")
}
func (failingEmbedder) Dimension() int  { return 0 }
func (failingEmbedder) ModelID() string { return "dead" }
func (failingEmbedder) Close() error    { return nil }

func TestHybridDegradesWhenVectorSideFails(t *testing.T) {
	_, store, emb := setupSearcher(t)
	ctx := context.Background()
	indexChunk(t, store, emb, "func retryBackoff() {}\n", "retryBackoff", "retry.go")

	s := New(store, failingEmbedder{})
	resp, err := s.Search(ctx, Request{Query: "retryBackoff"})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "retryBackoff", resp.Results[0].Chunk.SymbolName)
	assert.Zero(t, resp.VectorResults)
}

func TestSearchValidation(t *testing.T) {
	s, _, _ := setupSearcher(t)

	_, err := s.Search(context.Background(), Request{Query: "   "})
	assert.Error(t, err)

	_, err = s.Search(context.Background(), Request{Query: "x", Mode: "bogus"})
	assert.Error(t, err)
}

func TestSearchCache(t *testing.T) {
	s, store, emb := setupSearcher(t)
	ctx := context.Background()
	indexChunk(t, store, emb, "func cached() {}\n", "cached", "c.go")

	req := Request{Query: "cached", UseCache: true}
	first, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.TotalResults, second.TotalResults)

	s.InvalidateCache()
	third, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
}

func TestFuseRRFWeightsAndBonus(t *testing.T) {
	h1 := types.HashContent([]byte("one"))
	h2 := types.HashContent([]byte("two"))

	vector := []storage.VectorResult{{Hash: h1, SimilarityScore: 0.9}}
	text := []storage.TextResult{{Hash: h2, BM25Score: 0.8}, {Hash: h1, BM25Score: 0.7}}

	fused := fuseRRF(vector, text)
	require.Len(t, fused, 2)

	// h1: vector rank 1 + text rank 2; h2: text rank 1 only.
	expectedH1 := weightVector/(rrfK+1) + bonusRank1 + weightFTS/(rrfK+2) + bonusRank2_3
	expectedH2 := weightFTS/(rrfK+1) + bonusRank1

	assert.Equal(t, h1, fused[0].hash)
	assert.InDelta(t, expectedH1, fused[0].score, 1e-12)
	assert.InDelta(t, expectedH2, fused[1].score, 1e-12)
	assert.InDelta(t, 0.9, fused[0].vectorScore, 1e-12)
	assert.InDelta(t, 0.7, fused[0].ftsScore, 1e-12)
}

func TestSortFusedTieBreaksOnHash(t *testing.T) {
	a := types.HashContent([]byte("aaa"))
	b := types.HashContent([]byte("bbb"))

	tied := []fusedResult{{hash: b, score: 0.25}, {hash: a, score: 0.25}}
	sortFused(tied)
	assert.True(t, bytes.Compare(tied[0].hash[:], tied[1].hash[:]) < 0)

	// Swapped input yields the same order.
	swapped := []fusedResult{{hash: a, score: 0.25}, {hash: b, score: 0.25}}
	sortFused(swapped)
	assert.Equal(t, tied[0].hash, swapped[0].hash)
}

func TestRerankerBlending(t *testing.T) {
	s, store, emb := setupSearcher(t)
	ctx := context.Background()

	indexChunk(t, store, emb, "func alpha() { connect() }\n", "alpha", "a.go")
	indexChunk(t, store, emb, "func beta() { connect() }\n", "beta", "b.go")

	constant := func(_ context.Context, _ string, _ *types.Chunk) float64 { return 0.5 }

	resp, err := s.Search(ctx, Request{Query: "connect", Reranker: constant, Limit: 2})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)

	// With a constant reranker the blend is fully determined by fused
	// position: 0.75*(1/i) + 0.25*0.5 for i <= 3.
	assert.InDelta(t, 0.75*1.0+0.25*0.5, resp.Results[0].Score, 1e-9)
	assert.InDelta(t, 0.75*0.5+0.25*0.5, resp.Results[1].Score, 1e-9)
	assert.Greater(t, resp.Results[0].Score, resp.Results[1].Score)
}

func TestSearchLimitTruncation(t *testing.T) {
	s, store, emb := setupSearcher(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		content := "func worker" + string(rune('A'+i)) + "() { dispatch() }\n"
		indexChunk(t, store, emb, content, "worker", "w.go")
	}

	resp, err := s.Search(ctx, Request{Query: "dispatch", Limit: 3})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(resp.Results), 3)
	for i, r := range resp.Results {
		assert.Equal(t, i+1, r.Rank)
	}
}
