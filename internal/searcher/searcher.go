package searcher

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/codemate/internal/embedder"
	"github.com/dshills/codemate/internal/storage"
	"github.com/dshills/codemate/pkg/types"
)

// SearchMode defines how search is performed
type SearchMode string

const (
	SearchModeHybrid  SearchMode = "hybrid"  // Vector + BM25 with RRF
	SearchModeVector  SearchMode = "vector"  // Vector similarity only
	SearchModeKeyword SearchMode = "keyword" // BM25 text search only
)

// Fusion parameters. RRF weights favor the dense side slightly; the
// top-position bonus keeps a clear rank-1 winner from being washed out
// by a long tail of weak agreements.
const (
	rrfK         = 60.0
	weightVector = 0.5
	weightFTS    = 0.3
	bonusRank1   = 0.05
	bonusRank2_3 = 0.02

	// Each sub-query gets its own deadline so one stuck side cannot
	// hold the whole search.
	subQueryTimeout = 5 * time.Second

	// rerankTopN is how many candidates each side contributes before
	// fusion.
	rerankTopN = 50

	DefaultLimit = 10
	MaxLimit     = 100
)

// Reranker rescores a candidate chunk for a query, returning a score
// in [0,1]. Optional; position-aware blending applies when set.
type Reranker func(ctx context.Context, query string, chunk *types.Chunk) float64

// Request contains parameters for a search operation.
type Request struct {
	Query   string
	Limit   int
	Mode    SearchMode
	Filters *storage.Filters
	// PreferredBranch steers best-location hydration.
	PreferredBranch string
	UseCache        bool
	CacheTTL        time.Duration
	Reranker        Reranker
}

// Response contains search results and metadata.
type Response struct {
	Results       []types.SearchResult
	TotalResults  int
	SearchMode    SearchMode
	Duration      time.Duration
	CacheHit      bool
	VectorResults int
	TextResults   int
	// Degraded notes a hybrid search where one side failed and the
	// other carried the query alone.
	Degraded bool
}

type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Searcher coordinates hybrid retrieval across the vector and FTS
// indexes, fuses the two rankings, and hydrates results.
type Searcher struct {
	storage  storage.Storage
	embedder embedder.Embedder
	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheMu  sync.RWMutex
}

// New creates a Searcher.
func New(store storage.Storage, emb embedder.Embedder) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](1000)
	if err != nil {
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &Searcher{storage: store, embedder: emb, cache: cache}
}

// Search runs a search request.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()

	if s.embedder == nil {
		return nil, errors.New("embedder not initialized")
	}
	if err := s.validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	if req.UseCache {
		if cached := s.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	var response *Response
	var err error
	switch req.Mode {
	case SearchModeHybrid:
		response, err = s.hybridSearch(ctx, req)
	case SearchModeVector:
		response, err = s.vectorSearch(ctx, req)
	case SearchModeKeyword:
		response, err = s.keywordSearch(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported search mode: %s", req.Mode)
	}
	if err != nil {
		return nil, err
	}

	response.Duration = time.Since(startTime)
	response.SearchMode = req.Mode

	if req.UseCache && len(response.Results) > 0 {
		s.storeInCache(req, response)
	}
	return response, nil
}

// sideResult holds one sub-query's outcome.
type sideResult struct {
	vectorResults []storage.VectorResult
	textResults   []storage.TextResult
	err           error
}

func (s *Searcher) runVectorSearch(ctx context.Context, req Request, out chan<- sideResult) {
	ctx, cancel := context.WithTimeout(ctx, subQueryTimeout)
	defer cancel()

	var res sideResult
	vector, err := s.embedder.GenerateEmbedding(ctx, req.Query)
	if err != nil {
		res.err = fmt.Errorf("failed to generate query embedding: %w", err)
	} else {
		res.vectorResults, res.err = s.storage.SearchVector(ctx, vector, s.embedder.ModelID(), rerankTopN, req.Filters)
	}
	select {
	case out <- res:
	case <-ctx.Done():
	}
}

func (s *Searcher) runTextSearch(ctx context.Context, req Request, out chan<- sideResult) {
	ctx, cancel := context.WithTimeout(ctx, subQueryTimeout)
	defer cancel()

	var res sideResult
	res.textResults, res.err = s.storage.SearchText(ctx, req.Query, rerankTopN, req.Filters)
	select {
	case out <- res:
	case <-ctx.Done():
	}
}

// hybridSearch runs both sides in parallel and fuses with RRF. One
// side may fail; only a double failure is an error.
func (s *Searcher) hybridSearch(ctx context.Context, req Request) (*Response, error) {
	vectorChan := make(chan sideResult, 1)
	textChan := make(chan sideResult, 1)

	go s.runVectorSearch(ctx, req, vectorChan)
	go s.runTextSearch(ctx, req, textChan)

	var vectorRes, textRes sideResult
	var vectorDone, textDone bool
	for !vectorDone || !textDone {
		select {
		case vectorRes = <-vectorChan:
			vectorDone = true
		case textRes = <-textChan:
			textDone = true
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if vectorRes.err != nil && textRes.err != nil {
		return nil, fmt.Errorf("both searches failed: vector=%w, text=%v", vectorRes.err, textRes.err)
	}

	fused := fuseRRF(vectorRes.vectorResults, textRes.textResults)
	if req.Reranker != nil {
		fused = s.rerank(ctx, req, fused)
	}
	results, err := s.hydrate(ctx, fused, req)
	if err != nil {
		return nil, err
	}

	return &Response{
		Results:       results,
		TotalResults:  len(results),
		VectorResults: len(vectorRes.vectorResults),
		TextResults:   len(textRes.textResults),
		Degraded:      vectorRes.err != nil || textRes.err != nil,
	}, nil
}

func (s *Searcher) vectorSearch(ctx context.Context, req Request) (*Response, error) {
	vector, err := s.embedder.GenerateEmbedding(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	vectorResults, err := s.storage.SearchVector(ctx, vector, s.embedder.ModelID(), req.Limit, req.Filters)
	if err != nil {
		return nil, err
	}

	fused := make([]fusedResult, len(vectorResults))
	for i, vr := range vectorResults {
		fused[i] = fusedResult{hash: vr.Hash, score: vr.SimilarityScore, vectorScore: vr.SimilarityScore}
	}
	results, err := s.hydrate(ctx, fused, req)
	if err != nil {
		return nil, err
	}

	return &Response{
		Results:       results,
		TotalResults:  len(results),
		VectorResults: len(vectorResults),
	}, nil
}

func (s *Searcher) keywordSearch(ctx context.Context, req Request) (*Response, error) {
	textResults, err := s.storage.SearchText(ctx, req.Query, req.Limit, req.Filters)
	if err != nil {
		return nil, err
	}

	fused := make([]fusedResult, len(textResults))
	for i, tr := range textResults {
		fused[i] = fusedResult{hash: tr.Hash, score: tr.BM25Score, ftsScore: tr.BM25Score}
	}
	results, err := s.hydrate(ctx, fused, req)
	if err != nil {
		return nil, err
	}

	return &Response{
		Results:      results,
		TotalResults: len(results),
		TextResults:  len(textResults),
	}, nil
}

// fusedResult is a candidate after rank fusion.
type fusedResult struct {
	hash        types.ContentHash
	score       float64
	vectorScore float64
	ftsScore    float64
}

// fuseRRF combines the two rankings with weighted Reciprocal Rank
// Fusion plus a small top-position bonus per list.
func fuseRRF(vectorResults []storage.VectorResult, textResults []storage.TextResult) []fusedResult {
	byHash := make(map[types.ContentHash]*fusedResult)

	contribute := func(hash types.ContentHash, rank int, weight float64) *fusedResult {
		fr, ok := byHash[hash]
		if !ok {
			fr = &fusedResult{hash: hash}
			byHash[hash] = fr
		}
		fr.score += weight / (rrfK + float64(rank))
		switch rank {
		case 1:
			fr.score += bonusRank1
		case 2, 3:
			fr.score += bonusRank2_3
		}
		return fr
	}

	for i, vr := range vectorResults {
		fr := contribute(vr.Hash, i+1, weightVector)
		fr.vectorScore = vr.SimilarityScore
	}
	for i, tr := range textResults {
		fr := contribute(tr.Hash, i+1, weightFTS)
		fr.ftsScore = tr.BM25Score
	}

	fused := make([]fusedResult, 0, len(byHash))
	for _, fr := range byHash {
		fused = append(fused, *fr)
	}
	sortFused(fused)
	return fused
}

// rerank blends a reranker score into the fused order. The blend trusts
// fusion more at the top of the list and the reranker more in the tail.
func (s *Searcher) rerank(ctx context.Context, req Request, fused []fusedResult) []fusedResult {
	for i := range fused {
		chunk, err := s.storage.GetChunk(ctx, fused[i].hash)
		if err != nil {
			continue
		}
		rank := i + 1
		wRRF := 0.40
		switch {
		case rank <= 3:
			wRRF = 0.75
		case rank <= 10:
			wRRF = 0.60
		}
		rerankScore := req.Reranker(ctx, req.Query, chunk)
		fused[i].score = wRRF*(1.0/float64(rank)) + (1.0-wRRF)*rerankScore
	}
	sortFused(fused)
	return fused
}

// sortFused orders by score descending with a bytewise ascending hash
// tie-break, so equal scores are deterministic across runs.
func sortFused(fused []fusedResult) {
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return bytes.Compare(fused[i].hash[:], fused[j].hash[:]) < 0
	})
}

// hydrate truncates to the limit and loads each chunk with its best
// location. Chunks that vanished under the search are skipped.
func (s *Searcher) hydrate(ctx context.Context, fused []fusedResult, req Request) ([]types.SearchResult, error) {
	results := make([]types.SearchResult, 0, req.Limit)
	for _, fr := range fused {
		if len(results) == req.Limit {
			break
		}
		chunk, err := s.storage.GetChunk(ctx, fr.hash)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}

		var location *types.ChunkLocation
		loc, err := s.storage.BestLocation(ctx, fr.hash, req.PreferredBranch)
		if err == nil {
			location = loc
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		results = append(results, types.SearchResult{
			Hash:        fr.hash,
			Rank:        len(results) + 1,
			Score:       fr.score,
			VectorScore: fr.vectorScore,
			FTSScore:    fr.ftsScore,
			Chunk:       chunk,
			Location:    location,
		})
	}
	return results, nil
}

func (s *Searcher) validateRequest(req *Request) error {
	if strings.TrimSpace(req.Query) == "" {
		return errors.New("query cannot be empty")
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	if req.Mode == "" {
		req.Mode = SearchModeHybrid
	}
	if req.CacheTTL == 0 {
		req.CacheTTL = time.Hour
	}
	return nil
}

func (s *Searcher) checkCache(req Request) *Response {
	hash := computeRequestHash(req)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}
	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()
		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}
	response := copyResponse(entry.response)
	s.cacheMu.RUnlock()
	return response
}

func (s *Searcher) storeInCache(req Request, response *Response) {
	entry := &cacheEntry{
		response:  copyResponse(response),
		expiresAt: time.Now().Add(req.CacheTTL),
	}
	s.cacheMu.Lock()
	s.cache.Add(computeRequestHash(req), entry)
	s.cacheMu.Unlock()
}

// InvalidateCache drops all cached responses. Called after reindexing.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

func copyResponse(src *Response) *Response {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Results = make([]types.SearchResult, len(src.Results))
	copy(dst.Results, src.Results)
	return &dst
}

// computeRequestHash derives the cache key from every request field
// that affects the result set.
func computeRequestHash(req Request) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	data.WriteString(string(req.Mode))
	data.WriteString("|")
	fmt.Fprintf(&data, "%d|%s", req.Limit, req.PreferredBranch)

	if req.Filters != nil {
		data.WriteString("|filters:")
		data.WriteString(strings.Join(req.Filters.Languages, ","))
		data.WriteString("|")
		data.WriteString(strings.Join(req.Filters.Kinds, ","))
		data.WriteString("|")
		data.WriteString(strings.Join(req.Filters.Modules, ","))
		data.WriteString("|")
		data.WriteString(strings.Join(req.Filters.Authors, ","))
		data.WriteString("|")
		data.WriteString(strings.Join(req.Filters.FileGlobs, ","))
		data.WriteString("|")
		data.WriteString(strings.Join(req.Filters.PathGlobs, ","))
		data.WriteString("|")
		data.WriteString(req.Filters.Branch)
		if req.Filters.After != nil {
			fmt.Fprintf(&data, "|after:%d", req.Filters.After.Unix())
		}
		if req.Filters.Before != nil {
			fmt.Fprintf(&data, "|before:%d", req.Filters.Before.Unix())
		}
	}
	return sha256.Sum256([]byte(data.String()))
}
