package types

// SearchResult represents a single search result with relevance information
type SearchResult struct {
	Hash ContentHash
	Rank int // Position in result set (1-based)

	// Score is the fused relevance score from vector + FTS + RRF.
	Score float64

	// Component scores, present when the corresponding side of the
	// hybrid query returned this chunk.
	VectorScore float64
	FTSScore    float64

	Chunk    *Chunk
	Location *ChunkLocation // best location, may be nil for orphaned chunks
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.Hash.IsZero() {
		return ErrInvalidHash
	}
	if sr.Rank < 1 {
		return ErrInvalidRank
	}
	return nil
}
