package types

import "time"

// ChunkLocation records one occurrence of a chunk at a (repo, file,
// commit, byte offset) coordinate. Chunks are stored once; moved or
// duplicated code produces additional locations, not additional chunks.
// The key (Hash, Repo, FilePath, CommitHash, StartByte) is unique, so
// identical definitions repeated in one file keep distinct rows.
type ChunkLocation struct {
	Hash       ContentHash
	Repo       string
	FilePath   string
	CommitHash string
	Branch     string
	BlobHash   string

	StartLine int
	EndLine   int
	StartByte int
	EndByte   int

	// Author is the attributed author in "Name <email>" form. For git
	// ingest this is the blame primary author of the chunk's line
	// range, degrading to the commit author when blame fails.
	Author     string
	AuthoredAt time.Time
}

// CommitInfo describes a commit encountered during repository ingest.
type CommitInfo struct {
	Hash       string
	Author     string
	Message    string
	AuthoredAt time.Time
	Parents    []string
}

// ShortCommit returns the first 7 characters of a commit hash for display.
func ShortCommit(hash string) string {
	if len(hash) <= 7 {
		return hash
	}
	return hash[:7]
}
