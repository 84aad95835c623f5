package types

import "time"

// IndexState records how far a branch has been ingested so repeated
// index runs resume from the last indexed commit instead of re-walking
// the whole history.
type IndexState struct {
	RepoPath       string
	Branch         string
	LastCommitHash string
	IndexedAt      time.Time
}
