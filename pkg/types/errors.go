package types

import "errors"

// Domain errors for type validation
var (
	ErrEmptyContent = errors.New("content cannot be empty")
	ErrHashMismatch = errors.New("content hash does not match content")
	ErrInvalidSpan  = errors.New("invalid line span")
	ErrInvalidHash  = errors.New("invalid content hash")
	ErrInvalidFQN   = errors.New("invalid fully qualified name")
	ErrInvalidEdge  = errors.New("invalid edge")
	ErrInvalidRank  = errors.New("rank must be >= 1")
)
