//go:build sqlite_vec
// +build sqlite_vec

package storage

// CGO build: github.com/mattn/go-sqlite3 with the sqlite-vec extension
// loaded for native vector distance, plus FTS5.
//
//   CGO_ENABLED=1 go build -tags "sqlite_vec,fts5" ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql driver this build registers.
	DriverName = "sqlite3"

	// VectorExtensionAvailable reports whether sqlite-vec handles
	// similarity search natively. When false, vectors are scanned
	// and scored in Go.
	VectorExtensionAvailable = true

	// BuildMode names the build flavor for version output.
	BuildMode = "cgo"
)
