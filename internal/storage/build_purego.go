//go:build purego || !sqlite_vec
// +build purego !sqlite_vec

package storage

// Pure Go build: modernc.org/sqlite, no C toolchain needed. Vector
// similarity falls back to in-process brute-force scoring.
//
//   CGO_ENABLED=0 go build -tags "purego" ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver this build registers.
	DriverName = "sqlite"

	// VectorExtensionAvailable reports whether sqlite-vec handles
	// similarity search natively. When false, vectors are scanned
	// and scored in Go.
	VectorExtensionAvailable = false

	// BuildMode names the build flavor for version output.
	BuildMode = "purego"
)
