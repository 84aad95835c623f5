package types

import (
	"fmt"
	"strings"
)

// FQN is a fully qualified symbol name prefixed with its language and
// using the language's native path separators:
//
//	rust:codemate_core::chunk::Chunk::new
//	python:codemate.indexer.walk
//	typescript:src/utils#formatDate
//	go:storage.SQLiteStorage.StoreChunk
//	java:com.example.Indexer#walk
//
// The serialized form round-trips: ParseFQN(f.String()) == f.
type FQN struct {
	Language Language
	Path     string
}

// NewFQN builds an FQN from a language and a native symbol path.
func NewFQN(lang Language, path string) FQN {
	return FQN{Language: lang, Path: path}
}

// ParseFQN parses the serialized "<language>:<path>" form.
func ParseFQN(s string) (FQN, error) {
	idx := strings.Index(s, ":")
	if idx <= 0 || idx == len(s)-1 {
		return FQN{}, fmt.Errorf("%w: %q", ErrInvalidFQN, s)
	}
	lang := ParseLanguage(s[:idx])
	if lang == LanguageUnknown {
		return FQN{}, fmt.Errorf("%w: unknown language in %q", ErrInvalidFQN, s)
	}
	return FQN{Language: lang, Path: s[idx+1:]}, nil
}

// String returns the serialized "<language>:<path>" form.
func (f FQN) String() string {
	return f.Language.String() + ":" + f.Path
}

// IsZero reports whether the FQN is empty.
func (f FQN) IsZero() bool {
	return f.Language == "" && f.Path == ""
}

// lastSeparator returns the byte offset and width of the rightmost path
// separator, or -1 when the path is a single component. Rust's "::" is
// matched before "." so that trait paths split correctly.
func (f FQN) lastSeparator() (idx, width int) {
	best, bestWidth := -1, 0
	for _, sep := range []string{"::", "#", "."} {
		if i := strings.LastIndex(f.Path, sep); i > best {
			best, bestWidth = i, len(sep)
		}
	}
	return best, bestWidth
}

// ShortName returns the terminal component of the path.
func (f FQN) ShortName() string {
	idx, width := f.lastSeparator()
	if idx < 0 {
		return f.Path
	}
	return f.Path[idx+width:]
}

// Parent returns the FQN with the terminal component removed. The second
// return value is false when the path has no parent.
func (f FQN) Parent() (FQN, bool) {
	idx, _ := f.lastSeparator()
	if idx <= 0 {
		return FQN{}, false
	}
	return FQN{Language: f.Language, Path: f.Path[:idx]}, true
}
