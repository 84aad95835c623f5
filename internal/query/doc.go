// Package query parses the search filter DSL into storage filters.
//
// A query is whitespace-separated terms. A term of the form key:value
// is a filter; everything else is free text handed to hybrid search.
// Recognized keys: lang, author, file, path, after, before, in, type,
// limit. Comma-separated values within one filter are a union;
// repeating a key intersects. Unknown keys fall back to free text, so
// "foo:bar" searches for the literal string rather than erroring.
package query
