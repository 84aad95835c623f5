package types

import "fmt"

// ParseError records a recoverable failure while parsing or extracting
// from a single file. Parse errors are collected and reported; they
// never abort an indexing run.
type ParseError struct {
	File    string
	Line    int
	Message string
}

// Error implements the error interface
func (pe *ParseError) Error() string {
	if pe.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", pe.File, pe.Line, pe.Message)
	}
	return fmt.Sprintf("%s: %s", pe.File, pe.Message)
}
