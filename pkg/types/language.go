package types

import (
	"path/filepath"
	"strings"
)

// Language identifies the source language of a chunk.
type Language string

const (
	LanguageRust       Language = "rust"
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageGo         Language = "go"
	LanguageJava       Language = "java"
	LanguageHCL        Language = "hcl"
	LanguageMarkdown   Language = "markdown"
	LanguageUnknown    Language = "unknown"
)

// ParseLanguage maps a language name to its canonical Language value.
// Unrecognized names map to LanguageUnknown.
func ParseLanguage(s string) Language {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rust", "rs":
		return LanguageRust
	case "python", "py":
		return LanguagePython
	case "javascript", "js", "jsx":
		return LanguageJavaScript
	case "typescript", "ts", "tsx":
		return LanguageTypeScript
	case "go", "golang":
		return LanguageGo
	case "java":
		return LanguageJava
	case "hcl", "terraform", "tf":
		return LanguageHCL
	case "markdown", "md":
		return LanguageMarkdown
	default:
		return LanguageUnknown
	}
}

// LanguageFromPath detects a language from a file path's extension.
func LanguageFromPath(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".rs":
		return LanguageRust
	case ".py", ".pyi":
		return LanguagePython
	case ".js", ".mjs", ".cjs", ".jsx":
		return LanguageJavaScript
	case ".ts", ".mts", ".cts", ".tsx":
		return LanguageTypeScript
	case ".go":
		return LanguageGo
	case ".java":
		return LanguageJava
	case ".tf", ".hcl":
		return LanguageHCL
	case ".md", ".markdown":
		return LanguageMarkdown
	default:
		return LanguageUnknown
	}
}

// String implements fmt.Stringer.
func (l Language) String() string {
	return string(l)
}

// Known reports whether the language has a registered grammar.
func (l Language) Known() bool {
	return l != LanguageUnknown && l != ""
}
