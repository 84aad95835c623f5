package parser

import (
	"bytes"
	"errors"
	"strings"

	"github.com/dshills/codemate/pkg/types"
)

// ErrNoGrammar indicates the language has no registered tree-sitter grammar.
var ErrNoGrammar = errors.New("no grammar registered for language")

// DetectLanguage identifies a file's language. The extension wins when
// it is recognized; otherwise the first line is sniffed for a shebang.
func DetectLanguage(path string, content []byte) types.Language {
	if lang := types.LanguageFromPath(path); lang != types.LanguageUnknown {
		return lang
	}
	return sniffShebang(content)
}

// sniffShebang inspects a "#!" first line for a known interpreter.
func sniffShebang(content []byte) types.Language {
	if !bytes.HasPrefix(content, []byte("#!")) {
		return types.LanguageUnknown
	}
	line := content
	if idx := bytes.IndexByte(content, '\n'); idx >= 0 {
		line = content[:idx]
	}
	s := string(line)
	switch {
	case strings.Contains(s, "python"):
		return types.LanguagePython
	case strings.Contains(s, "node"):
		return types.LanguageJavaScript
	default:
		return types.LanguageUnknown
	}
}
