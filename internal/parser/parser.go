package parser

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/dshills/codemate/pkg/types"
)

// grammars maps languages to their tree-sitter grammar. Languages
// without an entry fall back to whole-file chunking upstream.
var grammars = map[types.Language]*sitter.Language{
	types.LanguageGo:         golang.GetLanguage(),
	types.LanguageRust:       rust.GetLanguage(),
	types.LanguagePython:     python.GetLanguage(),
	types.LanguageJavaScript: javascript.GetLanguage(),
	types.LanguageTypeScript: typescript.GetLanguage(),
	types.LanguageJava:       java.GetLanguage(),
}

// Parser parses source files into tree-sitter syntax trees.
type Parser struct{}

// New creates a new Parser instance
func New() *Parser {
	return &Parser{}
}

// Grammar returns the tree-sitter grammar for a language, or nil when
// the language has no registered grammar.
func Grammar(lang types.Language) *sitter.Language {
	return grammars[lang]
}

// Supported reports whether a grammar is registered for the language.
func Supported(lang types.Language) bool {
	return grammars[lang] != nil
}

// Parse parses content with the grammar for lang. The returned tree may
// contain ERROR nodes; callers extract what they can around them. The
// caller owns the tree and must Close it.
func (p *Parser) Parse(ctx context.Context, lang types.Language, content []byte) (*sitter.Tree, error) {
	grammar := grammars[lang]
	if grammar == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoGrammar, lang)
	}

	sp := sitter.NewParser()
	defer sp.Close()
	sp.SetLanguage(grammar)

	tree, err := sp.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse failed: %w", err)
	}
	return tree, nil
}
