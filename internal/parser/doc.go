// Package parser turns source files into syntax trees using tree-sitter
// grammars and detects the language of a file.
//
// # Basic Usage
//
//	p := parser.New()
//	tree, err := p.Parse(ctx, types.LanguageRust, content)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tree.Close()
//
// Language detection prefers the file extension; when the extension is
// ambiguous or missing, a content sniff (shebang line) breaks the tie:
//
//	lang := parser.DetectLanguage("scripts/deploy", content)
//
// # Error Handling
//
// tree-sitter is error tolerant. Syntax errors never fail a parse: the
// tree carries ERROR nodes and extraction continues around them, so one
// broken file cannot abort an indexing run.
package parser
