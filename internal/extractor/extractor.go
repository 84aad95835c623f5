package extractor

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/dshills/codemate/internal/parser"
	"github.com/dshills/codemate/pkg/types"
)

// Definition is one extracted top-level construct.
type Definition struct {
	Kind      types.ChunkKind
	Name      string
	Signature string
	Docstring string
	Content   string

	StartByte int
	EndByte   int
	StartLine int // 1-based, inclusive
	EndLine   int

	// Calls are unresolved call targets found inside the definition.
	Calls []CallSite

	// Extends and Implements carry inheritance targets for classes,
	// interfaces, and trait impls.
	Extends    []string
	Implements []string
}

// CallSite is an unresolved call target within a definition.
type CallSite struct {
	Target string
	Line   int
}

// Import is one import statement at file scope.
type Import struct {
	Path string
	Line int
}

// FileExtract is everything pulled from a single file.
type FileExtract struct {
	Language    types.Language
	Definitions []Definition
	Imports     []Import
	Errors      []types.ParseError
}

// Extractor extracts definitions, calls, and imports for one language.
type Extractor interface {
	Language() types.Language
	Extract(src []byte, root *sitter.Node) *FileExtract
}

// extractors is the registry of language extractors.
var extractors = map[types.Language]Extractor{
	types.LanguageGo:         &goExtractor{},
	types.LanguageRust:       &rustExtractor{},
	types.LanguagePython:     &pythonExtractor{},
	types.LanguageTypeScript: &tsExtractor{lang: types.LanguageTypeScript},
	types.LanguageJavaScript: &tsExtractor{lang: types.LanguageJavaScript},
	types.LanguageJava:       &javaExtractor{},
}

// ForLanguage returns the extractor for lang, or nil when none exists.
func ForLanguage(lang types.Language) Extractor {
	return extractors[lang]
}

// ExtractFile parses src and runs the language extractor. path is used
// only for error attribution.
func ExtractFile(ctx context.Context, p *parser.Parser, path string, lang types.Language, src []byte) (*FileExtract, error) {
	ex := extractors[lang]
	if ex == nil {
		return nil, fmt.Errorf("%w: %s", parser.ErrNoGrammar, lang)
	}

	tree, err := p.Parse(ctx, lang, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	result := ex.Extract(src, tree.RootNode())
	result.Errors = append(result.Errors, syntaxErrors(tree.RootNode(), src)...)
	for i := range result.Errors {
		if result.Errors[i].File == "" {
			result.Errors[i].File = path
		}
	}
	return result, nil
}

// syntaxErrors walks the tree for ERROR and missing nodes, one entry
// per error region. Tree-sitter recovers around broken regions, so the
// surviving definitions are still extracted; these records report what
// could not be parsed.
func syntaxErrors(root *sitter.Node, src []byte) []types.ParseError {
	if !root.HasError() {
		return nil
	}
	var errs []types.ParseError
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "ERROR" {
			snippet := text(n, src)
			if idx := strings.IndexByte(snippet, '\n'); idx >= 0 {
				snippet = snippet[:idx]
			}
			if len(snippet) > 60 {
				snippet = snippet[:60]
			}
			errs = append(errs, types.ParseError{
				Line:    lineOf(n),
				Message: fmt.Sprintf("syntax error near %q", snippet),
			})
			// Do not descend; nested errors belong to the same region.
			return
		}
		if n.IsMissing() {
			errs = append(errs, types.ParseError{
				Line:    lineOf(n),
				Message: fmt.Sprintf("missing %s", n.Type()),
			})
			return
		}
		if !n.HasError() {
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	if len(errs) == 0 {
		errs = append(errs, types.ParseError{
			Line:    lineOf(root),
			Message: "syntax error",
		})
	}
	return errs
}

// ---- shared helpers ----

func text(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(src)
}

func lineOf(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func endLineOf(n *sitter.Node) int {
	return int(n.EndPoint().Row) + 1
}

// newDefinition fills the span and content fields common to every
// language.
func newDefinition(n *sitter.Node, src []byte, kind types.ChunkKind, name string) Definition {
	return Definition{
		Kind:      kind,
		Name:      name,
		Content:   text(n, src),
		StartByte: int(n.StartByte()),
		EndByte:   int(n.EndByte()),
		StartLine: lineOf(n),
		EndLine:   endLineOf(n),
	}
}

// signatureOf returns the definition text up to its body, or the first
// line when the node has no body field.
func signatureOf(n *sitter.Node, src []byte) string {
	if body := n.ChildByFieldName("body"); body != nil && body.StartByte() > n.StartByte() {
		sig := string(src[n.StartByte():body.StartByte()])
		return strings.TrimSpace(sig)
	}
	content := text(n, src)
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		content = content[:idx]
	}
	return strings.TrimSpace(content)
}

// leadingComment collects the contiguous run of comment siblings
// immediately above n and strips the comment markers.
func leadingComment(n *sitter.Node, src []byte) string {
	var parts []string
	prev := n.PrevNamedSibling()
	endLine := lineOf(n)
	for prev != nil && isCommentNode(prev.Type()) {
		// Only comments directly attached to the definition count.
		if endLineOf(prev) < endLine-1 {
			break
		}
		parts = append([]string{text(prev, src)}, parts...)
		endLine = lineOf(prev)
		prev = prev.PrevNamedSibling()
	}
	if len(parts) == 0 {
		return ""
	}
	return cleanComment(strings.Join(parts, "\n"))
}

func isCommentNode(nodeType string) bool {
	switch nodeType {
	case "comment", "line_comment", "block_comment":
		return true
	}
	return false
}

// cleanComment strips comment markers and normalizes whitespace.
func cleanComment(raw string) string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		for _, marker := range []string{"///", "//!", "//", "#", "/**", "/*", "*/"} {
			if strings.HasPrefix(line, marker) {
				line = strings.TrimPrefix(line, marker)
				break
			}
		}
		line = strings.TrimSuffix(strings.TrimSpace(line), "*/")
		line = strings.TrimPrefix(line, "* ")
		line = strings.TrimPrefix(line, "*")
		out = append(out, strings.TrimSpace(line))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// collectCalls walks the subtree rooted at n gathering call targets.
// callType is the language's call node type and field names the child
// holding the callee expression.
func collectCalls(n *sitter.Node, src []byte, callType, field string) []CallSite {
	var calls []CallSite
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		if node.Type() == callType {
			if callee := node.ChildByFieldName(field); callee != nil {
				target := calleeName(callee, src)
				if target != "" {
					calls = append(calls, CallSite{Target: target, Line: lineOf(node)})
				}
			}
		}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			walk(node.NamedChild(i))
		}
	}
	walk(n)
	return calls
}

// calleeName reduces a callee expression to the identifier actually
// being called: the terminal name of a selector, field, scoped path,
// or attribute expression.
func calleeName(callee *sitter.Node, src []byte) string {
	switch callee.Type() {
	case "selector_expression", "attribute", "member_expression", "field_expression":
		for _, field := range []string{"field", "attribute", "property", "name"} {
			if term := callee.ChildByFieldName(field); term != nil {
				return text(term, src)
			}
		}
	case "scoped_identifier":
		if term := callee.ChildByFieldName("name"); term != nil {
			return text(term, src)
		}
	case "generic_function":
		if fn := callee.ChildByFieldName("function"); fn != nil {
			return calleeName(fn, src)
		}
	}
	name := text(callee, src)
	// Qualified names keep only the terminal segment.
	for _, sep := range []string{"::", "."} {
		if idx := strings.LastIndex(name, sep); idx >= 0 {
			name = name[idx+len(sep):]
		}
	}
	if strings.ContainsAny(name, " \n\t(){}") {
		return ""
	}
	return name
}

// eachTopLevel visits the named children of root, recovering a panic
// per node so one malformed definition cannot drop the file.
func eachTopLevel(root *sitter.Node, out *FileExtract, visit func(n *sitter.Node)) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		func() {
			defer func() {
				if r := recover(); r != nil {
					out.Errors = append(out.Errors, types.ParseError{
						Line:    lineOf(n),
						Message: fmt.Sprintf("extraction panic on %s: %v", n.Type(), r),
					})
				}
			}()
			visit(n)
		}()
	}
}

// stripQuotes removes surrounding string delimiters from an import path.
func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"""`, `'''`, `"`, `'`, "`"} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}
