package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/dshills/codemate/pkg/types"
)

// pythonExtractor handles Python source files.
type pythonExtractor struct{}

func (e *pythonExtractor) Language() types.Language { return types.LanguagePython }

func (e *pythonExtractor) Extract(src []byte, root *sitter.Node) *FileExtract {
	out := &FileExtract{Language: types.LanguagePython}

	eachTopLevel(root, out, func(n *sitter.Node) {
		switch n.Type() {
		case "function_definition":
			out.Definitions = append(out.Definitions, e.function(n, src, types.KindFunction, ""))
		case "decorated_definition":
			if inner := n.ChildByFieldName("definition"); inner != nil {
				switch inner.Type() {
				case "function_definition":
					out.Definitions = append(out.Definitions, e.function(inner, src, types.KindFunction, ""))
				case "class_definition":
					e.addClass(out, inner, src)
				}
			}
		case "class_definition":
			e.addClass(out, n, src)
		case "import_statement", "import_from_statement":
			e.addImport(out, n, src)
		}
	})
	return out
}

func (e *pythonExtractor) function(n *sitter.Node, src []byte, kind types.ChunkKind, prefix string) Definition {
	name := text(n.ChildByFieldName("name"), src)
	if prefix != "" {
		name = prefix + "." + name
	}
	def := newDefinition(n, src, kind, name)
	def.Signature = signatureOf(n, src)
	def.Docstring = pyDocstring(n, src)
	def.Calls = collectCalls(n, src, "call", "function")
	return def
}

// addClass emits the class and each of its methods as definitions.
func (e *pythonExtractor) addClass(out *FileExtract, n *sitter.Node, src []byte) {
	name := text(n.ChildByFieldName("name"), src)
	def := newDefinition(n, src, types.KindClass, name)
	def.Signature = signatureOf(n, src)
	def.Docstring = pyDocstring(n, src)
	if supers := n.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			base := strings.TrimSpace(text(supers.NamedChild(i), src))
			if base != "" {
				def.Extends = append(def.Extends, base)
			}
		}
	}
	out.Definitions = append(out.Definitions, def)

	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		item := body.NamedChild(i)
		if item.Type() == "decorated_definition" {
			if inner := item.ChildByFieldName("definition"); inner != nil {
				item = inner
			}
		}
		if item.Type() == "function_definition" {
			out.Definitions = append(out.Definitions, e.function(item, src, types.KindMethod, name))
		}
	}
}

func (e *pythonExtractor) addImport(out *FileExtract, n *sitter.Node, src []byte) {
	if n.Type() == "import_from_statement" {
		if mod := n.ChildByFieldName("module_name"); mod != nil {
			out.Imports = append(out.Imports, Import{Path: text(mod, src), Line: lineOf(n)})
		}
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			out.Imports = append(out.Imports, Import{Path: text(child, src), Line: lineOf(n)})
		case "aliased_import":
			if name := child.ChildByFieldName("name"); name != nil {
				out.Imports = append(out.Imports, Import{Path: text(name, src), Line: lineOf(n)})
			}
		}
	}
}

// pyDocstring returns the leading string literal of a function or class
// body, with its quotes stripped.
func pyDocstring(n *sitter.Node, src []byte) string {
	body := n.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Type() != "string" {
		return ""
	}
	return strings.TrimSpace(stripQuotes(text(str, src)))
}
