package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/dshills/codemate/pkg/types"
)

// javaExtractor handles Java source files.
type javaExtractor struct{}

func (e *javaExtractor) Language() types.Language { return types.LanguageJava }

func (e *javaExtractor) Extract(src []byte, root *sitter.Node) *FileExtract {
	out := &FileExtract{Language: types.LanguageJava}

	eachTopLevel(root, out, func(n *sitter.Node) {
		switch n.Type() {
		case "class_declaration":
			e.addClass(out, n, src)
		case "interface_declaration":
			e.addType(out, n, src, types.KindInterface)
		case "enum_declaration":
			e.addType(out, n, src, types.KindEnum)
		case "import_declaration":
			path := strings.TrimSpace(strings.TrimSuffix(
				strings.TrimPrefix(text(n, src), "import"), ";"))
			path = strings.TrimSpace(strings.TrimPrefix(path, "static"))
			if path != "" {
				out.Imports = append(out.Imports, Import{Path: path, Line: lineOf(n)})
			}
		}
	})
	return out
}

func (e *javaExtractor) addType(out *FileExtract, n *sitter.Node, src []byte, kind types.ChunkKind) {
	name := text(n.ChildByFieldName("name"), src)
	def := newDefinition(n, src, kind, name)
	def.Signature = signatureOf(n, src)
	def.Docstring = leadingComment(n, src)
	out.Definitions = append(out.Definitions, def)
}

// addClass emits the class, its heritage, and its methods.
func (e *javaExtractor) addClass(out *FileExtract, n *sitter.Node, src []byte) {
	name := text(n.ChildByFieldName("name"), src)
	def := newDefinition(n, src, types.KindClass, name)
	def.Signature = signatureOf(n, src)
	def.Docstring = leadingComment(n, src)

	if super := n.ChildByFieldName("superclass"); super != nil {
		base := strings.TrimSpace(strings.TrimPrefix(text(super, src), "extends"))
		if base != "" {
			def.Extends = append(def.Extends, base)
		}
	}
	if ifaces := n.ChildByFieldName("interfaces"); ifaces != nil {
		for i := 0; i < int(ifaces.NamedChildCount()); i++ {
			list := ifaces.NamedChild(i)
			for j := 0; j < int(list.NamedChildCount()); j++ {
				if iname := strings.TrimSpace(text(list.NamedChild(j), src)); iname != "" {
					def.Implements = append(def.Implements, iname)
				}
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
		if item.Type() != "method_declaration" && item.Type() != "constructor_declaration" {
			continue
		}
		methodName := text(item.ChildByFieldName("name"), src)
		if name != "" {
			methodName = name + "#" + methodName
		}
		method := newDefinition(item, src, types.KindMethod, methodName)
		method.Signature = signatureOf(item, src)
		method.Docstring = leadingComment(item, src)
		method.Calls = collectCalls(item, src, "method_invocation", "name")
		out.Definitions = append(out.Definitions, method)
	}
}
