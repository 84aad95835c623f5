package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/dshills/codemate/pkg/types"
)

// rustExtractor handles Rust source files.
type rustExtractor struct{}

func (e *rustExtractor) Language() types.Language { return types.LanguageRust }

// rustDefKinds maps top-level Rust item node types to chunk kinds.
var rustDefKinds = map[string]types.ChunkKind{
	"function_item": types.KindFunction,
	"struct_item":   types.KindStruct,
	"enum_item":     types.KindEnum,
	"trait_item":    types.KindTrait,
	"mod_item":      types.KindModule,
	"const_item":    types.KindConstant,
	"static_item":   types.KindConstant,
	"type_item":     types.KindTypeAlias,
}

func (e *rustExtractor) Extract(src []byte, root *sitter.Node) *FileExtract {
	out := &FileExtract{Language: types.LanguageRust}
	e.extractItems(out, root, src)
	return out
}

// extractItems walks one item scope. Inline modules recurse so nested
// definitions are still captured individually.
func (e *rustExtractor) extractItems(out *FileExtract, scope *sitter.Node, src []byte) {
	eachTopLevel(scope, out, func(n *sitter.Node) {
		switch n.Type() {
		case "impl_item":
			e.addImpl(out, n, src)
		case "use_declaration":
			if arg := n.ChildByFieldName("argument"); arg != nil {
				out.Imports = append(out.Imports, Import{Path: text(arg, src), Line: lineOf(n)})
			}
		case "mod_item":
			e.addItem(out, n, src, types.KindModule)
			if body := n.ChildByFieldName("body"); body != nil {
				e.extractItems(out, body, src)
			}
		default:
			if kind, ok := rustDefKinds[n.Type()]; ok {
				e.addItem(out, n, src, kind)
			}
		}
	})
}

func (e *rustExtractor) addItem(out *FileExtract, n *sitter.Node, src []byte, kind types.ChunkKind) *Definition {
	name := text(n.ChildByFieldName("name"), src)
	def := newDefinition(n, src, kind, name)
	def.Signature = signatureOf(n, src)
	def.Docstring = leadingComment(n, src)
	if kind == types.KindFunction {
		def.Calls = collectCalls(n, src, "call_expression", "function")
	}
	out.Definitions = append(out.Definitions, def)
	return &out.Definitions[len(out.Definitions)-1]
}

// addImpl emits the impl block and its methods as separate definitions.
// A trait impl records the trait on the Implements list.
func (e *rustExtractor) addImpl(out *FileExtract, n *sitter.Node, src []byte) {
	typeName := strings.TrimSpace(text(n.ChildByFieldName("type"), src))
	traitName := strings.TrimSpace(text(n.ChildByFieldName("trait"), src))

	def := newDefinition(n, src, types.KindImpl, typeName)
	def.Signature = signatureOf(n, src)
	def.Docstring = leadingComment(n, src)
	if traitName != "" {
		def.Implements = []string{traitName}
	}
	out.Definitions = append(out.Definitions, def)

	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		item := body.NamedChild(i)
		if item.Type() != "function_item" {
			continue
		}
		name := text(item.ChildByFieldName("name"), src)
		if typeName != "" {
			name = typeName + "::" + name
		}
		method := newDefinition(item, src, types.KindMethod, name)
		method.Signature = signatureOf(item, src)
		method.Docstring = leadingComment(item, src)
		method.Calls = collectCalls(item, src, "call_expression", "function")
		out.Definitions = append(out.Definitions, method)
	}
}
