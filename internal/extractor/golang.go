package extractor

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/dshills/codemate/pkg/types"
)

// goExtractor handles Go source files.
type goExtractor struct{}

func (e *goExtractor) Language() types.Language { return types.LanguageGo }

func (e *goExtractor) Extract(src []byte, root *sitter.Node) *FileExtract {
	out := &FileExtract{Language: types.LanguageGo}

	eachTopLevel(root, out, func(n *sitter.Node) {
		switch n.Type() {
		case "function_declaration":
			e.addDefinition(out, n, src, types.KindFunction)
		case "method_declaration":
			e.addDefinition(out, n, src, types.KindMethod)
		case "type_declaration":
			e.addTypeDecl(out, n, src)
		case "const_declaration":
			def := newDefinition(n, src, types.KindConstant, firstSpecName(n, src))
			def.Signature = signatureOf(n, src)
			def.Docstring = leadingComment(n, src)
			out.Definitions = append(out.Definitions, def)
		case "import_declaration":
			e.addImports(out, n, src)
		}
	})
	return out
}

func (e *goExtractor) addDefinition(out *FileExtract, n *sitter.Node, src []byte, kind types.ChunkKind) {
	name := text(n.ChildByFieldName("name"), src)
	def := newDefinition(n, src, kind, name)
	def.Signature = signatureOf(n, src)
	def.Docstring = leadingComment(n, src)
	def.Calls = collectCalls(n, src, "call_expression", "function")
	out.Definitions = append(out.Definitions, def)
}

// addTypeDecl classifies each type_spec as struct, interface, or alias.
func (e *goExtractor) addTypeDecl(out *FileExtract, n *sitter.Node, src []byte) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		spec := n.NamedChild(i)
		if spec.Type() != "type_spec" && spec.Type() != "type_alias" {
			continue
		}
		kind := types.KindTypeAlias
		if t := spec.ChildByFieldName("type"); t != nil {
			switch t.Type() {
			case "struct_type":
				kind = types.KindStruct
			case "interface_type":
				kind = types.KindInterface
			}
		}
		name := text(spec.ChildByFieldName("name"), src)
		def := newDefinition(n, src, kind, name)
		def.Signature = signatureOf(spec, src)
		def.Docstring = leadingComment(n, src)
		out.Definitions = append(out.Definitions, def)
	}
}

func (e *goExtractor) addImports(out *FileExtract, n *sitter.Node, src []byte) {
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		if node.Type() == "import_spec" {
			if path := node.ChildByFieldName("path"); path != nil {
				out.Imports = append(out.Imports, Import{
					Path: stripQuotes(text(path, src)),
					Line: lineOf(node),
				})
			}
			return
		}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			walk(node.NamedChild(i))
		}
	}
	walk(n)
}

// firstSpecName returns the first declared name in a const or var block.
func firstSpecName(n *sitter.Node, src []byte) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		spec := n.NamedChild(i)
		if spec.Type() == "const_spec" || spec.Type() == "var_spec" {
			if name := spec.ChildByFieldName("name"); name != nil {
				return text(name, src)
			}
		}
	}
	return ""
}
