package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/dshills/codemate/pkg/types"
)

// tsExtractor handles TypeScript and JavaScript source files. The two
// grammars share the node types this extractor touches.
type tsExtractor struct {
	lang types.Language
}

func (e *tsExtractor) Language() types.Language { return e.lang }

func (e *tsExtractor) Extract(src []byte, root *sitter.Node) *FileExtract {
	out := &FileExtract{Language: e.lang}

	eachTopLevel(root, out, func(n *sitter.Node) {
		e.extractNode(out, n, src)
	})
	return out
}

func (e *tsExtractor) extractNode(out *FileExtract, n *sitter.Node, src []byte) {
	switch n.Type() {
	case "export_statement":
		if decl := n.ChildByFieldName("declaration"); decl != nil {
			e.extractNode(out, decl, src)
		}
	case "function_declaration", "generator_function_declaration":
		e.addFunction(out, n, src, text(n.ChildByFieldName("name"), src))
	case "class_declaration":
		e.addClass(out, n, src)
	case "interface_declaration":
		name := text(n.ChildByFieldName("name"), src)
		def := newDefinition(n, src, types.KindInterface, name)
		def.Signature = signatureOf(n, src)
		def.Docstring = leadingComment(n, src)
		out.Definitions = append(out.Definitions, def)
	case "type_alias_declaration":
		name := text(n.ChildByFieldName("name"), src)
		def := newDefinition(n, src, types.KindTypeAlias, name)
		def.Signature = signatureOf(n, src)
		def.Docstring = leadingComment(n, src)
		out.Definitions = append(out.Definitions, def)
	case "lexical_declaration", "variable_declaration":
		e.addArrowFunctions(out, n, src)
	case "import_statement":
		if source := n.ChildByFieldName("source"); source != nil {
			out.Imports = append(out.Imports, Import{
				Path: stripQuotes(text(source, src)),
				Line: lineOf(n),
			})
		}
	}
}

func (e *tsExtractor) addFunction(out *FileExtract, n *sitter.Node, src []byte, name string) {
	def := newDefinition(n, src, types.KindFunction, name)
	def.Signature = signatureOf(n, src)
	def.Docstring = leadingComment(n, src)
	def.Calls = collectCalls(n, src, "call_expression", "function")
	out.Definitions = append(out.Definitions, def)
}

// addArrowFunctions lifts `const f = () => {}` declarations into named
// function definitions.
func (e *tsExtractor) addArrowFunctions(out *FileExtract, n *sitter.Node, src []byte) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		decl := n.NamedChild(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		value := decl.ChildByFieldName("value")
		if value == nil {
			continue
		}
		switch value.Type() {
		case "arrow_function", "function_expression", "function":
			name := text(decl.ChildByFieldName("name"), src)
			def := newDefinition(n, src, types.KindFunction, name)
			def.Signature = signatureOf(value, src)
			def.Docstring = leadingComment(n, src)
			def.Calls = collectCalls(value, src, "call_expression", "function")
			out.Definitions = append(out.Definitions, def)
		}
	}
}

// addClass emits the class and its methods as separate definitions.
func (e *tsExtractor) addClass(out *FileExtract, n *sitter.Node, src []byte) {
	name := text(n.ChildByFieldName("name"), src)
	def := newDefinition(n, src, types.KindClass, name)
	def.Signature = signatureOf(n, src)
	def.Docstring = leadingComment(n, src)
	e.classHeritage(n, src, &def)
	out.Definitions = append(out.Definitions, def)

	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		item := body.NamedChild(i)
		if item.Type() != "method_definition" {
			continue
		}
		methodName := text(item.ChildByFieldName("name"), src)
		if name != "" {
			methodName = name + "." + methodName
		}
		method := newDefinition(item, src, types.KindMethod, methodName)
		method.Signature = signatureOf(item, src)
		method.Docstring = leadingComment(item, src)
		method.Calls = collectCalls(item, src, "call_expression", "function")
		out.Definitions = append(out.Definitions, method)
	}
}

// classHeritage records extends and implements clauses.
func (e *tsExtractor) classHeritage(n *sitter.Node, src []byte, def *Definition) {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() != "class_heritage" {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			clause := child.NamedChild(j)
			names := heritageNames(clause, src)
			switch clause.Type() {
			case "extends_clause":
				def.Extends = append(def.Extends, names...)
			case "implements_clause":
				def.Implements = append(def.Implements, names...)
			}
		}
		// JavaScript puts the superclass expression directly under
		// class_heritage without a clause wrapper.
		if child.NamedChildCount() > 0 {
			first := child.NamedChild(0)
			if first.Type() != "extends_clause" && first.Type() != "implements_clause" {
				if name := strings.TrimSpace(text(first, src)); name != "" {
					def.Extends = append(def.Extends, name)
				}
			}
		}
	}
}

func heritageNames(clause *sitter.Node, src []byte) []string {
	var names []string
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		if name := strings.TrimSpace(text(clause.NamedChild(i), src)); name != "" {
			names = append(names, name)
		}
	}
	return names
}
