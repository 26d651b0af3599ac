package analyze

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// scriptInfo holds the top-level named exports of a JavaScript file.
type scriptInfo struct {
	Exports []namedLine

	// SyntaxErrorLine is the first line tree-sitter could not parse;
	// zero when the file is well-formed.
	SyntaxErrorLine int
}

// parseScript extracts exported names without evaluating the file.
func parseScript(ctx context.Context, src []byte) (*scriptInfo, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse javascript: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	info := &scriptInfo{}
	if root.HasError() {
		info.SyntaxErrorLine = firstErrorLine(root)
	}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		if node.Type() != "export_statement" {
			continue
		}
		info.Exports = append(info.Exports, exportedNames(node, src)...)
	}
	return info, nil
}

// exportedNames handles `export function f`, `export const a = ...` and
// `export { a, b as c }`. Default exports carry no name and are skipped.
func exportedNames(node *sitter.Node, src []byte) []namedLine {
	var out []namedLine
	add := func(n *sitter.Node) {
		if n == nil {
			return
		}
		out = append(out, namedLine{Name: n.Content(src), Line: int(n.StartPoint().Row) + 1})
	}

	if decl := node.ChildByFieldName("declaration"); decl != nil {
		switch decl.Type() {
		case "function_declaration", "generator_function_declaration", "class_declaration":
			add(decl.ChildByFieldName("name"))
		case "lexical_declaration", "variable_declaration":
			for j := 0; j < int(decl.NamedChildCount()); j++ {
				declarator := decl.NamedChild(j)
				if declarator.Type() != "variable_declarator" {
					continue
				}
				if name := declarator.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
					add(name)
				}
			}
		}
		return out
	}

	for j := 0; j < int(node.NamedChildCount()); j++ {
		clause := node.NamedChild(j)
		if clause.Type() != "export_clause" {
			continue
		}
		for k := 0; k < int(clause.NamedChildCount()); k++ {
			specifier := clause.NamedChild(k)
			if specifier.Type() != "export_specifier" {
				continue
			}
			if alias := specifier.ChildByFieldName("alias"); alias != nil {
				add(alias)
			} else {
				add(specifier.ChildByFieldName("name"))
			}
		}
	}
	return out
}

// firstErrorLine walks the tree depth-first for the first ERROR or
// MISSING node.
func firstErrorLine(node *sitter.Node) int {
	if node.IsError() || node.IsMissing() {
		return int(node.StartPoint().Row) + 1
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil || !child.HasError() && !child.IsMissing() {
			continue
		}
		if line := firstErrorLine(child); line > 0 {
			return line
		}
	}
	return 1
}
