// Package parse extracts structural facts from Python source using tree-sitter.
package parse

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/pcheng/rulemap/internal/model"
)

// ErrSyntax reports that a file's content could not be parsed as valid
// Python. The caller decides how to degrade; traversal continues.
var ErrSyntax = errors.New("syntax error")

// Result holds the structural facts for one parsed file.
type Result struct {
	Functions []model.FunctionRecord
	Classes   []model.ClassRecord
	Imports   []string
}

// Parser wraps a tree-sitter parser configured for Python. Not safe for
// concurrent use; the pipeline is sequential so one instance suffices.
type Parser struct {
	parser *sitter.Parser
}

// NewParser creates a Python structural parser.
func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Parser{parser: p}
}

// File parses source and extracts functions, classes and imports.
// Returns ErrSyntax when the tree contains error nodes.
func (p *Parser) File(ctx context.Context, source []byte) (*Result, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, ErrSyntax
	}

	lines := strings.Split(string(source), "\n")
	res := &Result{}
	imports := make(map[string]struct{})

	collect(root, source, lines, res, imports)

	for imp := range imports {
		res.Imports = append(res.Imports, imp)
	}
	sort.Strings(res.Imports)

	return res, nil
}

// collect walks the whole tree. Methods and nested functions appear in the
// file-level function list, the same way a full AST walk reports them.
func collect(node *sitter.Node, source []byte, lines []string, res *Result, imports map[string]struct{}) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "function_definition":
			res.Functions = append(res.Functions, extractFunction(child, source, lines))
		case "class_definition":
			res.Classes = append(res.Classes, extractClass(child, source, lines))
		case "import_statement", "import_from_statement":
			for _, imp := range normalizeImports(child, source) {
				imports[imp] = struct{}{}
			}
		}
		collect(child, source, lines, res, imports)
	}
}

func extractFunction(node *sitter.Node, source []byte, lines []string) model.FunctionRecord {
	defRow := int(node.StartPoint().Row)
	endLine := int(node.EndPoint().Row) + 1

	decorators, spanStart := decoratorLines(node, lines, defRow)

	return model.FunctionRecord{
		Name:        fieldText(node, "name", source),
		Args:        parameterNames(node.ChildByFieldName("parameters"), source),
		Decorators:  decorators,
		IsAsync:     isAsync(node),
		LineStart:   defRow + 1,
		LineEnd:     endLine,
		CodeSnippet: span(lines, spanStart, endLine),
		Docstring:   bodyDocstring(node.ChildByFieldName("body"), source),
	}
}

func extractClass(node *sitter.Node, source []byte, lines []string) model.ClassRecord {
	defRow := int(node.StartPoint().Row)
	endLine := int(node.EndPoint().Row) + 1

	// Decorators are not recorded for classes, but they still anchor the
	// code span when present.
	_, spanStart := decoratorLines(node, lines, defRow)

	var bases []string
	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			arg := nodeText(supers.NamedChild(i), source)
			// Keyword arguments such as metaclass=... are not bases.
			if !strings.Contains(arg, "=") {
				bases = append(bases, arg)
			}
		}
	}

	var methods []string
	body := node.ChildByFieldName("body")
	if body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			child := body.NamedChild(i)
			switch child.Type() {
			case "function_definition":
				methods = append(methods, fieldText(child, "name", source))
			case "decorated_definition":
				if def := definitionIn(child); def != nil && def.Type() == "function_definition" {
					methods = append(methods, fieldText(def, "name", source))
				}
			}
		}
	}

	return model.ClassRecord{
		Name:        fieldText(node, "name", source),
		Bases:       bases,
		Methods:     methods,
		LineStart:   defRow + 1,
		LineEnd:     endLine,
		CodeSnippet: span(lines, spanStart, endLine),
		Docstring:   bodyDocstring(body, source),
	}
}

// decoratorLines implements the hybrid decorator strategy. The primary pass
// scans raw lines upward from the definition, which preserves each
// decorator's exact source text. When that yields nothing (multi-line
// decorator calls break the upward scan) the tree's decorator nodes supply
// the lines instead. The returned span start is the first decorator row,
// or the definition row when there are none.
func decoratorLines(node *sitter.Node, lines []string, defRow int) ([]string, int) {
	var decorators []string
	row := defRow - 1
	for row >= 0 {
		trimmed := strings.TrimSpace(lines[row])
		if !strings.HasPrefix(trimmed, "@") {
			break
		}
		decorators = append([]string{trimmed}, decorators...)
		row--
	}
	spanStart := row + 1

	if len(decorators) == 0 {
		if parent := node.Parent(); parent != nil && parent.Type() == "decorated_definition" {
			first := -1
			for i := 0; i < int(parent.NamedChildCount()); i++ {
				child := parent.NamedChild(i)
				if child.Type() != "decorator" {
					continue
				}
				r := int(child.StartPoint().Row)
				if r < len(lines) {
					decorators = append(decorators, strings.TrimSpace(lines[r]))
					if first == -1 {
						first = r
					}
				}
			}
			if first >= 0 {
				spanStart = first
			}
		}
	}

	return decorators, spanStart
}

func parameterNames(params *sitter.Node, source []byte) []string {
	if params == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		child := params.NamedChild(i)
		switch child.Type() {
		case "identifier":
			names = append(names, nodeText(child, source))
		case "default_parameter", "typed_default_parameter":
			if name := child.ChildByFieldName("name"); name != nil {
				names = append(names, nodeText(name, source))
			}
		case "typed_parameter":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				if inner := child.NamedChild(j); inner.Type() == "identifier" {
					names = append(names, nodeText(inner, source))
					break
				}
			}
		}
	}
	return names
}

// normalizeImports canonicalizes one import statement into
// "import X" / "from M import X" strings. Aliases are dropped: what matters
// is the imported-by relationship, not the local name.
func normalizeImports(node *sitter.Node, source []byte) []string {
	var out []string

	switch node.Type() {
	case "import_statement":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			switch child.Type() {
			case "dotted_name":
				out = append(out, "import "+nodeText(child, source))
			case "aliased_import":
				if name := child.ChildByFieldName("name"); name != nil {
					out = append(out, "import "+nodeText(name, source))
				}
			}
		}

	case "import_from_statement":
		moduleNode := node.ChildByFieldName("module_name")
		if moduleNode == nil {
			return nil
		}
		module := nodeText(moduleNode, source)
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.StartByte() == moduleNode.StartByte() {
				continue
			}
			switch child.Type() {
			case "dotted_name":
				out = append(out, "from "+module+" import "+nodeText(child, source))
			case "aliased_import":
				if name := child.ChildByFieldName("name"); name != nil {
					out = append(out, "from "+module+" import "+nodeText(name, source))
				}
			case "wildcard_import":
				out = append(out, "from "+module+" import *")
			}
		}
	}

	return out
}

func isAsync(node *sitter.Node) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "async" {
			return true
		}
	}
	return false
}

func definitionIn(decorated *sitter.Node) *sitter.Node {
	for i := 0; i < int(decorated.NamedChildCount()); i++ {
		child := decorated.NamedChild(i)
		switch child.Type() {
		case "function_definition", "class_definition":
			return child
		}
	}
	return nil
}

func bodyDocstring(body *sitter.Node, source []byte) string {
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	expr := first.NamedChild(0)
	if expr.Type() != "string" {
		return ""
	}
	return stripQuotes(nodeText(expr, source))
}

func stripQuotes(raw string) string {
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(raw, q) && strings.HasSuffix(raw, q) && len(raw) >= 2*len(q) {
			return strings.TrimSpace(raw[len(q) : len(raw)-len(q)])
		}
	}
	return strings.TrimSpace(raw)
}

// span joins lines[start:end] (0-based start, exclusive end), clamped to
// the file.
func span(lines []string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return ""
	}
	return strings.Join(lines[start:end], "\n")
}

func fieldText(node *sitter.Node, field string, source []byte) string {
	child := node.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return nodeText(child, source)
}

func nodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
