package tsengine

import (
	"fmt"
	"sort"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"weave/internal/core/ports"
	"weave/internal/engine/unit"
)

const (
	codeTokenExpected      = 1005
	codeExpressionExpected = 1109
	codeDuplicate          = 2300
	codeFileNotFound       = 6053
	codeImplicitAny        = 7006
)

func syntaxDiagnostics(doc *document) []ports.EngineDiagnostic {
	root := doc.Root()
	if root == nil || !root.HasError() {
		return nil
	}
	var diags []ports.EngineDiagnostic
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch {
		case n.IsMissing():
			diags = append(diags, ports.EngineDiagnostic{
				Start:    int(n.StartByte()),
				Message:  fmt.Sprintf("'%s' expected.", n.Kind()),
				Code:     codeTokenExpected,
				Category: unit.CategoryError,
			})
			return
		case n.IsError():
			diags = append(diags, ports.EngineDiagnostic{
				Start:    int(n.StartByte()),
				Length:   int(n.EndByte() - n.StartByte()),
				Message:  "Expression expected.",
				Code:     codeExpressionExpected,
				Category: unit.CategoryError,
			})
			return
		}
		if !n.HasError() {
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return diags
}

// TypeCheck runs the program-wide checks and stores their results per unit:
// unresolved reference directives, duplicate global declarations and, when
// enabled, parameters without a type.
func (e *Engine) TypeCheck() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	docs := e.documents()
	semantic := make(map[string][]ports.EngineDiagnostic, len(docs))
	add := func(path string, d ports.EngineDiagnostic) {
		semantic[path] = append(semantic[path], d)
	}

	for _, doc := range docs {
		for _, ref := range unit.ScanReferences(string(doc.source)) {
			target := unit.NewLoadParameter(doc.path, ref.Path).Filename
			if _, ok := e.docs[target]; ok {
				continue
			}
			add(doc.path, ports.EngineDiagnostic{
				Start:    ref.Offset,
				Length:   len(ref.Path),
				Message:  fmt.Sprintf("File '%s' not found.", target),
				Code:     codeFileNotFound,
				Category: unit.CategoryError,
			})
		}
	}

	for _, dup := range duplicateDeclarations(docs) {
		add(dup.path, ports.EngineDiagnostic{
			Start:    dup.start,
			Length:   dup.length,
			Message:  fmt.Sprintf("Duplicate identifier '%s'.", dup.name),
			Code:     codeDuplicate,
			Category: unit.CategoryError,
		})
	}

	if e.opts.NoImplicitAny {
		for _, doc := range docs {
			for _, p := range implicitAnyParameters(doc) {
				add(doc.path, ports.EngineDiagnostic{
					Start:    int(p.StartByte()),
					Length:   int(p.EndByte() - p.StartByte()),
					Message:  fmt.Sprintf("Parameter '%s' implicitly has an 'any' type.", doc.text(p)),
					Code:     codeImplicitAny,
					Category: unit.CategoryError,
				})
			}
		}
	}

	for path := range semantic {
		sort.SliceStable(semantic[path], func(i, j int) bool {
			return semantic[path][i].Start < semantic[path][j].Start
		})
	}
	e.semantic = semantic
	return nil
}

type declaration struct {
	path   string
	name   string
	start  int
	length int
}

// duplicateDeclarations finds global classes, functions and block-scoped
// variables declared more than once across script units. Units with
// top-level imports or exports are modules with their own scope and are
// skipped.
func duplicateDeclarations(docs []*document) []declaration {
	byName := make(map[string][]declaration)
	var names []string
	record := func(doc *document, nameNode *sitter.Node) {
		if nameNode == nil {
			return
		}
		name := doc.text(nameNode)
		if _, seen := byName[name]; !seen {
			names = append(names, name)
		}
		byName[name] = append(byName[name], declaration{
			path:   doc.path,
			name:   name,
			start:  int(nameNode.StartByte()),
			length: int(nameNode.EndByte() - nameNode.StartByte()),
		})
	}

	for _, doc := range docs {
		root := doc.Root()
		if isModule(root) {
			continue
		}
		for i := uint(0); i < root.NamedChildCount(); i++ {
			stmt := root.NamedChild(i)
			switch stmt.Kind() {
			case "class_declaration", "abstract_class_declaration", "function_declaration", "generator_function_declaration":
				record(doc, stmt.ChildByFieldName("name"))
			case "lexical_declaration":
				for j := uint(0); j < stmt.NamedChildCount(); j++ {
					decl := stmt.NamedChild(j)
					if decl.Kind() != "variable_declarator" {
						continue
					}
					if name := decl.ChildByFieldName("name"); name != nil && name.Kind() == "identifier" {
						record(doc, name)
					}
				}
			}
		}
	}

	var dups []declaration
	for _, name := range names {
		if occurrences := byName[name]; len(occurrences) > 1 {
			dups = append(dups, occurrences...)
		}
	}
	return dups
}

func isModule(root *sitter.Node) bool {
	for i := uint(0); i < root.NamedChildCount(); i++ {
		switch root.NamedChild(i).Kind() {
		case "export_statement":
			return true
		case "import_statement":
			return true
		}
	}
	return false
}

// implicitAnyParameters lists parameter patterns of declared functions and
// methods that have neither a type annotation nor a default value.
func implicitAnyParameters(doc *document) []*sitter.Node {
	var out []*sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Kind() {
		case "function_declaration", "function_signature", "generator_function_declaration",
			"method_definition", "method_signature", "abstract_method_signature":
			if !hasToken(n, "set") {
				out = append(out, untypedParameters(n.ChildByFieldName("parameters"))...)
			}
		}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			walk(n.NamedChild(i))
		}
	}
	if root := doc.Root(); root != nil {
		walk(root)
	}
	return out
}

func untypedParameters(params *sitter.Node) []*sitter.Node {
	if params == nil {
		return nil
	}
	var out []*sitter.Node
	for i := uint(0); i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		if p.Kind() != "required_parameter" && p.Kind() != "optional_parameter" {
			continue
		}
		if p.ChildByFieldName("type") != nil || p.ChildByFieldName("value") != nil {
			continue
		}
		pattern := p.ChildByFieldName("pattern")
		if pattern == nil || pattern.Kind() == "this" {
			continue
		}
		if pattern.Kind() == "rest_pattern" {
			if inner := pattern.NamedChild(0); inner != nil {
				pattern = inner
			}
		}
		out = append(out, pattern)
	}
	return out
}
