package reflection

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Create builds one Script per document. Type references are resolved after
// every document has been walked, so a type may refer to a class or
// interface declared in any unit of the batch.
func Create(docs []Document) []*Script {
	b := &builder{declared: make(map[string]bool)}
	scripts := make([]*Script, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		script := &Script{Path: doc.Path()}
		if root := doc.Root(); root != nil {
			b.source = doc.Source()
			b.visitScope(root, &script.Scope, "")
		}
		scripts = append(scripts, script)
	}
	b.resolve()
	return scripts
}

type scopedType struct {
	t         *Type
	qualifier string
}

// builder walks statements by recursive descent. The container that new
// records go into is passed down explicitly along with the dotted name of
// the enclosing module.
type builder struct {
	source   []byte
	declared map[string]bool
	types    []scopedType
}

func (b *builder) visitScope(node *sitter.Node, scope *Scope, qualifier string) {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		b.visitStatement(node.NamedChild(i), scope, qualifier, false, nil)
	}
}

// visitStatement dispatches one statement. docNode is the outermost node a
// doc comment may precede, such as the export statement wrapping node.
func (b *builder) visitStatement(node *sitter.Node, scope *Scope, qualifier string, exported bool, docNode *sitter.Node) {
	if node == nil {
		return
	}
	if docNode == nil {
		docNode = node
	}
	switch node.Kind() {
	case "export_statement":
		if decl := node.ChildByFieldName("declaration"); decl != nil {
			b.visitStatement(decl, scope, qualifier, true, docNode)
		}
	case "ambient_declaration":
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			if child.Kind() == "statement_block" {
				b.visitScope(child, scope, qualifier)
				continue
			}
			b.visitStatement(child, scope, qualifier, exported, docNode)
		}
	case "expression_statement":
		if inner := node.NamedChild(0); inner != nil && inner.Kind() == "internal_module" {
			b.visitStatement(inner, scope, qualifier, exported, docNode)
		}
	case "internal_module", "module":
		b.visitModule(node, scope, qualifier, exported, docNode)
	case "class_declaration", "abstract_class_declaration":
		b.visitClass(node, scope, qualifier, exported, docNode)
	case "interface_declaration":
		b.visitInterface(node, scope, qualifier, exported, docNode)
	case "function_declaration", "function_signature", "generator_function_declaration":
		m := b.method(node, qualifier)
		m.Exported = exported
		m.Comment = b.docComment(docNode)
		scope.Methods = append(scope.Methods, m)
	case "lexical_declaration", "variable_declaration":
		scope.Variables = append(scope.Variables, b.variables(node, qualifier, exported, docNode)...)
	case "import_statement", "import_alias":
		if imp := b.importOf(node); imp != nil {
			imp.Exported = exported
			scope.Imports = append(scope.Imports, imp)
		}
	}
}

func (b *builder) visitModule(node *sitter.Node, scope *Scope, qualifier string, exported bool, docNode *sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	var parts []string
	if nameNode.Kind() == "string" {
		parts = []string{unquote(b.text(nameNode))}
	} else {
		parts = strings.Split(compact(b.text(nameNode)), ".")
	}

	var mod *Module
	container := scope
	for i, part := range parts {
		mod = container.module(part)
		if i > 0 || exported {
			mod.Exported = true
		}
		qualifier = join(qualifier, part)
		container = &mod.Scope
	}
	if mod.Comment == "" {
		mod.Comment = b.docComment(docNode)
	}
	if body := node.ChildByFieldName("body"); body != nil {
		b.visitScope(body, &mod.Scope, qualifier)
	}
}

func (b *builder) visitClass(node *sitter.Node, scope *Scope, qualifier string, exported bool, docNode *sitter.Node) {
	c := &Class{
		Name:           b.text(node.ChildByFieldName("name")),
		Comment:        b.docComment(docNode),
		Exported:       exported,
		Abstract:       node.Kind() == "abstract_class_declaration",
		TypeParameters: b.typeParameters(node.ChildByFieldName("type_parameters")),
		Methods:        []*Method{},
		Variables:      []*Variable{},
	}
	b.declared[join(qualifier, c.Name)] = true

	for i := uint(0); i < node.NamedChildCount(); i++ {
		heritage := node.NamedChild(i)
		if heritage.Kind() != "class_heritage" {
			continue
		}
		for j := uint(0); j < heritage.NamedChildCount(); j++ {
			clause := heritage.NamedChild(j)
			switch clause.Kind() {
			case "extends_clause":
				c.Extends = append(c.Extends, b.extendsTypes(clause, qualifier)...)
			case "implements_clause":
				c.Implements = append(c.Implements, b.typeList(clause, qualifier)...)
			}
		}
	}

	body := node.ChildByFieldName("body")
	if body != nil {
		for i := uint(0); i < body.NamedChildCount(); i++ {
			member := body.NamedChild(i)
			switch member.Kind() {
			case "method_definition", "method_signature", "abstract_method_signature":
				m := b.method(member, qualifier)
				m.Comment = b.docComment(member)
				if m.Name == "constructor" {
					c.Constructors = append(c.Constructors, m)
					c.Variables = append(c.Variables, b.parameterProperties(member, qualifier)...)
					continue
				}
				c.Methods = append(c.Methods, m)
			case "public_field_definition":
				c.Variables = append(c.Variables, b.field(member, qualifier))
			}
		}
	}
	scope.Classes = append(scope.Classes, c)
}

func (b *builder) visitInterface(node *sitter.Node, scope *Scope, qualifier string, exported bool, docNode *sitter.Node) {
	iface := &Interface{
		Name:           b.text(node.ChildByFieldName("name")),
		Comment:        b.docComment(docNode),
		Exported:       exported,
		TypeParameters: b.typeParameters(node.ChildByFieldName("type_parameters")),
		Methods:        []*Method{},
		Variables:      []*Variable{},
	}
	b.declared[join(qualifier, iface.Name)] = true

	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() == "extends_type_clause" {
			iface.Extends = append(iface.Extends, b.typeList(child, qualifier)...)
		}
	}

	if body := node.ChildByFieldName("body"); body != nil {
		for i := uint(0); i < body.NamedChildCount(); i++ {
			member := body.NamedChild(i)
			switch member.Kind() {
			case "method_signature":
				m := b.method(member, qualifier)
				m.Comment = b.docComment(member)
				iface.Methods = append(iface.Methods, m)
			case "property_signature":
				iface.Variables = append(iface.Variables, b.field(member, qualifier))
			}
		}
	}
	scope.Interfaces = append(scope.Interfaces, iface)
}

// method reads any function-like node: declarations, signatures and class
// methods.
func (b *builder) method(node *sitter.Node, qualifier string) *Method {
	return &Method{
		Name:           propertyName(b.text(node.ChildByFieldName("name"))),
		Static:         hasToken(node, "static"),
		Abstract:       node.Kind() == "abstract_method_signature" || hasToken(node, "abstract"),
		Optional:       hasToken(node, "?"),
		Access:         b.accessibility(node),
		TypeParameters: b.typeParameters(node.ChildByFieldName("type_parameters")),
		Parameters:     b.parameters(node.ChildByFieldName("parameters"), qualifier),
		Returns:        b.returnType(node.ChildByFieldName("return_type"), qualifier),
	}
}

func (b *builder) parameters(node *sitter.Node, qualifier string) []*Parameter {
	params := []*Parameter{}
	if node == nil {
		return params
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() != "required_parameter" && child.Kind() != "optional_parameter" {
			continue
		}
		pattern := child.ChildByFieldName("pattern")
		if pattern == nil || pattern.Kind() == "this" {
			continue
		}
		p := &Parameter{
			Optional: child.Kind() == "optional_parameter" || child.ChildByFieldName("value") != nil,
			Type:     b.annotation(child.ChildByFieldName("type"), qualifier),
		}
		if pattern.Kind() == "rest_pattern" {
			p.Rest = true
			if inner := pattern.NamedChild(0); inner != nil {
				pattern = inner
			}
		}
		p.Name = compact(b.text(pattern))
		params = append(params, p)
	}
	return params
}

// parameterProperties turns constructor parameters declared with an
// accessibility or readonly modifier into class variables.
func (b *builder) parameterProperties(ctor *sitter.Node, qualifier string) []*Variable {
	params := ctor.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	var vars []*Variable
	for i := uint(0); i < params.NamedChildCount(); i++ {
		child := params.NamedChild(i)
		if child.Kind() != "required_parameter" && child.Kind() != "optional_parameter" {
			continue
		}
		access := b.accessibility(child)
		readOnly := hasToken(child, "readonly")
		if access == "" && !readOnly {
			continue
		}
		vars = append(vars, &Variable{
			Name:     compact(b.text(child.ChildByFieldName("pattern"))),
			Type:     b.annotation(child.ChildByFieldName("type"), qualifier),
			Optional: child.Kind() == "optional_parameter",
			ReadOnly: readOnly,
			Access:   access,
		})
	}
	return vars
}

func (b *builder) field(node *sitter.Node, qualifier string) *Variable {
	return &Variable{
		Name:     propertyName(b.text(node.ChildByFieldName("name"))),
		Comment:  b.docComment(node),
		Type:     b.annotation(node.ChildByFieldName("type"), qualifier),
		Static:   hasToken(node, "static"),
		Optional: hasToken(node, "?"),
		ReadOnly: hasToken(node, "readonly"),
		Access:   b.accessibility(node),
	}
}

func (b *builder) variables(node *sitter.Node, qualifier string, exported bool, docNode *sitter.Node) []*Variable {
	readOnly := false
	if kind := node.ChildByFieldName("kind"); kind != nil {
		readOnly = b.text(kind) == "const"
	}
	comment := b.docComment(docNode)
	var vars []*Variable
	for i := uint(0); i < node.NamedChildCount(); i++ {
		decl := node.NamedChild(i)
		if decl.Kind() != "variable_declarator" {
			continue
		}
		name := decl.ChildByFieldName("name")
		if name == nil || name.Kind() != "identifier" {
			continue
		}
		vars = append(vars, &Variable{
			Name:     b.text(name),
			Comment:  comment,
			Type:     b.annotation(decl.ChildByFieldName("type"), qualifier),
			Exported: exported,
			ReadOnly: readOnly,
		})
	}
	return vars
}

func (b *builder) importOf(node *sitter.Node) *Import {
	if node.Kind() == "import_alias" {
		if node.NamedChildCount() < 2 {
			return nil
		}
		return &Import{
			Name: b.text(node.NamedChild(0)),
			Path: compact(b.text(node.NamedChild(1))),
		}
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		switch child.Kind() {
		case "import_require_clause":
			return &Import{
				Name: b.text(child.NamedChild(0)),
				Path: unquote(b.text(child.ChildByFieldName("source"))),
			}
		case "import_clause":
			return &Import{
				Name: collapse(b.text(child)),
				Path: unquote(b.text(node.ChildByFieldName("source"))),
			}
		}
	}
	if source := node.ChildByFieldName("source"); source != nil {
		return &Import{Path: unquote(b.text(source))}
	}
	return nil
}

func (b *builder) typeParameters(node *sitter.Node) []string {
	if node == nil {
		return nil
	}
	var names []string
	for i := uint(0); i < node.NamedChildCount(); i++ {
		param := node.NamedChild(i)
		if param.Kind() != "type_parameter" {
			continue
		}
		names = append(names, b.text(param.ChildByFieldName("name")))
	}
	return names
}

func (b *builder) accessibility(node *sitter.Node) string {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == "accessibility_modifier" {
			return b.text(child)
		}
	}
	return ""
}

// docComment returns the cleaned text of a /** */ comment that ends on the
// line before node, or on the same line.
func (b *builder) docComment(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	prev := node.PrevSibling()
	if prev == nil || prev.Kind() != "comment" {
		return ""
	}
	if prev.EndPosition().Row+1 < node.StartPosition().Row {
		return ""
	}
	text := b.text(prev)
	if !strings.HasPrefix(text, "/**") || text == "/**/" {
		return ""
	}
	return cleanDocComment(text)
}

func (b *builder) text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(b.source[node.StartByte():node.EndByte()])
}

func hasToken(node *sitter.Node, token string) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if !child.IsNamed() && child.Kind() == token {
			return true
		}
	}
	return false
}

func cleanDocComment(text string) string {
	text = strings.TrimSuffix(strings.TrimPrefix(text, "/**"), "*/")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimPrefix(line, "*"))
		lines = append(lines, line)
	}
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func join(qualifier, name string) string {
	if qualifier == "" {
		return name
	}
	return qualifier + "." + name
}

func unquote(s string) string {
	return strings.Trim(s, "\"'`")
}

func propertyName(s string) string {
	return unquote(strings.TrimSpace(s))
}

// compact removes all whitespace, for dotted names split across lines.
func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// collapse folds whitespace runs into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
