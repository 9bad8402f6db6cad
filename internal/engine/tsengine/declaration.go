package tsengine

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"weave/internal/engine/unit"
)

const indentUnit = "    "

// declarationWriter renders the .d.ts surface of a document: reference
// directives, then the declared shape of every value and type, without
// bodies or initializers.
type declarationWriter struct {
	doc *document
	b   strings.Builder
}

// emitDeclaration renders doc's declarations. References that resolve to a
// path in bundled are dropped since those declarations share the output.
func emitDeclaration(doc *document, bundled map[string]bool) string {
	w := &declarationWriter{doc: doc}
	for _, ref := range unit.ParseReferences(string(doc.source)) {
		if bundled[unit.NewLoadParameter(doc.path, ref).Filename] {
			continue
		}
		fmt.Fprintf(&w.b, "/// <reference path=\"%s\" />\n", ref)
	}
	if root := doc.Root(); root != nil {
		w.statements(root, "", false)
	}
	return w.b.String()
}

// statements writes the declarations of a program or namespace body. Inside
// a namespace only exported members are part of the surface and the declare
// keyword is implied.
func (w *declarationWriter) statements(parent *sitter.Node, indent string, inNamespace bool) {
	signatures := make(map[string]bool)
	for i := uint(0); i < parent.NamedChildCount(); i++ {
		stmt := parent.NamedChild(i)
		exported := false
		if stmt.Kind() == "export_statement" {
			decl := stmt.ChildByFieldName("declaration")
			if decl == nil || hasToken(stmt, "default") {
				if !inNamespace {
					w.line(indent, w.doc.text(stmt))
				}
				continue
			}
			stmt, exported = decl, true
		}
		if inNamespace && !exported {
			continue
		}
		if stmt.Kind() == "expression_statement" {
			if inner := stmt.NamedChild(0); inner != nil && inner.Kind() == "internal_module" {
				stmt = inner
			}
		}

		prefix := ""
		if exported && !inNamespace {
			prefix = "export "
		}
		declare := "declare "
		if inNamespace {
			declare = ""
		}

		switch stmt.Kind() {
		case "interface_declaration", "type_alias_declaration":
			w.line(indent, prefix+w.doc.text(stmt))
		case "enum_declaration":
			w.line(indent, prefix+declare+w.doc.text(stmt))
		case "ambient_declaration":
			if !inNamespace {
				w.line(indent, prefix+w.doc.text(stmt))
			}
		case "import_alias":
			w.line(indent, prefix+w.doc.text(stmt))
		case "import_statement":
			if !inNamespace {
				w.line(indent, w.doc.text(stmt))
			}
		case "function_signature":
			name := w.doc.text(stmt.ChildByFieldName("name"))
			signatures[name] = true
			w.line(indent, prefix+declare+"function "+name+w.signature(stmt)+";")
		case "function_declaration", "generator_function_declaration":
			name := w.doc.text(stmt.ChildByFieldName("name"))
			if signatures[name] {
				continue
			}
			w.line(indent, prefix+declare+"function "+name+w.signature(stmt)+";")
		case "lexical_declaration", "variable_declaration":
			w.variables(stmt, indent, prefix+declare)
		case "class_declaration", "abstract_class_declaration":
			w.class(stmt, indent, prefix+declare)
		case "internal_module", "module":
			w.namespace(stmt, indent, prefix+declare)
		}
	}
}

func (w *declarationWriter) namespace(n *sitter.Node, indent, prefix string) {
	w.line(indent, prefix+"namespace "+strings.Join(strings.Fields(w.doc.text(n.ChildByFieldName("name"))), "")+" {")
	if body := n.ChildByFieldName("body"); body != nil {
		w.statements(body, indent+indentUnit, true)
	}
	w.line(indent, "}")
}

func (w *declarationWriter) variables(n *sitter.Node, indent, prefix string) {
	keyword := "var"
	if kind := n.ChildByFieldName("kind"); kind != nil {
		keyword = w.doc.text(kind)
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		d := n.NamedChild(i)
		if d.Kind() != "variable_declarator" {
			continue
		}
		name := d.ChildByFieldName("name")
		if name == nil {
			continue
		}
		w.line(indent, fmt.Sprintf("%s%s %s: %s;", prefix, keyword, w.doc.text(name), w.typeOf(d.ChildByFieldName("type"), d.ChildByFieldName("value"))))
	}
}

func (w *declarationWriter) class(n *sitter.Node, indent, prefix string) {
	head := prefix
	if n.Kind() == "abstract_class_declaration" {
		head += "abstract "
	}
	head += "class " + w.doc.text(n.ChildByFieldName("name"))
	if tp := n.ChildByFieldName("type_parameters"); tp != nil {
		head += w.doc.text(tp)
	}
	if heritage := childOfKind(n, "class_heritage"); heritage != nil {
		head += " " + collapse(w.doc.text(heritage))
	}
	w.line(indent, head+" {")

	inner := indent + indentUnit
	body := n.ChildByFieldName("body")
	for i := uint(0); body != nil && i < body.NamedChildCount(); i++ {
		member := body.NamedChild(i)
		mods := w.modifiers(member)
		switch member.Kind() {
		case "public_field_definition":
			name := w.doc.text(member.ChildByFieldName("name"))
			if hasToken(member, "?") {
				name += "?"
			}
			if strings.HasPrefix(mods, "private ") {
				w.line(inner, mods+name+";")
				continue
			}
			w.line(inner, mods+name+": "+w.typeOf(member.ChildByFieldName("type"), member.ChildByFieldName("value"))+";")
		case "method_definition", "method_signature", "abstract_method_signature":
			name := w.doc.text(member.ChildByFieldName("name"))
			if name == "constructor" {
				w.parameterProperties(member, inner)
				w.line(inner, "constructor"+w.parameters(member.ChildByFieldName("parameters"))+";")
				continue
			}
			if strings.HasPrefix(mods, "private ") {
				w.line(inner, mods+name+";")
				continue
			}
			if hasToken(member, "?") {
				name += "?"
			}
			w.line(inner, mods+name+w.signature(member)+";")
		case "index_signature":
			w.line(inner, w.doc.text(member)+";")
		}
	}
	w.line(indent, "}")
}

func (w *declarationWriter) parameterProperties(ctor *sitter.Node, indent string) {
	params := ctor.ChildByFieldName("parameters")
	for i := uint(0); params != nil && i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		mods := w.modifiers(p)
		if mods == "" {
			continue
		}
		name := w.doc.text(p.ChildByFieldName("pattern"))
		if strings.HasPrefix(mods, "private ") {
			w.line(indent, mods+name+";")
			continue
		}
		w.line(indent, mods+name+": "+w.typeOf(p.ChildByFieldName("type"), p.ChildByFieldName("value"))+";")
	}
}

// modifiers renders accessibility, static, abstract and readonly keywords in
// declaration order.
func (w *declarationWriter) modifiers(n *sitter.Node) string {
	var mods []string
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		switch {
		case child.Kind() == "accessibility_modifier":
			mods = append(mods, w.doc.text(child))
		case !child.IsNamed() && (child.Kind() == "static" || child.Kind() == "abstract" || child.Kind() == "readonly"):
			mods = append(mods, child.Kind())
		}
	}
	if len(mods) == 0 {
		return ""
	}
	return strings.Join(mods, " ") + " "
}

// signature renders "<T>(params): R" for a function-like node.
func (w *declarationWriter) signature(n *sitter.Node) string {
	var b strings.Builder
	if tp := n.ChildByFieldName("type_parameters"); tp != nil {
		b.WriteString(w.doc.text(tp))
	}
	b.WriteString(w.parameters(n.ChildByFieldName("parameters")))
	b.WriteString(": ")
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		b.WriteString(strings.TrimSpace(strings.TrimPrefix(collapse(w.doc.text(ret)), ":")))
	} else if body := n.ChildByFieldName("body"); body != nil && !returnsValue(body) {
		b.WriteString("void")
	} else {
		b.WriteString("any")
	}
	return b.String()
}

func (w *declarationWriter) parameters(n *sitter.Node) string {
	if n == nil {
		return "()"
	}
	var params []string
	for i := uint(0); i < n.NamedChildCount(); i++ {
		p := n.NamedChild(i)
		if p.Kind() != "required_parameter" && p.Kind() != "optional_parameter" {
			continue
		}
		pattern := p.ChildByFieldName("pattern")
		if pattern == nil {
			continue
		}
		name := w.doc.text(pattern)
		value := p.ChildByFieldName("value")
		if p.Kind() == "optional_parameter" || value != nil {
			name += "?"
		}
		typ := w.typeOf(p.ChildByFieldName("type"), value)
		if pattern.Kind() == "rest_pattern" && p.ChildByFieldName("type") == nil {
			typ = "any[]"
		}
		params = append(params, name+": "+typ)
	}
	return "(" + strings.Join(params, ", ") + ")"
}

// typeOf renders an annotation, or infers a primitive type from a literal
// initializer, falling back to any.
func (w *declarationWriter) typeOf(annotation, value *sitter.Node) string {
	if annotation != nil {
		return strings.TrimSpace(strings.TrimPrefix(collapse(w.doc.text(annotation)), ":"))
	}
	if value != nil {
		switch value.Kind() {
		case "number":
			return "number"
		case "string", "template_string":
			return "string"
		case "true", "false":
			return "boolean"
		}
	}
	return "any"
}

func (w *declarationWriter) line(indent, text string) {
	w.b.WriteString(indent)
	w.b.WriteString(text)
	w.b.WriteString("\n")
}

// returnsValue reports whether a function body has a return with a value,
// ignoring nested functions and classes.
func returnsValue(body *sitter.Node) bool {
	for i := uint(0); i < body.NamedChildCount(); i++ {
		child := body.NamedChild(i)
		switch child.Kind() {
		case "return_statement":
			if child.NamedChildCount() > 0 {
				return true
			}
		case "function_declaration", "function_expression", "arrow_function",
			"generator_function_declaration", "class_declaration", "class":
			continue
		default:
			if returnsValue(child) {
				return true
			}
		}
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
