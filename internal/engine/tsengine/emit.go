package tsengine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"weave/internal/core/config"
)

// edit replaces src[start:end] with text. Insertions have start == end.
type edit struct {
	start, end uint
	text       string
	seq        int
}

type amdDependency struct {
	source string
	name   string
}

// emitScope is the declaration context of a statement. target is the object
// exported bindings are assigned to; it is empty for global scripts.
type emitScope struct {
	namespace string
	target    string
}

// emitter produces JavaScript from one document by blanking type syntax
// with spaces and lowering enums and namespaces in place. Every newline of
// the source survives, so line N of the output comes from line N of the
// source.
type emitter struct {
	doc   *document
	opts  config.CompilerOptions
	edits []edit
	deps  []amdDependency
}

func newEmitter(doc *document, opts config.CompilerOptions) *emitter {
	return &emitter{doc: doc, opts: opts}
}

func (e *emitter) emit() string {
	root := e.doc.Root()
	if root == nil {
		return ""
	}
	top := emitScope{}
	if e.opts.Module != config.ModuleNone {
		top.target = "exports"
	}
	for i := uint(0); i < root.ChildCount(); i++ {
		e.visit(root.Child(i), top)
	}
	out := e.apply()
	if e.opts.Module == config.ModuleAMD {
		out = e.wrapAMD(out)
	}
	return out
}

func (e *emitter) visit(n *sitter.Node, sc emitScope) {
	if n == nil {
		return
	}
	if !n.IsNamed() {
		switch n.Kind() {
		case "readonly", "abstract", "declare":
			e.blank(n)
		}
		return
	}

	switch n.Kind() {
	case "comment":
		if e.opts.RemoveComments && !strings.HasPrefix(e.doc.text(n), "/*!") {
			e.blank(n)
		}
		return
	case "interface_declaration", "type_alias_declaration", "ambient_declaration",
		"function_signature", "index_signature", "abstract_method_signature", "method_signature",
		"type_annotation", "type_arguments", "type_parameters", "implements_clause",
		"asserts_annotation", "type_predicate_annotation", "omitting_type_annotation",
		"opting_type_annotation", "accessibility_modifier", "override_modifier":
		e.blank(n)
		return
	case "export_statement":
		e.visitExport(n, sc)
		return
	case "import_statement":
		e.visitImport(n, sc)
		return
	case "import_alias":
		e.replaceToken(n, "import", "var")
		return
	case "enum_declaration":
		e.lowerEnum(n, sc, false)
		return
	case "internal_module", "module":
		e.lowerNamespace(n, sc, false)
		return
	case "public_field_definition":
		if hasToken(n, "declare") || hasToken(n, "abstract") || n.ChildByFieldName("value") == nil {
			e.blank(n)
			return
		}
		e.blankToken(n, "?")
		e.blankToken(n, "!")
	case "method_definition":
		e.blankToken(n, "?")
		if e.doc.text(n.ChildByFieldName("name")) == "constructor" {
			e.assignParameterProperties(n)
		}
	case "optional_parameter":
		e.blankToken(n, "?")
	case "formal_parameters":
		e.visitParameters(n, sc)
		return
	case "as_expression", "satisfies_expression":
		expr := n.NamedChild(0)
		e.visit(expr, sc)
		if expr != nil {
			e.blankRange(expr.EndByte(), n.EndByte())
		}
		return
	case "non_null_expression":
		e.visit(n.NamedChild(0), sc)
		if n.ChildCount() > 0 {
			e.blank(n.Child(n.ChildCount() - 1))
		}
		return
	case "type_assertion":
		for i := uint(0); i < n.NamedChildCount(); i++ {
			child := n.NamedChild(i)
			if child.Kind() == "type_arguments" {
				e.blank(child)
				continue
			}
			e.visit(child, sc)
		}
		return
	case "variable_declarator":
		e.blankToken(n, "!")
	case "lexical_declaration":
		if e.opts.Target < config.TargetES6 {
			if kind := n.ChildByFieldName("kind"); kind != nil {
				e.replace(kind.StartByte(), kind.EndByte(), pad("var", int(kind.EndByte()-kind.StartByte())))
			}
		}
	}

	for i := uint(0); i < n.ChildCount(); i++ {
		e.visit(n.Child(i), sc)
	}
}

func (e *emitter) visitParameters(n *sitter.Node, sc emitScope) {
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if pattern := child.ChildByFieldName("pattern"); pattern != nil && pattern.Kind() == "this" {
			e.blank(child)
			if next := child.NextSibling(); next != nil && next.Kind() == "," {
				e.blank(next)
				i++
			}
			continue
		}
		e.visit(child, sc)
	}
}

// assignParameterProperties emits "this.x = x;" at the start of a
// constructor body for each parameter declared with a modifier.
func (e *emitter) assignParameterProperties(ctor *sitter.Node) {
	params := ctor.ChildByFieldName("parameters")
	body := ctor.ChildByFieldName("body")
	if params == nil || body == nil {
		return
	}
	var assigns []string
	for i := uint(0); i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		if childOfKind(p, "accessibility_modifier") == nil && !hasToken(p, "readonly") {
			continue
		}
		pattern := p.ChildByFieldName("pattern")
		if pattern == nil || pattern.Kind() != "identifier" {
			continue
		}
		name := e.doc.text(pattern)
		assigns = append(assigns, fmt.Sprintf("this.%s = %s;", name, name))
	}
	if len(assigns) > 0 {
		e.insert(body.StartByte()+1, " "+strings.Join(assigns, " "))
	}
}

func (e *emitter) visitExport(n *sitter.Node, sc emitScope) {
	exportTok := tokenChild(n, "export")
	if exportTok == nil {
		return
	}
	defaultTok := tokenChild(n, "default")
	keywordsEnd := exportTok.EndByte()
	if defaultTok != nil {
		keywordsEnd = defaultTok.EndByte()
	}

	if decl := n.ChildByFieldName("declaration"); decl != nil {
		if isTypeOnly(decl) {
			e.blank(n)
			return
		}
		e.blankRange(exportTok.StartByte(), keywordsEnd)
		e.visitExportedDeclaration(decl, sc)
		if defaultTok != nil && sc.target != "" {
			if names := e.declaredNames(decl); len(names) > 0 {
				e.insert(decl.EndByte(), fmt.Sprintf(" %s.default = %s;", sc.target, names[0]))
			}
		}
		return
	}

	if value := n.ChildByFieldName("value"); value != nil && defaultTok != nil {
		if sc.target != "" {
			e.replace(exportTok.StartByte(), keywordsEnd, sc.target+".default =")
		} else {
			e.blankRange(exportTok.StartByte(), keywordsEnd)
		}
		e.visit(value, sc)
		return
	}

	if eq := tokenChild(n, "="); eq != nil {
		e.replace(exportTok.StartByte(), eq.EndByte(), "module.exports =")
		for i := uint(0); i < n.NamedChildCount(); i++ {
			e.visit(n.NamedChild(i), sc)
		}
		return
	}

	if hasToken(n, "type") || hasToken(n, "namespace") {
		e.blank(n)
		return
	}

	clause := childOfKind(n, "export_clause")
	if clause == nil || n.ChildByFieldName("source") != nil {
		return
	}
	if sc.target == "" {
		e.blank(n)
		return
	}
	var assigns []string
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		spec := clause.NamedChild(i)
		if spec.Kind() != "export_specifier" {
			continue
		}
		local := e.doc.text(spec.ChildByFieldName("name"))
		alias := local
		if a := spec.ChildByFieldName("alias"); a != nil {
			alias = e.doc.text(a)
		}
		assigns = append(assigns, fmt.Sprintf("%s.%s = %s;", sc.target, alias, local))
	}
	e.replace(n.StartByte(), n.EndByte(), keepLines(strings.Join(assigns, " "), e.doc.text(n)))
}

func (e *emitter) visitExportedDeclaration(decl *sitter.Node, sc emitScope) {
	switch decl.Kind() {
	case "enum_declaration":
		e.lowerEnum(decl, sc, true)
		return
	case "internal_module", "module":
		e.lowerNamespace(decl, sc, true)
		return
	}
	e.visit(decl, sc)
	if sc.target == "" {
		return
	}
	var assigns []string
	for _, name := range e.declaredNames(decl) {
		assigns = append(assigns, fmt.Sprintf("%s.%s = %s;", sc.target, name, name))
	}
	if len(assigns) > 0 {
		e.insert(decl.EndByte(), " "+strings.Join(assigns, " "))
	}
}

func (e *emitter) declaredNames(decl *sitter.Node) []string {
	switch decl.Kind() {
	case "class_declaration", "abstract_class_declaration", "function_declaration", "generator_function_declaration":
		if name := decl.ChildByFieldName("name"); name != nil {
			return []string{e.doc.text(name)}
		}
	case "lexical_declaration", "variable_declaration":
		var names []string
		for i := uint(0); i < decl.NamedChildCount(); i++ {
			d := decl.NamedChild(i)
			if d.Kind() != "variable_declarator" {
				continue
			}
			if name := d.ChildByFieldName("name"); name != nil && name.Kind() == "identifier" {
				names = append(names, e.doc.text(name))
			}
		}
		return names
	case "import_alias":
		if name := decl.NamedChild(0); name != nil {
			return []string{e.doc.text(name)}
		}
	}
	return nil
}

func (e *emitter) visitImport(n *sitter.Node, sc emitScope) {
	if hasToken(n, "type") {
		e.blank(n)
		return
	}
	clause := childOfKind(n, "import_require_clause")
	if clause == nil {
		return
	}
	if e.opts.Module == config.ModuleAMD && sc.namespace == "" {
		e.deps = append(e.deps, amdDependency{
			source: e.doc.text(clause.ChildByFieldName("source")),
			name:   e.doc.text(clause.NamedChild(0)),
		})
		e.blank(n)
		return
	}
	e.replaceToken(n, "import", "var")
}

// lowerEnum rewrites an enum as the usual IIFE over a reverse-mapped object.
// The replacement sits on the enum's first line, followed by the newlines
// the enum spanned.
func (e *emitter) lowerEnum(n *sitter.Node, sc emitScope, exported bool) {
	name := e.doc.text(n.ChildByFieldName("name"))
	var b strings.Builder
	fmt.Fprintf(&b, "var %s; (function (%s) {", name, name)

	next, known := 0, true
	prev := ""
	if body := n.ChildByFieldName("body"); body != nil {
		for i := uint(0); i < body.NamedChildCount(); i++ {
			member := body.NamedChild(i)
			var key string
			var value *sitter.Node
			switch member.Kind() {
			case "comment":
				continue
			case "enum_assignment":
				key = unquote(e.doc.text(member.ChildByFieldName("name")))
				value = member.ChildByFieldName("value")
			default:
				key = unquote(e.doc.text(member))
			}

			switch {
			case value == nil && known:
				fmt.Fprintf(&b, " %s[%s[%q] = %d] = %q;", name, name, key, next, key)
				next++
			case value == nil:
				fmt.Fprintf(&b, " %s[%s[%q] = %s[%q] + 1] = %q;", name, name, key, name, prev, key)
			case value.Kind() == "string":
				fmt.Fprintf(&b, " %s[%q] = %s;", name, key, e.doc.text(value))
				known = false
			default:
				text := e.doc.text(value)
				if v, err := strconv.Atoi(text); err == nil {
					next, known = v+1, true
				} else {
					known = false
				}
				fmt.Fprintf(&b, " %s[%s[%q] = %s] = %q;", name, name, key, text, key)
			}
			prev = key
		}
	}
	fmt.Fprintf(&b, " })(%s);", e.binding(name, sc, exported))
	e.replace(n.StartByte(), n.EndByte(), keepLines(b.String(), e.doc.text(n)))
}

// lowerNamespace wraps the namespace body in one IIFE per dotted name
// segment. The header replaces "namespace A.B {" and the closers replace the
// final brace, so the body keeps its lines.
func (e *emitter) lowerNamespace(n *sitter.Node, sc emitScope, exported bool) {
	body := n.ChildByFieldName("body")
	nameNode := n.ChildByFieldName("name")
	if body == nil || nameNode == nil || nameNode.Kind() == "string" || !instantiated(body) {
		e.blank(n)
		return
	}
	parts := strings.Split(strings.Join(strings.Fields(e.doc.text(nameNode)), ""), ".")

	headers := make([]string, len(parts))
	for i, p := range parts {
		headers[i] = fmt.Sprintf("var %s; (function (%s) {", p, p)
	}
	header := string(e.doc.source[n.StartByte() : body.StartByte()+1])
	e.replace(n.StartByte(), body.StartByte()+1, keepLines(strings.Join(headers, " "), header))

	closers := make([]string, 0, len(parts))
	for i := len(parts) - 1; i >= 1; i-- {
		closers = append(closers, fmt.Sprintf("})(%s);", e.binding(parts[i], emitScope{target: parts[i-1]}, true)))
	}
	closers = append(closers, fmt.Sprintf("})(%s);", e.binding(parts[0], sc, exported)))
	e.replace(body.EndByte()-1, body.EndByte(), strings.Join(closers, " "))

	inner := emitScope{namespace: parts[len(parts)-1], target: parts[len(parts)-1]}
	for i := uint(0); i < body.NamedChildCount(); i++ {
		e.visit(body.NamedChild(i), inner)
	}
}

func (e *emitter) binding(name string, sc emitScope, exported bool) string {
	if exported && sc.target != "" {
		return fmt.Sprintf("%s = %s.%s || (%s.%s = {})", name, sc.target, name, sc.target, name)
	}
	return fmt.Sprintf("%s || (%s = {})", name, name)
}

func (e *emitter) wrapAMD(js string) string {
	deps := []string{`"require"`, `"exports"`}
	params := []string{"require", "exports"}
	for _, d := range e.deps {
		deps = append(deps, d.source)
		params = append(params, d.name)
	}
	return fmt.Sprintf("define([%s], function (%s) { ", strings.Join(deps, ", "), strings.Join(params, ", ")) +
		js + "\n});"
}

// isTypeOnly reports whether decl produces no JavaScript.
func isTypeOnly(decl *sitter.Node) bool {
	switch decl.Kind() {
	case "interface_declaration", "type_alias_declaration", "ambient_declaration", "function_signature":
		return true
	case "internal_module", "module":
		body := decl.ChildByFieldName("body")
		return body == nil || !instantiated(body)
	}
	return false
}

// instantiated reports whether a namespace body declares any value.
func instantiated(body *sitter.Node) bool {
	for i := uint(0); i < body.NamedChildCount(); i++ {
		stmt := body.NamedChild(i)
		switch stmt.Kind() {
		case "comment":
			continue
		case "export_statement":
			if decl := stmt.ChildByFieldName("declaration"); decl != nil && isTypeOnly(decl) {
				continue
			}
			return true
		case "expression_statement":
			if inner := stmt.NamedChild(0); inner != nil && inner.Kind() == "internal_module" && isTypeOnly(inner) {
				continue
			}
			return true
		default:
			if isTypeOnly(stmt) {
				continue
			}
			return true
		}
	}
	return false
}

func (e *emitter) blank(n *sitter.Node) {
	if n != nil {
		e.blankRange(n.StartByte(), n.EndByte())
	}
}

// blankRange overwrites a span with spaces, keeping line breaks.
func (e *emitter) blankRange(start, end uint) {
	if end <= start {
		return
	}
	src := e.doc.source[start:end]
	buf := make([]byte, len(src))
	for i, c := range src {
		if c == '\n' || c == '\r' {
			buf[i] = c
		} else {
			buf[i] = ' '
		}
	}
	e.replace(start, end, string(buf))
}

func (e *emitter) blankToken(n *sitter.Node, token string) {
	e.blank(tokenChild(n, token))
}

func (e *emitter) replaceToken(n *sitter.Node, token, text string) {
	if tok := tokenChild(n, token); tok != nil {
		e.replace(tok.StartByte(), tok.EndByte(), pad(text, int(tok.EndByte()-tok.StartByte())))
	}
}

func (e *emitter) replace(start, end uint, text string) {
	e.edits = append(e.edits, edit{start: start, end: end, text: text, seq: len(e.edits)})
}

func (e *emitter) insert(at uint, text string) {
	e.replace(at, at, text)
}

// apply writes the source with all edits. An edit overlapping an earlier
// one is dropped.
func (e *emitter) apply() string {
	sort.SliceStable(e.edits, func(i, j int) bool {
		if e.edits[i].start != e.edits[j].start {
			return e.edits[i].start < e.edits[j].start
		}
		return e.edits[i].seq < e.edits[j].seq
	})
	src := e.doc.source
	var b strings.Builder
	b.Grow(len(src))
	var cursor uint
	for _, ed := range e.edits {
		if ed.start < cursor {
			continue
		}
		b.Write(src[cursor:ed.start])
		b.WriteString(ed.text)
		cursor = ed.end
	}
	b.Write(src[cursor:])
	return b.String()
}

// pad right-fills text with spaces to width.
func pad(text string, width int) string {
	if len(text) >= width {
		return text
	}
	return text + strings.Repeat(" ", width-len(text))
}

// keepLines appends to replacement as many newlines as original spans.
func keepLines(replacement, original string) string {
	return replacement + strings.Repeat("\n", strings.Count(original, "\n"))
}

func unquote(s string) string {
	return strings.Trim(s, "\"'`")
}
