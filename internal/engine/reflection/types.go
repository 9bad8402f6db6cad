package reflection

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// annotation reads a ": T" annotation. A missing annotation yields nil.
func (b *builder) annotation(node *sitter.Node, qualifier string) *Type {
	if node == nil {
		return nil
	}
	return b.typeOf(node, qualifier)
}

func (b *builder) returnType(node *sitter.Node, qualifier string) *Type {
	if node == nil {
		return nil
	}
	switch node.Kind() {
	case "type_predicate_annotation":
		return b.register(&Type{Name: "boolean"}, qualifier)
	case "asserts_annotation":
		return b.register(&Type{Name: "void"}, qualifier)
	}
	return b.typeOf(node, qualifier)
}

// typeOf builds a Type for node and queues it, arguments included, for
// resolution once the whole batch is known.
func (b *builder) typeOf(node *sitter.Node, qualifier string) *Type {
	return b.register(b.buildType(node), qualifier)
}

func (b *builder) register(t *Type, qualifier string) *Type {
	b.types = append(b.types, scopedType{t: t, qualifier: qualifier})
	for _, arg := range t.Arguments {
		b.register(arg, qualifier)
	}
	return t
}

func (b *builder) buildType(node *sitter.Node) *Type {
	switch node.Kind() {
	case "type_annotation", "parenthesized_type", "readonly_type",
		"opting_type_annotation", "omitting_type_annotation":
		inner := firstNamed(node)
		if inner == nil {
			return &Type{Name: "any"}
		}
		return b.buildType(inner)
	case "generic_type":
		t := &Type{Name: compact(b.text(node.ChildByFieldName("name")))}
		t.Arguments = b.arguments(node.ChildByFieldName("type_arguments"))
		return t
	case "array_type":
		inner := firstNamed(node)
		if inner == nil {
			return &Type{Name: "Array"}
		}
		return &Type{Name: "Array", Arguments: []*Type{b.buildType(inner)}}
	case "type_identifier", "nested_type_identifier", "identifier",
		"member_expression", "nested_identifier", "predefined_type":
		return &Type{Name: compact(b.text(node))}
	}
	return &Type{Name: collapse(b.text(node))}
}

func (b *builder) arguments(node *sitter.Node) []*Type {
	if node == nil {
		return nil
	}
	var args []*Type
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() == "comment" {
			continue
		}
		args = append(args, b.buildType(child))
	}
	return args
}

// extendsTypes reads an extends clause, whose bases are expressions each
// optionally followed by type arguments.
func (b *builder) extendsTypes(clause *sitter.Node, qualifier string) []*Type {
	var out []*Type
	var last *Type
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		child := clause.NamedChild(i)
		switch child.Kind() {
		case "comment":
		case "type_arguments":
			if last != nil {
				last.Arguments = b.arguments(child)
			}
		case "instantiation_expression":
			last = &Type{Name: compact(b.text(child.ChildByFieldName("function")))}
			last.Arguments = b.arguments(child.ChildByFieldName("type_arguments"))
			out = append(out, last)
		default:
			last = &Type{Name: compact(b.text(child))}
			out = append(out, last)
		}
	}
	for _, t := range out {
		b.register(t, qualifier)
	}
	return out
}

// typeList reads the named type children of an implements or interface
// extends clause.
func (b *builder) typeList(clause *sitter.Node, qualifier string) []*Type {
	var out []*Type
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		child := clause.NamedChild(i)
		if child.Kind() == "comment" {
			continue
		}
		out = append(out, b.typeOf(child, qualifier))
	}
	return out
}

// resolve looks each queued type name up from its enclosing module outward.
func (b *builder) resolve() {
	for _, st := range b.types {
		st.t.Resolved = b.lookup(st.t.Name, st.qualifier)
	}
}

func (b *builder) lookup(name, qualifier string) string {
	if name == "" {
		return ""
	}
	for {
		candidate := join(qualifier, name)
		if b.declared[candidate] {
			return candidate
		}
		if qualifier == "" {
			return ""
		}
		if i := strings.LastIndex(qualifier, "."); i >= 0 {
			qualifier = qualifier[:i]
		} else {
			qualifier = ""
		}
	}
}

func firstNamed(node *sitter.Node) *sitter.Node {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() != "comment" {
			return child
		}
	}
	return nil
}
