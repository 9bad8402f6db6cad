package tsengine

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"weave/internal/core/ports"
)

// document is one parsed unit. Its tree is released when a newer version of
// the unit replaces it, after which Root returns nil.
type document struct {
	path       string
	source     []byte
	tree       *sitter.Tree
	references []string
	syntax     []ports.EngineDiagnostic
}

func (d *document) Path() string   { return d.path }
func (d *document) Source() []byte { return d.source }

func (d *document) Root() *sitter.Node {
	if d.tree == nil {
		return nil
	}
	return d.tree.RootNode()
}

func (d *document) release() {
	if d.tree != nil {
		d.tree.Close()
		d.tree = nil
	}
}

func (d *document) text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(d.source[node.StartByte():node.EndByte()])
}

// pointAt converts a byte offset into a tree-sitter row and byte column.
func pointAt(src []byte, offset int) sitter.Point {
	var row, col uint
	for i := 0; i < offset && i < len(src); i++ {
		if src[i] == '\n' {
			row++
			col = 0
			continue
		}
		col++
	}
	return sitter.NewPoint(row, col)
}

func hasToken(node *sitter.Node, token string) bool {
	return tokenChild(node, token) != nil
}

func tokenChild(node *sitter.Node, token string) *sitter.Node {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if !child.IsNamed() && child.Kind() == token {
			return child
		}
	}
	return nil
}

func childOfKind(node *sitter.Node, kind string) *sitter.Node {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() == kind {
			return child
		}
	}
	return nil
}
