// Package topology orders resolved units so that every unit follows the
// units it references.
package topology

import (
	"log/slog"

	"weave/internal/engine/unit"
)

// Node is a unit's path and its references, resolved to absolute,
// slash-normalized paths.
type Node struct {
	Path       string
	References []string
}

// Graph projects units onto Nodes in input order.
func Graph(units []*unit.SourceUnit) []Node {
	nodes := make([]Node, 0, len(units))
	for _, u := range units {
		nodes = append(nodes, Node{Path: u.Path, References: resolvedReferences(u)})
	}
	return nodes
}

// Sort returns units in dependency order. When no order exists within n²
// requeues, because of a cycle or a reference nothing supplies, it returns
// the input reversed.
func Sort(units []*unit.SourceUnit) []*unit.SourceUnit {
	sorted, _ := sortUnits(units)
	return sorted
}

// Fallback reports whether Sort gives up on units and reverses them.
func Fallback(units []*unit.SourceUnit) bool {
	_, fellBack := sortUnits(units)
	return fellBack
}

func sortUnits(units []*unit.SourceUnit) ([]*unit.SourceUnit, bool) {
	n := len(units)
	refs := make(map[*unit.SourceUnit][]string, n)
	for _, u := range units {
		refs[u] = resolvedReferences(u)
	}

	queue := make([]*unit.SourceUnit, n)
	copy(queue, units)
	result := make([]*unit.SourceUnit, 0, n)
	placed := make(map[string]bool, n)

	limit := n * n
	requeues := 0
	for len(queue) > 0 {
		candidate := queue[0]
		queue = queue[1:]

		if allPlaced(refs[candidate], placed) {
			result = append(result, candidate)
			placed[candidate.Path] = true
			continue
		}

		requeues++
		if requeues > limit {
			slog.Debug("topological sort fell back to reversed input", "units", n, "requeues", requeues)
			return reversed(units), true
		}
		queue = append(queue, candidate)
	}
	return result, false
}

func allPlaced(refs []string, placed map[string]bool) bool {
	for _, ref := range refs {
		if !placed[ref] {
			return false
		}
	}
	return true
}

func resolvedReferences(u *unit.SourceUnit) []string {
	raw := u.References()
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, ref := range raw {
		out = append(out, unit.NewLoadParameter(u.Path, ref).Filename)
	}
	return out
}

func reversed(units []*unit.SourceUnit) []*unit.SourceUnit {
	out := make([]*unit.SourceUnit, len(units))
	for i, u := range units {
		out[len(units)-1-i] = u
	}
	return out
}
