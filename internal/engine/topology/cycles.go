package topology

import "sort"

// DetectCycles lists the reference cycles among nodes. References to paths
// outside nodes are ignored. Traversal follows node order so results are
// stable across runs.
func DetectCycles(nodes []Node) [][]string {
	edges := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		edges[n.Path] = n.References
	}

	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	for _, n := range nodes {
		if !visited[n.Path] {
			findCycles(n.Path, edges, visited, onStack, nil, &cycles)
		}
	}
	return cycles
}

func findCycles(curr string, edges map[string][]string, visited, onStack map[string]bool, path []string, cycles *[][]string) {
	visited[curr] = true
	onStack[curr] = true
	path = append(path, curr)

	for _, next := range edges[curr] {
		if _, known := edges[next]; !known {
			continue
		}
		if onStack[next] {
			cycleStart := -1
			for i, p := range path {
				if p == next {
					cycleStart = i
					break
				}
			}
			if cycleStart != -1 {
				cycle := make([]string, len(path)-cycleStart)
				copy(cycle, path[cycleStart:])
				*cycles = append(*cycles, cycle)
			}
		} else if !visited[next] {
			findCycles(next, edges, visited, onStack, path, cycles)
		}
	}

	onStack[curr] = false
}

// Unsatisfied lists, sorted, the referenced paths that no node supplies.
func Unsatisfied(nodes []Node) []string {
	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n.Path] = true
	}
	seen := make(map[string]bool)
	var missing []string
	for _, n := range nodes {
		for _, ref := range n.References {
			if !known[ref] && !seen[ref] {
				seen[ref] = true
				missing = append(missing, ref)
			}
		}
	}
	sort.Strings(missing)
	return missing
}
