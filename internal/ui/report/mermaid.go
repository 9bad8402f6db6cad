package report

import (
	"fmt"
	"strings"

	"weave/internal/engine/topology"
)

// GenerateMermaid renders the reference graph as a Mermaid flowchart. Each
// edge points from a unit to a unit it references. Edges on a cycle are
// drawn red and references to paths outside nodes become dashed nodes.
func GenerateMermaid(projectRoot string, nodes []topology.Node, cycles [][]string) string {
	var b strings.Builder
	b.WriteString("flowchart LR\n")

	known := make(map[string]bool, len(nodes))
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if !known[n.Path] {
			known[n.Path] = true
			names = append(names, n.Path)
		}
	}
	var missing []string
	seenMissing := make(map[string]bool)
	for _, n := range nodes {
		for _, ref := range n.References {
			if !known[ref] && !seenMissing[ref] {
				seenMissing[ref] = true
				missing = append(missing, ref)
			}
		}
	}
	ids := makeIDs(append(append([]string(nil), names...), missing...))

	for _, name := range names {
		fmt.Fprintf(&b, "  %s[\"%s\"]\n", ids[name], escapeLabel(relativeURI(projectRoot, name)))
	}
	for _, name := range missing {
		fmt.Fprintf(&b, "  %s[\"%s\"]:::missing\n", ids[name], escapeLabel(relativeURI(projectRoot, name)))
	}

	onCycle := cycleEdgeSet(cycles)
	var cycleLinks []string
	link := 0
	for _, n := range nodes {
		for _, ref := range n.References {
			arrow := "-->"
			if !known[ref] {
				arrow = "-.->"
			}
			fmt.Fprintf(&b, "  %s %s %s\n", ids[n.Path], arrow, ids[ref])
			if onCycle[n.Path+"\x00"+ref] {
				cycleLinks = append(cycleLinks, fmt.Sprint(link))
			}
			link++
		}
	}

	if len(missing) > 0 {
		b.WriteString("  classDef missing stroke-dasharray:4 2,stroke:#b91c1c,color:#7f1d1d;\n")
	}
	if len(cycleLinks) > 0 {
		fmt.Fprintf(&b, "  linkStyle %s stroke:#dc2626,stroke-width:2px;\n", strings.Join(cycleLinks, ","))
	}
	return b.String()
}

// cycleEdgeSet keys every consecutive pair of each cycle, closing the loop
// from the last element back to the first.
func cycleEdgeSet(cycles [][]string) map[string]bool {
	edges := make(map[string]bool)
	for _, cycle := range cycles {
		for i, from := range cycle {
			to := cycle[(i+1)%len(cycle)]
			if from == to {
				continue
			}
			edges[from+"\x00"+to] = true
		}
	}
	return edges
}
