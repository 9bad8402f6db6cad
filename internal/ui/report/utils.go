package report

import (
	"fmt"
	"strings"
	"unicode"

	"weave/internal/engine/paths"
	"weave/internal/shared/util"
)

// relativeURI turns a unit path below projectRoot into a forward-slash
// relative URI. Other paths are returned unchanged.
func relativeURI(projectRoot, unitPath string) string {
	if projectRoot == "" || paths.IsAbsoluteURL(unitPath) {
		return unitPath
	}
	root := paths.Normalize(projectRoot)
	if !util.HasPathPrefix(unitPath, root) || unitPath == root {
		return unitPath
	}
	return strings.TrimLeft(strings.TrimPrefix(unitPath, root), "/")
}

func sanitizeID(name string) string {
	if name == "" {
		return "u"
	}
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	out := b.String()
	if unicode.IsDigit(rune(out[0])) {
		return "u_" + out
	}
	return out
}

func makeIDs(names []string) map[string]string {
	ids := make(map[string]string, len(names))
	used := make(map[string]int, len(names))
	for _, name := range names {
		base := sanitizeID(name)
		idx := used[base]
		used[base] = idx + 1
		if idx == 0 {
			ids[name] = base
			continue
		}
		ids[name] = fmt.Sprintf("%s_%d", base, idx+1)
	}
	return ids
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
