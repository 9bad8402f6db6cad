package tsengine

import (
	"encoding/json"
	"strings"
)

const base64Digits = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// sourceMap is a revision 3 source map.
type sourceMap struct {
	Version    int      `json:"version"`
	File       string   `json:"file"`
	SourceRoot string   `json:"sourceRoot"`
	Sources    []string `json:"sources"`
	Names      []string `json:"names"`
	Mappings   string   `json:"mappings"`
}

// mapBuilder accumulates line mappings. Emitted lines keep the layout of
// their source, so every generated line maps column 0 to column 0 of one
// source line.
type mapBuilder struct {
	file       string
	sources    []string
	lines      []string
	prevSource int
	prevLine   int
}

func newMapBuilder(file string) *mapBuilder {
	return &mapBuilder{file: file}
}

// mapLines appends count generated lines mapped to lines 0..count-1 of
// source.
func (m *mapBuilder) mapLines(source string, count int) {
	index := len(m.sources)
	m.sources = append(m.sources, source)
	for line := 0; line < count; line++ {
		var seg strings.Builder
		seg.WriteString(vlq(0))
		seg.WriteString(vlq(index - m.prevSource))
		seg.WriteString(vlq(line - m.prevLine))
		seg.WriteString(vlq(0))
		m.prevSource, m.prevLine = index, line
		m.lines = append(m.lines, seg.String())
	}
}

// skipLines appends generated lines with no mapping.
func (m *mapBuilder) skipLines(count int) {
	for i := 0; i < count; i++ {
		m.lines = append(m.lines, "")
	}
}

func (m *mapBuilder) String() string {
	sources := m.sources
	if sources == nil {
		sources = []string{}
	}
	data, _ := json.Marshal(sourceMap{
		Version:  3,
		File:     m.file,
		Sources:  sources,
		Names:    []string{},
		Mappings: strings.Join(m.lines, ";"),
	})
	return string(data)
}

// vlq encodes n as a base64 variable-length quantity with the sign in the
// lowest bit.
func vlq(n int) string {
	v := n << 1
	if n < 0 {
		v = (-n << 1) | 1
	}
	var b strings.Builder
	for {
		digit := v & 31
		v >>= 5
		if v > 0 {
			digit |= 32
		}
		b.WriteByte(base64Digits[digit])
		if v == 0 {
			return b.String()
		}
	}
}

func lineCount(s string) int {
	return strings.Count(s, "\n") + 1
}
