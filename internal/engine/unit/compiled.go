package unit

import "weave/internal/engine/reflection"

// CompiledUnit is a unit after an engine pass: its emitted script text in
// Content, plus the source map, declaration text and reflected model.
type CompiledUnit struct {
	Unit
	Source      string
	AST         reflection.Document
	SourceMap   string
	Declaration string
	Script      *reflection.Script
	Bundle      bool
}

// NewCompiledUnit copies the diagnostics of src, so later passes over src do
// not alter an already returned result.
func NewCompiledUnit(src *SourceUnit, content string) *CompiledUnit {
	c := &CompiledUnit{
		Unit:   newUnit(src.Path, content, src.Loaded()),
		Source: src.Path,
	}
	c.Diagnostics = append([]Diagnostic(nil), src.Diagnostics...)
	return c
}

// NewBundleUnit holds the single output of a bundled emit under a sentinel
// path.
func NewBundleUnit(path, content string) *CompiledUnit {
	return &CompiledUnit{Unit: newUnit(path, content, true), Source: path, Bundle: true}
}

// References are re-derived from the declaration output, which may carry
// directives the engine added.
func (c *CompiledUnit) References() []string {
	return ParseReferences(c.Declaration)
}
