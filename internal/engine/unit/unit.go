// Package unit holds the data carried through a build cycle: source text
// buffers, their diagnostics, and the artifacts the engine emitted for them.
package unit

import (
	"fmt"

	"weave/internal/engine/paths"
)

type Category int

const (
	CategoryError Category = iota
	CategoryWarning
	CategoryMessage
)

func (c Category) String() string {
	switch c {
	case CategoryError:
		return "error"
	case CategoryWarning:
		return "warning"
	case CategoryMessage:
		return "message"
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// Diagnostic is one problem reported against a unit. Line and Column are
// 0-based and derived from Start with LineColumn.
type Diagnostic struct {
	Path     string
	Message  string
	Category Category
	Code     int
	Start    int
	Length   int
	Line     int
	Column   int
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s(%d,%d): %s TS%d: %s", d.Path, d.Line+1, d.Column+1, d.Category, d.Code, d.Message)
}

// Unit is a named text buffer plus the diagnostics gathered for it.
type Unit struct {
	Path        string
	Content     string
	Diagnostics []Diagnostic

	loaded bool
}

func newUnit(path, content string, loaded bool) Unit {
	return Unit{Path: paths.Normalize(path), Content: content, loaded: loaded}
}

// Loaded is false when the unit's text could not be read.
func (u *Unit) Loaded() bool {
	return u.loaded
}

func (u *Unit) HasError() bool {
	return len(u.Diagnostics) > 0
}

func (u *Unit) AddDiagnostic(d Diagnostic) {
	if d.Path == "" {
		d.Path = u.Path
	}
	u.Diagnostics = append(u.Diagnostics, d)
}

func (u *Unit) ClearDiagnostics() {
	u.Diagnostics = nil
}
