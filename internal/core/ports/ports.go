package ports

import (
	"context"

	"weave/internal/data/history"
	"weave/internal/engine/reflection"
	"weave/internal/engine/unit"
)

// ReadResult is the decoded text of one unit and where it came from.
type ReadResult struct {
	Content string
	Remote  bool
}

// Reader loads unit text from disk or over the network.
type Reader interface {
	ReadFile(ctx context.Context, path string) (ReadResult, error)
}

// EngineDiagnostic is a problem reported by the engine, positioned by byte
// offset into the unit text.
type EngineDiagnostic struct {
	Start    int
	Length   int
	Message  string
	Code     int
	Category unit.Category
}

// Sink receives emitted files.
type Sink interface {
	WriteFile(name, content string) error
	FileExists(name string) bool
	DirectoryExists(name string) bool
	ResolvePath(name string) string
}

// Engine is the wrapped compiler. Callers drive it from one build cycle at a
// time.
type Engine interface {
	AddUnit(path, text string, references []string) error
	UpdateUnit(path, text string, change unit.ChangeRange) error
	TypeCheck() error
	SyntaxDiagnostics(path string) []EngineDiagnostic
	SemanticDiagnostics(path string) []EngineDiagnostic
	EmitUnit(path string, sink Sink) error
	EmitAll(sink Sink) error
	Document(path string) (reflection.Document, bool)
}

// UnitRemover is an optional Engine extension for units that disappeared
// from the program.
type UnitRemover interface {
	RemoveUnit(path string) error
}

// HistoryStore persists build cycle summaries.
type HistoryStore interface {
	SaveCycle(cycle history.Cycle) error
	LoadCycles(limit int) ([]history.Cycle, error)
	Close() error
}
