// Package tsengine is a compiler engine for TypeScript-style units built on
// tree-sitter. It parses incrementally, reports syntax errors and a small set
// of program-wide checks, and emits JavaScript by erasing type syntax in
// place so that emitted lines match source lines.
package tsengine

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"weave/internal/core/config"
	domainErrors "weave/internal/core/errors"
	"weave/internal/core/ports"
	"weave/internal/engine/paths"
	"weave/internal/engine/reflection"
	"weave/internal/engine/unit"
)

// Engine holds the parsed program. It is driven by one build cycle at a
// time; the mutex only protects readers such as Document.
type Engine struct {
	mu       sync.RWMutex
	opts     config.CompilerOptions
	pool     *parserPool
	docs     map[string]*document
	order    []string
	semantic map[string][]ports.EngineDiagnostic
}

func New(opts config.CompilerOptions) *Engine {
	return &Engine{
		opts:     opts,
		pool:     newParserPool(typescript()),
		docs:     make(map[string]*document),
		semantic: make(map[string][]ports.EngineDiagnostic),
	}
}

func (e *Engine) Options() config.CompilerOptions {
	return e.opts
}

// AddUnit parses text as a new unit. Adding a path twice replaces the unit.
func (e *Engine) AddUnit(path, text string, references []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tree, err := e.parse([]byte(text), nil)
	if err != nil {
		return domainErrors.AddContext(domainErrors.Wrap(err, domainErrors.CodeInternal, "parse failed"), domainErrors.CtxPath, path)
	}
	doc := &document{path: path, source: []byte(text), tree: tree, references: references}
	doc.syntax = syntaxDiagnostics(doc)

	if old, ok := e.docs[path]; ok {
		old.release()
	} else {
		e.order = append(e.order, path)
	}
	e.docs[path] = doc
	slog.Debug("engine added unit", "path", path, "references", len(references))
	return nil
}

// UpdateUnit reparses a known unit, reusing its previous tree for the parts
// outside change.
func (e *Engine) UpdateUnit(path, text string, change unit.ChangeRange) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	old, ok := e.docs[path]
	if !ok {
		return domainErrors.AddContext(domainErrors.New(domainErrors.CodeNotFound, "unit is not part of the program"), domainErrors.CtxPath, path)
	}
	src := []byte(text)

	var base *sitter.Tree
	if old.tree != nil && validRange(change, len(old.source), len(src)) {
		base = old.tree.Clone()
		base.Edit(&sitter.InputEdit{
			StartByte:      uint(change.Start),
			OldEndByte:     uint(change.OldEnd()),
			NewEndByte:     uint(change.NewEnd()),
			StartPosition:  pointAt(old.source, change.Start),
			OldEndPosition: pointAt(old.source, change.OldEnd()),
			NewEndPosition: pointAt(src, change.NewEnd()),
		})
		defer base.Close()
	}

	tree, err := e.parse(src, base)
	if err != nil {
		return domainErrors.AddContext(domainErrors.Wrap(err, domainErrors.CodeInternal, "reparse failed"), domainErrors.CtxPath, path)
	}
	doc := &document{
		path:       path,
		source:     src,
		tree:       tree,
		references: referencesOf(path, text),
	}
	doc.syntax = syntaxDiagnostics(doc)
	old.release()
	e.docs[path] = doc
	slog.Debug("engine updated unit", "path", path, "start", change.Start, "old_length", change.OldLength, "new_length", change.NewLength)
	return nil
}

// RemoveUnit drops a unit from the program.
func (e *Engine) RemoveUnit(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, ok := e.docs[path]
	if !ok {
		return nil
	}
	doc.release()
	delete(e.docs, path)
	delete(e.semantic, path)
	for i, p := range e.order {
		if p == path {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return nil
}

func (e *Engine) SyntaxDiagnostics(path string) []ports.EngineDiagnostic {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if doc, ok := e.docs[path]; ok {
		return doc.syntax
	}
	return nil
}

// SemanticDiagnostics returns what the last TypeCheck found for path.
func (e *Engine) SemanticDiagnostics(path string) []ports.EngineDiagnostic {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.semantic[path]
}

func (e *Engine) Document(path string) (reflection.Document, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	doc, ok := e.docs[path]
	if !ok || doc.tree == nil {
		return nil, false
	}
	return doc, true
}

// Paths lists the units of the program in the order they were added.
func (e *Engine) Paths() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Close releases every parse tree.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, doc := range e.docs {
		doc.release()
	}
	e.docs = make(map[string]*document)
	e.order = nil
}

func (e *Engine) parse(src []byte, old *sitter.Tree) (*sitter.Tree, error) {
	sp := e.pool.Get()
	defer e.pool.Put(sp)
	tree := sp.Parse(src, old)
	if tree == nil {
		return nil, fmt.Errorf("parser returned no tree")
	}
	return tree, nil
}

func (e *Engine) documents() []*document {
	docs := make([]*document, 0, len(e.order))
	for _, p := range e.order {
		if doc := e.docs[p]; doc != nil && doc.tree != nil {
			docs = append(docs, doc)
		}
	}
	return docs
}

func validRange(r unit.ChangeRange, oldLen, newLen int) bool {
	return r.Start >= 0 && r.OldLength >= 0 && r.NewLength >= 0 &&
		r.OldEnd() <= oldLen && r.NewEnd() <= newLen
}

func referencesOf(path, text string) []string {
	raw := unit.ParseReferences(text)
	out := make([]string, 0, len(raw))
	for _, ref := range raw {
		out = append(out, unit.NewLoadParameter(path, ref).Filename)
	}
	return out
}

// EmitUnit writes the JavaScript of one unit, plus its source map and
// declaration file when the options ask for them.
func (e *Engine) EmitUnit(path string, sink ports.Sink) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	doc, ok := e.docs[path]
	if !ok || doc.tree == nil {
		return domainErrors.AddContext(domainErrors.New(domainErrors.CodeNotFound, "unit is not part of the program"), domainErrors.CtxPath, path)
	}
	return e.emitDocument(doc, sink)
}

// EmitAll writes every unit in program order. Under the bundle strategy the
// program is concatenated into OutFile.
func (e *Engine) EmitAll(sink ports.Sink) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	docs := e.documents()
	if e.opts.Bundled() {
		return e.emitBundle(docs, sink)
	}
	var errs []error
	for _, doc := range docs {
		if err := e.emitDocument(doc, sink); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) emitDocument(doc *document, sink ports.Sink) error {
	js := newEmitter(doc, e.opts).emit()
	jsName := sink.ResolvePath(paths.ReplaceExt(doc.path, ".js"))

	if e.opts.SourceMap {
		mapName := jsName + ".map"
		m := newMapBuilder(paths.Base(jsName))
		m.mapLines(doc.path, lineCount(string(doc.source)))
		if extra := lineCount(js) - lineCount(string(doc.source)); extra > 0 {
			m.skipLines(extra)
		}
		if err := write(sink, mapName, m.String(), doc.path); err != nil {
			return err
		}
		js += "\n//# sourceMappingURL=" + paths.Base(mapName)
	}
	if err := write(sink, jsName, js, doc.path); err != nil {
		return err
	}
	if e.opts.Declaration {
		dtsName := sink.ResolvePath(paths.ReplaceExt(doc.path, ".d.ts"))
		if err := write(sink, dtsName, emitDeclaration(doc, nil), doc.path); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) emitBundle(docs []*document, sink ports.Sink) error {
	jsName := sink.ResolvePath(e.opts.OutFile)
	bundled := make(map[string]bool, len(docs))
	for _, doc := range docs {
		bundled[doc.path] = true
	}

	var js, dts strings.Builder
	m := newMapBuilder(paths.Base(jsName))
	for i, doc := range docs {
		out := newEmitter(doc, e.opts).emit()
		if i > 0 {
			js.WriteString("\n")
		}
		js.WriteString(out)
		src := lineCount(string(doc.source))
		m.mapLines(doc.path, src)
		if extra := lineCount(out) - src; extra > 0 {
			m.skipLines(extra)
		}
		if e.opts.Declaration {
			dts.WriteString(emitDeclaration(doc, bundled))
		}
	}

	out := js.String()
	if e.opts.SourceMap {
		mapName := jsName + ".map"
		if err := write(sink, mapName, m.String(), e.opts.OutFile); err != nil {
			return err
		}
		out += "\n//# sourceMappingURL=" + paths.Base(mapName)
	}
	if err := write(sink, jsName, out, e.opts.OutFile); err != nil {
		return err
	}
	if e.opts.Declaration {
		dtsName := sink.ResolvePath(paths.ReplaceExt(e.opts.OutFile, ".d.ts"))
		if err := write(sink, dtsName, dts.String(), e.opts.OutFile); err != nil {
			return err
		}
	}
	slog.Debug("engine emitted bundle", "out", jsName, "units", len(docs))
	return nil
}

func write(sink ports.Sink, name, content, source string) error {
	if err := sink.WriteFile(name, content); err != nil {
		err = domainErrors.Wrap(err, domainErrors.CodeEmitFailed, "write output failed")
		err = domainErrors.AddContext(err, domainErrors.CtxPath, name)
		return domainErrors.AddContext(err, domainErrors.CtxParent, source)
	}
	return nil
}
