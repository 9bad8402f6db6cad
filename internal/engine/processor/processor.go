// Package processor drives a compiler engine through one build cycle over
// the units of an input cache. Only units whose text the engine has not
// fully processed reach it; unchanged units reuse the output of an earlier
// cycle.
package processor

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"weave/internal/core/config"
	domainErrors "weave/internal/core/errors"
	"weave/internal/core/ports"
	"weave/internal/engine/cache"
	"weave/internal/engine/paths"
	"weave/internal/engine/reflection"
	"weave/internal/engine/unit"
	"weave/internal/shared/observability"
)

// BundlePrefix starts the sentinel path of bundled output.
const BundlePrefix = "<bundle>/"

type Option func(*Processor)

// WithTracer replaces the package tracer.
func WithTracer(t trace.Tracer) Option {
	return func(p *Processor) {
		p.tracer = t
	}
}

type Processor struct {
	engine ports.Engine
	input  *cache.Input
	opts   config.CompilerOptions
	tracer trace.Tracer

	// held is the text the engine currently has for each unit. settled marks
	// units whose held text made it through a complete cycle.
	held     map[string]string
	settled  map[string]bool
	compiled map[string]*unit.CompiledUnit
	bundle   *unit.CompiledUnit
}

func New(engine ports.Engine, input *cache.Input, opts config.CompilerOptions, options ...Option) (*Processor, error) {
	if engine == nil {
		return nil, domainErrors.New(domainErrors.CodeValidationError, "processor requires an engine")
	}
	if input == nil {
		return nil, domainErrors.New(domainErrors.CodeValidationError, "processor requires an input cache")
	}
	switch opts.Strategy {
	case config.StrategyPerUnit, config.StrategyGeneric:
	case config.StrategyBundle:
		if opts.OutFile == "" {
			return nil, domainErrors.AddContext(
				domainErrors.New(domainErrors.CodeInvalidConfig, "bundle strategy requires an out file"),
				domainErrors.CtxOption, "compiler.out_file",
			)
		}
	default:
		return nil, domainErrors.AddContext(
			domainErrors.New(domainErrors.CodeNotSupported, "unknown emission strategy"),
			domainErrors.CtxStrategy, opts.Strategy.String(),
		)
	}

	p := &Processor{
		engine:   engine,
		input:    input,
		opts:     opts,
		tracer:   observability.Tracer,
		held:     make(map[string]string),
		settled:  make(map[string]bool),
		compiled: make(map[string]*unit.CompiledUnit),
	}
	for _, opt := range options {
		opt(p)
	}
	return p, nil
}

// BundlePath is the sentinel path the bundled output is keyed by.
func (p *Processor) BundlePath() string {
	return BundlePrefix + p.opts.OutFile
}

// Process runs update, typecheck, diagnostics, emit and assemble over the
// current cache contents. The result covers every unit the engine holds,
// in input order, with the bundle last.
//
// Work is derived from what the engine holds rather than from cache states
// alone, so units left behind by an aborted cycle are picked up by the next
// one even when the cache already reports them as same.
func (p *Processor) Process(ctx context.Context) ([]*unit.CompiledUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, span := p.tracer.Start(ctx, "processor.Process",
		trace.WithAttributes(attribute.String("weave.strategy", p.opts.Strategy.String())))
	defer span.End()

	units := p.input.Units()
	pending, stale := p.plan(units)
	var unread []*unit.SourceUnit
	for _, u := range units {
		if !u.Loaded() && u.State.Changed() {
			unread = append(unread, u)
		}
	}
	span.SetAttributes(
		attribute.Int("weave.units", len(units)),
		attribute.Int("weave.changed", len(pending)),
		attribute.Int("weave.deleted", len(stale)),
	)
	dirty := len(pending) > 0 || len(stale) > 0

	if err := p.phase(ctx, "update", func() error { return p.update(pending, stale) }); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if err := p.phase(ctx, "typecheck", p.engine.TypeCheck); err != nil {
		err = domainErrors.Wrap(err, domainErrors.CodeInternal, "type check failed")
		observability.RecordError(span, err)
		return nil, err
	}

	_ = p.phase(ctx, "diagnostics", func() error {
		p.diagnostics(pending, unread)
		return nil
	})

	sink := newRecordingSink()
	_ = p.phase(ctx, "emit", func() error {
		p.emit(sink, pending, dirty)
		return nil
	})

	var result []*unit.CompiledUnit
	_ = p.phase(ctx, "assemble", func() error {
		result = p.assemble(units, pending, sink)
		return nil
	})

	for state, n := range p.input.Counts() {
		observability.UnitsByState.WithLabelValues(state.String()).Set(float64(n))
	}
	slog.Debug("processed units", "strategy", p.opts.Strategy, "units", len(units), "changed", len(pending), "deleted", len(stale), "compiled", len(result))
	return result, nil
}

// plan splits the cycle into units that need the engine and held paths the
// program no longer has. A unit needs the engine when it changed, when the
// engine holds other text for it, or when an earlier cycle stopped before
// finishing it. A unit without text is stale.
func (p *Processor) plan(units []*unit.SourceUnit) (pending []*unit.SourceUnit, stale []string) {
	live := make(map[string]bool, len(units))
	for _, u := range units {
		if !u.Loaded() {
			continue
		}
		live[u.Path] = true
		text, held := p.held[u.Path]
		if u.State.Changed() || !held || text != u.Content || !p.settled[u.Path] {
			pending = append(pending, u)
		}
	}
	for path := range p.held {
		if !live[path] {
			stale = append(stale, path)
		}
	}
	sort.Strings(stale)
	return pending, stale
}

func (p *Processor) phase(ctx context.Context, name string, fn func() error) error {
	_, span := p.tracer.Start(ctx, "processor."+name)
	defer span.End()
	start := time.Now()
	err := fn()
	observability.PhaseDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	observability.RecordError(span, err)
	return err
}

// update drops stale units from the engine and hands it every pending unit.
// A unit the engine already holds is updated with the range that differs
// from the held text; identical text is not sent again.
func (p *Processor) update(pending []*unit.SourceUnit, stale []string) error {
	for _, path := range stale {
		if err := p.forget(path); err != nil {
			return err
		}
	}
	for _, u := range pending {
		delete(p.settled, u.Path)
		delete(p.compiled, u.Path)
		prev, held := p.held[u.Path]
		if held && prev == u.Content {
			continue
		}
		var err error
		if held {
			err = p.engine.UpdateUnit(u.Path, u.Content, unit.ComputeChangeRange(prev, u.Content))
		} else {
			err = p.engine.AddUnit(u.Path, u.Content, absoluteReferences(u))
		}
		if err != nil {
			// The engine state for this path is unknown now; add it afresh next time.
			delete(p.held, u.Path)
			err = domainErrors.Wrap(err, domainErrors.CodeInternal, "engine rejected unit")
			return domainErrors.AddContext(err, domainErrors.CtxPath, u.Path)
		}
		p.held[u.Path] = u.Content
	}
	return nil
}

func (p *Processor) forget(path string) error {
	delete(p.compiled, path)
	delete(p.settled, path)
	if _, ok := p.held[path]; !ok {
		return nil
	}
	delete(p.held, path)
	remover, ok := p.engine.(ports.UnitRemover)
	if !ok {
		slog.Warn("engine cannot remove units, stale unit stays in the program", "path", path)
		return nil
	}
	if err := remover.RemoveUnit(path); err != nil {
		err = domainErrors.Wrap(err, domainErrors.CodeInternal, "engine could not remove unit")
		return domainErrors.AddContext(err, domainErrors.CtxPath, path)
	}
	return nil
}

// diagnostics replaces the diagnostics of every pending unit with what the
// engine reports, syntax first. Units that could not be read keep their read
// failure and are only counted.
func (p *Processor) diagnostics(pending, unread []*unit.SourceUnit) {
	for _, u := range unread {
		for _, d := range u.Diagnostics {
			observability.DiagnosticsTotal.WithLabelValues(d.Category.String()).Inc()
		}
	}
	for _, u := range pending {
		u.ClearDiagnostics()
		for _, d := range p.engine.SyntaxDiagnostics(u.Path) {
			u.AddDiagnostic(convert(u, d))
		}
		u.SyntaxChecked = true
		for _, d := range p.engine.SemanticDiagnostics(u.Path) {
			u.AddDiagnostic(convert(u, d))
		}
		u.TypeChecked = true
		for _, d := range u.Diagnostics {
			observability.DiagnosticsTotal.WithLabelValues(d.Category.String()).Inc()
		}
	}
}

func convert(u *unit.SourceUnit, d ports.EngineDiagnostic) unit.Diagnostic {
	line, col := unit.LineColumn(u.Content, d.Start)
	return unit.Diagnostic{
		Path:     u.Path,
		Message:  d.Message,
		Category: d.Category,
		Code:     d.Code,
		Start:    d.Start,
		Length:   d.Length,
		Line:     line,
		Column:   col,
	}
}

// emit asks the engine for output. Failures are logged and leave the
// affected units without fresh output.
func (p *Processor) emit(sink *recordingSink, pending []*unit.SourceUnit, dirty bool) {
	if p.opts.Strategy == config.StrategyPerUnit {
		for _, u := range pending {
			if err := p.engine.EmitUnit(u.Path, sink); err != nil {
				emitFailed(u.Path, err)
			}
		}
		return
	}
	if !dirty {
		return
	}
	// The previous bundle describes a program that no longer exists.
	p.bundle = nil
	if err := p.engine.EmitAll(sink); err != nil {
		emitFailed(p.BundlePath(), err)
	}
}

func emitFailed(path string, err error) {
	observability.EmitErrorsTotal.Inc()
	slog.Warn("emit failed", "path", path, "error", err)
}

// assemble builds the compiled units in input order and reflects them as
// one batch. Units that were not pending reuse their earlier output.
func (p *Processor) assemble(units, pending []*unit.SourceUnit, sink *recordingSink) []*unit.CompiledUnit {
	fresh := make(map[string]bool, len(pending))
	for _, u := range pending {
		fresh[u.Path] = true
		p.settled[u.Path] = true
	}
	outputs := sink.outputs()
	result := make([]*unit.CompiledUnit, 0, len(units)+1)
	for _, u := range units {
		if _, ok := p.held[u.Path]; !ok || !u.Loaded() {
			continue
		}
		if !fresh[u.Path] {
			if prev, ok := p.compiled[u.Path]; ok {
				result = append(result, prev)
			}
			continue
		}
		doc, ok := p.engine.Document(u.Path)
		if !ok {
			slog.Warn("engine has no document for unit, dropping it from the result", "path", u.Path)
			delete(p.compiled, u.Path)
			continue
		}
		cu := unit.NewCompiledUnit(u, "")
		cu.AST = doc
		if out, ok := outputs[paths.Stem(u.Path)]; ok {
			cu.Content = out.js
			cu.SourceMap = out.sourceMap
			cu.Declaration = out.declaration
		}
		p.compiled[u.Path] = cu
		result = append(result, cu)
	}

	if p.opts.Strategy == config.StrategyBundle {
		if out, ok := outputs[paths.Stem(p.opts.OutFile)]; ok && out.written {
			b := unit.NewBundleUnit(p.BundlePath(), out.js)
			b.SourceMap = out.sourceMap
			b.Declaration = out.declaration
			p.bundle = b
		}
		if p.bundle != nil {
			result = append(result, p.bundle)
		}
	}

	docs := make([]reflection.Document, 0, len(result))
	for _, cu := range result {
		if !cu.Bundle && cu.AST != nil {
			docs = append(docs, cu.AST)
		}
	}
	scripts := make(map[string]*reflection.Script, len(docs))
	for _, s := range reflection.Create(docs) {
		scripts[s.Path] = s
	}
	for _, cu := range result {
		if s, ok := scripts[cu.Path]; ok {
			cu.Script = s
		}
	}
	return result
}

func absoluteReferences(u *unit.SourceUnit) []string {
	refs := u.References()
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		out = append(out, unit.NewLoadParameter(u.Path, ref).Filename)
	}
	return out
}
