package processor

import (
	"context"
	"errors"
	"strings"
	"testing"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"weave/internal/core/config"
	domainErrors "weave/internal/core/errors"
	"weave/internal/core/ports"
	"weave/internal/engine/cache"
	"weave/internal/engine/paths"
	"weave/internal/engine/reflection"
	"weave/internal/engine/unit"
)

type fakeDoc struct {
	path string
	src  string
}

func (d *fakeDoc) Path() string       { return d.path }
func (d *fakeDoc) Source() []byte     { return []byte(d.src) }
func (d *fakeDoc) Root() *sitter.Node { return nil }

type fakeEngine struct {
	opts     config.CompilerOptions
	docs     map[string]string
	order    []string
	hidden   map[string]bool
	syntax   map[string][]ports.EngineDiagnostic
	semantic map[string][]ports.EngineDiagnostic
	emitErr  error
	addErr   error
	checkErr error

	adds, updates, typechecks, emitUnits, emitAlls int
	removed                                        []string
	changes                                        []unit.ChangeRange
}

func newFakeEngine(opts config.CompilerOptions) *fakeEngine {
	return &fakeEngine{
		opts:     opts,
		docs:     make(map[string]string),
		hidden:   make(map[string]bool),
		syntax:   make(map[string][]ports.EngineDiagnostic),
		semantic: make(map[string][]ports.EngineDiagnostic),
	}
}

func (f *fakeEngine) AddUnit(path, text string, _ []string) error {
	f.adds++
	if f.addErr != nil {
		return f.addErr
	}
	if _, ok := f.docs[path]; !ok {
		f.order = append(f.order, path)
	}
	f.docs[path] = text
	return nil
}

func (f *fakeEngine) UpdateUnit(path, text string, change unit.ChangeRange) error {
	f.updates++
	f.changes = append(f.changes, change)
	f.docs[path] = text
	return nil
}

func (f *fakeEngine) RemoveUnit(path string) error {
	f.removed = append(f.removed, path)
	delete(f.docs, path)
	for i, p := range f.order {
		if p == path {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeEngine) TypeCheck() error {
	f.typechecks++
	return f.checkErr
}

func (f *fakeEngine) SyntaxDiagnostics(path string) []ports.EngineDiagnostic { return f.syntax[path] }
func (f *fakeEngine) SemanticDiagnostics(path string) []ports.EngineDiagnostic {
	return f.semantic[path]
}

func (f *fakeEngine) EmitUnit(path string, sink ports.Sink) error {
	f.emitUnits++
	return f.write(path, sink)
}

func (f *fakeEngine) write(path string, sink ports.Sink) error {
	if f.emitErr != nil {
		return f.emitErr
	}
	if err := sink.WriteFile(sink.ResolvePath(paths.ReplaceExt(path, ".js")), "js:"+f.docs[path]); err != nil {
		return err
	}
	if err := sink.WriteFile(sink.ResolvePath(paths.ReplaceExt(path, ".js.map")), "map:"+path); err != nil {
		return err
	}
	return sink.WriteFile(sink.ResolvePath(paths.ReplaceExt(path, ".d.ts")), "/// <reference path=\"dep.ts\" />\n")
}

func (f *fakeEngine) EmitAll(sink ports.Sink) error {
	f.emitAlls++
	if f.emitErr != nil {
		return f.emitErr
	}
	if f.opts.Bundled() {
		var b strings.Builder
		for _, p := range f.order {
			b.WriteString(f.docs[p])
		}
		return sink.WriteFile(sink.ResolvePath(f.opts.OutFile), b.String())
	}
	for _, p := range f.order {
		if err := f.write(p, sink); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeEngine) Document(path string) (reflection.Document, bool) {
	text, ok := f.docs[path]
	if !ok || f.hidden[path] {
		return nil, false
	}
	return &fakeDoc{path: path, src: text}, true
}

// plainEngine hides RemoveUnit.
type plainEngine struct{ ports.Engine }

func setup(t *testing.T, mutate func(*config.CompilerOptions)) (*fakeEngine, *cache.Input, *Processor) {
	t.Helper()
	opts := config.DefaultCompilerOptions()
	if mutate != nil {
		mutate(&opts)
	}
	engine := newFakeEngine(opts)
	input := cache.NewInput()
	p, err := New(engine, input, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return engine, input, p
}

func src(path, content string) *unit.SourceUnit {
	return unit.NewSourceUnit(path, content, false)
}

func process(t *testing.T, p *Processor) []*unit.CompiledUnit {
	t.Helper()
	out, err := p.Process(context.Background())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	return out
}

func resultPaths(units []*unit.CompiledUnit) []string {
	out := make([]string, 0, len(units))
	for _, u := range units {
		out = append(out, u.Path)
	}
	return out
}

func TestProcessPerUnit(t *testing.T) {
	engine, input, p := setup(t, nil)
	input.Merge([]*unit.SourceUnit{
		src("/src/util.ts", "var u = 1;"),
		src("/src/main.ts", "/// <reference path=\"util.ts\" />\nvar m = u;"),
	})

	out := process(t, p)
	if engine.adds != 2 || engine.typechecks != 1 || engine.emitUnits != 2 {
		t.Fatalf("unexpected engine calls: adds=%d typechecks=%d emits=%d", engine.adds, engine.typechecks, engine.emitUnits)
	}
	if got := resultPaths(out); strings.Join(got, ",") != "/src/util.ts,/src/main.ts" {
		t.Fatalf("unexpected order %v", got)
	}
	util := out[0]
	if util.Content != "js:var u = 1;" || util.SourceMap != "map:/src/util.ts" {
		t.Fatalf("outputs not mapped back: %+v", util)
	}
	if refs := util.References(); len(refs) != 1 || refs[0] != "dep.ts" {
		t.Fatalf("references from declaration = %v", refs)
	}
	if util.Script == nil || util.Script.Path != "/src/util.ts" {
		t.Fatalf("missing reflection script: %+v", util.Script)
	}
	if util.AST == nil {
		t.Fatalf("missing AST handle")
	}
	for _, u := range input.Units() {
		if !u.SyntaxChecked || !u.TypeChecked {
			t.Fatalf("%s not marked checked", u.Path)
		}
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	engine, input, p := setup(t, nil)
	units := func() []*unit.SourceUnit {
		return []*unit.SourceUnit{src("/src/a.ts", "var a;"), src("/src/b.ts", "var b;")}
	}
	input.Merge(units())
	first := process(t, p)

	input.Merge(units())
	second := process(t, p)

	if engine.adds != 2 || engine.updates != 0 || engine.typechecks != 2 || engine.emitUnits != 2 {
		t.Fatalf("second cycle touched the engine: adds=%d updates=%d typechecks=%d emits=%d",
			engine.adds, engine.updates, engine.typechecks, engine.emitUnits)
	}
	if len(second) != 2 || second[0] != first[0] || second[1] != first[1] {
		t.Fatalf("unchanged units should reuse their compiled output")
	}
	if second[0].Script == nil {
		t.Fatalf("reflection should cover reused units")
	}
}

func TestProcessUpdatedUnit(t *testing.T) {
	engine, input, p := setup(t, nil)
	input.Merge([]*unit.SourceUnit{src("/src/a.ts", "var a = 1;"), src("/src/b.ts", "var b;")})
	process(t, p)

	input.Merge([]*unit.SourceUnit{src("/src/a.ts", "var a = 22;"), src("/src/b.ts", "var b;")})
	out := process(t, p)

	if engine.updates != 1 || engine.adds != 2 {
		t.Fatalf("expected one update, got updates=%d adds=%d", engine.updates, engine.adds)
	}
	want := unit.ChangeRange{Start: 8, OldLength: 1, NewLength: 2}
	if engine.changes[0] != want {
		t.Fatalf("change range = %+v, want %+v", engine.changes[0], want)
	}
	if engine.emitUnits != 3 || engine.typechecks != 2 {
		t.Fatalf("expected one more emit and typecheck, got emits=%d typechecks=%d", engine.emitUnits, engine.typechecks)
	}
	if out[0].Content != "js:var a = 22;" {
		t.Fatalf("stale output %q", out[0].Content)
	}
}

func TestProcessDeletedUnit(t *testing.T) {
	engine, input, p := setup(t, nil)
	input.Merge([]*unit.SourceUnit{src("/src/a.ts", "var a;"), src("/src/b.ts", "var b;")})
	process(t, p)

	input.Merge([]*unit.SourceUnit{src("/src/b.ts", "var b;")})
	out := process(t, p)

	if len(engine.removed) != 1 || engine.removed[0] != "/src/a.ts" {
		t.Fatalf("expected /src/a.ts removed, got %v", engine.removed)
	}
	if engine.typechecks != 2 {
		t.Fatalf("deletion should trigger a type check, got %d", engine.typechecks)
	}
	if got := resultPaths(out); len(got) != 1 || got[0] != "/src/b.ts" {
		t.Fatalf("unexpected result %v", got)
	}
}

func TestProcessWithoutRemover(t *testing.T) {
	opts := config.DefaultCompilerOptions()
	engine := newFakeEngine(opts)
	input := cache.NewInput()
	p, err := New(plainEngine{engine}, input, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	input.Merge([]*unit.SourceUnit{src("/src/a.ts", "var a;")})
	process(t, p)
	input.Merge(nil)
	out := process(t, p)
	if len(out) != 0 || len(engine.removed) != 0 {
		t.Fatalf("expected empty result and no removal, got %v %v", resultPaths(out), engine.removed)
	}
}

func TestProcessTypeChecksEveryCycle(t *testing.T) {
	engine, input, p := setup(t, nil)
	for i := 0; i < 3; i++ {
		input.Merge([]*unit.SourceUnit{src("/src/a.ts", "var a;")})
		process(t, p)
	}
	if engine.typechecks != 3 || engine.adds != 1 {
		t.Fatalf("expected one type check per cycle and one add, got typechecks=%d adds=%d", engine.typechecks, engine.adds)
	}
}

func TestProcessRecoversAfterCancelledCycle(t *testing.T) {
	engine, input, p := setup(t, nil)
	input.Merge([]*unit.SourceUnit{src("/src/a.ts", "var a;")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Process(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	input.Merge([]*unit.SourceUnit{src("/src/a.ts", "var a;")})
	u, _ := input.Lookup("/src/a.ts")
	if u.State != unit.StateSame {
		t.Fatalf("state = %v, want same", u.State)
	}
	out := process(t, p)
	if engine.adds != 1 || engine.emitUnits != 1 {
		t.Fatalf("unit left by the cancelled cycle was not compiled: adds=%d emits=%d", engine.adds, engine.emitUnits)
	}
	if len(out) != 1 || out[0].Content != "js:var a;" {
		t.Fatalf("unexpected result %v", resultPaths(out))
	}
	if !u.SyntaxChecked || !u.TypeChecked {
		t.Fatalf("recovered unit not marked checked")
	}
}

func TestProcessRecoversAfterRejectedUnit(t *testing.T) {
	engine, input, p := setup(t, nil)
	engine.addErr = errors.New("out of memory")
	input.Merge([]*unit.SourceUnit{src("/src/a.ts", "var a;")})
	if _, err := p.Process(context.Background()); !domainErrors.IsCode(err, domainErrors.CodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}

	engine.addErr = nil
	input.Merge([]*unit.SourceUnit{src("/src/a.ts", "var a;")})
	out := process(t, p)
	if engine.adds != 2 {
		t.Fatalf("rejected unit should be added again, got adds=%d", engine.adds)
	}
	if got := resultPaths(out); len(got) != 1 || got[0] != "/src/a.ts" {
		t.Fatalf("unexpected result %v", got)
	}
}

func TestProcessFinishesUnitsAfterFailedTypeCheck(t *testing.T) {
	engine, input, p := setup(t, nil)
	engine.checkErr = errors.New("checker crashed")
	input.Merge([]*unit.SourceUnit{src("/src/a.ts", "var a;")})
	if _, err := p.Process(context.Background()); err == nil {
		t.Fatalf("expected type check error")
	}

	engine.checkErr = nil
	input.Merge([]*unit.SourceUnit{src("/src/a.ts", "var a;")})
	out := process(t, p)
	if engine.adds != 1 || engine.updates != 0 {
		t.Fatalf("held text must not be sent again: adds=%d updates=%d", engine.adds, engine.updates)
	}
	if engine.emitUnits != 1 || len(out) != 1 || out[0].Content != "js:var a;" {
		t.Fatalf("unit was not emitted after recovery: emits=%d result=%v", engine.emitUnits, resultPaths(out))
	}

	input.Merge([]*unit.SourceUnit{src("/src/a.ts", "var a;")})
	again := process(t, p)
	if engine.emitUnits != 1 || len(again) != 1 || again[0] != out[0] {
		t.Fatalf("finished unit should be reused")
	}
}

func TestProcessDiagnostics(t *testing.T) {
	engine, input, p := setup(t, nil)
	engine.syntax["/src/a.ts"] = []ports.EngineDiagnostic{{Start: 0, Length: 1, Message: "syntax", Code: 1005}}
	engine.semantic["/src/a.ts"] = []ports.EngineDiagnostic{{Start: 5, Length: 2, Message: "semantic", Code: 2300}}
	input.Merge([]*unit.SourceUnit{src("/src/a.ts", "abc\r\nxyz")})

	out := process(t, p)
	diags := out[0].Diagnostics
	if len(diags) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d", len(diags))
	}
	if diags[0].Message != "syntax" || diags[1].Message != "semantic" {
		t.Fatalf("syntax diagnostics must come first: %v", diags)
	}
	if diags[1].Line != 1 || diags[1].Column != 0 || diags[1].Path != "/src/a.ts" {
		t.Fatalf("unexpected position %+v", diags[1])
	}
}

func TestProcessSwallowsEmitErrors(t *testing.T) {
	engine, input, p := setup(t, nil)
	engine.emitErr = errors.New("disk full")
	input.Merge([]*unit.SourceUnit{src("/src/a.ts", "var a;")})

	out := process(t, p)
	if len(out) != 1 || out[0].Content != "" {
		t.Fatalf("expected the unit without output, got %+v", out)
	}
}

func TestProcessBundleEmitFailureDropsBundle(t *testing.T) {
	engine, input, p := setup(t, func(o *config.CompilerOptions) {
		o.Strategy = config.StrategyBundle
		o.OutFile = "out/app.js"
	})
	input.Merge([]*unit.SourceUnit{src("/src/a.ts", "var a = 1;")})
	out := process(t, p)
	if len(out) != 2 || out[1].Content != "var a = 1;" {
		t.Fatalf("unexpected first cycle %v", resultPaths(out))
	}

	engine.emitErr = errors.New("disk full")
	input.Merge([]*unit.SourceUnit{src("/src/a.ts", "var a = 2;")})
	out = process(t, p)
	for _, cu := range out {
		if cu.Bundle {
			t.Fatalf("failed emit returned bundle content %q", cu.Content)
		}
	}
	if len(out) != 1 {
		t.Fatalf("expected only the unit, got %v", resultPaths(out))
	}
}

func TestProcessSkipsUnloadedUnits(t *testing.T) {
	engine, input, p := setup(t, nil)
	failed := unit.NewFailedUnit("/src/gone.ts", false, "File '/src/gone.ts' not found")
	input.Merge([]*unit.SourceUnit{failed, src("/src/a.ts", "var a;")})

	out := process(t, p)
	if engine.adds != 1 {
		t.Fatalf("unloaded unit reached the engine")
	}
	if got := resultPaths(out); len(got) != 1 || got[0] != "/src/a.ts" {
		t.Fatalf("unexpected result %v", got)
	}
	if len(failed.Diagnostics) != 1 {
		t.Fatalf("read failure diagnostic was lost")
	}

	input.Merge([]*unit.SourceUnit{src("/src/gone.ts", "var g;"), src("/src/a.ts", "var a;")})
	out = process(t, p)
	if engine.adds != 2 || engine.updates != 0 {
		t.Fatalf("recovered unit must be added, got adds=%d updates=%d", engine.adds, engine.updates)
	}
	if len(out) != 2 {
		t.Fatalf("expected both units, got %v", resultPaths(out))
	}
}

func TestProcessDropsUnitsWithoutDocument(t *testing.T) {
	engine, input, p := setup(t, nil)
	engine.hidden["/src/a.ts"] = true
	input.Merge([]*unit.SourceUnit{src("/src/a.ts", "var a;"), src("/src/b.ts", "var b;")})

	out := process(t, p)
	if got := resultPaths(out); len(got) != 1 || got[0] != "/src/b.ts" {
		t.Fatalf("unexpected result %v", got)
	}
}

func TestProcessGeneric(t *testing.T) {
	engine, input, p := setup(t, func(o *config.CompilerOptions) { o.Strategy = config.StrategyGeneric })
	input.Merge([]*unit.SourceUnit{src("/src/a.ts", "var a;"), src("/src/b.ts", "var b;")})

	out := process(t, p)
	if engine.emitAlls != 1 || engine.emitUnits != 0 {
		t.Fatalf("generic emits once, got emitAll=%d emitUnit=%d", engine.emitAlls, engine.emitUnits)
	}
	if out[1].Content != "js:var b;" {
		t.Fatalf("generic output not mapped back: %q", out[1].Content)
	}

	input.Merge([]*unit.SourceUnit{src("/src/a.ts", "var a;"), src("/src/b.ts", "var b;")})
	process(t, p)
	if engine.emitAlls != 1 {
		t.Fatalf("no work should not emit again")
	}
}

func TestProcessBundle(t *testing.T) {
	engine, input, p := setup(t, func(o *config.CompilerOptions) {
		o.Strategy = config.StrategyBundle
		o.OutFile = "out/app.js"
	})
	input.Merge([]*unit.SourceUnit{src("/src/a.ts", "var a;"), src("/src/b.ts", "var b;")})

	out := process(t, p)
	if engine.emitAlls != 1 {
		t.Fatalf("bundle emits once, got %d", engine.emitAlls)
	}
	if len(out) != 3 {
		t.Fatalf("expected two units and the bundle, got %v", resultPaths(out))
	}
	bundle := out[2]
	if !bundle.Bundle || bundle.Path != "<bundle>/out/app.js" || bundle.Content != "var a;var b;" {
		t.Fatalf("unexpected bundle %+v", bundle)
	}
	if p.BundlePath() != bundle.Path {
		t.Fatalf("BundlePath = %q", p.BundlePath())
	}

	input.Merge([]*unit.SourceUnit{src("/src/a.ts", "var a;"), src("/src/b.ts", "var b;")})
	again := process(t, p)
	if len(again) != 3 || again[2] != bundle {
		t.Fatalf("bundle should be reused when nothing changed")
	}
}

func TestNewValidation(t *testing.T) {
	opts := config.DefaultCompilerOptions()
	if _, err := New(nil, cache.NewInput(), opts); !domainErrors.IsCode(err, domainErrors.CodeValidationError) {
		t.Fatalf("nil engine: %v", err)
	}
	engine := newFakeEngine(opts)
	if _, err := New(engine, nil, opts); !domainErrors.IsCode(err, domainErrors.CodeValidationError) {
		t.Fatalf("nil input: %v", err)
	}

	bundle := opts
	bundle.Strategy = config.StrategyBundle
	bundle.OutFile = ""
	if _, err := New(engine, cache.NewInput(), bundle); !domainErrors.IsCode(err, domainErrors.CodeInvalidConfig) {
		t.Fatalf("bundle without out file: %v", err)
	}

	unknown := opts
	unknown.Strategy = config.Strategy(42)
	if _, err := New(engine, cache.NewInput(), unknown); !domainErrors.IsCode(err, domainErrors.CodeNotSupported) {
		t.Fatalf("unknown strategy: %v", err)
	}
}

func TestProcessCancelled(t *testing.T) {
	_, input, p := setup(t, nil)
	input.Merge([]*unit.SourceUnit{src("/src/a.ts", "var a;")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Process(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRecordingSink(t *testing.T) {
	s := newRecordingSink()
	_ = s.WriteFile(`C:\out\a.js`, "js")
	_ = s.WriteFile("C:/out/a.js.map", "map")
	_ = s.WriteFile("C:/out/a.d.ts", "dts")

	if !s.FileExists("C:/out/a.js") || !s.DirectoryExists(`C:\out`) || s.DirectoryExists("C:/other") {
		t.Fatalf("sink lookups disagree with written files")
	}
	out := s.outputs()["C:/out/a"]
	if out == nil || out.js != "js" || out.sourceMap != "map" || out.declaration != "dts" || !out.written {
		t.Fatalf("unexpected grouping %+v", out)
	}
}
