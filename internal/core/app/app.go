// Package app wires the resolver, the unit cache and the processor into
// build cycles and runs them once or on file changes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"weave/internal/core/config"
	domainErrors "weave/internal/core/errors"
	"weave/internal/core/ports"
	"weave/internal/core/watcher"
	"weave/internal/data/history"
	"weave/internal/data/reader"
	"weave/internal/engine/cache"
	"weave/internal/engine/paths"
	"weave/internal/engine/processor"
	"weave/internal/engine/resolver"
	"weave/internal/engine/topology"
	"weave/internal/engine/tsengine"
	"weave/internal/engine/unit"
	"weave/internal/shared/observability"
	"weave/internal/shared/util"
)

// Result summarizes one build cycle.
type Result struct {
	ID          string
	Started     time.Time
	Duration    time.Duration
	Units       []*unit.CompiledUnit
	Counts      map[unit.State]int
	Diagnostics []unit.Diagnostic
	Fallback    bool
	Cycles      [][]string
	Graph       []topology.Node
	Written     []string
	Removed     []string
}

// Changed reports how many units were added, updated or deleted.
func (r *Result) Changed() int {
	return r.Counts[unit.StateAdded] + r.Counts[unit.StateUpdated] + r.Counts[unit.StateDeleted]
}

type App struct {
	Config *config.Config

	reader    *reader.Reader
	resolver  *resolver.Resolver
	input     *cache.Input
	engine    *tsengine.Engine
	processor *processor.Processor
	history   ports.HistoryStore
	tracer    trace.Tracer

	rootDir string
	outDir  string

	// buildMu serializes build cycles, watch callbacks included.
	buildMu sync.Mutex
	written map[string]*unit.CompiledUnit

	statusMu  sync.RWMutex
	cycles    int
	lastBuild time.Time
	lastErr   error

	updateMu sync.RWMutex
	onUpdate func(*Result)

	activeWatcher *watcher.Watcher
}

// New builds an App from a validated configuration. When the history
// database is enabled it is opened here and closed by Close.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, domainErrors.New(domainErrors.CodeValidationError, "app requires a configuration")
	}
	rootDir, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, domainErrors.Wrap(err, domainErrors.CodeInvalidConfig, "resolve root directory")
	}
	outDir, err := filepath.Abs(cfg.Output.Dir)
	if err != nil {
		return nil, domainErrors.Wrap(err, domainErrors.CodeInvalidConfig, "resolve output directory")
	}

	rd, err := reader.New(
		reader.WithHTTPClient(&http.Client{Timeout: cfg.Remote.Timeout}),
		reader.WithRateLimit(cfg.Remote.Rate, cfg.Remote.Burst),
		reader.WithCacheSize(cfg.Remote.CacheSize),
	)
	if err != nil {
		return nil, err
	}

	engine := tsengine.New(cfg.Options)
	input := cache.NewInput()
	proc, err := processor.New(engine, input, cfg.Options)
	if err != nil {
		rd.Close()
		return nil, err
	}

	a := &App{
		Config:    cfg,
		reader:    rd,
		resolver:  resolver.New(rd, resolver.WithRoot(paths.Join(paths.Normalize(rootDir), "weave"))),
		input:     input,
		engine:    engine,
		processor: proc,
		tracer:    observability.Tracer,
		rootDir:   paths.Normalize(rootDir),
		outDir:    outDir,
		written:   make(map[string]*unit.CompiledUnit),
	}

	if cfg.DB.Enabled {
		store, err := history.Open(cfg.DB.Path)
		if err != nil {
			rd.Close()
			return nil, err
		}
		a.history = history.NewAdapter(store)
	}
	return a, nil
}

// SetHistoryStore replaces the history backend. A nil store disables
// history recording.
func (a *App) SetHistoryStore(store ports.HistoryStore) {
	a.buildMu.Lock()
	defer a.buildMu.Unlock()
	a.history = store
}

func (a *App) SetUpdateHandler(handler func(*Result)) {
	a.updateMu.Lock()
	defer a.updateMu.Unlock()
	a.onUpdate = handler
}

func (a *App) emitUpdate(result *Result) {
	a.updateMu.RLock()
	handler := a.onUpdate
	a.updateMu.RUnlock()
	if handler != nil {
		handler(result)
	}
}

// Build runs one cycle: resolve every unit reachable from the entries,
// merge them into the cache, process the changes, write outputs and record
// the cycle. Analysis problems end up as diagnostics on the result; the
// returned error is reserved for cancellation and infrastructure failures.
func (a *App) Build(ctx context.Context) (*Result, error) {
	a.buildMu.Lock()
	defer a.buildMu.Unlock()

	result, err := a.build(ctx)

	a.statusMu.Lock()
	a.cycles++
	a.lastBuild = time.Now()
	a.lastErr = err
	a.statusMu.Unlock()

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.BuildCyclesTotal.WithLabelValues(outcome).Inc()
	if err != nil {
		return nil, err
	}
	a.emitUpdate(result)
	return result, nil
}

func (a *App) build(ctx context.Context) (*Result, error) {
	ctx, span := a.tracer.Start(ctx, "app.Build")
	defer span.End()

	if len(a.Config.Entries) == 0 {
		return nil, domainErrors.AddContext(
			domainErrors.New(domainErrors.CodeInvalidConfig, "no entry files configured"),
			domainErrors.CtxOption, "entries",
		)
	}
	result := &Result{Started: time.Now()}

	resolveStart := time.Now()
	resolved, err := a.resolver.Resolve(ctx, a.Config.Entries)
	observability.ResolveDuration.Observe(time.Since(resolveStart).Seconds())
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	result.Graph = topology.Graph(resolved)
	if topology.Fallback(resolved) {
		result.Fallback = true
		observability.TopologyFallbackTotal.Inc()
		result.Cycles = topology.DetectCycles(result.Graph)
		if len(result.Cycles) > 0 {
			for _, cycle := range result.Cycles {
				slog.Warn("reference cycle forces reversed unit order", "cycle", cycle)
			}
		} else {
			slog.Warn("unsatisfied references force reversed unit order", "missing", topology.Unsatisfied(result.Graph))
		}
	}

	a.input.Merge(resolved)
	deleted := a.input.Deleted()
	result.Counts = a.input.Counts()

	compiled, err := a.processor.Process(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	result.Units = compiled
	for _, u := range a.input.Units() {
		result.Diagnostics = append(result.Diagnostics, u.Diagnostics...)
	}

	if err := a.writeOutputs(result, deleted); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if err := a.writeReports(result); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	result.Duration = time.Since(result.Started)
	observability.BuildDuration.Observe(result.Duration.Seconds())
	result.ID = a.recordCycle(result)

	span.SetAttributes(
		attribute.String("weave.cycle_id", result.ID),
		attribute.Int("weave.units", len(result.Units)),
		attribute.Int("weave.diagnostics", len(result.Diagnostics)),
	)
	slog.Info("build cycle finished",
		"units", len(result.Units),
		"changed", result.Changed(),
		"diagnostics", len(result.Diagnostics),
		"written", len(result.Written),
		"duration", result.Duration,
		"heap_mb", util.GetHeapAllocMB(),
	)
	return result, nil
}

// History returns the most recent recorded cycles, newest first.
func (a *App) History(limit int) ([]history.Cycle, error) {
	if a.history == nil {
		return nil, domainErrors.AddContext(
			domainErrors.New(domainErrors.CodeNotSupported, "build history is disabled"),
			domainErrors.CtxOption, "db.enabled",
		)
	}
	return a.history.LoadCycles(limit)
}

// Health reports "up" until a build cycle fails.
func (a *App) Health(_ context.Context) observability.HealthStatus {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	status := observability.HealthStatus{
		Status:    "up",
		Cycles:    a.cycles,
		LastBuild: a.lastBuild,
	}
	if a.lastErr != nil {
		status.Status = "degraded"
		status.LastError = a.lastErr.Error()
	}
	return status
}

func (a *App) Close() error {
	var errs []error
	if a.activeWatcher != nil {
		if err := a.activeWatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close watcher: %w", err))
		}
	}
	a.reader.Close()
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close history: %w", err))
		}
	}
	return errors.Join(errs...)
}
