package app

import (
	"context"
	"log/slog"

	"weave/internal/core/watcher"
)

// StartWatcher rebuilds whenever a .ts file below the entry root changes.
// Rebuilds run with ctx and stop once it is cancelled.
func (a *App) StartWatcher(ctx context.Context) error {
	w, err := watcher.NewWatcher(
		a.Config.Watch.Debounce,
		a.Config.Exclude.Dirs,
		a.Config.Exclude.Files,
		func(paths []string) { a.HandleChanges(ctx, paths) },
	)
	if err != nil {
		return err
	}
	w.IgnoreDir(a.outDir)
	a.activeWatcher = w
	return w.Watch([]string{a.rootDir})
}

// HandleChanges runs a build cycle for a batch of changed files. The cache
// diff decides which units the engine sees, so paths only serve logging.
func (a *App) HandleChanges(ctx context.Context, paths []string) {
	if ctx.Err() != nil {
		return
	}
	slog.Info("detected changes", "count", len(paths))
	if _, err := a.Build(ctx); err != nil {
		slog.Error("rebuild failed", "error", err)
	}
}
