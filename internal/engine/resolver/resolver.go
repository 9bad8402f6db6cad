// Package resolver discovers every unit reachable from a set of entry files
// through reference directives.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"weave/internal/core/ports"
	"weave/internal/engine/paths"
	"weave/internal/engine/topology"
	"weave/internal/engine/unit"
)

// Resolver walks reference directives depth first, reading each distinct
// path at most once and one at a time.
type Resolver struct {
	reader ports.Reader
	root   string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRoot sets the synthetic parent that entry paths are resolved against.
// Relative entries resolve against its directory.
func WithRoot(root string) Option {
	return func(r *Resolver) {
		r.root = paths.Normalize(root)
	}
}

// New creates a Resolver reading through reader. The default root is a
// "weave" entry in the working directory.
func New(reader ports.Reader, opts ...Option) *Resolver {
	r := &Resolver{reader: reader}
	if cwd, err := os.Getwd(); err == nil {
		r.root = paths.Join(paths.Normalize(cwd), "weave")
	} else {
		r.root = "/weave"
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Root returns the synthetic parent path of entry units.
func (r *Resolver) Root() string {
	return r.root
}

// Result is the outcome of one ResolveAsync call.
type Result struct {
	Units []*unit.SourceUnit
	Err   error
}

// Resolve reads all units reachable from entries and returns them in
// dependency order. Units that could not be read are returned unloaded with
// a diagnostic. The only error is cancellation of ctx between reads.
func (r *Resolver) Resolve(ctx context.Context, entries []string) ([]*unit.SourceUnit, error) {
	pending := make([]unit.LoadParameter, 0, len(entries))
	for _, entry := range entries {
		pending = append(pending, unit.NewLoadParameter(r.root, entry))
	}

	closed := make(map[string]bool)
	var units []*unit.SourceUnit
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if closed[next.Filename] {
			continue
		}
		closed[next.Filename] = true

		u := r.load(ctx, next)
		if u.Loaded() {
			for _, ref := range u.References() {
				pending = append(pending, unit.NewLoadParameter(u.Path, ref))
			}
		}
		units = append(units, u)
	}

	slog.Debug("resolved units", "entries", len(entries), "units", len(units))
	return topology.Sort(units), nil
}

// ResolveAsync runs Resolve in the background. The returned channel yields
// exactly one Result and is then closed.
func (r *Resolver) ResolveAsync(ctx context.Context, entries []string) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		units, err := r.Resolve(ctx, entries)
		out <- Result{Units: units, Err: err}
	}()
	return out
}

func (r *Resolver) load(ctx context.Context, param unit.LoadParameter) *unit.SourceUnit {
	res, err := r.reader.ReadFile(ctx, param.Filename)
	if err != nil {
		slog.Warn("failed to read unit", "path", param.Filename, "parent", param.Parent, "error", err)
		msg := fmt.Sprintf("File '%s' not found (referenced from '%s'): %v", param.Filename, param.Parent, err)
		return unit.NewFailedUnit(param.Filename, paths.IsAbsoluteURL(param.Filename), msg)
	}
	return unit.NewSourceUnit(param.Filename, res.Content, res.Remote)
}
