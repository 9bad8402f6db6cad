// Package cache keeps the units of the previous build cycle and classifies a
// fresh resolution against them.
package cache

import (
	"sync"

	"weave/internal/engine/unit"
)

// Input is the ordered set of units seen by the last merge. Updated units
// keep their identity across merges.
type Input struct {
	mu      sync.RWMutex
	units   []*unit.SourceUnit
	byPath  map[string]*unit.SourceUnit
	deleted []*unit.SourceUnit
}

func NewInput() *Input {
	return &Input{byPath: make(map[string]*unit.SourceUnit)}
}

// Merge diffs fresh against the cached units and rebuilds the cache in fresh
// order. Every returned unit carries its state for this cycle; units that
// were cached but are absent from fresh are marked Deleted and dropped.
func (in *Input) Merge(fresh []*unit.SourceUnit) []*unit.SourceUnit {
	in.mu.Lock()
	defer in.mu.Unlock()

	present := make(map[string]bool, len(fresh))
	for _, f := range fresh {
		present[f.Path] = true
	}

	var deleted []*unit.SourceUnit
	for _, cached := range in.units {
		if !present[cached.Path] {
			cached.State = unit.StateDeleted
			deleted = append(deleted, cached)
		}
	}

	merged := make([]*unit.SourceUnit, 0, len(fresh))
	byPath := make(map[string]*unit.SourceUnit, len(fresh))
	for _, f := range fresh {
		if _, dup := byPath[f.Path]; dup {
			continue
		}
		cached, ok := in.byPath[f.Path]
		switch {
		case !ok:
			f.State = unit.StateAdded
			cached = f
		case cached.SameContent(f):
			cached.State = unit.StateSame
		default:
			cached.SetContent(f.Content, f.Loaded())
			cached.Path = f.Path
			cached.Remote = f.Remote
			cached.Diagnostics = append([]unit.Diagnostic(nil), f.Diagnostics...)
			cached.State = unit.StateUpdated
		}
		merged = append(merged, cached)
		byPath[cached.Path] = cached
	}

	in.units = merged
	in.byPath = byPath
	in.deleted = deleted
	return in.snapshot()
}

// Units returns the cached units in their last merged order.
func (in *Input) Units() []*unit.SourceUnit {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.snapshot()
}

func (in *Input) snapshot() []*unit.SourceUnit {
	out := make([]*unit.SourceUnit, len(in.units))
	copy(out, in.units)
	return out
}

// Deleted returns the units the last merge dropped.
func (in *Input) Deleted() []*unit.SourceUnit {
	in.mu.RLock()
	defer in.mu.RUnlock()
	out := make([]*unit.SourceUnit, len(in.deleted))
	copy(out, in.deleted)
	return out
}

func (in *Input) Lookup(path string) (*unit.SourceUnit, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	u, ok := in.byPath[path]
	return u, ok
}

func (in *Input) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.units)
}

// Counts tallies the units of the last merge by state, deleted included.
func (in *Input) Counts() map[unit.State]int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	counts := make(map[unit.State]int, 4)
	for _, u := range in.units {
		counts[u.State]++
	}
	counts[unit.StateDeleted] += len(in.deleted)
	return counts
}
