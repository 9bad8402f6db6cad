package app

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	domainErrors "weave/internal/core/errors"
	"weave/internal/data/history"
	"weave/internal/engine/paths"
	"weave/internal/engine/reflection"
	"weave/internal/engine/unit"
	"weave/internal/shared/util"
	"weave/internal/shared/version"
	"weave/internal/ui/report"
)

// outputFiles are the files one compiled unit maps to on disk.
type outputFiles struct {
	js, sourceMap, declaration string
}

// outputPath mirrors a unit path below the entry root into the output
// directory. Units outside the root keep their full path below it.
func (a *App) outputPath(unitPath string) string {
	rel := unitPath
	if util.HasPathPrefix(unitPath, a.rootDir) {
		rel = strings.TrimPrefix(unitPath, a.rootDir)
	} else if vol := filepath.VolumeName(filepath.FromSlash(unitPath)); vol != "" {
		rel = strings.TrimPrefix(unitPath, filepath.ToSlash(vol))
	}
	rel = strings.TrimLeft(rel, "/")
	return filepath.Join(a.outDir, filepath.FromSlash(rel))
}

func (a *App) filesFor(cu *unit.CompiledUnit) outputFiles {
	if cu.Bundle {
		js := filepath.FromSlash(a.Config.Options.OutFile)
		if !filepath.IsAbs(js) {
			js = filepath.Join(a.outDir, js)
		}
		return outputFiles{
			js:          js,
			sourceMap:   js + ".map",
			declaration: filepath.FromSlash(paths.ReplaceExt(filepath.ToSlash(js), ".d.ts")),
		}
	}
	js := a.outputPath(paths.ReplaceExt(cu.Path, ".js"))
	return outputFiles{
		js:          js,
		sourceMap:   js + ".map",
		declaration: a.outputPath(paths.ReplaceExt(cu.Path, ".d.ts")),
	}
}

// writeOutputs writes every compiled unit that differs from what the last
// cycle wrote, and removes the outputs of deleted units. Remote units are
// never written.
func (a *App) writeOutputs(result *Result, deleted []*unit.SourceUnit) error {
	for _, cu := range result.Units {
		if prev, ok := a.written[cu.Path]; ok && prev == cu {
			continue
		}
		if !cu.Bundle {
			if src, ok := a.input.Lookup(cu.Path); ok && src.Remote {
				continue
			}
		}
		files := a.filesFor(cu)
		for _, f := range []struct{ name, content string }{
			{files.js, cu.Content},
			{files.sourceMap, cu.SourceMap},
			{files.declaration, cu.Declaration},
		} {
			if f.content == "" {
				continue
			}
			if err := util.WriteStringWithDirs(f.name, f.content, 0o644); err != nil {
				err = domainErrors.Wrap(err, domainErrors.CodeEmitFailed, "write output")
				return domainErrors.AddContext(err, domainErrors.CtxPath, f.name)
			}
			result.Written = append(result.Written, f.name)
		}
		a.written[cu.Path] = cu
	}

	for _, d := range deleted {
		delete(a.written, d.Path)
		if d.Remote {
			continue
		}
		files := a.filesFor(&unit.CompiledUnit{Unit: d.Unit})
		for _, name := range []string{files.js, files.sourceMap, files.declaration} {
			err := os.Remove(name)
			switch {
			case err == nil:
				result.Removed = append(result.Removed, name)
			case errors.Is(err, fs.ErrNotExist):
			default:
				slog.Warn("failed to remove output of deleted unit", "path", name, "error", err)
			}
		}
	}
	return nil
}

// writeReports writes the optional whole-program artifacts: the reflection
// model as JSON, diagnostics as SARIF and the reference graph as Mermaid.
func (a *App) writeReports(result *Result) error {
	out := a.Config.Output
	if target := strings.TrimSpace(out.Reflection); target != "" {
		scripts := make([]*reflection.Script, 0, len(result.Units))
		for _, cu := range result.Units {
			if cu.Script != nil {
				scripts = append(scripts, cu.Script)
			}
		}
		data, err := json.MarshalIndent(reflection.NewReflection(scripts), "", "  ")
		if err != nil {
			return domainErrors.Wrap(err, domainErrors.CodeInternal, "encode reflection")
		}
		if err := writeReport(target, append(data, '\n')); err != nil {
			return err
		}
	}

	if target := strings.TrimSpace(out.SARIF); target != "" {
		data, err := report.GenerateSARIF(a.rootDir, version.Version, result.Diagnostics, result.Cycles)
		if err != nil {
			return domainErrors.Wrap(err, domainErrors.CodeInternal, "encode sarif")
		}
		if err := writeReport(target, append(data, '\n')); err != nil {
			return err
		}
	}

	if target := strings.TrimSpace(out.Graph); target != "" {
		if err := writeReport(target, []byte(report.GenerateMermaid(a.rootDir, result.Graph, result.Cycles))); err != nil {
			return err
		}
	}
	return nil
}

func writeReport(target string, data []byte) error {
	if err := util.WriteFileWithDirs(target, data, 0o644); err != nil {
		err = domainErrors.Wrap(err, domainErrors.CodeEmitFailed, "write report")
		return domainErrors.AddContext(err, domainErrors.CtxPath, target)
	}
	return nil
}

// recordCycle stores the cycle summary when history is enabled and returns
// the cycle id. A failing store is logged and never fails the build.
func (a *App) recordCycle(result *Result) string {
	id := uuid.NewString()
	if a.history == nil {
		return id
	}

	cycle := history.Cycle{
		ID:          id,
		Timestamp:   result.Started.UTC().Truncate(time.Millisecond),
		Strategy:    a.Config.Options.Strategy.String(),
		Added:       result.Counts[unit.StateAdded],
		Updated:     result.Counts[unit.StateUpdated],
		Same:        result.Counts[unit.StateSame],
		Deleted:     result.Counts[unit.StateDeleted],
		Diagnostics: len(result.Diagnostics),
		Duration:    result.Duration,
		Fallback:    result.Fallback,
	}
	units := append(a.input.Units(), a.input.Deleted()...)
	for _, u := range units {
		cycle.Units = append(cycle.Units, history.UnitRecord{
			Path:        u.Path,
			State:       u.State.String(),
			Remote:      u.Remote,
			Diagnostics: len(u.Diagnostics),
		})
	}
	if err := a.history.SaveCycle(cycle); err != nil {
		slog.Warn("failed to record build cycle", "id", id, "error", err)
	}
	return id
}
