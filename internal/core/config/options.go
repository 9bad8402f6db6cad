package config

import (
	"fmt"
	"sort"
	"strings"

	"weave/internal/core/errors"
)

type Target int

const (
	TargetES3 Target = iota
	TargetES5
	TargetES6
)

var targetNames = map[string]Target{
	"es3": TargetES3,
	"es5": TargetES5,
	"es6": TargetES6,
}

func (t Target) String() string {
	switch t {
	case TargetES3:
		return "es3"
	case TargetES5:
		return "es5"
	case TargetES6:
		return "es6"
	}
	return fmt.Sprintf("Target(%d)", int(t))
}

type ModuleKind int

const (
	ModuleNone ModuleKind = iota
	ModuleCommonJS
	ModuleAMD
)

var moduleNames = map[string]ModuleKind{
	"none":     ModuleNone,
	"commonjs": ModuleCommonJS,
	"amd":      ModuleAMD,
}

func (m ModuleKind) String() string {
	switch m {
	case ModuleNone:
		return "none"
	case ModuleCommonJS:
		return "commonjs"
	case ModuleAMD:
		return "amd"
	}
	return fmt.Sprintf("ModuleKind(%d)", int(m))
}

// Strategy selects how a processing cycle asks the engine for output.
type Strategy int

const (
	// StrategyPerUnit emits each changed unit on its own.
	StrategyPerUnit Strategy = iota
	// StrategyBundle emits the whole program into one logical output.
	StrategyBundle
	// StrategyGeneric emits the whole program and maps files back by name.
	StrategyGeneric
)

var strategyNames = map[string]Strategy{
	"per_unit": StrategyPerUnit,
	"bundle":   StrategyBundle,
	"generic":  StrategyGeneric,
}

func (s Strategy) String() string {
	switch s {
	case StrategyPerUnit:
		return "per_unit"
	case StrategyBundle:
		return "bundle"
	case StrategyGeneric:
		return "generic"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// CompilerOptions is the typed, validated compiler configuration shared by
// the processor and the engine.
type CompilerOptions struct {
	Target         Target
	Module         ModuleKind
	Strategy       Strategy
	Declaration    bool
	SourceMap      bool
	RemoveComments bool
	NoImplicitAny  bool
	OutFile        string
}

// Bundled reports whether whole-program emission goes to OutFile.
func (o CompilerOptions) Bundled() bool {
	return o.Strategy == StrategyBundle && o.OutFile != ""
}

// DefaultCompilerOptions mirrors the defaults applied to an empty [compiler]
// section.
func DefaultCompilerOptions() CompilerOptions {
	return CompilerOptions{
		Target:   TargetES5,
		Module:   ModuleNone,
		Strategy: StrategyPerUnit,
		OutFile:  "bundle.js",
	}
}

// Options converts the raw TOML section into CompilerOptions. Unknown enum
// values fail with CodeInvalidConfig.
func (c Compiler) Options() (CompilerOptions, error) {
	target, err := lookupOption("compiler.target", c.Target, targetNames)
	if err != nil {
		return CompilerOptions{}, err
	}
	module, err := lookupOption("compiler.module", c.Module, moduleNames)
	if err != nil {
		return CompilerOptions{}, err
	}
	strategy, err := lookupOption("compiler.strategy", c.Strategy, strategyNames)
	if err != nil {
		return CompilerOptions{}, err
	}
	outFile := strings.TrimSpace(c.OutFile)
	if strategy == StrategyBundle && outFile == "" {
		return CompilerOptions{}, errors.AddContext(
			errors.New(errors.CodeInvalidConfig, "compiler.out_file must not be empty for the bundle strategy"),
			errors.CtxOption, "compiler.out_file",
		)
	}
	return CompilerOptions{
		Target:         target,
		Module:         module,
		Strategy:       strategy,
		Declaration:    c.Declaration,
		SourceMap:      c.SourceMap,
		RemoveComments: c.RemoveComments,
		NoImplicitAny:  c.NoImplicitAny,
		OutFile:        outFile,
	}, nil
}

func lookupOption[T any](name, raw string, known map[string]T) (T, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if v, ok := known[key]; ok {
		return v, nil
	}
	var zero T
	allowed := make([]string, 0, len(known))
	for k := range known {
		allowed = append(allowed, k)
	}
	sort.Strings(allowed)
	err := errors.New(errors.CodeInvalidConfig, fmt.Sprintf("%s must be one of: %s, got %q", name, strings.Join(allowed, ", "), raw))
	return zero, errors.AddContext(err, errors.CtxOption, name)
}
