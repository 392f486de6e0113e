// Copyright 2025 Certen Protocol
//
// Programpack loads Chips and Programs from YAML documents using
// gopkg.in/yaml.v3, the same library the rest of this codebase reaches for
// wherever a human-authored document needs parsing. A pack never contains
// anything executable: every expression and payload tree decodes through
// value.FromGeneric / expr.Decode exactly like an HTTP request body would,
// so a program pack is not a trusted-code channel, just a more convenient
// way to author the same JSON-shaped registration calls /register exposes.
package programpack

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/LogLine-Foundation/UBL/internal/chip"
	"github.com/LogLine-Foundation/UBL/internal/expr"
	"github.com/LogLine-Foundation/UBL/internal/kernelerr"
	"github.com/LogLine-Foundation/UBL/internal/program"
	"github.com/LogLine-Foundation/UBL/internal/registry"
	"github.com/LogLine-Foundation/UBL/internal/value"
)

type packDoc struct {
	Chips    []chipDoc    `yaml:"chips"`
	Programs []programDoc `yaml:"programs"`
}

type chipDoc struct {
	Name        string    `yaml:"name"`
	Gates       []gateDoc `yaml:"gates"`
	Composition compDoc   `yaml:"composition"`
}

type gateDoc struct {
	Name       string      `yaml:"name"`
	Expression interface{} `yaml:"expression"`
}

type compDoc struct {
	Strategy  string             `yaml:"strategy"`
	Weights   map[string]float64 `yaml:"weights"`
	Threshold float64            `yaml:"threshold"`
}

type programDoc struct {
	Name     string       `yaml:"name"`
	Evaluate string       `yaml:"evaluate"`
	Context  []bindingDoc `yaml:"context"`
	OnAllow  []effectDoc  `yaml:"on_allow"`
	OnDeny   []effectDoc  `yaml:"on_deny"`
}

type bindingDoc struct {
	Name       string      `yaml:"name"`
	Source     string      `yaml:"source"` // "input.<path>", "ledger.<path>", or the bare word "computed"
	Expression interface{} `yaml:"expression"`
}

type effectDoc struct {
	Kind    string      `yaml:"kind"`
	Target  string      `yaml:"target"`
	Payload interface{} `yaml:"payload"`
}

// LoadDir registers every *.yaml/*.yml file in dir into reg, in directory
// listing order. A pack directory is optional infrastructure: the kernel
// runs fine with an empty or absent one, relying solely on /register.
func LoadDir(dir string, reg *registry.Registry) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return kernelerr.Wrap(kernelerr.PersistenceErr, err, "read program pack directory %q", dir)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return kernelerr.Wrap(kernelerr.PersistenceErr, err, "read program pack %q", path)
		}
		if err := LoadBytes(data, reg); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// LoadBytes parses one YAML document and registers every chip and program
// it declares. Chips are built and registered before programs so a
// program's `evaluate: CHIP:<name>` resolves against them immediately,
// though registry.ResolveChipName re-resolves by name on every execute
// regardless of load order.
func LoadBytes(data []byte, reg *registry.Registry) error {
	var doc packDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return kernelerr.Wrap(kernelerr.Malformed, err, "parse program pack YAML")
	}
	for _, cd := range doc.Chips {
		c, err := buildChip(cd)
		if err != nil {
			return fmt.Errorf("chip %q: %w", cd.Name, err)
		}
		reg.RegisterChip(c)
	}
	for _, pd := range doc.Programs {
		p, err := buildProgram(pd)
		if err != nil {
			return fmt.Errorf("program %q: %w", pd.Name, err)
		}
		reg.RegisterProgram(p)
	}
	return nil
}

func buildChip(cd chipDoc) (*chip.Chip, error) {
	gates := make([]chip.Gate, len(cd.Gates))
	for i, gd := range cd.Gates {
		node, err := expr.Decode(gd.Expression)
		if err != nil {
			return nil, fmt.Errorf("gate %q: %w", gd.Name, err)
		}
		gates[i] = chip.Gate{Name: gd.Name, Expression: node}
	}
	comp := chip.Composition{
		Strategy:  strings.ToUpper(cd.Composition.Strategy),
		Weights:   cd.Composition.Weights,
		Threshold: cd.Composition.Threshold,
	}
	return chip.New(cd.Name, gates, comp)
}

func buildProgram(pd programDoc) (*program.Program, error) {
	bindings := make([]program.Binding, len(pd.Context))
	for i, bd := range pd.Context {
		b, err := buildBinding(bd)
		if err != nil {
			return nil, fmt.Errorf("binding %q: %w", bd.Name, err)
		}
		bindings[i] = b
	}
	onAllow, err := buildEffects(pd.OnAllow)
	if err != nil {
		return nil, fmt.Errorf("on_allow: %w", err)
	}
	onDeny, err := buildEffects(pd.OnDeny)
	if err != nil {
		return nil, fmt.Errorf("on_deny: %w", err)
	}
	return program.New(pd.Name, bindings, pd.Evaluate, onAllow, onDeny)
}

func buildBinding(bd bindingDoc) (program.Binding, error) {
	switch {
	case bd.Source == "computed":
		node, err := expr.Decode(bd.Expression)
		if err != nil {
			return program.Binding{}, err
		}
		return program.Binding{Name: bd.Name, Kind: program.SourceComputed, Expr: node}, nil
	case strings.HasPrefix(bd.Source, "input."):
		return program.Binding{Name: bd.Name, Kind: program.SourceInput, Path: strings.TrimPrefix(bd.Source, "input.")}, nil
	case strings.HasPrefix(bd.Source, "ledger."):
		return program.Binding{Name: bd.Name, Kind: program.SourceLedger, Path: strings.TrimPrefix(bd.Source, "ledger.")}, nil
	default:
		return program.Binding{}, fmt.Errorf("unrecognized binding source %q", bd.Source)
	}
}

func buildEffects(docs []effectDoc) ([]program.EffectTemplate, error) {
	out := make([]program.EffectTemplate, len(docs))
	for i, ed := range docs {
		payload, err := value.FromGeneric(ed.Payload)
		if err != nil {
			return nil, fmt.Errorf("effect %d payload: %w", i, err)
		}
		out[i] = program.EffectTemplate{
			Kind:    program.EffectKind(ed.Kind),
			Target:  ed.Target,
			Payload: payload,
		}
	}
	return out, nil
}
