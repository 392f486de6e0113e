// Copyright 2025 Certen Protocol
//
// Program is the orchestration object: it binds a context, names the chip
// to evaluate, and lists the ordered effects to apply for each outcome.
// Like Chip, it is immutable and content-addressed.
package program

import (
	"strings"

	"github.com/LogLine-Foundation/UBL/internal/canon"
	"github.com/LogLine-Foundation/UBL/internal/expr"
	"github.com/LogLine-Foundation/UBL/internal/kernelerr"
	"github.com/LogLine-Foundation/UBL/internal/value"
)

// BindingSourceKind tags where a context binding pulls its value from.
type BindingSourceKind string

const (
	SourceInput    BindingSourceKind = "input"
	SourceLedger   BindingSourceKind = "ledger"
	SourceComputed BindingSourceKind = "computed"
)

// Binding is one {binding_name, source} entry. Binding order is
// significant: later bindings (especially `computed` ones) may reference
// earlier ones by name.
type Binding struct {
	Name string
	Kind BindingSourceKind
	Path string    // for input./ledger. sources: the dotted path after the prefix
	Expr expr.Node // for computed sources: the already-decoded AST
}

// EffectKind enumerates the six mutation kinds.
type EffectKind string

const (
	EffectSet       EffectKind = "set"
	EffectDelete    EffectKind = "delete"
	EffectPush      EffectKind = "push"
	EffectMerge     EffectKind = "merge"
	EffectIncrement EffectKind = "increment"
	EffectEmit      EffectKind = "emit"
)

// EffectTemplate is an unresolved effect: target and payload may contain
// "{dotted.path}" placeholders to be substituted at execute time.
type EffectTemplate struct {
	Kind    EffectKind
	Target  string      // may contain {placeholders}
	Payload value.Value // placeholders permitted inside any string leaf
}

// Program is immutable once constructed via New.
type Program struct {
	Name        string
	Context     []Binding
	Evaluate    string // a chip hash, or "CHIP:<name>"
	OnAllow     []EffectTemplate
	OnDeny      []EffectTemplate
	ProgramHash string
}

func New(name string, context []Binding, evaluate string, onAllow, onDeny []EffectTemplate) (*Program, error) {
	if evaluate == "" {
		return nil, kernelerr.New(kernelerr.Malformed, "program %q: evaluate must reference a chip", name)
	}
	seen := make(map[string]bool, len(context))
	for _, b := range context {
		if seen[b.Name] {
			return nil, kernelerr.New(kernelerr.Malformed, "program %q: duplicate binding name %q", name, b.Name)
		}
		seen[b.Name] = true
	}
	p := &Program{Name: name, Context: context, Evaluate: evaluate, OnAllow: onAllow, OnDeny: onDeny}
	p.ProgramHash = canon.Hash(p.canonicalValue())
	return p, nil
}

func (p *Program) canonicalValue() value.Value {
	bindings := make([]value.Value, len(p.Context))
	for i, b := range p.Context {
		bindings[i] = value.Map(map[string]value.Value{
			"binding_name": value.Str(b.Name),
			"source":       value.Str(sourceString(b)),
		})
	}
	return value.Map(map[string]value.Value{
		"name":      value.Str(p.Name),
		"context":   value.List(bindings),
		"evaluate":  value.Str(p.Evaluate),
		"on_allow":  effectListValue(p.OnAllow),
		"on_deny":   effectListValue(p.OnDeny),
	})
}

func sourceString(b Binding) string {
	switch b.Kind {
	case SourceInput:
		return "input." + b.Path
	case SourceLedger:
		return "ledger." + b.Path
	case SourceComputed:
		return "computed." + expr.Fingerprint(b.Expr)
	default:
		return string(b.Kind) + "." + b.Path
	}
}

func effectListValue(effects []EffectTemplate) value.Value {
	out := make([]value.Value, len(effects))
	for i, e := range effects {
		out[i] = value.Map(map[string]value.Value{
			"kind":    value.Str(string(e.Kind)),
			"target":  value.Str(e.Target),
			"payload": e.Payload,
		})
	}
	return value.List(out)
}

// ParseSource splits a binding source string ("input.a.b", "ledger.x",
// "computed.<expr text>") into its kind and remainder.
func ParseSource(src string) (BindingSourceKind, string) {
	switch {
	case strings.HasPrefix(src, "input."):
		return SourceInput, strings.TrimPrefix(src, "input.")
	case strings.HasPrefix(src, "ledger."):
		return SourceLedger, strings.TrimPrefix(src, "ledger.")
	case strings.HasPrefix(src, "computed."):
		return SourceComputed, strings.TrimPrefix(src, "computed.")
	default:
		return "", src
	}
}
