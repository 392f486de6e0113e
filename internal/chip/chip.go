// Copyright 2025 Certen Protocol
//
// Chip is the kernel's pure boolean policy object: an ordered set of named
// gates reduced to a single boolean by a composition strategy. Chips are
// immutable and content-addressed, the same way the upstream proof package
// content-addresses governance bundles by canonical hash rather than by a
// mutable identifier.
package chip

import (
	"strconv"

	"github.com/LogLine-Foundation/UBL/internal/canon"
	"github.com/LogLine-Foundation/UBL/internal/expr"
	"github.com/LogLine-Foundation/UBL/internal/kernelerr"
	"github.com/LogLine-Foundation/UBL/internal/value"
)

// Gate is a single named boolean sub-expression.
type Gate struct {
	Name       string
	Expression expr.Node
}

// Composition is the gate-reduction strategy.
type Composition struct {
	Strategy  string // ALL, ANY, MAJORITY, WEIGHTED
	Weights   map[string]float64
	Threshold float64
}

const (
	StrategyAll       = "ALL"
	StrategyAny       = "ANY"
	StrategyMajority  = "MAJORITY"
	StrategyWeighted  = "WEIGHTED"
)

// Chip is immutable once constructed via New; ChipHash is computed over the
// canonical encoding of every field below except itself.
type Chip struct {
	Name        string
	Gates       []Gate
	Composition Composition
	ChipHash    string
}

// New validates gate-name uniqueness and (for WEIGHTED) that weights cover
// every gate, then computes ChipHash. Both checks enforce the two
// invariants spec.md §3's Chip block names explicitly ("gate names are
// unique; weights in WEIGHTED cover every gate"), so a violation is raised
// as InvariantViolation (HTTP 409) rather than Malformed (400) — the chip
// is structurally well-formed JSON, it just conflicts with itself.
// An unrecognized composition strategy name is a shape error instead: it
// is not one of the two invariants the spec names, so it stays Malformed.
func New(name string, gates []Gate, comp Composition) (*Chip, error) {
	seen := make(map[string]bool, len(gates))
	for _, g := range gates {
		if seen[g.Name] {
			return nil, kernelerr.New(kernelerr.InvariantViolation, "duplicate gate name %q", g.Name)
		}
		seen[g.Name] = true
	}
	switch comp.Strategy {
	case StrategyAll, StrategyAny, StrategyMajority:
	case StrategyWeighted:
		for _, g := range gates {
			if _, ok := comp.Weights[g.Name]; !ok {
				return nil, kernelerr.New(kernelerr.InvariantViolation, "WEIGHTED composition missing weight for gate %q", g.Name)
			}
		}
	default:
		return nil, kernelerr.New(kernelerr.Malformed, "unknown composition strategy %q", comp.Strategy)
	}
	c := &Chip{Name: name, Gates: gates, Composition: comp}
	c.ChipHash = canon.Hash(c.canonicalValue())
	return c, nil
}

// canonicalValue renders the hashable projection of the chip (ChipHash
// itself is never part of its own input).
func (c *Chip) canonicalValue() value.Value {
	gateVals := make([]value.Value, len(c.Gates))
	for i, g := range c.Gates {
		gateVals[i] = value.Map(map[string]value.Value{
			"name":       value.Str(g.Name),
			"expression": value.Str(exprFingerprint(g.Expression)),
		})
	}
	weights := make(map[string]value.Value, len(c.Composition.Weights))
	for k, w := range c.Composition.Weights {
		dv, _ := value.DecimalFromString(formatFloat(w))
		weights[k] = dv
	}
	threshold, _ := value.DecimalFromString(formatFloat(c.Composition.Threshold))
	return value.Map(map[string]value.Value{
		"name":  value.Str(c.Name),
		"gates": value.List(gateVals),
		"composition": value.Map(map[string]value.Value{
			"strategy":  value.Str(c.Composition.Strategy),
			"weights":   value.Map(weights),
			"threshold": threshold,
		}),
	})
}

// GateResult captures one gate's outcome within a Proof; a failing
// expression is contained here, not propagated.
type GateResult struct {
	Name   string
	Result bool
	Error  string // empty when the gate evaluated cleanly
}

// Evaluate runs every gate in declared order against ctx and reduces the
// per-gate results with the chip's composition strategy.
func Evaluate(c *Chip, ctx *expr.Context) (perGate []GateResult, compositionResult bool, err error) {
	perGate = make([]GateResult, len(c.Gates))
	for i, g := range c.Gates {
		v, evalErr := expr.Eval(g.Expression, ctx)
		if evalErr != nil {
			perGate[i] = GateResult{Name: g.Name, Result: false, Error: evalErr.Error()}
			continue
		}
		perGate[i] = GateResult{Name: g.Name, Result: v.Truthy()}
	}
	compositionResult, err = compose(c.Composition, perGate)
	return perGate, compositionResult, err
}

func compose(comp Composition, results []GateResult) (bool, error) {
	switch comp.Strategy {
	case StrategyAll:
		for _, r := range results {
			if !r.Result {
				return false, nil
			}
		}
		return true, nil
	case StrategyAny:
		for _, r := range results {
			if r.Result {
				return true, nil
			}
		}
		return false, nil
	case StrategyMajority:
		trueCount := 0
		for _, r := range results {
			if r.Result {
				trueCount++
			}
		}
		// Strictly more than half; this is the spec's pinned tie-break for
		// even gate counts (a tie never satisfies "strictly more than half").
		return trueCount*2 > len(results), nil
	case StrategyWeighted:
		var sum float64
		for _, r := range results {
			if r.Result {
				sum += comp.Weights[r.Name]
			}
		}
		// Threshold semantics pinned to >= per design notes.
		return sum >= comp.Threshold, nil
	default:
		return false, kernelerr.New(kernelerr.Malformed, "unknown composition strategy %q", comp.Strategy)
	}
}

func exprFingerprint(n expr.Node) string {
	// A stable textual fingerprint used only inside chip_hash computation;
	// it does not need to be human-authorable, only deterministic.
	return fingerprint(n)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
