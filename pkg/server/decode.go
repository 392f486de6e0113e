// Copyright 2025 Certen Protocol
//
// Wire-to-domain decoding for the registration and verify endpoints.
// Registration mirrors internal/programpack's buildChip/buildProgram shape
// exactly — the only difference is the source document is a JSON request
// body instead of a YAML pack file, so the same expr.Decode /
// value.FromGeneric boundary applies before anything touches the
// Chip/Program constructors. /verify's proof decodes through Value's own
// lossless wire form instead, since a replayed context_snapshot must
// preserve decimal and timestamp fidelity that FromGeneric's bare-JSON
// path cannot.
package server

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/LogLine-Foundation/UBL/internal/chip"
	"github.com/LogLine-Foundation/UBL/internal/expr"
	"github.com/LogLine-Foundation/UBL/internal/kernelerr"
	"github.com/LogLine-Foundation/UBL/internal/program"
	"github.com/LogLine-Foundation/UBL/internal/value"
)

func decodeAndBuildChip(req registerChipRequest) (*chip.Chip, error) {
	gates := make([]chip.Gate, len(req.Gates))
	for i, gr := range req.Gates {
		node, err := expr.Decode(gr.Expression)
		if err != nil {
			return nil, kernelerr.Wrap(kernelerr.Malformed, err, "gate %q expression", gr.Name)
		}
		gates[i] = chip.Gate{Name: gr.Name, Expression: node}
	}
	comp := chip.Composition{
		Strategy:  strings.ToUpper(req.Composition.Strategy),
		Weights:   req.Composition.Weights,
		Threshold: req.Composition.Threshold,
	}
	return chip.New(req.Name, gates, comp)
}

func decodeAndBuildProgram(req registerProgramRequest) (*program.Program, error) {
	bindings := make([]program.Binding, len(req.Context))
	for i, br := range req.Context {
		b, err := decodeBinding(br)
		if err != nil {
			return nil, kernelerr.Wrap(kernelerr.Malformed, err, "binding %q", br.Name)
		}
		bindings[i] = b
	}
	onAllow, err := decodeEffects(req.OnAllow)
	if err != nil {
		return nil, kernelerr.Wrap(kernelerr.Malformed, err, "on_allow")
	}
	onDeny, err := decodeEffects(req.OnDeny)
	if err != nil {
		return nil, kernelerr.Wrap(kernelerr.Malformed, err, "on_deny")
	}
	return program.New(req.Name, bindings, req.Evaluate, onAllow, onDeny)
}

func decodeBinding(br registerBindingRequest) (program.Binding, error) {
	switch {
	case br.Source == "computed":
		node, err := expr.Decode(br.Expression)
		if err != nil {
			return program.Binding{}, err
		}
		return program.Binding{Name: br.Name, Kind: program.SourceComputed, Expr: node}, nil
	case strings.HasPrefix(br.Source, "input."):
		return program.Binding{Name: br.Name, Kind: program.SourceInput, Path: strings.TrimPrefix(br.Source, "input.")}, nil
	case strings.HasPrefix(br.Source, "ledger."):
		return program.Binding{Name: br.Name, Kind: program.SourceLedger, Path: strings.TrimPrefix(br.Source, "ledger.")}, nil
	default:
		return program.Binding{}, fmt.Errorf("unrecognized binding source %q", br.Source)
	}
}

func decodeEffects(docs []registerEffectRequest) ([]program.EffectTemplate, error) {
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

// wireProof mirrors proofView's response shape for decoding. context_snapshot
// decodes into a value.Value directly, which dispatches to Value's own
// UnmarshalJSON (internal/value/json.go) — the same {"k":...,"v":...}
// lossless wire form the ledger's on-disk document uses, so a decimal or
// timestamp bound into the context survives the round trip exactly.
type wireProof struct {
	ChipHash          string           `json:"chip_hash"`
	ContextSnapshot   value.Value      `json:"context_snapshot"`
	Now               string           `json:"now"`
	PerGate           []wireGateResult `json:"per_gate"`
	CompositionResult bool             `json:"composition_result"`
	ProofHash         string           `json:"proof_hash"`
	Signature         string           `json:"signature"`
}

type wireGateResult struct {
	Name   string `json:"name"`
	Result bool   `json:"result"`
	Error  string `json:"error"`
}

// decodeProof rebuilds a *chip.Proof from the raw JSON body /verify
// receives. Only the fields Verify actually re-derives from are read;
// anything else in the submitted document is ignored, the same "drop
// undeclared fields" posture the Isolation Barrier uses.
func decodeProof(raw json.RawMessage) (*chip.Proof, error) {
	var w wireProof
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, kernelerr.Wrap(kernelerr.Malformed, err, "decode proof")
	}
	if w.ContextSnapshot.Kind() != value.KindMap {
		return nil, kernelerr.New(kernelerr.Malformed, "proof.context_snapshot is required")
	}

	now, err := time.Parse(time.RFC3339Nano, w.Now)
	if err != nil {
		return nil, kernelerr.Wrap(kernelerr.Malformed, err, "proof.now must be RFC3339")
	}

	perGate := make([]chip.GateResult, len(w.PerGate))
	for i, g := range w.PerGate {
		perGate[i] = chip.GateResult{Name: g.Name, Result: g.Result, Error: g.Error}
	}

	return &chip.Proof{
		ChipHash:          w.ChipHash,
		ContextSnapshot:   w.ContextSnapshot,
		Now:               now,
		PerGate:           perGate,
		CompositionResult: w.CompositionResult,
		ProofHash:         w.ProofHash,
		Signature:         w.Signature,
	}, nil
}
