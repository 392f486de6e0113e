// Copyright 2025 Certen Protocol
//
// Executor runs a Program against a ledger exactly once: resolve, snapshot
// and check the optimistic-concurrency version, freeze the clock, build the
// bound context, evaluate the chip, resolve the winning effect templates,
// stage them against a copy of state, and commit — or abort with no trace
// left behind. This is the single call site that ever acquires the
// ledger's writer lock, mirroring the upstream commit thread's "only one
// goroutine ever calls Commit" contract.
package executor

import (
	"regexp"
	"strings"
	"time"

	"github.com/LogLine-Foundation/UBL/internal/canon"
	"github.com/LogLine-Foundation/UBL/internal/chip"
	"github.com/LogLine-Foundation/UBL/internal/expr"
	"github.com/LogLine-Foundation/UBL/internal/kernelerr"
	"github.com/LogLine-Foundation/UBL/internal/ledgerx"
	"github.com/LogLine-Foundation/UBL/internal/program"
	"github.com/LogLine-Foundation/UBL/internal/registry"
	"github.com/LogLine-Foundation/UBL/internal/signing"
	"github.com/LogLine-Foundation/UBL/internal/value"
)

// Kernel wires together everything one /execute call needs.
type Kernel struct {
	Registry *registry.Registry
	Ledger   *ledgerx.Ledger
	Signer   *signing.Signer // nil means the kernel runs unsigned
}

// Request is one /execute call's payload.
type Request struct {
	ProgramRef    string
	Inputs        value.Value // KindMap
	TargetVersion *uint64     // optional optimistic-concurrency check
}

// Result is everything /execute returns on success.
type Result struct {
	CompositionResult bool
	Proof             *chip.Proof
	Record            ledgerx.EffectRecord
}

// Execute runs the ten-step procedure. On any failure the ledger is left
// completely untouched — no partial state, no orphan record.
func (k *Kernel) Execute(req Request) (*Result, error) {
	// Step 1: resolve program, then the chip it evaluates.
	prog, err := k.Registry.GetProgram(req.ProgramRef)
	if err != nil {
		return nil, err
	}
	c, err := resolveChip(k.Registry, prog.Evaluate)
	if err != nil {
		return nil, err
	}

	k.Ledger.Lock()
	defer k.Ledger.Unlock()

	// Step 2: snapshot + optimistic concurrency check, all under the lock.
	snap := k.Ledger.Snapshot()
	if req.TargetVersion != nil && *req.TargetVersion != snap.Version {
		return nil, kernelerr.New(kernelerr.VersionConflict,
			"target_version %d does not match current state_version %d", *req.TargetVersion, snap.Version)
	}

	// Step 3: freeze now() for the whole execution.
	now := time.Now().UTC()

	// Step 4: build context from ordered bindings.
	ctxVars, err := buildContext(prog.Context, req.Inputs, snap.State, now)
	if err != nil {
		return nil, err
	}

	// Step 5: evaluate the chip.
	evalCtx := &expr.Context{Vars: value.Map(ctxVars), Now: now}
	proof, err := chip.Run(c, evalCtx)
	if err != nil {
		return nil, err
	}
	if k.Signer != nil && k.Signer.Private != nil {
		if err := proof.Sign(k.Signer.Private); err != nil {
			return nil, kernelerr.Wrap(kernelerr.EffectError, err, "sign proof")
		}
	}

	// Step 6: choose the effect list for the outcome.
	templates := prog.OnDeny
	if proof.CompositionResult {
		templates = prog.OnAllow
	}

	// Step 7: resolve {path} placeholders against {context, proof, now, inputs}.
	namespace := templateNamespace(value.Map(ctxVars), proof, now, req.Inputs)
	resolved := make([]ledgerx.ResolvedEffect, len(templates))
	for i, t := range templates {
		target, err := resolveTemplateString(t.Target, namespace)
		if err != nil {
			return nil, err
		}
		payload, err := resolveTemplateValue(t.Payload, namespace)
		if err != nil {
			return nil, err
		}
		resolved[i] = ledgerx.ResolvedEffect{Kind: string(t.Kind), Target: target, Payload: payload}
	}

	// Step 8: apply effects in order to a staged copy of state; abort the
	// whole execution on the first failure, leaving the ledger untouched.
	staged := make(map[string]value.Value, len(snap.State))
	for path, v := range snap.State {
		staged[path] = v
	}
	var events []value.Value
	for _, e := range resolved {
		ev, err := applyEffect(staged, e)
		if err != nil {
			return nil, kernelerr.Wrap(kernelerr.EffectError, err, "apply effect %s %s", e.Kind, e.Target)
		}
		if ev != nil {
			events = append(events, *ev)
		}
	}

	// Step 9: build the effect record. Every commit advances state_version
	// by exactly 1 starting from 0, so sequence and the new version always
	// coincide — the chain-integrity check in Ledger.verifyChain relies on
	// this invariant holding for every record ever committed.
	newVersion := snap.Version + 1
	record := ledgerx.EffectRecord{
		Sequence:           newVersion,
		ProgramHash:        prog.ProgramHash,
		InputsDigest:       canon.Hash(req.Inputs),
		ProofHash:          proof.ProofHash,
		ResolvedEffects:    resolved,
		Events:             events,
		StateVersionBefore: snap.Version,
		StateVersionAfter:  newVersion,
		Timestamp:          now,
		PreviousRecordHash: snap.Head,
	}
	record.RecordHash = canon.Hash(record.CanonicalValue())
	if k.Signer != nil && k.Signer.Private != nil {
		sig, err := k.Signer.SignHashHex(record.RecordHash)
		if err != nil {
			return nil, kernelerr.Wrap(kernelerr.EffectError, err, "sign record")
		}
		record.RecordSignature = sig
	}

	// Step 10: commit.
	if err := k.Ledger.Commit(staged, newVersion, record); err != nil {
		return nil, err
	}

	return &Result{CompositionResult: proof.CompositionResult, Proof: proof, Record: record}, nil
}

func resolveChip(reg *registry.Registry, evaluate string) (*chip.Chip, error) {
	if name, ok := strings.CutPrefix(evaluate, "CHIP:"); ok {
		return reg.ResolveChipName(name)
	}
	return reg.GetChip(evaluate)
}

// buildContext resolves every binding in declared order into a flat
// binding_name -> Value map. Earlier bindings are visible to later
// `computed` expressions via Var lookups into the map built so far.
func buildContext(bindings []program.Binding, inputs value.Value, ledgerState map[string]value.Value, now time.Time) (map[string]value.Value, error) {
	ctx := make(map[string]value.Value, len(bindings)+1)
	ctx["now"] = value.Timestamp(now)
	for _, b := range bindings {
		switch b.Kind {
		case program.SourceInput:
			ctx[b.Name] = value.Path(inputs, strings.Split(b.Path, "."))
		case program.SourceLedger:
			if v, ok := ledgerState[b.Path]; ok {
				ctx[b.Name] = v
			} else {
				ctx[b.Name] = value.Null()
			}
		case program.SourceComputed:
			v, err := expr.Eval(b.Expr, &expr.Context{Vars: value.Map(ctx), Now: now})
			if err != nil {
				return nil, err
			}
			ctx[b.Name] = v
		default:
			return nil, kernelerr.New(kernelerr.Malformed, "binding %q has unknown source kind %q", b.Name, b.Kind)
		}
	}
	return ctx, nil
}

// templateNamespace builds the four addressable buckets template
// placeholders resolve against, per the documented substitution rule.
func templateNamespace(context value.Value, proof *chip.Proof, now time.Time, inputs value.Value) map[string]value.Value {
	return map[string]value.Value{
		"context": context,
		"proof": value.Map(map[string]value.Value{
			"chip_hash":          value.Str(proof.ChipHash),
			"composition_result": value.Bool(proof.CompositionResult),
			"proof_hash":         value.Str(proof.ProofHash),
		}),
		"now":    value.Timestamp(now),
		"inputs": inputs,
		// Aliases for the binding-source vocabulary: a placeholder written
		// as {computed.new_balance} or {input.to_id} addresses the same
		// value a {context.new_balance} / {inputs.to_id} placeholder would,
		// since every input/ledger/computed binding ends up living in
		// context under its binding_name.
		"computed": context,
		"input":    inputs,
	}
}

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+(?:\.[a-zA-Z0-9_]+)*)\}`)

// resolveTemplateString substitutes every {dotted.path} placeholder with
// the canonical textual encoding of the value it names. An unresolved
// placeholder — one whose top-level bucket or nested path does not
// actually exist — fails the whole execution with TemplateError.
func resolveTemplateString(s string, ns map[string]value.Value) (string, error) {
	var firstErr error
	out := placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}
		path := match[1 : len(match)-1]
		segs := strings.Split(path, ".")
		root, ok := ns[segs[0]]
		if !ok {
			firstErr = kernelerr.New(kernelerr.TemplateError, "placeholder %q references an unknown bucket %q", match, segs[0])
			return match
		}
		v, found := value.PathChecked(root, segs[1:])
		if !found {
			firstErr = kernelerr.New(kernelerr.TemplateError, "placeholder %q did not resolve to a value", match)
			return match
		}
		return canon.EncodeText(v)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// resolveTemplateValue walks a Value tree, resolving placeholders inside
// every string leaf and leaving every other kind untouched.
func resolveTemplateValue(v value.Value, ns map[string]value.Value) (value.Value, error) {
	switch v.Kind() {
	case value.KindString:
		s, _ := v.AsString()
		resolved, err := resolveTemplateString(s, ns)
		if err != nil {
			return value.Value{}, err
		}
		return value.Str(resolved), nil
	case value.KindList:
		list, _ := v.AsList()
		out := make([]value.Value, len(list))
		for i, e := range list {
			rv, err := resolveTemplateValue(e, ns)
			if err != nil {
				return value.Value{}, err
			}
			out[i] = rv
		}
		return value.List(out), nil
	case value.KindMap:
		m, _ := v.AsMap()
		out := make(map[string]value.Value, len(m))
		for k, e := range m {
			rv, err := resolveTemplateValue(e, ns)
			if err != nil {
				return value.Value{}, err
			}
			out[k] = rv
		}
		return value.Map(out), nil
	default:
		return v, nil
	}
}
