// Copyright 2025 Certen Protocol
package chip

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/LogLine-Foundation/UBL/internal/canon"
	"github.com/LogLine-Foundation/UBL/internal/expr"
	"github.com/LogLine-Foundation/UBL/internal/value"
)

// Proof is the replayable evidence of a single chip evaluation: anyone
// holding {chip, proof.context_snapshot, proof.now} can re-derive per_gate
// and composition_result byte-for-byte, including gates that call the
// now()/age() builtins rather than reading a "now" context binding.
type Proof struct {
	ChipHash          string
	ContextSnapshot   value.Value // KindMap; includes the frozen now() binding
	Now               time.Time   // the clock every now()/age() call inside the gates saw
	PerGate           []GateResult
	CompositionResult bool
	ProofHash         string
	Signature         string // base64 no-padding, empty when unsigned
}

// Run evaluates c against ctx, producing a Proof. Vars must already equal
// the full bound context the executor built (including any `now` binding
// the caller wants captured in the snapshot).
func Run(c *Chip, ctx *expr.Context) (*Proof, error) {
	perGate, compResult, err := Evaluate(c, ctx)
	if err != nil {
		return nil, err
	}
	p := &Proof{
		ChipHash:          c.ChipHash,
		ContextSnapshot:   ctx.Vars,
		Now:               ctx.Now,
		PerGate:           perGate,
		CompositionResult: compResult,
	}
	p.ProofHash = canon.Hash(p.canonicalValue())
	return p, nil
}

// Sign attaches an Ed25519 signature over the raw proof_hash bytes.
func (p *Proof) Sign(priv ed25519.PrivateKey) error {
	hashBytes, err := hex.DecodeString(p.ProofHash)
	if err != nil {
		return err
	}
	sig := ed25519.Sign(priv, hashBytes)
	p.Signature = base64.RawStdEncoding.EncodeToString(sig)
	return nil
}

func (p *Proof) canonicalValue() value.Value {
	gateVals := make([]value.Value, len(p.PerGate))
	for i, g := range p.PerGate {
		m := map[string]value.Value{
			"name":   value.Str(g.Name),
			"result": value.Bool(g.Result),
		}
		if g.Error != "" {
			m["error"] = value.Str(g.Error)
		}
		gateVals[i] = value.Map(m)
	}
	return value.Map(map[string]value.Value{
		"chip_hash":          value.Str(p.ChipHash),
		"context_snapshot":   p.ContextSnapshot,
		"now":                value.Timestamp(p.Now),
		"per_gate":           value.List(gateVals),
		"composition_result": value.Bool(p.CompositionResult),
	})
}

// Verify independently re-runs c against proof.ContextSnapshot and
// proof.Now and checks that per_gate, composition_result, and proof_hash
// all match — the contract behind the /verify endpoint and the
// proof-replay property in the testable properties. Replay is always
// driven by the recorded clock, never wall-clock time.
func Verify(c *Chip, p *Proof) (bool, string) {
	if p.ChipHash != c.ChipHash {
		return false, "chip_hash mismatch"
	}
	ctx := &expr.Context{Vars: p.ContextSnapshot, Now: p.Now}
	perGate, compResult, err := Evaluate(c, ctx)
	if err != nil {
		return false, err.Error()
	}
	if len(perGate) != len(p.PerGate) {
		return false, "per_gate length mismatch"
	}
	for i := range perGate {
		if perGate[i].Name != p.PerGate[i].Name || perGate[i].Result != p.PerGate[i].Result {
			return false, "per_gate mismatch"
		}
	}
	if compResult != p.CompositionResult {
		return false, "composition_result mismatch"
	}
	recomputed := canon.Hash(p.canonicalValue())
	if recomputed != p.ProofHash {
		return false, "proof_hash mismatch"
	}
	return true, ""
}
