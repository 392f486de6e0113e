// Copyright 2025 Certen Protocol
//
// Ledger state and effect record types. Adapted from the upstream ledger
// store's key/meta split (SystemLedgerMeta + per-height block records) —
// generalized from a fixed Accumulate-shaped schema to an arbitrary
// path-keyed Value store, and from a KV-engine backend to the single
// atomically-rewritten JSON document the kernel's persistence model pins.
package ledgerx

import (
	"strings"
	"time"

	"github.com/LogLine-Foundation/UBL/internal/value"
)

// GenesisHash is the fixed head_record_hash of an empty ledger: 32 zero
// bytes, hex-encoded.
var GenesisHash = strings.Repeat("0", 64)

// ResolvedEffect is an Effect with every placeholder already substituted —
// the form stored in an EffectRecord's resolved_effects, so replay never
// needs the originating Program.
type ResolvedEffect struct {
	Kind    string       `json:"kind"`
	Target  string       `json:"target"`
	Payload value.Value  `json:"payload"`
}

// EffectRecord is an append-only, chain-hashed block recording one
// successful commit. Created exactly once; never modified afterward.
type EffectRecord struct {
	Sequence           uint64           `json:"sequence"`
	ProgramHash        string           `json:"program_hash"`
	InputsDigest       string           `json:"inputs_digest"`
	ProofHash          string           `json:"proof_hash"`
	ResolvedEffects    []ResolvedEffect `json:"resolved_effects"`
	Events             []value.Value    `json:"events,omitempty"`
	StateVersionBefore uint64           `json:"state_version_before"`
	StateVersionAfter  uint64           `json:"state_version_after"`
	Timestamp          time.Time        `json:"timestamp"`
	PreviousRecordHash string           `json:"previous_record_hash"`
	RecordHash         string           `json:"record_hash"`
	RecordSignature    string           `json:"record_signature,omitempty"`
}

// CanonicalValue is the hash input: every field except record_hash and
// record_signature.
func (r EffectRecord) CanonicalValue() value.Value {
	effects := make([]value.Value, len(r.ResolvedEffects))
	for i, e := range r.ResolvedEffects {
		effects[i] = value.Map(map[string]value.Value{
			"kind":    value.Str(e.Kind),
			"target":  value.Str(e.Target),
			"payload": e.Payload,
		})
	}
	events := append([]value.Value(nil), r.Events...)
	m := map[string]value.Value{
		"sequence":             value.Int(int64(r.Sequence)),
		"program_hash":         value.Str(r.ProgramHash),
		"inputs_digest":        value.Str(r.InputsDigest),
		"proof_hash":           value.Str(r.ProofHash),
		"resolved_effects":     value.List(effects),
		"events":               value.List(events),
		"state_version_before": value.Int(int64(r.StateVersionBefore)),
		"state_version_after":  value.Int(int64(r.StateVersionAfter)),
		"timestamp":            value.Timestamp(r.Timestamp),
		"previous_record_hash": value.Str(r.PreviousRecordHash),
	}
	return value.Map(m)
}

// Document is the on-disk shape: a single JSON document containing the
// full ledger — current state, head hash, and the full record chain.
type Document struct {
	Version        uint64                 `json:"version"`
	HeadRecordHash string                 `json:"head_record_hash"`
	State          map[string]value.Value `json:"state"`
	Records        []EffectRecord         `json:"records"`
}
