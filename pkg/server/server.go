// Copyright 2025 Certen Protocol
//
// HTTP surface for the kernel: registration, execution, proof replay, and
// registry/barrier inspection endpoints. Handlers are plain
// http.HandlerFunc-shaped methods on a single Server struct, no router
// framework — the same net/http-direct style the rest of this codebase's
// query handlers use, just generalized from ledger-query-only endpoints to
// the kernel's full external interface.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/LogLine-Foundation/UBL/internal/barrier"
	"github.com/LogLine-Foundation/UBL/internal/canon"
	"github.com/LogLine-Foundation/UBL/internal/chip"
	"github.com/LogLine-Foundation/UBL/internal/executor"
	"github.com/LogLine-Foundation/UBL/internal/kernelerr"
	"github.com/LogLine-Foundation/UBL/internal/ledgerx"
	"github.com/LogLine-Foundation/UBL/internal/registry"
	"github.com/LogLine-Foundation/UBL/internal/signing"
	"github.com/LogLine-Foundation/UBL/internal/value"
)

// Server holds every dependency the HTTP handlers need.
type Server struct {
	Kernel   *executor.Kernel
	Registry *registry.Registry
	Ledger   *ledgerx.Ledger
	Signer   *signing.Signer
	APIKey   string // empty disables auth entirely
}

// Routes returns the full mux, ready to pass to http.ListenAndServe. Every
// route is wrapped with a request-ID middleware first, auth second, so an
// unauthenticated 401 still carries a correlation ID for the caller's logs.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.withRequestID(s.handleHealth))
	mux.HandleFunc("/register", s.withRequestID(s.auth(s.handleRegister)))
	mux.HandleFunc("/execute", s.withRequestID(s.auth(s.handleExecute)))
	mux.HandleFunc("/verify", s.withRequestID(s.auth(s.handleVerify)))
	mux.HandleFunc("/registry/chips", s.withRequestID(s.auth(s.handleListChips)))
	mux.HandleFunc("/registry/programs", s.withRequestID(s.auth(s.handleListPrograms)))
	mux.HandleFunc("/barrier/process", s.withRequestID(s.auth(s.handleBarrierProcess)))
	return mux
}

type requestIDKey struct{}

// withRequestID stamps every inbound call with a fresh correlation ID,
// echoed back on the x-request-id response header and attached to the
// request context so handlers and their logs can reference it — the same
// RequestID-on-every-request shape the teacher's chain-execution strategy
// requests carry, generalized from one execution backend to every HTTP
// call this kernel accepts.
func (s *Server) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("x-request-id", id)
		log.Printf("[ubl] request_id=%s method=%s path=%s", id, r.Method, r.URL.Path)
		next(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	}
}

// auth wraps a handler with the x-ubl-key check; a blank APIKey disables
// the check entirely, matching local-development use.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.APIKey != "" && r.Header.Get("x-ubl-key") != s.APIKey {
			writeError(w, kernelerr.New(kernelerr.AuthError, "missing or invalid x-ubl-key header"))
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"state_version": s.Ledger.Version(),
		"head_record":   s.Ledger.HeadRecordHash(),
	})
}

type registerChipRequest struct {
	Name        string                `json:"name"`
	Gates       []registerGateRequest `json:"gates"`
	Composition registerCompRequest   `json:"composition"`
}

type registerGateRequest struct {
	Name       string      `json:"name"`
	Expression interface{} `json:"expression"`
}

type registerCompRequest struct {
	Strategy  string             `json:"strategy"`
	Weights   map[string]float64 `json:"weights"`
	Threshold float64            `json:"threshold"`
}

// registerRequest is the single /register envelope: {type, data}. `data`
// is decoded a second time, into whichever of registerChipRequest /
// registerProgramRequest `type` names, via json.RawMessage so the two
// shapes never have to share a struct.
type registerRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, kernelerr.Wrap(kernelerr.Malformed, err, "decode request body"))
		return
	}
	switch req.Type {
	case "chip":
		var data registerChipRequest
		if err := json.Unmarshal(req.Data, &data); err != nil {
			writeError(w, kernelerr.Wrap(kernelerr.Malformed, err, "decode chip data"))
			return
		}
		c, err := decodeAndBuildChip(data)
		if err != nil {
			writeError(w, err)
			return
		}
		s.Registry.RegisterChip(c)
		writeJSON(w, http.StatusOK, map[string]interface{}{"hash": c.ChipHash})
	case "program":
		var data registerProgramRequest
		if err := json.Unmarshal(req.Data, &data); err != nil {
			writeError(w, kernelerr.Wrap(kernelerr.Malformed, err, "decode program data"))
			return
		}
		p, err := decodeAndBuildProgram(data)
		if err != nil {
			writeError(w, err)
			return
		}
		s.Registry.RegisterProgram(p)
		writeJSON(w, http.StatusOK, map[string]interface{}{"hash": p.ProgramHash})
	default:
		writeError(w, kernelerr.New(kernelerr.Malformed, `type must be "chip" or "program", got %q`, req.Type))
	}
}

type registerProgramRequest struct {
	Name     string                   `json:"name"`
	Evaluate string                   `json:"evaluate"`
	Context  []registerBindingRequest `json:"context"`
	OnAllow  []registerEffectRequest  `json:"on_allow"`
	OnDeny   []registerEffectRequest  `json:"on_deny"`
}

type registerBindingRequest struct {
	Name       string      `json:"name"`
	Source     string      `json:"source"`
	Expression interface{} `json:"expression"`
}

type registerEffectRequest struct {
	Kind    string      `json:"kind"`
	Target  string      `json:"target"`
	Payload interface{} `json:"payload"`
}

type executeRequest struct {
	ProgramRef    string      `json:"program"`
	Inputs        interface{} `json:"inputs"`
	TargetVersion *uint64     `json:"target_version"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, kernelerr.Wrap(kernelerr.Malformed, err, "decode request body"))
		return
	}
	inputs, err := value.FromGeneric(req.Inputs)
	if err != nil {
		writeError(w, kernelerr.Wrap(kernelerr.Malformed, err, "decode inputs"))
		return
	}
	result, err := s.Kernel.Execute(executor.Request{
		ProgramRef:    req.ProgramRef,
		Inputs:        inputs,
		TargetVersion: req.TargetVersion,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"result": result.CompositionResult,
		"proof":  proofView(result.Proof),
		"effect_record": map[string]interface{}{
			"sequence":             result.Record.Sequence,
			"program_hash":         result.Record.ProgramHash,
			"record_hash":          result.Record.RecordHash,
			"previous_record_hash": result.Record.PreviousRecordHash,
			"state_version_before": result.Record.StateVersionBefore,
			"state_version_after":  result.Record.StateVersionAfter,
		},
	})
}

// verifyRequest's Proof is kept as json.RawMessage, not a generic
// map[string]interface{}, so context_snapshot decodes through
// value.Value's own lossless wire form (see decode.go) instead of through
// the lossy bare-JSON path value.FromGeneric exists for — a decimal or
// timestamp nested inside a replayed context must survive the round trip
// exactly, the same requirement barrierRequest.Payload has for its raw
// content_hash bytes.
type verifyRequest struct {
	ChipRef string          `json:"chip"`
	Proof   json.RawMessage `json:"proof"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, kernelerr.Wrap(kernelerr.Malformed, err, "decode request body"))
		return
	}
	c, err := s.Registry.GetChip(req.ChipRef)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := decodeProof(req.Proof)
	if err != nil {
		writeError(w, err)
		return
	}
	ok, reason := chip.Verify(c, p)
	resp := map[string]interface{}{"valid": ok}
	if !ok {
		resp["reason"] = reason
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListChips(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"chips": entriesView(s.Registry.ListChips())})
}

func (s *Server) handleListPrograms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"programs": entriesView(s.Registry.ListPrograms())})
}

// barrierRequest's Payload is kept as json.RawMessage (not decoded into
// interface{} and re-marshaled) so content_hash is computed over the exact
// bytes the caller submitted for that field, per the barrier's "hash the
// raw input, not the normalized one" rule.
type barrierRequest struct {
	ContentType string          `json:"content_type"`
	Payload     json.RawMessage `json:"payload"`
}

func (s *Server) handleBarrierProcess(w http.ResponseWriter, r *http.Request) {
	var req barrierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, kernelerr.Wrap(kernelerr.Malformed, err, "decode request body"))
		return
	}
	if req.ContentType == "" {
		writeError(w, kernelerr.New(kernelerr.Malformed, "content_type is required"))
		return
	}
	validated, err := barrier.Process(req.ContentType, req.Payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"content_type": validated.ContentType,
		"content_hash": validated.ContentHash,
		"fields":       valueToJSON(validated.Fields),
	})
}

func entriesView(entries []registry.Entry) []map[string]string {
	out := make([]map[string]string, len(entries))
	for i, e := range entries {
		out[i] = map[string]string{"hash": e.Hash, "name": e.Name}
	}
	return out
}

// proofView renders every field spec.md §3's Proof carries, including
// context_snapshot and now — without both, a client can never rebuild a
// *chip.Proof from this response and feed it back into /verify.
// context_snapshot is emitted as the bare value.Value (not run through
// valueToJSON) so it marshals via Value's own lossless wire form — the
// form decodeProof expects back — rather than losing decimal/timestamp
// fidelity to plain JSON numbers and strings.
func proofView(p *chip.Proof) map[string]interface{} {
	perGate := make([]map[string]interface{}, len(p.PerGate))
	for i, g := range p.PerGate {
		gv := map[string]interface{}{"name": g.Name, "result": g.Result}
		if g.Error != "" {
			gv["error"] = g.Error
		}
		perGate[i] = gv
	}
	return map[string]interface{}{
		"chip_hash":          p.ChipHash,
		"context_snapshot":   p.ContextSnapshot,
		"now":                p.Now.Format(time.RFC3339Nano),
		"per_gate":           perGate,
		"composition_result": p.CompositionResult,
		"proof_hash":         p.ProofHash,
		"signature":          p.Signature,
	}
}

// valueToJSON renders a Value tree back into plain Go types for JSON
// encoding — the inverse direction of value.FromGeneric.
func valueToJSON(v value.Value) interface{} {
	switch v.Kind() {
	case value.KindNull:
		return nil
	case value.KindBool:
		b, _ := v.AsBool()
		return b
	case value.KindInt:
		i, _ := v.AsInt()
		return i
	case value.KindDecimal:
		// Emitted as the same shortest-exact decimal string canon.EncodeText
		// uses for hashing/templates, never float64 — a JSON number literal
		// can silently lose precision (or misrepresent a fraction like 0.1)
		// on decode, which would break the "equal iff numerically equal"
		// contract for arbitrary-precision decimals crossing the wire.
		return canon.EncodeText(v)
	case value.KindString:
		s, _ := v.AsString()
		return s
	case value.KindTimestamp:
		t, _ := v.AsTimestamp()
		return t.Format("2006-01-02T15:04:05.999999999Z07:00")
	case value.KindBytes:
		b, _ := v.AsBytes()
		return b
	case value.KindList:
		list, _ := v.AsList()
		out := make([]interface{}, len(list))
		for i, e := range list {
			out[i] = valueToJSON(e)
		}
		return out
	case value.KindMap:
		m, _ := v.AsMap()
		out := make(map[string]interface{}, len(m))
		for k, e := range m {
			out[k] = valueToJSON(e)
		}
		return out
	default:
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "Internal"
	msg := err.Error()
	if ke, ok := kernelerr.As(err); ok {
		status = ke.HTTPStatus()
		code = string(ke.Code)
		msg = ke.Message
	}
	writeJSON(w, status, map[string]interface{}{"error": map[string]string{"code": code, "message": msg}})
}
