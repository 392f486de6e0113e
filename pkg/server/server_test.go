// Copyright 2025 Certen Protocol
package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LogLine-Foundation/UBL/internal/executor"
	"github.com/LogLine-Foundation/UBL/internal/ledgerx"
	"github.com/LogLine-Foundation/UBL/internal/registry"
)

func newTestServer(t *testing.T, apiKey string) *Server {
	t.Helper()
	l, err := ledgerx.Load(filepath.Join(t.TempDir(), "ledger.json"))
	require.NoError(t, err)
	reg := registry.New()
	return &Server{
		Kernel:   &executor.Kernel{Registry: reg, Ledger: l},
		Registry: reg,
		Ledger:   l,
		APIKey:   apiKey,
	}
}

func doRequest(t *testing.T, mux http.Handler, method, path string, body interface{}, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if apiKey != "" {
		req.Header.Set("x-ubl-key", apiKey)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpointRequiresNoAuth(t *testing.T) {
	s := newTestServer(t, "secret")
	rec := doRequest(t, s.Routes(), http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedEndpointRejectsMissingKey(t *testing.T) {
	s := newTestServer(t, "secret")
	rec := doRequest(t, s.Routes(), http.MethodGet, "/registry/chips", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEveryResponseCarriesARequestID(t *testing.T) {
	s := newTestServer(t, "")
	rec := doRequest(t, s.Routes(), http.MethodGet, "/health", nil, "")
	assert.NotEmpty(t, rec.Header().Get("x-request-id"))

	rejected := newTestServer(t, "secret")
	rec2 := doRequest(t, rejected.Routes(), http.MethodGet, "/registry/chips", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec2.Code)
	assert.NotEmpty(t, rec2.Header().Get("x-request-id"))
}

func TestRegisterChipThenExecuteProgram(t *testing.T) {
	s := newTestServer(t, "")
	mux := s.Routes()

	chipReq := map[string]interface{}{
		"type": "chip",
		"data": map[string]interface{}{
			"name": "always-allow",
			"gates": []map[string]interface{}{
				{"name": "g", "expression": map[string]interface{}{"literal": true}},
			},
			"composition": map[string]interface{}{"strategy": "ALL"},
		},
	}
	rec := doRequest(t, mux, http.MethodPost, "/register", chipReq, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	progReq := map[string]interface{}{
		"type": "program",
		"data": map[string]interface{}{
			"name":     "credit",
			"evaluate": "CHIP:always-allow",
			"context": []map[string]interface{}{
				{"name": "amount", "source": "input.amount"},
			},
			"on_allow": []map[string]interface{}{
				{"kind": "set", "target": "balance", "payload": "{inputs.amount}"},
			},
		},
	}
	rec = doRequest(t, mux, http.MethodPost, "/register", progReq, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	execReq := map[string]interface{}{
		"program": "credit",
		"inputs":  map[string]interface{}{"amount": 10},
	}
	rec = doRequest(t, mux, http.MethodPost, "/execute", execReq, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["result"])

	// The proof returned by /execute must carry enough (context_snapshot,
	// now) to round-trip straight into /verify with no client-side lookup.
	proof, ok := resp["proof"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, proof["context_snapshot"])
	assert.NotEmpty(t, proof["now"])

	verifyReq := map[string]interface{}{
		"chip":  "always-allow",
		"proof": proof,
	}
	rec = doRequest(t, mux, http.MethodPost, "/verify", verifyReq, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var verifyResp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verifyResp))
	assert.Equal(t, true, verifyResp["valid"], verifyResp["reason"])
}

func TestBarrierProcessEndpointHashesRawPayload(t *testing.T) {
	s := newTestServer(t, "")
	mux := s.Routes()

	req := map[string]interface{}{
		"content_type": "payment",
		"payload":      map[string]interface{}{"to_id": "acct-1", "amount": 5, "currency": "eur"},
	}
	rec := doRequest(t, mux, http.MethodPost, "/barrier/process", req, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["content_hash"])
}
