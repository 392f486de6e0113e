// Copyright 2025 Certen Protocol
package barrier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LogLine-Foundation/UBL/internal/canon"
)

func TestProcessDropsUndeclaredFields(t *testing.T) {
	payload := []byte(`{"vendor_id":"v1","amount":100,"currency":"usd","date":"2026-01-01T00:00:00Z","injected_script":"<script>"}`)
	got, err := Process("invoice", payload)
	require.NoError(t, err)

	m, ok := got.Fields.AsMap()
	require.True(t, ok)
	_, present := m["injected_script"]
	assert.False(t, present, "undeclared fields must never reach the normalized output")
}

func TestProcessUppercasesCurrency(t *testing.T) {
	payload := []byte(`{"vendor_id":"v1","amount":100,"currency":"usd","date":"2026-01-01T00:00:00Z"}`)
	got, err := Process("invoice", payload)
	require.NoError(t, err)
	m, _ := got.Fields.AsMap()
	cur, ok := m["currency"].AsString()
	require.True(t, ok)
	assert.Equal(t, "USD", cur)
}

func TestProcessContentHashOverRawBytes(t *testing.T) {
	payload := []byte(`{"to_id":"x","amount":5,"currency":"eur"}`)
	got, err := Process("payment", payload)
	require.NoError(t, err)
	assert.Equal(t, canon.HashBytes(payload), got.ContentHash)
}

func TestProcessMissingRequiredFieldFails(t *testing.T) {
	payload := []byte(`{"amount":5,"currency":"eur"}`)
	_, err := Process("payment", payload)
	assert.Error(t, err)
}

func TestProcessUnknownContentType(t *testing.T) {
	_, err := Process("unknown_type", []byte(`{}`))
	assert.Error(t, err)
}

func TestProcessRejectsMalformedJSON(t *testing.T) {
	_, err := Process("payment", []byte(`not json`))
	assert.Error(t, err)
}

func TestProcessRejectsBadCurrencyLength(t *testing.T) {
	payload := []byte(`{"to_id":"x","amount":5,"currency":"dollars"}`)
	_, err := Process("payment", payload)
	assert.Error(t, err)
}
