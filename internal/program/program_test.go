// Copyright 2025 Certen Protocol
package program

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsEmptyEvaluate(t *testing.T) {
	_, err := New("p", nil, "", nil, nil)
	assert.Error(t, err)
}

func TestNewRejectsDuplicateBindingNames(t *testing.T) {
	bindings := []Binding{
		{Name: "x", Kind: SourceInput, Path: "a"},
		{Name: "x", Kind: SourceInput, Path: "b"},
	}
	_, err := New("p", bindings, "CHIP:c", nil, nil)
	assert.Error(t, err)
}

func TestProgramHashStableAndContentAddressed(t *testing.T) {
	bindings := []Binding{{Name: "amount", Kind: SourceInput, Path: "amount"}}
	p1, err := New("buy", bindings, "CHIP:risk", nil, nil)
	require.NoError(t, err)
	p2, err := New("buy", bindings, "CHIP:risk", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, p1.ProgramHash, p2.ProgramHash)

	p3, err := New("buy", bindings, "CHIP:other", nil, nil)
	require.NoError(t, err)
	assert.NotEqual(t, p1.ProgramHash, p3.ProgramHash)
}

func TestParseSource(t *testing.T) {
	kind, rest := ParseSource("input.a.b")
	assert.Equal(t, SourceInput, kind)
	assert.Equal(t, "a.b", rest)

	kind, rest = ParseSource("ledger.balance")
	assert.Equal(t, SourceLedger, kind)
	assert.Equal(t, "balance", rest)

	kind, rest = ParseSource("computed.foo")
	assert.Equal(t, SourceComputed, kind)
	assert.Equal(t, "foo", rest)
}
