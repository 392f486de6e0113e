// Copyright 2025 Certen Protocol
package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LogLine-Foundation/UBL/internal/chip"
	"github.com/LogLine-Foundation/UBL/internal/expr"
	"github.com/LogLine-Foundation/UBL/internal/value"
)

func newChip(t *testing.T, name string) *chip.Chip {
	t.Helper()
	c, err := chip.New(name, []chip.Gate{
		{Name: "g", Expression: expr.Literal{Value: value.Bool(true)}},
	}, chip.Composition{Strategy: chip.StrategyAll})
	require.NoError(t, err)
	return c
}

func TestRegisterChipIdempotentOnHash(t *testing.T) {
	r := New()
	c := newChip(t, "alpha")
	r.RegisterChip(c)
	r.RegisterChip(c)
	assert.Len(t, r.ListChips(), 1)
}

func TestRegisterChipLatestWinsOnName(t *testing.T) {
	r := New()
	first := newChip(t, "alpha")
	r.RegisterChip(first)

	second, err := chip.New("alpha", []chip.Gate{
		{Name: "g", Expression: expr.Literal{Value: value.Bool(false)}},
	}, chip.Composition{Strategy: chip.StrategyAll})
	require.NoError(t, err)
	r.RegisterChip(second)

	got, err := r.GetChip("alpha")
	require.NoError(t, err)
	assert.Equal(t, second.ChipHash, got.ChipHash)

	// The old hash is still directly retrievable even though the name
	// index moved on.
	oldByHash, err := r.GetChip(first.ChipHash)
	require.NoError(t, err)
	assert.Equal(t, first.ChipHash, oldByHash.ChipHash)
}

func TestGetChipUnknownRef(t *testing.T) {
	r := New()
	_, err := r.GetChip("nonexistent")
	assert.Error(t, err)
}

func TestResolveChipNameReflectsCurrentMapping(t *testing.T) {
	r := New()
	first := newChip(t, "beta")
	r.RegisterChip(first)

	resolved, err := r.ResolveChipName("beta")
	require.NoError(t, err)
	assert.Equal(t, first.ChipHash, resolved.ChipHash)

	second, err := chip.New("beta", []chip.Gate{
		{Name: "g", Expression: expr.Literal{Value: value.Bool(false)}},
	}, chip.Composition{Strategy: chip.StrategyAll})
	require.NoError(t, err)
	r.RegisterChip(second)

	resolved, err = r.ResolveChipName("beta")
	require.NoError(t, err)
	assert.Equal(t, second.ChipHash, resolved.ChipHash, "resolution must observe the latest registration immediately")
}

func TestGlobalReturnsSameInstance(t *testing.T) {
	assert.Same(t, Global(), Global())
}
