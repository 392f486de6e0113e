// Copyright 2025 Certen Protocol
package ledgerx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LogLine-Foundation/UBL/internal/value"
)

func TestAddValuesIntPreservingWhenExact(t *testing.T) {
	sum, err := addValues(value.Int(2), value.Int(3))
	require.NoError(t, err)
	assert.Equal(t, value.KindInt, sum.Kind())
	n, _ := sum.AsInt()
	assert.Equal(t, int64(5), n)
}

func TestAddValuesDecimalWhenEitherOperandIsDecimal(t *testing.T) {
	dec, err := value.DecimalFromString("1.5")
	require.NoError(t, err)
	sum, err := addValues(value.Int(2), dec)
	require.NoError(t, err)
	assert.Equal(t, value.KindDecimal, sum.Kind())
}

func TestAddValuesRejectsNonNumeric(t *testing.T) {
	_, err := addValues(value.Str("x"), value.Int(1))
	assert.Error(t, err)
}
