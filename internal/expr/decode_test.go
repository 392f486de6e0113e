// Copyright 2025 Certen Protocol
package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLiteral(t *testing.T) {
	n, err := Decode(map[string]interface{}{"literal": float64(5)})
	require.NoError(t, err)
	lit, ok := n.(Literal)
	require.True(t, ok)
	i, _ := lit.Value.AsInt()
	assert.Equal(t, int64(5), i)
}

func TestDecodeVar(t *testing.T) {
	n, err := Decode(map[string]interface{}{"var": "a.b.0"})
	require.NoError(t, err)
	v, ok := n.(Var)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "0"}, v.Path)
}

func TestDecodeBinary(t *testing.T) {
	n, err := Decode(map[string]interface{}{
		"binary": map[string]interface{}{
			"op": "add",
			"a":  map[string]interface{}{"literal": float64(1)},
			"b":  map[string]interface{}{"literal": float64(2)},
		},
	})
	require.NoError(t, err)
	b, ok := n.(Binary)
	require.True(t, ok)
	assert.Equal(t, OpAdd, b.Op)
}

func TestDecodeCallWithArgs(t *testing.T) {
	n, err := Decode(map[string]interface{}{
		"call": map[string]interface{}{
			"fn":   "age",
			"args": []interface{}{map[string]interface{}{"var": "created_at"}},
		},
	})
	require.NoError(t, err)
	c, ok := n.(Call)
	require.True(t, ok)
	assert.Equal(t, "age", c.Func)
	assert.Len(t, c.Args, 1)
}

func TestDecodeRejectsMultiKeyNode(t *testing.T) {
	_, err := Decode(map[string]interface{}{"literal": 1, "var": "x"})
	assert.Error(t, err)
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	_, err := Decode(map[string]interface{}{"bogus": 1})
	assert.Error(t, err)
}
