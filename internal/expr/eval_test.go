// Copyright 2025 Certen Protocol
package expr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LogLine-Foundation/UBL/internal/kernelerr"
	"github.com/LogLine-Foundation/UBL/internal/value"
)

func litCtx(vars value.Value) *Context {
	return &Context{Vars: vars, Now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestEvalVarMissingPathIsNull(t *testing.T) {
	ctx := litCtx(value.EmptyMap())
	v, err := Eval(Var{Path: []string{"a", "b"}}, ctx)
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestEvalAndShortCircuits(t *testing.T) {
	ctx := litCtx(value.EmptyMap())
	// The right side is a division by zero; if short-circuit works it never
	// evaluates, so this must return false without error.
	n := Binary{Op: OpAnd, A: Literal{Value: value.Bool(false)}, B: Binary{
		Op: OpDiv,
		A:  Literal{Value: value.Int(1)},
		B:  Literal{Value: value.Int(0)},
	}}
	v, err := Eval(n, ctx)
	require.NoError(t, err)
	result, _ := v.AsBool()
	assert.False(t, result)
}

func TestEvalOrShortCircuits(t *testing.T) {
	ctx := litCtx(value.EmptyMap())
	n := Binary{Op: OpOr, A: Literal{Value: value.Bool(true)}, B: Binary{
		Op: OpDiv,
		A:  Literal{Value: value.Int(1)},
		B:  Literal{Value: value.Int(0)},
	}}
	v, err := Eval(n, ctx)
	require.NoError(t, err)
	result, _ := v.AsBool()
	assert.True(t, result)
}

func TestEvalDivisionByZeroIsNumericError(t *testing.T) {
	ctx := litCtx(value.EmptyMap())
	n := Binary{Op: OpDiv, A: Literal{Value: value.Int(1)}, B: Literal{Value: value.Int(0)}}
	_, err := Eval(n, ctx)
	require.Error(t, err)
	ke, ok := kernelerr.As(err)
	require.True(t, ok)
	assert.Equal(t, kernelerr.NumericError, ke.Code)
}

func TestEvalIfBranches(t *testing.T) {
	ctx := litCtx(value.EmptyMap())
	n := If{
		Cond: Literal{Value: value.Bool(true)},
		Then: Literal{Value: value.Str("yes")},
		Else: Literal{Value: value.Str("no")},
	}
	v, err := Eval(n, ctx)
	require.NoError(t, err)
	s, _ := v.AsString()
	assert.Equal(t, "yes", s)
}

func TestEvalCallLength(t *testing.T) {
	ctx := litCtx(value.EmptyMap())
	n := Call{Func: "length", Args: []Node{Literal{Value: value.Str("hello")}}}
	v, err := Eval(n, ctx)
	require.NoError(t, err)
	n2, _ := v.AsInt()
	assert.Equal(t, int64(5), n2)
}

func TestEvalCallUnknownFunction(t *testing.T) {
	ctx := litCtx(value.EmptyMap())
	n := Call{Func: "does_not_exist", Args: nil}
	_, err := Eval(n, ctx)
	require.Error(t, err)
	ke, ok := kernelerr.As(err)
	require.True(t, ok)
	assert.Equal(t, kernelerr.EvalError, ke.Code)
}

func TestEvalSumOfEmptyListIsZero(t *testing.T) {
	ctx := litCtx(value.EmptyMap())
	n := Call{Func: "sum", Args: []Node{Literal{Value: value.EmptyList()}}}
	v, err := Eval(n, ctx)
	require.NoError(t, err)
	got, _ := v.AsInt()
	assert.Equal(t, int64(0), got)
}

func TestEvalGetWithDefault(t *testing.T) {
	ctx := litCtx(value.EmptyMap())
	m := value.Map(map[string]value.Value{"x": value.Int(1)})
	n := Call{Func: "get", Args: []Node{
		Literal{Value: m},
		Literal{Value: value.Str("missing")},
		Literal{Value: value.Str("fallback")},
	}}
	v, err := Eval(n, ctx)
	require.NoError(t, err)
	s, _ := v.AsString()
	assert.Equal(t, "fallback", s)
}

func TestEvalAgeUsesFrozenNow(t *testing.T) {
	ctx := litCtx(value.EmptyMap())
	past := ctx.Now.Add(-10 * time.Second)
	n := Call{Func: "age", Args: []Node{Literal{Value: value.Timestamp(past)}}}
	v, err := Eval(n, ctx)
	require.NoError(t, err)
	secs, _ := v.AsInt()
	assert.Equal(t, int64(10), secs)
}
