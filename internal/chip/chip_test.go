// Copyright 2025 Certen Protocol
package chip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LogLine-Foundation/UBL/internal/expr"
	"github.com/LogLine-Foundation/UBL/internal/kernelerr"
	"github.com/LogLine-Foundation/UBL/internal/value"
)

func gate(name string, b bool) Gate {
	return Gate{Name: name, Expression: expr.Literal{Value: value.Bool(b)}}
}

func evalCtx() *expr.Context {
	return &expr.Context{Vars: value.EmptyMap(), Now: time.Now().UTC()}
}

func TestNewRejectsDuplicateGateNames(t *testing.T) {
	_, err := New("dup", []Gate{gate("g", true), gate("g", false)}, Composition{Strategy: StrategyAll})
	require.Error(t, err)
	ke, ok := kernelerr.As(err)
	require.True(t, ok)
	assert.Equal(t, kernelerr.InvariantViolation, ke.Code)
	assert.Equal(t, 409, ke.HTTPStatus())
}

func TestNewWeightedRequiresFullWeightCoverage(t *testing.T) {
	_, err := New("w", []Gate{gate("a", true), gate("b", true)}, Composition{
		Strategy: StrategyWeighted,
		Weights:  map[string]float64{"a": 1},
	})
	require.Error(t, err)
	ke, ok := kernelerr.As(err)
	require.True(t, ok)
	assert.Equal(t, kernelerr.InvariantViolation, ke.Code)
	assert.Equal(t, 409, ke.HTTPStatus())
}

func TestNewRejectsUnknownCompositionStrategyAsMalformed(t *testing.T) {
	_, err := New("bad", []Gate{gate("g", true)}, Composition{Strategy: "NOT_A_STRATEGY"})
	require.Error(t, err)
	ke, ok := kernelerr.As(err)
	require.True(t, ok)
	assert.Equal(t, kernelerr.Malformed, ke.Code)
	assert.Equal(t, 400, ke.HTTPStatus())
}

func TestComposeAll(t *testing.T) {
	c, err := New("all", []Gate{gate("a", true), gate("b", true)}, Composition{Strategy: StrategyAll})
	require.NoError(t, err)
	_, result, err := Evaluate(c, evalCtx())
	require.NoError(t, err)
	assert.True(t, result)

	c, err = New("all", []Gate{gate("a", true), gate("b", false)}, Composition{Strategy: StrategyAll})
	require.NoError(t, err)
	_, result, err = Evaluate(c, evalCtx())
	require.NoError(t, err)
	assert.False(t, result)
}

func TestComposeAny(t *testing.T) {
	c, err := New("any", []Gate{gate("a", false), gate("b", true)}, Composition{Strategy: StrategyAny})
	require.NoError(t, err)
	_, result, err := Evaluate(c, evalCtx())
	require.NoError(t, err)
	assert.True(t, result)
}

func TestComposeMajorityTieResolvesFalse(t *testing.T) {
	c, err := New("maj", []Gate{gate("a", true), gate("b", false)}, Composition{Strategy: StrategyMajority})
	require.NoError(t, err)
	_, result, err := Evaluate(c, evalCtx())
	require.NoError(t, err)
	assert.False(t, result, "an exact tie must not satisfy MAJORITY")
}

func TestComposeMajorityStrictMajority(t *testing.T) {
	c, err := New("maj", []Gate{gate("a", true), gate("b", true), gate("c", false)}, Composition{Strategy: StrategyMajority})
	require.NoError(t, err)
	_, result, err := Evaluate(c, evalCtx())
	require.NoError(t, err)
	assert.True(t, result)
}

func TestComposeWeightedMeetsThresholdExactly(t *testing.T) {
	c, err := New("weighted", []Gate{gate("a", true), gate("b", false)}, Composition{
		Strategy:  StrategyWeighted,
		Weights:   map[string]float64{"a": 0.6, "b": 0.4},
		Threshold: 0.6,
	})
	require.NoError(t, err)
	_, result, err := Evaluate(c, evalCtx())
	require.NoError(t, err)
	assert.True(t, result, "sum == threshold must count as allow")
}

func TestComposeWeightedBelowThreshold(t *testing.T) {
	c, err := New("weighted", []Gate{gate("a", true), gate("b", false)}, Composition{
		Strategy:  StrategyWeighted,
		Weights:   map[string]float64{"a": 0.5, "b": 0.5},
		Threshold: 0.6,
	})
	require.NoError(t, err)
	_, result, err := Evaluate(c, evalCtx())
	require.NoError(t, err)
	assert.False(t, result)
}

func TestFailingGateCountsFalseNotFatal(t *testing.T) {
	badGate := Gate{Name: "bad", Expression: expr.Binary{
		Op: expr.OpDiv,
		A:  expr.Literal{Value: value.Int(1)},
		B:  expr.Literal{Value: value.Int(0)},
	}}
	c, err := New("contains-failure", []Gate{badGate, gate("ok", true)}, Composition{Strategy: StrategyAny})
	require.NoError(t, err)
	perGate, result, err := Evaluate(c, evalCtx())
	require.NoError(t, err)
	assert.True(t, result)
	assert.False(t, perGate[0].Result)
	assert.NotEmpty(t, perGate[0].Error)
}

func TestChipHashStableAcrossEquivalentConstruction(t *testing.T) {
	c1, err := New("stable", []Gate{gate("a", true)}, Composition{Strategy: StrategyAll})
	require.NoError(t, err)
	c2, err := New("stable", []Gate{gate("a", true)}, Composition{Strategy: StrategyAll})
	require.NoError(t, err)
	assert.Equal(t, c1.ChipHash, c2.ChipHash)
}
