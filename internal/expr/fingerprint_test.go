// Copyright 2025 Certen Protocol
package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LogLine-Foundation/UBL/internal/value"
)

func TestFingerprintDeterministic(t *testing.T) {
	n := Binary{Op: OpAdd, A: Var{Path: []string{"a"}}, B: Literal{Value: value.Int(1)}}
	assert.Equal(t, Fingerprint(n), Fingerprint(n))
}

func TestFingerprintDistinguishesDifferentTrees(t *testing.T) {
	a := Binary{Op: OpAdd, A: Var{Path: []string{"a"}}, B: Literal{Value: value.Int(1)}}
	b := Binary{Op: OpSub, A: Var{Path: []string{"a"}}, B: Literal{Value: value.Int(1)}}
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}
