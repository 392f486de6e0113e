// Copyright 2025 Certen Protocol
package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LogLine-Foundation/UBL/internal/value"
)

func TestEncodeMapKeyOrderIsStable(t *testing.T) {
	a := value.Map(map[string]value.Value{"b": value.Int(2), "a": value.Int(1)})
	b := value.Map(map[string]value.Value{"a": value.Int(1), "b": value.Int(2)})
	assert.Equal(t, Encode(a), Encode(b))
	assert.Equal(t, `{"a":1,"b":2}`, string(Encode(a)))
}

func TestEncodeDecimalExactShortestForm(t *testing.T) {
	v, err := value.DecimalFromString("12.50")
	require.NoError(t, err)
	assert.Equal(t, "12.5", string(Encode(v)))

	whole, err := value.DecimalFromString("3.0")
	require.NoError(t, err)
	assert.Equal(t, "3", string(Encode(whole)))
}

func TestEncodeStringEscaping(t *testing.T) {
	v := value.Str("a\"b\\c")
	assert.Equal(t, `"a\"b\\c"`, string(Encode(v)))
}

func TestEncodeBytesAsB64Object(t *testing.T) {
	v := value.Bytes([]byte("hi"))
	assert.Equal(t, `{"$b64":"aGk"}`, string(Encode(v)))
}

func TestEncodeTimestampTrimsTrailingZeros(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, `"2026-01-02T03:04:05Z"`, string(Encode(value.Timestamp(ts))))

	tsFrac := time.Date(2026, 1, 2, 3, 4, 5, 500000000, time.UTC)
	assert.Equal(t, `"2026-01-02T03:04:05.5Z"`, string(Encode(value.Timestamp(tsFrac))))
}

func TestHashIsDeterministicAcrossKeyOrder(t *testing.T) {
	a := value.Map(map[string]value.Value{"y": value.Int(2), "x": value.Int(1)})
	b := value.Map(map[string]value.Value{"x": value.Int(1), "y": value.Int(2)})
	assert.Equal(t, Hash(a), Hash(b))
}

func TestMerkleRootEmpty(t *testing.T) {
	root, err := MerkleRoot(nil)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("0", 64), root)
}

func TestMerkleRootOddNodePromoted(t *testing.T) {
	leaves := []string{HashBytes([]byte("a")), HashBytes([]byte("b")), HashBytes([]byte("c"))}
	root, err := MerkleRoot(leaves)
	require.NoError(t, err)
	assert.Len(t, root, 64)

	// Three leaves reduce to H(H(a||b) || c): "c" is carried up unpaired.
	raw := make([][]byte, len(leaves))
	for i, h := range leaves {
		b, err := hex.DecodeString(h)
		require.NoError(t, err)
		raw[i] = b
	}
	ab := sha256.Sum256(append(append([]byte{}, raw[0]...), raw[1]...))
	want := sha256.Sum256(append(ab[:], raw[2]...))
	assert.Equal(t, hex.EncodeToString(want[:]), root)

	// Deterministic: recomputing with the same leaves yields the same root.
	root2, err := MerkleRoot(leaves)
	require.NoError(t, err)
	assert.Equal(t, root, root2)
}

func TestMerkleRootSingleLeaf(t *testing.T) {
	leaf := HashBytes([]byte("solo"))
	root, err := MerkleRoot([]string{leaf})
	require.NoError(t, err)
	assert.Equal(t, leaf, root)
}
