// Copyright 2025 Certen Protocol
//
// Canonical Encoding Package - JCS-style deterministic byte form
// Every hash of a Value in the kernel (chip_hash, proof_hash, record_hash,
// the expression builtin sha256(v)) goes through Encode first. HashBytes
// and MerkleRoot are the two exceptions: they hash raw bytes and leaf
// digests directly.
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/LogLine-Foundation/UBL/internal/value"
)

// Encode produces the canonical byte string for a Value tree. Structurally
// equivalent values (including maps with shuffled key insertion order)
// yield byte-identical output.
func Encode(v value.Value) []byte {
	var buf bytes.Buffer
	encode(&buf, v)
	return buf.Bytes()
}

func encode(buf *bytes.Buffer, v value.Value) {
	switch v.Kind() {
	case value.KindNull:
		buf.WriteString("null")
	case value.KindBool:
		b, _ := v.AsBool()
		if b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case value.KindInt:
		i, _ := v.AsInt()
		buf.WriteString(strconv.FormatInt(i, 10))
	case value.KindDecimal:
		r, _ := v.AsDecimal()
		buf.WriteString(encodeDecimal(r))
	case value.KindString:
		s, _ := v.AsString()
		encodeString(buf, s)
	case value.KindBytes:
		b, _ := v.AsBytes()
		buf.WriteString(`{"$b64":"`)
		buf.WriteString(base64.RawStdEncoding.EncodeToString(b))
		buf.WriteString(`"}`)
	case value.KindTimestamp:
		ts, _ := v.AsTimestamp()
		encodeString(buf, formatTimestamp(ts))
	case value.KindList:
		list, _ := v.AsList()
		buf.WriteByte('[')
		for i, e := range list {
			if i > 0 {
				buf.WriteByte(',')
			}
			encode(buf, e)
		}
		buf.WriteByte(']')
	case value.KindMap:
		m, _ := v.AsMap()
		keys := value.SortedKeys(m)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodeString(buf, k)
			buf.WriteByte(':')
			encode(buf, m[k])
		}
		buf.WriteByte('}')
	default:
		buf.WriteString("null")
	}
}

// encodeDecimal emits the shortest base-10 string that reparses to the
// same exact rational. Integers-valued decimals drop the decimal point's
// fractional part entirely (e.g. 2 not 2.0) since the rule is "shortest
// exact form", and big.Rat normalizes 2/1 to integer-looking output.
func encodeDecimal(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	// FloatString with increasing precision until it reparses exactly;
	// the denominator of a reduced fraction bounds the needed precision
	// when it is a power of 2 and 5 (decimal-representable), otherwise we
	// fall back to a long but exact expansion.
	den := new(big.Int).Set(r.Denom())
	prec := decimalPrecision(den)
	s := r.FloatString(prec)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	// Verify exactness; if rounding crept in, fall back to the rational
	// form num/den which is never ambiguous though unconventional.
	check, ok := new(big.Rat).SetString(s)
	if !ok || check.Cmp(r) != 0 {
		return r.Num().String() + "/" + r.Denom().String()
	}
	return s
}

// decimalPrecision returns how many fractional digits are needed to
// represent a fraction with the given denominator exactly in base 10,
// assuming the denominator's only prime factors are 2 and 5; otherwise a
// generous bound is returned and encodeDecimal falls back to rational form
// if that bound turns out insufficient.
func decimalPrecision(den *big.Int) int {
	d := new(big.Int).Set(den)
	two := big.NewInt(2)
	five := big.NewInt(5)
	count2, count5 := 0, 0
	for new(big.Int).Mod(d, two).Sign() == 0 {
		d.Div(d, two)
		count2++
	}
	for new(big.Int).Mod(d, five).Sign() == 0 {
		d.Div(d, five)
		count5++
	}
	if d.Cmp(big.NewInt(1)) == 0 {
		if count2 > count5 {
			return count2
		}
		return count5
	}
	return 64
}

func encodeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else if r == utf8.RuneError {
				buf.WriteRune(r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

// formatTimestamp renders RFC 3339 in UTC, second precision, with
// fractional seconds only when non-zero and trimmed to minimum digits.
func formatTimestamp(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond() == 0 {
		return t.Format("2006-01-02T15:04:05Z")
	}
	s := t.Format("2006-01-02T15:04:05.000000000Z")
	// trim trailing zeros in the fractional part, keep at least one digit
	s = strings.TrimSuffix(s, "Z")
	for strings.HasSuffix(s, "0") && !strings.HasSuffix(s, ".0") {
		s = s[:len(s)-1]
	}
	return s + "Z"
}

// EncodeText renders a Value the way a template placeholder substitution
// needs: a bare string gives its raw characters (no surrounding quotes), a
// number its exact decimal text, a timestamp its canonical RFC3339 form.
// Lists and maps fall back to the canonical JSON form since no other
// textual rendering is well-defined for them.
func EncodeText(v value.Value) string {
	switch v.Kind() {
	case value.KindNull:
		return "null"
	case value.KindBool:
		b, _ := v.AsBool()
		if b {
			return "true"
		}
		return "false"
	case value.KindInt:
		i, _ := v.AsInt()
		return strconv.FormatInt(i, 10)
	case value.KindDecimal:
		r, _ := v.AsDecimal()
		return encodeDecimal(r)
	case value.KindString:
		s, _ := v.AsString()
		return s
	case value.KindBytes:
		b, _ := v.AsBytes()
		return base64.RawStdEncoding.EncodeToString(b)
	case value.KindTimestamp:
		ts, _ := v.AsTimestamp()
		return formatTimestamp(ts)
	default:
		return string(Encode(v))
	}
}

// Hash returns the lowercase hex SHA-256 digest of a Value's canonical
// encoding.
func Hash(v value.Value) string {
	sum := sha256.Sum256(Encode(v))
	return hex.EncodeToString(sum[:])
}

// HashBytes returns the lowercase hex SHA-256 digest of raw bytes (used for
// the Isolation Barrier's content_hash, computed over the untouched input).
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// MerkleRoot reduces a list of leaf hex digests into a single root, using
// the same pairwise binary reduction (odd node promoted unchanged) that
// the rest of this codebase's batching pipeline expects. An empty leaf set
// hashes to the 32 zero bytes.
func MerkleRoot(leafHexHashes []string) (string, error) {
	if len(leafHexHashes) == 0 {
		return hex.EncodeToString(make([]byte, 32)), nil
	}
	level := make([][]byte, len(leafHexHashes))
	for i, h := range leafHexHashes {
		b, err := hex.DecodeString(h)
		if err != nil {
			return "", fmt.Errorf("decode leaf %d: %w", i, err)
		}
		level[i] = b
	}
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			sum := sha256.Sum256(append(append([]byte{}, level[i]...), level[i+1]...))
			next = append(next, sum[:])
		}
		level = next
	}
	return hex.EncodeToString(level[0]), nil
}
