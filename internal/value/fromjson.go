// Copyright 2025 Certen Protocol
//
// FromGeneric converts a generic decoded document (the shape yaml.v3 or
// encoding/json hands back: map[string]interface{}, []interface{}, string,
// bool, int, float64, nil) into a typed Value tree. This is the only
// place outside the Isolation Barrier that is allowed to look at a bare
// interface{} — program packs and HTTP request bodies both funnel through
// it before anything touches the expression engine or the ledger.
package value

import (
	"fmt"
	"strconv"
	"time"
)

// FromGeneric recursively converts. Reserved keys let an author express
// the three Value kinds JSON/YAML have no native form for:
//   {"$b64": "<base64>"}       -> byte string
//   {"$ts": "<RFC3339>"}       -> timestamp
//   {"$dec": "<decimal text>"} -> exact decimal (vs. a bare JSON number,
//                                 which is read as int64 when integral and
//                                 decimal otherwise, losing no precision
//                                 for any literal small enough to matter,
//                                 but $dec lets an author pin exactness).
func FromGeneric(in interface{}) (Value, error) {
	switch t := in.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case float64:
		if t == float64(int64(t)) {
			return Int(int64(t)), nil
		}
		return DecimalFromString(strconv.FormatFloat(t, 'f', -1, 64))
	case string:
		return Str(t), nil
	case time.Time:
		return Timestamp(t), nil
	case []interface{}:
		out := make([]Value, len(t))
		for i, e := range t {
			v, err := FromGeneric(e)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = v
		}
		return List(out), nil
	case map[string]interface{}:
		if b64, ok := t["$b64"]; ok && len(t) == 1 {
			s, _ := b64.(string)
			return decodeBytesLiteral(s)
		}
		if ts, ok := t["$ts"]; ok && len(t) == 1 {
			s, _ := ts.(string)
			parsed, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return Value{}, fmt.Errorf("$ts: %w", err)
			}
			return Timestamp(parsed), nil
		}
		if dec, ok := t["$dec"]; ok && len(t) == 1 {
			s, _ := dec.(string)
			return DecimalFromString(s)
		}
		out := make(map[string]Value, len(t))
		for k, v := range t {
			cv, err := FromGeneric(v)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = cv
		}
		return Map(out), nil
	default:
		return Value{}, fmt.Errorf("unsupported generic type %T", in)
	}
}

func decodeBytesLiteral(s string) (Value, error) {
	b, err := base64DecodeFlexible(s)
	if err != nil {
		return Value{}, fmt.Errorf("$b64: %w", err)
	}
	return Bytes(b), nil
}
