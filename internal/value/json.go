// Copyright 2025 Certen Protocol
//
// JSON wire form for Value. This is NOT the canonical encoding used for
// hashing (see internal/canon) — it exists purely so the ledger's on-disk
// document and the HTTP transport can round-trip a Value tree losslessly
// (in particular, decimals survive as exact strings, never float64).
package value

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

type wireValue struct {
	K string          `json:"k"`
	V json.RawMessage `json:"v,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return json.Marshal(wireValue{K: "null"})
	case KindBool:
		vb, _ := json.Marshal(v.b)
		return json.Marshal(wireValue{K: "bool", V: vb})
	case KindInt:
		vb, _ := json.Marshal(v.i)
		return json.Marshal(wireValue{K: "int", V: vb})
	case KindDecimal:
		vb, _ := json.Marshal(v.dec.RatString())
		return json.Marshal(wireValue{K: "dec", V: vb})
	case KindString:
		vb, _ := json.Marshal(v.s)
		return json.Marshal(wireValue{K: "str", V: vb})
	case KindBytes:
		vb, _ := json.Marshal(base64.StdEncoding.EncodeToString(v.bytes))
		return json.Marshal(wireValue{K: "bytes", V: vb})
	case KindTimestamp:
		vb, _ := json.Marshal(v.ts.UTC().Format(time.RFC3339Nano))
		return json.Marshal(wireValue{K: "ts", V: vb})
	case KindList:
		vb, _ := json.Marshal(v.list)
		return json.Marshal(wireValue{K: "list", V: vb})
	case KindMap:
		keys := SortedKeys(v.m)
		ordered := make([]struct {
			K string `json:"k"`
			V Value  `json:"v"`
		}, len(keys))
		for i, k := range keys {
			ordered[i].K = k
			ordered[i].V = v.m[k]
		}
		vb, _ := json.Marshal(ordered)
		return json.Marshal(wireValue{K: "map", V: vb})
	default:
		return json.Marshal(wireValue{K: "null"})
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.K {
	case "null", "":
		*v = Null()
	case "bool":
		var b bool
		if err := json.Unmarshal(w.V, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case "int":
		var i int64
		if err := json.Unmarshal(w.V, &i); err != nil {
			return err
		}
		*v = Int(i)
	case "dec":
		var s string
		if err := json.Unmarshal(w.V, &s); err != nil {
			return err
		}
		r, ok := new(big.Rat).SetString(s)
		if !ok {
			return fmt.Errorf("invalid decimal wire value %q", s)
		}
		*v = Decimal(r)
	case "str":
		var s string
		if err := json.Unmarshal(w.V, &s); err != nil {
			return err
		}
		*v = Str(s)
	case "bytes":
		var s string
		if err := json.Unmarshal(w.V, &s); err != nil {
			return err
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return err
		}
		*v = Bytes(b)
	case "ts":
		var s string
		if err := json.Unmarshal(w.V, &s); err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		*v = Timestamp(t)
	case "list":
		var list []Value
		if err := json.Unmarshal(w.V, &list); err != nil {
			return err
		}
		*v = List(list)
	case "map":
		var ordered []struct {
			K string `json:"k"`
			V Value  `json:"v"`
		}
		if err := json.Unmarshal(w.V, &ordered); err != nil {
			return err
		}
		m := make(map[string]Value, len(ordered))
		for _, kv := range ordered {
			m[kv.K] = kv.V
		}
		*v = Map(m)
	default:
		return fmt.Errorf("unknown value wire kind %q", w.K)
	}
	return nil
}
