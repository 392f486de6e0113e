// Copyright 2025 Certen Protocol
//
// Value is the single dispatch point for every datum that can cross the
// kernel's digest boundary: context bindings, effect payloads, ledger
// state, proof snapshots. Nothing downstream of the Isolation Barrier
// touches encoding/json's float64/interface{} directly — it all goes
// through this tagged union first, so canonical hashing never has to
// reverse-engineer what a bare interface{} was supposed to mean.
package value

import (
	"fmt"
	"math/big"
	"sort"
	"time"
)

// Kind tags the active alternative of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindDecimal
	KindString
	KindBytes
	KindTimestamp
	KindList
	KindMap
)

// Value is a tagged union. Only the field matching Kind is meaningful.
// Construct via the helpers below (Null, Bool, Int, Str, Decimal, ...)
// rather than struct literals.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	dec   *big.Rat
	s     string
	bytes []byte
	ts    time.Time
	list  []Value
	m     map[string]Value
}

func Null() Value                 { return Value{kind: KindNull} }
func Bool(b bool) Value           { return Value{kind: KindBool, b: b} }
func Int(i int64) Value           { return Value{kind: KindInt, i: i} }
func Str(s string) Value          { return Value{kind: KindString, s: s} }
func Bytes(b []byte) Value        { return Value{kind: KindBytes, bytes: append([]byte(nil), b...)} }
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, ts: t.UTC()} }
func List(vs []Value) Value       { return Value{kind: KindList, list: vs} }

// Decimal builds an arbitrary-precision rational value from a copy of r,
// matching the "no floats crossing the digest boundary"
// rule: this is the only constructor that can hold a fractional number.
func Decimal(r *big.Rat) Value { return Value{kind: KindDecimal, dec: new(big.Rat).Set(r)} }

// DecimalFromString parses a base-10 decimal literal ("12.50", "-3", "0.1")
// into an exact rational. Returns an error for malformed input.
func DecimalFromString(s string) (Value, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Value{}, fmt.Errorf("not a valid decimal literal: %q", s)
	}
	return Decimal(r), nil
}

// Map builds a Value from a Go map. Insertion order is irrelevant; callers
// must not rely on it, since canonicalization always sorts keys.
func Map(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

func EmptyMap() Value  { return Map(nil) }
func EmptyList() Value { return List(nil) }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)       { return v.i, v.kind == KindInt }
func (v Value) AsString() (string, bool)   { return v.s, v.kind == KindString }
func (v Value) AsBytes() ([]byte, bool)    { return v.bytes, v.kind == KindBytes }
func (v Value) AsTimestamp() (time.Time, bool) { return v.ts, v.kind == KindTimestamp }
func (v Value) AsList() ([]Value, bool)    { return v.list, v.kind == KindList }
func (v Value) AsMap() (map[string]Value, bool) { return v.m, v.kind == KindMap }

// AsDecimal returns the value as a rational, promoting integers.
func (v Value) AsDecimal() (*big.Rat, bool) {
	switch v.kind {
	case KindDecimal:
		return new(big.Rat).Set(v.dec), true
	case KindInt:
		return new(big.Rat).SetInt64(v.i), true
	default:
		return nil, false
	}
}

// IsNumber reports whether v is an integer or a decimal.
func (v Value) IsNumber() bool { return v.kind == KindInt || v.kind == KindDecimal }

// Truthy implements the boolean coercion rule used by gate results and
// `if`/`and`/`or`: null and false(bool) are falsy, everything else (zero
// numbers, empty strings, empty lists/maps included) is truthy except the
// boolean false itself.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	default:
		return true
	}
}

// Equal implements structural, cross-type-numeric equality: integer 1
// equals decimal 1.0. Maps compare by key set and recursive value equality,
// independent of insertion order. Lists compare elementwise in order.
func Equal(a, b Value) bool {
	if a.IsNumber() && b.IsNumber() {
		ra, _ := a.AsDecimal()
		rb, _ := b.AsDecimal()
		return ra.Cmp(rb) == 0
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindString:
		return a.s == b.s
	case KindBytes:
		return string(a.bytes) == string(b.bytes)
	case KindTimestamp:
		return a.ts.Equal(b.ts)
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders two values for lt/le/gt/ge: numbers against numbers,
// timestamps against timestamps, strings against strings (codepoint
// order). Any other pairing is not comparable and ok is false.
func Compare(a, b Value) (cmp int, ok bool) {
	if a.IsNumber() && b.IsNumber() {
		ra, _ := a.AsDecimal()
		rb, _ := b.AsDecimal()
		return ra.Cmp(rb), true
	}
	if a.kind == KindTimestamp && b.kind == KindTimestamp {
		switch {
		case a.ts.Before(b.ts):
			return -1, true
		case a.ts.After(b.ts):
			return 1, true
		default:
			return 0, true
		}
	}
	if a.kind == KindString && b.kind == KindString {
		switch {
		case a.s < b.s:
			return -1, true
		case a.s > b.s:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

// Path navigates a dotted path ("a.b.2.c") into a Value tree. A missing map
// key or an out-of-range list index evaluates to null, never an error, per
// the expression engine's Var semantics.
func Path(root Value, segments []string) Value {
	cur := root
	for _, seg := range segments {
		switch cur.kind {
		case KindMap:
			next, ok := cur.m[seg]
			if !ok {
				return Null()
			}
			cur = next
		case KindList:
			idx, err := parseIndex(seg)
			if err != nil || idx < 0 || idx >= len(cur.list) {
				return Null()
			}
			cur = cur.list[idx]
		default:
			return Null()
		}
	}
	return cur
}

// PathChecked navigates like Path but reports whether every segment along
// the way actually existed, distinguishing "the path legitimately holds
// null" from "the path does not exist" — the distinction template
// resolution needs to raise TemplateError only on the latter.
func PathChecked(root Value, segments []string) (Value, bool) {
	cur := root
	for _, seg := range segments {
		switch cur.kind {
		case KindMap:
			next, ok := cur.m[seg]
			if !ok {
				return Null(), false
			}
			cur = next
		case KindList:
			idx, err := parseIndex(seg)
			if err != nil || idx < 0 || idx >= len(cur.list) {
				return Null(), false
			}
			cur = cur.list[idx]
		default:
			return Null(), false
		}
	}
	return cur, true
}

func parseIndex(s string) (int, error) {
	var n int
	if s == "" {
		return 0, fmt.Errorf("empty index")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not an index: %q", s)
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}

// SortedKeys returns a map's keys in ascending Unicode codepoint order,
// the order canonicalization always uses.
func SortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Length implements length(x) over lists, strings (by rune count, since the
// encoding is UTF-8), and maps.
func Length(v Value) (int64, bool) {
	switch v.kind {
	case KindList:
		return int64(len(v.list)), true
	case KindMap:
		return int64(len(v.m)), true
	case KindString:
		return int64(len([]rune(v.s))), true
	default:
		return 0, false
	}
}
