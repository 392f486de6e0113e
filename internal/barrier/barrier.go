// Copyright 2025 Certen Protocol
//
// Isolation Barrier - schema-enforced normalization of untrusted payloads.
// Schemas are a fixed, code-declared table (no reflection, no dynamic
// schema language) so the set of accepted shapes never grows beyond what
// this file names — the same "declare the fields you expect, drop
// everything else" posture the upstream typed-repository and versioned
// schema-table files in this codebase's lineage use.
package barrier

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/LogLine-Foundation/UBL/internal/canon"
	"github.com/LogLine-Foundation/UBL/internal/kernelerr"
	"github.com/LogLine-Foundation/UBL/internal/value"
)

// FieldType is the allowed type set for a schema field.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeNumber    FieldType = "number"
	TypeBool      FieldType = "bool"
	TypeTimestamp FieldType = "timestamp"
	TypeCurrency  FieldType = "currency" // uppercased 3-letter code, stored as string
)

// FieldSpec declares one field's type and normalization rule.
type FieldSpec struct {
	Type FieldType
}

// Schema is a fixed, code-declared field table for one content_type.
type Schema struct {
	Required map[string]FieldSpec
	Optional map[string]FieldSpec
}

// schemas is the closed set of content types the barrier accepts. Adding a
// new content type means adding an entry here, never inferring one from
// the payload.
var schemas = map[string]Schema{
	"invoice": {
		Required: map[string]FieldSpec{
			"vendor_id": {Type: TypeString},
			"amount":    {Type: TypeNumber},
			"currency":  {Type: TypeCurrency},
			"date":      {Type: TypeTimestamp},
		},
		Optional: map[string]FieldSpec{
			"description": {Type: TypeString},
		},
	},
	"payment": {
		Required: map[string]FieldSpec{
			"to_id":    {Type: TypeString},
			"amount":   {Type: TypeNumber},
			"currency": {Type: TypeCurrency},
		},
		Optional: map[string]FieldSpec{
			"memo": {Type: TypeString},
		},
	},
}

// ValidatedData is the barrier's only output shape: typed, non-executable
// data plus the raw-input content hash for audit.
type ValidatedData struct {
	ContentType string
	Fields      value.Value // KindMap
	ContentHash string
}

// Process parses payloadBytes as JSON against the schema named by
// contentType, drops any undeclared field, normalizes the rest, and
// returns the result. The raw bytes (not the normalized form) are hashed
// for content_hash so the original input remains independently auditable.
func Process(contentType string, payloadBytes []byte) (*ValidatedData, error) {
	schema, ok := schemas[contentType]
	if !ok {
		return nil, kernelerr.New(kernelerr.BarrierError, "no schema declared for content_type %q", contentType)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(payloadBytes, &raw); err != nil {
		return nil, kernelerr.Wrap(kernelerr.BarrierError, err, "payload is not valid JSON")
	}

	fields := make(map[string]value.Value)
	for name, spec := range schema.Required {
		rv, present := raw[name]
		if !present {
			return nil, kernelerr.New(kernelerr.BarrierError, "required field %q is missing", name)
		}
		nv, err := normalize(spec.Type, rv)
		if err != nil {
			return nil, kernelerr.Wrap(kernelerr.BarrierError, err, "required field %q failed type check", name)
		}
		fields[name] = nv
	}
	for name, spec := range schema.Optional {
		rv, present := raw[name]
		if !present {
			continue
		}
		nv, err := normalize(spec.Type, rv)
		if err != nil {
			return nil, kernelerr.Wrap(kernelerr.BarrierError, err, "optional field %q failed type check", name)
		}
		fields[name] = nv
	}
	// Every field not declared in Required/Optional is silently dropped —
	// this loop intentionally never reads raw's other keys.

	return &ValidatedData{
		ContentType: contentType,
		Fields:      value.Map(fields),
		ContentHash: canon.HashBytes(payloadBytes),
	}, nil
}

func normalize(t FieldType, raw interface{}) (value.Value, error) {
	switch t {
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return value.Value{}, fmt.Errorf("expected string, got %T", raw)
		}
		return value.Str(strings.TrimSpace(s)), nil
	case TypeCurrency:
		s, ok := raw.(string)
		if !ok {
			return value.Value{}, fmt.Errorf("expected currency code string, got %T", raw)
		}
		s = strings.ToUpper(strings.TrimSpace(s))
		if len(s) != 3 {
			return value.Value{}, fmt.Errorf("currency code must be 3 letters, got %q", s)
		}
		return value.Str(s), nil
	case TypeNumber:
		switch n := raw.(type) {
		case float64:
			return value.DecimalFromString(strconv.FormatFloat(n, 'f', -1, 64))
		case string:
			return value.DecimalFromString(n)
		default:
			return value.Value{}, fmt.Errorf("expected a number, got %T", raw)
		}
	case TypeBool:
		b, ok := raw.(bool)
		if !ok {
			return value.Value{}, fmt.Errorf("expected bool, got %T", raw)
		}
		return value.Bool(b), nil
	case TypeTimestamp:
		s, ok := raw.(string)
		if !ok {
			return value.Value{}, fmt.Errorf("expected timestamp string, got %T", raw)
		}
		t, err := parseFlexibleTimestamp(s)
		if err != nil {
			return value.Value{}, err
		}
		return value.Timestamp(t), nil
	default:
		return value.Value{}, fmt.Errorf("unknown field type %q", t)
	}
}

func parseFlexibleTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format %q", s)
}
