// Copyright 2025 Certen Protocol
//
// Decode turns a generic decoded document (program-pack YAML/JSON) into an
// AST tree. The engine itself never parses text; this is the boundary
// where an author's declarative node description becomes a Node the
// evaluator can walk. Expected shape per node kind:
//
//   {"literal": <value>}
//   {"var": "a.b.0"}
//   {"unary": {"op": "not", "x": <node>}}
//   {"binary": {"op": "add", "a": <node>, "b": <node>}}
//   {"if": {"cond": <node>, "then": <node>, "else": <node>}}
//   {"call": {"fn": "age", "args": [<node>, ...]}}
package expr

import (
	"fmt"
	"strings"

	"github.com/LogLine-Foundation/UBL/internal/value"
)

// Decode converts a generic map into a Node tree.
func Decode(in interface{}) (Node, error) {
	m, ok := in.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expression node must be a mapping, got %T", in)
	}
	if len(m) != 1 {
		return nil, fmt.Errorf("expression node must have exactly one key, got %d", len(m))
	}
	for k, v := range m {
		switch k {
		case "literal":
			val, err := value.FromGeneric(v)
			if err != nil {
				return nil, fmt.Errorf("literal: %w", err)
			}
			return Literal{Value: val}, nil
		case "var":
			path, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("var must be a dotted-path string")
			}
			return Var{Path: strings.Split(path, ".")}, nil
		case "unary":
			fields, ok := v.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("unary must be a mapping")
			}
			op, _ := fields["op"].(string)
			x, err := Decode(fields["x"])
			if err != nil {
				return nil, fmt.Errorf("unary.x: %w", err)
			}
			return Unary{Op: UnaryOp(op), X: x}, nil
		case "binary":
			fields, ok := v.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("binary must be a mapping")
			}
			op, _ := fields["op"].(string)
			a, err := Decode(fields["a"])
			if err != nil {
				return nil, fmt.Errorf("binary.a: %w", err)
			}
			b, err := Decode(fields["b"])
			if err != nil {
				return nil, fmt.Errorf("binary.b: %w", err)
			}
			return Binary{Op: BinaryOp(op), A: a, B: b}, nil
		case "if":
			fields, ok := v.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("if must be a mapping")
			}
			cond, err := Decode(fields["cond"])
			if err != nil {
				return nil, fmt.Errorf("if.cond: %w", err)
			}
			then, err := Decode(fields["then"])
			if err != nil {
				return nil, fmt.Errorf("if.then: %w", err)
			}
			els, err := Decode(fields["else"])
			if err != nil {
				return nil, fmt.Errorf("if.else: %w", err)
			}
			return If{Cond: cond, Then: then, Else: els}, nil
		case "call":
			fields, ok := v.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("call must be a mapping")
			}
			fn, _ := fields["fn"].(string)
			rawArgs, _ := fields["args"].([]interface{})
			args := make([]Node, len(rawArgs))
			for i, ra := range rawArgs {
				n, err := Decode(ra)
				if err != nil {
					return nil, fmt.Errorf("call.args[%d]: %w", i, err)
				}
				args[i] = n
			}
			return Call{Func: fn, Args: args}, nil
		default:
			return nil, fmt.Errorf("unknown expression node kind %q", k)
		}
	}
	panic("unreachable")
}
