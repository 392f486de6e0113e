// Copyright 2025 Certen Protocol
package executor

import (
	"fmt"
	"math/big"

	"github.com/LogLine-Foundation/UBL/internal/ledgerx"
	"github.com/LogLine-Foundation/UBL/internal/value"
)

// applyEffect mutates staged in place for one resolved effect and returns
// an event Value when the effect is "emit" (events never touch staged
// itself). Any failure here aborts the whole execution — no effect in the
// batch is allowed to partially apply.
func applyEffect(staged map[string]value.Value, e ledgerx.ResolvedEffect) (*value.Value, error) {
	switch e.Kind {
	case "set":
		staged[e.Target] = e.Payload
		return nil, nil
	case "delete":
		delete(staged, e.Target)
		return nil, nil
	case "push":
		cur, ok := staged[e.Target]
		var list []value.Value
		if ok {
			list, ok = cur.AsList()
			if !ok {
				return nil, fmt.Errorf("push target %q is not a list", e.Target)
			}
		}
		staged[e.Target] = value.List(append(append([]value.Value(nil), list...), e.Payload))
		return nil, nil
	case "merge":
		payload, ok := e.Payload.AsMap()
		if !ok {
			return nil, fmt.Errorf("merge payload for %q is not a mapping", e.Target)
		}
		merged := map[string]value.Value{}
		if cur, ok := staged[e.Target]; ok {
			curMap, isMap := cur.AsMap()
			if !isMap {
				return nil, fmt.Errorf("merge target %q is not a mapping", e.Target)
			}
			for k, v := range curMap {
				merged[k] = v
			}
		}
		for k, v := range payload {
			merged[k] = v
		}
		staged[e.Target] = value.Map(merged)
		return nil, nil
	case "increment":
		delta, ok := e.Payload.AsDecimal()
		if !ok {
			return nil, fmt.Errorf("increment payload for %q is not a number", e.Target)
		}
		base := new(big.Rat)
		baseIsInt := true
		if cur, ok := staged[e.Target]; ok {
			curRat, ok := cur.AsDecimal()
			if !ok {
				return nil, fmt.Errorf("increment target %q is not a number", e.Target)
			}
			base = curRat
			baseIsInt = cur.Kind() == value.KindInt
		}
		sum := new(big.Rat).Add(base, delta)
		if baseIsInt && e.Payload.Kind() == value.KindInt && sum.IsInt() {
			staged[e.Target] = value.Int(sum.Num().Int64())
		} else {
			staged[e.Target] = value.Decimal(sum)
		}
		return nil, nil
	case "emit":
		ev := value.Map(map[string]value.Value{
			"target":  value.Str(e.Target),
			"payload": e.Payload,
		})
		return &ev, nil
	default:
		return nil, fmt.Errorf("unknown effect kind %q", e.Kind)
	}
}
