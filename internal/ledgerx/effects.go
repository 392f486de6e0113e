// Copyright 2025 Certen Protocol
package ledgerx

import (
	"fmt"
	"math/big"

	"github.com/LogLine-Foundation/UBL/internal/value"
)

// addValues adds two numeric Values when historical-state replay applies
// an increment effect. Both inputs must be numbers.
func addValues(a, b value.Value) (value.Value, error) {
	ra, ok1 := a.AsDecimal()
	rb, ok2 := b.AsDecimal()
	if !ok1 || !ok2 {
		return value.Value{}, fmt.Errorf("increment requires numeric target and payload")
	}
	sum := new(big.Rat).Add(ra, rb)
	if a.Kind() == value.KindInt && b.Kind() == value.KindInt && sum.IsInt() {
		return value.Int(sum.Num().Int64()), nil
	}
	return value.Decimal(sum), nil
}
