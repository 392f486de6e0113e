// Copyright 2025 Certen Protocol
package chip

import "github.com/LogLine-Foundation/UBL/internal/expr"

// fingerprint delegates to the expression package's canonical textual
// rendering of a node, used only as chip_hash input.
func fingerprint(n expr.Node) string { return expr.Fingerprint(n) }
