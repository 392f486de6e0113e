// Copyright 2025 Certen Protocol
package value

import "encoding/base64"

// base64DecodeFlexible accepts both padded and unpadded standard base64,
// since authors hand-writing program packs rarely remember the padding
// rule the canonical encoder enforces on output.
func base64DecodeFlexible(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
