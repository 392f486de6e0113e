// Copyright 2025 Certen Protocol
package expr

import (
	"fmt"
	"strings"

	"github.com/LogLine-Foundation/UBL/internal/canon"
)

// Fingerprint renders a Node into a deterministic textual form, used
// anywhere a Node needs to participate in a content hash (chip_hash,
// program_hash) without re-parsing it back out of the fingerprint later.
func Fingerprint(n Node) string {
	var b strings.Builder
	writeFingerprint(&b, n)
	return b.String()
}

func writeFingerprint(b *strings.Builder, n Node) {
	switch t := n.(type) {
	case Literal:
		b.WriteString("lit:")
		b.WriteString(canon.Hash(t.Value))
	case Var:
		b.WriteString("var:")
		b.WriteString(strings.Join(t.Path, "."))
	case Unary:
		fmt.Fprintf(b, "unary(%s,", t.Op)
		writeFingerprint(b, t.X)
		b.WriteByte(')')
	case Binary:
		fmt.Fprintf(b, "binary(%s,", t.Op)
		writeFingerprint(b, t.A)
		b.WriteByte(',')
		writeFingerprint(b, t.B)
		b.WriteByte(')')
	case If:
		b.WriteString("if(")
		writeFingerprint(b, t.Cond)
		b.WriteByte(',')
		writeFingerprint(b, t.Then)
		b.WriteByte(',')
		writeFingerprint(b, t.Else)
		b.WriteByte(')')
	case Call:
		fmt.Fprintf(b, "call(%s", t.Func)
		for _, a := range t.Args {
			b.WriteByte(',')
			writeFingerprint(b, a)
		}
		b.WriteByte(')')
	default:
		b.WriteString("unknown")
	}
}
