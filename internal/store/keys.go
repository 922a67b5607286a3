package store

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Characters the tree rejects in keys. '.' is legal in some backends
// but not here, so it is escaped along with '%' to keep the encoding
// reversible.
const unsafeKeyChars = "%.$#[]/"

// SafeKey percent-encodes s so it can be used as a tree key. Search
// queries and upstream song IDs both pass through here.
func SafeKey(s string) string {
	if !strings.ContainsAny(s, unsafeKeyChars) && !hasControl(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c == 0x7f || strings.IndexByte(unsafeKeyChars, c) >= 0 {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func hasControl(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] == 0x7f {
			return true
		}
	}
	return false
}

// UnsafeKey reverses SafeKey. Malformed escapes pass through verbatim.
func UnsafeKey(k string) string {
	if !strings.Contains(k, "%") {
		return k
	}
	var b strings.Builder
	b.Grow(len(k))
	for i := 0; i < len(k); i++ {
		if k[i] == '%' && i+2 < len(k) {
			hi, okHi := unhex(k[i+1])
			lo, okLo := unhex(k[i+2])
			if okHi && okLo {
				b.WriteByte(hi<<4 | lo)
				i += 2
				continue
			}
		}
		b.WriteByte(k[i])
	}
	return b.String()
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

var pushSeq atomic.Uint64

// pushKey returns a unique key that sorts chronologically. The
// sequence number keeps same-millisecond appends ordered within a
// process and the random tail keeps processes from colliding.
func pushKey(now time.Time) string {
	seq := pushSeq.Add(1) % 1_000_000
	return fmt.Sprintf("%013d-%06d-%s", now.UnixMilli(), seq, uuid.NewString()[:8])
}
