package cache

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// MaxKeyPrefix bounds the human-readable part of a key, in runes.
const MaxKeyPrefix = 100

// Key builds "<namespace>:<prefix>" where prefix is s cut to MaxKeyPrefix
// runes. When s is longer, an xxhash digest of the whole of s is appended so
// two long inputs that share a prefix still get different keys.
func Key(namespace, s string) string {
	var b strings.Builder
	b.WriteString(namespace)
	b.WriteByte(':')

	if utf8.RuneCountInString(s) <= MaxKeyPrefix {
		b.WriteString(s)
		return b.String()
	}

	n := 0
	for i := range s {
		if n == MaxKeyPrefix {
			b.WriteString(s[:i])
			break
		}
		n++
	}
	b.WriteByte('#')
	b.WriteString(strconv.FormatUint(xxhash.Sum64String(s), 16))
	return b.String()
}
