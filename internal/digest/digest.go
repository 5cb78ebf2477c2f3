// Package digest computes hash-distributed key values for multi-field index keys.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Key hashes an ordered tuple of fields into a fixed-width hex string.
// Each field is length-prefixed, so ("a#b", "c") and ("a", "b#c") never collide
// the way a plain "#"-joined key would.
func Key(fields ...string) string {
	h := sha256.New()
	for _, f := range fields {
		h.Write([]byte(strconv.Itoa(len(f))))
		h.Write([]byte{':'})
		h.Write([]byte(f))
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16]) // 128-bit hash as hex
}
