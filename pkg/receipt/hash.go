package receipt

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashBytes computes the lowercase-hex sha256 of b, used both as an
// artifact's codeHash and as the key of the upload-receipt store.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
