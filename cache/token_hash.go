package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken hashes a token string. The fixed-length digest keeps cache keys
// short and avoids storing raw credentials in the cache backend.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
