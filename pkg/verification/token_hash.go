package verification

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// HashToken fingerprints a bearer token so it can be stored next to data
// fetched with it without keeping the token itself.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.URLEncoding.EncodeToString(sum[:])
}

func VerifyTokenHash(token, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(storedHash)) == 1
}
