package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// FingerprintToken returns the SHA-256 hash of a raw refresh token,
// hex-encoded. Sessions store and look up this fingerprint so the raw token
// never touches the database.
func FingerprintToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// FingerprintEqual compares the fingerprint of providedToken with a stored
// fingerprint in constant time. Returns true only if they match.
func FingerprintEqual(providedToken, storedFingerprint string) bool {
	provided := FingerprintToken(providedToken)
	return subtle.ConstantTimeCompare([]byte(provided), []byte(storedFingerprint)) == 1
}
