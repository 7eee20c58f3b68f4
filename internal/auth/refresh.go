package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// GenerateOpaqueToken creates a random URL-safe token and its persistable hash.
// Used for refresh tokens, recovery codes and email verification links.
func GenerateOpaqueToken() (raw string, hashed string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}

	raw = base64.RawURLEncoding.EncodeToString(buf)
	hashed = HashOpaqueToken(raw)
	return raw, hashed, nil
}

// HashOpaqueToken produces a base64 SHA-256 digest.
func HashOpaqueToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// SessionRedisKey is where a live session is stored.
func SessionRedisKey(sessionID string) string {
	return "session:" + sessionID
}

// RefreshRedisKey maps a refresh token hash to its session.
func RefreshRedisKey(hash string) string {
	return "refresh:" + hash
}

// RecoveryCodeRedisKey maps a one-time recovery code hash to its session.
func RecoveryCodeRedisKey(hash string) string {
	return "recovery:code:" + hash
}

// VerifyRedisKey maps an email verification token hash to its user.
func VerifyRedisKey(hash string) string {
	return "verify:" + hash
}
