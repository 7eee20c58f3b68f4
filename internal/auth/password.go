package auth

import (
	"unicode/utf8"

	"github.com/alexedwards/argon2id"
)

// MinPasswordLength is counted in characters, not bytes.
const MinPasswordLength = 6

// hashParams is the cost every stored dashboard hash should carry. Hashes
// written with other parameters are upgraded on the next sign-in.
var hashParams = argon2id.Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// LongEnough reports whether password meets the sign-up and reset minimum.
func LongEnough(password string) bool {
	return utf8.RuneCountInString(password) >= MinPasswordLength
}

// Hash produces an Argon2id hash with the parameters embedded.
func Hash(password string) (string, error) {
	p := hashParams
	return argon2id.CreateHash(password, &p)
}

// Verify compares password with a stored hash. An account without a hash
// never matches.
func Verify(password, encodedHash string) (bool, error) {
	if encodedHash == "" {
		return false, nil
	}
	return argon2id.ComparePasswordAndHash(password, encodedHash)
}

// NeedsRehash reports whether encodedHash was written with parameters other
// than the current ones.
func NeedsRehash(encodedHash string) bool {
	p, _, _, err := argon2id.DecodeHash(encodedHash)
	if err != nil {
		return true
	}
	return *p != hashParams
}
