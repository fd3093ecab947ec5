// Package crypt hashes and checks player passwords. Bcrypt is the default;
// traditional DES crypt(3) is kept for legacy hashes.
package crypt

import (
	"crypto/rand"

	descrypt "github.com/digitive/crypt"
)

const saltChars = "./0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Crypt performs traditional Unix DES crypt(3). It returns "" on failure.
func Crypt(password, salt string) string {
	result, err := descrypt.Crypt(password, salt)
	if err != nil {
		return ""
	}
	return result
}

// CheckPassword verifies a password against a DES-encrypted hash.
func CheckPassword(password, storedHash string) bool {
	if len(storedHash) < 2 {
		return false
	}
	salt := storedHash[:2]
	computed := Crypt(password, salt)
	return computed != "" && computed == storedHash
}

// DES hashes with crypt(3) and a random two-character salt.
type DES struct{}

func (DES) Hash(password string) (string, error) {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	salt := string([]byte{saltChars[int(b[0])%len(saltChars)], saltChars[int(b[1])%len(saltChars)]})
	h, err := descrypt.Crypt(password, salt)
	if err != nil {
		return "", err
	}
	return h, nil
}

func (DES) Verify(password, hash string) bool {
	return CheckPassword(password, hash)
}
