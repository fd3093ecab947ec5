package crypt

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Hasher turns a plaintext password into a storable hash and checks it.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// Bcrypt hashes with bcrypt at Cost.
type Bcrypt struct {
	Cost int
}

func (b Bcrypt) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(h), nil
}

func (Bcrypt) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// New returns the hasher for kind ("bcrypt" or "des").
func New(kind string, cost int) (Hasher, error) {
	switch strings.ToLower(kind) {
	case "", "bcrypt":
		if cost != 0 && (cost < bcrypt.MinCost || cost > bcrypt.MaxCost) {
			return nil, fmt.Errorf("bcrypt cost %d out of range %d-%d", cost, bcrypt.MinCost, bcrypt.MaxCost)
		}
		return Bcrypt{Cost: cost}, nil
	case "des":
		return DES{}, nil
	default:
		return nil, fmt.Errorf("unknown password hash %q", kind)
	}
}

// Verify checks password against a hash in either supported format, so
// switching the configured hasher does not lock out existing players.
func Verify(password, hash string) bool {
	if strings.HasPrefix(hash, "$2") {
		return Bcrypt{}.Verify(password, hash)
	}
	return CheckPassword(password, hash)
}
