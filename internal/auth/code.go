// Verification codes.
//
// A code is six random decimal digits (100000-999999), mailed to the user
// and valid for a few minutes. The code store only ever holds a bcrypt hash
// of it. Each issuance gets its own salt, so the stored hash string names
// exactly one issued code; compare-and-delete in the store relies on that.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCodeCost is the bcrypt work factor for code hashes. Lower than a
// password cost: codes live for minutes and every issuance pays the price.
const DefaultCodeCost = 10

const (
	codeMin   = 100000
	codeRange = 900000 // codes are codeMin..codeMin+codeRange-1
)

// ErrCodeMismatch is returned by Verify when the code does not match the hash.
var ErrCodeMismatch = errors.New("auth: code does not match")

// CodeHasher provides bcrypt hashing and verification of codes.
//
// It's a struct (not free functions) so that the cost can be injected
// in tests: cost 4 makes tests run in microseconds.
type CodeHasher struct {
	cost int
}

// NewCodeHasher creates a CodeHasher. A cost outside bcrypt's accepted range
// falls back to DefaultCodeCost.
func NewCodeHasher(cost int) *CodeHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCodeCost
	}
	return &CodeHasher{cost: cost}
}

// Hash returns the bcrypt hash of code.
func (h *CodeHasher) Hash(code string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(code), h.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing code: %w", err)
	}
	return string(hashed), nil
}

// Verify checks a submitted code against a stored hash.
//
// Returns nil on match, ErrCodeMismatch on a wrong code, and any other error
// for a corrupt hash. The comparison is constant-time.
func (h *CodeHasher) Verify(hash, code string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrCodeMismatch
		}
		return fmt.Errorf("auth: comparing code hash: %w", err)
	}
	return nil
}

// GenerateCode returns a uniformly random 6-digit code from crypto/rand.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", fmt.Errorf("auth: generating code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}
