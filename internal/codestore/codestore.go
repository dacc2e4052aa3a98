// Package codestore keeps pending verification codes: one value per key,
// each with its own expiry. Values are opaque to the store (the auth service
// puts bcrypt hashes here).
//
// Two implementations:
//   - RedisStore for staging and production, shared across API instances.
//   - MemoryStore for ENV=local and tests, scoped to one process.
package codestore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound means no live value exists for the key: never stored, deleted,
// or expired.
var ErrNotFound = errors.New("codestore: not found")

// Store is the contract the auth service consumes.
//
// ATOMICITY:
//   - Put overwrites unconditionally, so issuing a code replaces any older one.
//   - CompareAndDelete removes the key only if it still holds value, as one
//     step. Of two concurrent verifications of the same code, exactly one
//     sees true.
type Store interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
	// Delete is unconditional removal, kept to complete the store contract.
	// Verification never uses it: consuming a code must go through
	// CompareAndDelete.
	Delete(ctx context.Context, key string) error
}
