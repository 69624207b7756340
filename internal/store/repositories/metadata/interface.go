package metadata

import "context"

// Repository is a small key/value store used for vault-level state:
// the passphrase verifier and the last successful sync timestamp.
type Repository interface {
	// Get returns the value for key, or nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set inserts or replaces the value for key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a key; absent keys are not an error.
	Delete(ctx context.Context, key string) error
}
