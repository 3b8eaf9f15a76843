package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is the sentinel for lookups and deletes of absent keys
var ErrKeyNotFound = errors.New("key not found")

// KeyValuePair is one stored setting or credential with its audit
// timestamps
type KeyValuePair struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// KeyValueStorage holds API credentials and small operational settings.
// Values stored here resolve {key} references in the config at startup.
type KeyValueStorage interface {
	// Get returns the bare value, or ErrKeyNotFound
	Get(ctx context.Context, key string) (string, error)

	// GetPair returns the pair with metadata, or ErrKeyNotFound
	GetPair(ctx context.Context, key string) (*KeyValuePair, error)

	// Set writes a pair unconditionally
	Set(ctx context.Context, key string, value string, description string) error

	// Upsert writes a pair and reports whether the key was newly created
	Upsert(ctx context.Context, key string, value string, description string) (bool, error)

	// Delete removes a pair, or returns ErrKeyNotFound
	Delete(ctx context.Context, key string) error

	// List returns every pair, most recently updated first
	List(ctx context.Context) ([]KeyValuePair, error)
}
