package domain

import "context"

// UpdateFunc receives the current value of a key (found is false when absent) and returns the
// value to persist. Returning an error aborts the update and leaves the stored value untouched.
type UpdateFunc func(old []byte, found bool) ([]byte, error)

// Store is the persistence seam beneath the response cache and the rate governor.
type Store interface {
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put replaces the value of key atomically.
	Put(ctx context.Context, key string, value []byte) error
	// Update performs a read-modify-write of key under an exclusive lock.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	// Delete is idempotent.
	Delete(ctx context.Context, key string) error
	// Scan calls fn for every key starting with prefix.
	Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error
	Close() error
}
