// Package storage defines the durable key-value contract backing the
// credential store, together with in-memory, file, and Redis implementations.
//
// Keys are plain strings and values are strings (JSON blobs for structured
// records). A missing key is reported as absent, never as an error; errors
// are reserved for genuine backend failures (unreadable directory,
// unreachable Redis). Callers treat backend failure as "not logged in".
package storage

import "context"

// Backend is the minimal capability set the credential store needs from a
// durable key-value mechanism.
type Backend interface {
	// Get retrieves the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
