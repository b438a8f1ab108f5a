package storage

import "context"

// Storage is the durable key/value port the cart store persists through.
// Keys are opaque; the caller owns the key schema.
type Storage interface {
	// Get returns the value stored under key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// namespaced prefixes every key before delegating.
type namespaced struct {
	prefix string
	next   Storage
}

// Namespace returns a Storage that stores every key under prefix in next.
// It scopes a tenant cart to a shopper session without changing the keys the
// cart store itself uses.
func Namespace(prefix string, next Storage) Storage {
	return &namespaced{prefix: prefix, next: next}
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return n.next.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.next.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Remove(ctx context.Context, key string) error {
	return n.next.Remove(ctx, n.prefix+key)
}

// SessionPrefix is the namespace used for one shopper session.
func SessionPrefix(sessionID string) string {
	return "session:" + sessionID + ":"
}
