package snapshot

import "context"

// Backend is the minimal storage contract. Values are opaque envelopes.
type Backend interface {
	Put(ctx context.Context, key, value string) error
	// Get returns the stored value and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Delete reports whether a value was removed.
	Delete(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Counter is implemented by backends that can count live entries cheaply.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Lister is implemented by backends that can enumerate live keys cheaply.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// Swapper is implemented by backends that support compare-and-swap.
// Swap stores value only if the current value equals old; an empty old
// requires the key to be absent. It reports whether the swap happened.
type Swapper interface {
	Swap(ctx context.Context, key, old, value string) (bool, error)
}
