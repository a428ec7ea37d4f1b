package storage

import (
	"context"
	"time"
)

// KeyValueStore keeps small string values, callers scope keys per conversation.
// A zero ttl means the value does not expire.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Close() error
}
