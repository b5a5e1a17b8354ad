package ports

import (
	"context"
	"time"
)

// Cache is a small key-value capability for usecases. A ttl of zero keeps the
// entry until it is overwritten or deleted.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// PurgeExpired removes expired entries and reports how many went.
	PurgeExpired(ctx context.Context) (int64, error)
}
