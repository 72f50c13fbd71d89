package cache

import (
	"context"
	"time"
)

// Store counts hits per key within a fixed window. The window starts on the
// first hit and the returned duration is the time left in it.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}
