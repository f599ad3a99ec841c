package docstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/driftwatch/driftwatch/pkg/errors"
)

// Compile-time interface check to ensure proper implementation.
var _ Store = (*RedisStore)(nil)

// keyPrefix namespaces driftwatch documents inside a shared Redis instance.
const keyPrefix = "driftwatch:"

// RedisStore is the remote persistence tier. It is authoritative when
// reachable; all failures surface as PersistenceError wrapping
// ErrStoreUnavailable so the tiered policy can fall back.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store backed by a Redis instance.
func NewRedisStore(addr, password string, db int) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStore{client: rdb}
}

// Get fetches the document stored under slot.
func (s *RedisStore) Get(ctx context.Context, slot string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, keyPrefix+slot).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.WrapPersistence(slot, "read", unavailable(err))
	}
	return data, true, nil
}

// Put stores the document under slot with no expiry.
func (s *RedisStore) Put(ctx context.Context, slot string, data []byte) error {
	if err := s.client.Set(ctx, keyPrefix+slot, data, 0).Err(); err != nil {
		return errors.WrapPersistence(slot, "write", unavailable(err))
	}
	return nil
}

// Ping verifies the connection, used at startup to log which tier is live.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// unavailable tags a transport error with the ErrStoreUnavailable sentinel
// while preserving the underlying detail.
func unavailable(err error) error {
	return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
}
