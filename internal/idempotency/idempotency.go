// Package idempotency stores checkout idempotency keys in Redis.
package idempotency

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/storefront/internal/domain/order"
)

// DefaultTTL is how long a completed key replays its order.
const DefaultTTL = 24 * time.Hour

// pending marks a key whose checkout is still running.
const pending = "-"

// pendingTTL bounds how long a crashed checkout blocks its key.
const pendingTTL = time.Minute

// Store implements order.IdempotencyStore.
type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
}

var _ order.IdempotencyStore = (*Store)(nil)

// NewStore returns a Store keeping completed keys for ttl.
func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func key(userID, k string) string {
	return "storefront:idempotency:checkout:" + userID + ":" + k
}

// Claim reserves the key. A second claim returns the stored order id, or an
// empty id while the first checkout is running.
func (s *Store) Claim(ctx context.Context, userID, k string) (string, bool, error) {
	rk := key(userID, k)
	for range 2 {
		ok, err := s.rdb.SetNX(ctx, rk, pending, pendingTTL).Result()
		if err != nil {
			return "", false, errors.Wrap(err, "setnx")
		}
		if ok {
			return "", true, nil
		}

		v, err := s.rdb.Get(ctx, rk).Result()
		if errors.Is(err, redis.Nil) {
			// Expired between SETNX and GET.
			continue
		}
		if err != nil {
			return "", false, errors.Wrap(err, "get")
		}
		if v == pending {
			return "", false, nil
		}
		return v, false, nil
	}
	return "", false, nil
}

// Complete stores the placed order id under the key.
func (s *Store) Complete(ctx context.Context, userID, k, orderID string) error {
	if err := s.rdb.Set(ctx, key(userID, k), orderID, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "set")
	}
	return nil
}

// Release frees the key so the client can retry.
func (s *Store) Release(ctx context.Context, userID, k string) error {
	if err := s.rdb.Del(ctx, key(userID, k)).Err(); err != nil {
		return errors.Wrap(err, "del")
	}
	return nil
}
