// README: Cart store backed by Redis; one JSON document per customer with a sliding TTL.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dropfee/internal/types"
)

const (
	cartKeyPrefix    = "dropfee:cart:"
	maxUpdateRetries = 5
)

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func cartKey(customerID types.ID) string {
	return cartKeyPrefix + string(customerID)
}

// Get returns nil when the customer has no stored cart.
func (s *RedisStore) Get(ctx context.Context, customerID types.ID) (*Cart, error) {
	return load(ctx, s.client, customerID)
}

// Update runs fn against the stored cart inside a WATCH transaction and retries on
// concurrent modification. A missing cart is passed to fn as a new empty cart.
func (s *RedisStore) Update(ctx context.Context, customerID types.ID, fn func(*Cart) error) (*Cart, error) {
	key := cartKey(customerID)
	var out *Cart

	txf := func(tx *redis.Tx) error {
		c, err := load(ctx, tx, customerID)
		if err != nil {
			return err
		}
		if c == nil {
			c = NewCart(customerID)
		}
		if err := fn(c); err != nil {
			return err
		}
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode cart: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		if err == nil {
			out = c
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrConflict, customerID)
}

func (s *RedisStore) Delete(ctx context.Context, customerID types.ID) error {
	return s.client.Del(ctx, cartKey(customerID)).Err()
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, g getter, customerID types.ID) (*Cart, error) {
	raw, err := g.Get(ctx, cartKey(customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode cart %s: %w", customerID, err)
	}
	if c.Items == nil {
		c.Items = []Item{}
	}
	return &c, nil
}
