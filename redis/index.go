package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/pilgi/provider"
)

var _ provider.ContextStore[struct{}] = (*Index[struct{}])(nil)

// Index keeps JSON-encoded records under "<prefix>:<key>". Expiry is left
// to Redis.
type Index[T any] struct {
	rdb    *goredis.Client
	prefix string
}

// NewIndex returns an index of T values stored through c.
func NewIndex[T any](c *Client, prefix string) *Index[T] {
	return &Index[T]{rdb: c.rdb, prefix: prefix}
}

func (x *Index[T]) key(k string) string {
	if x.prefix == "" {
		return k
	}
	return x.prefix + ":" + k
}

// Load returns the record for k, or nil when there is none.
func (x *Index[T]) Load(ctx context.Context, k string) (*T, error) {
	raw, err := x.rdb.Get(ctx, x.key(k)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: load %s: %w", k, err)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("redis: decode %s: %w", k, err)
	}
	return &v, nil
}

// Save stores v under k. A zero ttl keeps it until deleted.
func (x *Index[T]) Save(ctx context.Context, k string, v *T, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: encode %s: %w", k, err)
	}
	if err := x.rdb.Set(ctx, x.key(k), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: save %s: %w", k, err)
	}
	return nil
}

// Delete removes k. Missing keys are not an error.
func (x *Index[T]) Delete(ctx context.Context, k string) error {
	if err := x.rdb.Del(ctx, x.key(k)).Err(); err != nil {
		return fmt.Errorf("redis: delete %s: %w", k, err)
	}
	return nil
}
