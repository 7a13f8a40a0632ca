package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	r := redis.NewClient(&redis.Options{Addr: addr})
	_ = r.WithTimeout(2 * time.Second)
	return r
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Deduper remembers processed event ids under dedup:{scope}:{event_id}.
// Redis errors are swallowed: an unreachable redis degrades to at-least-once
// processing, never to dropped events.
type Deduper struct {
	Client *redis.Client
	Scope  string
}

func (d *Deduper) Seen(ctx context.Context, eventID string) bool {
	ok, _ := Exists(ctx, d.Client, fmt.Sprintf(KeyDedup, d.Scope, eventID))
	return ok
}

func (d *Deduper) Mark(ctx context.Context, eventID string) {
	_ = d.Client.Set(ctx, fmt.Sprintf(KeyDedup, d.Scope, eventID), "1", TTLDedup).Err()
}
