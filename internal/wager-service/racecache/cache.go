package racecache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/race-wager-engine/internal/wager-service/repo"
)

// Cache guarda o status corrente de cada corrida no Redis, alimentado pelo
// worker do feed. É só o caminho rápido da checagem de elegibilidade; a
// checagem que vale acontece dentro da transação, no Postgres.
type Cache struct{ R *redis.Client }

func New(r *redis.Client) *Cache { return &Cache{R: r} }

func key(raceID string) string { return "race:status:" + raceID }

// Get retorna (status, true) se houver entrada no cache.
func (c *Cache) Get(ctx context.Context, raceID string) (repo.RaceStatus, bool) {
	v, err := c.R.Get(ctx, key(raceID)).Result()
	if err != nil {
		return "", false
	}
	return repo.RaceStatus(v), true
}

func (c *Cache) Set(ctx context.Context, raceID string, status repo.RaceStatus, ttl time.Duration) error {
	return c.R.Set(ctx, key(raceID), string(status), ttl).Err()
}
