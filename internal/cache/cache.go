// Package cache holds short-lived treasury snapshots in redis so operator
// reads do not hammer the fullnode. The scheduler never reads through it.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"suiwager/internal/models"
)

func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

// TreasuryCache is nil-safe: with no redis client every lookup is a miss.
type TreasuryCache struct {
	RDB *redis.Client
	TTL time.Duration
}

func key(currency models.Currency) string {
	return fmt.Sprintf("treasury:state:%s", currency)
}

func (c *TreasuryCache) Get(ctx context.Context, currency models.Currency) (models.TreasuryState, bool) {
	if c == nil || c.RDB == nil {
		return models.TreasuryState{}, false
	}
	raw, err := c.RDB.Get(ctx, key(currency)).Bytes()
	if err != nil {
		return models.TreasuryState{}, false
	}
	var st models.TreasuryState
	if err := json.Unmarshal(raw, &st); err != nil {
		return models.TreasuryState{}, false
	}
	return st, true
}

func (c *TreasuryCache) Put(ctx context.Context, st models.TreasuryState) {
	if c == nil || c.RDB == nil {
		return
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	_ = c.RDB.Set(ctx, key(st.Currency), raw, ttl).Err()
}
