package counter

import (
	"context"
	"strconv"
	"time"

	"github.com/ManuelReschke/NutriFox/internal/pkg/cache"
	"github.com/redis/go-redis/v9"
)

const (
	webhookOutcomesKey = "billing:webhooks:outcomes"
	dailyRetention     = 35 * 24 * time.Hour
)

// Counter keeps per-outcome webhook totals in Redis hashes: one all-time
// hash and one hash per UTC day.
type Counter struct {
	rdb redis.Cmdable
	now func() time.Time
}

// New creates a counter on the given client.
func New(rdb redis.Cmdable) *Counter {
	return &Counter{rdb: rdb, now: time.Now}
}

// Default creates a counter on the shared cache client.
func Default() *Counter {
	return New(cache.GetClient())
}

func dailyKey(t time.Time) string {
	return webhookOutcomesKey + ":" + t.UTC().Format("20060102")
}

// RecordOutcome increments the counter for one webhook outcome
func (c *Counter) RecordOutcome(ctx context.Context, outcome string) error {
	day := dailyKey(c.now())
	pipe := c.rdb.TxPipeline()
	pipe.HIncrBy(ctx, webhookOutcomesKey, outcome, 1)
	pipe.HIncrBy(ctx, day, outcome, 1)
	pipe.Expire(ctx, day, dailyRetention)
	_, err := pipe.Exec(ctx)
	return err
}

// Totals returns the all-time counters.
func (c *Counter) Totals(ctx context.Context) (map[string]int64, error) {
	return c.read(ctx, webhookOutcomesKey)
}

// Day returns the counters of the UTC day containing t.
func (c *Counter) Day(ctx context.Context, t time.Time) (map[string]int64, error) {
	return c.read(ctx, dailyKey(t))
}

func (c *Counter) read(ctx context.Context, key string) (map[string]int64, error) {
	data, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(data))
	for k, v := range data {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			continue
		}
		out[k] = n
	}
	return out, nil
}
