package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisCollector reads the latest metric samples from Redis keys written by
// an external metrics pipeline. One key per metric: metrics:<name>.
type RedisCollector struct {
	client *redis.Client
}

// NewRedisCollector connects to Redis and returns a collector backed by it.
func NewRedisCollector(addr, password string, db int) (*RedisCollector, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	log.Info().
		Str("addr", addr).
		Int("db", db).
		Msg("Redis metrics collector connected")

	return &RedisCollector{client: client}, nil
}

func metricKey(name string) string {
	return "metrics:" + name
}

// Record writes one metric sample. Exposed for pipelines that push samples
// through this process.
func (c *RedisCollector) Record(ctx context.Context, name string, value float64) error {
	if err := c.client.Set(ctx, metricKey(name), value, 0).Err(); err != nil {
		return fmt.Errorf("record metric %s: %w", name, err)
	}
	return nil
}

// Fetch implements engine.MetricsCollector. Metrics with no sample are
// omitted from the result.
func (c *RedisCollector) Fetch(ctx context.Context, names []string) (map[string]float64, error) {
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = metricKey(name)
	}

	raw, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch metrics: %w", err)
	}

	out := make(map[string]float64, len(names))
	for i, v := range raw {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		value, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("metric %s has non-numeric value %q", names[i], s)
		}
		out[names[i]] = value
	}
	return out, nil
}

// Close closes the Redis connection.
func (c *RedisCollector) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close redis connection: %w", err)
	}
	return nil
}
