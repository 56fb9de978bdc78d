package satellite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTrackTTL bounds how long a shared track outlives its last append
const DefaultTrackTTL = time.Hour

// RedisTrackRepository implements TrackRepository on a Redis list, newest
// sample at the head. It is a shared cache, not a history: the list is
// trimmed to capacity and expires once nothing appends to it.
type RedisTrackRepository struct {
	client   redis.UniversalClient
	key      string
	capacity int
	ttl      time.Duration
}

// NewRedisTrackRepository stores the track of satellite under
// "satwatch:track:<satellite>". A non-positive ttl means DefaultTrackTTL.
func NewRedisTrackRepository(client redis.UniversalClient, satellite string, capacity int, ttl time.Duration) *RedisTrackRepository {
	if capacity < 1 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = DefaultTrackTTL
	}
	return &RedisTrackRepository{
		client:   client,
		key:      fmt.Sprintf("satwatch:track:%s", satellite),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Append pushes, trims and refreshes the TTL in one transaction
func (r *RedisTrackRepository) Append(ctx context.Context, sample PositionSample) error {
	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, r.key, data)
		pipe.LTrim(ctx, r.key, 0, int64(r.capacity-1))
		pipe.Expire(ctx, r.key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append track sample: %w", err)
	}
	return nil
}

// Recent reads the newest n samples and returns them oldest first
func (r *RedisTrackRepository) Recent(ctx context.Context, n int) ([]PositionSample, error) {
	stop := int64(-1)
	if n > 0 {
		stop = int64(n - 1)
	}

	items, err := r.client.LRange(ctx, r.key, 0, stop).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load track: %w", err)
	}

	samples := make([]PositionSample, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		var s PositionSample
		if err := json.Unmarshal([]byte(items[i]), &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal track sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// Clear deletes the list
func (r *RedisTrackRepository) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
